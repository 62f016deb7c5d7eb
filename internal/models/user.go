package models

// User represents a visitor who has signed in through an external
// identity provider at least once. Rows are created on first login and
// never updated or deleted afterwards.
type User struct {
	ID      uint   `json:"id" gorm:"primaryKey"`
	Email   string `json:"email" gorm:"type:varchar(100);not null" validate:"required,email"`
	Service string `json:"service" gorm:"type:varchar(20);not null" validate:"required"`
}

// TableName pins the singular table name of the deployed schema.
func (User) TableName() string {
	return "user"
}
