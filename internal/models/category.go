package models

import "time"

// Category is a named grouping of items. Names are unique across all
// categories; the check lives in the service layer, the unique index
// backs it up against concurrent creates.
type Category struct {
	ID          uint      `gorm:"primaryKey"`
	Name        string    `gorm:"type:varchar(40);not null;uniqueIndex" validate:"required,max=40"`
	Description string    `gorm:"type:text"`
	UserID      uint      `gorm:"column:user_id"`
	Created     time.Time `gorm:"column:created;autoCreateTime"`
}

// TableName pins the singular table name of the deployed schema.
func (Category) TableName() string {
	return "category"
}

// CategoryJSON is the wire shape served by the /category/{id}/JSON
// endpoint.
type CategoryJSON struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// JSON converts the category to its serialized form.
func (c *Category) JSON() CategoryJSON {
	return CategoryJSON{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
	}
}
