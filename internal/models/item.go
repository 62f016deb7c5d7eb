package models

import "time"

// Item belongs to exactly one category. Names are unique within their
// owning category, not globally.
type Item struct {
	ID          uint      `gorm:"primaryKey"`
	Name        string    `gorm:"type:varchar(40);not null;uniqueIndex:idx_item_category_name" validate:"required,max=40"`
	Description string    `gorm:"type:text"`
	CategoryID  uint      `gorm:"column:category_id;not null;uniqueIndex:idx_item_category_name"`
	UserID      uint      `gorm:"column:user_id"`
	Created     time.Time `gorm:"column:created;autoCreateTime"`
}

// TableName pins the table name of the deployed schema.
func (Item) TableName() string {
	return "category_sub_item"
}

// ItemJSON is the wire shape served by the /item/{id}/JSON endpoint.
// It embeds a summary of the owning category.
type ItemJSON struct {
	ID          uint         `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Category    CategoryJSON `json:"category"`
}

// JSON converts the item to its serialized form, nesting the given
// owning category.
func (i *Item) JSON(category *Category) ItemJSON {
	return ItemJSON{
		ID:          i.ID,
		Name:        i.Name,
		Description: i.Description,
		Category:    category.JSON(),
	}
}
