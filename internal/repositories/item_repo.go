package repositories

import "catalog/internal/models"

// ItemRepository defines the interface for item data access.
type ItemRepository interface {
	GetByID(id uint) (*models.Item, error)
	GetByCategory(categoryID uint) ([]models.Item, error)
	GetByCategoryAndName(categoryID uint, name string) (*models.Item, error)
	GetRecent(limit int) ([]models.Item, error)
	Create(item *models.Item) error
	Update(item *models.Item) error
	Delete(id uint) error
}
