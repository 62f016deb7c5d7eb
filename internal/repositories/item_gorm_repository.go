package repositories

import (
	"errors"
	"fmt"

	"catalog/internal/models"

	"gorm.io/gorm"
)

// GORMItemRepository is a GORM implementation of ItemRepository.
type GORMItemRepository struct {
	db *gorm.DB
}

// NewGORMItemRepository creates a new instance of GORMItemRepository.
func NewGORMItemRepository(db *gorm.DB) *GORMItemRepository {
	return &GORMItemRepository{
		db: db,
	}
}

// GetByID retrieves a single item by its ID.
func (r *GORMItemRepository) GetByID(id uint) (*models.Item, error) {
	var item models.Item
	if err := r.db.First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("item %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get item by ID %d: %w", id, err)
	}
	return &item, nil
}

// GetByCategory retrieves the items of one category, ordered by name
// ascending.
func (r *GORMItemRepository) GetByCategory(categoryID uint) ([]models.Item, error) {
	var items []models.Item
	if err := r.db.Where("category_id = ?", categoryID).Order("name asc").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to get items for category %d: %w", categoryID, err)
	}
	return items, nil
}

// GetByCategoryAndName retrieves the item with the given name inside
// the given category. Item names are only unique per category.
func (r *GORMItemRepository) GetByCategoryAndName(categoryID uint, name string) (*models.Item, error) {
	var item models.Item
	if err := r.db.First(&item, "category_id = ? AND name = ?", categoryID, name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("item %q in category %d: %w", name, categoryID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get item by name %q in category %d: %w", name, categoryID, err)
	}
	return &item, nil
}

// GetRecent retrieves the most recently created items, newest first.
func (r *GORMItemRepository) GetRecent(limit int) ([]models.Item, error) {
	var items []models.Item
	if err := r.db.Order("created desc").Limit(limit).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to get recent items: %w", err)
	}
	return items, nil
}

// Create inserts a new item into the database.
func (r *GORMItemRepository) Create(item *models.Item) error {
	if err := r.db.Create(item).Error; err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}
	return nil
}

// Update updates an existing item in the database.
func (r *GORMItemRepository) Update(item *models.Item) error {
	res := r.db.Save(item)
	if res.Error != nil {
		return fmt.Errorf("failed to update item: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("item %d for update: %w", item.ID, ErrNotFound)
	}
	return nil
}

// Delete removes an item by its ID.
func (r *GORMItemRepository) Delete(id uint) error {
	res := r.db.Delete(&models.Item{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete item %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("item %d for deletion: %w", id, ErrNotFound)
	}
	return nil
}
