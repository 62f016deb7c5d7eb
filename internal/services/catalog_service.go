package services

import (
	"errors"
	"fmt"

	"catalog/internal/models"
	"catalog/internal/repositories"

	"github.com/go-playground/validator/v10"
)

// Form error messages. Create and edit share the same constants so the
// two paths cannot drift apart.
const (
	MsgCategoryNameRequired = "Please enter a category name"
	MsgCategoryNameTooLong  = "Category name must be under 40 characters"
	MsgCategoryNameTaken    = "Category name already exists!"
	MsgItemNameRequired     = "Please enter an item name"
	MsgItemNameTooLong      = "Item name must be under 40 characters"
	MsgItemNameTaken        = "Item name already exists!"
	MsgCategoryRequired     = "Please select a category"
	MsgCategoryMissing      = "Category does not exist"
)

// ValidationError is a form-level failure. It is rendered inline next
// to the named field, never as an HTTP error status.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// AsValidationError unwraps err into a *ValidationError if it is one.
func AsValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}

// CatalogService owns the business rules over categories and items:
// name validation, uniqueness, referential checks and the category
// delete cascade.
type CatalogService struct {
	categoryRepo repositories.CategoryRepository
	itemRepo     repositories.ItemRepository
	validate     *validator.Validate
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(categoryRepo repositories.CategoryRepository, itemRepo repositories.ItemRepository) *CatalogService {
	return &CatalogService{
		categoryRepo: categoryRepo,
		itemRepo:     itemRepo,
		validate:     validator.New(),
	}
}

// Categories retrieves all categories, name ascending.
func (s *CatalogService) Categories() ([]models.Category, error) {
	return s.categoryRepo.GetAll()
}

// CategoryByID retrieves a single category.
func (s *CatalogService) CategoryByID(id uint) (*models.Category, error) {
	return s.categoryRepo.GetByID(id)
}

// ItemsInCategory retrieves the items of one category, name ascending.
func (s *CatalogService) ItemsInCategory(categoryID uint) ([]models.Item, error) {
	return s.itemRepo.GetByCategory(categoryID)
}

// RecentItems retrieves the most recently created items, newest first.
func (s *CatalogService) RecentItems(limit int) ([]models.Item, error) {
	return s.itemRepo.GetRecent(limit)
}

// ItemByID retrieves a single item.
func (s *CatalogService) ItemByID(id uint) (*models.Item, error) {
	return s.itemRepo.GetByID(id)
}

// CreateCategory validates and inserts a new category owned by the
// given user. A *ValidationError means nothing was persisted.
func (s *CatalogService) CreateCategory(name, description string, userID uint) (*models.Category, error) {
	if err := s.checkCategoryName(name, 0); err != nil {
		return nil, err
	}

	category := &models.Category{
		Name:        name,
		Description: description,
		UserID:      userID,
	}
	if err := s.categoryRepo.Create(category); err != nil {
		return nil, fmt.Errorf("failed to create category %q: %w", name, err)
	}
	return category, nil
}

// UpdateCategory validates and applies a name/description change. The
// uniqueness check excludes the category being edited.
func (s *CatalogService) UpdateCategory(id uint, name, description string) (*models.Category, error) {
	category, err := s.categoryRepo.GetByID(id)
	if err != nil {
		return nil, err
	}

	if err := s.checkCategoryName(name, id); err != nil {
		return nil, err
	}

	category.Name = name
	category.Description = description
	if err := s.categoryRepo.Update(category); err != nil {
		return nil, fmt.Errorf("failed to update category %d: %w", id, err)
	}
	return category, nil
}

// DeleteCategory removes a category and all of its items.
func (s *CatalogService) DeleteCategory(id uint) error {
	return s.categoryRepo.Delete(id)
}

// CreateItem validates and inserts a new item into the given category.
func (s *CatalogService) CreateItem(name, description string, categoryID, userID uint) (*models.Item, error) {
	if err := s.checkItemCategory(categoryID); err != nil {
		return nil, err
	}
	if err := s.checkItemName(name, categoryID, 0); err != nil {
		return nil, err
	}

	item := &models.Item{
		Name:        name,
		Description: description,
		CategoryID:  categoryID,
		UserID:      userID,
	}
	if err := s.itemRepo.Create(item); err != nil {
		return nil, fmt.Errorf("failed to create item %q: %w", name, err)
	}
	return item, nil
}

// UpdateItem validates and applies a name/description change plus an
// optional category reassignment. Name uniqueness is checked against
// the target category, excluding the item itself.
func (s *CatalogService) UpdateItem(id uint, name, description string, categoryID uint) (*models.Item, error) {
	item, err := s.itemRepo.GetByID(id)
	if err != nil {
		return nil, err
	}

	if err := s.checkItemCategory(categoryID); err != nil {
		return nil, err
	}
	if err := s.checkItemName(name, categoryID, id); err != nil {
		return nil, err
	}

	item.Name = name
	item.Description = description
	item.CategoryID = categoryID
	if err := s.itemRepo.Update(item); err != nil {
		return nil, fmt.Errorf("failed to update item %d: %w", id, err)
	}
	return item, nil
}

// DeleteItem removes a single item.
func (s *CatalogService) DeleteItem(id uint) error {
	return s.itemRepo.Delete(id)
}

// checkCategoryName runs the shared category name rules. excludeID is
// the category being edited, or 0 on create.
func (s *CatalogService) checkCategoryName(name string, excludeID uint) error {
	if msg := s.nameRuleMessage(name, MsgCategoryNameRequired, MsgCategoryNameTooLong); msg != "" {
		return &ValidationError{Field: "name", Message: msg}
	}

	existing, err := s.categoryRepo.GetByName(name)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to check category name %q: %w", name, err)
	}
	if existing.ID != excludeID {
		return &ValidationError{Field: "name", Message: MsgCategoryNameTaken}
	}
	return nil
}

// checkItemName runs the shared item name rules, scoped to one
// category. excludeID is the item being edited, or 0 on create.
func (s *CatalogService) checkItemName(name string, categoryID, excludeID uint) error {
	if msg := s.nameRuleMessage(name, MsgItemNameRequired, MsgItemNameTooLong); msg != "" {
		return &ValidationError{Field: "name", Message: msg}
	}

	existing, err := s.itemRepo.GetByCategoryAndName(categoryID, name)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to check item name %q: %w", name, err)
	}
	if existing.ID != excludeID {
		return &ValidationError{Field: "name", Message: MsgItemNameTaken}
	}
	return nil
}

// checkItemCategory verifies the selected category exists.
func (s *CatalogService) checkItemCategory(categoryID uint) error {
	if categoryID == 0 {
		return &ValidationError{Field: "category", Message: MsgCategoryRequired}
	}
	if _, err := s.categoryRepo.GetByID(categoryID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return &ValidationError{Field: "category", Message: MsgCategoryMissing}
		}
		return fmt.Errorf("failed to check category %d: %w", categoryID, err)
	}
	return nil
}

// nameRuleMessage maps the validator tags for the shared name rules to
// the fixed form messages. Returns "" when the name passes.
func (s *CatalogService) nameRuleMessage(name, requiredMsg, tooLongMsg string) string {
	err := s.validate.Var(name, "required,max=40")
	if err == nil {
		return ""
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, e := range verrs {
			switch e.Tag() {
			case "required":
				return requiredMsg
			case "max":
				return tooLongMsg
			}
		}
	}
	return requiredMsg
}
