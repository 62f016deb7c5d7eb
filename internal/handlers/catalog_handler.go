package handlers

import (
	"errors"
	"fmt"
	"log"
	"strconv"

	"catalog/internal/models"
	"catalog/internal/repositories"
	"catalog/internal/services"
	"catalog/internal/session"

	"github.com/gofiber/fiber/v2"
	fibersession "github.com/gofiber/fiber/v2/middleware/session"
)

// CatalogHandler handles the browser-facing catalog routes: the
// landing page, category and item pages, the create/edit/delete forms
// and the per-resource JSON endpoints.
type CatalogHandler struct {
	service  *services.CatalogService
	store    *fibersession.Store
	clientID string
}

// recentItemsLimit caps the latest-items list on the landing page.
const recentItemsLimit = 9

// NewCatalogHandler creates a new CatalogHandler. clientID is the
// OAuth client identifier embedded in the sign-in widget.
func NewCatalogHandler(service *services.CatalogService, store *fibersession.Store, clientID string) *CatalogHandler {
	return &CatalogHandler{
		service:  service,
		store:    store,
		clientID: clientID,
	}
}

// RegisterRoutes registers the catalog routes. guard wraps every
// mutating route; read-only pages stay public.
func (h *CatalogHandler) RegisterRoutes(router fiber.Router, guard fiber.Handler) {
	router.Get("/", h.HandleIndex)

	router.Get("/newcategory", guard, h.HandleNewCategoryForm)
	router.Post("/newcategory", guard, h.HandleNewCategory)
	router.Get("/category/:id", h.HandleCategory)
	router.Get("/category/:id/edit", guard, h.HandleEditCategoryForm)
	router.Post("/category/:id/edit", guard, h.HandleEditCategory)
	router.Get("/category/:id/delete", guard, h.HandleDeleteCategoryForm)
	router.Post("/category/:id/delete", guard, h.HandleDeleteCategory)
	router.Get("/category/:id/JSON", h.HandleCategoryJSON)

	router.Get("/newitem", guard, h.HandleNewItemForm)
	router.Post("/newitem", guard, h.HandleNewItem)
	router.Get("/item/:id", h.HandleItem)
	router.Get("/item/:id/edit", guard, h.HandleEditItemForm)
	router.Post("/item/:id/edit", guard, h.HandleEditItem)
	router.Get("/item/:id/delete", guard, h.HandleDeleteItemForm)
	router.Post("/item/:id/delete", guard, h.HandleDeleteItem)
	router.Get("/item/:id/JSON", h.HandleItemJSON)
}

// recentItemView pairs an item with its category name for the landing
// page list.
type recentItemView struct {
	ID           uint
	Name         string
	CategoryName string
}

// HandleIndex renders the landing page: all categories, the latest
// items, and a freshly minted anti-forgery token for the sign-in
// widget.
func (h *CatalogHandler) HandleIndex(c *fiber.Ctx) error {
	data, sess := h.pageData(c)

	data["State"] = ""
	if sess != nil {
		state, err := session.IssueStateToken(sess)
		if err != nil {
			log.Printf("Failed to issue state token: %v", err)
		} else {
			data["State"] = state
		}
	}
	data["ClientID"] = h.clientID

	categories, err := h.service.Categories()
	if err != nil {
		log.Printf("Error getting categories: %v", err)
		return c.Status(fiber.StatusInternalServerError).SendString("Could not load catalog")
	}
	recent, err := h.service.RecentItems(recentItemsLimit)
	if err != nil {
		log.Printf("Error getting recent items: %v", err)
		return c.Status(fiber.StatusInternalServerError).SendString("Could not load catalog")
	}

	names := make(map[uint]string, len(categories))
	for _, cat := range categories {
		names[cat.ID] = cat.Name
	}
	recentViews := make([]recentItemView, 0, len(recent))
	for _, item := range recent {
		recentViews = append(recentViews, recentItemView{
			ID:           item.ID,
			Name:         item.Name,
			CategoryName: names[item.CategoryID],
		})
	}

	data["Categories"] = categories
	data["RecentItems"] = recentViews
	return c.Render("index", data)
}

// HandleNewCategoryForm renders the empty category form.
func (h *CatalogHandler) HandleNewCategoryForm(c *fiber.Ctx) error {
	data, _ := h.pageData(c)
	data["Name"] = ""
	data["Description"] = ""
	return c.Render("newcategory", data)
}

// HandleNewCategory creates a category, re-rendering the form with the
// entered values on validation failure.
func (h *CatalogHandler) HandleNewCategory(c *fiber.Ctx) error {
	name := c.FormValue("name")
	description := c.FormValue("description")

	_, err := h.service.CreateCategory(name, description, h.currentUserID(c))
	if err != nil {
		if verr, ok := services.AsValidationError(err); ok {
			data, _ := h.pageData(c)
			data["Name"] = name
			data["Description"] = description
			data["NameError"] = verr.Message
			return c.Render("newcategory", data)
		}
		log.Printf("Error creating category: %v", err)
		return c.Status(fiber.StatusInternalServerError).SendString("Could not create category")
	}

	return c.Redirect("/", fiber.StatusFound)
}

// HandleCategory renders one category and its items. Unknown ids go
// back to the landing page.
func (h *CatalogHandler) HandleCategory(c *fiber.Ctx) error {
	category, ok := h.lookupCategory(c)
	if !ok {
		return c.Redirect("/", fiber.StatusFound)
	}

	items, err := h.service.ItemsInCategory(category.ID)
	if err != nil {
		log.Printf("Error getting items for category %d: %v", category.ID, err)
		return c.Status(fiber.StatusInternalServerError).SendString("Could not load category")
	}

	data, _ := h.pageData(c)
	data["Category"] = category
	data["Items"] = items
	return c.Render("category", data)
}

// HandleEditCategoryForm renders the edit form pre-filled with the
// current values.
func (h *CatalogHandler) HandleEditCategoryForm(c *fiber.Ctx) error {
	category, ok := h.lookupCategory(c)
	if !ok {
		return c.Redirect("/", fiber.StatusFound)
	}

	data, _ := h.pageData(c)
	data["Category"] = category
	data["Name"] = category.Name
	data["Description"] = category.Description
	return c.Render("editcategory", data)
}

// HandleEditCategory applies a category edit.
func (h *CatalogHandler) HandleEditCategory(c *fiber.Ctx) error {
	category, ok := h.lookupCategory(c)
	if !ok {
		return c.Redirect("/", fiber.StatusFound)
	}

	name := c.FormValue("name")
	description := c.FormValue("description")

	if _, err := h.service.UpdateCategory(category.ID, name, description); err != nil {
		if verr, ok := services.AsValidationError(err); ok {
			data, _ := h.pageData(c)
			data["Category"] = category
			data["Name"] = name
			data["Description"] = description
			data["NameError"] = verr.Message
			return c.Render("editcategory", data)
		}
		log.Printf("Error updating category %d: %v", category.ID, err)
		return c.Status(fiber.StatusInternalServerError).SendString("Could not update category")
	}

	return c.Redirect(categoryPath(category.ID), fiber.StatusFound)
}

// HandleDeleteCategoryForm renders the delete confirmation page.
func (h *CatalogHandler) HandleDeleteCategoryForm(c *fiber.Ctx) error {
	category, ok := h.lookupCategory(c)
	if !ok {
		return c.Redirect("/", fiber.StatusFound)
	}

	data, _ := h.pageData(c)
	data["Category"] = category
	return c.Render("deletecategory", data)
}

// HandleDeleteCategory deletes a category and all of its items.
func (h *CatalogHandler) HandleDeleteCategory(c *fiber.Ctx) error {
	category, ok := h.lookupCategory(c)
	if !ok {
		return c.Redirect("/", fiber.StatusFound)
	}

	if err := h.service.DeleteCategory(category.ID); err != nil && !errors.Is(err, repositories.ErrNotFound) {
		log.Printf("Error deleting category %d: %v", category.ID, err)
		return c.Status(fiber.StatusInternalServerError).SendString("Could not delete category")
	}

	return c.Redirect("/", fiber.StatusFound)
}

// HandleCategoryJSON serves the serialized category.
func (h *CatalogHandler) HandleCategoryJSON(c *fiber.Ctx) error {
	category, ok := h.lookupCategory(c)
	if !ok {
		return c.Redirect("/", fiber.StatusFound)
	}
	return c.JSON(category.JSON())
}

// HandleNewItemForm renders the empty item form. A ?category query
// parameter preselects the owning category.
func (h *CatalogHandler) HandleNewItemForm(c *fiber.Ctx) error {
	data, ok := h.itemFormData(c)
	if !ok {
		return c.Status(fiber.StatusInternalServerError).SendString("Could not load form")
	}
	data["Name"] = ""
	data["Description"] = ""
	data["SelectedCategory"] = uint(c.QueryInt("category"))
	return c.Render("newitem", data)
}

// HandleNewItem creates an item, re-rendering the form with the
// entered values on validation failure.
func (h *CatalogHandler) HandleNewItem(c *fiber.Ctx) error {
	name := c.FormValue("name")
	description := c.FormValue("description")
	categoryID := formUint(c, "category")

	_, err := h.service.CreateItem(name, description, categoryID, h.currentUserID(c))
	if err != nil {
		if verr, ok := services.AsValidationError(err); ok {
			data, ok := h.itemFormData(c)
			if !ok {
				return c.Status(fiber.StatusInternalServerError).SendString("Could not load form")
			}
			data["Name"] = name
			data["Description"] = description
			data["SelectedCategory"] = categoryID
			setFieldError(data, verr)
			return c.Render("newitem", data)
		}
		log.Printf("Error creating item: %v", err)
		return c.Status(fiber.StatusInternalServerError).SendString("Could not create item")
	}

	return c.Redirect(categoryPath(categoryID), fiber.StatusFound)
}

// HandleItem renders one item. Unknown ids go back to the landing page.
func (h *CatalogHandler) HandleItem(c *fiber.Ctx) error {
	item, ok := h.lookupItem(c)
	if !ok {
		return c.Redirect("/", fiber.StatusFound)
	}

	category, err := h.service.CategoryByID(item.CategoryID)
	if err != nil {
		log.Printf("Error getting category %d for item %d: %v", item.CategoryID, item.ID, err)
		return c.Redirect("/", fiber.StatusFound)
	}

	data, _ := h.pageData(c)
	data["Item"] = item
	data["Category"] = category
	return c.Render("item", data)
}

// HandleEditItemForm renders the item edit form pre-filled with the
// current values.
func (h *CatalogHandler) HandleEditItemForm(c *fiber.Ctx) error {
	item, ok := h.lookupItem(c)
	if !ok {
		return c.Redirect("/", fiber.StatusFound)
	}

	data, formOK := h.itemFormData(c)
	if !formOK {
		return c.Status(fiber.StatusInternalServerError).SendString("Could not load form")
	}
	data["Item"] = item
	data["Name"] = item.Name
	data["Description"] = item.Description
	data["SelectedCategory"] = item.CategoryID
	return c.Render("edititem", data)
}

// HandleEditItem applies an item edit, including reassignment to a
// different category.
func (h *CatalogHandler) HandleEditItem(c *fiber.Ctx) error {
	item, ok := h.lookupItem(c)
	if !ok {
		return c.Redirect("/", fiber.StatusFound)
	}

	name := c.FormValue("name")
	description := c.FormValue("description")
	categoryID := formUint(c, "category")

	if _, err := h.service.UpdateItem(item.ID, name, description, categoryID); err != nil {
		if verr, ok := services.AsValidationError(err); ok {
			data, formOK := h.itemFormData(c)
			if !formOK {
				return c.Status(fiber.StatusInternalServerError).SendString("Could not load form")
			}
			data["Item"] = item
			data["Name"] = name
			data["Description"] = description
			data["SelectedCategory"] = categoryID
			setFieldError(data, verr)
			return c.Render("edititem", data)
		}
		log.Printf("Error updating item %d: %v", item.ID, err)
		return c.Status(fiber.StatusInternalServerError).SendString("Could not update item")
	}

	return c.Redirect(itemPath(item.ID), fiber.StatusFound)
}

// HandleDeleteItemForm renders the delete confirmation page.
func (h *CatalogHandler) HandleDeleteItemForm(c *fiber.Ctx) error {
	item, ok := h.lookupItem(c)
	if !ok {
		return c.Redirect("/", fiber.StatusFound)
	}

	data, _ := h.pageData(c)
	data["Item"] = item
	return c.Render("deleteitem", data)
}

// HandleDeleteItem deletes an item and returns to its category page.
func (h *CatalogHandler) HandleDeleteItem(c *fiber.Ctx) error {
	item, ok := h.lookupItem(c)
	if !ok {
		return c.Redirect("/", fiber.StatusFound)
	}

	if err := h.service.DeleteItem(item.ID); err != nil && !errors.Is(err, repositories.ErrNotFound) {
		log.Printf("Error deleting item %d: %v", item.ID, err)
		return c.Status(fiber.StatusInternalServerError).SendString("Could not delete item")
	}

	return c.Redirect(categoryPath(item.CategoryID), fiber.StatusFound)
}

// HandleItemJSON serves the serialized item with its category summary.
func (h *CatalogHandler) HandleItemJSON(c *fiber.Ctx) error {
	item, ok := h.lookupItem(c)
	if !ok {
		return c.Redirect("/", fiber.StatusFound)
	}

	category, err := h.service.CategoryByID(item.CategoryID)
	if err != nil {
		log.Printf("Error getting category %d for item %d: %v", item.CategoryID, item.ID, err)
		return c.Redirect("/", fiber.StatusFound)
	}

	return c.JSON(item.JSON(category))
}

// pageData builds the view-model fields every template shares and
// returns the session for further use. A session load failure renders
// the page as anonymous.
func (h *CatalogHandler) pageData(c *fiber.Ctx) (fiber.Map, session.Session) {
	data := fiber.Map{
		"LoggedIn":    false,
		"DisplayName": "",
		"AvatarURL":   "",
	}
	sess, err := h.store.Get(c)
	if err != nil {
		log.Printf("Failed to load session for %s: %v", c.Path(), err)
		return data, nil
	}
	if identity, ok := session.FromSession(sess); ok {
		data["LoggedIn"] = true
		data["DisplayName"] = identity.DisplayName
		data["AvatarURL"] = identity.AvatarURL
	}
	return data, sess
}

// itemFormData is pageData plus the category list the item forms need
// for their select box.
func (h *CatalogHandler) itemFormData(c *fiber.Ctx) (fiber.Map, bool) {
	data, _ := h.pageData(c)
	categories, err := h.service.Categories()
	if err != nil {
		log.Printf("Error getting categories for item form: %v", err)
		return nil, false
	}
	data["Categories"] = categories
	return data, true
}

// currentUserID resolves the local user id of the authenticated
// session, or 0 when anonymous.
func (h *CatalogHandler) currentUserID(c *fiber.Ctx) uint {
	sess, err := h.store.Get(c)
	if err != nil {
		return 0
	}
	identity, ok := session.FromSession(sess)
	if !ok {
		return 0
	}
	return identity.UserID
}

// lookupCategory resolves the :id route parameter to a category.
func (h *CatalogHandler) lookupCategory(c *fiber.Ctx) (*models.Category, bool) {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return nil, false
	}
	category, err := h.service.CategoryByID(uint(id))
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			log.Printf("Error getting category %d: %v", id, err)
		}
		return nil, false
	}
	return category, true
}

// lookupItem resolves the :id route parameter to an item.
func (h *CatalogHandler) lookupItem(c *fiber.Ctx) (*models.Item, bool) {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return nil, false
	}
	item, err := h.service.ItemByID(uint(id))
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			log.Printf("Error getting item %d: %v", id, err)
		}
		return nil, false
	}
	return item, true
}

func setFieldError(data fiber.Map, verr *services.ValidationError) {
	switch verr.Field {
	case "category":
		data["CategoryError"] = verr.Message
	default:
		data["NameError"] = verr.Message
	}
}

func formUint(c *fiber.Ctx, key string) uint {
	id, err := strconv.ParseUint(c.FormValue(key), 10, 32)
	if err != nil {
		return 0
	}
	return uint(id)
}

func categoryPath(id uint) string {
	return fmt.Sprintf("/category/%d", id)
}

func itemPath(id uint) string {
	return fmt.Sprintf("/item/%d", id)
}
