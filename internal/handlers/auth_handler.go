package handlers

import (
	"log"

	"catalog/internal/services"

	"github.com/gofiber/fiber/v2"
	fibersession "github.com/gofiber/fiber/v2/middleware/session"
)

// AuthHandler handles the OAuth connect and disconnect endpoints. Both
// respond with a JSON-encoded plain string; the browser-side sign-in
// widget is the only caller.
type AuthHandler struct {
	authService *services.AuthService
	store       *fibersession.Store
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService, store *fibersession.Store) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		store:       store,
	}
}

// RegisterRoutes registers the authentication routes with the Fiber app.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/gconnect", h.HandleConnect)
	router.Get("/gdisconnect", h.HandleDisconnect)
}

// HandleConnect completes the login: the sign-in widget posts the raw
// authorization code as the body with the anti-forgery state in the
// query string.
func (h *AuthHandler) HandleConnect(c *fiber.Ctx) error {
	sess, err := h.store.Get(c)
	if err != nil {
		log.Printf("Failed to load session for gconnect: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(services.MsgSessionFailed)
	}

	status, message := h.authService.Connect(c.UserContext(), sess, c.Query("state"), string(c.Body()))
	return c.Status(status).JSON(message)
}

// HandleDisconnect revokes the current access token and empties the
// session.
func (h *AuthHandler) HandleDisconnect(c *fiber.Ctx) error {
	sess, err := h.store.Get(c)
	if err != nil {
		log.Printf("Failed to load session for gdisconnect: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(services.MsgSessionFailed)
	}

	status, message := h.authService.Disconnect(c.UserContext(), sess)
	return c.Status(status).JSON(message)
}
