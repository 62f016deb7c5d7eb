package middleware

import (
	"log"

	"catalog/internal/session"

	"github.com/gofiber/fiber/v2"
	fibersession "github.com/gofiber/fiber/v2/middleware/session"
)

// LoginRequired is a Fiber middleware gating mutating routes on
// authentication. An unauthenticated browser is redirected to the
// landing page rather than handed an error payload, since the only
// caller is a browser navigation. There is no per-resource ownership
// check: any authenticated user passes.
func LoginRequired(store *fibersession.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := store.Get(c)
		if err != nil {
			log.Printf("Failed to load session for %s: %v", c.Path(), err)
			return c.Redirect("/", fiber.StatusFound)
		}

		if _, ok := session.FromSession(sess); !ok {
			return c.Redirect("/", fiber.StatusFound)
		}

		// Continue to the next handler
		return c.Next()
	}
}
