package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	fibersession "github.com/gofiber/fiber/v2/middleware/session"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"catalog/internal/handlers"
	"catalog/internal/middleware"
	"catalog/internal/models"
	"catalog/internal/repositories"
	"catalog/internal/services"
	"catalog/pkg/googleoauth"
	"catalog/web"
)

func main() {
	// --- Configuration ---
	viper.SetDefault("APP_PORT", ":8080")
	viper.SetDefault("DB_DRIVER", "sqlite")
	viper.SetDefault("DB_DSN", "catalog.db")
	viper.SetDefault("SESSION_EXPIRATION", "12h")
	viper.AutomaticEnv() // Load environment variables

	appPort := viper.GetString("APP_PORT")
	dbDriver := viper.GetString("DB_DRIVER")
	dbDSN := viper.GetString("DB_DSN")
	sessionExpiration := viper.GetDuration("SESSION_EXPIRATION")
	clientID := viper.GetString("GOOGLE_CLIENT_ID")
	clientSecret := viper.GetString("GOOGLE_CLIENT_SECRET")

	if clientID == "" || clientSecret == "" {
		log.Fatal("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set")
	}

	// --- Database ---
	db, err := openDatabase(dbDriver, dbDSN)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Category{}, &models.Item{}); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// --- Session Store ---
	store := fibersession.New(fibersession.Config{
		KeyLookup:      "cookie:catalog_session",
		Expiration:     sessionExpiration,
		CookieHTTPOnly: true,
	})

	// --- Identity Provider Client ---
	provider := googleoauth.NewClient(googleoauth.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
	})

	// --- Initialize Repositories ---
	userRepo := repositories.NewGORMUserRepository(db)
	categoryRepo := repositories.NewGORMCategoryRepository(db)
	itemRepo := repositories.NewGORMItemRepository(db)

	// --- Initialize Services ---
	catalogService := services.NewCatalogService(categoryRepo, itemRepo)
	authService := services.NewAuthService(provider, userRepo)

	// --- Initialize Handlers ---
	catalogHandler := handlers.NewCatalogHandler(catalogService, store, clientID)
	authHandler := handlers.NewAuthHandler(authService, store)

	// --- Initialize Fiber App ---
	engine, err := web.Engine()
	if err != nil {
		log.Fatalf("Failed to load templates: %v", err)
	}
	app := fiber.New(fiber.Config{
		Views:       engine,
		ViewsLayout: web.Layout,
	})

	// --- Middleware ---
	app.Use(logger.New()) // Request logger

	// --- Routes ---
	guard := middleware.LoginRequired(store)
	catalogHandler.RegisterRoutes(app, guard)
	authHandler.RegisterRoutes(app)

	// --- Start HTTP Server ---
	log.Printf("Starting server on port %s", appPort)

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(appPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}

	log.Println("Server gracefully stopped")
}

// openDatabase opens the configured relational store. sqlite is the
// default; postgres is selected with DB_DRIVER=postgres.
func openDatabase(driver, dsn string) (*gorm.DB, error) {
	switch driver {
	case "sqlite":
		return gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	case "postgres":
		return gorm.Open(postgres.Open(dsn), &gorm.Config{})
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}
}
