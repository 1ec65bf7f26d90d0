package main

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/MiguelCortes1231/ocrFront/internal/config"
	"github.com/MiguelCortes1231/ocrFront/internal/database"
	"github.com/MiguelCortes1231/ocrFront/internal/handlers"
	"github.com/MiguelCortes1231/ocrFront/internal/middleware"
	"github.com/MiguelCortes1231/ocrFront/internal/services"
	"github.com/MiguelCortes1231/ocrFront/internal/wizard"
)

func main() {
	// Load .env file if it exists
	godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Connect to database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Create admin user if it doesn't exist
	if err := database.EnsureAdminUser(db, cfg); err != nil {
		log.Printf("Warning: Could not ensure admin user: %v", err)
	}

	// Pick the OCR client. Local runs Tesseract in-process; remote talks to
	// an external recognition API.
	var ocrClient services.OCRClient
	switch cfg.OCRMode {
	case "remote":
		if cfg.OCRBaseURL == "" {
			log.Fatal("OCR_BASE_URL is required when OCR_MODE=remote")
		}
		ocrClient = services.NewRemoteOCRClient(cfg.OCRBaseURL, cfg.OCRAPIKey)
		log.Printf("Using remote OCR at %s", cfg.OCRBaseURL)
	default:
		engine, err := services.NewTesseractEngine(cfg.OCRLanguage)
		if err != nil {
			log.Fatalf("Failed to initialize OCR engine: %v", err)
		}
		defer engine.Close()
		ocrClient = services.NewLocalOCRClient(engine)
		log.Printf("Using local OCR (language %s)", cfg.OCRLanguage)
	}

	// Initialize archive storage when configured
	var storage *services.StorageService
	if cfg.S3Enabled {
		if cfg.S3AccessKey == "" || cfg.S3SecretKey == "" {
			log.Println("S3 credentials not configured, capture archiving disabled")
		} else {
			storage, err = services.NewStorageService(
				cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey,
				cfg.S3Bucket, cfg.S3Region, cfg.S3UseSSL,
			)
			if err != nil {
				log.Fatalf("Failed to initialize storage service: %v", err)
			}
			if err := storage.EnsureBucket(context.Background()); err != nil {
				log.Printf("Warning: Failed to ensure S3 bucket exists: %v", err)
			}
			log.Printf("Capture archiving enabled (bucket %s)", storage.GetBucketName())
		}
	}

	// Wizard session manager with periodic eviction of idle sessions
	manager := wizard.NewManager(cfg.SessionTTL, cfg.OCRTimeout)
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			if n := manager.Sweep(); n > 0 {
				log.Printf("Evicted %d idle wizard session(s)", n)
			}
		}
	}()

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler,
		BodyLimit:    12 * 1024 * 1024,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	// Create handlers with dependencies
	h := handlers.New(db, cfg)
	wizardHandler := handlers.NewWizardHandler(db, cfg, manager, ocrClient, storage)
	recognitionHandler := handlers.NewRecognitionHandler(db, cfg, storage)

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "sessions": manager.Count()})
	})

	// API routes
	api := app.Group("/api")

	// Auth routes (public)
	auth := api.Group("/auth")
	auth.Post("/login", h.Login)
	auth.Post("/logout", h.Logout)
	auth.Get("/me", middleware.AuthRequired(cfg), h.GetCurrentUser)
	auth.Post("/refresh", middleware.AuthRequired(cfg), h.RefreshToken)

	// Wizard routes (authenticated)
	wiz := api.Group("/wizard", middleware.AuthRequired(cfg))
	wiz.Post("/", wizardHandler.CreateSession)
	wiz.Get("/:id", wizardHandler.GetSession)
	wiz.Delete("/:id", wizardHandler.DeleteSession)
	wiz.Post("/:id/source", wizardHandler.UploadSource)
	wiz.Post("/:id/rotate", wizardHandler.Rotate)
	wiz.Post("/:id/crop", wizardHandler.Crop)
	wiz.Post("/:id/undo", wizardHandler.Undo)
	wiz.Post("/:id/redo", wizardHandler.Redo)
	wiz.Post("/:id/revert", wizardHandler.Revert)
	wiz.Post("/:id/next", wizardHandler.Next)
	wiz.Post("/:id/back", wizardHandler.Back)
	wiz.Post("/:id/stage", wizardHandler.GoToStage)
	wiz.Post("/:id/select", wizardHandler.SelectVersion)
	wiz.Get("/:id/image", wizardHandler.GetImage)
	wiz.Post("/:id/enhance", wizardHandler.Enhance)
	wiz.Post("/:id/process", wizardHandler.Process)

	// Recognition routes (authenticated)
	recognitions := api.Group("/recognitions", middleware.AuthRequired(cfg))
	recognitions.Get("/", recognitionHandler.ListRecognitions)
	recognitions.Get("/:id", recognitionHandler.GetRecognition)
	recognitions.Get("/:id/image", recognitionHandler.GetRecognitionImage)
	recognitions.Delete("/:id", recognitionHandler.DeleteRecognition)

	log.Printf("Server starting on port %s", cfg.Port)
	log.Fatal(app.Listen(":" + cfg.Port))
}
