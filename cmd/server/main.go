package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/marqetly/marqetly/configs"
	"github.com/marqetly/marqetly/internal/api/handlers"
	"github.com/marqetly/marqetly/internal/api/middleware"
	job "github.com/marqetly/marqetly/internal/jobs"
	"github.com/marqetly/marqetly/internal/models"
	"github.com/marqetly/marqetly/internal/publisher"
	"github.com/marqetly/marqetly/internal/queue"
	"github.com/marqetly/marqetly/internal/repository"
	"github.com/marqetly/marqetly/internal/service"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Trigger-Token",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	postRepo := repository.NewPostRepository(db)
	executionRepo := repository.NewExecutionRepository(db)
	secretRepo := repository.NewSecretRepository(db)
	apiKeyRepo := repository.NewApiKeyRepository(db)
	mediaAssetRepo := repository.NewMediaAssetRepository(db)
	postMediaRepo := repository.NewPostMediaRepository(db)

	credentialService := service.NewCredentialService(*cfg, secretRepo)
	secretsService := service.NewSecretsService(*cfg, secretRepo)
	postService := service.NewPostService(db, postRepo, executionRepo, mediaAssetRepo, postMediaRepo)
	apiKeyService := service.NewApiKeyService(apiKeyRepo)
	r2Service := service.NewR2Service(*cfg)
	mediaService := service.NewMediaService(mediaAssetRepo, r2Service)

	registry := publisher.NewRegistry()
	registry.Register(models.PlatformTwitter, publisher.NewTwitterPublisher(cfg.TwitterAPIBase, credentialService))

	publishJob := job.NewPublishJob(postRepo, executionRepo, registry)

	authMiddleware := middleware.NewAuthMiddleware(*cfg, apiKeyService)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	trigger := handlers.NewTriggerHandler(*cfg, publishJob)
	app.Post("/internal/publish/run", trigger.RunPublish)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	post := handlers.NewPostHandler(postService, client)
	api.Post("/posts/create", post.CreatePost)
	api.Get("/posts", post.ListPosts)
	api.Post("/posts/remove", post.RemovePost)

	secrets := handlers.NewSecretsHandler(secretsService)
	api.Post("/secrets/set", secrets.SetSecret)
	api.Get("/secrets/list", secrets.ListSecrets)
	api.Post("/secrets/remove", secrets.RemoveSecret)

	apiKeys := handlers.NewApiKeyHandler(apiKeyService)
	api.Post("/api_key/new", apiKeys.CreateApiKey)
	api.Get("/api_key/list", apiKeys.ListKeys)
	api.Post("/api_key/remove", apiKeys.RemoveAPIKey)

	assets := handlers.NewAssetsHandler(mediaService)
	api.Post("/assets/upload", assets.UploadAsset)
	api.Get("/assets", assets.ListAssets)

	// poll loop: safety net behind the delayed queue tasks
	c := cron.New()
	c.AddFunc(cfg.PollSchedule, func() {
		processed, err := publishJob.Run(context.Background())
		if err != nil {
			log.Printf("Publish run failed: %v", err)
			return
		}
		if processed > 0 {
			log.Printf("Publish run processed %d posts", processed)
		}
	})
	c.Start()

	queueW := queue.NewQueue(publishJob)

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 10,
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypePublishPost, queueW.HandlePublishPostTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
