package main

import (
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
	config "github.com/postpilot/postpilot/configs"
	"github.com/postpilot/postpilot/internal/api/handlers"
	"github.com/postpilot/postpilot/internal/api/middleware"
	job "github.com/postpilot/postpilot/internal/jobs"
	"github.com/postpilot/postpilot/internal/publisher"
	"github.com/postpilot/postpilot/internal/queue"
	"github.com/postpilot/postpilot/internal/repository"
	"github.com/postpilot/postpilot/internal/service"
	"github.com/postpilot/postpilot/internal/sweep"
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
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	postRepo := repository.NewPostRepository(db)
	credRepo := repository.NewCredentialRepository(db)

	r2Service := service.NewR2Service(*cfg)
	dispatcher := publisher.NewDispatcher(publisher.DefaultPublishTimeout,
		publisher.NewInstagram(),
		publisher.NewLinkedIn(),
		publisher.NewPinterest(),
		publisher.NewYouTube(),
	)
	authService := service.NewAuthService(*cfg, credRepo)
	credService := service.NewCredentialService(credRepo)
	postService := service.NewPostService(postRepo, credRepo, r2Service, dispatcher, []byte(cfg.SecretKey))
	sweeper := sweep.NewSweeper(postRepo, credRepo, dispatcher, r2Service, []byte(cfg.SecretKey))

	cronAuth := middleware.NewCronAuthMiddleware(*cfg)

	platform := handlers.NewPlatformHandler(authService, credService, *cfg)
	app.Get("/auth/:platform", platform.Authorize)
	app.Get("/auth/:platform/callback", platform.Callback)

	api := app.Group("/api")

	post := handlers.NewPostHandler(postService, client)
	api.Post("/posts/create", post.CreatePost)
	api.Get("/posts", post.ListPosts)
	api.Post("/posts/remove", post.RemovePost)

	api.Get("/credentials", platform.ListCredentials)
	api.Post("/credentials/remove", platform.Disconnect)

	cronHandler := handlers.NewCronHandler(sweeper)
	api.Get("/cron/post-scheduled", cronAuth.CronAuth(), cronHandler.TriggerSweep)
	api.Post("/cron/post-scheduled", cronAuth.CronAuth(), cronHandler.TriggerSweep)

	// cron jobs
	refreshTokenJob := job.NewTokenRefreshJob(*cfg, credRepo)
	cleanupJob := job.NewCleanupJob(postRepo, r2Service)

	// queue
	queueW := queue.NewQueue(postRepo, sweeper)

	c := cron.New()
	c.AddFunc("@every 00h10m00s", refreshTokenJob.RefreshTokens)
	c.AddFunc("@every 06h00m00s", cleanupJob.CleanupStorage)
	c.Start()

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
