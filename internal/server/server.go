package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"teamsync/internal/auth"
	"teamsync/internal/cache"
	"teamsync/internal/config"
	"teamsync/internal/events"
	"teamsync/internal/handler"
	"teamsync/internal/middleware"
	"teamsync/internal/repository"
	"teamsync/internal/suggest"
	"teamsync/internal/workflow"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/time/rate"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Server struct {
	Engine *gin.Engine
	DB     *gorm.DB
	Config *config.Config
}

func Init(cfg *config.Config) (*Server, error) {
	// Setup GORM
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("❌ failed to connect to DB: %w", err)
	}
	log.Println("✅ Connected to database")

	if err := runMigrations(cfg); err != nil {
		return nil, fmt.Errorf("❌ failed to run migrations: %w", err)
	}
	log.Println("✅ Migrations applied")

	// Optional Redis progress cache
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		log.Printf("✅ Progress cache enabled (%s)", cfg.RedisAddr)
	} else {
		log.Println("⚠️  REDIS_ADDR not set, progress cache disabled")
	}
	progressCache := cache.NewProgressCache(redisClient)

	// Optional suggestion advisor
	var advisor suggest.Advisor
	if cfg.OpenAIKey != "" {
		llmAdvisor, err := suggest.NewLLMAdvisor(cfg.OpenAIKey, cfg.OpenAIModel)
		if err != nil {
			return nil, fmt.Errorf("❌ failed to init suggestion advisor: %w", err)
		}
		advisor = llmAdvisor
		log.Println("✅ Suggestion advisor enabled")
	} else {
		log.Println("⚠️  OPENAI_API_KEY not set, suggestion advisor disabled")
	}

	// Setup Gin
	r := gin.Default()
	r.Use(cors.Default())

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)

	// Core services
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTExpiryHours)
	wf := workflow.New(db)
	hub := events.NewHub()
	publisher := handler.NewSnapshotPublisher(hub, projectRepo, taskRepo, feedbackRepo, progressCache)

	// Initialize handlers
	userHandler := handler.NewUserHandler(userRepo, tokens)
	projectHandler := handler.NewProjectHandler(projectRepo, taskRepo, feedbackRepo, userRepo, wf, publisher, progressCache)
	taskHandler := handler.NewTaskHandler(taskRepo, projectRepo, publisher)
	feedbackHandler := handler.NewFeedbackHandler(wf, publisher)
	suggestionHandler := handler.NewSuggestionHandler(advisor)
	eventsHandler := handler.NewEventsHandler(hub, projectRepo, publisher)

	// Public routes
	public := r.Group("/")
	public.Use(middleware.RateLimiter(rate.Limit(5), 10))
	{
		public.POST("/register", userHandler.Register)
		public.POST("/login", userHandler.Login)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Protected routes - require authentication
	authorized := r.Group("/")
	authorized.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))
	{
		// Profile and user directory
		authorized.GET("/me", userHandler.Me)
		authorized.PUT("/me", userHandler.UpdateMe)
		authorized.GET("/users", userHandler.GetAll)

		// Project routes
		authorized.POST("/projects", projectHandler.Create)
		authorized.GET("/projects", projectHandler.GetAll)
		authorized.GET("/projects/:id", projectHandler.GetByID)
		authorized.PUT("/projects/:id", projectHandler.Update)
		authorized.DELETE("/projects/:id", projectHandler.Delete)
		authorized.GET("/projects/:id/progress", projectHandler.GetProgress)

		// Completion feedback
		authorized.POST("/projects/:id/feedback", feedbackHandler.Submit)
		authorized.GET("/projects/:id/feedback", projectHandler.GetFeedback)

		// Realtime snapshots
		authorized.GET("/projects/:id/events", eventsHandler.Stream)

		// Task routes
		authorized.POST("/tasks", taskHandler.Create)
		authorized.GET("/tasks/:id", taskHandler.GetByID)
		authorized.PUT("/tasks/:id", taskHandler.Update)
		authorized.DELETE("/tasks/:id", taskHandler.Delete)
		authorized.POST("/tasks/:id/complete", taskHandler.SetCompleted)

		// Writing suggestions
		authorized.POST("/suggestions", suggestionHandler.Analyze)
	}

	return &Server{
		Engine: r,
		DB:     db,
		Config: cfg,
	}, nil
}

func runMigrations(cfg *config.Config) error {
	url := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName,
	)

	m, err := migrate.New("file://"+cfg.MigrationsPath, url)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (s *Server) Run() {
	srv := &http.Server{
		Addr:    ":" + s.Config.ServerPort,
		Handler: s.Engine,
	}

	go func() {
		log.Printf("🚀 Server running on port %s\n", s.Config.ServerPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Failed to listen: %s\n", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %s", err)
	}

	log.Println("✅ Server exited properly")
}
