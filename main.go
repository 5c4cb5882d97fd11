package main

import (
	"log"

	"orchidaquiz/config"
	"orchidaquiz/handlers"
	"orchidaquiz/middleware"
	"orchidaquiz/models"
	"orchidaquiz/routes"
	"orchidaquiz/services"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database models
	err = db.AutoMigrate(
		&models.User{},
		&models.Quiz{},
		&models.Question{},
		&models.Option{},
		&models.QuizSession{},
		&models.Participant{},
		&models.Response{},
	)
	if err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize Redis
	redisClient := config.InitRedis(cfg)

	// Persistence and caches
	store := services.NewGormStore(db)
	quizCache := services.NewQuizCache(store, cfg.QuizCacheTTL)
	stateCache := services.NewStateCache(redisClient, cfg.SnapshotTTL)

	// Broadcast: in-process websocket hub plus Redis pub/sub fan-out
	hub := services.NewHub()
	publisher := services.FanoutPublisher{hub, services.NewRedisPublisher(redisClient)}

	// Session engine
	registry := services.NewRegistry(store, quizCache, services.RegistryConfig{
		Publisher:   publisher,
		Snapshots:   stateCache,
		AnswerGrace: cfg.AnswerGrace,
		PinAttempts: cfg.PinAttempts,
	})
	hub.BindRegistry(registry)
	go hub.Run()

	// Services and handlers
	authService := services.NewAuthService(db, cfg.JWTSecret)
	quizService := services.NewQuizService(db, quizCache)

	authHandler := handlers.NewAuthHandler(authService)
	quizHandler := handlers.NewQuizHandler(quizService)
	gameHandler := handlers.NewGameHandler(registry, stateCache)

	// Setup Gin router
	router := gin.Default()

	// Add CORS middleware
	router.Use(middleware.CORS())

	// Setup routes
	routes.SetupRoutes(router, authHandler, quizHandler, gameHandler, hub, registry, cfg.JWTSecret)

	// Start server
	log.Printf("Server starting on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
