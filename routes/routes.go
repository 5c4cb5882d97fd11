package routes

import (
	"log"
	"net/http"
	"strings"

	"orchidaquiz/handlers"
	"orchidaquiz/middleware"
	"orchidaquiz/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

func SetupRoutes(
	router *gin.Engine,
	authHandler *handlers.AuthHandler,
	quizHandler *handlers.QuizHandler,
	gameHandler *handlers.GameHandler,
	hub *services.Hub,
	registry *services.Registry,
	jwtSecret string,
) {
	// API routes
	api := router.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
		}

		// Protected routes
		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware(jwtSecret))
		{
			// User profile
			protected.GET("/auth/profile", authHandler.GetProfile)

			// Quiz routes
			quizzes := protected.Group("/quizzes")
			{
				quizzes.GET("", quizHandler.GetUserQuizzes)
				quizzes.POST("", quizHandler.CreateQuiz)
				quizzes.GET("/:id", quizHandler.GetQuizByID)
				quizzes.PUT("/:id", quizHandler.UpdateQuiz)
				quizzes.DELETE("/:id", quizHandler.DeleteQuiz)
			}

			// Host-only session control
			sessions := protected.Group("/sessions")
			{
				sessions.POST("", gameHandler.CreateSession)
				sessions.POST("/:pin/command", gameHandler.Command)
			}
		}

		// Public session routes
		sessions := api.Group("/sessions")
		{
			sessions.GET("/:pin", gameHandler.GetStatus)
			sessions.POST("/:pin/join", gameHandler.Join)
			sessions.POST("/:pin/answer", gameHandler.SubmitAnswer)
			sessions.GET("/:pin/leaderboard", gameHandler.GetLeaderboard)
			sessions.GET("/:pin/participants", gameHandler.GetParticipants)
		}
	}

	// WebSocket endpoint for real-time session events. Participants
	// connect with their participant id; the host connects with a token.
	router.GET("/ws/:pin", func(c *gin.Context) {
		pin := strings.ToLower(c.Param("pin"))

		session, err := registry.LookupByPIN(pin)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}

		var hostIdentity *services.Identity
		participantID := c.Query("participant_id")
		if token := c.Query("token"); token != "" {
			claims, err := services.ParseToken(token, jwtSecret)
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
				return
			}
			hostIdentity = &services.Identity{UserID: claims.UserID, Role: claims.Role}
		} else if !participantInSession(session, participantID) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Participant not found in session"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed for session %s: %v", pin, err)
			return
		}

		hub.RegisterClient(conn, pin, participantID, hostIdentity)
	})

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

func participantInSession(session *services.Session, participantID string) bool {
	if participantID == "" {
		return false
	}
	for _, p := range session.Participants() {
		if p.ID == participantID {
			return true
		}
	}
	return false
}
