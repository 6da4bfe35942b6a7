package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter builds the gin engine with CORS and all routes.
func NewRouter(h *Handler, allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware(allowedOrigins))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/ws", h.Stream)

	api := r.Group("/api")
	{
		api.POST("/sessions", h.CreateSession)
		api.POST("/sessions/join", h.JoinSession)
		api.GET("/results", h.ListResults)

		session := api.Group("/sessions/:id")
		session.Use(AuthRequired(h.tokens))
		{
			session.GET("", h.GetSession)
			session.POST("/bots", h.AddBots)
			session.POST("/start", h.StartGame)
			session.POST("/actions", h.SubmitAction)
			session.POST("/resolve", h.ResolvePhase)
			session.POST("/leave", h.LeaveSession)
			session.GET("/presence", h.Presence)
		}
	}

	return r
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(allowedOrigins) == 0 {
		config.AllowAllOrigins = true
		return cors.New(config)
	}
	for _, o := range allowedOrigins {
		if o == "*" {
			config.AllowAllOrigins = true
			return cors.New(config)
		}
	}
	config.AllowOrigins = allowedOrigins
	config.AllowCredentials = true
	return cors.New(config)
}
