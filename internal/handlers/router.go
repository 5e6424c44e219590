package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/PG-9-9/Musical-Video-Generator/internal/database"
	"github.com/PG-9-9/Musical-Video-Generator/internal/services"
)

// NewRouter wires every HTTP route onto a gin engine
func NewRouter(repo *database.JobRepository, broadcaster *services.ProgressBroadcaster) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	// CORS middleware - MUST be first route-level handler
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Add("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Add("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Add("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Add("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}

		c.Next()
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "musical-video-generator",
		})
	})

	jobHandler := NewJobHandler(repo, broadcaster)
	progressHandler := NewProgressHandler(broadcaster)

	v1 := router.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			jobs.GET("", jobHandler.GetAll)
			jobs.POST("", jobHandler.Create)
			jobs.GET("/stats", jobHandler.Stats)
			jobs.GET("/:id", jobHandler.GetByID)
			jobs.GET("/:id/events", jobHandler.GetEvents)
		}

		progress := v1.Group("/progress")
		{
			progress.GET("/stream", progressHandler.StreamProgress)
			progress.GET("/stream/:id", progressHandler.StreamJobProgress)
			progress.GET("/stats", progressHandler.GetStats)
		}
	}

	return router
}
