package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/feedsync/app/cfg"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewServer(handler *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
		SkipPaths: []string{"/health", "/metrics"},
	}))

	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	setupRoutes(r, handler)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler) {
	r.GET("/health", handler.HealthCheck)
	r.GET("/stats", handler.GetStats)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.GET("/feeds", handler.ListFeeds)
		api.POST("/feeds", handler.CreateFeeds)
		api.POST("/feeds/sync", handler.SyncFeeds)
		api.GET("/feeds/:id", handler.GetFeed)
		api.PUT("/feeds/:id", handler.ReplaceFeed)
		api.DELETE("/feeds/:id", handler.DeleteFeed)
		api.POST("/feeds/:id/refresh", handler.RefreshFeed)

		api.GET("/posts", handler.ListPosts)
		api.PATCH("/entries/:id/read", handler.MarkEntryRead)
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":     "feedsync",
			"version":     cfg.GetVersion(),
			"description": "RSS/Atom feed ingestion and synchronization service",
			"endpoints": map[string]string{
				"feeds":   "/api/feeds",
				"feed":    "/api/feeds/<id>",
				"refresh": "/api/feeds/<id>/refresh (POST, ?async=true to queue)",
				"sync":    "/api/feeds/sync (POST)",
				"posts":   "/api/posts",
				"read":    "/api/entries/<id>/read (PATCH)",
				"health":  "/health",
				"stats":   "/stats",
				"metrics": "/metrics",
			},
		})
	})

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
