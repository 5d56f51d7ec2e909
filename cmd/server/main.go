package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"soulmedia/internal/api"
	"soulmedia/internal/backend"
	"soulmedia/internal/config"
	"soulmedia/internal/delivery"
	"soulmedia/internal/model"
	"soulmedia/internal/prompt"
	"soulmedia/internal/storage"
	"soulmedia/internal/tasks"
)

func main() {
	cfg, err := config.ParseConfig()
	if err != nil {
		logrus.WithError(err).Error("Failed to parse config")
		return
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	repo, err := model.InitRepository(&cfg)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise repository")
		return
	}
	if repo == nil {
		logrus.Error("a repository is required; set DBType")
		return
	}

	if err := model.SeedDefaultProfiles(context.Background(), repo); err != nil {
		logrus.WithError(err).Warn("failed to seed default style profiles")
	}

	store, err := storage.NewStorage(cfg)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise storage")
		return
	}

	cache := prompt.NewCache(repo, prompt.NewHashingEmbedder(), cfg.SimilarityThreshold)
	backends := backend.NewRegistry(cfg)
	engine := delivery.NewEngine(repo, cache, backends, store, delivery.Options{
		PublicBaseURL: cfg.StoragePublicBaseURL,
		GateTimeout:   time.Duration(cfg.GateTimeoutSeconds) * time.Second,
		LockTimeout:   time.Duration(cfg.LockTimeoutSeconds) * time.Second,
	})

	taskManager := tasks.NewManager(engine, tasks.Options{
		Concurrency:   int64(cfg.TaskConcurrency),
		Retention:     time.Duration(cfg.TaskRetentionMinutes) * time.Minute,
		SweepInterval: time.Duration(cfg.TaskSweepMinutes) * time.Minute,
	})
	defer taskManager.Close()

	httpHandler, err := api.NewHTTPHandler(cfg, repo, engine, taskManager)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise http handler")
		return
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(LoggingMiddleware())
	r.Use(CORSMiddleware())
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	apiGroup := r.Group("/api")
	apiGroup.Use(httpHandler.AuthMiddleware())

	media := apiGroup.Group("/media")
	media.POST("/variants", httpHandler.RequestVariant)
	media.POST("/location-variants", httpHandler.RequestLocationVariant)
	media.POST("/seen", httpHandler.MarkSeen)

	taskGroup := apiGroup.Group("/tasks")
	taskGroup.POST("", httpHandler.SubmitTask)
	taskGroup.GET("", httpHandler.ListTasks)
	taskGroup.GET("/:id", httpHandler.GetTask)
	taskGroup.POST("/:id/cancel", httpHandler.CancelTask)

	personas := apiGroup.Group("/personas")
	personas.PUT("/:id/style", httpHandler.UpsertStyleProfile)
	personas.GET("/:id/style", httpHandler.GetStyleProfile)

	if localProvider, ok := store.(storage.LocalBaseDirProvider); ok {
		publicPrefix := strings.TrimSpace(cfg.StoragePublicBaseURL)
		if publicPrefix == "" {
			publicPrefix = "/files"
		}
		if !strings.HasPrefix(publicPrefix, "http://") && !strings.HasPrefix(publicPrefix, "https://") {
			if !strings.HasPrefix(publicPrefix, "/") {
				publicPrefix = "/" + publicPrefix
			}
			r.Static(publicPrefix, localProvider.LocalBaseDir())
		}
	}

	serverHost := fmt.Sprintf("0.0.0.0:%s", cfg.HTTPPort)
	logger.WithField("host", serverHost).Info("server starting")
	httpServer := &http.Server{
		Addr:         serverHost,
		Handler:      r,
		ReadTimeout:  900 * time.Second,
		WriteTimeout: 900 * time.Second,
		IdleTimeout:  1200 * time.Second,
	}
	err = httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Error("server failed to start")
	}
}

// CORSMiddleware handles cross-origin requests.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, Idempotency-Key, X-Requested-With")
		c.Header("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// LoggingMiddleware logs one line per request.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		logrus.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"duration":  duration.String(),
			"size":      c.Writer.Size(),
			"client_ip": c.ClientIP(),
		}).Info("http_request")
	}
}
