package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/frotaworks/fleet_backend/config"
	"bitbucket.org/frotaworks/fleet_backend/fleet"
	"bitbucket.org/frotaworks/fleet_backend/importer"
	"bitbucket.org/frotaworks/fleet_backend/meterocr"
	"bitbucket.org/frotaworks/fleet_backend/models"
	"bitbucket.org/frotaworks/fleet_backend/sheetsync"
	"bitbucket.org/frotaworks/fleet_backend/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

func main() {
	port := os.Getenv("FLEET_SYNC_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	r := gin.New()
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization", "x-user")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true

	r.Use(cors.New(corsConfig))
	r.Use(func(c *gin.Context) {
		if c.GetHeader("token") == "" {
			auth := strings.TrimSpace(c.GetHeader("Authorization"))
			if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				token := strings.TrimSpace(auth[7:])
				if token != "" {
					c.Request.Header.Set("token", token)
				}
			}
		}
		c.Next()
	})
	r.Use(apiTokenMiddleware())
	r.Use(requestLogger(logger))
	r.Use(gin.Recovery())

	// Sheet sync surface.
	r.POST("/api/sheet-sync/runs", sheetsync.TriggerSyncHandler())
	r.GET("/api/sheet-sync/runs", sheetsync.SyncHistoryHandler())
	r.GET("/api/sheet-sync/runs/:id", sheetsync.SyncRunDetailHandler())

	// Delete/edit propagation workflow.
	r.POST("/api/sync-requests", sheetsync.CreateSyncRequestHandler())
	r.GET("/api/sync-requests", sheetsync.ListSyncRequestsHandler())
	r.POST("/api/sync-requests/:id/approve", sheetsync.ApproveSyncRequestHandler())
	r.POST("/api/sync-requests/:id/reject", sheetsync.RejectSyncRequestHandler())

	// Fleet records.
	r.GET("/api/vehicles", fleet.ListVehiclesHandler())
	r.POST("/api/fuel-records", fleet.CreateFuelRecordHandler())
	r.GET("/api/fuel-records", fleet.ListFuelRecordsHandler())
	r.POST("/api/meter-readings", fleet.CreateMeterReadingHandler())
	r.GET("/api/meter-readings", fleet.ListMeterReadingsHandler())

	// Secondary-source ingestion and meter recognition.
	r.POST("/api/fuel-records/import", importer.ImportFuelHandler())
	r.POST("/api/meter-readings/recognize", meterocr.RecognizeHandler())

	// Pub/Sub push endpoint for async sync runs.
	r.POST("/pubsub/sheet-sync", sheetsync.PubSubPushHandler())

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()

	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	select {
	case <-sigCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	case err := <-serverErrCh:
		if err != nil && err != http.ErrServerClosed {
			logger.WithFields(logrus.Fields{"field": "server"}).Error(err)
		}
	}
}

// apiTokenMiddleware gates the API behind a shared token when FLEET_API_TOKEN
// is configured. The pubsub push endpoint stays open; Pub/Sub authenticates
// at the infrastructure level.
func apiTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		expected := strings.TrimSpace(os.Getenv("FLEET_API_TOKEN"))
		if expected == "" || strings.HasPrefix(c.Request.URL.Path, "/pubsub/") {
			c.Next()
			return
		}
		if c.GetHeader("token") != expected {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if user := c.GetHeader("x-user"); user != "" {
			c.Request = c.Request.WithContext(utils.SetUserNameInContext(c.Request.Context(), user))
		}
		c.Next()
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		logger.WithFields(logrus.Fields{
			"status":         c.Writer.Status(),
			"method":         c.Request.Method,
			"path":           c.Request.URL.Path,
			"latency":        latency.String(),
			"correlation_id": cid,
		}).Info("request")
	}
}
