package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/RamyaDR2005/Placement-PROJECT/internal/attendance"
	"github.com/RamyaDR2005/Placement-PROJECT/internal/audit"
	"github.com/RamyaDR2005/Placement-PROJECT/internal/auth"
	"github.com/RamyaDR2005/Placement-PROJECT/internal/config"
	"github.com/RamyaDR2005/Placement-PROJECT/internal/eligibility"
	"github.com/RamyaDR2005/Placement-PROJECT/internal/httpapi"
	"github.com/RamyaDR2005/Placement-PROJECT/internal/httpmiddleware"
	"github.com/RamyaDR2005/Placement-PROJECT/internal/qrtoken"
	"github.com/RamyaDR2005/Placement-PROJECT/internal/queue"
	"github.com/RamyaDR2005/Placement-PROJECT/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Printf("warning: db not reachable: %v", err)
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		// The memory backend is process-local: no worker can see it, so
		// the durable half of the audit trail is the zap log alone. Drain
		// it here so publishers never back up against a full buffer.
		mem := queue.NewInMemory(256)
		drainCtx, stopDrain := context.WithCancel(context.Background())
		defer stopDrain()
		msgs, err := mem.Consume(drainCtx)
		if err != nil {
			return err
		}
		go func() {
			for range msgs {
			}
		}()
		log.Println("queue backend memory: audit events stay in this process (log sink only)")
		q = mem
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "placement:audit")
	}

	zlog, err := newZap(cfg.Env)
	if err != nil {
		return err
	}
	defer func() { _ = zlog.Sync() }()

	auditLog := audit.NewRecorder(zlog, q)
	tokens := qrtoken.NewIssuer(cfg.QRSigningKey, cfg.JWTIssuer, cfg.QRTokenTTL)
	elig := eligibility.New(cfg.EligibilityURL, cfg.EligibilitySkip)
	if cfg.EligibilitySkip {
		log.Println("eligibility checks skipped (ELIGIBILITY_SKIP=true)")
	}

	// Dev mode without a database runs against the in-memory store so
	// the scan flow can be exercised end to end.
	var st attendance.Store
	if db != nil {
		st = attendance.NewRepository(db.Client)
	} else {
		log.Println("using in-memory attendance store")
		st = attendance.NewMemoryStore()
	}

	svc := attendance.NewService(st, tokens, elig, auditLog, cfg.LegacyQR)
	h := httpapi.New(svc)

	r := gin.New()

	r.Use(gin.Recovery())

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))

	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Healthy(c.Request.Context())
		status := http.StatusOK
		// In-memory dev mode has no database to gate readiness on.
		if !redisHealthy || (db != nil && !dbHealthy) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	// Stand-in for the portal's identity provider: exchanges the shared
	// bootstrap secret for a role-scoped session token.
	r.POST("/v1/auth/token", func(c *gin.Context) {
		var req struct {
			Subject string `json:"subject" binding:"required"`
			Role    string `json:"role" binding:"required"`
			Secret  string `json:"secret" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Secret != cfg.BootstrapSecret {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "bad bootstrap secret"})
			return
		}
		if req.Role != auth.RoleStudent && req.Role != auth.RoleOperator {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
			return
		}

		token, exp, err := auth.Issue(req.Subject, req.Role, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.SessionTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"access_token": token,
			"expires_at":   exp.Unix(),
		})
	})

	studentGroup := r.Group("/v1", auth.RequireRole(cfg.JWTSigningKey, cfg.JWTIssuer, auth.RoleStudent))
	studentGroup.GET("/jobs/:jobID/rounds/status", h.RoundStatus)

	operatorGroup := r.Group("/v1/attendance", auth.RequireRole(cfg.JWTSigningKey, cfg.JWTIssuer, auth.RoleOperator))
	operatorGroup.POST("/scan", h.Scan)
	operatorGroup.POST("/confirm", h.Confirm)
	operatorGroup.POST("/outcome", h.Outcome)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

func newZap(env string) (*zap.Logger, error) {
	if env == "production" || env == "prod" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
