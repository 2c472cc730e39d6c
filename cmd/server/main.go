package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/acta-labs/acta/cmd/server/internal/ai"
	"github.com/acta-labs/acta/cmd/server/internal/api"
	"github.com/acta-labs/acta/cmd/server/internal/audit"
	"github.com/acta-labs/acta/cmd/server/internal/config"
	"github.com/acta-labs/acta/cmd/server/internal/idp"
	"github.com/acta-labs/acta/cmd/server/internal/idp/oidc"
	"github.com/acta-labs/acta/cmd/server/internal/middleware"
	"github.com/acta-labs/acta/cmd/server/internal/search"
	"github.com/acta-labs/acta/cmd/server/internal/session"
	"github.com/acta-labs/acta/cmd/server/internal/store"
	"github.com/acta-labs/acta/cmd/server/internal/users"
	"github.com/acta-labs/acta/pkg/logger"
)

// generateRandomPassword generates a cryptographically secure random password
func generateRandomPassword(length int) string {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		panic(fmt.Sprintf("failed to generate random password: %v", err))
	}
	return base64.URLEncoding.EncodeToString(bytes)[:length]
}

func main() {
	logInstance, err := logger.Init(logger.Config{
		Level:       os.Getenv("LOG_LEVEL"),
		Environment: os.Getenv("ENV"),
		WithSource:  !strings.EqualFold(os.Getenv("ENV"), "production"),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	appLogger := logInstance.With("component", "web-server")

	cfg, err := config.LoadConfig()
	if err != nil {
		appLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := config.ValidateConfig(cfg); err != nil {
		appLogger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	appLogger.Info("configuration loaded", "env", cfg.Server.Env, "port", cfg.Server.Port)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Persistence
	meetingStore, err := store.NewFileStore(cfg.Data.DataDir)
	if err != nil {
		appLogger.Error("store init failed", "error", err)
		os.Exit(1)
	}
	blobs, err := store.NewBlobStore(cfg.Data.RecordingsDir)
	if err != nil {
		appLogger.Error("blob store init failed", "error", err)
		os.Exit(1)
	}
	auditLog, err := audit.NewFileLogger(cfg.Data.AuditLogsDir)
	if err != nil {
		appLogger.Error("audit logger init failed", "error", err)
		os.Exit(1)
	}
	defer auditLog.Close()

	// Accounts
	userManager, err := users.NewManager(cfg.Data.UsersDir, []byte(cfg.Security.JWTSecret))
	if err != nil {
		appLogger.Error("user manager init failed", "error", err)
		os.Exit(1)
	}
	adminPassword := cfg.Security.AdminDefaultPassword
	if adminPassword == "" {
		adminPassword = generateRandomPassword(16)
		appLogger.Warn("generated random admin password", "password", adminPassword)
	}
	if err := userManager.EnsureDefaultAdmin(adminPassword); err != nil {
		appLogger.Error("default admin init failed", "error", err)
		os.Exit(1)
	}

	// AI gateway: real providers when keys are configured, mock otherwise
	gateway := buildGateway(cfg, appLogger)

	// Meeting session, resuming any meeting left in progress
	sess := session.New(meetingStore, gateway, auditLog, logInstance.With("component", "session"))
	if resumed, err := sess.Resume(context.Background()); err != nil {
		appLogger.Error("session resume failed", "error", err)
		os.Exit(1)
	} else if resumed != nil {
		appLogger.Info("resumed meeting", "meeting_id", resumed.ID, "title", resumed.Title)
	}

	searcher := search.New(meetingStore)

	// Optional OIDC
	var oidcAuth *oidc.Authenticator
	if cfg.OIDC.Enabled {
		oidcAuth, err = oidc.NewAuthenticator(context.Background(), &idp.OIDCSettings{
			IssuerURL:     cfg.OIDC.IssuerURL,
			ClientID:      cfg.OIDC.ClientID,
			ClientSecret:  cfg.OIDC.ClientSecret,
			RedirectURI:   cfg.OIDC.RedirectURI,
			Scopes:        cfg.OIDC.Scopes,
			UsernameClaim: cfg.OIDC.UsernameClaim,
		})
		if err != nil {
			appLogger.Error("OIDC init failed", "error", err)
			os.Exit(1)
		}
		appLogger.Info("OIDC enabled", "issuer", cfg.OIDC.IssuerURL)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(corsMiddleware(cfg.Security.CORSAllowedOrigins))

	startTime := time.Now()
	r.GET("/health", healthCheckHandler(cfg, startTime))
	r.GET("/readiness", readinessCheckHandler(cfg))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	setupAuthMiddleware(r, userManager, logInstance.With("component", "auth-middleware"))

	v1 := r.Group("/api/v1")
	{
		v1.POST("/login", api.HandleLogin(userManager, auditLog))
		if oidcAuth != nil {
			v1.GET("/auth/oidc/url", api.HandleOIDCAuthURL(oidcAuth))
			v1.POST("/auth/oidc/callback", api.HandleOIDCCallback(oidcAuth, userManager, auditLog))
		}

		v1.GET("/users", api.HandleListUsers(userManager))
		v1.POST("/users", api.HandleCreateUser(userManager, auditLog))
		v1.POST("/users/:username/password", api.HandleChangePassword(userManager, auditLog))

		v1.GET("/meetings", api.HandleListMeetings(meetingStore))
		v1.POST("/meetings", api.HandleStartMeeting(sess))
		v1.GET("/meetings/active", api.HandleActiveMeeting(sess))
		v1.POST("/meetings/active/end", api.HandleEndMeeting(sess))
		v1.POST("/meetings/active/messages", api.HandleAddMessage(sess))
		v1.GET("/meetings/active/messages", api.HandleListMessages(sess))
		v1.POST("/meetings/active/tasks", api.HandleAddTask(sess))

		v1.GET("/tasks", api.HandleListTasks(meetingStore))
		v1.PUT("/tasks/:id/status", api.HandleUpdateTaskStatus(sess))

		v1.POST("/audio/transcriptions", api.HandleTranscribeAudio(gateway, blobs))
		v1.POST("/audio/speech", api.HandleSpeech(gateway))

		v1.GET("/search", api.HandleSearch(searcher))
	}

	srv := &http.Server{
		Addr:    cfg.GetServerAddr(),
		Handler: r,
	}

	go func() {
		appLogger.Info("server starting", "addr", srv.Addr, "env", cfg.Server.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-quit
	appLogger.Info("shutdown signal received, shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	appLogger.Info("server shutdown complete")
}

// buildGateway selects mock or real providers based on configuration.
func buildGateway(cfg *config.Config, log *slog.Logger) ai.Gateway {
	if cfg.AI.Mock || (cfg.AI.OpenAIKey == "" && !cfg.IsProduction()) {
		log.Warn("AI gateway running in mock mode")
		return ai.NewMockGateway()
	}
	return ai.NewService(
		ai.NewOpenAIClient(cfg.AI.OpenAIKey, cfg.AI.OpenAIBaseURL, cfg.AI.OpenAIModel),
		ai.NewGeminiClient(cfg.AI.GeminiKey, cfg.AI.GeminiBaseURL),
		ai.NewElevenLabsClient(cfg.AI.ElevenKey, cfg.AI.ElevenBaseURL, cfg.AI.DefaultVoice),
		log.With("component", "ai-gateway"),
	)
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowed := map[string]bool{}
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && allowed[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func setupAuthMiddleware(r *gin.Engine, userManager *users.Manager, authLogger *slog.Logger) {
	// Route scope mapping
	routeScopes := map[string][]string{
		"GET /api/v1/users":                     {users.ScopeUserManage},
		"POST /api/v1/users":                    {users.ScopeUserManage},
		"POST /api/v1/users/:username/password": {}, // any authenticated user; ownership checked below

		"GET /api/v1/meetings":                  {users.ScopeMeetingRead},
		"POST /api/v1/meetings":                 {users.ScopeMeetingWrite},
		"GET /api/v1/meetings/active":           {users.ScopeMeetingRead},
		"POST /api/v1/meetings/active/end":      {users.ScopeMeetingWrite},
		"GET /api/v1/meetings/active/messages":  {users.ScopeMeetingRead},
		"POST /api/v1/meetings/active/messages": {users.ScopeMeetingWrite},
		"POST /api/v1/meetings/active/tasks":    {users.ScopeTaskWrite},

		"GET /api/v1/tasks":            {users.ScopeTaskRead},
		"PUT /api/v1/tasks/:id/status": {users.ScopeTaskWrite},

		"POST /api/v1/audio/transcriptions": {users.ScopeMeetingWrite},
		"POST /api/v1/audio/speech":         {users.ScopeMeetingRead},

		"GET /api/v1/search": {users.ScopeMeetingRead},
	}

	paramPattern := regexp.MustCompile(`:[^/]+`)
	matchRouteKey := func(method, path string) (scopes []string, ok bool) {
		for k, sc := range routeScopes {
			parts := strings.SplitN(k, " ", 2)
			if len(parts) != 2 || parts[0] != method {
				continue
			}
			pattern := parts[1]
			if pattern == path {
				return sc, true
			}
			reg := "^" + paramPattern.ReplaceAllString(pattern, `[^/]+`) + "$"
			if matched, _ := regexp.MatchString(reg, path); matched {
				return sc, true
			}
		}
		return nil, false
	}

	public := map[string]bool{
		"/api/v1/login":              true,
		"/api/v1/auth/oidc/url":      true,
		"/api/v1/auth/oidc/callback": true,
	}

	r.Use(func(c *gin.Context) {
		path := c.Request.URL.Path
		if public[path] || c.Request.Method == http.MethodOptions || !strings.HasPrefix(path, "/api/") {
			c.Next()
			return
		}

		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			authLogger.Warn("missing bearer token", "method", c.Request.Method, "path", path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := userManager.ParseToken(strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			authLogger.Warn("invalid token", "path", path, "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("user", claims.Username)
		c.Set("scopes", claims.Scopes)

		scopes, matched := matchRouteKey(c.Request.Method, path)
		if !matched {
			c.Next()
			return
		}

		// password changes: self-service unless the caller manages users
		if strings.HasSuffix(path, "/password") && c.Param("username") != claims.Username &&
			!users.HasScope(claims.Scopes, users.ScopeUserManage) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			return
		}

		for _, required := range scopes {
			if !users.HasScope(claims.Scopes, required) {
				authLogger.Warn("insufficient permissions",
					"user", claims.Username,
					"path", path,
					"required_scope", required,
				)
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
				return
			}
		}
		c.Next()
	})
}

// HealthCheckResponse is the liveness probe payload.
type HealthCheckResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Uptime    string    `json:"uptime"`
	Timestamp time.Time `json:"timestamp"`
	Env       string    `json:"env"`
}

// ReadinessCheckResponse is the readiness probe payload.
type ReadinessCheckResponse struct {
	Ready     bool             `json:"ready"`
	Checks    []ReadinessCheck `json:"checks"`
	Timestamp time.Time        `json:"timestamp"`
}

// ReadinessCheck is a single readiness check result.
type ReadinessCheck struct {
	Name   string `json:"name"`
	Status string `json:"status"` // "ok" or "fail"
	Error  string `json:"error,omitempty"`
}

func healthCheckHandler(cfg *config.Config, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, HealthCheckResponse{
			Status:    "healthy",
			Service:   "acta-server",
			Version:   "1.0.0",
			Uptime:    time.Since(startTime).String(),
			Timestamp: time.Now(),
			Env:       cfg.Server.Env,
		})
	}
}

func readinessCheckHandler(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := []ReadinessCheck{}
		allReady := true

		for name, dir := range map[string]string{
			"data_dir":       cfg.Data.DataDir,
			"users_dir":      cfg.Data.UsersDir,
			"recordings_dir": cfg.Data.RecordingsDir,
			"audit_logs_dir": cfg.Data.AuditLogsDir,
		} {
			check := ReadinessCheck{Name: name, Status: "ok"}
			if !dirAccessible(dir) {
				check.Status = "fail"
				check.Error = "directory not accessible"
				allReady = false
			}
			checks = append(checks, check)
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, ReadinessCheckResponse{
			Ready:     allReady,
			Checks:    checks,
			Timestamp: time.Now(),
		})
	}
}

func dirAccessible(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}
