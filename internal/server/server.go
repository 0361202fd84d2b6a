package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"kmbp.app/ratingbot/internal/config"
	"kmbp.app/ratingbot/internal/middleware"

	accessHttp "kmbp.app/ratingbot/internal/modules/access/delivery/http"
	accessService "kmbp.app/ratingbot/internal/modules/access/service"

	authHttp "kmbp.app/ratingbot/internal/modules/auth/delivery/http"
	authService "kmbp.app/ratingbot/internal/modules/auth/service"

	botHttp "kmbp.app/ratingbot/internal/modules/bot/delivery/http"

	ledgerHttp "kmbp.app/ratingbot/internal/modules/ledger/delivery/http"
	ledgerService "kmbp.app/ratingbot/internal/modules/ledger/service"

	projectHttp "kmbp.app/ratingbot/internal/modules/project/delivery/http"
	projectService "kmbp.app/ratingbot/internal/modules/project/service"
)

// Services are the already wired domain services exposed over HTTP.
// Webhook is nil when the bot polls for updates.
type Services struct {
	Projects projectService.ProjectService
	Ledger   ledgerService.LedgerService
	Access   accessService.AccessService
	Auth     authService.AuthService
	Webhook  *botHttp.WebhookHandler
}

type Server struct {
	engine *gin.Engine
	http   *http.Server
}

func NewServer(cfg *config.Config, svc Services) *Server {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	projectHandler := projectHttp.NewProjectHandler(svc.Projects)
	ledgerHandler := ledgerHttp.NewLedgerHandler(svc.Ledger)
	banHandler := accessHttp.NewBanHandler(svc.Access)
	authHandler := authHttp.NewAuthHandler(svc.Auth)

	router := gin.New()

	setupCORS(router, cfg.AllowedOrigins)

	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", cfg.WebhookPath},
	}))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if svc.Webhook != nil {
		router.POST(cfg.WebhookPath, svc.Webhook.Receive)
	}

	authMiddleware := middleware.NewAuthMiddleware(svc.Auth, svc.Access)

	api := router.Group("/api")

	// Public routes
	api.POST("/auth/login", authHandler.Login)

	projects := api.Group("/projects")
	{
		projects.GET("", projectHandler.GetProjects)
		projects.GET("/weekly-top", ledgerHandler.GetWeeklyTop)
		projects.GET("/:id", projectHandler.GetProject)
		projects.GET("/:id/history", ledgerHandler.GetHistory)
	}

	adminGroup := api.Group("/admin")
	adminGroup.Use(authMiddleware.RequireAuth(), authMiddleware.RequireAdmin())
	{
		adminGroup.GET("/bans", banHandler.GetBans)
		adminGroup.DELETE("/bans/:user_id", banHandler.Unban)
		adminGroup.GET("/projects/:id/stats", ledgerHandler.GetStats)
		adminGroup.GET("/projects/:id/verify", ledgerHandler.VerifyProject)
	}

	return &Server{
		engine: router,
		http: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until Shutdown is called.
func (s *Server) Run() error {
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func setupCORS(router *gin.Engine, allowedOrigins string) {
	var origins []string
	if allowedOrigins != "" {
		origins = strings.Split(allowedOrigins, ",")
	} else {
		origins = []string{"http://localhost:3000"}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
