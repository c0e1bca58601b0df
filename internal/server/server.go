package server

import (
	"context"
	"net/http"

	"campuscredits/internal/access"
	"campuscredits/internal/account"
	"campuscredits/internal/approval"
	"campuscredits/internal/auth"
	"campuscredits/internal/config"
	"campuscredits/internal/event"
	"campuscredits/internal/ledger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Handlers groups the HTTP handlers the router mounts.
type Handlers struct {
	Accounts *account.Handler
	Ledger   *ledger.Handler
	Entities *approval.Handler
	Events   *event.Handler
	Health   gin.HandlerFunc
	Metrics  gin.HandlerFunc
}

type Server struct {
	router *gin.Engine
	http   *http.Server
}

func New(cfg *config.Config, rdb *redis.Client, h Handlers) *Server {
	router := NewRouter(cfg, rdb, h)

	return &Server{
		router: router,
		http: &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}
}

func NewRouter(cfg *config.Config, rdb *redis.Client, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(RequestLoggingMiddleware())
	router.Use(MetricsMiddleware())
	router.Use(corsMiddleware())
	router.Use(RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst))

	router.GET("/health", h.Health)
	router.GET("/metrics", h.Metrics)

	public := router.Group("/auth")
	{
		public.POST("/register", h.Accounts.Register)
		public.POST("/login", h.Accounts.Login)
		public.POST("/refresh", h.Accounts.RefreshToken)
	}

	authMiddleware := auth.AuthMiddleware(cfg.JWTSecret)
	idempotency := IdempotencyMiddleware(rdb, cfg.IdempotencyTTL)

	protected := router.Group("/")
	protected.Use(authMiddleware, idempotency)
	{
		protected.GET("/me", h.Accounts.GetMe)

		protected.GET("/wallet/balance", h.Ledger.GetBalance)
		protected.GET("/wallet/transactions", h.Ledger.ListTransactions)
		protected.POST("/wallet/transfer", h.Ledger.Transfer)

		protected.POST("/entities", h.Entities.Submit)
		protected.POST("/entities/drafts", h.Entities.SaveDraft)
		protected.GET("/entities/mine", h.Entities.ListMine)
		protected.GET("/entities/:id", h.Entities.GetEntity)
		protected.POST("/entities/:id/submit", h.Entities.SubmitDraft)

		protected.GET("/events", h.Events.ListEvents)
		protected.GET("/events/:id/status", h.Events.GetStatus)
		protected.POST("/events/:id/register", h.Events.Register)
		protected.POST("/events/:id/cancel", h.Events.Cancel)
	}

	staff := router.Group("/admin")
	staff.Use(authMiddleware, access.RequireCapability(access.OpReview), idempotency)
	{
		staff.GET("/entities", h.Entities.ListAll)
		staff.POST("/entities/:id/review", h.Entities.Review)
		staff.POST("/events/:id/attendance", h.Events.MarkAttended)
		staff.POST("/accounts/:id/credits", h.Ledger.Award)
		staff.GET("/accounts/:id/ledger/verify", h.Ledger.Verify)
	}

	admin := router.Group("/admin/accounts")
	admin.Use(authMiddleware, access.RequireCapability(access.OpManageAccounts), idempotency)
	{
		admin.POST("/:id/role", h.Accounts.SetRole)
		admin.POST("/:id/deactivate", h.Accounts.Deactivate)
	}

	return router
}

func (s *Server) Start() error {
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, Idempotency-Key, X-Request-ID, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, X-Idempotency-Hit")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
