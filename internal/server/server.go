package server

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"atelier-ai/internal/auth"
	"atelier-ai/internal/billing"
	"atelier-ai/internal/catalog"
	"atelier-ai/internal/generation"
	"atelier-ai/internal/history"
)

const identityKey = "atelier.identity"

type Options struct {
	Service  *generation.Service
	Gate     *billing.Gate
	History  *history.Store
	Catalog  *catalog.Registry
	Verifier *auth.Verifier
	Logger   *slog.Logger
	Debug    bool
}

type Server struct {
	service  *generation.Service
	gate     *billing.Gate
	history  *history.Store
	catalog  *catalog.Registry
	verifier *auth.Verifier
	logger   *slog.Logger
	router   *gin.Engine
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if !opts.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		service:  opts.Service,
		gate:     opts.Gate,
		history:  opts.History,
		catalog:  opts.Catalog,
		verifier: opts.Verifier,
		logger:   logger,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLog())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		MaxAge:           12 * time.Hour,
		AllowCredentials: false,
	}))

	router.GET("/healthz", s.handleHealth)
	router.GET("/facets", s.handleFacets)

	authed := router.Group("/", s.identify())
	authed.POST("/generate", s.handleGenerate)
	authed.GET("/generations", s.handleListGenerations)
	authed.DELETE("/generations/:id", s.handleDeleteGeneration)
	authed.GET("/check-service-access/:serviceKey", s.handleCheckServiceAccess)

	s.router = router
	return s
}

// Router exposes the handler for http.Server wiring and tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// identify resolves the caller. Absent credentials are anonymous; bad
// credentials are rejected here so handlers only ever see a clean identity.
func (s *Server) identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		header := c.GetHeader("Authorization")
		if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
			token = header[7:]
		}

		identity, err := s.verifier.Identify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

func (s *Server) identity(c *gin.Context) auth.Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(auth.Identity); ok {
			return id
		}
	}
	return auth.Identity{Anonymous: true}
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("http",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"dur_ms", time.Since(start).Milliseconds(),
		)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleFacets(c *gin.Context) {
	c.JSON(http.StatusOK, s.catalog.All())
}
