// Package api is the HTTP transport for discovery and tagging.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/yairfalse/autotag/internal/auth"
	"github.com/yairfalse/autotag/internal/tagging"
	"github.com/yairfalse/autotag/internal/telemetry"
	"github.com/yairfalse/autotag/pkg/resource"
)

// Discoverer builds the inventory of a delegated account for a principal.
type Discoverer interface {
	Discover(ctx context.Context, principal, accountID string) (resource.Inventory, error)
}

// Tagger applies a tagging pass for a principal.
type Tagger interface {
	Tag(ctx context.Context, principal, accountID string, requests resource.TagRequests) (*tagging.Result, error)
}

// Server holds the router and its collaborators.
type Server struct {
	discoverer Discoverer
	tagger     Tagger
	verifier   *auth.Verifier
	metrics    http.Handler
	validate   *validator.Validate
	logger     *telemetry.Logger
	router     *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics serves h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithLogger sets the logger.
func WithLogger(l *telemetry.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer builds the router.
func NewServer(d Discoverer, t Tagger, verifier *auth.Verifier, opts ...Option) *Server {
	s := &Server{
		discoverer: d,
		tagger:     t,
		verifier:   verifier,
		logger:     telemetry.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.validate = newValidator()
	s.router = s.routes()
	return s
}

var (
	validatorOnce  sync.Once
	sharedValidate *validator.Validate
)

// newValidator returns gin's validator with the custom rules registered, so
// binding tags and explicit checks share them. Registration happens once per
// process.
func newValidator() *validator.Validate {
	validatorOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			v = validator.New()
		}
		if err := registerRules(v); err != nil {
			panic(fmt.Sprintf("api: register validators: %v", err))
		}
		sharedValidate = v
	})
	return sharedValidate
}

func registerRules(v *validator.Validate) error {
	return v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return resource.Category(fl.Field().String()).Valid()
	})
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics))
	}

	v1 := r.Group("/v1", s.verifier.RequireAuth())
	v1.GET("/accounts/:accountId/resources", s.handleDiscover)
	v1.POST("/accounts/:accountId/tags", s.handleTag)

	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.WithContext(c.Request.Context()).Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	}
}

// HTTPServer returns an http.Server for the router bound to addr.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
