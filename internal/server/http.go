// Package server assembles the HTTP router: middleware plus every handler
// group mounted in one place.
package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	authhandler "tokenvault/internal/auth/handler"
	"tokenvault/internal/health"
	sessionhandler "tokenvault/internal/session/handler"
)

// Deps holds everything the router mounts.
type Deps struct {
	Log      *zap.Logger
	Auth     *authhandler.Handler
	Sessions *sessionhandler.Handler
	Health   *health.Handler
}

// NewRouter returns the assembled gin engine with logging and recovery
// middleware and all routes registered.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if d.Log != nil {
		r.Use(RequestLogger(d.Log))
	}

	if d.Health != nil {
		d.Health.Register(r)
	}
	if d.Auth != nil {
		d.Auth.Register(r)
	}
	if d.Sessions != nil {
		d.Sessions.Register(r)
	}
	return r
}

// RequestLogger logs one structured line per request after it completes.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
