// Package health serves liveness/readiness for load balancers and CI.
package health

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Pinger checks that the backing store is reachable. *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves GET /healthz.
type Handler struct {
	pinger Pinger
}

// NewHandler returns a health Handler. pinger may be nil, in which case the
// check reports healthy on the process alone.
func NewHandler(pinger Pinger) *Handler {
	return &Handler{pinger: pinger}
}

// Register mounts the health route on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", h.check)
}

func (h *Handler) check(c *gin.Context) {
	if h.pinger != nil {
		if err := h.pinger.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
