// Package handler exposes the session store over HTTP for trusted internal
// callers: direct session creation and per-user listing.
package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"tokenvault/internal/session/domain"
	"tokenvault/internal/session/store"
)

// Handler serves the /sessions endpoints.
type Handler struct {
	sessions   *store.Store
	defaultTTL time.Duration
}

// NewHandler returns a session Handler. defaultTTL applies when a create
// request carries no explicit expiry.
func NewHandler(sessions *store.Store, defaultTTL time.Duration) *Handler {
	return &Handler{sessions: sessions, defaultTTL: defaultTTL}
}

// Register mounts the session routes on r.
func (h *Handler) Register(r gin.IRouter) {
	r.POST("/sessions", h.create)
	r.GET("/sessions/:userId", h.listByUser)
}

type createRequest struct {
	UserID       string     `json:"userId" binding:"required"`
	RefreshToken string     `json:"refreshToken" binding:"required"`
	ExpiresAt    *time.Time `json:"expiresAt"`
	DeviceInfo   string     `json:"deviceInfo"`
	IPAddress    string     `json:"ipAddress"`
}

// sessionResponse is the wire shape of a session. The refresh token hash
// never leaves the service.
type sessionResponse struct {
	ID            string     `json:"id"`
	UserID        string     `json:"userId"`
	ExpiresAt     time.Time  `json:"expiresAt"`
	IsValid       bool       `json:"isValid"`
	InvalidatedAt *time.Time `json:"invalidatedAt,omitempty"`
	DeviceInfo    string     `json:"deviceInfo,omitempty"`
	IPAddress     string     `json:"ipAddress,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

func toResponse(s *domain.Session) sessionResponse {
	return sessionResponse{
		ID:            s.ID,
		UserID:        s.UserID,
		ExpiresAt:     s.ExpiresAt,
		IsValid:       s.Valid,
		InvalidatedAt: s.InvalidatedAt,
		DeviceInfo:    s.DeviceInfo,
		IPAddress:     s.IPAddress,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId and refreshToken are required"})
		return
	}
	expiresAt := time.Now().UTC().Add(h.defaultTTL)
	if req.ExpiresAt != nil {
		expiresAt = *req.ExpiresAt
	}
	if !expiresAt.After(time.Now()) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expiresAt must be in the future"})
		return
	}

	sess, err := h.sessions.Create(c.Request.Context(), req.UserID, req.RefreshToken, expiresAt, domain.Metadata{
		DeviceInfo: req.DeviceInfo,
		IPAddress:  req.IPAddress,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create session"})
		return
	}
	c.JSON(http.StatusCreated, toResponse(sess))
}

func (h *Handler) listByUser(c *gin.Context) {
	userID := c.Param("userId")

	var valid *bool
	if raw := c.Query("isValid"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "isValid must be a boolean"})
			return
		}
		valid = &v
	}

	sessions, err := h.sessions.ListForUser(c.Request.Context(), userID, valid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list sessions"})
		return
	}
	out := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toResponse(s))
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}
