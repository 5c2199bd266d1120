// Package handler exposes the auth operations over HTTP. It owns header
// parsing and status-code mapping; all semantics live in the service.
package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tokenvault/internal/auth/service"
	"tokenvault/internal/session/domain"
)

// Handler serves the /auth endpoints.
type Handler struct {
	svc *service.AuthService
}

// NewHandler returns an auth Handler over svc.
func NewHandler(svc *service.AuthService) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the auth routes on r.
func (h *Handler) Register(r gin.IRouter) {
	auth := r.Group("/auth")
	auth.POST("/login", h.login)
	auth.GET("/validate", h.validate)
	auth.POST("/refresh", h.refresh)
	auth.POST("/logout", h.logout)
}

type loginRequest struct {
	UserID string `json:"userId" binding:"required"`
}

type tokenPairResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}

	pair, err := h.svc.GenerateTokens(c.Request.Context(), req.UserID, requestMetadata(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create session"})
		return
	}
	c.JSON(http.StatusCreated, tokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	})
}

func (h *Handler) validate(c *gin.Context) {
	tok, ok := bearerToken(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or malformed authorization header"})
		return
	}

	status := h.svc.ValidateToken(c.Request.Context(), tok)
	c.JSON(http.StatusOK, gin.H{
		"userId":    status.UserID,
		"isValid":   status.IsValid,
		"expiresIn": status.ExpiresIn,
	})
}

func (h *Handler) refresh(c *gin.Context) {
	tok, ok := bearerToken(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or malformed authorization header"})
		return
	}

	pair, err := h.svc.Refresh(c.Request.Context(), tok, requestMetadata(c))
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": "invalid or expired refresh token"})
		return
	}
	c.JSON(http.StatusOK, tokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	})
}

func (h *Handler) logout(c *gin.Context) {
	tok, ok := bearerToken(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or malformed authorization header"})
		return
	}

	receipt, err := h.svc.Logout(c.Request.Context(), tok)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":    receipt.Message,
		"sessionId":  receipt.SessionID,
		"logoutTime": receipt.LogoutTime,
	})
}

// statusForError maps service sentinels to HTTP statuses. Anything unmapped
// is a storage failure that survived the retry policy.
func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidRefreshToken), errors.Is(err, service.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrNoActiveSession):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	scheme, tok, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(tok) == "" {
		return "", false
	}
	return strings.TrimSpace(tok), true
}

func requestMetadata(c *gin.Context) domain.Metadata {
	return domain.Metadata{
		DeviceInfo: c.GetHeader("User-Agent"),
		IPAddress:  c.ClientIP(),
	}
}
