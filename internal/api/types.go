package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "aquant/internal/errors"
	"aquant/internal/market"
	"aquant/internal/provider"
	"aquant/internal/signal"
)

// Response represents a standard API response envelope
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Password string `json:"password" binding:"required,min=8"`
	Email    string `json:"email" binding:"required,email"`
}

// RefreshRequest represents a token refresh request
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// AuthResponse represents an authentication response
type AuthResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
}

// BatchRequest represents a batch analysis request
type BatchRequest struct {
	Codes []string `json:"codes" binding:"required,min=1,max=20"`
	Years int      `json:"years"`
}

// BatchSubmitted is returned when a batch job is accepted
type BatchSubmitted struct {
	JobID string `json:"job_id"`
}

// StrategyDescriptor describes one of the six fixed strategies
type StrategyDescriptor struct {
	Key         signal.Strategy `json:"key"`
	Description string          `json:"description"`
	Weight      float64         `json:"weight,omitempty"`
}

// SearchResult is one instrument match
type SearchResult struct {
	market.StockInfo
	Source string `json:"source"` // db or provider
}

// respondOK writes a success envelope
func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

// respondError maps an error onto the envelope, using AppError status
// codes where available.
func respondError(c *gin.Context, status int, err error) {
	if appErr := apperrors.GetAppError(err); appErr != nil {
		c.JSON(appErr.HTTPStatus(), Response{Success: false, Error: appErr.Message})
		return
	}
	if status == 0 {
		status = http.StatusInternalServerError
	}
	var provErr *provider.Error
	if errors.As(err, &provErr) {
		status = http.StatusBadGateway
		if errors.Is(err, provider.ErrNotFound) {
			status = http.StatusNotFound
		}
	}
	if errors.Is(err, signal.ErrUnknownStrategy) ||
		errors.Is(err, market.ErrBadOrder) || errors.Is(err, market.ErrMissingField) {
		status = http.StatusBadRequest
	}
	c.JSON(status, Response{Success: false, Error: err.Error()})
}
