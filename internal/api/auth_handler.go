package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"aquant/internal/auth"
	"aquant/internal/database"
)

// AuthHandlers serves registration, login and token refresh
type AuthHandlers struct {
	users   *auth.UserService
	access  *auth.JWTManager
	refresh *auth.JWTManager
}

// NewAuthHandlers creates the auth handler set
func NewAuthHandlers(users *auth.UserService, access, refresh *auth.JWTManager) *AuthHandlers {
	return &AuthHandlers{users: users, access: access, refresh: refresh}
}

// Register handles POST /api/v1/auth/register
// @Summary 注册账号
// @Tags auth
// @Accept json
// @Param request body RegisterRequest true "注册信息"
// @Success 201 {object} Response{data=AuthResponse}
// @Failure 409 {object} Response
// @Router /api/v1/auth/register [post]
func (h *AuthHandlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			c.JSON(http.StatusConflict, Response{Success: false, Error: err.Error()})
			return
		}
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	resp, err := h.issueTokens(user)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: resp})
}

// Login handles POST /api/v1/auth/login
// @Summary 登录
// @Tags auth
// @Accept json
// @Param request body LoginRequest true "登录凭据"
// @Success 200 {object} Response{data=AuthResponse}
// @Failure 401 {object} Response
// @Failure 423 {object} Response
// @Router /api/v1/auth/login [post]
func (h *AuthHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	user, err := h.users.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, Response{Success: false, Error: err.Error()})
		case errors.Is(err, auth.ErrAccountLocked):
			c.JSON(http.StatusLocked, Response{Success: false, Error: err.Error()})
		default:
			respondError(c, http.StatusInternalServerError, err)
		}
		return
	}

	resp, err := h.issueTokens(user)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	respondOK(c, resp)
}

// Refresh handles POST /api/v1/auth/refresh
// @Summary 刷新令牌
// @Tags auth
// @Accept json
// @Param request body RefreshRequest true "刷新令牌"
// @Success 200 {object} Response{data=AuthResponse}
// @Failure 401 {object} Response
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandlers) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	claims, err := h.refresh.ValidateToken(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, Response{Success: false, Error: "invalid or expired refresh token"})
		return
	}

	// 刷新时重新查库，已删除或锁定的账号不再续签
	user, err := h.users.Profile(c.Request.Context(), claims.UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, Response{Success: false, Error: "account no longer valid"})
		return
	}

	resp, err := h.issueTokens(user)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	respondOK(c, resp)
}

// Profile handles GET /api/v1/auth/profile
// @Summary 当前账号信息
// @Tags auth
// @Success 200 {object} Response{data=database.User}
// @Failure 401 {object} Response
// @Security BearerAuth
// @Router /api/v1/auth/profile [get]
func (h *AuthHandlers) Profile(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, Response{Success: false, Error: "not authenticated"})
		return
	}

	user, err := h.users.Profile(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, Response{Success: false, Error: "user not found"})
			return
		}
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	respondOK(c, user)
}

// issueTokens signs an access/refresh pair for the user
func (h *AuthHandlers) issueTokens(user *database.User) (*AuthResponse, error) {
	accessToken, expiresAt, err := h.access.GenerateToken(user.ID.String(), user.Username)
	if err != nil {
		return nil, err
	}
	refreshToken, _, err := h.refresh.GenerateToken(user.ID.String(), user.Username)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		UserID:       user.ID.String(),
		Username:     user.Username,
	}, nil
}
