package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Tyagi221B/Backend/internal/config"
	"github.com/Tyagi221B/Backend/internal/domain"
	"github.com/Tyagi221B/Backend/internal/http/middleware"
	"github.com/Tyagi221B/Backend/internal/service"
)

// RefreshTokenCookie carries the refresh token for browser clients. Native
// clients send it in the request body instead.
const RefreshTokenCookie = "refreshToken"

// AuthHandler exposes the identity endpoints.
type AuthHandler struct {
	Auth *service.AuthService
	Cfg  config.Config
}

// NewAuthHandler creates the handler set.
func NewAuthHandler(auth *service.AuthService, cfg config.Config) *AuthHandler {
	return &AuthHandler{Auth: auth, Cfg: cfg}
}

// Register creates a new account.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Username      string `json:"username"`
		Email         string `json:"email"`
		Password      string `json:"password"`
		FullName      string `json:"fullName"`
		Avatar        string `json:"avatar"`
		AvatarRef     string `json:"avatarRef"`
		CoverImage    string `json:"coverImage"`
		CoverImageRef string `json:"coverImageRef"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid register request."})
		return
	}

	user, err := h.Auth.Register(c.Request.Context(), service.RegisterInput{
		Username:      req.Username,
		Email:         req.Email,
		Password:      req.Password,
		FullName:      req.FullName,
		AvatarURL:     req.Avatar,
		AvatarRef:     req.AvatarRef,
		CoverImageURL: req.CoverImage,
		CoverImageRef: req.CoverImageRef,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// Login verifies credentials and issues the token pair as HTTP-only cookies
// plus response body fields for cookie-less clients.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid login request."})
		return
	}

	identifier := req.Username
	if identifier == "" {
		identifier = req.Email
	}

	user, pair, err := h.Auth.Login(c.Request.Context(), identifier, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.setAuthCookies(c, pair.AccessToken, pair.RefreshToken)
	c.JSON(http.StatusOK, gin.H{
		"user":         user,
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

// Refresh rotates the refresh token supplied via cookie or body.
func (h *AuthHandler) Refresh(c *gin.Context) {
	candidate, _ := c.Cookie(RefreshTokenCookie)
	if candidate == "" {
		var req struct {
			RefreshToken string `json:"refreshToken"`
		}
		// Body is optional; cookie-only clients send none.
		_ = c.ShouldBindJSON(&req)
		candidate = req.RefreshToken
	}

	pair, err := h.Auth.Refresh(c.Request.Context(), candidate)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.setAuthCookies(c, pair.AccessToken, pair.RefreshToken)
	c.JSON(http.StatusOK, gin.H{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

// Logout clears the caller's refresh slot and both cookies.
func (h *AuthHandler) Logout(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "error_description": "Unauthorized request."})
		return
	}

	if err := h.Auth.Logout(c.Request.Context(), user.ID); err != nil {
		h.respondError(c, err)
		return
	}

	h.clearAuthCookies(c)
	c.JSON(http.StatusOK, gin.H{"message": "User logged out successfully."})
}

// Me returns the authenticated caller's sanitized identity.
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "error_description": "Unauthorized request."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// ChangePassword replaces the caller's password after checking the old one.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "error_description": "Unauthorized request."})
		return
	}

	var req struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid password change request."})
		return
	}

	if err := h.Auth.ChangePassword(c.Request.Context(), user.ID, req.OldPassword, req.NewPassword); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully."})
}

// UpdateAccount mutates the caller's display fields.
func (h *AuthHandler) UpdateAccount(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "error_description": "Unauthorized request."})
		return
	}

	var req struct {
		FullName string `json:"fullName"`
		Email    string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid account update request."})
		return
	}

	updated, err := h.Auth.UpdateAccount(c.Request.Context(), user.ID, req.FullName, req.Email)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": updated})
}

type mediaUpdateFunc func(ctx context.Context, userID, url, ref string) (domain.PublicUser, error)

// UpdateAvatar stores a new avatar reference produced by the upload
// collaborator.
func (h *AuthHandler) UpdateAvatar(c *gin.Context) {
	h.updateMedia(c, h.Auth.UpdateAvatar, "avatar")
}

// UpdateCoverImage stores a new cover image reference.
func (h *AuthHandler) UpdateCoverImage(c *gin.Context) {
	h.updateMedia(c, h.Auth.UpdateCoverImage, "cover image")
}

func (h *AuthHandler) updateMedia(c *gin.Context, update mediaUpdateFunc, field string) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "error_description": "Unauthorized request."})
		return
	}

	var req struct {
		URL string `json:"url"`
		Ref string `json:"ref"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid " + field + " update request."})
		return
	}

	updated, err := update(c.Request.Context(), user.ID, req.URL, req.Ref)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": updated})
}

func (h *AuthHandler) setAuthCookies(c *gin.Context, accessToken, refreshToken string) {
	now := time.Now()
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    accessToken,
		Path:     "/",
		Domain:   h.Cfg.CookieDomain,
		Expires:  now.Add(h.Auth.Tokens().AccessTTL()),
		HttpOnly: true,
		Secure:   h.Cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     RefreshTokenCookie,
		Value:    refreshToken,
		Path:     "/",
		Domain:   h.Cfg.CookieDomain,
		Expires:  now.Add(h.Auth.Tokens().RefreshTTL()),
		HttpOnly: true,
		Secure:   h.Cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearAuthCookies(c *gin.Context) {
	for _, name := range []string{middleware.AccessTokenCookie, RefreshTokenCookie} {
		http.SetCookie(c.Writer, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Domain:   h.Cfg.CookieDomain,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.Cfg.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

func (h *AuthHandler) respondError(c *gin.Context, err error) {
	var authErr *service.AuthError
	if errors.As(err, &authErr) {
		c.JSON(authErr.Status, gin.H{"error": authErr.Code, "error_description": authErr.Description})
		return
	}
	zap.L().Error("auth service failure", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Internal server error."})
}
