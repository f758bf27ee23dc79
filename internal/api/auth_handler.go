package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"syllabusai/internal/api/middleware"
	"syllabusai/internal/auth"
	"syllabusai/internal/database"
)

type loginThrottle interface {
	Allow(ctx context.Context, ip, username string) error
	Fail(ctx context.Context, username string) error
	Reset(ctx context.Context, username string)
}

type sessionRevoker interface {
	Revoke(ctx context.Context, jti string, expiresAt *jwt.NumericDate, fallback time.Duration) error
}

// AuthHandler serves the register, login and logout forms.
type AuthHandler struct {
	db           *gorm.DB
	authService  *auth.AuthService
	throttle     loginThrottle
	revocations  sessionRevoker
	cookieDomain string
	logger       *slog.Logger
}

// NewAuthHandler builds an AuthHandler. throttle and revocations may be nil.
func NewAuthHandler(
	db *gorm.DB,
	authService *auth.AuthService,
	throttle loginThrottle,
	revocations sessionRevoker,
	cookieDomain string,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		db:           db,
		authService:  authService,
		throttle:     throttle,
		revocations:  revocations,
		cookieDomain: cookieDomain,
		logger:       logger,
	}
}

// ShowRegister renders the registration form.
func (h *AuthHandler) ShowRegister(c *gin.Context) {
	renderPage(c, http.StatusOK, "register.html", nil)
}

// Register creates a user account and logs it in.
func (h *AuthHandler) Register(c *gin.Context) {
	username := strings.TrimSpace(c.PostForm("username"))
	password := c.PostForm("password")
	confirmation := c.PostForm("confirmation")

	switch {
	case username == "":
		redirectWithFlash(c, http.StatusSeeOther, "/register", flashDanger, "must provide username")
		return
	case password == "":
		redirectWithFlash(c, http.StatusSeeOther, "/register", flashDanger, "must provide password")
		return
	case confirmation == "":
		redirectWithFlash(c, http.StatusSeeOther, "/register", flashDanger, "must provide password confirmation")
		return
	}
	if err := auth.ValidateNewPassword(password, confirmation); err != nil {
		redirectWithFlash(c, http.StatusSeeOther, "/register", flashDanger, err.Error())
		return
	}

	ctx := c.Request.Context()
	logger := h.loggerFromContext(c).With(slog.String("username", username))

	hash, err := auth.HashPassword(password)
	if err != nil {
		logger.Error("hash password failed", slog.Any("error", err))
		redirectWithFlash(c, http.StatusSeeOther, "/register", flashDanger, "registration failed, please try again")
		return
	}

	user, err := database.CreateUser(ctx, h.db, username, hash, database.RoleUser)
	if err != nil {
		if errors.Is(err, database.ErrUsernameTaken) {
			redirectWithFlash(c, http.StatusSeeOther, "/register", flashDanger, "username taken")
			return
		}
		logger.Error("create user failed", slog.Any("error", err))
		redirectWithFlash(c, http.StatusSeeOther, "/register", flashDanger, "registration failed, please try again")
		return
	}

	if err := h.startSession(c, user); err != nil {
		logger.Error("issue session failed", slog.Any("error", err))
		redirectWithFlash(c, http.StatusSeeOther, "/login", flashInfo, "Registered! Please log in.")
		return
	}

	logger.Info("user registered", slog.Uint64("user_id", uint64(user.ID)))
	redirectWithFlash(c, http.StatusSeeOther, "/", flashSuccess, "Registered!")
}

// ShowLogin renders the login form.
func (h *AuthHandler) ShowLogin(c *gin.Context) {
	renderPage(c, http.StatusOK, "login.html", nil)
}

// Login checks credentials and sets the session cookie.
func (h *AuthHandler) Login(c *gin.Context) {
	username := strings.TrimSpace(c.PostForm("username"))
	password := c.PostForm("password")

	if username == "" {
		redirectWithFlash(c, http.StatusSeeOther, "/login", flashDanger, "must provide username")
		return
	}
	if password == "" {
		redirectWithFlash(c, http.StatusSeeOther, "/login", flashDanger, "must provide password")
		return
	}

	ctx := c.Request.Context()
	logger := h.loggerFromContext(c).With(slog.String("username", username))

	if h.throttle != nil {
		switch err := h.throttle.Allow(ctx, c.ClientIP(), username); {
		case errors.Is(err, auth.ErrRateLimited):
			logger.Warn("login rate limited")
			redirectWithFlash(c, http.StatusSeeOther, "/login", flashDanger, "too many login attempts, try again later")
			return
		case errors.Is(err, auth.ErrLocked):
			logger.Warn("login on locked account")
			redirectWithFlash(c, http.StatusSeeOther, "/login", flashDanger, "account temporarily locked, try again later")
			return
		}
	}

	user, err := database.FindUserByUsername(ctx, h.db, username)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("login query failed", slog.Any("error", err))
			redirectWithFlash(c, http.StatusSeeOther, "/login", flashDanger, "login failed, please try again")
			return
		}
		logger.Info("login failed: user not found")
		h.recordFailure(ctx, username, logger)
		redirectWithFlash(c, http.StatusSeeOther, "/login", flashDanger, "Invalid username and/or password")
		return
	}

	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		logger.Info("login failed: password mismatch", slog.Uint64("user_id", uint64(user.ID)))
		h.recordFailure(ctx, username, logger)
		redirectWithFlash(c, http.StatusSeeOther, "/login", flashDanger, "Invalid username and/or password")
		return
	}

	if h.throttle != nil {
		h.throttle.Reset(ctx, username)
	}

	h.revokeCurrent(c)
	if err := h.startSession(c, user); err != nil {
		logger.Error("issue session failed", slog.Any("error", err))
		redirectWithFlash(c, http.StatusSeeOther, "/login", flashDanger, "login failed, please try again")
		return
	}

	logger.Info("user logged in", slog.Uint64("user_id", uint64(user.ID)))
	c.Redirect(http.StatusSeeOther, "/")
}

// Logout revokes the session token and clears the cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.revokeCurrent(c)
	writeCookie(c, h.cookieDomain, middleware.SessionCookieName, "", -1)
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *AuthHandler) startSession(c *gin.Context, user *database.User) error {
	token, _, err := h.authService.IssueSession(auth.Identity{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
	})
	if err != nil {
		return err
	}
	maxAge := int(h.authService.SessionTTL().Seconds())
	if maxAge <= 0 {
		maxAge = int(time.Hour.Seconds())
	}
	writeCookie(c, h.cookieDomain, middleware.SessionCookieName, token, maxAge)
	return nil
}

func (h *AuthHandler) revokeCurrent(c *gin.Context) {
	claims, ok := middleware.SessionClaims(c)
	if !ok || h.revocations == nil {
		return
	}
	if err := h.revocations.Revoke(c.Request.Context(), claims.ID, claims.ExpiresAt, h.authService.SessionTTL()); err != nil {
		h.loggerFromContext(c).Error("revoke session failed", slog.Any("error", err))
	}
}

func (h *AuthHandler) recordFailure(ctx context.Context, username string, logger *slog.Logger) {
	if h.throttle == nil {
		return
	}
	if err := h.throttle.Fail(ctx, username); err != nil {
		logger.Warn("record login failure", slog.Any("error", err))
	}
}

func (h *AuthHandler) loggerFromContext(c *gin.Context) *slog.Logger {
	if logger := middleware.LoggerFromContext(c); logger != slog.Default() {
		return logger
	}
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}
