package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/complyard/complyard/internal/apperr"
	"github.com/complyard/complyard/internal/api/middleware"
	"github.com/complyard/complyard/internal/audit"
	"github.com/complyard/complyard/internal/auth"
	"github.com/complyard/complyard/internal/mailer"
	"github.com/complyard/complyard/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AuthHandler serves registration, login, logout, and email verification.
type AuthHandler struct {
	db            *gorm.DB
	authenticator *auth.BasicAuthenticator
	mail          mailer.Mailer
	rec           *audit.Recorder
	cookieMaxAge  int
	cookieSecure  bool
	baseURL       string
}

// NewAuthHandler creates the auth handler.
func NewAuthHandler(db *gorm.DB, authenticator *auth.BasicAuthenticator, mail mailer.Mailer, rec *audit.Recorder, cookieMaxAge int, cookieSecure bool, baseURL string) *AuthHandler {
	return &AuthHandler{
		db:            db,
		authenticator: authenticator,
		mail:          mail,
		rec:           rec,
		cookieMaxAge:  cookieMaxAge,
		cookieSecure:  cookieSecure,
		baseURL:       baseURL,
	}
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, token string) {
	c.SetCookie(auth.TokenCookieName, token, h.cookieMaxAge, "/", "", h.cookieSecure, true)
}

// Register creates a new unverified account and opens a session. The session
// exists so the client can poll /auth/me, but login stays blocked until the
// email is verified.
func (h *AuthHandler) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, apperr.New(apperr.BadRequest, "name, email and password are required"))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to process password", err))
		return
	}

	user := models.User{
		Name:          req.Name,
		Email:         req.Email,
		PasswordHash:  hash,
		Role:          models.RoleUser,
		EmailVerified: false,
	}

	if err := h.db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			Error(c, apperr.New(apperr.Conflict, "email already registered"))
			return
		}
		Error(c, apperr.Wrap(apperr.Internal, "failed to create account", err))
		return
	}

	// Mail problems never fail registration; the operator can resend.
	if verifyToken, err := h.authenticator.GenerateVerificationToken(&user); err == nil {
		link := fmt.Sprintf("%s/api/v1/auth/verify?token=%s", h.baseURL, verifyToken)
		if err := h.mail.SendVerification(user.Email, link); err != nil {
			slog.Warn("Failed to send verification mail", "error", err, "email", user.Email)
		}
	}

	token, err := h.authenticator.GenerateToken(&user)
	if err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to create session", err))
		return
	}

	h.rec.Record(&user.ID, models.ActionRegister, "user", &user.ID,
		map[string]any{"email": user.Email}, middleware.GetRequestID(c))

	h.setSessionCookie(c, token)
	c.JSON(http.StatusCreated, auth.LoginResponse{Token: token, User: &user})
}

// Login authenticates with email/password. Unverified accounts get a 403
// with requires_verification so the frontend can offer a resend instead of a
// generic denial.
func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, apperr.New(apperr.BadRequest, "email and password are required"))
		return
	}

	resp, err := h.authenticator.Login(req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			h.rec.Record(nil, models.ActionLoginFailed, "user", nil,
				map[string]any{"email": req.Email}, middleware.GetRequestID(c))
			Error(c, apperr.New(apperr.Unauthorized, "invalid credentials"))
		case errors.Is(err, auth.ErrNotVerified):
			c.JSON(http.StatusForbidden, gin.H{
				"error":                 "email not verified",
				"requires_verification": true,
			})
		default:
			Error(c, apperr.Wrap(apperr.Internal, "login failed", err))
		}
		return
	}

	h.rec.Record(&resp.User.ID, models.ActionLogin, "user", &resp.User.ID, nil, middleware.GetRequestID(c))

	h.setSessionCookie(c, resp.Token)
	c.JSON(http.StatusOK, resp)
}

// Logout clears the session cookie. Tokens stay valid until expiry; with a
// lifetime of minutes there is no revocation list.
func (h *AuthHandler) Logout(c *gin.Context) {
	if id := actorID(c); id != nil {
		h.rec.Record(id, models.ActionLogout, "user", id, nil, middleware.GetRequestID(c))
	}
	c.SetCookie(auth.TokenCookieName, "", -1, "/", "", h.cookieSecure, true)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me returns the authenticated user's current row.
func (h *AuthHandler) Me(c *gin.Context) {
	claims, err := auth.ClaimsFromContext(c)
	if err != nil {
		Error(c, apperr.New(apperr.Unauthorized, "authentication required"))
		return
	}

	var user models.User
	if err := h.db.First(&user, claims.UserID).Error; err != nil {
		Error(c, apperr.New(apperr.NotFound, "user not found"))
		return
	}

	c.JSON(http.StatusOK, user)
}

// VerifyEmail marks an account verified using the token from the
// verification link.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	tokenString, ok := c.GetQuery("token")
	if !ok || tokenString == "" {
		Error(c, apperr.New(apperr.BadRequest, "missing verification token"))
		return
	}

	userID, err := h.authenticator.VerifyEmailToken(tokenString)
	if err != nil {
		Error(c, apperr.New(apperr.Unauthorized, "invalid or expired verification token"))
		return
	}

	var user models.User
	if err := h.db.First(&user, userID).Error; err != nil {
		Error(c, apperr.New(apperr.NotFound, "user not found"))
		return
	}

	if !user.EmailVerified {
		if err := h.db.Model(&user).Update("email_verified", true).Error; err != nil {
			Error(c, apperr.Wrap(apperr.Internal, "failed to verify email", err))
			return
		}
		h.rec.Record(&user.ID, models.ActionVerifyEmail, "user", &user.ID, nil, middleware.GetRequestID(c))
	}

	c.JSON(http.StatusOK, gin.H{"message": "email verified"})
}
