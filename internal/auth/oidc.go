package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/complyard/complyard/internal/config"
	"github.com/complyard/complyard/internal/models"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

// OIDCAuthenticator provides single sign-on via a generic OIDC provider.
// Session handling after the callback is identical to basic auth: the
// callback mints the same short-lived token.
type OIDCAuthenticator struct {
	provider  *oidc.Provider
	config    *oauth2.Config
	verifier  *oidc.IDTokenVerifier
	db        *gorm.DB
	basicAuth *BasicAuthenticator
}

// NewOIDCAuthenticator creates a new OIDC authenticator
func NewOIDCAuthenticator(ctx context.Context, cfg config.OIDCConfig, basicAuth *BasicAuthenticator, db *gorm.DB) (*OIDCAuthenticator, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	// Discover OIDC provider configuration
	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}

	verifier := provider.Verifier(&oidc.Config{
		ClientID: cfg.ClientID,
	})

	return &OIDCAuthenticator{
		provider:  provider,
		config:    oauth2Config,
		verifier:  verifier,
		db:        db,
		basicAuth: basicAuth,
	}, nil
}

// AuthURL returns the URL to redirect users to for authentication
func (a *OIDCAuthenticator) AuthURL(state string) string {
	return a.config.AuthCodeURL(state)
}

// HandleCallback exchanges the OAuth2 code, verifies the ID token, and mints
// a session token for the mapped local user.
func (a *OIDCAuthenticator) HandleCallback(ctx context.Context, code string) (*LoginResponse, error) {
	oauth2Token, err := a.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return nil, errors.New("no id_token in token response")
	}

	idToken, err := a.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Sub           string `json:"sub"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}
	if claims.Email == "" {
		return nil, errors.New("identity provider returned no email")
	}

	user, err := a.findOrCreateUser(claims.Email, claims.Name, claims.EmailVerified)
	if err != nil {
		return nil, fmt.Errorf("failed to find or create user: %w", err)
	}

	token, err := a.basicAuth.GenerateToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	slog.Info("User logged in via OIDC", "user_id", user.ID, "email", user.Email)
	return &LoginResponse{
		Token: token,
		User:  user,
	}, nil
}

// Login is not supported for OIDC; password logins go through basic auth.
func (a *OIDCAuthenticator) Login(email, password string) (*LoginResponse, error) {
	return a.basicAuth.Login(email, password)
}

// Middleware delegates to the basic authenticator; OIDC only changes how the
// session is established, not how it is validated.
func (a *OIDCAuthenticator) Middleware() gin.HandlerFunc {
	return a.basicAuth.Middleware()
}

// ClaimsFromContext delegates to the basic authenticator.
func (a *OIDCAuthenticator) ClaimsFromContext(c *gin.Context) (*Claims, error) {
	return a.basicAuth.ClaimsFromContext(c)
}

// findOrCreateUser maps an identity-provider account to a local user. New
// accounts get the default role; verification state follows the provider.
func (a *OIDCAuthenticator) findOrCreateUser(email, name string, verified bool) (*models.User, error) {
	var user models.User

	result := a.db.Where("email = ?", email).First(&user)
	if result.Error == nil {
		if verified && !user.EmailVerified {
			user.EmailVerified = true
			a.db.Model(&user).Update("email_verified", true)
		}
		return &user, nil
	}

	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error: %w", result.Error)
	}

	if name == "" {
		name = email
	}

	user = models.User{
		Name:          name,
		Email:         email,
		Role:          models.RoleUser,
		EmailVerified: verified,
		// No password hash; OIDC users have no local password
		PasswordHash: "",
	}

	if err := a.db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("Created new user from OIDC", "user_id", user.ID, "email", email)
	return &user, nil
}
