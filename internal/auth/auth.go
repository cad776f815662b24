package auth

import (
	"errors"

	"github.com/complyard/complyard/internal/models"
	"github.com/gin-gonic/gin"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotVerified        = errors.New("email not verified")
)

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents a login response. The token is also delivered as
// an HTTP-only cookie; the body mirror exists for bearer-style clients.
type LoginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Authenticator is an interface for authentication providers
type Authenticator interface {
	// Login authenticates a user and returns a session token
	Login(email, password string) (*LoginResponse, error)

	// Middleware returns a Gin middleware that rejects requests without a
	// valid token and annotates admitted requests with the decoded claims
	Middleware() gin.HandlerFunc

	// ClaimsFromContext extracts the authenticated principal's claims from
	// the Gin context
	ClaimsFromContext(c *gin.Context) (*Claims, error)
}
