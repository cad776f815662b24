package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/complyard/complyard/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	// ClaimsContextKey is the key used to store decoded claims in the Gin context
	ClaimsContextKey = "claims"
	// TokenCookieName is the HTTP-only cookie carrying the session token
	TokenCookieName = "token"
	// DefaultTokenTTL keeps sessions deliberately short; expiry forces a full
	// re-login, there is no refresh path.
	DefaultTokenTTL = 15 * time.Minute

	verifyPurpose = "email_verification"
)

// Claims represents the session token claims. The middleware annotates
// admitted requests with these; handlers never re-read the user row for
// identity or role.
type Claims struct {
	UserID        uint   `json:"user_id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	EmailVerified bool   `json:"email_verified"`
	Purpose       string `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

// BasicAuthenticator implements email/password authentication with signed
// session tokens.
type BasicAuthenticator struct {
	db        *gorm.DB
	jwtSecret []byte
	tokenTTL  time.Duration
}

// NewBasicAuthenticator creates a new basic authenticator. ttl <= 0 falls
// back to DefaultTokenTTL.
func NewBasicAuthenticator(db *gorm.DB, jwtSecret string, ttl time.Duration) *BasicAuthenticator {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &BasicAuthenticator{
		db:        db,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  ttl,
	}
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword checks if a password matches the hash
func VerifyPassword(hash, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// Login authenticates a user and returns a session token. Unverified users
// are rejected with ErrNotVerified after the password check so the handler
// can answer with a distinct signal.
func (a *BasicAuthenticator) Login(email, password string) (*LoginResponse, error) {
	var user models.User
	result := a.db.Where("email = ?", email).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			slog.Warn("Login attempt with unknown email", "email", email)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("database error: %w", result.Error)
	}

	if !VerifyPassword(user.PasswordHash, password) {
		slog.Warn("Login attempt with incorrect password", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}

	if !user.EmailVerified {
		return nil, ErrNotVerified
	}

	token, err := a.GenerateToken(&user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	slog.Info("User logged in", "user_id", user.ID, "email", user.Email)
	return &LoginResponse{
		Token: token,
		User:  &user,
	}, nil
}

// GenerateToken creates a session token for a user
func (a *BasicAuthenticator) GenerateToken(user *models.User) (string, error) {
	claims := Claims{
		UserID:        user.ID,
		Name:          user.Name,
		Email:         user.Email,
		Role:          user.Role,
		EmailVerified: user.EmailVerified,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(a.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "complyard",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}

// GenerateVerificationToken creates a single-purpose email verification token.
// Verification links stay valid longer than sessions.
func (a *BasicAuthenticator) GenerateVerificationToken(user *models.User) (string, error) {
	claims := Claims{
		UserID:  user.ID,
		Email:   user.Email,
		Purpose: verifyPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(48 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "complyard",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}

// VerifyEmailToken validates a verification token and returns the user id it
// was issued for.
func (a *BasicAuthenticator) VerifyEmailToken(tokenString string) (uint, error) {
	claims, err := a.parseToken(tokenString)
	if err != nil {
		return 0, err
	}
	if claims.Purpose != verifyPurpose {
		return 0, ErrUnauthorized
	}
	return claims.UserID, nil
}

// parseToken validates a token's signature and expiry and returns its claims
func (a *BasicAuthenticator) parseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrUnauthorized
}

// Middleware returns a Gin middleware for authentication. It checks (in
// order): Bearer token header, the session cookie. The check is read-only: it
// never extends the token's lifetime.
func (a *BasicAuthenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := extractToken(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			c.Abort()
			return
		}
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		}

		claims, err := a.parseToken(tokenString)
		if err != nil || claims.Purpose != "" {
			slog.Warn("Rejected token", "error", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(ClaimsContextKey, claims)
		c.Next()
	}
}

// extractToken pulls the session token from the Authorization header or the
// session cookie. A malformed Authorization header is an error; an absent
// token is not.
func extractToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return "", errors.New("invalid authorization header format")
		}
		return parts[1], nil
	}

	cookie, err := c.Cookie(TokenCookieName)
	if err != nil {
		return "", nil
	}
	return cookie, nil
}

// ClaimsFromContext extracts the authenticated principal's claims from the Gin context
func (a *BasicAuthenticator) ClaimsFromContext(c *gin.Context) (*Claims, error) {
	return ClaimsFromContext(c)
}

// ClaimsFromContext extracts claims set by any authenticator's middleware.
func ClaimsFromContext(c *gin.Context) (*Claims, error) {
	value, exists := c.Get(ClaimsContextKey)
	if !exists {
		return nil, ErrUnauthorized
	}

	claims, ok := value.(*Claims)
	if !ok {
		return nil, errors.New("invalid claims in context")
	}

	return claims, nil
}
