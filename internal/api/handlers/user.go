package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/complyard/complyard/internal/apperr"
	"github.com/complyard/complyard/internal/api/middleware"
	"github.com/complyard/complyard/internal/audit"
	"github.com/complyard/complyard/internal/auth"
	"github.com/complyard/complyard/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// UserHandler serves user administration. Reads require the moderator role,
// writes require admin.
type UserHandler struct {
	db  *gorm.DB
	rec *audit.Recorder
}

// NewUserHandler creates the user handler.
func NewUserHandler(db *gorm.DB, rec *audit.Recorder) *UserHandler {
	return &UserHandler{db: db, rec: rec}
}

type createUserRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role"`
}

// List returns all users.
func (h *UserHandler) List(c *gin.Context) {
	var users []models.User
	if err := h.db.Find(&users).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to fetch users", err))
		return
	}
	if len(users) == 0 {
		Error(c, apperr.New(apperr.NotFound, "no users found"))
		return
	}
	c.JSON(http.StatusOK, users)
}

// Search returns users matching ?q= in name or email.
func (h *UserHandler) Search(c *gin.Context) {
	q, err := searchQuery(c)
	if err != nil {
		Error(c, err)
		return
	}

	pattern := "%" + strings.ToLower(q) + "%"
	var users []models.User
	if err := h.db.
		Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", pattern, pattern).
		Find(&users).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to search users", err))
		return
	}
	if len(users) == 0 {
		Error(c, apperr.Newf(apperr.NotFound, "no users matching %q", q))
		return
	}
	c.JSON(http.StatusOK, users)
}

// Get returns one user by id.
func (h *UserHandler) Get(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		Error(c, err)
		return
	}

	var user models.User
	if err := h.db.First(&user, id).Error; err != nil {
		Error(c, apperr.New(apperr.NotFound, "user not found"))
		return
	}
	c.JSON(http.StatusOK, user)
}

// Create provisions a user directly. Unlike self-registration the account is
// created already verified, since an administrator vouched for it.
func (h *UserHandler) Create(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, apperr.New(apperr.BadRequest, "name, email and password (min 6 chars) are required"))
		return
	}

	role := req.Role
	if role == "" {
		role = models.RoleUser
	}
	if !models.ValidRole(role) {
		Error(c, apperr.Newf(apperr.BadRequest, "unknown role %q", role))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to hash password", err))
		return
	}

	user := models.User{
		Name:          req.Name,
		Email:         req.Email,
		PasswordHash:  hash,
		Role:          role,
		EmailVerified: true,
	}

	if err := h.db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			Error(c, apperr.New(apperr.Conflict, "email already registered"))
			return
		}
		Error(c, apperr.Wrap(apperr.Internal, "failed to create user", err))
		return
	}

	h.rec.Record(actorID(c), models.ActionCreate, "user", &user.ID,
		map[string]any{"email": user.Email, "role": user.Role}, middleware.GetRequestID(c))

	c.JSON(http.StatusCreated, user)
}

// Update patches name, email, role or password. Role changes are validated
// and recorded with before and after values.
func (h *UserHandler) Update(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		Error(c, err)
		return
	}

	body, err := patchBody(c)
	if err != nil {
		Error(c, err)
		return
	}

	var user models.User
	if err := h.db.First(&user, id).Error; err != nil {
		Error(c, apperr.New(apperr.NotFound, "user not found"))
		return
	}

	updates := map[string]any{}
	changed := []string{}
	details := map[string]any{}

	if name, ok := body["name"].(string); ok && name != "" {
		updates["name"] = name
		changed = append(changed, "name")
	}
	if email, ok := body["email"].(string); ok && email != "" {
		updates["email"] = email
		changed = append(changed, "email")
	}
	if role, ok := body["role"].(string); ok && role != user.Role {
		if !models.ValidRole(role) {
			Error(c, apperr.Newf(apperr.BadRequest, "unknown role %q", role))
			return
		}
		updates["role"] = role
		changed = append(changed, "role")
		details["role_from"] = user.Role
		details["role_to"] = role
	}
	if password, ok := body["password"].(string); ok && password != "" {
		if len(password) < 6 {
			Error(c, apperr.New(apperr.BadRequest, "password must be at least 6 characters"))
			return
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			Error(c, apperr.Wrap(apperr.Internal, "failed to hash password", err))
			return
		}
		updates["password_hash"] = hash
		changed = append(changed, "password")
	}
	if verified, ok := body["email_verified"].(bool); ok {
		updates["email_verified"] = verified
		changed = append(changed, "email_verified")
	}

	if len(updates) == 0 {
		Error(c, apperr.New(apperr.BadRequest, "no updatable fields in body"))
		return
	}

	if err := h.db.Model(&user).Updates(updates).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			Error(c, apperr.New(apperr.Conflict, "email already registered"))
			return
		}
		Error(c, apperr.Wrap(apperr.Internal, "failed to update user", err))
		return
	}

	details["changed"] = changed
	h.rec.Record(actorID(c), models.ActionUpdate, "user", &user.ID, details, middleware.GetRequestID(c))

	c.JSON(http.StatusOK, user)
}

// Delete soft-deletes a user and returns the deleted row. Admins cannot
// delete their own account.
func (h *UserHandler) Delete(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		Error(c, err)
		return
	}

	if actor := actorID(c); actor != nil && *actor == id {
		Error(c, apperr.New(apperr.BadRequest, "cannot delete your own account"))
		return
	}

	var user models.User
	if err := h.db.First(&user, id).Error; err != nil {
		Error(c, apperr.New(apperr.NotFound, "user not found"))
		return
	}

	if err := h.db.Delete(&user).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to delete user", err))
		return
	}

	h.rec.Record(actorID(c), models.ActionDelete, "user", &user.ID,
		map[string]any{"email": user.Email}, middleware.GetRequestID(c))

	c.JSON(http.StatusOK, user)
}
