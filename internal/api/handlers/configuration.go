package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/complyard/complyard/internal/apperr"
	"github.com/complyard/complyard/internal/api/middleware"
	"github.com/complyard/complyard/internal/audit"
	"github.com/complyard/complyard/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ConfigurationHandler serves tracked configuration items.
type ConfigurationHandler struct {
	db  *gorm.DB
	rec *audit.Recorder
}

// NewConfigurationHandler creates the configuration handler.
func NewConfigurationHandler(db *gorm.DB, rec *audit.Recorder) *ConfigurationHandler {
	return &ConfigurationHandler{db: db, rec: rec}
}

var configurationPatchFields = map[string]string{
	"value":       "value",
	"description": "description",
	"category":    "category",
	"owner_id":    "owner_id",
}

type createConfigurationRequest struct {
	Key         string `json:"key" binding:"required"`
	Value       string `json:"value"`
	Description string `json:"description"`
	Category    string `json:"category"`
	OwnerID     *uint  `json:"owner_id"`
}

// List returns all configuration items.
func (h *ConfigurationHandler) List(c *gin.Context) {
	var items []models.Configuration
	if err := h.db.Find(&items).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to fetch configurations", err))
		return
	}
	if len(items) == 0 {
		Error(c, apperr.New(apperr.NotFound, "no configurations found"))
		return
	}
	c.JSON(http.StatusOK, items)
}

// Search returns configurations matching ?q= in key or description.
func (h *ConfigurationHandler) Search(c *gin.Context) {
	q, err := searchQuery(c)
	if err != nil {
		Error(c, err)
		return
	}

	pattern := "%" + strings.ToLower(q) + "%"
	var items []models.Configuration
	if err := h.db.
		Where("LOWER(key) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern).
		Find(&items).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to search configurations", err))
		return
	}
	if len(items) == 0 {
		Error(c, apperr.Newf(apperr.NotFound, "no configurations matching %q", q))
		return
	}
	c.JSON(http.StatusOK, items)
}

// Get returns one configuration by id.
func (h *ConfigurationHandler) Get(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		Error(c, err)
		return
	}

	var item models.Configuration
	if err := h.db.First(&item, id).Error; err != nil {
		Error(c, apperr.New(apperr.NotFound, "configuration not found"))
		return
	}
	c.JSON(http.StatusOK, item)
}

// Create inserts a new configuration item. Keys are unique; a duplicate is a
// conflict, not an internal error.
func (h *ConfigurationHandler) Create(c *gin.Context) {
	var req createConfigurationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, apperr.New(apperr.BadRequest, "key is required"))
		return
	}

	item := models.Configuration{
		Key:         req.Key,
		Value:       req.Value,
		Description: req.Description,
		Category:    req.Category,
		OwnerID:     req.OwnerID,
	}

	if err := h.db.Create(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			Error(c, apperr.Newf(apperr.Conflict, "configuration key %q already exists", req.Key))
			return
		}
		Error(c, apperr.Wrap(apperr.Internal, "failed to create configuration", err))
		return
	}

	h.rec.Record(actorID(c), models.ActionCreate, "configuration", &item.ID,
		map[string]any{"key": item.Key}, middleware.GetRequestID(c))

	c.JSON(http.StatusCreated, item)
}

// Update patches only the supplied fields. The key itself is immutable.
func (h *ConfigurationHandler) Update(c *gin.Context) {
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

	var item models.Configuration
	if err := h.db.First(&item, id).Error; err != nil {
		Error(c, apperr.New(apperr.NotFound, "configuration not found"))
		return
	}

	updates, changed := pickFields(body, configurationPatchFields)
	if len(updates) == 0 {
		Error(c, apperr.New(apperr.BadRequest, "no updatable fields in body"))
		return
	}

	if err := h.db.Model(&item).Updates(updates).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to update configuration", err))
		return
	}

	h.rec.Record(actorID(c), models.ActionUpdate, "configuration", &item.ID,
		map[string]any{"changed": changed}, middleware.GetRequestID(c))

	c.JSON(http.StatusOK, item)
}

// Delete removes a configuration item and returns the deleted row.
func (h *ConfigurationHandler) Delete(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		Error(c, err)
		return
	}

	var item models.Configuration
	if err := h.db.First(&item, id).Error; err != nil {
		Error(c, apperr.New(apperr.NotFound, "configuration not found"))
		return
	}

	if err := h.db.Delete(&item).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to delete configuration", err))
		return
	}

	h.rec.Record(actorID(c), models.ActionDelete, "configuration", &item.ID,
		map[string]any{"key": item.Key}, middleware.GetRequestID(c))

	c.JSON(http.StatusOK, item)
}
