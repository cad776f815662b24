package handlers

import (
	"net/http"
	"strings"

	"github.com/complyard/complyard/internal/apperr"
	"github.com/complyard/complyard/internal/api/middleware"
	"github.com/complyard/complyard/internal/audit"
	"github.com/complyard/complyard/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// GovernanceHandler serves governance items (policies, standards, procedures).
type GovernanceHandler struct {
	db  *gorm.DB
	rec *audit.Recorder
}

// NewGovernanceHandler creates the governance handler.
func NewGovernanceHandler(db *gorm.DB, rec *audit.Recorder) *GovernanceHandler {
	return &GovernanceHandler{db: db, rec: rec}
}

var governancePatchFields = map[string]string{
	"title":       "title",
	"type":        "type",
	"description": "description",
	"status":      "status",
	"review_date": "review_date",
	"owner_id":    "owner_id",
}

type createGovernanceItemRequest struct {
	Title       string `json:"title" binding:"required"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Status      string `json:"status"`
	OwnerID     *uint  `json:"owner_id"`
}

// List returns all governance items.
func (h *GovernanceHandler) List(c *gin.Context) {
	var items []models.GovernanceItem
	if err := h.db.Preload("Owner").Find(&items).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to fetch governance items", err))
		return
	}
	if len(items) == 0 {
		Error(c, apperr.New(apperr.NotFound, "no governance items found"))
		return
	}
	c.JSON(http.StatusOK, items)
}

// Search returns governance items matching ?q=.
func (h *GovernanceHandler) Search(c *gin.Context) {
	q, err := searchQuery(c)
	if err != nil {
		Error(c, err)
		return
	}

	pattern := "%" + strings.ToLower(q) + "%"
	var items []models.GovernanceItem
	if err := h.db.Preload("Owner").
		Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern).
		Find(&items).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to search governance items", err))
		return
	}
	if len(items) == 0 {
		Error(c, apperr.Newf(apperr.NotFound, "no governance items matching %q", q))
		return
	}
	c.JSON(http.StatusOK, items)
}

// Get returns one governance item by id.
func (h *GovernanceHandler) Get(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		Error(c, err)
		return
	}

	var item models.GovernanceItem
	if err := h.db.Preload("Owner").First(&item, id).Error; err != nil {
		Error(c, apperr.New(apperr.NotFound, "governance item not found"))
		return
	}
	c.JSON(http.StatusOK, item)
}

// Create inserts a new governance item.
func (h *GovernanceHandler) Create(c *gin.Context) {
	var req createGovernanceItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, apperr.New(apperr.BadRequest, "title is required"))
		return
	}

	item := models.GovernanceItem{
		Title:       req.Title,
		Type:        req.Type,
		Description: req.Description,
		Status:      req.Status,
		OwnerID:     req.OwnerID,
	}

	if err := h.db.Create(&item).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to create governance item", err))
		return
	}

	h.rec.Record(actorID(c), models.ActionCreate, "governance_item", &item.ID,
		map[string]any{"title": item.Title}, middleware.GetRequestID(c))

	c.JSON(http.StatusCreated, item)
}

// Update patches only the supplied fields.
func (h *GovernanceHandler) Update(c *gin.Context) {
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

	var item models.GovernanceItem
	if err := h.db.First(&item, id).Error; err != nil {
		Error(c, apperr.New(apperr.NotFound, "governance item not found"))
		return
	}

	updates, changed := pickFields(body, governancePatchFields)
	if len(updates) == 0 {
		Error(c, apperr.New(apperr.BadRequest, "no updatable fields in body"))
		return
	}

	if err := h.db.Model(&item).Updates(updates).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to update governance item", err))
		return
	}

	h.rec.Record(actorID(c), models.ActionUpdate, "governance_item", &item.ID,
		map[string]any{"changed": changed}, middleware.GetRequestID(c))

	c.JSON(http.StatusOK, item)
}

// Delete removes a governance item and returns the deleted row.
func (h *GovernanceHandler) Delete(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		Error(c, err)
		return
	}

	var item models.GovernanceItem
	if err := h.db.First(&item, id).Error; err != nil {
		Error(c, apperr.New(apperr.NotFound, "governance item not found"))
		return
	}

	if err := h.db.Delete(&item).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to delete governance item", err))
		return
	}

	h.rec.Record(actorID(c), models.ActionDelete, "governance_item", &item.ID,
		map[string]any{"title": item.Title}, middleware.GetRequestID(c))

	c.JSON(http.StatusOK, item)
}
