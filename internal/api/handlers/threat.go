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

// ThreatHandler serves the threat catalogue.
type ThreatHandler struct {
	db  *gorm.DB
	rec *audit.Recorder
}

// NewThreatHandler creates the threat handler.
func NewThreatHandler(db *gorm.DB, rec *audit.Recorder) *ThreatHandler {
	return &ThreatHandler{db: db, rec: rec}
}

var threatPatchFields = map[string]string{
	"name":        "name",
	"category":    "category",
	"description": "description",
	"source":      "source",
	"severity":    "severity",
	"status":      "status",
	"owner_id":    "owner_id",
}

type createThreatRequest struct {
	Name        string `json:"name" binding:"required"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Source      string `json:"source"`
	Severity    string `json:"severity"`
	Status      string `json:"status"`
	OwnerID     *uint  `json:"owner_id"`
}

// List returns all threats.
func (h *ThreatHandler) List(c *gin.Context) {
	var threats []models.Threat
	if err := h.db.Preload("Owner").Find(&threats).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to fetch threats", err))
		return
	}
	if len(threats) == 0 {
		Error(c, apperr.New(apperr.NotFound, "no threats found"))
		return
	}
	c.JSON(http.StatusOK, threats)
}

// Search returns threats matching ?q= in name or description.
func (h *ThreatHandler) Search(c *gin.Context) {
	q, err := searchQuery(c)
	if err != nil {
		Error(c, err)
		return
	}

	pattern := "%" + strings.ToLower(q) + "%"
	var threats []models.Threat
	if err := h.db.Preload("Owner").
		Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern).
		Find(&threats).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to search threats", err))
		return
	}
	if len(threats) == 0 {
		Error(c, apperr.Newf(apperr.NotFound, "no threats matching %q", q))
		return
	}
	c.JSON(http.StatusOK, threats)
}

// Get returns one threat by id.
func (h *ThreatHandler) Get(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		Error(c, err)
		return
	}

	var threat models.Threat
	if err := h.db.Preload("Owner").First(&threat, id).Error; err != nil {
		Error(c, apperr.New(apperr.NotFound, "threat not found"))
		return
	}
	c.JSON(http.StatusOK, threat)
}

// Create inserts a new threat.
func (h *ThreatHandler) Create(c *gin.Context) {
	var req createThreatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, apperr.New(apperr.BadRequest, "name is required"))
		return
	}

	threat := models.Threat{
		Name:        req.Name,
		Category:    req.Category,
		Description: req.Description,
		Source:      req.Source,
		Severity:    req.Severity,
		Status:      req.Status,
		OwnerID:     req.OwnerID,
	}

	if err := h.db.Create(&threat).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to create threat", err))
		return
	}

	h.rec.Record(actorID(c), models.ActionCreate, "threat", &threat.ID,
		map[string]any{"name": threat.Name}, middleware.GetRequestID(c))

	c.JSON(http.StatusCreated, threat)
}

// Update patches only the supplied fields.
func (h *ThreatHandler) Update(c *gin.Context) {
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

	var threat models.Threat
	if err := h.db.First(&threat, id).Error; err != nil {
		Error(c, apperr.New(apperr.NotFound, "threat not found"))
		return
	}

	updates, changed := pickFields(body, threatPatchFields)
	if len(updates) == 0 {
		Error(c, apperr.New(apperr.BadRequest, "no updatable fields in body"))
		return
	}

	details := map[string]any{"changed": changed}
	if newSeverity, ok := body["severity"].(string); ok && newSeverity != threat.Severity {
		details["severity_from"] = threat.Severity
		details["severity_to"] = newSeverity
	}

	if err := h.db.Model(&threat).Updates(updates).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to update threat", err))
		return
	}

	h.rec.Record(actorID(c), models.ActionUpdate, "threat", &threat.ID, details, middleware.GetRequestID(c))

	c.JSON(http.StatusOK, threat)
}

// Delete removes a threat and returns the deleted row.
func (h *ThreatHandler) Delete(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		Error(c, err)
		return
	}

	var threat models.Threat
	if err := h.db.First(&threat, id).Error; err != nil {
		Error(c, apperr.New(apperr.NotFound, "threat not found"))
		return
	}

	if err := h.db.Delete(&threat).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to delete threat", err))
		return
	}

	h.rec.Record(actorID(c), models.ActionDelete, "threat", &threat.ID,
		map[string]any{"name": threat.Name}, middleware.GetRequestID(c))

	c.JSON(http.StatusOK, threat)
}
