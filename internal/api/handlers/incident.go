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

// IncidentHandler serves incident reports.
type IncidentHandler struct {
	db  *gorm.DB
	rec *audit.Recorder
}

// NewIncidentHandler creates the incident handler.
func NewIncidentHandler(db *gorm.DB, rec *audit.Recorder) *IncidentHandler {
	return &IncidentHandler{db: db, rec: rec}
}

var incidentPatchFields = map[string]string{
	"title":       "title",
	"description": "description",
	"severity":    "severity",
	"status":      "status",
	"occurred_at": "occurred_at",
	"resolved_at": "resolved_at",
	"owner_id":    "owner_id",
}

type createIncidentRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Status      string `json:"status"`
	OwnerID     *uint  `json:"owner_id"`
}

// List returns all incidents.
func (h *IncidentHandler) List(c *gin.Context) {
	var incidents []models.Incident
	if err := h.db.Preload("Owner").Find(&incidents).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to fetch incidents", err))
		return
	}
	if len(incidents) == 0 {
		Error(c, apperr.New(apperr.NotFound, "no incidents found"))
		return
	}
	c.JSON(http.StatusOK, incidents)
}

// Search returns incidents matching ?q= in title or description.
func (h *IncidentHandler) Search(c *gin.Context) {
	q, err := searchQuery(c)
	if err != nil {
		Error(c, err)
		return
	}

	pattern := "%" + strings.ToLower(q) + "%"
	var incidents []models.Incident
	if err := h.db.Preload("Owner").
		Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern).
		Find(&incidents).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to search incidents", err))
		return
	}
	if len(incidents) == 0 {
		Error(c, apperr.Newf(apperr.NotFound, "no incidents matching %q", q))
		return
	}
	c.JSON(http.StatusOK, incidents)
}

// Get returns one incident by id.
func (h *IncidentHandler) Get(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		Error(c, err)
		return
	}

	var incident models.Incident
	if err := h.db.Preload("Owner").First(&incident, id).Error; err != nil {
		Error(c, apperr.New(apperr.NotFound, "incident not found"))
		return
	}
	c.JSON(http.StatusOK, incident)
}

// Create inserts a new incident.
func (h *IncidentHandler) Create(c *gin.Context) {
	var req createIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, apperr.New(apperr.BadRequest, "title is required"))
		return
	}

	incident := models.Incident{
		Title:       req.Title,
		Description: req.Description,
		Severity:    req.Severity,
		Status:      req.Status,
		OwnerID:     req.OwnerID,
	}

	if err := h.db.Create(&incident).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to create incident", err))
		return
	}

	h.rec.Record(actorID(c), models.ActionCreate, "incident", &incident.ID,
		map[string]any{"title": incident.Title}, middleware.GetRequestID(c))

	c.JSON(http.StatusCreated, incident)
}

// Update patches only the supplied fields.
func (h *IncidentHandler) Update(c *gin.Context) {
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

	var incident models.Incident
	if err := h.db.First(&incident, id).Error; err != nil {
		Error(c, apperr.New(apperr.NotFound, "incident not found"))
		return
	}

	updates, changed := pickFields(body, incidentPatchFields)
	if len(updates) == 0 {
		Error(c, apperr.New(apperr.BadRequest, "no updatable fields in body"))
		return
	}

	details := map[string]any{"changed": changed}
	if newSeverity, ok := body["severity"].(string); ok && newSeverity != incident.Severity {
		details["severity_from"] = incident.Severity
		details["severity_to"] = newSeverity
	}

	if err := h.db.Model(&incident).Updates(updates).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to update incident", err))
		return
	}

	h.rec.Record(actorID(c), models.ActionUpdate, "incident", &incident.ID, details, middleware.GetRequestID(c))

	c.JSON(http.StatusOK, incident)
}

// Delete removes an incident and returns the deleted row.
func (h *IncidentHandler) Delete(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		Error(c, err)
		return
	}

	var incident models.Incident
	if err := h.db.First(&incident, id).Error; err != nil {
		Error(c, apperr.New(apperr.NotFound, "incident not found"))
		return
	}

	if err := h.db.Delete(&incident).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to delete incident", err))
		return
	}

	h.rec.Record(actorID(c), models.ActionDelete, "incident", &incident.ID,
		map[string]any{"title": incident.Title}, middleware.GetRequestID(c))

	c.JSON(http.StatusOK, incident)
}
