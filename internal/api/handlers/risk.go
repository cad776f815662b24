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

// RiskHandler serves the risk register.
type RiskHandler struct {
	db  *gorm.DB
	rec *audit.Recorder
}

// NewRiskHandler creates the risk handler.
func NewRiskHandler(db *gorm.DB, rec *audit.Recorder) *RiskHandler {
	return &RiskHandler{db: db, rec: rec}
}

// riskPatchFields maps patchable JSON fields to their columns.
var riskPatchFields = map[string]string{
	"title":           "title",
	"description":     "description",
	"category":        "category",
	"severity":        "severity",
	"likelihood":      "likelihood",
	"impact":          "impact",
	"status":          "status",
	"mitigation_plan": "mitigation_plan",
	"owner_id":        "owner_id",
}

type createRiskRequest struct {
	Title          string `json:"title" binding:"required"`
	Description    string `json:"description"`
	Category       string `json:"category"`
	Severity       string `json:"severity"`
	Likelihood     string `json:"likelihood"`
	Impact         string `json:"impact"`
	Status         string `json:"status"`
	MitigationPlan string `json:"mitigation_plan"`
	OwnerID        *uint  `json:"owner_id"`
}

// List returns all risks. An empty register is a 404 with a message so
// clients can distinguish "no data yet" from a wrong route.
func (h *RiskHandler) List(c *gin.Context) {
	var risks []models.Risk
	if err := h.db.Preload("Owner").Find(&risks).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to fetch risks", err))
		return
	}
	if len(risks) == 0 {
		Error(c, apperr.New(apperr.NotFound, "no risks found"))
		return
	}
	c.JSON(http.StatusOK, risks)
}

// Search returns risks whose title or description contains ?q=
// case-insensitively.
func (h *RiskHandler) Search(c *gin.Context) {
	q, err := searchQuery(c)
	if err != nil {
		Error(c, err)
		return
	}

	pattern := "%" + strings.ToLower(q) + "%"
	var risks []models.Risk
	if err := h.db.Preload("Owner").
		Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern).
		Find(&risks).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to search risks", err))
		return
	}
	if len(risks) == 0 {
		Error(c, apperr.Newf(apperr.NotFound, "no risks matching %q", q))
		return
	}
	c.JSON(http.StatusOK, risks)
}

// Get returns one risk by id.
func (h *RiskHandler) Get(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		Error(c, err)
		return
	}

	var risk models.Risk
	if err := h.db.Preload("Owner").First(&risk, id).Error; err != nil {
		Error(c, apperr.New(apperr.NotFound, "risk not found"))
		return
	}
	c.JSON(http.StatusOK, risk)
}

// Create inserts a new risk and records a CREATE audit entry.
func (h *RiskHandler) Create(c *gin.Context) {
	var req createRiskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, apperr.New(apperr.BadRequest, "title is required"))
		return
	}

	risk := models.Risk{
		Title:          req.Title,
		Description:    req.Description,
		Category:       req.Category,
		Severity:       req.Severity,
		Likelihood:     req.Likelihood,
		Impact:         req.Impact,
		Status:         req.Status,
		MitigationPlan: req.MitigationPlan,
		OwnerID:        req.OwnerID,
	}

	if err := h.db.Create(&risk).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to create risk", err))
		return
	}

	h.rec.Record(actorID(c), models.ActionCreate, "risk", &risk.ID,
		map[string]any{"title": risk.Title}, middleware.GetRequestID(c))

	c.JSON(http.StatusCreated, risk)
}

// Update patches only the supplied fields. The audit entry lists changed
// field names, not values; severity transitions are the one surfaced
// before/after pair.
func (h *RiskHandler) Update(c *gin.Context) {
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

	var risk models.Risk
	if err := h.db.First(&risk, id).Error; err != nil {
		Error(c, apperr.New(apperr.NotFound, "risk not found"))
		return
	}

	updates, changed := pickFields(body, riskPatchFields)
	if len(updates) == 0 {
		Error(c, apperr.New(apperr.BadRequest, "no updatable fields in body"))
		return
	}

	details := map[string]any{"changed": changed}
	if newSeverity, ok := body["severity"].(string); ok && newSeverity != risk.Severity {
		details["severity_from"] = risk.Severity
		details["severity_to"] = newSeverity
	}

	if err := h.db.Model(&risk).Updates(updates).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to update risk", err))
		return
	}

	h.rec.Record(actorID(c), models.ActionUpdate, "risk", &risk.ID, details, middleware.GetRequestID(c))

	c.JSON(http.StatusOK, risk)
}

// Delete removes a risk and returns the deleted row for confirmation.
func (h *RiskHandler) Delete(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		Error(c, err)
		return
	}

	var risk models.Risk
	if err := h.db.First(&risk, id).Error; err != nil {
		Error(c, apperr.New(apperr.NotFound, "risk not found"))
		return
	}

	if err := h.db.Delete(&risk).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to delete risk", err))
		return
	}

	h.rec.Record(actorID(c), models.ActionDelete, "risk", &risk.ID,
		map[string]any{"title": risk.Title}, middleware.GetRequestID(c))

	c.JSON(http.StatusOK, risk)
}
