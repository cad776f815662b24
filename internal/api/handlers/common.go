package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/complyard/complyard/internal/apperr"
	"github.com/complyard/complyard/internal/api/middleware"
	"github.com/complyard/complyard/internal/auth"
	"github.com/gin-gonic/gin"
)

// Error is the single terminal error-translation step: every handler funnels
// failures here instead of formatting error responses inline. Unexpected
// errors are logged with their cause but serialized as a generic message.
func Error(c *gin.Context, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Unhandled error",
			"error", err,
			"path", c.Request.URL.Path,
			"request_id", middleware.GetRequestID(c))
	}
	c.JSON(status, gin.H{"error": apperr.Message(err)})
}

// parseID reads the :id route parameter as an unsigned integer.
func parseID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, apperr.New(apperr.BadRequest, "invalid id")
	}
	return uint(id), nil
}

// actorID returns the authenticated principal's id, or nil when the route is
// unauthenticated (system actions).
func actorID(c *gin.Context) *uint {
	claims, err := auth.ClaimsFromContext(c)
	if err != nil {
		return nil
	}
	id := claims.UserID
	return &id
}

// searchQuery reads the mandatory ?q= parameter of search endpoints.
func searchQuery(c *gin.Context) (string, error) {
	q, ok := c.GetQuery("q")
	if !ok || q == "" {
		return "", apperr.New(apperr.BadRequest, "missing search query parameter 'q'")
	}
	return q, nil
}

// patchBody binds an update request body and rejects empty patches before
// any store write happens.
func patchBody(c *gin.Context) (map[string]any, error) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		return nil, apperr.New(apperr.BadRequest, "invalid request body")
	}
	if len(body) == 0 {
		return nil, apperr.New(apperr.BadRequest, "empty update body")
	}
	return body, nil
}

// pickFields filters a patch body down to the entity's updatable columns and
// returns the retained column values plus the sorted-by-request field names.
// Unknown fields are ignored rather than rejected, matching whole-row patch
// semantics where only supplied fields change.
func pickFields(body map[string]any, allowed map[string]string) (map[string]any, []string) {
	updates := make(map[string]any, len(body))
	var changed []string
	for key, value := range body {
		column, ok := allowed[key]
		if !ok {
			continue
		}
		updates[column] = value
		changed = append(changed, key)
	}
	return updates, changed
}

// HealthCheck reports service liveness
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
