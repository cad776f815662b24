package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/complyard/complyard/internal/auth"
	"github.com/complyard/complyard/internal/models"
	"github.com/complyard/complyard/internal/rbac"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupRBAC(t *testing.T) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := rbac.InitEnforcer(db, slog.Default()); err != nil {
		t.Fatalf("failed to init enforcer: %v", err)
	}
}

// routerWithRole wires a fake authentication stage that injects claims for
// the given role, followed by the authorize middleware and a counter handler.
func routerWithRole(role string, resource, action string, handlerCalls *int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/probe",
		func(c *gin.Context) {
			if role != "" {
				c.Set(auth.ClaimsContextKey, &auth.Claims{UserID: 1, Role: role})
			}
			c.Next()
		},
		Authorize(resource, action),
		func(c *gin.Context) {
			*handlerCalls++
			c.Status(http.StatusOK)
		},
	)
	return r
}

func TestAuthorize_InsufficientRoleNeverReachesHandler(t *testing.T) {
	setupRBAC(t)

	calls := 0
	r := routerWithRole(models.RoleUser, rbac.ResourceUsers, rbac.ActionWrite, &calls)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))

	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
	if calls != 0 {
		t.Errorf("handler must not run, was called %d times", calls)
	}
}

func TestAuthorize_SufficientRole(t *testing.T) {
	setupRBAC(t)

	calls := 0
	r := routerWithRole(models.RoleAdmin, rbac.ResourceUsers, rbac.ActionWrite, &calls)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))

	if w.Code != http.StatusOK || calls != 1 {
		t.Errorf("expected handler to run once, status %d calls %d", w.Code, calls)
	}
}

func TestAuthorize_NoClaimsIs401Not403(t *testing.T) {
	setupRBAC(t)

	calls := 0
	r := routerWithRole("", rbac.ResourceRisks, rbac.ActionRead, &calls)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without identity, got %d", w.Code)
	}
	if calls != 0 {
		t.Error("handler must not run without identity")
	}
}
