package rbac

import (
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelConf string

var enforcer *casbin.Enforcer

// InitEnforcer initializes the Casbin enforcer backed by the database and
// loads the declarative policy table into it. Seeding is idempotent; existing
// rows are left alone.
func InitEnforcer(db *gorm.DB, logger *slog.Logger) error {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return fmt.Errorf("failed to create casbin adapter: %w", err)
	}

	m, err := model.NewModelFromString(modelConf)
	if err != nil {
		return fmt.Errorf("failed to parse casbin model: %w", err)
	}

	e, err := casbin.NewEnforcer(m, adapter)
	if err != nil {
		return fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	if err := e.LoadPolicy(); err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}

	for _, link := range roleInheritance {
		if _, err := e.AddGroupingPolicy(link[0], link[1]); err != nil {
			return fmt.Errorf("failed to add role inheritance %v: %w", link, err)
		}
	}
	for _, p := range policies {
		if _, err := e.AddPolicy(p.Role, p.Resource, p.Action); err != nil {
			return fmt.Errorf("failed to add policy %+v: %w", p, err)
		}
	}
	if err := e.SavePolicy(); err != nil {
		return fmt.Errorf("failed to persist policies: %w", err)
	}

	enforcer = e
	logger.Info("RBAC enforcer initialized", "policies", len(policies))
	return nil
}

// Can reports whether the given role may perform action on resource.
func Can(role, resource, action string) (bool, error) {
	if enforcer == nil {
		return false, fmt.Errorf("rbac enforcer not initialized")
	}
	return enforcer.Enforce(role, resource, action)
}
