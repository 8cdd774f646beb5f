package panel

import (
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"sarvbot/internal/models"
)

// New constructs the adapter for a panel record. Unknown vendor kinds
// are a configuration error, never silently defaulted.
func New(p *models.Panel, logger *zap.Logger) (Adapter, error) {
	switch p.Type {
	case models.PanelMarzban:
		return NewMarzban(p), nil
	case models.PanelMarzneshin:
		return NewMarzneshin(p), nil
	case models.PanelXUI:
		return NewXUI(p), nil
	case models.PanelSUI:
		return NewSUI(p), nil
	case models.PanelWGDashboard:
		return NewWGDashboard(p, logger), nil
	case models.PanelMikrotik:
		return NewMikrotik(p), nil
	default:
		return nil, fmt.Errorf("unsupported panel type: %s", p.Type)
	}
}

// Registry hands out adapters and reuses instances per panel code so
// session-caching adapters keep their tokens warm across calls. Entries
// age out before any vendor session could have expired twice over.
type Registry struct {
	cache  *gocache.Cache
	logger *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		cache:  gocache.New(45*time.Minute, 10*time.Minute),
		logger: logger,
	}
}

// Get returns a cached adapter for the panel, constructing one on first
// use. The panel must be active.
func (r *Registry) Get(p *models.Panel) (Adapter, error) {
	if !p.IsActive() {
		return nil, fmt.Errorf("panel %s is not active", p.Code)
	}
	if cached, ok := r.cache.Get(p.Code); ok {
		return cached.(Adapter), nil
	}

	adapter, err := New(p, r.logger)
	if err != nil {
		return nil, err
	}
	r.cache.SetDefault(p.Code, adapter)
	return adapter, nil
}

// Invalidate drops the cached adapter for a panel, forcing a fresh
// login on next use. Called after operator edits to panel credentials.
func (r *Registry) Invalidate(code string) {
	r.cache.Delete(code)
}
