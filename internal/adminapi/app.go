package adminapi

import (
	"github.com/lestrrat-go/jwx/v2/jwk"
	"go.uber.org/zap"

	"scanbridge/internal/backend"
	"scanbridge/internal/directory"
	"scanbridge/internal/relocate"
	"scanbridge/internal/scheduler"
	"scanbridge/internal/token"
	"scanbridge/pkg/config"
	"scanbridge/pkg/tenants"
)

// App is the HTTP application container. Handlers and middleware have
// methods on this type.
//
// Keep it lean: shared deps and config only.
// Request-scoped work should use context.
type App struct {
	log       *zap.SugaredLogger
	cfg       config.Config
	reg       tenants.Registry
	tokens    *token.Manager
	dir       *directory.Service
	rel       *relocate.Service
	driver    *scheduler.Driver
	client    *backend.Client
	adminJWKS jwk.Set
}

func New(log *zap.SugaredLogger, cfg config.Config, reg tenants.Registry, tokens *token.Manager,
	dir *directory.Service, rel *relocate.Service, driver *scheduler.Driver, client *backend.Client) *App {
	app := &App{
		log: log, cfg: cfg, reg: reg, tokens: tokens,
		dir: dir, rel: rel, driver: driver, client: client,
	}
	if cfg.AdminJWKSURL != "" {
		app.adminJWKS = mustJWKS(cfg.AdminJWKSURL)
	}
	return app
}
