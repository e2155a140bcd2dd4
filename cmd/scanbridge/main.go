// cmd/scanbridge/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scanbridge/internal/adminapi"
	"scanbridge/internal/backend"
	"scanbridge/internal/directory"
	"scanbridge/internal/records"
	"scanbridge/internal/relocate"
	"scanbridge/internal/scheduler"
	"scanbridge/internal/token"
	"scanbridge/pkg/config"
	"scanbridge/pkg/db"
	"scanbridge/pkg/logger"
	"scanbridge/pkg/tenants"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)

	pool := db.MustConnect(cfg, log)
	rds := db.MustRedis(cfg, log)

	var reg tenants.Registry
	if pool != nil {
		if err := tenants.EnsureSchema(context.Background(), pool); err != nil {
			log.Fatalw("schema", "err", err)
		}
		if err := tenants.SeedDefault(context.Background(), pool); err != nil {
			log.Warnw("seed", "err", err)
		}
		reg = tenants.NewPostgresRegistry(pool, "default", defaultEndpoints(), cfg.StrictTenantLookup, log)
	} else {
		var err error
		reg, err = tenants.NewFileRegistry(cfg.ConfigPath, cfg.StrictTenantLookup, log)
		if err != nil {
			log.Fatalw("tenant registry", "err", err)
		}
	}

	client := backend.NewClient(cfg.BackendTimeout, log)
	tokens := token.NewManager(reg, client, token.NewMemoryStore(), cfg.TokenSafetyMargin, log)

	extractor, err := extractorFromEnv(log)
	if err != nil {
		log.Fatalw("extractor", "err", err)
	}

	store, err := directory.NewDiskStore(cfg.CacheDir)
	if err != nil {
		log.Fatalw("cache store", "err", err)
	}
	var locker directory.Locker
	if rds != nil {
		locker = directory.NewRedisLocker(rds, 10*time.Minute, log)
	} else {
		locker = directory.NewInprocLocker()
	}
	dir := directory.NewService(store, tokens, client, reg, extractor, locker, cfg.DirectoryMaxAge, cfg.FilterPageSize, log)

	rel := relocate.NewService(reg, tokens, client, log)
	driver := scheduler.NewDriver(reg, dir, cfg.RefreshInterval, log)

	ctx, cancel := context.WithCancel(context.Background())
	go driver.Run(ctx, cfg.RefreshOnStartup)

	app := adminapi.New(log, cfg, reg, tokens, dir, rel, driver, client)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: app.Handler()}
	go func() {
		log.Infow("scanbridge listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	fmt.Println("scanbridge stopped")
}

func extractorFromEnv(log logger.Sugared) (records.Extractor, error) {
	fallback := records.NewHeuristicExtractor()
	jcfg := records.JMESPathConfig{
		IDExpr:       os.Getenv("EXTRACT_ID_EXPR"),
		NameExpr:     os.Getenv("EXTRACT_NAME_EXPR"),
		ChildrenExpr: os.Getenv("EXTRACT_CHILDREN_EXPR"),
	}
	if jcfg.IDExpr == "" && jcfg.NameExpr == "" && jcfg.ChildrenExpr == "" {
		return fallback, nil
	}
	return records.NewJMESPathExtractor(jcfg, fallback, log)
}

// defaultEndpoints supplies the shared URLs for the Postgres registry, which
// stores per-tenant overrides only.
func defaultEndpoints() tenants.Endpoints {
	get := func(k, def string) string {
		if v := os.Getenv(k); v != "" {
			return v
		}
		return def
	}
	return tenants.Endpoints{
		RefreshURL:     get("DEFAULT_REFRESH_URL", "https://core-production.alchemy.cloud/core/api/v2/refresh-token"),
		UpdateURL:      get("DEFAULT_UPDATE_URL", "https://core-production.alchemy.cloud/core/api/v2/update-record"),
		FilterURL:      get("DEFAULT_FILTER_URL", "https://core-production.alchemy.cloud/core/api/v2/filter-records"),
		FindRecordsURL: get("DEFAULT_FIND_RECORDS_URL", "https://core-production.alchemy.cloud/core/api/v2/find-records"),
		BaseURL:        get("DEFAULT_BASE_URL", "https://app.alchemy.cloud/"),
	}
}
