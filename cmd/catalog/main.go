package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"Storefront/internal/auth"
	"Storefront/internal/catalog"
	"Storefront/internal/config"
	"Storefront/pkg/kit"
)

func main() {
	service := "catalog"
	cfg := config.Load()

	log := kit.NewLogger(service, cfg.Logger.Level)
	defer func() { _ = log.Sync() }()

	store, closer, err := openStore(context.Background(), cfg.Store)
	if err != nil {
		log.Fatal("open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer func() { _ = closer.Close() }()

	admin := auth.AnyOf{auth.StaticToken{Token: cfg.Admin.Token}}

	var authRoutes *auth.Server
	if cfg.Admin.JWTSecret != "" {
		maker := auth.NewTokenMaker(cfg.Admin.JWTSecret)
		admin = append(admin, auth.JWTRole{Maker: maker})

		authRoutes = &auth.Server{
			Log:        log,
			Store:      auth.NewMemStore(),
			JWT:        maker,
			TokenTTL:   cfg.Admin.TokenTTL,
			TrustProxy: cfg.Server.TrustProxy,
		}
		if err := authRoutes.SeedAdmin(context.Background(), cfg.Admin.Email, cfg.Admin.Password); err != nil {
			log.Fatal("seed admin", zap.Error(err))
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s := &catalog.Server{
		Store:         store,
		Filter:        catalog.NewFilter(cfg.Catalog.Locale),
		Admin:         admin,
		Log:           log,
		MaxImageBytes: cfg.Catalog.MaxImageBytes,
	}
	deps := catalog.HTTPDeps{
		Log:            log,
		Service:        service,
		Registry:       reg,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsToken:   cfg.Metrics.Token,
	}
	if authRoutes != nil {
		deps.Auth = authRoutes.Routes()
	}

	log.Info("catalog starting",
		zap.String("port", cfg.Server.Port),
		zap.String("driver", cfg.Store.Driver),
		zap.Bool("jwt_admin", cfg.Admin.JWTSecret != ""),
	)
	if err := kit.RunHTTPServer(":"+cfg.Server.Port, catalog.NewHandler(s, deps), log); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openStore(ctx context.Context, cfg config.StoreConfig) (catalog.Store, io.Closer, error) {
	switch cfg.Driver {
	case "file", "":
		fs := catalog.NewFileStore(cfg.ProductsFile)
		if cfg.CreateIfMissing {
			if err := fs.Init(); err != nil {
				return nil, nil, err
			}
		}
		return fs, nopCloser{}, nil

	case "bolt":
		bs, err := catalog.OpenBoltStore(cfg.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		return bs, bs, nil

	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, nil, fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		ps := catalog.NewPostgresStore(db)
		if err := ps.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return ps, db, nil

	case "memory":
		return catalog.NewMemStore(), nopCloser{}, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}
