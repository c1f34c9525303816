package app

import (
	"context"
	"fmt"
	"net/http"

	"gorm.io/gorm"
	"pedigree-chart-go/internal/config"
	"pedigree-chart-go/internal/db"
	pedigreedomain "pedigree-chart-go/internal/domain/pedigree"
	userdomain "pedigree-chart-go/internal/domain/user"
	"pedigree-chart-go/internal/metrics"
	"pedigree-chart-go/internal/repository/inmemory"
	pedigreerepo "pedigree-chart-go/internal/repository/postgres/pedigree"
	userrepo "pedigree-chart-go/internal/repository/postgres/user"
	"pedigree-chart-go/internal/transport/httpserver"
	"pedigree-chart-go/internal/transport/httpserver/handler"
	authmw "pedigree-chart-go/internal/transport/httpserver/middleware"
	"pedigree-chart-go/internal/view"
	"pedigree-chart-go/migrations"
	"pedigree-chart-go/pkg/logger"
	"pedigree-chart-go/web"
)

type App struct {
	cfg        config.Config
	httpServer *http.Server
	db         *gorm.DB
	stop       context.CancelFunc
}

type stores struct {
	charts   pedigreedomain.Repository
	profiles userdomain.Repository
}

func New(log logger.Logger) (*App, error) {
	log.Info("app: loading config")
	cfg, err := config.Load(log)
	if err != nil {
		return nil, err
	}

	var dbConn *gorm.DB
	var repos stores
	switch cfg.Store {
	case config.StoreMemory:
		log.Info("app: using in-memory store")
		repos = stores{charts: inmemory.NewPedigreeStore(), profiles: inmemory.NewProfileStore()}
	default:
		log.Info("app: initializing database")
		dbConn, err = db.NewPostgres(cfg.DB, log)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(dbConn, migrations.FS, log); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		repos = stores{charts: pedigreerepo.NewPostgres(dbConn), profiles: userrepo.NewPostgres(dbConn)}
	}

	log.Info("app: initializing views", "templates_dir", cfg.TemplatesDir)
	views, err := view.New(view.WithBaseDir(cfg.TemplatesDir), view.WithFS(web.Templates()))
	if err != nil {
		return nil, err
	}
	ctx, stop := context.WithCancel(context.Background())
	if cfg.Env == "development" {
		if err := views.Watch(ctx, log); err != nil {
			log.Warn("app: template watcher disabled", "err", err)
		}
	}

	meters := metrics.New()
	charts := pedigreedomain.NewService(repos.charts,
		pedigreedomain.WithRecorder(meters),
		pedigreedomain.WithGenerations(cfg.Generations),
	)
	profiles := userdomain.NewService(repos.profiles)
	identity := authmw.NewIdentity(cfg.Auth, profiles, log)

	log.Info("app: initializing router")
	handlers := handler.New(charts, profiles, views, identity, meters, cfg.SiteURL, log)
	router := httpserver.NewRouter(cfg, handlers, identity, meters.Handler())

	log.Info("app: initializing http server")
	srv := httpserver.New(cfg, router)

	return &App{
		cfg:        cfg,
		httpServer: srv,
		db:         dbConn,
		stop:       stop,
	}, nil
}

func (a *App) HTTPServer() *http.Server {
	return a.httpServer
}

func (a *App) Close() error {
	if a.stop != nil {
		a.stop()
	}
	if a.db == nil {
		return nil
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
