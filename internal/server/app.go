// Package server initializes and runs the sync server: it opens the
// database, applies migrations, wires the services together and serves the
// REST API until shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/offpay/chainsync/internal/logging"
	"github.com/offpay/chainsync/internal/server/config"
	"github.com/offpay/chainsync/internal/server/httpapi"
	"github.com/offpay/chainsync/internal/server/repositories/repomanager"
	"github.com/offpay/chainsync/internal/server/services"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	http   *httpapi.Server
}

func NewApp(cfg *config.Config) (*App, error) {

	logger := logging.NewJSONLogger(os.Stdout)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	m, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	if err := m.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	syncSvc := services.NewSyncService(db, m, cfg, logger)
	conflictSvc := services.NewConflictService(db, m, logger)
	operatorSvc := services.NewOperatorService(db, m, cfg)
	deviceSvc := services.NewDeviceService(db, m)
	auditSvc := services.NewAuditService(db, m, cfg)

	httpServer := httpapi.NewServer(cfg, logger, syncSvc, conflictSvc, operatorSvc, deviceSvc, auditSvc)

	return &App{config: cfg, logger: logger, db: db, http: httpServer}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting sync server")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.http.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "closing db", "error", err.Error())
	}
}
