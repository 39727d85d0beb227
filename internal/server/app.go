// Package server initializes and runs the reveal server: metadata database,
// photo service and the HTTP API, with graceful shutdown on OS signals.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/darkroomapp/darkroom/internal/logging"
	"github.com/darkroomapp/darkroom/internal/server/config"
	"github.com/darkroomapp/darkroom/internal/server/httpapi"
	"github.com/darkroomapp/darkroom/internal/server/services"
	"github.com/darkroomapp/darkroom/internal/server/shared/db"
)

type App struct {
	config       *config.Config
	logger       logging.Logger
	photoService *services.PhotoService
}

func NewApp(cfg *config.Config) (*App, error) {
	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	m, err := db.NewPostgresRepositoryManager(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	ps := services.NewPhotoService(m.Photos(), cfg)

	return &App{config: cfg, logger: logger, photoService: ps}, nil
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

	app.logger.Info(ctx, "starting reveal server")

	app.initSignalHandler(cancelFunc)

	s := httpapi.NewServer(app.config.EndpointAddr, app.photoService, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
	}
}
