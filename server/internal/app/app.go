package app

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Rajthegreat123/strikas/server/internal/auth"
	"github.com/Rajthegreat123/strikas/server/internal/config"
	"github.com/Rajthegreat123/strikas/server/internal/httpapi"
	"github.com/Rajthegreat123/strikas/server/internal/lobby"
	"github.com/Rajthegreat123/strikas/server/internal/match"
	"github.com/Rajthegreat123/strikas/server/internal/metrics"
	"github.com/Rajthegreat123/strikas/server/internal/netws"
	"github.com/Rajthegreat123/strikas/server/internal/room"
	"github.com/Rajthegreat123/strikas/server/internal/session"
	"github.com/Rajthegreat123/strikas/server/internal/store"
)

type App struct {
	cfg        config.Config
	log        *zap.Logger
	store      *store.Store
	metrics    *metrics.Metrics
	sessions   *session.Registry
	rooms      *room.Registry
	lobbies    *lobby.Manager
	matches    *match.Manager
	netServer  *netws.Server
	httpServer *http.Server
}

func New(cfg config.Config) (*App, error) {
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	metricsSrv := metrics.NewMetrics()
	storeSrv, err := store.NewStore(cfg, log)
	if err != nil {
		return nil, err
	}

	authMgr := auth.NewManager(cfg.JWTSecret, cfg.TokenTTL)
	sessions := session.NewRegistry(metricsSrv, log)
	rooms := room.NewRegistry(sessions, log)
	lobbies := lobby.NewManager(storeSrv.Rooms, rooms, log)
	matches := match.NewManager(storeSrv.Rooms, storeSrv.Users, storeSrv.Idem, rooms, metricsSrv, log)

	netServer := netws.NewServer(cfg, log, metricsSrv, authMgr, storeSrv.Users, sessions, rooms, lobbies, matches)
	api := httpapi.New(authMgr, storeSrv.Users, lobbies, log)

	router := api.Router()
	router.Handle("/ws", netServer)
	router.Handle("/metrics", metrics.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	httpServer := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
	}

	return &App{
		cfg:        cfg,
		log:        log,
		store:      storeSrv,
		metrics:    metricsSrv,
		sessions:   sessions,
		rooms:      rooms,
		lobbies:    lobbies,
		matches:    matches,
		netServer:  netServer,
		httpServer: httpServer,
	}, nil
}

func (a *App) Run() error {
	a.log.Info("server start", zap.String("addr", a.cfg.HTTPAddr))
	err := a.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	a.store.Close()
	return a.httpServer.Shutdown(ctx)
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
