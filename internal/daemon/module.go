package daemon

import (
	"context"

	"github.com/matheus3301/wprelay/internal/api"
	"github.com/matheus3301/wprelay/internal/bus"
	"github.com/matheus3301/wprelay/internal/config"
	"github.com/matheus3301/wprelay/internal/httpapi"
	"github.com/matheus3301/wprelay/internal/lock"
	"github.com/matheus3301/wprelay/internal/logging"
	"github.com/matheus3301/wprelay/internal/logring"
	"github.com/matheus3301/wprelay/internal/metrics"
	"github.com/matheus3301/wprelay/internal/relay"
	"github.com/matheus3301/wprelay/internal/session"
	"github.com/matheus3301/wprelay/internal/store"
	"github.com/matheus3301/wprelay/internal/wa"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc/health"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	Version     string
	// Autostart starts the relay session as soon as the daemon is up.
	Autostart bool

	// Overrides for testing; zero values use the session defaults.
	SocketPath string
	HTTPAddr   string
	Config     *config.Config
	Logger     *zap.Logger
	Factory    relay.ClientFactory
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideMetrics,
			provideLock,
			provideStore,
			provideManager,
			provideLogRing,
			provideRelayService,
			provideHealth,
			NewServer,
			provideHTTPServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	if p.Config != nil {
		return p.Config, nil
	}
	return config.LoadEffective(session.ConfigPath())
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	if p.Logger != nil {
		return p.Logger, nil
	}
	return logging.New(session.LogPath(p.SessionName), p.SessionName, cfg.LogLevel)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideMetrics() *metrics.Metrics {
	return metrics.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

// provideStore depends on the lock so the database is never opened by two
// daemons.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.StoreDBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("from", result.From), zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideManager(p Params, cfg *config.Config, db *store.DB, b *bus.Bus, logger *zap.Logger, mt *metrics.Metrics) *relay.Manager {
	factory := p.Factory
	if factory == nil {
		factory = wa.NewFactory()
	}
	rc := cfg.RelayConfig(session.Dir(p.SessionName), p.Version)
	return relay.NewManager(rc, factory, db, b, logger.Named("relay"), mt)
}

func provideLogRing(cfg *config.Config) *logring.Ring {
	return logring.New(cfg.HTTP.LogBuffer)
}

func provideRelayService(m *relay.Manager, b *bus.Bus, logs *logring.Ring, logger *zap.Logger) *api.RelayService {
	return api.NewRelayService(m, b, logs, logger.Named("api"))
}

func provideHealth(m *relay.Manager) *health.Server {
	return api.NewHealthServer(m.Status().Status)
}

func provideHTTPServer(p Params, cfg *config.Config, m *relay.Manager, db *store.DB, logs *logring.Ring, mt *metrics.Metrics, logger *zap.Logger) (*httpapi.Server, error) {
	addr := p.HTTPAddr
	if addr == "" {
		addr = cfg.HTTP.Addr
	}
	router := httpapi.NewRouter(httpapi.Deps{
		Relay:   m,
		Store:   db,
		Logs:    logs,
		Metrics: mt.Handler(),
		Logger:  logger.Named("http"),
	})
	return httpapi.NewServer(addr, router, logger)
}

func registerLifecycle(lc fx.Lifecycle, p Params, srv *Server, httpSrv *httpapi.Server, relaySvc *api.RelayService, hs *health.Server, lk *lock.Lock, db *store.DB, m *relay.Manager, logs *logring.Ring, b *bus.Bus, logger *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go logs.Run(ctx, b)
			api.ReportHealth(ctx, hs, b)

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()
			go func() {
				if err := httpSrv.Start(); err != nil {
					logger.Error("http server error", zap.Error(err))
				}
			}()

			if p.Autostart {
				go func() {
					if _, err := m.Start(ctx); err != nil {
						logger.Error("relay autostart failed", zap.Error(err))
					}
				}()
			} else {
				logger.Info("relay idle; start it with relayctl start")
			}
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			if _, err := m.Stop(stopCtx); err != nil {
				logger.Warn("error stopping relay", zap.Error(err))
			}
			relaySvc.Close()
			cancel()
			httpSrv.Stop(stopCtx)
			srv.Stop(stopCtx)
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
