package daemon

import (
	"context"
	"time"

	"github.com/matheus3301/recap/internal/api"
	"github.com/matheus3301/recap/internal/bus"
	"github.com/matheus3301/recap/internal/chatstore"
	"github.com/matheus3301/recap/internal/config"
	"github.com/matheus3301/recap/internal/engine"
	"github.com/matheus3301/recap/internal/history"
	"github.com/matheus3301/recap/internal/kv"
	"github.com/matheus3301/recap/internal/lock"
	"github.com/matheus3301/recap/internal/logging"
	"github.com/matheus3301/recap/internal/session"
	"github.com/matheus3301/recap/internal/status"
	"github.com/matheus3301/recap/internal/summarize"
	intsync "github.com/matheus3301/recap/internal/sync"
	"github.com/matheus3301/recap/internal/wa"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	SocketPath  string // optional override for testing; empty = use default
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideMirror,
			provideHistory,
			provideAdapter,
			provideSyncEngine,
			provideEngineClient,
			provideSelector,
			provideCollector,
			provideSender,
			provideCoordinator,
			provideScheduler,
			provideServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig() (*config.Config, error) {
	return config.Load(session.ConfigPath())
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
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

func provideMirror(p Params, logger *zap.Logger) (*chatstore.DB, error) {
	dbPath := session.MirrorDBPath(p.SessionName)
	db, err := chatstore.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("mirror store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideHistory(p Params, logger *zap.Logger) (*history.Manager, error) {
	store, err := kv.Open(session.HistoryDBPath(p.SessionName))
	if err != nil {
		return nil, err
	}
	mgr, err := history.NewManager(store, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return mgr, nil
}

func provideAdapter(p Params, b *bus.Bus, logger *zap.Logger) (*wa.Adapter, error) {
	return wa.NewAdapter(context.Background(), p.SessionName, b, logger)
}

func provideSyncEngine(db *chatstore.DB, b *bus.Bus, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(db, b, logger)
}

func provideEngineClient(db *chatstore.DB, adapter *wa.Adapter, logger *zap.Logger) engine.Client {
	return engine.NewStoreClient(db, adapter, logger)
}

func provideSelector(cfg *config.Config, client engine.Client, logger *zap.Logger) *summarize.Selector {
	s := cfg.Summarizer
	return summarize.NewSelector(client, s.GroupMemberThreshold, s.FetchTimeout(), logger)
}

func provideCollector(cfg *config.Config, client engine.Client, logger *zap.Logger) *summarize.Collector {
	s := cfg.Summarizer
	return summarize.NewCollector(client, s.MessageWindow, s.Lookback(), s.FetchTimeout(), logger)
}

func provideSender(cfg *config.Config, logger *zap.Logger) summarize.Sender {
	s := cfg.Summarizer
	return summarize.NewClient(s.Endpoint, s.RequestTimeout(), logger)
}

func provideCoordinator(
	cfg *config.Config,
	selector *summarize.Selector,
	collector *summarize.Collector,
	sender summarize.Sender,
	hist *history.Manager,
	b *bus.Bus,
	logger *zap.Logger,
) *summarize.Coordinator {
	s := cfg.Summarizer
	return summarize.NewCoordinator(selector, collector, sender, hist, b, s.RetryAttempts, s.RetryDelay(), logger)
}

func provideScheduler(cfg *config.Config, coordinator *summarize.Coordinator, logger *zap.Logger) *summarize.Scheduler {
	interval := time.Duration(cfg.Summarizer.PollIntervalSecs) * time.Second
	return summarize.NewScheduler(coordinator, interval, logger)
}

func provideServer(
	p Params,
	coordinator *summarize.Coordinator,
	hist *history.Manager,
	machine *status.Machine,
	adapter *wa.Adapter,
	logger *zap.Logger,
) (*api.Server, error) {
	socketPath := p.SocketPath
	if socketPath == "" {
		socketPath = session.SocketPath(p.SessionName)
	}
	handler := api.NewHandler(coordinator, hist, machine, adapter, logger)
	return api.NewServer(socketPath, handler.Router(), logger)
}

func registerLifecycle(
	lc fx.Lifecycle,
	srv *api.Server,
	lk *lock.Lock,
	adapter *wa.Adapter,
	syncEngine *intsync.Engine,
	scheduler *summarize.Scheduler,
	machine *status.Machine,
	b *bus.Bus,
	logger *zap.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Start sync engine (subscribes to wa.* bus events).
			syncEngine.Start(context.Background())

			// Register event handler for whatsmeow events.
			handler := wa.NewEventHandler(b, machine, logger)
			adapter.RegisterEventHandler(handler.Handle)

			// Start API server in background.
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("API server error", zap.Error(err))
				}
			}()

			// Start the periodic summarization loop, if configured.
			scheduler.Start(context.Background())

			// Transition state based on auth status.
			if adapter.IsLoggedIn() {
				_ = machine.Transition(status.Connecting)
				go func() {
					if err := adapter.Connect(); err != nil {
						logger.Error("auto-connect failed", zap.Error(err))
						_ = machine.Transition(status.Error)
					}
				}()
			} else {
				logger.Info("no credentials found, auth required")
				_ = machine.Transition(status.AuthRequired)
			}

			return nil
		},
		OnStop: func(ctx context.Context) error {
			scheduler.Stop()
			syncEngine.Stop()
			adapter.Disconnect()
			srv.Stop(ctx)
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
