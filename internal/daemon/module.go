package daemon

import (
	"fmt"
	"time"

	"github.com/pedrohba/convo/internal/admin"
	"github.com/pedrohba/convo/internal/bus"
	"github.com/pedrohba/convo/internal/cache"
	"github.com/pedrohba/convo/internal/config"
	"github.com/pedrohba/convo/internal/lock"
	"github.com/pedrohba/convo/internal/logging"
	"github.com/pedrohba/convo/internal/metrics"
	"github.com/pedrohba/convo/internal/model"
	"github.com/pedrohba/convo/internal/optimistic"
	"github.com/pedrohba/convo/internal/page"
	"github.com/pedrohba/convo/internal/presence"
	"github.com/pedrohba/convo/internal/push"
	"github.com/pedrohba/convo/internal/reconcile"
	"github.com/pedrohba/convo/internal/rest"
	"github.com/pedrohba/convo/internal/session"
	"github.com/pedrohba/convo/internal/status"
	"github.com/pedrohba/convo/internal/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	ConfigPath  string // optional override for testing; empty = global path
}

// Module returns the fx module for the daemon, composing all providers
// and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideCache,
			provideStores,
			provideMetrics,
			providePresence,
			provideRESTClient,
			provideManager,
			provideEngine,
			provideLoader,
			providePushClient,
			provideAdminServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	path := p.ConfigPath
	if path == "" {
		path = session.ConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
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

func provideCache(p Params, logger *zap.Logger) (*cache.DB, error) {
	dbPath := session.CacheDBPath(p.SessionName)
	db, err := cache.Open(dbPath)
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
	logger.Info("cache initialized", zap.String("path", dbPath))
	return db, nil
}

func provideStores() *store.Registry {
	return store.NewRegistry()
}

func provideMetrics(stores *store.Registry) *metrics.Set {
	return metrics.New(func() float64 {
		total := 0
		for _, id := range stores.Channels() {
			total += stores.Channel(id).Len()
		}
		return float64(total)
	})
}

func providePresence(cfg *config.Config) *presence.Tracker {
	return presence.NewTracker(cfg.TypingTTL())
}

func provideRESTClient(cfg *config.Config) *rest.Client {
	return rest.NewClient(cfg.Server.BaseURL, cfg.Server.Token)
}

func provideManager(stores *store.Registry, client *rest.Client, engine *reconcile.Engine, b *bus.Bus, m *metrics.Set, cfg *config.Config, logger *zap.Logger) *optimistic.Manager {
	self := optimistic.Identity{
		UserID: cfg.Server.UserID,
		Role:   model.RoleMember,
	}
	return optimistic.NewManager(stores, client, engine, b, m, self, cfg.MatchWindow(), logger)
}

func provideEngine(stores *store.Registry, typing *presence.Tracker, db *cache.DB, b *bus.Bus, m *metrics.Set, logger *zap.Logger) *reconcile.Engine {
	return reconcile.NewEngine(stores, typing, db, nil, b, m, logger)
}

func provideLoader(stores *store.Registry, client *rest.Client, engine *reconcile.Engine, m *metrics.Set, cfg *config.Config, logger *zap.Logger) *page.Loader {
	return page.NewLoader(stores, client, engine, m, cfg.Chat.PageSize, logger)
}

func providePushClient(cfg *config.Config, b *bus.Bus, machine *status.Machine, m *metrics.Set, logger *zap.Logger) *push.Client {
	return push.NewClient(push.Options{
		URL:               cfg.Push.URL,
		Token:             cfg.Server.Token,
		ReconnectBase:     time.Duration(cfg.Push.ReconnectBaseMs) * time.Millisecond,
		ReconnectMax:      time.Duration(cfg.Push.ReconnectMaxMs) * time.Millisecond,
		MaxReconnectTries: cfg.Push.MaxReconnectTries,
	}, b, machine, m, logger)
}

func provideAdminServer(p Params, cfg *config.Config, stores *store.Registry, typing *presence.Tracker, machine *status.Machine, loader *page.Loader, m *metrics.Set, logger *zap.Logger) (*admin.Server, error) {
	return admin.NewServer(cfg.Admin.Addr, admin.Deps{
		Session: p.SessionName,
		Stores:  stores,
		Typing:  typing,
		Machine: machine,
		Loader:  loader,
		Metrics: m,
	}, logger)
}
