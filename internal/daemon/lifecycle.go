package daemon

import (
	"context"

	"github.com/pedrohba/convo/internal/admin"
	"github.com/pedrohba/convo/internal/bus"
	"github.com/pedrohba/convo/internal/cache"
	"github.com/pedrohba/convo/internal/lock"
	"github.com/pedrohba/convo/internal/optimistic"
	"github.com/pedrohba/convo/internal/page"
	"github.com/pedrohba/convo/internal/push"
	"github.com/pedrohba/convo/internal/reconcile"
	"github.com/pedrohba/convo/internal/status"
	"github.com/pedrohba/convo/internal/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// hydrateLimit is how many cached messages per channel are loaded into
// the in-memory stores at startup.
const hydrateLimit = 100

func registerLifecycle(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	lk *lock.Lock,
	db *cache.DB,
	stores *store.Registry,
	engine *reconcile.Engine,
	manager *optimistic.Manager,
	loader *page.Loader,
	pushClient *push.Client,
	machine *status.Machine,
	srv *admin.Server,
	b *bus.Bus,
	logger *zap.Logger,
) {
	backfillCtx, cancelBackfill := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			engine.SetAbsorber(manager)

			// Warm-start: show cached history before the first fetch.
			if err := hydrate(db, engine, logger); err != nil {
				logger.Warn("cache hydration failed", zap.Error(err))
			}

			engine.Start(context.Background())

			_ = machine.Transition(status.Connecting)
			pushClient.Start(context.Background())

			// Refresh known channels whenever the transport (re)connects
			// so messages that arrived while disconnected are healed.
			go backfillOnConnect(backfillCtx, b, stores, loader, machine, logger)

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("admin server failed", zap.Error(err))
					_ = shutdowner.Shutdown()
				}
			}()

			logger.Info("daemon started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("daemon stopping")
			cancelBackfill()
			srv.Stop(ctx)
			pushClient.Stop()
			engine.Stop()
			if err := db.Close(); err != nil {
				logger.Error("cache close failed", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Error("lock release failed", zap.Error(err))
			}
			_ = logger.Sync()
			return nil
		},
	})
}

func hydrate(db *cache.DB, engine *reconcile.Engine, logger *zap.Logger) error {
	channels, err := db.Channels()
	if err != nil {
		return err
	}
	total := 0
	for _, ch := range channels {
		msgs, err := db.ListMessages(ch, 0, hydrateLimit)
		if err != nil {
			return err
		}
		for _, m := range msgs {
			engine.Ingest(m)
		}
		total += len(msgs)
	}
	if total > 0 {
		logger.Info("cache hydrated", zap.Int("channels", len(channels)), zap.Int("messages", total))
	}
	return nil
}

func backfillOnConnect(ctx context.Context, b *bus.Bus, stores *store.Registry, loader *page.Loader, machine *status.Machine, logger *zap.Logger) {
	ch, unsub := b.Subscribe(bus.KindPushConnected, 4)
	defer unsub()

	for {
		select {
		case <-ch:
			for _, channelID := range stores.Channels() {
				if _, err := loader.Refresh(ctx, channelID); err != nil {
					logger.Warn("backfill refresh failed",
						zap.String("channel", channelID), zap.Error(err))
				}
			}
			// A quiet workspace produces no push events; the refresh
			// above is what moves the daemon to live then.
			if machine.Current() == status.Backfilling {
				_ = machine.Transition(status.Live)
			}
		case <-ctx.Done():
			return
		}
	}
}
