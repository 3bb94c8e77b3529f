// Package app composes the client: state containers, caches, the backend
// link and the terminal shell, wired through fx.
package app

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/matheus3301/wppview/internal/backend/ipc"
	"github.com/matheus3301/wppview/internal/bus"
	"github.com/matheus3301/wppview/internal/cache"
	"github.com/matheus3301/wppview/internal/config"
	"github.com/matheus3301/wppview/internal/directory"
	"github.com/matheus3301/wppview/internal/lock"
	"github.com/matheus3301/wppview/internal/logging"
	"github.com/matheus3301/wppview/internal/outbox"
	"github.com/matheus3301/wppview/internal/session"
	"github.com/matheus3301/wppview/internal/status"
	intsync "github.com/matheus3301/wppview/internal/sync"
	"github.com/matheus3301/wppview/internal/timeline"
	"github.com/matheus3301/wppview/internal/tui"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	SocketPath  string // optional override; empty = per-session default
}

// Module returns the fx module for the client, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("wppview",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideCacheDB,
			provideMedia,
			provideSentMedia,
			provideResolver,
			provideBackendClient,
			provideDirectory,
			provideTimeline,
			provideSender,
			provideSyncEngine,
			provideApp,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) *config.Config {
	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		return config.Default()
	}
	return cfg
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

func provideCacheDB(p Params, logger *zap.Logger) (*cache.DB, error) {
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

func provideMedia(p Params, db *cache.DB) (*cache.Media, error) {
	return cache.NewMedia(db, session.MediaDir(p.SessionName))
}

func provideSentMedia(cfg *config.Config) *cache.SentMedia {
	return cache.NewSentMedia(time.Duration(cfg.Timeline.SentMediaTTLSeconds) * time.Second)
}

func provideResolver(m *cache.Media, sm *cache.SentMedia, c *ipc.Client, logger *zap.Logger) *cache.Resolver {
	return cache.NewResolver(m, sm, c, logger)
}

func provideBackendClient(p Params, cfg *config.Config, b *bus.Bus, m *status.Machine, logger *zap.Logger) *ipc.Client {
	socket := p.SocketPath
	if socket == "" {
		socket = cfg.Backend.Socket
	}
	if socket == "" {
		socket = session.SocketPath(p.SessionName)
	}
	return ipc.New(socket, b, m, logger)
}

func provideDirectory() *directory.Directory {
	return directory.New()
}

func provideTimeline(c *ipc.Client, b *bus.Bus, logger *zap.Logger) *timeline.Store {
	return timeline.NewStore(c, b, logger)
}

func provideSender(tl *timeline.Store, c *ipc.Client, sm *cache.SentMedia, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(tl, c, sm, b, logger)
}

func provideSyncEngine(dir *directory.Directory, tl *timeline.Store, c *ipc.Client, cfg *config.Config, b *bus.Bus, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(dir, tl, c, b, logger, cfg.Timeline.RetainLimit)
}

func provideApp(p Params, dir *directory.Directory, tl *timeline.Store, sender *outbox.Sender, res *cache.Resolver, m *status.Machine, cfg *config.Config, b *bus.Bus, logger *zap.Logger) *tui.App {
	return tui.NewApp(tui.Deps{
		Directory:   dir,
		Timeline:    tl,
		Sender:      sender,
		Resolver:    res,
		Machine:     m,
		Bus:         b,
		Logger:      logger,
		SessionName: p.SessionName,
		PageSize:    cfg.Timeline.PageSize,
		RetainLimit: cfg.Timeline.RetainLimit,
	})
}

func registerLifecycle(lc fx.Lifecycle, shutdowner fx.Shutdowner, ui *tui.App, client *ipc.Client, engine *intsync.Engine, lk *lock.Lock, db *cache.DB, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Ingestion first, so nothing pushed during connect is missed.
			engine.Start(context.Background())

			if err := client.Connect(context.Background()); err != nil {
				return err
			}

			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if err := engine.RefreshChatList(ctx); err != nil {
					logger.Warn("initial chat list load failed", zap.Error(err))
				}
			}()

			go func() {
				err := ui.Run()
				if err != nil {
					logger.Error("ui exited", zap.Error(err))
				}
				_ = shutdowner.Shutdown()
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			ui.Stop()
			engine.Stop()
			_ = client.Close()
			_ = db.Close()
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("client stopped")
			return nil
		},
	})
}
