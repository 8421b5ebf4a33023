// Package main provides the game server binary that runs the session engine
// with a WebSocket endpoint for client connections.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/tobyv/gamenight/internal/bus"
	"github.com/tobyv/gamenight/internal/config"
	"github.com/tobyv/gamenight/internal/dispatch"
	"github.com/tobyv/gamenight/internal/game/catalog"
	"github.com/tobyv/gamenight/internal/game/mafia"
	"github.com/tobyv/gamenight/internal/game/registry"
	"github.com/tobyv/gamenight/internal/gameserver"
	"github.com/tobyv/gamenight/internal/hub"
	"github.com/tobyv/gamenight/internal/observability"
	"github.com/tobyv/gamenight/internal/server"
	"github.com/tobyv/gamenight/internal/storage/postgres"
	"github.com/tobyv/gamenight/internal/transport/ws"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	gamesDir := flag.String("games", "", "path to game-type YAML files directory; overrides config")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting game server",
		zap.String("ws_addr", cfg.WebSocket.Addr()),
		zap.String("ws_path", cfg.WebSocket.Path),
	)

	// Load game-type catalog
	dir := cfg.Game.GamesDir
	if *gamesDir != "" {
		dir = *gamesDir
	}
	catalogStart := time.Now()
	types, err := catalog.LoadDir(dir)
	if err != nil {
		logger.Fatal("loading game types", zap.Error(err))
	}
	logger.Info("game catalog loaded",
		zap.Strings("types", types.IDs()),
		zap.Duration("elapsed", time.Since(catalogStart)),
	)

	// Session registry and connection hub
	reg := registry.New(types, mafia.NewCryptoSource(),
		registry.WithRetention(cfg.Game.SessionRetention),
		registry.WithIdleTTL(cfg.Game.SessionIdleTTL),
	)
	connHub := hub.New(logger)

	// Pub/sub bus. A missing or unreachable broker degrades to local-only
	// delivery rather than failing startup.
	var msgBus bus.Bus = bus.NewNopBus()
	if cfg.Redis.Enabled {
		busStart := time.Now()
		redisBus, err := bus.NewRedisBus(ctx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warn("redis unreachable, running local-only",
				zap.String("addr", cfg.Redis.Addr()),
				zap.Error(err),
			)
		} else {
			msgBus = redisBus
			logger.Info("redis connected",
				zap.String("addr", cfg.Redis.Addr()),
				zap.Duration("elapsed", time.Since(busStart)),
			)
		}
	}
	bridge := bus.NewBridge(msgBus, connHub, logger)

	// Optional session summary archive
	var archiver gameserver.Archiver
	var pool *postgres.Pool
	if cfg.Database.Enabled {
		dbStart := time.Now()
		pool, err = postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		archiver = postgres.NewSummaryRepository(pool.DB())
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
	}

	// Handlers and dispatcher
	dispatcher := dispatch.New(connHub, logger)
	games := gameserver.NewGameHandler(reg, connHub, bridge, archiver, logger)
	sessions := gameserver.NewSessionHandler(reg, connHub, bridge, games, logger)
	chat := gameserver.NewChatHandler(bridge)
	presence := gameserver.NewPresenceHandler(connHub)
	gameserver.RegisterHandlers(dispatcher, sessions, games, chat, presence)

	// Periodic sweeps: stale connections and expired sessions
	sweeper := gameserver.NewSweeper(cfg.Game.SweepInterval, logger)
	sweeper.Register("stale-connections", func(now time.Time) {
		dropped := connHub.SweepStale(cfg.Game.HeartbeatTimeout)
		if len(dropped) > 0 {
			logger.Info("swept stale connections", zap.Int("count", len(dropped)))
		}
	})
	sweeper.Register("expired-sessions", func(now time.Time) {
		removed := reg.Sweep(now)
		for _, id := range removed {
			games.StopSessionTimer(id)
		}
		if len(removed) > 0 {
			logger.Info("swept expired sessions", zap.Int("count", len(removed)))
		}
	})

	acceptor := ws.NewAcceptor(cfg.WebSocket, connHub, dispatcher, logger)

	// Wire lifecycle
	lifecycle := server.NewLifecycle(logger)

	bridgeDone := make(chan struct{})
	lifecycle.AddFunc("bus-bridge",
		func() error {
			if err := bridge.Start(ctx); err != nil {
				return err
			}
			<-bridgeDone
			return nil
		},
		func() {
			bridge.Stop()
			close(bridgeDone)
		},
	)

	lifecycle.Add("sweeper", sweeper)

	lifecycle.AddFunc("websocket",
		acceptor.ListenAndServe,
		acceptor.Stop,
	)

	if pool != nil {
		poolDone := make(chan struct{})
		lifecycle.AddFunc("postgres",
			func() error {
				ticker := time.NewTicker(30 * time.Second)
				defer ticker.Stop()
				for {
					select {
					case <-ticker.C:
						if err := pool.Health(ctx, 5*time.Second); err != nil {
							logger.Warn("database health check failed", zap.Error(err))
						}
					case <-poolDone:
						return nil
					}
				}
			},
			func() {
				close(poolDone)
				pool.Close()
			},
		)
	}

	logger.Info("game server initialized",
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
