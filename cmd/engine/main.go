package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/itzcole03/A1Betting-master-main-sub018/internal/alerts"
	"github.com/itzcole03/A1Betting-master-main-sub018/internal/api"
	"github.com/itzcole03/A1Betting-master-main-sub018/internal/broker"
	"github.com/itzcole03/A1Betting-master-main-sub018/internal/config"
	"github.com/itzcole03/A1Betting-master-main-sub018/internal/engine"
	"github.com/itzcole03/A1Betting-master-main-sub018/internal/ensemble"
	"github.com/itzcole03/A1Betting-master-main-sub018/internal/feed"
	"github.com/itzcole03/A1Betting-master-main-sub018/internal/hub"
	"github.com/itzcole03/A1Betting-master-main-sub018/internal/oppcache"
	"github.com/itzcole03/A1Betting-master-main-sub018/internal/publisher"
	"github.com/itzcole03/A1Betting-master-main-sub018/internal/registry"
	"github.com/itzcole03/A1Betting-master-main-sub018/internal/store"
	"github.com/itzcole03/A1Betting-master-main-sub018/internal/tracker"
	"github.com/itzcole03/A1Betting-master-main-sub018/pkg/models"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := newLogger(cfg.LogLevel)
	log.Info().Msg("prediction engine starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis is optional: without it, alert dedup and stream mirroring
	// degrade to local-only behavior.
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.URL,
			Password: cfg.Redis.Password,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("redis unreachable, continuing without it")
			redisClient = nil
		} else {
			log.Info().Str("addr", cfg.Redis.URL).Msg("connected to redis")
		}
	}

	b := broker.New(log)
	reg := registry.New(log)
	cache := oppcache.New(cfg.Engine.OpportunityTTL, cfg.Engine.MinOddsChangeThreshold, log)
	pool := ensemble.NewPool(cfg.Engine.ModelTimeout, log)
	agg := ensemble.New(reg, cache, ensemble.DirectProbability, ensemble.Config{KellyCap: cfg.Engine.KellyCapMax}, log)

	// The bet ledger persists across restarts when Postgres is
	// configured. A ledger that fails validation poisons the tracker:
	// performance queries refuse rather than serve wrong numbers.
	var ledger *store.LedgerStore
	tr := tracker.New(cfg.Engine.Bankroll, nil, log)
	if cfg.Postgres.DSN != "" {
		var err error
		ledger, err = store.Open(ctx, cfg.Postgres.DSN)
		if err != nil {
			log.Fatal().Err(err).Msg("ledger database unreachable")
		}
		defer ledger.Close()

		records, err := ledger.LoadLedger(ctx)
		if err != nil && !errors.Is(err, store.ErrCorruptLedger) {
			log.Fatal().Err(err).Msg("ledger load failed")
		}
		tr = tracker.New(cfg.Engine.Bankroll, ledger, log)
		switch {
		case err != nil:
			tr.MarkDegraded()
			log.Error().Err(err).Msg("ledger corrupt, performance tracking degraded")
		default:
			if restoreErr := tr.Restore(records); restoreErr != nil {
				log.Error().Err(restoreErr).Msg("ledger restore refused, performance tracking degraded")
			} else {
				log.Info().Int("bets", len(records)).Msg("ledger restored")
			}
		}
	}

	alerter := alerts.New(redisClient, cfg.Alerts, log)
	pub := publisher.New(redisClient, log)

	eng := engine.New(cfg.Engine, reg, pool, agg, cache, tr, b, alerter, pub, log)
	if tr.Degraded() {
		eng.Degrade("tracker", "persisted ledger failed validation")
	}

	feedClient := feed.NewClient(cfg.Feed, log)
	for _, topic := range cfg.Feed.Topics {
		feedClient.Subscribe(topic, nil)
	}
	wsHub := hub.New(log)
	handler := api.NewHandler(cache, tr, reg, wsHub, log)

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: handler.Router(hub.ServeWS(ctx, wsHub, log)),
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		wsHub.Run(ctx, hub.AttachBroker(b).C)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := feedClient.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("feed client stopped")
			b.Publish(models.EventComponentDegraded, broker.TopicSystem, models.ComponentDegraded{
				Component: "feed",
				Reason:    err.Error(),
				At:        time.Now(),
			})
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := eng.Run(ctx, feedClient.Events()); err != nil {
			log.Error().Err(err).Msg("engine stopped")
		}
	}()

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Engine.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown incomplete")
	}

	cancel()
	wg.Wait()
	log.Info().Msg("prediction engine stopped")
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().Timestamp().Logger()
}
