package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/vigorish/oddscore/internal/analyzer"
	"github.com/vigorish/oddscore/internal/arbitrage"
	"github.com/vigorish/oddscore/internal/betshare"
	"github.com/vigorish/oddscore/internal/config"
	"github.com/vigorish/oddscore/internal/cycle"
	"github.com/vigorish/oddscore/internal/fetcher"
	"github.com/vigorish/oddscore/internal/gatekeeper"
	"github.com/vigorish/oddscore/internal/logging"
	"github.com/vigorish/oddscore/internal/movement"
	"github.com/vigorish/oddscore/internal/normalizer"
	"github.com/vigorish/oddscore/internal/parlay"
	"github.com/vigorish/oddscore/internal/publisher"
	"github.com/vigorish/oddscore/internal/server"
	"github.com/vigorish/oddscore/internal/store"
	"github.com/vigorish/oddscore/internal/writer"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// .env is optional; environment overrides always apply.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	log := logging.Component(logger, "main")
	log.Info("oddscore starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis backs cooldown dedup, the analyzer rate limiter, and the
	// forwarded-candidate stream.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	var cooldown gatekeeper.CooldownStore
	var streamPublisher *publisher.StreamPublisher
	var bucket *gatekeeper.TokenBucket

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.WithError(err).Warn("redis unavailable, falling back to in-process cooldown")
		cooldown = gatekeeper.NewMemoryCooldown(cfg.Gatekeeper.Cooldown)
	} else {
		log.Info("connected to redis")
		cooldown = gatekeeper.NewRedisCooldown(redisClient, cfg.Gatekeeper.Cooldown)
		streamPublisher = publisher.NewStreamPublisher(redisClient)
		bucket = gatekeeper.NewTokenBucket(redisClient, cfg.Gatekeeper.RateLimitPerMin)
	}

	snapshots := store.New(logging.Component(logger, "store"))

	norm := normalizer.New(logging.Component(logger, "normalizer"))
	for _, a := range []normalizer.Adapter{
		normalizer.NewOddsAPIAdapter(),
		normalizer.NewEuroFeedAdapter(),
		normalizer.NewFracFeedAdapter(),
	} {
		if err := norm.Register(a); err != nil {
			log.WithError(err).Fatal("failed to register adapter")
		}
	}

	var shares movement.BetShareSource
	if cfg.BetShare.Enabled {
		feed := betshare.New(cfg.BetShare.URL, logging.Component(logger, "betshare"))
		go feed.Run(ctx)
		shares = feed
	}

	detector := movement.New(snapshots, movement.Config{
		DeltaThreshold: cfg.Movement.DeltaThreshold,
		SteamProviders: cfg.Movement.SteamProviders,
		SteamWindow:    cfg.Movement.SteamWindow,
		FreezeDuration: cfg.Movement.FreezeDuration,
	}, shares, logging.Component(logger, "movement"))

	engine := arbitrage.New(cfg.Arbitrage.MinProfitPercent, logging.Component(logger, "arbitrage"))

	parlayAnalyzer := parlay.New(curveFromConfig(cfg.Parlay.TeaserCurve))

	keeper := gatekeeper.New(gatekeeper.Config{
		Threshold:       cfg.Gatekeeper.Threshold,
		QuotaPerCycle:   cfg.Gatekeeper.QuotaPerCycle,
		EdgeWeight:      cfg.Gatekeeper.EdgeWeight,
		MovementWeight:  cfg.Gatekeeper.MovementWeight,
		AgreementWeight: cfg.Gatekeeper.AgreementWeight,
		ProximityWeight: cfg.Gatekeeper.ProximityWeight,
	}, cooldown, logging.Component(logger, "gatekeeper"))

	providers := make([]fetcher.Provider, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		providers = append(providers, fetcher.Provider{
			Name:    p.Name,
			Adapter: p.Adapter,
			URL:     p.URL,
			Timeout: p.Timeout,
		})
	}

	runner := cycle.NewRunner(
		cycle.Config{MinEdgePercent: cfg.Arbitrage.MinEdgePercent},
		fetcher.New(providers),
		norm,
		snapshots,
		detector,
		engine,
		keeper,
		logging.Component(logger, "cycle"),
	)

	if cfg.Postgres.Enabled {
		pg, err := writer.Open(ctx, cfg.Postgres.DSN)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to postgres")
		}
		defer pg.Close()
		runner.WithWriter(pg)
		log.Info("connected to postgres")
	}

	if streamPublisher != nil {
		runner.WithPublisher(streamPublisher)
	}

	if cfg.Analyzer.Enabled {
		runner.WithAnalyzer(analyzer.New(cfg.Analyzer.URL, cfg.Analyzer.Timeout), bucket)
	}

	// Evaluation API.
	srv := server.New(snapshots, engine, parlayAnalyzer, logging.Component(logger, "server"))
	httpServer := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: srv.Router(),
	}
	go func() {
		log.WithField("addr", cfg.HTTP.Addr).Info("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("http server failed")
		}
	}()

	// Externally scheduled cycles: run one immediately, then on the interval.
	go func() {
		runner.Run(ctx)
		ticker := time.NewTicker(cfg.Cycle.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runner.Run(ctx)
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.WithField("signal", sig.String()).Info("shutting down")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown error")
	}

	if err := redisClient.Close(); err != nil {
		log.WithError(err).Warn("error closing redis")
	}

	log.Info("shutdown complete")
}

// curveFromConfig converts the config map ("points" -> shift) into curve
// points; an empty map selects the default curve.
func curveFromConfig(raw map[string]float64) []parlay.CurvePoint {
	if len(raw) == 0 {
		return nil
	}
	curve := make([]parlay.CurvePoint, 0, len(raw))
	for pts, shift := range raw {
		var p float64
		if _, err := fmt.Sscanf(pts, "%f", &p); err != nil {
			continue
		}
		curve = append(curve, parlay.CurvePoint{Points: p, ProbShift: shift})
	}
	return curve
}
