package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Checker-Finance/catalog-api/internal/api"
	"github.com/Checker-Finance/catalog-api/internal/catalog"
	"github.com/Checker-Finance/catalog-api/internal/discount"
	"github.com/Checker-Finance/catalog-api/internal/events"
	"github.com/Checker-Finance/catalog-api/internal/mediator"
	"github.com/Checker-Finance/catalog-api/internal/rate"
	"github.com/Checker-Finance/catalog-api/internal/store"
	"github.com/Checker-Finance/catalog-api/pkg/config"
	"github.com/Checker-Finance/catalog-api/pkg/logger"
	"github.com/Checker-Finance/catalog-api/pkg/secrets"
	"github.com/Checker-Finance/catalog-api/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()
	logg.Info("starting [catalog-api]...")

	var checks []api.Check

	// --- Store ---
	st, err := openStore(ctx, cfg, logg.Desugar())
	if err != nil {
		logg.Fatalw("failed to init store", "driver", cfg.StoreDriver, "error", err)
	}
	checks = append(checks, api.StoreCheck("store", st))

	// --- Discount source (re-read on every listing) ---
	var rdb *redis.Client
	var disc discount.Source
	switch cfg.DiscountSource {
	case config.DiscountFromRedis:
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			DB:       cfg.RedisDB,
			Password: cfg.RedisPass,
		})
		disc = discount.NewRedisSource(rdb, cfg.DiscountRedisKey)
		checks = append(checks, api.RedisCheck(rdb))
	case config.DiscountFromEnv, "":
		disc = discount.EnvSource{}
	default:
		logg.Fatalw("unknown DISCOUNT_SOURCE", "source", cfg.DiscountSource)
	}

	// --- Catalog events ---
	pub, nc, err := openPublisher(cfg, logg.Desugar())
	if err != nil {
		logg.Fatalw("failed to init event publisher", "driver", cfg.EventsDriver, "error", err)
	}
	if nc != nil {
		checks = append(checks, api.NATSCheck(nc))
	}

	// --- Mediator ---
	m := mediator.New()
	catalog.Register(m, catalog.Deps{
		Repo:      st,
		Discounts: disc,
		Events:    pub,
		Clock:     time.Now,
		Logger:    logg.Desugar(),
	})
	if err := m.Require(catalog.Requests()...); err != nil {
		logg.Fatalw("mediator wiring incomplete", "error", err)
	}

	// --- Rate limiter ---
	var limiter *rate.Manager
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewManager(rate.Config{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		})
		go limiter.Run(ctx, time.Minute, 10*time.Minute)
	}

	// --- Fiber HTTP Server ---
	app := api.NewApp(m, api.Options{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		BodyLimit:    cfg.HTTPBodyLimit,
		Logger:       logg.Desugar(),
		Limiter:      limiter,
		Checks:       checks,
	})

	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	logg.Infow("[catalog-api] running",
		"env", cfg.Env,
		"store", cfg.StoreDriver,
		"discount_source", cfg.DiscountSource,
		"events", cfg.EventsDriver)

	<-ctx.Done()
	logg.Info("shutting down [catalog-api]...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Warnw("fiber.shutdown_failed", "error", err)
	}
	if err := pub.Close(); err != nil {
		logg.Warnw("events.close_failed", "error", err)
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			logg.Warnw("redis.close_failed", "error", err)
		}
	}
	if err := st.Close(); err != nil {
		logg.Warnw("store.close_failed", "error", err)
	}
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreSQLite:
		log.Info("store.sqlite.open", zap.String("path", cfg.SQLitePath))
		return store.OpenSQLite(cfg.SQLitePath, cfg.AutoMigrate)

	case config.StorePostgres:
		dsn := cfg.DatabaseURL
		if cfg.DatabaseSecretID != "" {
			provider, err := secrets.NewAWSProvider(ctx, cfg.AWSRegion)
			if err != nil {
				return nil, fmt.Errorf("aws secrets provider: %w", err)
			}
			dsn, err = secrets.DatabaseDSN(ctx, provider, cfg.DatabaseSecretID)
			if err != nil {
				return nil, err
			}
		}
		log.Info("store.pg.connect", zap.String("dsn", utils.MaskDSN(dsn)))

		pg, err := store.NewPostgres(ctx, dsn, store.PGPoolConfig{
			MaxConns:          int32(cfg.PGMaxConns),
			MinConns:          int32(cfg.PGMinConns),
			MaxConnLifetime:   cfg.PGMaxConnLifetime,
			MaxConnIdleTime:   cfg.PGMaxConnIdleTime,
			HealthCheckPeriod: cfg.PGHealthCheckPeriod,
		}, log)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := pg.EnsureSchema(ctx); err != nil {
				pg.Close()
				return nil, err
			}
		}
		return pg, nil
	}
	return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
}

func openPublisher(cfg *config.Config, log *zap.Logger) (events.Publisher, *nats.Conn, error) {
	switch cfg.EventsDriver {
	case config.EventsNATS:
		nc, err := nats.Connect(cfg.NATSURL, nats.Name(cfg.ServiceName))
		if err != nil {
			return nil, nil, fmt.Errorf("connect nats: %w", err)
		}
		pub, err := events.NewNATS(nc, cfg.EventsStream, cfg.EventsSubjectPrefix, cfg.ServiceName, log)
		if err != nil {
			nc.Close()
			return nil, nil, err
		}
		return pub, nc, nil

	case config.EventsRabbitMQ:
		pub, err := events.NewRabbitMQ(cfg.RabbitMQURL, cfg.RabbitMQExchange, cfg.ServiceName, log)
		if err != nil {
			return nil, nil, err
		}
		return pub, nil, nil

	case config.EventsNone, "":
		return events.Nop{}, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown EVENTS_DRIVER %q", cfg.EventsDriver)
}
