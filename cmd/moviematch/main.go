// moviematch 启动推荐服务进程：加载配置、连接数据源、恢复快照，
// 并在 suture 监督树下运行周期重训与指标服务。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/rushteam/moviematch/catalog"
	"github.com/rushteam/moviematch/config"
	"github.com/rushteam/moviematch/core"
	"github.com/rushteam/moviematch/feast"
	"github.com/rushteam/moviematch/pkg/logging"
	"github.com/rushteam/moviematch/service"
	"github.com/rushteam/moviematch/store"
)

func main() {
	configPath := flag.String("config", os.Getenv("MOVIEMATCH_CONFIG"), "path to YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		logging.Error().Err(err).Msg("moviematch exited")
		os.Exit(1)
	}
}

func run(configPath string) error {
	settings, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logging.Init(logging.Config{
		Level:     settings.Log.Level,
		Format:    settings.Log.Format,
		Caller:    settings.Log.Caller,
		Timestamp: settings.Log.Timestamp,
		Output:    os.Stderr,
	})
	logger := logging.Component("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, closeBackend, err := openBackend(ctx, settings)
	if err != nil {
		return err
	}
	defer closeBackend()

	guard := catalog.NewGuard(backend, catalog.GuardConfig{
		Name:                "catalog",
		ConsecutiveFailures: settings.Breaker.ConsecutiveFailures,
		OpenTimeout:         settings.Breaker.OpenTimeout,
		HalfOpenRequests:    settings.Breaker.HalfOpenRequests,
	})
	if settings.Feast.Host != "" {
		client, err := feast.NewGrpcClient(settings.Feast.Host, settings.Feast.Port, settings.Feast.Project)
		if err != nil {
			return fmt.Errorf("feast: %w", err)
		}
		defer func() { _ = client.Close() }()
		guard = guard.WithAggregates(feast.NewAggregateSource(client, feast.AggregateConfig{
			Project:      settings.Feast.Project,
			EntityKey:    settings.Feast.EntityKey,
			MeanFeature:  settings.Feast.MeanRatingFeat,
			CountFeature: settings.Feast.RatingCountFeat,
			BatchSize:    settings.Feast.BatchSize,
		}))
		logger.Info().Str("host", settings.Feast.Host).Msg("rating aggregates from feast")
	}

	snapshots, err := openStore(ctx, settings)
	if err != nil {
		return err
	}
	defer func() { _ = snapshots.Close() }()

	rec, err := service.New(service.Options{
		Settings:   settings,
		Catalog:    guard,
		Aggregates: guard,
		Watched:    guard,
		Social:     guard,
		Store:      snapshots,
	})
	if err != nil {
		return err
	}

	if settings.Snapshot.RestoreOnStart {
		switch err := rec.LoadSnapshot(ctx); {
		case err == nil:
		case core.IsStoreNotFound(err):
			logger.Info().Msg("no persisted snapshot, waiting for first training")
		default:
			logger.Warn().Err(err).Msg("snapshot restore failed")
		}
	}

	sup := suture.New("moviematch", suture.Spec{
		EventHook: func(e suture.Event) {
			logger.Warn().Str("event", e.String()).Msg("supervisor event")
		},
		Timeout: 10 * time.Second,
	})
	sup.Add(service.NewRetrainService(rec, service.RetrainConfig{
		OnStartup: settings.Retrain.OnStartup,
		Interval:  settings.Retrain.Interval,
		Timeout:   settings.Retrain.Timeout,
	}))
	if settings.Metrics.Addr != "" {
		sup.Add(service.NewMetricsServer(settings.Metrics.Addr))
		logger.Info().Str("addr", settings.Metrics.Addr).Msg("metrics enabled")
	}

	logger.Info().Str("store", snapshots.Name()).Msg("moviematch started")
	err = sup.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	logger.Info().Msg("moviematch stopped")
	return err
}

// openBackend 优先使用 Postgres，未配置时使用 SQLite 文件。
func openBackend(ctx context.Context, s *config.Settings) (catalog.Backend, func(), error) {
	switch {
	case s.Postgres.DSN != "":
		pool, err := catalog.OpenPool(ctx, s.Postgres.DSN, s.Postgres.MaxConns)
		if err != nil {
			return nil, nil, err
		}
		return catalog.NewPostgres(pool), pool.Close, nil
	case s.SQLite.Path != "":
		db, err := catalog.OpenSQLite(ctx, s.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return db, closer(db), nil
	default:
		return nil, nil, fmt.Errorf("no catalog configured: set postgres.dsn or sqlite.path")
	}
}

func openStore(ctx context.Context, s *config.Settings) (core.Store, error) {
	if s.Redis.Addr == "" {
		return store.NewMemoryStore(), nil
	}
	rs, err := store.NewRedisStore(ctx, store.RedisOptions{
		Addr:      s.Redis.Addr,
		Password:  s.Redis.Password,
		DB:        s.Redis.DB,
		KeyPrefix: s.Redis.KeyPrefix,
	})
	if err != nil {
		return nil, err
	}
	return rs, nil
}

func closer(c io.Closer) func() {
	return func() { _ = c.Close() }
}
