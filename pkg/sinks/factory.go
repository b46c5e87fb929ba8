package sinks

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-audit/pkg/audit"
	"github.com/ekaya-inc/ekaya-audit/pkg/config"
	"github.com/ekaya-inc/ekaya-audit/pkg/database"
	"github.com/ekaya-inc/ekaya-audit/pkg/repositories"
	"github.com/ekaya-inc/ekaya-audit/pkg/retry"
)

// SinkCloser is a sink that owns connections and must be closed.
type SinkCloser interface {
	audit.Sink
	io.Closer
}

// Build opens every sink listed in cfg.Sinks.Enabled and fans records out
// to all of them. Networked sinks are wrapped in retry and a circuit
// breaker; with cfg.Sinks.Async the whole set sits behind a bounded queue.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger, metrics *audit.Metrics) (SinkCloser, error) {
	var (
		built []audit.Sink
		names []string
	)
	closeBuilt := func() {
		_ = audit.NewMultiSink(built, names).Close()
	}

	for _, name := range cfg.Sinks.Enabled {
		sink, err := open(ctx, name, cfg, logger)
		if err != nil {
			closeBuilt()
			return nil, fmt.Errorf("failed to open %s sink: %w", name, err)
		}
		if networked(name) {
			sink = resilient(name, sink, cfg.Sinks, logger)
		}
		built = append(built, sink)
		names = append(names, name)
		logger.Info("Audit sink enabled", zap.String("sink", name))
	}

	multi := audit.NewMultiSink(built, names)
	if !cfg.Sinks.Async {
		return multi, nil
	}
	return audit.NewAsyncSink(multi, audit.AsyncConfig{
		Buffer:       cfg.Sinks.AsyncBuffer,
		Workers:      cfg.Sinks.AsyncWorkers,
		WriteTimeout: cfg.Sinks.WriteTimeout,
	}, logger, metrics), nil
}

func open(ctx context.Context, name string, cfg *config.Config, logger *zap.Logger) (audit.Sink, error) {
	switch name {
	case config.SinkLog:
		return audit.NewLogSink(logger), nil
	case config.SinkMemory:
		return repositories.NewMemoryAuditRepository(), nil
	case config.SinkPostgres:
		db, err := database.NewConnection(ctx, &database.Config{
			URL:            cfg.Database.ConnectionString(),
			MaxConnections: cfg.Database.MaxConnections,
		}, logger)
		if err != nil {
			return nil, err
		}
		return &postgresSink{AuditRepository: repositories.NewAuditRepository(db), db: db}, nil
	case config.SinkKafka:
		return NewKafkaSink(cfg.Kafka)
	case config.SinkRedis:
		client, err := database.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			return nil, err
		}
		if client == nil {
			return nil, fmt.Errorf("redis host not configured")
		}
		return NewRedisStreamSink(client, cfg.Redis.StreamPrefix, cfg.Redis.MaxLen), nil
	case config.SinkFile:
		return NewFileSink(cfg.File.Path)
	case config.SinkSQLite:
		return NewSQLiteSink(ctx, cfg.SQLite.Path)
	default:
		return nil, fmt.Errorf("unknown sink %q", name)
	}
}

func networked(name string) bool {
	switch name {
	case config.SinkPostgres, config.SinkKafka, config.SinkRedis:
		return true
	default:
		return false
	}
}

func resilient(name string, sink audit.Sink, cfg config.SinksConfig, logger *zap.Logger) audit.Sink {
	retryCfg := retry.DefaultConfig()
	if cfg.RetryMaxAttempts > 0 {
		retryCfg.MaxRetries = cfg.RetryMaxAttempts
	}
	if cfg.RetryInitialDelay > 0 {
		retryCfg.InitialDelay = cfg.RetryInitialDelay
	}

	return audit.NewBreakerSink(name, audit.NewRetrySink(sink, retryCfg), audit.BreakerConfig{
		MaxFailures: cfg.BreakerMaxFailures,
		Timeout:     cfg.BreakerTimeout,
	}, logger)
}

// postgresSink closes the pool it was opened with.
type postgresSink struct {
	repositories.AuditRepository
	db *database.DB
}

func (s *postgresSink) Close() error {
	s.db.Close()
	return nil
}
