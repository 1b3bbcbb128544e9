package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"census/internal/citizens/service"
	"census/internal/citizens/store"
	"census/internal/platform/config"
	"census/internal/platform/redis"
	"census/pkg/platform/audit"
	"census/pkg/platform/audit/publisher"
	auditkafka "census/pkg/platform/audit/store/kafka"
	auditmemory "census/pkg/platform/audit/store/memory"
	auditpostgres "census/pkg/platform/audit/store/postgres"
	"census/pkg/platform/circuit"
)

const auditBufferSize = 1024

type importStore interface {
	service.Store
	Ping(ctx context.Context) error
}

type openedStore struct {
	store importStore
	// db is set for the postgres backend so the audit log can share it.
	db      *sql.DB
	closers []func() error
}

func (s *openedStore) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (*openedStore, error) {
	switch cfg.Store {
	case config.StorePostgres:
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		pg := store.NewPostgres(db)
		if err := pg.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		log.Info("using postgres import store")
		return &openedStore{store: pg, db: db, closers: []func() error{db.Close}}, nil

	case config.StoreRedis:
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		log.Info("using redis import store")
		return &openedStore{store: store.NewRedis(client.Client), closers: []func() error{client.Close}}, nil

	default:
		log.Info("using in-memory import store")
		return &openedStore{store: store.NewInMemory()}, nil
	}
}

// openAudit picks the audit sink: Kafka when brokers are configured, with the
// in-memory log as fallback while the breaker is open; otherwise Postgres
// when the import store is Postgres; otherwise memory.
func openAudit(ctx context.Context, cfg config.Config, db *sql.DB, log *slog.Logger) (*publisher.Publisher, error) {
	opts := []publisher.Option{
		publisher.WithAsyncBuffer(auditBufferSize),
		publisher.WithLogger(log),
	}

	var sink audit.Store
	switch {
	case len(cfg.Kafka.Brokers) > 0:
		k, err := auditkafka.New(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return nil, err
		}
		if err := k.EnsureTopic(ctx, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
			k.Close()
			return nil, err
		}
		sink = k
		opts = append(opts,
			publisher.WithFallback(auditmemory.NewInMemoryStore()),
			publisher.WithBreaker(circuit.New("audit-kafka")),
			publisher.WithOnClose(k.Close),
		)
		log.Info("publishing audit events to kafka", "topic", cfg.Kafka.Topic)

	case db != nil:
		pg := auditpostgres.New(db)
		if err := pg.Migrate(ctx); err != nil {
			return nil, err
		}
		sink = pg
		log.Info("writing audit events to postgres")

	default:
		sink = auditmemory.NewInMemoryStore()
	}
	return publisher.NewPublisher(sink, opts...), nil
}
