package main

import (
	"context"
	"fmt"
	"log/slog"

	"eventreg/internal/platform/config"
	"eventreg/internal/platform/kafka"
	"eventreg/pkg/platform/audit"
	"eventreg/pkg/platform/audit/publisher"
	kafkastore "eventreg/pkg/platform/audit/store/kafka"
	"eventreg/pkg/platform/audit/store/memory"
	pgstore "eventreg/pkg/platform/audit/store/postgres"
)

// buildAuditPublisher wires the configured audit backend behind an async
// publisher. The returned func drains the publisher and releases the backend.
func buildAuditPublisher(ctx context.Context, cfg config.Config, log *slog.Logger) (*publisher.Publisher, func(), error) {
	var (
		store   audit.Store
		release = func() {}
	)

	switch cfg.Audit.Backend {
	case "", "memory":
		store = memory.NewInMemoryStore(memory.WithCapacity(cfg.Audit.MemoryCapacity))
		log.Warn("audit backend is memory, events are kept only in this process",
			"capacity", cfg.Audit.MemoryCapacity,
		)

	case "kafka":
		client, err := kafka.New(ctx, cfg.Kafka)
		if err != nil {
			return nil, nil, err
		}
		if err := kafka.EnsureTopic(ctx, client, cfg.Kafka.AuditTopic, 3); err != nil {
			client.Close()
			return nil, nil, err
		}
		store = kafkastore.New(client, cfg.Kafka.AuditTopic)
		release = client.Close

	case "postgres":
		db, err := pgstore.Open(cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, err
		}
		pg := pgstore.New(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		store = pg
		release = func() { _ = db.Close() }

	default:
		return nil, nil, fmt.Errorf("unknown audit backend %q", cfg.Audit.Backend)
	}

	pub := publisher.NewPublisher(store,
		publisher.WithAsyncBuffer(cfg.Audit.BufferSize),
		publisher.WithLogger(log),
	)
	return pub, func() {
		pub.Close()
		release()
	}, nil
}
