package main

import (
	"context"
	"fmt"
	"log/slog"

	"verigate/internal/platform/config"
	httptransport "verigate/internal/transport/http"
	audit "verigate/pkg/platform/audit"
	"verigate/pkg/platform/audit/consumer"
	"verigate/pkg/platform/audit/kafka"
	auditmemory "verigate/pkg/platform/audit/store/memory"
	auditpostgres "verigate/pkg/platform/audit/store/postgres"
)

const (
	auditTopicPartitions  = 3
	auditTopicReplication = 1
)

// auditSinks builds the sinks the publisher fans out to and picks the store
// the audit listing endpoint reads from. The in-memory ring always receives
// every event. With a database, compliance and availability events are also
// persisted there and the listing reads from postgres. With brokers, every
// event is also shipped to kafka.
func auditSinks(
	ctx context.Context,
	cfg config.Config,
	in *infra,
	recent *auditmemory.Sink,
	log *slog.Logger,
) ([]audit.Sink, httptransport.AuditReader, error) {
	sinks := []audit.Sink{recent}
	var reader httptransport.AuditReader = recent

	if in.db != nil {
		durable := auditpostgres.New(in.db)
		if err := durable.EnsureSchema(ctx); err != nil {
			return nil, nil, fmt.Errorf("ensure audit schema: %w", err)
		}
		byCategory := consumer.NewRouter(log, nil)
		byCategory.Register(audit.CategoryCompliance, durable)
		byCategory.Register(audit.CategoryAvailability, durable)
		sinks = append(sinks, byCategory)
		reader = durable
	}

	if len(cfg.Kafka.Brokers) > 0 {
		ks, err := kafka.New(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
		if err != nil {
			return nil, nil, err
		}
		if err := ks.EnsureTopic(ctx, auditTopicPartitions, auditTopicReplication); err != nil {
			ks.Close()
			return nil, nil, err
		}
		in.kafka = ks
		sinks = append(sinks, ks)
	}
	return sinks, reader, nil
}
