// Package kafka ships audit events to a Kafka topic. It is registered as a
// sink on the audit Publisher, so produce latency never reaches routing paths.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "verigate/pkg/platform/audit"
)

// payload is the JSON structure published to Kafka.
type payload struct {
	ID         string `json:"id"`
	Category   string `json:"category"`
	Timestamp  string `json:"timestamp"`
	Action     string `json:"action"`
	ProviderID string `json:"provider_id,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	Capability string `json:"capability,omitempty"`
	From       string `json:"from,omitempty"`
	To         string `json:"to,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Sink produces audit events to a single topic.
type Sink struct {
	client *kgo.Client
	topic  string
}

// New connects a producer to brokers. Extra client options are appended after
// the defaults.
func New(brokers []string, topic string, opts ...kgo.Opt) (*Sink, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	base := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerLinger(50 * time.Millisecond),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}
	client, err := kgo.NewClient(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Sink{client: client, topic: topic}, nil
}

// EnsureTopic creates the audit topic if it does not already exist.
func (s *Sink) EnsureTopic(ctx context.Context, partitions int32, replication int16) error {
	adm := kadm.NewClient(s.client)
	resp, err := adm.CreateTopics(ctx, partitions, replication, nil, s.topic)
	if err != nil {
		return fmt.Errorf("create audit topic: %w", err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create audit topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

func (s *Sink) Name() string { return "kafka" }

// Write produces the batch synchronously and returns the first failure.
// Records are keyed by provider, falling back to session, so events for the
// same entity keep their order within a partition.
func (s *Sink) Write(ctx context.Context, events []audit.Event) error {
	records := make([]*kgo.Record, 0, len(events))
	for _, e := range events {
		value, err := json.Marshal(toPayload(e))
		if err != nil {
			return fmt.Errorf("marshal audit event %s: %w", e.ID, err)
		}
		key := e.ProviderID
		if key == "" {
			key = e.SessionID
		}
		records = append(records, &kgo.Record{
			Topic: s.topic,
			Key:   []byte(key),
			Value: value,
			Headers: []kgo.RecordHeader{
				{Key: "category", Value: []byte(e.Category)},
				{Key: "action", Value: []byte(e.Action)},
			},
		})
	}
	if err := s.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce audit events: %w", err)
	}
	return nil
}

// Close flushes and closes the producer.
func (s *Sink) Close() {
	s.client.Close()
}

func toPayload(e audit.Event) payload {
	return payload{
		ID:         e.ID,
		Category:   string(e.Category),
		Timestamp:  e.Timestamp.UTC().Format(time.RFC3339Nano),
		Action:     e.Action,
		ProviderID: e.ProviderID,
		SessionID:  e.SessionID,
		RequestID:  e.RequestID,
		Capability: e.Capability,
		From:       e.From,
		To:         e.To,
		Reason:     e.Reason,
	}
}
