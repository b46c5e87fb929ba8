// Package sinks holds the audit.Sink implementations for external systems
// and the factory that assembles them from configuration.
package sinks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/ekaya-inc/ekaya-audit/pkg/config"
	"github.com/ekaya-inc/ekaya-audit/pkg/models"
)

// producer is the subset of *kgo.Client the Kafka sink uses.
type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// KafkaSink publishes each record as JSON, keyed by entity type and ID so
// the history of one entity stays on one partition.
type KafkaSink struct {
	client producer
	topic  string
}

// NewKafkaSink connects a franz-go client to cfg.Brokers.
func NewKafkaSink(cfg config.KafkaConfig) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	return newKafkaSink(client, cfg.Topic), nil
}

func newKafkaSink(client producer, topic string) *KafkaSink {
	return &KafkaSink{client: client, topic: topic}
}

func (s *KafkaSink) Append(ctx context.Context, record *models.AuditRecord) error {
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}

	rec := &kgo.Record{
		Topic:     s.topic,
		Key:       []byte(record.EntityType + ":" + record.EntityID),
		Value:     value,
		Timestamp: record.CreatedAt,
		Headers: []kgo.RecordHeader{
			{Key: "action", Value: []byte(record.Action)},
			{Key: "entity_type", Value: []byte(record.EntityType)},
			{Key: "record_id", Value: []byte(record.ID.String())},
		},
	}
	if err := s.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("kafka produce to %s: %w", s.topic, err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	s.client.Close()
	return nil
}
