package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jinzhu/inflection"
	"github.com/redis/go-redis/v9"

	"github.com/ekaya-inc/ekaya-audit/pkg/models"
)

// streamAdder is the subset of redis.Cmdable the stream sink uses.
type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisStreamSink appends each record to a capped stream per entity type,
// named "<prefix>:<plural entity type>", e.g. "audit:employees".
type RedisStreamSink struct {
	client streamAdder
	prefix string
	maxLen int64
	closer func() error
}

// NewRedisStreamSink writes through client. The sink closes client on Close.
func NewRedisStreamSink(client *redis.Client, prefix string, maxLen int64) *RedisStreamSink {
	s := newRedisStreamSink(client, prefix, maxLen)
	s.closer = client.Close
	return s
}

func newRedisStreamSink(client streamAdder, prefix string, maxLen int64) *RedisStreamSink {
	if prefix == "" {
		prefix = "audit"
	}
	return &RedisStreamSink{client: client, prefix: prefix, maxLen: maxLen}
}

// StreamKey returns the stream an entity type's records go to.
func (s *RedisStreamSink) StreamKey(entityType string) string {
	return s.prefix + ":" + strings.ToLower(inflection.Plural(entityType))
}

func (s *RedisStreamSink) Append(ctx context.Context, record *models.AuditRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}

	stream := s.StreamKey(record.EntityType)
	args := &redis.XAddArgs{
		Stream: stream,
		MaxLen: s.maxLen,
		Approx: s.maxLen > 0,
		ID:     "*",
		Values: map[string]any{
			"record_id": record.ID.String(),
			"action":    string(record.Action),
			"entity_id": record.EntityID,
			"record":    string(payload),
		},
	}
	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis XADD %s: %w", stream, err)
	}
	return nil
}

func (s *RedisStreamSink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
