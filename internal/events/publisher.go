// Package events publishes graph mutation facts to Kafka so downstream
// consumers (indexers, notification pipelines) can follow the identity graph
// without polling the store.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"relationd/internal/upstream"
)

// ProofLinked is the payload published once per materialized connection.
type ProofLinked struct {
	ProofUUID    string    `json:"proof_uuid"`
	Source       string    `json:"source"`
	RecordID     string    `json:"record_id,omitempty"`
	FromUUID     string    `json:"from_uuid"`
	FromPlatform string    `json:"from_platform"`
	FromIdentity string    `json:"from_identity"`
	ToUUID       string    `json:"to_uuid"`
	ToPlatform   string    `json:"to_platform"`
	ToIdentity   string    `json:"to_identity"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// Producer is the kgo surface the publisher needs; tests substitute a fake.
type Producer interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
}

// Publisher emits proof.linked events. Publishing is best-effort and
// asynchronous: a broker outage must not fail the fetch that discovered the
// link, so delivery errors are logged, not returned.
type Publisher struct {
	producer Producer
	topic    string
	logger   *slog.Logger
}

// New builds a publisher over an existing producer. Returns nil when the
// producer is nil (Kafka not configured); a nil *Publisher is safe to call.
func New(producer Producer, topic string, logger *slog.Logger) *Publisher {
	if producer == nil {
		return nil
	}
	return &Publisher{producer: producer, topic: topic, logger: logger}
}

// NewClient dials Kafka with the settings this service needs.
func NewClient(brokers []string) (*kgo.Client, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial kafka: %w", err)
	}
	return client, nil
}

// PublishConnections emits one event per connection, keyed on the proof uuid
// so re-fetches of the same fact land in the same partition.
func (p *Publisher) PublishConnections(ctx context.Context, connections []upstream.Connection) {
	if p == nil {
		return
	}
	for _, conn := range connections {
		event := toEvent(conn)
		payload, err := json.Marshal(event)
		if err != nil {
			p.logger.ErrorContext(ctx, "marshal proof.linked event", "error", err)
			continue
		}
		record := &kgo.Record{
			Topic: p.topic,
			Key:   []byte(event.ProofUUID),
			Value: payload,
		}
		p.producer.Produce(ctx, record, func(_ *kgo.Record, err error) {
			if err != nil {
				p.logger.Error("publish proof.linked event",
					"proof_uuid", event.ProofUUID,
					"error", err,
				)
			}
		})
	}
}

func toEvent(conn upstream.Connection) ProofLinked {
	event := ProofLinked{
		ProofUUID:    conn.Proof.UID.String(),
		Source:       conn.Proof.Source.String(),
		FromUUID:     conn.From.UID.String(),
		FromPlatform: conn.From.Platform.String(),
		FromIdentity: conn.From.Identity,
		ToUUID:       conn.To.UID.String(),
		ToPlatform:   conn.To.Platform.String(),
		ToIdentity:   conn.To.Identity,
		FetchedAt:    conn.Proof.LastFetchedAt,
	}
	if conn.Proof.RecordID != nil {
		event.RecordID = *conn.Proof.RecordID
	}
	return event
}
