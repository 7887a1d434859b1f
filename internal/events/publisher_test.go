package events

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"relationd/internal/graph"
	"relationd/internal/upstream"
)

// captureProducer records produced messages and completes their promises.
type captureProducer struct {
	records []*kgo.Record
	err     error
}

func (p *captureProducer) Produce(_ context.Context, r *kgo.Record, promise func(*kgo.Record, error)) {
	p.records = append(p.records, r)
	if promise != nil {
		promise(r, p.err)
	}
}

func testConnection() upstream.Connection {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	recordID := "p1"
	return upstream.Connection{
		From: &graph.Identity{UID: uuid.New(), Platform: graph.PlatformKeybase, Identity: "alice"},
		To:   &graph.Identity{UID: uuid.New(), Platform: graph.PlatformTwitter, Identity: "alice_tw"},
		Proof: &graph.Proof{
			UID:           uuid.New(),
			Source:        graph.DataSourceKeybase,
			RecordID:      &recordID,
			LastFetchedAt: now,
		},
	}
}

func TestPublishConnections(t *testing.T) {
	producer := &captureProducer{}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	publisher := New(producer, "relationd.proof.linked", logger)
	require.NotNil(t, publisher)

	conn := testConnection()
	publisher.PublishConnections(context.Background(), []upstream.Connection{conn})

	require.Len(t, producer.records, 1)
	record := producer.records[0]
	assert.Equal(t, "relationd.proof.linked", record.Topic)
	assert.Equal(t, conn.Proof.UID.String(), string(record.Key))

	var event ProofLinked
	require.NoError(t, json.Unmarshal(record.Value, &event))
	assert.Equal(t, conn.Proof.UID.String(), event.ProofUUID)
	assert.Equal(t, "keybase", event.Source)
	assert.Equal(t, "p1", event.RecordID)
	assert.Equal(t, conn.From.UID.String(), event.FromUUID)
	assert.Equal(t, "alice", event.FromIdentity)
	assert.Equal(t, conn.To.UID.String(), event.ToUUID)
	assert.Equal(t, "twitter", event.ToPlatform)
	assert.Equal(t, conn.Proof.LastFetchedAt, event.FetchedAt)
}

func TestPublishOneEventPerConnection(t *testing.T) {
	producer := &captureProducer{}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	publisher := New(producer, "relationd.proof.linked", logger)

	publisher.PublishConnections(context.Background(),
		[]upstream.Connection{testConnection(), testConnection(), testConnection()})
	assert.Len(t, producer.records, 3)
}

func TestNilPublisherIsSafe(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	publisher := New(nil, "relationd.proof.linked", logger)
	require.Nil(t, publisher)

	// Publishing through the nil publisher is a no-op, not a panic.
	publisher.PublishConnections(context.Background(), []upstream.Connection{testConnection()})
}

func TestDeliveryFailureDoesNotPropagate(t *testing.T) {
	producer := &captureProducer{err: assert.AnError}
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	publisher := New(producer, "relationd.proof.linked", logger)

	publisher.PublishConnections(context.Background(), []upstream.Connection{testConnection()})
	assert.Contains(t, logs.String(), "publish proof.linked event")
}
