package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/vigilance-tracker-api/internal/models"
	"github.com/noah-isme/vigilance-tracker-api/internal/repository"
)

type memOutbox struct {
	mu      sync.Mutex
	pending []models.OutboxMessage
	relayed []string
	relays  int
}

func (m *memOutbox) Relay(ctx context.Context, limit int, publish repository.PublishFunc) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relays++
	n := 0
	for len(m.pending) > 0 && n < limit {
		msg := m.pending[0]
		if err := publish(ctx, msg); err != nil {
			m.pending[0].Attempts++
			break
		}
		m.relayed = append(m.relayed, msg.ID)
		m.pending = m.pending[1:]
		n++
	}
	return n, nil
}

func (m *memOutbox) OldestPendingAge(ctx context.Context) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		return 0, nil
	}
	return time.Since(m.pending[0].CreatedAt), nil
}

func (m *memOutbox) PurgePublished(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type publisherStub struct {
	mu       sync.Mutex
	channel  string
	payloads [][]byte
	failOn   string
}

func (p *publisherStub) Publish(ctx context.Context, channel string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var msg models.OutboxMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return err
	}
	if msg.ID == p.failOn {
		return errors.New("redis down")
	}
	p.channel = channel
	p.payloads = append(p.payloads, payload)
	return nil
}

func outboxMessages(ids ...string) []models.OutboxMessage {
	out := make([]models.OutboxMessage, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.OutboxMessage{
			ID:        id,
			Topic:     models.TopicPetitionTransition,
			Payload:   json.RawMessage(`{"petition_id":1}`),
			CreatedAt: time.Now().Add(-time.Minute),
		})
	}
	return out
}

func TestOutboxRelayTickDrainsInBatches(t *testing.T) {
	store := &memOutbox{pending: outboxMessages("a", "b", "c", "d", "e")}
	pub := &publisherStub{}
	relay := NewOutboxRelay(store, pub, NewMetricsService(), zap.NewNop(), OutboxRelayConfig{BatchSize: 2, Channel: "vig:events"})

	published := relay.Tick(context.Background())
	assert.Equal(t, 5, published)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, store.relayed)
	assert.Equal(t, 3, store.relays)
	assert.Equal(t, "vig:events", pub.channel)
	require.Len(t, pub.payloads, 5)
	assert.Contains(t, string(pub.payloads[0]), models.TopicPetitionTransition)
}

func TestOutboxRelayStopsAtFailedMessage(t *testing.T) {
	store := &memOutbox{pending: outboxMessages("a", "b", "c")}
	pub := &publisherStub{failOn: "b"}
	relay := NewOutboxRelay(store, pub, nil, zap.NewNop(), OutboxRelayConfig{BatchSize: 10})

	assert.Equal(t, 1, relay.Tick(context.Background()))
	require.Len(t, store.pending, 2)
	assert.Equal(t, "b", store.pending[0].ID)
	assert.Equal(t, 1, store.pending[0].Attempts)

	pub.failOn = ""
	assert.Equal(t, 2, relay.Tick(context.Background()))
	assert.Equal(t, []string{"a", "b", "c"}, store.relayed)
}

func TestOutboxRelayRunStopsOnCancel(t *testing.T) {
	store := &memOutbox{pending: outboxMessages("a")}
	pub := &publisherStub{}
	relay := NewOutboxRelay(store, pub, nil, zap.NewNop(), OutboxRelayConfig{PollInterval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		relay.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.relayed) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}
