package outbox_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/caravan/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/caravan/pkg/observability"
)

type mockRepository struct {
	mu           sync.Mutex
	messages     []*outbox.Message
	publishedIDs []int64
	failedIDs    []int64
	deadIDs      []int64
	listErr      error
}

func (r *mockRepository) Save(_ context.Context, msg *outbox.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg.ID = int64(len(r.messages) + 1)
	r.messages = append(r.messages, msg)
	return nil
}

func (r *mockRepository) SaveBatch(ctx context.Context, msgs []*outbox.Message) error {
	for _, m := range msgs {
		_ = r.Save(ctx, m)
	}
	return nil
}

func (r *mockRepository) GetUnpublished(_ context.Context, limit int) ([]*outbox.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []*outbox.Message
	now := time.Now()
	for _, m := range r.messages {
		if m.PublishedAt != nil || m.DeadLetteredAt != nil {
			continue
		}
		if m.NextRetryAt != nil && m.NextRetryAt.After(now) {
			continue
		}
		out = append(out, m)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *mockRepository) find(id int64) *outbox.Message {
	for _, m := range r.messages {
		if m.ID == id {
			return m
		}
	}
	return nil
}

func (r *mockRepository) MarkPublished(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publishedIDs = append(r.publishedIDs, id)
	now := time.Now()
	r.find(id).PublishedAt = &now
	return nil
}

func (r *mockRepository) MarkFailed(_ context.Context, id int64, errMsg string, next time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failedIDs = append(r.failedIDs, id)
	m := r.find(id)
	m.RetryCount++
	m.LastError = &errMsg
	m.NextRetryAt = &next
	return nil
}

func (r *mockRepository) MarkDead(_ context.Context, id int64, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deadIDs = append(r.deadIDs, id)
	now := time.Now()
	m := r.find(id)
	m.DeadLetteredAt = &now
	m.DeadLetterReason = &reason
	return nil
}

func (r *mockRepository) DeleteOld(context.Context, int) (int64, error) { return 0, nil }

type mockPublisher struct {
	mu      sync.Mutex
	keys    []string
	failFor map[string]bool
}

func newMockPublisher() *mockPublisher {
	return &mockPublisher{failFor: map[string]bool{}}
}

func (p *mockPublisher) Publish(_ context.Context, key string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failFor[key] {
		return errors.New("broker unavailable")
	}
	p.keys = append(p.keys, key)
	return nil
}

func (p *mockPublisher) Close() error { return nil }

func (p *mockPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}

func testMessage(key string) *outbox.Message {
	return &outbox.Message{
		EventID:       uuid.New(),
		AggregateType: "TravelPlan",
		AggregateID:   uuid.New(),
		EventType:     key,
		RoutingKey:    key,
		Payload:       []byte(`{}`),
		CreatedAt:     time.Now(),
	}
}

func TestProcessor_ProcessOnce(t *testing.T) {
	repo := &mockRepository{}
	pub := newMockPublisher()
	metrics := observability.NewInMemoryMetrics()
	p := outbox.NewProcessor(repo, pub, outbox.DefaultProcessorConfig(), nil).WithMetrics(metrics)

	_ = repo.Save(context.Background(), testMessage("planning.plan.created"))
	_ = repo.Save(context.Background(), testMessage("planning.membership.applied"))

	require.NoError(t, p.ProcessOnce(context.Background()))

	assert.Equal(t, 2, pub.count())
	assert.Equal(t, []int64{1, 2}, repo.publishedIDs)
	stats := p.GetStats()
	assert.Equal(t, uint64(2), stats.PublishedCount)
	assert.NotNil(t, stats.LastProcessedAt)
	assert.Equal(t, int64(1), metrics.GetCounter(observability.MetricOutboxPublished,
		observability.T("routing_key", "planning.plan.created")))

	// Nothing left on the second pass.
	require.NoError(t, p.ProcessOnce(context.Background()))
	assert.Equal(t, 2, pub.count())
}

func TestProcessor_FailureSchedulesRetry(t *testing.T) {
	repo := &mockRepository{}
	pub := newMockPublisher()
	pub.failFor["planning.plan.started"] = true
	p := outbox.NewProcessor(repo, pub, outbox.DefaultProcessorConfig(), nil)

	_ = repo.Save(context.Background(), testMessage("planning.plan.created"))
	_ = repo.Save(context.Background(), testMessage("planning.plan.started"))

	require.NoError(t, p.ProcessOnce(context.Background()))

	assert.Equal(t, 1, pub.count())
	assert.Equal(t, []int64{2}, repo.failedIDs)
	require.NotNil(t, repo.messages[1].NextRetryAt)
	assert.True(t, repo.messages[1].NextRetryAt.After(time.Now()))
	assert.Equal(t, uint64(1), p.GetStats().FailedCount)
	assert.Equal(t, "broker unavailable", p.GetStats().LastError)
}

func TestProcessor_DeadLettersAfterMaxRetries(t *testing.T) {
	repo := &mockRepository{}
	pub := newMockPublisher()
	pub.failFor["x"] = true
	cfg := outbox.DefaultProcessorConfig()
	cfg.MaxRetries = 1
	p := outbox.NewProcessor(repo, pub, cfg, nil)

	_ = repo.Save(context.Background(), testMessage("x"))
	require.NoError(t, p.ProcessOnce(context.Background()))

	assert.Empty(t, repo.failedIDs)
	assert.Equal(t, []int64{1}, repo.deadIDs)
	assert.Equal(t, uint64(1), p.GetStats().DeadCount)
}

func TestProcessor_ListErrorIsReturned(t *testing.T) {
	repo := &mockRepository{listErr: errors.New("db down")}
	p := outbox.NewProcessor(repo, newMockPublisher(), outbox.DefaultProcessorConfig(), nil)

	err := p.ProcessOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, "db down", p.GetStats().LastError)
}

func TestProcessor_StartStop(t *testing.T) {
	repo := &mockRepository{}
	pub := newMockPublisher()
	cfg := outbox.DefaultProcessorConfig()
	cfg.PollInterval = 5 * time.Millisecond
	p := outbox.NewProcessor(repo, pub, cfg, nil)

	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, p.Start(context.Background()))
	assert.True(t, p.IsRunning())

	_ = repo.Save(context.Background(), testMessage("planning.plan.closed"))
	assert.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, 5*time.Millisecond)

	p.Stop()
	p.Stop()
	assert.False(t, p.IsRunning())
	assert.False(t, p.GetStats().IsRunning)
}
