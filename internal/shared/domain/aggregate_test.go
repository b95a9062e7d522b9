package domain_test

import (
	"testing"
	"time"

	"github.com/felixgeelhaar/caravan/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleAggregate struct {
	domain.BaseAggregateRoot
}

type sampleEvent struct {
	domain.BaseEvent
	Note string `json:"note"`
}

func TestBaseAggregateRoot_Record(t *testing.T) {
	agg := &sampleAggregate{BaseAggregateRoot: domain.NewBaseAggregateRoot()}
	before := agg.UpdatedAt()
	time.Sleep(time.Millisecond)

	evt := &sampleEvent{BaseEvent: domain.NewBaseEvent(agg.ID(), "Sample", "sample.recorded"), Note: "x"}
	agg.Record(evt)

	require.Len(t, agg.DomainEvents(), 1)
	assert.Equal(t, evt.EventID(), agg.DomainEvents()[0].EventID())
	assert.True(t, agg.UpdatedAt().After(before))

	agg.ClearDomainEvents()
	assert.Empty(t, agg.DomainEvents())
}

func TestRehydrateBaseAggregateRoot(t *testing.T) {
	id := uuid.New()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	agg := domain.RehydrateBaseAggregateRoot(domain.RehydrateBaseEntity(id, created, created))

	assert.Equal(t, id, agg.ID())
	assert.Equal(t, created, agg.CreatedAt())
	assert.Empty(t, agg.DomainEvents())
}

func TestBaseEvent_SetMetadata(t *testing.T) {
	aggID := uuid.New()
	evt := &sampleEvent{BaseEvent: domain.NewBaseEvent(aggID, "Sample", "sample.recorded")}
	meta := domain.EventMetadata{CorrelationID: uuid.New(), UserID: uuid.New()}

	evt.SetMetadata(meta)

	assert.Equal(t, meta, evt.Metadata())
	assert.Equal(t, aggID, evt.AggregateID())
	assert.Equal(t, "sample.recorded", evt.RoutingKey())
	assert.NotEqual(t, uuid.Nil, evt.EventID())
}

func TestSameIdentity(t *testing.T) {
	a := domain.NewBaseEntity()
	b := domain.RehydrateBaseEntity(a.ID(), time.Now(), time.Now())

	assert.True(t, domain.SameIdentity(a, b))
	assert.False(t, domain.SameIdentity(a, domain.NewBaseEntity()))
	assert.False(t, domain.SameIdentity(a, nil))
}
