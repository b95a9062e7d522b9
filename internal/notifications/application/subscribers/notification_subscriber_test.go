package subscribers_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/felixgeelhaar/caravan/internal/notifications/application/commands"
	"github.com/felixgeelhaar/caravan/internal/notifications/application/queries"
	"github.com/felixgeelhaar/caravan/internal/notifications/application/subscribers"
	"github.com/felixgeelhaar/caravan/internal/notifications/domain"
	"github.com/felixgeelhaar/caravan/internal/notifications/infrastructure/persistence"
	planningDomain "github.com/felixgeelhaar/caravan/internal/planning/domain"
	"github.com/felixgeelhaar/caravan/internal/shared/infrastructure/database/dbtest"
	"github.com/felixgeelhaar/caravan/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/caravan/pkg/observability"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	repo    *persistence.SQLNotificationRepository
	sub     *subscribers.NotificationSubscriber
	metrics *observability.InMemoryMetrics
	owner   uuid.UUID
	guest   uuid.UUID
	planID  uuid.UUID
}

func setup(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	repo := persistence.NewSQLNotificationRepository(conn)
	metrics := observability.NewInMemoryMetrics()
	owner := dbtest.User(t, conn, "Olga")
	return &fixture{
		repo:    repo,
		sub:     subscribers.NewNotificationSubscriber(repo, metrics, nil),
		metrics: metrics,
		owner:   owner,
		guest:   dbtest.User(t, conn, "Gil"),
		planID:  dbtest.Plan(t, conn, owner, "NEW"),
	}
}

func event(t *testing.T, key string, aggregateID uuid.UUID, payload any) *eventbus.ConsumedEvent {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return &eventbus.ConsumedEvent{
		EventID:     uuid.New(),
		AggregateID: aggregateID,
		RoutingKey:  key,
		Payload:     raw,
	}
}

func inbox(t *testing.T, f *fixture, userID uuid.UUID) []domain.Notification {
	t.Helper()
	list, err := queries.NewListNotificationsHandler(f.repo).Handle(context.Background(), queries.ListNotificationsQuery{UserID: userID})
	require.NoError(t, err)
	return list
}

func TestNotificationSubscriber_MembershipRouting(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		from, to planningDomain.MembershipStatus
		toOwner  bool
		kind     domain.Kind
	}{
		{"application received", planningDomain.RoutingKeyMemberApplied, "", planningDomain.StatusApplied, true, domain.KindApplicationReceived},
		{"application withdrawn", planningDomain.RoutingKeyMemberCancelled, planningDomain.StatusApplied, planningDomain.StatusAppliedCancelled, true, domain.KindApplicationWithdrawn},
		{"application accepted", planningDomain.RoutingKeyMemberAccepted, planningDomain.StatusApplied, planningDomain.StatusAppliedAccepted, false, domain.KindApplicationDecided},
		{"application refused", planningDomain.RoutingKeyMemberRefused, planningDomain.StatusApplied, planningDomain.StatusAppliedRefused, false, domain.KindApplicationDecided},
		{"invitation received", planningDomain.RoutingKeyMemberInvited, "", planningDomain.StatusInvited, false, domain.KindInvitationReceived},
		{"invitation accepted", planningDomain.RoutingKeyMemberAccepted, planningDomain.StatusInvited, planningDomain.StatusInvitedAccepted, true, domain.KindInvitationDecided},
		{"invitation refused", planningDomain.RoutingKeyMemberRefused, planningDomain.StatusInvited, planningDomain.StatusInvitedRefused, true, domain.KindInvitationDecided},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			evt := event(t, tt.key, f.planID, planningDomain.MembershipChanged{
				UserID: f.guest, OwnerID: f.owner, Title: "Lisbon", From: tt.from, To: tt.to,
			})
			require.NoError(t, f.sub.Handle(context.Background(), evt))

			recipient, other := f.guest, f.owner
			if tt.toOwner {
				recipient, other = f.owner, f.guest
			}
			got := inbox(t, f, recipient)
			require.Len(t, got, 1)
			assert.Equal(t, tt.kind, got[0].Kind)
			assert.Equal(t, f.planID, got[0].PlanID)
			assert.Contains(t, got[0].Subject, "Lisbon")
			assert.Empty(t, inbox(t, f, other))
		})
	}
}

func TestNotificationSubscriber_RedeliveryIsIdempotent(t *testing.T) {
	f := setup(t)
	evt := event(t, planningDomain.RoutingKeyPlanClosed, f.planID, planningDomain.PlanClosed{
		OwnerID: f.owner, Title: "Lisbon", Reason: "weather", Recipients: []uuid.UUID{f.guest},
	})

	require.NoError(t, f.sub.Handle(context.Background(), evt))
	require.NoError(t, f.sub.Handle(context.Background(), evt))

	got := inbox(t, f, f.guest)
	require.Len(t, got, 1)
	assert.Equal(t, domain.KindPlanCancelled, got[0].Kind)
	assert.Contains(t, got[0].Body, "weather")
	assert.Equal(t, int64(1), f.metrics.GetCounter(observability.MetricNotificationsStored,
		observability.T("event", planningDomain.RoutingKeyPlanClosed)))
}

func TestNotificationSubscriber_PlanStartedSkipsOwner(t *testing.T) {
	f := setup(t)
	evt := event(t, planningDomain.RoutingKeyPlanStarted, f.planID, planningDomain.PlanStarted{
		OwnerID: f.owner, Title: "Lisbon", Members: []uuid.UUID{f.owner}, Refused: []uuid.UUID{f.guest},
	})
	require.NoError(t, f.sub.Handle(context.Background(), evt))

	assert.Empty(t, inbox(t, f, f.owner))
	got := inbox(t, f, f.guest)
	require.Len(t, got, 1)
	assert.Equal(t, domain.KindApplicationDecided, got[0].Kind)
}

func TestNotificationSubscriber_Welcome(t *testing.T) {
	f := setup(t)
	evt := event(t, "identity.user.registered", f.guest, map[string]string{"email": "gil@example.com", "name": "Gil Tester"})
	require.NoError(t, f.sub.Handle(context.Background(), evt))

	got := inbox(t, f, f.guest)
	require.Len(t, got, 1)
	assert.Equal(t, domain.KindWelcome, got[0].Kind)
	assert.Equal(t, uuid.Nil, got[0].PlanID)
	assert.Contains(t, got[0].Body, "Gil Tester")
}

func TestNotificationSubscriber_MalformedPayloadIsDropped(t *testing.T) {
	f := setup(t)
	evt := &eventbus.ConsumedEvent{EventID: uuid.New(), RoutingKey: planningDomain.RoutingKeyPlanClosed, Payload: []byte(`{`)}
	assert.NoError(t, f.sub.Handle(context.Background(), evt))
}

func TestMarkRead(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	evt := event(t, planningDomain.RoutingKeyMemberInvited, f.planID, planningDomain.MembershipChanged{
		UserID: f.guest, OwnerID: f.owner, Title: "Lisbon", To: planningDomain.StatusInvited,
	})
	require.NoError(t, f.sub.Handle(ctx, evt))
	note := inbox(t, f, f.guest)[0]

	markRead := commands.NewMarkReadHandler(f.repo)
	err := markRead.Handle(ctx, commands.MarkReadCommand{NotificationID: note.ID, UserID: f.owner})
	assert.ErrorIs(t, err, domain.ErrNotificationNotFound)

	require.NoError(t, markRead.Handle(ctx, commands.MarkReadCommand{NotificationID: note.ID, UserID: f.guest}))
	require.NoError(t, markRead.Handle(ctx, commands.MarkReadCommand{NotificationID: note.ID, UserID: f.guest}))

	list := queries.NewListNotificationsHandler(f.repo)
	unread, err := list.Handle(ctx, queries.ListNotificationsQuery{UserID: f.guest, UnreadOnly: true})
	require.NoError(t, err)
	assert.Empty(t, unread)

	all := inbox(t, f, f.guest)
	require.Len(t, all, 1)
	assert.NotNil(t, all[0].ReadAt)
}
