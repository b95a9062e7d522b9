package subscribers

import (
	"context"
	"fmt"
	"log/slog"

	identityDomain "github.com/felixgeelhaar/caravan/internal/identity/domain"
	"github.com/felixgeelhaar/caravan/internal/notifications/domain"
	planningDomain "github.com/felixgeelhaar/caravan/internal/planning/domain"
	"github.com/felixgeelhaar/caravan/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/caravan/pkg/observability"
	"github.com/google/uuid"
)

// NotificationSubscriber turns plan, membership and registration events
// into stored notifications.
type NotificationSubscriber struct {
	repo    domain.Repository
	metrics observability.Metrics
	logger  *slog.Logger
}

// NewNotificationSubscriber creates a new notification subscriber.
func NewNotificationSubscriber(repo domain.Repository, metrics observability.Metrics, logger *slog.Logger) *NotificationSubscriber {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &NotificationSubscriber{repo: repo, metrics: metrics, logger: logger}
}

// EventTypes returns the event types this subscriber handles.
func (s *NotificationSubscriber) EventTypes() []string {
	return []string{
		"planning.plan.*",
		"planning.membership.*",
		identityDomain.RoutingKeyUserRegistered,
	}
}

// Handle processes an event.
func (s *NotificationSubscriber) Handle(ctx context.Context, event *eventbus.ConsumedEvent) error {
	var (
		notes []*domain.Notification
		err   error
	)
	switch event.RoutingKey {
	case identityDomain.RoutingKeyUserRegistered:
		notes, err = s.welcome(event)
	case planningDomain.RoutingKeyPlanClosed:
		notes, err = s.planClosed(event)
	case planningDomain.RoutingKeyPlanStarted:
		notes, err = s.planStarted(event)
	case planningDomain.RoutingKeyPlanCompleted:
		notes, err = s.planCompleted(event)
	case planningDomain.RoutingKeyMemberApplied,
		planningDomain.RoutingKeyMemberCancelled,
		planningDomain.RoutingKeyMemberAccepted,
		planningDomain.RoutingKeyMemberRefused,
		planningDomain.RoutingKeyMemberInvited:
		notes, err = s.membershipChanged(event)
	default:
		return nil
	}
	if err != nil {
		// A payload that cannot be decoded will never succeed on retry.
		s.logger.ErrorContext(ctx, "dropping malformed event", "routing_key", event.RoutingKey, "event_id", event.EventID, "error", err)
		return nil
	}

	stored := 0
	for _, n := range notes {
		inserted, err := s.repo.Insert(ctx, n)
		if err != nil {
			return fmt.Errorf("store notification: %w", err)
		}
		if inserted {
			stored++
		}
	}
	s.metrics.Counter(observability.MetricNotificationsStored, int64(stored), observability.T("event", event.RoutingKey))
	s.logger.DebugContext(ctx, "notifications stored",
		"routing_key", event.RoutingKey,
		"event_id", event.EventID,
		"stored", stored,
		"duplicates", len(notes)-stored,
	)
	return nil
}

func (s *NotificationSubscriber) welcome(event *eventbus.ConsumedEvent) ([]*domain.Notification, error) {
	var p identityDomain.UserRegistered
	if err := event.Decode(&p); err != nil {
		return nil, err
	}
	return []*domain.Notification{
		domain.New(event.EventID, event.AggregateID, uuid.Nil, domain.KindWelcome,
			"Welcome to Caravan", fmt.Sprintf("Hi %s, find a trip to join or plan your own.", p.Name)),
	}, nil
}

func (s *NotificationSubscriber) planClosed(event *eventbus.ConsumedEvent) ([]*domain.Notification, error) {
	var p planningDomain.PlanClosed
	if err := event.Decode(&p); err != nil {
		return nil, err
	}
	subject := fmt.Sprintf("%q was cancelled", p.Title)
	body := fmt.Sprintf("The owner cancelled this trip: %s", p.Reason)
	return fanOut(event, p.Recipients, domain.KindPlanCancelled, subject, body), nil
}

func (s *NotificationSubscriber) planStarted(event *eventbus.ConsumedEvent) ([]*domain.Notification, error) {
	var p planningDomain.PlanStarted
	if err := event.Decode(&p); err != nil {
		return nil, err
	}
	notes := fanOut(event, without(p.Members, p.OwnerID), domain.KindPlanStarted,
		fmt.Sprintf("%q has started", p.Title), "Chat, polls and shared expenses are now open.")
	notes = append(notes, fanOut(event, p.Refused, domain.KindApplicationDecided,
		fmt.Sprintf("%q started without you", p.Title), "The trip began before your request was accepted.")...)
	return notes, nil
}

func (s *NotificationSubscriber) planCompleted(event *eventbus.ConsumedEvent) ([]*domain.Notification, error) {
	var p planningDomain.PlanCompletedEvent
	if err := event.Decode(&p); err != nil {
		return nil, err
	}
	return fanOut(event, p.Members, domain.KindPlanCompleted,
		fmt.Sprintf("%q is complete", p.Title), "The trip has ended. It now appears in your history."), nil
}

func (s *NotificationSubscriber) membershipChanged(event *eventbus.ConsumedEvent) ([]*domain.Notification, error) {
	var p planningDomain.MembershipChanged
	if err := event.Decode(&p); err != nil {
		return nil, err
	}
	planID := event.AggregateID
	note := func(recipient uuid.UUID, kind domain.Kind, subject, body string) []*domain.Notification {
		return []*domain.Notification{domain.New(event.EventID, recipient, planID, kind, subject, body)}
	}

	switch {
	case p.To == planningDomain.StatusApplied:
		return note(p.OwnerID, domain.KindApplicationReceived,
			fmt.Sprintf("New request for %q", p.Title), "Someone asked to join your trip."), nil
	case p.To == planningDomain.StatusAppliedCancelled:
		return note(p.OwnerID, domain.KindApplicationWithdrawn,
			fmt.Sprintf("Request withdrawn for %q", p.Title), "An applicant cancelled their request."), nil
	case p.To == planningDomain.StatusInvited:
		return note(p.UserID, domain.KindInvitationReceived,
			fmt.Sprintf("You are invited to %q", p.Title), "Accept or refuse the invitation from the trip page."), nil
	case p.From == planningDomain.StatusApplied:
		return note(p.UserID, domain.KindApplicationDecided,
			fmt.Sprintf("Your request for %q was %s", p.Title, verb(p.To)), ""), nil
	case p.From == planningDomain.StatusInvited:
		return note(p.OwnerID, domain.KindInvitationDecided,
			fmt.Sprintf("Your invitation to %q was %s", p.Title, verb(p.To)), ""), nil
	}
	return nil, nil
}

func verb(to planningDomain.MembershipStatus) string {
	if to.IsActive() {
		return "accepted"
	}
	return "refused"
}

func fanOut(event *eventbus.ConsumedEvent, recipients []uuid.UUID, kind domain.Kind, subject, body string) []*domain.Notification {
	out := make([]*domain.Notification, 0, len(recipients))
	for _, r := range recipients {
		out = append(out, domain.New(event.EventID, r, event.AggregateID, kind, subject, body))
	}
	return out
}

func without(ids []uuid.UUID, skip uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id != skip {
			out = append(out, id)
		}
	}
	return out
}
