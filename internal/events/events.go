// Package events fans group activity out to side channels (notification rows,
// NATS subjects, websocket subscribers). Delivery is best effort: a failing sink
// is logged and never fails the request that produced the event.
package events

import (
	"context"
	"time"

	"github.com/bwise1/outpost/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Type string

const (
	MemberJoined   Type = "group.member_joined"
	MemberLeft     Type = "group.member_left"
	MemberKicked   Type = "group.member_kicked"
	MemberBanned   Type = "group.member_banned"
	MemberUnbanned Type = "group.member_unbanned"
	RoleChanged    Type = "group.role_changed"
	GroupDeleted   Type = "group.deleted"
	MessageSent    Type = "group.message_sent"
)

// Event describes something that happened in a group after its transaction
// committed. Recipients are the users that get a notification row. Audience,
// when set, limits live delivery to those users. Removed lists users whose
// membership ended with this event; live subscribers drop them before
// delivery.
type Event struct {
	Type       Type                   `json:"type"`
	GroupID    uuid.UUID              `json:"group_id"`
	ActorID    uuid.UUID              `json:"actor_id"`
	Recipients []uuid.UUID            `json:"-"`
	Audience   []uuid.UUID            `json:"-"`
	Removed    []uuid.UUID            `json:"-"`
	Title      string                 `json:"title"`
	Message    string                 `json:"message"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Payload    interface{}            `json:"payload,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

type Sink interface {
	Name() string
	Handle(ctx context.Context, ev Event) error
}

// BestEffort delivers an event and swallows every failure.
type BestEffort func(ctx context.Context, ev Event)

// Discard drops every event.
func Discard(context.Context, Event) {}

type Dispatcher struct {
	sinks []Sink
}

func NewDispatcher(sinks ...Sink) *Dispatcher {
	return &Dispatcher{sinks: sinks}
}

// Dispatch hands ev to every sink. The caller's cancellation does not stop
// delivery once the originating request has committed.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	ctx = context.WithoutCancel(ctx)

	for _, sink := range d.sinks {
		if err := sink.Handle(ctx, ev); err != nil {
			metrics.EventsDispatchedTotal.WithLabelValues(sink.Name(), string(ev.Type), "error").Inc()
			log.Warn().Err(err).
				Str("sink", sink.Name()).
				Str("event", string(ev.Type)).
				Str("group_id", ev.GroupID.String()).
				Msg("event delivery failed")
			continue
		}
		metrics.EventsDispatchedTotal.WithLabelValues(sink.Name(), string(ev.Type), "ok").Inc()
	}
}

func (d *Dispatcher) BestEffort() BestEffort {
	return d.Dispatch
}
