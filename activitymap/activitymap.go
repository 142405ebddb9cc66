// Package activitymap turns auth activity events into audit records with an
// explicit actor, verb and object, ready for an activity feed or log shipper.
package activitymap

import (
	"context"
	"strings"
	"time"

	auth "github.com/goliatone/go-auth-guard"
)

// Object types
const (
	ObjectUser = "user"
	ObjectRole = "role"
)

// Outcomes
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeThrottled = "throttled"
)

// Failure reasons reported by the login flow
const (
	ReasonUnknownUser = "unknown_user"
	ReasonBadPassword = "bad_password"
	ReasonStoreError  = "store_error"
	ReasonTokenError  = "token_error"
	ReasonRateLimited = "rate_limited"
)

// Anonymous is the actor of events nobody could be attributed to
const Anonymous = "anonymous"

// Object is what an activity acted on
type Object struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Record is an audit entry: Actor did Verb to Object, on behalf of or
// concerning Subject.
type Record struct {
	Actor      string         `json:"actor"`
	Verb       string         `json:"verb"`
	Object     Object         `json:"object"`
	Subject    string         `json:"subject,omitempty"`
	Outcome    string         `json:"outcome"`
	Reason     string         `json:"reason,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type eventShape struct {
	verb    string
	object  string
	outcome string
	// selfActed events are performed by the account they concern
	selfActed bool
}

var shapes = map[auth.ActivityEventType]eventShape{
	auth.ActivityEventLoginSuccess:    {verb: "login", object: ObjectUser, outcome: OutcomeSuccess, selfActed: true},
	auth.ActivityEventLoginFailure:    {verb: "login.failed", object: ObjectUser, outcome: OutcomeFailure},
	auth.ActivityEventLoginThrottled:  {verb: "login.throttled", object: ObjectUser, outcome: OutcomeThrottled},
	auth.ActivityEventUserRegistered:  {verb: "register", object: ObjectUser, outcome: OutcomeSuccess, selfActed: true},
	auth.ActivityEventPasswordChanged: {verb: "password.change", object: ObjectUser, outcome: OutcomeSuccess, selfActed: true},
	auth.ActivityEventRoleAssigned:    {verb: "role.assign", object: ObjectRole, outcome: OutcomeSuccess},
	auth.ActivityEventRoleRevoked:     {verb: "role.revoke", object: ObjectRole, outcome: OutcomeSuccess},
}

// failureVerbs refines login.failed by reason
var failureVerbs = map[string]string{
	ReasonUnknownUser: "login.unknown_user",
	ReasonBadPassword: "login.bad_password",
	ReasonStoreError:  "login.error",
	ReasonTokenError:  "login.error",
}

// Mapper builds Records from events
type Mapper struct {
	Channel string
	// Now stamps events that carry no time
	Now func() time.Time
}

// NewMapper returns a Mapper on the "auth" channel
func NewMapper() *Mapper {
	return &Mapper{Channel: "auth", Now: time.Now}
}

// Map converts event. Unknown event types keep their type as the verb and
// act on the user they name.
func (m *Mapper) Map(event auth.ActivityEvent) Record {
	shape, ok := shapes[event.EventType]
	if !ok {
		shape = eventShape{verb: string(event.EventType), object: ObjectUser, outcome: OutcomeSuccess}
	}

	username := strings.TrimSpace(event.Username)
	reason := strings.TrimSpace(event.Reason)

	rec := Record{
		Actor:      m.actor(event, shape, username),
		Verb:       shape.verb,
		Object:     Object{Type: shape.object, ID: username},
		Outcome:    shape.outcome,
		Reason:     reason,
		Channel:    m.Channel,
		Metadata:   copyMetadata(event.Metadata),
		OccurredAt: event.OccurredAt,
	}

	if shape.object == ObjectRole {
		role, _ := event.Metadata["role"].(string)
		rec.Object.ID = strings.TrimSpace(role)
		rec.Subject = username
		delete(rec.Metadata, "role")
	}

	if shape.outcome == OutcomeFailure {
		if verb, ok := failureVerbs[reason]; ok {
			rec.Verb = verb
		}
	}

	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = m.now()
	}
	if len(rec.Metadata) == 0 {
		rec.Metadata = nil
	}
	return rec
}

// Sink returns an auth.ActivitySink that maps every event and hands the
// record to emit.
func (m *Mapper) Sink(emit func(ctx context.Context, rec Record) error) auth.ActivitySink {
	return auth.ActivitySinkFunc(func(ctx context.Context, event auth.ActivityEvent) error {
		if emit == nil {
			return nil
		}
		return emit(ctx, m.Map(event))
	})
}

func (m *Mapper) actor(event auth.ActivityEvent, shape eventShape, username string) string {
	if actor := strings.TrimSpace(event.Actor); actor != "" {
		return actor
	}
	if shape.selfActed && username != "" {
		return username
	}
	return Anonymous
}

func (m *Mapper) now() time.Time {
	if m.Now == nil {
		return time.Now().UTC()
	}
	return m.Now().UTC()
}

func copyMetadata(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
