package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventLoginSuccess    ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure    ActivityEventType = "auth.login.failure"
	ActivityEventLoginThrottled  ActivityEventType = "auth.login.throttled"
	ActivityEventUserRegistered  ActivityEventType = "auth.user.registered"
	ActivityEventPasswordChanged ActivityEventType = "auth.password.changed"
	ActivityEventRoleAssigned    ActivityEventType = "auth.role.assigned"
	ActivityEventRoleRevoked     ActivityEventType = "auth.role.revoked"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Username   string
	Actor      string
	Reason     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// LoggerActivitySink writes every event to a Logger at info level
type LoggerActivitySink struct {
	Logger Logger
}

func (s LoggerActivitySink) Record(_ context.Context, event ActivityEvent) error {
	resolveLogger(s.Logger).Info("auth activity",
		"event", string(event.EventType),
		"username", event.Username,
		"actor", event.Actor,
		"reason", event.Reason,
		"occurred_at", event.OccurredAt,
	)
	return nil
}

func emitActivity(ctx context.Context, sink ActivitySink, logger Logger, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := normalizeActivitySink(sink).Record(ctx, event); err != nil {
		resolveLogger(logger).Warn("activity sink failed", "event", string(event.EventType), "error", err)
	}
}
