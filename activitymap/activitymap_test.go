package activitymap_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-auth-guard"
	"github.com/goliatone/go-auth-guard/activitymap"
)

func TestMapper_RoleEventsActOnTheRole(t *testing.T) {
	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	m := activitymap.NewMapper()

	for _, tc := range []struct {
		event auth.ActivityEventType
		verb  string
	}{
		{auth.ActivityEventRoleAssigned, "role.assign"},
		{auth.ActivityEventRoleRevoked, "role.revoke"},
	} {
		t.Run(tc.verb, func(t *testing.T) {
			event := auth.ActivityEvent{
				EventType:  tc.event,
				Actor:      "root",
				Username:   "alice",
				Metadata:   map[string]any{"role": "AUDITOR", "via": "api"},
				OccurredAt: ts,
			}

			rec := m.Map(event)

			assert.Equal(t, "root", rec.Actor)
			assert.Equal(t, tc.verb, rec.Verb)
			assert.Equal(t, activitymap.Object{Type: activitymap.ObjectRole, ID: "AUDITOR"}, rec.Object)
			assert.Equal(t, "alice", rec.Subject)
			assert.Equal(t, activitymap.OutcomeSuccess, rec.Outcome)
			assert.Equal(t, map[string]any{"via": "api"}, rec.Metadata)
			assert.Equal(t, ts, rec.OccurredAt)
			assert.Len(t, event.Metadata, 2, "source metadata untouched")
		})
	}
}

func TestMapper_LoginFailureReasonPicksVerb(t *testing.T) {
	m := activitymap.NewMapper()

	tests := []struct {
		reason string
		verb   string
	}{
		{activitymap.ReasonUnknownUser, "login.unknown_user"},
		{activitymap.ReasonBadPassword, "login.bad_password"},
		{activitymap.ReasonStoreError, "login.error"},
		{activitymap.ReasonTokenError, "login.error"},
		{"something_new", "login.failed"},
		{"", "login.failed"},
	}

	for _, tc := range tests {
		t.Run(tc.verb+"/"+tc.reason, func(t *testing.T) {
			rec := m.Map(auth.ActivityEvent{
				EventType: auth.ActivityEventLoginFailure,
				Username:  "nosuchuser",
				Reason:    tc.reason,
			})
			assert.Equal(t, tc.verb, rec.Verb)
			assert.Equal(t, tc.reason, rec.Reason)
			assert.Equal(t, activitymap.OutcomeFailure, rec.Outcome)
			assert.Equal(t, activitymap.Anonymous, rec.Actor, "a failed login is not attributed to the account")
			assert.Equal(t, activitymap.Object{Type: activitymap.ObjectUser, ID: "nosuchuser"}, rec.Object)
			assert.Nil(t, rec.Metadata)
		})
	}
}

func TestMapper_Actor(t *testing.T) {
	m := activitymap.NewMapper()

	tests := []struct {
		name   string
		event  auth.ActivityEvent
		expect string
	}{
		{
			name:   "explicit actor wins",
			event:  auth.ActivityEvent{EventType: auth.ActivityEventUserRegistered, Actor: "root", Username: "alice"},
			expect: "root",
		},
		{
			name:   "self registration",
			event:  auth.ActivityEvent{EventType: auth.ActivityEventUserRegistered, Username: "alice"},
			expect: "alice",
		},
		{
			name:   "password change",
			event:  auth.ActivityEvent{EventType: auth.ActivityEventPasswordChanged, Username: "alice"},
			expect: "alice",
		},
		{
			name:   "role change without actor",
			event:  auth.ActivityEvent{EventType: auth.ActivityEventRoleAssigned, Username: "alice"},
			expect: activitymap.Anonymous,
		},
		{
			name:   "empty event",
			event:  auth.ActivityEvent{},
			expect: activitymap.Anonymous,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, m.Map(tc.event).Actor)
		})
	}
}

func TestMapper_Defaults(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := activitymap.NewMapper()
	m.Now = func() time.Time { return fixed }

	rec := m.Map(auth.ActivityEvent{EventType: auth.ActivityEventLoginThrottled, Username: "alice", Reason: activitymap.ReasonRateLimited})
	assert.Equal(t, "login.throttled", rec.Verb)
	assert.Equal(t, activitymap.OutcomeThrottled, rec.Outcome)
	assert.Equal(t, "auth", rec.Channel)
	assert.Equal(t, fixed, rec.OccurredAt)

	rec = m.Map(auth.ActivityEvent{EventType: "auth.custom", Username: "alice"})
	assert.Equal(t, "auth.custom", rec.Verb)
	assert.Equal(t, activitymap.Object{Type: activitymap.ObjectUser, ID: "alice"}, rec.Object)
}

func TestMapper_Sink(t *testing.T) {
	m := activitymap.NewMapper()
	m.Channel = "security"

	var got []activitymap.Record
	sink := m.Sink(func(_ context.Context, rec activitymap.Record) error {
		got = append(got, rec)
		return nil
	})

	require.NoError(t, sink.Record(context.Background(), auth.ActivityEvent{
		EventType: auth.ActivityEventLoginSuccess,
		Username:  "alice",
	}))
	require.Len(t, got, 1)
	assert.Equal(t, "login", got[0].Verb)
	assert.Equal(t, "alice", got[0].Actor)
	assert.Equal(t, "security", got[0].Channel)

	assert.NoError(t, m.Sink(nil).Record(context.Background(), auth.ActivityEvent{}))
}
