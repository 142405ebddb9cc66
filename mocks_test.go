package auth_test

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	auth "github.com/goliatone/go-auth-guard"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// MockCredentialStore implements auth.CredentialStore
type MockCredentialStore struct {
	mock.Mock
}

func (m *MockCredentialStore) FindByUsername(ctx context.Context, username string) (auth.Credentials, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(auth.Credentials), args.Error(1)
}

// MockPasswordVerifier implements auth.PasswordVerifier
type MockPasswordVerifier struct {
	mock.Mock
}

func (m *MockPasswordVerifier) Hash(plain string) (string, error) {
	args := m.Called(plain)
	return args.String(0), args.Error(1)
}

func (m *MockPasswordVerifier) Matches(plain, hash string) bool {
	args := m.Called(plain, hash)
	return args.Bool(0)
}

// MockTokenIssuer implements auth.TokenIssuer
type MockTokenIssuer struct {
	mock.Mock
}

func (m *MockTokenIssuer) Issue(subject string, roles []string, now time.Time) (auth.IssuedToken, error) {
	args := m.Called(subject, roles, now)
	return args.Get(0).(auth.IssuedToken), args.Error(1)
}

// MockActivitySink implements auth.ActivitySink
type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event auth.ActivityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockLogger implements auth.Logger
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(msg string, args ...any) { m.Called(msg, args) }
func (m *MockLogger) Info(msg string, args ...any)  { m.Called(msg, args) }
func (m *MockLogger) Warn(msg string, args ...any)  { m.Called(msg, args) }
func (m *MockLogger) Error(msg string, args ...any) { m.Called(msg, args) }

// recordingSink keeps every event it receives
type recordingSink struct {
	events []auth.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) types() []auth.ActivityEventType {
	out := make([]auth.ActivityEventType, len(s.events))
	for i, e := range s.events {
		out[i] = e.EventType
	}
	return out
}

func testOptions(t *testing.T, opts ...auth.Option) auth.Options {
	t.Helper()
	o, err := auth.NewOptions(testSigningKey, opts...)
	require.NoError(t, err)
	return o
}

func testTokenService(t *testing.T, opts ...auth.Option) *auth.TokenService {
	t.Helper()
	ts, err := auth.NewTokenService(testOptions(t, opts...))
	require.NoError(t, err)
	return ts
}

// setupTestDB returns a migrated in memory sqlite database. Each test gets
// its own database by name.
func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	sqldb, err := sql.Open(sqliteshim.ShimName, "file:"+name+"?mode=memory&cache=shared")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	_, err = auth.Migrate(context.Background(), db)
	require.NoError(t, err)

	return db
}

// fastVerifier keeps bcrypt tests quick
func fastVerifier() auth.BcryptVerifier {
	return auth.BcryptVerifier{Cost: 4}
}
