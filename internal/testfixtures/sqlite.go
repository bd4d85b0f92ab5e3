package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/transport-scheduler/internal/persistence"
	"github.com/example/transport-scheduler/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a temporary SQLite
// database for integration-style persistence tests.
type SQLiteHarness struct {
	Users          persistence.UserRepository
	Sessions       persistence.SessionRepository
	Schedules      persistence.ScheduleRepository
	ChangeRequests persistence.ChangeRequestRepository
	Trips          persistence.TripRepository
	Addresses      persistence.AddressRepository
	Notifications  persistence.NotificationRepository
	DeviceTokens   persistence.DeviceTokenRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness on a temporary file that is
// migrated automatically. A cleanup callback is registered with the provided
// testing.TB so callers do not need to invoke Close themselves.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	dir := tb.TempDir()
	path := filepath.Join(dir, "transport.db")

	db, err := sqlite.Open(path)
	if err != nil {
		tb.Fatalf("failed to open database: %v", err)
	}

	if err := db.Migrate(context.Background()); err != nil {
		_ = db.Close()
		tb.Fatalf("failed to migrate database: %v", err)
	}

	harness := &SQLiteHarness{
		Users:          sqlite.NewUserRepository(db),
		Sessions:       sqlite.NewSessionRepository(db),
		Schedules:      sqlite.NewScheduleRepository(db),
		ChangeRequests: sqlite.NewChangeRequestRepository(db),
		Trips:          sqlite.NewTripRepository(db),
		Addresses:      sqlite.NewAddressRepository(db),
		Notifications:  sqlite.NewNotificationRepository(db),
		DeviceTokens:   sqlite.NewDeviceTokenRepository(db),
		cleanup: func() {
			_ = db.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}
