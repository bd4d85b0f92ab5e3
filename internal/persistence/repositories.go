package persistence

import (
	"context"
	"time"
)

// UserRepository exposes CRUD operations for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id string) error
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}

// ScheduleFilter narrows week schedule queries.
type ScheduleFilter struct {
	UserID    string
	WeekStart string
	Status    string
}

// ScheduleRepository stores submitted week schedules. CreateSchedule must
// return ErrDuplicate when the identity key already exists; documents are
// never deleted.
type ScheduleRepository interface {
	CreateSchedule(ctx context.Context, doc WeekScheduleDoc) error
	GetSchedule(ctx context.Context, id string) (WeekScheduleDoc, error)
	UpdateScheduleStatus(ctx context.Context, id, status, reviewerID, note string, reviewedAt time.Time) error
	ListSchedules(ctx context.Context, filter ScheduleFilter) ([]WeekScheduleDoc, error)
}

// ChangeRequestRepository stores single-day pickup amendments. Upsert replaces
// any existing record at the same identity key.
type ChangeRequestRepository interface {
	UpsertChangeRequest(ctx context.Context, request ChangeRequest) error
	GetChangeRequest(ctx context.Context, id string) (ChangeRequest, error)
	UpdateChangeRequestStatus(ctx context.Context, id, status, reviewerID, note string, reviewedAt time.Time) error
	ListChangeRequests(ctx context.Context, userID string) ([]ChangeRequest, error)
}

// TripFilter narrows trip queries.
type TripFilter struct {
	UserID string
	Status string
}

// TripRepository stores trip lifecycle records. CreateTrip must return
// ErrDuplicate when the identity key already exists so callers can implement
// the idempotent ensure step; UpdateTrip overwrites the mutable fields
// unconditionally (last write wins).
type TripRepository interface {
	CreateTrip(ctx context.Context, trip Trip) error
	GetTrip(ctx context.Context, id string) (Trip, error)
	UpdateTrip(ctx context.Context, trip Trip) error
	ListTrips(ctx context.Context, filter TripFilter) ([]Trip, error)
}

// AddressRepository stores per-user saved locations.
type AddressRepository interface {
	CreateAddress(ctx context.Context, address SavedAddress) error
	GetAddress(ctx context.Context, userID, id string) (SavedAddress, error)
	ListAddresses(ctx context.Context, userID string) ([]SavedAddress, error)
	DeleteAddress(ctx context.Context, userID, id string) error
}

// NotificationRepository appends and lists per-user notification records.
type NotificationRepository interface {
	AppendNotification(ctx context.Context, notification Notification) error
	GetNotification(ctx context.Context, userID, id string) (Notification, error)
	ListNotifications(ctx context.Context, userID string) ([]Notification, error)
	DismissNotifications(ctx context.Context, userID string, dismissedAt time.Time) error
}

// DeviceTokenRepository stores push delivery targets. RegisterToken is
// idempotent per token value.
type DeviceTokenRepository interface {
	RegisterToken(ctx context.Context, token DeviceToken) error
	ListTokens(ctx context.Context, userID string) ([]DeviceToken, error)
	DeleteToken(ctx context.Context, userID, token string) error
}
