package persistence

import (
	"time"

	"github.com/example/transport-scheduler/internal/week"
)

// User represents an employee account.
type User struct {
	ID               string
	Email            string
	FullName         string
	Phone            string
	Gender           string
	HomeAddress      string
	PasswordHash     string
	IsAdmin          bool
	ProfileCompleted bool
	Disabled         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Session represents an authentication session persisted for a user.
type Session struct {
	ID          string
	UserID      string
	Token       string
	Fingerprint string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	RevokedAt   *time.Time
}

// WeekScheduleDoc is the submitted pickup/drop plan for one user and week.
// Its identity key is "{userID}_{weekStart}"; a key is written at most once
// and afterwards only the review fields change.
type WeekScheduleDoc struct {
	ID         string
	UserID     string
	WeekStart  string
	Days       week.Schedule
	Status     string
	ReviewerID string
	ReviewNote string
	CreatedAt  time.Time
	ReviewedAt *time.Time
}

// ChangeRequest is a single-day pickup amendment, keyed by
// "{userID}_{weekStart}_{day}". Resubmitting before review overwrites the
// pending record in place.
type ChangeRequest struct {
	ID          string
	UserID      string
	WeekStart   string
	Day         week.DayKey
	OldPickup   *week.Pickup
	NewPickup   week.Pickup
	Status      string
	ReviewerID  string
	ReviewNote  string
	RequestedAt time.Time
	ReviewedAt  *time.Time
}

// GeoPoint is a latitude/longitude pair captured during trip operations.
type GeoPoint struct {
	Latitude  float64
	Longitude float64
}

// Trip tracks the lifecycle of one day's ride, keyed by
// "{userID}_{weekStart}_{day}". Created lazily on the first trip operation
// and never deleted.
type Trip struct {
	ID            string
	UserID        string
	WeekStart     string
	Day           week.DayKey
	ScheduledTime string
	AddressID     string
	AddressName   string
	DriverName    string
	TrackingLink  string
	Status        string
	PushSentAt    *time.Time
	ETAMinutes    *int
	QRValidatedAt *time.Time
	StartedAt     *time.Time
	EndedAt       *time.Time
	StartGeo      *GeoPoint
	EndGeo        *GeoPoint
	CreatedAt     time.Time
}

// SavedAddress is a per-user named location. Other records reference it by ID
// only; deleting an address never retracts prior references.
type SavedAddress struct {
	ID               string
	UserID           string
	Name             string
	FormattedAddress string
	Latitude         float64
	Longitude        float64
	PlaceID          string
	CreatedAt        time.Time
}

// Notification is an appended per-user message record. Each push attempt
// appends a new row; rows are never updated except for dismissal.
type Notification struct {
	ID          string
	UserID      string
	Type        string
	Title       string
	Body        string
	CreatedAt   time.Time
	DismissedAt *time.Time
}

// DeviceToken registers a push delivery target for a user.
type DeviceToken struct {
	Token     string
	UserID    string
	Platform  string
	CreatedAt time.Time
}
