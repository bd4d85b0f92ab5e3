package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/transport-scheduler/internal/application"
	"github.com/example/transport-scheduler/internal/persistence"
	"github.com/example/transport-scheduler/internal/week"
)

var (
	userCounter    uint64
	addressCounter uint64
	sessionCounter uint64
)

// referenceTime is a Tuesday so schedule fixtures target the following Monday.
var referenceTime = time.Date(2026, time.January, 6, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ReferenceWeekStart returns the Monday following ReferenceTime in ISO form.
func ReferenceWeekStart() string {
	return week.NextMonday(referenceTime).Format(week.WeekStartLayout)
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic user record that can be materialised
// for application or persistence tests.
type UserFixture struct {
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

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a deterministic user fixture with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := UserFixture{
		ID:               id,
		Email:            fmt.Sprintf("%s@example.com", id),
		FullName:         fmt.Sprintf("User %03d", idx),
		Phone:            fmt.Sprintf("+1555000%04d", idx),
		Gender:           "unspecified",
		HomeAddress:      fmt.Sprintf("%d Example Street", idx),
		PasswordHash:     fmt.Sprintf("hash-%03d", idx),
		ProfileCompleted: true,
		CreatedAt:        created,
		UpdatedAt:        created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) {
		f.ID = id
	}
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) {
		f.Email = email
	}
}

// WithUserPasswordHash overrides the generated password hash.
func WithUserPasswordHash(hash string) UserOption {
	return func(f *UserFixture) {
		f.PasswordHash = hash
	}
}

// WithUserAdmin sets the admin flag on the generated fixture.
func WithUserAdmin(isAdmin bool) UserOption {
	return func(f *UserFixture) {
		f.IsAdmin = isAdmin
	}
}

// WithUserDisabled sets the disabled flag on the generated fixture.
func WithUserDisabled(disabled bool) UserOption {
	return func(f *UserFixture) {
		f.Disabled = disabled
	}
}

// WithIncompleteProfile clears the profile fields so the fixture represents a
// freshly registered account.
func WithIncompleteProfile() UserOption {
	return func(f *UserFixture) {
		f.Phone = ""
		f.Gender = ""
		f.HomeAddress = ""
		f.ProfileCompleted = false
	}
}

// Principal returns an application.Principal derived from the fixture.
func (f UserFixture) Principal() application.Principal {
	return application.Principal{UserID: f.ID, IsAdmin: f.IsAdmin}
}

// Persistence returns the fixture as a persistence.User value.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:               f.ID,
		Email:            f.Email,
		FullName:         f.FullName,
		Phone:            f.Phone,
		Gender:           f.Gender,
		HomeAddress:      f.HomeAddress,
		PasswordHash:     f.PasswordHash,
		IsAdmin:          f.IsAdmin,
		ProfileCompleted: f.ProfileCompleted,
		Disabled:         f.Disabled,
		CreatedAt:        f.CreatedAt,
		UpdatedAt:        f.UpdatedAt,
	}
}

// ----------------------------- Session fixtures -------------------------

// SessionFixture represents a deterministic session record.
type SessionFixture struct {
	ID          string
	UserID      string
	Token       string
	Fingerprint string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	RevokedAt   *time.Time
}

// SessionOption configures the generated session fixture.
type SessionOption func(*SessionFixture)

// NewSessionFixture returns a deterministic session fixture with optional overrides.
func NewSessionFixture(opts ...SessionOption) SessionFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	created := referenceTime
	fixture := SessionFixture{
		ID:          fmt.Sprintf("session-%03d", idx),
		UserID:      fmt.Sprintf("user-%03d", idx),
		Token:       fmt.Sprintf("token-%03d", idx),
		Fingerprint: fmt.Sprintf("fingerprint-%03d", idx),
		ExpiresAt:   created.Add(24 * time.Hour),
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSessionUserID sets the user ID.
func WithSessionUserID(id string) SessionOption {
	return func(f *SessionFixture) {
		f.UserID = id
	}
}

// WithSessionToken overrides the token value.
func WithSessionToken(token string) SessionOption {
	return func(f *SessionFixture) {
		f.Token = token
	}
}

// WithSessionExpiresAt sets the expiration timestamp.
func WithSessionExpiresAt(t time.Time) SessionOption {
	return func(f *SessionFixture) {
		f.ExpiresAt = t
	}
}

// WithSessionRevokedAt sets the optional revoked timestamp.
func WithSessionRevokedAt(t time.Time) SessionOption {
	return func(f *SessionFixture) {
		revoked := t
		f.RevokedAt = &revoked
	}
}

// Persistence returns the fixture as a persistence.Session value.
func (f SessionFixture) Persistence() persistence.Session {
	var revoked *time.Time
	if f.RevokedAt != nil {
		t := *f.RevokedAt
		revoked = &t
	}
	return persistence.Session{
		ID:          f.ID,
		UserID:      f.UserID,
		Token:       f.Token,
		Fingerprint: f.Fingerprint,
		ExpiresAt:   f.ExpiresAt,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
		RevokedAt:   revoked,
	}
}

// --------------------------- Schedule fixtures ---------------------------

// WeekDays returns a full Monday-to-Friday commute plan with the given pickup
// time and address.
func WeekDays(pickupTime, addressID, addressName string) week.Schedule {
	days := make(week.Schedule, 5)
	for _, day := range []week.DayKey{week.Monday, week.Tuesday, week.Wednesday, week.Thursday, week.Friday} {
		days[day] = week.DaySchedule{
			Pickup: &week.Pickup{Time: pickupTime, AddressID: addressID, AddressName: addressName},
			Drop:   &week.Drop{AddressID: addressID, AddressName: addressName},
		}
	}
	return days
}

// SingleDay returns a schedule containing one pickup on the given day.
func SingleDay(day week.DayKey, pickupTime, addressID, addressName string) week.Schedule {
	return week.Schedule{
		day: week.DaySchedule{
			Pickup: &week.Pickup{Time: pickupTime, AddressID: addressID, AddressName: addressName},
		},
	}
}

// --------------------------- Address fixtures ----------------------------

// AddressFixture represents a deterministic saved address.
type AddressFixture struct {
	ID               string
	UserID           string
	Name             string
	FormattedAddress string
	Latitude         float64
	Longitude        float64
	PlaceID          string
	CreatedAt        time.Time
}

// AddressOption configures the generated address fixture.
type AddressOption func(*AddressFixture)

// NewAddressFixture returns a deterministic address fixture with optional overrides.
func NewAddressFixture(opts ...AddressOption) AddressFixture {
	idx := atomic.AddUint64(&addressCounter, 1)
	fixture := AddressFixture{
		ID:               fmt.Sprintf("address-%03d", idx),
		UserID:           fmt.Sprintf("user-%03d", idx),
		Name:             fmt.Sprintf("Address %03d", idx),
		FormattedAddress: fmt.Sprintf("%d Example Street", idx),
		Latitude:         12.9,
		Longitude:        77.6,
		PlaceID:          fmt.Sprintf("place-%03d", idx),
		CreatedAt:        referenceTime.Add(time.Duration(idx) * time.Minute),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithAddressUserID sets the owning user ID.
func WithAddressUserID(id string) AddressOption {
	return func(f *AddressFixture) {
		f.UserID = id
	}
}

// WithAddressName overrides the generated label.
func WithAddressName(name string) AddressOption {
	return func(f *AddressFixture) {
		f.Name = name
	}
}

// Persistence returns the fixture as a persistence.SavedAddress value.
func (f AddressFixture) Persistence() persistence.SavedAddress {
	return persistence.SavedAddress{
		ID:               f.ID,
		UserID:           f.UserID,
		Name:             f.Name,
		FormattedAddress: f.FormattedAddress,
		Latitude:         f.Latitude,
		Longitude:        f.Longitude,
		PlaceID:          f.PlaceID,
		CreatedAt:        f.CreatedAt,
	}
}
