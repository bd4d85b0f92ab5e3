package application

import (
	"time"

	"github.com/example/transport-scheduler/internal/persistence"
	"github.com/example/transport-scheduler/internal/week"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID  string
	IsAdmin bool
}

// User is the account view exposed by the application services. The stored
// password hash never leaves the persistence layer through this type.
type User struct {
	ID               string
	Email            string
	FullName         string
	Phone            string
	Gender           string
	HomeAddress      string
	IsAdmin          bool
	ProfileCompleted bool
	Disabled         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func userView(user persistence.User) User {
	return User{
		ID:               user.ID,
		Email:            user.Email,
		FullName:         user.FullName,
		Phone:            user.Phone,
		Gender:           user.Gender,
		HomeAddress:      user.HomeAddress,
		IsAdmin:          user.IsAdmin,
		ProfileCompleted: user.ProfileCompleted,
		Disabled:         user.Disabled,
		CreatedAt:        user.CreatedAt,
		UpdatedAt:        user.UpdatedAt,
	}
}

// RegisterParams captures open sign-up input.
type RegisterParams struct {
	Email    string
	Password string
	FullName string
}

// UserInput captures admin supplied user attributes.
type UserInput struct {
	Email       string
	Password    string
	FullName    string
	Phone       string
	Gender      string
	HomeAddress string
	IsAdmin     bool
	Disabled    bool
}

// CreateUserParams wraps the data required to create a user.
type CreateUserParams struct {
	Principal Principal
	Input     UserInput
}

// UpdateUserParams wraps the data required to update a user.
type UpdateUserParams struct {
	Principal Principal
	UserID    string
	Input     UserInput
}

// ProfileInput captures self-service profile fields.
type ProfileInput struct {
	FullName    string
	Phone       string
	Gender      string
	HomeAddress string
}

// UpdateProfileParams wraps the data required for a self-service profile update.
type UpdateProfileParams struct {
	Principal Principal
	Input     ProfileInput
}

// LoginParams captures the data required to authenticate a user.
type LoginParams struct {
	Email       string
	Password    string
	Fingerprint string
}

// LoginResult captures the outcome of a successful authentication attempt.
type LoginResult struct {
	User    User
	Token   string
	Session persistence.Session
}

// SubmitScheduleParams wraps a week schedule submission.
type SubmitScheduleParams struct {
	Principal Principal
	WeekStart string
	Days      week.Schedule
}

// ReviewScheduleParams wraps an admin review decision for a week schedule.
type ReviewScheduleParams struct {
	Principal  Principal
	ScheduleID string
	Approve    bool
	Note       string
}

// ListSchedulesParams narrows a schedule listing. Non-admin callers are always
// scoped to their own documents.
type ListSchedulesParams struct {
	Principal Principal
	UserID    string
	WeekStart string
	Status    string
}

// SubmitChangeRequestParams wraps a single-day pickup amendment.
type SubmitChangeRequestParams struct {
	Principal Principal
	WeekStart string
	Day       week.DayKey
	OldPickup *week.Pickup
	NewPickup week.Pickup
}

// ReviewChangeRequestParams wraps an admin review decision for a change request.
type ReviewChangeRequestParams struct {
	Principal Principal
	RequestID string
	Approve   bool
	Note      string
}

// TripRef identifies one day's trip. An empty UserID resolves to the acting
// principal; targeting another user requires admin rights.
type TripRef struct {
	Principal Principal
	UserID    string
	WeekStart string
	Day       week.DayKey
}

// SendPushParams wraps a driver-assignment push for a trip.
type SendPushParams struct {
	Ref          TripRef
	ETAMinutes   int
	DriverName   string
	TrackingLink string
}

// ValidateQRParams wraps a boarding QR validation. The scan carries no
// location; only start and end record one.
type ValidateQRParams struct {
	Ref TripRef
}

// StartTripParams wraps the driver's trip start.
type StartTripParams struct {
	Ref TripRef
	Geo *persistence.GeoPoint
}

// EndTripParams wraps the driver's trip end.
type EndTripParams struct {
	Ref TripRef
	Geo *persistence.GeoPoint
}

// ListTripsParams narrows a trip listing.
type ListTripsParams struct {
	Principal Principal
	UserID    string
	Status    string
}

// AddressInput captures caller provided saved address fields.
type AddressInput struct {
	Name             string
	FormattedAddress string
	Latitude         float64
	Longitude        float64
	PlaceID          string
}

// CreateAddressParams wraps the data required to save an address.
type CreateAddressParams struct {
	Principal Principal
	Input     AddressInput
}

// RegisterDeviceTokenParams wraps a push target registration.
type RegisterDeviceTokenParams struct {
	Principal Principal
	Token     string
	Platform  string
}
