// Package memory provides an in-memory persistence layer used by tests and
// local development. It mirrors the SQLite repositories' error contracts.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/transport-scheduler/internal/persistence"
	"github.com/example/transport-scheduler/internal/week"
)

// Store implements every persistence repository interface over mutex-guarded
// maps. Values are cloned on the way in and out.
type Store struct {
	mu             sync.RWMutex
	users          map[string]persistence.User
	sessions       map[string]persistence.Session
	schedules      map[string]persistence.WeekScheduleDoc
	changeRequests map[string]persistence.ChangeRequest
	trips          map[string]persistence.Trip
	addresses      map[string]persistence.SavedAddress
	notifications  map[string]persistence.Notification
	deviceTokens   map[string]persistence.DeviceToken
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		users:          make(map[string]persistence.User),
		sessions:       make(map[string]persistence.Session),
		schedules:      make(map[string]persistence.WeekScheduleDoc),
		changeRequests: make(map[string]persistence.ChangeRequest),
		trips:          make(map[string]persistence.Trip),
		addresses:      make(map[string]persistence.SavedAddress),
		notifications:  make(map[string]persistence.Notification),
		deviceTokens:   make(map[string]persistence.DeviceToken),
	}
}

// --- UserRepository implementation ---

// CreateUser stores a new user.
func (s *Store) CreateUser(ctx context.Context, user persistence.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return persistence.ErrDuplicate
	}
	if _, err := s.userByEmailLocked(user.Email); err == nil {
		return persistence.ErrDuplicate
	}

	s.users[user.ID] = user
	return nil
}

// UpdateUser updates an existing user.
func (s *Store) UpdateUser(ctx context.Context, user persistence.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return persistence.ErrNotFound
	}
	if existing, err := s.userByEmailLocked(user.Email); err == nil && existing.ID != user.ID {
		return persistence.ErrDuplicate
	}

	s.users[user.ID] = user
	return nil
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return persistence.User{}, persistence.ErrNotFound
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email address, case-insensitively.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userByEmailLocked(email)
}

func (s *Store) userByEmailLocked(email string) (persistence.User, error) {
	lower := strings.ToLower(email)
	for _, user := range s.users {
		if strings.ToLower(user.Email) == lower {
			return user, nil
		}
	}
	return persistence.User{}, persistence.ErrNotFound
}

// ListUsers returns all users ordered by CreatedAt ascending.
func (s *Store) ListUsers(ctx context.Context) ([]persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]persistence.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

// DeleteUser removes a user by ID.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

// --- SessionRepository implementation ---

// CreateSession stores a new session keyed by token.
func (s *Store) CreateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.Token]; ok {
		return persistence.Session{}, persistence.ErrDuplicate
	}
	s.sessions[session.Token] = cloneSession(session)
	return session, nil
}

// GetSession retrieves a session by token.
func (s *Store) GetSession(ctx context.Context, token string) (persistence.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[token]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return cloneSession(session), nil
}

// RevokeSession marks a session revoked.
func (s *Store) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (persistence.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[token]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	stamp := revokedAt
	session.RevokedAt = &stamp
	session.UpdatedAt = revokedAt
	s.sessions[token] = session
	return cloneSession(session), nil
}

// DeleteExpiredSessions removes sessions expired before the reference time.
func (s *Store) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, session := range s.sessions {
		if session.ExpiresAt.Before(reference) {
			delete(s.sessions, token)
		}
	}
	return nil
}

// --- ScheduleRepository implementation ---

// CreateSchedule stores a submitted week schedule once per identity key.
func (s *Store) CreateSchedule(ctx context.Context, doc persistence.WeekScheduleDoc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schedules[doc.ID]; ok {
		return persistence.ErrDuplicate
	}
	s.schedules[doc.ID] = cloneSchedule(doc)
	return nil
}

// GetSchedule retrieves a schedule document by ID.
func (s *Store) GetSchedule(ctx context.Context, id string) (persistence.WeekScheduleDoc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.schedules[id]
	if !ok {
		return persistence.WeekScheduleDoc{}, persistence.ErrNotFound
	}
	return cloneSchedule(doc), nil
}

// UpdateScheduleStatus overwrites the review fields.
func (s *Store) UpdateScheduleStatus(ctx context.Context, id, status, reviewerID, note string, reviewedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.schedules[id]
	if !ok {
		return persistence.ErrNotFound
	}
	stamp := reviewedAt
	doc.Status = status
	doc.ReviewerID = reviewerID
	doc.ReviewNote = note
	doc.ReviewedAt = &stamp
	s.schedules[id] = doc
	return nil
}

// ListSchedules returns documents matching the filter, newest first.
func (s *Store) ListSchedules(ctx context.Context, filter persistence.ScheduleFilter) ([]persistence.WeekScheduleDoc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []persistence.WeekScheduleDoc
	for _, doc := range s.schedules {
		if filter.UserID != "" && doc.UserID != filter.UserID {
			continue
		}
		if filter.WeekStart != "" && doc.WeekStart != filter.WeekStart {
			continue
		}
		if filter.Status != "" && doc.Status != filter.Status {
			continue
		}
		docs = append(docs, cloneSchedule(doc))
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	return docs, nil
}

// --- ChangeRequestRepository implementation ---

// UpsertChangeRequest inserts or replaces the request at its identity key.
func (s *Store) UpsertChangeRequest(ctx context.Context, request persistence.ChangeRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.changeRequests[request.ID] = cloneChangeRequest(request)
	return nil
}

// GetChangeRequest retrieves a request by its identity key.
func (s *Store) GetChangeRequest(ctx context.Context, id string) (persistence.ChangeRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	request, ok := s.changeRequests[id]
	if !ok {
		return persistence.ChangeRequest{}, persistence.ErrNotFound
	}
	return cloneChangeRequest(request), nil
}

// UpdateChangeRequestStatus overwrites the review fields.
func (s *Store) UpdateChangeRequestStatus(ctx context.Context, id, status, reviewerID, note string, reviewedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.changeRequests[id]
	if !ok {
		return persistence.ErrNotFound
	}
	stamp := reviewedAt
	request.Status = status
	request.ReviewerID = reviewerID
	request.ReviewNote = note
	request.ReviewedAt = &stamp
	s.changeRequests[id] = request
	return nil
}

// ListChangeRequests returns requests newest first; an empty userID lists all.
func (s *Store) ListChangeRequests(ctx context.Context, userID string) ([]persistence.ChangeRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var requests []persistence.ChangeRequest
	for _, request := range s.changeRequests {
		if userID != "" && request.UserID != userID {
			continue
		}
		requests = append(requests, cloneChangeRequest(request))
	}
	sort.Slice(requests, func(i, j int) bool {
		if requests[i].RequestedAt.Equal(requests[j].RequestedAt) {
			return requests[i].ID < requests[j].ID
		}
		return requests[i].RequestedAt.After(requests[j].RequestedAt)
	})
	return requests, nil
}

// --- TripRepository implementation ---

// CreateTrip stores a new trip once per identity key.
func (s *Store) CreateTrip(ctx context.Context, trip persistence.Trip) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.trips[trip.ID]; ok {
		return persistence.ErrDuplicate
	}
	s.trips[trip.ID] = cloneTrip(trip)
	return nil
}

// GetTrip retrieves a trip by its identity key.
func (s *Store) GetTrip(ctx context.Context, id string) (persistence.Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trip, ok := s.trips[id]
	if !ok {
		return persistence.Trip{}, persistence.ErrNotFound
	}
	return cloneTrip(trip), nil
}

// UpdateTrip overwrites the mutable fields; last write wins.
func (s *Store) UpdateTrip(ctx context.Context, trip persistence.Trip) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.trips[trip.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	trip.CreatedAt = existing.CreatedAt
	s.trips[trip.ID] = cloneTrip(trip)
	return nil
}

// ListTrips returns trips matching the filter, newest first.
func (s *Store) ListTrips(ctx context.Context, filter persistence.TripFilter) ([]persistence.Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var trips []persistence.Trip
	for _, trip := range s.trips {
		if filter.UserID != "" && trip.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && trip.Status != filter.Status {
			continue
		}
		trips = append(trips, cloneTrip(trip))
	}
	sort.Slice(trips, func(i, j int) bool {
		if trips[i].CreatedAt.Equal(trips[j].CreatedAt) {
			return trips[i].ID < trips[j].ID
		}
		return trips[i].CreatedAt.After(trips[j].CreatedAt)
	})
	return trips, nil
}

// --- AddressRepository implementation ---

// CreateAddress stores a saved address.
func (s *Store) CreateAddress(ctx context.Context, address persistence.SavedAddress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.addresses[address.ID]; ok {
		return persistence.ErrDuplicate
	}
	s.addresses[address.ID] = address
	return nil
}

// GetAddress retrieves one of the user's saved addresses.
func (s *Store) GetAddress(ctx context.Context, userID, id string) (persistence.SavedAddress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	address, ok := s.addresses[id]
	if !ok || address.UserID != userID {
		return persistence.SavedAddress{}, persistence.ErrNotFound
	}
	return address, nil
}

// ListAddresses returns the user's addresses, newest first.
func (s *Store) ListAddresses(ctx context.Context, userID string) ([]persistence.SavedAddress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var addresses []persistence.SavedAddress
	for _, address := range s.addresses {
		if address.UserID != userID {
			continue
		}
		addresses = append(addresses, address)
	}
	sort.Slice(addresses, func(i, j int) bool {
		if addresses[i].CreatedAt.Equal(addresses[j].CreatedAt) {
			return addresses[i].ID < addresses[j].ID
		}
		return addresses[i].CreatedAt.After(addresses[j].CreatedAt)
	})
	return addresses, nil
}

// DeleteAddress removes a saved address.
func (s *Store) DeleteAddress(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	address, ok := s.addresses[id]
	if !ok || address.UserID != userID {
		return persistence.ErrNotFound
	}
	delete(s.addresses, id)
	return nil
}

// --- NotificationRepository implementation ---

// AppendNotification stores a new notification record.
func (s *Store) AppendNotification(ctx context.Context, notification persistence.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notifications[notification.ID]; ok {
		return persistence.ErrDuplicate
	}
	s.notifications[notification.ID] = cloneNotification(notification)
	return nil
}

// GetNotification retrieves one of the user's notifications.
func (s *Store) GetNotification(ctx context.Context, userID, id string) (persistence.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	notification, ok := s.notifications[id]
	if !ok || notification.UserID != userID {
		return persistence.Notification{}, persistence.ErrNotFound
	}
	return cloneNotification(notification), nil
}

// ListNotifications returns the user's notifications, newest first.
func (s *Store) ListNotifications(ctx context.Context, userID string) ([]persistence.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var notifications []persistence.Notification
	for _, notification := range s.notifications {
		if notification.UserID != userID {
			continue
		}
		notifications = append(notifications, cloneNotification(notification))
	}
	sort.Slice(notifications, func(i, j int) bool {
		if notifications[i].CreatedAt.Equal(notifications[j].CreatedAt) {
			return notifications[i].ID < notifications[j].ID
		}
		return notifications[i].CreatedAt.After(notifications[j].CreatedAt)
	})
	return notifications, nil
}

// DismissNotifications stamps every undismissed notification for the user.
func (s *Store) DismissNotifications(ctx context.Context, userID string, dismissedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, notification := range s.notifications {
		if notification.UserID != userID || notification.DismissedAt != nil {
			continue
		}
		stamp := dismissedAt
		notification.DismissedAt = &stamp
		s.notifications[id] = notification
	}
	return nil
}

// --- DeviceTokenRepository implementation ---

// RegisterToken stores a push target, reassigning an existing token if needed.
func (s *Store) RegisterToken(ctx context.Context, token persistence.DeviceToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.deviceTokens[token.Token]; ok {
		token.CreatedAt = existing.CreatedAt
	}
	s.deviceTokens[token.Token] = token
	return nil
}

// ListTokens returns every registered push target for the user.
func (s *Store) ListTokens(ctx context.Context, userID string) ([]persistence.DeviceToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tokens []persistence.DeviceToken
	for _, token := range s.deviceTokens {
		if token.UserID != userID {
			continue
		}
		tokens = append(tokens, token)
	}
	sort.Slice(tokens, func(i, j int) bool {
		if tokens[i].CreatedAt.Equal(tokens[j].CreatedAt) {
			return tokens[i].Token < tokens[j].Token
		}
		return tokens[i].CreatedAt.Before(tokens[j].CreatedAt)
	})
	return tokens, nil
}

// DeleteToken removes a push target. Missing tokens are ignored.
func (s *Store) DeleteToken(ctx context.Context, userID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.deviceTokens[token]
	if ok && existing.UserID == userID {
		delete(s.deviceTokens, token)
	}
	return nil
}

// --- clone helpers ---

func cloneSession(session persistence.Session) persistence.Session {
	session.RevokedAt = cloneTime(session.RevokedAt)
	return session
}

func cloneSchedule(doc persistence.WeekScheduleDoc) persistence.WeekScheduleDoc {
	doc.ReviewedAt = cloneTime(doc.ReviewedAt)
	if doc.Days != nil {
		days := make(week.Schedule, len(doc.Days))
		for key, day := range doc.Days {
			if day.Pickup != nil {
				pickup := *day.Pickup
				day.Pickup = &pickup
			}
			if day.Drop != nil {
				drop := *day.Drop
				day.Drop = &drop
			}
			days[key] = day
		}
		doc.Days = days
	}
	return doc
}

func cloneChangeRequest(request persistence.ChangeRequest) persistence.ChangeRequest {
	if request.OldPickup != nil {
		pickup := *request.OldPickup
		request.OldPickup = &pickup
	}
	request.ReviewedAt = cloneTime(request.ReviewedAt)
	return request
}

func cloneTrip(trip persistence.Trip) persistence.Trip {
	trip.PushSentAt = cloneTime(trip.PushSentAt)
	trip.QRValidatedAt = cloneTime(trip.QRValidatedAt)
	trip.StartedAt = cloneTime(trip.StartedAt)
	trip.EndedAt = cloneTime(trip.EndedAt)
	if trip.ETAMinutes != nil {
		minutes := *trip.ETAMinutes
		trip.ETAMinutes = &minutes
	}
	if trip.StartGeo != nil {
		geo := *trip.StartGeo
		trip.StartGeo = &geo
	}
	if trip.EndGeo != nil {
		geo := *trip.EndGeo
		trip.EndGeo = &geo
	}
	return trip
}

func cloneNotification(notification persistence.Notification) persistence.Notification {
	notification.DismissedAt = cloneTime(notification.DismissedAt)
	return notification
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
