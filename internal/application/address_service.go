package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/transport-scheduler/internal/persistence"
)

// AddressStore captures the persistence interactions needed by the address service.
type AddressStore interface {
	CreateAddress(ctx context.Context, address persistence.SavedAddress) error
	GetAddress(ctx context.Context, userID, id string) (persistence.SavedAddress, error)
	ListAddresses(ctx context.Context, userID string) ([]persistence.SavedAddress, error)
	DeleteAddress(ctx context.Context, userID, id string) error
}

// AddressService manages a user's saved locations. Addresses belong to one
// user only; there is no sharing and no admin override.
type AddressService struct {
	addresses   AddressStore
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewAddressService wires dependencies for address operations.
func NewAddressService(addresses AddressStore, idGenerator func() string, now func() time.Time, logger *slog.Logger) *AddressService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &AddressService{
		addresses:   addresses,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *AddressService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AddressService", operation, attrs...)
}

// CreateAddress validates and stores a new saved address for the caller.
func (s *AddressService) CreateAddress(ctx context.Context, params CreateAddressParams) (persistence.SavedAddress, error) {
	if s == nil {
		return persistence.SavedAddress{}, fmt.Errorf("AddressService is nil")
	}
	if s.addresses == nil {
		return persistence.SavedAddress{}, fmt.Errorf("address store not configured")
	}

	input := params.Input
	vErr := &ValidationError{}
	if strings.TrimSpace(input.Name) == "" {
		vErr.add("name", "name is required")
	}
	if strings.TrimSpace(input.FormattedAddress) == "" {
		vErr.add("formatted_address", "formatted address is required")
	}
	if input.Latitude < -90 || input.Latitude > 90 {
		vErr.add("latitude", "latitude must be between -90 and 90")
	}
	if input.Longitude < -180 || input.Longitude > 180 {
		vErr.add("longitude", "longitude must be between -180 and 180")
	}
	if vErr.HasErrors() {
		return persistence.SavedAddress{}, vErr
	}

	address := persistence.SavedAddress{
		ID:               s.idGenerator(),
		UserID:           params.Principal.UserID,
		Name:             strings.TrimSpace(input.Name),
		FormattedAddress: strings.TrimSpace(input.FormattedAddress),
		Latitude:         input.Latitude,
		Longitude:        input.Longitude,
		PlaceID:          input.PlaceID,
		CreatedAt:        s.now(),
	}

	if err := s.addresses.CreateAddress(ctx, address); err != nil {
		return persistence.SavedAddress{}, err
	}

	s.loggerWith(ctx, "CreateAddress",
		"user_id", address.UserID,
		"address_id", address.ID,
	).InfoContext(ctx, "address saved")
	return address, nil
}

// GetAddress returns one of the caller's saved addresses.
func (s *AddressService) GetAddress(ctx context.Context, principal Principal, id string) (persistence.SavedAddress, error) {
	if s == nil {
		return persistence.SavedAddress{}, fmt.Errorf("AddressService is nil")
	}
	if s.addresses == nil {
		return persistence.SavedAddress{}, fmt.Errorf("address store not configured")
	}

	address, err := s.addresses.GetAddress(ctx, principal.UserID, id)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return persistence.SavedAddress{}, ErrNotFound
		}
		return persistence.SavedAddress{}, err
	}
	return address, nil
}

// ListAddresses returns the caller's saved addresses.
func (s *AddressService) ListAddresses(ctx context.Context, principal Principal) ([]persistence.SavedAddress, error) {
	if s == nil {
		return nil, fmt.Errorf("AddressService is nil")
	}
	if s.addresses == nil {
		return nil, fmt.Errorf("address store not configured")
	}
	return s.addresses.ListAddresses(ctx, principal.UserID)
}

// DeleteAddress removes one of the caller's saved addresses. Schedules and
// trips that reference it keep their copies of the address fields.
func (s *AddressService) DeleteAddress(ctx context.Context, principal Principal, id string) error {
	if s == nil {
		return fmt.Errorf("AddressService is nil")
	}
	if s.addresses == nil {
		return fmt.Errorf("address store not configured")
	}

	if err := s.addresses.DeleteAddress(ctx, principal.UserID, id); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	s.loggerWith(ctx, "DeleteAddress",
		"user_id", principal.UserID,
		"address_id", id,
	).InfoContext(ctx, "address deleted")
	return nil
}
