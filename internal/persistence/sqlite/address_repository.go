package sqlite

import (
	"context"

	"github.com/example/transport-scheduler/internal/persistence"
)

// AddressRepository implements persistence.AddressRepository on SQLite.
type AddressRepository struct {
	db *DB
}

// NewAddressRepository returns a repository bound to the given connection.
func NewAddressRepository(db *DB) *AddressRepository {
	return &AddressRepository{db: db}
}

// CreateAddress inserts a saved address.
func (r *AddressRepository) CreateAddress(ctx context.Context, address persistence.SavedAddress) error {
	_, err := r.db.db.ExecContext(ctx, `
		INSERT INTO addresses (id, user_id, name, formatted_address, latitude, longitude, place_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		address.ID, address.UserID, address.Name, address.FormattedAddress,
		address.Latitude, address.Longitude, address.PlaceID, formatTime(address.CreatedAt))
	return mapError(err)
}

// GetAddress loads one of the user's saved addresses.
func (r *AddressRepository) GetAddress(ctx context.Context, userID, id string) (persistence.SavedAddress, error) {
	row := r.db.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, formatted_address, latitude, longitude, place_id, created_at
		FROM addresses WHERE user_id = ? AND id = ?`, userID, id)
	return scanAddress(row)
}

// ListAddresses returns the user's addresses, newest first.
func (r *AddressRepository) ListAddresses(ctx context.Context, userID string) ([]persistence.SavedAddress, error) {
	rows, err := r.db.db.QueryContext(ctx, `
		SELECT id, user_id, name, formatted_address, latitude, longitude, place_id, created_at
		FROM addresses WHERE user_id = ? ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var addresses []persistence.SavedAddress
	for rows.Next() {
		address, err := scanAddress(rows)
		if err != nil {
			return nil, err
		}
		addresses = append(addresses, address)
	}
	return addresses, rows.Err()
}

// DeleteAddress removes a saved address. References held by schedules, trips,
// or change requests are weak and stay untouched.
func (r *AddressRepository) DeleteAddress(ctx context.Context, userID, id string) error {
	res, err := r.db.db.ExecContext(ctx, `DELETE FROM addresses WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return mapError(err)
	}
	return requireRowAffected(res)
}

func scanAddress(row rowScanner) (persistence.SavedAddress, error) {
	var (
		address   persistence.SavedAddress
		createdAt string
	)
	err := row.Scan(&address.ID, &address.UserID, &address.Name, &address.FormattedAddress,
		&address.Latitude, &address.Longitude, &address.PlaceID, &createdAt)
	if err != nil {
		return persistence.SavedAddress{}, mapError(err)
	}
	if address.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.SavedAddress{}, err
	}
	return address, nil
}
