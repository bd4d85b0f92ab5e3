package sqlite

import (
	"context"
	"database/sql"

	"github.com/example/transport-scheduler/internal/persistence"
	"github.com/example/transport-scheduler/internal/week"
)

// TripRepository implements persistence.TripRepository on SQLite.
type TripRepository struct {
	db *DB
}

// NewTripRepository returns a repository bound to the given connection.
func NewTripRepository(db *DB) *TripRepository {
	return &TripRepository{db: db}
}

const tripColumns = `id, user_id, week_start, day, scheduled_time, address_id, address_name,
	driver_name, tracking_link, status, push_sent_at, eta_minutes, qr_validated_at,
	started_at, ended_at, start_lat, start_lng, end_lat, end_lng, created_at`

// CreateTrip inserts a new trip record; an existing identity key surfaces as
// persistence.ErrDuplicate so callers can treat ensure as a no-op.
func (r *TripRepository) CreateTrip(ctx context.Context, trip persistence.Trip) error {
	startLat, startLng := geoColumns(trip.StartGeo)
	endLat, endLng := geoColumns(trip.EndGeo)
	_, err := r.db.db.ExecContext(ctx, `
		INSERT INTO trips (`+tripColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trip.ID, trip.UserID, trip.WeekStart, string(trip.Day),
		trip.ScheduledTime, trip.AddressID, trip.AddressName,
		trip.DriverName, trip.TrackingLink, trip.Status,
		nullTime(trip.PushSentAt), nullInt(trip.ETAMinutes), nullTime(trip.QRValidatedAt),
		nullTime(trip.StartedAt), nullTime(trip.EndedAt),
		startLat, startLng, endLat, endLng, formatTime(trip.CreatedAt))
	return mapError(err)
}

// GetTrip loads a trip by its identity key.
func (r *TripRepository) GetTrip(ctx context.Context, id string) (persistence.Trip, error) {
	row := r.db.db.QueryRowContext(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = ?`, id)
	return scanTrip(row)
}

// UpdateTrip overwrites every mutable field of the trip. There is no version
// check; two writers racing on the same trip resolve to whichever lands last.
func (r *TripRepository) UpdateTrip(ctx context.Context, trip persistence.Trip) error {
	startLat, startLng := geoColumns(trip.StartGeo)
	endLat, endLng := geoColumns(trip.EndGeo)
	res, err := r.db.db.ExecContext(ctx, `
		UPDATE trips SET scheduled_time = ?, address_id = ?, address_name = ?,
			driver_name = ?, tracking_link = ?, status = ?,
			push_sent_at = ?, eta_minutes = ?, qr_validated_at = ?,
			started_at = ?, ended_at = ?, start_lat = ?, start_lng = ?, end_lat = ?, end_lng = ?
		WHERE id = ?`,
		trip.ScheduledTime, trip.AddressID, trip.AddressName,
		trip.DriverName, trip.TrackingLink, trip.Status,
		nullTime(trip.PushSentAt), nullInt(trip.ETAMinutes), nullTime(trip.QRValidatedAt),
		nullTime(trip.StartedAt), nullTime(trip.EndedAt),
		startLat, startLng, endLat, endLng, trip.ID)
	if err != nil {
		return mapError(err)
	}
	return requireRowAffected(res)
}

// ListTrips returns trips matching the filter, newest first.
func (r *TripRepository) ListTrips(ctx context.Context, filter persistence.TripFilter) ([]persistence.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE 1=1`
	args := make([]any, 0, 2)
	if filter.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := r.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var trips []persistence.Trip
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, trip)
	}
	return trips, rows.Err()
}

func scanTrip(row rowScanner) (persistence.Trip, error) {
	var (
		trip                persistence.Trip
		dayValue, createdAt string
		pushSentAt          = nullString("")
		qrValidatedAt       = nullString("")
		startedAt, endedAt  = nullString(""), nullString("")
		eta                 sql.NullInt64
		startLat, startLng  sql.NullFloat64
		endLat, endLng      sql.NullFloat64
	)
	err := row.Scan(&trip.ID, &trip.UserID, &trip.WeekStart, &dayValue,
		&trip.ScheduledTime, &trip.AddressID, &trip.AddressName,
		&trip.DriverName, &trip.TrackingLink, &trip.Status,
		&pushSentAt, &eta, &qrValidatedAt, &startedAt, &endedAt,
		&startLat, &startLng, &endLat, &endLng, &createdAt)
	if err != nil {
		return persistence.Trip{}, mapError(err)
	}
	trip.Day = week.DayKey(dayValue)
	if eta.Valid {
		minutes := int(eta.Int64)
		trip.ETAMinutes = &minutes
	}
	if trip.PushSentAt, err = scanTime(pushSentAt); err != nil {
		return persistence.Trip{}, err
	}
	if trip.QRValidatedAt, err = scanTime(qrValidatedAt); err != nil {
		return persistence.Trip{}, err
	}
	if trip.StartedAt, err = scanTime(startedAt); err != nil {
		return persistence.Trip{}, err
	}
	if trip.EndedAt, err = scanTime(endedAt); err != nil {
		return persistence.Trip{}, err
	}
	if startLat.Valid && startLng.Valid {
		trip.StartGeo = &persistence.GeoPoint{Latitude: startLat.Float64, Longitude: startLng.Float64}
	}
	if endLat.Valid && endLng.Valid {
		trip.EndGeo = &persistence.GeoPoint{Latitude: endLat.Float64, Longitude: endLng.Float64}
	}
	if trip.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Trip{}, err
	}
	return trip, nil
}

func geoColumns(point *persistence.GeoPoint) (sql.NullFloat64, sql.NullFloat64) {
	if point == nil {
		return sql.NullFloat64{}, sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: point.Latitude, Valid: true},
		sql.NullFloat64{Float64: point.Longitude, Valid: true}
}

func nullInt(value *int) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*value), Valid: true}
}
