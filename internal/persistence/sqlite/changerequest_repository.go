package sqlite

import (
	"context"
	"time"

	"github.com/example/transport-scheduler/internal/persistence"
	"github.com/example/transport-scheduler/internal/week"
)

// ChangeRequestRepository implements persistence.ChangeRequestRepository on SQLite.
type ChangeRequestRepository struct {
	db *DB
}

// NewChangeRequestRepository returns a repository bound to the given connection.
func NewChangeRequestRepository(db *DB) *ChangeRequestRepository {
	return &ChangeRequestRepository{db: db}
}

// UpsertChangeRequest inserts or replaces the request at its identity key.
// Resubmitting before review overwrites the pending record, including the
// requested-at timestamp.
func (r *ChangeRequestRepository) UpsertChangeRequest(ctx context.Context, request persistence.ChangeRequest) error {
	var oldTime, oldID, oldName string
	if request.OldPickup != nil {
		oldTime = request.OldPickup.Time
		oldID = request.OldPickup.AddressID
		oldName = request.OldPickup.AddressName
	}
	_, err := r.db.db.ExecContext(ctx, `
		INSERT INTO change_requests (id, user_id, week_start, day,
			old_time, old_address_id, old_address_name,
			new_time, new_address_id, new_address_name,
			status, reviewer_id, review_note, requested_at, reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			old_time = excluded.old_time,
			old_address_id = excluded.old_address_id,
			old_address_name = excluded.old_address_name,
			new_time = excluded.new_time,
			new_address_id = excluded.new_address_id,
			new_address_name = excluded.new_address_name,
			status = excluded.status,
			reviewer_id = excluded.reviewer_id,
			review_note = excluded.review_note,
			requested_at = excluded.requested_at,
			reviewed_at = excluded.reviewed_at`,
		request.ID, request.UserID, request.WeekStart, string(request.Day),
		oldTime, oldID, oldName,
		request.NewPickup.Time, request.NewPickup.AddressID, request.NewPickup.AddressName,
		request.Status, request.ReviewerID, request.ReviewNote,
		formatTime(request.RequestedAt), nullTime(request.ReviewedAt))
	return mapError(err)
}

const changeRequestColumns = `id, user_id, week_start, day,
	old_time, old_address_id, old_address_name,
	new_time, new_address_id, new_address_name,
	status, reviewer_id, review_note, requested_at, reviewed_at`

// GetChangeRequest loads a request by its identity key.
func (r *ChangeRequestRepository) GetChangeRequest(ctx context.Context, id string) (persistence.ChangeRequest, error) {
	row := r.db.db.QueryRowContext(ctx, `SELECT `+changeRequestColumns+` FROM change_requests WHERE id = ?`, id)
	return scanChangeRequest(row)
}

// UpdateChangeRequestStatus overwrites the review fields unconditionally.
func (r *ChangeRequestRepository) UpdateChangeRequestStatus(ctx context.Context, id, status, reviewerID, note string, reviewedAt time.Time) error {
	res, err := r.db.db.ExecContext(ctx, `
		UPDATE change_requests SET status = ?, reviewer_id = ?, review_note = ?, reviewed_at = ?
		WHERE id = ?`,
		status, reviewerID, note, formatTime(reviewedAt), id)
	if err != nil {
		return mapError(err)
	}
	return requireRowAffected(res)
}

// ListChangeRequests returns a user's requests, newest first. An empty userID
// lists every request (reviewer view).
func (r *ChangeRequestRepository) ListChangeRequests(ctx context.Context, userID string) ([]persistence.ChangeRequest, error) {
	query := `SELECT ` + changeRequestColumns + ` FROM change_requests`
	args := []any{}
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY requested_at DESC, id`

	rows, err := r.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var requests []persistence.ChangeRequest
	for rows.Next() {
		request, err := scanChangeRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}
	return requests, rows.Err()
}

func scanChangeRequest(row rowScanner) (persistence.ChangeRequest, error) {
	var (
		request                 persistence.ChangeRequest
		dayValue                string
		oldTime, oldID, oldName string
		requestedAt             string
		reviewedAt              = nullString("")
	)
	err := row.Scan(&request.ID, &request.UserID, &request.WeekStart, &dayValue,
		&oldTime, &oldID, &oldName,
		&request.NewPickup.Time, &request.NewPickup.AddressID, &request.NewPickup.AddressName,
		&request.Status, &request.ReviewerID, &request.ReviewNote, &requestedAt, &reviewedAt)
	if err != nil {
		return persistence.ChangeRequest{}, mapError(err)
	}
	request.Day = week.DayKey(dayValue)
	if oldTime != "" || oldID != "" || oldName != "" {
		request.OldPickup = &week.Pickup{Time: oldTime, AddressID: oldID, AddressName: oldName}
	}
	if request.RequestedAt, err = parseTime(requestedAt); err != nil {
		return persistence.ChangeRequest{}, err
	}
	if request.ReviewedAt, err = scanTime(reviewedAt); err != nil {
		return persistence.ChangeRequest{}, err
	}
	return request, nil
}
