package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/example/transport-scheduler/internal/persistence"
	"github.com/example/transport-scheduler/internal/week"
)

// ScheduleRepository implements persistence.ScheduleRepository on SQLite.
// A schedule document spans two tables: the schedules row carries the
// identity and review state, schedule_days carries one row per weekday entry.
type ScheduleRepository struct {
	db *DB
}

// NewScheduleRepository returns a repository bound to the given connection.
func NewScheduleRepository(db *DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// CreateSchedule inserts a schedule document and its day entries. The primary
// key doubles as the identity key, so a second submit for the same
// (user, week) surfaces as persistence.ErrDuplicate without touching the
// existing rows.
func (r *ScheduleRepository) CreateSchedule(ctx context.Context, doc persistence.WeekScheduleDoc) error {
	return r.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO schedules (id, user_id, week_start, status, reviewer_id, review_note, created_at, reviewed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			doc.ID, doc.UserID, doc.WeekStart, doc.Status, doc.ReviewerID, doc.ReviewNote,
			formatTime(doc.CreatedAt), nullTime(doc.ReviewedAt))
		if err != nil {
			return mapError(err)
		}

		for _, key := range week.DayKeys {
			day, ok := doc.Days[key]
			if !ok || (day.Pickup == nil && day.Drop == nil) {
				continue
			}
			var pickupTime, pickupID, pickupName, dropID, dropName string
			if day.Pickup != nil {
				pickupTime = day.Pickup.Time
				pickupID = day.Pickup.AddressID
				pickupName = day.Pickup.AddressName
			}
			if day.Drop != nil {
				dropID = day.Drop.AddressID
				dropName = day.Drop.AddressName
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO schedule_days (schedule_id, day, pickup_time, pickup_address_id, pickup_address_name, drop_address_id, drop_address_name)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				doc.ID, string(key), pickupTime, pickupID, pickupName, dropID, dropName)
			if err != nil {
				return mapError(err)
			}
		}
		return nil
	})
}

// GetSchedule loads a schedule document with its day entries.
func (r *ScheduleRepository) GetSchedule(ctx context.Context, id string) (persistence.WeekScheduleDoc, error) {
	row := r.db.db.QueryRowContext(ctx, `
		SELECT id, user_id, week_start, status, reviewer_id, review_note, created_at, reviewed_at
		FROM schedules WHERE id = ?`, id)

	doc, err := scanScheduleRow(row)
	if err != nil {
		return persistence.WeekScheduleDoc{}, err
	}
	if err := r.loadDays(ctx, &doc); err != nil {
		return persistence.WeekScheduleDoc{}, err
	}
	return doc, nil
}

// UpdateScheduleStatus overwrites the review fields unconditionally: the last
// reviewer to write wins, matching the product's resolution rule.
func (r *ScheduleRepository) UpdateScheduleStatus(ctx context.Context, id, status, reviewerID, note string, reviewedAt time.Time) error {
	res, err := r.db.db.ExecContext(ctx, `
		UPDATE schedules SET status = ?, reviewer_id = ?, review_note = ?, reviewed_at = ?
		WHERE id = ?`,
		status, reviewerID, note, formatTime(reviewedAt), id)
	if err != nil {
		return mapError(err)
	}
	return requireRowAffected(res)
}

// ListSchedules returns documents matching the filter, newest first.
func (r *ScheduleRepository) ListSchedules(ctx context.Context, filter persistence.ScheduleFilter) ([]persistence.WeekScheduleDoc, error) {
	query := `SELECT id, user_id, week_start, status, reviewer_id, review_note, created_at, reviewed_at FROM schedules WHERE 1=1`
	args := make([]any, 0, 3)
	if filter.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, filter.UserID)
	}
	if filter.WeekStart != "" {
		query += ` AND week_start = ?`
		args = append(args, filter.WeekStart)
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

	var docs []persistence.WeekScheduleDoc
	for rows.Next() {
		doc, err := scanScheduleRow(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range docs {
		if err := r.loadDays(ctx, &docs[i]); err != nil {
			return nil, err
		}
	}
	return docs, nil
}

func (r *ScheduleRepository) loadDays(ctx context.Context, doc *persistence.WeekScheduleDoc) error {
	rows, err := r.db.db.QueryContext(ctx, `
		SELECT day, pickup_time, pickup_address_id, pickup_address_name, drop_address_id, drop_address_name
		FROM schedule_days WHERE schedule_id = ?`, doc.ID)
	if err != nil {
		return mapError(err)
	}
	defer rows.Close()

	doc.Days = make(week.Schedule)
	for rows.Next() {
		var (
			dayValue                                       string
			pickupTime, pickupID, pickupName, dropID, drop string
		)
		if err := rows.Scan(&dayValue, &pickupTime, &pickupID, &pickupName, &dropID, &drop); err != nil {
			return err
		}
		entry := week.DaySchedule{}
		if pickupTime != "" || pickupID != "" || pickupName != "" {
			entry.Pickup = &week.Pickup{Time: pickupTime, AddressID: pickupID, AddressName: pickupName}
		}
		if dropID != "" || drop != "" {
			entry.Drop = &week.Drop{AddressID: dropID, AddressName: drop}
		}
		doc.Days[week.DayKey(dayValue)] = entry
	}
	return rows.Err()
}

func scanScheduleRow(row rowScanner) (persistence.WeekScheduleDoc, error) {
	var (
		doc        persistence.WeekScheduleDoc
		createdAt  string
		reviewedAt = nullString("")
	)
	err := row.Scan(&doc.ID, &doc.UserID, &doc.WeekStart, &doc.Status,
		&doc.ReviewerID, &doc.ReviewNote, &createdAt, &reviewedAt)
	if err != nil {
		return persistence.WeekScheduleDoc{}, mapError(err)
	}
	if doc.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.WeekScheduleDoc{}, err
	}
	if doc.ReviewedAt, err = scanTime(reviewedAt); err != nil {
		return persistence.WeekScheduleDoc{}, err
	}
	return doc, nil
}
