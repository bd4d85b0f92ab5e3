package sqlite

import (
	"context"
	"database/sql"

	"github.com/example/transport-scheduler/internal/persistence"
)

// UserRepository implements persistence.UserRepository on SQLite.
type UserRepository struct {
	db *DB
}

// NewUserRepository returns a repository bound to the given connection.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, full_name, phone, gender, home_address, password_hash,
	is_admin, profile_completed, disabled, created_at, updated_at`

// CreateUser inserts a new user record.
func (r *UserRepository) CreateUser(ctx context.Context, user persistence.User) error {
	_, err := r.db.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.FullName, user.Phone, user.Gender, user.HomeAddress,
		user.PasswordHash, boolInt(user.IsAdmin), boolInt(user.ProfileCompleted),
		boolInt(user.Disabled), formatTime(user.CreatedAt), formatTime(user.UpdatedAt))
	return mapError(err)
}

// UpdateUser overwrites the mutable fields of an existing user.
func (r *UserRepository) UpdateUser(ctx context.Context, user persistence.User) error {
	res, err := r.db.db.ExecContext(ctx, `
		UPDATE users
		SET email = ?, full_name = ?, phone = ?, gender = ?, home_address = ?,
			password_hash = ?, is_admin = ?, profile_completed = ?, disabled = ?, updated_at = ?
		WHERE id = ?`,
		user.Email, user.FullName, user.Phone, user.Gender, user.HomeAddress,
		user.PasswordHash, boolInt(user.IsAdmin), boolInt(user.ProfileCompleted),
		boolInt(user.Disabled), formatTime(user.UpdatedAt), user.ID)
	if err != nil {
		return mapError(err)
	}
	return requireRowAffected(res)
}

// GetUser retrieves a user by ID.
func (r *UserRepository) GetUser(ctx context.Context, id string) (persistence.User, error) {
	row := r.db.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByEmail retrieves a user by email, case-insensitively.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	row := r.db.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ? COLLATE NOCASE`, email)
	return scanUser(row)
}

// ListUsers returns all users ordered by creation time.
func (r *UserRepository) ListUsers(ctx context.Context) ([]persistence.User, error) {
	rows, err := r.db.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var users []persistence.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// DeleteUser removes a user by ID.
func (r *UserRepository) DeleteUser(ctx context.Context, id string) error {
	res, err := r.db.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return mapError(err)
	}
	return requireRowAffected(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (persistence.User, error) {
	var (
		user                       persistence.User
		isAdmin, completed, locked int
		createdAt, updatedAt       string
	)
	err := row.Scan(&user.ID, &user.Email, &user.FullName, &user.Phone, &user.Gender,
		&user.HomeAddress, &user.PasswordHash, &isAdmin, &completed, &locked,
		&createdAt, &updatedAt)
	if err != nil {
		return persistence.User{}, mapError(err)
	}
	user.IsAdmin = isAdmin != 0
	user.ProfileCompleted = completed != 0
	user.Disabled = locked != 0
	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.User{}, err
	}
	if user.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.User{}, err
	}
	return user, nil
}

func boolInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func requireRowAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
