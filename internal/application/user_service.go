package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/example/transport-scheduler/internal/persistence"
)

// UserRepository captures the persistence operations needed by the user service.
type UserRepository interface {
	CreateUser(ctx context.Context, user persistence.User) error
	UpdateUser(ctx context.Context, user persistence.User) error
	GetUser(ctx context.Context, id string) (persistence.User, error)
	GetUserByEmail(ctx context.Context, email string) (persistence.User, error)
	ListUsers(ctx context.Context) ([]persistence.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// PasswordHasher derives a storable hash from a plaintext password.
type PasswordHasher func(password string) (string, error)

// UserService orchestrates validation, authorization, and persistence for accounts.
type UserService struct {
	users        UserRepository
	hashPassword PasswordHasher
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// NewUserService wires dependencies for the user service.
func NewUserService(users UserRepository, hash PasswordHasher, idGenerator func() string, now func() time.Time, logger *slog.Logger) *UserService {
	if hash == nil {
		hash = func(password string) (string, error) {
			return CreatePasswordHash(password, DefaultArgon2idParams)
		}
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &UserService{
		users:        users,
		hashPassword: hash,
		idGenerator:  idGenerator,
		now:          now,
		logger:       defaultLogger(logger),
	}
}

func (s *UserService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "UserService", operation, attrs...)
}

// Register creates an account through open sign-up. The profile starts
// incomplete; the user fills in the remaining fields afterwards.
func (s *UserService) Register(ctx context.Context, params RegisterParams) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}

	logger := s.loggerWith(ctx, "Register", "email", strings.ToLower(strings.TrimSpace(params.Email)))

	email := normalizeEmail(params.Email)
	vErr := &ValidationError{}
	validateEmail(email, vErr)
	validatePassword(params.Password, vErr)
	if vErr.HasErrors() {
		logger.ErrorContext(ctx, "registration rejected", "error_kind", ErrorKind(vErr))
		return User{}, vErr
	}

	hash, err := s.hashPassword(params.Password)
	if err != nil {
		return User{}, err
	}

	now := s.now()
	user := persistence.User{
		ID:           s.idGenerator(),
		Email:        email,
		FullName:     strings.TrimSpace(params.FullName),
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			logger.ErrorContext(ctx, "registration rejected", "error_kind", ErrorKind(ErrAlreadyExists))
			return User{}, ErrAlreadyExists
		}
		return User{}, err
	}

	logger.With("user_id", user.ID).InfoContext(ctx, "user registered")
	return userView(user), nil
}

// CreateUser persists a new account on behalf of an administrator.
func (s *UserService) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	if !params.Principal.IsAdmin {
		return User{}, ErrUnauthorized
	}
	if s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}

	input := params.Input
	email := normalizeEmail(input.Email)
	vErr := &ValidationError{}
	validateEmail(email, vErr)
	validatePassword(input.Password, vErr)
	if vErr.HasErrors() {
		return User{}, vErr
	}

	hash, err := s.hashPassword(input.Password)
	if err != nil {
		return User{}, err
	}

	now := s.now()
	user := persistence.User{
		ID:           s.idGenerator(),
		Email:        email,
		FullName:     strings.TrimSpace(input.FullName),
		Phone:        strings.TrimSpace(input.Phone),
		Gender:       strings.TrimSpace(input.Gender),
		HomeAddress:  strings.TrimSpace(input.HomeAddress),
		PasswordHash: hash,
		IsAdmin:      input.IsAdmin,
		Disabled:     input.Disabled,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	user.ProfileCompleted = profileComplete(user)

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			return User{}, ErrAlreadyExists
		}
		return User{}, err
	}

	s.loggerWith(ctx, "CreateUser", "user_id", user.ID).InfoContext(ctx, "user created")
	return userView(user), nil
}

// UpdateUser applies administrator edits to an existing account. An empty
// password leaves the stored hash untouched.
func (s *UserService) UpdateUser(ctx context.Context, params UpdateUserParams) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	if !params.Principal.IsAdmin {
		return User{}, ErrUnauthorized
	}
	if s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}

	existing, err := s.users.GetUser(ctx, params.UserID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}

	input := params.Input
	email := normalizeEmail(input.Email)
	vErr := &ValidationError{}
	validateEmail(email, vErr)
	if input.Password != "" {
		validatePassword(input.Password, vErr)
	}
	if vErr.HasErrors() {
		return User{}, vErr
	}

	updated := existing
	updated.Email = email
	updated.FullName = strings.TrimSpace(input.FullName)
	updated.Phone = strings.TrimSpace(input.Phone)
	updated.Gender = strings.TrimSpace(input.Gender)
	updated.HomeAddress = strings.TrimSpace(input.HomeAddress)
	updated.IsAdmin = input.IsAdmin
	updated.Disabled = input.Disabled
	updated.UpdatedAt = s.now()
	if input.Password != "" {
		hash, err := s.hashPassword(input.Password)
		if err != nil {
			return User{}, err
		}
		updated.PasswordHash = hash
	}
	updated.ProfileCompleted = profileComplete(updated)

	if err := s.users.UpdateUser(ctx, updated); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return User{}, ErrNotFound
		}
		if errors.Is(err, persistence.ErrDuplicate) {
			return User{}, ErrAlreadyExists
		}
		return User{}, err
	}

	s.loggerWith(ctx, "UpdateUser", "user_id", updated.ID).InfoContext(ctx, "user updated")
	return userView(updated), nil
}

// UpdateProfile applies self-service profile edits for the acting principal.
func (s *UserService) UpdateProfile(ctx context.Context, params UpdateProfileParams) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}

	existing, err := s.users.GetUser(ctx, params.Principal.UserID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return User{}, ErrUnauthorized
		}
		return User{}, err
	}

	input := params.Input
	vErr := &ValidationError{}
	if strings.TrimSpace(input.FullName) == "" {
		vErr.add("full_name", "full name is required")
	}
	if vErr.HasErrors() {
		return User{}, vErr
	}

	updated := existing
	updated.FullName = strings.TrimSpace(input.FullName)
	updated.Phone = strings.TrimSpace(input.Phone)
	updated.Gender = strings.TrimSpace(input.Gender)
	updated.HomeAddress = strings.TrimSpace(input.HomeAddress)
	updated.UpdatedAt = s.now()
	updated.ProfileCompleted = profileComplete(updated)

	if err := s.users.UpdateUser(ctx, updated); err != nil {
		return User{}, err
	}

	s.loggerWith(ctx, "UpdateProfile", "user_id", updated.ID).InfoContext(ctx, "profile updated")
	return userView(updated), nil
}

// GetUser returns a single account. Non-admin callers may only read their own.
func (s *UserService) GetUser(ctx context.Context, principal Principal, userID string) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}
	if userID != principal.UserID && !principal.IsAdmin {
		return User{}, ErrUnauthorized
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return userView(user), nil
}

// ListUsers returns every account for administrators.
func (s *UserService) ListUsers(ctx context.Context, principal Principal) ([]User, error) {
	if s == nil {
		return nil, fmt.Errorf("UserService is nil")
	}
	if !principal.IsAdmin {
		return nil, ErrUnauthorized
	}
	if s.users == nil {
		return nil, fmt.Errorf("user repository not configured")
	}

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]User, 0, len(users))
	for _, user := range users {
		views = append(views, userView(user))
	}
	return views, nil
}

// DeleteUser removes an account when requested by an administrator.
func (s *UserService) DeleteUser(ctx context.Context, principal Principal, userID string) error {
	if s == nil {
		return fmt.Errorf("UserService is nil")
	}
	if !principal.IsAdmin {
		return ErrUnauthorized
	}
	if s.users == nil {
		return fmt.Errorf("user repository not configured")
	}

	if err := s.users.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	s.loggerWith(ctx, "DeleteUser", "user_id", userID).InfoContext(ctx, "user deleted")
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string, vErr *ValidationError) {
	if email == "" {
		vErr.add("email", "email is required")
		return
	}
	if _, err := mail.ParseAddress(email); err != nil {
		vErr.add("email", "email is invalid")
	}
}

func validatePassword(password string, vErr *ValidationError) {
	if len(password) < 8 {
		vErr.add("password", "password must be at least 8 characters")
	}
}

func profileComplete(user persistence.User) bool {
	return user.FullName != "" && user.Phone != "" && user.Gender != "" && user.HomeAddress != ""
}
