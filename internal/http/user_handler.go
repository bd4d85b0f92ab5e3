package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/transport-scheduler/internal/application"
)

type userService interface {
	CreateUser(ctx context.Context, params application.CreateUserParams) (application.User, error)
	UpdateUser(ctx context.Context, params application.UpdateUserParams) (application.User, error)
	UpdateProfile(ctx context.Context, params application.UpdateProfileParams) (application.User, error)
	GetUser(ctx context.Context, principal application.Principal, userID string) (application.User, error)
	ListUsers(ctx context.Context, principal application.Principal) ([]application.User, error)
	DeleteUser(ctx context.Context, principal application.Principal, userID string) error
}

type UserHandler struct {
	service   userService
	responder responder
	logger    *slog.Logger
}

func NewUserHandler(service userService, logger *slog.Logger) *UserHandler {
	base := defaultLogger(logger)
	return &UserHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *UserHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "UserHandler", operation, attrs...)
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	users, err := h.service.ListUsers(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "List").ErrorContext(r.Context(), "failed to list users", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]userDTO, 0, len(users))
	for _, user := range users {
		dtos = append(dtos, userDTOFromApplication(user))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, dtos)
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	var req userWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	user, err := h.service.CreateUser(r.Context(), application.CreateUserParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		h.log(r.Context(), "Create").ErrorContext(r.Context(), "failed to create user", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Create", "user_id", user.ID).InfoContext(r.Context(), "user created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, userDTOFromApplication(user))
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	userID, _ := PathIDFromContext(r.Context())
	if userID == "me" {
		userID = principal.UserID
	}

	user, err := h.service.GetUser(r.Context(), principal, userID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, userDTOFromApplication(user))
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	userID, _ := PathIDFromContext(r.Context())

	var req userWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	user, err := h.service.UpdateUser(r.Context(), application.UpdateUserParams{
		Principal: principal,
		UserID:    userID,
		Input:     req.toInput(),
	})
	if err != nil {
		h.log(r.Context(), "Update", "user_id", userID).ErrorContext(r.Context(), "failed to update user", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, userDTOFromApplication(user))
}

// UpdateProfile handles the self-service PUT /users/me endpoint.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), application.UpdateProfileParams{
		Principal: principal,
		Input: application.ProfileInput{
			FullName:    req.FullName,
			Phone:       req.Phone,
			Gender:      req.Gender,
			HomeAddress: req.HomeAddress,
		},
	})
	if err != nil {
		h.log(r.Context(), "UpdateProfile").ErrorContext(r.Context(), "failed to update profile", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, userDTOFromApplication(user))
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	userID, _ := PathIDFromContext(r.Context())

	if err := h.service.DeleteUser(r.Context(), principal, userID); err != nil {
		h.log(r.Context(), "Delete", "user_id", userID).ErrorContext(r.Context(), "failed to delete user", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type userDTO struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	FullName         string `json:"full_name"`
	Phone            string `json:"phone,omitempty"`
	Gender           string `json:"gender,omitempty"`
	HomeAddress      string `json:"home_address,omitempty"`
	IsAdmin          bool   `json:"is_admin"`
	ProfileCompleted bool   `json:"profile_completed"`
	Disabled         bool   `json:"disabled"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

func userDTOFromApplication(user application.User) userDTO {
	return userDTO{
		ID:               user.ID,
		Email:            user.Email,
		FullName:         user.FullName,
		Phone:            user.Phone,
		Gender:           user.Gender,
		HomeAddress:      user.HomeAddress,
		IsAdmin:          user.IsAdmin,
		ProfileCompleted: user.ProfileCompleted,
		Disabled:         user.Disabled,
		CreatedAt:        user.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:        user.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

type userWriteRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FullName    string `json:"full_name"`
	Phone       string `json:"phone"`
	Gender      string `json:"gender"`
	HomeAddress string `json:"home_address"`
	IsAdmin     bool   `json:"is_admin"`
	Disabled    bool   `json:"disabled"`
}

func (r userWriteRequest) toInput() application.UserInput {
	return application.UserInput{
		Email:       r.Email,
		Password:    r.Password,
		FullName:    r.FullName,
		Phone:       r.Phone,
		Gender:      r.Gender,
		HomeAddress: r.HomeAddress,
		IsAdmin:     r.IsAdmin,
		Disabled:    r.Disabled,
	}
}

type profileRequest struct {
	FullName    string `json:"full_name"`
	Phone       string `json:"phone"`
	Gender      string `json:"gender"`
	HomeAddress string `json:"home_address"`
}
