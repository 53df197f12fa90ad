package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/okian/paramapi/internal/domain/model"
	"github.com/okian/paramapi/pkg/logger"
)

// UserDependencies defines the user operations the handlers need.
type UserDependencies interface {
	GetUser(ctx context.Context, id int) (model.User, error)
	ListUsers(ctx context.Context, f model.UserFilter) ([]model.User, error)
	CreateUser(ctx context.Context, u model.User) (model.User, error)
	UpdateUser(ctx context.Context, id int, u model.User) (model.User, error)
}

// userBody mirrors the User JSON schema. Pointers distinguish absent fields
// from zero values so absence reports as missing.
type userBody struct {
	ID       *int     `json:"id" validate:"required,gt=0"`
	Username *string  `json:"username" validate:"required,min=3,max=50,alphanumunicode"`
	Email    *string  `json:"email" validate:"required,simple_email"`
	Age      *int     `json:"age" validate:"required,gte=13,lte=120"`
	Tags     []string `json:"tags"`
}

// user converts a validated body.
func (b userBody) user() model.User {
	u := model.User{Tags: b.Tags}
	if b.ID != nil {
		u.ID = *b.ID
	}
	if b.Username != nil {
		u.Username = *b.Username
	}
	if b.Email != nil {
		u.Email = *b.Email
	}
	if b.Age != nil {
		u.Age = *b.Age
	}
	return u.Clone()
}

type getUserRequest struct {
	UserID int `path:"user_id" validate:"gt=0"`
}

type listUsersRequest struct {
	Skip   int      `query:"skip,optional" validate:"gte=0"`
	Limit  int      `query:"limit,optional"`
	AgeMin *int     `query:"age_min" validate:"omitempty,gte=13"`
	Tags   []string `query:"tags"`
}

type createUserRequest struct {
	Body userBody `body:"json"`
}

type updateUserRequest struct {
	UserID    int      `path:"user_id" validate:"gt=0"`
	Body      userBody `body:"json"`
	APIKey    *string  `header:"x-api-key"`
	SessionID *string  `cookie:"session_id"`
}

// listLimitRule caps limit at max. The cap is configurable, so it cannot
// live in a static tag.
func listLimitRule(maxLimit int) validator.StructLevelFunc {
	param := strconv.Itoa(maxLimit)
	return func(sl validator.StructLevel) {
		req, ok := sl.Current().Interface().(listUsersRequest)
		if !ok {
			return
		}
		if req.Limit > maxLimit {
			sl.ReportError(req.Limit, "Limit", "Limit", "lte", param)
		}
	}
}

type userResponse struct {
	Message string     `json:"message,omitempty"`
	User    model.User `json:"user"`
}

type usersResponse struct {
	Users []model.User `json:"users"`
}

type updateMetadata struct {
	APIKey    *string `json:"api_key"`
	SessionID *string `json:"session_id"`
}

type updateUserResponse struct {
	Message  string         `json:"message"`
	User     model.User     `json:"user"`
	Metadata updateMetadata `json:"metadata"`
}

// UsersHandler handles the /users routes.
type UsersHandler struct {
	deps         UserDependencies
	binder       *requestBinder
	defaultLimit int
	logger       logger.Logger
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(deps UserDependencies, rb *requestBinder, defaultLimit int, log logger.Logger) *UsersHandler {
	return &UsersHandler{deps: deps, binder: rb, defaultLimit: defaultLimit, logger: log}
}

// HandleGetUser handles GET /users/{user_id} requests.
func (h *UsersHandler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	var req getUserRequest
	if !h.binder.bind(w, r, &req) {
		return
	}
	u, err := h.deps.GetUser(r.Context(), req.UserID)
	if err != nil {
		writeServiceError(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: u})
}

// HandleListUsers handles GET /users requests.
func (h *UsersHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	req := listUsersRequest{Limit: h.defaultLimit}
	if !h.binder.bind(w, r, &req) {
		return
	}
	users, err := h.deps.ListUsers(r.Context(), model.UserFilter{
		Skip:   req.Skip,
		Limit:  req.Limit,
		AgeMin: req.AgeMin,
		Tags:   req.Tags,
	})
	if err != nil {
		writeServiceError(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, usersResponse{Users: users})
}

// HandleCreateUser handles POST /users requests.
func (h *UsersHandler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !h.binder.bind(w, r, &req) {
		return
	}
	u, err := h.deps.CreateUser(r.Context(), req.Body.user())
	if err != nil {
		writeServiceError(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{Message: "User created", User: u})
}

// HandleUpdateUser handles PUT /users/{user_id} requests. X-API-Key and the
// session_id cookie are echoed back, never checked.
func (h *UsersHandler) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if !h.binder.bind(w, r, &req) {
		return
	}
	u, err := h.deps.UpdateUser(r.Context(), req.UserID, req.Body.user())
	if err != nil {
		writeServiceError(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, updateUserResponse{
		Message: "User updated",
		User:    u,
		Metadata: updateMetadata{
			APIKey:    req.APIKey,
			SessionID: req.SessionID,
		},
	})
}
