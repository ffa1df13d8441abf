package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-bazaar/internal/common"
	"github.com/noah-isme/backend-bazaar/internal/store"
)

// UserQuerier is the account persistence surface auth needs.
type UserQuerier interface {
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, id pgtype.UUID) (store.User, error)
	CreateUser(ctx context.Context, arg store.CreateUserParams) (store.User, error)
}

// Handler serves account registration and login.
type Handler struct {
	Q      UserQuerier
	Tokens *TokenService
}

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles POST /auth/register. New accounts always get the
// customer role; admins are provisioned through the seeder.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Q == nil || h.Tokens == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "auth not configured", nil)
		return
	}
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "a valid email is required", nil)
		return
	}
	if len(req.Password) < 8 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "password must be at least 8 characters", nil)
		return
	}
	hash, err := argon2id.CreateHash(req.Password, argon2id.DefaultParams)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to hash password", nil)
		return
	}
	user, err := h.Q.CreateUser(r.Context(), store.CreateUserParams{
		Email:        req.Email,
		Name:         req.Name,
		Role:         "customer",
		PasswordHash: hash,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			common.JSONError(w, http.StatusConflict, "EMAIL_TAKEN", "an account with this email already exists", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create account", nil)
		return
	}
	h.issueToken(w, user, http.StatusCreated)
}

// Login handles POST /auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Q == nil || h.Tokens == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "auth not configured", nil)
		return
	}
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	user, err := h.Q.GetUserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "email or password is incorrect", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "login failed", nil)
		return
	}
	match, err := argon2id.ComparePasswordAndHash(req.Password, user.PasswordHash)
	if err != nil || !match {
		common.JSONError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "email or password is incorrect", nil)
		return
	}
	h.issueToken(w, user, http.StatusOK)
}

// Me handles GET /auth/me for the authenticated user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var uID pgtype.UUID
	if err := uID.Scan(userID); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid user id", nil)
		return
	}
	user, err := h.Q.GetUserByID(r.Context(), uID)
	if err != nil {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "account not found", nil)
		return
	}
	common.JSONData(w, http.StatusOK, map[string]any{
		"id":    userID,
		"email": user.Email,
		"name":  user.Name,
		"role":  user.Role,
	})
}

func (h *Handler) issueToken(w http.ResponseWriter, user store.User, status int) {
	id := uuid.UUID(user.ID.Bytes).String()
	token, expires, err := h.Tokens.IssueAccessToken(id, user.Email, user.Role)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to issue token", nil)
		return
	}
	common.JSONData(w, status, map[string]any{
		"accessToken": token,
		"expiresAt":   expires,
		"user": map[string]any{
			"id":    id,
			"email": user.Email,
			"name":  user.Name,
			"role":  user.Role,
		},
	})
}
