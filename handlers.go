package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type registerRequest struct {
	Email      string   `json:"email"`
	Password   string   `json:"password"`
	FirstName  string   `json:"first_name"`
	LastName   string   `json:"last_name"`
	MiddleName *string  `json:"middle_name"`
	Gender     *string  `json:"gender"`
	AvatarURL  *string  `json:"avatar_url"`
	Roles      []string `json:"roles"`
}

func (a *App) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" || req.FirstName == "" || req.LastName == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Email, password, first name and last name are required")
		return
	}
	if len(req.Roles) == 0 {
		req.Roles = []string{"member"}
	}

	hashed, err := hashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to process password")
		return
	}
	user := &User{
		ID:         uuid.NewString(),
		Email:      req.Email,
		Password:   hashed,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		MiddleName: req.MiddleName,
		Gender:     req.Gender,
		AvatarURL:  req.AvatarURL,
		Roles:      req.Roles,
		CreatedAt:  time.Now().UTC(),
	}
	created, err := a.DB.CreateUser(r.Context(), user)
	if err != nil {
		if err == ErrDuplicate {
			writeError(w, http.StatusConflict, "USER_EXISTS", "User with this email already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create user")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type creds struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *App) HandleSignin(w http.ResponseWriter, r *http.Request) {
	var c creds
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	user, err := a.DB.GetUserByEmail(r.Context(), c.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load user")
		return
	}
	// unknown email and wrong password are indistinguishable on the wire
	if user == nil || !comparePassword(user.Password, c.Password) {
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Incorrect Credentials")
		return
	}

	access, err := createAccessToken(a.secret, user.ID, user.Roles, a.accessTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to issue token")
		return
	}
	refresh, err := createRefreshToken(a.secret, user.ID, a.refreshTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "bearer",
	})
}

// HandleRefresh exchanges a valid refresh token for a fresh token pair. The
// subject is re-checked against the store so tokens of deleted accounts stop
// working here too.
func (a *App) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if in.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Refresh token is required")
		return
	}
	claims, err := parseToken(a.secret, in.RefreshToken)
	if err != nil || claims.Scope != scopeRefresh {
		writeUnauthorized(w, "Invalid refresh token")
		return
	}
	user, err := a.DB.GetUserByID(r.Context(), claims.Subject)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load user")
		return
	}
	if user == nil {
		writeUnauthorized(w, "Invalid refresh token")
		return
	}

	access, err := createAccessToken(a.secret, user.ID, user.Roles, a.accessTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to issue token")
		return
	}
	refresh, err := createRefreshToken(a.secret, user.ID, a.refreshTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "bearer",
	})
}

func (a *App) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.DB.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (a *App) HandleGetMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentUser(r))
}

func (a *App) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var up UserUpdate
	if err := json.NewDecoder(r.Body).Decode(&up); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	user, err := a.DB.UpdateUser(r.Context(), currentUser(r).ID, &up)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update user")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *App) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	user, err := a.DB.GetUserByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load user")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *App) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var up UserUpdate
	if err := json.NewDecoder(r.Body).Decode(&up); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	user, err := a.DB.UpdateUser(r.Context(), id, &up)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update user")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *App) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	user, err := a.DB.DeleteUser(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete user")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
