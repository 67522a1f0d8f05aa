package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/sopify/sopify/auth"
	"github.com/sopify/sopify/store"
)

// tokenTTL is how long issued tokens stay valid.
const tokenTTL = 24 * time.Hour

type credentialsRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  *store.User `json:"user"`
}

// handleRegister creates an account and returns a signed token for it.
func (s *Service) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "All fields are required")
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeErr(w, http.StatusBadRequest, "All fields are required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "Failed to register user")
		return
	}

	u, err := s.store.CreateUser(r.Context(), s.clean(req.Name), req.Email, string(hash))
	if errors.Is(err, store.ErrDuplicateEmail) {
		writeErr(w, http.StatusBadRequest, "User already exists")
		return
	}
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "Failed to register user")
		return
	}

	token, err := s.issueToken(u)
	if err != nil {
		s.logger.Error("api: sign token", "error", err)
		writeErr(w, http.StatusInternalServerError, "Failed to register user")
		return
	}

	s.recordEvent(r, "user_registered", "user", u.ID, u.ID)
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: u})
}

// handleLogin verifies credentials and returns a signed token. Unknown email
// and wrong password are indistinguishable to the caller.
func (s *Service) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "Invalid credentials")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeErr(w, http.StatusBadRequest, "Invalid credentials")
		return
	}

	u, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if store.IsNotFound(err) {
		writeErr(w, http.StatusBadRequest, "Invalid credentials")
		return
	}
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "Failed to log in")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		writeErr(w, http.StatusBadRequest, "Invalid credentials")
		return
	}

	token, err := s.issueToken(u)
	if err != nil {
		s.logger.Error("api: sign token", "error", err)
		writeErr(w, http.StatusInternalServerError, "Failed to log in")
		return
	}

	writeJSON(w, http.StatusOK, authResponse{Token: token, User: u})
}

func (s *Service) issueToken(u *store.User) (string, error) {
	return auth.GenerateToken(s.secret, &auth.Claims{
		UserID: u.ID,
		Name:   u.Name,
		Email:  u.Email,
	}, tokenTTL)
}
