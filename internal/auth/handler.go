package auth

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"
)

// LoginHandler serves POST /api/v1/auth/login and issues JWTs.
type LoginHandler struct {
	users  *UserRepository
	secret []byte
	ttl    time.Duration
	logger *log.Logger
}

// NewLoginHandler constructs a LoginHandler.
func NewLoginHandler(users *UserRepository, secret []byte, ttl time.Duration, logger *log.Logger) *LoginHandler {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &LoginHandler{users: users, secret: secret, ttl: ttl, logger: logger}
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	user, err := h.users.Authenticate(r.Context(), payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		h.logger.Printf("login error: %v", err)
		http.Error(w, "login error", http.StatusInternalServerError)
		return
	}

	token, err := IssueJWT(user.Email, user.Role, h.secret, h.ttl)
	if err != nil {
		h.logger.Printf("token issue error: %v", err)
		http.Error(w, "login error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"token": token})
}
