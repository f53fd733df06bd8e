package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/destone28/aureavia/internal/ride/domain"
	"github.com/destone28/aureavia/internal/shared/auth"
	"github.com/destone28/aureavia/internal/shared/user"
)

// AuthHandler — вход по email/паролю, выдает JWT.
type AuthHandler struct {
	users      user.Repository
	jwtService *auth.JWTService
	log        zerolog.Logger
}

// NewAuthHandler создает обработчик аутентификации.
func NewAuthHandler(users user.Repository, jwtService *auth.JWTService, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{users: users, jwtService: jwtService, log: log}
}

// Routes монтирует маршруты аутентификации.
func (h *AuthHandler) Routes(r chi.Router) {
	r.Post("/login", h.handleLogin)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string     `json:"token"`
	User  *user.User `json:"user"`
}

// handleLogin обрабатывает POST /api/auth/login.
func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request format")
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	u, err := h.users.FindByEmail(r.Context(), req.Email)
	if err != nil {
		if domain.IsNotFound(err) {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		respondDomainError(w, h.log, err)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.jwtService.GenerateToken(u.ID, u.Email, u.Role)
	if err != nil {
		h.log.Error().Err(err).Msg("token generation failed")
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	respondJSON(w, http.StatusOK, loginResponse{Token: token, User: u})
}
