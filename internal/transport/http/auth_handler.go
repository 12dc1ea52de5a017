package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"aegis/internal/auth"
	apperrors "aegis/internal/errors"
)

// AuthHandler exchanges externally verified credentials for session tokens.
// Verification is delegated to the configured verifier; this handler never
// compares credentials itself.
type AuthHandler struct {
	verifier  auth.CredentialVerifier
	authority *auth.TokenAuthority
	tokenTTL  time.Duration
	logger    *slog.Logger
	validate  *validator.Validate
}

// NewAuthHandler creates an auth handler. verifier may be nil when no
// verification endpoint is configured; login then responds 503.
func NewAuthHandler(verifier auth.CredentialVerifier, authority *auth.TokenAuthority, tokenTTL time.Duration, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		verifier:  verifier,
		authority: authority,
		tokenTTL:  tokenTTL,
		logger:    logger.With(slog.String("component", "auth_handler")),
		validate:  validator.New(),
	}
}

// Routes returns the auth routes.
func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Post("/login", h.Login)
	return r
}

// LoginRequest carries the credentials forwarded to the external verifier.
type LoginRequest struct {
	Username string `json:"username" validate:"required,min=1,max=128"`
	Password string `json:"password" validate:"required,min=1,max=128"`
}

// LoginResponse carries the issued session token.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if h.verifier == nil {
		apperrors.WriteError(w, apperrors.ErrServiceUnavailable)
		return
	}

	var req LoginRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		apperrors.WriteError(w, apperrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		apperrors.WriteError(w, apperrors.ErrValidationFailed)
		return
	}

	if err := h.verifier.VerifyCredentials(r.Context(), req.Username, req.Password); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			apperrors.WriteError(w, apperrors.ErrUnauthorized)
			return
		}
		h.logger.ErrorContext(r.Context(), "credential verification failed",
			slog.String("error", err.Error()))
		apperrors.WriteError(w, apperrors.ErrServiceUnavailable)
		return
	}

	render.JSON(w, r, LoginResponse{
		Token:     h.authority.Issue(req.Username),
		ExpiresAt: time.Now().Add(h.tokenTTL),
	})
}
