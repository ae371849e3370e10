package api

import (
	"net/http"
	"time"

	"github.com/example/eventshop/internal/api/middleware"
	"github.com/example/eventshop/internal/apperr"
	"github.com/example/eventshop/internal/auth"
	"github.com/example/eventshop/internal/infrastructure/store"
	"github.com/example/eventshop/internal/readmodel"
)

// AuthHandlers serves registration, login and the token lifecycle.
type AuthHandlers struct {
	service   *auth.Service
	readStore store.ReadStore
}

func NewAuthHandlers(service *auth.Service, readStore store.ReadStore) *AuthHandlers {
	return &AuthHandlers{service: service, readStore: readStore}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userResponse is the safe projection of a users row. The hash and lockout
// counters stay server-side.
type userResponse struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Role          string    `json:"role"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
}

type authResponse struct {
	User   userResponse    `json:"user"`
	Tokens *auth.TokenPair `json:"tokens,omitempty"`
}

func toUserResponse(u *readmodel.User) userResponse {
	return userResponse{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Role:          u.Role,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
	}
}

func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	u, err := h.service.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, authResponse{User: toUserResponse(u)})
}

func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	pair, u, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, err)
		return
	}

	h.setAuthCookies(w, r, pair)
	respondJSON(w, http.StatusOK, authResponse{User: toUserResponse(u), Tokens: pair})
}

// Logout invalidates the presented refresh token and clears the cookies.
// Unknown tokens still succeed.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if token := refreshTokenFrom(r); token != "" {
		if err := h.service.Logout(r.Context(), token); err != nil {
			respondError(w, err)
			return
		}
	}
	h.clearAuthCookies(w)
	respondJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	token := refreshTokenFrom(r)
	if token == "" {
		respondCode(w, apperr.CodeInvalidRefreshToken, "missing refresh token")
		return
	}

	accessToken, expiresAt, err := h.service.Refresh(r.Context(), token)
	if err != nil {
		h.clearAuthCookies(w)
		respondError(w, err)
		return
	}

	http.SetCookie(w, accessCookie(accessToken, expiresAt, r.TLS != nil))
	respondJSON(w, http.StatusOK, map[string]any{
		"accessToken":     accessToken,
		"accessExpiresAt": expiresAt,
	})
}

func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	u, found, err := h.readStore.GetUserByID(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}
	if !found {
		respondCode(w, apperr.CodeUserNotFound, "user not found")
		return
	}
	respondJSON(w, http.StatusOK, toUserResponse(u))
}

// RequestPasswordReset accepts any email and always reports success.
func (h *AuthHandlers) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	if err := h.service.RequestPasswordReset(r.Context(), req.Email); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "if the account exists, a reset email has been sent"})
}

func (h *AuthHandlers) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	if err := h.service.ConfirmPasswordReset(r.Context(), req.Token, req.Password); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "password has been reset"})
}

func (h *AuthHandlers) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	if err := h.service.VerifyEmail(r.Context(), req.Token); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "email verified"})
}

// refreshTokenFrom prefers the cookie; API clients may send the token in the
// body instead, which Logout and Refresh decode lazily here.
func refreshTokenFrom(r *http.Request) string {
	if cookie, err := r.Cookie("refresh_token"); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeJSON(r, &req); err == nil {
		return req.RefreshToken
	}
	return ""
}

func accessCookie(token string, expiresAt time.Time, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     "access_token",
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func (h *AuthHandlers) setAuthCookies(w http.ResponseWriter, r *http.Request, pair *auth.TokenPair) {
	secure := r.TLS != nil
	http.SetCookie(w, accessCookie(pair.AccessToken, pair.AccessExpiresAt, secure))
	http.SetCookie(w, &http.Cookie{
		Name:     "refresh_token",
		Value:    pair.RefreshToken,
		Path:     "/auth",
		Expires:  pair.RefreshExpiresAt,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandlers) clearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     "refresh_token",
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
