package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/talkonpaper/pkg/talkonpaper"
	"github.com/tendant/talkonpaper/pkg/talkonpaper/access"
)

type contextKey string

const viewerKey contextKey = "viewer"

// ViewerFromContext returns the authenticated user, or nil for anonymous
// requests.
func ViewerFromContext(ctx context.Context) *talkonpaper.User {
	u, _ := ctx.Value(viewerKey).(*talkonpaper.User)
	return u
}

// Viewer resolves the user behind a verified token. Missing, invalid or
// expired tokens and inactive accounts leave the request anonymous.
func (h *Handler) Viewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			next.ServeHTTP(w, r)
			return
		}

		sub, _ := claims["sub"].(string)
		id, err := uuid.Parse(sub)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		user, err := h.service.GetUser(r.Context(), id)
		if err != nil {
			if !errors.Is(err, talkonpaper.ErrUserNotFound) {
				h.logger.Warn("failed to load viewer", "user_id", id, "err", err)
			}
			next.ServeHTTP(w, r)
			return
		}
		if !user.IsActive {
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), viewerKey, user)))
	})
}

// RequireViewer rejects anonymous requests with 401.
func RequireViewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ViewerFromContext(r.Context()) == nil {
			writeError(w, r, http.StatusUnauthorized, "unauthorized", "Please log in to continue")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// LoginRequest is the request body for POST /auth/login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by register and login
type AuthResponse struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expires_at"`
	User      *talkonpaper.User `json:"user"`
}

// AccountResponse describes the viewer and the tiers above their own
type AccountResponse struct {
	User     *talkonpaper.User `json:"user"`
	Tier     access.Tier       `json:"tier"`
	Upgrades []access.Tier     `json:"upgrades"`
}

// SubscriptionRequest is the request body for POST /account/subscription
type SubscriptionRequest struct {
	Action talkonpaper.SubscriptionAction `json:"action"`
}

func (h *Handler) issueToken(u *talkonpaper.User) (string, time.Time, error) {
	expiresAt := time.Now().Add(h.tokenTTL).UTC().Truncate(time.Second)
	claims := map[string]interface{}{
		"sub":  u.ID.String(),
		"role": string(u.Role),
	}
	jwtauth.SetIssuedNow(claims)
	jwtauth.SetExpiry(claims, expiresAt)

	_, tokenString, err := h.tokens.Encode(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

func (h *Handler) respondWithToken(w http.ResponseWriter, r *http.Request, status int, u *talkonpaper.User) {
	token, expiresAt, err := h.issueToken(u)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	render.Status(r, status)
	render.JSON(w, r, AuthResponse{Token: token, ExpiresAt: expiresAt, User: u})
}

// Register creates a viewer account on the public tier
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req talkonpaper.RegisterRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_json", "Invalid request body")
		return
	}

	user, err := h.service.Register(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.respondWithToken(w, r, http.StatusCreated, user)
}

// Login exchanges credentials for a token
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_json", "Invalid request body")
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.respondWithToken(w, r, http.StatusOK, user)
}

// GetAccount returns the current viewer
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, accountResponse(ViewerFromContext(r.Context())))
}

// ChangeSubscription moves the viewer between tiers
func (h *Handler) ChangeSubscription(w http.ResponseWriter, r *http.Request) {
	var req SubscriptionRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_json", "Invalid request body")
		return
	}

	viewer := ViewerFromContext(r.Context())
	user, err := h.service.ChangeSubscription(r.Context(), talkonpaper.ChangeSubscriptionRequest{
		UserID: viewer.ID,
		Action: req.Action,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	render.JSON(w, r, accountResponse(user))
}

func accountResponse(u *talkonpaper.User) AccountResponse {
	tier := talkonpaper.ViewerTier(u)
	return AccountResponse{User: u, Tier: tier, Upgrades: tier.Eligible()[1:]}
}
