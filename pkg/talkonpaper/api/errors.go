package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/talkonpaper/pkg/talkonpaper"
	"github.com/tendant/talkonpaper/pkg/talkonpaper/blog"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: ErrorBody{Code: code, Message: message}})
}

// writeServiceError maps catalog errors onto HTTP statuses. Unrecognized
// errors are logged and reported as 500 without detail.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *talkonpaper.ValidationError
	switch {
	case errors.As(err, &verr):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: ErrorBody{
			Code:    "invalid_request",
			Message: verr.Error(),
			Field:   verr.Field,
		}})
	case errors.Is(err, talkonpaper.ErrInvalidTier):
		writeError(w, r, http.StatusBadRequest, "invalid_tier", err.Error())
	case errors.Is(err, talkonpaper.ErrInvalidRequest):
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, talkonpaper.ErrTalkNotFound),
		errors.Is(err, talkonpaper.ErrPaperNotFound),
		errors.Is(err, talkonpaper.ErrSpeakerNotFound),
		errors.Is(err, talkonpaper.ErrUserNotFound),
		errors.Is(err, blog.ErrPostNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, talkonpaper.ErrDuplicateEmail),
		errors.Is(err, talkonpaper.ErrDuplicatePaper),
		errors.Is(err, talkonpaper.ErrTalkExists):
		writeError(w, r, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, talkonpaper.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, "invalid_credentials", err.Error())
	case errors.Is(err, talkonpaper.ErrInactiveAccount):
		writeError(w, r, http.StatusForbidden, "inactive_account", err.Error())
	default:
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, r, http.StatusInternalServerError, "internal_error", "An internal server error occurred")
	}
}
