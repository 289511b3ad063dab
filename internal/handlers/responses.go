package handlers

import (
	"errors"
	"net/http"

	"github.com/M-Shameel-375/skill-verse-sub001/internal/domain"
)

// errorResponse is the body returned for every failed request.
type errorResponse struct {
	Error string `json:"error"`
}

// statusFor translates engine sentinel errors to HTTP statuses. Unknown
// errors are internal; sentinels never propagate silently.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyMatched),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrSessionClosed),
		errors.Is(err, domain.ErrDuplicateConnection):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidParticipant),
		errors.Is(err, domain.ErrNotParticipant):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}
