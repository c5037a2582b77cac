package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrEmptyText          = fmt.Errorf("message text is empty")
	ErrMissingParticipant = fmt.Errorf("participant id is missing")
	ErrSelfChat           = fmt.Errorf("a chat requires two distinct participants")
	ErrChatNotFound       = fmt.Errorf("chat not found")
	ErrNotParticipant     = fmt.Errorf("requester is not a participant of this chat")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrInvalidToken       = fmt.Errorf("invalid or expired token")
	ErrWorkerPanic        = fmt.Errorf("worker panic")
)

// MapToHTTPStatus translates domain errors into HTTP status codes at the
// transport boundary. Unknown errors are treated as internal.
func MapToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrEmptyText),
		errors.Is(err, ErrMissingParticipant),
		errors.Is(err, ErrSelfChat),
		errors.Is(err, ErrInvalidPassword):
		return http.StatusBadRequest
	case errors.Is(err, ErrChatNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNotParticipant):
		return http.StatusForbidden
	case errors.Is(err, ErrUserAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
