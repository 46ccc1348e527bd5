package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"fitroom/internal/asset"
	"fitroom/internal/auth"
	"fitroom/internal/catalog"
	"fitroom/internal/controller"
	"fitroom/internal/looks"
	"fitroom/internal/merge"
	"fitroom/internal/registry"
	"fitroom/internal/room"
	"fitroom/internal/uploads"
)

// Error codes sent in ErrorInfo.Code.
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeValidation       = "VALIDATION"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodePrecondition     = "PRECONDITION"
	CodeLoadFailed       = "LOAD_FAILED"
	CodeTooLarge         = "TOO_LARGE"
	CodeUnsupportedMedia = "UNSUPPORTED_MEDIA"
	CodeRateLimited      = "RATE_LIMITED"
	CodeUnavailable      = "UNAVAILABLE"
	CodeTimeout          = "TIMEOUT"
	CodeInternal         = "INTERNAL"
)

// Response is the envelope of every JSON reply.
type Response struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	RequestID string     `json:"request_id,omitempty"`
}

type ErrorInfo struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// errBadRequest wraps malformed request bodies and parameters.
var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeJSON(w, status, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: RequestIDFromContext(r.Context()),
	})
}

func writeErrorMessage(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, Response{
		Error:     &ErrorInfo{Code: code, Message: message},
		Timestamp: time.Now(),
		RequestID: RequestIDFromContext(r.Context()),
	})
}

// writeError maps err to a status and code. Unexpected errors are logged
// and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error, logger *zap.Logger) {
	status, info := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.Error(err))
	}
	writeJSON(w, status, Response{
		Error:     info,
		Timestamp: time.Now(),
		RequestID: RequestIDFromContext(r.Context()),
	})
}

func classify(err error) (int, *ErrorInfo) {
	var (
		verr *auth.ValidationError
		merr *merge.Error
		lerr *asset.LoadError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, &ErrorInfo{Code: CodeValidation, Message: "invalid input", Fields: verr.Fields}
	case errors.Is(err, errBadRequest),
		errors.Is(err, room.ErrInvalidAction),
		errors.Is(err, room.ErrUnknownAction),
		errors.Is(err, room.ErrNotWearable),
		errors.Is(err, controller.ErrNotDraggable):
		return http.StatusBadRequest, &ErrorInfo{Code: CodeInvalidRequest, Message: err.Error()}
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, &ErrorInfo{Code: CodeUnauthorized, Message: "Invalid username or password"}
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, &ErrorInfo{Code: CodeUnauthorized, Message: "invalid or expired token"}
	case errors.Is(err, auth.ErrUsernameTaken):
		return http.StatusConflict, &ErrorInfo{Code: CodeConflict, Message: "Username already exists"}
	case errors.Is(err, auth.ErrEmailTaken):
		return http.StatusConflict, &ErrorInfo{Code: CodeConflict, Message: "Email already exists"}
	case errors.Is(err, auth.ErrUserNotFound),
		errors.Is(err, room.ErrRoomNotFound),
		errors.Is(err, looks.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, uploads.ErrNotFound),
		errors.Is(err, registry.ErrNotFound):
		return http.StatusNotFound, &ErrorInfo{Code: CodeNotFound, Message: err.Error()}
	case errors.As(err, &merr):
		return http.StatusConflict, &ErrorInfo{Code: CodePrecondition, Message: string(merr.Reason)}
	case errors.Is(err, registry.ErrMerged),
		errors.Is(err, room.ErrLoading),
		errors.Is(err, controller.ErrBusy),
		errors.Is(err, controller.ErrNoSelection),
		errors.Is(err, controller.ErrNoGizmo),
		errors.Is(err, asset.ErrSuperseded):
		return http.StatusConflict, &ErrorInfo{Code: CodePrecondition, Message: err.Error()}
	case errors.Is(err, room.ErrClosed):
		return http.StatusGone, &ErrorInfo{Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, uploads.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, &ErrorInfo{Code: CodeTooLarge, Message: err.Error()}
	case errors.Is(err, uploads.ErrNotGLB):
		return http.StatusUnsupportedMediaType, &ErrorInfo{Code: CodeUnsupportedMedia, Message: err.Error()}
	case errors.As(err, &lerr):
		if lerr.Reason == asset.ReasonTooLarge {
			return http.StatusRequestEntityTooLarge, &ErrorInfo{Code: CodeTooLarge, Message: lerr.Reason}
		}
		return http.StatusUnprocessableEntity, &ErrorInfo{Code: CodeLoadFailed, Message: lerr.Reason}
	case errors.Is(err, room.ErrTooManyRooms):
		return http.StatusServiceUnavailable, &ErrorInfo{Code: CodeUnavailable, Message: err.Error()}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout, &ErrorInfo{Code: CodeTimeout, Message: "request cancelled"}
	}
	return http.StatusInternalServerError, &ErrorInfo{Code: CodeInternal, Message: "internal server error"}
}
