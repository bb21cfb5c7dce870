package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/gameroom-go/model"
	"github.com/mcoot/gameroom-go/validate"
)

// APIError is the error payload returned to clients
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Error codes produced by the host itself. Validation failures keep the
// codes the rooms report.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeNotHost        = "NOT_HOST"
	CodeRoomNotFound   = "ROOM_NOT_FOUND"
	CodeRoomClosed     = "ROOM_CLOSED"
	CodeInvalidConfig  = "INVALID_CONFIG"
	CodeInternalError  = "INTERNAL_ERROR"
)

// validationStatus maps room validation codes to HTTP statuses
var validationStatus = map[validate.Code]int{
	validate.CodePlayerAlreadyJoined: http.StatusConflict,
	validate.CodeGameFull:            http.StatusConflict,
	validate.CodeGameInProgress:      http.StatusConflict,
	validate.CodeGameAlreadyStarted:  http.StatusConflict,
	validate.CodeNotEnoughPlayers:    http.StatusConflict,
	validate.CodeInvalidPhase:        http.StatusBadRequest,
	validate.CodeSamePhase:           http.StatusConflict,
	validate.CodeInvalidCurrentPhase: http.StatusConflict,
	validate.CodePlayerNotFound:      http.StatusNotFound,
	validate.CodeGameAlreadyEnded:    http.StatusConflict,
	validate.CodeGameNotStarted:      http.StatusConflict,
}

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	// Validation failures carry their own code and details
	var verr *validate.Error
	if errors.As(err, &verr) {
		status, ok := validationStatus[verr.Code]
		if !ok {
			status = http.StatusBadRequest
		}
		return &httpError{status, APIError{string(verr.Code), verr.Message, verr.Details}}
	}

	switch {
	case errors.Is(err, model.ErrRoomNotFound):
		return &httpError{http.StatusNotFound, APIError{Code: CodeRoomNotFound, Message: "Room not found"}}
	case errors.Is(err, model.ErrRoomClosed):
		return &httpError{http.StatusGone, APIError{Code: CodeRoomClosed, Message: "Room is closed"}}
	case errors.Is(err, model.ErrInvalidConfig):
		return &httpError{http.StatusBadRequest, APIError{Code: CodeInvalidConfig, Message: err.Error()}}
	default:
		return &httpError{http.StatusInternalServerError, APIError{Code: CodeInternalError, Message: "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{Code: CodeInvalidRequest, Message: message}}
}

// NewNotHostError creates an error for host-only operations
func NewNotHostError() error {
	return &httpError{http.StatusForbidden, APIError{Code: CodeNotHost, Message: "Only the host can perform this action"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{Code: CodeInternalError, Message: "Internal server error"}}
}
