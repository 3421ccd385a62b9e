// Package errors/handlers turns AppErrors into interface-specific output.
//
// INTEGRATION POINTS:
// - internal/cli: CLIErrorHandler formats the final error of a command
// - internal/mockregistry: HTTPErrorHandler maps codes to status codes and JSON bodies
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
)

// ErrorHandler provides interface-specific error handling
type ErrorHandler interface {
	HandleError(err error) error
	FormatError(err error) string
}

// CLIErrorHandler handles errors for CLI interface
type CLIErrorHandler struct {
	Verbose bool
	Log     zerolog.Logger
}

// NewCLIErrorHandler creates a new CLI error handler
func NewCLIErrorHandler(verbose bool, log zerolog.Logger) *CLIErrorHandler {
	return &CLIErrorHandler{
		Verbose: verbose,
		Log:     log,
	}
}

// HandleError logs err and returns it formatted for display.
func (h *CLIErrorHandler) HandleError(err error) error {
	appErr := GetAppError(err)

	event := h.Log.Debug()
	if h.Verbose {
		event = h.Log.Error()
	}
	event.Str("code", string(appErr.Code)).
		Str("severity", string(appErr.Severity)).
		Str("category", string(appErr.Category)).
		Err(appErr.Cause).
		Msg(appErr.Message)

	return fmt.Errorf("%s", h.FormatError(appErr))
}

// FormatError formats an error for CLI display
func (h *CLIErrorHandler) FormatError(err error) string {
	appErr := GetAppError(err)

	msg := appErr.Message
	if appErr.Details != "" {
		msg = fmt.Sprintf("%s (%s)", msg, appErr.Details)
	}
	if h.Verbose && appErr.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, appErr.Cause)
	}
	if candidates, ok := appErr.Context["candidates"].([]string); ok && len(candidates) > 0 {
		msg += "\nDid you mean:"
		for _, c := range candidates {
			msg += "\n  " + c
		}
	}

	switch appErr.Severity {
	case SeverityCritical:
		return "CRITICAL: " + msg
	case SeverityError:
		return "ERROR: " + msg
	case SeverityWarning:
		return "WARNING: " + msg
	case SeverityInfo:
		return msg
	default:
		return msg
	}
}

// HTTPErrorHandler handles errors for HTTP interface
type HTTPErrorHandler struct {
	IncludeDetails bool
	Log            zerolog.Logger
}

// NewHTTPErrorHandler creates a new HTTP error handler
func NewHTTPErrorHandler(includeDetails bool, log zerolog.Logger) *HTTPErrorHandler {
	return &HTTPErrorHandler{
		IncludeDetails: includeDetails,
		Log:            log,
	}
}

// HandleError logs an error raised while serving a request.
func (h *HTTPErrorHandler) HandleError(err error) error {
	appErr := GetAppError(err)
	h.Log.Warn().
		Str("code", string(appErr.Code)).
		Err(appErr.Cause).
		Msg(appErr.Message)
	return appErr
}

// Body builds the JSON error envelope for err.
func (h *HTTPErrorHandler) Body(err error) map[string]interface{} {
	appErr := GetAppError(err)

	body := map[string]interface{}{
		"code":      appErr.Code,
		"message":   appErr.Message,
		"timestamp": appErr.Timestamp,
	}
	if h.IncludeDetails && appErr.Details != "" {
		body["details"] = appErr.Details
	}
	if h.IncludeDetails && appErr.Context != nil {
		body["context"] = appErr.Context
	}
	return map[string]interface{}{"error": body}
}

// FormatError formats an error for HTTP response
func (h *HTTPErrorHandler) FormatError(err error) string {
	jsonBytes, _ := json.Marshal(h.Body(err))
	return string(jsonBytes)
}

// WriteHTTPError writes an error response to HTTP
func (h *HTTPErrorHandler) WriteHTTPError(w http.ResponseWriter, err error) {
	appErr := GetAppError(err)
	h.HandleError(appErr)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(HTTPStatus(appErr))
	w.Write([]byte(h.FormatError(appErr)))
}

// HTTPStatus maps error codes to HTTP status codes
func HTTPStatus(err error) int {
	switch GetAppError(err).Code {
	case ErrCodeInvalidInput, ErrCodeInvalidKey, ErrCodeParseFailure:
		return http.StatusBadRequest
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeAlreadyExists, ErrCodeConflict, ErrCodeNotEmpty, ErrCodeAmbiguous:
		return http.StatusConflict
	case ErrCodeRemoteFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
