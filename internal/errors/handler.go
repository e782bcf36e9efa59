package errors

import (
	stderrors "errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"agripulse/internal/analysis"
	"agripulse/internal/infrastructure"
	"agripulse/internal/store"
)

// ErrorHandler provides centralized error handling for the HTTP layer. It
// maps domain errors from the store and analysis packages onto APIError
// codes and renders the standard envelope.
type ErrorHandler struct {
	logger *slog.Logger
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorHandler{
		logger: logger.With(slog.String("component", "error_handler")),
	}
}

// HandleError logs the error with request context and renders its APIError
// mapping.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	reqID := infrastructure.GetTraceID(r.Context())
	h.logger.ErrorContext(r.Context(), "request failed",
		slog.String("error", err.Error()),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	render.Render(w, r, NewErrorResponse(Map(err)))
}

// Map converts any error into an APIError. Domain errors keep their own
// codes; everything else becomes an internal server error.
func Map(err error) *APIError {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr
	}

	var ingest *store.IngestError
	if stderrors.As(err, &ingest) {
		return Detailed(ErrIngestFailed, ingest.Error())
	}

	var invalid *analysis.ValidationError
	if stderrors.As(err, &invalid) {
		return ErrValidation(invalid.Field, invalid.Message)
	}

	var short *analysis.InsufficientDataError
	if stderrors.As(err, &short) {
		return Detailed(ErrInsufficientData, map[string]int{"have": short.Have, "need": short.Need})
	}

	if stderrors.Is(err, analysis.ErrNotComputable) {
		return ErrMarginNotComputable
	}

	return Detailed(ErrInternalServer, err.Error())
}
