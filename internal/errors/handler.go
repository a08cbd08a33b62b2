package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/render"

	"priceindex/internal/infrastructure"
	"priceindex/internal/multilateral"
	"priceindex/internal/panel"
	"priceindex/internal/services"
)

// Common error types following RFC 7807
const (
	TypeValidation      = "/errors/validation"
	TypeNotFound        = "/errors/not-found"
	TypeUnauthorized    = "/errors/unauthorized"
	TypeRateLimit       = "/errors/rate-limit"
	TypeInternal        = "/errors/internal"
	TypeServiceDown     = "/errors/service-unavailable"
	TypeTimeout         = "/errors/timeout"
	TypeMethodNotAllow  = "/errors/method-not-allowed"
	TypePayloadTooLarge = "/errors/payload-too-large"
)

// Index computation error types
const (
	TypeInvalidMethod           = "/errors/index/invalid-method"
	TypeCharacteristicsRequired = "/errors/index/characteristics-required"
	TypeNonPositivePrice        = "/errors/index/non-positive-price"
	TypeZeroExpenditure         = "/errors/index/zero-expenditure"
	TypeEmptyPanel              = "/errors/data/empty-panel"
	TypeSchema                  = "/errors/data/schema"
)

// ErrorHandler converts errors into RFC 7807 responses
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError converts any error to RFC 7807 format and responds
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	traceID := infrastructure.GetTraceID(r.Context())
	problem := h.ErrorToProblem(err, r)

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	if traceID != "" {
		problem.WithExtension("trace_id", traceID)
	}
	if h.includeStack && problem.Status >= http.StatusInternalServerError {
		problem.WithExtension("stack", string(debug.Stack()))
	}

	render.Render(w, r, problem)
}

// ErrorToProblem converts an error to RFC 7807 Problem Details
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	path := r.URL.Path

	var problem *ProblemDetails
	if errors.As(err, &problem) {
		return problem
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return h.apiErrorToProblem(apiErr, r)
	}

	var schemaErr *panel.SchemaError
	if errors.As(err, &schemaErr) {
		return NewProblemDetails(
			http.StatusBadRequest,
			TypeSchema,
			"Invalid Panel Schema",
			schemaErr.Error(),
			path,
		).WithExtension("column", schemaErr.Column)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return NewProblemDetails(
			http.StatusGatewayTimeout,
			TypeTimeout,
			"Request Timeout",
			"The computation took too long and was cancelled",
			path,
		)

	case errors.Is(err, multilateral.ErrInvalidMethod):
		return NewProblemDetails(
			http.StatusBadRequest,
			TypeInvalidMethod,
			"Invalid Method",
			err.Error(),
			path,
		).WithExtension("supported_methods", multilateral.Methods())

	case errors.Is(err, multilateral.ErrCharacteristicsRequired):
		return NewProblemDetails(
			http.StatusBadRequest,
			TypeCharacteristicsRequired,
			"Characteristics Required",
			"The TDH method needs at least one characteristic column",
			path,
		)

	case errors.Is(err, multilateral.ErrNonPositivePrice):
		return NewProblemDetails(
			http.StatusUnprocessableEntity,
			TypeNonPositivePrice,
			"Non-positive Price",
			err.Error(),
			path,
		)

	case errors.Is(err, panel.ErrZeroExpenditure):
		return NewProblemDetails(
			http.StatusUnprocessableEntity,
			TypeZeroExpenditure,
			"Zero Expenditure",
			err.Error(),
			path,
		)

	case errors.Is(err, services.ErrRunNotFound):
		return NewProblemDetails(
			http.StatusNotFound,
			TypeNotFound,
			"Index Not Found",
			err.Error(),
			path,
		)

	case errors.Is(err, services.ErrTooManyObservations):
		return NewProblemDetails(
			http.StatusRequestEntityTooLarge,
			TypePayloadTooLarge,
			"Too Many Observations",
			err.Error(),
			path,
		)

	case errors.Is(err, services.ErrGroupTooLarge):
		return NewProblemDetails(
			http.StatusRequestEntityTooLarge,
			TypePayloadTooLarge,
			"Too Many Groups",
			err.Error(),
			path,
		)

	case errors.Is(err, services.ErrGroupColumnRequired), errors.Is(err, services.ErrPanelRequired):
		return NewProblemDetails(
			http.StatusBadRequest,
			TypeValidation,
			"Validation Failed",
			err.Error(),
			path,
		)

	case errors.Is(err, panel.ErrEmptyPanel):
		return NewProblemDetails(
			http.StatusUnprocessableEntity,
			TypeEmptyPanel,
			"Empty Panel",
			"The request contains no observations",
			path,
		)

	default:
		return NewProblemDetails(
			http.StatusInternalServerError,
			TypeInternal,
			"Internal Server Error",
			"An unexpected error occurred while processing your request",
			path,
		)
	}
}

func (h *ErrorHandler) apiErrorToProblem(apiErr *APIError, r *http.Request) *ProblemDetails {
	problemType := TypeInternal
	switch apiErr.ErrorCode {
	case "VALIDATION_FAILED", "INVALID_REQUEST", "INVALID_JSON", "MISSING_PARAMETER", "INVALID_PARAMETER":
		problemType = TypeValidation
	case "NOT_FOUND", "INDEX_NOT_FOUND":
		problemType = TypeNotFound
	case "PAYLOAD_TOO_LARGE":
		problemType = TypePayloadTooLarge
	case "RATE_LIMIT_EXCEEDED":
		problemType = TypeRateLimit
	case "SERVICE_UNAVAILABLE":
		problemType = TypeServiceDown
	}

	problem := NewProblemDetails(
		apiErr.StatusCode,
		problemType,
		http.StatusText(apiErr.StatusCode),
		apiErr.Message,
		r.URL.Path,
	).WithExtension("error_code", apiErr.ErrorCode)

	if apiErr.Details != nil {
		if valErrors, ok := apiErr.Details.([]ValidationError); ok {
			problem.WithExtension("errors", valErrors)
		} else {
			problem.WithExtension("details", apiErr.Details)
		}
	}
	return problem
}

// HandlePanic responds with a 500 problem after a recovered panic
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	traceID := infrastructure.GetTraceID(r.Context())

	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	problem := NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred",
		r.URL.Path,
	).WithExtension("trace_id", traceID)

	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprintf("%v", recovered))
	}

	render.Render(w, r, problem)
}

// NotFound returns a standard 404 error
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusNotFound,
		TypeNotFound,
		"Not Found",
		"The requested resource was not found",
		r.URL.Path,
	).WithExtension("trace_id", infrastructure.GetTraceID(r.Context()))

	render.Render(w, r, problem)
}

// MethodNotAllowed returns a standard 405 error
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusMethodNotAllowed,
		TypeMethodNotAllow,
		"Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method),
		r.URL.Path,
	).WithExtension("trace_id", infrastructure.GetTraceID(r.Context()))

	render.Render(w, r, problem)
}

// RecoveryMiddleware recovers panics and answers with a problem response
func RecoveryMiddleware(handler *ErrorHandler) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					handler.HandlePanic(w, r, rec)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
