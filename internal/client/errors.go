package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ryanbastic/go-cellgrid/internal/circuitbreaker"
)

// Category groups failures by how an operator should react to them.
type Category int

const (
	CategoryTransport Category = iota
	CategoryAuthorization
	CategoryValidation
	CategoryNotFound
	CategoryServer
)

func (c Category) String() string {
	switch c {
	case CategoryAuthorization:
		return "authorization"
	case CategoryValidation:
		return "validation"
	case CategoryNotFound:
		return "not_found"
	case CategoryServer:
		return "server"
	default:
		return "transport"
	}
}

var (
	// ErrTransport wraps network failures, timeouts and an open breaker.
	ErrTransport = errors.New("backend unreachable")
	// ErrChangeRejected is returned when the backend answers with success=false.
	ErrChangeRejected = errors.New("role change rejected")
	// ErrBadAcknowledgement is returned for a success without a cell.
	ErrBadAcknowledgement = errors.New("role change acknowledgement missing cell")
)

// FieldError is one entry of a problem response's error list.
type FieldError struct {
	Message  string `json:"message"`
	Location string `json:"location,omitempty"`
	Value    any    `json:"value,omitempty"`
}

// APIError is a non-2xx response. The body is expected in the
// application/problem+json shape the backend emits.
type APIError struct {
	Status int          `json:"status"`
	Title  string       `json:"title"`
	Detail string       `json:"detail"`
	Errors []FieldError `json:"errors,omitempty"`
}

func (e *APIError) Error() string {
	msg := e.Detail
	if msg == "" {
		msg = e.Title
	}
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if len(e.Errors) > 0 {
		parts := make([]string, 0, len(e.Errors))
		for _, fe := range e.Errors {
			if fe.Location != "" {
				parts = append(parts, fe.Location+": "+fe.Message)
			} else {
				parts = append(parts, fe.Message)
			}
		}
		msg += " (" + strings.Join(parts, "; ") + ")"
	}
	return fmt.Sprintf("%d: %s", e.Status, msg)
}

// Category classifies e by status code.
func (e *APIError) Category() Category {
	switch {
	case e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden:
		return CategoryAuthorization
	case e.Status == http.StatusBadRequest || e.Status == http.StatusUnprocessableEntity:
		return CategoryValidation
	case e.Status == http.StatusNotFound:
		return CategoryNotFound
	default:
		return CategoryServer
	}
}

func (e *APIError) retryable() bool {
	return e.Status >= 500
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{}
	if err := json.Unmarshal(body, apiErr); err != nil || (apiErr.Title == "" && apiErr.Detail == "") {
		apiErr = &APIError{Detail: strings.TrimSpace(string(body))}
	}
	apiErr.Status = status
	return apiErr
}

// CategoryOf classifies any error returned by Client.
func CategoryOf(err error) Category {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Category()
	}
	if errors.Is(err, ErrChangeRejected) {
		return CategoryValidation
	}
	if errors.Is(err, ErrBadAcknowledgement) {
		return CategoryServer
	}
	return CategoryTransport
}

func IsAuthorization(err error) bool { return CategoryOf(err) == CategoryAuthorization }
func IsValidation(err error) bool    { return CategoryOf(err) == CategoryValidation }
func IsNotFound(err error) bool      { return CategoryOf(err) == CategoryNotFound }
func IsTransport(err error) bool     { return CategoryOf(err) == CategoryTransport }

// countsAsFailure decides which errors trip the breaker: the backend being
// unreachable or answering 5xx. The caller's own cancellation or deadline
// and 4xx do not. An http.Client timeout arrives wrapped in ErrTransport
// and still counts.
func countsAsFailure(err error) bool {
	if !errors.Is(err, ErrTransport) &&
		(errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.retryable()
	}
	return !errors.Is(err, circuitbreaker.ErrCircuitOpen)
}
