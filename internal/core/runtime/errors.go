package runtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind classifies model call failures.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindRateLimit
	KindBadRequest
	KindAuth
	KindConnection
	KindPermission
	KindNotFound
	KindAPI
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimit:
		return "rate_limit"
	case KindBadRequest:
		return "bad_request"
	case KindAuth:
		return "auth"
	case KindConnection:
		return "connection"
	case KindPermission:
		return "permission"
	case KindNotFound:
		return "not_found"
	case KindAPI:
		return "api"
	default:
		return "unknown"
	}
}

// APIError is returned by the model client for every failed call.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	// Message is the provider's own error text when one was returned.
	Message string
	Err     error
}

func (e *APIError) Error() string {
	detail := e.Message
	if detail == "" && e.Err != nil {
		detail = e.Err.Error()
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("openai: %s (status %d): %s", e.Kind, e.StatusCode, detail)
	}
	return fmt.Sprintf("openai: %s: %s", e.Kind, detail)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// kindForStatus maps an HTTP status code onto an ErrorKind.
func kindForStatus(code int) ErrorKind {
	switch code {
	case http.StatusTooManyRequests:
		return KindRateLimit
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindBadRequest
	case http.StatusUnauthorized:
		return KindAuth
	case http.StatusForbidden:
		return KindPermission
	case http.StatusNotFound:
		return KindNotFound
	default:
		return KindAPI
	}
}

// IsRetriable reports whether repeating the call could succeed. Rate limits,
// connection failures and generic API errors qualify; authentication,
// permission, bad request and not found do not. Unknown errors are not
// retried.
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case KindRateLimit, KindConnection, KindAPI:
			return true
		default:
			return false
		}
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// DescribeError turns a model call failure into the message shown to the user.
func DescribeError(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return fmt.Sprintf("Unknown error: %v", err)
	}

	message := apiErr.Message
	if message == "" {
		message = err.Error()
	}

	switch apiErr.Kind {
	case KindRateLimit:
		return fmt.Sprintf("Error 429: Exceeding the quota. Message from the provider: %s. You can change the LLM in the config file.", message)
	case KindBadRequest:
		return fmt.Sprintf("Error 400: %s. Check model name.", message)
	case KindAuth:
		return "Error 401: Authentication failed. Check your API_KEY."
	case KindConnection:
		return "No connection, please check your Internet connection"
	case KindPermission:
		return "Error 403: Your region is not supported. Use VPN or change the LLM."
	case KindNotFound:
		return "Error 404: Resource not found. Check API_URL and Model in settings."
	case KindAPI:
		return fmt.Sprintf("Error API: %s. Check the LLM settings, there may be an incorrect API_URL", message)
	default:
		return fmt.Sprintf("Unknown error: %s", message)
	}
}
