package github

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jmgilman/go/errors"
)

// WrapHTTPError wraps an error based on the HTTP status code returned by the
// GitHub API. A 403 whose message mentions the rate limit is coded as
// CodeRateLimit, since GitHub reports primary rate limiting that way.
func WrapHTTPError(err error, statusCode int, message string) error {
	if err == nil {
		return nil
	}

	var code errors.ErrorCode
	switch statusCode {
	case http.StatusNotFound:
		code = errors.CodeNotFound
	case http.StatusUnauthorized:
		code = errors.CodeUnauthorized
	case http.StatusForbidden:
		if strings.Contains(strings.ToLower(err.Error()), "rate limit") {
			code = errors.CodeRateLimit
		} else {
			code = errors.CodeForbidden
		}
	case http.StatusTooManyRequests:
		code = errors.CodeRateLimit
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		code = errors.CodeInvalidInput
	default:
		if statusCode >= 500 {
			code = errors.CodeNetwork
		} else {
			code = errors.CodeInternal
		}
	}

	wrapped := errors.Wrap(err, code, message)
	return errors.WithContext(wrapped, "status", statusCode)
}

// NewNotFoundError creates a not found error with context.
func NewNotFoundError(resourceType, identifier string) error {
	err := errors.New(
		errors.CodeNotFound,
		fmt.Sprintf("%s not found: %s", resourceType, identifier),
	)
	err = errors.WithContext(err, "resource_type", resourceType)
	err = errors.WithContext(err, "identifier", identifier)
	return err
}

// IsNotFound reports whether err is coded CodeNotFound.
func IsNotFound(err error) bool {
	return errors.GetCode(err) == errors.CodeNotFound
}
