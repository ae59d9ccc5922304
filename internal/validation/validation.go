package validation

import (
	"fmt"
	"net/http"
	"strings"
	"unicode"

	"leadinbox/internal/constants"
	"leadinbox/internal/errors"
)

// ValidateToken checks the shape of a webhook token without consulting the
// registry: URL-safe base64 characters only, sane length. Shape failures
// are reported as unauthorized so the response does not reveal whether the
// token was close to a real one.
func ValidateToken(token string) error {
	if token == "" || len(token) > 64 {
		return errors.New(errors.ErrCodeUnauthorized, "unknown token")
	}
	for _, char := range token {
		if !unicode.IsLetter(char) && !unicode.IsDigit(char) && char != '-' && char != '_' {
			return errors.New(errors.ErrCodeUnauthorized, "unknown token")
		}
	}
	return nil
}

// ValidateSearchQuery rejects empty or oversized search input. An empty
// substring would match every row, which is an accidental full-table dump.
func ValidateSearchQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return errors.New(errors.ErrCodeInvalidQuery, "search substring cannot be empty")
	}
	if len(query) > constants.MaxFindQueryLen {
		return errors.New(errors.ErrCodeInvalidQuery,
			fmt.Sprintf("search substring too long (max %d characters)", constants.MaxFindQueryLen))
	}
	return nil
}

// ClampLimit bounds a caller-supplied result count to [1, max], with def
// for non-positive input.
func ClampLimit(n, def, max int) int {
	if n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// ValidateHTTPRequestSize validates incoming HTTP request size.
func ValidateHTTPRequestSize(r *http.Request, maxSizeBytes int64) error {
	if r.ContentLength < 0 {
		return errors.New(errors.ErrCodeInvalidPayload, "invalid content length")
	}
	if r.ContentLength > maxSizeBytes {
		return errors.New(errors.ErrCodeInvalidPayload,
			fmt.Sprintf("request too large: %d bytes (max %d bytes)", r.ContentLength, maxSizeBytes))
	}
	return nil
}
