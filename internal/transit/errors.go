package transit

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

var (
	ErrEmptyStopCode     = errors.New("empty bus stop code")
	ErrInvalidStopCode   = errors.New("bus stop code must be 5 digits")
	ErrNoServices        = errors.New("no bus services found for this stop")
	ErrSchemaMismatch    = errors.New("response does not match the expected schema")
	ErrMissingCredential = errors.New("API key not configured")

	// ErrUpstream matches every *UpstreamError through errors.Is.
	ErrUpstream = errors.New("upstream error")
)

// UpstreamError is a non-2xx answer from the proxy or the upstream API behind it.
type UpstreamError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

func (e *UpstreamError) Unwrap() error { return e.Err }

// IsCredentialFailure reports whether err means the API key is missing or was rejected.
func IsCredentialFailure(err error) bool {
	if errors.Is(err, ErrMissingCredential) {
		return true
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.StatusCode == http.StatusUnauthorized || ue.StatusCode == http.StatusForbidden
	}
	return false
}

func newUpstreamError(status int, message string) *UpstreamError {
	ue := &UpstreamError{StatusCode: status, Message: message}
	if strings.Contains(message, "LTA_API_KEY not found") {
		ue.Err = ErrMissingCredential
	}
	return ue
}

var stopCodePattern = regexp.MustCompile(`^\d{5}$`)

// NormalizeStopCode trims code and checks it is exactly five digits.
func NormalizeStopCode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", ErrEmptyStopCode
	}
	if !stopCodePattern.MatchString(code) {
		return "", ErrInvalidStopCode
	}
	return code, nil
}
