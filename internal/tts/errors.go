package tts

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Error kinds. A *StatusError unwraps to one of ErrAuth, ErrCatalog or
// ErrSynthesis, so callers can branch with errors.Is and read the status with
// errors.As.
var (
	ErrConfig     = errors.New("speech service credentials are not configured")
	ErrAuth       = errors.New("token request failed")
	ErrCatalog    = errors.New("voices request failed")
	ErrSynthesis  = errors.New("speech synthesis request failed")
	ErrTextEmpty  = errors.New("text cannot be empty")
	ErrEmptyToken = errors.New("token endpoint returned an empty token")
	ErrEmptyAudio = errors.New("received empty audio data")
)

const errFmtStatus = "%v with status %d: %s"

// StatusError is a non-success HTTP response from the speech service.
type StatusError struct {
	Kind       error
	StatusCode int
	Reason     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf(errFmtStatus, e.Kind, e.StatusCode, e.Reason)
}

func (e *StatusError) Unwrap() error {
	return e.Kind
}

// newStatusError builds a StatusError from a response, preferring the reason
// phrase the server sent over the canonical one.
func newStatusError(kind error, resp *http.Response) *StatusError {
	reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if reason == "" {
		reason = http.StatusText(resp.StatusCode)
	}

	return &StatusError{
		Kind:       kind,
		StatusCode: resp.StatusCode,
		Reason:     reason,
	}
}

func isSuccess(statusCode int) bool {
	return statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices
}

// newConfigError names the missing credential fields.
func newConfigError(apiKey, region string) error {
	var missing []string

	if strings.TrimSpace(apiKey) == "" {
		missing = append(missing, "api key")
	}

	if strings.TrimSpace(region) == "" {
		missing = append(missing, "region")
	}

	return fmt.Errorf("%w: missing %s", ErrConfig, strings.Join(missing, " and "))
}
