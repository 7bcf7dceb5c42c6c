package deepgram

import (
	"errors"
	"fmt"
)

// Fatal provider errors. Auth and quota failures also poison every later call
// in a batch, so the coordinator short-circuits on them.
var (
	ErrAuth     = errors.New("deepgram: invalid or missing API key")
	ErrQuota    = errors.New("deepgram: quota or rate limit exceeded")
	ErrNoSpeech = errors.New("deepgram: no words detected in audio")
)

// RequestError covers client-side rejections (bad audio, unsupported format).
// Never retried.
type RequestError struct {
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("deepgram: request rejected (status %d): %s", e.StatusCode, e.Message)
}

// TransientError covers network failures and 5xx responses; worth a bounded
// number of retries.
type TransientError struct {
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("deepgram: transient failure: %v", e.Err)
	}
	return fmt.Sprintf("deepgram: transient failure (status %d)", e.StatusCode)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// classifyStatus maps an HTTP status to the error taxonomy. The response body
// is included for operator-facing messages.
func classifyStatus(status int, body string) error {
	switch {
	case status == 401 || status == 403:
		return ErrAuth
	case status == 429:
		return ErrQuota
	case status >= 500:
		return &TransientError{StatusCode: status}
	default:
		return &RequestError{StatusCode: status, Message: body}
	}
}
