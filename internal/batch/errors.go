package batch

import (
	"errors"

	"github.com/captionworks/backend/internal/deepgram"
)

// classifyProviderError maps a transcription error onto an ErrorKind. Auth and
// quota rejections additionally short-circuit the rest of the batch; that
// escalation is the caller's job.
func classifyProviderError(err error) ErrorKind {
	switch {
	case errors.Is(err, deepgram.ErrAuth):
		return KindProviderAuth
	case errors.Is(err, deepgram.ErrQuota):
		return KindProviderQuota
	case errors.Is(err, deepgram.ErrNoSpeech):
		return KindNoSpeech
	case deepgram.IsTransient(err):
		return KindProviderTransient
	}
	var reqErr *deepgram.RequestError
	if errors.As(err, &reqErr) {
		return KindInput
	}
	return KindProviderTransient
}
