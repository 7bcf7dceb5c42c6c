// Package deepgram wraps the Deepgram pre-recorded transcription API with the
// error classification and retry policy the batch pipeline depends on.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"
)

const defaultBaseURL = "https://api.deepgram.com/v1/listen"

const (
	maxAttempts    = 3
	initialBackoff = time.Second
)

// Options is the per-call configuration bag. Fixed once a job is dispatched.
type Options struct {
	Model           string   `json:"model"`
	Language        string   `json:"language"`
	Diarize         bool     `json:"diarize"`
	SmartFormat     bool     `json:"smart_format"`
	Punctuate       bool     `json:"punctuate"`
	Utterances      bool     `json:"utterances"`
	ProfanityFilter string   `json:"profanity_filter"` // off, tag or remove
	Keyterms        []string `json:"keyterms,omitempty"`
}

// Word is one recognized word with timing and optional speaker index.
type Word struct {
	Word           string  `json:"word"`
	PunctuatedWord string  `json:"punctuated_word"`
	Start          float64 `json:"start"`
	End            float64 `json:"end"`
	Confidence     float64 `json:"confidence"`
	Speaker        *int    `json:"speaker,omitempty"`
}

// Result carries the recognized words plus the duration the provider billed.
type Result struct {
	Words         []Word
	Transcript    string
	BilledSeconds float64
}

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	backoff    time.Duration
}

func NewClient(apiKey string, callTimeout time.Duration) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: callTimeout},
		backoff:    initialBackoff,
	}
}

// response mirrors the pieces of the Deepgram JSON payload we consume.
type response struct {
	Metadata struct {
		Duration float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
				Words      []Word  `json:"words"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Transcribe uploads the audio file and returns recognized words with the
// billed duration. Only transient failures are retried, with doubling backoff.
// A successful call that recognized zero words returns the Result (the call was
// billed) together with ErrNoSpeech.
func (c *Client) Transcribe(ctx context.Context, audioPath string, opts Options) (*Result, error) {
	if c.apiKey == "" {
		return nil, ErrAuth
	}

	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}

	var lastErr error
	backoff := c.backoff
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := c.transcribeOnce(ctx, audio, opts)
		if err == nil || !IsTransient(err) {
			return result, err
		}
		lastErr = err
		if attempt < maxAttempts {
			log.Printf("[deepgram] attempt %d/%d failed: %v (retrying in %s)", attempt, maxAttempts, err, backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, &TransientError{Err: ctx.Err()}
			}
			backoff *= 2
		}
	}
	return nil, lastErr
}

func (c *Client) transcribeOnce(ctx context.Context, audio []byte, opts Options) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.requestURL(opts), bytes.NewReader(audio))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Content-Type", "audio/mpeg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode, truncate(string(body), 300))
	}

	var parsed response
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	result := &Result{BilledSeconds: parsed.Metadata.Duration}
	if len(parsed.Results.Channels) > 0 && len(parsed.Results.Channels[0].Alternatives) > 0 {
		alt := parsed.Results.Channels[0].Alternatives[0]
		result.Words = alt.Words
		result.Transcript = alt.Transcript
	}
	if len(result.Words) == 0 {
		// The call completed and was billed; the caller keeps the cost.
		return result, ErrNoSpeech
	}
	return result, nil
}

func (c *Client) requestURL(opts Options) string {
	q := url.Values{}
	q.Set("model", opts.Model)
	if opts.Language != "" {
		q.Set("language", opts.Language)
	}
	q.Set("smart_format", strconv.FormatBool(opts.SmartFormat))
	q.Set("punctuate", strconv.FormatBool(opts.Punctuate))
	q.Set("utterances", strconv.FormatBool(opts.Utterances))
	if opts.Diarize {
		q.Set("diarize", "true")
	}
	if opts.ProfanityFilter == "tag" || opts.ProfanityFilter == "remove" {
		q.Set("profanity_filter", "true")
	}
	for _, term := range opts.Keyterms {
		q.Add("keyterm", term)
	}
	return c.baseURL + "?" + q.Encode()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
