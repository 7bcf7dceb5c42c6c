package deepgram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, string) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient("test-key", time.Minute)
	c.baseURL = srv.URL
	c.backoff = time.Millisecond

	audio := filepath.Join(t.TempDir(), "audio.mp3")
	if err := os.WriteFile(audio, []byte("fake audio"), 0644); err != nil {
		t.Fatal(err)
	}
	return c, audio
}

const successBody = `{
	"metadata": {"duration": 120.5},
	"results": {"channels": [{"alternatives": [{
		"transcript": "say my name",
		"words": [
			{"word": "say", "punctuated_word": "Say", "start": 0.1, "end": 0.3},
			{"word": "my", "punctuated_word": "my", "start": 0.4, "end": 0.5},
			{"word": "name", "punctuated_word": "name.", "start": 0.6, "end": 0.9}
		]
	}]}]}
}`

func TestTranscribeSuccess(t *testing.T) {
	c, audio := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token test-key" {
			t.Errorf("auth header = %q", got)
		}
		if got := r.URL.Query().Get("model"); got != "nova-3" {
			t.Errorf("model param = %q", got)
		}
		if got := r.URL.Query()["keyterm"]; len(got) != 2 {
			t.Errorf("keyterm params = %v, want 2", got)
		}
		w.Write([]byte(successBody))
	})

	result, err := c.Transcribe(context.Background(), audio, Options{
		Model:    "nova-3",
		Keyterms: []string{"Heisenberg", "Gus Fring"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Words) != 3 {
		t.Errorf("got %d words, want 3", len(result.Words))
	}
	if result.BilledSeconds != 120.5 {
		t.Errorf("billed = %v, want 120.5", result.BilledSeconds)
	}
}

func TestTranscribeErrorClassification(t *testing.T) {
	tests := []struct {
		status int
		verify func(error) bool
		name   string
	}{
		{401, func(err error) bool { return errors.Is(err, ErrAuth) }, "auth"},
		{403, func(err error) bool { return errors.Is(err, ErrAuth) }, "forbidden"},
		{429, func(err error) bool { return errors.Is(err, ErrQuota) }, "quota"},
		{400, func(err error) bool {
			var reqErr *RequestError
			return errors.As(err, &reqErr) && !IsTransient(err)
		}, "bad request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			c, audio := testClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.WriteHeader(tt.status)
			})

			_, err := c.Transcribe(context.Background(), audio, Options{Model: "nova-3"})
			if err == nil || !tt.verify(err) {
				t.Errorf("status %d: wrong error %v", tt.status, err)
			}
			if calls != 1 {
				t.Errorf("status %d retried %d times, non-transient errors must not retry", tt.status, calls)
			}
		})
	}
}

func TestTranscribeRetriesTransient(t *testing.T) {
	calls := 0
	c, audio := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(successBody))
	})

	result, err := c.Transcribe(context.Background(), audio, Options{Model: "nova-3"})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Errorf("got %d calls, want 3", calls)
	}
	if result.BilledSeconds != 120.5 {
		t.Errorf("billed = %v", result.BilledSeconds)
	}
}

func TestTranscribeRetriesAreBounded(t *testing.T) {
	calls := 0
	c, audio := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.Transcribe(context.Background(), audio, Options{Model: "nova-3"})
	if err == nil || !IsTransient(err) {
		t.Errorf("want transient error, got %v", err)
	}
	if calls != maxAttempts {
		t.Errorf("got %d calls, want %d", calls, maxAttempts)
	}
}

func TestTranscribeNoSpeech(t *testing.T) {
	c, audio := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"metadata": {"duration": 60}, "results": {"channels": [{"alternatives": [{"transcript": "", "words": []}]}]}}`))
	})

	result, err := c.Transcribe(context.Background(), audio, Options{Model: "nova-3"})
	if !errors.Is(err, ErrNoSpeech) {
		t.Fatalf("want ErrNoSpeech, got %v", err)
	}
	// The call was billed; the result must carry the duration.
	if result == nil || result.BilledSeconds != 60 {
		t.Errorf("billed seconds lost on no-speech: %+v", result)
	}
}

func TestTranscribeMissingKey(t *testing.T) {
	c := NewClient("", time.Minute)
	if _, err := c.Transcribe(context.Background(), "irrelevant", Options{}); !errors.Is(err, ErrAuth) {
		t.Errorf("want ErrAuth, got %v", err)
	}
}
