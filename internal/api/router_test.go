package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/captionworks/backend/internal/auth"
	"github.com/captionworks/backend/internal/batch"
	"github.com/captionworks/backend/internal/config"
	"github.com/captionworks/backend/internal/db"
	"github.com/captionworks/backend/internal/deepgram"
	"github.com/captionworks/backend/internal/library"
	"github.com/captionworks/backend/internal/metadata"
)

type stubTranscriber struct{}

func (stubTranscriber) Transcribe(ctx context.Context, audioPath string, opts deepgram.Options) (*deepgram.Result, error) {
	s := 0
	return &deepgram.Result{
		BilledSeconds: 60,
		Words: []deepgram.Word{
			{Word: "hello", PunctuatedWord: "Hello.", Start: 0.1, End: 0.5, Speaker: &s},
		},
	}, nil
}

type serverEnv struct {
	ts        *httptest.Server
	jwt       *auth.JWTService
	mediaRoot string
}

func newTestServer(t *testing.T) *serverEnv {
	t.Helper()
	mediaRoot := t.TempDir()

	database, err := db.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })
	if err := database.EnsureAdmin("admin", "hunter2"); err != nil {
		t.Fatal(err)
	}

	jwtService := auth.NewJWTService("test-secret")
	cfg := &config.Config{
		MediaPath:   mediaRoot,
		SpeakerMaps: t.TempDir(),
		CORSOrigins: []string{"*"},
	}
	resolver := &library.Resolver{MediaRoot: mediaRoot, SpeakerMapsRoot: cfg.SpeakerMaps}
	meta := metadata.NewStore()

	coord := batch.NewCoordinator(batch.Config{
		Workers:         1,
		CallTimeout:     time.Minute,
		Model:           "nova-3",
		Language:        "en",
		ProfanityFilter: "off",
	}, batch.Deps{
		Resolver:    resolver,
		Metadata:    meta,
		Transcriber: stubTranscriber{},
		Extractor: func(ctx context.Context, mediaPath string) (string, error) {
			f, err := os.CreateTemp(t.TempDir(), "audio-*.mp3")
			if err != nil {
				return "", err
			}
			f.Close()
			return f.Name(), nil
		},
		Prober: func(ctx context.Context, mediaPath string) (float64, error) {
			return 60, nil
		},
		Store:    database,
		Settings: database,
	})
	t.Cleanup(coord.Stop)

	ts := httptest.NewServer(NewRouter(database, jwtService, cfg, coord, resolver, meta))
	t.Cleanup(ts.Close)

	return &serverEnv{ts: ts, jwt: jwtService, mediaRoot: mediaRoot}
}

func (e *serverEnv) do(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func (e *serverEnv) login(t *testing.T) string {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "admin",
		"password": "hunter2",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Token == "" {
		t.Fatal("login returned empty token")
	}
	return out.Token
}

func (e *serverEnv) addEpisode(t *testing.T, rel string) string {
	t.Helper()
	path := filepath.Join(e.mediaRoot, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("video"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	env := newTestServer(t)

	paths := []string{"/api/scan", "/api/batches", "/api/keyterms/Show", "/api/settings", "/api/auth/me"}
	for _, p := range paths {
		resp := env.do(t, http.MethodGet, p, "", nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("GET %s without token: status = %d, want 401", p, resp.StatusCode)
		}

		resp = env.do(t, http.MethodGet, p, "not-a-jwt", nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("GET %s with bad token: status = %d, want 401", p, resp.StatusCode)
		}
	}
}

func TestLoginAndMe(t *testing.T) {
	env := newTestServer(t)

	resp := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "admin",
		"password": "wrong",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad password: status = %d, want 401", resp.StatusCode)
	}

	token := env.login(t)

	resp = env.do(t, http.MethodGet, "/api/auth/me", token, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status = %d", resp.StatusCode)
	}
	var me struct {
		Username string `json:"username"`
		Role     string `json:"role"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		t.Fatal(err)
	}
	if me.Username != "admin" || me.Role != "admin" {
		t.Errorf("me = %+v, want admin/admin", me)
	}
}

func TestSettingsRequireAdminRole(t *testing.T) {
	env := newTestServer(t)

	viewerToken, err := env.jwt.GenerateToken(42, "viewer", "viewer")
	if err != nil {
		t.Fatal(err)
	}
	resp := env.do(t, http.MethodGet, "/api/settings", viewerToken, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("viewer settings status = %d, want 403", resp.StatusCode)
	}

	resp = env.do(t, http.MethodGet, "/api/settings", env.login(t), nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("admin settings status = %d, want 200", resp.StatusCode)
	}
}

func TestSubmitValidation(t *testing.T) {
	env := newTestServer(t)
	token := env.login(t)

	tests := []struct {
		name    string
		paths   []string
		wantErr string
	}{
		{"empty batch", nil, "no paths"},
		{"path outside library", []string{"/etc/passwd.mkv"}, "outside media library"},
		{"traversal outside library", []string{filepath.Join(env.mediaRoot, "..", "escape.mkv")}, "outside media library"},
		{"non-video file", []string{filepath.Join(env.mediaRoot, "notes.txt")}, "not a video"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/api/batches", token, map[string]interface{}{"paths": tt.paths})
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
			body, _ := io.ReadAll(resp.Body)
			if !strings.Contains(string(body), tt.wantErr) {
				t.Errorf("body = %s, want %q", body, tt.wantErr)
			}
		})
	}
}

func TestSubmitAndBatchLifecycle(t *testing.T) {
	env := newTestServer(t)
	token := env.login(t)
	ep := env.addEpisode(t, "Show/Season 01/ep1.mkv")

	resp := env.do(t, http.MethodPost, "/api/batches", token, map[string]interface{}{"paths": []string{ep}})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("submit status = %d, want 202", resp.StatusCode)
	}
	var submitted struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&submitted); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if submitted.ID == "" {
		t.Fatal("submit returned empty id")
	}

	var snap batch.Snapshot
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp := env.do(t, http.MethodGet, "/api/batches/"+submitted.ID, token, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("get status = %d", resp.StatusCode)
		}
		if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if snap.Done {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("batch did not finish: %+v", snap)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if snap.Counts.Completed != 1 {
		t.Fatalf("counts = %+v, want 1 completed", snap.Counts)
	}
	if _, err := os.Stat(filepath.Join(env.mediaRoot, "Show/Season 01/ep1.srt")); err != nil {
		t.Errorf("captions not written: %v", err)
	}

	// A finished batch's event stream opens with a snapshot and closes.
	resp = env.do(t, http.MethodGet, "/api/batches/"+submitted.ID+"/events", token, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("events status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(body), "event: snapshot\ndata: {") {
		t.Errorf("stream must open with the snapshot event, got:\n%s", body)
	}
	if !strings.Contains(string(body), `"done":true`) {
		t.Errorf("snapshot not marked done:\n%s", body)
	}
}

func TestEventsUnknownBatch(t *testing.T) {
	env := newTestServer(t)
	resp := env.do(t, http.MethodGet, "/api/batches/nope/events", env.login(t), nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestKeytermsRoundTrip(t *testing.T) {
	env := newTestServer(t)
	token := env.login(t)
	env.addEpisode(t, "Show/Season 01/ep1.mkv")

	resp := env.do(t, http.MethodPut, "/api/keyterms/Show", token, map[string]interface{}{
		"keyterms": []string{"Heisenberg", "Los Pollos"},
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put status = %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodGet, "/api/keyterms/Show", token, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	var out struct {
		Identity string   `json:"identity"`
		Keyterms []string `json:"keyterms"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Identity != "Show" || len(out.Keyterms) != 2 {
		t.Errorf("round trip = %+v", out)
	}
}
