package library

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveIdentity(t *testing.T) {
	root := "/media"
	r := &Resolver{MediaRoot: root, SpeakerMapsRoot: "/data/speaker_maps"}

	tests := []struct {
		name     string
		path     string
		identity string
		showDir  string
	}{
		{
			name:     "show with season directory",
			path:     "/media/Breaking Bad/Season 01/s01e01.mkv",
			identity: "Breaking Bad",
			showDir:  "/media/Breaking Bad",
		},
		{
			name:     "deeply nested uses grandparent",
			path:     "/media/Anime/Cowboy Bebop/Session 1/ep01.mkv",
			identity: "Cowboy Bebop",
			showDir:  "/media/Anime/Cowboy Bebop",
		},
		{
			name:     "movie directly under its directory",
			path:     "/media/Heat/heat.mkv",
			identity: "Heat",
			showDir:  "/media/Heat",
		},
		{
			name:     "file outside the root falls back to parent",
			path:     "/downloads/Show/Season 01/ep.mkv",
			identity: "Season 01",
			showDir:  "/downloads/Show/Season 01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.path)
			if err != nil {
				t.Fatalf("Resolve(%q): %v", tt.path, err)
			}
			if got.Identity != tt.identity {
				t.Errorf("identity = %q, want %q", got.Identity, tt.identity)
			}
			if got.ShowDir != tt.showDir {
				t.Errorf("show dir = %q, want %q", got.ShowDir, tt.showDir)
			}
		})
	}
}

func TestResolvePaths(t *testing.T) {
	r := &Resolver{MediaRoot: "/media", SpeakerMapsRoot: "/data/speaker_maps"}

	got, err := r.Resolve("/media/Breaking Bad/Season 01/s01e01.mkv")
	if err != nil {
		t.Fatal(err)
	}

	wantKeyterms := "/media/Breaking Bad/Transcripts/Keyterms/Breaking Bad_keyterms.csv"
	if got.KeytermsPath != wantKeyterms {
		t.Errorf("keyterms path = %q, want %q", got.KeytermsPath, wantKeyterms)
	}
	wantSpeakers := "/data/speaker_maps/Breaking Bad/speakers.csv"
	if got.SpeakerMapPath != wantSpeakers {
		t.Errorf("speaker map path = %q, want %q", got.SpeakerMapPath, wantSpeakers)
	}
	if want := "/media/Breaking Bad/Season 01/s01e01.srt"; got.OutputPath != want {
		t.Errorf("output path = %q, want %q", got.OutputPath, want)
	}
	if want := "/media/Breaking Bad/Season 01/s01e01.transcript.speakers.txt"; got.TranscriptPath != want {
		t.Errorf("transcript path = %q, want %q", got.TranscriptPath, want)
	}
}

func TestResolveErrors(t *testing.T) {
	r := &Resolver{MediaRoot: "/media"}
	if _, err := r.Resolve(""); err == nil {
		t.Error("expected error for empty path")
	}
	if _, err := r.Resolve("/file.mkv"); err == nil {
		t.Error("expected error for file at filesystem root")
	}
}

func TestIdentityPaths(t *testing.T) {
	root := t.TempDir()
	maps := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "Anime", "Cowboy Bebop"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "Heat"), 0755); err != nil {
		t.Fatal(err)
	}
	r := &Resolver{MediaRoot: root, SpeakerMapsRoot: maps}

	// First-level show directory
	kt, sp, err := r.IdentityPaths("Heat")
	if err != nil {
		t.Fatalf("IdentityPaths(Heat): %v", err)
	}
	if want := filepath.Join(root, "Heat", "Transcripts", "Keyterms", "Heat_keyterms.csv"); kt != want {
		t.Errorf("keyterms path = %q, want %q", kt, want)
	}
	if want := filepath.Join(maps, "Heat", "speakers.csv"); sp != want {
		t.Errorf("speaker map path = %q, want %q", sp, want)
	}

	// Second-level show directory
	kt, _, err = r.IdentityPaths("Cowboy Bebop")
	if err != nil {
		t.Fatalf("IdentityPaths(Cowboy Bebop): %v", err)
	}
	if want := filepath.Join(root, "Anime", "Cowboy Bebop", "Transcripts", "Keyterms", "Cowboy Bebop_keyterms.csv"); kt != want {
		t.Errorf("keyterms path = %q, want %q", kt, want)
	}

	if _, _, err := r.IdentityPaths("No Such Show"); err == nil {
		t.Error("expected error for unknown identity")
	}
	for _, bad := range []string{"", "..", "a/b", "../etc"} {
		if _, _, err := r.IdentityPaths(bad); err == nil {
			t.Errorf("expected error for identity %q", bad)
		}
	}
}

func TestIsVideo(t *testing.T) {
	for _, p := range []string{"a.mkv", "b.MP4", "c.avi"} {
		if !IsVideo(p) {
			t.Errorf("IsVideo(%q) = false, want true", p)
		}
	}
	for _, p := range []string{"a.srt", "b.txt", "c.mp3", "noext"} {
		if IsVideo(p) {
			t.Errorf("IsVideo(%q) = true, want false", p)
		}
	}
}

func TestWithinRoot(t *testing.T) {
	if !WithinRoot("/media", "/media/Show/ep.mkv") {
		t.Error("path under root rejected")
	}
	if !WithinRoot("/media", "/media") {
		t.Error("root itself rejected")
	}
	if WithinRoot("/media", "/media/../etc/passwd") {
		t.Error("traversal accepted")
	}
	if WithinRoot("/media", "/mediafiles/ep.mkv") {
		t.Error("sibling prefix accepted")
	}
}
