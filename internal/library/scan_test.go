package library

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestScanFindsUncaptionedVideos(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Show", "Season 01", "ep1.mkv"))
	writeFile(t, filepath.Join(root, "Show", "Season 01", "ep2.mkv"))
	writeFile(t, filepath.Join(root, "Show", "Season 01", "ep2.srt")) // already captioned
	writeFile(t, filepath.Join(root, "Show", "notes.txt"))            // not a video
	writeFile(t, filepath.Join(root, ".hidden", "ep3.mkv"))           // hidden dir

	results, err := Scan(root, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1: %+v", len(results), results)
	}
	if want := filepath.Join(root, "Show", "Season 01", "ep1.mkv"); results[0].Path != want {
		t.Errorf("path = %q, want %q", results[0].Path, want)
	}
}

func TestScanRespectsLimit(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a.mkv", "b.mkv", "c.mkv", "d.mkv"} {
		writeFile(t, filepath.Join(root, "Show", name))
	}

	results, err := Scan(root, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
}
