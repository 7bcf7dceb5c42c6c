// Package library maps media file paths onto the directory conventions used for
// caption output, keyterm lists and speaker maps.
package library

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var videoExtensions = map[string]bool{
	".mkv": true, ".mp4": true, ".avi": true, ".mov": true,
	".m4v": true, ".wmv": true, ".flv": true,
}

func IsVideo(path string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(path))]
}

// Resolved holds every conventional path derived from one media file.
type Resolved struct {
	Identity       string // show or movie grouping key
	ShowDir        string // directory owning Transcripts/ for this identity
	KeytermsPath   string // <ShowDir>/Transcripts/Keyterms/<Identity>_keyterms.csv
	SpeakerMapPath string // <SpeakerMapsRoot>/<Identity>/speakers.csv
	TranscriptsDir string // <ShowDir>/Transcripts
	OutputPath     string // sibling .srt
	TranscriptPath string // sibling .transcript.speakers.txt (diarized mode)
}

// Resolver derives identities and metadata paths. The depth heuristic is
// convention driven: libraries laid out as root/Show/Season XX/episode.mkv get
// the show directory as identity, anything shallower falls back to the parent
// directory (movie layout). Both roots are policy, not hard-coded.
type Resolver struct {
	MediaRoot       string
	SpeakerMapsRoot string
}

// Resolve is deterministic and touches no files.
func (r *Resolver) Resolve(path string) (Resolved, error) {
	if path == "" {
		return Resolved{}, fmt.Errorf("empty path")
	}
	path = filepath.Clean(path)

	showDir := filepath.Dir(path)
	if depth := r.depthUnderRoot(path); depth >= 3 {
		// root/.../Show/Anything/file: identity is the grandparent.
		showDir = filepath.Dir(filepath.Dir(path))
	}
	identity := filepath.Base(showDir)
	if identity == "." || identity == string(filepath.Separator) || identity == "/" {
		return Resolved{}, fmt.Errorf("cannot derive identity from %q", path)
	}

	transcripts := filepath.Join(showDir, "Transcripts")
	base := strings.TrimSuffix(path, filepath.Ext(path))

	return Resolved{
		Identity:       identity,
		ShowDir:        showDir,
		KeytermsPath:   filepath.Join(transcripts, "Keyterms", identity+"_keyterms.csv"),
		SpeakerMapPath: filepath.Join(r.SpeakerMapsRoot, identity, "speakers.csv"),
		TranscriptsDir: transcripts,
		OutputPath:     base + ".srt",
		TranscriptPath: base + ".transcript.speakers.txt",
	}, nil
}

// IdentityPaths locates the keyterms and speaker map files for an identity
// addressed directly (no media file in hand). The show directory is looked up
// at the first two levels under MediaRoot.
func (r *Resolver) IdentityPaths(identity string) (keytermsPath, speakerMapPath string, err error) {
	if identity == "" || identity != filepath.Base(identity) || identity == "." || identity == ".." {
		return "", "", fmt.Errorf("invalid identity %q", identity)
	}
	showDir, err := r.findShowDir(identity)
	if err != nil {
		return "", "", err
	}
	keytermsPath = filepath.Join(showDir, "Transcripts", "Keyterms", identity+"_keyterms.csv")
	speakerMapPath = filepath.Join(r.SpeakerMapsRoot, identity, "speakers.csv")
	return keytermsPath, speakerMapPath, nil
}

func (r *Resolver) findShowDir(identity string) (string, error) {
	direct := filepath.Join(r.MediaRoot, identity)
	if info, err := os.Stat(direct); err == nil && info.IsDir() {
		return direct, nil
	}
	entries, err := os.ReadDir(r.MediaRoot)
	if err != nil {
		return "", fmt.Errorf("read media root: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		nested := filepath.Join(r.MediaRoot, e.Name(), identity)
		if info, err := os.Stat(nested); err == nil && info.IsDir() {
			return nested, nil
		}
	}
	return "", fmt.Errorf("unknown identity %q", identity)
}

// depthUnderRoot counts path elements below MediaRoot, or 0 when the file is
// outside the root (or no root is configured).
func (r *Resolver) depthUnderRoot(path string) int {
	if r.MediaRoot == "" {
		return 0
	}
	rel, err := filepath.Rel(filepath.Clean(r.MediaRoot), path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return 0
	}
	return len(strings.Split(filepath.ToSlash(rel), "/"))
}
