package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// ExtractionError marks a failed audio extraction; the input file is missing,
// corrupt or in a format ffmpeg cannot decode.
type ExtractionError struct {
	Path   string
	Output string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract audio from %s: %s: %v", e.Path, e.Output, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ExtractAudio pulls the audio track out as 16kHz mono MP3, the format the
// transcription provider ingests. The caller owns the returned temp file and
// must remove it; on error nothing is left behind.
func ExtractAudio(ctx context.Context, videoPath string) (string, error) {
	tmpFile, err := os.CreateTemp("", "caption-audio-*.mp3")
	if err != nil {
		return "", fmt.Errorf("create temp audio file: %w", err)
	}
	tmpFile.Close()

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner",
		"-loglevel", "error",
		"-i", videoPath,
		"-vn",
		"-acodec", "mp3",
		"-ar", "16000",
		"-ac", "1",
		"-y",
		tmpFile.Name(),
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		os.Remove(tmpFile.Name())
		return "", &ExtractionError{Path: videoPath, Output: truncate(string(output), 400), Err: err}
	}
	return tmpFile.Name(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
