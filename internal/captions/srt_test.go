package captions

import (
	"strings"
	"testing"

	"github.com/captionworks/backend/internal/deepgram"
)

func word(w string, start, end float64) deepgram.Word {
	return deepgram.Word{Word: w, PunctuatedWord: w, Start: start, End: end}
}

func TestRenderSRTBasic(t *testing.T) {
	words := []deepgram.Word{
		word("I", 0.0, 0.2),
		word("am", 0.3, 0.5),
		word("the", 0.6, 0.7),
		word("danger.", 0.8, 1.2),
	}

	got := RenderSRT(words)
	want := "1\n00:00:00,000 --> 00:00:01,200\nI am the danger.\n\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRenderSRTSplitsOnSilence(t *testing.T) {
	words := []deepgram.Word{
		word("Say", 0.0, 0.4),
		word("my", 0.5, 0.7),
		word("name.", 0.8, 1.1),
		// 3s pause forces a new cue
		word("Heisenberg.", 4.2, 5.0),
	}

	got := RenderSRT(words)
	if n := strings.Count(got, " --> "); n != 2 {
		t.Fatalf("got %d cues, want 2:\n%s", n, got)
	}
	if !strings.Contains(got, "2\n00:00:04,200 --> 00:00:05,000\nHeisenberg.") {
		t.Errorf("second cue malformed:\n%s", got)
	}
}

func TestRenderSRTSplitsLongCues(t *testing.T) {
	var words []deepgram.Word
	start := 0.0
	for i := 0; i < 10; i++ {
		words = append(words, word("supercalifragilistic", start, start+0.3))
		start += 0.4
	}

	got := RenderSRT(words)
	if n := strings.Count(got, " --> "); n < 2 {
		t.Errorf("expected the cue to split on length, got %d cues:\n%s", n, got)
	}
}

func TestRenderSRTEmpty(t *testing.T) {
	if got := RenderSRT(nil); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestSRTTimestamp(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00,000"},
		{1.5, "00:00:01,500"},
		{61.042, "00:01:01,042"},
		{3661.999, "01:01:01,999"},
		{-2, "00:00:00,000"},
	}
	for _, tt := range tests {
		if got := srtTimestamp(tt.seconds); got != tt.want {
			t.Errorf("srtTimestamp(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestFilterProfanity(t *testing.T) {
	words := []deepgram.Word{
		word("what", 0, 0.2),
		word("the", 0.2, 0.4),
		{Word: "****", PunctuatedWord: "****?", Start: 0.4, End: 0.8},
	}

	kept := FilterProfanity(words, "remove")
	if len(kept) != 2 {
		t.Errorf("remove mode kept %d words, want 2", len(kept))
	}

	if got := FilterProfanity(words, "tag"); len(got) != 3 {
		t.Errorf("tag mode kept %d words, want 3", len(got))
	}
	if got := FilterProfanity(words, "off"); len(got) != 3 {
		t.Errorf("off mode kept %d words, want 3", len(got))
	}
}
