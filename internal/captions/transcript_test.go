package captions

import (
	"strings"
	"testing"
	"time"

	"github.com/captionworks/backend/internal/deepgram"
)

func spokenWord(w string, start float64, speaker int) deepgram.Word {
	s := speaker
	return deepgram.Word{Word: w, PunctuatedWord: w, Start: start, End: start + 0.3, Speaker: &s}
}

func TestRenderTranscriptGroupsBySpeaker(t *testing.T) {
	words := []deepgram.Word{
		spokenWord("Say", 1.0, 0),
		spokenWord("my", 1.4, 0),
		spokenWord("name.", 1.8, 0),
		spokenWord("Heisenberg.", 3.0, 1),
		spokenWord("You're", 4.0, 0),
		spokenWord("right.", 4.4, 0),
	}
	speakers := map[int]string{0: "Walter", 1: "Declan"}
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	got := RenderTranscript(words, speakers, now)

	for _, want := range []string{
		"# Generated: 2026-08-30 12:00:00",
		"# Speaker mappings applied: 2 speakers",
		"[00:00:01] Walter: Say my name.",
		"[00:00:03] Declan: Heisenberg.",
		"[00:00:04] Walter: You're right.",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("transcript missing %q:\n%s", want, got)
		}
	}
}

func TestRenderTranscriptFallbackLabels(t *testing.T) {
	words := []deepgram.Word{
		spokenWord("Hello.", 0, 3),
		{Word: "Hi.", PunctuatedWord: "Hi.", Start: 1, End: 1.3}, // no speaker index
	}

	got := RenderTranscript(words, nil, time.Now())
	if !strings.Contains(got, "Speaker 3: Hello.") {
		t.Errorf("unmapped speaker label missing:\n%s", got)
	}
	if !strings.Contains(got, "Speaker 0: Hi.") {
		t.Errorf("nil speaker should default to 0:\n%s", got)
	}
}
