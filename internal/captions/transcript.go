package captions

import (
	"fmt"
	"strings"
	"time"

	"github.com/captionworks/backend/internal/deepgram"
)

// RenderTranscript produces a speaker-labeled transcript from diarized words.
// Consecutive words from one speaker become one paragraph:
//
//	[00:01:23] Walter: I am the one who knocks.
//
// Speaker indexes missing from the map fall back to "Speaker N". Words without
// a speaker index are attributed to speaker 0.
func RenderTranscript(words []deepgram.Word, speakerMap map[int]string, now time.Time) string {
	var b strings.Builder
	b.WriteString("# Speaker-Labeled Transcript\n")
	fmt.Fprintf(&b, "# Generated: %s\n", now.Format("2006-01-02 15:04:05"))
	if len(speakerMap) > 0 {
		fmt.Fprintf(&b, "# Speaker mappings applied: %d speakers\n", len(speakerMap))
	}
	b.WriteString("\n")

	currentSpeaker := -1
	var currentText []string
	var currentStart float64

	flush := func() {
		if len(currentText) == 0 {
			return
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n",
			transcriptTimestamp(currentStart), speakerLabel(currentSpeaker, speakerMap),
			strings.Join(currentText, " "))
		currentText = currentText[:0]
	}

	for _, w := range words {
		speaker := 0
		if w.Speaker != nil {
			speaker = *w.Speaker
		}
		if speaker != currentSpeaker {
			flush()
			currentSpeaker = speaker
			currentStart = w.Start
		}
		currentText = append(currentText, displayWord(w))
	}
	flush()

	return b.String()
}

func speakerLabel(id int, speakerMap map[int]string) string {
	if name, ok := speakerMap[id]; ok {
		return name
	}
	return fmt.Sprintf("Speaker %d", id)
}

// transcriptTimestamp formats seconds as HH:MM:SS.
func transcriptTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
