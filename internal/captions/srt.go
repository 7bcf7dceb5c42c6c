// Package captions renders recognized words into SRT subtitle files and
// speaker-labeled transcripts.
package captions

import (
	"fmt"
	"strings"

	"github.com/captionworks/backend/internal/deepgram"
)

const (
	maxCueChars    = 84 // two 42-char subtitle lines
	maxCueDuration = 5.0
	cueGapSplit    = 1.5 // silence that forces a new cue
)

// RenderSRT formats words into numbered SRT cues. Words are grouped until a cue
// fills up, runs too long, or speech pauses.
func RenderSRT(words []deepgram.Word) string {
	if len(words) == 0 {
		return ""
	}

	var b strings.Builder
	cueIndex := 1
	var cueWords []deepgram.Word
	var cueLen int

	flush := func() {
		if len(cueWords) == 0 {
			return
		}
		start := cueWords[0].Start
		end := cueWords[len(cueWords)-1].End
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			cueIndex, srtTimestamp(start), srtTimestamp(end), cueText(cueWords))
		cueIndex++
		cueWords = cueWords[:0]
		cueLen = 0
	}

	for _, w := range words {
		if len(cueWords) > 0 {
			gap := w.Start - cueWords[len(cueWords)-1].End
			dur := w.End - cueWords[0].Start
			if gap > cueGapSplit || dur > maxCueDuration || cueLen+len(displayWord(w))+1 > maxCueChars {
				flush()
			}
		}
		cueWords = append(cueWords, w)
		cueLen += len(displayWord(w)) + 1
	}
	flush()

	return b.String()
}

func cueText(words []deepgram.Word) string {
	parts := make([]string, 0, len(words))
	for _, w := range words {
		parts = append(parts, displayWord(w))
	}
	text := strings.Join(parts, " ")
	// Break long cues onto two lines at the nearest space to the middle.
	if len(text) > maxCueChars/2 {
		mid := len(text) / 2
		if idx := strings.LastIndex(text[:mid+1], " "); idx > 0 {
			text = text[:idx] + "\n" + text[idx+1:]
		}
	}
	return text
}

func displayWord(w deepgram.Word) string {
	if w.PunctuatedWord != "" {
		return w.PunctuatedWord
	}
	return w.Word
}

// srtTimestamp formats seconds as HH:MM:SS,mmm.
func srtTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	ms := int(seconds*1000 + 0.5)
	h := ms / 3600000
	ms %= 3600000
	m := ms / 60000
	ms %= 60000
	s := ms / 1000
	ms %= 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// FilterProfanity drops words the provider masked (all-asterisk tokens) when
// the profanity mode is "remove"; "tag" keeps the masked tokens visible.
func FilterProfanity(words []deepgram.Word, mode string) []deepgram.Word {
	if mode != "remove" {
		return words
	}
	filtered := make([]deepgram.Word, 0, len(words))
	for _, w := range words {
		if isMasked(displayWord(w)) {
			continue
		}
		filtered = append(filtered, w)
	}
	return filtered
}

func isMasked(s string) bool {
	s = strings.Trim(s, ".,!?")
	if s == "" {
		return false
	}
	for _, r := range s {
		if r != '*' {
			return false
		}
	}
	return true
}
