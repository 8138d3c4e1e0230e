package script

import (
	"regexp"
	"strings"
)

// markupPattern matches inline prosody markup spans injected by the cue builder.
var markupPattern = regexp.MustCompile(`<[^>]+>`)

// Cue is one timed block parsed back out of a serialized track.
type Cue struct {
	Timing string
	Text   string
}

// ParseTrack reads a serialized timed-text track back into its cues. Blocks
// with no text lines are skipped.
func ParseTrack(content string) []Cue {
	var cues []Cue

	lines := strings.Split(content, "\n")
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if !strings.Contains(line, "-->") {
			continue
		}

		timing := line

		var textLines []string

		for i+1 < len(lines) {
			next := strings.TrimSpace(lines[i+1])
			if next == "" || strings.Contains(next, "-->") {
				break
			}

			textLines = append(textLines, next)
			i++
		}

		if len(textLines) == 0 {
			continue
		}

		cues = append(cues, Cue{
			Timing: timing,
			Text:   strings.Join(textLines, " "),
		})
	}

	return cues
}

// PlainText joins the cue texts into the narration text sent to the
// synthesizer, with all markup spans stripped.
func PlainText(cues []Cue) string {
	texts := make([]string, 0, len(cues))
	for _, cue := range cues {
		texts = append(texts, cue.Text)
	}

	return markupPattern.ReplaceAllString(strings.Join(texts, " "), "")
}
