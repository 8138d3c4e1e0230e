// Package script implements the narration segmentation and timed-track
// generation for the script service.
//
// The package is pure computation: it turns narration text plus a total
// speaking duration into time-aligned timed-text tracks, and performs no I/O.
package script

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrEmptyInput indicates that there is no narration text to segment.
var ErrEmptyInput = errors.New("narration text cannot be empty")

// Segment is one contiguous run of narration words treated as a single timed unit.
type Segment struct {
	Text    string
	Ordinal int
}

// FitFunc reports whether a candidate segment text still fits within the
// segment boundary. It receives the text a segment would have after adding
// the next word.
type FitFunc func(candidate string) bool

// SplitSegments partitions narration text into ordered segments.
//
// The text is first split into sentences on terminal punctuation so that
// semantic boundaries are respected, then words are accumulated greedily into
// the current segment while fits permits. An overflowing word closes the
// current segment and opens the next one; a single word that exceeds the
// limit on its own is emitted as its own segment and never broken mid-word.
// Segments are never empty.
func SplitSegments(text string, fits FitFunc) ([]Segment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	var segments []Segment

	var current []string

	flush := func() {
		if len(current) == 0 {
			return
		}

		segments = append(segments, Segment{
			Text:    strings.Join(current, " "),
			Ordinal: len(segments),
		})
		current = nil
	}

	for _, sentence := range splitSentences(text) {
		for _, word := range strings.Fields(sentence) {
			candidate := word
			if len(current) > 0 {
				candidate = strings.Join(current, " ") + " " + word
			}

			if fits(candidate) {
				current = append(current, word)

				continue
			}

			if len(current) == 0 {
				// Oversized single word: emit alone rather than break mid-word.
				segments = append(segments, Segment{
					Text:    word,
					Ordinal: len(segments),
				})

				continue
			}

			flush()

			current = []string{word}
		}
	}

	flush()

	return segments, nil
}

// SplitByWidth segments text under an aggregate character budget of
// maxLineChars * maxLines, counted in runes.
func SplitByWidth(text string, maxLineChars, maxLines int) ([]Segment, error) {
	budget := maxLineChars * maxLines

	return SplitSegments(text, func(candidate string) bool {
		return utf8.RuneCountInString(candidate) <= budget
	})
}

// splitSentences splits text on terminal punctuation followed by whitespace,
// keeping the punctuation attached to its sentence.
func splitSentences(text string) []string {
	var sentences []string

	var builder strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		builder.WriteRune(runes[i])

		if !isTerminal(runes[i]) || i+1 >= len(runes) || !unicode.IsSpace(runes[i+1]) {
			continue
		}

		sentences = append(sentences, builder.String())
		builder.Reset()

		for i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			i++
		}
	}

	tail := strings.TrimSpace(builder.String())
	if tail != "" {
		sentences = append(sentences, tail)
	}

	return sentences
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
