package script

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Default wrap constraints for the two track kinds. The constants mirror the
// display geometry of the downstream renderer and are configurable per call.
const (
	DefaultCueLineChars     = 35
	DefaultCueMaxLines      = 2
	DefaultCaptionLineChars = 35
	DefaultCaptionMaxLines  = 2
)

// DefaultEmphasisWords are the trigger words wrapped in emphasis markup on
// the TTS cue track.
var DefaultEmphasisWords = []string{"important", "critical", "significant", "major"}

// CueOptions holds the wrap constraints and prosody triggers for the TTS cue track.
type CueOptions struct {
	LineChars     int
	MaxLines      int
	EmphasisWords []string
}

func (o CueOptions) withDefaults() CueOptions {
	if o.LineChars <= 0 {
		o.LineChars = DefaultCueLineChars
	}

	if o.MaxLines <= 0 {
		o.MaxLines = DefaultCueMaxLines
	}

	if o.EmphasisWords == nil {
		o.EmphasisWords = DefaultEmphasisWords
	}

	return o
}

// CaptionOptions holds the wrap constraints for the captions track.
//
// SegmentChars is the character budget one caption cue accumulates before the
// segmenter closes it. It defaults to LineChars, so cues stay short enough to
// read at a glance; a larger budget makes the MaxLines truncation policy
// reachable.
type CaptionOptions struct {
	LineChars    int
	MaxLines     int
	SegmentChars int
}

func (o CaptionOptions) withDefaults() CaptionOptions {
	if o.LineChars <= 0 {
		o.LineChars = DefaultCaptionLineChars
	}

	if o.MaxLines <= 0 {
		o.MaxLines = DefaultCaptionMaxLines
	}

	if o.SegmentChars <= 0 {
		o.SegmentChars = o.LineChars
	}

	return o
}

// BuildCueTrack renders the TTS cue track for the narration text across
// totalDuration seconds.
//
// The first segment is wrapped in a slow-rate markup span, and every
// occurrence of an emphasis trigger word (case-insensitive, whole-word) is
// wrapped in an emphasis span. Markup is injected after the intervals are
// allocated, so it never shifts timing.
func BuildCueTrack(text string, totalDuration float64, opts CueOptions) (string, error) {
	opts = opts.withDefaults()

	segments, err := SplitByWidth(text, opts.LineChars, opts.MaxLines)
	if err != nil {
		return "", err
	}

	intervals, err := Allocate(totalDuration, len(segments))
	if err != nil {
		return "", err
	}

	emphasis := emphasisPattern(opts.EmphasisWords)

	lines := []string{
		"WEBVTT\n",
		"NOTE",
		"TTS instructions for voice synthesis",
		"Duration marks guide audio generation timing\n",
	}

	for i, segment := range segments {
		cueText := segment.Text
		if i == 0 {
			cueText = "<rate slow>" + cueText + "</rate>"
		}

		if emphasis != nil {
			cueText = emphasis.ReplaceAllString(cueText, "<emphasis strong>$1</emphasis>")
		}

		lines = append(lines,
			FormatTimestamp(intervals[i].Start)+" --> "+FormatTimestamp(intervals[i].End),
			cueText+"\n",
		)
	}

	return strings.Join(lines, "\n"), nil
}

// BuildCaptionTrack renders the human-readable captions track for the
// narration text across totalDuration seconds.
//
// Each cue is re-wrapped into display lines no wider than LineChars, and at
// most MaxLines lines are kept per cue. Wrapped lines beyond that cap are
// dropped.
func BuildCaptionTrack(text string, totalDuration float64, opts CaptionOptions) (string, error) {
	opts = opts.withDefaults()

	segments, err := SplitByWidth(text, opts.SegmentChars, 1)
	if err != nil {
		return "", err
	}

	intervals, err := Allocate(totalDuration, len(segments))
	if err != nil {
		return "", err
	}

	lines := []string{"WEBVTT\n"}

	for i, segment := range segments {
		wrapped := wrapLines(segment.Text, opts.LineChars)
		if len(wrapped) > opts.MaxLines {
			wrapped = wrapped[:opts.MaxLines]
		}

		lines = append(lines,
			FormatTimestamp(intervals[i].Start)+" --> "+FormatTimestamp(intervals[i].End),
			strings.Join(wrapped, "\n")+"\n",
		)
	}

	return strings.Join(lines, "\n"), nil
}

// wrapLines greedily wraps text into lines of at most maxChars runes. A
// single word wider than the limit occupies its own line unbroken.
func wrapLines(text string, maxChars int) []string {
	var lines []string

	var current []string

	for _, word := range strings.Fields(text) {
		candidate := word
		if len(current) > 0 {
			candidate = strings.Join(current, " ") + " " + word
		}

		if utf8.RuneCountInString(candidate) <= maxChars {
			current = append(current, word)

			continue
		}

		if len(current) == 0 {
			lines = append(lines, word)

			continue
		}

		lines = append(lines, strings.Join(current, " "))
		current = []string{word}
	}

	if len(current) > 0 {
		lines = append(lines, strings.Join(current, " "))
	}

	return lines
}

// emphasisPattern compiles a case-insensitive whole-word matcher for the
// trigger words, or returns nil when the list is empty.
func emphasisPattern(words []string) *regexp.Regexp {
	if len(words) == 0 {
		return nil
	}

	escaped := make([]string, 0, len(words))
	for _, word := range words {
		escaped = append(escaped, regexp.QuoteMeta(word))
	}

	return regexp.MustCompile(`(?i)\b(` + strings.Join(escaped, "|") + `)\b`)
}
