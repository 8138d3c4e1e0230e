package script

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidDuration indicates a non-positive total duration or a zero
// segment count passed to the timeline allocator.
var ErrInvalidDuration = errors.New("total duration must be positive and segment count non-zero")

// DefaultWordsPerMinute is the speaking rate used to derive a total duration
// from a word count when the caller does not supply one.
const DefaultWordsPerMinute = 150

// Interval is a [start, end) time span in seconds assigned to one segment or scene.
type Interval struct {
	Start float64
	End   float64
}

// Allocate partitions totalDuration into n equal-width, contiguous intervals.
//
// Interval boundaries are computed multiplicatively from zero rather than by
// repeated addition, so floating error cannot drift past totalDuration across
// many segments.
func Allocate(totalDuration float64, n int) ([]Interval, error) {
	if totalDuration <= 0 || n <= 0 {
		return nil, fmt.Errorf("%w: duration=%f, segments=%d", ErrInvalidDuration, totalDuration, n)
	}

	per := totalDuration / float64(n)

	intervals := make([]Interval, n)
	for i := range intervals {
		intervals[i] = Interval{
			Start: float64(i) * per,
			End:   float64(i+1) * per,
		}
	}

	return intervals, nil
}

// FormatTimestamp renders seconds as a zero-padded HH:MM:SS.mmm timestamp.
// The format is a stable contract with downstream track renderers.
func FormatTimestamp(seconds float64) string {
	millis := int64(math.Round(seconds * 1000))
	if millis < 0 {
		millis = 0
	}

	hours := millis / 3600000
	minutes := (millis % 3600000) / 60000
	secs := (millis % 60000) / 1000
	fraction := millis % 1000

	return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, minutes, secs, fraction)
}

// EstimateDuration derives a total speaking duration in seconds from the word
// count of text at the given speaking rate. A non-positive rate falls back to
// DefaultWordsPerMinute.
func EstimateDuration(text string, wordsPerMinute int) float64 {
	if wordsPerMinute <= 0 {
		wordsPerMinute = DefaultWordsPerMinute
	}

	words := len(strings.Fields(text))

	return float64(words) / float64(wordsPerMinute) * 60
}

// WordCount returns the number of whitespace-separated words in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
