// Package script_test tests the narration segmenter.
package script_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newsreel/script-service/internal/script"
)

func TestSplitSegments_EmptyInput(t *testing.T) {
	t.Parallel()

	_, err := script.SplitSegments("", func(string) bool { return true })
	require.ErrorIs(t, err, script.ErrEmptyInput)

	_, err = script.SplitSegments("   \n\t  ", func(string) bool { return true })
	require.ErrorIs(t, err, script.ErrEmptyInput)
}

func TestSplitSegments_PreservesWordSequence(t *testing.T) {
	t.Parallel()

	text := "Breaking news today. Markets fell sharply! Analysts expect a major correction. Stay tuned."

	segments, err := script.SplitByWidth(text, 20, 1)
	require.NoError(t, err)

	var joined []string
	for _, segment := range segments {
		joined = append(joined, strings.Fields(segment.Text)...)
	}

	assert.Equal(t, strings.Fields(text), joined)
}

func TestSplitByWidth_RespectsBudget(t *testing.T) {
	t.Parallel()

	text := "The quick brown fox jumps over the lazy dog near the quiet river bank at dawn"

	segments, err := script.SplitByWidth(text, 15, 2)
	require.NoError(t, err)
	require.NotEmpty(t, segments)

	for _, segment := range segments {
		assert.LessOrEqual(t, utf8.RuneCountInString(segment.Text), 30,
			"segment %q exceeds the character budget", segment.Text)
		assert.NotEmpty(t, segment.Text)
	}
}

func TestSplitSegments_OversizedWordEmittedAlone(t *testing.T) {
	t.Parallel()

	text := "short pneumonoultramicroscopicsilicovolcanoconiosis short"

	segments, err := script.SplitByWidth(text, 10, 1)
	require.NoError(t, err)
	require.Len(t, segments, 3)

	assert.Equal(t, "short", segments[0].Text)
	assert.Equal(t, "pneumonoultramicroscopicsilicovolcanoconiosis", segments[1].Text)
	assert.Equal(t, "short", segments[2].Text)
}

func TestSplitSegments_OrdinalsAreSequential(t *testing.T) {
	t.Parallel()

	text := "One two three four five six seven eight nine ten eleven twelve"

	segments, err := script.SplitByWidth(text, 10, 1)
	require.NoError(t, err)
	require.Greater(t, len(segments), 1)

	for i, segment := range segments {
		assert.Equal(t, i, segment.Ordinal)
	}
}

func TestSplitSegments_AccumulatesAcrossSentences(t *testing.T) {
	t.Parallel()

	// Two short sentences fit a single segment together.
	segments, err := script.SplitByWidth("Hi there. Bye now.", 35, 2)
	require.NoError(t, err)
	require.Len(t, segments, 1)

	assert.Equal(t, "Hi there. Bye now.", segments[0].Text)
}
