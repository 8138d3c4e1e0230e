// Package events defines the message contracts the script service exchanges
// over NATS.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/newsreel/script-service/internal/core"
	"github.com/newsreel/script-service/internal/manifest"
	"github.com/newsreel/script-service/internal/quota"
)

// Header carries correlation metadata shared by every event.
type Header struct {
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewHeader returns a header with a fresh event id.
func NewHeader() Header {
	return Header{
		EventID:   uuid.NewString(),
		Timestamp: time.Now().UTC(),
	}
}

// ScriptRequestedEvent asks the service to synthesize tracks and a manifest
// for one block of narration. TotalDuration of zero lets the service derive
// the duration from the word count.
type ScriptRequestedEvent struct {
	Header        Header            `json:"header"`
	Narration     string            `json:"narration"`
	Headline      string            `json:"headline,omitempty"`
	TotalDuration float64           `json:"total_duration,omitempty"`
	SourceRef     string            `json:"source_ref,omitempty"`
	Sources       []manifest.Source `json:"sources"`
	Template      manifest.Template `json:"template"`
}

// ScriptGeneratedEvent reports the outcome of a script request.
type ScriptGeneratedEvent struct {
	Header           Header  `json:"header"`
	GenerationID     string  `json:"generation_id"`
	Status           string  `json:"status"`
	TTSTrackKey      string  `json:"tts_track_key,omitempty"`
	CaptionsTrackKey string  `json:"captions_track_key,omitempty"`
	ManifestKey      string  `json:"manifest_key,omitempty"`
	TotalDuration    float64 `json:"total_duration,omitempty"`
	WordCount        int     `json:"word_count,omitempty"`
	Error            string  `json:"error,omitempty"`
}

// AudioRequestedEvent asks the service to render audio for a generated script.
type AudioRequestedEvent struct {
	Header       Header           `json:"header"`
	GenerationID string           `json:"generation_id"`
	Voice        core.VoiceParams `json:"voice"`
}

// AudioReadyEvent reports the outcome of an audio-render request.
type AudioReadyEvent struct {
	Header         Header `json:"header"`
	GenerationID   string `json:"generation_id"`
	Status         string `json:"status"`
	AudioKey       string `json:"audio_key,omitempty"`
	ProjectUsed    string `json:"project_used,omitempty"`
	CharsUsed      int64  `json:"chars_used,omitempty"`
	CharsRemaining int64  `json:"chars_remaining,omitempty"`
	Error          string `json:"error,omitempty"`
}

// UsageReportEvent reports every synthesis project's quota position.
type UsageReportEvent struct {
	Header      Header               `json:"header"`
	SafetyLimit int64                `json:"safety_limit"`
	Projects    []quota.ProjectUsage `json:"projects"`
	Error       string               `json:"error,omitempty"`
}
