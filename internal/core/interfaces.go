// Package core defines the core interfaces and shared types for the script service.
package core

import "context"

// ObjectStore defines the interface for interacting with a key-value blob store.
// Artifacts (timed-text tracks, manifests, audio) are written under a key and
// addressed by that key afterwards.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}

// VoiceParams holds the per-request voice settings for a synthesis call.
type VoiceParams struct {
	Voice           string  `json:"voice"`
	LanguageCode    string  `json:"languageCode"`
	SpeakingRate    float64 `json:"speakingRate"`
	Pitch           float64 `json:"pitch"`
	VolumeGainDb    float64 `json:"volumeGainDb"`
	SampleRateHertz int     `json:"sampleRateHertz"`
}

// Synthesizer defines the interface for the external speech-synthesis backend.
// It consumes plain narration text and returns a rendered audio payload.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, params VoiceParams) ([]byte, error)
}
