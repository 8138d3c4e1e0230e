// Package generation persists script-generation records and drives each one
// through its lifecycle: pending, generated, audio_ready, or failed.
package generation

import "time"

// Status is the lifecycle state of a generation record.
type Status string

// Lifecycle states. Pending becomes generated once tracks and manifest are
// written, generated becomes audio_ready once synthesis succeeds, and any
// state may fall to failed with the triggering error captured.
const (
	StatusPending    Status = "pending"
	StatusGenerated  Status = "generated"
	StatusAudioReady Status = "audio_ready"
	StatusFailed     Status = "failed"
)

// Generation is the persisted record of one script-synthesis job.
type Generation struct {
	ID               string
	SourceRef        string
	TTSTrackKey      string
	CaptionsTrackKey string
	ManifestKey      string
	AudioKey         string
	TotalDuration    float64
	WordCount        int
	Status           Status
	Error            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
