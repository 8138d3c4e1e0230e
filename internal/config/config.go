// Package config provides the configuration structure for the script service.
package config

import (
	"fmt"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL                       string `toml:"url"`
	ScriptRequestedSubject    string `toml:"script_requested_subject"`
	AudioRequestedSubject     string `toml:"audio_requested_subject"`
	UsageRequestedSubject     string `toml:"usage_requested_subject"`
	ArtifactObjectStoreBucket string `toml:"artifact_object_store_bucket"`
}

// ScriptConfig holds the track-building parameters.
type ScriptConfig struct {
	WordsPerMinute      int      `toml:"words_per_minute"`
	CueLineChars        int      `toml:"cue_line_chars"`
	CueMaxLines         int      `toml:"cue_max_lines"`
	CaptionLineChars    int      `toml:"caption_line_chars"`
	CaptionMaxLines     int      `toml:"caption_max_lines"`
	CaptionSegmentChars int      `toml:"caption_segment_chars"`
	SceneLeadInSeconds  float64  `toml:"scene_lead_in_seconds"`
	EmphasisWords       []string `toml:"emphasis_words"`
}

// SynthConfig holds the configuration for the external synthesis service.
type SynthConfig struct {
	ServiceURL     string `toml:"service_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// QuotaProjectConfig identifies one metered synthesis project.
type QuotaProjectConfig struct {
	ProjectID string `toml:"project_id"`
}

// QuotaConfig holds the per-project character budget and the project list.
type QuotaConfig struct {
	SafetyLimit int64                `toml:"safety_limit"`
	Projects    []QuotaProjectConfig `toml:"projects"`
}

// ProjectIDs returns the configured project ids in order.
func (q QuotaConfig) ProjectIDs() []string {
	ids := make([]string, 0, len(q.Projects))
	for _, project := range q.Projects {
		ids = append(ids, project.ProjectID)
	}

	return ids
}

// StorageConfig holds the configuration for the record database.
type StorageConfig struct {
	DatabasePath string `toml:"database_path"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	NATS    NATSConfig    `toml:"nats"`
	Script  ScriptConfig  `toml:"script"`
	Synth   SynthConfig   `toml:"synth"`
	Quota   QuotaConfig   `toml:"quota"`
	Storage StorageConfig `toml:"storage"`
	Paths   PathsConfig   `toml:"paths"`
}

// Load loads the configuration for the script service.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	return &cfg, nil
}
