// Package config_test tests the configuration loading for the script service.
package config_test

import (
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newsreel/script-service/internal/config"
)

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	tomlData := `
[nats]
url = "nats://127.0.0.1:4222"
script_requested_subject = "script.requested"
audio_requested_subject = "script.audio.requested"
usage_requested_subject = "script.usage.requested"
artifact_object_store_bucket = "SCRIPT_ARTIFACTS"

[script]
words_per_minute = 150
cue_line_chars = 35
cue_max_lines = 2
caption_line_chars = 35
caption_max_lines = 2
caption_segment_chars = 35
scene_lead_in_seconds = 5.0
emphasis_words = ["important", "critical", "significant", "major"]

[synth]
service_url = "http://127.0.0.1:8080"
timeout_seconds = 120

[quota]
safety_limit = 800000

[[quota.projects]]
project_id = "project-a"

[[quota.projects]]
project_id = "project-b"

[storage]
database_path = "/var/lib/script-service/records.db"

[paths]
base_logs_dir = "/var/log/script-service"
`

	var cfg config.Config

	err := toml.Unmarshal([]byte(tomlData), &cfg)
	require.NoError(t, err)

	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	assert.Equal(t, "script.requested", cfg.NATS.ScriptRequestedSubject)
	assert.Equal(t, "script.audio.requested", cfg.NATS.AudioRequestedSubject)
	assert.Equal(t, "script.usage.requested", cfg.NATS.UsageRequestedSubject)
	assert.Equal(t, "SCRIPT_ARTIFACTS", cfg.NATS.ArtifactObjectStoreBucket)

	assert.Equal(t, 150, cfg.Script.WordsPerMinute)
	assert.Equal(t, 35, cfg.Script.CueLineChars)
	assert.Equal(t, 2, cfg.Script.CueMaxLines)
	assert.Equal(t, 35, cfg.Script.CaptionLineChars)
	assert.Equal(t, 2, cfg.Script.CaptionMaxLines)
	assert.Equal(t, 35, cfg.Script.CaptionSegmentChars)
	assert.InEpsilon(t, 5.0, cfg.Script.SceneLeadInSeconds, 0.001)
	assert.Equal(t, []string{"important", "critical", "significant", "major"}, cfg.Script.EmphasisWords)

	assert.Equal(t, "http://127.0.0.1:8080", cfg.Synth.ServiceURL)
	assert.Equal(t, 120, cfg.Synth.TimeoutSeconds)

	assert.Equal(t, int64(800000), cfg.Quota.SafetyLimit)
	assert.Equal(t, []string{"project-a", "project-b"}, cfg.Quota.ProjectIDs())

	assert.Equal(t, "/var/lib/script-service/records.db", cfg.Storage.DatabasePath)
	assert.Equal(t, "/var/log/script-service", cfg.Paths.BaseLogsDir)
}

func TestQuotaConfig_ProjectIDsEmpty(t *testing.T) {
	t.Parallel()

	var cfg config.QuotaConfig

	assert.Empty(t, cfg.ProjectIDs())
}
