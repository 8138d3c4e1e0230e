package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/book-expert/logger"
	"github.com/google/uuid"

	"github.com/newsreel/script-service/internal/core"
	"github.com/newsreel/script-service/internal/manifest"
	"github.com/newsreel/script-service/internal/quota"
	"github.com/newsreel/script-service/internal/script"
)

var (
	// ErrNotRenderable indicates an audio-render request for a generation
	// that has no written tracks to render from.
	ErrNotRenderable = errors.New("generation has no generated tracks to render")
	// ErrAlreadyRendered indicates an audio-render request for a generation
	// whose audio is already in place.
	ErrAlreadyRendered = errors.New("generation audio already rendered")
)

// Artifact key suffixes under the per-generation prefix.
const (
	ttsTrackArtifact    = "tts_script.vtt"
	captionsArtifact    = "captions.vtt"
	manifestArtifact    = "manifest.json"
	metadataArtifact    = "metadata.json"
	audioArtifact       = "audio.mp3"
	defaultSynthTimeout = 2 * time.Minute
)

// Params tunes track building and rendering for the service.
type Params struct {
	WordsPerMinute     int
	Cue                script.CueOptions
	Caption            script.CaptionOptions
	SceneLeadInSeconds float64
	SynthTimeout       time.Duration
}

// GenerateRequest carries one script-synthesis job.
type GenerateRequest struct {
	Narration     string
	Headline      string
	TotalDuration float64
	SourceRef     string
	Sources       []manifest.Source
	Template      manifest.Template
}

// RenderResult reports a completed audio render.
type RenderResult struct {
	GenerationID   string
	AudioKey       string
	ProjectUsed    string
	CharsUsed      int64
	CharsRemaining int64
}

// Service drives generation records through their lifecycle. Track building,
// manifest building and persistence run in a fixed order within one call;
// the quota ledger is the only state shared across calls.
type Service struct {
	store   *Store
	objects core.ObjectStore
	ledger  *quota.Ledger
	synth   core.Synthesizer
	params  Params
	log     *logger.Logger
}

// NewService wires the generation service.
func NewService(
	store *Store,
	objects core.ObjectStore,
	ledger *quota.Ledger,
	synth core.Synthesizer,
	params Params,
	log *logger.Logger,
) *Service {
	if params.SynthTimeout <= 0 {
		params.SynthTimeout = defaultSynthTimeout
	}

	return &Service{
		store:   store,
		objects: objects,
		ledger:  ledger,
		synth:   synth,
		params:  params,
		log:     log,
	}
}

// Generate builds both timed-text tracks and the scene manifest for the
// narration, persists the artifacts, and marks the record generated.
//
// Any failure along the way moves the record to failed with the triggering
// error captured, and leaves no artifact keys referenced by the record.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*Generation, error) {
	totalDuration := req.TotalDuration
	if totalDuration == 0 {
		totalDuration = script.EstimateDuration(req.Narration, s.params.WordsPerMinute)
	}

	gen := &Generation{
		ID:            uuid.NewString(),
		SourceRef:     req.SourceRef,
		TotalDuration: totalDuration,
		WordCount:     script.WordCount(req.Narration),
	}

	err := s.store.Insert(ctx, gen)
	if err != nil {
		return nil, fmt.Errorf("failed to create generation record: %w", err)
	}

	ttsKey, captionsKey, manifestKey, err := s.buildArtifacts(ctx, gen, req, totalDuration)
	if err != nil {
		return nil, s.fail(ctx, gen.ID, err)
	}

	err = s.store.MarkGenerated(ctx, gen.ID, ttsKey, captionsKey, manifestKey)
	if err != nil {
		return nil, s.fail(ctx, gen.ID, err)
	}

	gen.TTSTrackKey = ttsKey
	gen.CaptionsTrackKey = captionsKey
	gen.ManifestKey = manifestKey
	gen.Status = StatusGenerated

	s.log.Info("Generation %s complete: %d words over %.1fs", gen.ID, gen.WordCount, totalDuration)

	return gen, nil
}

// buildArtifacts produces and uploads the two tracks, the manifest and the
// metadata document, returning the keys of the three record-referenced
// artifacts.
func (s *Service) buildArtifacts(
	ctx context.Context,
	gen *Generation,
	req GenerateRequest,
	totalDuration float64,
) (string, string, string, error) {
	cueTrack, err := script.BuildCueTrack(req.Narration, totalDuration, s.params.Cue)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to build cue track: %w", err)
	}

	captionTrack, err := script.BuildCaptionTrack(req.Narration, totalDuration, s.params.Caption)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to build captions track: %w", err)
	}

	ttsKey := gen.ID + "/" + ttsTrackArtifact
	captionsKey := gen.ID + "/" + captionsArtifact
	manifestKey := gen.ID + "/" + manifestArtifact

	built := manifest.Build(req.Narration, req.Sources, req.Template, totalDuration, manifest.Params{
		GenerationID:  gen.ID,
		Headline:      req.Headline,
		CaptionsFile:  captionsKey,
		LeadInSeconds: s.params.SceneLeadInSeconds,
	})

	manifestJSON, err := json.MarshalIndent(built, "", "  ")
	if err != nil {
		return "", "", "", fmt.Errorf("failed to marshal manifest: %w", err)
	}

	metadataJSON, err := s.marshalMetadata(gen, req, totalDuration)
	if err != nil {
		return "", "", "", err
	}

	uploads := []struct {
		key  string
		data []byte
	}{
		{ttsKey, []byte(cueTrack)},
		{captionsKey, []byte(captionTrack)},
		{manifestKey, manifestJSON},
		{gen.ID + "/" + metadataArtifact, metadataJSON},
	}

	for _, upload := range uploads {
		err = s.objects.Upload(ctx, upload.key, upload.data)
		if err != nil {
			return "", "", "", fmt.Errorf("failed to write artifact '%s': %w", upload.key, err)
		}
	}

	return ttsKey, captionsKey, manifestKey, nil
}

func (s *Service) marshalMetadata(gen *Generation, req GenerateRequest, totalDuration float64) ([]byte, error) {
	metadata := map[string]any{
		"generation_id":  gen.ID,
		"source_ref":     req.SourceRef,
		"narration":      req.Narration,
		"sources":        req.Sources,
		"generated_at":   time.Now().UTC().Format(time.RFC3339),
		"total_duration": totalDuration,
		"word_count":     gen.WordCount,
	}

	metadataJSON, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	return metadataJSON, nil
}

// RenderAudio renders the audio for a previously generated record.
//
// Retryable: a record in the failed state that still references its tracks is
// accepted, and a failure here never clears the generated artifacts. A record
// whose audio is already in place is rejected with ErrAlreadyRendered before
// any quota is reserved. Quota is reserved before the synthesis call and
// refunded when synthesis or the artifact write fails.
func (s *Service) RenderAudio(ctx context.Context, id string, voice core.VoiceParams) (*RenderResult, error) {
	gen, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if gen.Status == StatusAudioReady {
		return nil, fmt.Errorf("%w: generation '%s' holds '%s'", ErrAlreadyRendered, id, gen.AudioKey)
	}

	if gen.TTSTrackKey == "" {
		return nil, fmt.Errorf("%w: generation '%s' is %s", ErrNotRenderable, id, gen.Status)
	}

	trackData, err := s.objects.Download(ctx, gen.TTSTrackKey)
	if err != nil {
		return nil, s.fail(ctx, id, fmt.Errorf("failed to read cue track '%s': %w", gen.TTSTrackKey, err))
	}

	text := script.PlainText(script.ParseTrack(string(trackData)))
	if text == "" {
		return nil, s.fail(ctx, id, fmt.Errorf("%w: cue track '%s' held no text", ErrNotRenderable, gen.TTSTrackKey))
	}

	chars := int64(utf8.RuneCountInString(text))

	reservation, err := s.ledger.Reserve(ctx, chars)
	if err != nil {
		return nil, s.fail(ctx, id, err)
	}

	audio, err := s.synthesize(ctx, text, voice)
	if err != nil {
		s.refund(ctx, reservation)

		return nil, s.fail(ctx, id, err)
	}

	audioKey := gen.ID + "/" + audioArtifact

	err = s.objects.Upload(ctx, audioKey, audio)
	if err != nil {
		s.refund(ctx, reservation)

		return nil, s.fail(ctx, id, fmt.Errorf("failed to write audio artifact '%s': %w", audioKey, err))
	}

	err = s.store.MarkAudioReady(ctx, id, audioKey)
	if err != nil {
		// The synthesis characters were consumed, so the reservation stands.
		return nil, s.fail(ctx, id, err)
	}

	s.log.Info("Rendered audio for generation %s via project %s (%d chars)", id, reservation.ProjectID, chars)

	return &RenderResult{
		GenerationID:   id,
		AudioKey:       audioKey,
		ProjectUsed:    reservation.ProjectID,
		CharsUsed:      reservation.Chars,
		CharsRemaining: reservation.Remaining,
	}, nil
}

// Get retrieves one generation record.
func (s *Service) Get(ctx context.Context, id string) (*Generation, error) {
	return s.store.Get(ctx, id)
}

// List returns recent generation records, optionally filtered by status.
func (s *Service) List(ctx context.Context, status Status, limit int) ([]Generation, error) {
	return s.store.List(ctx, status, limit)
}

// synthesize wraps the external synthesis call with an explicit timeout; it
// is the only network-bound step of the render path.
func (s *Service) synthesize(ctx context.Context, text string, voice core.VoiceParams) ([]byte, error) {
	synthCtx, cancel := context.WithTimeout(ctx, s.params.SynthTimeout)
	defer cancel()

	audio, err := s.synth.Synthesize(synthCtx, text, voice)
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize speech: %w", err)
	}

	return audio, nil
}

// fail moves the record to failed, capturing cause verbatim, and returns cause.
func (s *Service) fail(ctx context.Context, id string, cause error) error {
	markErr := s.store.MarkFailed(ctx, id, cause.Error())
	if markErr != nil {
		s.log.Error("Failed to mark generation %s failed: %v", id, markErr)
	}

	return cause
}

func (s *Service) refund(ctx context.Context, reservation quota.Reservation) {
	err := s.ledger.Refund(ctx, reservation)
	if err != nil {
		s.log.Error("Failed to refund %d chars to project %s: %v", reservation.Chars, reservation.ProjectID, err)
	}
}
