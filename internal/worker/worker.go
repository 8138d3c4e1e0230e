// Package worker provides the NATS worker that serves script-generation and
// audio-render requests.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/newsreel/script-service/internal/core"
	"github.com/newsreel/script-service/internal/events"
	"github.com/newsreel/script-service/internal/generation"
	"github.com/newsreel/script-service/internal/quota"
)

// Per-request deadlines. Audio rendering includes the external synthesis
// call, so it gets a wider budget than track building.
const (
	scriptRequestTimeout = 30 * time.Second
	audioRequestTimeout  = 5 * time.Minute
	usageRequestTimeout  = 10 * time.Second
)

// Engine is the subset of the generation service the worker drives.
type Engine interface {
	Generate(ctx context.Context, req generation.GenerateRequest) (*generation.Generation, error)
	RenderAudio(ctx context.Context, id string, voice core.VoiceParams) (*generation.RenderResult, error)
}

// UsageReporter answers quota usage queries.
type UsageReporter interface {
	Usage(ctx context.Context) ([]quota.ProjectUsage, error)
	SafetyLimit() int64
}

// Subjects names the request subjects the worker listens on.
type Subjects struct {
	ScriptRequested string
	AudioRequested  string
	UsageRequested  string
}

// NatsWorker listens for script and audio requests and replies with result events.
type NatsWorker struct {
	natsConnection *nats.Conn
	subjects       Subjects
	engine         Engine
	usage          UsageReporter
	log            *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subjects Subjects,
	engine Engine,
	usage UsageReporter,
	log *logger.Logger,
) (*NatsWorker, error) {
	return &NatsWorker{
		natsConnection: natsConnection,
		subjects:       subjects,
		engine:         engine,
		usage:          usage,
		log:            log,
	}, nil
}

// Run subscribes to the request subjects and blocks until ctx is cancelled.
func (w *NatsWorker) Run(ctx context.Context) error {
	subscriptions := []struct {
		subject string
		handler nats.MsgHandler
	}{
		{w.subjects.ScriptRequested, w.handleScriptRequest},
		{w.subjects.AudioRequested, w.handleAudioRequest},
		{w.subjects.UsageRequested, w.handleUsageRequest},
	}

	subs := make([]*nats.Subscription, 0, len(subscriptions))

	for _, subscription := range subscriptions {
		sub, err := w.natsConnection.Subscribe(subscription.subject, subscription.handler)
		if err != nil {
			return fmt.Errorf("failed to subscribe to subject %s: %w", subscription.subject, err)
		}

		subs = append(subs, sub)
	}

	<-ctx.Done()

	for _, sub := range subs {
		drainErr := sub.Drain()
		if drainErr != nil {
			return fmt.Errorf("failed to drain subscription: %w", drainErr)
		}
	}

	return nil
}

func (w *NatsWorker) handleScriptRequest(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), scriptRequestTimeout)
	defer cancel()

	var event events.ScriptRequestedEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		w.log.Error("Failed to unmarshal script request: %v", err)

		return
	}

	reply := events.ScriptGeneratedEvent{
		Header: events.NewHeader(),
		Status: string(generation.StatusFailed),
	}

	gen, err := w.engine.Generate(ctx, generation.GenerateRequest{
		Narration:     event.Narration,
		Headline:      event.Headline,
		TotalDuration: event.TotalDuration,
		SourceRef:     event.SourceRef,
		Sources:       event.Sources,
		Template:      event.Template,
	})
	if err != nil {
		w.log.Error("Failed to generate script for event %s: %v", event.Header.EventID, err)

		reply.Error = err.Error()
	} else {
		reply.GenerationID = gen.ID
		reply.Status = string(gen.Status)
		reply.TTSTrackKey = gen.TTSTrackKey
		reply.CaptionsTrackKey = gen.CaptionsTrackKey
		reply.ManifestKey = gen.ManifestKey
		reply.TotalDuration = gen.TotalDuration
		reply.WordCount = gen.WordCount
	}

	w.respond(msg, reply, event.Header.EventID)
}

func (w *NatsWorker) handleAudioRequest(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), audioRequestTimeout)
	defer cancel()

	var event events.AudioRequestedEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		w.log.Error("Failed to unmarshal audio request: %v", err)

		return
	}

	reply := events.AudioReadyEvent{
		Header:       events.NewHeader(),
		GenerationID: event.GenerationID,
		Status:       string(generation.StatusFailed),
	}

	result, err := w.engine.RenderAudio(ctx, event.GenerationID, event.Voice)
	if err != nil {
		w.log.Error("Failed to render audio for generation %s: %v", event.GenerationID, err)

		reply.Error = err.Error()
	} else {
		reply.Status = string(generation.StatusAudioReady)
		reply.AudioKey = result.AudioKey
		reply.ProjectUsed = result.ProjectUsed
		reply.CharsUsed = result.CharsUsed
		reply.CharsRemaining = result.CharsRemaining
	}

	w.respond(msg, reply, event.Header.EventID)
}

func (w *NatsWorker) handleUsageRequest(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), usageRequestTimeout)
	defer cancel()

	reply := events.UsageReportEvent{
		Header:      events.NewHeader(),
		SafetyLimit: w.usage.SafetyLimit(),
	}

	projects, err := w.usage.Usage(ctx)
	if err != nil {
		w.log.Error("Failed to read quota usage: %v", err)

		reply.Error = err.Error()
	} else {
		reply.Projects = projects
	}

	w.respond(msg, reply, "")
}

// respond marshals and sends the reply event back on the request's reply subject.
func (w *NatsWorker) respond(msg *nats.Msg, reply any, requestID string) {
	replyData, err := json.Marshal(reply)
	if err != nil {
		w.log.Error("Failed to marshal reply for request %s: %v", requestID, err)

		return
	}

	err = msg.Respond(replyData)
	if err != nil {
		w.log.Error("Failed to publish reply for request %s: %v", requestID, err)
	}
}
