package synth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newsreel/script-service/internal/core"
	"github.com/newsreel/script-service/internal/synth"
)

const testTimeout = 5 * time.Second

func TestClient_Synthesize(t *testing.T) {
	t.Parallel()

	var received map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/synthesize", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "audio/mpeg", r.Header.Get("Accept"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("mpeg-frames"))
	}))
	defer server.Close()

	client := synth.NewClient(server.URL, testTimeout)

	audio, err := client.Synthesize(context.Background(), "Markets fell sharply.", core.VoiceParams{
		Voice: "en-US-News-N",
		Pitch: -2.0,
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("mpeg-frames"), audio)

	assert.Equal(t, "Markets fell sharply.", received["text"])
	assert.Equal(t, "en-US-News-N", received["voice"])
	assert.InEpsilon(t, -2.0, received["pitch"], 1e-9)

	// Unset voice parameters are filled with service defaults.
	assert.Equal(t, "en-US", received["languageCode"])
	assert.InEpsilon(t, 1.0, received["speakingRate"], 1e-9)
	assert.InEpsilon(t, 24000.0, received["sampleRateHertz"], 1e-9)
}

func TestClient_SynthesizeEmptyText(t *testing.T) {
	t.Parallel()

	client := synth.NewClient("http://localhost:0", testTimeout)

	_, err := client.Synthesize(context.Background(), "", core.VoiceParams{})
	require.ErrorIs(t, err, synth.ErrTextEmpty)
}

func TestClient_SynthesizeServiceError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"detail": "all voices busy", "error_code": "VOICE_BUSY"}`))
	}))
	defer server.Close()

	client := synth.NewClient(server.URL, testTimeout)

	_, err := client.Synthesize(context.Background(), "some text", core.VoiceParams{})
	require.ErrorIs(t, err, synth.ErrTransport)
	assert.Contains(t, err.Error(), "all voices busy")
	assert.Contains(t, err.Error(), "VOICE_BUSY")
}

func TestClient_SynthesizeUnstructuredError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("upstream crashed"))
	}))
	defer server.Close()

	client := synth.NewClient(server.URL, testTimeout)

	_, err := client.Synthesize(context.Background(), "some text", core.VoiceParams{})
	require.ErrorIs(t, err, synth.ErrTransport)
	assert.Contains(t, err.Error(), "upstream crashed")
}

func TestClient_SynthesizeWrongContentType(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>not audio</html>"))
	}))
	defer server.Close()

	client := synth.NewClient(server.URL, testTimeout)

	_, err := client.Synthesize(context.Background(), "some text", core.VoiceParams{})
	require.ErrorIs(t, err, synth.ErrTransport)
	assert.Contains(t, err.Error(), "unexpected content type")
}

func TestClient_SynthesizeEmptyPayload(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
	}))
	defer server.Close()

	client := synth.NewClient(server.URL, testTimeout)

	_, err := client.Synthesize(context.Background(), "some text", core.VoiceParams{})
	require.ErrorIs(t, err, synth.ErrTransport)
	assert.Contains(t, err.Error(), "empty audio payload")
}

func TestClient_SynthesizeUnreachable(t *testing.T) {
	t.Parallel()

	client := synth.NewClient("http://127.0.0.1:1", time.Second)

	_, err := client.Synthesize(context.Background(), "some text", core.VoiceParams{})
	require.ErrorIs(t, err, synth.ErrTransport)
}

func TestClient_HealthCheck(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := synth.NewClient(server.URL, testTimeout)

	require.NoError(t, client.HealthCheck(context.Background()))
}

func TestClient_HealthCheckUnhealthy(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := synth.NewClient(server.URL, testTimeout)

	err := client.HealthCheck(context.Background())
	require.ErrorIs(t, err, synth.ErrTransport)
}
