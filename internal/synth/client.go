// Package synth provides the HTTP client for the external speech-synthesis
// service. The service is treated as a pure remote procedure: characters in,
// audio payload out, with no retries at this layer.
package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/newsreel/script-service/internal/core"
)

// API endpoints and headers.
const (
	apiSynthesize = "/v1/synthesize"
	apiHealth     = "/health"

	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
	contentTypeMPEG   = "audio/mpeg"
)

// Defaults applied when the caller leaves voice parameters unset.
const (
	defaultLanguageCode    = "en-US"
	defaultSpeakingRate    = 1.0
	defaultSampleRateHertz = 24000
)

var (
	// ErrTransport indicates that the synthesis call failed in transit:
	// timeout, network error, non-OK status, or a malformed response.
	// Retryable by the caller at a later time.
	ErrTransport = errors.New("synthesis transport failure")
	// ErrTextEmpty indicates an empty synthesis input.
	ErrTextEmpty = errors.New("synthesis text cannot be empty")
)

// Client is an HTTP client for the synthesis service.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a synthesis client against baseURL (protocol and port
// included). The timeout applies to every request made by the client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// synthesizeRequest is the JSON payload of a synthesis call.
type synthesizeRequest struct {
	Text string `json:"text"`

	core.VoiceParams
}

// errorResponse is the structured error body the service returns on failure.
type errorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// Synthesize renders text to an MP3 payload using the given voice parameters.
func (c *Client) Synthesize(ctx context.Context, text string, params core.VoiceParams) ([]byte, error) {
	if text == "" {
		return nil, ErrTextEmpty
	}

	if params.LanguageCode == "" {
		params.LanguageCode = defaultLanguageCode
	}

	if params.SpeakingRate == 0 {
		params.SpeakingRate = defaultSpeakingRate
	}

	if params.SampleRateHertz == 0 {
		params.SampleRateHertz = defaultSampleRateHertz
	}

	requestBody, err := json.Marshal(synthesizeRequest{
		Text:        text,
		VoiceParams: params,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal synthesis request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+apiSynthesize,
		bytes.NewBuffer(requestBody),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesis request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeMPEG)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: request to %s: %w", ErrTransport, c.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	contentType := resp.Header.Get(headerContentType)
	if contentType != contentTypeMPEG {
		return nil, fmt.Errorf("%w: unexpected content type %q", ErrTransport, contentType)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read audio payload: %w", ErrTransport, err)
	}

	if len(audioData) == 0 {
		return nil, fmt.Errorf("%w: received empty audio payload", ErrTransport)
	}

	return audioData, nil
}

// HealthCheck verifies that the synthesis service is reachable and healthy.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiHealth, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: health check against %s: %w", ErrTransport, c.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health check returned %s", ErrTransport, resp.Status)
	}

	return nil
}

// parseErrorResponse decodes a structured service error, falling back to the
// raw body so diagnostics are never lost.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var serviceErr errorResponse

	err := json.NewDecoder(resp.Body).Decode(&serviceErr)
	if err == nil && serviceErr.Detail != "" {
		return fmt.Errorf("%w: %s: %s (code: %s)",
			ErrTransport, resp.Status, serviceErr.Detail, serviceErr.ErrorCode)
	}

	body, _ := io.ReadAll(resp.Body)

	return fmt.Errorf("%w: %s: %s", ErrTransport, resp.Status, string(body))
}
