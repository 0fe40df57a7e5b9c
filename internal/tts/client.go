// Package tts provides clients for the Azure Cognitive Services speech REST
// API: token issuance, voice listing and speech synthesis.
//
// Each operation is a single request. Nothing is retried; a failed call is
// returned to the caller as-is.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/book-expert/speak-service/internal/catalog"
)

// Default endpoint templates. Each contains a single %s for the region.
const (
	DefaultTokenEndpoint     = "https://%s.api.cognitive.microsoft.com/sts/v1.0/issueToken"
	DefaultVoicesEndpoint    = "https://%s.tts.speech.microsoft.com/cognitiveservices/voices/list"
	DefaultSynthesisEndpoint = "https://%s.tts.speech.microsoft.com/cognitiveservices/v1"
)

// HTTP headers.
const (
	headerContentType     = "Content-Type"
	headerAuthorization   = "Authorization"
	headerSubscriptionKey = "Ocp-Apim-Subscription-Key"
	headerOutputFormat    = "X-Microsoft-OutputFormat"
	contentTypeSSML       = "application/ssml+xml"
	bearerPrefix          = "Bearer "
)

// OutputFormat is the fixed compressed mono format requested for synthesis.
const OutputFormat = "audio-16khz-32kbitrate-mono-mp3"

// Error messages.
const (
	errFmtCreateRequest = "failed to create %s request: %w"
	errFmtSendRequest   = "failed to send %s request to %s: %w"
	errFmtReadBody      = "failed to read %s response: %w"
)

// Endpoints holds the endpoint templates used by the client.
type Endpoints struct {
	Token     string
	Voices    string
	Synthesis string
}

// DefaultEndpoints returns the public Azure endpoint templates.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Token:     DefaultTokenEndpoint,
		Voices:    DefaultVoicesEndpoint,
		Synthesis: DefaultSynthesisEndpoint,
	}
}

// WithDefaults fills empty templates with the public ones.
func (e Endpoints) WithDefaults() Endpoints {
	defaults := DefaultEndpoints()

	if e.Token == "" {
		e.Token = defaults.Token
	}

	if e.Voices == "" {
		e.Voices = defaults.Voices
	}

	if e.Synthesis == "" {
		e.Synthesis = defaults.Synthesis
	}

	return e
}

// Client talks to the speech service over HTTP.
type Client struct {
	httpClient *http.Client
	endpoints  Endpoints
}

// NewClient creates a Client. The timeout applies to every request.
func NewClient(endpoints Endpoints, timeout time.Duration) *Client {
	return &Client{
		endpoints: endpoints.WithDefaults(),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// IssueToken exchanges an API key for a short-lived bearer token.
func (c *Client) IssueToken(ctx context.Context, apiKey, region string) (string, error) {
	headers := http.Header{}
	headers.Set(headerSubscriptionKey, apiKey)

	body, err := c.do(ctx, "token", http.MethodPost, c.url(c.endpoints.Token, region), headers, nil, ErrAuth)
	if err != nil {
		return "", err
	}

	token := strings.TrimSpace(string(body))
	if token == "" {
		return "", ErrEmptyToken
	}

	return token, nil
}

// ListVoices fetches the voice catalog for a region, sorted by locale and
// then by short name.
func (c *Client) ListVoices(ctx context.Context, token, region string) ([]catalog.Voice, error) {
	headers := http.Header{}
	headers.Set(headerAuthorization, bearerPrefix+token)

	body, err := c.do(ctx, "voices", http.MethodGet, c.url(c.endpoints.Voices, region), headers, nil, ErrCatalog)
	if err != nil {
		return nil, err
	}

	var voices []catalog.Voice

	err = json.Unmarshal(body, &voices)
	if err != nil {
		return nil, fmt.Errorf("failed to decode voice list: %w", err)
	}

	catalog.Sort(voices)

	return voices, nil
}

// Synthesize renders text with the given voice and returns the MP3 payload.
func (c *Client) Synthesize(ctx context.Context, token, region, voiceID, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrTextEmpty
	}

	payload, err := BuildSSML(SynthesisRequest{VoiceID: voiceID, Text: text})
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set(headerAuthorization, bearerPrefix+token)
	headers.Set(headerContentType, contentTypeSSML)
	headers.Set(headerOutputFormat, OutputFormat)

	audio, err := c.do(ctx, "synthesis", http.MethodPost, c.url(c.endpoints.Synthesis, region), headers, payload, ErrSynthesis)
	if err != nil {
		return nil, err
	}

	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}

	return audio, nil
}

func (c *Client) url(template, region string) string {
	return fmt.Sprintf(template, region)
}

// do sends one request and returns the body of a 2xx response. Any other
// status becomes a *StatusError of the given kind.
func (c *Client) do(
	ctx context.Context,
	name, method, url string,
	headers http.Header,
	payload []byte,
	kind error,
) ([]byte, error) {
	var body io.Reader = http.NoBody
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf(errFmtCreateRequest, name, err)
	}

	for key, values := range headers {
		req.Header[key] = values
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf(errFmtSendRequest, name, url, err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		_, _ = io.Copy(io.Discard, resp.Body)

		return nil, newStatusError(kind, resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf(errFmtReadBody, name, err)
	}

	return data, nil
}
