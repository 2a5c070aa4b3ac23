// Package synth wraps the Cartesia HTTP TTS API. It substitutes for the
// model's built-in synthesis on Dutch sessions, where Cartesia's nl voices
// sound markedly better.
package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.cartesia.ai"
	cartesiaModel  = "sonic-2"
	apiVersion     = "2024-06-10"
)

// Dutch voice ids verified against the Cartesia catalog.
const (
	DutchVoiceFemale = "79a125e8-cd45-4c13-8a67-188112f4dd22"
	DutchVoiceMale   = "95856005-0332-41b0-935f-352e296aa0df"
	DutchVoiceID     = DutchVoiceFemale
)

// Synthesizer converts one utterance of text to 16 kHz PCM.
type Synthesizer interface {
	Speak(ctx context.Context, text string) ([]byte, error)
}

// Client calls the Cartesia bytes endpoint.
type Client struct {
	apiKey  string
	baseURL string
	voiceID string
	http    *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: defaultBaseURL,
		voiceID: DutchVoiceID,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool { return c.apiKey != "" }

// Speak synthesizes text as raw 16 kHz 16-bit PCM.
func (c *Client) Speak(ctx context.Context, text string) ([]byte, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("CARTESIA_API_KEY not configured")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	payload := map[string]any{
		"model_id":   cartesiaModel,
		"transcript": text,
		"language":   "nl",
		"voice": map[string]any{
			"mode": "id",
			"id":   c.voiceID,
		},
		"output_format": map[string]any{
			"container":   "raw",
			"encoding":    "pcm_s16le",
			"sample_rate": 16000,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("cartesia encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tts/bytes", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Cartesia-Version", apiVersion)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cartesia request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
		return nil, fmt.Errorf("cartesia status %d: %s", res.StatusCode, strings.TrimSpace(string(raw)))
	}
	return io.ReadAll(io.LimitReader(res.Body, 16<<20))
}
