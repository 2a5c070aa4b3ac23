// Package langdetect provides fast spoken-language detection from a short
// audio sample via Deepgram's prerecorded transcription API.
package langdetect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.deepgram.com"

// ErrNotConfigured is returned when no Deepgram key is present.
var ErrNotConfigured = errors.New("DEEPGRAM_API_KEY not configured")

// Result is one detection outcome.
type Result struct {
	Language   string  `json:"detected_language"`
	Confidence float64 `json:"confidence"`
}

// Detector is the surface the HTTP layer depends on.
type Detector interface {
	Detect(ctx context.Context, audio []byte, mimeType string) (Result, error)
}

// Client calls the Deepgram listen endpoint with language detection enabled.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool { return c.apiKey != "" }

// Detect runs language identification over one audio sample. Callers bound
// the call with a context deadline; expiry surfaces as the context error.
func (c *Client) Detect(ctx context.Context, audio []byte, mimeType string) (Result, error) {
	if c.apiKey == "" {
		return Result{}, ErrNotConfigured
	}
	if len(audio) == 0 {
		return Result{}, fmt.Errorf("empty audio sample")
	}
	if strings.TrimSpace(mimeType) == "" {
		mimeType = "audio/wav"
	}

	u := c.baseURL + "/v1/listen?detect_language=true&punctuate=false&model=nova-2"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(audio))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Content-Type", mimeType)

	res, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("deepgram request: %w", err)
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(res.Body, 2<<20))
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return Result{}, fmt.Errorf("deepgram status %d: %s", res.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed struct {
		Results struct {
			Channels []struct {
				DetectedLanguage string `json:"detected_language"`
				Alternatives     []struct {
					Confidence float64 `json:"confidence"`
				} `json:"alternatives"`
			} `json:"channels"`
		} `json:"results"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Result{}, fmt.Errorf("deepgram decode response: %w", err)
	}

	// "und" mirrors BCP-47's undetermined tag when the provider gives us
	// nothing usable.
	out := Result{Language: "und"}
	if len(parsed.Results.Channels) > 0 {
		ch := parsed.Results.Channels[0]
		if ch.DetectedLanguage != "" {
			out.Language = ch.DetectedLanguage
		}
		if len(ch.Alternatives) > 0 {
			out.Confidence = ch.Alternatives[0].Confidence
		}
	}
	return out, nil
}
