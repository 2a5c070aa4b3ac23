// Package rooms talks to the Daily room service: REST provisioning of
// ephemeral rooms and scoped meeting tokens, plus a thin realtime transport
// used by the bot to join a provisioned room.
//
// Provisioning is deliberately not transactional: if token minting fails
// after the room was created, the error is surfaced with the provider's text
// and the orphaned room is left to expire with its TTL.
package rooms

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

// ErrNotConfigured is returned before any provider call when the Daily API
// key is missing.
var ErrNotConfigured = errors.New("DAILY_API_KEY not configured")

// Room identifies one provisioned Daily room.
type Room struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Provider is the provisioning surface the coordinator depends on.
type Provider interface {
	CreateRoom(ctx context.Context) (Room, error)
	MintToken(ctx context.Context, roomName string, owner bool) (string, error)
}

// ProviderError carries the provider's raw error text so the HTTP layer can
// propagate it verbatim.
type ProviderError struct {
	Op     string
	Status int
	Body   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("daily %s failed: status %d: %s", e.Op, e.Status, e.Body)
}

// DailyClient provisions rooms and meeting tokens over the Daily REST API.
type DailyClient struct {
	apiKey  string
	baseURL string
	roomTTL time.Duration
	http    *http.Client
}

func NewDailyClient(apiKey, baseURL string, roomTTL time.Duration) *DailyClient {
	if roomTTL <= 0 {
		roomTTL = time.Hour
	}
	return &DailyClient{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: strings.TrimRight(baseURL, "/"),
		roomTTL: roomTTL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Configured reports whether an API key is present.
func (c *DailyClient) Configured() bool { return c.apiKey != "" }

// CreateRoom provisions a private-by-default room with a fixed expiry, chat
// enabled and video off.
func (c *DailyClient) CreateRoom(ctx context.Context) (Room, error) {
	payload := map[string]any{
		"properties": map[string]any{
			"exp":                time.Now().Add(c.roomTTL).Unix(),
			"enable_chat":        true,
			"enable_screenshare": false,
			"start_video_off":    true,
			"start_audio_off":    false,
		},
	}

	var room Room
	if err := c.post(ctx, "/rooms", "create room", payload, &room); err != nil {
		return Room{}, err
	}
	if room.Name == "" || room.URL == "" {
		return Room{}, fmt.Errorf("daily create room: response missing name or url")
	}
	return room, nil
}

// MintToken creates a meeting token scoped to roomName. Owner tokens are for
// the bot; non-owner tokens are handed to the end user.
func (c *DailyClient) MintToken(ctx context.Context, roomName string, owner bool) (string, error) {
	props := map[string]any{"room_name": roomName}
	if owner {
		props["is_owner"] = true
	}
	payload := map[string]any{"properties": props}

	var out struct {
		Token string `json:"token"`
	}
	op := "mint client token"
	if owner {
		op = "mint bot token"
	}
	if err := c.post(ctx, "/meeting-tokens", op, payload, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", fmt.Errorf("daily %s: response missing token", op)
	}
	return out.Token, nil
}

func (c *DailyClient) post(ctx context.Context, path, op string, payload, out any) error {
	if c.apiKey == "" {
		return ErrNotConfigured
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("daily %s: encode request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("daily %s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daily %s: %w", op, err)
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &ProviderError{Op: op, Status: res.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("daily %s: decode response: %w", op, err)
	}
	return nil
}
