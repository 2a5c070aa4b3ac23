// Package coordinator turns connect requests into live bot sessions: it
// provisions rooms and tokens, launches bot runners, tracks them in a
// registry keyed by room name, and waits briefly for each bot to join.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/Anansitrading/chat-vrd-backend/internal/bot"
	"github.com/Anansitrading/chat-vrd-backend/internal/catalog"
	"github.com/Anansitrading/chat-vrd-backend/internal/gemini"
	"github.com/Anansitrading/chat-vrd-backend/internal/observability"
	"github.com/Anansitrading/chat-vrd-backend/internal/protocol"
	"github.com/Anansitrading/chat-vrd-backend/internal/rooms"
	"github.com/Anansitrading/chat-vrd-backend/internal/store"
	"github.com/Anansitrading/chat-vrd-backend/internal/synth"
)

// ErrNotFound is returned by Disconnect when no session matches.
var ErrNotFound = errors.New("no active session for room")

// ValidationError marks caller mistakes so the HTTP layer can answer 400
// without string matching.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConnectRequest is the resolved input of one connect call. Empty fields
// fall back to configured defaults.
type ConnectRequest struct {
	Language string `json:"language"`
	VoiceID  string `json:"voice_id"`
	ModelID  string `json:"model_id"`
}

// ConnectResult is what a successful connect returns to the client.
type ConnectResult struct {
	RoomURL   string        `json:"room_url"`
	Token     string        `json:"token"`
	Language  string        `json:"language"`
	Voice     catalog.Voice `json:"voice"`
	Model     catalog.Model `json:"model"`
	BotStatus string        `json:"bot_status"`
}

// ActiveSession is one registry entry snapshot.
type ActiveSession struct {
	RoomURL string `json:"room_url"`
	Running bool   `json:"running"`
}

// Settings carries the coordinator's tunables out of the config package.
type Settings struct {
	DefaultModelID  string
	DefaultLanguage string
	BotName         string
	ReadyTimeout    time.Duration
}

type handle struct {
	roomName string
	roomURL  string
	cancel   context.CancelFunc
	done     chan struct{}
}

// Coordinator owns the session registry. All fields are injected; there is
// no package-level state.
type Coordinator struct {
	provider rooms.Provider
	dial     rooms.TransportDialer
	live     gemini.Dialer
	dutchTTS synth.Synthesizer
	archive  *store.Archive
	metrics  *observability.Metrics
	settings Settings

	mu       sync.Mutex
	sessions map[string]*handle
}

func New(provider rooms.Provider, dial rooms.TransportDialer, live gemini.Dialer, dutchTTS synth.Synthesizer, archive *store.Archive, metrics *observability.Metrics, settings Settings) *Coordinator {
	if settings.ReadyTimeout <= 0 {
		settings.ReadyTimeout = 10 * time.Second
	}
	return &Coordinator{
		provider: provider,
		dial:     dial,
		live:     live,
		dutchTTS: dutchTTS,
		archive:  archive,
		metrics:  metrics,
		settings: settings,
		sessions: make(map[string]*handle),
	}
}

// resolve fills defaults and validates the model/voice pair. When no voice
// is requested, the response echoes the model's default voice while the bot
// itself derives a language-appropriate voice from the static mapping.
func (c *Coordinator) resolve(req ConnectRequest) (language string, model catalog.Model, voice catalog.Voice, botVoiceID string, err error) {
	language = strings.TrimSpace(req.Language)
	if language == "" {
		language = c.settings.DefaultLanguage
	}

	modelID := strings.TrimSpace(req.ModelID)
	if modelID == "" {
		modelID = c.settings.DefaultModelID
	}
	model, ok := catalog.Lookup(modelID)
	if !ok {
		return "", catalog.Model{}, catalog.Voice{}, "", &ValidationError{
			Message: fmt.Sprintf("unknown model %q; valid models: %s", modelID, strings.Join(catalog.ModelIDs(), ", ")),
		}
	}

	voiceID := strings.TrimSpace(req.VoiceID)
	if voiceID == "" {
		voiceID = catalog.DefaultVoice(model.ID)
		botVoiceID = catalog.VoiceForLanguage(model.ID, language)
	} else {
		if !catalog.IsVoiceSupported(model.ID, voiceID) {
			return "", catalog.Model{}, catalog.Voice{}, "", &ValidationError{
				Message: fmt.Sprintf("voice %q not supported by model %q; supported voices: %s",
					voiceID, model.ID, strings.Join(catalog.VoiceIDsFor(model.ID), ", ")),
			}
		}
		botVoiceID = voiceID
	}
	voice, _ = catalog.LookupVoice(model.ID, voiceID)
	return language, model, voice, botVoiceID, nil
}

// Connect provisions a room plus two tokens, launches the bot, and waits up
// to the ready timeout for it to join. A timeout is not an error: the
// payload is returned anyway with bot_status "joining".
func (c *Coordinator) Connect(ctx context.Context, req ConnectRequest) (ConnectResult, error) {
	language, model, voice, botVoiceID, err := c.resolve(req)
	if err != nil {
		return ConnectResult{}, err
	}

	room, err := c.provider.CreateRoom(ctx)
	if err != nil {
		c.providerError("create_room")
		return ConnectResult{}, fmt.Errorf("create room: %w", err)
	}
	botToken, err := c.provider.MintToken(ctx, room.Name, true)
	if err != nil {
		c.providerError("mint_bot_token")
		return ConnectResult{}, fmt.Errorf("mint bot token: %w", err)
	}
	clientToken, err := c.provider.MintToken(ctx, room.Name, false)
	if err != nil {
		c.providerError("mint_client_token")
		return ConnectResult{}, fmt.Errorf("mint client token: %w", err)
	}

	opts := bot.Options{
		RoomName:        room.Name,
		Language:        language,
		ModelID:         model.ID,
		VoiceID:         botVoiceID,
		TranscribeUser:  true,
		TranscribeModel: true,
	}
	// Dutch sessions speak through Cartesia when it is configured; the
	// model then runs text-only so the two audio paths never collide.
	if language == "nl-NL" && c.dutchTTS != nil {
		opts.Synth = c.dutchTTS
	}

	runner := bot.New(c.dial(room.URL, botToken, c.settings.BotName), c.live, opts)

	sessionID, err := c.archive.BeginSession(ctx, store.SessionRecord{
		RoomName: room.Name,
		RoomURL:  room.URL,
		Language: language,
		ModelID:  model.ID,
		VoiceID:  botVoiceID,
	})
	if err != nil {
		log.Printf("coordinator: archive session for %s failed: %v", room.Name, err)
	}
	if sessionID != "" {
		runner.OnTranscript = func(speaker protocol.Speaker, text string, tsMs int64) {
			rec := store.TranscriptRecord{
				SessionID: sessionID,
				Speaker:   string(speaker),
				Text:      text,
				SpokenAt:  time.UnixMilli(tsMs).UTC(),
			}
			if err := c.archive.SaveTranscript(context.Background(), rec); err != nil {
				log.Printf("coordinator: archive transcript for %s failed: %v", room.Name, err)
			}
		}
	}

	c.spawn(room, runner, sessionID)

	status := c.awaitReady(ctx, runner)
	// Count setup failures separately so the connected series reflects
	// sessions whose bot actually came up.
	if status == "failed" {
		c.event("failed")
	} else {
		c.event("connected")
	}

	return ConnectResult{
		RoomURL:   room.URL,
		Token:     clientToken,
		Language:  language,
		Voice:     voice,
		Model:     model,
		BotStatus: status,
	}, nil
}

// spawn registers the runner and starts it with a completion callback that
// unconditionally removes the registry entry.
func (c *Coordinator) spawn(room rooms.Room, runner *bot.Runner, sessionID string) {
	runCtx, cancel := context.WithCancel(context.Background())
	h := &handle{
		roomName: room.Name,
		roomURL:  room.URL,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	c.mu.Lock()
	c.sessions[room.Name] = h
	count := len(c.sessions)
	c.mu.Unlock()
	c.setActive(count)

	go func() {
		defer func() {
			c.mu.Lock()
			delete(c.sessions, room.Name)
			count := len(c.sessions)
			c.mu.Unlock()
			c.setActive(count)

			cancel()
			close(h.done)
			c.event("ended")
			if err := c.archive.EndSession(context.Background(), sessionID); err != nil {
				log.Printf("coordinator: close archived session for %s failed: %v", room.Name, err)
			}
		}()
		if err := runner.Run(runCtx); err != nil {
			log.Printf("coordinator: bot for %s exited: %v", room.Name, err)
		}
	}()
}

// awaitReady blocks for at most the ready timeout. The handshake is best
// effort: a slow bot degrades the status field, never the request.
func (c *Coordinator) awaitReady(ctx context.Context, runner *bot.Runner) string {
	start := time.Now()
	timer := time.NewTimer(c.settings.ReadyTimeout)
	defer timer.Stop()

	select {
	case <-runner.Ready():
		c.observeReadyWait(time.Since(start))
		if err := runner.ReadyErr(); err != nil {
			log.Printf("coordinator: bot setup failed: %v", err)
			return "failed"
		}
		return "joined"
	case <-timer.C:
		c.observeReadyWait(time.Since(start))
		log.Printf("coordinator: bot not ready within %s, returning anyway", c.settings.ReadyTimeout)
		return "joining"
	case <-ctx.Done():
		return "joining"
	}
}

// Disconnect cancels the session whose room name contains the given
// fragment. Daily room names are unique per deployment, so substring
// matching lets callers pass either the bare name or the full URL.
func (c *Coordinator) Disconnect(roomName string) (string, error) {
	roomName = strings.TrimSpace(roomName)
	if roomName == "" {
		return "", ErrNotFound
	}

	c.mu.Lock()
	var match *handle
	for name, h := range c.sessions {
		if strings.Contains(name, roomName) || strings.Contains(h.roomURL, roomName) {
			match = h
			break
		}
	}
	c.mu.Unlock()

	if match == nil {
		return "", ErrNotFound
	}
	match.cancel()
	c.event("disconnected")
	return match.roomName, nil
}

// Active returns a snapshot of the registry.
func (c *Coordinator) Active() []ActiveSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ActiveSession, 0, len(c.sessions))
	for _, h := range c.sessions {
		running := true
		select {
		case <-h.done:
			running = false
		default:
		}
		out = append(out, ActiveSession{RoomURL: h.roomURL, Running: running})
	}
	return out
}

// Count reports how many sessions are registered.
func (c *Coordinator) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

func (c *Coordinator) setActive(n int) {
	if c.metrics != nil {
		c.metrics.ActiveBots.Set(float64(n))
	}
}

func (c *Coordinator) event(name string) {
	if c.metrics != nil {
		c.metrics.SessionEvents.WithLabelValues(name).Inc()
	}
}

func (c *Coordinator) providerError(op string) {
	if c.metrics != nil {
		c.metrics.ProviderErrors.WithLabelValues("daily", op).Inc()
	}
}

func (c *Coordinator) observeReadyWait(d time.Duration) {
	if c.metrics != nil {
		c.metrics.ObserveReadyWait(d)
	}
}
