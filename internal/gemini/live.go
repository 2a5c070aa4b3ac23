// Package gemini implements a client for the Gemini Live API: one
// bidirectional websocket per conversation carrying audio in both directions
// plus transcription events.
package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const defaultLiveEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

// EventType identifies session event variants.
type EventType string

const (
	// EventAudio carries one chunk of synthesized PCM from the model.
	EventAudio EventType = "audio"
	// EventUserTranscript carries a transcription of inbound user audio.
	EventUserTranscript EventType = "user_transcript"
	// EventAssistantTranscript carries a transcription of model output.
	EventAssistantTranscript EventType = "assistant_transcript"
	// EventAssistantText carries model text output (used when the model's
	// own synthesis is disabled and an external TTS stage speaks instead).
	EventAssistantText EventType = "assistant_text"
	// EventTurnComplete marks the end of a model turn.
	EventTurnComplete EventType = "turn_complete"
	// EventError reports a stream-level failure.
	EventError EventType = "error"
)

// Event is one notification from a live session.
type Event struct {
	Type      EventType
	PCM       []byte
	Text      string
	Detail    string
	Timestamp int64
}

// SessionConfig describes one live conversation.
type SessionConfig struct {
	// Model is the bare model id; the models/ prefix is added when missing.
	Model             string
	VoiceID           string
	SystemInstruction string
	TranscribeUser    bool
	TranscribeModel   bool
	// TextOnly disables the model's own audio synthesis so an external
	// synthesis stage can own the audio path.
	TextOnly bool
}

// Session is the bot-facing surface of one live connection.
type Session interface {
	SendAudio(ctx context.Context, pcm []byte) error
	// SendText injects a user turn, used to kick off the conversation.
	SendText(ctx context.Context, text string) error
	Events() <-chan Event
	Close() error
}

// Dialer opens live sessions. Injected into the bot runner so tests can
// substitute a scripted model.
type Dialer interface {
	Connect(ctx context.Context, cfg SessionConfig) (Session, error)
}

// Client dials the Gemini Live websocket endpoint.
type Client struct {
	apiKey   string
	endpoint string
}

func NewClient(apiKey string) *Client {
	return &Client{apiKey: strings.TrimSpace(apiKey), endpoint: defaultLiveEndpoint}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool { return c.apiKey != "" }

// Connect dials the live endpoint and performs the setup handshake.
func (c *Client) Connect(ctx context.Context, cfg SessionConfig) (Session, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY not configured")
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("key", c.apiKey)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), http.Header{})
	if err != nil {
		return nil, fmt.Errorf("dial live websocket: %w", err)
	}

	s := &liveSession{
		conn:   conn,
		events: make(chan Event, 256),
		done:   make(chan struct{}),
	}
	if err := s.writeJSON(setupPayload(cfg)); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send setup: %w", err)
	}
	go s.readLoop()
	return s, nil
}

func setupPayload(cfg SessionConfig) map[string]any {
	model := cfg.Model
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}

	generationConfig := map[string]any{}
	if cfg.TextOnly {
		generationConfig["responseModalities"] = []string{"TEXT"}
	} else {
		generationConfig["responseModalities"] = []string{"AUDIO"}
		if cfg.VoiceID != "" {
			generationConfig["speechConfig"] = map[string]any{
				"voiceConfig": map[string]any{
					"prebuiltVoiceConfig": map[string]any{"voiceName": cfg.VoiceID},
				},
			}
		}
	}

	setup := map[string]any{
		"model":            model,
		"generationConfig": generationConfig,
	}
	if strings.TrimSpace(cfg.SystemInstruction) != "" {
		setup["systemInstruction"] = map[string]any{
			"parts": []map[string]any{{"text": cfg.SystemInstruction}},
		}
	}
	if cfg.TranscribeUser {
		setup["inputAudioTranscription"] = map[string]any{}
	}
	if cfg.TranscribeModel && !cfg.TextOnly {
		setup["outputAudioTranscription"] = map[string]any{}
	}

	return map[string]any{"setup": setup}
}

type liveSession struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	// events is closed by readLoop and nobody else, so a teardown racing a
	// late server frame can never send on a closed channel.
	events chan Event
	done   chan struct{}
}

func (s *liveSession) SendAudio(_ context.Context, pcm []byte) error {
	payload := map[string]any{
		"realtimeInput": map[string]any{
			"mediaChunks": []map[string]any{{
				"mimeType": "audio/pcm;rate=16000",
				"data":     base64.StdEncoding.EncodeToString(pcm),
			}},
		},
	}
	return s.writeJSON(payload)
}

func (s *liveSession) SendText(_ context.Context, text string) error {
	payload := map[string]any{
		"clientContent": map[string]any{
			"turns": []map[string]any{{
				"role":  "user",
				"parts": []map[string]any{{"text": text}},
			}},
			"turnComplete": true,
		},
	}
	return s.writeJSON(payload)
}

func (s *liveSession) Events() <-chan Event { return s.events }

// Close unblocks readLoop by closing the socket and the done signal;
// readLoop then closes the events channel on its way out.
func (s *liveSession) Close() error {
	var retErr error
	s.closeOnce.Do(func() {
		close(s.done)
		retErr = s.conn.Close()
	})
	return retErr
}

// emit delivers one event unless the session is shutting down.
func (s *liveSession) emit(ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

func (s *liveSession) writeJSON(payload map[string]any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(payload)
}

// serverMessage mirrors the subset of BidiGenerateContent server frames the
// bot consumes.
type serverMessage struct {
	SetupComplete *struct{} `json:"setupComplete"`
	ServerContent *struct {
		ModelTurn *struct {
			Parts []struct {
				Text       string `json:"text"`
				InlineData *struct {
					MimeType string `json:"mimeType"`
					Data     string `json:"data"`
				} `json:"inlineData"`
			} `json:"parts"`
		} `json:"modelTurn"`
		InputTranscription *struct {
			Text string `json:"text"`
		} `json:"inputTranscription"`
		OutputTranscription *struct {
			Text string `json:"text"`
		} `json:"outputTranscription"`
		TurnComplete bool `json:"turnComplete"`
	} `json:"serverContent"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *liveSession) readLoop() {
	defer close(s.events)
	defer s.Close()
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		now := time.Now().UnixMilli()

		if msg.Error != nil {
			if !s.emit(Event{Type: EventError, Detail: msg.Error.Message, Timestamp: now}) {
				return
			}
			continue
		}
		sc := msg.ServerContent
		if sc == nil {
			continue
		}
		if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
			if !s.emit(Event{Type: EventUserTranscript, Text: sc.InputTranscription.Text, Timestamp: now}) {
				return
			}
		}
		if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
			if !s.emit(Event{Type: EventAssistantTranscript, Text: sc.OutputTranscription.Text, Timestamp: now}) {
				return
			}
		}
		if sc.ModelTurn != nil {
			for _, part := range sc.ModelTurn.Parts {
				if part.InlineData != nil && part.InlineData.Data != "" {
					pcm, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
					if err != nil {
						continue
					}
					if !s.emit(Event{Type: EventAudio, PCM: pcm, Timestamp: now}) {
						return
					}
				}
				if part.Text != "" {
					if !s.emit(Event{Type: EventAssistantText, Text: part.Text, Timestamp: now}) {
						return
					}
				}
			}
		}
		if sc.TurnComplete {
			if !s.emit(Event{Type: EventTurnComplete, Timestamp: now}) {
				return
			}
		}
	}
}
