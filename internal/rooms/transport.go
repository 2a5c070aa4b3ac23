package rooms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// EventType enumerates the room lifecycle events the bot reacts to.
type EventType string

const (
	EventJoined            EventType = "joined"
	EventParticipantJoined EventType = "participant_joined"
	EventParticipantLeft   EventType = "participant_left"
	EventCallState         EventType = "call_state"
)

// Event is one lifecycle notification from the room.
type Event struct {
	Type          EventType
	ParticipantID string
	// State carries the call state for EventCallState ("joined", "left", ...).
	State string
}

// Transport is the bot's connection to one room: lifecycle events, raw PCM
// audio in both directions, and application-level broadcast messages.
type Transport interface {
	// Join connects to the room with audio in/out enabled. Video and
	// ancillary capabilities stay off.
	Join(ctx context.Context) error
	Events() <-chan Event
	// AudioIn delivers 16 kHz PCM frames captured from the room.
	AudioIn() <-chan []byte
	SendAudio(ctx context.Context, pcm []byte) error
	SendAppMessage(ctx context.Context, payload any) error
	Leave() error
}

// TransportDialer builds a Transport for a provisioned room. Injected so
// tests can substitute a fake room.
type TransportDialer func(roomURL, token, botName string) Transport

// wsTransport is a minimal Daily room client: a websocket carrying JSON
// control frames and binary PCM frames. It covers exactly what the bot
// needs (join, lifecycle events, audio, app messages); full media
// negotiation stays with the room service.
type wsTransport struct {
	roomURL string
	token   string
	botName string

	mu     sync.Mutex
	conn   *websocket.Conn
	closed sync.Once
	done   chan struct{}

	// events and audioIn are closed by readLoop and nobody else, so a
	// leave racing a late server frame can never send on a closed channel.
	events  chan Event
	audioIn chan []byte
}

// NewTransport returns the production TransportDialer.
func NewTransport(roomURL, token, botName string) Transport {
	return &wsTransport{
		roomURL: roomURL,
		token:   token,
		botName: botName,
		done:    make(chan struct{}),
		events:  make(chan Event, 64),
		audioIn: make(chan []byte, 256),
	}
}

func (t *wsTransport) Join(ctx context.Context) error {
	wsURL, err := signalingURL(t.roomURL, t.token)
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial room websocket: %w", err)
	}
	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()

	join := map[string]any{
		"type":     "join",
		"userName": t.botName,
		"audioIn":  true,
		"audioOut": true,
		"videoIn":  false,
		"videoOut": false,
	}
	if err := t.writeJSON(join); err != nil {
		_ = conn.Close()
		return fmt.Errorf("send join: %w", err)
	}

	go t.readLoop()
	return nil
}

func (t *wsTransport) Events() <-chan Event   { return t.events }
func (t *wsTransport) AudioIn() <-chan []byte { return t.audioIn }

func (t *wsTransport) SendAudio(_ context.Context, pcm []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return fmt.Errorf("transport not joined")
	}
	return t.conn.WriteMessage(websocket.BinaryMessage, pcm)
}

func (t *wsTransport) SendAppMessage(_ context.Context, payload any) error {
	return t.writeJSON(map[string]any{
		"type": "app-message",
		"to":   "*",
		"data": payload,
	})
}

// Leave unblocks readLoop by closing the socket and the done signal;
// readLoop then closes the event and audio channels on its way out.
func (t *wsTransport) Leave() error {
	var err error
	t.closed.Do(func() {
		close(t.done)
		t.mu.Lock()
		if t.conn != nil {
			_ = t.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"leave"}`))
			err = t.conn.Close()
		}
		t.mu.Unlock()
	})
	return err
}

// emit delivers one lifecycle event unless the transport is leaving.
func (t *wsTransport) emit(ev Event) bool {
	select {
	case t.events <- ev:
		return true
	case <-t.done:
		return false
	}
}

func (t *wsTransport) writeJSON(payload any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return fmt.Errorf("transport not joined")
	}
	return t.conn.WriteJSON(payload)
}

func (t *wsTransport) readLoop() {
	defer func() {
		close(t.events)
		close(t.audioIn)
	}()
	defer t.Leave()
	for {
		msgType, data, err := t.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType == websocket.BinaryMessage {
			select {
			case t.audioIn <- data:
			default:
				// Drop frames instead of stalling the socket when the
				// model is behind.
			}
			continue
		}

		var raw struct {
			Type          string `json:"type"`
			ParticipantID string `json:"participantId"`
			State         string `json:"state"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			continue
		}
		var ev Event
		switch raw.Type {
		case "joined-meeting":
			ev = Event{Type: EventJoined}
		case "participant-joined":
			ev = Event{Type: EventParticipantJoined, ParticipantID: raw.ParticipantID}
		case "participant-left":
			ev = Event{Type: EventParticipantLeft, ParticipantID: raw.ParticipantID}
		case "call-state-updated":
			ev = Event{Type: EventCallState, State: raw.State}
		default:
			continue
		}
		if !t.emit(ev) {
			return
		}
	}
}

// signalingURL derives the websocket endpoint from a room URL, keeping the
// meeting token as a query parameter the way Daily join links do.
func signalingURL(roomURL, token string) (string, error) {
	u, err := url.Parse(roomURL)
	if err != nil {
		return "", fmt.Errorf("parse room url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	q := u.Query()
	q.Set("t", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
