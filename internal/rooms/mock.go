package rooms

import (
	"context"
	"fmt"
	"sync"
)

// MockProvider is an in-memory Provider for tests.
type MockProvider struct {
	mu      sync.Mutex
	counter int

	// CreateErr / TokenErr force the corresponding call to fail.
	CreateErr error
	TokenErr  error
}

func NewMockProvider() *MockProvider { return &MockProvider{} }

func (p *MockProvider) CreateRoom(_ context.Context) (Room, error) {
	if p.CreateErr != nil {
		return Room{}, p.CreateErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counter++
	name := fmt.Sprintf("room-%d", p.counter)
	return Room{Name: name, URL: "https://mock.daily.co/" + name}, nil
}

func (p *MockProvider) MintToken(_ context.Context, roomName string, owner bool) (string, error) {
	if p.TokenErr != nil {
		return "", p.TokenErr
	}
	if owner {
		return "bot-token-" + roomName, nil
	}
	return "client-token-" + roomName, nil
}

// MockTransport is a scriptable Transport for bot tests.
type MockTransport struct {
	mu          sync.Mutex
	joined      bool
	left        bool
	JoinErr     error
	AppMsgErr   error
	SentAudio   [][]byte
	AppMessages []any

	events  chan Event
	audioIn chan []byte
}

func NewMockTransport() *MockTransport {
	return &MockTransport{
		events:  make(chan Event, 16),
		audioIn: make(chan []byte, 16),
	}
}

func (t *MockTransport) Join(_ context.Context) error {
	if t.JoinErr != nil {
		return t.JoinErr
	}
	t.mu.Lock()
	t.joined = true
	t.mu.Unlock()
	return nil
}

func (t *MockTransport) Events() <-chan Event   { return t.events }
func (t *MockTransport) AudioIn() <-chan []byte { return t.audioIn }

func (t *MockTransport) SendAudio(_ context.Context, pcm []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.SentAudio = append(t.SentAudio, pcm)
	return nil
}

func (t *MockTransport) SendAppMessage(_ context.Context, payload any) error {
	if t.AppMsgErr != nil {
		return t.AppMsgErr
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.AppMessages = append(t.AppMessages, payload)
	return nil
}

func (t *MockTransport) Leave() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.left {
		t.left = true
		close(t.events)
		close(t.audioIn)
	}
	return nil
}

// Emit pushes a lifecycle event into the bot's event loop.
func (t *MockTransport) Emit(ev Event) { t.events <- ev }

// EmitAudio pushes one captured PCM frame.
func (t *MockTransport) EmitAudio(pcm []byte) { t.audioIn <- pcm }

// Joined reports whether Join was called.
func (t *MockTransport) Joined() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.joined
}

// Left reports whether Leave was called.
func (t *MockTransport) Left() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.left
}

// Audio returns a snapshot of PCM frames sent into the room so far.
func (t *MockTransport) Audio() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.SentAudio))
	copy(out, t.SentAudio)
	return out
}

// Messages returns a snapshot of app messages sent so far.
func (t *MockTransport) Messages() []any {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]any, len(t.AppMessages))
	copy(out, t.AppMessages)
	return out
}
