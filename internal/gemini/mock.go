package gemini

import (
	"context"
	"sync"
)

// MockDialer hands out scriptable sessions for tests and for local runs
// without Google credentials.
type MockDialer struct {
	mu       sync.Mutex
	sessions []*MockSession

	// ConnectErr forces Connect to fail.
	ConnectErr error
}

func NewMockDialer() *MockDialer { return &MockDialer{} }

func (d *MockDialer) Connect(_ context.Context, cfg SessionConfig) (Session, error) {
	if d.ConnectErr != nil {
		return nil, d.ConnectErr
	}
	s := &MockSession{Config: cfg, events: make(chan Event, 64)}
	d.mu.Lock()
	d.sessions = append(d.sessions, s)
	d.mu.Unlock()
	return s, nil
}

// Sessions returns every session opened so far.
func (d *MockDialer) Sessions() []*MockSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*MockSession, len(d.sessions))
	copy(out, d.sessions)
	return out
}

// MockSession records what the bot sends and lets tests script model output.
type MockSession struct {
	Config SessionConfig

	mu        sync.Mutex
	closed    bool
	SentAudio [][]byte
	SentTexts []string

	events chan Event
}

func (s *MockSession) SendAudio(_ context.Context, pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SentAudio = append(s.SentAudio, pcm)
	return nil
}

func (s *MockSession) SendText(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SentTexts = append(s.SentTexts, text)
	return nil
}

func (s *MockSession) Events() <-chan Event { return s.events }

func (s *MockSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

// Emit pushes one scripted model event.
func (s *MockSession) Emit(ev Event) { s.events <- ev }

// Closed reports whether Close was called.
func (s *MockSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Audio returns a snapshot of PCM frames sent to the model.
func (s *MockSession) Audio() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.SentAudio))
	copy(out, s.SentAudio)
	return out
}

// Texts returns a snapshot of injected user turns.
func (s *MockSession) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.SentTexts))
	copy(out, s.SentTexts)
	return out
}
