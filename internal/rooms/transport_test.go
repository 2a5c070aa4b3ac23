package rooms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// A room streaming lifecycle frames faster than the bot drains them must not
// crash the transport when Leave races a buffered-full event channel.
func TestLeaveDuringEventFlood(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if _, _, err := conn.ReadMessage(); err != nil { // join frame
			return
		}
		frame := []byte(`{"type":"participant-joined","participantId":"p"}`)
		for i := 0; i < 200; i++ {
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	transport := NewTransport(srv.URL, "tok", "bot")
	if err := transport.Join(context.Background()); err != nil {
		t.Fatalf("Join() error = %v", err)
	}

	// Let the reader fill the event buffer and block on the next send.
	time.Sleep(50 * time.Millisecond)
	if err := transport.Leave(); err != nil {
		t.Fatalf("Leave() error = %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-transport.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("events channel never closed after Leave")
		}
	}
}
