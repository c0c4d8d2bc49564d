package call

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nqh2610/lophoconline-sub007/internal/core"
)

// The push stream stays quiet for long stretches; without application-level
// pings an intermediary can reap it. The client must tick pings and swallow
// the pong replies instead of surfacing them as events.
func TestSignalClientKeepsStreamAliveWithPings(t *testing.T) {
	upgrader := websocket.Upgrader{}
	pings := make(chan struct{}, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ws/signal" {
			http.NotFound(w, r)
			return
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer ws.Close()
		ack, err := core.Envelope{Type: core.MsgJoin, Conn: "conn-1"}.Encode()
		if err != nil {
			t.Errorf("encode ack: %v", err)
			return
		}
		if err := ws.WriteMessage(websocket.TextMessage, ack); err != nil {
			return
		}
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if string(data) == `{"type":"ping"}` {
				_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"pong"}`))
				select {
				case pings <- struct{}{}:
				default:
				}
			}
		}
	}))
	defer srv.Close()

	s := NewSignalClient(srv.URL, "tok", 0, 10*time.Millisecond, 20*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()

	select {
	case <-s.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("join ack never arrived")
	}
	if got := s.ConnID(); got != "conn-1" {
		t.Fatalf("ConnID() = %q, want conn-1", got)
	}

	// Two pings proves the ticker keeps going rather than firing once.
	for i := 0; i < 2; i++ {
		select {
		case <-pings:
		case <-time.After(2 * time.Second):
			t.Fatal("no keepalive ping on the stream")
		}
	}

	select {
	case env := <-s.Events():
		t.Fatalf("pong surfaced as event %q", env.Type)
	default:
	}

	s.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after Close")
	}
}
