package call

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/nqh2610/lophoconline-sub007/internal/core"
	"github.com/nqh2610/lophoconline-sub007/internal/domain"
)

// ErrSignalingTransport is surfaced only once the bounded retry budget for
// re-establishing the push stream is exhausted.
var ErrSignalingTransport = errors.New("signaling transport lost")

// Signaler is the controller's view of the signaling plane.
type Signaler interface {
	Send(ctx context.Context, env core.Envelope) error
	Events() <-chan core.Envelope
	ConnID() domain.ConnID
	Ready() <-chan struct{}
	Close()
}

// SignalClient keeps one inbound push stream (WebSocket) open against the
// signaling server and posts outbound messages via discrete HTTP calls.
type SignalClient struct {
	baseURL string
	token   string
	httpc   *http.Client

	retries    int
	retryDelay time.Duration
	maxDelay   time.Duration
	pingPeriod time.Duration

	events chan core.Envelope
	ready  chan struct{}

	mu     sync.Mutex
	connID domain.ConnID
	closed bool
	stop   chan struct{}
}

func NewSignalClient(baseURL, token string, retries int, retryDelay, pingPeriod time.Duration) *SignalClient {
	return &SignalClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpc:      &http.Client{Timeout: 10 * time.Second},
		retries:    retries,
		retryDelay: retryDelay,
		maxDelay:   30 * time.Second,
		pingPeriod: pingPeriod,
		events:     make(chan core.Envelope, 32),
		ready:      make(chan struct{}),
		stop:       make(chan struct{}),
	}
}

func (s *SignalClient) Events() <-chan core.Envelope { return s.events }
func (s *SignalClient) Ready() <-chan struct{}       { return s.ready }

func (s *SignalClient) ConnID() domain.ConnID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connID
}

func (s *SignalClient) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.stop)
	s.mu.Unlock()
}

// Run dials the push stream and keeps it alive with exponential backoff. A
// transient drop is absorbed by resuming the same connection descriptor, so
// the server's debounce cancels silently. Once the retry budget is spent
// the events channel closes and the controller surfaces the failure.
func (s *SignalClient) Run(ctx context.Context) error {
	defer close(s.events)

	attempt := 0
	delay := s.retryDelay
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stop:
			return nil
		default:
		}

		err := s.stream(ctx)
		if err == nil {
			return nil // deliberate close
		}
		attempt++
		if attempt > s.retries {
			log.Error().Err(err).Str("module", "call.signal").Int("attempts", attempt).Msg("retry budget exhausted")
			return ErrSignalingTransport
		}
		log.Warn().Err(err).Str("module", "call.signal").Int("attempt", attempt).Dur("backoff", delay).Msg("push stream dropped, retrying")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stop:
			return nil
		}
		delay *= 2
		if delay > s.maxDelay {
			delay = s.maxDelay
		}
	}
}

// stream runs one WebSocket session until it drops. Returns nil only on
// deliberate shutdown.
func (s *SignalClient) stream(ctx context.Context) error {
	u, err := s.streamURL()
	if err != nil {
		return err
	}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("dial signaling: %w", err)
	}
	defer ws.Close()

	streamDone := make(chan struct{})
	defer close(streamDone)

	go func() {
		select {
		case <-ctx.Done():
		case <-s.stop:
		case <-streamDone:
		}
		_ = ws.Close()
	}()

	// Application-level keepalive: the server echoes each ping as a pong,
	// which keeps intermediaries from reaping an otherwise quiet stream.
	if s.pingPeriod > 0 {
		go func() {
			ticker := time.NewTicker(s.pingPeriod)
			defer ticker.Stop()
			for {
				select {
				case <-streamDone:
					return
				case <-ticker.C:
					_ = ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
						return
					}
				}
			}
		}()
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			select {
			case <-s.stop:
				return nil
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("read signaling: %w", err)
			}
		}
		if bytes.Equal(bytes.TrimSpace(data), []byte(`{"type":"pong"}`)) {
			continue
		}
		env, err := core.DecodeEnvelope(data)
		if err != nil {
			log.Warn().Err(err).Str("module", "call.signal").Msg("bad envelope")
			continue
		}
		s.accept(env)
	}
}

func (s *SignalClient) accept(env core.Envelope) {
	// The first join ack names our connection descriptor; it authorizes all
	// later posts and lets a re-dial resume the same physical attempt.
	if env.Type == core.MsgJoin && env.Conn != "" {
		s.mu.Lock()
		first := s.connID == ""
		s.connID = env.Conn
		s.mu.Unlock()
		if first {
			close(s.ready)
		}
		return
	}
	select {
	case s.events <- env:
	default:
		log.Warn().Str("module", "call.signal").Str("type", string(env.Type)).Msg("event buffer full, dropped")
	}
}

func (s *SignalClient) streamURL() (string, error) {
	u, err := url.Parse(s.baseURL + "/api/ws/signal")
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	q := u.Query()
	q.Set("token", s.token)
	if id := s.ConnID(); id != "" {
		q.Set("conn", string(id))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Send posts one outbound message via a discrete call.
func (s *SignalClient) Send(ctx context.Context, env core.Envelope) error {
	env.Conn = s.ConnID()
	if env.Conn == "" {
		return errors.New("signaling not attached yet")
	}
	body, err := env.Encode()
	if err != nil {
		return err
	}

	u := fmt.Sprintf("%s/api/signal?token=%s", s.baseURL, url.QueryEscape(s.token))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("post signal: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("post signal: status %d", resp.StatusCode)
	}
	return nil
}
