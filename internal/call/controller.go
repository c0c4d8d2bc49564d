package call

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/nqh2610/lophoconline-sub007/internal/core"
	"github.com/nqh2610/lophoconline-sub007/internal/domain"
)

// MediaFactory builds one fresh media connection per attempt.
type MediaFactory func() (core.MediaConnection, error)

type Config struct {
	Room     domain.RoomID
	Identity domain.Identity
	Role     domain.Role

	// RemountWindow is how long a second Initialize call counts as a
	// duplicate of an incomplete first one (host environments may re-invoke
	// setup on remount).
	RemountWindow      time.Duration
	NegotiationTimeout time.Duration
	// PeerLeftHold keeps remote media sinks warm after peer-left, absorbing
	// the other side's transient signaling drop.
	PeerLeftHold time.Duration
}

// Notice is a user-facing message the UI should show.
type Notice struct {
	Kind string
	Text string
}

// Controller owns the one logical peer connection of a room membership.
type Controller struct {
	cfg      Config
	sig      Signaler
	newMedia MediaFactory

	mu         sync.Mutex
	state      State
	initAt     time.Time
	initDone   bool
	superseded bool
	media      core.MediaConnection
	peerConn   domain.ConnID
	peerReady  chan struct{}
	leftTimer  *time.Timer
	done       chan struct{}

	onState    func(State)
	onNotice   func(Notice)
	onMedia    func(core.MediaConnection)
	onPeerGone func()
}

func NewController(cfg Config, sig Signaler, newMedia MediaFactory) *Controller {
	return &Controller{
		cfg:       cfg,
		sig:       sig,
		newMedia:  newMedia,
		state:     StateIdle,
		peerReady: make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (c *Controller) OnState(fn func(State))   { c.onState = fn }
func (c *Controller) OnNotice(fn func(Notice)) { c.onNotice = fn }
func (c *Controller) OnPeerGone(fn func())     { c.onPeerGone = fn }

// OnMediaAttempt fires with the fresh media connection of every attempt,
// before negotiation starts; the data-channel mux attaches here.
func (c *Controller) OnMediaAttempt(fn func(core.MediaConnection)) { c.onMedia = fn }

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	log.Info().Str("module", "call").Str("state", s.String()).Msg("state change")
	if c.onState != nil {
		c.onState(s)
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setStateLocked(s)
}

// Initialize is idempotent within one mount lifecycle: a duplicate call
// arriving inside the remount window before the first completes is ignored;
// a call after completion starts a fresh, independent negotiation. It
// suspends until the transport is ready or the negotiation deadline passes
// (one automatic retry), and returns domain.ErrNegotiationTimeout after
// that for the UI's manual-reconnect affordance.
func (c *Controller) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.superseded {
		c.mu.Unlock()
		return domain.ErrPeerReplaced
	}
	if c.state == StateClosed {
		c.mu.Unlock()
		return errors.New("controller torn down")
	}
	if !c.initDone && !c.initAt.IsZero() && time.Since(c.initAt) < c.cfg.RemountWindow {
		// Re-entrant initialization within the remount window: duplicate.
		c.mu.Unlock()
		log.Debug().Str("module", "call").Msg("duplicate initialize ignored")
		return nil
	}
	c.initAt = time.Now()
	c.initDone = false
	c.setStateLocked(StateInitializing)
	c.mu.Unlock()

	err := c.attempt(ctx)
	if errors.Is(err, domain.ErrNegotiationTimeout) {
		log.Warn().Str("module", "call").Msg("negotiation timed out, retrying once")
		err = c.attempt(ctx)
	}

	c.mu.Lock()
	if err == nil {
		c.initDone = true
		c.setStateLocked(StateConnected)
	}
	c.mu.Unlock()
	return err
}

func (c *Controller) attempt(ctx context.Context) error {
	media, err := c.newMedia()
	if err != nil {
		return err
	}

	connected := make(chan struct{})
	var once sync.Once
	media.OnConnected(func() { once.Do(func() { close(connected) }) })
	media.OnDisconnected(c.onTransportLoss)
	media.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		raw, err := json.Marshal(ci)
		if err != nil {
			return
		}
		_ = c.sig.Send(context.Background(), core.Envelope{
			Type:      core.MsgICE,
			Room:      c.cfg.Room,
			Candidate: string(raw),
		})
	})

	c.mu.Lock()
	if c.media != nil {
		c.media.Close()
	}
	c.media = media
	c.mu.Unlock()

	if c.onMedia != nil {
		c.onMedia(media)
	}
	if err := media.Start(ctx); err != nil {
		return err
	}

	// Signaling handshake: wait for the push stream to hand us a descriptor,
	// then announce the join.
	select {
	case <-c.sig.Ready():
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return c.abortErr()
	}
	if err := c.sig.Send(ctx, core.Envelope{Type: core.MsgJoin, Room: c.cfg.Room}); err != nil {
		return err
	}

	// The negotiation deadline starts only once the other party is there;
	// waiting alone in the room is not a timeout.
	select {
	case <-c.peerWait():
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return c.abortErr()
	}

	c.setState(StateNegotiating)
	if c.isOfferer() {
		if err := c.sendOffer(ctx, media); err != nil {
			return err
		}
	}

	select {
	case <-connected:
		return nil
	case <-time.After(c.cfg.NegotiationTimeout):
		media.Close()
		return domain.ErrNegotiationTimeout
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return c.abortErr()
	}
}

// abortErr describes why an in-flight Initialize was cut short.
func (c *Controller) abortErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.superseded {
		return domain.ErrPeerReplaced
	}
	return errors.New("torn down during initialize")
}

// The tutor side always initiates offers; one deterministic offerer avoids
// glare when both sides learn about each other at the same instant.
func (c *Controller) isOfferer() bool { return c.cfg.Role == domain.RoleTutor }

func (c *Controller) sendOffer(ctx context.Context, media core.MediaConnection) error {
	offer, err := media.CreateAndSetOffer()
	if err != nil {
		return err
	}
	return c.sig.Send(ctx, core.Envelope{
		Type: core.MsgOffer,
		Room: c.cfg.Room,
		SDP:  offer.SDP,
	})
}

func (c *Controller) peerWait() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerReady
}

func (c *Controller) mediaRef() core.MediaConnection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.media
}

// Run consumes signaling events until the context ends or the transport is
// lost for good.
func (c *Controller) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case env, ok := <-c.sig.Events():
			if !ok {
				c.mu.Lock()
				wasClosed := c.state == StateClosed || c.superseded
				c.mu.Unlock()
				if !wasClosed {
					c.notice(Notice{Kind: "transport", Text: "connection to the lesson server was lost"})
					c.Teardown()
				}
				return
			}
			c.handle(ctx, env)
		}
	}
}

func (c *Controller) handle(ctx context.Context, env core.Envelope) {
	switch env.Type {
	case core.MsgPeerJoined:
		c.handlePeerJoined(ctx, env)
	case core.MsgPeerLeft:
		c.handlePeerLeft()
	case core.MsgPeerReplaced:
		if env.OldConn == c.sig.ConnID() {
			c.handleSuperseded()
		}
	case core.MsgOffer:
		c.handleOffer(ctx, env)
	case core.MsgAnswer:
		c.handleAnswer(env)
	case core.MsgICE:
		c.handleICE(env)
	case core.MsgError:
		c.notice(Notice{Kind: "error", Text: env.Error})
	default:
		log.Warn().Str("module", "call").Str("type", string(env.Type)).Msg("unknown signal")
	}
}

func (c *Controller) handlePeerJoined(ctx context.Context, env core.Envelope) {
	c.mu.Lock()
	if c.leftTimer != nil {
		c.leftTimer.Stop()
		c.leftTimer = nil
	}
	prev := c.peerConn
	c.peerConn = env.Conn
	ready := c.peerReady
	select {
	case <-ready:
	default:
		close(ready)
	}
	state := c.state
	media := c.media
	c.mu.Unlock()

	// The other party reappearing on a new device needs a fresh exchange;
	// Initialize's attempt covers the first negotiation.
	if c.isOfferer() && media != nil && prev != "" && prev != env.Conn &&
		(state == StateConnected || state == StateReconnecting) {
		c.setState(StateNegotiating)
		if err := c.sendOffer(ctx, media); err != nil {
			log.Error().Err(err).Str("module", "call").Msg("renegotiation offer")
		}
	}
}

func (c *Controller) handlePeerLeft() {
	c.mu.Lock()
	c.peerConn = ""
	c.peerReady = make(chan struct{})
	if c.leftTimer != nil {
		c.leftTimer.Stop()
	}
	// Keep remote sinks warm briefly: the other side may only have hiccuped.
	c.leftTimer = time.AfterFunc(c.cfg.PeerLeftHold, func() {
		if c.onPeerGone != nil {
			c.onPeerGone()
		}
	})
	c.mu.Unlock()
	c.notice(Notice{Kind: "peer", Text: "the other participant left"})
}

// handleSuperseded ends this device's membership: the identity signed in
// somewhere else. Terminal by design, never retried.
func (c *Controller) handleSuperseded() {
	c.mu.Lock()
	if c.superseded {
		c.mu.Unlock()
		return
	}
	c.superseded = true
	c.setStateLocked(StateClosed)
	media := c.media
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	c.mu.Unlock()

	if media != nil {
		media.Close()
	}
	c.sig.Close()
	c.notice(Notice{Kind: "superseded", Text: "you connected from another device; this one is disconnected"})
}

func (c *Controller) handleOffer(ctx context.Context, env core.Envelope) {
	media := c.mediaRef()
	if media == nil {
		log.Warn().Str("module", "call").Msg("offer before media attempt")
		return
	}
	c.setState(StateNegotiating)
	answer, err := media.ApplyOfferAndCreateAnswer(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  env.SDP,
	})
	if err != nil {
		// A partially applied remote description is discarded, not retried.
		log.Error().Err(err).Str("module", "call").Msg("apply offer")
		return
	}
	if err := c.sig.Send(ctx, core.Envelope{
		Type: core.MsgAnswer,
		Room: c.cfg.Room,
		SDP:  answer.SDP,
	}); err != nil {
		log.Error().Err(err).Str("module", "call").Msg("send answer")
	}
}

func (c *Controller) handleAnswer(env core.Envelope) {
	media := c.mediaRef()
	if media == nil {
		return
	}
	if err := media.ApplyAnswer(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  env.SDP,
	}); err != nil {
		log.Error().Err(err).Str("module", "call").Msg("apply answer")
	}
}

func (c *Controller) handleICE(env core.Envelope) {
	media := c.mediaRef()
	if media == nil {
		return
	}
	var ci webrtc.ICECandidateInit
	if err := json.Unmarshal([]byte(env.Candidate), &ci); err != nil {
		log.Warn().Err(err).Str("module", "call").Msg("bad ice candidate")
		return
	}
	if err := media.AddICECandidate(ci); err != nil {
		log.Error().Err(err).Str("module", "call").Msg("add ice candidate")
	}
}

func (c *Controller) onTransportLoss() {
	c.mu.Lock()
	if c.superseded || c.state == StateClosed || c.state == StateReconnecting {
		c.mu.Unlock()
		return
	}
	c.setStateLocked(StateReconnecting)
	media := c.media
	c.mu.Unlock()

	if c.isOfferer() && media != nil {
		c.setState(StateNegotiating)
		if err := c.sendOffer(context.Background(), media); err != nil {
			log.Error().Err(err).Str("module", "call").Msg("reconnect offer")
		}
	}
}

// Teardown releases everything and is safe to call more than once. An
// in-flight Initialize is abandoned, not awaited.
func (c *Controller) Teardown() {
	c.mu.Lock()
	if c.state == StateClosed && c.media == nil {
		c.mu.Unlock()
		return
	}
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	if c.leftTimer != nil {
		c.leftTimer.Stop()
		c.leftTimer = nil
	}
	media := c.media
	c.media = nil
	c.setStateLocked(StateClosed)
	c.mu.Unlock()

	if media != nil {
		media.Close()
	}
	_ = c.sig.Send(context.Background(), core.Envelope{Type: core.MsgLeave, Room: c.cfg.Room})
	c.sig.Close()
}

func (c *Controller) notice(n Notice) {
	if c.onNotice != nil {
		c.onNotice(n)
	}
}
