package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/nqh2610/lophoconline-sub007/internal/admission"
	"github.com/nqh2610/lophoconline-sub007/internal/app"
	"github.com/nqh2610/lophoconline-sub007/internal/core"
	"github.com/nqh2610/lophoconline-sub007/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

// Controller terminates the per-device push stream and the discrete
// outbound posts. One stream per (room, identity) connection descriptor.
type Controller struct {
	Orch       *app.Orchestrator
	Admissions *admission.Registry
	ReadLimit  int64
}

func NewController(orch *app.Orchestrator, adm *admission.Registry, readLimit int64) *Controller {
	return &Controller{Orch: orch, Admissions: adm, ReadLimit: readLimit}
}

// WsSignalConn is one device's push stream endpoint.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleStream admits the token, upgrades to a WebSocket push stream and
// joins the room. The descriptor is minted here; the client learns it from
// the first event on the stream.
func (ctl *Controller) HandleStream(ctx context.Context, c *gin.Context) {
	token := streamToken(c)
	adm, err := ctl.Admissions.ValidateAndAdmit(c.Request.Context(), token)
	if err != nil {
		status, reason := admissionStatus(err)
		countAdmission(ctl.Orch, reason)
		c.JSON(status, gin.H{"error": reason})
		return
	}
	countAdmission(ctl.Orch, "admitted")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}

	// A re-dial after a transient drop quotes its previous descriptor so the
	// room sees the same physical attempt and cancels the pending removal
	// silently. A fresh device (or a page reload) gets a new one.
	connID := domain.ConnID(c.Query("conn"))
	if connID != "" {
		room, identity, ok := ctl.Orch.Registry.Lookup(connID)
		if !ok || room != adm.Room || identity != adm.Identity {
			connID = ""
		}
	}
	if connID == "" {
		connID = domain.ConnID(uuid.NewString())
	}
	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}
	log.Info().Str("module", "signal").Str("conn", string(connID)).
		Str("room", string(adm.Room)).Str("identity", string(adm.Identity)).Msg("new push stream")

	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Attach(adm, connID, conn, cancel)

	// First event on the stream tells the device its own descriptor; every
	// later post must carry it.
	ctl.sendEnvelope(conn, core.Envelope{
		Type:     core.MsgJoin,
		Room:     adm.Room,
		Identity: adm.Identity,
		Conn:     connID,
	})

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, adm, connID, conn)
}

func streamToken(c *gin.Context) string {
	if t := c.Query("token"); t != "" {
		return t
	}
	t, _ := c.Cookie("lt")
	return t
}

func admissionStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrUnknownToken):
		return http.StatusUnauthorized, "unknown_token"
	case errors.Is(err, domain.ErrAdmissionNotOpen):
		return http.StatusForbidden, "not_yet_open"
	case errors.Is(err, domain.ErrAdmissionExpired):
		return http.StatusForbidden, "expired"
	case errors.Is(err, domain.ErrAdmissionRevoked):
		return http.StatusForbidden, "revoked"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func countAdmission(o *app.Orchestrator, outcome string) {
	if o.Metrics != nil {
		o.Metrics.AdmissionOutcomes.WithLabelValues(outcome).Inc()
	}
}

func (ctl *Controller) sendEnvelope(c *WsSignalConn, env core.Envelope) {
	frame, err := env.Encode()
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("encode envelope")
		return
	}
	if err := c.TrySend(frame); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("type", string(env.Type)).Msg("send dropped")
	}
	if ctl.Orch.Metrics != nil {
		ctl.Orch.Metrics.SignalMessages.WithLabelValues("out", string(env.Type)).Inc()
	}
}
