package signal

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/nqh2610/lophoconline-sub007/internal/admission"
	"github.com/nqh2610/lophoconline-sub007/internal/domain"
)

func (ctl *Controller) writePump(ctx context.Context, c *WsSignalConn) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

// readPump exists to detect stream loss and answer pings. Outbound signaling
// travels over discrete posts, not this socket, so anything else is noise.
// A read error is NOT a departure by itself: the room actor debounces it.
func (ctl *Controller) readPump(ctx context.Context, adm admission.Admission, connID domain.ConnID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(connID)).Msg("readPump closing")
		ctl.Orch.OnStreamClosed(adm, connID)
		c.Close()
	}()

	c.conn.SetPongHandler(func(string) error { return nil })

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("conn", string(connID)).Msg("readPump ctx done")
			return
		default:
			mt, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signal").Str("conn", string(connID)).Msg("push stream dropped")
				return
			}
			if mt == websocket.TextMessage && string(data) == `{"type":"ping"}` {
				_ = c.TrySend([]byte(`{"type":"pong"}`))
				continue
			}
			log.Warn().Str("module", "signal").Str("conn", string(connID)).Msg("unexpected inbound frame on push stream")
		}
	}
}
