package signal

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/nqh2610/lophoconline-sub007/internal/core"
)

// HandlePost accepts one discrete outbound signaling message. The sender is
// authenticated by its admission token and must quote the connection
// descriptor its push stream was assigned; room and identity scoping is then
// stamped server-side, never taken from the payload.
func (ctl *Controller) HandlePost(c *gin.Context) {
	token := streamToken(c)
	adm, err := ctl.Admissions.ValidateAndAdmit(c.Request.Context(), token)
	if err != nil {
		status, reason := admissionStatus(err)
		c.JSON(status, gin.H{"error": reason})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 64*1024))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_body"})
		return
	}
	env, err := core.DecodeEnvelope(body)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad post payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_payload"})
		return
	}

	if env.Conn == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_conn"})
		return
	}
	room, identity, ok := ctl.Orch.Registry.Lookup(env.Conn)
	if !ok || room != adm.Room || identity != adm.Identity {
		c.JSON(http.StatusForbidden, gin.H{"error": "conn_mismatch"})
		return
	}

	ctl.Orch.HandleMessage(adm, env.Conn, env)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}
