package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nqh2610/lophoconline-sub007/internal/adapters/signal"
	"github.com/nqh2610/lophoconline-sub007/internal/admission"
	"github.com/nqh2610/lophoconline-sub007/internal/app"
	"github.com/nqh2610/lophoconline-sub007/internal/config"
	"github.com/nqh2610/lophoconline-sub007/internal/domain"
	"github.com/nqh2610/lophoconline-sub007/internal/observability"
)

func genClientToken() string {
	return uuid.NewString()
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, orch *app.Orchestrator, adm *admission.Registry) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("LessonCall", store))
	r.Use(ClientTokenMiddleware())

	ctl := signal.NewController(orch, adm, cfg.ReadLimit)

	api := r.Group("/api")

	// Pre-join probe: resolves the token without opening a stream, so the
	// client can show a specific reason before the call UI loads.
	api.GET("/admission", func(c *gin.Context) {
		a, err := adm.ValidateAndAdmit(c.Request.Context(), c.Query("token"))
		if err != nil {
			c.JSON(admissionErrStatus(err), gin.H{"error": admissionReason(err)})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"room":     a.Room,
			"identity": a.Identity,
			"role":     a.Role,
			"window": gin.H{
				"open":  a.Window.Open,
				"close": a.Window.Close,
			},
		})
	})

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("sid", c.GetString("client_token")).Msg("ws signal endpoint hit")
		ctl.HandleStream(ctx, c)
	})

	api.POST("/signal", ctl.HandlePost)

	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, orch.Rooms.List())
	})

	r.GET("/metrics", gin.WrapH(observability.MetricsHandler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}

func admissionErrStatus(err error) int {
	if errors.Is(err, domain.ErrUnknownToken) {
		return http.StatusUnauthorized
	}
	return http.StatusForbidden
}

func admissionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnknownToken):
		return "unknown_token"
	case errors.Is(err, domain.ErrAdmissionNotOpen):
		return "not_yet_open"
	case errors.Is(err, domain.ErrAdmissionExpired):
		return "expired"
	case errors.Is(err, domain.ErrAdmissionRevoked):
		return "revoked"
	default:
		return "internal"
	}
}
