package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/nqh2610/lophoconline-sub007/internal/adapters/http"
	"github.com/nqh2610/lophoconline-sub007/internal/admission"
	"github.com/nqh2610/lophoconline-sub007/internal/app"
	"github.com/nqh2610/lophoconline-sub007/internal/config"
	"github.com/nqh2610/lophoconline-sub007/internal/domain"
	"github.com/nqh2610/lophoconline-sub007/internal/observability"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	store, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open session store")
	}
	defer closeStore()

	metrics := observability.NewMetrics(cfg.MetricsNamespace)
	admissions := admission.NewRegistry(store, cfg.JoinEarly, cfg.JoinLate)
	registry := app.NewRegistry()
	manager := app.NewRoomManager(cfg.LeaveDebounce, cfg.RoomGrace)
	manager.SetCountHook(func(n int) { metrics.ActiveRooms.Set(float64(n)) })

	orch := &app.Orchestrator{
		Admissions: admissions,
		Rooms:      manager,
		Registry:   registry,
		Metrics:    metrics,
	}
	manager.SetRetireHook(orch.OnRetire)
	manager.StartJanitor(ctx, cfg.RoomGrace/2)

	r := router.SetupRouter(ctx, cfg, orch, admissions)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("lesson call server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}

// buildStore picks Postgres when a database URL is configured, otherwise an
// in-memory store. Debug mode seeds the memory store with one demo lesson
// and logs its tokens for manual testing.
func buildStore(ctx context.Context, cfg *config.Config) (admission.Store, func(), error) {
	if cfg.DatabaseURL != "" {
		pg, err := admission.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	}

	mem := admission.NewMemoryStore()
	if cfg.Mode == "debug" {
		now := time.Now()
		demo := &domain.Session{
			ID:             uuid.NewString(),
			RoomID:         domain.RoomID("demo-room"),
			TutorID:        domain.Identity("tutor-demo"),
			StudentID:      domain.Identity("student-demo"),
			TutorToken:     uuid.NewString(),
			StudentToken:   uuid.NewString(),
			ScheduledStart: now,
			ScheduledEnd:   now.Add(time.Hour),
			ExpiresAt:      now.Add(24 * time.Hour),
			Status:         domain.SessionConfirmed,
			Paid:           true,
		}
		mem.Put(demo)
		log.Info().
			Str("tutor_token", demo.TutorToken).
			Str("student_token", demo.StudentToken).
			Str("room", string(demo.RoomID)).
			Msg("seeded demo lesson")
	}
	return mem, func() {}, nil
}
