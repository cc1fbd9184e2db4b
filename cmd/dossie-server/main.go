package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sebraelab/dossie-server/internal/config"
	"github.com/sebraelab/dossie-server/internal/dossier"
	"github.com/sebraelab/dossie-server/internal/game"
	"github.com/sebraelab/dossie-server/internal/httpapi"
	"github.com/sebraelab/dossie-server/internal/member"
	"github.com/sebraelab/dossie-server/internal/msgcat"
	"github.com/sebraelab/dossie-server/internal/obslog"
	"github.com/sebraelab/dossie-server/internal/presence"
	"github.com/sebraelab/dossie-server/internal/room"
	"github.com/sebraelab/dossie-server/internal/session"
	"github.com/sebraelab/dossie-server/internal/vote"
)

const roomSweepInterval = 10 * time.Minute

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		panic(err)
	}
	defer obslog.Sync()

	cfg, err := config.Load()
	if err != nil {
		obslog.L().Fatal("config_load_failed", zap.Error(err))
	}

	cat, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		obslog.L().Fatal("msgcat_load_failed", zap.Error(err))
	}
	bank, err := dossier.LoadBank()
	if err != nil {
		obslog.L().Fatal("dossier_bank_load_failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sessions session.Store
	if cfg.RedisURL != "" {
		redisStore, err := session.NewRedisStore(ctx, cfg.RedisURL, cfg.SessionTTL)
		if err != nil {
			obslog.L().Fatal("redis_connect_failed", zap.Error(err))
		}
		defer redisStore.Close()
		sessions = redisStore
		obslog.L().Info("session_store", zap.String("backend", "redis"))
	} else {
		sessions = session.NewMemoryStore(cfg.SessionTTL)
		obslog.L().Info("session_store", zap.String("backend", "memory"))
	}

	rooms := room.NewRegistry()
	tracker := presence.NewTracker()
	members := member.NewRegistry(rooms, cat, member.Options{
		Capacity:    cfg.TeamCapacity,
		IdleTimeout: cfg.UserIdleTimeout,
	})
	votes := vote.NewLedger(rooms, members, bank, cat, cfg.VotesPerUser)
	manager := game.NewManager(rooms, tracker, members, votes, bank, cat, cfg.VotesPerUser)
	questions := dossier.NewService(rooms, bank, cat)

	server := httpapi.NewServer(httpapi.Deps{
		Config:    cfg,
		Catalog:   cat,
		Rooms:     rooms,
		Presence:  tracker,
		Members:   members,
		Votes:     votes,
		Game:      manager,
		Questions: questions,
		Bank:      bank,
		Sessions:  sessions,
	})

	go sweepRooms(ctx, rooms, members, votes, tracker, cfg.RoomIdleTTL)

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case <-ctx.Done():
		obslog.L().Info("shutdown_signal")
	case err := <-errCh:
		obslog.L().Error("server_stopped", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		obslog.L().Error("shutdown_failed", zap.Error(err))
	}
	obslog.L().Info("shutdown_complete")
}

// sweepRooms periodically deletes idle rooms and everything hanging off
// them in the other registries.
func sweepRooms(ctx context.Context, rooms *room.Registry, members *member.Registry, votes *vote.Ledger, tracker *presence.Tracker, maxIdle time.Duration) {
	ticker := time.NewTicker(roomSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, code := range rooms.SweepIdle(maxIdle) {
				members.KickUser(code, "*")
				votes.ClearRound(code, -1)
				tracker.Remove(code, "*")
			}
		}
	}
}
