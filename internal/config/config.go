package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	ListenAddr    string
	PublicBaseURL string

	FacilitatorPassword string

	RedisURL string

	MessagesDir string

	RoomIdleTTL     time.Duration
	UserIdleTimeout time.Duration
	SessionTTL      time.Duration

	TeamCapacity int
	VotesPerUser int
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:      ":8080",
		RoomIdleTTL:     2 * time.Hour,
		UserIdleTimeout: 5 * time.Minute,
		SessionTTL:      8 * time.Hour,
		TeamCapacity:    5,
		VotesPerUser:    2,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	cfg.PublicBaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("PUBLIC_BASE_URL")), "/")
	cfg.FacilitatorPassword = strings.TrimSpace(os.Getenv("FACILITATOR_PASSWORD"))
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))

	if v := strings.TrimSpace(os.Getenv("ROOM_IDLE_TTL_MIN")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RoomIdleTTL = time.Duration(n) * time.Minute
		}
	}
	if v := strings.TrimSpace(os.Getenv("USER_IDLE_TIMEOUT_MIN")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.UserIdleTimeout = time.Duration(n) * time.Minute
		}
	}
	if v := strings.TrimSpace(os.Getenv("SESSION_TTL_MIN")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SessionTTL = time.Duration(n) * time.Minute
		}
	}
	if v := strings.TrimSpace(os.Getenv("TEAM_CAPACITY")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TeamCapacity = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("VOTES_PER_USER")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.VotesPerUser = n
		}
	}

	if cfg.FacilitatorPassword == "" {
		return nil, errors.New("FACILITATOR_PASSWORD is required")
	}

	return cfg, nil
}
