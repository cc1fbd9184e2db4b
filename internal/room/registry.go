package room

import (
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sebraelab/dossie-server/internal/domain"
	"github.com/sebraelab/dossie-server/internal/obslog"
)

const codeAttempts = 100

// Registry owns every game room in the process. All access goes through one
// mutex; operations are O(#teams) map work, never I/O.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*domain.Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*domain.Room)}
}

// Create registers a new room and returns its 6-digit code. Custom teams and
// custom dossiers are optional; rooms without custom teams get the three
// default ones.
func (r *Registry) Create(name string, customTeams []*domain.Team, customDossiers []*domain.Dossier) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	code := r.generateCode()
	teams := customTeams
	if len(teams) == 0 {
		teams = defaultTeams()
	}
	for _, t := range teams {
		if t.Responses == nil {
			t.Responses = make(map[int]*domain.TeamResponse)
		}
		if t.LastActivity.IsZero() {
			t.LastActivity = time.Now()
		}
	}
	room := &domain.Room{
		Code:              code,
		Name:              name,
		CreatedAt:         time.Now(),
		Status:            domain.StatusSetup,
		Teams:             teams,
		CustomDossiers:    customDossiers,
		UseCustomDossiers: len(customDossiers) > 0,
	}
	r.rooms[code] = room

	obslog.L().Info("room_create",
		zap.String("room_code", code),
		zap.String("room_name", name),
		zap.Int("teams", len(teams)),
		zap.Bool("custom_dossiers", room.UseCustomDossiers),
	)
	return code
}

// Get returns the room or nil. The returned pointer is shared; only the game
// orchestrator mutates round/status fields on it.
func (r *Registry) Get(code string) *domain.Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	if code == "" {
		return nil
	}
	return r.rooms[code]
}

func (r *Registry) List() []*domain.Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		out = append(out, room)
	}
	return out
}

func (r *Registry) Exists(code string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rooms[code]
	return ok
}

// Reset returns the room to setup: round zero, every team's score, round
// history and responses wiped. Membership and the question bank survive; the
// caller clears vote state in the other registries.
func (r *Registry) Reset(code string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[code]
	if !ok {
		return false
	}
	resetRoom(room)
	obslog.L().Info("room_reset", zap.String("room_code", code))
	return true
}

func (r *Registry) Delete(code string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[code]; !ok {
		return false
	}
	delete(r.rooms, code)
	obslog.L().Info("room_delete", zap.String("room_code", code))
	return true
}

func (r *Registry) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, room := range r.rooms {
		resetRoom(room)
	}
	obslog.L().Info("room_reset_all", zap.Int("rooms", len(r.rooms)))
}

// TouchTeam refreshes a team's activity stamp, keeping the room out of the
// idle sweep.
func (r *Registry) TouchTeam(code, teamID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[code]
	if !ok {
		return
	}
	if team := room.Team(teamID); team != nil {
		team.LastActivity = time.Now()
	}
}

// SweepIdle deletes rooms with no team activity for longer than maxIdle and
// returns the deleted codes.
func (r *Registry) SweepIdle(maxIdle time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	var deleted []string
	for code, room := range r.rooms {
		if now.Sub(room.LastActivity()) > maxIdle {
			delete(r.rooms, code)
			deleted = append(deleted, code)
		}
	}
	if len(deleted) > 0 {
		obslog.L().Info("room_sweep", zap.Strings("deleted", deleted))
	}
	return deleted
}

func resetRoom(room *domain.Room) {
	room.CurrentRound = 0
	room.Status = domain.StatusSetup
	room.LastResetTime = nil
	for _, team := range room.Teams {
		team.Score = 0
		team.RoundScores = nil
		team.Responses = make(map[int]*domain.TeamResponse)
	}
}

// generateCode picks an unused 6-digit code. The space is large enough that
// collisions are rare; after bounded retries it falls back to a uuid-derived
// token rather than spinning.
func (r *Registry) generateCode() string {
	for i := 0; i < codeAttempts; i++ {
		code := strconv.Itoa(100000 + rand.Intn(900000))
		if _, taken := r.rooms[code]; !taken {
			return code
		}
	}
	return uuid.NewString()[:6]
}

func defaultTeams() []*domain.Team {
	now := time.Now()
	return []*domain.Team{
		{ID: "team_1", Name: "Equipe A", Icon: "🚀", Responses: make(map[int]*domain.TeamResponse), LastActivity: now},
		{ID: "team_2", Name: "Equipe B", Icon: "🌟", Responses: make(map[int]*domain.TeamResponse), LastActivity: now},
		{ID: "team_3", Name: "Equipe C", Icon: "🎯", Responses: make(map[int]*domain.TeamResponse), LastActivity: now},
	}
}
