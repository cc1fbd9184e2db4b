package member

import (
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sebraelab/dossie-server/internal/domain"
	"github.com/sebraelab/dossie-server/internal/msgcat"
	"github.com/sebraelab/dossie-server/internal/obslog"
	"github.com/sebraelab/dossie-server/internal/room"
)

const idAttempts = 10

// Registry owns every user record, keyed by room code then user id. One
// mutex guards the whole map; reads prune stale users before filtering.
type Registry struct {
	mu    sync.Mutex
	users map[string]map[string]*domain.User

	rooms *room.Registry
	cat   *msgcat.Catalog

	capacity    int
	idleTimeout time.Duration
}

type Options struct {
	// Capacity is the active-member limit per team.
	Capacity int
	// IdleTimeout is how long a user may stay silent before pruning.
	IdleTimeout time.Duration
}

func NewRegistry(rooms *room.Registry, cat *msgcat.Catalog, opts Options) *Registry {
	if opts.Capacity <= 0 {
		opts.Capacity = 5
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 5 * time.Minute
	}
	return &Registry{
		users:       make(map[string]map[string]*domain.User),
		rooms:       rooms,
		cat:         cat,
		capacity:    opts.Capacity,
		idleTimeout: opts.IdleTimeout,
	}
}

// JoinResult is the outcome of a successful JoinTeam.
type JoinResult struct {
	UserID    string `json:"userId"`
	IsNewUser bool   `json:"isNewUser"`
	IsLeader  bool   `json:"isLeader"`
	Message   string `json:"message"`
}

// JoinTeam resolves the caller's identity and places them in the team.
//
// Before the game starts, identity resolves by supplied id first, then by
// case-insensitive name within the room; a match is reactivated (and may
// switch teams), otherwise a new user is created, becoming leader iff the
// team was empty. Once the room is in investigation or results, only known
// users rejoining their own team get through.
func (r *Registry) JoinTeam(roomCode, teamID, userID, userName string) (*JoinResult, error) {
	if roomCode == "" || teamID == "" {
		return nil, domain.Validation(r.cat.Text("join.invalid_data", nil))
	}
	userName = strings.TrimSpace(userName)
	if len([]rune(userName)) < 2 {
		return nil, domain.Validation(r.cat.Text("join.name_too_short", nil))
	}

	gameRoom := r.rooms.Get(roomCode)
	if gameRoom == nil {
		return nil, domain.NotFound(r.cat.Text("room.not_found", nil))
	}
	team := gameRoom.Team(teamID)
	if team == nil {
		return nil, domain.NotFound(r.cat.Text("team.not_found", nil))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked(roomCode)

	if gameRoom.Status.Started() {
		existing := r.findByIDLocked(roomCode, userID)
		if existing == nil {
			return nil, domain.InvalidState(r.cat.Text("join.started_new_user", nil))
		}
		if existing.TeamID != teamID {
			ownTeam := "seu time"
			if t := gameRoom.Team(existing.TeamID); t != nil {
				ownTeam = t.Name
			}
			return nil, domain.Conflict(r.cat.Text("join.started_switch", map[string]any{"Team": ownTeam}))
		}
		existing.IsConnected = true
		existing.LastActivity = time.Now()
		existing.Name = userName
		obslog.L().Info("member_rejoin",
			zap.String("room_code", roomCode),
			zap.String("team_id", teamID),
			zap.String("user_id", existing.ID),
		)
		return &JoinResult{
			UserID:   existing.ID,
			IsLeader: existing.IsLeader,
			Message:  r.cat.Text("join.welcome_back", map[string]any{"Name": existing.Name}),
		}, nil
	}

	roomUsers, ok := r.users[roomCode]
	if !ok {
		roomUsers = make(map[string]*domain.User)
		r.users[roomCode] = roomUsers
	}

	teamCount := 0
	for _, u := range roomUsers {
		if u.TeamID == teamID {
			teamCount++
		}
	}
	if teamCount >= r.capacity {
		return nil, domain.Conflict(r.cat.Text("join.team_full", map[string]any{"Max": r.capacity}))
	}

	existing := r.findByIDLocked(roomCode, userID)
	if existing == nil {
		existing = r.findByNameLocked(roomCode, userName)
	}
	if existing != nil {
		existing.TeamID = teamID
		existing.IsConnected = true
		existing.LastActivity = time.Now()
		existing.Name = userName
		obslog.L().Info("member_reconnect",
			zap.String("room_code", roomCode),
			zap.String("team_id", teamID),
			zap.String("user_id", existing.ID),
		)
		return &JoinResult{
			UserID:   existing.ID,
			IsLeader: existing.IsLeader,
			Message:  r.cat.Text("join.welcome_back", map[string]any{"Name": existing.Name}),
		}, nil
	}

	now := time.Now()
	newUser := &domain.User{
		ID:           r.generateUserIDLocked(),
		Name:         userName,
		TeamID:       teamID,
		IsConnected:  true,
		IsLeader:     teamCount == 0,
		LastActivity: now,
		JoinedAt:     now,
		CurrentVotes: []int{},
	}
	roomUsers[newUser.ID] = newUser

	obslog.L().Info("member_join",
		zap.String("room_code", roomCode),
		zap.String("team_id", teamID),
		zap.String("user_id", newUser.ID),
		zap.String("user_name", newUser.Name),
		zap.Bool("leader", newUser.IsLeader),
	)

	msgKey := "join.welcome"
	if newUser.IsLeader {
		msgKey = "join.leader"
	}
	return &JoinResult{
		UserID:    newUser.ID,
		IsNewUser: true,
		IsLeader:  newUser.IsLeader,
		Message:   r.cat.Text(msgKey, nil),
	}, nil
}

// CanAccessTeam is the read-only twin of the JoinTeam access rule, used to
// gate re-entry to an in-progress game (page reloads).
func (r *Registry) CanAccessTeam(roomCode, teamID, userID string) (bool, string) {
	gameRoom := r.rooms.Get(roomCode)
	if gameRoom == nil {
		return false, r.cat.Text("room.not_found", nil)
	}
	if !gameRoom.Status.Started() {
		return true, r.cat.Text("access.ok", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked(roomCode)

	user := r.findByIDLocked(roomCode, userID)
	if user == nil {
		return false, r.cat.Text("access.started_no_user", nil)
	}
	if user.TeamID != teamID {
		ownTeam := "outro time"
		if t := gameRoom.Team(user.TeamID); t != nil {
			ownTeam = t.Name
		}
		return false, r.cat.Text("access.started_other_team", map[string]any{"Team": ownTeam})
	}
	return true, r.cat.Text("access.welcome_back", nil)
}

// UpdateUserName renames the user, returning the stored name.
func (r *Registry) UpdateUserName(roomCode, userID, userName string) (string, error) {
	userName = strings.TrimSpace(userName)
	if len([]rune(userName)) < 2 {
		return "", domain.Validation(r.cat.Text("join.name_too_short", nil))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	user := r.findByIDLocked(roomCode, userID)
	if user == nil {
		return "", domain.NotFound(r.cat.Text("user.not_found", nil))
	}
	user.Name = userName
	user.LastActivity = time.Now()
	obslog.L().Info("member_rename",
		zap.String("room_code", roomCode),
		zap.String("user_id", userID),
		zap.String("user_name", userName),
	)
	return user.Name, nil
}

// KickUser removes one user, or the room's entire membership when userID is
// "*". Removing a team leader hands leadership to the longest-standing
// remaining member.
func (r *Registry) KickUser(roomCode, userID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if userID == "*" {
		delete(r.users, roomCode)
		obslog.L().Info("member_kick_all", zap.String("room_code", roomCode))
		return r.cat.Text("user.kicked_all", nil), nil
	}

	user := r.findByIDLocked(roomCode, userID)
	if user == nil {
		return "", domain.NotFound(r.cat.Text("user.not_found", nil))
	}
	delete(r.users[roomCode], userID)
	if user.IsLeader {
		r.reelectLeaderLocked(roomCode, user.TeamID)
	}
	obslog.L().Info("member_kick",
		zap.String("room_code", roomCode),
		zap.String("user_id", userID),
		zap.String("user_name", user.Name),
	)
	return r.cat.Text("user.kicked", map[string]any{"Name": user.Name}), nil
}

// PromoteToLeader demotes every other member of the user's team, then
// promotes the target.
func (r *Registry) PromoteToLeader(roomCode, userID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user := r.findByIDLocked(roomCode, userID)
	if user == nil {
		return "", domain.NotFound(r.cat.Text("user.not_found", nil))
	}
	for _, u := range r.users[roomCode] {
		if u.TeamID == user.TeamID {
			u.IsLeader = false
		}
	}
	user.IsLeader = true
	user.LastActivity = time.Now()
	obslog.L().Info("member_promote",
		zap.String("room_code", roomCode),
		zap.String("user_id", userID),
		zap.String("team_id", user.TeamID),
	)
	return r.cat.Text("user.promoted", map[string]any{"Name": user.Name}), nil
}

// Touch refreshes the user's activity stamp and marks them connected.
func (r *Registry) Touch(roomCode, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user := r.findByIDLocked(roomCode, userID); user != nil {
		user.LastActivity = time.Now()
		user.IsConnected = true
	}
}

// RecordVote flips the user's vote state after the ledger accepted the vote.
// A successful vote also clears the missed-vote counter.
func (r *Registry) RecordVote(roomCode, userID string, votes []int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user := r.findByIDLocked(roomCode, userID)
	if user == nil {
		return
	}
	now := time.Now()
	user.CurrentVotes = append([]int(nil), votes...)
	user.HasVoted = true
	user.LastVoteTime = now
	user.LastActivity = now
	user.MissedVotes = 0
}

// ClearVoteFlags resets the per-round vote markers of every user in the
// room (round reset: miss counters survive).
func (r *Registry) ClearVoteFlags(roomCode string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users[roomCode] {
		u.HasVoted = false
		u.CurrentVotes = []int{}
	}
}

// ResetVoteState additionally zeroes miss counters (full room reset).
func (r *Registry) ResetVoteState(roomCode string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users[roomCode] {
		u.HasVoted = false
		u.CurrentVotes = []int{}
		u.MissedVotes = 0
	}
}

// RoomUsers returns every live user in the room after pruning. The pointers
// are the registry's own records; callers treat them as read-only.
func (r *Registry) RoomUsers(roomCode string) []*domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked(roomCode)
	out := make([]*domain.User, 0, len(r.users[roomCode]))
	for _, u := range r.users[roomCode] {
		out = append(out, u)
	}
	return out
}

// TeamUsers returns the room's users filtered to one team, after pruning.
func (r *Registry) TeamUsers(roomCode, teamID string) []*domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked(roomCode)
	var out []*domain.User
	for _, u := range r.users[roomCode] {
		if u.TeamID == teamID {
			out = append(out, u)
		}
	}
	return out
}

// Get returns the user record or nil, without pruning.
func (r *Registry) Get(roomCode, userID string) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findByIDLocked(roomCode, userID)
}

func (r *Registry) IsLeader(roomCode, userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	user := r.findByIDLocked(roomCode, userID)
	return user != nil && user.IsLeader
}

// UserTeam reports the team the user currently belongs to.
func (r *Registry) UserTeam(roomCode, userID string) (teamID, teamName string, ok bool) {
	gameRoom := r.rooms.Get(roomCode)
	if gameRoom == nil {
		return "", "", false
	}
	r.mu.Lock()
	user := r.findByIDLocked(roomCode, userID)
	r.mu.Unlock()
	if user == nil {
		return "", "", false
	}
	if t := gameRoom.Team(user.TeamID); t != nil {
		return user.TeamID, t.Name, true
	}
	return user.TeamID, "", true
}

// ClearAll wipes membership for every room.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = make(map[string]map[string]*domain.User)
	obslog.L().Info("member_clear_all")
}

// pruneLocked drops users idle past the timeout. While the room is showing
// results, users who have not voted accrue a miss and are dropped past one
// consecutive miss; attendance enforcement is coupled to the results phase,
// not to voting itself.
func (r *Registry) pruneLocked(roomCode string) {
	roomUsers, ok := r.users[roomCode]
	if !ok {
		return
	}
	gameRoom := r.rooms.Get(roomCode)
	if gameRoom == nil {
		return
	}

	now := time.Now()
	var drop []string
	for id, u := range roomUsers {
		if now.Sub(u.LastActivity) > r.idleTimeout {
			drop = append(drop, id)
			obslog.L().Info("member_prune_idle",
				zap.String("room_code", roomCode),
				zap.String("user_id", id),
				zap.String("user_name", u.Name),
			)
			continue
		}
		if gameRoom.Status == domain.StatusResults && !u.HasVoted {
			u.MissedVotes++
			if u.MissedVotes > 1 {
				drop = append(drop, id)
				obslog.L().Info("member_prune_missed_votes",
					zap.String("room_code", roomCode),
					zap.String("user_id", id),
					zap.Int("missed", u.MissedVotes),
				)
			}
		}
	}
	for _, id := range drop {
		u := roomUsers[id]
		delete(roomUsers, id)
		if u != nil && u.IsLeader {
			r.reelectLeaderLocked(roomCode, u.TeamID)
		}
	}
}

// reelectLeaderLocked keeps the one-leader invariant after a leader leaves:
// the longest-standing remaining member takes over.
func (r *Registry) reelectLeaderLocked(roomCode, teamID string) {
	var next *domain.User
	for _, u := range r.users[roomCode] {
		if u.TeamID != teamID {
			continue
		}
		if next == nil || u.JoinedAt.Before(next.JoinedAt) || (u.JoinedAt.Equal(next.JoinedAt) && u.ID < next.ID) {
			next = u
		}
	}
	if next != nil {
		next.IsLeader = true
		obslog.L().Info("member_leader_reelect",
			zap.String("room_code", roomCode),
			zap.String("team_id", teamID),
			zap.String("user_id", next.ID),
		)
	}
}

func (r *Registry) findByIDLocked(roomCode, userID string) *domain.User {
	if userID == "" || userID == "undefined" || userID == "null" {
		return nil
	}
	return r.users[roomCode][userID]
}

func (r *Registry) findByNameLocked(roomCode, userName string) *domain.User {
	for _, u := range r.users[roomCode] {
		if strings.EqualFold(u.Name, userName) {
			return u
		}
	}
	return nil
}

// generateUserIDLocked picks a 6-digit id unique across every room; after
// bounded retries it falls back to a uuid-derived token.
func (r *Registry) generateUserIDLocked() string {
	for i := 0; i < idAttempts; i++ {
		id := strconv.Itoa(100000 + rand.Intn(900000))
		if !r.idTakenLocked(id) {
			return id
		}
	}
	return uuid.NewString()[:8]
}

func (r *Registry) idTakenLocked(id string) bool {
	for _, roomUsers := range r.users {
		if _, ok := roomUsers[id]; ok {
			return true
		}
	}
	return false
}
