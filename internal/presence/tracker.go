package presence

import (
	"sort"
	"sync"
)

// Tracker keeps, per room, the set of team ids considered connected. It is a
// pure heartbeat signal: clients ping every few seconds and the absence of a
// ping is presumed departure. Membership is tracked elsewhere; a team can
// have members yet count as disconnected here.
type Tracker struct {
	mu     sync.Mutex
	active map[string]map[string]struct{} // room code -> team id set
}

func NewTracker() *Tracker {
	return &Tracker{active: make(map[string]map[string]struct{})}
}

// RegisterPing marks the team as connected in the room.
func (t *Tracker) RegisterPing(roomCode, teamID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.active[roomCode]
	if !ok {
		set = make(map[string]struct{})
		t.active[roomCode] = set
	}
	set[teamID] = struct{}{}
}

// Remove drops one team, or every team when teamID is "*". The room entry is
// discarded once empty.
func (t *Tracker) Remove(roomCode, teamID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.active[roomCode]
	if !ok {
		return
	}
	if teamID == "*" {
		delete(t.active, roomCode)
		return
	}
	delete(set, teamID)
	if len(set) == 0 {
		delete(t.active, roomCode)
	}
}

// Count returns how many teams are connected in the room.
func (t *Tracker) Count(roomCode string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active[roomCode])
}

// Connected lists the connected team ids, sorted for stable output.
func (t *Tracker) Connected(roomCode string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	set := t.active[roomCode]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// IsActive reports whether the team has a live presence entry in the room.
func (t *Tracker) IsActive(roomCode, teamID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.active[roomCode]
	if !ok {
		return false
	}
	_, active := set[teamID]
	return active
}

// ClearAll wipes presence for every room (full game reset).
func (t *Tracker) ClearAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = make(map[string]map[string]struct{})
}
