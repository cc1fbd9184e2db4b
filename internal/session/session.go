package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is an authenticated browser session. Facilitator sessions carry
// only the role; player sessions additionally remember where the player was
// so a reload can offer the way back. Game state never lives here; losing
// the store only forces a re-login or a fresh join.
type Session struct {
	Token     string    `json:"token"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`

	RoomCode string `json:"roomCode,omitempty"`
	TeamID   string `json:"teamId,omitempty"`
	UserID   string `json:"userId,omitempty"`
	UserName string `json:"userName,omitempty"`
}

const (
	RoleFacilitator = "facilitator"
	RolePlayer      = "player"
)

// New mints a facilitator session with a fresh random token.
func New() *Session {
	return &Session{
		Token:     uuid.NewString(),
		Role:      RoleFacilitator,
		CreatedAt: time.Now(),
	}
}

// NewPlayer mints a player session pointing back at the seat just joined.
func NewPlayer(roomCode, teamID, userID, userName string) *Session {
	return &Session{
		Token:     uuid.NewString(),
		Role:      RolePlayer,
		CreatedAt: time.Now(),
		RoomCode:  roomCode,
		TeamID:    teamID,
		UserID:    userID,
		UserName:  userName,
	}
}

// Store persists sessions for their TTL. Load returns (nil, nil) for unknown
// or expired tokens.
type Store interface {
	Save(ctx context.Context, s *Session) error
	Load(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
}

type memoryEntry struct {
	session   *Session
	expiresAt time.Time
}

// MemoryStore keeps sessions in-process. Expired entries are dropped lazily
// on access and in a periodic pass over the whole map.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &MemoryStore{entries: make(map[string]memoryEntry), ttl: ttl}
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[s.Token] = memoryEntry{session: s, expiresAt: time.Now().Add(m.ttl)}
	return nil
}

func (m *MemoryStore) Load(_ context.Context, token string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[token]
	if !ok {
		return nil, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(m.entries, token)
		return nil, nil
	}
	return entry.session, nil
}

func (m *MemoryStore) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, token)
	return nil
}

// Sweep drops every expired entry and reports how many were removed.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	removed := 0
	for token, entry := range m.entries {
		if now.After(entry.expiresAt) {
			delete(m.entries, token)
			removed++
		}
	}
	return removed
}
