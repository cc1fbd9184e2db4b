package vote

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/sebraelab/dossie-server/internal/domain"
	"github.com/sebraelab/dossie-server/internal/dossier"
	"github.com/sebraelab/dossie-server/internal/member"
	"github.com/sebraelab/dossie-server/internal/msgcat"
	"github.com/sebraelab/dossie-server/internal/obslog"
	"github.com/sebraelab/dossie-server/internal/room"
)

// PointsPerCorrect is the score value of one correct selection.
const PointsPerCorrect = 10

// Ledger records individual ballots keyed by room, round and user. The map
// is the single source of truth for who voted what; the per-user HasVoted
// flag in the membership registry is a derived convenience.
type Ledger struct {
	mu    sync.Mutex
	votes map[string]map[int]map[string][]int // room code -> round -> user id -> indices

	rooms   *room.Registry
	members *member.Registry
	bank    *dossier.Bank
	cat     *msgcat.Catalog

	votesPerUser int
}

func NewLedger(rooms *room.Registry, members *member.Registry, bank *dossier.Bank, cat *msgcat.Catalog, votesPerUser int) *Ledger {
	if votesPerUser <= 0 {
		votesPerUser = 2
	}
	return &Ledger{
		votes:        make(map[string]map[int]map[string][]int),
		rooms:        rooms,
		members:      members,
		bank:         bank,
		cat:          cat,
		votesPerUser: votesPerUser,
	}
}

// Submit validates and stores one user's ballot for the room's current
// round. Votes are only open while the room is investigating; the ballot
// must pick exactly the configured number of distinct, in-range indices.
// Submitting again replaces the earlier ballot; votes only freeze once the
// round closes.
func (l *Ledger) Submit(roomCode, userID string, selected []int) (string, error) {
	gameRoom := l.rooms.Get(roomCode)
	if gameRoom == nil {
		return "", domain.NotFound(l.cat.Text("room.not_found", nil))
	}
	user := l.members.Get(roomCode, userID)
	if user == nil {
		return "", domain.NotFound(l.cat.Text("user.not_found", nil))
	}

	switch gameRoom.Status {
	case domain.StatusSetup:
		return "", domain.InvalidState(l.cat.Text("vote.wait_setup", nil))
	case domain.StatusPresentation:
		return "", domain.InvalidState(l.cat.Text("vote.wait_presentation", nil))
	case domain.StatusResults:
		return "", domain.InvalidState(l.cat.Text("vote.closed_results", nil))
	case domain.StatusFinished:
		return "", domain.InvalidState(l.cat.Text("vote.finished", nil))
	}

	if len(selected) != l.votesPerUser {
		return "", domain.Validation(l.cat.Text("vote.need_exact", map[string]any{"N": l.votesPerUser}))
	}
	seen := make(map[int]struct{}, len(selected))
	limit := l.bank.AlternativeCount(gameRoom, gameRoom.CurrentRound)
	for _, idx := range selected {
		if _, dup := seen[idx]; dup {
			return "", domain.Validation(l.cat.Text("vote.need_distinct", map[string]any{"N": l.votesPerUser}))
		}
		seen[idx] = struct{}{}
		if idx < 0 || idx >= limit {
			return "", domain.Validation(l.cat.Text("vote.out_of_range", nil))
		}
	}

	round := gameRoom.CurrentRound

	l.mu.Lock()
	roomVotes, ok := l.votes[roomCode]
	if !ok {
		roomVotes = make(map[int]map[string][]int)
		l.votes[roomCode] = roomVotes
	}
	roundVotes, ok := roomVotes[round]
	if !ok {
		roundVotes = make(map[string][]int)
		roomVotes[round] = roundVotes
	}
	_, changed := roundVotes[userID]
	roundVotes[userID] = append([]int(nil), selected...)
	l.mu.Unlock()

	l.members.RecordVote(roomCode, userID, selected)

	obslog.L().Info("vote_submit",
		zap.String("room_code", roomCode),
		zap.String("user_id", userID),
		zap.Int("round", round),
		zap.Ints("selected", selected),
		zap.Bool("changed", changed),
	)
	return l.cat.Text("vote.ok", nil), nil
}

// HasVoted reports whether the ledger holds a ballot for the user in the
// given round.
func (l *Ledger) HasVoted(roomCode string, round int, userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.votes[roomCode][round][userID]
	return ok
}

// UserVotes returns a copy of the user's ballot, or nil when absent.
func (l *Ledger) UserVotes(roomCode string, round int, userID string) []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	ballot, ok := l.votes[roomCode][round][userID]
	if !ok {
		return nil
	}
	return append([]int(nil), ballot...)
}

// RoundVotes returns a copy of every ballot cast in the round.
func (l *Ledger) RoundVotes(roomCode string, round int) map[string][]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string][]int, len(l.votes[roomCode][round]))
	for id, ballot := range l.votes[roomCode][round] {
		out[id] = append([]int(nil), ballot...)
	}
	return out
}

// Score values one ballot against the round's correct indices.
func Score(selected, correct []int) int {
	set := make(map[int]struct{}, len(correct))
	for _, idx := range correct {
		set[idx] = struct{}{}
	}
	hits := 0
	for _, idx := range selected {
		if _, ok := set[idx]; ok {
			hits++
		}
	}
	return hits * PointsPerCorrect
}

// TeamScore sums the round's ballot scores over the given user ids. It
// returns the team total, the per-user breakdown and the ids that voted.
func (l *Ledger) TeamScore(roomCode string, round int, userIDs []string, correct []int) (total int, perUser map[string]int, voters []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	perUser = make(map[string]int, len(userIDs))
	for _, id := range userIDs {
		ballot, ok := l.votes[roomCode][round][id]
		if !ok {
			continue
		}
		s := Score(ballot, correct)
		perUser[id] = s
		total += s
		voters = append(voters, id)
	}
	sort.Strings(voters)
	return total, perUser, voters
}

// Distribution counts, per alternative index, how many of the given users'
// ballots in the round selected it. Ballots of users outside the set are
// ignored, so a team's tally never leaks another team's votes.
func (l *Ledger) Distribution(roomCode string, round int, userIDs []string, alternatives int) []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	counts := make([]int, alternatives)
	for _, id := range userIDs {
		ballot, ok := l.votes[roomCode][round][id]
		if !ok {
			continue
		}
		for _, idx := range ballot {
			if idx >= 0 && idx < alternatives {
				counts[idx]++
			}
		}
	}
	return counts
}

// ClearRound forgets every ballot of one round, or of the whole room when
// round is negative. The caller clears the membership registry's vote flags
// alongside.
func (l *Ledger) ClearRound(roomCode string, round int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if round < 0 {
		delete(l.votes, roomCode)
		return
	}
	roomVotes, ok := l.votes[roomCode]
	if !ok {
		return
	}
	delete(roomVotes, round)
	if len(roomVotes) == 0 {
		delete(l.votes, roomCode)
	}
}

// ClearAll wipes every ballot in the process.
func (l *Ledger) ClearAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.votes = make(map[string]map[int]map[string][]int)
}
