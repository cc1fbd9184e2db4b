package game

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sebraelab/dossie-server/internal/domain"
	"github.com/sebraelab/dossie-server/internal/dossier"
	"github.com/sebraelab/dossie-server/internal/member"
	"github.com/sebraelab/dossie-server/internal/msgcat"
	"github.com/sebraelab/dossie-server/internal/obslog"
	"github.com/sebraelab/dossie-server/internal/presence"
	"github.com/sebraelab/dossie-server/internal/room"
	"github.com/sebraelab/dossie-server/internal/vote"
)

// minTeamsToStart is how many connected teams an investigation needs.
const minTeamsToStart = 2

// Manager drives a room through its lifecycle: setup, investigation rounds,
// results, finish. It owns all round/status mutations on the shared room
// records; the registries it composes own their own state.
type Manager struct {
	mu sync.Mutex

	rooms    *room.Registry
	presence *presence.Tracker
	members  *member.Registry
	votes    *vote.Ledger
	bank     *dossier.Bank
	cat      *msgcat.Catalog

	votesPerUser int
}

func NewManager(rooms *room.Registry, tracker *presence.Tracker, members *member.Registry, votes *vote.Ledger, bank *dossier.Bank, cat *msgcat.Catalog, votesPerUser int) *Manager {
	if votesPerUser <= 0 {
		votesPerUser = 2
	}
	return &Manager{
		rooms:        rooms,
		presence:     tracker,
		members:      members,
		votes:        votes,
		bank:         bank,
		cat:          cat,
		votesPerUser: votesPerUser,
	}
}

// StartInvestigation opens voting on the current round. It refuses to start
// with fewer than two connected teams: a single team playing alone defeats
// the scoring comparison.
func (m *Manager) StartInvestigation(roomCode string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	gameRoom := m.rooms.Get(roomCode)
	if gameRoom == nil {
		return "", domain.NotFound(m.cat.Text("room.not_found", nil))
	}
	if gameRoom.UseCustomDossiers && len(gameRoom.CustomDossiers) == 0 {
		return "", domain.InvalidState(m.cat.Text("room.custom_empty", nil))
	}
	connected := m.presence.Count(roomCode)
	if connected < minTeamsToStart {
		return "", domain.InvalidState(m.cat.Text("game.need_teams", map[string]any{"N": connected}))
	}
	gameRoom.Status = domain.StatusInvestigation

	obslog.L().Info("game_investigation_start",
		zap.String("room_code", roomCode),
		zap.Int("round", gameRoom.CurrentRound),
		zap.Int("connected_teams", connected),
	)
	return m.cat.Text("game.investigation_started", map[string]any{"N": connected}), nil
}

// DossierView is the client-facing shape of one round's case. Alternatives
// come pre-shuffled for the room; the answer fields are filled only when the
// caller asked for the revealed variant (results screens).
type DossierView struct {
	Round          int      `json:"round"`
	TotalRounds    int      `json:"totalRounds"`
	Title          string   `json:"title"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Challenge      string   `json:"challenge"`
	Objective      string   `json:"objective"`
	Alternatives   []string `json:"alternatives"`
	CorrectAnswers []int    `json:"correctAnswers,omitempty"`
	Explanation    string   `json:"explanation,omitempty"`
}

// Dossier returns one round's case with alternatives shuffled for the room.
func (m *Manager) Dossier(roomCode string, round int, reveal bool) (*DossierView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gameRoom := m.rooms.Get(roomCode)
	if gameRoom == nil {
		return nil, domain.NotFound(m.cat.Text("room.not_found", nil))
	}
	list := m.bank.ForRoom(gameRoom)
	if round < 0 || round >= len(list) {
		return nil, domain.Validation(m.cat.Text("game.round_invalid", nil))
	}
	d := list[round]
	shuffled, mapped := ShuffleAlternatives(roomCode, round, d.Alternatives, d.CorrectAnswers)

	view := &DossierView{
		Round:        round,
		TotalRounds:  len(list),
		Title:        d.Title,
		Name:         d.Name,
		Description:  d.Description,
		Challenge:    d.Challenge,
		Objective:    d.Objective,
		Alternatives: shuffled,
	}
	if reveal {
		view.CorrectAnswers = mapped
		view.Explanation = d.Explanation
	}
	return view, nil
}

// AnswerResult is the outcome of a team closing its round.
type AnswerResult struct {
	Score    int    `json:"score"`
	Message  string `json:"message"`
	Advanced bool   `json:"advanced"`
	NewRound int    `json:"newRound"`
	Finished bool   `json:"finished"`
}

// SubmitTeamAnswer consolidates the team's individual ballots into the
// round's team response and score. Each team closes a round exactly once.
// When every connected team has closed, the room advances on its own.
func (m *Manager) SubmitTeamAnswer(roomCode, teamID string) (*AnswerResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	gameRoom := m.rooms.Get(roomCode)
	if gameRoom == nil {
		return nil, domain.NotFound(m.cat.Text("room.not_found", nil))
	}
	team := gameRoom.Team(teamID)
	if team == nil {
		return nil, domain.NotFound(m.cat.Text("team.not_found", nil))
	}
	if gameRoom.Status != domain.StatusInvestigation {
		return nil, domain.InvalidState(m.cat.Text("vote.closed_results", nil))
	}
	round := gameRoom.CurrentRound
	if _, dup := team.Responses[round]; dup {
		return nil, domain.Conflict(m.cat.Text("answer.duplicate", nil))
	}

	list := m.bank.ForRoom(gameRoom)
	if round < 0 || round >= len(list) {
		return nil, domain.Validation(m.cat.Text("game.round_invalid", nil))
	}
	d := list[round]
	shuffled, mapped := ShuffleAlternatives(roomCode, round, d.Alternatives, d.CorrectAnswers)

	teamUsers := m.members.TeamUsers(roomCode, teamID)
	ids := make([]string, 0, len(teamUsers))
	for _, u := range teamUsers {
		ids = append(ids, u.ID)
	}
	total, _, voters := m.votes.TeamScore(roomCode, round, ids, mapped)

	team.Responses[round] = &domain.TeamResponse{
		Score:                total,
		Timestamp:            time.Now(),
		VotingUserIDs:        voters,
		TotalUsers:           len(teamUsers),
		CorrectAnswers:       mapped,
		ShuffledAlternatives: shuffled,
	}
	team.Score += total
	team.RoundScores = append(team.RoundScores, total)
	team.LastActivity = time.Now()

	obslog.L().Info("game_team_answer",
		zap.String("room_code", roomCode),
		zap.String("team_id", teamID),
		zap.Int("round", round),
		zap.Int("score", total),
		zap.Int("voters", len(voters)),
	)

	result := &AnswerResult{
		Score:    total,
		Message:  m.scoreMessage(total),
		NewRound: round,
	}
	if m.allConnectedRespondedLocked(gameRoom, round) {
		m.advanceLocked(gameRoom)
		result.Advanced = true
		result.NewRound = gameRoom.CurrentRound
		result.Finished = gameRoom.Status == domain.StatusFinished
	}
	return result, nil
}

// ResultsView carries the results screen: the round's answer key in
// shuffled space and its explanation.
type ResultsView struct {
	Round          int    `json:"round"`
	CorrectAnswers []int  `json:"correctAnswers"`
	Explanation    string `json:"explanation"`
	Message        string `json:"message"`
}

// ShowResults moves the room to the results screen and reveals the current
// round's answer key.
func (m *Manager) ShowResults(roomCode string) (*ResultsView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gameRoom := m.rooms.Get(roomCode)
	if gameRoom == nil {
		return nil, domain.NotFound(m.cat.Text("room.not_found", nil))
	}
	round := gameRoom.CurrentRound
	list := m.bank.ForRoom(gameRoom)
	if round < 0 || round >= len(list) {
		return nil, domain.Validation(m.cat.Text("game.round_invalid", nil))
	}
	d := list[round]
	_, mapped := ShuffleAlternatives(roomCode, round, d.Alternatives, d.CorrectAnswers)

	gameRoom.Status = domain.StatusResults
	obslog.L().Info("game_show_results",
		zap.String("room_code", roomCode),
		zap.Int("round", round),
	)
	return &ResultsView{
		Round:          round,
		CorrectAnswers: mapped,
		Explanation:    d.Explanation,
		Message:        m.cat.Text("game.results_shown", nil),
	}, nil
}

// NextRound advances the room by facilitator command, finishing the game
// when the last round is done.
func (m *Manager) NextRound(roomCode string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gameRoom := m.rooms.Get(roomCode)
	if gameRoom == nil {
		return "", domain.NotFound(m.cat.Text("room.not_found", nil))
	}
	m.advanceLocked(gameRoom)
	if gameRoom.Status == domain.StatusFinished {
		return m.cat.Text("game.finished", nil), nil
	}
	return m.cat.Text("game.next_round", map[string]any{"Round": gameRoom.CurrentRound + 1}), nil
}

// ResetCurrentRound undoes the current round: team responses and their
// scores are rolled back, ballots and vote flags are cleared, and the room
// returns to investigation so the round can be replayed.
func (m *Manager) ResetCurrentRound(roomCode string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gameRoom := m.rooms.Get(roomCode)
	if gameRoom == nil {
		return "", domain.NotFound(m.cat.Text("room.not_found", nil))
	}
	round := gameRoom.CurrentRound

	for _, team := range gameRoom.Teams {
		resp, ok := team.Responses[round]
		if !ok {
			continue
		}
		team.Score -= resp.Score
		delete(team.Responses, round)
		// The response's score is always the last RoundScores entry,
		// even for a team that skipped earlier rounds.
		if len(team.RoundScores) > 0 {
			team.RoundScores = team.RoundScores[:len(team.RoundScores)-1]
		}
	}
	m.votes.ClearRound(roomCode, round)
	m.members.ClearVoteFlags(roomCode)
	gameRoom.Status = domain.StatusInvestigation
	now := time.Now()
	gameRoom.LastResetTime = &now

	obslog.L().Info("game_round_reset",
		zap.String("room_code", roomCode),
		zap.Int("round", round),
	)
	return m.cat.Text("game.round_reset", map[string]any{"Round": round + 1}), nil
}

// TeamState is one team's slice of the room snapshot.
type TeamState struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Icon         string `json:"icon"`
	Score        int    `json:"score"`
	MemberCount  int    `json:"memberCount"`
	Connected    bool   `json:"connected"`
	HasResponded bool   `json:"hasResponded"`
}

// RoomState is the polling snapshot clients drive their screens from.
type RoomState struct {
	Code          string        `json:"code"`
	Name          string        `json:"name"`
	Status        domain.Status `json:"status"`
	CurrentRound  int           `json:"currentRound"`
	TotalRounds   int           `json:"totalRounds"`
	Teams         []*TeamState  `json:"teams"`
	LastResetTime *time.Time    `json:"lastResetTime,omitempty"`
}

// State assembles the room snapshot across every registry.
func (m *Manager) State(roomCode string) (*RoomState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gameRoom := m.rooms.Get(roomCode)
	if gameRoom == nil {
		return nil, domain.NotFound(m.cat.Text("room.not_found", nil))
	}
	round := gameRoom.CurrentRound
	state := &RoomState{
		Code:          gameRoom.Code,
		Name:          gameRoom.Name,
		Status:        gameRoom.Status,
		CurrentRound:  round,
		TotalRounds:   len(m.bank.ForRoom(gameRoom)),
		LastResetTime: gameRoom.LastResetTime,
	}
	for _, team := range gameRoom.Teams {
		_, responded := team.Responses[round]
		state.Teams = append(state.Teams, &TeamState{
			ID:           team.ID,
			Name:         team.Name,
			Icon:         team.Icon,
			Score:        team.Score,
			MemberCount:  len(m.members.TeamUsers(roomCode, team.ID)),
			Connected:    m.presence.IsActive(roomCode, team.ID),
			HasResponded: responded,
		})
	}
	return state, nil
}

// Standing is one team's final placement.
type Standing struct {
	Rank        int    `json:"rank"`
	TeamID      string `json:"teamId"`
	TeamName    string `json:"teamName"`
	Icon        string `json:"icon"`
	Score       int    `json:"score"`
	RoundScores []int  `json:"roundScores"`
}

// FinalResults ranks the teams by total score, ties sharing a rank.
func (m *Manager) FinalResults(roomCode string) ([]*Standing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gameRoom := m.rooms.Get(roomCode)
	if gameRoom == nil {
		return nil, domain.NotFound(m.cat.Text("room.not_found", nil))
	}
	standings := make([]*Standing, 0, len(gameRoom.Teams))
	for _, team := range gameRoom.Teams {
		standings = append(standings, &Standing{
			TeamID:      team.ID,
			TeamName:    team.Name,
			Icon:        team.Icon,
			Score:       team.Score,
			RoundScores: append([]int(nil), team.RoundScores...),
		})
	}
	sort.SliceStable(standings, func(i, j int) bool {
		if standings[i].Score != standings[j].Score {
			return standings[i].Score > standings[j].Score
		}
		return standings[i].TeamID < standings[j].TeamID
	})
	for i, s := range standings {
		if i > 0 && s.Score == standings[i-1].Score {
			s.Rank = standings[i-1].Rank
			continue
		}
		s.Rank = i + 1
	}
	return standings, nil
}

// AnswerAnalysis classifies one alternative of a played round from the
// team's perspective.
type AnswerAnalysis struct {
	Index    int    `json:"index"`
	Text     string `json:"text"`
	Correct  bool   `json:"correct"`
	Selected bool   `json:"selected"`
	// Outcome is "correct", "wrong", "missed" or "not_selected".
	Outcome string `json:"outcome"`
}

// RoundResult is one round's detail for a team's review screen.
type RoundResult struct {
	Round    int               `json:"round"`
	Title    string            `json:"title"`
	Score    int               `json:"score"`
	MaxScore int               `json:"maxScore"`
	Voters   int               `json:"voters"`
	Answers  []*AnswerAnalysis `json:"answers"`
}

// TeamDetailedResults reconstructs, for every round the team closed, which
// alternatives its members picked and how each one scored. The shuffled
// order stored on the response keeps the review consistent with what the
// players saw.
func (m *Manager) TeamDetailedResults(roomCode, teamID string) ([]*RoundResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gameRoom := m.rooms.Get(roomCode)
	if gameRoom == nil {
		return nil, domain.NotFound(m.cat.Text("room.not_found", nil))
	}
	team := gameRoom.Team(teamID)
	if team == nil {
		return nil, domain.NotFound(m.cat.Text("team.not_found", nil))
	}
	list := m.bank.ForRoom(gameRoom)

	rounds := make([]int, 0, len(team.Responses))
	for round := range team.Responses {
		rounds = append(rounds, round)
	}
	sort.Ints(rounds)

	var out []*RoundResult
	for _, round := range rounds {
		resp := team.Responses[round]

		selected := make(map[int]struct{})
		for _, id := range resp.VotingUserIDs {
			for _, idx := range m.votes.UserVotes(roomCode, round, id) {
				selected[idx] = struct{}{}
			}
		}
		correct := make(map[int]struct{}, len(resp.CorrectAnswers))
		for _, idx := range resp.CorrectAnswers {
			correct[idx] = struct{}{}
		}

		rr := &RoundResult{
			Round:    round,
			Score:    resp.Score,
			MaxScore: resp.TotalUsers * m.votesPerUser * vote.PointsPerCorrect,
			Voters:   len(resp.VotingUserIDs),
		}
		if round < len(list) {
			rr.Title = list[round].Title
		}
		for idx, text := range resp.ShuffledAlternatives {
			_, isCorrect := correct[idx]
			_, isSelected := selected[idx]
			a := &AnswerAnalysis{Index: idx, Text: text, Correct: isCorrect, Selected: isSelected}
			switch {
			case isSelected && isCorrect:
				a.Outcome = "correct"
			case isSelected:
				a.Outcome = "wrong"
			case isCorrect:
				a.Outcome = "missed"
			default:
				a.Outcome = "not_selected"
			}
			rr.Answers = append(rr.Answers, a)
		}
		out = append(out, rr)
	}
	return out, nil
}

// VoterStatus is one member's entry in the team voting panel.
type VoterStatus struct {
	UserID   string `json:"userId"`
	Name     string `json:"name"`
	IsLeader bool   `json:"isLeader"`
	HasVoted bool   `json:"hasVoted"`
}

// VotingStatus summarizes how far a team's voting has progressed this round.
type VotingStatus struct {
	Round    int            `json:"round"`
	Total    int            `json:"total"`
	Voted    int            `json:"voted"`
	AllVoted bool           `json:"allVoted"`
	Users    []*VoterStatus `json:"users"`
}

// TeamVotingStatus reports who in the team has voted in the current round.
func (m *Manager) TeamVotingStatus(roomCode, teamID string) (*VotingStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gameRoom := m.rooms.Get(roomCode)
	if gameRoom == nil {
		return nil, domain.NotFound(m.cat.Text("room.not_found", nil))
	}
	round := gameRoom.CurrentRound
	users := m.members.TeamUsers(roomCode, teamID)

	status := &VotingStatus{Round: round, Total: len(users)}
	for _, u := range users {
		voted := m.votes.HasVoted(roomCode, round, u.ID)
		if voted {
			status.Voted++
		}
		status.Users = append(status.Users, &VoterStatus{
			UserID:   u.ID,
			Name:     u.Name,
			IsLeader: u.IsLeader,
			HasVoted: voted,
		})
	}
	sort.Slice(status.Users, func(i, j int) bool { return status.Users[i].UserID < status.Users[j].UserID })
	status.AllVoted = status.Total > 0 && status.Voted == status.Total
	return status, nil
}

// TeamVoteDistribution tallies, per alternative index, how many of the
// team's members picked it in the round. A negative round means the current
// one. Only the team's own ballots count.
func (m *Manager) TeamVoteDistribution(roomCode, teamID string, round int) ([]int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gameRoom := m.rooms.Get(roomCode)
	if gameRoom == nil {
		return nil, 0, domain.NotFound(m.cat.Text("room.not_found", nil))
	}
	if gameRoom.Team(teamID) == nil {
		return nil, 0, domain.NotFound(m.cat.Text("team.not_found", nil))
	}
	if round < 0 {
		round = gameRoom.CurrentRound
	}
	list := m.bank.ForRoom(gameRoom)
	if round >= len(list) {
		return nil, 0, domain.Validation(m.cat.Text("game.round_invalid", nil))
	}
	teamUsers := m.members.TeamUsers(roomCode, teamID)
	ids := make([]string, 0, len(teamUsers))
	for _, u := range teamUsers {
		ids = append(ids, u.ID)
	}
	counts := m.votes.Distribution(roomCode, round, ids, len(list[round].Alternatives))
	return counts, round, nil
}

// TeamSubmission reports whether the team already closed the current round,
// and with what score.
func (m *Manager) TeamSubmission(roomCode, teamID string) (submitted bool, score int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gameRoom := m.rooms.Get(roomCode)
	if gameRoom == nil {
		return false, 0, domain.NotFound(m.cat.Text("room.not_found", nil))
	}
	team := gameRoom.Team(teamID)
	if team == nil {
		return false, 0, domain.NotFound(m.cat.Text("team.not_found", nil))
	}
	resp, ok := team.Responses[gameRoom.CurrentRound]
	if !ok {
		return false, 0, nil
	}
	return true, resp.Score, nil
}

// CheckTeamAccess answers whether the user may (re)enter the team given the
// room's current phase.
func (m *Manager) CheckTeamAccess(roomCode, teamID, userID string) (bool, string) {
	return m.members.CanAccessTeam(roomCode, teamID, userID)
}

// ResetRoom rolls the room back to setup while keeping membership: scores,
// responses, ballots and vote flags are wiped, presence is cleared so the
// next start requires fresh heartbeats.
func (m *Manager) ResetRoom(roomCode string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.rooms.Reset(roomCode) {
		return "", domain.NotFound(m.cat.Text("room.not_found", nil))
	}
	m.members.ResetVoteState(roomCode)
	m.votes.ClearRound(roomCode, -1)
	m.presence.Remove(roomCode, "*")
	return m.cat.Text("room.reset", nil), nil
}

// ResetAll resets every room and forgets all users, ballots and presence.
func (m *Manager) ResetAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms.ResetAll()
	m.members.ClearAll()
	m.votes.ClearAll()
	m.presence.ClearAll()
	obslog.L().Info("game_reset_all")
}

// advanceLocked moves to the next round, or finishes the game after the
// last one. Vote flags are cleared so the new round starts clean.
func (m *Manager) advanceLocked(gameRoom *domain.Room) {
	total := len(m.bank.ForRoom(gameRoom))
	if gameRoom.CurrentRound >= total-1 {
		gameRoom.Status = domain.StatusFinished
		obslog.L().Info("game_finished", zap.String("room_code", gameRoom.Code))
		return
	}
	gameRoom.CurrentRound++
	gameRoom.Status = domain.StatusInvestigation
	m.members.ClearVoteFlags(gameRoom.Code)
	obslog.L().Info("game_next_round",
		zap.String("room_code", gameRoom.Code),
		zap.Int("round", gameRoom.CurrentRound),
	)
}

// allConnectedRespondedLocked reports whether every connected team has a
// response for the round. Disconnected teams don't block the room.
func (m *Manager) allConnectedRespondedLocked(gameRoom *domain.Room, round int) bool {
	if gameRoom.Status != domain.StatusInvestigation {
		return false
	}
	connected := 0
	for _, team := range gameRoom.Teams {
		if !m.presence.IsActive(gameRoom.Code, team.ID) {
			continue
		}
		connected++
		if _, ok := team.Responses[round]; !ok {
			return false
		}
	}
	return connected > 0
}

func (m *Manager) scoreMessage(score int) string {
	data := map[string]any{"Score": score}
	switch {
	case score >= 40:
		return m.cat.Text("score.perfect", data)
	case score >= 20:
		return m.cat.Text("score.great", data)
	case score >= 10:
		return m.cat.Text("score.good", data)
	default:
		return m.cat.Text("score.none", nil)
	}
}
