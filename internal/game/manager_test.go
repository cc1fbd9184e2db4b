package game

import (
	"reflect"
	"testing"
	"time"

	"github.com/sebraelab/dossie-server/internal/domain"
	"github.com/sebraelab/dossie-server/internal/dossier"
	"github.com/sebraelab/dossie-server/internal/member"
	"github.com/sebraelab/dossie-server/internal/msgcat"
	"github.com/sebraelab/dossie-server/internal/presence"
	"github.com/sebraelab/dossie-server/internal/room"
	"github.com/sebraelab/dossie-server/internal/vote"
)

type fixture struct {
	rooms   *room.Registry
	tracker *presence.Tracker
	members *member.Registry
	votes   *vote.Ledger
	bank    *dossier.Bank
	manager *Manager
	code    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat, err := msgcat.New("")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	bank, err := dossier.LoadBank()
	if err != nil {
		t.Fatalf("load bank: %v", err)
	}
	rooms := room.NewRegistry()
	tracker := presence.NewTracker()
	members := member.NewRegistry(rooms, cat, member.Options{Capacity: 5, IdleTimeout: 5 * time.Minute})
	votes := vote.NewLedger(rooms, members, bank, cat, 2)
	manager := NewManager(rooms, tracker, members, votes, bank, cat, 2)
	code := rooms.Create("sala", nil, nil)
	return &fixture{
		rooms:   rooms,
		tracker: tracker,
		members: members,
		votes:   votes,
		bank:    bank,
		manager: manager,
		code:    code,
	}
}

func (f *fixture) join(t *testing.T, team, name string) string {
	t.Helper()
	res, err := f.members.JoinTeam(f.code, team, "", name)
	if err != nil {
		t.Fatalf("join %s: %v", name, err)
	}
	return res.UserID
}

// roundAnswers returns the current round's correct indices in shuffled
// space, plus the wrong ones, so tests can vote deterministically.
func (f *fixture) roundAnswers(t *testing.T, round int) (correct, wrong []int) {
	t.Helper()
	r := f.rooms.Get(f.code)
	d := f.bank.ForRoom(r)[round]
	_, correct = ShuffleAlternatives(f.code, round, d.Alternatives, d.CorrectAnswers)
	set := make(map[int]struct{}, len(correct))
	for _, idx := range correct {
		set[idx] = struct{}{}
	}
	for i := 0; i < len(d.Alternatives); i++ {
		if _, ok := set[i]; !ok {
			wrong = append(wrong, i)
		}
	}
	return correct, wrong
}

func (f *fixture) submitVote(t *testing.T, userID string, ballot []int) {
	t.Helper()
	if _, err := f.votes.Submit(f.code, userID, ballot); err != nil {
		t.Fatalf("vote %s: %v", userID, err)
	}
}

func TestStartInvestigationNeedsTwoConnectedTeams(t *testing.T) {
	f := newFixture(t)

	if _, err := f.manager.StartInvestigation(f.code); err == nil {
		t.Fatalf("investigation started with no connected teams")
	} else if derr, _ := domain.Expected(err); derr.Kind != domain.KindInvalidState {
		t.Fatalf("error kind = %s", derr.Kind)
	}

	f.tracker.RegisterPing(f.code, "team_1")
	if _, err := f.manager.StartInvestigation(f.code); err == nil {
		t.Fatalf("investigation started with one connected team")
	}

	f.tracker.RegisterPing(f.code, "team_2")
	if _, err := f.manager.StartInvestigation(f.code); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := f.rooms.Get(f.code).Status; got != domain.StatusInvestigation {
		t.Fatalf("status after start = %s", got)
	}
}

func TestStartInvestigationUnknownRoom(t *testing.T) {
	f := newFixture(t)
	if _, err := f.manager.StartInvestigation("000000"); err == nil {
		t.Fatalf("unknown room started")
	}
}

func TestFullRoundFlow(t *testing.T) {
	f := newFixture(t)
	alice := f.join(t, "team_1", "Alice")
	bruno := f.join(t, "team_1", "Bruno")
	carla := f.join(t, "team_2", "Carla")

	f.tracker.RegisterPing(f.code, "team_1")
	f.tracker.RegisterPing(f.code, "team_2")
	if _, err := f.manager.StartInvestigation(f.code); err != nil {
		t.Fatalf("start: %v", err)
	}

	correct, wrong := f.roundAnswers(t, 0)
	f.submitVote(t, alice, []int{correct[0], correct[1]}) // 20
	f.submitVote(t, bruno, []int{correct[0], wrong[0]})   // 10
	f.submitVote(t, carla, []int{wrong[0], wrong[1]})     // 0

	res1, err := f.manager.SubmitTeamAnswer(f.code, "team_1")
	if err != nil {
		t.Fatalf("team_1 answer: %v", err)
	}
	if res1.Score != 30 {
		t.Fatalf("team_1 score = %d, want 30", res1.Score)
	}
	if res1.Advanced {
		t.Fatalf("room advanced before team_2 answered")
	}

	res2, err := f.manager.SubmitTeamAnswer(f.code, "team_2")
	if err != nil {
		t.Fatalf("team_2 answer: %v", err)
	}
	if res2.Score != 0 {
		t.Fatalf("team_2 score = %d, want 0", res2.Score)
	}
	if !res2.Advanced || res2.NewRound != 1 || res2.Finished {
		t.Fatalf("advance result %+v", res2)
	}

	r := f.rooms.Get(f.code)
	if r.CurrentRound != 1 || r.Status != domain.StatusInvestigation {
		t.Fatalf("room after advance: round=%d status=%s", r.CurrentRound, r.Status)
	}
	team1 := r.Team("team_1")
	if team1.Score != 30 || len(team1.RoundScores) != 1 || team1.RoundScores[0] != 30 {
		t.Fatalf("team_1 totals: score=%d rounds=%v", team1.Score, team1.RoundScores)
	}
	resp := team1.Responses[0]
	if resp == nil || resp.TotalUsers != 2 || len(resp.VotingUserIDs) != 2 {
		t.Fatalf("team_1 response = %+v", resp)
	}
	if u := f.members.Get(f.code, alice); u.HasVoted {
		t.Fatalf("vote flags not cleared on advance")
	}
}

func TestDuplicateTeamAnswer(t *testing.T) {
	f := newFixture(t)
	f.join(t, "team_1", "Alice")
	f.tracker.RegisterPing(f.code, "team_1")
	f.tracker.RegisterPing(f.code, "team_2")
	f.rooms.Get(f.code).Status = domain.StatusInvestigation

	// team_2 is connected but never answers, so the room stays in round 0.
	if _, err := f.manager.SubmitTeamAnswer(f.code, "team_1"); err != nil {
		t.Fatalf("first answer: %v", err)
	}
	_, err := f.manager.SubmitTeamAnswer(f.code, "team_1")
	if err == nil {
		t.Fatalf("duplicate team answer accepted")
	}
	derr, ok := domain.Expected(err)
	if !ok || derr.Kind != domain.KindConflict {
		t.Fatalf("duplicate answer error = %v", err)
	}
}

func TestSubmitTeamAnswerStatusGuard(t *testing.T) {
	f := newFixture(t)
	if _, err := f.manager.SubmitTeamAnswer(f.code, "team_1"); err == nil {
		t.Fatalf("answer accepted during setup")
	}
	if _, err := f.manager.SubmitTeamAnswer(f.code, "team_9"); err == nil {
		t.Fatalf("answer accepted for unknown team")
	}
}

func TestResetCurrentRound(t *testing.T) {
	f := newFixture(t)
	alice := f.join(t, "team_1", "Alice")
	f.rooms.Get(f.code).Status = domain.StatusInvestigation

	correct, _ := f.roundAnswers(t, 0)
	f.submitVote(t, alice, []int{correct[0], correct[1]})
	if _, err := f.manager.SubmitTeamAnswer(f.code, "team_1"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	f.manager.ShowResults(f.code)

	if _, err := f.manager.ResetCurrentRound(f.code); err != nil {
		t.Fatalf("reset round: %v", err)
	}

	r := f.rooms.Get(f.code)
	team := r.Team("team_1")
	if team.Score != 0 || len(team.RoundScores) != 0 || len(team.Responses) != 0 {
		t.Fatalf("round reset left score=%d rounds=%v responses=%d", team.Score, team.RoundScores, len(team.Responses))
	}
	if r.Status != domain.StatusInvestigation {
		t.Fatalf("status after reset = %s", r.Status)
	}
	if r.LastResetTime == nil {
		t.Fatalf("reset time not stamped")
	}
	// The round is replayable: ballots and flags were cleared.
	f.submitVote(t, alice, []int{correct[0], correct[1]})
}

func TestResetRoundDropsLateJoinerRoundScore(t *testing.T) {
	f := newFixture(t)
	alice := f.join(t, "team_1", "Alice")
	carla := f.join(t, "team_2", "Carla")
	f.rooms.Get(f.code).Status = domain.StatusInvestigation

	// team_1 plays round 0 alone, then the facilitator advances.
	correct0, _ := f.roundAnswers(t, 0)
	f.submitVote(t, alice, []int{correct0[0], correct0[1]})
	if _, err := f.manager.SubmitTeamAnswer(f.code, "team_1"); err != nil {
		t.Fatalf("team_1 answer: %v", err)
	}
	if _, err := f.manager.NextRound(f.code); err != nil {
		t.Fatalf("next round: %v", err)
	}

	// team_2's first response lands in round 1.
	correct1, _ := f.roundAnswers(t, 1)
	f.submitVote(t, carla, []int{correct1[0], correct1[1]})
	if _, err := f.manager.SubmitTeamAnswer(f.code, "team_2"); err != nil {
		t.Fatalf("team_2 answer: %v", err)
	}

	if _, err := f.manager.ResetCurrentRound(f.code); err != nil {
		t.Fatalf("reset round: %v", err)
	}

	r := f.rooms.Get(f.code)
	team2 := r.Team("team_2")
	if team2.Score != 0 || len(team2.RoundScores) != 0 || len(team2.Responses) != 0 {
		t.Fatalf("team_2 after reset: score=%d rounds=%v responses=%d", team2.Score, team2.RoundScores, len(team2.Responses))
	}
	team1 := r.Team("team_1")
	if team1.Score != 20 || len(team1.RoundScores) != 1 {
		t.Fatalf("team_1 round 0 state disturbed: score=%d rounds=%v", team1.Score, team1.RoundScores)
	}
}

func TestAdvanceThroughAllRoundsFinishes(t *testing.T) {
	f := newFixture(t)
	r := f.rooms.Get(f.code)
	r.Status = domain.StatusInvestigation
	total := len(f.bank.ForRoom(r))

	for i := 0; i < total-1; i++ {
		if _, err := f.manager.NextRound(f.code); err != nil {
			t.Fatalf("next round %d: %v", i, err)
		}
	}
	if r.CurrentRound != total-1 || r.Status == domain.StatusFinished {
		t.Fatalf("before last advance: round=%d status=%s", r.CurrentRound, r.Status)
	}
	if _, err := f.manager.NextRound(f.code); err != nil {
		t.Fatalf("final advance: %v", err)
	}
	if r.Status != domain.StatusFinished {
		t.Fatalf("game not finished after last round")
	}
}

func TestDossierRevealGating(t *testing.T) {
	f := newFixture(t)

	hidden, err := f.manager.Dossier(f.code, 0, false)
	if err != nil {
		t.Fatalf("dossier: %v", err)
	}
	if len(hidden.CorrectAnswers) != 0 || hidden.Explanation != "" {
		t.Fatalf("unrevealed dossier leaked answers")
	}
	if len(hidden.Alternatives) != 6 {
		t.Fatalf("alternatives = %d", len(hidden.Alternatives))
	}

	revealed, err := f.manager.Dossier(f.code, 0, true)
	if err != nil {
		t.Fatalf("revealed dossier: %v", err)
	}
	if len(revealed.CorrectAnswers) != 3 {
		t.Fatalf("revealed correct answers = %v", revealed.CorrectAnswers)
	}

	if _, err := f.manager.Dossier(f.code, 99, false); err == nil {
		t.Fatalf("out-of-range round accepted")
	}
}

func TestShowResultsRevealsAnswerKey(t *testing.T) {
	f := newFixture(t)
	r := f.rooms.Get(f.code)
	r.Status = domain.StatusInvestigation

	view, err := f.manager.ShowResults(f.code)
	if err != nil {
		t.Fatalf("show results: %v", err)
	}
	if r.Status != domain.StatusResults {
		t.Fatalf("status after show = %s", r.Status)
	}
	correct, _ := f.roundAnswers(t, 0)
	if view.Round != 0 || !reflect.DeepEqual(view.CorrectAnswers, correct) {
		t.Fatalf("results view = %+v, want round 0 answers %v", view, correct)
	}
}

func TestShowResultsRejectsEmptyCustomBank(t *testing.T) {
	f := newFixture(t)
	r := f.rooms.Get(f.code)
	r.UseCustomDossiers = true

	if _, err := f.manager.ShowResults(f.code); err == nil {
		t.Fatalf("results shown with no questions to reveal")
	}
	if r.Status == domain.StatusResults {
		t.Fatalf("empty custom room flipped to results")
	}
}

func TestTeamVoteDistribution(t *testing.T) {
	f := newFixture(t)
	alice := f.join(t, "team_1", "Alice")
	bruno := f.join(t, "team_1", "Bruno")
	carla := f.join(t, "team_2", "Carla")
	f.rooms.Get(f.code).Status = domain.StatusInvestigation

	f.submitVote(t, alice, []int{0, 1})
	f.submitVote(t, bruno, []int{0, 2})
	f.submitVote(t, carla, []int{3, 4})

	counts, round, err := f.manager.TeamVoteDistribution(f.code, "team_1", -1)
	if err != nil {
		t.Fatalf("distribution: %v", err)
	}
	if round != 0 {
		t.Fatalf("round = %d", round)
	}
	// Carla's ballot belongs to team_2 and must not show up.
	if want := []int{2, 1, 1, 0, 0, 0}; !reflect.DeepEqual(counts, want) {
		t.Fatalf("team_1 distribution = %v, want %v", counts, want)
	}

	if _, _, err := f.manager.TeamVoteDistribution(f.code, "team_9", -1); err == nil {
		t.Fatalf("unknown team tallied")
	}
	if _, _, err := f.manager.TeamVoteDistribution(f.code, "team_1", 99); err == nil {
		t.Fatalf("out-of-range round tallied")
	}
}

func TestFinalResultsRanking(t *testing.T) {
	f := newFixture(t)
	r := f.rooms.Get(f.code)
	r.Team("team_1").Score = 20
	r.Team("team_2").Score = 50
	r.Team("team_3").Score = 20

	standings, err := f.manager.FinalResults(f.code)
	if err != nil {
		t.Fatalf("final results: %v", err)
	}
	if standings[0].TeamID != "team_2" || standings[0].Rank != 1 {
		t.Fatalf("winner = %+v", standings[0])
	}
	if standings[1].Rank != 2 || standings[2].Rank != 2 {
		t.Fatalf("tied teams ranks = %d, %d", standings[1].Rank, standings[2].Rank)
	}
}

func TestTeamVotingStatus(t *testing.T) {
	f := newFixture(t)
	alice := f.join(t, "team_1", "Alice")
	f.join(t, "team_1", "Bruno")
	f.rooms.Get(f.code).Status = domain.StatusInvestigation

	correct, _ := f.roundAnswers(t, 0)
	f.submitVote(t, alice, []int{correct[0], correct[1]})

	status, err := f.manager.TeamVotingStatus(f.code, "team_1")
	if err != nil {
		t.Fatalf("voting status: %v", err)
	}
	if status.Total != 2 || status.Voted != 1 || status.AllVoted {
		t.Fatalf("status = %+v", status)
	}
}

func TestTeamDetailedResults(t *testing.T) {
	f := newFixture(t)
	alice := f.join(t, "team_1", "Alice")
	f.rooms.Get(f.code).Status = domain.StatusInvestigation

	correct, wrong := f.roundAnswers(t, 0)
	f.submitVote(t, alice, []int{correct[0], wrong[0]})
	if _, err := f.manager.SubmitTeamAnswer(f.code, "team_1"); err != nil {
		t.Fatalf("answer: %v", err)
	}

	rounds, err := f.manager.TeamDetailedResults(f.code, "team_1")
	if err != nil {
		t.Fatalf("detailed results: %v", err)
	}
	if len(rounds) != 1 {
		t.Fatalf("rounds = %d", len(rounds))
	}
	rr := rounds[0]
	if rr.Score != 10 || rr.MaxScore != 20 {
		t.Fatalf("round score=%d max=%d", rr.Score, rr.MaxScore)
	}
	outcomes := make(map[string]int)
	for _, a := range rr.Answers {
		outcomes[a.Outcome]++
	}
	if outcomes["correct"] != 1 || outcomes["wrong"] != 1 || outcomes["missed"] != 2 || outcomes["not_selected"] != 2 {
		t.Fatalf("outcome breakdown = %v", outcomes)
	}
}

func TestResetRoomKeepsMembership(t *testing.T) {
	f := newFixture(t)
	alice := f.join(t, "team_1", "Alice")
	f.tracker.RegisterPing(f.code, "team_1")
	f.rooms.Get(f.code).Status = domain.StatusInvestigation

	correct, _ := f.roundAnswers(t, 0)
	f.submitVote(t, alice, []int{correct[0], correct[1]})

	if _, err := f.manager.ResetRoom(f.code); err != nil {
		t.Fatalf("reset room: %v", err)
	}
	r := f.rooms.Get(f.code)
	if r.Status != domain.StatusSetup || r.CurrentRound != 0 {
		t.Fatalf("room after reset: status=%s round=%d", r.Status, r.CurrentRound)
	}
	if f.members.Get(f.code, alice) == nil {
		t.Fatalf("membership lost on room reset")
	}
	if f.members.Get(f.code, alice).HasVoted {
		t.Fatalf("vote flag survived room reset")
	}
	if f.tracker.Count(f.code) != 0 {
		t.Fatalf("presence survived room reset")
	}
	if len(f.votes.RoundVotes(f.code, 0)) != 0 {
		t.Fatalf("ballots survived room reset")
	}
}
