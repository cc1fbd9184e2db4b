package vote

import (
	"reflect"
	"testing"
	"time"

	"github.com/sebraelab/dossie-server/internal/domain"
	"github.com/sebraelab/dossie-server/internal/dossier"
	"github.com/sebraelab/dossie-server/internal/member"
	"github.com/sebraelab/dossie-server/internal/msgcat"
	"github.com/sebraelab/dossie-server/internal/room"
)

type fixture struct {
	rooms   *room.Registry
	members *member.Registry
	ledger  *Ledger
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
	code := rooms.Create("sala", nil, nil)
	members := member.NewRegistry(rooms, cat, member.Options{Capacity: 5, IdleTimeout: 5 * time.Minute})
	ledger := NewLedger(rooms, members, bank, cat, 2)
	return &fixture{rooms: rooms, members: members, ledger: ledger, code: code}
}

func (f *fixture) join(t *testing.T, team, name string) string {
	t.Helper()
	res, err := f.members.JoinTeam(f.code, team, "", name)
	if err != nil {
		t.Fatalf("join %s: %v", name, err)
	}
	return res.UserID
}

func (f *fixture) startGame() {
	f.rooms.Get(f.code).Status = domain.StatusInvestigation
}

func TestSubmitHappyPath(t *testing.T) {
	f := newFixture(t)
	alice := f.join(t, "team_1", "Alice")
	f.startGame()

	msg, err := f.ledger.Submit(f.code, alice, []int{0, 3})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if msg == "" {
		t.Fatalf("empty confirmation message")
	}
	if !f.ledger.HasVoted(f.code, 0, alice) {
		t.Fatalf("ballot not recorded")
	}
	if got := f.ledger.UserVotes(f.code, 0, alice); !reflect.DeepEqual(got, []int{0, 3}) {
		t.Fatalf("stored ballot = %v", got)
	}
	if u := f.members.Get(f.code, alice); !u.HasVoted {
		t.Fatalf("member vote flag not set")
	}
}

func TestSubmitOverwritesBallot(t *testing.T) {
	f := newFixture(t)
	alice := f.join(t, "team_1", "Alice")
	f.startGame()

	if _, err := f.ledger.Submit(f.code, alice, []int{0, 1}); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	// A player may change their mind until the round closes.
	if _, err := f.ledger.Submit(f.code, alice, []int{2, 3}); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if got := f.ledger.UserVotes(f.code, 0, alice); !reflect.DeepEqual(got, []int{2, 3}) {
		t.Fatalf("ballot after resubmit = %v, want [2 3]", got)
	}
	if n := len(f.ledger.RoundVotes(f.code, 0)); n != 1 {
		t.Fatalf("round holds %d ballots, want 1", n)
	}
}

func TestSubmitStatusGating(t *testing.T) {
	f := newFixture(t)
	alice := f.join(t, "team_1", "Alice")

	for _, status := range []domain.Status{domain.StatusSetup, domain.StatusPresentation, domain.StatusResults, domain.StatusFinished} {
		f.rooms.Get(f.code).Status = status
		_, err := f.ledger.Submit(f.code, alice, []int{0, 1})
		if err == nil {
			t.Fatalf("vote accepted while %s", status)
		}
		derr, ok := domain.Expected(err)
		if !ok || derr.Kind != domain.KindInvalidState {
			t.Fatalf("status %s error = %v", status, err)
		}
	}
}

func TestSubmitBallotValidation(t *testing.T) {
	f := newFixture(t)
	alice := f.join(t, "team_1", "Alice")
	f.startGame()

	cases := []struct {
		name   string
		ballot []int
	}{
		{"too few", []int{0}},
		{"too many", []int{0, 1, 2}},
		{"duplicate", []int{1, 1}},
		{"negative", []int{-1, 0}},
		{"out of range", []int{0, 6}},
	}
	for _, tc := range cases {
		_, err := f.ledger.Submit(f.code, alice, tc.ballot)
		if err == nil {
			t.Fatalf("%s: ballot accepted", tc.name)
		}
		derr, ok := domain.Expected(err)
		if !ok || derr.Kind != domain.KindValidation {
			t.Fatalf("%s: error = %v", tc.name, err)
		}
	}
}

func TestSubmitUnknownRoomAndUser(t *testing.T) {
	f := newFixture(t)
	if _, err := f.ledger.Submit("000000", "123", []int{0, 1}); err == nil {
		t.Fatalf("unknown room accepted")
	}
	if _, err := f.ledger.Submit(f.code, "ghost", []int{0, 1}); err == nil {
		t.Fatalf("unknown user accepted")
	}
}

func TestScore(t *testing.T) {
	cases := []struct {
		selected []int
		correct  []int
		want     int
	}{
		{[]int{0, 1}, []int{0, 1, 2}, 20},
		{[]int{0, 5}, []int{0, 1, 2}, 10},
		{[]int{4, 5}, []int{0, 1, 2}, 0},
		{nil, []int{0}, 0},
	}
	for _, tc := range cases {
		if got := Score(tc.selected, tc.correct); got != tc.want {
			t.Fatalf("Score(%v, %v) = %d, want %d", tc.selected, tc.correct, got, tc.want)
		}
	}
}

func TestTeamScoreAndDistribution(t *testing.T) {
	f := newFixture(t)
	alice := f.join(t, "team_1", "Alice")
	bruno := f.join(t, "team_1", "Bruno")
	carla := f.join(t, "team_2", "Carla")
	f.startGame()

	mustSubmit := func(id string, ballot []int) {
		t.Helper()
		if _, err := f.ledger.Submit(f.code, id, ballot); err != nil {
			t.Fatalf("submit %s: %v", id, err)
		}
	}
	mustSubmit(alice, []int{0, 1}) // both correct
	mustSubmit(bruno, []int{0, 5}) // one correct
	mustSubmit(carla, []int{0, 1}) // other team, must not count

	correct := []int{0, 1, 2}
	total, perUser, voters := f.ledger.TeamScore(f.code, 0, []string{alice, bruno}, correct)
	if total != 30 {
		t.Fatalf("team total = %d, want 30", total)
	}
	if perUser[alice] != 20 || perUser[bruno] != 10 {
		t.Fatalf("per-user scores = %v", perUser)
	}
	if len(voters) != 2 {
		t.Fatalf("voters = %v", voters)
	}

	// The tally is scoped to the given users; Carla's ballot stays out.
	counts := f.ledger.Distribution(f.code, 0, []string{alice, bruno}, 6)
	want := []int{2, 1, 0, 0, 0, 1}
	if !reflect.DeepEqual(counts, want) {
		t.Fatalf("distribution = %v, want %v", counts, want)
	}
}

func TestClearRoundAndSentinel(t *testing.T) {
	f := newFixture(t)
	alice := f.join(t, "team_1", "Alice")
	f.startGame()
	if _, err := f.ledger.Submit(f.code, alice, []int{0, 1}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	f.ledger.ClearRound(f.code, 0)
	if f.ledger.HasVoted(f.code, 0, alice) {
		t.Fatalf("ballot survived round clear")
	}

	if _, err := f.ledger.Submit(f.code, alice, []int{2, 3}); err != nil {
		t.Fatalf("resubmit after clear: %v", err)
	}
	f.ledger.ClearRound(f.code, -1)
	if len(f.ledger.RoundVotes(f.code, 0)) != 0 {
		t.Fatalf("ballots survived whole-room clear")
	}
}
