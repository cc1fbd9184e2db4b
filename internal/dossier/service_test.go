package dossier

import (
	"testing"

	"github.com/sebraelab/dossie-server/internal/domain"
	"github.com/sebraelab/dossie-server/internal/msgcat"
	"github.com/sebraelab/dossie-server/internal/room"
)

func newServiceFixture(t *testing.T) (*Service, *room.Registry, string) {
	t.Helper()
	cat, err := msgcat.New("")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	bank, err := LoadBank()
	if err != nil {
		t.Fatalf("load bank: %v", err)
	}
	rooms := room.NewRegistry()
	code := rooms.Create("sala", nil, nil)
	return NewService(rooms, bank, cat), rooms, code
}

func sampleQuestion(title string) *domain.Dossier {
	return &domain.Dossier{
		Title:          title,
		Alternatives:   []string{"a", "b", "c", "d", "e", "f"},
		CorrectAnswers: []int{2, 0},
	}
}

func TestAddQuestionSwitchesRoomToCustom(t *testing.T) {
	svc, rooms, code := newServiceFixture(t)

	if _, err := svc.AddQuestion(code, sampleQuestion("Caso 1")); err != nil {
		t.Fatalf("add: %v", err)
	}
	r := rooms.Get(code)
	if !r.UseCustomDossiers || len(r.CustomDossiers) != 1 {
		t.Fatalf("room not switched to custom list")
	}
	if got := r.CustomDossiers[0].CorrectAnswers; got[0] != 0 || got[1] != 2 {
		t.Fatalf("correct answers not sorted: %v", got)
	}

	list, err := svc.Questions(code)
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if len(list) != 1 || list[0].Title != "Caso 1" {
		t.Fatalf("questions = %d", len(list))
	}
}

func TestAddQuestionValidation(t *testing.T) {
	svc, _, code := newServiceFixture(t)

	cases := []struct {
		name string
		d    *domain.Dossier
	}{
		{"no title", &domain.Dossier{Alternatives: []string{"a", "b", "c", "d", "e", "f"}, CorrectAnswers: []int{0}}},
		{"few alternatives", &domain.Dossier{Title: "t", Alternatives: []string{"a"}, CorrectAnswers: []int{0}}},
		{"no correct", &domain.Dossier{Title: "t", Alternatives: []string{"a", "b", "c", "d", "e", "f"}}},
		{"too many correct", &domain.Dossier{Title: "t", Alternatives: []string{"a", "b", "c", "d", "e", "f"}, CorrectAnswers: []int{0, 1, 2, 3}}},
		{"bad index", &domain.Dossier{Title: "t", Alternatives: []string{"a", "b", "c", "d", "e", "f"}, CorrectAnswers: []int{7}}},
		{"duplicate index", &domain.Dossier{Title: "t", Alternatives: []string{"a", "b", "c", "d", "e", "f"}, CorrectAnswers: []int{1, 1}}},
	}
	for _, tc := range cases {
		_, err := svc.AddQuestion(code, tc.d)
		if err == nil {
			t.Fatalf("%s: accepted", tc.name)
		}
		derr, ok := domain.Expected(err)
		if !ok || derr.Kind != domain.KindValidation {
			t.Fatalf("%s: error = %v", tc.name, err)
		}
	}
}

func TestEditAndDeleteQuestion(t *testing.T) {
	svc, rooms, code := newServiceFixture(t)
	if _, err := svc.AddQuestion(code, sampleQuestion("Original")); err != nil {
		t.Fatalf("add: %v", err)
	}

	if _, err := svc.EditQuestion(code, 0, sampleQuestion("Editado")); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if got := rooms.Get(code).CustomDossiers[0].Title; got != "Editado" {
		t.Fatalf("edit not applied, title = %q", got)
	}

	if _, err := svc.EditQuestion(code, 5, sampleQuestion("x")); err == nil {
		t.Fatalf("edit of missing index accepted")
	}

	if _, err := svc.DeleteQuestion(code, 0); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if rooms.Get(code).UseCustomDossiers {
		t.Fatalf("empty custom list still flagged custom")
	}
	if _, err := svc.DeleteQuestion(code, 0); err == nil {
		t.Fatalf("delete from builtin list accepted")
	}
}

func TestQuestionsFrozenAfterSetup(t *testing.T) {
	svc, rooms, code := newServiceFixture(t)
	rooms.Get(code).Status = domain.StatusInvestigation

	_, err := svc.AddQuestion(code, sampleQuestion("tarde demais"))
	if err == nil {
		t.Fatalf("add accepted after setup")
	}
	derr, ok := domain.Expected(err)
	if !ok || derr.Kind != domain.KindInvalidState {
		t.Fatalf("error = %v", err)
	}
	if _, err := svc.EditQuestion(code, 0, sampleQuestion("x")); err == nil {
		t.Fatalf("edit accepted after setup")
	}
	if _, err := svc.DeleteQuestion(code, 0); err == nil {
		t.Fatalf("delete accepted after setup")
	}
}
