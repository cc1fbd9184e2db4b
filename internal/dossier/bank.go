package dossier

import (
	"embed"
	"fmt"
	"io/fs"

	yaml "gopkg.in/yaml.v3"

	"github.com/sebraelab/dossie-server/internal/domain"
)

//go:embed dossiers.pt.yaml
var bankFiles embed.FS

// Bank serves a room's question list: the embedded built-in cases, or the
// room's own custom dossiers when it was created with any.
type Bank struct {
	builtin []*domain.Dossier
}

// LoadBank parses the embedded built-in dossier file.
func LoadBank() (*Bank, error) {
	raw, err := fs.ReadFile(bankFiles, "dossiers.pt.yaml")
	if err != nil {
		return nil, fmt.Errorf("read embedded dossiers: %w", err)
	}
	var doc struct {
		Dossiers []*domain.Dossier `yaml:"dossiers"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse embedded dossiers: %w", err)
	}
	if len(doc.Dossiers) == 0 {
		return nil, fmt.Errorf("embedded dossier bank is empty")
	}
	for i, d := range doc.Dossiers {
		if err := Validate(d); err != nil {
			return nil, fmt.Errorf("embedded dossier %d: %w", i, err)
		}
	}
	return &Bank{builtin: doc.Dossiers}, nil
}

// Builtin returns the fixed dossier list shared by every standard room.
func (b *Bank) Builtin() []*domain.Dossier { return b.builtin }

// ForRoom returns the dossier list the given room plays with.
func (b *Bank) ForRoom(room *domain.Room) []*domain.Dossier {
	if room.UseCustomDossiers {
		return room.CustomDossiers
	}
	return b.builtin
}

// AlternativeCount reports how many alternatives the given round offers, so
// vote validation can bound indices. Falls back to the built-in shape when
// the round is out of range.
func (b *Bank) AlternativeCount(room *domain.Room, round int) int {
	list := b.ForRoom(room)
	if round >= 0 && round < len(list) {
		return len(list[round].Alternatives)
	}
	return len(b.builtin[0].Alternatives)
}

// Validate checks the structural rules every dossier must satisfy: at least
// six alternatives and one to three correct indices, all in range.
func Validate(d *domain.Dossier) error {
	if d == nil {
		return fmt.Errorf("nil dossier")
	}
	if len(d.Alternatives) < 6 {
		return fmt.Errorf("need at least 6 alternatives, got %d", len(d.Alternatives))
	}
	if len(d.CorrectAnswers) < 1 || len(d.CorrectAnswers) > 3 {
		return fmt.Errorf("need 1 to 3 correct answers, got %d", len(d.CorrectAnswers))
	}
	for _, idx := range d.CorrectAnswers {
		if idx < 0 || idx >= len(d.Alternatives) {
			return fmt.Errorf("correct answer index %d out of range", idx)
		}
	}
	return nil
}
