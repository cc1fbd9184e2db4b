package dossier

import (
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/sebraelab/dossie-server/internal/domain"
	"github.com/sebraelab/dossie-server/internal/msgcat"
	"github.com/sebraelab/dossie-server/internal/obslog"
	"github.com/sebraelab/dossie-server/internal/room"
)

// Service is the facilitator's question editor for a room's custom dossier
// list. Edits are only allowed while the room is still in setup; once the
// game starts the list is frozen.
type Service struct {
	mu    sync.Mutex
	rooms *room.Registry
	bank  *Bank
	cat   *msgcat.Catalog
}

func NewService(rooms *room.Registry, bank *Bank, cat *msgcat.Catalog) *Service {
	return &Service{rooms: rooms, bank: bank, cat: cat}
}

// Questions returns the dossier list the room currently plays with.
func (s *Service) Questions(roomCode string) ([]*domain.Dossier, error) {
	gameRoom := s.rooms.Get(roomCode)
	if gameRoom == nil {
		return nil, domain.NotFound(s.cat.Text("room.not_found", nil))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.bank.ForRoom(gameRoom)
	out := make([]*domain.Dossier, len(list))
	copy(out, list)
	return out, nil
}

// AddQuestion appends a custom dossier to the room, switching the room onto
// its custom list on the first add.
func (s *Service) AddQuestion(roomCode string, d *domain.Dossier) (string, error) {
	gameRoom, err := s.editableRoom(roomCode)
	if err != nil {
		return "", err
	}
	if err := s.validate(d); err != nil {
		return "", err
	}
	normalize(d)

	s.mu.Lock()
	gameRoom.CustomDossiers = append(gameRoom.CustomDossiers, d)
	gameRoom.UseCustomDossiers = true
	count := len(gameRoom.CustomDossiers)
	s.mu.Unlock()

	obslog.L().Info("question_add",
		zap.String("room_code", roomCode),
		zap.String("title", d.Title),
		zap.Int("total", count),
	)
	return s.cat.Text("question.added", nil), nil
}

// EditQuestion replaces the custom dossier at the given index.
func (s *Service) EditQuestion(roomCode string, index int, d *domain.Dossier) (string, error) {
	gameRoom, err := s.editableRoom(roomCode)
	if err != nil {
		return "", err
	}
	if err := s.validate(d); err != nil {
		return "", err
	}
	normalize(d)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !gameRoom.UseCustomDossiers || index < 0 || index >= len(gameRoom.CustomDossiers) {
		return "", domain.NotFound(s.cat.Text("question.not_found", nil))
	}
	gameRoom.CustomDossiers[index] = d

	obslog.L().Info("question_edit",
		zap.String("room_code", roomCode),
		zap.Int("index", index),
		zap.String("title", d.Title),
	)
	return s.cat.Text("question.updated", nil), nil
}

// DeleteQuestion removes the custom dossier at the given index. Deleting the
// last one switches the room back to the built-in bank.
func (s *Service) DeleteQuestion(roomCode string, index int) (string, error) {
	gameRoom, err := s.editableRoom(roomCode)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !gameRoom.UseCustomDossiers || index < 0 || index >= len(gameRoom.CustomDossiers) {
		return "", domain.NotFound(s.cat.Text("question.not_found", nil))
	}
	gameRoom.CustomDossiers = append(gameRoom.CustomDossiers[:index], gameRoom.CustomDossiers[index+1:]...)
	if len(gameRoom.CustomDossiers) == 0 {
		gameRoom.UseCustomDossiers = false
	}

	obslog.L().Info("question_delete",
		zap.String("room_code", roomCode),
		zap.Int("index", index),
		zap.Int("remaining", len(gameRoom.CustomDossiers)),
	)
	return s.cat.Text("question.deleted", nil), nil
}

func (s *Service) editableRoom(roomCode string) (*domain.Room, error) {
	gameRoom := s.rooms.Get(roomCode)
	if gameRoom == nil {
		return nil, domain.NotFound(s.cat.Text("room.not_found", nil))
	}
	if gameRoom.Status != domain.StatusSetup {
		return nil, domain.InvalidState(s.cat.Text("question.setup_only", nil))
	}
	return gameRoom, nil
}

// validate mirrors Validate but speaks the players' language.
func (s *Service) validate(d *domain.Dossier) error {
	if d == nil || strings.TrimSpace(d.Title) == "" {
		return domain.Validation(s.cat.Text("question.title_required", nil))
	}
	if len(d.Alternatives) < 6 {
		return domain.Validation(s.cat.Text("question.min_alternatives", nil))
	}
	if len(d.CorrectAnswers) < 1 {
		return domain.Validation(s.cat.Text("question.need_correct", nil))
	}
	if len(d.CorrectAnswers) > 3 {
		return domain.Validation(s.cat.Text("question.max_correct", nil))
	}
	seen := make(map[int]struct{}, len(d.CorrectAnswers))
	for _, idx := range d.CorrectAnswers {
		if idx < 0 || idx >= len(d.Alternatives) {
			return domain.Validation(s.cat.Text("question.bad_indices", nil))
		}
		if _, dup := seen[idx]; dup {
			return domain.Validation(s.cat.Text("question.bad_indices", nil))
		}
		seen[idx] = struct{}{}
	}
	return nil
}

func normalize(d *domain.Dossier) {
	d.Title = strings.TrimSpace(d.Title)
	sort.Ints(d.CorrectAnswers)
}
