package httpapi

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/valyala/fasthttp"

	"github.com/sebraelab/dossie-server/internal/domain"
	"github.com/sebraelab/dossie-server/internal/dossier"
)

type createRoomRequest struct {
	Name        string `json:"name"`
	CustomTeams []struct {
		Name string `json:"name"`
		Icon string `json:"icon"`
	} `json:"customTeams"`
	CustomDossiers []*domain.Dossier `json:"customDossiers"`
}

func (s *Server) handleCreateRoom(ctx *fasthttp.RequestCtx) {
	if !s.facilitator(ctx) {
		s.denied(ctx)
		return
	}
	var req createRoomRequest
	if err := readBody(ctx, &req); err != nil {
		s.fail(ctx, domain.Validation(s.cat.Text("join.invalid_data", nil)))
		return
	}
	var teams []*domain.Team
	for i, t := range req.CustomTeams {
		teams = append(teams, &domain.Team{
			ID:   fmt.Sprintf("team_%d", i+1),
			Name: t.Name,
			Icon: t.Icon,
		})
	}
	for _, d := range req.CustomDossiers {
		if err := dossier.Validate(d); err != nil {
			s.fail(ctx, domain.Validation(s.cat.Text("question.bad_indices", nil)))
			return
		}
	}
	code := s.rooms.Create(req.Name, teams, req.CustomDossiers)
	s.ok(ctx, s.cat.Text("room.created", nil), map[string]any{"code": code})
}

func (s *Server) handleListRooms(ctx *fasthttp.RequestCtx) {
	if !s.facilitator(ctx) {
		s.denied(ctx)
		return
	}
	type roomSummary struct {
		Code           string `json:"code"`
		Name           string `json:"name"`
		Status         string `json:"status"`
		CurrentRound   int    `json:"currentRound"`
		Teams          int    `json:"teams"`
		Users          int    `json:"users"`
		ConnectedTeams int    `json:"connectedTeams"`
		CreatedAt      string `json:"createdAt"`
	}
	var out []roomSummary
	for _, r := range s.rooms.List() {
		out = append(out, roomSummary{
			Code:           r.Code,
			Name:           r.Name,
			Status:         string(r.Status),
			CurrentRound:   r.CurrentRound,
			Teams:          len(r.Teams),
			Users:          len(s.members.RoomUsers(r.Code)),
			ConnectedTeams: s.presence.Count(r.Code),
			CreatedAt:      r.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	s.ok(ctx, "", map[string]any{"rooms": out})
}

// handleVerifyRoom is the public join-screen lookup: does the code exist,
// and which teams can be picked.
func (s *Server) handleVerifyRoom(ctx *fasthttp.RequestCtx, code string) {
	r := s.rooms.Get(code)
	if r == nil {
		s.failMessage(ctx, s.cat.Text("room.not_found", nil))
		return
	}
	type teamInfo struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Icon string `json:"icon"`
	}
	teams := make([]teamInfo, 0, len(r.Teams))
	for _, t := range r.Teams {
		teams = append(teams, teamInfo{ID: t.ID, Name: t.Name, Icon: t.Icon})
	}
	s.ok(ctx, "", map[string]any{
		"code":   r.Code,
		"name":   r.Name,
		"status": r.Status,
		"teams":  teams,
	})
}

func (s *Server) handleDeleteRoom(ctx *fasthttp.RequestCtx, code string) {
	if !s.facilitator(ctx) {
		s.denied(ctx)
		return
	}
	if !s.rooms.Delete(code) {
		s.failMessage(ctx, s.cat.Text("room.not_found", nil))
		return
	}
	s.members.KickUser(code, "*")
	s.votes.ClearRound(code, -1)
	s.presence.Remove(code, "*")
	s.ok(ctx, s.cat.Text("room.deleted", nil), nil)
}

func (s *Server) handleResetRoom(ctx *fasthttp.RequestCtx, code string) {
	if !s.facilitator(ctx) {
		s.denied(ctx)
		return
	}
	msg, err := s.game.ResetRoom(code)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	s.ok(ctx, msg, nil)
}

func (s *Server) handleResetAll(ctx *fasthttp.RequestCtx) {
	if !s.facilitator(ctx) {
		s.denied(ctx)
		return
	}
	s.game.ResetAll()
	s.ok(ctx, s.cat.Text("room.reset", nil), nil)
}

// handleRoomQR renders the join link as a PNG for projection.
func (s *Server) handleRoomQR(ctx *fasthttp.RequestCtx, code string) {
	if !s.rooms.Exists(code) {
		s.notFound(ctx)
		return
	}
	base := s.cfg.PublicBaseURL
	if base == "" {
		base = "http://" + string(ctx.Host())
	}
	png, err := qrcode.Encode(base+"/join/"+code, qrcode.Medium, 256)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetContentType("image/png")
	ctx.SetBody(png)
}
