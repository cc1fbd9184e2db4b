package httpapi

import (
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/sebraelab/dossie-server/internal/domain"
	"github.com/sebraelab/dossie-server/internal/obslog"
	"github.com/sebraelab/dossie-server/internal/session"
)

// userView is the member shape exposed to clients.
type userView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	TeamID      string `json:"teamId"`
	IsLeader    bool   `json:"isLeader"`
	HasVoted    bool   `json:"hasVoted"`
	IsConnected bool   `json:"isConnected"`
}

func toUserViews(users []*domain.User) []userView {
	out := make([]userView, 0, len(users))
	for _, u := range users {
		out = append(out, userView{
			ID:          u.ID,
			Name:        u.Name,
			TeamID:      u.TeamID,
			IsLeader:    u.IsLeader,
			HasVoted:    u.HasVoted,
			IsConnected: u.IsConnected,
		})
	}
	return out
}

// handleTeamPing is the heartbeat: it keeps the team counted as connected
// and refreshes the caller's activity so pruning leaves them alone.
func (s *Server) handleTeamPing(ctx *fasthttp.RequestCtx, code, teamID string) {
	if !s.rooms.Exists(code) {
		s.failMessage(ctx, s.cat.Text("room.not_found", nil))
		return
	}
	var req struct {
		UserID string `json:"userId"`
	}
	if err := readBody(ctx, &req); err != nil {
		s.fail(ctx, domain.Validation(s.cat.Text("join.invalid_data", nil)))
		return
	}
	s.presence.RegisterPing(code, teamID)
	s.rooms.TouchTeam(code, teamID)
	if req.UserID != "" {
		s.members.Touch(code, req.UserID)
	}
	s.ok(ctx, "", nil)
}

func (s *Server) handleTeamDisconnect(ctx *fasthttp.RequestCtx, code, teamID string) {
	s.presence.Remove(code, teamID)
	s.ok(ctx, "", nil)
}

func (s *Server) handleJoinTeam(ctx *fasthttp.RequestCtx, code, teamID string) {
	var req struct {
		UserID   string `json:"userId"`
		UserName string `json:"userName"`
	}
	if err := readBody(ctx, &req); err != nil {
		s.fail(ctx, domain.Validation(s.cat.Text("join.invalid_data", nil)))
		return
	}
	result, err := s.members.JoinTeam(code, teamID, req.UserID, req.UserName)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	s.presence.RegisterPing(code, teamID)
	s.rooms.TouchTeam(code, teamID)

	// Remember the seat so a reload can route the player back.
	sess := session.NewPlayer(code, teamID, result.UserID, req.UserName)
	if err := s.sessions.Save(ctx, sess); err != nil {
		obslog.L().Error("session_save_failed", zap.Error(err))
	} else {
		s.setSessionCookie(ctx, sess.Token)
	}

	s.ok(ctx, result.Message, map[string]any{
		"userId":    result.UserID,
		"isNewUser": result.IsNewUser,
		"isLeader":  result.IsLeader,
	})
}

func (s *Server) handleTeamAccess(ctx *fasthttp.RequestCtx, code, teamID string) {
	userID := string(ctx.QueryArgs().Peek("userId"))
	allowed, msg := s.game.CheckTeamAccess(code, teamID, userID)
	if !allowed {
		s.failMessage(ctx, msg)
		return
	}
	s.ok(ctx, msg, nil)
}

func (s *Server) handleTeamUsers(ctx *fasthttp.RequestCtx, code, teamID string) {
	if !s.rooms.Exists(code) {
		s.failMessage(ctx, s.cat.Text("room.not_found", nil))
		return
	}
	s.ok(ctx, "", map[string]any{"users": toUserViews(s.members.TeamUsers(code, teamID))})
}

func (s *Server) handleRoomUsers(ctx *fasthttp.RequestCtx, code string) {
	if !s.facilitator(ctx) {
		s.denied(ctx)
		return
	}
	if !s.rooms.Exists(code) {
		s.failMessage(ctx, s.cat.Text("room.not_found", nil))
		return
	}
	s.ok(ctx, "", map[string]any{"users": toUserViews(s.members.RoomUsers(code))})
}

func (s *Server) handleKickUser(ctx *fasthttp.RequestCtx, code, userID string) {
	if !s.facilitator(ctx) {
		s.denied(ctx)
		return
	}
	msg, err := s.members.KickUser(code, userID)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	s.ok(ctx, msg, nil)
}

func (s *Server) handlePromoteUser(ctx *fasthttp.RequestCtx, code, userID string) {
	if !s.facilitator(ctx) {
		s.denied(ctx)
		return
	}
	msg, err := s.members.PromoteToLeader(code, userID)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	s.ok(ctx, msg, nil)
}

func (s *Server) handleUpdateUserName(ctx *fasthttp.RequestCtx, code, userID string) {
	var req struct {
		Name string `json:"name"`
	}
	if err := readBody(ctx, &req); err != nil {
		s.fail(ctx, domain.Validation(s.cat.Text("join.invalid_data", nil)))
		return
	}
	name, err := s.members.UpdateUserName(code, userID, req.Name)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	s.ok(ctx, s.cat.Text("user.name_updated", nil), map[string]any{"name": name})
}
