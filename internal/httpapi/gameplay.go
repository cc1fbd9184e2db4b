package httpapi

import (
	"strconv"

	"github.com/valyala/fasthttp"

	"github.com/sebraelab/dossie-server/internal/domain"
)

func (s *Server) handleSubmitVote(ctx *fasthttp.RequestCtx, code string) {
	var req struct {
		UserID string `json:"userId"`
		Votes  []int  `json:"votes"`
	}
	if err := readBody(ctx, &req); err != nil {
		s.fail(ctx, domain.Validation(s.cat.Text("join.invalid_data", nil)))
		return
	}
	msg, err := s.votes.Submit(code, req.UserID, req.Votes)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	s.ok(ctx, msg, nil)
}

func (s *Server) handleVoteDistribution(ctx *fasthttp.RequestCtx, code, teamID string) {
	if !s.facilitator(ctx) {
		s.denied(ctx)
		return
	}
	round := -1
	if v := ctx.QueryArgs().Peek("round"); len(v) > 0 {
		n, err := strconv.Atoi(string(v))
		if err != nil || n < 0 {
			s.fail(ctx, domain.Validation(s.cat.Text("game.round_invalid", nil)))
			return
		}
		round = n
	}
	counts, round, err := s.game.TeamVoteDistribution(code, teamID, round)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	s.ok(ctx, "", map[string]any{"round": round, "counts": counts})
}

// handleDossier serves the round's case. The answer key is included only
// for facilitators or once the room is showing results.
func (s *Server) handleDossier(ctx *fasthttp.RequestCtx, code string) {
	r := s.rooms.Get(code)
	if r == nil {
		s.failMessage(ctx, s.cat.Text("room.not_found", nil))
		return
	}
	round := r.CurrentRound
	if v := ctx.QueryArgs().Peek("round"); len(v) > 0 {
		n, err := strconv.Atoi(string(v))
		if err != nil {
			s.fail(ctx, domain.Validation(s.cat.Text("game.round_invalid", nil)))
			return
		}
		round = n
	}
	reveal := ctx.QueryArgs().GetBool("reveal")
	if reveal {
		resultsVisible := r.Status == domain.StatusResults || r.Status == domain.StatusFinished
		if !resultsVisible && !s.facilitator(ctx) {
			reveal = false
		}
	}
	view, err := s.game.Dossier(code, round, reveal)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	s.ok(ctx, "", view)
}

func (s *Server) handleStartInvestigation(ctx *fasthttp.RequestCtx, code string) {
	msg, err := s.game.StartInvestigation(code)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	s.ok(ctx, msg, nil)
}

func (s *Server) handleShowResults(ctx *fasthttp.RequestCtx, code string) {
	view, err := s.game.ShowResults(code)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	s.ok(ctx, view.Message, view)
}

func (s *Server) handleNextRound(ctx *fasthttp.RequestCtx, code string) {
	msg, err := s.game.NextRound(code)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	s.ok(ctx, msg, nil)
}

func (s *Server) handleResetRound(ctx *fasthttp.RequestCtx, code string) {
	msg, err := s.game.ResetCurrentRound(code)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	s.ok(ctx, msg, nil)
}

// handleTeamAnswer closes the team's round. Only the team leader (or a
// facilitator) may pull the trigger.
func (s *Server) handleTeamAnswer(ctx *fasthttp.RequestCtx, code, teamID string) {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := readBody(ctx, &req); err != nil {
		s.fail(ctx, domain.Validation(s.cat.Text("join.invalid_data", nil)))
		return
	}
	if !s.members.IsLeader(code, req.UserID) && !s.facilitator(ctx) {
		s.denied(ctx)
		return
	}
	result, err := s.game.SubmitTeamAnswer(code, teamID)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	s.ok(ctx, result.Message, result)
}

// handleTeamSubmission lets clients poll whether their team already closed
// the current round.
func (s *Server) handleTeamSubmission(ctx *fasthttp.RequestCtx, code, teamID string) {
	submitted, score, err := s.game.TeamSubmission(code, teamID)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	data := map[string]any{"hasSubmitted": submitted}
	if submitted {
		data["score"] = score
	}
	s.ok(ctx, "", data)
}

func (s *Server) handleTeamVotingStatus(ctx *fasthttp.RequestCtx, code, teamID string) {
	status, err := s.game.TeamVotingStatus(code, teamID)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	s.ok(ctx, "", status)
}

func (s *Server) handleRoomState(ctx *fasthttp.RequestCtx, code string) {
	state, err := s.game.State(code)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	s.ok(ctx, "", state)
}

func (s *Server) handleFinalResults(ctx *fasthttp.RequestCtx, code string) {
	standings, err := s.game.FinalResults(code)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	s.ok(ctx, "", map[string]any{"standings": standings})
}

func (s *Server) handleTeamResults(ctx *fasthttp.RequestCtx, code, teamID string) {
	results, err := s.game.TeamDetailedResults(code, teamID)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	s.ok(ctx, "", map[string]any{"rounds": results})
}
