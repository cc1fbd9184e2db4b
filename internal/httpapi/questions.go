package httpapi

import (
	"strconv"

	"github.com/valyala/fasthttp"

	"github.com/sebraelab/dossie-server/internal/domain"
)

func (s *Server) handleListQuestions(ctx *fasthttp.RequestCtx, code string) {
	if !s.facilitator(ctx) {
		s.denied(ctx)
		return
	}
	list, err := s.questions.Questions(code)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	s.ok(ctx, "", map[string]any{"questions": list})
}

func (s *Server) handleAddQuestion(ctx *fasthttp.RequestCtx, code string) {
	if !s.facilitator(ctx) {
		s.denied(ctx)
		return
	}
	var d domain.Dossier
	if err := readBody(ctx, &d); err != nil {
		s.fail(ctx, domain.Validation(s.cat.Text("question.title_required", nil)))
		return
	}
	msg, err := s.questions.AddQuestion(code, &d)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	s.ok(ctx, msg, nil)
}

func (s *Server) handleEditQuestion(ctx *fasthttp.RequestCtx, code, rawIndex string) {
	if !s.facilitator(ctx) {
		s.denied(ctx)
		return
	}
	index, err := strconv.Atoi(rawIndex)
	if err != nil {
		s.fail(ctx, domain.NotFound(s.cat.Text("question.not_found", nil)))
		return
	}
	var d domain.Dossier
	if err := readBody(ctx, &d); err != nil {
		s.fail(ctx, domain.Validation(s.cat.Text("question.title_required", nil)))
		return
	}
	msg, err := s.questions.EditQuestion(code, index, &d)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	s.ok(ctx, msg, nil)
}

func (s *Server) handleDeleteQuestion(ctx *fasthttp.RequestCtx, code, rawIndex string) {
	if !s.facilitator(ctx) {
		s.denied(ctx)
		return
	}
	index, err := strconv.Atoi(rawIndex)
	if err != nil {
		s.fail(ctx, domain.NotFound(s.cat.Text("question.not_found", nil)))
		return
	}
	msg, err := s.questions.DeleteQuestion(code, index)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	s.ok(ctx, msg, nil)
}
