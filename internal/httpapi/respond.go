package httpapi

import (
	"encoding/json"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/sebraelab/dossie-server/internal/domain"
	"github.com/sebraelab/dossie-server/internal/obslog"
)

// envelope is the uniform response shape. Expected domain failures still
// travel as HTTP 200 with success=false; clients branch on the flag, never
// on status codes.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func (s *Server) writeJSON(ctx *fasthttp.RequestCtx, status int, body any) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json; charset=utf-8")
	if err := json.NewEncoder(ctx).Encode(body); err != nil {
		obslog.L().Error("http_encode_failed", zap.Error(err))
	}
}

func (s *Server) ok(ctx *fasthttp.RequestCtx, message string, data any) {
	s.writeJSON(ctx, fasthttp.StatusOK, envelope{Success: true, Message: message, Data: data})
}

// fail renders an error. Domain errors keep their catalog message;
// everything else is logged in full and masked behind a generic message so
// internals never leak to players.
func (s *Server) fail(ctx *fasthttp.RequestCtx, err error) {
	if derr, expected := domain.Expected(err); expected {
		s.writeJSON(ctx, fasthttp.StatusOK, envelope{Success: false, Message: derr.Message})
		return
	}
	obslog.L().Error("http_internal_error",
		zap.ByteString("path", ctx.Path()),
		zap.Error(err),
	)
	s.writeJSON(ctx, fasthttp.StatusInternalServerError, envelope{
		Success: false,
		Message: s.cat.Text("error.internal", nil),
	})
}

func (s *Server) failMessage(ctx *fasthttp.RequestCtx, message string) {
	s.writeJSON(ctx, fasthttp.StatusOK, envelope{Success: false, Message: message})
}

func (s *Server) notFound(ctx *fasthttp.RequestCtx) {
	s.writeJSON(ctx, fasthttp.StatusNotFound, envelope{Success: false, Message: "not found"})
}

func (s *Server) methodNotAllowed(ctx *fasthttp.RequestCtx) {
	s.writeJSON(ctx, fasthttp.StatusMethodNotAllowed, envelope{Success: false, Message: "method not allowed"})
}

func (s *Server) denied(ctx *fasthttp.RequestCtx) {
	s.writeJSON(ctx, fasthttp.StatusUnauthorized, envelope{Success: false, Message: s.cat.Text("auth.denied", nil)})
}

// readBody decodes the request body into v, tolerating an empty body.
func readBody(ctx *fasthttp.RequestCtx, v any) error {
	body := ctx.PostBody()
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, v)
}
