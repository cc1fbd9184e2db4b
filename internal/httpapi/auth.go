package httpapi

import (
	"crypto/subtle"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/sebraelab/dossie-server/internal/obslog"
	"github.com/sebraelab/dossie-server/internal/session"
)

// facilitator reports whether the request carries a live facilitator
// session cookie. Store errors fail closed.
func (s *Server) facilitator(ctx *fasthttp.RequestCtx) bool {
	token := string(ctx.Request.Header.Cookie(sessionCookie))
	if token == "" {
		return false
	}
	sess, err := s.sessions.Load(ctx, token)
	if err != nil {
		obslog.L().Error("session_load_failed", zap.Error(err))
		return false
	}
	return sess != nil && sess.Role == session.RoleFacilitator
}

func (s *Server) handleLogin(ctx *fasthttp.RequestCtx) {
	var req struct {
		Password string `json:"password"`
	}
	if err := readBody(ctx, &req); err != nil {
		s.failMessage(ctx, s.cat.Text("auth.bad_password", nil))
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.cfg.FacilitatorPassword)) != 1 {
		obslog.L().Warn("auth_login_denied", zap.String("remote", ctx.RemoteIP().String()))
		s.failMessage(ctx, s.cat.Text("auth.bad_password", nil))
		return
	}

	sess := session.New()
	if err := s.sessions.Save(ctx, sess); err != nil {
		s.fail(ctx, err)
		return
	}
	s.setSessionCookie(ctx, sess.Token)

	obslog.L().Info("auth_login", zap.String("remote", ctx.RemoteIP().String()))
	s.ok(ctx, "", nil)
}

func (s *Server) handleLogout(ctx *fasthttp.RequestCtx) {
	if token := string(ctx.Request.Header.Cookie(sessionCookie)); token != "" {
		if err := s.sessions.Delete(ctx, token); err != nil {
			obslog.L().Error("session_delete_failed", zap.Error(err))
		}
	}
	cookie := fasthttp.AcquireCookie()
	defer fasthttp.ReleaseCookie(cookie)
	cookie.SetKey(sessionCookie)
	cookie.SetValue("")
	cookie.SetPath("/")
	cookie.SetMaxAge(-1)
	ctx.Response.Header.SetCookie(cookie)
	s.ok(ctx, "", nil)
}

// handleAuthMe reports the caller's standing: facilitator or, for players,
// the seat their session cookie points back at.
func (s *Server) handleAuthMe(ctx *fasthttp.RequestCtx) {
	data := map[string]any{"authenticated": false}
	token := string(ctx.Request.Header.Cookie(sessionCookie))
	if token == "" {
		s.ok(ctx, "", data)
		return
	}
	sess, err := s.sessions.Load(ctx, token)
	if err != nil {
		obslog.L().Error("session_load_failed", zap.Error(err))
		s.ok(ctx, "", data)
		return
	}
	if sess == nil {
		s.ok(ctx, "", data)
		return
	}
	data["authenticated"] = sess.Role == session.RoleFacilitator
	data["role"] = sess.Role
	if sess.Role == session.RolePlayer {
		data["player"] = map[string]any{
			"roomCode": sess.RoomCode,
			"teamId":   sess.TeamID,
			"userId":   sess.UserID,
			"userName": sess.UserName,
		}
	}
	s.ok(ctx, "", data)
}

// setSessionCookie attaches the session token to the response.
func (s *Server) setSessionCookie(ctx *fasthttp.RequestCtx, token string) {
	cookie := fasthttp.AcquireCookie()
	defer fasthttp.ReleaseCookie(cookie)
	cookie.SetKey(sessionCookie)
	cookie.SetValue(token)
	cookie.SetPath("/")
	cookie.SetHTTPOnly(true)
	cookie.SetSameSite(fasthttp.CookieSameSiteLaxMode)
	cookie.SetMaxAge(int(s.cfg.SessionTTL.Seconds()))
	ctx.Response.Header.SetCookie(cookie)
}
