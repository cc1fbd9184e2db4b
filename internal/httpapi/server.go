package httpapi

import (
	"context"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/sebraelab/dossie-server/internal/config"
	"github.com/sebraelab/dossie-server/internal/dossier"
	"github.com/sebraelab/dossie-server/internal/game"
	"github.com/sebraelab/dossie-server/internal/member"
	"github.com/sebraelab/dossie-server/internal/msgcat"
	"github.com/sebraelab/dossie-server/internal/obslog"
	"github.com/sebraelab/dossie-server/internal/presence"
	"github.com/sebraelab/dossie-server/internal/room"
	"github.com/sebraelab/dossie-server/internal/session"
	"github.com/sebraelab/dossie-server/internal/vote"
)

// sessionCookie names the facilitator session cookie.
const sessionCookie = "dossie_session"

// Server is the JSON API surface. Routing is a hand-rolled path switch; the
// URL space is small and fixed, so a router dependency buys nothing.
type Server struct {
	cfg *config.AppConfig
	cat *msgcat.Catalog

	rooms     *room.Registry
	presence  *presence.Tracker
	members   *member.Registry
	votes     *vote.Ledger
	game      *game.Manager
	questions *dossier.Service
	bank      *dossier.Bank
	sessions  session.Store

	srv *fasthttp.Server
}

type Deps struct {
	Config    *config.AppConfig
	Catalog   *msgcat.Catalog
	Rooms     *room.Registry
	Presence  *presence.Tracker
	Members   *member.Registry
	Votes     *vote.Ledger
	Game      *game.Manager
	Questions *dossier.Service
	Bank      *dossier.Bank
	Sessions  session.Store
}

func NewServer(d Deps) *Server {
	s := &Server{
		cfg:       d.Config,
		cat:       d.Catalog,
		rooms:     d.Rooms,
		presence:  d.Presence,
		members:   d.Members,
		votes:     d.Votes,
		game:      d.Game,
		questions: d.Questions,
		bank:      d.Bank,
		sessions:  d.Sessions,
	}
	s.srv = &fasthttp.Server{
		Handler:            s.route,
		Name:               "dossie-server",
		MaxRequestBodySize: 1 << 20,
	}
	return s
}

// ListenAndServe blocks serving the API until Shutdown.
func (s *Server) ListenAndServe() error {
	obslog.L().Info("http_listen", zap.String("addr", s.cfg.ListenAddr))
	return s.srv.ListenAndServe(s.cfg.ListenAddr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.ShutdownWithContext(ctx)
}

// route dispatches /api/... requests. Segments after /api/rooms/{code} select
// the sub-resource; everything else is a small flat namespace.
func (s *Server) route(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	method := string(ctx.Method())

	if path == "/healthz" {
		s.ok(ctx, "ok", nil)
		return
	}
	if !strings.HasPrefix(path, "/api/") {
		s.notFound(ctx)
		return
	}
	seg := strings.Split(strings.Trim(strings.TrimPrefix(path, "/api/"), "/"), "/")

	switch seg[0] {
	case "auth":
		s.routeAuth(ctx, method, seg[1:])
	case "rooms":
		s.routeRooms(ctx, method, seg[1:])
	default:
		s.notFound(ctx)
	}
}

func (s *Server) routeAuth(ctx *fasthttp.RequestCtx, method string, seg []string) {
	if len(seg) != 1 {
		s.notFound(ctx)
		return
	}
	switch {
	case seg[0] == "login" && method == fasthttp.MethodPost:
		s.handleLogin(ctx)
	case seg[0] == "logout" && method == fasthttp.MethodPost:
		s.handleLogout(ctx)
	case seg[0] == "me" && method == fasthttp.MethodGet:
		s.handleAuthMe(ctx)
	default:
		s.notFound(ctx)
	}
}

func (s *Server) routeRooms(ctx *fasthttp.RequestCtx, method string, seg []string) {
	switch len(seg) {
	case 0:
		switch method {
		case fasthttp.MethodPost:
			s.handleCreateRoom(ctx)
		case fasthttp.MethodGet:
			s.handleListRooms(ctx)
		default:
			s.methodNotAllowed(ctx)
		}
		return
	case 1:
		if seg[0] == "reset-all" && method == fasthttp.MethodPost {
			s.handleResetAll(ctx)
			return
		}
		code := seg[0]
		switch method {
		case fasthttp.MethodGet:
			s.handleVerifyRoom(ctx, code)
		case fasthttp.MethodDelete:
			s.handleDeleteRoom(ctx, code)
		default:
			s.methodNotAllowed(ctx)
		}
		return
	}

	code := seg[0]
	rest := seg[1:]

	switch rest[0] {
	case "reset":
		if method == fasthttp.MethodPost && len(rest) == 1 {
			s.handleResetRoom(ctx, code)
			return
		}
	case "qr":
		if method == fasthttp.MethodGet && len(rest) == 1 {
			s.handleRoomQR(ctx, code)
			return
		}
	case "state":
		if method == fasthttp.MethodGet && len(rest) == 1 {
			s.handleRoomState(ctx, code)
			return
		}
	case "dossier":
		if method == fasthttp.MethodGet && len(rest) == 1 {
			s.handleDossier(ctx, code)
			return
		}
	case "final-results":
		if method == fasthttp.MethodGet && len(rest) == 1 {
			s.handleFinalResults(ctx, code)
			return
		}
	case "game":
		if method == fasthttp.MethodPost && len(rest) == 2 {
			s.routeGame(ctx, code, rest[1])
			return
		}
	case "votes":
		s.routeVotes(ctx, method, code, rest[1:])
		return
	case "users":
		s.routeUsers(ctx, method, code, rest[1:])
		return
	case "teams":
		s.routeTeams(ctx, method, code, rest[1:])
		return
	case "questions":
		s.routeQuestions(ctx, method, code, rest[1:])
		return
	}
	s.notFound(ctx)
}

func (s *Server) routeGame(ctx *fasthttp.RequestCtx, code, op string) {
	if !s.facilitator(ctx) {
		s.denied(ctx)
		return
	}
	switch op {
	case "start":
		s.handleStartInvestigation(ctx, code)
	case "show-results":
		s.handleShowResults(ctx, code)
	case "next-round":
		s.handleNextRound(ctx, code)
	case "reset-round":
		s.handleResetRound(ctx, code)
	default:
		s.notFound(ctx)
	}
}

func (s *Server) routeVotes(ctx *fasthttp.RequestCtx, method, code string, rest []string) {
	switch {
	case len(rest) == 0 && method == fasthttp.MethodPost:
		s.handleSubmitVote(ctx, code)
	default:
		s.notFound(ctx)
	}
}

func (s *Server) routeUsers(ctx *fasthttp.RequestCtx, method, code string, rest []string) {
	switch {
	case len(rest) == 0 && method == fasthttp.MethodGet:
		s.handleRoomUsers(ctx, code)
	case len(rest) == 2 && method == fasthttp.MethodPost:
		userID := rest[0]
		switch rest[1] {
		case "kick":
			s.handleKickUser(ctx, code, userID)
		case "promote":
			s.handlePromoteUser(ctx, code, userID)
		case "name":
			s.handleUpdateUserName(ctx, code, userID)
		default:
			s.notFound(ctx)
		}
	default:
		s.notFound(ctx)
	}
}

func (s *Server) routeTeams(ctx *fasthttp.RequestCtx, method, code string, rest []string) {
	if len(rest) != 2 {
		s.notFound(ctx)
		return
	}
	teamID := rest[0]
	switch {
	case rest[1] == "ping" && method == fasthttp.MethodPost:
		s.handleTeamPing(ctx, code, teamID)
	case rest[1] == "disconnect" && method == fasthttp.MethodPost:
		s.handleTeamDisconnect(ctx, code, teamID)
	case rest[1] == "join" && method == fasthttp.MethodPost:
		s.handleJoinTeam(ctx, code, teamID)
	case rest[1] == "access" && method == fasthttp.MethodGet:
		s.handleTeamAccess(ctx, code, teamID)
	case rest[1] == "users" && method == fasthttp.MethodGet:
		s.handleTeamUsers(ctx, code, teamID)
	case rest[1] == "voting-status" && method == fasthttp.MethodGet:
		s.handleTeamVotingStatus(ctx, code, teamID)
	case rest[1] == "vote-distribution" && method == fasthttp.MethodGet:
		s.handleVoteDistribution(ctx, code, teamID)
	case rest[1] == "answer" && method == fasthttp.MethodPost:
		s.handleTeamAnswer(ctx, code, teamID)
	case rest[1] == "submission" && method == fasthttp.MethodGet:
		s.handleTeamSubmission(ctx, code, teamID)
	case rest[1] == "results" && method == fasthttp.MethodGet:
		s.handleTeamResults(ctx, code, teamID)
	default:
		s.notFound(ctx)
	}
}

func (s *Server) routeQuestions(ctx *fasthttp.RequestCtx, method, code string, rest []string) {
	switch {
	case len(rest) == 0 && method == fasthttp.MethodGet:
		s.handleListQuestions(ctx, code)
	case len(rest) == 0 && method == fasthttp.MethodPost:
		s.handleAddQuestion(ctx, code)
	case len(rest) == 1 && method == fasthttp.MethodPut:
		s.handleEditQuestion(ctx, code, rest[0])
	case len(rest) == 1 && method == fasthttp.MethodDelete:
		s.handleDeleteQuestion(ctx, code, rest[0])
	default:
		s.notFound(ctx)
	}
}
