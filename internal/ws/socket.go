package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/kiliankoe/promptparty/internal/config"
	"github.com/kiliankoe/promptparty/internal/game"
	"github.com/kiliankoe/promptparty/internal/validate"
)

var (
	errRateLimited  = errors.New("too many actions, slow down")
	errNotInSession = fmt.Errorf("%w: not in a session", game.ErrState)
	errBadCardID    = fmt.Errorf("%w: malformed card id", game.ErrValidation)
)

// ConnCtx is attached to every socket. Code and PlayerID are set once the
// connection has joined a session.
type ConnCtx struct {
	Code     string
	PlayerID string
	limiter  *rate.Limiter
}

type Server struct {
	RM       *game.RoomManager
	cfg      *config.Config
	exporter *game.Exporter

	mu      sync.RWMutex
	members map[string]map[string]socketio.Conn // sessionCode -> socketID -> Conn
	feeds   map[string]*feed
}

// feed serialises publishing for one session and remembers the newest
// update sent, so a projection that lost the race to the socket is dropped.
type feed struct {
	mu   sync.Mutex
	last uint64
}

type namePayload struct {
	Name string `json:"name"`
}

type joinPayload struct {
	SessionCode string `json:"sessionCode"`
	Name        string `json:"name"`
}

type cardPayload struct {
	CardID string `json:"cardId"`
}

type winnerPayload struct {
	WinnerID string `json:"winnerId"`
}

// New builds the transport and registers it as the manager's notifier so
// timer-driven updates reach the clients.
func New(rm *game.RoomManager, cfg *config.Config) *Server {
	srv := &Server{
		RM:      rm,
		cfg:     cfg,
		members: make(map[string]map[string]socketio.Conn),
		feeds:   make(map[string]*feed),
	}
	if cfg.ExportEnabled {
		srv.exporter = game.NewExporter(cfg.ExportFile)
	}
	rm.SetNotifier(srv)
	return srv
}

// Mount attaches Socket.IO server with handlers to the given Gin engine.
func (srv *Server) Mount(r *gin.Engine) *socketio.Server {
	io := socketio.NewServer(nil)

	io.OnConnect("/", srv.connect)

	io.OnEvent("/", "game:create", func(s socketio.Conn, p namePayload) map[string]any {
		return srv.create(s, p.Name)
	})
	io.OnEvent("/", "game:join", func(s socketio.Conn, p joinPayload) map[string]any {
		return srv.join(s, p.SessionCode, p.Name)
	})
	io.OnEvent("/", "game:start", srv.start)
	io.OnEvent("/", "game:nextRound", srv.nextRound)
	io.OnEvent("/", "game:submitPrompt", func(s socketio.Conn, p cardPayload) map[string]any {
		return srv.submitPrompt(s, p.CardID)
	})
	io.OnEvent("/", "game:submitAnswer", func(s socketio.Conn, p cardPayload) map[string]any {
		return srv.submitAnswer(s, p.CardID)
	})
	io.OnEvent("/", "game:selectWinner", func(s socketio.Conn, p winnerPayload) map[string]any {
		return srv.selectWinner(s, p.WinnerID)
	})
	io.OnEvent("/", "game:leave", func(s socketio.Conn) map[string]any {
		srv.leave(s)
		return map[string]any{"ok": true}
	})
	io.OnEvent("/", "game:sync", srv.sync)

	io.OnError("/", func(s socketio.Conn, e error) {
		log.Error().Str("sid", s.ID()).Err(e).Msg("socket error")
	})
	io.OnDisconnect("/", srv.disconnect)

	go func() {
		if err := io.Serve(); err != nil {
			log.Error().Err(err).Msg("socket.io server stopped")
		}
	}()

	// Mount to router
	r.GET("/socket.io/*any", gin.WrapH(io))
	r.POST("/socket.io/*any", gin.WrapH(io))

	// Basic CORS preflight for Socket.IO POST
	r.OPTIONS("/socket.io/*any", func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", srv.cfg.CORSOrigin)
		c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Status(http.StatusNoContent)
	})

	return io
}

func (srv *Server) connect(s socketio.Conn) error {
	s.SetContext(&ConnCtx{limiter: rate.NewLimiter(rate.Limit(srv.cfg.ActionRate), srv.cfg.ActionBurst)})
	log.Info().Str("sid", s.ID()).Msg("socket connected")
	return nil
}

func (srv *Server) disconnect(s socketio.Conn, reason string) {
	srv.leave(s)
	log.Info().Str("sid", s.ID()).Str("reason", reason).Msg("socket disconnected")
}

// game:create
func (srv *Server) create(s socketio.Conn, name string) map[string]any {
	if err := srv.allow(s); err != nil {
		return srv.err(s, err)
	}
	code, playerID, u, err := srv.RM.CreateSession(context.Background(), name)
	if err != nil {
		return srv.err(s, err)
	}
	srv.attach(s, code, playerID)
	log.Info().Str("sid", s.ID()).Str("code", code).Str("playerId", playerID).Msg("game:create")
	srv.publish(code, u)
	return map[string]any{"sessionCode": code, "playerId": playerID}
}

// game:join
func (srv *Server) join(s socketio.Conn, code, name string) map[string]any {
	if err := srv.allow(s); err != nil {
		return srv.err(s, err)
	}
	sess, err := srv.RM.Get(code)
	if err != nil {
		return srv.err(s, err)
	}
	playerID, u, err := sess.AddPlayer(name)
	if err != nil {
		return srv.err(s, err)
	}
	srv.attach(s, sess.Code, playerID)
	log.Info().Str("sid", s.ID()).Str("code", sess.Code).Str("playerId", playerID).Msg("game:join")
	srv.publish(sess.Code, u)
	return map[string]any{"sessionCode": sess.Code, "playerId": playerID}
}

func (srv *Server) start(s socketio.Conn) map[string]any {
	return srv.act(s, "game:start", func(sess *game.Session, _ string) (*game.Update, error) {
		return sess.Start()
	})
}

func (srv *Server) nextRound(s socketio.Conn) map[string]any {
	return srv.act(s, "game:nextRound", func(sess *game.Session, _ string) (*game.Update, error) {
		return sess.AdvanceRound()
	})
}

func (srv *Server) submitPrompt(s socketio.Conn, cardID string) map[string]any {
	return srv.act(s, "game:submitPrompt", func(sess *game.Session, pid string) (*game.Update, error) {
		if !validate.CardID(cardID) {
			return nil, errBadCardID
		}
		return sess.SubmitPrompt(pid, cardID)
	})
}

// submitAnswer acks accepted=false, and broadcasts nothing, for a card the
// player does not hold.
func (srv *Server) submitAnswer(s socketio.Conn, cardID string) map[string]any {
	accepted := false
	ack := srv.act(s, "game:submitAnswer", func(sess *game.Session, pid string) (*game.Update, error) {
		if !validate.CardID(cardID) {
			return nil, errBadCardID
		}
		ok, u, err := sess.SubmitAnswer(pid, cardID)
		accepted = ok
		return u, err
	})
	if _, failed := ack["error"]; !failed {
		ack["accepted"] = accepted
	}
	return ack
}

// winnerID may name the winning player or, with anonymous judging, the
// winning card.
func (srv *Server) selectWinner(s socketio.Conn, winnerID string) map[string]any {
	return srv.act(s, "game:selectWinner", func(sess *game.Session, pid string) (*game.Update, error) {
		return sess.SelectWinner(pid, winnerID)
	})
}

// game:sync resends the caller's own projection, e.g. after a reload
func (srv *Server) sync(s socketio.Conn) map[string]any {
	ctx := connCtx(s)
	if ctx.Code == "" {
		return srv.err(s, errNotInSession)
	}
	sess, err := srv.RM.Get(ctx.Code)
	if err != nil {
		return srv.err(s, err)
	}
	st, err := sess.StateFor(ctx.PlayerID)
	if err != nil {
		return srv.err(s, err)
	}
	s.Emit("game:state", st)
	return map[string]any{"ok": true}
}

// SessionUpdated implements game.Notifier for timer-driven updates.
func (srv *Server) SessionUpdated(code string, u *game.Update) {
	log.Info().Str("code", code).Str("phase", string(u.Phase)).Msg("automatic transition")
	srv.publish(code, u)
}

// act runs a player action on the caller's session and broadcasts the
// result. Errors go back to the caller only.
func (srv *Server) act(s socketio.Conn, event string, op func(*game.Session, string) (*game.Update, error)) map[string]any {
	if err := srv.allow(s); err != nil {
		return srv.err(s, err)
	}
	ctx := connCtx(s)
	if ctx.Code == "" {
		return srv.err(s, errNotInSession)
	}
	sess, err := srv.RM.Get(ctx.Code)
	if err != nil {
		return srv.err(s, err)
	}
	u, err := op(sess, ctx.PlayerID)
	if err != nil {
		log.Debug().Str("code", ctx.Code).Str("playerId", ctx.PlayerID).Err(err).Msg(event + " rejected")
		return srv.err(s, err)
	}
	log.Info().Str("code", ctx.Code).Str("playerId", ctx.PlayerID).Msg(event)
	if u != nil {
		srv.publish(ctx.Code, u)
	}
	return map[string]any{"ok": true}
}

// leave removes the connection's player from its session. A leave that ends
// the game also unregisters the session.
func (srv *Server) leave(s socketio.Conn) {
	ctx := connCtx(s)
	if ctx.Code == "" {
		return
	}
	code, pid := ctx.Code, ctx.PlayerID
	srv.removeMember(code, s)
	s.SetContext(&ConnCtx{limiter: ctx.limiter})

	sess, err := srv.RM.Get(code)
	if err != nil {
		return
	}
	ended, u := sess.RemovePlayer(pid)
	if u == nil {
		return
	}
	log.Info().Str("code", code).Str("playerId", pid).Bool("ended", ended).Msg("game:leave")
	srv.publish(code, u)
	if ended {
		srv.RM.Remove(code)
	}
}

// publish fans an update out to the session's connections. Every member
// gets their own projection; summaries go to everyone. Updates older than
// the last one published keep their summaries but not their projections.
// After the game-over update the session's members are forgotten.
func (srv *Server) publish(code string, u *game.Update) {
	f := srv.feedOf(code)
	f.mu.Lock()
	defer f.mu.Unlock()

	fresh := u.Seq > f.last
	if fresh {
		f.last = u.Seq
	} else {
		log.Debug().Str("code", code).Uint64("seq", u.Seq).Uint64("last", f.last).Msg("dropping stale projections")
	}
	for _, c := range srv.membersOf(code) {
		ctx := connCtx(c)
		if fresh {
			if st, ok := u.States[ctx.PlayerID]; ok {
				c.Emit("game:state", st)
			}
			if u.SubmissionsComplete {
				c.Emit("game:phase", map[string]any{"phase": u.Phase})
			}
		}
		if u.RoundOver != nil {
			c.Emit("game:roundOver", u.RoundOver)
		}
		if u.GameOver != nil {
			c.Emit("game:ended", u.GameOver)
		}
	}
	if srv.exporter != nil && (u.RoundOver != nil || u.GameOver != nil) {
		if err := srv.exporter.Export(code, u.RoundOver, u.GameOver, time.Now()); err != nil {
			log.Error().Err(err).Str("code", code).Msg("failed to export round")
		} else {
			log.Info().Str("code", code).Str("file", srv.exporter.File).Msg("exported round")
		}
	}
	if u.GameOver != nil {
		srv.forget(code)
	}
}

func (srv *Server) feedOf(code string) *feed {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	f := srv.feeds[code]
	if f == nil {
		f = &feed{}
		srv.feeds[code] = f
	}
	return f
}

// forget drops the fan-out bookkeeping of a finished session. Connections
// keep their ConnCtx; their next action reports the session as gone once it
// is swept.
func (srv *Server) forget(code string) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	delete(srv.members, code)
	delete(srv.feeds, code)
}

func (srv *Server) attach(s socketio.Conn, code, playerID string) {
	ctx := connCtx(s)
	if ctx.Code != "" && ctx.Code != code {
		srv.leave(s)
	}
	s.SetContext(&ConnCtx{Code: code, PlayerID: playerID, limiter: ctx.limiter})
	srv.addMember(code, s)
}

func (srv *Server) allow(s socketio.Conn) error {
	if l := connCtx(s).limiter; l != nil && !l.Allow() {
		return errRateLimited
	}
	return nil
}

func (srv *Server) addMember(code string, c socketio.Conn) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.members[code] == nil {
		srv.members[code] = make(map[string]socketio.Conn)
	}
	srv.members[code][c.ID()] = c
}

func (srv *Server) removeMember(code string, c socketio.Conn) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if m := srv.members[code]; m != nil {
		delete(m, c.ID())
		if len(m) == 0 {
			delete(srv.members, code)
		}
	}
}

func (srv *Server) membersOf(code string) []socketio.Conn {
	srv.mu.RLock()
	defer srv.mu.RUnlock()
	out := make([]socketio.Conn, 0, len(srv.members[code]))
	for _, c := range srv.members[code] {
		out = append(out, c)
	}
	return out
}

func (srv *Server) err(s socketio.Conn, err error) map[string]any {
	code := errorCode(err)
	s.Emit("error", map[string]any{"code": code, "message": err.Error()})
	return map[string]any{"error": code, "message": err.Error()}
}

// errorCode maps an error to its wire code by class.
func errorCode(err error) string {
	switch {
	case errors.Is(err, errRateLimited):
		return "rate_limited"
	case errors.Is(err, game.ErrValidation):
		return "validation_error"
	case errors.Is(err, game.ErrCapacity):
		return "capacity_error"
	case errors.Is(err, game.ErrState):
		return "state_error"
	case errors.Is(err, game.ErrAuthorization):
		return "authorization_error"
	case errors.Is(err, game.ErrNotFound):
		return "not_found"
	}
	return "internal_error"
}

func connCtx(s socketio.Conn) *ConnCtx {
	if ctx, ok := s.Context().(*ConnCtx); ok && ctx != nil {
		return ctx
	}
	return &ConnCtx{}
}
