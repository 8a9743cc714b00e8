package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/chatsweep/chatsweep/internal/feed"
	"github.com/chatsweep/chatsweep/internal/logger"
	"github.com/chatsweep/chatsweep/internal/purge"
	"github.com/chatsweep/chatsweep/internal/session"
	"github.com/chatsweep/chatsweep/internal/ws"
)

const writeTimeout = 5 * time.Second

// handleWS owns one browser connection end to end: it creates the session
// and its capability instance, pumps commands from the socket, and tears
// everything down when the socket closes. Commands run inline in the read
// loop, so a session never has two cleanup runs in flight; a disconnect
// during a run is observed only after the run drains.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		logger.Warn("websocket accept", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	id := uuid.New().String()[:8]

	var writeMu sync.Mutex
	send := func(v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		wctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		return conn.Write(wctx, websocket.MessageText, data)
	}

	inst := s.factory(id)
	engine := purge.NewEngine(feed.New(inst), s.Ledger, id)
	sess := session.New(id, inst, engine, send)
	s.Registry.Add(sess)
	defer func() {
		s.Registry.Remove(id)
		sess.Teardown(context.Background())
	}()

	logger.Info("browser connected", "session", id)
	send(ws.SessionMsg{Type: ws.TypeSession, SessionID: id})

	// A Start failure already pushed linkError to the browser; keep the
	// socket open so the page can show it.
	if err := sess.Start(ctx); err != nil {
		logger.Warn("session start", "session", id, "error", err)
	}

	// Cleanup commands are heavyweight; a stuck page retrying in a loop
	// should not be able to hammer the account.
	limiter := rate.NewLimiter(rate.Every(time.Second), 3)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			logger.Info("browser disconnected", "session", id)
			return
		}

		var env ws.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}

		switch env.Type {
		case ws.TypeCleanAll, ws.TypeCleanInactive, ws.TypeCleanGroups:
			if !limiter.Allow() {
				send(ws.ErrorMsg{Type: ws.TypeError, Message: "too many commands"})
				continue
			}
			sess.HandleCommand(ctx, env.Type)
		default:
			send(ws.ErrorMsg{Type: ws.TypeError, Message: "unknown command: " + env.Type})
		}
	}
}
