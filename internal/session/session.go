package session

import (
	"context"
	"encoding/base64"
	"sync"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/chatsweep/chatsweep/internal/logger"
	"github.com/chatsweep/chatsweep/internal/messaging"
	"github.com/chatsweep/chatsweep/internal/purge"
	"github.com/chatsweep/chatsweep/internal/ws"
)

// State is where a session sits in its lifecycle.
type State int

const (
	StateUnauthenticated State = iota
	StateAwaitingLink
	StateActive
	StateLinkFailed
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAwaitingLink:
		return "awaiting_link"
	case StateActive:
		return "active"
	case StateLinkFailed:
		return "link_failed"
	case StateTerminated:
		return "terminated"
	}
	return "unknown"
}

// Sender delivers one protocol message to the session's connection.
type Sender func(v any) error

// Session owns one messaging capability instance for one connection and
// drives it from unauthenticated through linked to active. Capability
// events move the state machine; the connection's read loop dispatches
// commands. History outlives the session: only the capability instance
// dies with it.
type Session struct {
	ID     string
	cap    capability
	engine *purge.Engine
	send   Sender

	mu    sync.Mutex
	state State
	quit  chan struct{}
}

// capability is the slice of messaging.Capability the session itself needs;
// the feed methods belong to the adapter, not the lifecycle.
type capability interface {
	Start(ctx context.Context) error
	Events() <-chan messaging.Event
	Teardown(ctx context.Context) error
}

func New(id string, c capability, engine *purge.Engine, send Sender) *Session {
	return &Session{
		ID:     id,
		cap:    c,
		engine: engine,
		send:   send,
		state:  StateUnauthenticated,
		quit:   make(chan struct{}),
	}
}

// Start begins the link handshake and spawns the event loop. A capability
// that cannot even start moves the session straight to LinkFailed.
func (s *Session) Start(ctx context.Context) error {
	if err := s.cap.Start(ctx); err != nil {
		s.fail(err.Error())
		return err
	}
	go s.eventLoop(ctx)
	return nil
}

func (s *Session) eventLoop(ctx context.Context) {
	for {
		select {
		case <-s.quit:
			return
		case <-ctx.Done():
			return
		case ev, ok := <-s.cap.Events():
			if !ok {
				return
			}
			s.handleEvent(ev)
		}
	}
}

func (s *Session) handleEvent(ev messaging.Event) {
	switch ev.Kind {
	case messaging.EventQR:
		s.setState(StateAwaitingLink)
		image, err := renderQR(ev.Code)
		if err != nil {
			logger.Error("render qr", "session", s.ID, "error", err)
			return
		}
		s.deliver(ws.QRMsg{Type: ws.TypeQR, Image: image})
	case messaging.EventReady:
		s.setState(StateActive)
		logger.Info("session linked", "session", s.ID)
		s.deliver(ws.ReadyMsg{Type: ws.TypeReady})
	case messaging.EventFailed:
		msg := "linking failed"
		if ev.Err != nil {
			msg = ev.Err.Error()
		}
		s.fail(msg)
	}
}

// HandleCommand runs one cleanup policy. Called inline from the
// connection's read loop, so runs for a session never overlap. Commands
// outside Active get a protocol error and nothing else happens.
func (s *Session) HandleCommand(ctx context.Context, cmd string) {
	if s.State() != StateActive {
		s.deliver(ws.ErrorMsg{Type: ws.TypeError, Message: "account not linked"})
		return
	}

	var res purge.Result
	switch cmd {
	case ws.TypeCleanAll:
		res = s.engine.CleanAll(ctx)
	case ws.TypeCleanInactive:
		res = s.engine.CleanInactive(ctx)
	case ws.TypeCleanGroups:
		res = s.engine.CleanGroups(ctx)
	default:
		s.deliver(ws.ErrorMsg{Type: ws.TypeError, Message: "unknown command: " + cmd})
		return
	}

	logger.Info("cleanup run finished", "session", s.ID, "action", res.Action,
		"total", res.TotalMessages, "deleted", res.DeletedMessages)
	s.deliver(ws.ActionResultMsg{
		Type:            ws.TypeActionResult,
		Action:          res.Action,
		TotalMessages:   res.TotalMessages,
		DeletedMessages: res.DeletedMessages,
	})
}

// Teardown terminates the session and releases its capability instance.
// Safe to call more than once.
func (s *Session) Teardown(ctx context.Context) {
	s.mu.Lock()
	if s.state == StateTerminated {
		s.mu.Unlock()
		return
	}
	s.state = StateTerminated
	close(s.quit)
	s.mu.Unlock()

	if err := s.cap.Teardown(ctx); err != nil {
		logger.Warn("capability teardown", "session", s.ID, "error", err)
	}
	logger.Info("session terminated", "session", s.ID)
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(next State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateTerminated {
		return
	}
	s.state = next
}

func (s *Session) fail(msg string) {
	s.setState(StateLinkFailed)
	logger.Warn("session link failed", "session", s.ID, "reason", msg)
	s.deliver(ws.LinkErrorMsg{Type: ws.TypeLinkError, Message: msg})
}

func (s *Session) deliver(v any) {
	if err := s.send(v); err != nil {
		logger.Debug("deliver to connection", "session", s.ID, "error", err)
	}
}

// renderQR encodes a link challenge as a PNG data URL for an <img> tag.
func renderQR(code string) (string, error) {
	png, err := qrcode.Encode(code, qrcode.Medium, 256)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
