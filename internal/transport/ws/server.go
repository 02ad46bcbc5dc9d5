package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"basedfrenzy.com/internal/game"
	"basedfrenzy.com/internal/hub"
	"basedfrenzy.com/internal/persistence/store"
	"basedfrenzy.com/internal/protocol"
)

const (
	authDeadline  = 5 * time.Second
	readDeadline  = 120 * time.Second
	writeDeadline = 5 * time.Second
	outQueueSize  = 64
)

type Server struct {
	hub   *hub.Hub
	store *store.Store
	log   *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(h *hub.Hub, st *store.Store, logger *log.Logger) *Server {
	return &Server{
		hub:   h,
		store: st,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		session, out := s.handshake(r.Context(), conn)
		if session == nil {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(writeDeadline))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		s.hub.Announce(session)

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				s.sendError(out, protocol.ErrBadRequest, "malformed message")
				continue
			}
			switch base.Type {
			case protocol.TypeSendMessage:
				var sm protocol.SendMessageMsg
				if err := json.Unmarshal(msg, &sm); err != nil {
					s.sendError(out, protocol.ErrBadRequest, "malformed message")
					continue
				}
				s.post(session, out, sm)
			case protocol.TypeAuthenticate:
				s.sendError(out, protocol.ErrConflict, "already authenticated")
			default:
				s.sendError(out, protocol.ErrBadRequest, "unknown message type")
			}
		}

		if s.hub.Unregister(session) {
			s.log.Printf("ws: %s (%s) disconnected", session.Username, session.Address)
		}
	}
}

func (s *Server) post(session *hub.Session, out chan []byte, sm protocol.SendMessageMsg) {
	_, err := s.hub.Post(session, sm.Message, sm.ReplyTo)
	switch {
	case err == nil:
	case errors.Is(err, hub.ErrEmptyMessage):
		s.sendError(out, protocol.ErrBadRequest, "empty message")
	case errors.Is(err, hub.ErrRateLimited):
		s.sendError(out, protocol.ErrRateLimit, "too many messages, slow down")
	case errors.Is(err, hub.ErrNotRegistered):
		s.sendError(out, protocol.ErrNoAuth, "not authenticated")
	default:
		s.sendError(out, protocol.ErrInternal, "internal error")
	}
}

// handshake waits for a single authenticate message, claims the address in
// the hub and records the player durably. Any failure closes the
// connection before it ever joins the room.
func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) (*hub.Session, chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(authDeadline))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeAuthenticate {
		s.closeWith(conn, websocket.ClosePolicyViolation, "expected authenticate")
		return nil, nil
	}

	var auth protocol.AuthenticateMsg
	if err := json.Unmarshal(msg, &auth); err != nil {
		s.closeWith(conn, websocket.ClosePolicyViolation, "malformed authenticate")
		return nil, nil
	}

	address := strings.TrimSpace(auth.Address)
	username := strings.TrimSpace(auth.Username)
	if !game.ValidAddress(address) {
		s.rejectAuth(conn, protocol.ErrBadRequest, "invalid wallet address")
		return nil, nil
	}
	if !game.ValidUsername(username) {
		s.rejectAuth(conn, protocol.ErrBadRequest, "invalid username")
		return nil, nil
	}

	out := make(chan []byte, outQueueSize)
	session, err := s.hub.Register(address, username, out)
	if errors.Is(err, hub.ErrAlreadyConnected) {
		s.rejectAuth(conn, protocol.ErrConflict, "address already connected")
		return nil, nil
	}
	if err != nil {
		s.rejectAuth(conn, protocol.ErrInternal, "internal error")
		return nil, nil
	}

	// Nobody has been told this session joined yet, so a persistence
	// failure drops it silently rather than broadcasting a leave.
	if _, err := s.store.UpsertPlayer(ctx, address, username, time.Now()); err != nil {
		s.hub.Drop(session)
		s.rejectAuth(conn, protocol.ErrInternal, "failed to record player")
		return nil, nil
	}
	if _, err := s.store.EnsureLedger(ctx, address); err != nil {
		s.hub.Drop(session)
		s.rejectAuth(conn, protocol.ErrInternal, "failed to record player")
		return nil, nil
	}

	s.log.Printf("ws: %s (%s) authenticated", username, address)
	return session, out
}

// rejectAuth unicasts a protocol error on the raw connection; sessions that
// never registered have no out channel to speak through.
func (s *Server) rejectAuth(conn *websocket.Conn, code, message string) {
	b, err := json.Marshal(protocol.ErrorMsg{Type: protocol.TypeError, Code: code, Message: message})
	if err != nil {
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	_ = conn.WriteMessage(websocket.TextMessage, b)
}

func (s *Server) sendError(out chan []byte, code, message string) {
	b, err := json.Marshal(protocol.ErrorMsg{Type: protocol.TypeError, Code: code, Message: message})
	if err != nil {
		return
	}
	select {
	case out <- b:
	default:
	}
}

func (s *Server) closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}
