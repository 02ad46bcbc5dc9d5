package hub

import (
	"encoding/json"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"basedfrenzy.com/internal/game"
	"basedfrenzy.com/internal/protocol"
)

var (
	ErrAlreadyConnected = errors.New("address already connected from another session")
	ErrNotRegistered    = errors.New("session is not registered")
	ErrEmptyMessage     = errors.New("empty message")
	ErrRateLimited      = errors.New("rate limit exceeded")
)

// How much chat history a fresh session receives.
const historyOnJoin = 50

// Session is the live binding of one websocket connection to one wallet
// address. Out is the connection's write queue; sends never block the hub.
type Session struct {
	Address  string
	Username string
	JoinedAt time.Time

	out chan []byte
}

// Hub owns all shared realtime state: the session registry, the chat
// history and the chat rate limiter. Every connection goroutine goes
// through the hub's lock; nothing here is reachable unguarded.
type Hub struct {
	mu       sync.Mutex
	sessions map[string]*Session

	history *History
	limiter *RateLimiter
	log     *log.Logger
}

func New(history *History, limiter *RateLimiter, logger *log.Logger) *Hub {
	return &Hub{
		sessions: make(map[string]*Session),
		history:  history,
		limiter:  limiter,
		log:      logger,
	}
}

// Register atomically claims the address for a new session. A live session
// for the same address rejects the newcomer and is itself left untouched.
func (h *Hub) Register(address, username string, out chan []byte) (*Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[address]; ok {
		return nil, ErrAlreadyConnected
	}
	s := &Session{
		Address:  address,
		Username: username,
		JoinedAt: time.Now(),
		out:      out,
	}
	h.sessions[address] = s
	return s, nil
}

// Unregister drops the session if it is still the registered one for its
// address and reports whether anything was removed. A userLeft broadcast
// goes out only on actual removal.
func (h *Hub) Unregister(s *Session) bool {
	h.mu.Lock()
	cur, ok := h.sessions[s.Address]
	if !ok || cur != s {
		h.mu.Unlock()
		return false
	}
	delete(h.sessions, s.Address)
	others := h.sessionsLocked()
	h.mu.Unlock()

	h.send(others, protocol.UserLeftMsg{Type: protocol.TypeUserLeft, Address: s.Address})
	return true
}

// Drop removes the session without a userLeft broadcast. For sessions that
// registered but were never announced to the room, so no one ever saw them
// join.
func (h *Hub) Drop(s *Session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	cur, ok := h.sessions[s.Address]
	if !ok || cur != s {
		return false
	}
	delete(h.sessions, s.Address)
	return true
}

// Announce delivers the recent chat history and current roster to the new
// session and broadcasts the join to everyone else.
func (h *Hub) Announce(s *Session) {
	h.mu.Lock()
	var others []*Session
	for _, o := range h.sessions {
		if o != s {
			others = append(others, o)
		}
	}
	roster := h.rosterLocked()
	h.mu.Unlock()

	h.send([]*Session{s}, protocol.ChatHistoryMsg{
		Type:     protocol.TypeChatHistory,
		Messages: h.history.Recent(historyOnJoin),
	})
	h.send([]*Session{s}, protocol.OnlineUsersMsg{
		Type:  protocol.TypeOnlineUsers,
		Users: roster,
	})
	h.send(others, protocol.UserJoinedMsg{
		Type: protocol.TypeUserJoined,
		User: protocol.OnlineUser{
			Address:  s.Address,
			Username: s.Username,
			IsOnline: true,
			JoinedAt: s.JoinedAt.UnixMilli(),
		},
	})
}

// Post appends a chat message from s and broadcasts it to every connected
// session, the sender included. Failures are returned for unicast error
// delivery and nothing is broadcast.
func (h *Hub) Post(s *Session, body string, reply *protocol.ReplyRef) (protocol.ChatMessage, error) {
	h.mu.Lock()
	cur, ok := h.sessions[s.Address]
	registered := ok && cur == s
	h.mu.Unlock()
	if !registered {
		return protocol.ChatMessage{}, ErrNotRegistered
	}

	body = game.SanitizeMessage(body)
	if body == "" {
		return protocol.ChatMessage{}, ErrEmptyMessage
	}
	if !h.limiter.Allow(s.Address) {
		return protocol.ChatMessage{}, ErrRateLimited
	}

	msg := h.history.Append(s.Address, s.Username, body, reply)

	h.mu.Lock()
	all := h.sessionsLocked()
	h.mu.Unlock()
	h.send(all, msg)
	return msg, nil
}

// Roster returns the current online users, ordered by join time.
func (h *Hub) Roster() []protocol.OnlineUser {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rosterLocked()
}

// Online reports whether the address has a live session.
func (h *Hub) Online(address string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.sessions[address]
	return ok
}

func (h *Hub) rosterLocked() []protocol.OnlineUser {
	users := make([]protocol.OnlineUser, 0, len(h.sessions))
	for _, s := range h.sessions {
		users = append(users, protocol.OnlineUser{
			Address:  s.Address,
			Username: s.Username,
			IsOnline: true,
			JoinedAt: s.JoinedAt.UnixMilli(),
		})
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].JoinedAt != users[j].JoinedAt {
			return users[i].JoinedAt < users[j].JoinedAt
		}
		return users[i].Address < users[j].Address
	})
	return users
}

func (h *Hub) sessionsLocked() []*Session {
	out := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		out = append(out, s)
	}
	return out
}

func (h *Hub) send(targets []*Session, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		h.log.Printf("hub: marshal %T: %v", v, err)
		return
	}
	for _, s := range targets {
		select {
		case s.out <- b:
		default:
			// Slow consumer; the connection's own read/write deadlines
			// will reap it.
		}
	}
}
