package hub

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"basedfrenzy.com/internal/game"
	"basedfrenzy.com/internal/protocol"
)

// History is a fixed-capacity chat log with FIFO eviction. Entries are
// stored newest-last; Recent returns oldest-first slices.
type History struct {
	mu   sync.Mutex
	cap  int
	now  func() time.Time
	msgs []protocol.ChatMessage
}

func NewHistory(capacity int) *History {
	return &History{cap: capacity, now: time.Now}
}

// Append sanitizes and stores a message, evicting the oldest entries once
// the buffer exceeds capacity. The reply reference, when present, is
// snapshotted: if the referenced id is still in the buffer its stored
// id/username/body win; otherwise a complete client-supplied triple is
// kept; anything else is stored as null.
func (h *History) Append(address, username, body string, reply *protocol.ReplyRef) protocol.ChatMessage {
	h.mu.Lock()
	defer h.mu.Unlock()

	msg := protocol.ChatMessage{
		Type:      protocol.TypeMessage,
		ID:        uuid.NewString(),
		Address:   address,
		Username:  username,
		Message:   game.SanitizeMessage(body),
		Timestamp: h.now().UnixMilli(),
		ReplyTo:   h.snapshotLocked(reply),
	}

	h.msgs = append(h.msgs, msg)
	if over := len(h.msgs) - h.cap; over > 0 {
		h.msgs = append(h.msgs[:0:0], h.msgs[over:]...)
	}
	return msg
}

func (h *History) snapshotLocked(reply *protocol.ReplyRef) *protocol.ReplyRef {
	if reply == nil || reply.ID == "" {
		return nil
	}
	for i := len(h.msgs) - 1; i >= 0; i-- {
		if h.msgs[i].ID == reply.ID {
			return &protocol.ReplyRef{
				ID:       h.msgs[i].ID,
				Username: h.msgs[i].Username,
				Message:  h.msgs[i].Message,
			}
		}
	}
	if reply.Username == "" || reply.Message == "" {
		return nil
	}
	return &protocol.ReplyRef{
		ID:       reply.ID,
		Username: reply.Username,
		Message:  game.SanitizeMessage(reply.Message),
	}
}

// Recent returns up to n of the newest messages, oldest-first.
func (h *History) Recent(n int) []protocol.ChatMessage {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n > len(h.msgs) {
		n = len(h.msgs)
	}
	out := make([]protocol.ChatMessage, n)
	copy(out, h.msgs[len(h.msgs)-n:])
	return out
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.msgs)
}
