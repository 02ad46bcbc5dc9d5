package protocol

// AuthenticateMsg (client -> server): bind this connection to a wallet.
type AuthenticateMsg struct {
	Type     string `json:"type"`
	Address  string `json:"address"`
	Username string `json:"username"`
}

// SendMessageMsg (client -> server): post a chat message, optionally as a
// reply. The reply payload is client-supplied and snapshotted server-side.
type SendMessageMsg struct {
	Type    string    `json:"type"`
	Message string    `json:"message"`
	ReplyTo *ReplyRef `json:"replyTo,omitempty"`
}

type ReplyRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

// ChatMessage (server -> client, type "message"; also the chatHistory
// element shape).
type ChatMessage struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	Address   string    `json:"address"`
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	Timestamp int64     `json:"timestamp"`
	ReplyTo   *ReplyRef `json:"replyTo"`
}

// ChatHistoryMsg (server -> client, to the joiner only).
type ChatHistoryMsg struct {
	Type     string        `json:"type"`
	Messages []ChatMessage `json:"messages"`
}

// OnlineUser is one roster entry.
type OnlineUser struct {
	Address  string `json:"address"`
	Username string `json:"username"`
	IsOnline bool   `json:"isOnline"`
	JoinedAt int64  `json:"joinedAt"`
}

// OnlineUsersMsg (server -> client, to the joiner only).
type OnlineUsersMsg struct {
	Type  string       `json:"type"`
	Users []OnlineUser `json:"users"`
}

// UserJoinedMsg (server -> client, broadcast to everyone else).
type UserJoinedMsg struct {
	Type string     `json:"type"`
	User OnlineUser `json:"user"`
}

// UserLeftMsg (server -> client, broadcast).
type UserLeftMsg struct {
	Type    string `json:"type"`
	Address string `json:"address"`
}

// ErrorMsg (server -> client, unicast to the offending connection only).
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}
