package protocol

import "encoding/json"

// Message types. Client -> server use the event names the web client
// already speaks; server -> client mirror them.
const (
	TypeAuthenticate = "authenticate"
	TypeSendMessage  = "sendMessage"

	TypeChatHistory = "chatHistory"
	TypeOnlineUsers = "onlineUsers"
	TypeUserJoined  = "userJoined"
	TypeUserLeft    = "userLeft"
	TypeMessage     = "message"
	TypeError       = "error"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type string `json:"type"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
