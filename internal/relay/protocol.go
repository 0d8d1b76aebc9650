package relay

import (
	"time"

	"chat-relay/internal/auth"
)

// FrameType is the type discriminator carried by every wire frame.
type FrameType string

// Inbound frame types.
const (
	FrameAuthenticate FrameType = "authenticate"
	FrameChatMessage  FrameType = "chat_message"
	FrameTypingStart  FrameType = "typing_start"
	FrameTypingStop   FrameType = "typing_stop"
	FrameUserInfo     FrameType = "user_info"
)

// Outbound frame types.
const (
	FrameConnection   FrameType = "connection"
	FrameAuthSuccess  FrameType = "authentication_success"
	FrameAuthError    FrameType = "authentication_error"
	FrameTypingStatus FrameType = "typing_status"
	FrameUserCount    FrameType = "user_count"
	FrameError        FrameType = "error"
)

func (ft FrameType) String() string {
	return string(ft)
}

// InboundFrame is the envelope every client frame decodes into. Fields
// beyond Type are populated per frame type and ignored otherwise.
type InboundFrame struct {
	Type     FrameType `json:"type"`
	IDToken  string    `json:"idToken,omitempty"`
	Message  string    `json:"message,omitempty"`
	User     string    `json:"user,omitempty"`
	UserInfo *UserInfo `json:"userInfo,omitempty"`
}

// UserInfo carries the display-profile fields a client may set pre-auth.
type UserInfo struct {
	Name string `json:"name"`
}

// ConnectionFrame is sent once, immediately after a client connects.
type ConnectionFrame struct {
	Type      FrameType `json:"type"`
	Message   string    `json:"message"`
	ClientID  string    `json:"clientId"`
	Timestamp time.Time `json:"timestamp"`
}

type AuthSuccessFrame struct {
	Type      FrameType     `json:"type"`
	User      auth.Identity `json:"user"`
	Timestamp time.Time     `json:"timestamp"`
}

type AuthErrorFrame struct {
	Type      FrameType `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatFrame is the broadcast form of an accepted chat message. Sender
// fields are derived from the sending connection's server-held identity,
// never from client-supplied values.
type ChatFrame struct {
	Type      FrameType `json:"type"`
	ID        uint64    `json:"id"`
	User      string    `json:"user"`
	UserEmail string    `json:"userEmail,omitempty"`
	Message   string    `json:"message"`
	SenderID  string    `json:"senderId"`
	SenderUID string    `json:"senderUid,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type TypingStatusFrame struct {
	Type       FrameType `json:"type"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName,omitempty"`
	IsTyping   bool      `json:"isTyping"`
	Timestamp  time.Time `json:"timestamp"`
}

type UserCountFrame struct {
	Type      FrameType `json:"type"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

type ErrorFrame struct {
	Type      FrameType `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func NewConnectionFrame(clientID string) ConnectionFrame {
	return ConnectionFrame{
		Type:      FrameConnection,
		Message:   "Connected to WebSocket server",
		ClientID:  clientID,
		Timestamp: time.Now(),
	}
}

func NewAuthSuccessFrame(identity auth.Identity) AuthSuccessFrame {
	return AuthSuccessFrame{
		Type:      FrameAuthSuccess,
		User:      identity,
		Timestamp: time.Now(),
	}
}

func NewAuthErrorFrame(message string) AuthErrorFrame {
	return AuthErrorFrame{
		Type:      FrameAuthError,
		Message:   message,
		Timestamp: time.Now(),
	}
}

func NewChatFrame(id uint64, user, userEmail, message, senderID, senderUID string) ChatFrame {
	return ChatFrame{
		Type:      FrameChatMessage,
		ID:        id,
		User:      user,
		UserEmail: userEmail,
		Message:   message,
		SenderID:  senderID,
		SenderUID: senderUID,
		Timestamp: time.Now(),
	}
}

func NewTypingStatusFrame(senderID, senderName string, isTyping bool) TypingStatusFrame {
	return TypingStatusFrame{
		Type:       FrameTypingStatus,
		SenderID:   senderID,
		SenderName: senderName,
		IsTyping:   isTyping,
		Timestamp:  time.Now(),
	}
}

func NewUserCountFrame(count int) UserCountFrame {
	return UserCountFrame{
		Type:      FrameUserCount,
		Count:     count,
		Timestamp: time.Now(),
	}
}

func NewErrorFrame(message string) ErrorFrame {
	return ErrorFrame{
		Type:      FrameError,
		Message:   message,
		Timestamp: time.Now(),
	}
}
