package chat

import (
	"errors"
	"time"

	"github.com/autogenius/autogenius/internal/catalog"
	"github.com/autogenius/autogenius/internal/recommend"
)

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Text sizes a session can be displayed with.
const (
	TextSizeLarge      = "xlarge"
	TextSizeExtraLarge = "xxlarge"
	DefaultTextSize    = TextSizeExtraLarge
)

// ValidTextSize reports whether size is a known text size.
func ValidTextSize(size string) bool {
	return size == TextSizeLarge || size == TextSizeExtraLarge
}

var (
	ErrNotFound        = errors.New("session not found")
	ErrForbidden       = errors.New("session belongs to another user")
	ErrInvalidTextSize = errors.New("invalid text size")
)

// Session is one diagnosis conversation about one vehicle.
type Session struct {
	ID        string          `json:"id"`
	UserID    string          `json:"-"`
	Vehicle   catalog.Vehicle `json:"car_details"`
	TextSize  string          `json:"text_size"`
	CreatedAt time.Time       `json:"created_at"`
}

// Message is one entry of a session transcript.
type Message struct {
	ID        string              `json:"-"`
	SessionID string              `json:"-"`
	Seq       int                 `json:"-"`
	Role      Role                `json:"role"`
	Content   string              `json:"content"`
	CarImage  string              `json:"car_image,omitempty"`
	Products  []recommend.Product `json:"products"`
	CreatedAt time.Time           `json:"timestamp"`
}

// HistoryItem summarizes a session for the history list.
type HistoryItem struct {
	ID           string          `json:"id"`
	Vehicle      catalog.Vehicle `json:"car_details"`
	CreatedAt    time.Time       `json:"created_at"`
	LastMessage  string          `json:"last_message"`
	MessageCount int             `json:"message_count"`
}

// SessionDetail is a session with its full transcript.
type SessionDetail struct {
	Session
	Messages []Message `json:"messages"`
}

// Reply is the assistant's answer to one user message.
type Reply struct {
	Message  string              `json:"message"`
	Products []recommend.Product `json:"products"`
}
