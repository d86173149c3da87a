package gateway

import (
	"context"
	"time"

	"github.com/nidhogg/bird-zoo/internal/zoo"
)

// GatewayAdapter defines the interface for platform adapters.
type GatewayAdapter interface {
	Platform() string
	Connect(ctx context.Context) error
	Send(ctx context.Context, msg *OutboundMessage) error
	OnMessage(handler MessageHandler)
	Status() AdapterStatus
	Close() error
}

// Sink receives zoo narration for one guild. Adapters that can post
// unprompted messages implement it alongside GatewayAdapter.
type Sink interface {
	Publish(ctx context.Context, guildID string, ev zoo.Event) error
}

// MessageHandler processes inbound messages from any platform.
type MessageHandler func(msg *InboundMessage)

// InboundMessage is a normalized message from any platform.
type InboundMessage struct {
	Platform  string    `json:"platform"`
	GuildID   string    `json:"guild_id"`
	ChannelID string    `json:"channel_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	ReplyTo   string    `json:"reply_to,omitempty"`
}

// OutboundMessage is a message sent to a specific platform channel.
type OutboundMessage struct {
	Platform  string `json:"platform"`
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
	ReplyTo   string `json:"reply_to,omitempty"`
}

// AdapterStatus describes the connection state of a platform adapter.
type AdapterStatus struct {
	Platform    string     `json:"platform"`
	Connected   bool       `json:"connected"`
	ConnectedAt *time.Time `json:"connected_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	Details     string     `json:"details,omitempty"`
}

// Persona is how the zookeeper narrator appears on platforms that allow
// per-message display names.
type Persona struct {
	Name    string `json:"name"`
	IconURL string `json:"icon_url"`
	Emoji   string `json:"emoji"` // fallback if no icon_url, e.g. ":bird:"
}

// DefaultPersona is used when none is configured.
var DefaultPersona = Persona{Name: "鳥類園の飼育員", Emoji: ":bird:"}

// FormatEvent renders an event as chat text. Rare events are highlighted.
func FormatEvent(ev zoo.Event) string {
	if ev.Meta.IsRareEvent {
		return "✨ **" + ev.Content + "**"
	}
	return ev.Content
}
