package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/nidhogg/bird-zoo/internal/zoo"
)

var errNotConnected = errors.New("adapter not connected")

// DiscordAdapter implements GatewayAdapter and Sink for Discord using the
// bot gateway. Each guild narrates into one channel.
type DiscordAdapter struct {
	token       string
	session     *discordgo.Session
	handler     MessageHandler
	persona     Persona
	channels    map[string]string // guildID -> narration channel
	webhooks    map[string]string // guildID -> webhook URL for persona messages
	connected   bool
	connectedAt time.Time
	lastError   string
	mu          sync.RWMutex
	logger      *zap.Logger
}

// NewDiscordAdapter creates a Discord gateway adapter.
func NewDiscordAdapter(token string, persona Persona, logger *zap.Logger) *DiscordAdapter {
	if persona.Name == "" {
		persona = DefaultPersona
	}
	return &DiscordAdapter{
		token:    token,
		persona:  persona,
		channels: make(map[string]string),
		webhooks: make(map[string]string),
		logger:   logger,
	}
}

func (a *DiscordAdapter) Platform() string { return "discord" }

func (a *DiscordAdapter) OnMessage(h MessageHandler) { a.handler = h }

// SetNarrationChannel pins the channel a guild's events are posted to.
func (a *DiscordAdapter) SetNarrationChannel(guildID, channelID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.channels[guildID] = channelID
}

// SetWebhook registers a webhook URL for a guild so narration shows the
// zookeeper persona.
func (a *DiscordAdapter) SetWebhook(guildID, webhookURL string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.webhooks[guildID] = webhookURL
}

// Connect opens the Discord gateway websocket.
func (a *DiscordAdapter) Connect(_ context.Context) error {
	session, err := discordgo.New("Bot " + a.token)
	if err != nil {
		a.mu.Lock()
		a.lastError = fmt.Sprintf("session create: %v", err)
		a.mu.Unlock()
		return fmt.Errorf("discord session: %w", err)
	}
	a.session = session

	a.session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent
	a.session.AddHandler(a.onMessageCreate)

	if err := a.session.Open(); err != nil {
		a.mu.Lock()
		a.lastError = fmt.Sprintf("open failed: %v", err)
		a.connected = false
		a.mu.Unlock()
		return fmt.Errorf("discord open: %w", err)
	}

	now := time.Now()
	a.mu.Lock()
	a.connected = true
	a.connectedAt = now
	a.lastError = ""
	a.mu.Unlock()

	guildCount := len(a.session.State.Guilds)
	if guildCount == 0 {
		a.logger.Warn("discord bot not added to any server, invite it first")
	}

	a.logger.Info("discord adapter connected",
		zap.String("user", a.session.State.User.Username),
		zap.Int("guilds", guildCount))
	return nil
}

// onMessageCreate handles incoming Discord messages.
func (a *DiscordAdapter) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == s.State.User.ID || m.Author.Bot {
		return
	}
	// Zoos belong to guilds; direct messages have no zoo.
	if m.GuildID == "" || a.handler == nil {
		return
	}

	a.handler(&InboundMessage{
		Platform:  "discord",
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		UserID:    m.Author.ID,
		UserName:  m.Author.Username,
		Content:   m.Content,
		Timestamp: m.Timestamp,
		ReplyTo:   m.ChannelID,
	})
}

// Send posts a reply to a Discord channel.
func (a *DiscordAdapter) Send(_ context.Context, msg *OutboundMessage) error {
	if a.session == nil {
		return errNotConnected
	}
	if _, err := a.session.ChannelMessageSend(msg.ChannelID, msg.Content); err != nil {
		return fmt.Errorf("discord send: %w", err)
	}
	return nil
}

// Publish posts an event to the guild's narration channel, through the
// persona webhook when one is configured.
func (a *DiscordAdapter) Publish(_ context.Context, guildID string, ev zoo.Event) error {
	if a.session == nil {
		return errNotConnected
	}
	content := FormatEvent(ev)

	a.mu.RLock()
	webhookURL := a.webhooks[guildID]
	a.mu.RUnlock()
	if webhookURL != "" {
		return a.sendViaWebhook(webhookURL, content)
	}

	channelID, err := a.narrationChannel(guildID)
	if err != nil {
		return err
	}
	if _, err := a.session.ChannelMessageSend(channelID, content); err != nil {
		return fmt.Errorf("discord narrate: %w", err)
	}
	return nil
}

// narrationChannel returns the pinned channel for a guild, falling back to
// the first text channel and remembering it.
func (a *DiscordAdapter) narrationChannel(guildID string) (string, error) {
	a.mu.RLock()
	ch, ok := a.channels[guildID]
	a.mu.RUnlock()
	if ok {
		return ch, nil
	}

	channels, err := a.session.GuildChannels(guildID)
	if err != nil {
		return "", fmt.Errorf("discord list channels: %w", err)
	}
	for _, c := range channels {
		if c.Type == discordgo.ChannelTypeGuildText {
			a.SetNarrationChannel(guildID, c.ID)
			return c.ID, nil
		}
	}
	return "", fmt.Errorf("guild %s has no text channel", guildID)
}

// sendViaWebhook posts a message using a Discord webhook with custom name/avatar.
func (a *DiscordAdapter) sendViaWebhook(webhookURL, content string) error {
	id, token, err := parseWebhookURL(webhookURL)
	if err != nil {
		return err
	}

	params := &discordgo.WebhookParams{
		Content:  content,
		Username: a.persona.Name,
	}
	if a.persona.IconURL != "" {
		params.AvatarURL = a.persona.IconURL
	}

	if _, err := a.session.WebhookExecute(id, token, false, params); err != nil {
		return fmt.Errorf("discord webhook execute: %w", err)
	}
	return nil
}

// parseWebhookURL extracts id and token from .../webhooks/{id}/{token}.
func parseWebhookURL(raw string) (id, token string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("discord webhook url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("discord webhook url %q: missing id/token", raw)
}

// Close shuts down the Discord session.
func (a *DiscordAdapter) Close() error {
	if a.session != nil {
		return a.session.Close()
	}
	return nil
}

func (a *DiscordAdapter) Status() AdapterStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := AdapterStatus{
		Platform:  "discord",
		Connected: a.connected,
		Error:     a.lastError,
	}
	if a.connected {
		t := a.connectedAt
		s.ConnectedAt = &t
		guildCount := 0
		if a.session != nil && a.session.State != nil {
			guildCount = len(a.session.State.Guilds)
		}
		s.Details = fmt.Sprintf("bot=%s, guilds=%d, narration_channels=%d",
			a.session.State.User.Username, guildCount, len(a.channels))
	}
	return s
}
