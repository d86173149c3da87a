package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"go.uber.org/zap"

	"github.com/nidhogg/bird-zoo/internal/zoo"
)

// SlackAdapter implements GatewayAdapter and Sink for Slack using Socket
// Mode. A workspace hosts exactly one zoo, identified by guildID.
type SlackAdapter struct {
	client      *slack.Client
	socket      *socketmode.Client
	handler     MessageHandler
	guildID     string
	channelID   string // narration channel
	persona     Persona
	threads     map[string]string // channelID:userID -> thread_ts for conversation continuity
	connected   bool
	connectedAt time.Time
	mu          sync.RWMutex
	logger      *zap.Logger
}

// NewSlackAdapter creates a Slack gateway adapter.
// botToken is the Bot User OAuth Token (xoxb-...).
// appToken is the App-Level Token (xapp-...) for Socket Mode.
func NewSlackAdapter(botToken, appToken, guildID, channelID string, persona Persona, logger *zap.Logger) *SlackAdapter {
	client := slack.New(botToken,
		slack.OptionAppLevelToken(appToken),
	)

	socket := socketmode.New(client,
		socketmode.OptionLog(zap.NewStdLog(logger)),
	)

	if persona.Name == "" {
		persona = DefaultPersona
	}
	return &SlackAdapter{
		client:    client,
		socket:    socket,
		guildID:   guildID,
		channelID: channelID,
		persona:   persona,
		threads:   make(map[string]string),
		logger:    logger,
	}
}

func (a *SlackAdapter) Platform() string { return "slack" }

func (a *SlackAdapter) OnMessage(h MessageHandler) { a.handler = h }

// Connect starts the Socket Mode event loop in a background goroutine.
func (a *SlackAdapter) Connect(ctx context.Context) error {
	go a.handleEvents(ctx)
	go func() {
		if err := a.socket.RunContext(ctx); err != nil {
			a.logger.Error("slack socket mode error", zap.Error(err))
			a.mu.Lock()
			a.connected = false
			a.mu.Unlock()
		}
	}()
	a.mu.Lock()
	a.connected = true
	a.connectedAt = time.Now()
	a.mu.Unlock()
	a.logger.Info("slack adapter connected via socket mode", zap.String("guild", a.guildID))
	return nil
}

// handleEvents processes incoming Socket Mode events.
func (a *SlackAdapter) handleEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-a.socket.Events:
			if !ok {
				return
			}
			a.processEvent(evt)
		}
	}
}

func (a *SlackAdapter) processEvent(evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeEventsAPI:
		eventsAPI, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			return
		}
		a.socket.Ack(*evt.Request)

		if eventsAPI.Type == slackevents.CallbackEvent {
			switch inner := eventsAPI.InnerEvent.Data.(type) {
			case *slackevents.MessageEvent:
				// Ignore bot messages to avoid loops
				if inner.BotID != "" {
					return
				}
				a.handleSlackMessage(inner)
			}
		}
	}
}

func (a *SlackAdapter) handleSlackMessage(ev *slackevents.MessageEvent) {
	if a.handler == nil {
		return
	}

	threadTS := ev.ThreadTimeStamp
	if threadTS == "" {
		threadTS = ev.TimeStamp
	}
	key := fmt.Sprintf("%s:%s", ev.Channel, ev.User)
	a.mu.Lock()
	a.threads[key] = threadTS
	a.mu.Unlock()

	a.handler(&InboundMessage{
		Platform:  "slack",
		GuildID:   a.guildID,
		ChannelID: ev.Channel,
		UserID:    ev.User,
		UserName:  ev.User,
		Content:   ev.Text,
		Timestamp: time.Now(),
		ReplyTo:   threadTS,
	})
}

// Send posts a reply to a Slack channel, threaded when possible.
func (a *SlackAdapter) Send(_ context.Context, msg *OutboundMessage) error {
	opts := []slack.MsgOption{
		slack.MsgOptionText(msg.Content, false),
	}
	if msg.ReplyTo != "" {
		opts = append(opts, slack.MsgOptionTS(msg.ReplyTo))
	}
	opts = append(opts, a.personaOpts()...)

	_, _, err := a.client.PostMessage(msg.ChannelID, opts...)
	if err != nil {
		a.logger.Error("slack send failed",
			zap.String("channel", msg.ChannelID), zap.Error(err))
		return fmt.Errorf("slack send: %w", err)
	}
	return nil
}

// Publish posts narration for this workspace's guild. Events of other
// guilds are ignored.
func (a *SlackAdapter) Publish(ctx context.Context, guildID string, ev zoo.Event) error {
	if guildID != a.guildID {
		return nil
	}
	if a.channelID == "" {
		return fmt.Errorf("slack: no narration channel for guild %s", guildID)
	}
	opts := append([]slack.MsgOption{slack.MsgOptionText(FormatEvent(ev), false)}, a.personaOpts()...)
	if _, _, err := a.client.PostMessageContext(ctx, a.channelID, opts...); err != nil {
		return fmt.Errorf("slack narrate: %w", err)
	}
	return nil
}

// personaOpts builds Slack message options for the narrator persona.
func (a *SlackAdapter) personaOpts() []slack.MsgOption {
	opts := []slack.MsgOption{
		slack.MsgOptionUsername(a.persona.Name),
	}
	if a.persona.IconURL != "" {
		opts = append(opts, slack.MsgOptionIconURL(a.persona.IconURL))
	} else if a.persona.Emoji != "" {
		opts = append(opts, slack.MsgOptionIconEmoji(a.persona.Emoji))
	}
	return opts
}

func (a *SlackAdapter) Status() AdapterStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := AdapterStatus{
		Platform:  "slack",
		Connected: a.connected,
		Details:   fmt.Sprintf("guild=%s, channel=%s", a.guildID, a.channelID),
	}
	if a.connected {
		t := a.connectedAt
		s.ConnectedAt = &t
	}
	return s
}

// Close is a no-op; the socket context cancellation handles shutdown.
func (a *SlackAdapter) Close() error {
	return nil
}
