package router

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nidhogg/bird-zoo/internal/command"
	"github.com/nidhogg/bird-zoo/internal/gateway"
)

// Sender delivers a reply to the originating platform.
type Sender interface {
	Send(ctx context.Context, msg *gateway.OutboundMessage) error
}

// MessageRouter routes inbound slash commands to the command registry and
// replies on the originating channel. Other chatter is ignored.
type MessageRouter struct {
	gw       Sender
	commands *command.Registry
	timeout  time.Duration
	logger   *zap.Logger
}

// New creates a new MessageRouter. timeout bounds one command.
func New(gw Sender, commands *command.Registry, timeout time.Duration, logger *zap.Logger) *MessageRouter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MessageRouter{
		gw:       gw,
		commands: commands,
		timeout:  timeout,
		logger:   logger,
	}
}

// Handle routes an inbound message. Signature matches gateway.MessageHandler.
func (mr *MessageRouter) Handle(msg *gateway.InboundMessage) {
	content := strings.TrimSpace(msg.Content)
	if !strings.HasPrefix(content, "/") {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), mr.timeout)
	defer cancel()

	mr.logger.Debug("routing command",
		zap.String("platform", msg.Platform),
		zap.String("guild", msg.GuildID),
		zap.String("user", msg.UserName),
		zap.String("content", content),
	)

	if msg.GuildID == "" {
		mr.sendReply(ctx, msg, "このコマンドはサーバー内でのみ使えます。")
		return
	}

	cc := &command.CommandContext{
		Platform:  msg.Platform,
		GuildID:   msg.GuildID,
		ChannelID: msg.ChannelID,
		UserID:    msg.UserID,
		UserName:  msg.UserName,
	}
	result, err := mr.commands.Dispatch(ctx, content, cc)
	if err != nil {
		mr.logger.Error("command dispatch error",
			zap.String("guild", msg.GuildID),
			zap.String("content", content),
			zap.Error(err))
		mr.sendReply(ctx, msg, "⚠️ 処理中にエラーが発生しました。しばらくしてからもう一度お試しください。")
		return
	}
	mr.sendReply(ctx, msg, result.Content)
}

// sendReply sends a text reply back to the originating platform/channel.
func (mr *MessageRouter) sendReply(ctx context.Context, orig *gateway.InboundMessage, text string) {
	err := mr.gw.Send(ctx, &gateway.OutboundMessage{
		Platform:  orig.Platform,
		ChannelID: orig.ChannelID,
		Content:   text,
		ReplyTo:   orig.ReplyTo,
	})
	if err != nil {
		mr.logger.Error("send reply failed", zap.Error(err))
	}
}
