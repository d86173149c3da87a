package router

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/nidhogg/bird-zoo/internal/command"
	"github.com/nidhogg/bird-zoo/internal/gateway"
)

type captureSender struct {
	mu   sync.Mutex
	sent []*gateway.OutboundMessage
}

func (c *captureSender) Send(_ context.Context, msg *gateway.OutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func newRouter() (*MessageRouter, *captureSender) {
	reg := command.NewRegistry()
	reg.Register(&command.Command{Name: "echo", Handler: func(_ context.Context, args string, cc *command.CommandContext) (*command.CommandResult, error) {
		return &command.CommandResult{Content: cc.GuildID + ":" + args}, nil
	}})
	reg.Register(&command.Command{Name: "boom", Handler: func(context.Context, string, *command.CommandContext) (*command.CommandResult, error) {
		return nil, errors.New("disk on fire")
	}})
	s := &captureSender{}
	return New(s, reg, 0, zap.NewNop()), s
}

func TestHandleDispatchesCommands(t *testing.T) {
	r, s := newRouter()
	r.Handle(&gateway.InboundMessage{Platform: "discord", GuildID: "g1", ChannelID: "c1", Content: " /echo hi", ReplyTo: "c1"})
	if len(s.sent) != 1 {
		t.Fatalf("sent %d replies", len(s.sent))
	}
	if got := s.sent[0]; got.Content != "g1:hi" || got.ChannelID != "c1" || got.Platform != "discord" {
		t.Errorf("reply = %+v", got)
	}
}

func TestHandleIgnoresChatter(t *testing.T) {
	r, s := newRouter()
	r.Handle(&gateway.InboundMessage{GuildID: "g1", Content: "かわいい鳥だね"})
	if len(s.sent) != 0 {
		t.Errorf("replied to chatter: %+v", s.sent)
	}
}

func TestHandleRequiresGuild(t *testing.T) {
	r, s := newRouter()
	r.Handle(&gateway.InboundMessage{Content: "/echo hi"})
	if len(s.sent) != 1 || !strings.Contains(s.sent[0].Content, "サーバー") {
		t.Errorf("sent = %+v", s.sent)
	}
}

func TestHandleHidesInternalErrors(t *testing.T) {
	r, s := newRouter()
	r.Handle(&gateway.InboundMessage{GuildID: "g1", Content: "/boom"})
	if len(s.sent) != 1 || strings.Contains(s.sent[0].Content, "disk") {
		t.Errorf("sent = %+v", s.sent)
	}
}
