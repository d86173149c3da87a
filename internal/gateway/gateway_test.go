package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nidhogg/bird-zoo/internal/zoo"
)

type recordingSink struct {
	mu     sync.Mutex
	got    []string
	err    error
	block  chan struct{}
	called chan struct{}
}

func (s *recordingSink) Publish(ctx context.Context, guildID string, ev zoo.Event) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	s.got = append(s.got, guildID+":"+ev.Type)
	s.mu.Unlock()
	if s.called != nil {
		s.called <- struct{}{}
	}
	return s.err
}

func (s *recordingSink) seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.got...)
}

func TestBroadcasterFansOutToEverySink(t *testing.T) {
	b := NewBroadcaster(time.Second, 10, zap.NewNop())
	ok := &recordingSink{}
	failing := &recordingSink{err: errors.New("webhook down")}
	b.AddSink("stream", ok)
	b.AddSink("discord", failing)

	b.Publish(context.Background(), "g1", zoo.Event{Type: "arrival"})
	b.Wait(context.Background())

	if got := ok.seen(); len(got) != 1 || got[0] != "g1:arrival" {
		t.Errorf("stream sink got %v", got)
	}
	if got := failing.seen(); len(got) != 1 {
		t.Errorf("failing sink got %v", got)
	}
	h := b.History("g1", 0)
	if len(h) != 1 || len(h[0].Targets) != 2 || h[0].Targets[0] != "discord" {
		t.Errorf("history = %+v", h)
	}
}

func TestBroadcasterDoesNotBlockOnSlowSink(t *testing.T) {
	b := NewBroadcaster(50*time.Millisecond, 10, zap.NewNop())
	slow := &recordingSink{block: make(chan struct{})}
	b.AddSink("slow", slow)

	start := time.Now()
	b.Publish(context.Background(), "g1", zoo.Event{Type: "weather"})
	if time.Since(start) > 20*time.Millisecond {
		t.Error("Publish blocked on a slow sink")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	b.Wait(ctx)
	if ctx.Err() != nil {
		t.Error("sink timeout did not bound the delivery")
	}
	if len(slow.seen()) != 0 {
		t.Error("timed out delivery was recorded")
	}
}

func TestBroadcasterHistoryIsBounded(t *testing.T) {
	b := NewBroadcaster(time.Second, 3, zap.NewNop())
	for _, g := range []string{"g1", "g2", "g1", "g1", "g2"} {
		b.Publish(context.Background(), g, zoo.Event{Type: "time"})
	}
	if n := len(b.History("", 0)); n != 3 {
		t.Errorf("history kept %d records", n)
	}
	if n := len(b.History("g1", 0)); n != 2 {
		t.Errorf("g1 history = %d", n)
	}
	if n := len(b.History("", 1)); n != 1 {
		t.Errorf("limited history = %d", n)
	}
}

func TestFormatEventHighlightsRareEvents(t *testing.T) {
	plain := FormatEvent(zoo.Event{Content: "スズメが鳴いています"})
	if plain != "スズメが鳴いています" {
		t.Errorf("plain = %q", plain)
	}
	rare := FormatEvent(zoo.Event{Content: "コハクチョウが上空を通過", Meta: zoo.EventMeta{IsRareEvent: true}})
	if rare == plain || !bytes.Contains([]byte(rare), []byte("コハクチョウ")) {
		t.Errorf("rare = %q", rare)
	}
}

func TestGatewayListsSinksAndStatus(t *testing.T) {
	gw := NewGateway(zap.NewNop())
	gw.Register(NewRESTAdapter(0, zap.NewNop()))
	gw.Register(NewDiscordAdapter("token", Persona{}, zap.NewNop()))

	sinks := gw.Sinks()
	if _, ok := sinks["discord"]; !ok || len(sinks) != 1 {
		t.Errorf("sinks = %v", sinks)
	}
	st := gw.StatusAll()
	if len(st) != 2 || st[0].Platform != "discord" || st[0].Connected || !st[1].Connected {
		t.Errorf("status = %+v", st)
	}
}

func TestDiscordPublishBeforeConnect(t *testing.T) {
	a := NewDiscordAdapter("token", Persona{}, zap.NewNop())
	if err := a.Publish(context.Background(), "g1", zoo.Event{}); !errors.Is(err, errNotConnected) {
		t.Errorf("err = %v", err)
	}
}

func TestSlackIgnoresOtherGuilds(t *testing.T) {
	a := NewSlackAdapter("xoxb-test", "xapp-test", "g1", "", Persona{}, zap.NewNop())
	if err := a.Publish(context.Background(), "g2", zoo.Event{}); err != nil {
		t.Errorf("foreign guild: %v", err)
	}
	if err := a.Publish(context.Background(), "g1", zoo.Event{}); err == nil {
		t.Error("expected error without a narration channel")
	}
}

func TestRESTRoundTrip(t *testing.T) {
	a := NewRESTAdapter(time.Second, zap.NewNop())
	gw := NewGateway(zap.NewNop())
	gw.Register(a)
	gw.SetHandler(func(msg *InboundMessage) {
		gw.Send(context.Background(), &OutboundMessage{
			Platform:  msg.Platform,
			ChannelID: msg.ChannelID,
			Content:   msg.GuildID + " " + msg.Content,
		})
	})

	srv := httptest.NewServer(a.Routes())
	defer srv.Close()

	body, _ := json.Marshal(map[string]string{"guild_id": "g1", "user_id": "u1", "content": "/zoo"})
	resp, err := http.Post(srv.URL+"/message", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out OutboundMessage
	json.NewDecoder(resp.Body).Decode(&out)
	if out.Content != "g1 /zoo" {
		t.Errorf("reply = %q", out.Content)
	}
}

func TestRESTRequiresGuild(t *testing.T) {
	a := NewRESTAdapter(time.Second, zap.NewNop())
	srv := httptest.NewServer(a.Routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/message", "application/json", bytes.NewReader([]byte(`{"content":"/zoo"}`)))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestParseWebhookURL(t *testing.T) {
	id, token, err := parseWebhookURL("https://discord.com/api/webhooks/12345/abc-DEF_tok")
	if err != nil || id != "12345" || token != "abc-DEF_tok" {
		t.Errorf("parse = %q, %q, %v", id, token, err)
	}
	if _, _, err := parseWebhookURL("https://discord.com/api/channels/1"); err == nil {
		t.Error("expected error for a non-webhook URL")
	}
}
