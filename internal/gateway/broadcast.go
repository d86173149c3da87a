package gateway

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nidhogg/bird-zoo/internal/zoo"
)

// BroadcastRecord tracks a published event for history.
type BroadcastRecord struct {
	GuildID string    `json:"guild_id"`
	Event   zoo.Event `json:"event"`
	SentAt  time.Time `json:"sent_at"`
	Targets []string  `json:"targets"`
}

// Broadcaster fans narration out to every sink. Delivery is asynchronous
// and best-effort: a failed sink is logged and never retried.
type Broadcaster struct {
	sinks    map[string]Sink
	timeout  time.Duration
	history  []BroadcastRecord
	maxHist  int
	inflight sync.WaitGroup
	mu       sync.RWMutex
	logger   *zap.Logger
}

// NewBroadcaster creates a broadcaster. timeout bounds each sink call.
func NewBroadcaster(timeout time.Duration, historySize int, logger *zap.Logger) *Broadcaster {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if historySize <= 0 {
		historySize = 200
	}
	return &Broadcaster{
		sinks:   make(map[string]Sink),
		timeout: timeout,
		maxHist: historySize,
		logger:  logger,
	}
}

// AddSink registers a named sink.
func (b *Broadcaster) AddSink(name string, s Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks[name] = s
}

// Publish records the event and delivers it to every sink in the background.
func (b *Broadcaster) Publish(ctx context.Context, guildID string, ev zoo.Event) {
	b.mu.Lock()
	targets := make([]string, 0, len(b.sinks))
	for name := range b.sinks {
		targets = append(targets, name)
	}
	sort.Strings(targets)
	sinks := make([]Sink, len(targets))
	for i, name := range targets {
		sinks[i] = b.sinks[name]
	}
	b.history = append(b.history, BroadcastRecord{
		GuildID: guildID,
		Event:   ev,
		SentAt:  time.Now(),
		Targets: targets,
	})
	if over := len(b.history) - b.maxHist; over > 0 {
		b.history = append([]BroadcastRecord(nil), b.history[over:]...)
	}
	b.mu.Unlock()

	// Sends outlive the tick that produced them.
	base := context.WithoutCancel(ctx)
	for i, s := range sinks {
		name := targets[i]
		b.inflight.Add(1)
		go func() {
			defer b.inflight.Done()
			sctx, cancel := context.WithTimeout(base, b.timeout)
			defer cancel()
			if err := s.Publish(sctx, guildID, ev); err != nil {
				b.logger.Warn("narration delivery failed",
					zap.String("sink", name),
					zap.String("guild", guildID),
					zap.String("type", ev.Type),
					zap.Error(err))
			}
		}()
	}
}

// Wait blocks until every in-flight delivery has finished or ctx is done.
func (b *Broadcaster) Wait(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// History returns up to limit recent records, oldest first. An empty
// guildID matches every guild.
func (b *Broadcaster) History(guildID string, limit int) []BroadcastRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []BroadcastRecord
	for _, r := range b.history {
		if guildID == "" || r.GuildID == guildID {
			out = append(out, r)
		}
	}
	if limit > 0 && limit < len(out) {
		out = out[len(out)-limit:]
	}
	return out
}
