package persistence

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nidhogg/bird-zoo/internal/metrics"
	"github.com/nidhogg/bird-zoo/internal/zoo"
)

// Persister flushes dirty guilds from a zoo.Store to a Codec. State is
// copied under the guild lock and written after the lock is released.
type Persister struct {
	codec   Codec
	store   *zoo.Store
	timeout time.Duration
	metrics *metrics.Metrics
	dirty   map[string]struct{}
	mu      sync.Mutex
	flushMu sync.Mutex
	logger  *zap.Logger
}

// NewPersister wires codec to store: lazy loads go through the codec and
// every successful mutation marks the guild dirty.
func NewPersister(codec Codec, store *zoo.Store, timeout time.Duration, m *metrics.Metrics, logger *zap.Logger) *Persister {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	p := &Persister{
		codec:   codec,
		store:   store,
		timeout: timeout,
		metrics: m,
		dirty:   make(map[string]struct{}),
		logger:  logger,
	}
	store.SetLoader(p.load)
	store.SetDirtyHook(p.MarkDirty)
	return p
}

func (p *Persister) load(guildID string) (*zoo.ZooState, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	st, err := p.codec.Load(ctx, guildID)
	if err != nil {
		p.metrics.PersistenceFailure("load")
	}
	return st, err
}

// MarkDirty schedules the guild for the next flush.
func (p *Persister) MarkDirty(guildID string) {
	p.mu.Lock()
	p.dirty[guildID] = struct{}{}
	p.mu.Unlock()
}

// Pending returns how many guilds wait to be written.
func (p *Persister) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.dirty)
}

// RestoreAll loads every stored guild into the store. Guilds that fail to
// load or validate are skipped and start fresh on first access.
func (p *Persister) RestoreAll(ctx context.Context) int {
	ids, err := p.codec.List(ctx)
	if err != nil {
		p.metrics.PersistenceFailure("list")
		p.logger.Warn("listing stored guilds failed", zap.Error(err))
		return 0
	}
	restored := 0
	for _, id := range ids {
		st, err := p.codec.Load(ctx, id)
		if err != nil {
			p.metrics.PersistenceFailure("load")
			p.logger.Warn("guild snapshot unreadable, starting fresh",
				zap.String("guild", id), zap.Error(err))
			continue
		}
		if st == nil {
			continue
		}
		if err := st.Validate(p.store.Capacity()); err != nil {
			p.metrics.PersistenceFailure("load")
			p.logger.Warn("guild snapshot invalid, starting fresh",
				zap.String("guild", id), zap.Error(err))
			continue
		}
		p.store.Restore(id, st)
		restored++
	}
	p.logger.Info("restored zoo states", zap.Int("guilds", restored))
	return restored
}

// Flush writes every dirty guild. Guilds that fail stay dirty.
func (p *Persister) Flush(ctx context.Context) error {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	p.mu.Lock()
	pending := p.dirty
	p.dirty = make(map[string]struct{})
	p.mu.Unlock()

	var errs []error
	for id := range pending {
		st, ok := p.store.Peek(id)
		if !ok {
			continue
		}
		saveCtx, cancel := context.WithTimeout(ctx, p.timeout)
		err := p.codec.Save(saveCtx, id, st)
		cancel()
		if err != nil {
			p.metrics.PersistenceFailure("save")
			p.logger.Warn("zoo snapshot save failed",
				zap.String("guild", id), zap.Error(err))
			p.MarkDirty(id)
			errs = append(errs, err)
			continue
		}
		p.logger.Debug("zoo snapshot saved", zap.String("guild", id))
	}
	return errors.Join(errs...)
}

// FlushAll writes every guild regardless of dirty state.
func (p *Persister) FlushAll(ctx context.Context) error {
	for _, id := range p.store.GuildIDs() {
		p.MarkDirty(id)
	}
	return p.Flush(ctx)
}

// Run flushes on every interval until ctx is cancelled.
func (p *Persister) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = p.Flush(ctx)
		}
	}
}
