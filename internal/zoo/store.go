package zoo

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// LoadFunc restores a guild's state on first access. It returns nil, nil
// when nothing is stored for the guild.
type LoadFunc func(guildID string) (*ZooState, error)

// guildEntry owns one guild's state behind its own lock so guilds never
// block each other.
type guildEntry struct {
	mu    sync.Mutex
	state *ZooState
}

// Store owns every guild's ZooState.
type Store struct {
	guilds   map[string]*guildEntry
	mu       sync.RWMutex
	load     LoadFunc
	onDirty  func(guildID string)
	capacity int
	now      func() time.Time
	logger   *zap.Logger
}

// NewStore creates an empty store. capacity is the per-area resident limit
// used when validating loaded states.
func NewStore(capacity int, now func() time.Time, logger *zap.Logger) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		guilds:   make(map[string]*guildEntry),
		capacity: capacity,
		now:      now,
		logger:   logger,
	}
}

// SetLoader installs the function used to restore a guild lazily.
func (s *Store) SetLoader(fn LoadFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load = fn
}

// SetDirtyHook installs a callback invoked after every successful Mutate.
func (s *Store) SetDirtyHook(fn func(guildID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDirty = fn
}

// Capacity returns the per-area resident limit.
func (s *Store) Capacity() int { return s.capacity }

// Get returns a copy of the guild's state, creating it if needed.
func (s *Store) Get(guildID string) *ZooState {
	e := s.entry(guildID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// Mutate runs fn with exclusive access to the guild's state. On success the
// state's LastUpdate is stamped and the dirty hook fires.
func (s *Store) Mutate(guildID string, fn func(*ZooState) error) error {
	e := s.entry(guildID)

	e.mu.Lock()
	err := func() error {
		defer e.mu.Unlock()
		if err := fn(e.state); err != nil {
			return err
		}
		e.state.LastUpdate = s.now()
		return nil
	}()
	if err != nil {
		return err
	}

	s.mu.RLock()
	hook := s.onDirty
	s.mu.RUnlock()
	if hook != nil {
		hook(guildID)
	}
	return nil
}

// Peek returns a copy of the guild's state without creating it.
func (s *Store) Peek(guildID string) (*ZooState, bool) {
	s.mu.RLock()
	e, ok := s.guilds[guildID]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone(), true
}

// Restore installs st as the guild's state, replacing anything in memory.
func (s *Store) Restore(guildID string, st *ZooState) {
	st.Normalize()
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.guilds[guildID]; ok {
		e.mu.Lock()
		e.state = st
		e.mu.Unlock()
		return
	}
	s.guilds[guildID] = &guildEntry{state: st}
}

// GuildIDs returns every known guild, sorted.
func (s *Store) GuildIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.guilds))
	for id := range s.guilds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SnapshotAll copies every guild's state.
func (s *Store) SnapshotAll() map[string]*ZooState {
	out := make(map[string]*ZooState)
	for _, id := range s.GuildIDs() {
		if st, ok := s.Peek(id); ok {
			out[id] = st
		}
	}
	return out
}

func (s *Store) entry(guildID string) *guildEntry {
	s.mu.RLock()
	e, ok := s.guilds[guildID]
	load := s.load
	s.mu.RUnlock()
	if ok {
		return e
	}

	st := s.restore(guildID, load)

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.guilds[guildID]; ok {
		return e
	}
	e = &guildEntry{state: st}
	s.guilds[guildID] = e
	return e
}

// restore tries the loader and falls back to a fresh state. Loaded data
// that fails validation is discarded.
func (s *Store) restore(guildID string, load LoadFunc) *ZooState {
	if load != nil {
		st, err := load(guildID)
		switch {
		case err != nil:
			s.logger.Warn("zoo state load failed, starting fresh",
				zap.String("guild", guildID), zap.Error(err))
		case st != nil:
			st.Normalize()
			if vErr := st.Validate(s.capacity); vErr != nil {
				s.logger.Warn("zoo state invalid, starting fresh",
					zap.String("guild", guildID), zap.Error(vErr))
			} else {
				return st
			}
		}
	}
	return NewZooState(guildID, s.now())
}
