// Package ledger tracks per-user affinity toward birds and nest ownership.
// It feeds flavor into events and the duplicate diagnostics; the zoo
// lifecycle never depends on it for correctness.
package ledger

import (
	"context"
	"sort"
	"sync"
)

// Ledger is the affinity and nest record store.
type Ledger interface {
	// AddAffinity credits userID with points toward birdName.
	AddAffinity(ctx context.Context, guildID, birdName, userID string, points int) error
	// TopSupporter returns the user with the highest affinity for birdName.
	TopSupporter(ctx context.Context, guildID, birdName string) (userID string, ok bool, err error)
	// NestOwner returns who holds birdName in a nest, if anyone.
	NestOwner(ctx context.Context, guildID, birdName string) (userID string, ok bool, err error)
	SetNest(ctx context.Context, guildID, birdName, userID string) error
	ClearNest(ctx context.Context, guildID, birdName string) error
	// Nests lists every nested bird and its owner.
	Nests(ctx context.Context, guildID string) (map[string]string, error)
}

// MemoryLedger is an in-process Ledger.
type MemoryLedger struct {
	mu       sync.RWMutex
	affinity map[string]map[string]int // guild/bird -> user -> points
	nests    map[string]map[string]string
}

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		affinity: make(map[string]map[string]int),
		nests:    make(map[string]map[string]string),
	}
}

func affinityKey(guildID, birdName string) string { return guildID + "/" + birdName }

func (l *MemoryLedger) AddAffinity(_ context.Context, guildID, birdName, userID string, points int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := affinityKey(guildID, birdName)
	if l.affinity[k] == nil {
		l.affinity[k] = make(map[string]int)
	}
	l.affinity[k][userID] += points
	return nil
}

func (l *MemoryLedger) TopSupporter(_ context.Context, guildID, birdName string) (string, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	scores := l.affinity[affinityKey(guildID, birdName)]
	if len(scores) == 0 {
		return "", false, nil
	}
	users := make([]string, 0, len(scores))
	for u := range scores {
		users = append(users, u)
	}
	sort.Strings(users)
	best := users[0]
	for _, u := range users[1:] {
		if scores[u] > scores[best] {
			best = u
		}
	}
	return best, true, nil
}

func (l *MemoryLedger) NestOwner(_ context.Context, guildID, birdName string) (string, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	owner, ok := l.nests[guildID][birdName]
	return owner, ok, nil
}

func (l *MemoryLedger) SetNest(_ context.Context, guildID, birdName, userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.nests[guildID] == nil {
		l.nests[guildID] = make(map[string]string)
	}
	l.nests[guildID][birdName] = userID
	return nil
}

func (l *MemoryLedger) ClearNest(_ context.Context, guildID, birdName string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.nests[guildID], birdName)
	return nil
}

func (l *MemoryLedger) Nests(_ context.Context, guildID string) (map[string]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]string, len(l.nests[guildID]))
	for k, v := range l.nests[guildID] {
		out[k] = v
	}
	return out, nil
}
