package events

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/nidhogg/bird-zoo/internal/catalog"
	"github.com/nidhogg/bird-zoo/internal/ledger"
	"github.com/nidhogg/bird-zoo/internal/zoo"
)

// BirdRef is a read-only view of one bird for generators.
type BirdRef struct {
	ID        string
	Name      string
	Area      zoo.Habitat // empty for visitors
	Visitor   bool
	Days      int
	FeedCount int
	Hungry    bool
	Nocturnal bool
}

// Population is what generators know about a guild's birds.
type Population struct {
	Birds []BirdRef
	// Counts is the number of individuals present per species.
	Counts map[string]int
	// Migratory lists migratory species not currently present.
	Migratory []string
	// Supporters maps a species to its top supporter in the ledger.
	Supporters map[string]string
}

// Residents returns the resident birds.
func (p *Population) Residents() []BirdRef {
	var out []BirdRef
	for _, b := range p.Birds {
		if !b.Visitor {
			out = append(out, b)
		}
	}
	return out
}

// Visitors returns the visiting birds.
func (p *Population) Visitors() []BirdRef {
	var out []BirdRef
	for _, b := range p.Birds {
		if b.Visitor {
			out = append(out, b)
		}
	}
	return out
}

// Filter returns birds satisfying keep.
func (p *Population) Filter(keep func(BirdRef) bool) []BirdRef {
	var out []BirdRef
	for _, b := range p.Birds {
		if keep(b) {
			out = append(out, b)
		}
	}
	return out
}

// Flocks returns species with at least two individuals present.
func (p *Population) Flocks() []string {
	var out []string
	seen := make(map[string]bool)
	for _, b := range p.Birds {
		if p.Counts[b.Name] >= 2 && !seen[b.Name] {
			seen[b.Name] = true
			out = append(out, b.Name)
		}
	}
	return out
}

// MigratoryLister is implemented by catalogs that know migratory species.
type MigratoryLister interface {
	Migratory() []string
}

// PopulationBuilder turns a state copy into a Population. Catalog and
// ledger calls share one deadline; once either fails the rest of the build
// proceeds without it.
type PopulationBuilder struct {
	catalog catalog.Catalog
	ledger  ledger.Ledger
	timeout time.Duration
	logger  *zap.Logger
}

// NewPopulationBuilder creates a builder. cat and led may be nil.
func NewPopulationBuilder(cat catalog.Catalog, led ledger.Ledger, timeout time.Duration, logger *zap.Logger) *PopulationBuilder {
	if timeout <= 0 {
		timeout = 300 * time.Millisecond
	}
	return &PopulationBuilder{catalog: cat, ledger: led, timeout: timeout, logger: logger}
}

// Build must be called on a copy of the state, outside the guild's lock.
func (pb *PopulationBuilder) Build(ctx context.Context, st *zoo.ZooState, now time.Time) *Population {
	ctx, cancel := context.WithTimeout(ctx, pb.timeout)
	defer cancel()

	pop := &Population{Counts: make(map[string]int), Supporters: make(map[string]string)}
	for _, r := range st.Residents() {
		pop.Birds = append(pop.Birds, BirdRef{
			ID:        r.ID,
			Name:      r.Name,
			Area:      r.Area,
			Days:      r.DaysInResidence(now),
			FeedCount: r.FeedCount,
			Hungry:    r.IsHungry,
		})
	}
	for _, v := range st.Visitors {
		pop.Birds = append(pop.Birds, BirdRef{
			ID:        v.ID,
			Name:      v.Name,
			Visitor:   true,
			Days:      v.DaysInResidence(now),
			FeedCount: v.FeedCount,
			Hungry:    v.IsHungry,
		})
	}
	for _, b := range pop.Birds {
		pop.Counts[b.Name]++
	}

	species := pb.lookupAll(ctx, pop.Counts)
	for i := range pop.Birds {
		b := &pop.Birds[i]
		b.Nocturnal = catalog.IsNocturnal(species[b.Name], b.Name)
	}

	if ml, ok := pb.catalog.(MigratoryLister); ok {
		for _, name := range ml.Migratory() {
			if pop.Counts[name] == 0 {
				pop.Migratory = append(pop.Migratory, name)
			}
		}
	}

	pb.loadSupporters(ctx, st.GuildID, pop)
	return pop
}

func (pb *PopulationBuilder) lookupAll(ctx context.Context, counts map[string]int) map[string]*catalog.Species {
	out := make(map[string]*catalog.Species, len(counts))
	if pb.catalog == nil {
		return out
	}
	for name := range counts {
		sp, err := pb.catalog.Lookup(ctx, name)
		if err == nil {
			out[name] = sp
			continue
		}
		if errors.Is(err, zoo.ErrNotFound) {
			continue
		}
		pb.logger.Warn("catalog unavailable, using name keywords",
			zap.String("species", name), zap.Error(err))
		break
	}
	return out
}

func (pb *PopulationBuilder) loadSupporters(ctx context.Context, guildID string, pop *Population) {
	if pb.ledger == nil {
		return
	}
	for name := range pop.Counts {
		user, ok, err := pb.ledger.TopSupporter(ctx, guildID, name)
		if err != nil {
			pb.logger.Debug("ledger unavailable, skipping supporters", zap.Error(err))
			return
		}
		if ok {
			pop.Supporters[name] = user
		}
	}
}
