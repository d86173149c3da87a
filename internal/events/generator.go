// Package events holds the registry of narrative event generators. Each
// generator declares when it applies and renders one event from authored
// templates; the registry picks uniformly among the applicable ones.
package events

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nidhogg/bird-zoo/internal/environment"
	"github.com/nidhogg/bird-zoo/internal/zoo"
)

// Context is everything a generator may read. It is built once per guild
// per tick and never mutated by generators.
type Context struct {
	Env  *environment.Snapshot
	Pop  *Population
	Rand zoo.Rand
	Now  time.Time

	// FlyoverRoll is drawn once so that the flyover precondition is stable
	// between Applies and Generate.
	FlyoverRoll float64
}

// NewContext builds a generation context.
func NewContext(env *environment.Snapshot, pop *Population, r zoo.Rand, now time.Time) *Context {
	if r == nil {
		r = zoo.DefaultRand
	}
	if pop == nil {
		pop = &Population{}
	}
	return &Context{Env: env, Pop: pop, Rand: r, Now: now, FlyoverRoll: r.Float64()}
}

// Generator produces one kind of event.
type Generator interface {
	Name() string
	Applies(c *Context) bool
	Generate(c *Context) zoo.Event
}

// Registry is an ordered set of generators.
type Registry struct {
	generators []Generator
}

// NewRegistry creates a registry from gens.
func NewRegistry(gens ...Generator) *Registry {
	return &Registry{generators: gens}
}

// DefaultRegistry returns every built-in generator. flyoverChance is the
// base flyover probability outside migration season.
func DefaultRegistry(flyoverChance float64) *Registry {
	return NewRegistry(
		weatherGen{},
		timeSlotGen{},
		seasonGen{},
		specialDayGen{},
		moonGen{},
		temperatureGen{},
		windGen{},
		humidityGen{},
		quietNightGen{},
		nocturnalGen{},
		flockGen{},
		longStayGen{},
		areaMovementGen{},
		newFlyoverGen(flyoverChance),
		interactionGen{},
		visitorGen{},
		regularGen{},
		hungryGen{},
	)
}

// Register adds g.
func (r *Registry) Register(g Generator) {
	r.generators = append(r.generators, g)
}

// Names lists the registered generators in order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.generators))
	for i, g := range r.generators {
		out[i] = g.Name()
	}
	return out
}

// Applicable returns the generators whose precondition holds for c.
func (r *Registry) Applicable(c *Context) []Generator {
	var out []Generator
	for _, g := range r.generators {
		if g.Applies(c) {
			out = append(out, g)
		}
	}
	return out
}

// Select picks one applicable generator uniformly and renders its event.
// It reports false when nothing applies.
func (r *Registry) Select(c *Context) (zoo.Event, bool) {
	apps := r.Applicable(c)
	if len(apps) == 0 {
		return zoo.Event{}, false
	}
	g := zoo.Pick(c.Rand, apps)
	return g.Generate(c), true
}

// vars holds template substitutions.
type vars map[string]string

func render(tmpl string, v vars) string {
	pairs := make([]string, 0, len(v)*2)
	for k, val := range v {
		pairs = append(pairs, "{"+k+"}", val)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

func newEvent(c *Context, typ, content, related string, meta zoo.EventMeta) zoo.Event {
	return zoo.Event{
		ID:          uuid.NewString(),
		Type:        typ,
		Content:     content,
		RelatedBird: related,
		Timestamp:   c.Now,
		Meta:        meta,
	}
}
