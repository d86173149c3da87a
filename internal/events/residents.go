package events

import (
	"strconv"

	"github.com/nidhogg/bird-zoo/internal/environment"
	"github.com/nidhogg/bird-zoo/internal/zoo"
)

// Generators in this file are gated by who is in the zoo.

const (
	longStayDays  = 7
	regularFeeds  = 5
	migrationBump = 0.10
)

type nocturnalGen struct{}

func (nocturnalGen) Name() string { return "nocturnal" }

// nocturnals returns the nocturnal residents, or the nocturnal visitors
// when no resident is nocturnal.
func nocturnals(c *Context) []BirdRef {
	var residents, visitors []BirdRef
	for _, b := range c.Pop.Filter(func(b BirdRef) bool { return b.Nocturnal }) {
		if b.Visitor {
			visitors = append(visitors, b)
		} else {
			residents = append(residents, b)
		}
	}
	if len(residents) > 0 {
		return residents
	}
	return visitors
}

func (nocturnalGen) Applies(c *Context) bool { return len(nocturnals(c)) > 0 }

func (nocturnalGen) Generate(c *Context) zoo.Event {
	b := zoo.Pick(c.Rand, nocturnals(c))
	return newEvent(c, "nocturnal", render(zoo.Pick(c.Rand, nocturnalTemplates), vars{"bird": b.Name}), b.Name, zoo.EventMeta{Area: b.Area})
}

type flockGen struct{}

func (flockGen) Name() string { return "flock" }

func (flockGen) Applies(c *Context) bool { return len(c.Pop.Flocks()) > 0 }

func (flockGen) Generate(c *Context) zoo.Event {
	name := zoo.Pick(c.Rand, c.Pop.Flocks())
	n := c.Pop.Counts[name]
	text := render(zoo.Pick(c.Rand, flockTemplates), vars{"bird": name, "count": strconv.Itoa(n)})
	return newEvent(c, "flock", text, name+"の群れ", zoo.EventMeta{FlockSize: n})
}

type longStayGen struct{}

func (longStayGen) Name() string { return "long_stay" }

func longStayers(c *Context) []BirdRef {
	return c.Pop.Filter(func(b BirdRef) bool { return !b.Visitor && b.Days >= longStayDays })
}

func (longStayGen) Applies(c *Context) bool { return len(longStayers(c)) > 0 }

func (longStayGen) Generate(c *Context) zoo.Event {
	b := zoo.Pick(c.Rand, longStayers(c))
	text := render(zoo.Pick(c.Rand, longStayTemplates), vars{"bird": b.Name, "days": strconv.Itoa(b.Days)})
	return newEvent(c, "long_stay", text, b.Name, zoo.EventMeta{DaysInResidence: b.Days, Area: b.Area})
}

// areaMovementGen narrates a visit to another area. The bird is not moved.
type areaMovementGen struct{}

func (areaMovementGen) Name() string { return "area_movement" }

func (areaMovementGen) Applies(c *Context) bool { return len(c.Pop.Residents()) > 0 }

func (areaMovementGen) Generate(c *Context) zoo.Event {
	b := zoo.Pick(c.Rand, c.Pop.Residents())
	var others []zoo.Habitat
	for _, h := range zoo.Habitats {
		if h != b.Area {
			others = append(others, h)
		}
	}
	to := zoo.Pick(c.Rand, others)
	text := render(zoo.Pick(c.Rand, areaMovementTemplates), vars{"bird": b.Name, "from": b.Area.Label(), "to": to.Label()})
	return newEvent(c, "area_movement", text, b.Name, zoo.EventMeta{Area: to})
}

// flyoverGen narrates a migratory species passing over. It never adds the
// species to the zoo.
type flyoverGen struct {
	base float64
}

func newFlyoverGen(base float64) flyoverGen {
	if base <= 0 {
		base = 0.15
	}
	return flyoverGen{base: base}
}

func (flyoverGen) Name() string { return "flyover" }

// Chance returns the flyover probability for c.
func (g flyoverGen) Chance(c *Context) float64 {
	p := g.base
	if c.Env != nil && environment.IsMigrationSeason(c.Env.At) {
		p += migrationBump
	}
	return p
}

func (g flyoverGen) Applies(c *Context) bool {
	return len(c.Pop.Migratory) > 0 && c.FlyoverRoll < g.Chance(c)
}

func (flyoverGen) Generate(c *Context) zoo.Event {
	species := zoo.Pick(c.Rand, c.Pop.Migratory)
	meta := zoo.EventMeta{IsRareEvent: true}
	var text string
	if res := c.Pop.Residents(); len(res) > 0 {
		w := zoo.Pick(c.Rand, res)
		meta.Witness = w.Name
		text = render(zoo.Pick(c.Rand, flyoverWitnessTemplates), vars{"bird": species, "witness": w.Name})
	} else {
		text = render(zoo.Pick(c.Rand, flyoverTemplates), vars{"bird": species})
	}
	return newEvent(c, "flyover", text, species, meta)
}

// interactionGen needs two residents sharing an area.
type interactionGen struct{}

func (interactionGen) Name() string { return "interaction" }

func sharedAreas(c *Context) []zoo.Habitat {
	counts := make(map[zoo.Habitat]int)
	for _, b := range c.Pop.Residents() {
		counts[b.Area]++
	}
	var out []zoo.Habitat
	for _, h := range zoo.Habitats {
		if counts[h] >= 2 {
			out = append(out, h)
		}
	}
	return out
}

func (interactionGen) Applies(c *Context) bool { return len(sharedAreas(c)) > 0 }

func (interactionGen) Generate(c *Context) zoo.Event {
	area := zoo.Pick(c.Rand, sharedAreas(c))
	birds := c.Pop.Filter(func(b BirdRef) bool { return !b.Visitor && b.Area == area })
	i := c.Rand.IntN(len(birds))
	j := c.Rand.IntN(len(birds) - 1)
	if j >= i {
		j++
	}
	a, b := birds[i], birds[j]
	text := render(zoo.Pick(c.Rand, interactionTemplates), vars{"bird": a.Name, "other": b.Name})
	return newEvent(c, "interaction", text, a.Name, zoo.EventMeta{Area: area, Witness: b.Name})
}

type visitorGen struct{}

func (visitorGen) Name() string { return "visitor" }

func (visitorGen) Applies(c *Context) bool { return len(c.Pop.Visitors()) > 0 }

func (visitorGen) Generate(c *Context) zoo.Event {
	b := zoo.Pick(c.Rand, c.Pop.Visitors())
	return newEvent(c, "visitor", render(zoo.Pick(c.Rand, visitorTemplates), vars{"bird": b.Name}), b.Name, zoo.EventMeta{})
}

type regularGen struct{}

func (regularGen) Name() string { return "regular" }

func regulars(c *Context) []BirdRef {
	return c.Pop.Filter(func(b BirdRef) bool { return b.FeedCount >= regularFeeds })
}

func (regularGen) Applies(c *Context) bool { return len(regulars(c)) > 0 }

func (regularGen) Generate(c *Context) zoo.Event {
	b := zoo.Pick(c.Rand, regulars(c))
	if sup, ok := c.Pop.Supporters[b.Name]; ok && zoo.Chance(c.Rand, 0.5) {
		text := render(zoo.Pick(c.Rand, regularSupporterTemplates), vars{"bird": b.Name, "supporter": sup})
		return newEvent(c, "regular", text, b.Name, zoo.EventMeta{Witness: sup, Area: b.Area})
	}
	text := render(zoo.Pick(c.Rand, regularTemplates), vars{"bird": b.Name, "count": strconv.Itoa(b.FeedCount)})
	return newEvent(c, "regular", text, b.Name, zoo.EventMeta{Area: b.Area})
}

type hungryGen struct{}

func (hungryGen) Name() string { return "hungry" }

func hungryResidents(c *Context) []BirdRef {
	return c.Pop.Filter(func(b BirdRef) bool { return !b.Visitor && b.Hungry })
}

func (hungryGen) Applies(c *Context) bool { return len(hungryResidents(c)) > 0 }

func (hungryGen) Generate(c *Context) zoo.Event {
	b := zoo.Pick(c.Rand, hungryResidents(c))
	return newEvent(c, "hungry", render(zoo.Pick(c.Rand, hungryTemplates), vars{"bird": b.Name}), b.Name, zoo.EventMeta{Area: b.Area})
}
