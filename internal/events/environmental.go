package events

import (
	"fmt"

	"github.com/nidhogg/bird-zoo/internal/environment"
	"github.com/nidhogg/bird-zoo/internal/zoo"
)

// Generators in this file are gated by the environment snapshot. Each
// still needs a bird to narrate about.

func hasBirds(c *Context) bool { return len(c.Pop.Birds) > 0 }

func anyBird(c *Context) BirdRef { return zoo.Pick(c.Rand, c.Pop.Birds) }

type weatherGen struct{}

func (weatherGen) Name() string { return "weather" }

func (weatherGen) Applies(c *Context) bool {
	if c.Env == nil || c.Env.Weather == nil || !hasBirds(c) {
		return false
	}
	_, ok := weatherTemplates[c.Env.Weather.Condition]
	return ok
}

func (weatherGen) Generate(c *Context) zoo.Event {
	cond := c.Env.Weather.Condition
	b := anyBird(c)
	text := render(zoo.Pick(c.Rand, weatherTemplates[cond]), vars{"bird": b.Name, "emoji": weatherEmoji[cond]})
	return newEvent(c, "weather", text, b.Name, zoo.EventMeta{WeatherCondition: string(cond)})
}

type timeSlotGen struct{}

func (timeSlotGen) Name() string { return "time" }

func (timeSlotGen) Applies(c *Context) bool {
	return c.Env != nil && c.Env.TimeSlot != environment.SlotSleep && hasBirds(c)
}

func (timeSlotGen) Generate(c *Context) zoo.Event {
	b := anyBird(c)
	text := render(zoo.Pick(c.Rand, timeSlotTemplates[c.Env.TimeSlot]), vars{"bird": b.Name})
	return newEvent(c, "time", text, b.Name, zoo.EventMeta{})
}

type quietNightGen struct{}

func (quietNightGen) Name() string { return "quiet_night" }

func (quietNightGen) Applies(c *Context) bool {
	return c.Env != nil && c.Env.TimeSlot == environment.SlotSleep && hasBirds(c)
}

func (quietNightGen) Generate(c *Context) zoo.Event {
	b := anyBird(c)
	return newEvent(c, "quiet_night", render(zoo.Pick(c.Rand, quietNightTemplates), vars{"bird": b.Name}), b.Name, zoo.EventMeta{})
}

type seasonGen struct{}

func (seasonGen) Name() string { return "season" }

func (seasonGen) Applies(c *Context) bool { return c.Env != nil && hasBirds(c) }

func (seasonGen) Generate(c *Context) zoo.Event {
	b := anyBird(c)
	pool := seasonTemplates[c.Env.Season.Month-1]
	return newEvent(c, "season", render(zoo.Pick(c.Rand, pool), vars{"bird": b.Name}), b.Name, zoo.EventMeta{})
}

type specialDayGen struct{}

func (specialDayGen) Name() string { return "special_day" }

func (specialDayGen) Applies(c *Context) bool {
	return c.Env != nil && c.Env.SpecialDay != nil && hasBirds(c)
}

func (specialDayGen) Generate(c *Context) zoo.Event {
	b := anyBird(c)
	sd := c.Env.SpecialDay
	text := render(zoo.Pick(c.Rand, specialDayTemplates), vars{"bird": b.Name, "emoji": sd.Emoji, "day": sd.Name})
	return newEvent(c, "special_day", text, b.Name, zoo.EventMeta{})
}

type moonGen struct{}

func (moonGen) Name() string { return "moon" }

func (moonGen) Applies(c *Context) bool { return c.Env != nil && hasBirds(c) }

func (moonGen) Generate(c *Context) zoo.Event {
	b := anyBird(c)
	m := c.Env.Moon
	text := render(zoo.Pick(c.Rand, moonTemplates[m.Index]), vars{"bird": b.Name, "emoji": m.Emoji})
	return newEvent(c, "moon", text, b.Name, zoo.EventMeta{})
}

// TemperatureBucket names a Celsius reading.
func TemperatureBucket(celsius float64) string {
	switch {
	case celsius < 0:
		return "極寒"
	case celsius < 8:
		return "寒い"
	case celsius < 15:
		return "涼しい"
	case celsius < 22:
		return "穏やか"
	case celsius < 28:
		return "暖かい"
	case celsius < 33:
		return "暑い"
	default:
		return "猛暑"
	}
}

// WindBucket names a wind speed in m/s.
func WindBucket(ms float64) string {
	switch {
	case ms < 2:
		return "無風"
	case ms < 5:
		return "そよ風"
	case ms < 10:
		return "強風"
	default:
		return "暴風"
	}
}

// HumidityBucket names a relative humidity percentage.
func HumidityBucket(pct float64) string {
	switch {
	case pct < 40:
		return "乾燥"
	case pct < 70:
		return "快適"
	default:
		return "多湿"
	}
}

type temperatureGen struct{}

func (temperatureGen) Name() string { return "temperature" }

func (temperatureGen) Applies(c *Context) bool {
	return c.Env != nil && c.Env.Weather != nil && c.Env.Weather.Temperature != nil && hasBirds(c)
}

func (temperatureGen) Generate(c *Context) zoo.Event {
	temp := *c.Env.Weather.Temperature
	bucket := TemperatureBucket(temp)
	b := anyBird(c)
	text := render(zoo.Pick(c.Rand, temperatureTemplates[bucket]), vars{"bird": b.Name, "temp": fmt.Sprintf("%.1f", temp)})
	return newEvent(c, "temperature("+bucket+")", text, b.Name, zoo.EventMeta{WeatherCondition: string(c.Env.Weather.Condition)})
}

type windGen struct{}

func (windGen) Name() string { return "wind" }

func (windGen) Applies(c *Context) bool {
	return c.Env != nil && c.Env.Weather != nil && c.Env.Weather.WindSpeed != nil && hasBirds(c)
}

func (windGen) Generate(c *Context) zoo.Event {
	bucket := WindBucket(*c.Env.Weather.WindSpeed)
	b := anyBird(c)
	text := render(zoo.Pick(c.Rand, windTemplates[bucket]), vars{"bird": b.Name})
	return newEvent(c, "wind("+bucket+")", text, b.Name, zoo.EventMeta{WeatherCondition: string(c.Env.Weather.Condition)})
}

type humidityGen struct{}

func (humidityGen) Name() string { return "humidity" }

func (humidityGen) Applies(c *Context) bool {
	return c.Env != nil && c.Env.Weather != nil && c.Env.Weather.Humidity != nil && hasBirds(c)
}

func (humidityGen) Generate(c *Context) zoo.Event {
	bucket := HumidityBucket(*c.Env.Weather.Humidity)
	b := anyBird(c)
	text := render(zoo.Pick(c.Rand, humidityTemplates[bucket]), vars{"bird": b.Name})
	return newEvent(c, "humidity("+bucket+")", text, b.Name, zoo.EventMeta{WeatherCondition: string(c.Env.Weather.Condition)})
}
