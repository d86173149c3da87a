package environment

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/moonphase"
)

// JST is Japan Standard Time. Japan has no daylight saving so a fixed zone
// avoids depending on the tz database.
var JST = time.FixedZone("JST", 9*60*60)

// TimeSlot is one of the six daily bands the simulation reasons in.
type TimeSlot string

const (
	SlotDawn    TimeSlot = "dawn"
	SlotMorning TimeSlot = "morning"
	SlotNoon    TimeSlot = "noon"
	SlotEvening TimeSlot = "evening"
	SlotNight   TimeSlot = "night"
	SlotSleep   TimeSlot = "sleep"
)

// ActiveSlots lists the slots in which birds are awake.
var ActiveSlots = []TimeSlot{SlotDawn, SlotMorning, SlotNoon, SlotEvening, SlotNight}

// Label returns the Japanese name of the slot.
func (s TimeSlot) Label() string {
	switch s {
	case SlotDawn:
		return "早朝"
	case SlotMorning:
		return "朝"
	case SlotNoon:
		return "昼"
	case SlotEvening:
		return "夕方"
	case SlotNight:
		return "夜"
	case SlotSleep:
		return "就寝時間"
	default:
		return string(s)
	}
}

// SlotAt returns the slot for t, evaluated in JST.
func SlotAt(t time.Time) TimeSlot {
	h := t.In(JST).Hour()
	switch {
	case h >= 22 || h < 7:
		return SlotSleep
	case h < 9:
		return SlotDawn
	case h < 12:
		return SlotMorning
	case h < 16:
		return SlotNoon
	case h < 19:
		return SlotEvening
	default:
		return SlotNight
	}
}

// IsSleeping reports whether feeding is closed at t.
func IsSleeping(t time.Time) bool { return SlotAt(t) == SlotSleep }

// Season is the calendar season and its month-level sub-season.
type Season struct {
	Name      string     `json:"name"`
	SubSeason string     `json:"sub_season"`
	Month     time.Month `json:"month"`
}

var monthSeasons = [12]Season{
	{Name: "冬", SubSeason: "新春", Month: time.January},
	{Name: "冬", SubSeason: "晩冬", Month: time.February},
	{Name: "春", SubSeason: "早春", Month: time.March},
	{Name: "春", SubSeason: "盛春", Month: time.April},
	{Name: "春", SubSeason: "晩春", Month: time.May},
	{Name: "夏", SubSeason: "梅雨", Month: time.June},
	{Name: "夏", SubSeason: "盛夏", Month: time.July},
	{Name: "夏", SubSeason: "晩夏", Month: time.August},
	{Name: "秋", SubSeason: "初秋", Month: time.September},
	{Name: "秋", SubSeason: "仲秋", Month: time.October},
	{Name: "秋", SubSeason: "晩秋", Month: time.November},
	{Name: "冬", SubSeason: "初冬", Month: time.December},
}

// SeasonAt returns the season for t in JST.
func SeasonAt(t time.Time) Season {
	return monthSeasons[t.In(JST).Month()-1]
}

// IsMigrationSeason reports whether t falls in the spring or autumn
// migration months.
func IsMigrationSeason(t time.Time) bool {
	switch t.In(JST).Month() {
	case time.March, time.April, time.May, time.September, time.October, time.November:
		return true
	}
	return false
}

// SpecialDay is a fixed calendar date with its own narration.
type SpecialDay struct {
	Name  string `json:"name"`
	Emoji string `json:"emoji"`
}

type monthDay struct {
	month time.Month
	day   int
}

var specialDays = map[monthDay]SpecialDay{
	{time.January, 1}:    {Name: "お正月", Emoji: "🎍"},
	{time.February, 3}:   {Name: "節分", Emoji: "👹"},
	{time.February, 14}:  {Name: "バレンタインデー", Emoji: "🍫"},
	{time.March, 3}:      {Name: "ひな祭り", Emoji: "🎎"},
	{time.May, 5}:        {Name: "こどもの日", Emoji: "🎏"},
	{time.May, 10}:       {Name: "愛鳥週間", Emoji: "🐦"},
	{time.July, 7}:       {Name: "七夕", Emoji: "🎋"},
	{time.September, 15}: {Name: "お月見", Emoji: "🎑"},
	{time.October, 31}:   {Name: "ハロウィン", Emoji: "🎃"},
	{time.December, 24}:  {Name: "クリスマスイブ", Emoji: "🎄"},
	{time.December, 25}:  {Name: "クリスマス", Emoji: "🎅"},
	{time.December, 31}:  {Name: "大晦日", Emoji: "🔔"},
}

// SpecialDayAt returns the special day for t's JST date, or nil.
func SpecialDayAt(t time.Time) *SpecialDay {
	j := t.In(JST)
	sd, ok := specialDays[monthDay{j.Month(), j.Day()}]
	if !ok {
		return nil
	}
	return &sd
}

// MoonPhase is one of eight equal slices of the synodic month, 0 = new moon.
type MoonPhase struct {
	Index int     `json:"index"`
	Name  string  `json:"name"`
	Emoji string  `json:"emoji"`
	Age   float64 `json:"age_days"`
}

const synodicMonth = 29.530588853

// knownNewMoon is the new moon of 2000-01-06 18:14 UTC.
var knownNewMoon = time.Date(2000, time.January, 6, 18, 14, 0, 0, time.UTC)

var moonPhases = [8]struct{ name, emoji string }{
	{"新月", "🌑"},
	{"三日月", "🌒"},
	{"上弦の月", "🌓"},
	{"十三夜", "🌔"},
	{"満月", "🌕"},
	{"寝待月", "🌖"},
	{"下弦の月", "🌗"},
	{"有明月", "🌘"},
}

// MoonPhaseAt computes the phase from the true new moon preceding t. When
// that calculation yields an implausible age the mean synodic month is used.
func MoonPhaseAt(t time.Time) MoonPhase {
	age, ok := trueMoonAge(t)
	if !ok {
		age = meanMoonAge(t)
	}
	idx := int(math.Floor(age/synodicMonth*8+0.5)) % 8
	return MoonPhase{Index: idx, Name: moonPhases[idx].name, Emoji: moonPhases[idx].emoji, Age: age}
}

// lunationYears is one step of the lunation number k in decimal years.
const lunationYears = 1 / 12.3685

// trueMoonAge returns days since the last new moon per Meeus, chapter 49.
func trueMoonAge(t time.Time) (float64, bool) {
	jd := julian.TimeToJD(t.UTC())
	year := 2000 + (jd-2451545)/365.25
	nm := moonphase.New(year)
	if nm > jd {
		nm = moonphase.New(year - lunationYears)
	} else if next := moonphase.New(year + lunationYears); next <= jd {
		nm = next
	}
	age := jd - nm
	if math.IsNaN(age) || age < 0 || age > synodicMonth+1 {
		return 0, false
	}
	return age, true
}

// meanMoonAge returns days since the last mean new moon.
func meanMoonAge(t time.Time) float64 {
	days := t.Sub(knownNewMoon).Hours() / 24
	age := math.Mod(days, synodicMonth)
	if age < 0 {
		age += synodicMonth
	}
	return age
}
