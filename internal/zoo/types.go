package zoo

import (
	"fmt"
	"time"
)

// Habitat identifies one of the three resident areas of a zoo.
type Habitat string

const (
	HabitatForest    Habitat = "forest"
	HabitatGrassland Habitat = "grassland"
	HabitatWaterside Habitat = "waterside"
)

// Habitats lists every area in display order.
var Habitats = []Habitat{HabitatForest, HabitatGrassland, HabitatWaterside}

// Label returns the Japanese display name of the area.
func (h Habitat) Label() string {
	switch h {
	case HabitatForest:
		return "森林エリア"
	case HabitatGrassland:
		return "草原エリア"
	case HabitatWaterside:
		return "水辺エリア"
	default:
		return string(h)
	}
}

// Valid reports whether h names a known area.
func (h Habitat) Valid() bool {
	return h == HabitatForest || h == HabitatGrassland || h == HabitatWaterside
}

// Preference classifies a food for a given species.
type Preference string

const (
	PreferenceFavorite   Preference = "favorite"
	PreferenceAcceptable Preference = "acceptable"
	PreferenceDislike    Preference = "dislike"
)

// FeedRecord is one entry of a bird's append-only feeding history.
type FeedRecord struct {
	Food       string     `json:"food"`
	Preference Preference `json:"preference"`
	Timestamp  time.Time  `json:"timestamp"`
	FeederID   string     `json:"feeder_id"`
}

// Bird holds the fields shared by residents and visitors.
type Bird struct {
	ID                 string       `json:"id"`
	Name               string       `json:"name"`
	EntryTime          time.Time    `json:"entry_time"`
	ScheduledDeparture time.Time    `json:"scheduled_departure"`
	StayExtensionDays  int          `json:"stay_extension_days"`
	StayExtensionHours int          `json:"stay_extension_hours"`
	LastFed            *time.Time   `json:"last_fed,omitempty"`
	LastFedByUserID    string       `json:"last_fed_by_user_id,omitempty"`
	FeedCount          int          `json:"feed_count"`
	IsHungry           bool         `json:"is_hungry"`
	HungerNotified     bool         `json:"hunger_notified"`
	Mood               string       `json:"mood"`
	Activity           string       `json:"activity"`
	FeedHistory        []FeedRecord `json:"feed_history"`
}

// EffectiveDeparture is the scheduled departure plus every accumulated extension.
func (b *Bird) EffectiveDeparture() time.Time {
	return b.ScheduledDeparture.
		Add(time.Duration(b.StayExtensionDays) * 24 * time.Hour).
		Add(time.Duration(b.StayExtensionHours) * time.Hour)
}

// ShouldDepart reports whether now has reached the effective departure.
func (b *Bird) ShouldDepart(now time.Time) bool {
	return !now.Before(b.EffectiveDeparture())
}

// HungerReference is the instant hunger is measured from: the last feeding,
// or the entry time for a bird that was never fed.
func (b *Bird) HungerReference() time.Time {
	if b.LastFed != nil {
		return *b.LastFed
	}
	return b.EntryTime
}

// LastFedBy returns the most recent feeding of this bird by userID.
func (b *Bird) LastFedBy(userID string) (time.Time, bool) {
	for i := len(b.FeedHistory) - 1; i >= 0; i-- {
		if b.FeedHistory[i].FeederID == userID {
			return b.FeedHistory[i].Timestamp, true
		}
	}
	return time.Time{}, false
}

// DaysInResidence returns whole days since entry.
func (b *Bird) DaysInResidence(now time.Time) int {
	if now.Before(b.EntryTime) {
		return 0
	}
	return int(now.Sub(b.EntryTime) / (24 * time.Hour))
}

func (b Bird) clone() Bird {
	out := b
	if b.LastFed != nil {
		t := *b.LastFed
		out.LastFed = &t
	}
	if b.FeedHistory != nil {
		out.FeedHistory = append([]FeedRecord(nil), b.FeedHistory...)
	}
	return out
}

// ResidentBird lives in one of the habitat areas for a multi-day stay.
type ResidentBird struct {
	Bird
	Area Habitat `json:"area"`
}

// VisitorBird is a short visit invited by a user. It never extends its stay.
type VisitorBird struct {
	Bird
	InviterUserID string `json:"inviter_user_id"`
	InviterName   string `json:"inviter_name"`
}

// EventMeta carries generator-specific details of an event.
type EventMeta struct {
	IsRareEvent      bool    `json:"is_rare_event,omitempty"`
	FlockSize        int     `json:"flock_size,omitempty"`
	WeatherCondition string  `json:"weather_condition,omitempty"`
	DaysInResidence  int     `json:"days_in_residence,omitempty"`
	Area             Habitat `json:"area,omitempty"`
	Witness          string  `json:"witness,omitempty"`
}

// Event is a narrative record in a guild's event log.
type Event struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Content     string    `json:"content"`
	RelatedBird string    `json:"related_bird"`
	Timestamp   time.Time `json:"timestamp"`
	Meta        EventMeta `json:"meta"`
}

// AdmissionRequest is a resident waiting for a free slot in a full area.
type AdmissionRequest struct {
	ID          string    `json:"id"`
	Species     string    `json:"species"`
	Area        Habitat   `json:"area"`
	RequestedBy string    `json:"requested_by,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
	StayDays    int       `json:"stay_days,omitempty"`
}

// ZooState is the complete simulation state of one guild.
type ZooState struct {
	GuildID        string                      `json:"guild_id"`
	Areas          map[Habitat][]*ResidentBird `json:"areas"`
	Visitors       []*VisitorBird              `json:"visitors"`
	AdmissionQueue []AdmissionRequest          `json:"admission_queue"`
	EventLog       []Event                     `json:"event_log"`
	LastUpdate     time.Time                   `json:"last_update"`
}

// NewZooState returns an empty state with all three areas present.
func NewZooState(guildID string, now time.Time) *ZooState {
	s := &ZooState{
		GuildID:        guildID,
		Areas:          make(map[Habitat][]*ResidentBird, len(Habitats)),
		Visitors:       []*VisitorBird{},
		AdmissionQueue: []AdmissionRequest{},
		EventLog:       []Event{},
		LastUpdate:     now,
	}
	for _, h := range Habitats {
		s.Areas[h] = []*ResidentBird{}
	}
	return s
}

// Clone returns a deep copy that shares no mutable memory with s.
func (s *ZooState) Clone() *ZooState {
	out := &ZooState{
		GuildID:        s.GuildID,
		Areas:          make(map[Habitat][]*ResidentBird, len(s.Areas)),
		Visitors:       make([]*VisitorBird, 0, len(s.Visitors)),
		AdmissionQueue: append([]AdmissionRequest{}, s.AdmissionQueue...),
		EventLog:       append([]Event{}, s.EventLog...),
		LastUpdate:     s.LastUpdate,
	}
	for h, birds := range s.Areas {
		cp := make([]*ResidentBird, 0, len(birds))
		for _, b := range birds {
			cp = append(cp, &ResidentBird{Bird: b.Bird.clone(), Area: b.Area})
		}
		out.Areas[h] = cp
	}
	for _, v := range s.Visitors {
		out.Visitors = append(out.Visitors, &VisitorBird{
			Bird:          v.Bird.clone(),
			InviterUserID: v.InviterUserID,
			InviterName:   v.InviterName,
		})
	}
	return out
}

// Validate checks structural invariants of a loaded state. A state that
// fails validation must not replace a guild's in-memory state.
func (s *ZooState) Validate(capacity int) error {
	if s.GuildID == "" {
		return fmt.Errorf("missing guild id")
	}
	if s.LastUpdate.IsZero() {
		return fmt.Errorf("missing last_update")
	}
	seen := make(map[string]struct{})
	checkBird := func(b *Bird) error {
		if b.ID == "" || b.Name == "" {
			return fmt.Errorf("bird without id or name")
		}
		if b.EntryTime.IsZero() || b.ScheduledDeparture.IsZero() {
			return fmt.Errorf("bird %s: missing entry or departure time", b.ID)
		}
		if b.LastFed != nil && b.LastFed.IsZero() {
			return fmt.Errorf("bird %s: zero last_fed", b.ID)
		}
		for _, r := range b.FeedHistory {
			if r.Timestamp.IsZero() {
				return fmt.Errorf("bird %s: feed record without timestamp", b.ID)
			}
		}
		if _, dup := seen[b.ID]; dup {
			return fmt.Errorf("bird %s present in more than one slot", b.ID)
		}
		seen[b.ID] = struct{}{}
		return nil
	}
	for h, birds := range s.Areas {
		if !h.Valid() {
			return fmt.Errorf("unknown area %q", h)
		}
		if capacity > 0 && len(birds) > capacity {
			return fmt.Errorf("area %s holds %d birds (capacity %d)", h, len(birds), capacity)
		}
		for _, b := range birds {
			if err := checkBird(&b.Bird); err != nil {
				return err
			}
		}
	}
	for _, v := range s.Visitors {
		if err := checkBird(&v.Bird); err != nil {
			return err
		}
	}
	for _, e := range s.EventLog {
		if e.Timestamp.IsZero() {
			return fmt.Errorf("event %s without timestamp", e.ID)
		}
	}
	for _, q := range s.AdmissionQueue {
		if q.RequestedAt.IsZero() {
			return fmt.Errorf("queued request %s without timestamp", q.ID)
		}
	}
	return nil
}
