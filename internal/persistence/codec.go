// Package persistence stores per-guild zoo snapshots.
//
// Every backend writes the same JSON envelope. Timestamps are encoded as
// RFC 3339 strings and decoded into time.Time; any timestamp that is not a
// string in that format fails the whole load so a corrupted snapshot never
// replaces the in-memory state.
package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/nidhogg/bird-zoo/internal/zoo"
)

// Codec loads and saves zoo snapshots.
type Codec interface {
	// Load returns nil, nil when nothing is stored for the guild.
	Load(ctx context.Context, guildID string) (*zoo.ZooState, error)
	Save(ctx context.Context, guildID string, st *zoo.ZooState) error
	List(ctx context.Context) ([]string, error)
}

const envelopeVersion = 1

type envelope struct {
	Version int           `json:"version"`
	GuildID string        `json:"guild_id"`
	SavedAt time.Time     `json:"saved_at"`
	State   *zoo.ZooState `json:"state"`
}

var guildIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidGuildID reports whether id is safe to use as a file or row key.
func ValidGuildID(id string) bool {
	return guildIDRe.MatchString(id)
}

// Encode serializes st into the snapshot envelope.
func Encode(guildID string, st *zoo.ZooState, savedAt time.Time) ([]byte, error) {
	data, err := json.Marshal(envelope{
		Version: envelopeVersion,
		GuildID: guildID,
		SavedAt: savedAt,
		State:   st,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s: %v", zoo.ErrPersistence, guildID, err)
	}
	return data, nil
}

// Decode parses a snapshot envelope and checks that it belongs to guildID.
func Decode(guildID string, data []byte) (*zoo.ZooState, error) {
	var env envelope
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", zoo.ErrPersistence, guildID, err)
	}
	if env.Version != envelopeVersion {
		return nil, fmt.Errorf("%w: %s: unsupported snapshot version %d", zoo.ErrPersistence, guildID, env.Version)
	}
	if env.State == nil {
		return nil, fmt.Errorf("%w: %s: snapshot without state", zoo.ErrPersistence, guildID)
	}
	if env.GuildID != guildID || env.State.GuildID != guildID {
		return nil, fmt.Errorf("%w: snapshot for %q found under %q", zoo.ErrPersistence, env.GuildID, guildID)
	}
	env.State.Normalize()
	return env.State, nil
}
