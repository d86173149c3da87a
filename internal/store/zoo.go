package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nidhogg/bird-zoo/internal/persistence"
	"github.com/nidhogg/bird-zoo/internal/zoo"
)

var _ persistence.Codec = (*Store)(nil)

// Save upserts a guild's snapshot. The row is replaced in one statement,
// so readers never observe a partial snapshot.
func (s *Store) Save(ctx context.Context, guildID string, st *zoo.ZooState) error {
	now := time.Now()
	data, err := persistence.Encode(guildID, st, now)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO zoo_states (guild_id, snapshot, saved_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (guild_id) DO UPDATE SET
			snapshot = EXCLUDED.snapshot,
			saved_at = EXCLUDED.saved_at`,
		guildID, string(data), now,
	)
	if err != nil {
		return fmt.Errorf("%w: save zoo %s: %v", zoo.ErrPersistence, guildID, err)
	}
	return nil
}

// Load reads a guild's snapshot; nil, nil when the guild has none.
func (s *Store) Load(ctx context.Context, guildID string) (*zoo.ZooState, error) {
	var data []byte
	err := s.db.QueryRow(ctx,
		`SELECT snapshot::text FROM zoo_states WHERE guild_id = $1`, guildID,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load zoo %s: %v", zoo.ErrPersistence, guildID, err)
	}
	return persistence.Decode(guildID, data)
}

// List returns every guild with a stored snapshot.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT guild_id FROM zoo_states ORDER BY guild_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: list zoos: %v", zoo.ErrPersistence, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scan guild id: %v", zoo.ErrPersistence, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
