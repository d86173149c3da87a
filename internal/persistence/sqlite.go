package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nidhogg/bird-zoo/internal/zoo"
)

// SQLiteCodec keeps every guild's snapshot as one row of a local SQLite
// database. A single-row upsert is atomic, so no temp-file dance is needed.
type SQLiteCodec struct {
	conn *sqlx.DB
	now  func() time.Time
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLiteCodec, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	c := &SQLiteCodec{conn: conn, now: time.Now}
	if err := c.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return c, nil
}

func (c *SQLiteCodec) migrate() error {
	_, err := c.conn.Exec(`
	CREATE TABLE IF NOT EXISTS zoo_states (
		guild_id TEXT PRIMARY KEY,
		state_json TEXT NOT NULL,
		saved_at TEXT NOT NULL
	);`)
	return err
}

// Close closes the database connection.
func (c *SQLiteCodec) Close() error {
	return c.conn.Close()
}

// Save upserts the guild's snapshot.
func (c *SQLiteCodec) Save(ctx context.Context, guildID string, st *zoo.ZooState) error {
	now := c.now()
	data, err := Encode(guildID, st, now)
	if err != nil {
		return err
	}
	_, err = c.conn.ExecContext(ctx, `
		INSERT INTO zoo_states (guild_id, state_json, saved_at) VALUES (?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET state_json = excluded.state_json, saved_at = excluded.saved_at`,
		guildID, string(data), now.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("%w: save %s: %v", zoo.ErrPersistence, guildID, err)
	}
	return nil
}

// Load reads the guild's snapshot.
func (c *SQLiteCodec) Load(ctx context.Context, guildID string) (*zoo.ZooState, error) {
	var raw string
	err := c.conn.GetContext(ctx, &raw, `SELECT state_json FROM zoo_states WHERE guild_id = ?`, guildID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %v", zoo.ErrPersistence, guildID, err)
	}
	return Decode(guildID, []byte(raw))
}

// List returns every stored guild id.
func (c *SQLiteCodec) List(ctx context.Context) ([]string, error) {
	var ids []string
	if err := c.conn.SelectContext(ctx, &ids, `SELECT guild_id FROM zoo_states ORDER BY guild_id`); err != nil {
		return nil, fmt.Errorf("%w: list: %v", zoo.ErrPersistence, err)
	}
	return ids, nil
}
