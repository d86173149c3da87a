package persistence

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/nidhogg/bird-zoo/internal/zoo"
)

const (
	extJSON = ".json"
	extZstd = ".json.zst"
)

// FileCodec keeps one snapshot file per guild in a directory. Writes go to
// a temporary file that is synced and renamed over the old snapshot.
type FileCodec struct {
	dir      string
	compress bool
	now      func() time.Time
}

// NewFileCodec creates a codec rooted at dir. With compress set, snapshots
// are written zstd-compressed; both forms are readable either way.
func NewFileCodec(dir string, compress bool) *FileCodec {
	return &FileCodec{dir: dir, compress: compress, now: time.Now}
}

func (c *FileCodec) path(guildID string, compressed bool) string {
	if compressed {
		return filepath.Join(c.dir, guildID+extZstd)
	}
	return filepath.Join(c.dir, guildID+extJSON)
}

// Save writes st atomically.
func (c *FileCodec) Save(_ context.Context, guildID string, st *zoo.ZooState) error {
	if !ValidGuildID(guildID) {
		return fmt.Errorf("%w: invalid guild id %q", zoo.ErrPersistence, guildID)
	}
	data, err := Encode(guildID, st, c.now())
	if err != nil {
		return err
	}
	if c.compress {
		if data, err = compressZstd(data); err != nil {
			return fmt.Errorf("%w: compress %s: %v", zoo.ErrPersistence, guildID, err)
		}
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", zoo.ErrPersistence, err)
	}

	target := c.path(guildID, c.compress)
	if err := writeAtomic(c.dir, target, data); err != nil {
		return fmt.Errorf("%w: write %s: %v", zoo.ErrPersistence, guildID, err)
	}
	// A snapshot in the other encoding is now stale.
	_ = os.Remove(c.path(guildID, !c.compress))
	return nil
}

func writeAtomic(dir, target string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}

// Load reads the guild's snapshot, preferring the configured encoding.
func (c *FileCodec) Load(_ context.Context, guildID string) (*zoo.ZooState, error) {
	if !ValidGuildID(guildID) {
		return nil, fmt.Errorf("%w: invalid guild id %q", zoo.ErrPersistence, guildID)
	}
	for _, compressed := range []bool{c.compress, !c.compress} {
		data, err := os.ReadFile(c.path(guildID, compressed))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", zoo.ErrPersistence, guildID, err)
		}
		if compressed {
			if data, err = decompressZstd(data); err != nil {
				return nil, fmt.Errorf("%w: decompress %s: %v", zoo.ErrPersistence, guildID, err)
			}
		}
		return Decode(guildID, data)
	}
	return nil, nil
}

// List returns every guild with a snapshot file.
func (c *FileCodec) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", zoo.ErrPersistence, c.dir, err)
	}
	seen := make(map[string]struct{})
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		var id string
		switch {
		case strings.HasSuffix(name, extZstd):
			id = strings.TrimSuffix(name, extZstd)
		case strings.HasSuffix(name, extJSON):
			id = strings.TrimSuffix(name, extJSON)
		default:
			continue
		}
		if _, ok := seen[id]; ok || !ValidGuildID(id) {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func compressZstd(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	if _, err := enc.Write(data); err != nil {
		_ = enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressZstd(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return io.ReadAll(dec)
}
