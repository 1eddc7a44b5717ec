package indexcache

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io/fs"
	"path/filepath"
	"time"

	pebblestore "github.com/lmxia/pmlcar/internal/storage/pebble"
	"github.com/lmxia/pmlcar/internal/tub"
	logpkg "github.com/lmxia/pmlcar/pkg/log"
)

// formatVersion is stored as the header of every value. Values written with
// a different version are treated as a miss.
var formatVersion = []byte("v1")

// Entry is one cached record descriptor.
type Entry struct {
	Index      int
	Descriptor tub.Descriptor
}

// Stamp fingerprints a tub's index set and, through Content, the files
// behind it. A cached index is only served while the tub still has the same
// stamp. Records that could not be read when the entries were stored are
// absent from the entries but still counted here.
type Stamp struct {
	Count   int       `json:"count"`
	Last    int       `json:"last"`
	Sum     uint32    `json:"sum"`
	Content uint32    `json:"content"`
	Built   time.Time `json:"built"`
}

// Matches compares everything but the build time.
func (s Stamp) Matches(o Stamp) bool {
	return s.Count == o.Count && s.Last == o.Last && s.Sum == o.Sum && s.Content == o.Content
}

// StampOf fingerprints a sorted index set.
func StampOf(ixs []int) Stamp {
	s := Stamp{Count: len(ixs), Last: -1}
	var crc uint32
	var b [8]byte
	for _, ix := range ixs {
		binary.BigEndian.PutUint64(b[:], uint64(ix))
		crc = crc32.Update(crc, castagnoli, b[:])
		if ix > s.Last {
			s.Last = ix
		}
	}
	s.Sum = crc
	return s
}

// StampOfFiles fingerprints a tub from its meta.json and record files. Size
// and modification time of every file go into Content, so a tub deleted and
// recorded again at the same path with the same indices no longer matches.
// meta may be nil.
func StampOfFiles(meta fs.FileInfo, files []tub.RecordFile) Stamp {
	ixs := make([]int, len(files))
	for i, f := range files {
		ixs[i] = f.Index
	}
	s := StampOf(ixs)

	var crc uint32
	var b [8]byte
	put := func(v int64) {
		binary.BigEndian.PutUint64(b[:], uint64(v))
		crc = crc32.Update(crc, castagnoli, b[:])
	}
	if meta != nil {
		put(meta.Size())
		put(meta.ModTime().UnixNano())
	}
	for _, f := range files {
		put(int64(f.Index))
		put(f.Size)
		put(f.ModTime.UnixNano())
	}
	s.Content = crc
	return s
}

// Cache persists per-tub descriptor indexes in Pebble so a group build does
// not have to re-read every record file.
type Cache struct {
	db     *pebblestore.DB
	logger logpkg.Logger
}

// Open opens or creates the cache database in dir.
func Open(dir string, logger logpkg.Logger) (*Cache, error) {
	if logger == nil {
		logger = logpkg.NewNop()
	}
	db, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeNever})
	if err != nil {
		return nil, fmt.Errorf("open index cache %s: %w", dir, err)
	}
	return &Cache{db: db, logger: logger.WithComponent("indexcache")}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error { return c.db.Close() }

func cacheKey(tubPath string) string {
	if abs, err := filepath.Abs(tubPath); err == nil {
		return abs
	}
	return filepath.Clean(tubPath)
}

// Load returns the cached entries of tubPath when its stored stamp matches
// want. A missing, stale or corrupt entry set is reported as a miss.
func (c *Cache) Load(tubPath string, want Stamp) ([]Entry, bool, error) {
	key := cacheKey(tubPath)
	snap := c.db.NewSnapshot()
	defer snap.Close()

	raw, err := snap.Get(keyTubMeta(key))
	if errors.Is(err, pebblestore.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	stamp, ok := decodeStamp(raw)
	if !ok {
		c.logger.Warn("discarding corrupt cache stamp", logpkg.Str("tub", key))
		return nil, false, nil
	}
	if !stamp.Matches(want) {
		c.logger.Debug("cache stale", logpkg.Str("tub", key),
			logpkg.Int("cached", stamp.Count), logpkg.Int("on_disk", want.Count))
		return nil, false, nil
	}

	entries := make([]Entry, 0, stamp.Count)
	errCorrupt := errors.New("corrupt entry")
	err = snap.ScanPrefix(keyRecordPrefix(key), func(k, v []byte) error {
		ix, ok := parseRecordKey(k)
		if !ok {
			return errCorrupt
		}
		d, ok := decodeValue(v)
		if !ok || string(d.Header) != string(formatVersion) {
			return errCorrupt
		}
		desc, err := tub.ParseDescriptor(d.Payload)
		if err != nil {
			return errCorrupt
		}
		entries = append(entries, Entry{Index: ix, Descriptor: desc})
		return nil
	})
	if errors.Is(err, errCorrupt) {
		c.logger.Warn("discarding corrupt cache entries", logpkg.Str("tub", key))
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return entries, true, nil
}

// Store replaces the cached entries of tubPath atomically.
func (c *Cache) Store(ctx context.Context, tubPath string, stamp Stamp, entries []Entry) error {
	key := cacheKey(tubPath)
	if stamp.Built.IsZero() {
		stamp.Built = time.Now().UTC()
	}
	stampJSON, err := json.Marshal(stamp)
	if err != nil {
		return err
	}

	b := c.db.NewBatch()
	defer b.Close()
	prefix := keyRecordPrefix(key)
	if err := b.DeleteRange(prefix, pebblestore.PrefixEnd(prefix), nil); err != nil {
		return err
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		payload, err := json.Marshal(e.Descriptor)
		if err != nil {
			return fmt.Errorf("cache record %d: %w", e.Index, err)
		}
		if err := b.Set(keyRecord(key, e.Index), encodeValue(formatVersion, payload), nil); err != nil {
			return err
		}
	}
	if err := b.Set(keyTubMeta(key), encodeValue(formatVersion, stampJSON), nil); err != nil {
		return err
	}
	if err := c.db.CommitBatch(ctx, b); err != nil {
		return err
	}
	c.logger.Debug("cached tub index", logpkg.Str("tub", key), logpkg.Int("records", len(entries)))
	return nil
}

// Invalidate drops everything cached for tubPath.
func (c *Cache) Invalidate(ctx context.Context, tubPath string) error {
	key := cacheKey(tubPath)
	if err := c.db.DeletePrefix(ctx, keyRecordPrefix(key)); err != nil {
		return err
	}
	if err := c.db.Delete(keyTubMeta(key)); err != nil {
		return err
	}
	c.logger.Info("invalidated tub index", logpkg.Str("tub", key))
	return nil
}

// Cached is one tub known to the cache.
type Cached struct {
	Path  string
	Stamp Stamp
}

// List returns every cached tub in path order.
func (c *Cache) List() ([]Cached, error) {
	var out []Cached
	err := c.db.ScanPrefix(metaPrefix, func(k, v []byte) error {
		path, ok := parseMetaKey(k)
		if !ok {
			return nil
		}
		stamp, ok := decodeStamp(v)
		if !ok {
			return nil
		}
		out = append(out, Cached{Path: path, Stamp: stamp})
		return nil
	})
	return out, err
}

// Purge drops every cached tub.
func (c *Cache) Purge(ctx context.Context) error {
	if err := c.db.DeletePrefix(ctx, recordPrefix); err != nil {
		return err
	}
	return c.db.DeletePrefix(ctx, metaPrefix)
}

func decodeStamp(raw []byte) (Stamp, bool) {
	d, ok := decodeValue(raw)
	if !ok || string(d.Header) != string(formatVersion) {
		return Stamp{}, false
	}
	var s Stamp
	if err := json.Unmarshal(d.Payload, &s); err != nil {
		return Stamp{}, false
	}
	return s, true
}
