package tub

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	logpkg "github.com/lmxia/pmlcar/pkg/log"
)

const (
	metaFileName = "meta.json"
	recordPrefix = "record_"
	recordSuffix = ".json"
)

// Options configures how a tub is opened.
type Options struct {
	// ImageFormat is the sidecar encoding for new media files. Defaults to png.
	ImageFormat ImageFormat
	// JPEGQuality applies when ImageFormat is jpg. Defaults to 90.
	JPEGQuality int
	// Logger receives lifecycle and repair messages. Optional.
	Logger logpkg.Logger
}

// Tub is a directory-backed, append-only store of schema-typed records.
type Tub struct {
	path   string
	schema Schema
	codec  Codec
	logger logpkg.Logger

	mu        sync.Mutex
	currentIx int
}

// OpenOrCreate opens the tub at path, or creates it with schema when the path
// does not exist. An existing tub keeps the schema in its meta.json; schema
// is then only compared against it.
func OpenOrCreate(path string, schema *Schema, opts Options) (*Tub, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewNop()
	}
	t := &Tub{
		path:   filepath.Clean(path),
		codec:  Codec{Format: opts.ImageFormat, JPEGQuality: opts.JPEGQuality},
		logger: logger.With(logpkg.Component("tub"), logpkg.Str("path", path)),
	}

	_, err := os.Stat(t.path)
	switch {
	case err == nil:
		s, err := readMeta(t.metaPath())
		if err != nil {
			return nil, fmt.Errorf("open tub %s: %w", t.path, err)
		}
		t.schema = s
		if schema != nil && !schema.Equal(s) {
			t.logger.Warn("ignoring supplied schema; tub already declares one",
				logpkg.Any("inputs", s.Inputs()), logpkg.Any("types", s.Types()))
		}
		last, err := t.LastIndex()
		if err != nil {
			return nil, err
		}
		t.currentIx = last + 1
		t.logger.Info("tub opened", logpkg.Int("current_ix", t.currentIx))
		return t, nil
	case !os.IsNotExist(err):
		return nil, err
	}

	if schema == nil || schema.Len() == 0 {
		return nil, fmt.Errorf("%w: %s does not exist", ErrSchemaRequired, t.path)
	}
	b, err := schema.marshalMeta()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(t.path, 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(t.metaPath(), b, 0o644); err != nil {
		return nil, err
	}
	t.schema = *schema
	t.logger.Info("tub created", logpkg.Any("inputs", schema.Inputs()))
	return t, nil
}

// Open opens an existing tub. It never creates one.
func Open(path string, opts Options) (*Tub, error) {
	return OpenOrCreate(path, nil, opts)
}

// Path returns the tub directory.
func (t *Tub) Path() string { return t.path }

// Schema returns the tub's schema.
func (t *Tub) Schema() Schema { return t.schema }

// Codec returns the codec used for this tub's records.
func (t *Tub) Codec() Codec { return t.codec }

// CurrentIndex returns the index the next Put will write.
func (t *Tub) CurrentIndex() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentIx
}

func (t *Tub) metaPath() string { return filepath.Join(t.path, metaFileName) }

// RecordPath returns the descriptor file path for index ix.
func (t *Tub) RecordPath(ix int) string {
	return filepath.Join(t.path, recordPrefix+strconv.Itoa(ix)+recordSuffix)
}

// Put validates values against the schema, writes them as the record at the
// current index and returns that index.
func (t *Tub) Put(values Record) (int, error) {
	if len(values) != t.schema.Len() {
		return 0, fmt.Errorf("%w: got %d values for %d inputs", ErrSchemaArity, len(values), t.schema.Len())
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	ix := t.currentIx
	desc, media, err := t.codec.Encode(values, t.schema, t.path, ix)
	if err != nil {
		return 0, fmt.Errorf("put record %d: %w", ix, err)
	}
	if err := t.writeDescriptor(ix, desc); err != nil {
		for _, name := range media {
			_ = os.Remove(filepath.Join(t.path, name))
		}
		return 0, fmt.Errorf("put record %d: %w", ix, err)
	}
	t.currentIx++
	return ix, nil
}

// writeDescriptor writes through a dot-prefixed temp file so a crash never
// leaves a partial record_<ix>.json behind for ScanIndices to find.
func (t *Tub) writeDescriptor(ix int, desc Descriptor) error {
	b, err := json.Marshal(desc)
	if err != nil {
		return err
	}
	final := t.RecordPath(ix)
	tmp := filepath.Join(t.path, "."+filepath.Base(final)+".tmp")
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// Descriptor loads the raw descriptor of record ix.
func (t *Tub) Descriptor(ix int) (Descriptor, error) {
	b, err := os.ReadFile(t.RecordPath(ix))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %d in %s", ErrRecordNotFound, ix, t.path)
		}
		return nil, err
	}
	desc, err := ParseDescriptor(b)
	if err != nil {
		return nil, fmt.Errorf("record %d: %w", ix, err)
	}
	return desc, nil
}

// Get loads and decodes record ix.
func (t *Tub) Get(ix int) (Record, error) {
	desc, err := t.Descriptor(ix)
	if err != nil {
		return nil, err
	}
	rec, err := t.codec.Decode(desc, t.schema, t.path)
	if err != nil {
		return nil, fmt.Errorf("record %d: %w", ix, err)
	}
	return rec, nil
}

// Remove deletes the descriptor of record ix. Indices are never reused or
// compacted, so CurrentIndex is unaffected.
func (t *Tub) Remove(ix int) error {
	if err := os.Remove(t.RecordPath(ix)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %d in %s", ErrRecordNotFound, ix, t.path)
		}
		return err
	}
	return nil
}

// ScanIndices lists the record indices present on disk. With sorted the
// result is ascending; otherwise the order is whatever the directory listing
// yields.
func (t *Tub) ScanIndices(sorted bool) ([]int, error) {
	entries, err := os.ReadDir(t.path)
	if err != nil {
		return nil, err
	}
	out := make([]int, 0, len(entries))
	for _, e := range entries {
		if ix, ok := parseRecordName(e.Name()); ok && !e.IsDir() {
			out = append(out, ix)
		}
	}
	if sorted {
		sort.Ints(out)
	}
	return out, nil
}

// RecordFile is one record descriptor as found on disk.
type RecordFile struct {
	Index   int
	Size    int64
	ModTime time.Time
}

// ScanRecordFiles lists the record descriptors on disk in ascending index
// order with their size and modification time. Files removed during the scan
// are left out.
func (t *Tub) ScanRecordFiles() ([]RecordFile, error) {
	entries, err := os.ReadDir(t.path)
	if err != nil {
		return nil, err
	}
	out := make([]RecordFile, 0, len(entries))
	for _, e := range entries {
		ix, ok := parseRecordName(e.Name())
		if !ok || e.IsDir() {
			continue
		}
		fi, err := e.Info()
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, RecordFile{Index: ix, Size: fi.Size(), ModTime: fi.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

// MetaInfo stats the tub's meta.json.
func (t *Tub) MetaInfo() (os.FileInfo, error) {
	return os.Stat(t.metaPath())
}

func parseRecordName(name string) (int, bool) {
	if !strings.HasPrefix(name, recordPrefix) || !strings.HasSuffix(name, recordSuffix) {
		return 0, false
	}
	ix, err := strconv.Atoi(name[len(recordPrefix) : len(name)-len(recordSuffix)])
	if err != nil || ix < 0 {
		return 0, false
	}
	return ix, true
}

// LastIndex returns the highest index on disk, or -1 for an empty tub.
func (t *Tub) LastIndex() (int, error) {
	ixs, err := t.ScanIndices(false)
	if err != nil {
		return 0, err
	}
	last := -1
	for _, ix := range ixs {
		if ix > last {
			last = ix
		}
	}
	return last, nil
}

// NumRecords counts the records on disk.
func (t *Tub) NumRecords() (int, error) {
	ixs, err := t.ScanIndices(false)
	if err != nil {
		return 0, err
	}
	return len(ixs), nil
}

// Delete removes the tub directory and everything in it.
func (t *Tub) Delete() error {
	if t.path == "" || t.path == "/" || t.path == "." {
		return errors.New("tub: refusing to delete " + strconv.Quote(t.path))
	}
	t.logger.Warn("deleting tub")
	return os.RemoveAll(t.path)
}
