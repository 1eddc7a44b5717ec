package tubgroup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lmxia/pmlcar/internal/indexcache"
	"github.com/lmxia/pmlcar/internal/tub"
	logpkg "github.com/lmxia/pmlcar/pkg/log"
)

// maxIndexWorkers bounds how many tubs are indexed at once.
const maxIndexWorkers = 4

// Options configures a group build.
type Options struct {
	// Tub is passed to every tub the group opens.
	Tub tub.Options
	// Keys, when set, must be present with the same kind in every tub.
	Keys []string
	// Cache persists per-tub indexes between runs. Optional.
	Cache *indexcache.Cache
	// NoCache ignores Cache for reads; fresh indexes are still stored.
	NoCache bool
	// Filter is a CEL expression selecting rows. Empty keeps every row.
	Filter string
	// Seed drives the train/validation permutation. Zero picks one from the
	// clock.
	Seed   int64
	Logger logpkg.Logger
}

// Row is one record of the combined index.
type Row struct {
	// Tub is the position of the owning tub in Group.Tubs.
	Tub   int
	Index int
	// Descriptor has media filenames resolved to absolute paths.
	Descriptor tub.Descriptor
}

// Group is a read-only view over several tubs with compatible schemas.
type Group struct {
	tubs   []*tub.Tub
	schema tub.Schema
	opts   Options
	filter rowFilter
	logger logpkg.Logger
	seed   int64

	mu    sync.Mutex
	rows  []Row
	split *Split
}

// Build opens every tub in paths; none are created. Keys shared by several
// tubs must be declared with the same kind, otherwise Build fails with
// ErrSchemaMismatch. The combined index is built on first use.
func Build(ctx context.Context, paths []string, opts Options) (*Group, error) {
	if len(paths) == 0 {
		return nil, ErrNoTubs
	}
	base := opts.Logger
	if base == nil {
		base = logpkg.NewNop()
	}
	logger := base.WithComponent("tubgroup")
	if opts.Tub.Logger == nil {
		opts.Tub.Logger = base
	}

	filter, err := newRowFilter(opts.Filter)
	if err != nil {
		return nil, fmt.Errorf("compile filter: %w", err)
	}

	g := &Group{opts: opts, filter: filter, logger: logger, seed: opts.Seed}
	if g.seed == 0 {
		g.seed = time.Now().UnixNano()
	}
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("tubgroup: %w", err)
		}
		t, err := tub.Open(p, opts.Tub)
		if err != nil {
			return nil, err
		}
		g.tubs = append(g.tubs, t)
	}

	schema, err := mergeSchemas(g.tubs)
	if err != nil {
		return nil, err
	}
	g.schema = schema
	if len(opts.Keys) > 0 {
		if err := g.requireKeys(opts.Keys); err != nil {
			return nil, err
		}
	}
	logger.Info("tub group opened", logpkg.Int("tubs", len(g.tubs)), logpkg.Any("inputs", schema.Inputs()))
	return g, nil
}

// mergeSchemas returns the fields every tub declares, in the first tub's
// order. A key declared by several tubs with different kinds is an error.
func mergeSchemas(tubs []*tub.Tub) (tub.Schema, error) {
	kinds := map[string]tub.Kind{}
	owner := map[string]string{}
	for _, t := range tubs {
		for _, f := range t.Schema().Fields() {
			if k, ok := kinds[f.Name]; ok && k != f.Kind {
				return tub.Schema{}, fmt.Errorf("%w: %q is %s in %s but %s in %s",
					ErrSchemaMismatch, f.Name, k, owner[f.Name], f.Kind, t.Path())
			}
			kinds[f.Name] = f.Kind
			owner[f.Name] = t.Path()
		}
	}
	var common []tub.Field
	for _, f := range tubs[0].Schema().Fields() {
		shared := true
		for _, t := range tubs[1:] {
			if _, ok := t.Schema().Lookup(f.Name); !ok {
				shared = false
				break
			}
		}
		if shared {
			common = append(common, f)
		}
	}
	return tub.SchemaOf(common...)
}

// requireKeys checks that every key is declared by all tubs.
func (g *Group) requireKeys(keys []string) error {
	for _, k := range keys {
		if _, ok := g.schema.Lookup(k); ok {
			continue
		}
		var missing string
		declared := false
		for _, t := range g.tubs {
			if _, ok := t.Schema().Lookup(k); ok {
				declared = true
			} else if missing == "" {
				missing = t.Path()
			}
		}
		if !declared {
			return fmt.Errorf("%w: %q", tub.ErrUnknownKey, k)
		}
		return fmt.Errorf("%w: %q missing from %s", ErrSchemaMismatch, k, missing)
	}
	return nil
}

// Tubs returns the member tubs in build order.
func (g *Group) Tubs() []*tub.Tub { return append([]*tub.Tub(nil), g.tubs...) }

// Schema returns the fields shared by every member tub.
func (g *Group) Schema() tub.Schema { return g.schema }

// Seed returns the seed of the train/validation permutation.
func (g *Group) Seed() int64 { return g.seed }

// Index returns the combined index, building it on first use. Rows are
// ordered by tub, then by record index. The slice is shared; callers must not
// modify it.
func (g *Group) Index(ctx context.Context) ([]Row, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.indexLocked(ctx, !g.opts.NoCache)
}

// Len returns the number of rows in the combined index.
func (g *Group) Len(ctx context.Context) (int, error) {
	rows, err := g.Index(ctx)
	return len(rows), err
}

// Rebuild drops the cached index of every member tub, re-reads them and
// discards the current split.
func (g *Group) Rebuild(ctx context.Context) ([]Row, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.opts.Cache != nil {
		for _, t := range g.tubs {
			if err := g.opts.Cache.Invalidate(ctx, t.Path()); err != nil {
				return nil, err
			}
		}
	}
	g.rows = nil
	g.split = nil
	return g.indexLocked(ctx, false)
}

func (g *Group) indexLocked(ctx context.Context, useCache bool) ([]Row, error) {
	if g.rows != nil {
		return g.rows, nil
	}
	start := time.Now()
	perTub := make([][]Row, len(g.tubs))
	hits := make([]bool, len(g.tubs))

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxIndexWorkers)
	for i, t := range g.tubs {
		i, t := i, t
		eg.Go(func() error {
			entries, hit, err := g.tubEntries(egctx, t, useCache)
			if err != nil {
				return fmt.Errorf("index %s: %w", t.Path(), err)
			}
			hits[i] = hit
			rows := make([]Row, 0, len(entries))
			for _, e := range entries {
				desc := t.Codec().Resolve(e.Descriptor, t.Schema(), t.Path())
				if !g.filter.Eval(t.Path(), e.Index, t.Schema(), desc) {
					continue
				}
				rows = append(rows, Row{Tub: i, Index: e.Index, Descriptor: desc})
			}
			perTub[i] = rows
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	rows := make([]Row, 0)
	cached := 0
	for i := range perTub {
		rows = append(rows, perTub[i]...)
		if hits[i] {
			cached++
		}
	}
	g.rows = rows
	g.logger.Info("group index built", logpkg.Int("rows", len(rows)), logpkg.Int("tubs", len(g.tubs)),
		logpkg.Int("cached_tubs", cached), logpkg.Duration("took", time.Since(start)))
	return rows, nil
}

// tubEntries returns the descriptors of one tub, from the cache when its
// stamp still matches. Fresh reads are written back to the cache. Records
// that vanish or fail to parse are skipped.
func (g *Group) tubEntries(ctx context.Context, t *tub.Tub, useCache bool) ([]indexcache.Entry, bool, error) {
	meta, err := t.MetaInfo()
	if err != nil {
		return nil, false, err
	}
	files, err := t.ScanRecordFiles()
	if err != nil {
		return nil, false, err
	}
	stamp := indexcache.StampOfFiles(meta, files)
	if g.opts.Cache != nil && useCache {
		entries, ok, err := g.opts.Cache.Load(t.Path(), stamp)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return entries, true, nil
		}
	}

	entries := make([]indexcache.Entry, 0, len(files))
	for _, f := range files {
		ix := f.Index
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		desc, err := t.Descriptor(ix)
		switch {
		case err == nil:
			entries = append(entries, indexcache.Entry{Index: ix, Descriptor: desc})
		case errors.Is(err, tub.ErrRecordNotFound), errors.Is(err, tub.ErrRecordCorrupt):
			g.logger.Warn("skipping record", logpkg.Str("tub", t.Path()), logpkg.Int("index", ix), logpkg.Err(err))
		default:
			return nil, false, err
		}
	}
	if g.opts.Cache != nil {
		if err := g.opts.Cache.Store(ctx, t.Path(), stamp, entries); err != nil {
			g.logger.Warn("storing index cache failed", logpkg.Str("tub", t.Path()), logpkg.Err(err))
		}
	}
	return entries, false, nil
}

// Column returns the inline values of key for every row, in index order.
// Rows where the value is null are skipped.
func (g *Group) Column(ctx context.Context, key string) ([]float64, error) {
	f, ok := g.schema.Lookup(key)
	if !ok {
		return nil, g.requireKeys([]string{key})
	}
	switch f.Kind {
	case tub.KindInt, tub.KindFloat, tub.KindBoolean:
	default:
		return nil, fmt.Errorf("%w: %q is %s, not numeric", tub.ErrValueType, key, f.Kind)
	}
	rows, err := g.Index(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(rows))
	for _, r := range rows {
		raw := r.Descriptor[key]
		if raw == nil {
			continue
		}
		v, ok := numeric(raw)
		if !ok {
			return nil, fmt.Errorf("%w: %s record %d holds %v for %q", tub.ErrRecordCorrupt, g.tubs[r.Tub].Path(), r.Index, raw, key)
		}
		out = append(out, v)
	}
	return out, nil
}

func numeric(raw any) (float64, bool) {
	switch v := raw.(type) {
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// Record decodes the record behind row.
func (g *Group) Record(row Row) (tub.Record, error) {
	if row.Tub < 0 || row.Tub >= len(g.tubs) {
		return nil, fmt.Errorf("tubgroup: row references tub %d of %d", row.Tub, len(g.tubs))
	}
	t := g.tubs[row.Tub]
	rec, err := t.Codec().Decode(row.Descriptor, t.Schema(), t.Path())
	if err != nil {
		return nil, fmt.Errorf("%s record %d: %w", t.Path(), row.Index, err)
	}
	return rec, nil
}
