package runtime

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	cfgpkg "github.com/lmxia/pmlcar/internal/config"
	"github.com/lmxia/pmlcar/internal/indexcache"
	"github.com/lmxia/pmlcar/internal/tub"
	"github.com/lmxia/pmlcar/internal/tubgroup"
	logpkg "github.com/lmxia/pmlcar/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	Config cfgpkg.Config
	// Logger defaults to one built from Config.Log.
	Logger logpkg.Logger
	// DisableCache never opens the index cache.
	DisableCache bool
}

// Runtime wires config, logging and the index cache, and hands out tubs and
// groups configured from them.
type Runtime struct {
	config  cfgpkg.Config
	logger  logpkg.Logger
	tubOpts tub.Options
	noCache bool

	mu    sync.Mutex
	cache *indexcache.Cache
}

// Open validates the configuration and returns a Runtime. The index cache is
// opened on first use.
func Open(opts Options) (*Runtime, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	format, err := tub.ParseImageFormat(cfg.Tub.ImageFormat)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger, err = logpkg.ApplyConfig(&logpkg.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
		if err != nil {
			return nil, err
		}
	}
	rt := &Runtime{
		config:  cfg,
		logger:  logger,
		noCache: opts.DisableCache,
		tubOpts: tub.Options{
			ImageFormat: format,
			JPEGQuality: cfg.Tub.JPEGQuality,
			Logger:      logger,
		},
	}
	return rt, nil
}

// Close closes underlying resources.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cache == nil {
		return nil
	}
	err := r.cache.Close()
	r.cache = nil
	return err
}

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }

// Logger returns the runtime logger.
func (r *Runtime) Logger() logpkg.Logger { return r.logger }

// DataPath returns the expanded data root.
func (r *Runtime) DataPath() string { return cfgpkg.ExpandUser(r.config.DataPath) }

// TubOptions returns the options every tub is opened with.
func (r *Runtime) TubOptions() tub.Options { return r.tubOpts }

// Cache opens the index cache if needed. It returns nil when the cache is
// disabled.
func (r *Runtime) Cache() (*indexcache.Cache, error) {
	if r.noCache {
		return nil, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cache != nil {
		return r.cache, nil
	}
	c, err := indexcache.Open(r.config.CacheDir(), r.logger)
	if err != nil {
		return nil, err
	}
	r.cache = c
	return c, nil
}

// OpenTub opens an existing tub.
func (r *Runtime) OpenTub(path string) (*tub.Tub, error) {
	return tub.Open(cfgpkg.ExpandUser(path), r.tubOpts)
}

// CreateTub opens the tub at path, creating it with schema if absent.
func (r *Runtime) CreateTub(path string, schema tub.Schema) (*tub.Tub, error) {
	return tub.OpenOrCreate(cfgpkg.ExpandUser(path), &schema, r.tubOpts)
}

// Handler returns the session tub handler rooted at the data path.
func (r *Runtime) Handler() *tub.Handler {
	return tub.NewHandler(r.DataPath(), r.tubOpts)
}

// NewSessionTub creates the next tub_<n>_<date> under the data path.
func (r *Runtime) NewSessionTub(schema tub.Schema) (*tub.Tub, error) {
	return r.Handler().NewTub(schema)
}

// GroupOptions selects what BuildGroup reads.
type GroupOptions struct {
	// Paths is a comma-separated tub list; see tubgroup.ExpandPaths. Empty
	// means every tub under the data path.
	Paths  string
	Filter string
	// NoCache reads every record file instead of cached indexes.
	NoCache bool
	Keys    []string
}

// BuildGroup expands the tub list and builds a group using the configured
// seed and the index cache.
func (r *Runtime) BuildGroup(ctx context.Context, opts GroupOptions) (*tubgroup.Group, error) {
	list := strings.TrimSpace(opts.Paths)
	if list == "" {
		list = r.DataPath()
	}
	paths, err := tubgroup.ExpandPaths(list)
	if err != nil {
		return nil, err
	}
	cache, err := r.Cache()
	if err != nil {
		return nil, err
	}
	return tubgroup.Build(ctx, paths, tubgroup.Options{
		Tub:     r.tubOpts,
		Keys:    opts.Keys,
		Cache:   cache,
		NoCache: opts.NoCache,
		Filter:  opts.Filter,
		Seed:    r.config.Training.Seed,
		Logger:  r.logger,
	})
}

// TrainValSplit splits g with the configured keys, batch size and fraction.
func (r *Runtime) TrainValSplit(ctx context.Context, g *tubgroup.Group, transform tub.Transform) (train, val *tubgroup.PairStream, err error) {
	t := r.config.Training
	return g.TrainValSplit(ctx, tubgroup.SplitOptions{
		InputKeys:     t.InputKeys,
		OutputKeys:    t.OutputKeys,
		BatchSize:     t.BatchSize,
		TrainFraction: t.TrainTestSplit,
		Transform:     transform,
	})
}

// CheckHealth verifies the data path is a readable directory and the index
// cache answers reads.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fi, err := os.Stat(r.DataPath())
	if err != nil {
		return fmt.Errorf("data path: %w", err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("data path %s is not a directory", r.DataPath())
	}
	cache, err := r.Cache()
	if err != nil || cache == nil {
		return err
	}
	_, err = cache.List()
	return err
}
