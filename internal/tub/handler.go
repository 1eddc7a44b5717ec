package tub

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	logpkg "github.com/lmxia/pmlcar/pkg/log"
)

const tubDirPrefix = "tub_"

// Handler allocates one new tub per logging session under a data root.
// Session tubs are named tub_<n>_<yy-mm-dd> with n one greater than the
// highest number already present.
type Handler struct {
	root string
	opts Options
	now  func() time.Time
}

// NewHandler returns a handler rooted at root. The directory is created on
// the first NewTub.
func NewHandler(root string, opts Options) *Handler {
	return &Handler{root: filepath.Clean(root), opts: opts, now: time.Now}
}

// Root returns the data root.
func (h *Handler) Root() string { return h.root }

// TubNames lists the session tub directories under the root, ordered by tub
// number. A missing root yields no names.
func (h *Handler) TubNames() ([]string, error) {
	entries, err := os.ReadDir(h.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	type numbered struct {
		name string
		n    int
	}
	var found []numbered
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if n, ok := tubNumber(e.Name()); ok {
			found = append(found, numbered{e.Name(), n})
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })
	names := make([]string, len(found))
	for i, f := range found {
		names[i] = f.name
	}
	return names, nil
}

// NextTubNumber returns the number the next session tub will carry.
func (h *Handler) NextTubNumber() (int, error) {
	names, err := h.TubNames()
	if err != nil {
		return 0, err
	}
	if len(names) == 0 {
		return 1, nil
	}
	last, _ := tubNumber(names[len(names)-1])
	return last + 1, nil
}

// NewTub creates the next session tub with schema.
func (h *Handler) NewTub(schema Schema) (*Tub, error) {
	n, err := h.NextTubNumber()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(h.root, 0o755); err != nil {
		return nil, err
	}
	name := fmt.Sprintf("%s%d_%s", tubDirPrefix, n, h.now().Format("06-01-02"))
	path := filepath.Join(h.root, name)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("tub handler: %s already exists", path)
	}
	logger := h.opts.Logger
	if logger != nil {
		logger.Info("new session tub", logpkg.Str("name", name))
	}
	return OpenOrCreate(path, &schema, h.opts)
}

// NewWriter creates the next session tub and wraps it in a Writer.
func (h *Handler) NewWriter(schema Schema) (*Writer, error) {
	t, err := h.NewTub(schema)
	if err != nil {
		return nil, err
	}
	return NewWriter(t), nil
}

// tubNumber parses n out of tub_<n> or tub_<n>_<suffix>.
func tubNumber(name string) (int, bool) {
	if !strings.HasPrefix(name, tubDirPrefix) {
		return 0, false
	}
	rest := name[len(tubDirPrefix):]
	if i := strings.IndexByte(rest, '_'); i >= 0 {
		rest = rest[:i]
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
