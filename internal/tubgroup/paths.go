package tubgroup

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/lmxia/pmlcar/internal/config"
	"github.com/lmxia/pmlcar/internal/tub"
)

// ExpandPaths turns a comma-separated list of tub paths into directories.
// Each element may start with ~ and may be a glob mask. A directory without
// meta.json is treated as a data root and expands to its tub_* children in
// tub number order. Duplicates are dropped. Elements that match nothing, and
// directories holding no tubs, are kept so the build reports them.
func ExpandPaths(list string) ([]string, error) {
	var out []string
	seen := map[string]bool{}
	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		item = config.ExpandUser(item)
		matches, err := filepath.Glob(item)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			add(item)
			continue
		}
		for _, m := range matches {
			children, err := tubChildren(m)
			if err != nil {
				return nil, err
			}
			if len(children) == 0 {
				add(m)
				continue
			}
			for _, c := range children {
				add(c)
			}
		}
	}
	return out, nil
}

// tubChildren returns the tub_* directories of root when root is a directory
// that is not itself a tub, and nil otherwise. The result is empty for a
// directory without tubs.
func tubChildren(root string) ([]string, error) {
	fi, err := os.Stat(root)
	if err != nil || !fi.IsDir() {
		return nil, nil
	}
	if _, err := os.Stat(filepath.Join(root, "meta.json")); err == nil {
		return nil, nil
	}
	names, err := tub.NewHandler(root, tub.Options{}).TubNames()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, filepath.Join(root, n))
	}
	return out, nil
}
