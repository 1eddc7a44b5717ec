package tubcmd

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/lmxia/pmlcar/internal/tub"
)

// dirSize sums the sizes of regular files under root.
func dirSize(root string) (uint64, error) {
	var total uint64
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			fi, err := d.Info()
			if err != nil {
				return err
			}
			total += uint64(fi.Size())
		}
		return nil
	})
	return total, err
}

// parseSchema builds a schema from comma-separated inputs and types.
func parseSchema(inputs, types string) (tub.Schema, error) {
	in, ty := splitCSV(inputs), splitCSV(types)
	if len(in) == 0 {
		return tub.Schema{}, fmt.Errorf("--inputs is required")
	}
	return tub.NewSchema(in, ty)
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
