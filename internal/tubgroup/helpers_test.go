package tubgroup

import (
	"path/filepath"
	"testing"

	"github.com/lmxia/pmlcar/internal/tub"
)

const (
	imgH = 6
	imgW = 8
)

var (
	driveInputs = []string{"cam/image_array", "user/angle", "user/throttle", "user/mode"}
	driveTypes  = []string{"image_array", "float", "float", "str"}
)

func mustSchema(t *testing.T, inputs, types []string) tub.Schema {
	t.Helper()
	s, err := tub.NewSchema(inputs, types)
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	return s
}

func driveRecord(i int) tub.Record {
	a := tub.NewArray(imgH, imgW, 3)
	for j := range a.Pix {
		a.Pix[j] = uint8(i + j)
	}
	mode := "user"
	if i%2 == 1 {
		mode = "local"
	}
	return tub.Record{
		"cam/image_array": a,
		"user/angle":      float64(i%10) / 10,
		"user/throttle":   float64(i%4) / 4,
		"user/mode":       mode,
	}
}

// makeTub creates dir/name with n drive records.
func makeTub(t *testing.T, dir, name string, n int) *tub.Tub {
	t.Helper()
	s := mustSchema(t, driveInputs, driveTypes)
	tb, err := tub.OpenOrCreate(filepath.Join(dir, name), &s, tub.Options{})
	if err != nil {
		t.Fatalf("OpenOrCreate: %v", err)
	}
	for i := 0; i < n; i++ {
		if _, err := tb.Put(driveRecord(i)); err != nil {
			t.Fatalf("Put %d: %v", i, err)
		}
	}
	return tb
}
