package tubgroup

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestExpandPaths(t *testing.T) {
	root := t.TempDir()
	data := filepath.Join(root, "data")
	makeTub(t, data, "tub_2_24-01-02", 0)
	makeTub(t, data, "tub_10_24-01-03", 0)
	if err := os.Mkdir(filepath.Join(data, "models"), 0o755); err != nil {
		t.Fatal(err)
	}
	other := makeTub(t, root, "other", 0).Path()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "data root expands to tubs",
			in:   data,
			want: []string{filepath.Join(data, "tub_2_24-01-02"), filepath.Join(data, "tub_10_24-01-03")},
		},
		{
			name: "comma list with duplicates",
			in:   other + " , " + other + "," + filepath.Join(data, "tub_2_24-01-02"),
			want: []string{other, filepath.Join(data, "tub_2_24-01-02")},
		},
		{
			name: "glob",
			in:   filepath.Join(data, "tub_1*"),
			want: []string{filepath.Join(data, "tub_10_24-01-03")},
		},
		{
			name: "directory without tubs kept",
			in:   filepath.Join(data, "models"),
			want: []string{filepath.Join(data, "models")},
		},
		{
			name: "missing path kept",
			in:   filepath.Join(root, "nope"),
			want: []string{filepath.Join(root, "nope")},
		},
		{
			name: "empty",
			in:   " , ",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandPaths(tt.in)
			if err != nil {
				t.Fatalf("ExpandPaths: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("ExpandPaths(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestBuildNamesDirectoryWithoutTubs(t *testing.T) {
	empty := filepath.Join(t.TempDir(), "models")
	if err := os.Mkdir(empty, 0o755); err != nil {
		t.Fatal(err)
	}
	paths, err := ExpandPaths(empty)
	if err != nil {
		t.Fatal(err)
	}
	_, err = Build(context.Background(), paths, Options{})
	if err == nil || !strings.Contains(err.Error(), empty) {
		t.Fatalf("Build err = %v, want it to name %s", err, empty)
	}
}
