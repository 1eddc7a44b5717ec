package tubcmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	cfgpkg "github.com/lmxia/pmlcar/internal/config"
	"github.com/lmxia/pmlcar/internal/runtime"
	"github.com/lmxia/pmlcar/internal/tub"
	logpkg "github.com/lmxia/pmlcar/pkg/log"
)

func testOpener(t *testing.T) (RuntimeFunc, string) {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.DataPath = filepath.Join(t.TempDir(), "data")
	cfg.Training.BatchSize = 2
	cfg.Training.Seed = 5
	cfg.Training.InputKeys = []string{"cam/image_array"}
	cfg.Training.OutputKeys = []string{"user/angle"}
	return func(*cobra.Command) (*runtime.Runtime, error) {
		return runtime.Open(runtime.Options{Config: cfg, Logger: logpkg.NewNop()})
	}, cfg.DataPath
}

func run(t *testing.T, open RuntimeFunc, args ...string) (string, error) {
	t.Helper()
	cmd := NewTubCommand(open)
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// fillTub writes n small records through the positional writer.
func fillTub(t *testing.T, path string, n int) *tub.Tub {
	t.Helper()
	tb, err := tub.Open(path, tub.Options{})
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	w := tub.NewWriter(tb)
	for i := 0; i < n; i++ {
		if _, err := w.Run(tub.NewArray(4, 4, 3), float64(i)/10, 0.3, "user"); err != nil {
			t.Fatalf("Run: %v", err)
		}
	}
	return tb
}

func TestNewLsCheck(t *testing.T) {
	open, data := testOpener(t)

	out, err := run(t, open, "new")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	path := strings.TrimSpace(out)
	if filepath.Dir(path) != data || !strings.HasPrefix(filepath.Base(path), "tub_1_") {
		t.Fatalf("new printed %q", out)
	}
	tb := fillTub(t, path, 5)

	out, err = run(t, open, "ls")
	if err != nil {
		t.Fatalf("ls: %v", err)
	}
	if !strings.Contains(out, path) || !strings.Contains(out, "cam/image_array,user/angle") {
		t.Fatalf("ls output:\n%s", out)
	}

	if out, err = run(t, open, "check", path); err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	if !strings.Contains(out, "5 records checked, 0 problems") {
		t.Fatalf("check output:\n%s", out)
	}

	if err := os.WriteFile(tb.RecordPath(3), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, open, "check", path); err == nil {
		t.Fatalf("expected check to fail on a broken record")
	}
	out, err = run(t, open, "check", path, "--fix")
	if err != nil {
		t.Fatalf("check --fix: %v", err)
	}
	if !strings.Contains(out, "record 3 removed") {
		t.Fatalf("check --fix output:\n%s", out)
	}
	if n, _ := tb.NumRecords(); n != 4 {
		t.Fatalf("records after fix = %d", n)
	}
}

func TestNewWithPathAndSchema(t *testing.T) {
	open, _ := testOpener(t)
	path := filepath.Join(t.TempDir(), "custom")
	if _, err := run(t, open, "new", "--path", path, "--inputs", "a,b", "--types", "int,boolean"); err != nil {
		t.Fatalf("new: %v", err)
	}
	tb, err := tub.Open(path, tub.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got := tb.Schema().Types(); len(got) != 2 || got[1] != "boolean" {
		t.Fatalf("types = %v", got)
	}
	if _, err := run(t, open, "new", "--inputs", "a", "--types", "blob"); err == nil {
		t.Fatalf("expected unsupported kind error")
	}
}

func TestExportImport(t *testing.T) {
	open, _ := testOpener(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	if _, err := run(t, open, "new", "--path", src); err != nil {
		t.Fatal(err)
	}
	fillTub(t, src, 30)

	archive := filepath.Join(dir, "out.tar.gz")
	out, err := run(t, open, "export", src, "-o", archive, "--start", "10", "--end", "20", "--media")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(out, "wrote 10 records") {
		t.Fatalf("export output: %s", out)
	}

	dest := filepath.Join(dir, "dest")
	out, err = run(t, open, "import", archive, dest)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out, "imported 10 records") || !strings.Contains(out, "next index 20") {
		t.Fatalf("import output: %s", out)
	}
	if _, err := run(t, open, "import", archive, dest); err == nil {
		t.Fatalf("second import into %s succeeded, want a conflict", dest)
	}
}

func TestHistSplitCache(t *testing.T) {
	open, data := testOpener(t)
	for i := 0; i < 2; i++ {
		out, err := run(t, open, "new")
		if err != nil {
			t.Fatal(err)
		}
		fillTub(t, strings.TrimSpace(out), 5)
	}

	png := filepath.Join(t.TempDir(), "angle.png")
	out, err := run(t, open, "hist", "--key", "user/angle", "-o", png)
	if err != nil {
		t.Fatalf("hist: %v", err)
	}
	if !strings.Contains(out, "user/angle: n=10") {
		t.Fatalf("hist output: %s", out)
	}
	if _, err := os.Stat(png); err != nil {
		t.Fatalf("histogram not written: %v", err)
	}

	out, err = run(t, open, "split", "--fraction", "0.8")
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if !strings.Contains(out, "tubs=2 train=8 val=2 steps_per_epoch=4") {
		t.Fatalf("split output: %s", out)
	}

	out, err = run(t, open, "split", "--filter", `record["user/angle"] >= 0.2`, "--no-cache")
	if err != nil {
		t.Fatalf("split --filter: %v", err)
	}
	if !strings.Contains(out, "train=5 val=1") {
		t.Fatalf("filtered split output: %s", out)
	}

	out, err = run(t, open, "cache", "ls")
	if err != nil {
		t.Fatalf("cache ls: %v", err)
	}
	if strings.Count(out, data) != 2 {
		t.Fatalf("cache ls output:\n%s", out)
	}

	out, err = run(t, open, "cache", "rebuild")
	if err != nil || !strings.Contains(out, "indexed 10 rows from 2 tubs") {
		t.Fatalf("cache rebuild: %v\n%s", err, out)
	}

	if _, err := run(t, open, "cache", "clear"); err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	out, _ = run(t, open, "cache", "ls")
	if strings.Contains(out, data+string(filepath.Separator)+"tub_") {
		t.Fatalf("cache not cleared:\n%s", out)
	}
}
