package tub

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestCheckRepair(t *testing.T) {
	tb := newTestTub(t, 10)
	if err := os.WriteFile(tb.RecordPath(2), []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(tb.Path(), tb.Codec().MediaFileName(7, "cam/image_array"))); err != nil {
		t.Fatal(err)
	}

	rep := tb.Check(false)
	if rep.OK() || rep.Checked != 10 {
		t.Fatalf("report = %+v", rep)
	}
	if got := rep.FailedIndices(); !reflect.DeepEqual(got, []int{2, 7}) {
		t.Fatalf("FailedIndices = %v", got)
	}
	if !errors.Is(rep.Problems[0].Err, ErrRecordCorrupt) || !errors.Is(rep.Problems[1].Err, ErrMissingMediaFile) {
		t.Fatalf("problem errors = %v, %v", rep.Problems[0].Err, rep.Problems[1].Err)
	}
	if n, _ := tb.NumRecords(); n != 10 {
		t.Fatalf("check without repair removed records: %d left", n)
	}

	rep = tb.Check(true)
	for _, p := range rep.Problems {
		if !p.Removed {
			t.Fatalf("problem %d not removed", p.Index)
		}
	}
	if n, _ := tb.NumRecords(); n != 8 {
		t.Fatalf("NumRecords after repair = %d, want 8", n)
	}
	if rep := tb.Check(false); !rep.OK() {
		t.Fatalf("tub still unhealthy after repair: %+v", rep)
	}
}

func TestCheckMissingDirectory(t *testing.T) {
	tb := newTestTub(t, 1)
	if err := os.RemoveAll(tb.Path()); err != nil {
		t.Fatal(err)
	}
	rep := tb.Check(true)
	if rep.Err == nil || rep.OK() {
		t.Fatalf("expected scan error in report, got %+v", rep)
	}
}
