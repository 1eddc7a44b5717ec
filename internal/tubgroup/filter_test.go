package tubgroup

import (
	"encoding/json"
	"testing"

	"github.com/lmxia/pmlcar/internal/tub"
)

func TestCELRecordTypes(t *testing.T) {
	s, err := tub.NewSchema([]string{"n", "f", "s"}, []string{"int", "float", "str"})
	if err != nil {
		t.Fatal(err)
	}
	got := celRecord(s, tub.Descriptor{
		"n":     json.Number("3"),
		"f":     json.Number("1"),
		"s":     "user",
		"extra": json.Number("2.5"),
	})
	if got["n"] != int64(3) {
		t.Fatalf("int field = %T %v", got["n"], got["n"])
	}
	if got["f"] != 1.0 {
		t.Fatalf("float field = %T %v", got["f"], got["f"])
	}
	if got["extra"] != 2.5 {
		t.Fatalf("unknown numeric field = %T %v", got["extra"], got["extra"])
	}
}

func TestRowFilterDisabled(t *testing.T) {
	f, err := newRowFilter("  ")
	if err != nil {
		t.Fatal(err)
	}
	if !f.Eval("/t", 0, tub.Schema{}, nil) {
		t.Fatalf("disabled filter rejected a row")
	}
}
