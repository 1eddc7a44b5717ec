package indexcache

import (
	"bytes"
	"testing"
)

func TestRecordKeyOrdering(t *testing.T) {
	a := keyRecord("/data/tub_1", 10)
	b := keyRecord("/data/tub_1", 11)
	c := keyRecord("/data/tub_1", 256)
	if !bytes.HasPrefix(a, keyRecordPrefix("/data/tub_1")) {
		t.Fatalf("record key should share the tub prefix")
	}
	if bytes.Compare(a, b) >= 0 || bytes.Compare(b, c) >= 0 {
		t.Fatalf("expected 10 < 11 < 256")
	}
	if bytes.HasPrefix(keyRecord("/data/tub_10", 0), keyRecordPrefix("/data/tub_1")) {
		t.Fatalf("tub_10 keys fall under tub_1 prefix")
	}
	if ix, ok := parseRecordKey(c); !ok || ix != 256 {
		t.Fatalf("parseRecordKey = %d, %v", ix, ok)
	}
}

func TestMetaKey(t *testing.T) {
	k := keyTubMeta("/data/tub_1")
	if string(k) != "m//data/tub_1" {
		t.Fatalf("unexpected meta layout: %q", k)
	}
	if p, ok := parseMetaKey(k); !ok || p != "/data/tub_1" {
		t.Fatalf("parseMetaKey = %q, %v", p, ok)
	}
}
