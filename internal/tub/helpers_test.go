package tub

import (
	"testing"
)

const (
	testHeight = 12
	testWidth  = 16
)

func driveSchema(t *testing.T) Schema {
	t.Helper()
	s, err := NewSchema(
		[]string{"cam/image_array", "user/angle", "user/throttle", "user/mode", "frame"},
		[]string{"image_array", "float", "float", "str", "int"},
	)
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	return s
}

func testArray(seed int) Array {
	a := NewArray(testHeight, testWidth, 3)
	for i := range a.Pix {
		a.Pix[i] = uint8((i + seed*7) % 251)
	}
	return a
}

func sampleRecord(i int) Record {
	return Record{
		"cam/image_array": testArray(i),
		"user/angle":      float64(i) / 100,
		"user/throttle":   0.5,
		"user/mode":       "user",
		"frame":           i,
	}
}

func newTestTub(t *testing.T, n int) *Tub {
	t.Helper()
	s := driveSchema(t)
	tb, err := OpenOrCreate(t.TempDir()+"/tub", &s, Options{})
	if err != nil {
		t.Fatalf("OpenOrCreate: %v", err)
	}
	for i := 0; i < n; i++ {
		if _, err := tb.Put(sampleRecord(i)); err != nil {
			t.Fatalf("Put %d: %v", i, err)
		}
	}
	return tb
}
