package tubgroup

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/lmxia/pmlcar/internal/tub"
)

func rowIDs(rows []Row) map[[2]int]bool {
	out := make(map[[2]int]bool, len(rows))
	for _, r := range rows {
		out[[2]int{r.Tub, r.Index}] = true
	}
	return out
}

func TestSplitCompleteAndDisjoint(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	a := makeTub(t, dir, "a", 6)
	b := makeTub(t, dir, "b", 5)
	g, err := Build(ctx, []string{a.Path(), b.Path()}, Options{Seed: 42})
	if err != nil {
		t.Fatal(err)
	}
	s, err := g.Split(ctx, 0.7)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	// round(0.7 * 11) = 8
	if len(s.Train) != 8 || len(s.Val) != 3 {
		t.Fatalf("split = %d/%d, want 8/3", len(s.Train), len(s.Val))
	}
	train, val := rowIDs(s.Train), rowIDs(s.Val)
	for id := range train {
		if val[id] {
			t.Fatalf("row %v in both partitions", id)
		}
	}
	rows, _ := g.Index(ctx)
	for id := range rowIDs(rows) {
		if !train[id] && !val[id] {
			t.Fatalf("row %v in neither partition", id)
		}
	}

	again, err := g.Split(ctx, 0.7)
	if err != nil || again != s {
		t.Fatalf("second Split returned a different partition: %v", err)
	}
	if _, err := g.Split(ctx, 0.5); err == nil {
		t.Fatalf("expected error for a different fraction")
	}

	// Same seed, same permutation.
	g2, _ := Build(ctx, []string{a.Path(), b.Path()}, Options{Seed: 42})
	s2, err := g2.Split(ctx, 0.7)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(rowIDs(s2.Train), train) {
		t.Fatalf("seeded split not reproducible")
	}
}

func TestSplitEmptyPartition(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	one := makeTub(t, dir, "one", 1)
	g, err := Build(ctx, []string{one.Path()}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.Split(ctx, 0.8); !errors.Is(err, ErrEmptyPartition) {
		t.Fatalf("err = %v, want ErrEmptyPartition", err)
	}

	empty := makeTub(t, dir, "empty", 0)
	g, err = Build(ctx, []string{empty.Path()}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.Split(ctx, 0.8); !errors.Is(err, tub.ErrNoRecords) {
		t.Fatalf("err = %v, want ErrNoRecords", err)
	}
}

func TestTrainValSplitEndToEnd(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	a := makeTub(t, dir, "tub_1", 600)
	b := makeTub(t, dir, "tub_2", 400)
	g, err := Build(ctx, []string{a.Path(), b.Path()}, Options{Seed: 7})
	if err != nil {
		t.Fatal(err)
	}

	train, val, err := g.TrainValSplit(ctx, SplitOptions{
		InputKeys:     []string{"cam/image_array"},
		OutputKeys:    []string{"user/angle", "user/throttle"},
		BatchSize:     32,
		TrainFraction: 0.8,
	})
	if err != nil {
		t.Fatalf("TrainValSplit: %v", err)
	}
	if train.Rows() != 800 || val.Rows() != 200 {
		t.Fatalf("partitions = %d/%d, want 800/200", train.Rows(), val.Rows())
	}
	s, _ := g.Split(ctx, 0.8)
	if s.StepsPerEpoch(32) != 25 {
		t.Fatalf("StepsPerEpoch = %d, want 25", s.StepsPerEpoch(32))
	}

	for _, stream := range []*PairStream{train, val} {
		for i := 0; i < 2; i++ {
			p, err := stream.Next()
			if err != nil {
				t.Fatalf("Next: %v", err)
			}
			if len(p.X) != 1 || len(p.Y) != 2 {
				t.Fatalf("pair has %d inputs and %d outputs", len(p.X), len(p.Y))
			}
			if want := []int{32, imgH, imgW, 3}; !reflect.DeepEqual(p.X[0].Shape, want) {
				t.Fatalf("image tensor shape = %v, want %v", p.X[0].Shape, want)
			}
			for _, y := range p.Y {
				if !reflect.DeepEqual(y.Shape, []int{32}) || len(y.Data) != 32 {
					t.Fatalf("output tensor shape = %v", y.Shape)
				}
			}
		}
	}
}

func TestTrainValSplitSamplesWithinPartition(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	a := makeTub(t, dir, "a", 10)
	g, err := Build(ctx, []string{a.Path()}, Options{Seed: 3})
	if err != nil {
		t.Fatal(err)
	}
	// Angles are unique per record here, so drawn records can be traced back
	// to their rows.
	var seen []float64
	train, _, err := g.TrainValSplit(ctx, SplitOptions{
		InputKeys:     []string{"user/angle"},
		OutputKeys:    []string{"user/throttle"},
		BatchSize:     20,
		TrainFraction: 0.5,
		Transform: func(r tub.Record) (tub.Record, error) {
			seen = append(seen, r["user/angle"].(float64))
			return r, nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := train.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	s, _ := g.Split(ctx, 0.5)
	allowed := map[float64]bool{}
	for _, r := range s.Train {
		rec, err := g.Record(r)
		if err != nil {
			t.Fatal(err)
		}
		allowed[rec["user/angle"].(float64)] = true
	}
	if len(seen) != 20 {
		t.Fatalf("transform saw %d records, want 20", len(seen))
	}
	for _, v := range seen {
		if !allowed[v] {
			t.Fatalf("drew angle %v from outside the train partition", v)
		}
	}
}

func TestTrainValSplitSharedKey(t *testing.T) {
	ctx := context.Background()
	a := makeTub(t, t.TempDir(), "a", 10)
	g, err := Build(ctx, []string{a.Path()}, Options{Seed: 9})
	if err != nil {
		t.Fatal(err)
	}
	train, _, err := g.TrainValSplit(ctx, SplitOptions{
		InputKeys:     []string{"user/angle", "user/throttle"},
		OutputKeys:    []string{"user/angle"},
		BatchSize:     4,
		TrainFraction: 0.5,
	})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		pair, err := train.Next()
		if err != nil {
			t.Fatalf("Next %d: %v", i, err)
		}
		if len(pair.X) != 2 || len(pair.Y) != 1 {
			t.Fatalf("pair has %d inputs, %d outputs", len(pair.X), len(pair.Y))
		}
		if !reflect.DeepEqual(pair.X[0].Shape, []int{4}) || !reflect.DeepEqual(pair.Y[0].Shape, []int{4}) {
			t.Fatalf("shapes = %v, %v, want [4]", pair.X[0].Shape, pair.Y[0].Shape)
		}
		if !reflect.DeepEqual(pair.X[0].Data, pair.Y[0].Data) {
			t.Fatalf("shared key differs: %v vs %v", pair.X[0].Data, pair.Y[0].Data)
		}
	}
}

func TestUniqueKeys(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{nil, nil},
		{[]string{"a", "b"}, []string{"a", "b"}},
		{[]string{"a", "b", "a", "c", "b"}, []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		if got := uniqueKeys(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("uniqueKeys(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTrainValSplitKeyErrors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	a := makeTub(t, dir, "a", 4)
	g, err := Build(ctx, []string{a.Path()}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = g.TrainValSplit(ctx, SplitOptions{
		InputKeys: []string{"cam/image_array"}, OutputKeys: []string{"pilot/angle"},
		BatchSize: 2, TrainFraction: 0.5,
	})
	if !errors.Is(err, tub.ErrUnknownKey) {
		t.Fatalf("err = %v, want ErrUnknownKey", err)
	}
	_, _, err = g.TrainValSplit(ctx, SplitOptions{
		InputKeys: []string{"cam/image_array"}, OutputKeys: []string{"user/angle"},
		BatchSize: 0, TrainFraction: 0.5,
	})
	if err == nil {
		t.Fatalf("expected batch size error")
	}
}
