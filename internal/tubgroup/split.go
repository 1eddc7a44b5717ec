package tubgroup

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/lmxia/pmlcar/internal/tub"
	logpkg "github.com/lmxia/pmlcar/pkg/log"
)

// Split partitions the combined index into train and validation rows. It is
// computed once per group and stays fixed until Rebuild.
type Split struct {
	Fraction float64
	Train    []Row
	Val      []Row
}

// StepsPerEpoch returns how many batches of batchSize make one pass over the
// train rows.
func (s *Split) StepsPerEpoch(batchSize int) int {
	if batchSize <= 0 {
		return 0
	}
	return len(s.Train) / batchSize
}

// Split returns the group's train/validation partition, computing it on the
// first call from a seeded permutation of all rows: the first
// round(trainFraction*N) rows of the permutation train, the rest validate.
// Later calls must pass the same fraction.
func (g *Group) Split(ctx context.Context, trainFraction float64) (*Split, error) {
	if trainFraction < 0 || trainFraction > 1 || math.IsNaN(trainFraction) {
		return nil, fmt.Errorf("tubgroup: train fraction %v outside [0, 1]", trainFraction)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.split != nil {
		if g.split.Fraction != trainFraction {
			return nil, fmt.Errorf("tubgroup: split already fixed at %v, asked for %v", g.split.Fraction, trainFraction)
		}
		return g.split, nil
	}

	rows, err := g.indexLocked(ctx, !g.opts.NoCache)
	if err != nil {
		return nil, err
	}
	n := len(rows)
	if n == 0 {
		return nil, tub.ErrNoRecords
	}
	nTrain := int(math.Round(trainFraction * float64(n)))
	if nTrain == 0 || nTrain == n {
		return nil, fmt.Errorf("%w: %d of %d rows for training at fraction %v", ErrEmptyPartition, nTrain, n, trainFraction)
	}

	perm := rand.New(rand.NewSource(g.seed)).Perm(n)
	s := &Split{
		Fraction: trainFraction,
		Train:    make([]Row, 0, nTrain),
		Val:      make([]Row, 0, n-nTrain),
	}
	for i, p := range perm {
		if i < nTrain {
			s.Train = append(s.Train, rows[p])
		} else {
			s.Val = append(s.Val, rows[p])
		}
	}
	g.split = s
	g.logger.Info("train/validation split", logpkg.Int("train", len(s.Train)), logpkg.Int("val", len(s.Val)),
		logpkg.Int64("seed", g.seed))
	return s, nil
}

// SplitOptions configures TrainValSplit.
type SplitOptions struct {
	InputKeys     []string
	OutputKeys    []string
	BatchSize     int
	TrainFraction float64
	Transform     tub.Transform
}

// Pair is one training batch: a tensor per input key and per output key, in
// key order.
type Pair struct {
	X []tub.Tensor
	Y []tub.Tensor
}

// PairStream is an endless generator of batches drawn uniformly with
// replacement from one partition.
type PairStream struct {
	group      *Group
	rows       []Row
	inputKeys  []string
	outputKeys []string
	columns    []string
	batchSize  int
	transform  tub.Transform
	rng        *rand.Rand
}

// TrainValSplit returns independent train and validation generators. Every
// key must be declared with the same kind by all member tubs.
func (g *Group) TrainValSplit(ctx context.Context, opts SplitOptions) (train, val *PairStream, err error) {
	if opts.BatchSize <= 0 {
		return nil, nil, fmt.Errorf("tubgroup: batch size must be positive, got %d", opts.BatchSize)
	}
	if len(opts.InputKeys) == 0 || len(opts.OutputKeys) == 0 {
		return nil, nil, fmt.Errorf("%w: input and output keys are required", tub.ErrUnknownKey)
	}
	keys := append(append([]string(nil), opts.InputKeys...), opts.OutputKeys...)
	if err := g.requireKeys(keys); err != nil {
		return nil, nil, err
	}
	s, err := g.Split(ctx, opts.TrainFraction)
	if err != nil {
		return nil, nil, err
	}
	columns := uniqueKeys(keys)
	newStream := func(rows []Row, salt int64) *PairStream {
		return &PairStream{
			group:      g,
			rows:       rows,
			inputKeys:  append([]string(nil), opts.InputKeys...),
			outputKeys: append([]string(nil), opts.OutputKeys...),
			columns:    columns,
			batchSize:  opts.BatchSize,
			transform:  opts.Transform,
			rng:        rand.New(rand.NewSource(g.seed + salt)),
		}
	}
	return newStream(s.Train, 1), newStream(s.Val, 2), nil
}

// Rows returns the size of the partition the stream samples.
func (p *PairStream) Rows() int { return len(p.rows) }

// uniqueKeys drops repeated keys, keeping first occurrences in order.
func uniqueKeys(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	var out []string
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

// Next draws BatchSize rows and stacks the selected keys into tensors.
func (p *PairStream) Next() (Pair, error) {
	batch := make(tub.Batch, len(p.columns))
	for i := 0; i < p.batchSize; i++ {
		row := p.rows[p.rng.Intn(len(p.rows))]
		rec, err := p.group.Record(row)
		if err != nil {
			return Pair{}, err
		}
		if p.transform != nil {
			if rec, err = p.transform(rec); err != nil {
				return Pair{}, fmt.Errorf("transform record %d: %w", row.Index, err)
			}
		}
		for _, k := range p.columns {
			batch[k] = append(batch[k], rec[k])
		}
	}

	var pair Pair
	for _, k := range p.inputKeys {
		t, err := batch.Tensor(k)
		if err != nil {
			return Pair{}, err
		}
		pair.X = append(pair.X, t)
	}
	for _, k := range p.outputKeys {
		t, err := batch.Tensor(k)
		if err != nil {
			return Pair{}, err
		}
		pair.Y = append(pair.Y, t)
	}
	return pair, nil
}
