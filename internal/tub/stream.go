package tub

import (
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Transform rewrites a record before a stream yields it.
type Transform func(Record) (Record, error)

// Source is a population of records a stream draws from.
type Source interface {
	// Indices returns the current index set in ascending order. Each call is
	// a fresh snapshot.
	Indices() ([]int, error)
	// Load decodes the record at ix.
	Load(ix int) (Record, error)
}

// StreamOptions configures a RecordStream.
type StreamOptions struct {
	Transform Transform
	// Shuffle draws indices uniformly at random with replacement; otherwise
	// indices are visited in ascending order, wrapping around at the end.
	Shuffle bool
	// Rand is the shuffle source. Defaults to one seeded from the clock.
	Rand *rand.Rand
}

// maxLoadRetries bounds how often a stream re-draws after a record vanished
// between the index snapshot and the load.
const maxLoadRetries = 8

// RecordStream is an endless, pull-based sequence of decoded records. The
// index set is re-read once per cycle (a full sequential pass, or as many
// shuffled draws as the snapshot holds), so records written after the stream
// starts become eligible without restarting it.
type RecordStream struct {
	src       Source
	transform Transform
	shuffle   bool
	rng       *rand.Rand

	snapshot []int
	pos      int
	drawn    int
}

// NewRecordStream builds a stream over src.
func NewRecordStream(src Source, opts StreamOptions) *RecordStream {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &RecordStream{src: src, transform: opts.Transform, shuffle: opts.Shuffle, rng: rng}
}

// Next returns the next record. It fails with ErrNoRecords when the source is
// empty and otherwise only for load or transform errors.
func (s *RecordStream) Next() (Record, error) {
	var lastErr error
	for attempt := 0; attempt < maxLoadRetries; attempt++ {
		ix, err := s.nextIndex()
		if err != nil {
			return nil, err
		}
		rec, err := s.src.Load(ix)
		if errors.Is(err, ErrRecordNotFound) {
			lastErr = err
			s.snapshot = nil
			continue
		}
		if err != nil {
			return nil, err
		}
		if s.transform != nil {
			if rec, err = s.transform(rec); err != nil {
				return nil, fmt.Errorf("transform record %d: %w", ix, err)
			}
		}
		return rec, nil
	}
	return nil, lastErr
}

func (s *RecordStream) nextIndex() (int, error) {
	if s.shuffle {
		if s.snapshot == nil || s.drawn >= len(s.snapshot) {
			if err := s.refresh(); err != nil {
				return 0, err
			}
			s.drawn = 0
		}
		s.drawn++
		return s.snapshot[s.rng.Intn(len(s.snapshot))], nil
	}
	if s.snapshot == nil || s.pos >= len(s.snapshot) {
		if err := s.refresh(); err != nil {
			return 0, err
		}
		s.pos = 0
	}
	ix := s.snapshot[s.pos]
	s.pos++
	return ix, nil
}

func (s *RecordStream) refresh() error {
	ixs, err := s.src.Indices()
	if err != nil {
		return err
	}
	if len(ixs) == 0 {
		s.snapshot = nil
		return ErrNoRecords
	}
	s.snapshot = ixs
	return nil
}

// Batch is a column-oriented group of records: each key maps to one value per
// record, in draw order.
type Batch map[string][]any

// BatchOptions configures a BatchStream.
type BatchOptions struct {
	// Keys selects the columns. Defaults to every schema input.
	Keys      []string
	BatchSize int
	Transform Transform
	Shuffle   bool
	Rand      *rand.Rand
}

// BatchStream groups a RecordStream into fixed-size, column-oriented batches.
type BatchStream struct {
	records   *RecordStream
	keys      []string
	batchSize int
}

// NewBatchStream builds a batch stream over src. Keys must be non-empty.
func NewBatchStream(src Source, opts BatchOptions) (*BatchStream, error) {
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("tub: batch size must be positive, got %d", opts.BatchSize)
	}
	if len(opts.Keys) == 0 {
		return nil, fmt.Errorf("%w: no keys selected", ErrUnknownKey)
	}
	return &BatchStream{
		records: NewRecordStream(src, StreamOptions{
			Transform: opts.Transform,
			Shuffle:   opts.Shuffle,
			Rand:      opts.Rand,
		}),
		keys:      append([]string(nil), opts.Keys...),
		batchSize: opts.BatchSize,
	}, nil
}

// Keys returns the selected columns.
func (b *BatchStream) Keys() []string { return append([]string(nil), b.keys...) }

// Next pulls BatchSize records and reshapes them into columns.
func (b *BatchStream) Next() (Batch, error) {
	batch := make(Batch, len(b.keys))
	for _, k := range b.keys {
		batch[k] = make([]any, 0, b.batchSize)
	}
	for i := 0; i < b.batchSize; i++ {
		rec, err := b.records.Next()
		if err != nil {
			return nil, err
		}
		for _, k := range b.keys {
			batch[k] = append(batch[k], rec[k])
		}
	}
	return batch, nil
}

// Len returns the number of rows in the batch.
func (b Batch) Len() int {
	for _, col := range b {
		return len(col)
	}
	return 0
}

// Tensor stacks column key into a dense tensor.
func (b Batch) Tensor(key string) (Tensor, error) {
	col, ok := b[key]
	if !ok {
		return Tensor{}, fmt.Errorf("%w: %q not in batch", ErrUnknownKey, key)
	}
	t, err := Stack(col)
	if err != nil {
		return Tensor{}, fmt.Errorf("column %q: %w", key, err)
	}
	return t, nil
}

type tubSource struct{ t *Tub }

func (s tubSource) Indices() ([]int, error)     { return s.t.ScanIndices(true) }
func (s tubSource) Load(ix int) (Record, error) { return s.t.Get(ix) }

// RecordStream returns an endless stream over this tub's records.
func (t *Tub) RecordStream(opts StreamOptions) *RecordStream {
	return NewRecordStream(tubSource{t}, opts)
}

// BatchStream returns an endless stream of batches over this tub. Requested
// keys must be part of the schema.
func (t *Tub) BatchStream(opts BatchOptions) (*BatchStream, error) {
	if len(opts.Keys) == 0 {
		opts.Keys = t.schema.Inputs()
	}
	for _, k := range opts.Keys {
		if _, ok := t.schema.Lookup(k); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownKey, k)
		}
	}
	return NewBatchStream(tubSource{t}, opts)
}
