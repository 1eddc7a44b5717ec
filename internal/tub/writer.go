package tub

import "fmt"

// Writer adapts a tub to positional values: the i-th value passed to Run is
// stored under the i-th schema input.
type Writer struct {
	tub    *Tub
	inputs []string
}

// NewWriter wraps t.
func NewWriter(t *Tub) *Writer {
	return &Writer{tub: t, inputs: t.schema.Inputs()}
}

// Tub returns the underlying tub.
func (w *Writer) Tub() *Tub { return w.tub }

// Run stores one record and returns its index.
func (w *Writer) Run(values ...any) (int, error) {
	if len(values) != len(w.inputs) {
		return 0, fmt.Errorf("%w: got %d values for %d inputs", ErrSchemaArity, len(values), len(w.inputs))
	}
	rec := make(Record, len(values))
	for i, v := range values {
		rec[w.inputs[i]] = v
	}
	return w.tub.Put(rec)
}
