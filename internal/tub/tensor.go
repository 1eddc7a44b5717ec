package tub

import (
	"fmt"
	"image"
)

// Tensor is a dense row-major float32 array. Batches of scalars stack to
// shape [n]; batches of rasters stack to [n, height, width, channels].
type Tensor struct {
	Shape []int
	Data  []float32
}

// Len returns the size of the leading dimension.
func (t Tensor) Len() int {
	if len(t.Shape) == 0 {
		return 0
	}
	return t.Shape[0]
}

// Stack converts one column of values into a tensor. Every value must be of
// the same family: numbers and booleans, or rasters of one shape. Strings and
// nil values cannot be stacked.
func Stack(values []any) (Tensor, error) {
	if len(values) == 0 {
		return Tensor{Shape: []int{0}}, nil
	}
	if isRaster(values[0]) {
		return stackRasters(values)
	}
	out := Tensor{Shape: []int{len(values)}, Data: make([]float32, len(values))}
	for i, v := range values {
		f, ok := scalarValue(v)
		if !ok {
			return Tensor{}, fmt.Errorf("%w: row %d holds %T", ErrValueType, i, v)
		}
		out.Data[i] = f
	}
	return out, nil
}

func isRaster(v any) bool {
	switch v.(type) {
	case Array, *Array, image.Image:
		return true
	}
	return false
}

func scalarValue(v any) (float32, bool) {
	if b, ok := v.(bool); ok {
		if b {
			return 1, true
		}
		return 0, true
	}
	f, ok := toFloat64(v)
	return float32(f), ok
}

func rasterArray(v any) (Array, bool) {
	switch a := v.(type) {
	case Array:
		return a, true
	case *Array:
		if a != nil {
			return *a, true
		}
	case image.Image:
		return ArrayFromImage(a), true
	}
	return Array{}, false
}

func stackRasters(values []any) (Tensor, error) {
	first, _ := rasterArray(values[0])
	size := len(first.Pix)
	out := Tensor{
		Shape: []int{len(values), first.Height, first.Width, first.Channels},
		Data:  make([]float32, 0, len(values)*size),
	}
	for i, v := range values {
		a, ok := rasterArray(v)
		if !ok {
			return Tensor{}, fmt.Errorf("%w: row %d holds %T", ErrValueType, i, v)
		}
		if a.Height != first.Height || a.Width != first.Width || a.Channels != first.Channels {
			return Tensor{}, fmt.Errorf("%w: row %d has shape %v, want %v", ErrValueType, i, a.Shape(), first.Shape())
		}
		for _, p := range a.Pix {
			out.Data = append(out.Data, float32(p))
		}
	}
	return out, nil
}
