package tub

import (
	"errors"
	"image"
	"reflect"
	"testing"
)

func TestStackScalars(t *testing.T) {
	got, err := Stack([]any{0.5, int64(2), true, float32(1.5)})
	if err != nil {
		t.Fatalf("Stack: %v", err)
	}
	want := Tensor{Shape: []int{4}, Data: []float32{0.5, 2, 1, 1.5}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Stack = %+v, want %+v", got, want)
	}
}

func TestStackRasters(t *testing.T) {
	a, b := testArray(1), testArray(2)
	img, _ := b.Image()
	got, err := Stack([]any{a, img})
	if err != nil {
		t.Fatalf("Stack: %v", err)
	}
	if want := []int{2, testHeight, testWidth, 3}; !reflect.DeepEqual(got.Shape, want) {
		t.Fatalf("shape = %v, want %v", got.Shape, want)
	}
	n := testHeight * testWidth * 3
	if got.Data[0] != float32(a.Pix[0]) || got.Data[n] != float32(b.Pix[0]) {
		t.Fatal("pixel data out of order")
	}
}

func TestStackErrors(t *testing.T) {
	tests := []struct {
		name   string
		values []any
	}{
		{"string", []any{"user"}},
		{"nil", []any{0.1, nil}},
		{"mixed", []any{testArray(0), 0.1}},
		{"shape", []any{testArray(0), image.NewGray(image.Rect(0, 0, 2, 2))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Stack(tt.values); !errors.Is(err, ErrValueType) {
				t.Fatalf("err = %v, want ErrValueType", err)
			}
		})
	}
}
