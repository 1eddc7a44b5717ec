package tub

import (
	"errors"
	"testing"
)

func TestNewSchema(t *testing.T) {
	s, err := NewSchema(
		[]string{"cam/image_array", "user/angle", "user/mode"},
		[]string{"image_array", "float", "str"},
	)
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	if s.Len() != 3 {
		t.Fatalf("Len = %d, want 3", s.Len())
	}
	f, ok := s.Lookup("user/angle")
	if !ok || f.Kind != KindFloat {
		t.Fatalf("Lookup(user/angle) = %+v, %v", f, ok)
	}
	if f.Kind.IsMedia() {
		t.Fatalf("float reported as media")
	}
	if got := s.Types(); got[0] != "image_array" || got[2] != "str" {
		t.Fatalf("Types = %v", got)
	}
}

func TestNewSchemaErrors(t *testing.T) {
	tests := []struct {
		name   string
		inputs []string
		types  []string
		want   error
	}{
		{"arity", []string{"a", "b"}, []string{"int"}, ErrSchemaArity},
		{"unknown kind", []string{"a"}, []string{"tensor"}, ErrUnsupportedFieldKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSchema(tt.inputs, tt.types)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSchemaOfRejectsDuplicates(t *testing.T) {
	_, err := SchemaOf(Field{"a", KindInt}, Field{"a", KindFloat})
	if err == nil {
		t.Fatal("expected duplicate field error")
	}
}

func TestSchemaEqual(t *testing.T) {
	a, _ := NewSchema([]string{"x", "y"}, []string{"int", "float"})
	b, _ := NewSchema([]string{"x", "y"}, []string{"int", "float"})
	c, _ := NewSchema([]string{"y", "x"}, []string{"float", "int"})
	if !a.Equal(b) {
		t.Fatal("identical schemas not equal")
	}
	if a.Equal(c) {
		t.Fatal("reordered schema reported equal")
	}
}
