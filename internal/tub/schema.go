package tub

import (
	"encoding/json"
	"fmt"
	"os"
)

// Kind is the declared storage kind of a schema field.
type Kind uint8

const (
	KindStr Kind = iota + 1
	KindInt
	KindFloat
	KindBoolean
	KindImage
	KindImageArray
)

var kindNames = [...]string{
	KindStr:        "str",
	KindInt:        "int",
	KindFloat:      "float",
	KindBoolean:    "boolean",
	KindImage:      "image",
	KindImageArray: "image_array",
}

// ParseKind maps a meta.json type name to a Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name != "" && name == s {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedFieldKind, s)
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// IsMedia reports whether values of this kind live in a sidecar file.
func (k Kind) IsMedia() bool { return k == KindImage || k == KindImageArray }

// Field is one named, typed input of a schema.
type Field struct {
	Name string
	Kind Kind
}

// Schema is the ordered, immutable list of fields declared when a tub is
// created.
type Schema struct {
	fields []Field
	byName map[string]int
}

// NewSchema builds a schema from parallel input-name and type-name lists, the
// shape stored in meta.json.
func NewSchema(inputs, types []string) (Schema, error) {
	if len(inputs) != len(types) {
		return Schema{}, fmt.Errorf("%w: %d inputs but %d types", ErrSchemaArity, len(inputs), len(types))
	}
	fields := make([]Field, len(inputs))
	for i, name := range inputs {
		k, err := ParseKind(types[i])
		if err != nil {
			return Schema{}, fmt.Errorf("field %q: %w", name, err)
		}
		fields[i] = Field{Name: name, Kind: k}
	}
	return SchemaOf(fields...)
}

// SchemaOf builds a schema from fields.
func SchemaOf(fields ...Field) (Schema, error) {
	s := Schema{
		fields: make([]Field, len(fields)),
		byName: make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		if f.Name == "" {
			return Schema{}, fmt.Errorf("tub: field %d has an empty name", i)
		}
		if _, dup := s.byName[f.Name]; dup {
			return Schema{}, fmt.Errorf("tub: duplicate field %q", f.Name)
		}
		if f.Kind == 0 || int(f.Kind) >= len(kindNames) {
			return Schema{}, fmt.Errorf("field %q: %w: %v", f.Name, ErrUnsupportedFieldKind, f.Kind)
		}
		s.fields[i] = f
		s.byName[f.Name] = i
	}
	return s, nil
}

// Len returns the number of fields.
func (s Schema) Len() int { return len(s.fields) }

// Fields returns a copy of the fields in declaration order.
func (s Schema) Fields() []Field { return append([]Field(nil), s.fields...) }

// Inputs returns the field names in declaration order.
func (s Schema) Inputs() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.Name
	}
	return out
}

// Types returns the kind names in declaration order.
func (s Schema) Types() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.Kind.String()
	}
	return out
}

// Lookup returns the field named name.
func (s Schema) Lookup(name string) (Field, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Equal reports whether both schemas declare the same fields in the same order.
func (s Schema) Equal(o Schema) bool {
	if len(s.fields) != len(o.fields) {
		return false
	}
	for i := range s.fields {
		if s.fields[i] != o.fields[i] {
			return false
		}
	}
	return true
}

// meta is the on-disk form of a schema.
type meta struct {
	Inputs []string `json:"inputs"`
	Types  []string `json:"types"`
}

func (s Schema) marshalMeta() ([]byte, error) {
	return json.Marshal(meta{Inputs: s.Inputs(), Types: s.Types()})
}

func readMeta(path string) (Schema, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, err
	}
	var m meta
	if err := json.Unmarshal(b, &m); err != nil {
		return Schema{}, fmt.Errorf("%w: %s: %v", ErrRecordCorrupt, path, err)
	}
	return NewSchema(m.Inputs, m.Types)
}
