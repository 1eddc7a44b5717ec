package tub

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Record is one decoded sample keyed by field name.
type Record map[string]any

// Descriptor is the on-disk form of a record: inline scalars plus relative
// filenames for media fields.
type Descriptor map[string]any

// Codec converts records to descriptors plus sidecar media files and back.
type Codec struct {
	Format      ImageFormat
	JPEGQuality int
}

// MediaFileName returns the sidecar name for field at index ix, e.g.
// "12_cam-image_array_.png".
func (c Codec) MediaFileName(ix int, field string) string {
	format := c.Format
	if format == "" {
		format = FormatPNG
	}
	return strconv.Itoa(ix) + "_" + strings.ReplaceAll(field, "/", "-") + "_" + format.ext()
}

// Encode stores the media fields of values in dir and returns the descriptor
// for record ix along with the sidecar names it wrote. Fields of values that
// are not in schema are rejected with ErrUnknownKey.
func (c Codec) Encode(values Record, schema Schema, dir string, ix int) (Descriptor, []string, error) {
	desc := make(Descriptor, len(values))
	var written []string
	fail := func(err error) (Descriptor, []string, error) {
		for _, name := range written {
			_ = os.Remove(filepath.Join(dir, name))
		}
		return nil, nil, err
	}

	for key, val := range values {
		field, ok := schema.Lookup(key)
		if !ok {
			return fail(fmt.Errorf("%w: %q", ErrUnknownKey, key))
		}
		switch field.Kind {
		case KindStr, KindInt, KindFloat, KindBoolean:
			v, err := canonicalScalar(field.Kind, val)
			if err != nil {
				return fail(fmt.Errorf("field %q: %w", key, err))
			}
			desc[key] = v
		case KindImage, KindImageArray:
			img, err := mediaImage(val)
			if err != nil {
				return fail(fmt.Errorf("field %q: %w", key, err))
			}
			name := c.MediaFileName(ix, key)
			quality := c.JPEGQuality
			if quality <= 0 {
				quality = 90
			}
			if err := writeImage(filepath.Join(dir, name), img, c.Format, quality); err != nil {
				return fail(err)
			}
			written = append(written, name)
			desc[key] = name
		default:
			return fail(fmt.Errorf("field %q: %w: %v", key, ErrUnsupportedFieldKind, field.Kind))
		}
	}
	return desc, written, nil
}

// Decode resolves media filenames against baseDir, loads them and returns the
// record. Relative names are joined to baseDir; absolute names are used as is.
// Keys absent from schema pass through unchanged.
func (c Codec) Decode(desc Descriptor, schema Schema, baseDir string) (Record, error) {
	rec := make(Record, len(desc))
	for key, raw := range desc {
		field, ok := schema.Lookup(key)
		if !ok {
			rec[key] = raw
			continue
		}
		switch field.Kind {
		case KindStr, KindInt, KindFloat, KindBoolean:
			v, err := decodeScalar(field.Kind, raw)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", key, err)
			}
			rec[key] = v
		case KindImage, KindImageArray:
			name, ok := raw.(string)
			if !ok || name == "" {
				return nil, fmt.Errorf("%w: field %q holds %T, want a filename", ErrRecordCorrupt, key, raw)
			}
			img, err := readImage(resolvePath(baseDir, name))
			if err != nil {
				return nil, err
			}
			if field.Kind == KindImageArray {
				rec[key] = ArrayFromImage(img)
			} else {
				rec[key] = img
			}
		default:
			return nil, fmt.Errorf("field %q: %w: %v", key, ErrUnsupportedFieldKind, field.Kind)
		}
	}
	return rec, nil
}

// Resolve returns a copy of desc with media filenames made absolute under
// baseDir, without touching the media files.
func (c Codec) Resolve(desc Descriptor, schema Schema, baseDir string) Descriptor {
	out := make(Descriptor, len(desc))
	for key, raw := range desc {
		if f, ok := schema.Lookup(key); ok && f.Kind.IsMedia() {
			if name, ok := raw.(string); ok && name != "" {
				out[key] = resolvePath(baseDir, name)
				continue
			}
		}
		out[key] = raw
	}
	return out
}

// ParseDescriptor decodes a record file. Numbers are kept as json.Number so
// int fields survive without a float round trip.
func ParseDescriptor(b []byte) (Descriptor, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var desc Descriptor
	if err := dec.Decode(&desc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecordCorrupt, err)
	}
	if desc == nil {
		return nil, fmt.Errorf("%w: descriptor is null", ErrRecordCorrupt)
	}
	return desc, nil
}

func resolvePath(baseDir, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(baseDir, name)
}

// canonicalScalar validates val against kind and returns the form stored in
// descriptors: string, int64, float64 or bool. nil is stored as JSON null.
func canonicalScalar(kind Kind, val any) (any, error) {
	if val == nil {
		return nil, nil
	}
	switch kind {
	case KindStr:
		if s, ok := val.(string); ok {
			return s, nil
		}
	case KindInt:
		if n, ok := toInt64(val); ok {
			return n, nil
		}
	case KindFloat:
		if f, ok := toFloat64(val); ok {
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return nil, fmt.Errorf("%w: %v is not representable in JSON", ErrValueType, f)
			}
			return f, nil
		}
	case KindBoolean:
		if b, ok := val.(bool); ok {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: %T for %s", ErrValueType, val, kind)
}

func decodeScalar(kind Kind, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	switch kind {
	case KindStr:
		if s, ok := raw.(string); ok {
			return s, nil
		}
	case KindInt:
		if n, ok := raw.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				return i, nil
			}
			if f, err := n.Float64(); err == nil && f == math.Trunc(f) {
				return int64(f), nil
			}
		}
	case KindFloat:
		if n, ok := raw.(json.Number); ok {
			if f, err := n.Float64(); err == nil {
				return f, nil
			}
		}
	case KindBoolean:
		if b, ok := raw.(bool); ok {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: %v is not a valid %s", ErrRecordCorrupt, raw, kind)
}

func toInt64(val any) (int64, bool) {
	switch v := val.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	}
	return 0, false
}

func toFloat64(val any) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	if n, ok := toInt64(val); ok {
		return float64(n), true
	}
	return 0, false
}

// mediaImage accepts an image.Image or an Array for media fields.
func mediaImage(val any) (image.Image, error) {
	switch v := val.(type) {
	case image.Image:
		if v.Bounds().Empty() {
			return nil, fmt.Errorf("%w: empty image", ErrValueType)
		}
		return v, nil
	case Array:
		return v.Image()
	case *Array:
		if v == nil {
			break
		}
		return v.Image()
	}
	return nil, fmt.Errorf("%w: %T is not a raster", ErrValueType, val)
}
