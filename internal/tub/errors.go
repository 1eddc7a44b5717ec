package tub

import "errors"

var (
	// ErrSchemaRequired is returned when creating a tub at a path that does
	// not exist yet without a schema.
	ErrSchemaRequired = errors.New("tub: schema required to create a new tub")
	// ErrUnsupportedFieldKind is returned for a declared kind the codec
	// cannot store.
	ErrUnsupportedFieldKind = errors.New("tub: unsupported field kind")
	// ErrMissingMediaFile is returned when a descriptor references a sidecar
	// file that is not on disk.
	ErrMissingMediaFile = errors.New("tub: missing media file")
	// ErrRecordCorrupt is returned when a descriptor or media payload cannot
	// be parsed.
	ErrRecordCorrupt = errors.New("tub: record corrupt")
	// ErrRecordNotFound is returned when no record file exists for an index.
	ErrRecordNotFound = errors.New("tub: record not found")
	// ErrUnknownKey is returned when a key is not part of the schema.
	ErrUnknownKey = errors.New("tub: unknown key")
	// ErrSchemaArity is returned when values do not line up with the schema.
	ErrSchemaArity = errors.New("tub: values do not match schema arity")
	// ErrValueType is returned when a value cannot be stored as its field's kind.
	ErrValueType = errors.New("tub: value does not match field kind")
	// ErrSchemaMismatch is returned when two schemas disagree on a key.
	ErrSchemaMismatch = errors.New("tub: schema mismatch")
	// ErrNoRecords is returned by streams drawing from an empty index set.
	ErrNoRecords = errors.New("tub: no records")
)
