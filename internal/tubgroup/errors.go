package tubgroup

import (
	"errors"

	"github.com/lmxia/pmlcar/internal/tub"
)

var (
	// ErrSchemaMismatch is returned when tubs disagree on a key: it is missing
	// from some of them or declared with different kinds.
	ErrSchemaMismatch = tub.ErrSchemaMismatch
	// ErrEmptyPartition is returned when a split leaves the train or the
	// validation side without rows.
	ErrEmptyPartition = errors.New("tubgroup: empty partition")
	// ErrNoTubs is returned when a group is built from no paths.
	ErrNoTubs = errors.New("tubgroup: no tubs")
)
