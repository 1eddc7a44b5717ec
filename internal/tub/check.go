package tub

import (
	logpkg "github.com/lmxia/pmlcar/pkg/log"
)

// Problem is one record that failed to load during Check.
type Problem struct {
	Index   int
	Err     error
	Removed bool
}

// Report summarizes a Check run.
type Report struct {
	Path     string
	Checked  int
	Problems []Problem
	// Err is set when the directory itself could not be scanned.
	Err error
}

// OK reports whether every record loaded.
func (r Report) OK() bool { return r.Err == nil && len(r.Problems) == 0 }

// FailedIndices returns the indices of all problems in scan order.
func (r Report) FailedIndices() []int {
	out := make([]int, len(r.Problems))
	for i, p := range r.Problems {
		out[i] = p.Index
	}
	return out
}

// Check loads every record in index order. Failures are collected in the
// report; with repair the failing records are also removed. Check never
// returns an error of its own.
func (t *Tub) Check(repair bool) Report {
	rep := Report{Path: t.path}
	ixs, err := t.ScanIndices(true)
	if err != nil {
		rep.Err = err
		t.logger.Error("check: scan failed", logpkg.Err(err))
		return rep
	}
	t.logger.Info("checking tub", logpkg.Int("records", len(ixs)), logpkg.Bool("repair", repair))

	for _, ix := range ixs {
		rep.Checked++
		if _, err := t.Get(ix); err != nil {
			p := Problem{Index: ix, Err: err}
			if repair {
				if rmErr := t.Remove(ix); rmErr != nil {
					t.logger.Error("problem with record, remove failed",
						logpkg.Int("index", ix), logpkg.Err(err), logpkg.Str("remove_error", rmErr.Error()))
				} else {
					p.Removed = true
					t.logger.Warn("problem with record, removed", logpkg.Int("index", ix), logpkg.Err(err))
				}
			} else {
				t.logger.Warn("problem with record", logpkg.Int("index", ix), logpkg.Err(err))
			}
			rep.Problems = append(rep.Problems, p)
		}
	}
	if len(rep.Problems) == 0 {
		t.logger.Info("no problems found", logpkg.Int("records", rep.Checked))
	}
	return rep
}
