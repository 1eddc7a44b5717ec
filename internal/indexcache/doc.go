// Package indexcache keeps the descriptor index of each tub in a local Pebble
// database, keyed by the tub's absolute path.
//
// Each cached tub carries a Stamp of its index set. Load only serves entries
// whose stamp still matches the directory, so appending to or repairing a tub
// turns its next lookup into a miss.
package indexcache
