// Package tubgroup combines several tubs into one training corpus.
//
// Build opens existing tubs and checks that shared keys agree on their kind.
// The combined index (one row per record, tagged with its tub) is built on
// first use, optionally through the Pebble-backed index cache, and filtered
// by an optional CEL expression. TrainValSplit fixes a seeded permutation of
// the rows once per group and returns endless train and validation batch
// generators that sample with replacement within their partition.
package tubgroup
