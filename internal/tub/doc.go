// Package tub implements the on-disk record store used to log driving
// sessions.
//
// A tub is a directory holding a meta.json schema, one record_<ix>.json
// descriptor per sample and sidecar image files for media fields:
//
//	<tub>/meta.json             {"inputs": [...], "types": [...]}
//	<tub>/record_<ix>.json      {field: scalar | "<ix>_<field>_.png"}
//	<tub>/<ix>_<field>_.png     '/' in field names is written as '-'
//
// Records are append-only. Indices grow by one per Put and are recomputed
// from the directory when a tub is reopened; removed records leave gaps that
// are never filled. RecordStream and BatchStream replay a tub as an endless,
// pull-based sequence for training.
package tub
