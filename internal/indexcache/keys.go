package indexcache

import (
	"encoding/binary"
)

// Keyspace for Pebble keys.
//
// Layout (byte-wise, lexicographically sortable):
// - m/{tub_path}
// - r/{tub_path}\x00{ix_be8}
//
// The NUL terminator keeps /data/tub_1 from prefixing /data/tub_10.

var (
	metaPrefix   = []byte("m/")
	recordPrefix = []byte("r/")
	pathEnd      = byte(0)
)

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

// keyTubMeta builds the fingerprint key of a tub.
func keyTubMeta(tubPath string) []byte {
	k := make([]byte, 0, len(metaPrefix)+len(tubPath))
	k = append(k, metaPrefix...)
	return append(k, tubPath...)
}

// keyRecordPrefix is the range prefix covering a tub's record entries.
func keyRecordPrefix(tubPath string) []byte {
	k := make([]byte, 0, len(recordPrefix)+len(tubPath)+9)
	k = append(k, recordPrefix...)
	k = append(k, tubPath...)
	return append(k, pathEnd)
}

// keyRecord builds the entry key with a big-endian index for proper ordering.
func keyRecord(tubPath string, ix int) []byte {
	return appendBE8(keyRecordPrefix(tubPath), uint64(ix))
}

// parseMetaKey extracts the tub path from a meta key.
func parseMetaKey(k []byte) (string, bool) {
	if len(k) <= len(metaPrefix) || string(k[:len(metaPrefix)]) != string(metaPrefix) {
		return "", false
	}
	return string(k[len(metaPrefix):]), true
}

// parseRecordKey extracts the index from a record key.
func parseRecordKey(k []byte) (int, bool) {
	if len(k) < len(recordPrefix)+9 || k[len(k)-9] != pathEnd {
		return 0, false
	}
	return int(binary.BigEndian.Uint64(k[len(k)-8:])), true
}
