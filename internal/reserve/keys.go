package reserve

import (
	"encoding/binary"

	"github.com/ppdx999/tiny64/pkg/tiny64"
)

// Keyspace helpers for Pebble keys.
//
// Layout (byte-wise, lexicographically sortable):
// - id/{value_be8}
//
// Big-endian values keep the keyspace in ID order, so range scans walk
// claims chronologically.

var idPrefix = []byte("id/")

func keyID(id tiny64.ID) []byte {
	k := make([]byte, 0, len(idPrefix)+8)
	k = append(k, idPrefix...)
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(id))
	return append(k, b[:]...)
}
