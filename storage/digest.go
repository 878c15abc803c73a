package storage

import (
	"encoding/binary"

	"lukechampine.com/blake3"
)

// Digest hashes every key/value pair under prefix in key order. Two databases
// holding the same entries produce the same digest regardless of backend.
func Digest(db Database, prefix []byte) ([32]byte, error) {
	var out [32]byte
	hasher := blake3.New(32, nil)
	var lenBuf [8]byte
	err := db.Iterate(prefix, func(key, value []byte) error {
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(key)))
		hasher.Write(lenBuf[:])
		hasher.Write(key)
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(value)))
		hasher.Write(lenBuf[:])
		hasher.Write(value)
		return nil
	})
	if err != nil {
		return out, err
	}
	copy(out[:], hasher.Sum(nil))
	return out, nil
}
