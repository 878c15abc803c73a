package storage

import "errors"

// ErrReadOnly is returned by write operations on a ReadOnly view.
var ErrReadOnly = errors.New("storage: read-only view")

// PrefixDB namespaces every key under a fixed prefix of the parent database.
// Keys written through one PrefixDB are invisible to a PrefixDB with a
// different prefix.
type PrefixDB struct {
	parent Database
	prefix []byte
}

// NewPrefixDB wraps parent so that every key is stored under prefix.
func NewPrefixDB(parent Database, prefix []byte) *PrefixDB {
	return &PrefixDB{parent: parent, prefix: append([]byte(nil), prefix...)}
}

func (p *PrefixDB) key(k []byte) []byte {
	out := make([]byte, 0, len(p.prefix)+len(k))
	out = append(out, p.prefix...)
	return append(out, k...)
}

func (p *PrefixDB) Put(key []byte, value []byte) error { return p.parent.Put(p.key(key), value) }

func (p *PrefixDB) Get(key []byte) ([]byte, error) { return p.parent.Get(p.key(key)) }

func (p *PrefixDB) Has(key []byte) (bool, error) { return p.parent.Has(p.key(key)) }

func (p *PrefixDB) Delete(key []byte) error { return p.parent.Delete(p.key(key)) }

func (p *PrefixDB) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	return p.parent.Iterate(p.key(prefix), func(key, value []byte) error {
		return fn(key[len(p.prefix):], value)
	})
}

// Write rewrites every key of batch under the prefix and hands the result to
// the parent as one batch.
func (p *PrefixDB) Write(batch *Batch) error {
	prefixed := NewBatch()
	_ = batch.Replay(func(key, value []byte) error {
		prefixed.Put(p.key(key), value)
		return nil
	}, func(key []byte) error {
		prefixed.Delete(p.key(key))
		return nil
	})
	return p.parent.Write(prefixed)
}

// Close is a no-op; the parent owns the underlying handle.
func (p *PrefixDB) Close() {}

type readOnly struct {
	Database
}

// ReadOnly returns a view of db that rejects Put and Delete.
func ReadOnly(db Database) Database {
	return readOnly{Database: db}
}

func (readOnly) Put([]byte, []byte) error { return ErrReadOnly }

func (readOnly) Delete([]byte) error { return ErrReadOnly }

func (readOnly) Write(*Batch) error { return ErrReadOnly }

func (readOnly) Close() {}
