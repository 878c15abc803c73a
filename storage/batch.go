package storage

// batchOp is one staged write. A nil value with deleted set removes the key.
type batchOp struct {
	key     []byte
	value   []byte
	deleted bool
}

// Batch collects writes that Database.Write applies all at once: either every
// operation lands or none does. Operations apply in the order they were added.
type Batch struct {
	ops []batchOp
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{}
}

// Put stages key=value.
func (b *Batch) Put(key, value []byte) {
	b.ops = append(b.ops, batchOp{
		key:   append([]byte(nil), key...),
		value: append([]byte{}, value...),
	})
}

// Delete stages the removal of key.
func (b *Batch) Delete(key []byte) {
	b.ops = append(b.ops, batchOp{key: append([]byte(nil), key...), deleted: true})
}

// Len reports the number of staged operations.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.ops)
}

// Reset drops every staged operation.
func (b *Batch) Reset() {
	b.ops = b.ops[:0]
}

// Replay feeds each operation to put or del in order and stops at the first
// error.
func (b *Batch) Replay(put func(key, value []byte) error, del func(key []byte) error) error {
	if b == nil {
		return nil
	}
	for _, op := range b.ops {
		var err error
		if op.deleted {
			err = del(op.key)
		} else {
			err = put(op.key, op.value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
