package auth

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"countingchain/storage"
)

const (
	nonceKeyPrefix    = "nonce:"
	observedKeyPrefix = "observed:"
)

// ErrNonceReplayed reports an envelope nonce that was already accepted.
var ErrNonceReplayed = errors.New("auth: nonce already used")

var errStopIteration = errors.New("auth: stop iteration")

// NonceRecord is one accepted (sender, nonce) pair.
type NonceRecord struct {
	Sender     string
	Nonce      string
	ObservedAt time.Time
}

// NonceStore remembers accepted envelope nonces so a signed execute cannot be
// replayed. Each entry is indexed twice: by identity for the replay check and
// by observation time for pruning.
type NonceStore struct {
	mu sync.Mutex
	db storage.Database
}

// NewNonceStore wraps db. The gateway gives it a database separate from the
// host state so that nonce bookkeeping never changes the state digest.
func NewNonceStore(db storage.Database) *NonceStore {
	return &NonceStore{db: db}
}

// Consume records the pair or returns ErrNonceReplayed when it was seen
// before.
func (s *NonceStore) Consume(sender, nonce string, observed time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("nonce store not configured")
	}
	sender = strings.TrimSpace(sender)
	nonce = strings.TrimSpace(nonce)
	if sender == "" || nonce == "" {
		return fmt.Errorf("nonce record incomplete")
	}
	composite := compositeKey(sender, nonce)
	nonceKey := []byte(nonceKeyPrefix + composite)

	s.mu.Lock()
	defer s.mu.Unlock()
	seen, err := s.db.Has(nonceKey)
	if err != nil {
		return fmt.Errorf("load nonce: %w", err)
	}
	if seen {
		return ErrNonceReplayed
	}
	nanos := observed.UTC().UnixNano()
	batch := storage.NewBatch()
	batch.Put(nonceKey, encodeUnixNano(nanos))
	batch.Put([]byte(observedKey(nanos, composite)), nil)
	if err := s.db.Write(batch); err != nil {
		return fmt.Errorf("record nonce: %w", err)
	}
	return nil
}

// Recent returns the nonces observed at or after cutoff, oldest first.
func (s *NonceStore) Recent(ctx context.Context, cutoff time.Time) ([]NonceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoffKey := observedKey(cutoff.UTC().UnixNano(), "")
	records := make([]NonceRecord, 0)
	err := s.db.Iterate([]byte(observedKeyPrefix), func(key, _ []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if string(key) < cutoffKey {
			return nil
		}
		composite, nanos, ok := parseObservedKey(key)
		if !ok {
			return nil
		}
		sender, nonce, ok := strings.Cut(composite, "|")
		if !ok {
			return nil
		}
		records = append(records, NonceRecord{
			Sender:     sender,
			Nonce:      nonce,
			ObservedAt: time.Unix(0, nanos).UTC(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate observed nonces: %w", err)
	}
	return records, nil
}

// Prune deletes entries observed before cutoff and reports how many were
// removed. A pruned nonce becomes acceptable again, so cutoff must trail the
// envelope timestamp window.
func (s *NonceStore) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoffKey := observedKey(cutoff.UTC().UnixNano(), "")
	var stale [][]byte
	err := s.db.Iterate([]byte(observedKeyPrefix), func(key, _ []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if string(key) >= cutoffKey {
			return errStopIteration
		}
		stale = append(stale, append([]byte(nil), key...))
		return nil
	})
	if err != nil && !errors.Is(err, errStopIteration) {
		return 0, fmt.Errorf("iterate observed nonces: %w", err)
	}
	batch := storage.NewBatch()
	pruned := 0
	for _, key := range stale {
		composite, _, ok := parseObservedKey(key)
		if !ok {
			continue
		}
		batch.Delete(key)
		batch.Delete([]byte(nonceKeyPrefix + composite))
		pruned++
	}
	if batch.Len() == 0 {
		return 0, nil
	}
	if err := s.db.Write(batch); err != nil {
		return 0, fmt.Errorf("prune nonces: %w", err)
	}
	return pruned, nil
}

func compositeKey(sender, nonce string) string {
	return sender + "|" + nonce
}

func observedKey(nanos int64, composite string) string {
	return fmt.Sprintf("%s%020d:%s", observedKeyPrefix, nanos, composite)
}

func parseObservedKey(key []byte) (string, int64, bool) {
	parts := strings.SplitN(string(key), ":", 3)
	if len(parts) != 3 {
		return "", 0, false
	}
	nanos, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return parts[2], nanos, true
}

func encodeUnixNano(nanos int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(nanos))
	return buf
}
