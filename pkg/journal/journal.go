// Package journal persists executed transactions to a local pebble store as
// an append-only, write-only sink for offline reporting. It is never read
// back at startup: the exchange keeps no durable state across restarts.
package journal

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"synthex/pkg/exchange"
)

var keyPrefix = []byte("t:")

func key(seq uint64) []byte {
	k := make([]byte, len(keyPrefix)+8)
	copy(k, keyPrefix)
	binary.BigEndian.PutUint64(k[len(keyPrefix):], seq)
	return k
}

type Journal struct {
	db  *pebble.DB
	log *zap.SugaredLogger

	mu  sync.Mutex
	seq uint64
}

// Open opens (or creates) the journal at path. When the store already holds
// entries the sequence continues after the last key, so reopening appends
// instead of overwriting.
func Open(path string, log *zap.SugaredLogger) (*Journal, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	j := &Journal{db: db, log: log}

	iter, err := db.NewIter(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if iter.Last() && bytes.HasPrefix(iter.Key(), keyPrefix) {
		j.seq = binary.BigEndian.Uint64(iter.Key()[len(keyPrefix):])
	}
	if err := iter.Close(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) Close() error { return j.db.Close() }

// OnTransaction implements exchange.TradeSink. Failures are logged, never
// surfaced to the matching engine: the journal is best-effort.
func (j *Journal) OnTransaction(tx exchange.Transaction) {
	if err := j.append(tx); err != nil {
		j.log.Errorw("journal_append_failed", "txn", tx.ID, "err", err)
	}
}

func (j *Journal) append(tx exchange.Transaction) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(tx); err != nil {
		return err
	}
	j.mu.Lock()
	j.seq++
	k := key(j.seq)
	j.mu.Unlock()
	return j.db.Set(k, buf.Bytes(), pebble.NoSync)
}

// Each walks all journaled transactions in append order. For reporting
// tools; the exchange itself never calls this.
func (j *Journal) Each(fn func(exchange.Transaction) error) error {
	iter, err := j.db.NewIter(&pebble.IterOptions{LowerBound: keyPrefix})
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), keyPrefix) {
			break
		}
		var tx exchange.Transaction
		if err := gob.NewDecoder(bytes.NewReader(iter.Value())).Decode(&tx); err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Len counts journaled transactions.
func (j *Journal) Len() (int, error) {
	n := 0
	err := j.Each(func(exchange.Transaction) error {
		n++
		return nil
	})
	return n, err
}
