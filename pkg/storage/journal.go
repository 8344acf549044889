package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/daehwan-kim/tradeflow/pkg/orders"
)

// OrderJournal persists orders to Pebble so a restarted engine resumes its
// order-id sequence and keeps a record of everything it traded.
type OrderJournal struct {
	db *pebble.DB
}

func NewOrderJournal(path string) (*OrderJournal, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &OrderJournal{db: db}, nil
}

func (j *OrderJournal) Close() error { return j.db.Close() }

// keys: o:<8-byte big-endian order id>, m:lastid
func kOrder(id int64) []byte {
	key := make([]byte, 2+8)
	copy(key, "o:")
	binary.BigEndian.PutUint64(key[2:], uint64(id))
	return key
}
func kLastID() []byte { return []byte("m:lastid") }

// SaveOrder writes the order and bumps the persisted high-water id. Writes
// are synced; losing the tail of the journal would replay order ids.
func (j *OrderJournal) SaveOrder(order *orders.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal order %d: %w", order.ID, err)
	}

	batch := j.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(kOrder(order.ID), data, nil); err != nil {
		return err
	}

	last, err := j.LastOrderID()
	if err != nil {
		return err
	}
	if order.ID > last {
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(order.ID))
		if err := batch.Set(kLastID(), buf[:], nil); err != nil {
			return err
		}
	}
	return batch.Commit(pebble.Sync)
}

// LastOrderID returns the highest persisted order id, 0 when the journal is
// empty.
func (j *OrderJournal) LastOrderID() (int64, error) {
	val, closer, err := j.db.Get(kLastID())
	if err == pebble.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer closer.Close()
	return int64(binary.BigEndian.Uint64(val)), nil
}

// Orders scans up to limit persisted orders in id order. limit <= 0 scans
// everything.
func (j *OrderJournal) Orders(limit int) ([]*orders.Order, error) {
	prefix := []byte("o:")
	upper := []byte("o;") // next byte after ':'
	iter, err := j.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []*orders.Order
	for iter.First(); iter.Valid(); iter.Next() {
		var o orders.Order
		if err := json.Unmarshal(iter.Value(), &o); err != nil {
			continue // skip unreadable entries
		}
		out = append(out, &o)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, iter.Error()
}
