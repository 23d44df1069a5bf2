package store

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/airpayhq/airpay/engine"
)

// Memory is an in-process Store. A single writer lock serializes
// Update transactions, so two concurrent settlements against the same
// record set never interleave.
type Memory struct {
	mu      sync.RWMutex
	records map[engine.Address][]byte
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{records: make(map[engine.Address][]byte)}
}

func (m *Memory) Update(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{base: m.records, pending: make(map[engine.Address][]byte)}
	if err := fn(tx); err != nil {
		return err
	}
	for addr, data := range tx.pending {
		m.records[addr] = data
	}
	return nil
}

func (m *Memory) View(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	return fn(&memoryTx{base: m.records, readOnly: true})
}

type memoryTx struct {
	base     map[engine.Address][]byte
	pending  map[engine.Address][]byte
	readOnly bool
}

func (tx *memoryTx) Create(addr engine.Address, data []byte) error {
	if tx.readOnly {
		return errors.New("create in read-only transaction")
	}
	if _, ok := tx.lookup(addr); ok {
		return errors.Wrapf(engine.ErrRecordExists, "record %s", addr)
	}
	tx.pending[addr] = cloneBytes(data)
	return nil
}

func (tx *memoryTx) Get(addr engine.Address) ([]byte, error) {
	data, ok := tx.lookup(addr)
	if !ok {
		return nil, errors.Wrapf(engine.ErrRecordNotFound, "record %s", addr)
	}
	return cloneBytes(data), nil
}

func (tx *memoryTx) Put(addr engine.Address, data []byte) error {
	if tx.readOnly {
		return errors.New("put in read-only transaction")
	}
	if _, ok := tx.lookup(addr); !ok {
		return errors.Wrapf(engine.ErrRecordNotFound, "record %s", addr)
	}
	tx.pending[addr] = cloneBytes(data)
	return nil
}

func (tx *memoryTx) lookup(addr engine.Address) ([]byte, bool) {
	if tx.pending != nil {
		if data, ok := tx.pending[addr]; ok {
			return data, true
		}
	}
	data, ok := tx.base[addr]
	return data, ok
}

func cloneBytes(data []byte) []byte {
	out := make([]byte, len(data))
	copy(out, data)
	return out
}
