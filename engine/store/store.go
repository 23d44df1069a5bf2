// Package store persists ledger records as binary blobs keyed by their
// derived address. It is the host-environment capability the ledger
// core relies on: every state transition runs inside one transaction
// with all-or-nothing commit, and concurrent attempts to mutate the
// same record are serialized by the store.
package store

import (
	"context"

	"github.com/airpayhq/airpay/engine"
)

// Tx is a single atomic transaction scope over the record set.
type Tx interface {
	// Create persists a new record. Fails with engine.ErrRecordExists
	// if the address is already taken.
	Create(addr engine.Address, data []byte) error

	// Get returns the record data at addr, locking the record for the
	// rest of the transaction. Fails with engine.ErrRecordNotFound.
	Get(addr engine.Address) ([]byte, error)

	// Put overwrites an existing record. Fails with
	// engine.ErrRecordNotFound if the record was never created.
	Put(addr engine.Address, data []byte) error
}

type Store interface {
	// Update runs fn in a read-write transaction. If fn returns an
	// error nothing is persisted.
	Update(ctx context.Context, fn func(tx Tx) error) error

	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn func(tx Tx) error) error
}

// GetRecord loads and decodes one typed record.
func GetRecord(tx Tx, addr engine.Address, rec interface {
	UnmarshalBinary(data []byte) error
}) error {
	data, err := tx.Get(addr)
	if err != nil {
		return err
	}
	return rec.UnmarshalBinary(data)
}

// CreateRecord encodes and persists a new typed record.
func CreateRecord(tx Tx, addr engine.Address, rec interface {
	MarshalBinary() ([]byte, error)
}) error {
	data, err := rec.MarshalBinary()
	if err != nil {
		return err
	}
	return tx.Create(addr, data)
}

// PutRecord encodes and overwrites an existing typed record.
func PutRecord(tx Tx, addr engine.Address, rec interface {
	MarshalBinary() ([]byte, error)
}) error {
	data, err := rec.MarshalBinary()
	if err != nil {
		return err
	}
	return tx.Put(addr, data)
}
