package store

import "time"

//go:generate reform

// Record is one persisted ledger record row. The primary key is the
// base58 form of the derived address; data holds the record's fixed
// binary layout including the type discriminator.
//
// Expected DDL:
//
//	CREATE TABLE records (
//	    address    text PRIMARY KEY,
//	    data       bytea NOT NULL,
//	    created_at timestamptz NOT NULL,
//	    updated_at timestamptz NOT NULL
//	);
//
//reform:records
type Record struct {
	Address   string    `reform:"address,pk"`
	Data      []byte    `reform:"data"`
	CreatedAt time.Time `reform:"created_at"`
	UpdatedAt time.Time `reform:"updated_at"`
}

func (r *Record) BeforeInsert() error {
	r.CreatedAt = time.Now()
	r.UpdatedAt = time.Now()
	return nil
}

func (r *Record) BeforeUpdate() error {
	r.UpdatedAt = time.Now()
	return nil
}
