package store

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/reform.v1"

	"github.com/airpayhq/airpay/engine"
)

// Postgres stores records in the records table (see Record). Every
// Update runs in one SQL transaction; Get takes a row lock, so two
// settlements against the same item serialize on the database.
type Postgres struct {
	db     *reform.DB
	logger *zap.Logger
}

var _ Store = (*Postgres)(nil)

func NewPostgres(db *reform.DB) *Postgres {
	return &Postgres{
		db:     db,
		logger: zap.L().Named("record_store"),
	}
}

func (p *Postgres) Update(ctx context.Context, fn func(tx Tx) error) error {
	return p.db.InTransactionContext(ctx, nil, func(tx *reform.TX) error {
		return fn(&postgresTx{tx: tx, forUpdate: true})
	})
}

func (p *Postgres) View(ctx context.Context, fn func(tx Tx) error) error {
	opts := &sql.TxOptions{ReadOnly: true}
	return p.db.InTransactionContext(ctx, opts, func(tx *reform.TX) error {
		return fn(&postgresTx{tx: tx})
	})
}

type postgresTx struct {
	tx        *reform.TX
	forUpdate bool
}

func (t *postgresTx) Create(addr engine.Address, data []byte) error {
	rec := &Record{
		Address: addr.String(),
		Data:    data,
	}
	if err := t.tx.Insert(rec); err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return errors.Wrapf(engine.ErrRecordExists, "record %s", addr)
		}
		return errors.Wrapf(err, "failed insert record %s", addr)
	}
	return nil
}

func (t *postgresTx) Get(addr engine.Address) ([]byte, error) {
	query := "SELECT data FROM records WHERE address = $1"
	if t.forUpdate {
		query += " FOR UPDATE"
	}
	var data []byte
	if err := t.tx.QueryRow(query, addr.String()).Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Wrapf(engine.ErrRecordNotFound, "record %s", addr)
		}
		return nil, errors.Wrapf(err, "failed select record %s", addr)
	}
	return data, nil
}

func (t *postgresTx) Put(addr engine.Address, data []byte) error {
	res, err := t.tx.Exec("UPDATE records SET data = $1, updated_at = now() WHERE address = $2", data, addr.String())
	if err != nil {
		return errors.Wrapf(err, "failed update record %s", addr)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed get affected rows")
	}
	if n == 0 {
		return errors.Wrapf(engine.ErrRecordNotFound, "record %s", addr)
	}
	return nil
}
