package services

import (
	"context"
	"database/sql"

	"github.com/faceoff-league/faceoff/repositories"
)

// Tx is the slice of *sql.Tx the services drive directly: repository calls
// plus commit and rollback.
type Tx interface {
	repositories.SQLExecutor
	Commit() error
	Rollback() error
}

// TxBeginner starts the transactions that own an exclusive write section.
// *sql.DB is adapted through NewTxBeginner.
type TxBeginner interface {
	BeginTx(ctx context.Context) (Tx, error)
}

type sqlTxBeginner struct {
	db *sql.DB
}

func NewTxBeginner(db *sql.DB) TxBeginner {
	return &sqlTxBeginner{db: db}
}

func (b *sqlTxBeginner) BeginTx(ctx context.Context) (Tx, error) {
	return b.db.BeginTx(ctx, nil)
}
