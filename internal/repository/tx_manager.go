package repository

import (
	"context"

	"gorm.io/gorm"
)

type ctxKey int

const txCtxKey ctxKey = iota

// TransactionManager runs a function inside a single database transaction.
// The transaction handle travels through the context, so repositories stay
// unaware of whether they run standalone or as part of a larger write.
type TransactionManager interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

func NewTransactionManager(db *gorm.DB) TransactionManager {
	return &txManager{db: db}
}

type txManager struct {
	db *gorm.DB
}

// RunInTx commits when fn returns nil and rolls back otherwise.
func (m *txManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txCtxKey, tx))
	})
}

// GetDB returns the transaction carried by ctx, or rootDB when there is none.
// Every repository method resolves its handle through here.
func GetDB(ctx context.Context, rootDB *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txCtxKey).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return rootDB.WithContext(ctx)
}
