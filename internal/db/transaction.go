package db

import (
	"context"

	"gorm.io/gorm"
)

type contextKey struct{}

func withTransaction(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, contextKey{}, tx)
}

func transactionFromContext(ctx context.Context) *gorm.DB {
	tx, _ := ctx.Value(contextKey{}).(*gorm.DB)
	return tx
}

// NewTransaction runs f in a transaction.
// Typed clients called with the context passed to f join the transaction.
func NewTransaction(ctx context.Context, client *Client, f func(context.Context) error) error {
	if tx := transactionFromContext(ctx); tx != nil {
		// already in a transaction
		return f(ctx)
	}
	return client.connection.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return f(withTransaction(ctx, tx))
	})
}

// connectionWithContext returns the transaction in ctx if there is, or the connection otherwise
func connectionWithContext(ctx context.Context, connection *gorm.DB) *gorm.DB {
	if tx := transactionFromContext(ctx); tx != nil {
		return tx
	}
	return connection.WithContext(ctx)
}
