package save

import (
	"context"
	"database/sql"
)

// Context keys for save-scoped values
type contextKey string

const transactionKey contextKey = "breeze_save_transaction"

// withTransaction attaches the active transaction to the context so save
// hooks can participate in it.
func withTransaction(ctx context.Context, tx *sql.Tx) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, transactionKey, tx)
}

// TransactionFromContext retrieves the transaction a save request is running
// in. Hooks use it to issue additional statements that commit or roll back
// together with the save itself.
func TransactionFromContext(ctx context.Context) (*sql.Tx, bool) {
	if ctx == nil {
		return nil, false
	}
	tx, ok := ctx.Value(transactionKey).(*sql.Tx)
	if !ok || tx == nil {
		return nil, false
	}
	return tx, true
}
