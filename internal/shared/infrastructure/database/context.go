package database

import "context"

type txKey struct{}

// TxInfo is the transaction carried in a context and whether the holder
// opened it (and so must finish it).
type TxInfo struct {
	Tx    Transaction
	Owned bool
}

// WithTx stores a transaction in ctx.
func WithTx(ctx context.Context, tx Transaction, owned bool) context.Context {
	return context.WithValue(ctx, txKey{}, TxInfo{Tx: tx, Owned: owned})
}

// TxInfoFromContext returns the transaction stored in ctx, if any.
func TxInfoFromContext(ctx context.Context) (TxInfo, bool) {
	info, ok := ctx.Value(txKey{}).(TxInfo)
	if !ok || info.Tx == nil {
		return TxInfo{}, false
	}
	return info, true
}

// ExecutorFromContext returns the active transaction, falling back to conn.
// Repositories call it on every query so they join a surrounding unit of work.
func ExecutorFromContext(ctx context.Context, conn Connection) Executor {
	if info, ok := TxInfoFromContext(ctx); ok {
		return info.Tx
	}
	return conn
}

// InTransaction reports whether ctx carries a transaction.
func InTransaction(ctx context.Context) bool {
	_, ok := TxInfoFromContext(ctx)
	return ok
}
