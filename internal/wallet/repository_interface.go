package wallet

import "context"

type Repository interface {
	GetOrCreate(ctx context.Context, userID int) (*Wallet, error)
	AddTransaction(ctx context.Context, userID int, amountCents int64, txType string) error
	GetTransactions(ctx context.Context, userID, limit, offset int) ([]Transaction, error)
}
