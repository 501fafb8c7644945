// Package ledger moves money on the bank-backed wallet that sits behind every user.
package ledger

import (
	"context"
	"errors"
)

var (
	ErrDeclined             = errors.New("ledger: transaction declined")
	ErrWalletNotProvisioned = errors.New("ledger: user wallet not initialized")
)

// Entry is a single debit or credit. Amount is in kobo. Reference is the
// idempotency key: repeating a call with the same Reference never moves money twice.
type Entry struct {
	UserID    uint
	WalletID  *string // bank wallet id; nil when the user has none yet
	Amount    int64
	Memo      string
	Reference string
}

type Receipt struct {
	Reference   string
	ProviderRef string
	Duplicate   bool // the reference had already been applied
}

type Client interface {
	Debit(ctx context.Context, e Entry) (*Receipt, error)
	Credit(ctx context.Context, e Entry) (*Receipt, error)
}
