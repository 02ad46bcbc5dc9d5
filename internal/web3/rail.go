// Package web3 is the payment rail adapter for the FRENZY ERC-20 token:
// balance reads, payout transfers and purchase-transaction verification.
package web3

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrNotConfigured = errors.New("payout wallet key not configured")
	ErrNotVerified   = errors.New("transaction verification failed")
)

// Confirmation describes a verified on-chain transaction.
type Confirmation struct {
	TxHash      string
	BlockNumber uint64
	From        string
	To          string
}

// Rail is the external payment surface the economy pipeline calls. Every
// method carries a bounded deadline through ctx and fails closed; balances
// are best effort and read as zero on error.
type Rail interface {
	// GetBalance returns the FRENZY balance of address in whole-token
	// units, or zero when the chain read fails.
	GetBalance(ctx context.Context, address string) decimal.Decimal

	// SendPayout transfers amount whole tokens from the game wallet to
	// address and returns the transaction hash once mined. A payout is
	// never retried internally.
	SendPayout(ctx context.Context, address string, amount int64) (string, error)

	// VerifyTransaction confirms txHash is mined and succeeded.
	VerifyTransaction(ctx context.Context, txHash string) (Confirmation, error)
}

// Disabled stands in when no RPC endpoint is configured. Balance reads
// report zero; payouts and verification fail closed.
type Disabled struct{}

func (Disabled) GetBalance(ctx context.Context, address string) decimal.Decimal {
	return decimal.Zero
}

func (Disabled) SendPayout(ctx context.Context, address string, amount int64) (string, error) {
	return "", ErrNotConfigured
}

func (Disabled) VerifyTransaction(ctx context.Context, txHash string) (Confirmation, error) {
	return Confirmation{}, ErrNotConfigured
}
