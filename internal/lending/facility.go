// Package lending adapts two structurally different lending protocols to the
// single facility capability the escrow coordinator depends on. The pool
// variant supplies on behalf of a beneficiary and withdraws straight to a
// recipient; the comet variant supplies to its own account and uses a
// distinct withdraw-to call for third parties. The coordinator never
// branches on the variant.
package lending

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	errInvalidAmount         = errors.New("lending: amount must be positive")
	errInsufficientLiquidity = errors.New("lending: insufficient supplied balance")
)

// ray is the fixed-point scale for supply rates.
var ray = big.NewInt(1_000_000_000_000_000_000)

// PoolClient is the pool-style protocol surface: supply credits a named
// beneficiary, withdraw delivers directly to a recipient in one call.
type PoolClient interface {
	Supply(ctx context.Context, asset common.Address, amount *big.Int, onBehalfOf common.Address, referralCode uint16) error
	Withdraw(ctx context.Context, asset common.Address, amount *big.Int, to common.Address) error

	// SuppliedBalance reports the aggregate collateral value an account has
	// supplied, yield included.
	SuppliedBalance(ctx context.Context, account common.Address) (*big.Int, error)

	SupplyRate(ctx context.Context, asset common.Address, utilization *big.Int) (*big.Int, error)
}

// CometClient is the comet-style protocol surface: supply credits the
// caller's own position, Withdraw returns funds to the caller, and
// WithdrawTo sends directly to a third party.
type CometClient interface {
	Supply(ctx context.Context, asset common.Address, amount *big.Int) error
	Withdraw(ctx context.Context, asset common.Address, amount *big.Int) error
	WithdrawTo(ctx context.Context, to, asset common.Address, amount *big.Int) error

	// BalanceOf reports the caller's supplied position, yield included.
	BalanceOf(ctx context.Context, account common.Address) (*big.Int, error)

	SupplyRate(ctx context.Context, utilization *big.Int) (*big.Int, error)
}
