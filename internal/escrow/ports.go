package escrow

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Token is the fungible-asset transfer capability the coordinator depends on.
// Implementations wrap an ERC-20-style contract client or, in tests and dev
// mode, an in-memory book. A rejected transfer surfaces as an error; the
// coordinator maps it to ErrTransferFailed.
type Token interface {
	// Address returns the asset contract address. A zero address is not a
	// valid asset.
	Address() common.Address

	// TransferFrom moves amount from `from` to `to` against a prior
	// allowance granted to the holding account.
	TransferFrom(ctx context.Context, from, to common.Address, amount *big.Int) error

	// Transfer moves amount from the holding account to `to`.
	Transfer(ctx context.Context, to common.Address, amount *big.Int) error

	// Approve grants `spender` an allowance from the holding account.
	Approve(ctx context.Context, spender common.Address, amount *big.Int) error

	// BalanceOf reports the asset balance of an account.
	BalanceOf(ctx context.Context, account common.Address) (*big.Int, error)
}

// Facility is the lending-facility capability: deposit principal for yield,
// withdraw exact principal to a recipient, and answer float queries. The
// coordinator is polymorphic over this interface; the pool-style and
// comet-style adapters in internal/lending implement it.
type Facility interface {
	// Address returns the facility contract address, used once at
	// construction to grant the unlimited transfer allowance.
	Address() common.Address

	// Deposit supplies amount of the asset from the holding account.
	Deposit(ctx context.Context, amount *big.Int) error

	// Withdraw retrieves amount of principal and delivers it directly to
	// recipient in one call.
	Withdraw(ctx context.Context, amount *big.Int, recipient common.Address) error

	// Withdrawable reports the balance currently available to an
	// administrative sweep. Its definition differs per variant: the pool
	// adapter queries aggregate supplied collateral, the comet adapter
	// counts the facility position plus any asset sitting in the holding
	// account.
	Withdrawable(ctx context.Context) (*big.Int, error)

	// SweepFloat moves amount of accumulated value to recipient following
	// the variant's own accounting. Callers must have validated amount
	// against Withdrawable.
	SweepFloat(ctx context.Context, amount *big.Int, recipient common.Address) error

	// SupplyRate reports the facility's current deposit rate for a given
	// utilization, in ray units.
	SupplyRate(ctx context.Context, utilization *big.Int) (*big.Int, error)
}

// NativeBank moves the native currency held by the escrow system. Only the
// administrative sweep uses it.
type NativeBank interface {
	Transfer(ctx context.Context, to common.Address, amount *big.Int) error
	BalanceOf(ctx context.Context, account common.Address) (*big.Int, error)
}
