package lending

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Pool adapts a pool-style client to the escrow facility capability.
type Pool struct {
	client       PoolClient
	address      common.Address
	asset        common.Address
	holding      common.Address
	referralCode uint16
}

// NewPool wires the adapter. holding is the escrow system's custody account,
// which is both the supplier and the on-behalf-of beneficiary.
func NewPool(client PoolClient, address, asset, holding common.Address) *Pool {
	return &Pool{
		client:  client,
		address: address,
		asset:   asset,
		holding: holding,
	}
}

func (p *Pool) Address() common.Address { return p.address }

func (p *Pool) Deposit(ctx context.Context, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	if err := p.client.Supply(ctx, p.asset, amount, p.holding, p.referralCode); err != nil {
		return fmt.Errorf("pool supply: %w", err)
	}
	return nil
}

func (p *Pool) Withdraw(ctx context.Context, amount *big.Int, recipient common.Address) error {
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	if err := p.client.Withdraw(ctx, p.asset, amount, recipient); err != nil {
		return fmt.Errorf("pool withdraw: %w", err)
	}
	return nil
}

// Withdrawable queries the aggregate supplied collateral directly.
func (p *Pool) Withdrawable(ctx context.Context) (*big.Int, error) {
	balance, err := p.client.SuppliedBalance(ctx, p.holding)
	if err != nil {
		return nil, fmt.Errorf("pool supplied balance: %w", err)
	}
	return balance, nil
}

// SweepFloat is a plain targeted withdrawal in the pool variant.
func (p *Pool) SweepFloat(ctx context.Context, amount *big.Int, recipient common.Address) error {
	return p.Withdraw(ctx, amount, recipient)
}

func (p *Pool) SupplyRate(ctx context.Context, utilization *big.Int) (*big.Int, error) {
	return p.client.SupplyRate(ctx, p.asset, utilization)
}
