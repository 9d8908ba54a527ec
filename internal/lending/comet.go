package lending

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/GiG2Hire/gig-contract/internal/escrow"
)

// Comet adapts a comet-style client to the escrow facility capability.
// Proposal closes use the client's withdraw-to call so principal reaches the
// recipient in one external call, same as the pool variant.
type Comet struct {
	client  CometClient
	address common.Address
	asset   common.Address
	holding common.Address
	token   escrow.Token
}

// NewComet wires the adapter. The token port is needed for the sweep path,
// which stages funds in the holding account before paying the recipient.
func NewComet(client CometClient, address, asset, holding common.Address, token escrow.Token) *Comet {
	return &Comet{
		client:  client,
		address: address,
		asset:   asset,
		holding: holding,
		token:   token,
	}
}

func (c *Comet) Address() common.Address { return c.address }

func (c *Comet) Deposit(ctx context.Context, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	if err := c.client.Supply(ctx, c.asset, amount); err != nil {
		return fmt.Errorf("comet supply: %w", err)
	}
	return nil
}

// Withdraw releases the exact ledger amount to the recipient in one
// withdraw-to call.
func (c *Comet) Withdraw(ctx context.Context, amount *big.Int, recipient common.Address) error {
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	if err := c.client.WithdrawTo(ctx, recipient, c.asset, amount); err != nil {
		return fmt.Errorf("comet withdraw to %s: %w", recipient, err)
	}
	return nil
}

// Withdrawable counts the supplied position plus any asset already staged in
// the holding account by a previous sweep.
func (c *Comet) Withdrawable(ctx context.Context) (*big.Int, error) {
	supplied, err := c.client.BalanceOf(ctx, c.holding)
	if err != nil {
		return nil, fmt.Errorf("comet balance: %w", err)
	}
	staged, err := c.token.BalanceOf(ctx, c.holding)
	if err != nil {
		return nil, fmt.Errorf("comet staged balance: %w", err)
	}
	return new(big.Int).Add(supplied, staged), nil
}

// SweepFloat withdraws the entire supplied balance to the holding account,
// then pays the requested amount to the recipient from there. The remainder
// stays staged in the holding account and is counted by Withdrawable.
func (c *Comet) SweepFloat(ctx context.Context, amount *big.Int, recipient common.Address) error {
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}

	supplied, err := c.client.BalanceOf(ctx, c.holding)
	if err != nil {
		return fmt.Errorf("comet balance: %w", err)
	}
	if supplied.Sign() > 0 {
		if err := c.client.Withdraw(ctx, c.asset, supplied); err != nil {
			return fmt.Errorf("comet withdraw supplied: %w", err)
		}
	}

	if err := c.token.Transfer(ctx, recipient, amount); err != nil {
		return fmt.Errorf("comet sweep transfer: %w", err)
	}
	return nil
}

func (c *Comet) SupplyRate(ctx context.Context, utilization *big.Int) (*big.Int, error) {
	return c.client.SupplyRate(ctx, utilization)
}
