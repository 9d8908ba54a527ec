package lending

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/GiG2Hire/gig-contract/internal/token"
)

// MemoryPool simulates a pool-style lending protocol over an in-memory
// asset book. Yield accrual is an explicit test hook rather than a clock:
// AccrueYield mints the interest and credits the supplier position, which is
// all the coordinator can observe of a real facility.
type MemoryPool struct {
	mu       sync.Mutex
	address  common.Address
	holding  common.Address
	book     *token.Memory
	supplied map[common.Address]*big.Int
	maxRate  *big.Int
}

func NewMemoryPool(address, holding common.Address, book *token.Memory) *MemoryPool {
	return &MemoryPool{
		address:  address,
		holding:  holding,
		book:     book,
		supplied: make(map[common.Address]*big.Int),
		// 4% at full utilization
		maxRate: new(big.Int).Div(new(big.Int).Mul(ray, big.NewInt(4)), big.NewInt(100)),
	}
}

func (p *MemoryPool) Supply(ctx context.Context, asset common.Address, amount *big.Int, onBehalfOf common.Address, referralCode uint16) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.book.TransferBetween(p.holding, p.address, amount); err != nil {
		return fmt.Errorf("memory pool supply: %w", err)
	}
	p.creditSupplied(onBehalfOf, amount)
	return nil
}

func (p *MemoryPool) Withdraw(ctx context.Context, asset common.Address, amount *big.Int, to common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	position := p.supplied[p.holding]
	if position == nil || position.Cmp(amount) < 0 {
		return fmt.Errorf("memory pool withdraw %s: %w", amount, errInsufficientLiquidity)
	}
	if err := p.book.TransferBetween(p.address, to, amount); err != nil {
		return fmt.Errorf("memory pool withdraw: %w", err)
	}
	position.Sub(position, amount)
	return nil
}

func (p *MemoryPool) SuppliedBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if b, ok := p.supplied[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

// SupplyRate is linear in utilization: maxRate at full utilization.
func (p *MemoryPool) SupplyRate(ctx context.Context, asset common.Address, utilization *big.Int) (*big.Int, error) {
	return linearRate(p.maxRate, utilization)
}

// AccrueYield credits interest to the holding account's position.
func (p *MemoryPool) AccrueYield(amount *big.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.book.Mint(p.address, amount)
	p.creditSupplied(p.holding, amount)
}

func (p *MemoryPool) creditSupplied(account common.Address, amount *big.Int) {
	if b, ok := p.supplied[account]; ok {
		b.Add(b, amount)
		return
	}
	p.supplied[account] = new(big.Int).Set(amount)
}

// MemoryComet simulates a comet-style protocol: supply credits the caller's
// own position and plain withdrawals return funds to the holding account.
type MemoryComet struct {
	mu        sync.Mutex
	address   common.Address
	holding   common.Address
	book      *token.Memory
	positions map[common.Address]*big.Int
	maxRate   *big.Int
}

func NewMemoryComet(address, holding common.Address, book *token.Memory) *MemoryComet {
	return &MemoryComet{
		address:   address,
		holding:   holding,
		book:      book,
		positions: make(map[common.Address]*big.Int),
		// 3% at full utilization
		maxRate: new(big.Int).Div(new(big.Int).Mul(ray, big.NewInt(3)), big.NewInt(100)),
	}
}

func (c *MemoryComet) Supply(ctx context.Context, asset common.Address, amount *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.book.TransferBetween(c.holding, c.address, amount); err != nil {
		return fmt.Errorf("memory comet supply: %w", err)
	}
	c.creditPosition(c.holding, amount)
	return nil
}

func (c *MemoryComet) Withdraw(ctx context.Context, asset common.Address, amount *big.Int) error {
	return c.withdrawTo(c.holding, amount)
}

func (c *MemoryComet) WithdrawTo(ctx context.Context, to, asset common.Address, amount *big.Int) error {
	return c.withdrawTo(to, amount)
}

func (c *MemoryComet) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.positions[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (c *MemoryComet) SupplyRate(ctx context.Context, utilization *big.Int) (*big.Int, error) {
	return linearRate(c.maxRate, utilization)
}

// AccrueYield credits interest to the holding account's position.
func (c *MemoryComet) AccrueYield(amount *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.book.Mint(c.address, amount)
	c.creditPosition(c.holding, amount)
}

func (c *MemoryComet) withdrawTo(to common.Address, amount *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	position := c.positions[c.holding]
	if position == nil || position.Cmp(amount) < 0 {
		return fmt.Errorf("memory comet withdraw %s: %w", amount, errInsufficientLiquidity)
	}
	if err := c.book.TransferBetween(c.address, to, amount); err != nil {
		return fmt.Errorf("memory comet withdraw: %w", err)
	}
	position.Sub(position, amount)
	return nil
}

func (c *MemoryComet) creditPosition(account common.Address, amount *big.Int) {
	if b, ok := c.positions[account]; ok {
		b.Add(b, amount)
		return
	}
	c.positions[account] = new(big.Int).Set(amount)
}

func linearRate(maxRate, utilization *big.Int) (*big.Int, error) {
	if utilization == nil || utilization.Sign() < 0 || utilization.Cmp(ray) > 0 {
		return nil, fmt.Errorf("lending: utilization out of range")
	}
	rate := new(big.Int).Mul(maxRate, utilization)
	return rate.Div(rate, ray), nil
}
