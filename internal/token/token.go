// Package token provides in-memory implementations of the asset-transfer
// and native-currency ports. They mirror ERC-20 transfer/approve semantics
// and back the dev mode and the test suites; a production deployment binds
// on-chain clients behind the same interfaces.
package token

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientBalance   = errors.New("token: insufficient balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
)

type allowanceKey struct {
	owner   common.Address
	spender common.Address
}

// Memory is a fixed-denomination fungible asset book. The holder account is
// the identity all Transfer/Approve calls act on behalf of; for the escrow
// system that is its holding account.
type Memory struct {
	mu         sync.Mutex
	address    common.Address
	holder     common.Address
	balances   map[common.Address]*big.Int
	allowances map[allowanceKey]*big.Int
}

// NewMemory creates an asset at the given contract address, operated on
// behalf of holder.
func NewMemory(address, holder common.Address) *Memory {
	return &Memory{
		address:    address,
		holder:     holder,
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[allowanceKey]*big.Int),
	}
}

func (m *Memory) Address() common.Address { return m.address }

// Mint credits an account. Test and dev fixture only.
func (m *Memory) Mint(account common.Address, amount *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credit(account, amount)
}

func (m *Memory) TransferFrom(ctx context.Context, from, to common.Address, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := allowanceKey{owner: from, spender: m.holder}
	allowance := m.allowances[key]
	if allowance == nil || allowance.Cmp(amount) < 0 {
		return fmt.Errorf("transfer_from %s: %w", from, ErrInsufficientAllowance)
	}

	if err := m.move(from, to, amount); err != nil {
		return err
	}
	allowance.Sub(allowance, amount)
	return nil
}

func (m *Memory) Transfer(ctx context.Context, to common.Address, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.move(m.holder, to, amount)
}

// TransferBetween moves funds between arbitrary accounts. Used by facility
// simulators and test fixtures, not by the coordinator.
func (m *Memory) TransferBetween(from, to common.Address, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.move(from, to, amount)
}

func (m *Memory) Approve(ctx context.Context, spender common.Address, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowances[allowanceKey{owner: m.holder, spender: spender}] = new(big.Int).Set(amount)
	return nil
}

// ApproveFrom grants an allowance on behalf of an arbitrary owner. Test and
// dev fixture for client accounts authorizing the escrow holding account.
func (m *Memory) ApproveFrom(owner, spender common.Address, amount *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowances[allowanceKey{owner: owner, spender: spender}] = new(big.Int).Set(amount)
}

func (m *Memory) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.balances[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (m *Memory) move(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("move: negative amount")
	}
	balance := m.balances[from]
	if balance == nil || balance.Cmp(amount) < 0 {
		return fmt.Errorf("move from %s: %w", from, ErrInsufficientBalance)
	}
	balance.Sub(balance, amount)
	m.credit(to, amount)
	return nil
}

func (m *Memory) credit(account common.Address, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	if b, ok := m.balances[account]; ok {
		b.Add(b, amount)
		return
	}
	m.balances[account] = new(big.Int).Set(amount)
}

// NativeMemory is an in-memory native-currency book for the sweep path.
// Transfers debit the escrow holder.
type NativeMemory struct {
	mu       sync.Mutex
	holder   common.Address
	balances map[common.Address]*big.Int
}

func NewNativeMemory(holder common.Address) *NativeMemory {
	return &NativeMemory{
		holder:   holder,
		balances: make(map[common.Address]*big.Int),
	}
}

// Credit funds the holder's native balance. Test and dev fixture.
func (n *NativeMemory) Credit(amount *big.Int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	if b, ok := n.balances[n.holder]; ok {
		b.Add(b, amount)
		return
	}
	n.balances[n.holder] = new(big.Int).Set(amount)
}

func (n *NativeMemory) Transfer(ctx context.Context, to common.Address, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("native transfer: negative amount")
	}
	if amount.Sign() == 0 {
		return nil
	}
	balance := n.balances[n.holder]
	if balance == nil || balance.Cmp(amount) < 0 {
		return fmt.Errorf("native transfer: %w", ErrInsufficientBalance)
	}
	balance.Sub(balance, amount)
	if b, ok := n.balances[to]; ok {
		b.Add(b, amount)
	} else {
		n.balances[to] = new(big.Int).Set(amount)
	}
	return nil
}

func (n *NativeMemory) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if b, ok := n.balances[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}
