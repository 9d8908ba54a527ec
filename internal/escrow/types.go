package escrow

import (
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Operation-aborting failures. Every public operation that fails returns an
// error matching exactly one of these via errors.Is; no failure is silent.
var (
	// ErrAmountIsZero rejects a zero-value proposal.
	ErrAmountIsZero = errors.New("escrow: amount is zero")

	// ErrTransferFailed reports an asset or native transfer rejected by the
	// counterpart (insufficient balance or authorization).
	ErrTransferFailed = errors.New("escrow: transfer failed")

	// ErrUnknownProposal reports an identifier that was never opened or is
	// already closed.
	ErrUnknownProposal = errors.New("escrow: unknown proposal")

	// ErrDuplicateIdentifier reports an insert colliding with an open entry.
	ErrDuplicateIdentifier = errors.New("escrow: duplicate identifier")

	// ErrIncorrectAmount reports an administrative sweep exceeding the
	// withdrawable float.
	ErrIncorrectAmount = errors.New("escrow: incorrect amount")

	// ErrIncorrectWallet reports a caller that is not the administrator.
	ErrIncorrectWallet = errors.New("escrow: incorrect wallet address")

	// ErrInvalidAssetToken reports construction with a missing asset token.
	ErrInvalidAssetToken = errors.New("escrow: invalid asset token")
)

// Proposal is one open escrow entry: a locked amount keyed by a unique
// 256-bit identifier. A proposal is either present (open) or absent
// (never opened / already closed); there is no intermediate state.
type Proposal struct {
	ID        common.Hash
	Amount    *big.Int
	Initiator common.Address
	OpenedAt  time.Time
}

// Clone returns a deep copy so callers can hold the proposal without
// aliasing the ledger's amount.
func (p *Proposal) Clone() *Proposal {
	if p == nil {
		return nil
	}
	clone := *p
	if p.Amount != nil {
		clone.Amount = new(big.Int).Set(p.Amount)
	} else {
		clone.Amount = new(big.Int)
	}
	return &clone
}
