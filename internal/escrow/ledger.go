package escrow

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// ProposalLedger is the keyed store of open proposals. It exclusively owns
// its entries: the coordinator inserts on open and removes on close, nothing
// else mutates it. Absent entries read as zero.
type ProposalLedger struct {
	entries map[common.Hash]*Proposal
	locked  *big.Int // running sum of all open amounts
}

func NewProposalLedger() *ProposalLedger {
	return &ProposalLedger{
		entries: make(map[common.Hash]*Proposal),
		locked:  new(big.Int),
	}
}

// Insert records an open proposal. An existing open entry under the same
// identifier is never overwritten or merged: the insert fails with
// ErrDuplicateIdentifier.
func (l *ProposalLedger) Insert(p *Proposal) error {
	if p == nil {
		return fmt.Errorf("ledger insert: %w", ErrAmountIsZero)
	}
	if p.Amount == nil || p.Amount.Sign() <= 0 {
		return fmt.Errorf("ledger insert %s: %w", p.ID, ErrAmountIsZero)
	}
	if existing, ok := l.entries[p.ID]; ok && existing.Amount.Sign() > 0 {
		return fmt.Errorf("ledger insert %s: %w", p.ID, ErrDuplicateIdentifier)
	}
	l.entries[p.ID] = p.Clone()
	l.locked.Add(l.locked, p.Amount)
	return nil
}

// Remove clears the entry and returns its locked amount. A zero or absent
// entry fails with ErrUnknownProposal.
func (l *ProposalLedger) Remove(id common.Hash) (*Proposal, error) {
	p, ok := l.entries[id]
	if !ok || p.Amount.Sign() == 0 {
		return nil, fmt.Errorf("ledger remove %s: %w", id, ErrUnknownProposal)
	}
	delete(l.entries, id)
	l.locked.Sub(l.locked, p.Amount)
	return p, nil
}

// Amount returns the locked amount for an identifier, zero when absent.
func (l *ProposalLedger) Amount(id common.Hash) *big.Int {
	p, ok := l.entries[id]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(p.Amount)
}

// Get returns a copy of the open proposal, or false when absent.
func (l *ProposalLedger) Get(id common.Hash) (*Proposal, bool) {
	p, ok := l.entries[id]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// TotalLocked returns the sum of all open amounts. At any instant this must
// equal the principal the coordinator has outstanding in the facility.
func (l *ProposalLedger) TotalLocked() *big.Int {
	return new(big.Int).Set(l.locked)
}

// Len returns the number of open proposals.
func (l *ProposalLedger) Len() int {
	return len(l.entries)
}

// Open returns copies of all open proposals in identifier order.
func (l *ProposalLedger) Open() []*Proposal {
	out := make([]*Proposal, 0, len(l.entries))
	for _, p := range l.entries {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})
	return out
}

// Digest produces canonical bytes over all open entries, sorted by
// identifier, for the operation log's state-hash chain.
func (l *ProposalLedger) Digest() []byte {
	open := l.Open()
	digest := make([]byte, 0, len(open)*64)
	for _, p := range open {
		digest = append(digest, p.ID[:]...)
		digest = append(digest, common.BigToHash(p.Amount).Bytes()...)
	}
	return digest
}
