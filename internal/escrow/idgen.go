package escrow

import (
	"encoding/binary"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// IDGenerator derives proposal identifiers as
// keccak256(beneficiary || amount || timestamp || nonce). Hashing only
// (beneficiary, amount, timestamp) collides when the same beneficiary opens
// the same amount within one timestamp quantum; the monotonic nonce makes
// collisions structurally impossible instead of merely unlikely. Not safe
// for concurrent use: the coordinator serializes all calls.
type IDGenerator struct {
	now   func() time.Time
	nonce uint64
}

// NewIDGenerator creates a generator on the wall clock. Tests override the
// clock via NewIDGeneratorWithClock.
func NewIDGenerator() *IDGenerator {
	return NewIDGeneratorWithClock(time.Now)
}

func NewIDGeneratorWithClock(now func() time.Time) *IDGenerator {
	if now == nil {
		now = time.Now
	}
	return &IDGenerator{now: now}
}

// Generate produces the identifier for a new proposal.
func (g *IDGenerator) Generate(beneficiary common.Address, amount *big.Int) common.Hash {
	var ts, nonce [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(g.now().UnixNano()))
	binary.BigEndian.PutUint64(nonce[:], g.nonce)
	g.nonce++

	return crypto.Keccak256Hash(
		beneficiary.Bytes(),
		common.BigToHash(amount).Bytes(),
		ts[:],
		nonce[:],
	)
}
