package escrow

import (
	"crypto/sha256"
	"encoding/binary"
)

const genesisHashSeed = "gig-contract:genesis:v1"

// StateHasher chains operation-log hashes:
// state_hash[N] = SHA-256(prev_hash || sequence || ledger_digest).
// External auditors can replay the event log and verify every link.
type StateHasher struct {
	prevHash [32]byte
}

func NewStateHasher() *StateHasher {
	return &StateHasher{prevHash: sha256.Sum256([]byte(genesisHashSeed))}
}

func (h *StateHasher) ComputeHash(sequence int64, ledgerDigest []byte) [32]byte {
	hasher := sha256.New()
	hasher.Write(h.prevHash[:])

	var seqBuf [8]byte
	binary.LittleEndian.PutUint64(seqBuf[:], uint64(sequence))
	hasher.Write(seqBuf[:])
	hasher.Write(ledgerDigest)

	var hash [32]byte
	copy(hash[:], hasher.Sum(nil))
	h.prevHash = hash
	return hash
}

// PrevHash returns the current chain tip.
func (h *StateHasher) PrevHash() [32]byte {
	return h.prevHash
}
