package event

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeProposalOpened
	EventTypeProposalClosed
	EventTypeWalletChanged
	EventTypeWithdrawAsset
	EventTypeWithdrawNative
	EventTypeNativeReceived
)

// Envelope wraps every event in the operation log.
type Envelope struct {
	// Global monotonic sequence assigned by the coordinator
	Sequence int64

	// Stable per-operation reference (UUID) used for idempotent log writes
	OpRef string

	// Event type discriminator
	EventType EventType

	// Proposal context (nil for administrative events)
	Identifier *common.Hash

	// Time the operation completed
	Timestamp time.Time

	// Typed event payload (one of the structs in events.go)
	Payload any

	// SHA-256 of ledger state AFTER this operation
	StateHash [32]byte

	// Previous operation's state hash (chain integrity)
	PrevHash [32]byte
}

func (et EventType) String() string {
	switch et {
	case EventTypeProposalOpened:
		return "ProposalOpened"
	case EventTypeProposalClosed:
		return "ProposalClosed"
	case EventTypeWalletChanged:
		return "WalletChanged"
	case EventTypeWithdrawAsset:
		return "WithdrawAsset"
	case EventTypeWithdrawNative:
		return "WithdrawNative"
	case EventTypeNativeReceived:
		return "NativeReceived"
	default:
		return "Unknown"
	}
}
