package event

import "math/big"

// TransferKind classifies a transfer leg in the audit log.
type TransferKind int32

const (
	TransferKindLock TransferKind = iota
	TransferKindSupply
	TransferKindRelease
	TransferKindFloatSweep
	TransferKindNativeSweep
	TransferKindNativeReceipt
)

// Transfer is one double-entry leg recorded alongside an event: value moved
// from the credit account to the debit account. Account paths follow
// "client:<addr>", "holding", "facility", "recipient:<addr>", "native".
type Transfer struct {
	Debit  string
	Credit string
	Amount *big.Int
	Kind   TransferKind
}

func (tk TransferKind) String() string {
	switch tk {
	case TransferKindLock:
		return "lock"
	case TransferKindSupply:
		return "supply"
	case TransferKindRelease:
		return "release"
	case TransferKindFloatSweep:
		return "float_sweep"
	case TransferKindNativeSweep:
		return "native_sweep"
	case TransferKindNativeReceipt:
		return "native_receipt"
	default:
		return "unknown"
	}
}
