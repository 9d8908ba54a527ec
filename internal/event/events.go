package event

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ProposalOpened is emitted after funds are locked and supplied to the
// lending facility.
type ProposalOpened struct {
	Identifier common.Hash    `json:"identifier"`
	Amount     *big.Int       `json:"amount"`
	Initiator  common.Address `json:"initiator"`
}

// ProposalClosed is emitted after principal has been withdrawn from the
// facility and released to the recipient.
type ProposalClosed struct {
	Identifier common.Hash    `json:"identifier"`
	Recipient  common.Address `json:"recipient"`
}

// WalletChanged is emitted when administrative control is reassigned.
type WalletChanged struct {
	OldAdmin common.Address `json:"old_admin"`
	NewAdmin common.Address `json:"new_admin"`
}

// WithdrawAsset is emitted after an administrative float sweep.
type WithdrawAsset struct {
	Receiver common.Address `json:"receiver"`
	Amount   *big.Int       `json:"amount"`
}

// WithdrawNative is emitted after the native-currency balance is swept.
type WithdrawNative struct {
	Receiver common.Address `json:"receiver"`
	Amount   *big.Int       `json:"amount"`
}

// NativeReceived records an unsolicited native-currency credit. Receipt is
// passive and never fails.
type NativeReceived struct {
	From   common.Address `json:"from"`
	Amount *big.Int       `json:"amount"`
}
