package query

import (
	"encoding/json"
	"time"
)

// ProposalResponse represents an escrow proposal for API queries.
type ProposalResponse struct {
	Identifier   string     `json:"identifier"`
	Amount       string     `json:"amount"`
	Initiator    string     `json:"initiator"`
	Status       string     `json:"status"`
	OpenedSeq    int64      `json:"opened_seq"`
	ClosedSeq    *int64     `json:"closed_seq,omitempty"`
	Recipient    *string    `json:"recipient,omitempty"`
	OpenedAt     time.Time  `json:"opened_at"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
	AsOfSequence int64      `json:"as_of_sequence"`
}

// EventResponse represents an operation-log entry for API queries.
type EventResponse struct {
	Sequence     int64           `json:"sequence"`
	EventType    string          `json:"event_type"`
	OpRef        string          `json:"op_ref"`
	Identifier   *string         `json:"identifier,omitempty"`
	Payload      json.RawMessage `json:"payload"`
	StateHash    []byte          `json:"state_hash"`
	PrevHash     []byte          `json:"prev_hash"`
	Timestamp    time.Time       `json:"timestamp"`
	AsOfSequence int64           `json:"as_of_sequence"`
}

// TransferResponse represents a transfer leg for API queries.
type TransferResponse struct {
	TransferID    string    `json:"transfer_id"`
	OpRef         string    `json:"op_ref"`
	Sequence      int64     `json:"sequence"`
	DebitAccount  string    `json:"debit_account"`
	CreditAccount string    `json:"credit_account"`
	Amount        string    `json:"amount"`
	Kind          string    `json:"kind"`
	Timestamp     time.Time `json:"timestamp"`
}

// FloatSummaryResponse aggregates the float position of the service.
type FloatSummaryResponse struct {
	LockedTotal  string    `json:"locked_total"`
	OpenCount    int64     `json:"open_count"`
	FloatSwept   string    `json:"float_swept"`
	NativeSwept  string    `json:"native_swept"`
	UpdatedAt    time.Time `json:"updated_at"`
	AsOfSequence int64     `json:"as_of_sequence"`
}

// IntegrityReport is the result of a hash-chain verification pass.
type IntegrityReport struct {
	IsHealthy       bool    `json:"is_healthy"`
	EventsChecked   int64   `json:"events_checked"`
	HashChainBreaks []int64 `json:"hash_chain_breaks,omitempty"`
	SequenceGaps    []int64 `json:"sequence_gaps,omitempty"`
}
