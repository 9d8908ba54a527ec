package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// OperationLogWriter appends events and transfer legs to Postgres using
// multi-row INSERTs inside one transaction per flush. Writes are idempotent
// on sequence / transfer_id so a retried flush never duplicates rows.
type OperationLogWriter struct {
	db *sql.DB
}

// EventRow is one row in escrow_log.events.
type EventRow struct {
	Sequence   int64
	EventType  string
	OpRef      string
	Identifier *string // hex proposal identifier, nil for admin events
	Payload    []byte  // JSON-encoded event payload
	StateHash  []byte
	PrevHash   []byte
	Timestamp  time.Time
}

// TransferRow is one double-entry leg in escrow_log.transfers.
type TransferRow struct {
	TransferID    string
	OpRef         string
	Sequence      int64
	DebitAccount  string
	CreditAccount string
	Amount        string // decimal string, column is NUMERIC(78,0)
	Kind          string
	Timestamp     time.Time
}

func NewOperationLogWriter(db *sql.DB) *OperationLogWriter {
	return &OperationLogWriter{db: db}
}

// WriteEventBatch appends a batch of event rows within tx.
func (w *OperationLogWriter) WriteEventBatch(ctx context.Context, tx *sql.Tx, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}

	query := `INSERT INTO escrow_log.events
		(sequence, event_type, op_ref, identifier, payload, state_hash, prev_hash, ts)
		VALUES `

	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*8)

	for i, e := range events {
		base := i * 8
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8,
		))
		args = append(args,
			e.Sequence, e.EventType, e.OpRef, e.Identifier,
			e.Payload, e.StateHash, e.PrevHash, e.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// WriteTransferBatch appends a batch of transfer legs within tx.
func (w *OperationLogWriter) WriteTransferBatch(ctx context.Context, tx *sql.Tx, transfers []TransferRow) error {
	if len(transfers) == 0 {
		return nil
	}

	query := `INSERT INTO escrow_log.transfers
		(transfer_id, op_ref, sequence, debit_account, credit_account, amount, kind, ts)
		VALUES `

	values := make([]string, 0, len(transfers))
	args := make([]interface{}, 0, len(transfers)*8)

	for i, t := range transfers {
		base := i * 8
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8,
		))
		args = append(args,
			t.TransferID, t.OpRef, t.Sequence, t.DebitAccount,
			t.CreditAccount, t.Amount, t.Kind, t.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (transfer_id) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// MarshalPayload JSON-encodes an event payload for the payload column.
func MarshalPayload(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
