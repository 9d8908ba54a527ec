// Package query provides read-only access to the operation log and
// the projection tables. All responses carry as_of_sequence, the
// projection watermark at query time, so callers can reason about
// staleness relative to the live coordinator sequence.
package query

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("query: not found")

type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// GetProposal returns a single proposal by identifier, open or closed.
func (s *Service) GetProposal(ctx context.Context, identifier string) (*ProposalResponse, error) {
	asOfSeq, err := s.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	var p ProposalResponse
	p.AsOfSequence = asOfSeq
	err = s.db.QueryRowContext(ctx, `
		SELECT identifier, amount::TEXT, initiator, status, opened_seq,
		       closed_seq, recipient, opened_at, closed_at
		FROM escrow_log.proposals
		WHERE identifier = $1
	`, identifier).Scan(
		&p.Identifier, &p.Amount, &p.Initiator, &p.Status, &p.OpenedSeq,
		&p.ClosedSeq, &p.Recipient, &p.OpenedAt, &p.ClosedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProposals returns proposals filtered by status and optionally by
// initiator, newest first, with cursor-based pagination on opened_seq.
func (s *Service) ListProposals(
	ctx context.Context,
	status string,
	initiator *string,
	limit int,
	beforeSeq *int64,
) ([]ProposalResponse, error) {
	asOfSeq, err := s.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT identifier, amount::TEXT, initiator, status, opened_seq,
		       closed_seq, recipient, opened_at, closed_at
		FROM escrow_log.proposals
		WHERE status = $1
	`
	args := []interface{}{status}
	argIdx := 2

	if initiator != nil {
		query += fmt.Sprintf(" AND initiator = $%d", argIdx)
		args = append(args, *initiator)
		argIdx++
	}
	if beforeSeq != nil {
		query += fmt.Sprintf(" AND opened_seq < $%d", argIdx)
		args = append(args, *beforeSeq)
		argIdx++
	}

	query += " ORDER BY opened_seq DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var proposals []ProposalResponse
	for rows.Next() {
		var p ProposalResponse
		p.AsOfSequence = asOfSeq
		if err := rows.Scan(
			&p.Identifier, &p.Amount, &p.Initiator, &p.Status, &p.OpenedSeq,
			&p.ClosedSeq, &p.Recipient, &p.OpenedAt, &p.ClosedAt,
		); err != nil {
			return nil, err
		}
		proposals = append(proposals, p)
	}
	return proposals, rows.Err()
}

// GetEvents returns operation-log entries, oldest first, with
// cursor-based pagination on sequence.
func (s *Service) GetEvents(
	ctx context.Context,
	eventType *string,
	limit int,
	afterSeq *int64,
) ([]EventResponse, error) {
	asOfSeq, err := s.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT sequence, event_type, op_ref, identifier, payload,
		       state_hash, prev_hash, ts
		FROM escrow_log.events
		WHERE TRUE
	`
	args := []interface{}{}
	argIdx := 1

	if eventType != nil {
		query += fmt.Sprintf(" AND event_type = $%d", argIdx)
		args = append(args, *eventType)
		argIdx++
	}
	if afterSeq != nil {
		query += fmt.Sprintf(" AND sequence > $%d", argIdx)
		args = append(args, *afterSeq)
		argIdx++
	}

	query += " ORDER BY sequence ASC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventResponse
	for rows.Next() {
		var e EventResponse
		e.AsOfSequence = asOfSeq
		if err := rows.Scan(
			&e.Sequence, &e.EventType, &e.OpRef, &e.Identifier, &e.Payload,
			&e.StateHash, &e.PrevHash, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// GetTransfers returns the transfer legs recorded for one operation.
func (s *Service) GetTransfers(ctx context.Context, opRef string) ([]TransferResponse, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT transfer_id, op_ref, sequence, debit_account, credit_account,
		       amount::TEXT, kind, ts
		FROM escrow_log.transfers
		WHERE op_ref = $1
		ORDER BY transfer_id
	`, opRef)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transfers []TransferResponse
	for rows.Next() {
		var t TransferResponse
		if err := rows.Scan(
			&t.TransferID, &t.OpRef, &t.Sequence, &t.DebitAccount,
			&t.CreditAccount, &t.Amount, &t.Kind, &t.Timestamp,
		); err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}

// GetFloatSummary returns the aggregate float position.
func (s *Service) GetFloatSummary(ctx context.Context) (*FloatSummaryResponse, error) {
	asOfSeq, err := s.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	var f FloatSummaryResponse
	f.AsOfSequence = asOfSeq
	err = s.db.QueryRowContext(ctx, `
		SELECT locked_total::TEXT, open_count, float_swept::TEXT,
		       native_swept::TEXT, updated_at
		FROM escrow_log.float_summary
		WHERE id = 1
	`).Scan(&f.LockedTotal, &f.OpenCount, &f.FloatSwept, &f.NativeSwept, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// VerifyIntegrity walks the persisted operation log and checks that
// each entry's prev_hash matches its predecessor's state_hash and
// that sequences are gap-free.
func (s *Service) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sequence, state_hash, prev_hash
		FROM escrow_log.events
		ORDER BY sequence ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	report := &IntegrityReport{IsHealthy: true}
	var prevSeq int64
	var prevHash []byte
	first := true

	for rows.Next() {
		var seq int64
		var stateHash, chainPrev []byte
		if err := rows.Scan(&seq, &stateHash, &chainPrev); err != nil {
			return nil, err
		}
		report.EventsChecked++

		if !first {
			if seq != prevSeq+1 {
				report.IsHealthy = false
				report.SequenceGaps = append(report.SequenceGaps, seq)
			}
			if !bytes.Equal(chainPrev, prevHash) {
				report.IsHealthy = false
				report.HashChainBreaks = append(report.HashChainBreaks, seq)
			}
		}

		prevSeq = seq
		prevHash = stateHash
		first = false
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return report, nil
}

func (s *Service) getWatermark(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx,
		`SELECT sequence FROM escrow_log.watermark WHERE id = 1`,
	).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return seq, err
}
