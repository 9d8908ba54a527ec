// Package projection maintains queryable read models derived from the
// operation log. Projections are eventually consistent: the feeding
// channel is non-blocking with drop, and any gap can be repaired by
// rebuilding from escrow_log.events.
package projection

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/GiG2Hire/gig-contract/internal/escrow"
	"github.com/GiG2Hire/gig-contract/internal/event"
	"github.com/GiG2Hire/gig-contract/internal/observability"
)

// Worker folds coordinator outputs into the proposal and float read
// models. One transaction per output keeps each fold atomic with its
// watermark advance.
type Worker struct {
	db      *sql.DB
	input   <-chan escrow.Output
	metrics *observability.Metrics
	log     zerolog.Logger
	lastSeq int64
}

func NewWorker(db *sql.DB, input <-chan escrow.Output, metrics *observability.Metrics) *Worker {
	return &Worker{
		db:      db,
		input:   input,
		metrics: metrics,
		log:     observability.NewLogger("projection"),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	w.log.Info().Msg("projection worker started")
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Int64("last_sequence", w.lastSeq).Msg("projection worker stopped")
			return ctx.Err()

		case out, ok := <-w.input:
			if !ok {
				return nil
			}
			if err := w.fold(ctx, out); err != nil {
				// Skip and continue: the read models can be rebuilt
				// from the log, losing one fold is recoverable.
				w.log.Warn().Err(err).
					Int64("sequence", out.Envelope.Sequence).
					Str("event_type", out.Envelope.EventType.String()).
					Msg("projection fold failed")
				continue
			}
			w.lastSeq = out.Envelope.Sequence
			w.metrics.ProjectionUpdates.WithLabelValues(out.Envelope.EventType.String()).Inc()
		}
	}
}

func (w *Worker) fold(ctx context.Context, out escrow.Output) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	env := out.Envelope
	switch payload := env.Payload.(type) {
	case event.ProposalOpened:
		if err := w.foldOpened(ctx, tx, env.Sequence, env, payload); err != nil {
			return fmt.Errorf("fold opened: %w", err)
		}
	case event.ProposalClosed:
		if err := w.foldClosed(ctx, tx, env.Sequence, env, payload); err != nil {
			return fmt.Errorf("fold closed: %w", err)
		}
	case event.WithdrawAsset:
		if err := w.foldFloatSweep(ctx, tx, payload.Amount.String()); err != nil {
			return fmt.Errorf("fold float sweep: %w", err)
		}
	case event.WithdrawNative:
		if err := w.foldNativeSweep(ctx, tx, payload.Amount.String()); err != nil {
			return fmt.Errorf("fold native sweep: %w", err)
		}
	case event.WalletChanged, event.NativeReceived:
		// No read-model impact beyond the watermark.
	default:
		w.log.Warn().Str("event_type", env.EventType.String()).Msg("unhandled payload type")
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE escrow_log.watermark SET sequence = $1, updated_at = NOW() WHERE id = 1
	`, env.Sequence); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	return tx.Commit()
}

func (w *Worker) foldOpened(ctx context.Context, tx *sql.Tx, seq int64, env *event.Envelope, p event.ProposalOpened) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO escrow_log.proposals
			(identifier, amount, initiator, status, opened_seq, opened_at, updated_at)
		VALUES ($1, $2, $3, 'open', $4, $5, NOW())
		ON CONFLICT (identifier) DO NOTHING
	`, p.Identifier.Hex(), p.Amount.String(), p.Initiator.Hex(), seq, env.Timestamp); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE escrow_log.float_summary
		SET locked_total = locked_total + $1::NUMERIC,
		    open_count   = open_count + 1,
		    updated_at   = NOW()
		WHERE id = 1
	`, p.Amount.String())
	return err
}

func (w *Worker) foldClosed(ctx context.Context, tx *sql.Tx, seq int64, env *event.Envelope, p event.ProposalClosed) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE escrow_log.proposals
		SET status = 'closed', closed_seq = $2, recipient = $3, closed_at = $4, updated_at = NOW()
		WHERE identifier = $1 AND status = 'open'
	`, p.Identifier.Hex(), seq, p.Recipient.Hex(), env.Timestamp)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// The open event was dropped before reaching this worker.
		w.log.Warn().Str("identifier", p.Identifier.Hex()).Msg("close without projected open")
		return nil
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE escrow_log.float_summary
		SET locked_total = locked_total - (SELECT amount FROM escrow_log.proposals WHERE identifier = $1),
		    open_count   = open_count - 1,
		    updated_at   = NOW()
		WHERE id = 1
	`, p.Identifier.Hex())
	return err
}

func (w *Worker) foldFloatSweep(ctx context.Context, tx *sql.Tx, amount string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE escrow_log.float_summary
		SET float_swept = float_swept + $1::NUMERIC, updated_at = NOW()
		WHERE id = 1
	`, amount)
	return err
}

func (w *Worker) foldNativeSweep(ctx context.Context, tx *sql.Tx, amount string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE escrow_log.float_summary
		SET native_swept = native_swept + $1::NUMERIC, updated_at = NOW()
		WHERE id = 1
	`, amount)
	return err
}

// Rebuild truncates the read models and replays them from the
// operation log. Used after drops or a fresh deployment over an
// existing log.
func Rebuild(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`TRUNCATE escrow_log.proposals`,
		`UPDATE escrow_log.float_summary SET locked_total = 0, open_count = 0, float_swept = 0, native_swept = 0, updated_at = NOW() WHERE id = 1`,
		`UPDATE escrow_log.watermark SET sequence = 0, updated_at = NOW() WHERE id = 1`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("reset read models: %w", err)
		}
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO escrow_log.proposals
			(identifier, amount, initiator, status, opened_seq, opened_at, updated_at)
		SELECT
			e.identifier,
			(e.payload->>'amount')::NUMERIC,
			e.payload->>'initiator',
			'open',
			e.sequence,
			e.ts,
			NOW()
		FROM escrow_log.events e
		WHERE e.event_type = 'ProposalOpened'
		ON CONFLICT (identifier) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("rebuild opened proposals: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		UPDATE escrow_log.proposals p
		SET status = 'closed',
		    closed_seq = c.sequence,
		    recipient = c.payload->>'recipient',
		    closed_at = c.ts,
		    updated_at = NOW()
		FROM escrow_log.events c
		WHERE c.event_type = 'ProposalClosed' AND c.identifier = p.identifier
	`)
	if err != nil {
		return fmt.Errorf("rebuild closed proposals: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		UPDATE escrow_log.float_summary f
		SET locked_total = COALESCE((SELECT SUM(amount) FROM escrow_log.proposals WHERE status = 'open'), 0),
		    open_count   = (SELECT COUNT(*) FROM escrow_log.proposals WHERE status = 'open'),
		    float_swept  = COALESCE((SELECT SUM((payload->>'amount')::NUMERIC) FROM escrow_log.events WHERE event_type = 'WithdrawAsset'), 0),
		    native_swept = COALESCE((SELECT SUM((payload->>'amount')::NUMERIC) FROM escrow_log.events WHERE event_type = 'WithdrawNative'), 0),
		    updated_at   = NOW()
		WHERE f.id = 1
	`)
	if err != nil {
		return fmt.Errorf("rebuild float summary: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		UPDATE escrow_log.watermark
		SET sequence = COALESCE((SELECT MAX(sequence) FROM escrow_log.events), 0), updated_at = NOW()
		WHERE id = 1
	`)
	if err != nil {
		return fmt.Errorf("rebuild watermark: %w", err)
	}
	return nil
}
