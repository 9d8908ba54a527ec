package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/GiG2Hire/gig-contract/internal/escrow"
	"github.com/GiG2Hire/gig-contract/internal/observability"
)

// Worker drains the coordinator's output channel and batch-writes the
// operation log to Postgres. The coordinator sends blocking, so if this
// worker falls behind, escrow operations stall rather than losing log rows.
type Worker struct {
	writer       *OperationLogWriter
	db           *sql.DB
	inputChan    <-chan escrow.Output
	batchSize    int
	flushTimeout time.Duration
	metrics      *observability.Metrics
	log          zerolog.Logger
}

func NewWorker(
	db *sql.DB,
	inputChan <-chan escrow.Output,
	batchSize int,
	flushTimeout time.Duration,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Worker {
	return &Worker{
		writer:       NewOperationLogWriter(db),
		db:           db,
		inputChan:    inputChan,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		metrics:      metrics,
		log:          log,
	}
}

// Run batches incoming outputs and flushes when the batch fills or the
// flush timeout expires. Blocks until ctx is cancelled or the input channel
// closes; remaining rows are flushed on the way out.
func (w *Worker) Run(ctx context.Context) error {
	eventBatch := make([]EventRow, 0, w.batchSize)
	transferBatch := make([]TransferRow, 0, w.batchSize*2)

	timer := time.NewTimer(w.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if len(eventBatch) > 0 {
				if err := w.flush(context.Background(), eventBatch, transferBatch); err != nil {
					w.log.Error().Err(err).Msg("final flush failed")
				}
			}
			return ctx.Err()

		case output, ok := <-w.inputChan:
			if !ok {
				if len(eventBatch) > 0 {
					if err := w.flush(context.Background(), eventBatch, transferBatch); err != nil {
						w.log.Error().Err(err).Msg("final flush failed")
					}
				}
				return nil
			}

			eventBatch = append(eventBatch, buildEventRow(output))
			transferBatch = append(transferBatch, buildTransferRows(output)...)

			if len(eventBatch) >= w.batchSize {
				w.flushWithRetry(ctx, eventBatch, transferBatch)
				eventBatch = eventBatch[:0]
				transferBatch = transferBatch[:0]
				timer.Reset(w.flushTimeout)
			}

		case <-timer.C:
			if len(eventBatch) > 0 {
				w.flushWithRetry(ctx, eventBatch, transferBatch)
				eventBatch = eventBatch[:0]
				transferBatch = transferBatch[:0]
			}
			timer.Reset(w.flushTimeout)
		}
	}
}

// flushWithRetry retries with exponential backoff. The worker never drops a
// log row: it keeps retrying until the write lands or the context ends, in
// which case one last flush runs on a background context.
func (w *Worker) flushWithRetry(ctx context.Context, events []EventRow, transfers []TransferRow) {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			w.log.Warn().Int("attempt", attempt).Dur("backoff", backoff).
				Int("events", len(events)).Msg("persistence retry")
			select {
			case <-ctx.Done():
				if err := w.flush(context.Background(), events, transfers); err != nil {
					w.log.Error().Err(err).Msg("shutdown flush failed")
				}
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		if err := w.flush(ctx, events, transfers); err == nil {
			if attempt > 0 {
				w.log.Info().Int("retries", attempt).Msg("persistence flush recovered")
			}
			return
		} else if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("retry").Inc()
		}
	}
}

func (w *Worker) flush(ctx context.Context, events []EventRow, transfers []TransferRow) error {
	start := time.Now()

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("tx_begin").Inc()
		}
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := w.writer.WriteEventBatch(ctx, tx, events); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("write_events").Inc()
		}
		return fmt.Errorf("write events: %w", err)
	}
	if err := w.writer.WriteTransferBatch(ctx, tx, transfers); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("write_transfers").Inc()
		}
		return fmt.Errorf("write transfers: %w", err)
	}
	if err := tx.Commit(); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("tx_commit").Inc()
		}
		return fmt.Errorf("commit: %w", err)
	}

	if w.metrics != nil {
		w.metrics.PersistBatchDur.Observe(time.Since(start).Seconds())
		w.metrics.PersistBatchSize.Observe(float64(len(events)))
		w.metrics.PersistEventsWritten.Add(float64(len(events)))
		w.metrics.PersistTransfersWritten.Add(float64(len(transfers)))
		if len(events) > 0 {
			w.metrics.PersistLastSequence.Set(float64(events[len(events)-1].Sequence))
		}
	}
	return nil
}

func buildEventRow(out escrow.Output) EventRow {
	env := out.Envelope

	var identifier *string
	if env.Identifier != nil {
		s := env.Identifier.Hex()
		identifier = &s
	}

	return EventRow{
		Sequence:   env.Sequence,
		EventType:  env.EventType.String(),
		OpRef:      env.OpRef,
		Identifier: identifier,
		Payload:    MarshalPayload(env.Payload),
		StateHash:  env.StateHash[:],
		PrevHash:   env.PrevHash[:],
		Timestamp:  env.Timestamp,
	}
}

func buildTransferRows(out escrow.Output) []TransferRow {
	if len(out.Transfers) == 0 {
		return nil
	}
	rows := make([]TransferRow, 0, len(out.Transfers))
	for _, t := range out.Transfers {
		rows = append(rows, TransferRow{
			TransferID:    uuid.NewString(),
			OpRef:         out.Envelope.OpRef,
			Sequence:      out.Envelope.Sequence,
			DebitAccount:  t.Debit,
			CreditAccount: t.Credit,
			Amount:        t.Amount.String(),
			Kind:          t.Kind.String(),
			Timestamp:     out.Envelope.Timestamp,
		})
	}
	return rows
}
