package batch

import (
	"context"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"

	"cnft-drop/go-backend/internal/apperr"
	"cnft-drop/go-backend/internal/ledger"
	"cnft-drop/go-backend/internal/metrics"
)

const DefaultPacing = 5 * time.Second

type Options struct {
	// Pacing is the wait between consecutive submissions. Zero means
	// DefaultPacing; negative disables pacing.
	Pacing time.Duration
	// ContinueOnFailure records a failed mint and moves on instead of
	// aborting the rest of the batch.
	ContinueOnFailure bool
	Metrics           *metrics.Batch
	Logger            *slog.Logger
	Now               func() time.Time
	Sleep             func(ctx context.Context, d time.Duration) error
}

type Executor struct {
	minter            Minter
	pacing            time.Duration
	continueOnFailure bool
	metrics           *metrics.Batch
	logger            *slog.Logger
	now               func() time.Time
	sleep             func(ctx context.Context, d time.Duration) error
}

func NewExecutor(minter Minter, opts Options) *Executor {
	pacing := opts.Pacing
	switch {
	case pacing == 0:
		pacing = DefaultPacing
	case pacing < 0:
		pacing = 0
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	return &Executor{
		minter:            minter,
		pacing:            pacing,
		continueOnFailure: opts.ContinueOnFailure,
		metrics:           opts.Metrics,
		logger:            logger,
		now:               now,
		sleep:             sleep,
	}
}

func (e *Executor) Pacing() time.Duration {
	return e.pacing
}

// Run mints for every recipient in order and returns one record per
// recipient processed.
//
// By default the first failed mint stops the batch: the records so far are
// returned together with a *apperr.SubmissionError naming the recipient. With
// ContinueOnFailure every recipient is attempted and the error is nil.
// Cancellation is observed between recipients and while pacing; already
// sent mints are never undone.
func (e *Executor) Run(ctx context.Context, b Batch) ([]Record, error) {
	if err := b.Validate(); err != nil {
		return nil, apperr.InvalidRequest("batch template", err)
	}
	md := b.Metadata()
	records := make([]Record, 0, len(b.Recipients))
	submitted := false
	for i, recipient := range b.Recipients {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		rec := Record{Index: i, Recipient: recipient}
		req := ledger.MintRequest{Tree: b.Tree, Owner: recipient, Metadata: md}
		if recipient.IsZero() {
			rec.Status = StatusFailed
			rec.Err = apperr.InvalidRequest("recipient", ErrZeroRecipient)
		} else {
			// Pacing separates consecutive submissions only.
			if submitted && e.pacing > 0 {
				if err := e.sleep(ctx, e.pacing); err != nil {
					return records, err
				}
				e.metrics.AddPacing(e.pacing)
			}
			submitted = true
			rec = e.submit(ctx, rec, req)
		}
		records = append(records, rec)

		if !rec.Succeeded() {
			e.logger.Warn("mint failed", "index", i, "recipient", recipient.String(), "err", rec.Err)
			if !e.continueOnFailure {
				return records, &apperr.SubmissionError{Index: i, Recipient: recipient.String(), Err: rec.Err}
			}
			continue
		}
		e.logger.Info("minted",
			"index", i,
			"recipient", recipient.String(),
			"signature", rec.Signature.String(),
			"elapsed", rec.Elapsed,
		)
	}
	return records, nil
}

func (e *Executor) submit(ctx context.Context, rec Record, req ledger.MintRequest) Record {
	rec.SubmittedAt = e.now()
	receipt, err := e.minter.Mint(ctx, req)
	rec.Elapsed = e.now().Sub(rec.SubmittedAt)
	if err != nil {
		rec.Status = StatusFailed
		rec.Err = err
		e.metrics.ObserveSubmission(metrics.StatusFailed, rec.Elapsed)
		return rec
	}
	rec.Status = StatusSucceeded
	rec.Signature = receipt.Signature
	rec.Result = receipt
	e.metrics.ObserveSubmission(metrics.StatusSucceeded, rec.Elapsed)
	return rec
}

// Remaining returns the recipients after the last processed record, the
// suffix a caller re-submits to resume an aborted batch.
func Remaining(recipients []solana.PublicKey, records []Record) []solana.PublicKey {
	if len(records) >= len(recipients) {
		return nil
	}
	return append([]solana.PublicKey(nil), recipients[len(records):]...)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
