package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"cnft-drop/go-backend/internal/accumulator"
	"cnft-drop/go-backend/internal/apperr"
	"cnft-drop/go-backend/internal/batch"
	"cnft-drop/go-backend/internal/bubblegum"
	"cnft-drop/go-backend/internal/content"
	"cnft-drop/go-backend/internal/identity"
	"cnft-drop/go-backend/internal/metrics"
)

const tracerName = "cnftdrop/app"

type IdentitySource interface {
	Obtain() (*identity.Identity, error)
}

type TreeSource interface {
	Obtain(ctx context.Context, params bubblegum.TreeParams) (*accumulator.Handle, error)
}

type ContentPublisher interface {
	PublishOnce(ctx context.Context, record content.Record) (string, error)
}

type BatchRunner interface {
	Run(ctx context.Context, b batch.Batch) ([]batch.Record, error)
}

type BalanceReader interface {
	Balance(ctx context.Context, account solana.PublicKey) (uint64, error)
}

// Stages are the chain-facing components, built once the run identity is
// known because it pays for and signs everything they send.
type Stages struct {
	Balances BalanceReader
	Trees    TreeSource
	Batches  BatchRunner
}

// Deps is everything a Runner is built from. Nothing is looked up
// globally.
type Deps struct {
	Identities IdentitySource
	Bind       func(id *identity.Identity) (Stages, error)
	Publisher  ContentPublisher
	Metrics    *metrics.Batch
	Tracer     trace.Tracer
	Logger     *slog.Logger
	Now        func() time.Time
	NewRunID   func() string
}

// RunInput parameterises one drop.
type RunInput struct {
	Recipients []solana.PublicKey
	Content    content.Record
	Tree       bubblegum.TreeParams
	// Template.Creator is filled with the run identity.
	Template batch.Template
}

type Runner struct {
	deps   Deps
	tracer trace.Tracer
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

func NewRunner(deps Deps) (*Runner, error) {
	if deps.Identities == nil || deps.Bind == nil || deps.Publisher == nil {
		return nil, errors.New("runner: identities, bind and publisher are required")
	}
	r := &Runner{
		deps:   deps,
		tracer: deps.Tracer,
		logger: deps.Logger,
		now:    deps.Now,
		newID:  deps.NewRunID,
	}
	if r.tracer == nil {
		r.tracer = otel.Tracer(tracerName)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.newID == nil {
		r.newID = func() string { return uuid.NewString() }
	}
	return r, nil
}

// Run executes one drop. The returned report is never nil; the error is the
// reason the run aborted, or nil when it completed.
func (r *Runner) Run(ctx context.Context, in RunInput) (*RunReport, error) {
	report := &RunReport{
		RunID:      r.newID(),
		State:      StateIdle,
		Recipients: len(in.Recipients),
		StartedAt:  r.now().UTC(),
	}
	logger := r.logger.With("run_id", report.RunID)
	ctx, span := r.tracer.Start(ctx, "drop.run", trace.WithAttributes(
		attribute.String("run.id", report.RunID),
		attribute.Int("run.recipients", len(in.Recipients)),
	))
	defer span.End()

	err := r.run(ctx, in, report, logger)
	report.FinishedAt = r.now().UTC()
	if err != nil {
		report.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, string(report.State))
		logger.Error("run aborted", "state", report.State, "kind", string(apperr.KindOf(err)), "err", err)
	} else {
		logger.Info("run completed", "records", len(report.Records), "failed", len(batch.Failed(report.Records)))
	}
	span.SetAttributes(attribute.String("run.state", string(report.State)))
	r.deps.Metrics.RunFinished(string(report.State))
	return report, err
}

func (r *Runner) run(ctx context.Context, in RunInput, report *RunReport, logger *slog.Logger) error {
	var id *identity.Identity
	if err := r.stage(ctx, "identity", func(context.Context) error {
		var err error
		id, err = r.deps.Identities.Obtain()
		return err
	}); err != nil {
		return report.abort(err)
	}
	report.Identity = id.PublicKey()
	if err := report.advance(StateIdentityReady); err != nil {
		return err
	}
	if id.Created {
		logger.Warn("new identity created; fund it before minting", "public_key", report.Identity.String())
	}

	stages, err := r.deps.Bind(id)
	if err != nil {
		return report.abort(fmt.Errorf("bind chain stages: %w", err))
	}
	report.BalanceBefore = r.balance(ctx, stages.Balances, report.Identity, logger)
	defer func() {
		report.BalanceAfter = r.balance(ctx, stages.Balances, report.Identity, logger)
	}()

	var tree *accumulator.Handle
	if err := r.stage(ctx, "accumulator", func(ctx context.Context) error {
		var err error
		tree, err = stages.Trees.Obtain(ctx, in.Tree)
		return err
	}); err != nil {
		return report.abort(err)
	}
	report.Tree = tree.Tree
	if err := report.advance(StateAccumulatorReady); err != nil {
		return err
	}

	if err := r.stage(ctx, "publish", func(ctx context.Context) error {
		var err error
		report.ContentURI, err = r.deps.Publisher.PublishOnce(ctx, in.Content)
		return err
	}); err != nil {
		return report.abort(err)
	}
	if err := report.advance(StateContentPublished); err != nil {
		return err
	}

	if err := report.advance(StateBatchRunning); err != nil {
		return err
	}
	template := in.Template
	template.Creator = report.Identity
	b := batch.Batch{
		Tree:       report.Tree,
		ContentURI: report.ContentURI,
		Recipients: in.Recipients,
		Template:   template,
	}
	batchErr := r.stage(ctx, "batch", func(ctx context.Context) error {
		var err error
		report.Records, err = stages.Batches.Run(ctx, b)
		return err
	})
	report.Remaining = batch.Remaining(in.Recipients, report.Records)
	var sub *apperr.SubmissionError
	if errors.As(batchErr, &sub) {
		report.InFlight = &InFlight{Index: sub.Index, Recipient: in.Recipients[sub.Index]}
	}
	if batchErr != nil || len(report.Records) != len(in.Recipients) {
		if batchErr == nil {
			batchErr = errors.New("batch stopped before the end of the recipient list")
		}
		return report.abort(batchErr)
	}
	return report.advance(StateCompleted)
}

// stage runs fn inside its own span.
func (r *Runner) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := r.tracer.Start(ctx, "drop."+name)
	defer span.End()
	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, name)
	}
	return err
}

// balance is informational; a failure is logged and leaves the field empty.
func (r *Runner) balance(ctx context.Context, reader BalanceReader, account solana.PublicKey, logger *slog.Logger) *uint64 {
	if reader == nil {
		return nil
	}
	lamports, err := reader.Balance(ctx, account)
	if err != nil {
		logger.Warn("balance unavailable", "account", account.String(), "err", err)
		return nil
	}
	return &lamports
}
