package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"cnft-drop/go-backend/internal/accumulator"
	"cnft-drop/go-backend/internal/app"
	"cnft-drop/go-backend/internal/apperr"
	"cnft-drop/go-backend/internal/batch"
	"cnft-drop/go-backend/internal/identity"
	"cnft-drop/go-backend/internal/metrics"
	"cnft-drop/go-backend/internal/publisher"
)

func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DropOptions{}

	cmd := &cobra.Command{
		Use:   "run [recipients-file]",
		Short: "Run the drop: identity, tree, metadata, then one mint per recipient",
		Long: `Run the drop end to end. The identity and tree are created on first use and
reused afterwards; the metadata record is published once per run; then each
recipient gets one mint, in file order, paced by --pacing.

The recipients file holds one base58 address per line ('-' reads stdin).
When a mint fails the run stops, unless --continue-on-failure is set; the
report names the failed recipient and lists the ones never attempted.

Example:
  cnftdrop run --state-dir ./state wallets.txt
  cnftdrop run --pacing 2s --remaining-out retry.txt wallets.txt`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.RecipientsFile = args[0]
			}
			return runDrop(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().DurationVar(&opts.Pacing, "pacing", batch.DefaultPacing, "wait between mint submissions (negative disables)")
	cmd.Flags().BoolVar(&opts.ContinueOnFailure, "continue-on-failure", false, "record failed mints and keep going")
	cmd.Flags().StringVar(&opts.RecipientsFile, "recipients", "", "recipients file (same as the positional argument)")
	cmd.Flags().StringVar(&opts.RemainingOut, "remaining-out", "", "write recipients left unprocessed by an aborted run to this file")

	return cmd
}

func runDrop(cmd *cobra.Command, rootOpts *RootOptions, opts *DropOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	sess, err := openSession(rootOpts, cmd.ErrOrStderr(), true)
	if err != nil {
		return err
	}
	defer sess.Close()

	drop := &sess.cfg.Drop
	if cmd.Flags().Changed("pacing") {
		drop.Pacing = opts.Pacing
	}
	if cmd.Flags().Changed("continue-on-failure") {
		drop.ContinueOnFailure = opts.ContinueOnFailure
	}
	if opts.RecipientsFile != "" {
		drop.RecipientsFile = opts.RecipientsFile
	}
	recipients, err := loadRecipients(cmd.InOrStdin(), drop.RecipientsFile)
	if err != nil {
		return apperr.InvalidRequest("load recipients", err)
	}

	pub, closePub, err := sess.publisher(ctx)
	if err != nil {
		return apperr.Publish("configure publisher", err)
	}
	defer func() {
		if err := closePub(); err != nil {
			sess.logger.Warn("close publisher", "err", err)
		}
	}()
	ids, err := sess.identities()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewBatch(reg)
	if listen := sess.cfg.Metrics.Listen; listen != "" {
		stop, err := serveMetrics(listen, reg, sess.logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	client := sess.rpcClient()
	runner, err := app.NewRunner(app.Deps{
		Identities: ids,
		Bind: func(id *identity.Identity) (app.Stages, error) {
			led := sess.newLedger(client, id)
			return app.Stages{
				Balances: led,
				Trees: accumulator.NewProvisioner(sess.store, led, accumulator.Options{
					Logger: sess.logger.With("component", "accumulator"),
				}),
				Batches: batch.NewExecutor(led, batch.Options{
					Pacing:            drop.Pacing,
					ContinueOnFailure: drop.ContinueOnFailure,
					Metrics:           m,
					Logger:            sess.logger.With("component", "batch"),
				}),
			}, nil
		},
		Publisher: publisher.NewAdapter(pub, sess.logger.With("component", "publisher")),
		Metrics:   m,
		Logger:    sess.logger,
	})
	if err != nil {
		return err
	}

	template := drop.Template()
	if template.Name == "" {
		template.Name = sess.cfg.Content.Name
	}
	if template.Symbol == "" {
		template.Symbol = sess.cfg.Content.Symbol
	}
	report, runErr := runner.Run(ctx, app.RunInput{
		Recipients: recipients,
		Content:    sess.cfg.Content,
		Tree:       sess.cfg.Tree.Params(),
		Template:   template,
	})

	if opts.RemainingOut != "" && report.State == app.StateAborted {
		if err := writeRemaining(opts.RemainingOut, report); err != nil {
			sess.logger.Error("write remaining recipients", "path", opts.RemainingOut, "err", err)
		}
	}
	out := cmd.OutOrStdout()
	if rootOpts.JSON {
		if err := writeJSON(out, report); err != nil {
			return err
		}
	} else {
		if err := report.WriteText(out); err != nil {
			return err
		}
		printRunSummary(out, report)
	}

	if runErr != nil {
		return &ExitError{Code: ExitCode(runErr), Err: runErr}
	}
	if failed := len(batch.Failed(report.Records)); failed > 0 {
		return &ExitError{
			Code: ExitSubmission,
			Err:  fmt.Errorf("%d of %d mints failed", failed, len(report.Records)),
		}
	}
	return nil
}

func loadRecipients(stdin io.Reader, path string) ([]solana.PublicKey, error) {
	path = strings.TrimSpace(path)
	switch path {
	case "":
		return nil, errors.New("no recipients file given (argument, --recipients or drop.recipientsFile)")
	case "-":
		return batch.ParseRecipients(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return batch.ParseRecipients(f)
}

// writeRemaining writes the never-attempted recipients in a form run accepts.
// The in-flight recipient is only noted: its mint may have landed.
func writeRemaining(path string, report *app.RunReport) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# remaining recipients of run %s\n", report.RunID)
	if report.InFlight != nil {
		fmt.Fprintf(&b, "# in flight, check on chain before retrying: %s\n", report.InFlight.Recipient)
	}
	for _, pk := range report.Remaining {
		b.WriteString(pk.String())
		b.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(b.String()), 0o600)
}

func printRunSummary(w io.Writer, report *app.RunReport) {
	failed := len(report.Records) - report.Succeeded()
	switch {
	case report.State == app.StateCompleted && failed == 0:
		_, _ = fmt.Fprintf(w, "%s drop completed: %d minted\n", okMark(), report.Succeeded())
	case report.State == app.StateCompleted:
		_, _ = fmt.Fprintf(w, "%s drop completed with %d failed mints\n", failMark(), failed)
	default:
		_, _ = fmt.Fprintf(w, "%s drop aborted in state %s\n", failMark(), report.State)
	}
}
