package batch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"cnft-drop/go-backend/internal/apperr"
	"cnft-drop/go-backend/internal/bubblegum"
	"cnft-drop/go-backend/internal/ledger"
	"cnft-drop/go-backend/internal/metrics"
)

// fakeClock advances only when the executor sleeps.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

type submission struct {
	owner solana.PublicKey
	at    time.Time
	req   ledger.MintRequest
}

// fakeMinter fails the mints whose owner is in failFor.
type fakeMinter struct {
	clock       *fakeClock
	failFor     map[solana.PublicKey]error
	submissions []submission
	onMint      func(n int)
}

func (m *fakeMinter) Mint(ctx context.Context, req ledger.MintRequest) (ledger.MintReceipt, error) {
	m.submissions = append(m.submissions, submission{owner: req.Owner, at: m.clock.Now(), req: req})
	if m.onMint != nil {
		m.onMint(len(m.submissions))
	}
	if err := m.failFor[req.Owner]; err != nil {
		return ledger.MintReceipt{}, err
	}
	var sig solana.Signature
	copy(sig[:], req.Owner[:])
	return ledger.MintReceipt{Signature: sig, Slot: uint64(len(m.submissions))}, nil
}

func (m *fakeMinter) owners() []solana.PublicKey {
	out := make([]solana.PublicKey, 0, len(m.submissions))
	for _, s := range m.submissions {
		out = append(out, s.owner)
	}
	return out
}

func key(b byte) solana.PublicKey {
	var pk solana.PublicKey
	pk[0] = b
	pk[31] = 0xff
	return pk
}

func newBatch(recipients ...solana.PublicKey) Batch {
	return Batch{
		Tree:       key(200),
		ContentURI: "https://example.com/meta.json",
		Recipients: recipients,
		Template:   Template{Name: "Drop", RoyaltyBps: 500, Creator: key(100)},
	}
}

func newExecutor(minter *fakeMinter, opts Options) *Executor {
	opts.Now = minter.clock.Now
	opts.Sleep = minter.clock.Sleep
	return NewExecutor(minter, opts)
}

func TestRunPreservesOrder(t *testing.T) {
	clock := newFakeClock()
	minter := &fakeMinter{clock: clock}
	a, b, c := key(1), key(2), key(3)

	records, err := newExecutor(minter, Options{}).Run(context.Background(), newBatch(a, b, c))
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, want := range []solana.PublicKey{a, b, c} {
		require.Equal(t, i, records[i].Index)
		require.Equal(t, want, records[i].Recipient)
		require.Equal(t, StatusSucceeded, records[i].Status)
		require.False(t, records[i].Signature.IsZero())
	}
	require.Equal(t, []solana.PublicKey{a, b, c}, minter.owners())
}

func TestRunAbortsOnFirstFailure(t *testing.T) {
	clock := newFakeClock()
	boom := errors.New("blockhash not found")
	a, b, c := key(1), key(2), key(3)
	minter := &fakeMinter{clock: clock, failFor: map[solana.PublicKey]error{b: boom}}

	records, err := newExecutor(minter, Options{}).Run(context.Background(), newBatch(a, b, c))
	require.ErrorIs(t, err, apperr.ErrSubmission)
	require.ErrorIs(t, err, boom)
	var sub *apperr.SubmissionError
	require.ErrorAs(t, err, &sub)
	require.Equal(t, 1, sub.Index)
	require.Equal(t, b.String(), sub.Recipient)

	require.Len(t, records, 2)
	require.Equal(t, StatusSucceeded, records[0].Status)
	require.Equal(t, StatusFailed, records[1].Status)
	require.ErrorIs(t, records[1].Err, boom)
	require.Equal(t, []solana.PublicKey{a, b}, minter.owners(), "no submission after the failure")
	require.Equal(t, []solana.PublicKey{c}, Remaining(newBatch(a, b, c).Recipients, records))
}

func TestRunContinueOnFailureAttemptsEveryRecipient(t *testing.T) {
	clock := newFakeClock()
	boom := errors.New("rate limited")
	a, b, c := key(1), key(2), key(3)
	minter := &fakeMinter{clock: clock, failFor: map[solana.PublicKey]error{b: boom}}

	records, err := newExecutor(minter, Options{ContinueOnFailure: true}).Run(context.Background(), newBatch(a, b, c))
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, []solana.PublicKey{a, b, c}, minter.owners())
	failed := Failed(records)
	require.Len(t, failed, 1)
	require.Equal(t, b, failed[0].Recipient)
	require.Empty(t, Remaining(newBatch(a, b, c).Recipients, records))
}

func TestPacingBetweenSubmissionsOnly(t *testing.T) {
	clock := newFakeClock()
	minter := &fakeMinter{clock: clock}
	pacing := 5 * time.Second

	_, err := newExecutor(minter, Options{Pacing: pacing}).Run(context.Background(), newBatch(key(1), key(2), key(3), key(4)))
	require.NoError(t, err)
	require.Equal(t, []time.Duration{pacing, pacing, pacing}, clock.sleeps)

	first, last := minter.submissions[0].at, minter.submissions[len(minter.submissions)-1].at
	require.GreaterOrEqual(t, last.Sub(first), 3*pacing)
}

func TestZeroRecipientDoesNotConsumePacing(t *testing.T) {
	clock := newFakeClock()
	minter := &fakeMinter{clock: clock}
	pacing := 5 * time.Second

	records, err := newExecutor(minter, Options{Pacing: pacing, ContinueOnFailure: true}).
		Run(context.Background(), newBatch(key(1), solana.PublicKey{}, key(3)))
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, []solana.PublicKey{key(1), key(3)}, minter.owners())
	require.Equal(t, []time.Duration{pacing}, clock.sleeps)

	clock = newFakeClock()
	minter = &fakeMinter{clock: clock}
	_, err = newExecutor(minter, Options{Pacing: pacing, ContinueOnFailure: true}).
		Run(context.Background(), newBatch(key(1), solana.PublicKey{}))
	require.NoError(t, err)
	require.Empty(t, clock.sleeps, "no wait without a following submission")
}

func TestDefaultPacing(t *testing.T) {
	require.Equal(t, DefaultPacing, NewExecutor(&fakeMinter{}, Options{}).Pacing())
	require.Zero(t, NewExecutor(&fakeMinter{}, Options{Pacing: -1}).Pacing())
}

func TestEmptyBatch(t *testing.T) {
	clock := newFakeClock()
	minter := &fakeMinter{clock: clock}
	records, err := newExecutor(minter, Options{}).Run(context.Background(), newBatch())
	require.NoError(t, err)
	require.Empty(t, records)
	require.Empty(t, minter.submissions)
	require.Empty(t, clock.sleeps)
}

func TestInvalidTemplateSubmitsNothing(t *testing.T) {
	cases := map[string]func(*Batch){
		"long name":   func(b *Batch) { b.Template.Name = "a name that is longer than thirty-two bytes" },
		"missing uri": func(b *Batch) { b.ContentURI = "" },
		"royalty":     func(b *Batch) { b.Template.RoyaltyBps = 10_001 },
		"no creator":  func(b *Batch) { b.Template.Creator = solana.PublicKey{} },
		"no tree":     func(b *Batch) { b.Tree = solana.PublicKey{} },
		"long symbol": func(b *Batch) { b.Template.Symbol = "TOOLONGSYMBOL" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			clock := newFakeClock()
			minter := &fakeMinter{clock: clock}
			b := newBatch(key(1), key(2))
			mutate(&b)
			records, err := newExecutor(minter, Options{}).Run(context.Background(), b)
			require.ErrorIs(t, err, apperr.ErrInvalidRequest)
			require.Nil(t, records)
			require.Empty(t, minter.submissions)
		})
	}
}

func TestZeroRecipientIsRejectedWithoutSubmission(t *testing.T) {
	clock := newFakeClock()
	minter := &fakeMinter{clock: clock}
	records, err := newExecutor(minter, Options{}).Run(context.Background(), newBatch(key(1), solana.PublicKey{}, key(3)))
	require.ErrorIs(t, err, apperr.ErrSubmission)
	require.ErrorIs(t, err, ErrZeroRecipient)
	require.Len(t, records, 2)
	require.Equal(t, []solana.PublicKey{key(1)}, minter.owners())
}

func TestMintRequestCarriesTemplate(t *testing.T) {
	clock := newFakeClock()
	minter := &fakeMinter{clock: clock}
	b := newBatch(key(1))
	_, err := newExecutor(minter, Options{}).Run(context.Background(), b)
	require.NoError(t, err)

	req := minter.submissions[0].req
	require.Equal(t, b.Tree, req.Tree)
	require.Equal(t, key(1), req.Owner)
	md := req.Metadata
	require.Equal(t, "Drop", md.Name)
	require.Equal(t, b.ContentURI, md.URI)
	require.Equal(t, uint16(500), md.SellerFeeBasisPoints)
	require.Equal(t, &bubblegum.Collection{Key: b.Tree, Verified: false}, md.Collection)
	require.Equal(t, []bubblegum.Creator{{Address: key(100), Verified: true, Share: 100}}, md.Creators)
}

func TestCancellationStopsBetweenRecipients(t *testing.T) {
	clock := newFakeClock()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	minter := &fakeMinter{clock: clock, onMint: func(n int) {
		if n == 2 {
			cancel()
		}
	}}

	records, err := newExecutor(minter, Options{}).Run(ctx, newBatch(key(1), key(2), key(3)))
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, records, 2, "the in-flight mint is still recorded")
	require.Len(t, minter.submissions, 2)
}

func TestMetricsAreRecorded(t *testing.T) {
	clock := newFakeClock()
	reg := prometheus.NewRegistry()
	m := metrics.NewBatch(reg)
	minter := &fakeMinter{clock: clock, failFor: map[solana.PublicKey]error{key(2): errors.New("x")}}

	_, err := newExecutor(minter, Options{Metrics: m, ContinueOnFailure: true, Pacing: time.Second}).
		Run(context.Background(), newBatch(key(1), key(2), key(3)))
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, "cnftdrop_batch_submissions_total")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}
