package app

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"

	"cnft-drop/go-backend/internal/apperr"
	"cnft-drop/go-backend/internal/batch"
	"cnft-drop/go-backend/internal/solana/lamports"
)

// InFlight is the recipient whose mint failed and stopped the batch.
type InFlight struct {
	Index     int
	Recipient solana.PublicKey
}

// RunReport is what an operator needs to reconcile a run against the chain.
type RunReport struct {
	RunID         string
	State         State
	Identity      solana.PublicKey
	Tree          solana.PublicKey
	ContentURI    string
	Recipients    int
	BalanceBefore *uint64
	BalanceAfter  *uint64
	Records       []batch.Record
	InFlight      *InFlight
	// Remaining is the unprocessed suffix of the recipient list, ready to be
	// passed to the next run.
	Remaining  []solana.PublicKey
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

func (r *RunReport) advance(to State) error {
	if !r.State.canMoveTo(to) {
		return &TransitionError{From: r.State, To: to}
	}
	r.State = to
	return nil
}

// abort moves the run to Aborted and returns err unchanged.
func (r *RunReport) abort(err error) error {
	if !r.State.Terminal() {
		r.State = StateAborted
	}
	return err
}

func (r *RunReport) Succeeded() int {
	return len(r.Records) - len(batch.Failed(r.Records))
}

func formatBalance(balance *uint64) string {
	if balance == nil {
		return "unknown"
	}
	return lamports.Format(*balance) + " SOL"
}

func formatKey(pk solana.PublicKey) string {
	if pk.IsZero() {
		return "-"
	}
	return pk.String()
}

// WriteText renders the report for a terminal.
func (r *RunReport) WriteText(w io.Writer) error {
	var b strings.Builder
	row := func(label, format string, args ...any) {
		fmt.Fprintf(&b, "%-10s %s\n", label, fmt.Sprintf(format, args...))
	}
	row("run", "%s", r.RunID)
	row("state", "%s", r.State)
	row("identity", "%s", formatKey(r.Identity))
	row("tree", "%s", formatKey(r.Tree))
	if r.ContentURI == "" {
		row("content", "-")
	} else {
		row("content", "%s", r.ContentURI)
	}
	row("balance", "before %s, after %s", formatBalance(r.BalanceBefore), formatBalance(r.BalanceAfter))
	row("duration", "%s", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	row("mints", "%d of %d recipients, %d succeeded, %d failed",
		len(r.Records), r.Recipients, r.Succeeded(), len(r.Records)-r.Succeeded())
	for _, rec := range r.Records {
		fmt.Fprintf(&b, "  %s\n", rec)
	}
	if r.InFlight != nil {
		row("in flight", "#%d %s", r.InFlight.Index, r.InFlight.Recipient)
	}
	if len(r.Remaining) > 0 {
		row("remaining", "%d", len(r.Remaining))
		for _, pk := range r.Remaining {
			fmt.Fprintf(&b, "  %s\n", pk)
		}
	}
	if r.Err != nil {
		kind := apperr.KindOf(r.Err)
		if kind == "" {
			row("error", "%v", r.Err)
		} else {
			row("error", "[%s] %v", kind, r.Err)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

type recordJSON struct {
	Index     int    `json:"index"`
	Recipient string `json:"recipient"`
	Status    string `json:"status"`
	Signature string `json:"signature,omitempty"`
	Slot      uint64 `json:"slot,omitempty"`
	Error     string `json:"error,omitempty"`
}

type inFlightJSON struct {
	Index     int    `json:"index"`
	Recipient string `json:"recipient"`
}

type reportJSON struct {
	RunID         string        `json:"runId"`
	State         State         `json:"state"`
	Identity      string        `json:"identity,omitempty"`
	Tree          string        `json:"tree,omitempty"`
	ContentURI    string        `json:"contentUri,omitempty"`
	Recipients    int           `json:"recipients"`
	BalanceBefore *uint64       `json:"balanceBeforeLamports,omitempty"`
	BalanceAfter  *uint64       `json:"balanceAfterLamports,omitempty"`
	Records       []recordJSON  `json:"records"`
	InFlight      *inFlightJSON `json:"inFlight,omitempty"`
	Remaining     []string      `json:"remaining,omitempty"`
	Error         string        `json:"error,omitempty"`
	ErrorKind     string        `json:"errorKind,omitempty"`
	StartedAt     time.Time     `json:"startedAt"`
	FinishedAt    time.Time     `json:"finishedAt"`
}

func (r *RunReport) MarshalJSON() ([]byte, error) {
	out := reportJSON{
		RunID:         r.RunID,
		State:         r.State,
		ContentURI:    r.ContentURI,
		Recipients:    r.Recipients,
		BalanceBefore: r.BalanceBefore,
		BalanceAfter:  r.BalanceAfter,
		Records:       make([]recordJSON, 0, len(r.Records)),
		StartedAt:     r.StartedAt,
		FinishedAt:    r.FinishedAt,
	}
	if !r.Identity.IsZero() {
		out.Identity = r.Identity.String()
	}
	if !r.Tree.IsZero() {
		out.Tree = r.Tree.String()
	}
	for _, rec := range r.Records {
		item := recordJSON{Index: rec.Index, Recipient: rec.Recipient.String(), Status: string(rec.Status)}
		if rec.Succeeded() {
			item.Signature = rec.Signature.String()
			item.Slot = rec.Result.Slot
		} else if rec.Err != nil {
			item.Error = rec.Err.Error()
		}
		out.Records = append(out.Records, item)
	}
	if r.InFlight != nil {
		out.InFlight = &inFlightJSON{Index: r.InFlight.Index, Recipient: r.InFlight.Recipient.String()}
	}
	for _, pk := range r.Remaining {
		out.Remaining = append(out.Remaining, pk.String())
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
		out.ErrorKind = string(apperr.KindOf(r.Err))
	}
	return json.Marshal(out)
}
