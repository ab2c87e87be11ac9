package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"cnft-drop/go-backend/internal/accumulator"
)

type treeView struct {
	Tree              string `json:"tree"`
	MaxDepth          uint32 `json:"maxDepth,omitempty"`
	MaxBufferSize     uint32 `json:"maxBufferSize,omitempty"`
	CanopyDepth       uint32 `json:"canopyDepth,omitempty"`
	Capacity          uint64 `json:"capacity,omitempty"`
	CreationSignature string `json:"creationSignature,omitempty"`
	CreatedAt         string `json:"createdAt,omitempty"`
}

func NewTreeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Inspect or provision the merkle tree the drop mints into",
	}
	cmd.AddCommand(newTreeShowCommand(rootOpts))
	cmd.AddCommand(newTreeEnsureCommand(rootOpts))
	return cmd
}

func newTreeShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the recorded tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(rootOpts, cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer sess.Close()
			h, err := accumulator.NewProvisioner(sess.store, nil, accumulator.Options{Logger: sess.logger}).Load()
			if errors.Is(err, accumulator.ErrNoTree) {
				return fmt.Errorf("%w (run `cnftdrop tree ensure`)", err)
			}
			if err != nil {
				return err
			}
			return printTree(cmd.OutOrStdout(), rootOpts.JSON, h)
		},
	}
}

func newTreeEnsureCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ensure",
		Short: "Create the tree unless one is already recorded",
		Long: `Create the merkle tree with the configured shape, paid for by the identity,
unless merkle-tree.json already records one. Creation costs the rent of the
tree account; the tree is recorded only once its transaction is confirmed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(rootOpts, cmd.ErrOrStderr(), true)
			if err != nil {
				return err
			}
			defer sess.Close()
			ids, err := sess.identities()
			if err != nil {
				return err
			}
			id, err := ids.Obtain()
			if err != nil {
				return err
			}
			led := sess.newLedger(sess.rpcClient(), id)
			prov := accumulator.NewProvisioner(sess.store, led, accumulator.Options{Logger: sess.logger.With("component", "accumulator")})
			h, err := prov.Obtain(cmd.Context(), sess.cfg.Tree.Params())
			if err != nil {
				return err
			}
			return printTree(cmd.OutOrStdout(), rootOpts.JSON, h)
		},
	}
}

func printTree(w io.Writer, asJSON bool, h *accumulator.Handle) error {
	view := treeView{
		Tree:          h.Tree.String(),
		MaxDepth:      h.MaxDepth,
		MaxBufferSize: h.MaxBufferSize,
		CanopyDepth:   h.CanopyDepth,
	}
	if h.MaxDepth > 0 {
		view.Capacity = h.Params().Capacity()
	}
	if !h.CreationSignature.IsZero() {
		view.CreationSignature = h.CreationSignature.String()
	}
	if !h.CreatedAt.IsZero() {
		view.CreatedAt = h.CreatedAt.UTC().Format(time.RFC3339)
	}
	if asJSON {
		return writeJSON(w, view)
	}
	field(w, "tree", view.Tree)
	if view.MaxDepth > 0 {
		field(w, "shape", fmt.Sprintf("depth %d, buffer %d, canopy %d", view.MaxDepth, view.MaxBufferSize, view.CanopyDepth))
		field(w, "capacity", view.Capacity)
	}
	if view.CreationSignature != "" {
		field(w, "signature", view.CreationSignature)
	}
	if view.CreatedAt != "" {
		field(w, "created", view.CreatedAt)
	}
	return nil
}
