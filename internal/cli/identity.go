package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"cnft-drop/go-backend/internal/identity"
)

type identityView struct {
	PublicKey string `json:"publicKey"`
	Created   bool   `json:"created"`
	// Mnemonic is only set on the invocation that generated it.
	Mnemonic string `json:"mnemonic,omitempty"`
}

func NewIdentityCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Manage the keypair that pays for and signs the drop",
	}
	cmd.AddCommand(newIdentityShowCommand(rootOpts))
	cmd.AddCommand(newIdentityInitCommand(rootOpts))
	cmd.AddCommand(newIdentityImportCommand(rootOpts))
	return cmd
}

func newIdentityShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the public key of the stored identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(rootOpts, cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer sess.Close()
			ids, err := sess.identities()
			if err != nil {
				return err
			}
			id, err := ids.Load()
			if errors.Is(err, identity.ErrNoIdentity) {
				return fmt.Errorf("%w (run `cnftdrop identity init`)", err)
			}
			if err != nil {
				return err
			}
			return printIdentity(cmd.OutOrStdout(), rootOpts.JSON, id)
		},
	}
}

func newIdentityInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the identity if none exists",
		Long: `Create and persist a new identity from a fresh 24-word mnemonic. The
mnemonic is printed once and never stored; write it down. An existing
identity is left untouched and shown instead.`,
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
			return printIdentity(cmd.OutOrStdout(), rootOpts.JSON, id)
		},
	}
}

func newIdentityImportCommand(rootOpts *RootOptions) *cobra.Command {
	var mnemonicFile string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Recover an identity from a BIP-39 mnemonic",
		Long: `Recover an identity from a BIP-39 mnemonic read from --mnemonic-file or
stdin. The key is the one solana-keygen recovers for the phrase without a
derivation path. An existing identity is never overwritten.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mnemonic, err := readMnemonic(cmd.InOrStdin(), mnemonicFile)
			if err != nil {
				return err
			}
			sess, err := openSession(rootOpts, cmd.ErrOrStderr(), true)
			if err != nil {
				return err
			}
			defer sess.Close()
			ids, err := sess.identities()
			if err != nil {
				return err
			}
			id, err := ids.Import(mnemonic)
			if err != nil {
				return err
			}
			return printIdentity(cmd.OutOrStdout(), rootOpts.JSON, id)
		},
	}
	cmd.Flags().StringVar(&mnemonicFile, "mnemonic-file", "", "file holding the mnemonic (default stdin)")
	return cmd
}

func readMnemonic(stdin io.Reader, path string) (string, error) {
	var r io.Reader = stdin
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("open mnemonic file: %w", err)
		}
		defer f.Close()
		r = f
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read mnemonic: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func printIdentity(w io.Writer, asJSON bool, id *identity.Identity) error {
	view := identityView{PublicKey: id.PublicKey().String(), Created: id.Created, Mnemonic: id.Mnemonic}
	if asJSON {
		return writeJSON(w, view)
	}
	field(w, "identity", view.PublicKey)
	if view.Created {
		field(w, "created", okMark())
	}
	if view.Mnemonic != "" {
		field(w, "mnemonic", color.New(color.FgYellow).Sprint(view.Mnemonic))
		_, _ = fmt.Fprintln(w, "store the mnemonic offline; it is not saved and will not be shown again")
	}
	return nil
}
