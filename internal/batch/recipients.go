package batch

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// ParseRecipients reads one base58 address per line. Blank lines and lines
// starting with '#' are skipped; a trailing comment after the address is
// allowed. Duplicates are kept, each is a separate mint.
func ParseRecipients(r io.Reader) ([]solana.PublicKey, error) {
	var out []solana.PublicKey
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), ","))
		if text == "" {
			continue
		}
		pk, err := solana.PublicKeyFromBase58(text)
		if err != nil {
			return nil, fmt.Errorf("recipients line %d: %w", line, err)
		}
		if pk.IsZero() {
			return nil, fmt.Errorf("recipients line %d: %w", line, ErrZeroRecipient)
		}
		out = append(out, pk)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read recipients: %w", err)
	}
	return out, nil
}
