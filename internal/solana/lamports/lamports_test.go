package lamports

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	cases := map[uint64]string{
		0:             "0",
		1:             "0.000000001",
		250_000_000:   "0.25",
		1_500_000_000: "1.5",
		SOL(12):       "12",
	}
	for in, want := range cases {
		require.Equal(t, want, Format(in), "lamports %d", in)
	}
}

func TestParseSOL(t *testing.T) {
	lamports, err := ParseSOL(" 0.25 ")
	require.NoError(t, err)
	require.Equal(t, uint64(250_000_000), lamports)

	lamports, err = ParseSOL("3")
	require.NoError(t, err)
	require.Equal(t, SOL(3), lamports)

	for _, bad := range []string{"0.0000000001", "-1", "abc", "", "99999999999999999999"} {
		_, err := ParseSOL(bad)
		require.ErrorIs(t, err, ErrInvalidAmount, "input %q", bad)
	}
}

func TestFormatParseAgree(t *testing.T) {
	for _, n := range []uint64{1, 42, 999_999_999, 1_000_000_001, 18_446_744_073_709_551_615} {
		back, err := ParseSOL(Format(n))
		require.NoError(t, err)
		require.Equal(t, n, back)
	}
}
