package types

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// Megabytes is a whole quantity of data. All ledger arithmetic is integer
// megabytes; one megabyte is 1 MiB when rendered or parsed with units.
type Megabytes int64

// MaxMegabytes is the largest representable amount.
const MaxMegabytes Megabytes = math.MaxInt64

// MB converts a plain integer into Megabytes.
func MB(n int64) Megabytes { return Megabytes(n) }

// Int64 returns the raw integer amount.
func (m Megabytes) Int64() int64 { return int64(m) }

// IsPositive reports whether m is strictly greater than zero.
func (m Megabytes) IsPositive() bool { return m > 0 }

// String renders the amount the way it appears in transaction notes, e.g. "824 MB".
func (m Megabytes) String() string {
	return fmt.Sprintf("%d MB", int64(m))
}

// Human renders the amount with a binary unit suitable for dashboards,
// e.g. "1.5 GiB".
func (m Megabytes) Human() string {
	b := new(big.Int).Lsh(big.NewInt(int64(m)), 20)
	if b.Sign() < 0 {
		return "-" + humanize.BigIBytes(b.Abs(b))
	}
	return humanize.BigIBytes(b)
}

// GB returns the amount in gigabytes (1 GB = 1024 MB).
func (m Megabytes) GB() float64 {
	return float64(m) / 1024
}

// Sub returns m-o floored at zero.
func (m Megabytes) Sub(o Megabytes) Megabytes {
	if o >= m {
		return 0
	}
	return m - o
}

// Headroom is how much can still be added to a non-negative m.
func (m Megabytes) Headroom() Megabytes {
	if m < 0 {
		return MaxMegabytes
	}
	return MaxMegabytes - m
}

// CanAdd reports whether m+o fits in a Megabytes.
func (m Megabytes) CanAdd(o Megabytes) bool {
	return o <= m.Headroom()
}

// SatAdd returns m+o, saturating at MaxMegabytes.
func (m Megabytes) SatAdd(o Megabytes) Megabytes {
	if !m.CanAdd(o) {
		return MaxMegabytes
	}
	return m + o
}

// Min returns the smaller of a and b.
func Min(a, b Megabytes) Megabytes {
	if a < b {
		return a
	}
	return b
}

// Sum adds up a list of amounts.
func Sum(amounts ...Megabytes) Megabytes {
	var total Megabytes
	for _, a := range amounts {
		total += a
	}
	return total
}

// ParseMegabytes parses user input. A bare integer is megabytes; anything
// else goes through humanize.ParseBytes ("2 GiB", "512MiB") and is
// truncated to whole megabytes.
func ParseMegabytes(s string) (Megabytes, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("types: parse megabytes: empty input")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Megabytes(n), nil
	}
	b, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("types: parse megabytes %q: %w", s, err)
	}
	return Megabytes(b >> 20), nil
}
