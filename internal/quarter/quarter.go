// Package quarter provides the calendar-quarter identifier used to index every
// panel in the stress test.
package quarter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "macrostress/internal/errors"
)

// Quarter is a calendar quarter such as 2025Q4. The zero value is invalid.
type Quarter struct {
	Year int
	Q    int
}

// New returns the quarter for year and q, validating q in 1..4.
func New(year, q int) (Quarter, error) {
	if q < 1 || q > 4 {
		return Quarter{}, apperrors.NewValidationError("quarter number must be 1-4, got %d", q)
	}
	if year < 1 || year > 9999 {
		return Quarter{}, apperrors.NewValidationError("quarter year out of range: %d", year)
	}
	return Quarter{Year: year, Q: q}, nil
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(s string) Quarter {
	q, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return q
}

// Parse accepts "2025Q4", "2025 Q4" and "2025-Q4" (case-insensitive).
func Parse(s string) (Quarter, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "", "-", "").Replace(norm)
	idx := strings.IndexByte(norm, 'Q')
	if idx <= 0 || idx != len(norm)-2 {
		return Quarter{}, apperrors.NewValidationError("invalid quarter %q: expected YYYYQn", s)
	}
	year, err := strconv.Atoi(norm[:idx])
	if err != nil {
		return Quarter{}, apperrors.NewValidationError("invalid quarter %q: bad year", s)
	}
	q, err := strconv.Atoi(norm[idx+1:])
	if err != nil {
		return Quarter{}, apperrors.NewValidationError("invalid quarter %q: bad quarter number", s)
	}
	return New(year, q)
}

// FromTime returns the quarter containing t.
func FromTime(t time.Time) Quarter {
	return Quarter{Year: t.Year(), Q: (int(t.Month())-1)/3 + 1}
}

// String renders the quarter as YYYYQn.
func (q Quarter) String() string {
	return fmt.Sprintf("%dQ%d", q.Year, q.Q)
}

// IsZero reports whether q is the zero value.
func (q Quarter) IsZero() bool {
	return q.Year == 0 && q.Q == 0
}

func (q Quarter) ordinal() int {
	return q.Year*4 + (q.Q - 1)
}

func fromOrdinal(n int) Quarter {
	return Quarter{Year: n / 4, Q: n%4 + 1}
}

// Compare returns -1, 0 or +1 ordering by (year, quarter).
func (q Quarter) Compare(other Quarter) int {
	a, b := q.ordinal(), other.ordinal()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Before reports whether q is strictly earlier than other.
func (q Quarter) Before(other Quarter) bool {
	return q.ordinal() < other.ordinal()
}

// Add returns the quarter n quarters after q (n may be negative).
func (q Quarter) Add(n int) Quarter {
	return fromOrdinal(q.ordinal() + n)
}

// Next returns the following quarter.
func (q Quarter) Next() Quarter {
	return q.Add(1)
}

// Sub returns the number of quarters from other to q.
func (q Quarter) Sub(other Quarter) int {
	return q.ordinal() - other.ordinal()
}

// Start returns midnight UTC on the first day of the quarter.
func (q Quarter) Start() time.Time {
	return time.Date(q.Year, time.Month((q.Q-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
}

// End returns midnight UTC on the last day of the quarter.
func (q Quarter) End() time.Time {
	return q.Next().Start().AddDate(0, 0, -1)
}

// Range returns n consecutive quarters starting at start. n <= 0 yields nil.
func Range(start Quarter, n int) []Quarter {
	if n <= 0 {
		return nil
	}
	out := make([]Quarter, n)
	for i := range out {
		out[i] = start.Add(i)
	}
	return out
}

// IsContiguous reports whether qs is strictly increasing with no gaps.
func IsContiguous(qs []Quarter) bool {
	for i := 1; i < len(qs); i++ {
		if qs[i].Sub(qs[i-1]) != 1 {
			return false
		}
	}
	return true
}

// MarshalText implements encoding.TextMarshaler.
func (q Quarter) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (q *Quarter) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}
