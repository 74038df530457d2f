package common

import (
	"fmt"
	"math"
	"math/bits"
	"strings"
)

// Scale is the number of fractional decimal digits carried by Fixed.
const Scale = 7

// unit is 10^Scale.
const unit int64 = 1e7

// Fixed is a decimal value stored as a signed integer scaled by 10^Scale.
// Addition and subtraction are exact; multiplication and division round
// half to even. The zero value is 0.0000000.
type Fixed int64

// FixedFromInt converts a whole number of units into a Fixed.
func FixedFromInt(n int64) Fixed {
	return Fixed(n * unit)
}

// FixedFromRaw wraps an already-scaled integer, e.g. one read off the wire.
func FixedFromRaw(raw int64) Fixed {
	return Fixed(raw)
}

// Raw returns the underlying scaled integer.
func (f Fixed) Raw() int64 {
	return int64(f)
}

// ParseFixed parses decimal text of the form [-]DIGITS[.DIGITS] into a
// Fixed. More than Scale fractional digits, malformed text, or a value
// that overflows the scaled range is rejected with ErrInvalidPrice.
func ParseFixed(s string) (Fixed, error) {
	text := s
	neg := false
	if strings.HasPrefix(text, "-") {
		neg = true
		text = text[1:]
	}
	if text == "" {
		return 0, fmt.Errorf("%w: empty price %q", ErrInvalidPrice, s)
	}

	intPart := text
	fracPart := ""
	hasDot := false
	if dot := strings.IndexByte(text, '.'); dot >= 0 {
		hasDot = true
		intPart = text[:dot]
		fracPart = text[dot+1:]
	}
	if intPart == "" || (hasDot && fracPart == "") || len(fracPart) > Scale {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPrice, s)
	}

	var value int64
	for _, c := range []byte(intPart) {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidPrice, s)
		}
		d := int64(c - '0')
		if value > (math.MaxInt64-d)/10 {
			return 0, fmt.Errorf("%w: overflow in %q", ErrInvalidPrice, s)
		}
		value = value*10 + d
	}
	if value > math.MaxInt64/unit {
		return 0, fmt.Errorf("%w: overflow in %q", ErrInvalidPrice, s)
	}
	value *= unit

	frac := int64(0)
	for _, c := range []byte(fracPart) {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidPrice, s)
		}
		frac = frac*10 + int64(c-'0')
	}
	for i := len(fracPart); i < Scale; i++ {
		frac *= 10
	}
	if value > math.MaxInt64-frac {
		return 0, fmt.Errorf("%w: overflow in %q", ErrInvalidPrice, s)
	}
	value += frac

	if neg {
		value = -value
	}
	return Fixed(value), nil
}

// String renders the value with all Scale fractional digits.
func (f Fixed) String() string {
	v := int64(f)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%0*d", sign, v/unit, Scale, v%unit)
}

func (f Fixed) Add(o Fixed) Fixed {
	return f + o
}

func (f Fixed) Sub(o Fixed) Fixed {
	return f - o
}

// Mul multiplies two Fixed values, rounding half to even.
func (f Fixed) Mul(o Fixed) Fixed {
	return Fixed(mulDivRound(int64(f), int64(o), unit))
}

// Div divides f by o, rounding half to even.
func (f Fixed) Div(o Fixed) Fixed {
	if o == 0 {
		panic("fixed: division by zero")
	}
	return Fixed(mulDivRound(int64(f), unit, int64(o)))
}

// MulInt scales by a plain integer quantity. Exact.
func (f Fixed) MulInt(n int64) Fixed {
	return Fixed(int64(f) * n)
}

// DivInt divides by a plain integer quantity, rounding half to even.
func (f Fixed) DivInt(n int64) Fixed {
	if n == 0 {
		panic("fixed: division by zero")
	}
	return Fixed(divRound(int64(f), n))
}

// Cmp returns -1, 0 or +1.
func (f Fixed) Cmp(o Fixed) int {
	switch {
	case f < o:
		return -1
	case f > o:
		return 1
	default:
		return 0
	}
}

// mulDivRound computes a*b/d through a 128-bit intermediate, rounding
// half to even.
func mulDivRound(a, b, d int64) int64 {
	neg := false
	if a < 0 {
		a, neg = -a, !neg
	}
	if b < 0 {
		b, neg = -b, !neg
	}
	if d < 0 {
		d, neg = -d, !neg
	}
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	q, r := bits.Div64(hi, lo, uint64(d))
	q = roundHalfEven(q, r, uint64(d))
	if neg {
		return -int64(q)
	}
	return int64(q)
}

// divRound computes n/d, rounding half to even.
func divRound(n, d int64) int64 {
	neg := false
	if n < 0 {
		n, neg = -n, !neg
	}
	if d < 0 {
		d, neg = -d, !neg
	}
	q := roundHalfEven(uint64(n/d), uint64(n%d), uint64(d))
	if neg {
		return -int64(q)
	}
	return int64(q)
}

func roundHalfEven(q, r, d uint64) uint64 {
	switch {
	case 2*r > d:
		return q + 1
	case 2*r == d && q%2 == 1:
		return q + 1
	default:
		return q
	}
}
