package domain

import (
	"fmt"
	"math"
	"strconv"
)

// Money is a fixed-point USD amount in units of $0.0001 (four decimal
// places, the ledger's money precision). Integer arithmetic keeps
// accumulation exact where float64 would drift.
type Money int64

// MoneyFromFloat converts a dollar amount to Money, rounding half up at
// the fourth decimal place. Negative and non-finite inputs map to zero;
// costs are never negative.
func MoneyFromFloat(usd float64) Money {
	if usd <= 0 || math.IsNaN(usd) || math.IsInf(usd, 0) {
		return 0
	}
	return Money(math.Floor(usd*10000 + 0.5))
}

// Float64 returns the amount in dollars.
func (m Money) Float64() float64 {
	return float64(m) / 10000
}

// Add returns m + other.
func (m Money) Add(other Money) Money { return m + other }

// Sub returns m - other floored at zero.
func (m Money) Sub(other Money) Money {
	if other >= m {
		return 0
	}
	return m - other
}

// String formats the amount as a plain decimal with four places.
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%04d", sign, v/10000, v%10000)
}

// MarshalJSON encodes the amount as a JSON number in dollars.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON decodes a JSON number in dollars.
func (m *Money) UnmarshalJSON(data []byte) error {
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*m = MoneyFromFloat(f)
	return nil
}
