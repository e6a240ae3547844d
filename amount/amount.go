// Package amount converts between the human-scale decimal strings stored
// in records and the 18-decimal fixed-point integers the contract expects.
package amount

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	sdkmath "cosmossdk.io/math"

	"github.com/0xmhha/stomatrade-go/internal/constants"
)

var (
	ErrEmpty     = errors.New("amount is empty")
	ErrNegative  = errors.New("amount must not be negative")
	ErrInvalid   = errors.New("amount is not a decimal number")
	ErrPrecision = fmt.Errorf("amount has more than %d decimal places", constants.TokenDecimals)
)

// Parse validates s and returns it as a decimal.
func Parse(s string) (sdkmath.LegacyDec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return sdkmath.LegacyDec{}, ErrEmpty
	}
	if strings.HasPrefix(s, "-") {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %s", ErrNegative, s)
	}
	if _, frac, ok := strings.Cut(s, "."); ok && len(frac) > constants.TokenDecimals {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %s", ErrPrecision, s)
	}

	d, err := sdkmath.LegacyNewDecFromStr(s)
	if err != nil {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %s", ErrInvalid, s)
	}
	if d.IsNegative() {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %s", ErrNegative, s)
	}
	return d, nil
}

// ToWei converts a decimal string to its fixed-point integer.
func ToWei(s string) (*big.Int, error) {
	d, err := Parse(s)
	if err != nil {
		return nil, err
	}
	// LegacyDec stores value * 10^18 internally
	return d.BigInt(), nil
}

// FromWei renders a fixed-point integer as a decimal string without
// trailing zeros.
func FromWei(v *big.Int) string {
	if v == nil {
		return "0"
	}
	s := sdkmath.LegacyNewDecFromBigIntWithPrec(v, constants.TokenDecimals).String()
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	return s
}

// Normalize returns the canonical decimal form of s.
func Normalize(s string) (string, error) {
	wei, err := ToWei(s)
	if err != nil {
		return "", err
	}
	return FromWei(wei), nil
}

// Add sums two decimal strings. Empty strings count as zero.
func Add(a, b string) (string, error) {
	x, err := orZero(a)
	if err != nil {
		return "", err
	}
	y, err := orZero(b)
	if err != nil {
		return "", err
	}
	return FromWei(new(big.Int).Add(x, y)), nil
}

func orZero(s string) (*big.Int, error) {
	if strings.TrimSpace(s) == "" {
		return new(big.Int), nil
	}
	return ToWei(s)
}
