package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// NumericOTP generates fixed-width decimal one-time codes.
type NumericOTP struct {
	Digits int
}

// Generate returns a code of exactly Digits decimal digits (6 when unset).
func (g NumericOTP) Generate() (string, error) {
	digits := g.Digits
	if digits <= 0 {
		digits = 6
	}
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}
