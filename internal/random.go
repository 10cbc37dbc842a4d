package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const (
	minOTPDigits = 4
	maxOTPDigits = 10
	tokenIDSize  = 16
)

// NewOTP returns a crypto-random numeric code of the requested length.
func NewOTP(digits int) (string, error) {
	if digits < minOTPDigits || digits > maxOTPDigits {
		return "", errors.New("invalid otp digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	otp := b.String()
	if len(otp) != digits {
		return "", fmt.Errorf("invalid otp generation length")
	}
	return otp, nil
}

// HashOTP returns the digest stored in place of a plaintext code.
func HashOTP(code string) [32]byte {
	return sha256.Sum256([]byte(code))
}

// OTPMatches compares a provided code against a stored digest in constant time.
func OTPMatches(stored [32]byte, provided string) bool {
	digest := HashOTP(provided)
	return subtle.ConstantTimeCompare(stored[:], digest[:]) == 1
}

// IsNumeric reports whether v is a non-empty run of ASCII digits.
func IsNumeric(v string) bool {
	if v == "" {
		return false
	}
	for i := 0; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			return false
		}
	}
	return true
}

// RandomIntn returns a uniform value in [0, n).
func RandomIntn(n int) (int, error) {
	if n <= 0 {
		return 0, errors.New("invalid random bound")
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

// NewTokenID returns a compact base64url identifier used as a JWT id.
func NewTokenID() (string, error) {
	var raw [tokenIDSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}
