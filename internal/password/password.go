package password

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
)

const (
	// MinLength applies to both generated and admin-supplied passwords.
	MinLength = 12

	generatedLength  = 16
	maxGenerateTries = 5
)

const (
	lower   = "abcdefghijklmnopqrstuvwxyz"
	upper   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digits  = "0123456789"
	special = "!@#$%^&*-_=+"
	charset = lower + upper + digits + special
)

var ErrTooWeak = errors.New("password does not meet the complexity policy")

// Validate checks an admin-supplied password against the complexity
// policy: minimum length plus at least one character of each class.
func Validate(pw string) error {
	if len(pw) < MinLength {
		return ErrTooWeak
	}
	if !strings.ContainsAny(pw, lower) ||
		!strings.ContainsAny(pw, upper) ||
		!strings.ContainsAny(pw, digits) ||
		!strings.ContainsAny(pw, special) {
		return ErrTooWeak
	}
	return nil
}

// Generate produces a temporary password, retrying against Validate up to
// five times. Random draws over the full charset occasionally miss one
// class; rather than handing out the last non-compliant candidate (the
// historic behavior), the final retry is repaired to satisfy the policy
// and the event is logged.
func Generate() (string, error) {
	var candidate string
	for i := 0; i < maxGenerateTries; i++ {
		pw, err := random(generatedLength)
		if err != nil {
			return "", fmt.Errorf("failed to generate password: %w", err)
		}
		candidate = pw
		if Validate(candidate) == nil {
			return candidate, nil
		}
	}

	slog.Warn("temporary password retries exhausted, repairing last candidate")
	return repair(candidate)
}

// repair overwrites the leading characters with one from each class so the
// result always validates.
func repair(pw string) (string, error) {
	classes := []string{lower, upper, digits, special}
	b := []byte(pw)
	for i, class := range classes {
		if i >= len(b) {
			break
		}
		ch, err := pick(class)
		if err != nil {
			return "", err
		}
		b[i] = ch
	}
	return string(b), nil
}

func random(n int) (string, error) {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		ch, err := pick(charset)
		if err != nil {
			return "", err
		}
		sb.WriteByte(ch)
	}
	return sb.String(), nil
}

func pick(class string) (byte, error) {
	idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(class))))
	if err != nil {
		return 0, err
	}
	return class[idx.Int64()], nil
}
