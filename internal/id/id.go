package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FormatEntryID returns a journal entry ID like "2025-01-000001".
func FormatEntryID(year, month, seq int) string {
	return fmt.Sprintf("%04d-%02d-%06d", year, month, seq)
}

// FormatLegID returns a leg ID like "2025-01-000001a" (leg 0='a', 1='b', etc.).
func FormatLegID(entryID string, leg int) string {
	return entryID + string(rune('a'+leg))
}

// Period returns the "YYYY-MM" bucket that entry sequences restart in.
func Period(t time.Time) string {
	return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
}

// ParseEntryID parses "2025-01-000001" into year, month, seq.
func ParseEntryID(id string) (year, month, seq int, err error) {
	// Strip any leg suffix (trailing lowercase letters).
	base := EntryGroup(id)

	parts := strings.SplitN(base, "-", 3)
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("invalid entry ID format: %q", id)
	}

	year, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid year in entry ID %q: %w", id, err)
	}

	month, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid month in entry ID %q: %w", id, err)
	}
	if month < 1 || month > 12 {
		return 0, 0, 0, fmt.Errorf("invalid month in entry ID %q", id)
	}

	seq, err = strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid sequence in entry ID %q: %w", id, err)
	}

	return year, month, seq, nil
}

// EntryGroup strips the leg suffix from a leg ID.
// "2025-01-000001a" -> "2025-01-000001"
func EntryGroup(legID string) string {
	i := len(legID)
	for i > 0 && legID[i-1] >= 'a' && legID[i-1] <= 'z' {
		i--
	}
	return legID[:i]
}

// FormatAccountNumber turns a sequence into a 10-digit account number whose
// last digit is a Luhn check digit.
func FormatAccountNumber(seq int64) string {
	body := fmt.Sprintf("%09d", seq)
	return body + strconv.Itoa(luhnDigit(body))
}

// ValidAccountNumber reports whether s is a well-formed account number.
func ValidAccountNumber(s string) bool {
	if len(s) != 10 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return luhnDigit(s[:9]) == int(s[9]-'0')
}

// luhnDigit computes the check digit to append to body.
func luhnDigit(body string) int {
	sum := 0
	double := true
	for i := len(body) - 1; i >= 0; i-- {
		d := int(body[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return (10 - sum%10) % 10
}

// NewReference returns a statement reference like "TX3F2A...".
func NewReference() string {
	u := uuid.New()
	return "TX" + strings.ToUpper(hex.EncodeToString(u[:10]))
}

// NewPAN generates a 16-digit card number with the given issuer prefix and
// a valid Luhn check digit.
func NewPAN(prefix string) (string, error) {
	n := 15 - len(prefix)
	if n < 1 {
		return "", fmt.Errorf("prefix %q too long", prefix)
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	var b strings.Builder
	b.WriteString(prefix)
	for _, v := range buf {
		b.WriteByte('0' + v%10)
	}
	body := b.String()
	return body + strconv.Itoa(luhnDigit(body)), nil
}

// MaskPAN keeps the last four digits of a card number.
func MaskPAN(pan string) string {
	if len(pan) < 4 {
		return pan
	}
	return "**** **** **** " + pan[len(pan)-4:]
}
