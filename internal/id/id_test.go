package id

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatEntryID(t *testing.T) {
	tests := []struct {
		year, month, seq int
		want             string
	}{
		{2025, 1, 1, "2025-01-000001"},
		{2025, 12, 99, "2025-12-000099"},
		{2025, 1, 123456, "2025-01-123456"},
	}
	for _, tt := range tests {
		got := FormatEntryID(tt.year, tt.month, tt.seq)
		assert.Equal(t, tt.want, got)
	}
}

func TestFormatLegID(t *testing.T) {
	assert.Equal(t, "2025-01-000001a", FormatLegID("2025-01-000001", 0))
	assert.Equal(t, "2025-01-000001b", FormatLegID("2025-01-000001", 1))
	assert.Equal(t, "2025-01-000001c", FormatLegID("2025-01-000001", 2))
}

func TestPeriod(t *testing.T) {
	assert.Equal(t, "2025-03", Period(time.Date(2025, 3, 31, 23, 0, 0, 0, time.UTC)))
}

func TestParseEntryID(t *testing.T) {
	tests := []struct {
		input               string
		wantYear, wantMonth int
		wantSeq             int
	}{
		{"2025-01-000001", 2025, 1, 1},
		{"2025-12-000099", 2025, 12, 99},
		{"2025-01-000001a", 2025, 1, 1},
		{"2025-01-000001b", 2025, 1, 1},
	}
	for _, tt := range tests {
		year, month, seq, err := ParseEntryID(tt.input)
		require.NoError(t, err, "input: %s", tt.input)
		assert.Equal(t, tt.wantYear, year)
		assert.Equal(t, tt.wantMonth, month)
		assert.Equal(t, tt.wantSeq, seq)
	}
}

func TestParseEntryID_Errors(t *testing.T) {
	badInputs := []string{
		"",
		"not-valid",
		"2025-01",
		"xxxx-01-000001",
		"2025-13-000001",
	}
	for _, input := range badInputs {
		_, _, _, err := ParseEntryID(input)
		assert.Error(t, err, "expected error for input: %s", input)
	}
}

func TestEntryGroup(t *testing.T) {
	assert.Equal(t, "2025-01-000001", EntryGroup("2025-01-000001a"))
	assert.Equal(t, "2025-01-000001", EntryGroup("2025-01-000001"))
	assert.Equal(t, "", EntryGroup(""))
}

func TestAccountNumbers(t *testing.T) {
	n := FormatAccountNumber(1)
	assert.Len(t, n, 10)
	assert.True(t, strings.HasPrefix(n, "000000001"))
	assert.True(t, ValidAccountNumber(n))

	// Luhn check digit for 7992739871 is 3.
	assert.Equal(t, 3, luhnDigit("7992739871"))

	for seq := int64(1); seq < 500; seq++ {
		require.True(t, ValidAccountNumber(FormatAccountNumber(seq)), "seq %d", seq)
	}

	assert.False(t, ValidAccountNumber("0000000010"))
	assert.False(t, ValidAccountNumber("12345"))
	assert.False(t, ValidAccountNumber("00000000a1"))
}

func TestNewReference(t *testing.T) {
	a, b := NewReference(), NewReference()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 22)
	assert.True(t, strings.HasPrefix(a, "TX"))
}

func TestPAN(t *testing.T) {
	pan, err := NewPAN("4000")
	require.NoError(t, err)
	assert.Len(t, pan, 16)
	assert.True(t, strings.HasPrefix(pan, "4000"))
	assert.Equal(t, int(pan[15]-'0'), luhnDigit(pan[:15]))

	assert.Equal(t, "**** **** **** "+pan[12:], MaskPAN(pan))
	assert.Equal(t, "12", MaskPAN("12"))

	_, err = NewPAN("1234567890123456")
	assert.Error(t, err)
}
