package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLegEntryGroup(t *testing.T) {
	tests := []struct {
		legID string
		want  string
	}{
		{"2025-01-000001a", "2025-01-000001"},
		{"2025-01-000001b", "2025-01-000001"},
		{"2025-01-000001", "2025-01-000001"},
		{"2025-12-000099abc", "2025-12-000099"},
		{"", ""},
	}
	for _, tt := range tests {
		leg := Leg{LegID: tt.legID}
		assert.Equal(t, tt.want, leg.EntryGroup(), "EntryGroup(%q)", tt.legID)
	}
}

func TestLegEffect(t *testing.T) {
	debit := Leg{Debit: decimal.RequireFromString("25.50")}
	credit := Leg{Credit: decimal.RequireFromString("25.50")}

	assert.Equal(t, "-25.50", debit.Effect().StringFixed(2))
	assert.Equal(t, "25.50", credit.Effect().StringFixed(2))
}
