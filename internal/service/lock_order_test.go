package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderedPair(t *testing.T) {
	tests := []struct {
		name          string
		a, b          string
		first, second string
	}{
		{"already ordered", "A", "B", "A", "B"},
		{"reversed", "B", "A", "A", "B"},
		{"common prefix", "acct-10", "acct-1", "acct-1", "acct-10"},
		{"lexicographic not numeric", "acct-9", "acct-10", "acct-10", "acct-9"},
		{"case sensitive", "a", "B", "B", "a"},
		{"equal ids", "A", "A", "A", "A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, second := OrderedPair(tt.a, tt.b)
			assert.Equal(t, tt.first, first)
			assert.Equal(t, tt.second, second)
		})
	}
}

// Both directions of the same pair must agree on the order.
func TestOrderedPair_Symmetric(t *testing.T) {
	ids := []string{"", "A", "B", "acct-1", "acct-2", "z", "Ω"}
	for _, a := range ids {
		for _, b := range ids {
			f1, s1 := OrderedPair(a, b)
			f2, s2 := OrderedPair(b, a)
			assert.Equal(t, f1, f2)
			assert.Equal(t, s1, s2)
			assert.LessOrEqual(t, f1, s1)
		}
	}
}
