package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBookingCode(t *testing.T) {
	code, err := NewBookingCode()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(code, "BK"))
	// BK + timestamp (8+ base-36 chars for current epochs) + 4 random
	assert.GreaterOrEqual(t, len(code), 14)
	for _, r := range code {
		assert.Contains(t, base36Alphabet, string(r))
	}

	other, err := NewBookingCode()
	require.NoError(t, err)
	assert.NotEqual(t, code, other, "codes must not collide")
}

func TestNewFlightCode(t *testing.T) {
	code, err := NewFlightCode("IndiGo")
	require.NoError(t, err)
	require.Len(t, code, 6)
	assert.Equal(t, "IN", code[:2])
	for _, r := range code[2:] {
		assert.True(t, r >= '0' && r <= '9')
	}

	// Too-short airline names fall back to a generic prefix.
	code, err = NewFlightCode("x")
	require.NoError(t, err)
	assert.Equal(t, "FL", code[:2])
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "₹30.00", FormatMoney(3000))
	assert.Equal(t, "₹0.05", FormatMoney(5))
	assert.Equal(t, "₹120.50", FormatMoney(12050))
}
