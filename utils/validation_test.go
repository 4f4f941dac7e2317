package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhoneNumber(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"+22890123456", "+22890123456", true},
		{"0022890123456", "+22890123456", true},
		{"090123456", "+22890123456", true},
		{"+228 90 12 34 56", "+22890123456", true},
		{"090-12-34-56", "+22890123456", true},
		{"12345", "", false},
		{"+33123456789", "", false},
		{"", "", false},
		{"+2289012345", "", false},   // subscriber part too short
		{"+228901234567", "", false}, // subscriber part too long
		{"90123456", "", false},      // missing prefix
	}

	for _, tt := range tests {
		got, ok := NormalizePhoneNumber(tt.input)
		assert.Equal(t, tt.ok, ok, "input %q", tt.input)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
	}
}

func TestValidNetwork(t *testing.T) {
	assert.True(t, ValidNetwork("FLOOZ"))
	assert.True(t, ValidNetwork("TMONEY"))
	assert.False(t, ValidNetwork("flooz"))
	assert.False(t, ValidNetwork("MPESA"))
	assert.False(t, ValidNetwork(""))
}
