package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode(t *testing.T) {
	code, err := GenerateCode(4)
	require.NoError(t, err)
	assert.Len(t, code, 8) // hex doubles the byte count
	assert.Equal(t, strings.ToUpper(code), code)

	other, err := GenerateCode(4)
	require.NoError(t, err)
	assert.NotEqual(t, code, other)
}

func TestBookingReference(t *testing.T) {
	ref, err := BookingReference()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "TRV-"))
	assert.Len(t, ref, 10)
}
