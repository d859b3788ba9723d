package service

import (
	"testing"

	"github.com/comanda-pos/floor/internal/enum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTransitionPolicy(t *testing.T) {
	p, err := ParseTransitionPolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyForward, p)

	p, err = ParseTransitionPolicy(" Lenient ")
	require.NoError(t, err)
	assert.Equal(t, PolicyLenient, p)

	p, err = ParseTransitionPolicy("strict")
	require.NoError(t, err)
	assert.Equal(t, PolicyStrict, p)

	_, err = ParseTransitionPolicy("chaotic")
	assert.Error(t, err)
}

func TestTransitionPolicyAllows(t *testing.T) {
	const (
		pending   = enum.OrderStatusPending
		preparing = enum.OrderStatusPreparing
		ready     = enum.OrderStatusReady
		delivered = enum.OrderStatusDelivered
	)
	tests := []struct {
		from, to                 string
		lenient, forward, strict bool
	}{
		{pending, pending, true, true, true},
		{pending, preparing, true, true, true},
		{pending, ready, true, true, false},
		{pending, delivered, true, true, false},
		{preparing, ready, true, true, true},
		{ready, delivered, true, true, true},
		{ready, preparing, true, false, false},
		{delivered, pending, true, false, false},
		{pending, "BURNT", false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			assert.Equal(t, tt.lenient, PolicyLenient.Allows(tt.from, tt.to), "lenient")
			assert.Equal(t, tt.forward, PolicyForward.Allows(tt.from, tt.to), "forward")
			assert.Equal(t, tt.strict, PolicyStrict.Allows(tt.from, tt.to), "strict")
		})
	}
}
