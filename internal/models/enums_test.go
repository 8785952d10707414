package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCurrency(t *testing.T) {
	c, err := ParseCurrency(0)
	require.NoError(t, err)
	assert.Equal(t, CurrencyUTC, c)
	assert.Equal(t, "UTC", c.String())

	_, err = ParseCurrency(7)
	assert.Error(t, err)
}

func TestParseOrderStatus(t *testing.T) {
	known := map[int32]OrderStatus{
		0: OrderPlaced,
		1: OrderOutForDelivery,
		2: OrderDelivered,
		3: OrderFailed,
		4: OrderReversed,
	}
	for raw, want := range known {
		got, err := ParseOrderStatus(raw)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	// Unknown integers are decode errors, never reinterpreted constants.
	_, err := ParseOrderStatus(5)
	assert.Error(t, err)
	_, err = ParseOrderStatus(-1)
	assert.Error(t, err)
}

func TestParsePlatform(t *testing.T) {
	_, err := ParsePlatform(99)
	assert.Error(t, err)
}
