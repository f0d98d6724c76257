package decimalx

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestRoundDown(t *testing.T) {
	cases := []struct {
		value, step, want string
	}{
		{"103", "10", "100"},
		{"100", "10", "100"},
		{"-5", "10", "-10"},
		{"0.127", "0.01", "0.12"},
	}
	for _, c := range cases {
		got, err := RoundDown(d(c.value), d(c.step))
		require.NoError(t, err)
		assert.True(t, got.Equal(d(c.want)), "RoundDown(%s,%s) = %s, want %s", c.value, c.step, got, c.want)
	}
}

func TestRoundDownRejectsNonPositiveStep(t *testing.T) {
	_, err := RoundDown(d("100"), d("0"))
	require.Error(t, err)

	_, err = RoundDown(d("100"), d("-1"))
	require.Error(t, err)
}

func TestRoundDownIdempotent(t *testing.T) {
	v, s := d("103.7"), d("5")
	once, err := RoundDown(v, s)
	require.NoError(t, err)
	twice, err := RoundDown(once, s)
	require.NoError(t, err)
	assert.True(t, once.Equal(twice))
	assert.True(t, once.LessThanOrEqual(v))
}

func TestPowInt(t *testing.T) {
	got := PowInt(d("1.01"), 3)
	want := d("1.01").Mul(d("1.01")).Mul(d("1.01"))
	assert.True(t, got.Equal(want))

	assert.True(t, PowInt(d("1.5"), 0).Equal(d("1")))
}

func TestFloorDiv(t *testing.T) {
	assert.Equal(t, int64(10), FloorDiv(d("100"), d("10")))
	assert.Equal(t, int64(9), FloorDiv(d("99.9"), d("10")))
	assert.Equal(t, int64(0), FloorDiv(d("5"), d("10")))
}
