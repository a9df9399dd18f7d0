package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantity_String(t *testing.T) {
	cases := map[Quantity]string{
		0:       "0.0000",
		10_000:  "1.0000",
		15_000:  "1.5000",
		1:       "0.0001",
		-25_000: "-2.5000",
		-1:      "-0.0001",
	}
	for q, want := range cases {
		assert.Equal(t, want, q.String())
	}
}

func TestQuantity_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(Quantity(123_456))
	require.NoError(t, err)
	assert.Equal(t, "12.3456", string(data))

	data, err = json.Marshal(Quantity(-10_000))
	require.NoError(t, err)
	assert.Equal(t, "-1.0000", string(data))
}

func TestQuantity_UnmarshalJSON(t *testing.T) {
	cases := map[string]Quantity{
		`5`:         50_000,
		`5.25`:      52_500,
		`"5.25"`:    52_500,
		`-3.5`:      -35_000,
		`"-3.5"`:    -35_000,
		`0.0001`:    1,
		`null`:      0,
		`12.34567`:  123_456, // extra digits truncated
		`"  2.5  "`: 25_000,
	}
	for in, want := range cases {
		var q Quantity
		require.NoError(t, json.Unmarshal([]byte(in), &q), "input %s", in)
		assert.Equal(t, want, q, "input %s", in)
	}
}

func TestQuantity_UnmarshalJSON_Invalid(t *testing.T) {
	for _, in := range []string{`"abc"`, `"1.2.3"`, `""`} {
		var q Quantity
		assert.Error(t, json.Unmarshal([]byte(in), &q), "input %s", in)
	}
}

func TestQuantity_Arithmetic(t *testing.T) {
	assert.Equal(t, Quantity(-15_000), Quantity(15_000).Neg())
	assert.Equal(t, Quantity(15_000), Quantity(-15_000).Abs())
	assert.Equal(t, Quantity(15_000), Quantity(15_000).Abs())
	assert.Equal(t, Quantity(10_000), Quantity(10_000).Min(15_000))
	assert.Equal(t, Quantity(10_000), Quantity(15_000).Min(10_000))

	assert.True(t, Quantity(0).IsZero())
	assert.True(t, Quantity(1).IsPositive())
	assert.True(t, Quantity(-1).IsNegative())
}

func TestQuantity_FloatRoundTrip(t *testing.T) {
	q := NewQuantityFromFloat64(2.5)
	assert.Equal(t, Quantity(25_000), q)
	assert.InDelta(t, 2.5, q.Float64(), 1e-9)

	// Rounds half away at the 4th digit.
	assert.Equal(t, Quantity(1), NewQuantityFromFloat64(0.00005))
}

func TestQuantity_MulMoney(t *testing.T) {
	q := Quantity(25_000) // 2.5
	cost := MustMoney("4.20")

	got := q.MulMoney(cost)
	assert.True(t, MustMoney("10.50").Equal(got), "got %s", got)
}

func TestQuantity_Decimal(t *testing.T) {
	d := Quantity(123_456).Decimal()
	assert.Equal(t, "12.3456", d.String())

	back := NewQuantityFromDecimal(d)
	assert.Equal(t, Quantity(123_456), back)

	// Conversion rounds half-up at the 4th digit.
	assert.Equal(t, Quantity(33_333), NewQuantityFromDecimal(MustMoney("3.33334")))
	assert.Equal(t, Quantity(33_334), NewQuantityFromDecimal(MustMoney("3.33335")))
}

func TestMoney_Constructors(t *testing.T) {
	m, err := NewMoneyFromString("19.99")
	require.NoError(t, err)
	assert.True(t, MustMoney("19.99").Equal(m))

	_, err = NewMoneyFromString("not money")
	assert.Error(t, err)

	assert.True(t, Zero().IsZero())
	assert.Panics(t, func() { MustMoney("bad") })
}
