package intent

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerceDecimalIsExact(t *testing.T) {
	for _, raw := range []any{"123.45", 123.45, json.Number("123.45"), " 123.45 ", decimal.RequireFromString("123.45")} {
		d, err := CoerceDecimal(raw)
		require.NoError(t, err, "%v", raw)
		assert.True(t, d.Equal(decimal.RequireFromString("123.45")), "%v became %s", raw, d)
	}

	d, err := CoerceDecimal("0.1")
	require.NoError(t, err)
	assert.Equal(t, "0.3", d.Add(d).Add(d).String())

	d, err = CoerceDecimal("1,250.5")
	require.NoError(t, err)
	assert.Equal(t, "1250.5", d.String())

	_, err = CoerceDecimal("lots")
	assert.Error(t, err)
	_, err = CoerceDecimal(true)
	assert.Error(t, err)
}

func TestCoerceInt(t *testing.T) {
	cases := []struct {
		raw  any
		want int64
	}{
		{42, 42},
		{int64(7), 7},
		{float64(300), 300},
		{"12", 12},
		{"12.0", 12},
		{json.Number("99"), 99},
		{decimal.NewFromInt(5), 5},
	}
	for _, c := range cases {
		got, err := CoerceInt(c.raw)
		require.NoError(t, err, "%v", c.raw)
		assert.Equal(t, c.want, got)
	}

	for _, bad := range []any{1.5, "1.5", "ten", true} {
		_, err := CoerceInt(bad)
		assert.Error(t, err, "%v", bad)
	}
}

func TestCoerceIntRange(t *testing.T) {
	got, err := CoerceInt(float64(-1 << 63))
	require.NoError(t, err)
	assert.Equal(t, int64(math.MinInt64), got)

	got, err = CoerceInt(float64(1 << 53))
	require.NoError(t, err)
	assert.Equal(t, int64(1<<53), got)

	got, err = CoerceInt("9223372036854775807")
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), got)

	for _, raw := range []any{
		float64(1 << 63),
		1e19,
		-1e19,
		math.NaN(),
		"1e20",
		"9223372036854775808.0",
		decimal.RequireFromString("-9223372036854775809"),
	} {
		_, err := CoerceInt(raw)
		assert.Error(t, err, "%v", raw)
	}
}

func TestCoerceBool(t *testing.T) {
	for _, raw := range []any{true, "true", "YES", "1", "是", float64(1)} {
		got, err := CoerceBool(raw)
		require.NoError(t, err)
		assert.True(t, got, "%v", raw)
	}
	for _, raw := range []any{false, "false", "no", "0", "否", 0} {
		got, err := CoerceBool(raw)
		require.NoError(t, err)
		assert.False(t, got, "%v", raw)
	}
	_, err := CoerceBool("maybe")
	assert.Error(t, err)
}

func TestCoerceDateAndDateTime(t *testing.T) {
	want := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)
	for _, raw := range []string{"2024-05-06", "2024/05/06", "20240506", "2024-05-06T13:14:15Z"} {
		got, err := CoerceDate(raw)
		require.NoError(t, err, raw)
		assert.True(t, want.Equal(got), "%s → %s", raw, got)
	}

	got, err := CoerceDateTime("2024-05-06T13:14:15+08:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 6, 5, 14, 15, 0, time.UTC), got)

	got, err = CoerceDateTime("2024-05-06 13:14:15")
	require.NoError(t, err)
	assert.Equal(t, 13, got.Hour())

	_, err = CoerceDate("yesterday")
	assert.Error(t, err)
}

func TestCoerceStringAndFloat(t *testing.T) {
	s, err := CoerceString(12.5)
	require.NoError(t, err)
	assert.Equal(t, "12.5", s)

	s, err = CoerceString(decimal.RequireFromString("7.25"))
	require.NoError(t, err)
	assert.Equal(t, "7.25", s)

	f, err := CoerceFloat("0.95")
	require.NoError(t, err)
	assert.InDelta(t, 0.95, f, 1e-9)

	_, err = CoerceFloat([]int{1})
	assert.Error(t, err)
}
