package grid

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridbot/internal/core"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func absCfg(n int, spacing string) Config {
	return Config{Levels: n, SpacingMode: SpacingABS, Spacing: d(spacing)}
}

func pctCfg(n int, pct string) Config {
	return Config{Levels: n, SpacingMode: SpacingPercent, SpacingPercent: d(pct)}
}

func TestPriceABS(t *testing.T) {
	cfg := absCfg(3, "10")
	center := d("100")

	p, err := Price(center, 0, cfg)
	require.NoError(t, err)
	assert.True(t, p.Equal(center))

	p, err = Price(center, -3, cfg)
	require.NoError(t, err)
	assert.True(t, p.Equal(d("70")))

	p, err = Price(center, 3, cfg)
	require.NoError(t, err)
	assert.True(t, p.Equal(d("130")))
}

func TestPricePercent(t *testing.T) {
	cfg := pctCfg(2, "0.01")
	center := d("100")

	p, err := Price(center, 1, cfg)
	require.NoError(t, err)
	assert.True(t, p.Equal(d("101")))

	p, err = Price(center, -1, cfg)
	require.NoError(t, err)
	assert.True(t, p.Equal(center.Div(d("1.01"))))
}

func TestStepsABS(t *testing.T) {
	cfg := absCfg(3, "10")
	s, err := Steps(d("100"), d("100"), cfg)
	require.NoError(t, err)
	assert.Equal(t, 0, s)

	s, err = Steps(d("100"), d("104"), cfg)
	require.NoError(t, err)
	assert.Equal(t, 0, s)

	s, err = Steps(d("100"), d("121"), cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, s)

	s, err = Steps(d("100"), d("200"), cfg)
	require.NoError(t, err)
	assert.Equal(t, 10, s)

	s, err = Steps(d("100"), d("70"), cfg)
	require.NoError(t, err)
	assert.Equal(t, -3, s)
}

func TestStepsIdentity(t *testing.T) {
	for _, cfg := range []Config{absCfg(3, "10"), pctCfg(3, "0.01")} {
		s, err := Steps(d("100"), d("100"), cfg)
		require.NoError(t, err)
		assert.Equal(t, 0, s)
	}
}

func TestStepsRejectsNonPositiveCenterOrMark(t *testing.T) {
	cfg := absCfg(3, "10")
	_, err := Steps(d("0"), d("100"), cfg)
	require.Error(t, err)
	_, err = Steps(d("100"), d("0"), cfg)
	require.Error(t, err)
}

func TestBuildLevels(t *testing.T) {
	cfg := absCfg(3, "10")
	levels, err := BuildLevels(d("100"), cfg)
	require.NoError(t, err)
	require.Len(t, levels, 7)

	assert.Equal(t, core.Buy, levels[-1].TargetSide)
	assert.Equal(t, core.Sell, levels[1].TargetSide)
	assert.Empty(t, levels[0].TargetSide)
	assert.True(t, levels[-3].Price.Equal(d("70")))
	assert.True(t, levels[3].Price.Equal(d("130")))
}
