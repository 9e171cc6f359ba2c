package timeframe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	for _, tf := range All {
		parsed, err := Parse(tf.String())
		require.NoError(t, err)
		assert.Equal(t, tf, parsed)
	}
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse("2d")
	assert.Error(t, err)
}

func TestGranularityMs(t *testing.T) {
	assert.Equal(t, int64(60_000), OneMinute.GranularityMs())
	assert.Equal(t, int64(300_000), FiveMinute.GranularityMs())
	assert.Equal(t, int64(3_600_000), OneHour.GranularityMs())
	assert.Equal(t, int64(86_400_000), OneDay.GranularityMs())
}

func TestPeriodsPerYear(t *testing.T) {
	assert.Equal(t, 252.0, OneDay.PeriodsPerYear())
	assert.InDelta(t, 1638.0, OneHour.PeriodsPerYear(), 0.01)
}

func TestAllStocksPreloadAmount(t *testing.T) {
	assert.Equal(t, 250, OneDay.AllStocksPreloadAmount())
	assert.Equal(t, 2000, OneMinute.AllStocksPreloadAmount())
}
