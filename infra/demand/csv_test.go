package demand

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "github.com/kilianp07/offgrid-dt/core/demand"
)

func TestReadSeries(t *testing.T) {
	total, crit, err := ReadSeries(strings.NewReader("ts,total_kw,critical_kw\n00:00,1.5,0.5\n00:15, 2,0.25\n"))
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 2}, total)
	assert.Equal(t, []float64{0.5, 0.25}, crit)

	total, crit, err = ReadSeries(strings.NewReader("Total_KW\n3\n"))
	require.NoError(t, err)
	assert.Equal(t, []float64{3}, total)
	assert.Equal(t, []float64{0}, crit)
}

func TestReadSeriesErrors(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"missing column": "critical_kw\n1\n",
		"not a number":   "total_kw\nabc\n",
		"negative":       "total_kw\n-1\n",
		"short row":      "ts,total_kw\n00:00\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := ReadSeries(strings.NewReader(in))
			assert.Error(t, err)
		})
	}
}

func TestCSVProviderSlicesDays(t *testing.T) {
	path := filepath.Join(t.TempDir(), "load.csv")
	require.NoError(t, os.WriteFile(path, []byte("total_kw,critical_kw\n1,0.1\n2,0.2\n3,0.3\n4,0.4\n5,0.5\n"), 0o600))
	p := NewCSVProvider(path)

	day, err := p.Day(context.Background(), 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, day.TotalKW)
	assert.Equal(t, []float64{0.1, 0.2}, day.CriticalKW)
	require.NoError(t, day.Validate(2))

	day, err = p.Day(context.Background(), 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{5}, day.TotalKW)
	assert.True(t, errors.Is(day.Validate(2), core.ErrMeasuredLength))

	day, err = p.Day(context.Background(), 7, 2)
	require.NoError(t, err)
	assert.Empty(t, day.TotalKW)
}

func TestCSVProviderMissingFile(t *testing.T) {
	p := NewCSVProvider(filepath.Join(t.TempDir(), "nope.csv"))
	_, err := p.Day(context.Background(), 0, 96)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
