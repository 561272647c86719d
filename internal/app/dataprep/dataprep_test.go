package dataprep

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrvrbhanu01/connected-vehicle-security/internal/domain"
)

func recs(ts ...float64) []domain.DatasetRecord {
	out := make([]domain.DatasetRecord, len(ts))
	for i, v := range ts {
		out[i] = domain.DatasetRecord{Timestamp: v, CANID: "0x1"}
	}
	return out
}

func TestNormalizeShiftsWithoutScaling(t *testing.T) {
	out, scale, err := Normalize(recs(1000, 1005, 1002), 10)
	require.NoError(t, err)

	assert.False(t, scale.Applied)
	assert.Equal(t, 5.0, scale.RawSpan)
	assert.Equal(t, []float64{0, 5, 2}, simTimes(out))
	assert.Equal(t, []int{0, 1, 2}, indexes(out))
}

func TestNormalizeCompressesLongSpan(t *testing.T) {
	// 7200 s of data squeezed into a 3600 s run
	out, scale, err := Normalize(recs(1_700_000_000, 1_700_003_600, 1_700_007_200), 3600)
	require.NoError(t, err)

	require.True(t, scale.Applied)
	assert.Equal(t, 0.5, scale.Factor)
	assert.Equal(t, []float64{0, 1800, 3600}, simTimes(out))
}

func TestNormalizeNeverStretches(t *testing.T) {
	out, scale, err := Normalize(recs(0, 1), 3600)
	require.NoError(t, err)
	assert.False(t, scale.Applied)
	assert.Equal(t, 1.0, out[1].SimTime)
}

func TestNormalizeRejectsEmptyAndBadDuration(t *testing.T) {
	_, _, err := Normalize(nil, 10)
	assert.ErrorIs(t, err, domain.ErrEmptyDataset)

	_, _, err = Normalize(recs(1), 0)
	assert.Error(t, err)
}

func TestSampleRateOneIsNoop(t *testing.T) {
	in, _, err := Normalize(recs(3, 1, 2), 10)
	require.NoError(t, err)

	out, err := Sample(in, 1, 42)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestSampleIsDeterministicAndSorted(t *testing.T) {
	ts := make([]float64, 1000)
	for i := range ts {
		ts[i] = float64((i * 7919) % 1000)
	}
	in, _, err := Normalize(recs(ts...), 3600)
	require.NoError(t, err)

	a, err := Sample(in, 0.05, 42)
	require.NoError(t, err)
	b, err := Sample(in, 0.05, 42)
	require.NoError(t, err)
	c, err := Sample(in, 0.05, 7)
	require.NoError(t, err)

	assert.Len(t, a, 50)
	assert.Equal(t, indexes(a), indexes(b))
	assert.NotEqual(t, indexes(a), indexes(c))
	assert.IsNonDecreasing(t, simTimes(a))
}

func TestSampleKeepsAtLeastOne(t *testing.T) {
	in, _, err := Normalize(recs(1, 2, 3), 10)
	require.NoError(t, err)
	out, err := Sample(in, 0.01, 42)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestSampleRejectsBadRate(t *testing.T) {
	_, err := Sample(nil, 0, 1)
	assert.Error(t, err)
	_, err = Sample(nil, 1.5, 1)
	assert.Error(t, err)
}

func TestPrepareSortsTiesByInputOrder(t *testing.T) {
	p, err := Prepare(recs(10, 5, 5, 0), 100, 1, 42)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1, 2, 0}, indexes(p.Records))
	assert.Equal(t, 4, p.SourceRecords)
}

func simTimes(rs []domain.NormalizedRecord) []float64 {
	out := make([]float64, len(rs))
	for i, r := range rs {
		out[i] = r.SimTime
	}
	return out
}

func indexes(rs []domain.NormalizedRecord) []int {
	out := make([]int, len(rs))
	for i, r := range rs {
		out[i] = r.Index
	}
	return out
}
