package vector

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	orig := []float32{0.0, 1.5, -2.25, 3.75}

	b := Encode(orig)
	require.Len(t, b, len(orig)*ElementSize)

	decoded, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, orig, decoded)
}

func TestDecode_RejectsPartialElement(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3, 4, 5})
	require.ErrorIs(t, err, ErrBlobLength)

	_, err = Dim([]byte{1, 2})
	require.ErrorIs(t, err, ErrBlobLength)
}

func TestDecodeDim(t *testing.T) {
	b := Encode([]float32{1, 2, 3})
	n, err := Dim(b)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	vec, err := DecodeDim(b, 3)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, vec)

	_, err = DecodeDim(b, 2)
	require.Error(t, err)
}

func TestCheckFinite(t *testing.T) {
	require.NoError(t, CheckFinite([]float32{0, -1, 3.5}))
	assert.ErrorIs(t, CheckFinite([]float32{1, float32(math.NaN())}), ErrNonFinite)
	assert.ErrorIs(t, CheckFinite([]float32{float32(math.Inf(-1))}), ErrNonFinite)
}

func TestEncodeDecode_Empty(t *testing.T) {
	assert.Empty(t, Encode(nil))

	vec, err := Decode(nil)
	require.NoError(t, err)
	assert.Empty(t, vec)
}

func TestDistances(t *testing.T) {
	a := []float32{0, 0}
	b := []float32{3, 4}

	sq, err := SquaredL2Distance(a, b)
	require.NoError(t, err)
	assert.Equal(t, 25.0, sq)

	l2, err := L2Distance(a, b)
	require.NoError(t, err)
	assert.Equal(t, 5.0, l2)

	cos, err := CosineDistance([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, cos, 1e-9)

	cos, err = CosineDistance([]float32{2, 0}, []float32{1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, cos, 1e-9)

	cos, err = CosineDistance(a, b)
	require.NoError(t, err)
	assert.Equal(t, 1.0, cos)

	_, err = SquaredL2Distance([]float32{1}, b)
	require.Error(t, err)
}

func TestCosineDistance_SelfIsExactlyZero(t *testing.T) {
	for _, v := range [][]float32{
		{0.1, 0.2, 0.3},
		{0.577, -0.577, 0.577},
		{1e-3, 7, -0.33333334, 12.5},
	} {
		d, err := CosineDistance(v, v)
		require.NoError(t, err)
		assert.Zero(t, d, "%v", v)
	}
}

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric("")
	require.NoError(t, err)
	assert.Equal(t, MetricL2Squared, m)

	m, err = ParseMetric("Cosine")
	require.NoError(t, err)
	assert.Equal(t, MetricCosine, m)

	_, err = ParseMetric("manhattan")
	require.Error(t, err)
}
