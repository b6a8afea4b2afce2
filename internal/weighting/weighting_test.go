package weighting

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	e1     = []float64{0.6, -0.3, 0.1}
	e2     = []float64{-0.2, 0.5, 0.4}
	e3     = []float64{0.1, 0.1, -0.8}
	ratios = []float64{0.5, 0.3, 0.1}
)

func absNormalized(v []float64) []float64 {
	out := make([]float64, len(v))
	sum := 0.0
	for _, x := range v {
		sum += math.Abs(x)
	}
	for i, x := range v {
		out[i] = math.Abs(x) / sum
	}
	return out
}

func TestParseScheme(t *testing.T) {
	assert.Equal(t, Equal, ParseScheme("equal"))
	assert.Equal(t, Variance, ParseScheme("Variance"))
	assert.Equal(t, FirstOnly, ParseScheme("first_only"))
	assert.Equal(t, Fallback, ParseScheme("risk_parity"))
	assert.Equal(t, Fallback, ParseScheme(""))
}

func TestFirstOnly(t *testing.T) {
	w, err := Synthesize(FirstOnly, Absolute, [][]float64{e1, e2, e3}, ratios)
	require.NoError(t, err)
	assert.Equal(t, absNormalized(e1), w)
}

func TestUnknownSchemeMatchesFirstOnly(t *testing.T) {
	want, err := Synthesize(FirstOnly, Absolute, [][]float64{e1, e2}, ratios[:2])
	require.NoError(t, err)
	got, err := Synthesize(ParseScheme("momentum"), Absolute, [][]float64{e1, e2}, ratios[:2])
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestEqual(t *testing.T) {
	vectors := [][]float64{e1, e2, e3}
	m := make([]float64, 3)
	for i := range m {
		m[i] = (e1[i] + e2[i] + e3[i]) / 3
	}
	want := absNormalized(m)

	got, err := Synthesize(Equal, Absolute, vectors, ratios)
	require.NoError(t, err)
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-12)
	}
}

func TestVarianceDividesByRatioSum(t *testing.T) {
	vectors := [][]float64{e1, e2}
	combined, err := Combine(Variance, vectors, []float64{0.6, 0.2})
	require.NoError(t, err)
	for i := range combined {
		want := (0.6*e1[i] + 0.2*e2[i]) / 0.8
		assert.InDelta(t, want, combined[i], 1e-12)
	}

	// 比例整体缩放不改变结果
	scaled, err := Combine(Variance, vectors, []float64{6, 2})
	require.NoError(t, err)
	assert.InDeltaSlice(t, combined, scaled, 1e-12)
}

func TestNormalizedWeightsInvariant(t *testing.T) {
	for _, scheme := range []Scheme{Equal, Variance, FirstOnly, Fallback} {
		w, err := Synthesize(scheme, Absolute, [][]float64{e1, e2, e3}, ratios)
		require.NoError(t, err, scheme.String())
		sum := 0.0
		for _, x := range w {
			assert.GreaterOrEqual(t, x, 0.0)
			sum += x
		}
		assert.InDelta(t, 1.0, sum, 1e-9, scheme.String())
	}
}

func TestSignNeutralFirstOnly(t *testing.T) {
	neg := []float64{-e1[0], -e1[1], -e1[2]}
	a, err := Synthesize(FirstOnly, Absolute, [][]float64{e1}, nil)
	require.NoError(t, err)
	b, err := Synthesize(FirstOnly, Absolute, [][]float64{neg}, nil)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSignedNormalizationKeepsShorts(t *testing.T) {
	w, err := Normalize([]float64{0.6, -0.3, 0.1}, Signed)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, w[0], 1e-12)
	assert.InDelta(t, -0.75, w[1], 1e-12)
	assert.InDelta(t, 0.25, w[2], 1e-12)
}

func TestErrors(t *testing.T) {
	_, err := Combine(Equal, nil, nil)
	assert.ErrorIs(t, err, ErrNoComponents)

	_, err = Combine(Variance, [][]float64{e1}, []float64{0.1, 0.2})
	assert.Error(t, err)

	_, err = Combine(Variance, [][]float64{e1}, []float64{0})
	assert.Error(t, err)

	_, err = Combine(Equal, [][]float64{e1, {1}}, nil)
	assert.Error(t, err)

	_, err = Normalize([]float64{0, 0}, Absolute)
	assert.ErrorIs(t, err, ErrZeroNormalizer)

	_, err = Normalize([]float64{1, -1}, Signed)
	assert.ErrorIs(t, err, ErrZeroNormalizer)

	_, err = ParseNormalization("log")
	assert.Error(t, err)
	n, err := ParseNormalization("")
	require.NoError(t, err)
	assert.Equal(t, Absolute, n)
}
