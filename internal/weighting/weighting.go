package weighting

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Scheme 主成分组合方式
type Scheme int

const (
	// Fallback 未识别的方案, 行为与 FirstOnly 完全一致
	Fallback Scheme = iota
	Equal
	Variance
	FirstOnly
)

// ParseScheme 解析方案名称, 从不失败: 未知名称返回 Fallback
func ParseScheme(s string) Scheme {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "equal":
		return Equal
	case "variance":
		return Variance
	case "first_only":
		return FirstOnly
	}
	return Fallback
}

func (s Scheme) String() string {
	switch s {
	case Equal:
		return "equal"
	case Variance:
		return "variance"
	case FirstOnly:
		return "first_only"
	}
	return "fallback(first_only)"
}

// Normalization 归一化方式
type Normalization int

const (
	// Absolute 取绝对值后除以绝对值之和, 结果非负 (只做多)
	Absolute Normalization = iota
	// Signed 除以带符号的和, 保留负权重 (多空)
	Signed
)

// ParseNormalization 解析归一化方式
func ParseNormalization(s string) (Normalization, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "absolute":
		return Absolute, nil
	case "signed":
		return Signed, nil
	}
	return Absolute, fmt.Errorf("unknown normalization %q", s)
}

func (n Normalization) String() string {
	if n == Signed {
		return "signed"
	}
	return "absolute"
}

var (
	ErrNoComponents   = errors.New("no eigenvectors to combine")
	ErrZeroNormalizer = errors.New("combined vector cannot be normalized")
)

// Combine 按方案把前 k 个特征向量组合成一个向量
func Combine(scheme Scheme, vectors [][]float64, ratios []float64) ([]float64, error) {
	if len(vectors) == 0 {
		return nil, ErrNoComponents
	}
	n := len(vectors[0])
	for i, v := range vectors {
		if len(v) != n {
			return nil, fmt.Errorf("eigenvector %d has length %d, want %d", i, len(v), n)
		}
	}

	switch scheme {
	case Equal:
		return mean(vectors), nil
	case Variance:
		if len(ratios) != len(vectors) {
			return nil, fmt.Errorf("got %d ratios for %d eigenvectors", len(ratios), len(vectors))
		}
		return average(vectors, ratios)
	case FirstOnly:
		return first(vectors), nil
	default:
		// 未知方案按 first_only 处理
		return first(vectors), nil
	}
}

func first(vectors [][]float64) []float64 {
	out := make([]float64, len(vectors[0]))
	copy(out, vectors[0])
	return out
}

func mean(vectors [][]float64) []float64 {
	out := make([]float64, len(vectors[0]))
	for _, v := range vectors {
		for i, x := range v {
			out[i] += x
		}
	}
	k := float64(len(vectors))
	for i := range out {
		out[i] /= k
	}
	return out
}

func average(vectors [][]float64, weights []float64) ([]float64, error) {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total == 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return nil, fmt.Errorf("explained variance ratios sum to %v", total)
	}
	out := make([]float64, len(vectors[0]))
	for c, v := range vectors {
		for i, x := range v {
			out[i] += weights[c] * x
		}
	}
	for i := range out {
		out[i] /= total
	}
	return out, nil
}

// Normalize 归一化使权重之和为 1
func Normalize(v []float64, mode Normalization) ([]float64, error) {
	out := make([]float64, len(v))
	denom := 0.0
	for i, x := range v {
		if mode == Absolute {
			x = math.Abs(x)
		}
		out[i] = x
		denom += x
	}
	if denom == 0 || math.IsNaN(denom) || math.IsInf(denom, 0) {
		return nil, fmt.Errorf("%w: sum is %v", ErrZeroNormalizer, denom)
	}
	for i := range out {
		out[i] /= denom
	}
	return out, nil
}

// Synthesize 组合并归一化, 纯函数, 每次再平衡都从头计算
func Synthesize(scheme Scheme, mode Normalization, vectors [][]float64, ratios []float64) ([]float64, error) {
	combined, err := Combine(scheme, vectors, ratios)
	if err != nil {
		return nil, err
	}
	return Normalize(combined, mode)
}
