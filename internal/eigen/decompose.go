package eigen

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Reason 特征分解失败原因
type Reason int

const (
	ReasonInsufficientAssets Reason = iota + 1
	ReasonInsufficientRows
	ReasonNonFinite
	ReasonZeroVariance
	ReasonRankDeficient
	ReasonFactorization
)

func (r Reason) String() string {
	switch r {
	case ReasonInsufficientAssets:
		return "insufficient assets"
	case ReasonInsufficientRows:
		return "insufficient return rows"
	case ReasonNonFinite:
		return "non-finite input"
	case ReasonZeroVariance:
		return "zero variance"
	case ReasonRankDeficient:
		return "rank-deficient covariance"
	case ReasonFactorization:
		return "factorization failed"
	}
	return "unknown"
}

// ErrComputation 所有 ComputationError 都满足 errors.Is(err, ErrComputation)
var ErrComputation = errors.New("eigen decomposition failed")

// ComputationError 特征分解失败
type ComputationError struct {
	Reason Reason
	Detail string
}

func (e *ComputationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%v: %v", ErrComputation, e.Reason)
	}
	return fmt.Sprintf("%v: %v: %s", ErrComputation, e.Reason, e.Detail)
}

func (e *ComputationError) Unwrap() error { return ErrComputation }

// Decomposition 前 k 个主成分, 特征向量与解释方差比例一一对应, 按比例从大到小排列
type Decomposition struct {
	Vectors [][]float64
	Ratios  []float64
}

// K 主成分数量
func (d Decomposition) K() int {
	return len(d.Vectors)
}

// 秩判断使用与 numpy matrix_rank 相同的相对容差
const machineEpsilon = 2.220446049250313e-16

// Decompose 计算收益率协方差矩阵的前 min(topEigen, 资产数) 个主成分
func Decompose(r ReturnMatrix, topEigen int) (Decomposition, error) {
	rows, n := r.Dims()
	if n < 1 {
		return Decomposition{}, &ComputationError{Reason: ReasonInsufficientAssets}
	}
	if rows < 2 {
		return Decomposition{}, &ComputationError{Reason: ReasonInsufficientRows, Detail: fmt.Sprintf("%d rows", rows)}
	}
	if topEigen < 1 {
		return Decomposition{}, &ComputationError{Reason: ReasonInsufficientAssets, Detail: fmt.Sprintf("top_eigen=%d", topEigen)}
	}
	for t := 0; t < rows; t++ {
		for j := 0; j < n; j++ {
			v := r.At(t, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return Decomposition{}, &ComputationError{Reason: ReasonNonFinite, Detail: fmt.Sprintf("cell (%d,%d)", t, j)}
			}
		}
	}

	k := topEigen
	if k > n {
		k = n
	}

	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, r.Matrix(), nil)

	total := mat.Trace(&cov)
	if !(total > 0) {
		return Decomposition{}, &ComputationError{Reason: ReasonZeroVariance}
	}

	var es mat.EigenSym
	if ok := es.Factorize(&cov, true); !ok {
		return Decomposition{}, &ComputationError{Reason: ReasonFactorization}
	}
	values := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	// EigenSym 按升序给出特征值
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] > values[idx[b]] })

	largest := values[idx[0]]
	if !(largest > 0) {
		return Decomposition{}, &ComputationError{Reason: ReasonZeroVariance}
	}
	maxDim := rows
	if n > maxDim {
		maxDim = n
	}
	tol := float64(maxDim) * machineEpsilon * largest

	d := Decomposition{
		Vectors: make([][]float64, 0, k),
		Ratios:  make([]float64, 0, k),
	}
	for c := 0; c < k; c++ {
		col := idx[c]
		if values[col] <= tol {
			return Decomposition{}, &ComputationError{
				Reason: ReasonRankDeficient,
				Detail: fmt.Sprintf("component %d has variance %g", c+1, values[col]),
			}
		}
		vec := mat.Col(nil, col, &vecs)
		orient(vec)
		d.Vectors = append(d.Vectors, vec)
		d.Ratios = append(d.Ratios, values[col]/total)
	}
	return d, nil
}

// orient 翻转符号使绝对值最大的分量为正
func orient(v []float64) {
	best := 0
	for i := range v {
		if math.Abs(v[i]) > math.Abs(v[best]) {
			best = i
		}
	}
	if v[best] < 0 {
		for i := range v {
			v[i] = -v[i]
		}
	}
}
