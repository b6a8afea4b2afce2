package eigen

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// DataError 价格窗口数据异常 (非正数/非有限值/长度不一致)
type DataError struct {
	Asset  int // 列号, -1 表示整体错误
	Detail string
}

func (e *DataError) Error() string {
	if e.Asset < 0 {
		return "data error: " + e.Detail
	}
	return fmt.Sprintf("data error in column %d: %s", e.Asset, e.Detail)
}

// ReturnMatrix 收益率矩阵, 行是时间, 列是资产
type ReturnMatrix struct {
	m *mat.Dense
}

// Dims 返回 (行数, 资产数)
func (r ReturnMatrix) Dims() (rows, assets int) {
	if r.m == nil {
		return 0, 0
	}
	return r.m.Dims()
}

// At 读取单元格
func (r ReturnMatrix) At(t, asset int) float64 {
	return r.m.At(t, asset)
}

// Matrix 底层矩阵
func (r ReturnMatrix) Matrix() mat.Matrix {
	return r.m
}

// NewReturnMatrix 由行数据直接构建收益率矩阵
func NewReturnMatrix(rows [][]float64) (ReturnMatrix, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return ReturnMatrix{}, &DataError{Asset: -1, Detail: "empty return matrix"}
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return ReturnMatrix{}, &DataError{Asset: -1, Detail: fmt.Sprintf("row %d has %d columns, want %d", i, len(row), cols)}
		}
		data = append(data, row...)
	}
	return ReturnMatrix{m: mat.NewDense(len(rows), cols, data)}, nil
}

// BuildReturns 把每个资产长度为 lookback+1 的价格窗口转换成 lookback 行的收益率矩阵.
// 第一行 (没有前值) 被丢弃.
func BuildReturns(windows [][]float64) (ReturnMatrix, error) {
	if len(windows) == 0 {
		return ReturnMatrix{}, &DataError{Asset: -1, Detail: "no assets"}
	}
	length := len(windows[0])
	if length < 2 {
		return ReturnMatrix{}, &DataError{Asset: 0, Detail: fmt.Sprintf("window of %d prices yields no returns", length)}
	}

	rows := length - 1
	cols := len(windows)
	r := mat.NewDense(rows, cols, nil)
	for j, w := range windows {
		if len(w) != length {
			return ReturnMatrix{}, &DataError{Asset: j, Detail: fmt.Sprintf("window has %d prices, want %d", len(w), length)}
		}
		for t, p := range w {
			if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
				return ReturnMatrix{}, &DataError{Asset: j, Detail: fmt.Sprintf("invalid price %v at offset %d", p, t)}
			}
		}
		for t := 1; t < length; t++ {
			ret := w[t]/w[t-1] - 1
			if math.IsNaN(ret) || math.IsInf(ret, 0) {
				return ReturnMatrix{}, &DataError{Asset: j, Detail: fmt.Sprintf("non-finite return at offset %d", t)}
			}
			r.Set(t-1, j, ret)
		}
	}
	return ReturnMatrix{m: r}, nil
}
