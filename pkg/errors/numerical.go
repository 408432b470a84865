package errors

import (
	"math"
)

// maxReported は NumericalInstabilityError に載せる値の上限
const maxReported = 10

func nonFinite(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

// CheckVector は values に NaN/Inf があれば NumericalInstabilityError を返す。
// iteration は反復解法の何回目で検出したか（無ければ 0）。
func CheckVector(operation string, values []float64, iteration int) error {
	var bad []float64
	for _, v := range values {
		if nonFinite(v) {
			if bad = append(bad, v); len(bad) == maxReported {
				break
			}
		}
	}
	if len(bad) > 0 {
		return NewNumericalInstabilityError(operation, bad, iteration)
	}
	return nil
}

// CheckMatrix は行列版の CheckVector。入力検証（学習データに NaN が残っていないか）に使う。
func CheckMatrix(operation string, m interface{ At(int, int) float64 }, rows, cols, iteration int) error {
	var bad []float64
	for i := 0; i < rows && len(bad) < maxReported; i++ {
		for j := 0; j < cols && len(bad) < maxReported; j++ {
			if v := m.At(i, j); nonFinite(v) {
				bad = append(bad, v)
			}
		}
	}
	if len(bad) > 0 {
		return NewNumericalInstabilityError(operation, bad, iteration)
	}
	return nil
}
