package errors

import (
	"fmt"
	"log"

	"github.com/rs/zerolog"
)

// WarnFunc は警告の出力先。警告は処理を止めない。
// ロガーを持つ層が log.Warnings で作り、推定器や指標関数に渡す。
type WarnFunc func(w error)

// Warn は w を出力先に渡す。f が nil なら標準 log に書く。
func (f WarnFunc) Warn(w error) {
	if f != nil {
		f(w)
		return
	}
	log.Printf("mlpipe-warning: %v", w)
}

// ConvergenceWarning は反復解法（Lasso の座標降下、Ridge の LSQR）が
// max_iter 以内に収束しなかったことを表す。結果の係数はそのまま使われる。
type ConvergenceWarning struct {
	Algorithm  string
	Iterations int
	Message    string
}

func NewConvergenceWarning(algorithm string, iterations int, message string) *ConvergenceWarning {
	return &ConvergenceWarning{Algorithm: algorithm, Iterations: iterations, Message: message}
}

func (w *ConvergenceWarning) Error() string {
	msg := w.Message
	if msg == "" {
		msg = "consider increasing max_iter or tol"
	}
	return fmt.Sprintf("%s failed to converge after %d iterations: %s", w.Algorithm, w.Iterations, msg)
}

func (w *ConvergenceWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", "ConvergenceWarning").
		Str("algorithm", w.Algorithm).
		Int("iterations", w.Iterations).
		Str("message", w.Message)
}

// UndefinedMetricWarning は指標が定義できず、代わりの値で置き換えたことを表す
// （正解値の分散が 0 のときの R² など）。
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64
}

func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("%s is ill-defined (%s); reporting %g", w.Metric, w.Condition, w.Result)
}

func (w *UndefinedMetricWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", "UndefinedMetricWarning").
		Str("metric", w.Metric).
		Str("condition", w.Condition).
		Float64("result", w.Result)
}
