// Package errors はパイプライン全体のエラーと警告を扱う。
//
// 推定器が返す型付きエラー（NotFittedError, DimensionError など）と、
// ステージ境界で付与する分類付きの PipelineError の二層になっている。
// どちらも cockroachdb/errors のスタックトレースを持つ。
package errors

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

var (
	// ErrEmptyData は行または列が 0 のデータ
	ErrEmptyData = New("empty data")

	// ErrSingularMatrix は正規方程式が解けない
	ErrSingularMatrix = New("singular matrix")

	// ErrNoViableModel は評価したモデルがすべて失敗した
	ErrNoViableModel = New("no viable model")
)

// NotFittedError は Fit 前に Predict / Transform を呼んだ
type NotFittedError struct {
	ModelName string
	Method    string
}

func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("mlpipe: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

func (e *NotFittedError) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", "NotFittedError").Str("model_name", e.ModelName).Str("method", e.Method)
}

// DimensionError は行数（Axis 0）または特徴量数（Axis 1）の不一致
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int
}

func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

func (e *DimensionError) axisName() string {
	if e.Axis == 0 {
		return "rows"
	}
	return "features"
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("mlpipe: %s: dimension mismatch on axis %d (%s). Expected %d, got %d",
		e.Op, e.Axis, e.axisName(), e.Expected, e.Got)
}

func (e *DimensionError) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", "DimensionError").
		Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Str("axis", e.axisName())
}

// ValidationError はハイパーパラメータや設定値が不正
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func NewValidationError(param, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{ParamName: param, Reason: reason, Value: value})
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("mlpipe: invalid %s: %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

func (e *ValidationError) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", "ValidationError").
		Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value)
}

// ValueError は入力データの値そのものが使えない（y が列ベクトルでない等）
type ValueError struct {
	Op      string
	Message string
}

func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

func (e *ValueError) Error() string {
	return "mlpipe: " + e.Op + ": " + e.Message
}

// ModelError は推定器内部の失敗。Kind は短い説明、Err は原因。
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func NewModelError(op, kind string, err error) error {
	return errors.WithStack(&ModelError{Op: op, Kind: kind, Err: err})
}

func (e *ModelError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("mlpipe: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("mlpipe: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *ModelError) Unwrap() error         { return e.Err }

// NumericalInstabilityError は計算結果や入力に NaN / Inf が現れた
type NumericalInstabilityError struct {
	Operation string
	Values    []float64
	Iteration int
}

func NewNumericalInstabilityError(operation string, values []float64, iteration int) error {
	return errors.WithStack(&NumericalInstabilityError{Operation: operation, Values: values, Iteration: iteration})
}

func (e *NumericalInstabilityError) Error() string {
	shown := e.Values
	if len(shown) > 5 {
		shown = shown[:5]
	}
	parts := make([]string, len(shown), len(shown)+1)
	for i, v := range shown {
		parts[i] = fmt.Sprintf("%.6g", v)
	}
	if len(e.Values) > len(shown) {
		parts = append(parts, "...")
	}
	return fmt.Sprintf("mlpipe: numerical instability detected in %s at iteration %d. Values: [%s]",
		e.Operation, e.Iteration, strings.Join(parts, ", "))
}

// cockroachdb/errors の薄いラッパー。呼び出し側はこのパッケージだけを import する。

func Is(err, target error) bool             { return errors.Is(err, target) }
func As(err error, target interface{}) bool { return errors.As(err, target) }
func New(message string) error              { return errors.New(message) }
func Newf(format string, args ...any) error { return errors.Newf(format, args...) }
func Wrap(err error, message string) error  { return errors.Wrap(err, message) }
func Mark(err, reference error) error       { return errors.Mark(err, reference) }

func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}
