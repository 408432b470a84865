package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindMissingInput
	KindParse
	KindIO
	KindSchemaMismatch
	KindDataQuality
	KindFitFailure
	KindPersistence
)

var kindNames = map[Kind]string{
	KindUnknown:        "unknown",
	KindMissingInput:   "missing_input",
	KindParse:          "parse",
	KindIO:             "io",
	KindSchemaMismatch: "schema_mismatch",
	KindDataQuality:    "data_quality",
	KindFitFailure:     "fit_failure",
	KindPersistence:    "persistence",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// PipelineError は各ステージから呼び出し元へ伝播する唯一のエラー型です。
// Kind で分類され、発生箇所のスタックトレースを保持します。
type PipelineError struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	msg := fmt.Sprintf("mlpipe: %s: %s", e.Op, e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *PipelineError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("kind", e.Kind.String()).
		Str("message", e.Message).
		Str("type", "PipelineError")
	if e.Err != nil {
		event.Str("cause", e.Err.Error())
	}
}

// NewPipelineError は原因を持たない PipelineError を作成します。
func NewPipelineError(kind Kind, op, format string, args ...interface{}) error {
	return errors.WithStackDepth(&PipelineError{
		Kind:    kind,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}, 1)
}

// WrapKind は err を分類付きでラップします。err が nil なら nil を返します。
func WrapKind(err error, kind Kind, op, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.WithStackDepth(&PipelineError{
		Kind:    kind,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}, 1)
}

// Classify は未分類のエラーだけを kind でラップし、既に分類済みのエラーはそのまま返します。
func Classify(err error, kind Kind, op string) error {
	if err == nil {
		return nil
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return err
	}
	return errors.WithStackDepth(&PipelineError{Kind: kind, Op: op, Err: err}, 1)
}

// KindOf は err の分類を返します。分類がなければ KindUnknown です。
func KindOf(err error) Kind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

// IsKind は err が kind に分類されているかを判定します。
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ErrorLogger is the subset of pkg/log.Logger needed to report a failure.
type ErrorLogger interface {
	Error(msg string, fields ...any)
}

// Logged reports err at error severity on l and returns it unchanged.
func Logged(l ErrorLogger, err error) error {
	if err == nil || l == nil {
		return err
	}
	fields := []any{"error", err, "error.kind", KindOf(err).String()}
	var pe *PipelineError
	if errors.As(err, &pe) {
		fields = append(fields, "ml.operation", pe.Op)
	}
	l.Error("pipeline step failed", fields...)
	return err
}
