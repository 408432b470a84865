package model

import (
	"fmt"

	"github.com/YuminosukeSato/mlpipe/pkg/errors"
)

// EstimatorState はモデルの学習状態を表す
type EstimatorState int

const (
	// NotFitted はモデルが未学習の状態
	NotFitted EstimatorState = iota
	// Fitted はモデルが学習済みの状態
	Fitted
)

// BaseEstimator は全てのモデルの基底となる構造体。
// フィールドは gob で永続化できるよう公開している。
type BaseEstimator struct {
	State     EstimatorState
	NFeatures int
}

// IsFitted はモデルが学習済みかどうかを返す
func (e *BaseEstimator) IsFitted() bool {
	return e.State == Fitted
}

// SetFitted はモデルを学習済み状態に設定し、学習時の特徴量数を記録する
func (e *BaseEstimator) SetFitted(nFeatures int) {
	e.State = Fitted
	e.NFeatures = nFeatures
}

// Reset はモデルを初期状態にリセットする
func (e *BaseEstimator) Reset() {
	e.State = NotFitted
	e.NFeatures = 0
}

// CheckPredictInput は学習済みであることと特徴量数の一致を検証する
func (e *BaseEstimator) CheckPredictInput(name string, nFeatures int) error {
	if !e.IsFitted() {
		return errors.NewNotFittedError(name, "Predict")
	}
	if nFeatures != e.NFeatures {
		return errors.NewDimensionError(fmt.Sprintf("%s.Predict", name), e.NFeatures, nFeatures, 1)
	}
	return nil
}
