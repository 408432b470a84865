package model

import (
	"fmt"
	"math"
	"sort"

	"github.com/YuminosukeSato/mlpipe/pkg/errors"
)

// ErrNoWeights はモデルが係数も特徴量重要度も持たない場合のエラー
var ErrNoWeights = errors.New("feature weights not available for this model")

// WeightSource は重みの由来
type WeightSource string

const (
	// SourceCoefficients は線形モデルの係数
	SourceCoefficients WeightSource = "coefficients"
	// SourceImportances は木モデルの不純度減少に基づく重要度
	SourceImportances WeightSource = "importances"
)

// ImportanceModel は特徴量重要度を公開するモデルのインターフェース
type ImportanceModel interface {
	GetFeatureImportances() []float64
}

// ModelWeights は特徴量ごとの重みを特徴量名と対応付けたもの
type ModelWeights struct {
	// ModelType はモデルの型名（*linear.Ridge 等）
	ModelType string

	Source WeightSource

	// Features と Values は同じ長さで、同じ順序
	Features []string
	Values   []float64

	// Intercept は線形モデルの切片（それ以外は 0）
	Intercept float64
}

// ExtractWeights は学習済みモデルから重みを取り出す。
// 線形モデルは係数、木モデルは特徴量重要度を返し、どちらも無ければ ErrNoWeights。
func ExtractWeights(m Regressor, features []string) (*ModelWeights, error) {
	if m == nil || !m.IsFitted() {
		return nil, errors.NewNotFittedError(fmt.Sprintf("%T", m), "ExtractWeights")
	}
	mw := &ModelWeights{ModelType: fmt.Sprintf("%T", m), Features: append([]string(nil), features...)}
	switch v := m.(type) {
	case LinearModel:
		mw.Source = SourceCoefficients
		mw.Values = v.Weights()
		mw.Intercept = v.Intercept()
	case ImportanceModel:
		mw.Source = SourceImportances
		mw.Values = append([]float64(nil), v.GetFeatureImportances()...)
	default:
		return nil, ErrNoWeights
	}
	if err := mw.Validate(); err != nil {
		return nil, err
	}
	return mw, nil
}

// Validate はModelWeightsの妥当性を検証
func (mw *ModelWeights) Validate() error {
	if len(mw.Values) == 0 {
		return errors.NewValueError("ModelWeights.Validate", "no weights")
	}
	if len(mw.Values) != len(mw.Features) {
		return errors.NewPipelineError(errors.KindSchemaMismatch, "ModelWeights.Validate",
			"mismatch: %d weights and %d features", len(mw.Values), len(mw.Features))
	}
	return nil
}

// Ranked は絶対値の大きい順に並べたインデックスを返す（同値は元の順序）
func (mw *ModelWeights) Ranked() []int {
	idx := make([]int, len(mw.Values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return math.Abs(mw.Values[idx[a]]) > math.Abs(mw.Values[idx[b]])
	})
	return idx
}
