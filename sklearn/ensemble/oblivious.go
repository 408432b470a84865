package ensemble

import (
	"encoding/gob"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlpipe/core/model"
	"github.com/YuminosukeSato/mlpipe/pkg/errors"
	"github.com/YuminosukeSato/mlpipe/sklearn/tree"
)

func init() {
	gob.Register(&ObliviousBoostingRegressor{})
}

// ObliviousTree uses the same (feature, threshold) test at every node of a
// level. Leaf index bit d is set when row[Features[d]] > Thresholds[d].
type ObliviousTree struct {
	Features   []int
	Thresholds []float64
	Leaves     []float64
}

// Leaf returns the leaf index of a row.
func (t ObliviousTree) Leaf(at func(int) float64) int {
	idx := 0
	for d, f := range t.Features {
		if at(f) > t.Thresholds[d] {
			idx |= 1 << d
		}
	}
	return idx
}

// ObliviousBoostingRegressor is gradient boosting with symmetric (oblivious)
// trees over quantised feature borders, in the manner of CatBoost.
type ObliviousBoostingRegressor struct {
	model.BaseEstimator

	NEstimators  int
	LearningRate float64
	Depth        int
	L2LeafReg    float64
	BorderCount  int
	NJobs        int

	Borders   [][]float64
	BaseScore float64
	Trees     []ObliviousTree
}

// NewObliviousBoostingRegressor returns the CatBoost-style defaults:
// 300 rounds, learning rate 0.1, depth 6, l2_leaf_reg 3, 254 borders.
func NewObliviousBoostingRegressor() *ObliviousBoostingRegressor {
	return &ObliviousBoostingRegressor{
		NEstimators:  300,
		LearningRate: 0.1,
		Depth:        6,
		L2LeafReg:    3,
		BorderCount:  254,
	}
}

// Fit quantises the features once and then grows NEstimators trees level by level.
func (ob *ObliviousBoostingRegressor) Fit(X, y mat.Matrix) error {
	const op = "ObliviousBoostingRegressor.Fit"
	if ob.NEstimators <= 0 {
		return errors.NewValidationError("n_estimators", "must be positive", ob.NEstimators)
	}
	if ob.Depth <= 0 || ob.Depth > 16 {
		return errors.NewValidationError("depth", "must be in [1, 16]", ob.Depth)
	}
	cols, target, err := tree.CheckFitInput(op, X, y)
	if err != nil {
		return err
	}
	n, p := len(target), len(cols)

	ob.Borders = make([][]float64, p)
	sorted := make([][]int, p)
	for j, col := range cols {
		ob.Borders[j] = borders(col, ob.BorderCount)
		order := make([]int, n)
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool { return col[order[a]] < col[order[b]] })
		sorted[j] = order
	}

	ob.BaseScore = mean(target)
	pred := make([]float64, n)
	for i := range pred {
		pred[i] = ob.BaseScore
	}
	grad := make([]float64, n)
	leaf := make([]int, n)

	ob.Trees = make([]ObliviousTree, 0, ob.NEstimators)
	for m := 0; m < ob.NEstimators; m++ {
		for i := range grad {
			grad[i] = pred[i] - target[i]
			leaf[i] = 0
		}
		t := ob.growTree(cols, sorted, grad, leaf)
		for i := range pred {
			pred[i] += t.Leaves[leaf[i]]
		}
		ob.Trees = append(ob.Trees, t)
	}
	if err := errors.CheckVector(op, pred, ob.NEstimators); err != nil {
		return err
	}

	ob.SetFitted(p)
	return nil
}

// growTree picks one split per level and leaves leaf[i] at the final leaf of row i.
func (ob *ObliviousBoostingRegressor) growTree(cols [][]float64, sorted [][]int, grad []float64, leaf []int) ObliviousTree {
	var t ObliviousTree
	lambda := ob.L2LeafReg

	for d := 0; d < ob.Depth; d++ {
		nLeaves := 1 << d
		G := make([]float64, nLeaves)
		H := make([]float64, nLeaves)
		for i, g := range grad {
			G[leaf[i]] += g
			H[leaf[i]]++
		}

		bestScore, bestF, bestT := 0.0, -1, 0.0
		GL := make([]float64, nLeaves)
		HL := make([]float64, nLeaves)
		for f, col := range cols {
			if len(ob.Borders[f]) == 0 {
				continue
			}
			for l := range GL {
				GL[l], HL[l] = 0, 0
			}
			order := sorted[f]
			k := 0
			for _, border := range ob.Borders[f] {
				for k < len(order) && col[order[k]] <= border {
					i := order[k]
					GL[leaf[i]] += grad[i]
					HL[leaf[i]]++
					k++
				}
				score := 0.0
				for l := 0; l < nLeaves; l++ {
					gr, hr := G[l]-GL[l], H[l]-HL[l]
					score += GL[l]*GL[l]/(HL[l]+lambda) + gr*gr/(hr+lambda)
				}
				if bestF < 0 || score > bestScore {
					bestScore, bestF, bestT = score, f, border
				}
			}
		}
		if bestF < 0 {
			break
		}

		t.Features = append(t.Features, bestF)
		t.Thresholds = append(t.Thresholds, bestT)
		for i := range leaf {
			if cols[bestF][i] > bestT {
				leaf[i] |= 1 << d
			}
		}
	}

	nLeaves := 1 << len(t.Features)
	G := make([]float64, nLeaves)
	H := make([]float64, nLeaves)
	for i, g := range grad {
		G[leaf[i]] += g
		H[leaf[i]]++
	}
	t.Leaves = make([]float64, nLeaves)
	for l := range t.Leaves {
		t.Leaves[l] = -G[l] / (H[l] + lambda) * ob.LearningRate
	}
	return t
}

// borders returns at most maxBorders thresholds between distinct values of
// col, spread over the quantiles when there are more candidates than that.
func borders(col []float64, maxBorders int) []float64 {
	values := append([]float64(nil), col...)
	sort.Float64s(values)
	uniq := values[:0]
	for i, v := range values {
		if i == 0 || v != values[i-1] {
			uniq = append(uniq, v)
		}
	}
	mids := make([]float64, 0, len(uniq))
	for i := 1; i < len(uniq); i++ {
		mids = append(mids, uniq[i-1]+(uniq[i]-uniq[i-1])/2)
	}
	if maxBorders <= 0 || len(mids) <= maxBorders {
		return mids
	}
	out := make([]float64, 0, maxBorders)
	for k := 0; k < maxBorders; k++ {
		b := mids[(k*len(mids)+len(mids)/2)/maxBorders]
		if len(out) == 0 || b != out[len(out)-1] {
			out = append(out, b)
		}
	}
	return out
}

// Predict sums the base score and every tree's leaf value.
func (ob *ObliviousBoostingRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	_, c := X.Dims()
	if err := ob.CheckPredictInput("ObliviousBoostingRegressor", c); err != nil {
		return nil, err
	}
	return predictRows(X, ob.NJobs, func(at func(int) float64) float64 {
		s := ob.BaseScore
		for _, t := range ob.Trees {
			s += t.Leaves[t.Leaf(at)]
		}
		return s
	}), nil
}

// GetParams returns the hyperparameters.
func (ob *ObliviousBoostingRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"iterations":    ob.NEstimators,
		"learning_rate": ob.LearningRate,
		"depth":         ob.Depth,
		"l2_leaf_reg":   ob.L2LeafReg,
		"border_count":  ob.BorderCount,
	}
}

func (ob *ObliviousBoostingRegressor) String() string {
	return fmt.Sprintf("ObliviousBoostingRegressor(iterations=%d, learning_rate=%g, depth=%d)",
		ob.NEstimators, ob.LearningRate, ob.Depth)
}
