package tree

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Builder grows a regression tree by exact greedy search on first and second
// order statistics. A split maximises
//
//	gain = 0.5 * (GL²/(HL+λ) + GR²/(HR+λ) - G²/(H+λ)) - γ
//
// and a leaf predicts -G/(H+λ). With g = -y, h = 1 and λ = 0 this is the
// squared-error CART tree and the leaf value is the mean target.
type Builder struct {
	MaxDepth        int // 0 means unlimited
	MinSamplesSplit int
	MinSamplesLeaf  int
	MinChildWeight  float64
	Lambda          float64
	Gamma           float64
	// MaxFeatures limits the features examined per node; 0 means all.
	MaxFeatures int
	Rand        *rand.Rand
}

// Columns copies X into column-major slices, the layout Build expects.
func Columns(X mat.Matrix) [][]float64 {
	_, c := X.Dims()
	cols := make([][]float64, c)
	for j := range cols {
		cols[j] = mat.Col(nil, j, X)
	}
	return cols
}

// Build grows a tree over the given rows. rows may repeat indices, which
// weighs them as in a bootstrap sample.
func (b *Builder) Build(cols [][]float64, grad, hess []float64, rows []int) Nodes {
	g := &grower{
		Builder: b,
		cols:    cols,
		grad:    grad,
		hess:    hess,
		order:   make([]int, len(rows)),
	}
	g.grow(append([]int(nil), rows...), 0)
	return g.nodes
}

type grower struct {
	*Builder
	cols       [][]float64
	grad, hess []float64
	nodes      Nodes
	order      []int
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

func (g *grower) grow(rows []int, depth int) int {
	G, H := 0.0, 0.0
	for _, i := range rows {
		G += g.grad[i]
		H += g.hess[i]
	}
	id := len(g.nodes)
	g.nodes = append(g.nodes, Node{
		Feature: -1,
		Value:   -G / (H + g.Lambda),
		Samples: len(rows),
	})

	if g.MaxDepth > 0 && depth >= g.MaxDepth {
		return id
	}
	if len(rows) < max(g.MinSamplesSplit, 2) || g.constantGrad(rows) {
		return id
	}

	best, ok := g.bestSplit(rows, G, H)
	if !ok {
		return id
	}

	left := make([]int, 0, len(rows))
	right := make([]int, 0, len(rows))
	for _, i := range rows {
		if g.cols[best.feature][i] <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := g.grow(left, depth+1)
	r := g.grow(right, depth+1)
	g.nodes[id].Feature = best.feature
	g.nodes[id].Threshold = best.threshold
	g.nodes[id].Gain = best.gain
	g.nodes[id].Left = l
	g.nodes[id].Right = r
	return id
}

func (g *grower) constantGrad(rows []int) bool {
	first := g.grad[rows[0]]
	for _, i := range rows[1:] {
		if g.grad[i] != first {
			return false
		}
	}
	return true
}

func (g *grower) features() []int {
	p := len(g.cols)
	if g.MaxFeatures <= 0 || g.MaxFeatures >= p || g.Rand == nil {
		feats := make([]int, p)
		for j := range feats {
			feats[j] = j
		}
		return feats
	}
	return g.Rand.Perm(p)[:g.MaxFeatures]
}

func (g *grower) bestSplit(rows []int, G, H float64) (split, bool) {
	minLeaf := max(g.MinSamplesLeaf, 1)
	parent := G * G / (H + g.Lambda)
	best := split{gain: 0}
	found := false

	order := g.order[:len(rows)]
	for _, f := range g.features() {
		col := g.cols[f]
		copy(order, rows)
		sort.Slice(order, func(a, b int) bool { return col[order[a]] < col[order[b]] })

		GL, HL := 0.0, 0.0
		for k := 0; k < len(order)-1; k++ {
			i := order[k]
			GL += g.grad[i]
			HL += g.hess[i]
			v, next := col[i], col[order[k+1]]
			if v == next {
				continue
			}
			nL := k + 1
			if nL < minLeaf || len(order)-nL < minLeaf {
				continue
			}
			GR, HR := G-GL, H-HL
			if HL < g.MinChildWeight || HR < g.MinChildWeight {
				continue
			}
			gain := 0.5*(GL*GL/(HL+g.Lambda)+GR*GR/(HR+g.Lambda)-parent) - g.Gamma
			if gain > best.gain && !math.IsInf(gain, 0) {
				threshold := v + (next-v)/2
				if threshold == next {
					threshold = v
				}
				best = split{feature: f, threshold: threshold, gain: gain}
				found = true
			}
		}
	}
	return best, found
}
