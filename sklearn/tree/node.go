package tree

// Node is one node of a binary regression tree stored in a flat slice.
// Samples with row[Feature] <= Threshold go to Left.
type Node struct {
	Feature   int // -1 for a leaf
	Threshold float64
	Left      int
	Right     int
	Value     float64
	Samples   int
	Gain      float64
}

// IsLeaf reports whether the node has no children.
func (n Node) IsLeaf() bool {
	return n.Feature < 0
}

// Nodes is a fitted tree. Index 0 is the root.
type Nodes []Node

// PredictRow walks the tree for one row given as a column accessor.
func (ns Nodes) PredictRow(at func(j int) float64) float64 {
	i := 0
	for !ns[i].IsLeaf() {
		if at(ns[i].Feature) <= ns[i].Threshold {
			i = ns[i].Left
		} else {
			i = ns[i].Right
		}
	}
	return ns[i].Value
}

// Scale multiplies every leaf value by f.
func (ns Nodes) Scale(f float64) {
	for i := range ns {
		if ns[i].IsLeaf() {
			ns[i].Value *= f
		}
	}
}

// Depth returns the length of the longest root-to-leaf path.
func (ns Nodes) Depth() int {
	if len(ns) == 0 {
		return 0
	}
	var walk func(i int) int
	walk = func(i int) int {
		if ns[i].IsLeaf() {
			return 0
		}
		return 1 + max(walk(ns[i].Left), walk(ns[i].Right))
	}
	return walk(0)
}

// NLeaves returns the number of leaves.
func (ns Nodes) NLeaves() int {
	n := 0
	for _, node := range ns {
		if node.IsLeaf() {
			n++
		}
	}
	return n
}

// AddImportances accumulates the split gains of the tree per feature into dst.
func (ns Nodes) AddImportances(dst []float64) {
	for _, node := range ns {
		if !node.IsLeaf() {
			dst[node.Feature] += node.Gain
		}
	}
}

// Normalize scales v to sum to one. A zero vector is left unchanged.
func Normalize(v []float64) []float64 {
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	if sum > 0 {
		for i := range v {
			v[i] /= sum
		}
	}
	return v
}
