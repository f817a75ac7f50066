package model

import (
	"fmt"
	"math"

	"github.com/symptom-dx-server/internal/domain"
)

// LeafFeature marks a node as a leaf.
const LeafFeature = -1

// leafSumTolerance bounds how far a leaf distribution may drift from 1.
const leafSumTolerance = 1e-6

// Node is one flat-array CART node over binary features. Internal nodes send
// absent features (0) to Left and present features to Right. Leaves carry the
// class distribution of their training samples, normalised to sum to 1.
type Node struct {
	Feature int
	Left    int
	Right   int
	Value   []float64
}

// IsLeaf reports whether the node is terminal.
func (n *Node) IsLeaf() bool {
	return n.Feature == LeafFeature
}

// Tree is a single decision tree; Nodes[0] is the root.
type Tree struct {
	Nodes []Node
}

func (t *Tree) leaf(vec domain.FeatureVector) []float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			return n.Value
		}
		if vec[n.Feature] == 0 {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Depth returns the longest root-to-leaf path length.
func (t *Tree) Depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	if len(t.Nodes) == 0 {
		return 0
	}
	return walk(0)
}

// RandomForest averages the leaf distributions of its trees.
type RandomForest struct {
	Trees       []Tree
	NumClasses  int
	NumFeatures int
}

// Validate checks the structural integrity of a decoded forest.
func (f *RandomForest) Validate() error {
	if f == nil {
		return fmt.Errorf("forest is nil")
	}
	if len(f.Trees) == 0 {
		return fmt.Errorf("forest has no trees")
	}
	if f.NumClasses <= 0 {
		return fmt.Errorf("forest has %d classes", f.NumClasses)
	}
	for ti := range f.Trees {
		nodes := f.Trees[ti].Nodes
		if len(nodes) == 0 {
			return fmt.Errorf("tree %d is empty", ti)
		}
		for ni := range nodes {
			n := &nodes[ni]
			if n.IsLeaf() {
				if len(n.Value) != f.NumClasses {
					return fmt.Errorf("tree %d node %d: leaf has %d values, want %d", ti, ni, len(n.Value), f.NumClasses)
				}
				if err := checkDistribution(n.Value); err != nil {
					return fmt.Errorf("tree %d node %d: %w", ti, ni, err)
				}
				continue
			}
			if n.Feature < 0 || n.Feature >= f.NumFeatures {
				return fmt.Errorf("tree %d node %d: feature %d out of range", ti, ni, n.Feature)
			}
			// children always follow their parent, which also rules out cycles
			if n.Left <= ni || n.Left >= len(nodes) || n.Right <= ni || n.Right >= len(nodes) {
				return fmt.Errorf("tree %d node %d: child index out of range", ti, ni)
			}
		}
	}
	return nil
}

// checkDistribution rejects leaf values that are negative, NaN, or do not
// sum to 1.
func checkDistribution(values []float64) error {
	var sum float64
	for c, v := range values {
		if !(v >= 0) || math.IsInf(v, 0) {
			return fmt.Errorf("leaf value %d is %v", c, v)
		}
		sum += v
	}
	if !(math.Abs(sum-1) <= leafSumTolerance) {
		return fmt.Errorf("leaf values sum to %v, want 1", sum)
	}
	return nil
}

// PredictProba returns the mean class distribution over all trees, indexed by
// encoder code. The result sums to 1.
func (f *RandomForest) PredictProba(vec domain.FeatureVector) ([]float64, error) {
	if len(vec) != f.NumFeatures {
		return nil, domain.InvalidInput(fmt.Sprintf("feature vector has length %d, model expects %d", len(vec), f.NumFeatures))
	}

	proba := make([]float64, f.NumClasses)
	for i := range f.Trees {
		for c, p := range f.Trees[i].leaf(vec) {
			proba[c] += p
		}
	}

	var sum float64
	for c := range proba {
		proba[c] /= float64(len(f.Trees))
		sum += proba[c]
	}
	if sum > 0 && math.Abs(sum-1) > 1e-12 {
		for c := range proba {
			proba[c] /= sum
		}
	}
	return proba, nil
}

// Argmax returns the index of the largest value; the lowest index wins ties.
func Argmax(values []float64) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}
