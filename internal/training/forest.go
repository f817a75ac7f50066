package training

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/symptom-dx-server/internal/domain"
	"github.com/symptom-dx-server/internal/model"
)

// Params are the random forest hyperparameters.
type Params struct {
	NEstimators     int
	MinSamplesSplit int
	MaxDepth        int // 0 = unlimited
	MaxFeatures     string
	Bootstrap       bool
	RandomState     int64
	Workers         int
}

// DefaultParams mirrors the production training setup.
func DefaultParams() Params {
	return Params{
		NEstimators:     100,
		MinSamplesSplit: 2,
		MaxFeatures:     "sqrt",
		Bootstrap:       true,
		RandomState:     67,
	}
}

// ParamsFromConfig converts configuration into Params, filling gaps with
// defaults.
func ParamsFromConfig(cfg domain.TrainingConfig) Params {
	p := DefaultParams()
	if cfg.NEstimators > 0 {
		p.NEstimators = cfg.NEstimators
	}
	if cfg.MinSamplesSplit >= 2 {
		p.MinSamplesSplit = cfg.MinSamplesSplit
	}
	if cfg.MaxDepth > 0 {
		p.MaxDepth = cfg.MaxDepth
	}
	if cfg.MaxFeatures != "" {
		p.MaxFeatures = cfg.MaxFeatures
	}
	p.Bootstrap = cfg.Bootstrap
	p.RandomState = cfg.RandomState
	return p
}

// featuresPerSplit resolves MaxFeatures ("sqrt", "log2", "all" or an integer)
// against the feature count.
func featuresPerSplit(raw string, numFeatures int) (int, error) {
	var n int
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "sqrt":
		n = int(math.Sqrt(float64(numFeatures)))
	case "log2":
		n = int(math.Log2(float64(numFeatures)))
	case "all", "none":
		n = numFeatures
	default:
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return 0, fmt.Errorf("invalid max_features %q", raw)
		}
		n = v
	}
	if n < 1 {
		n = 1
	}
	if n > numFeatures {
		n = numFeatures
	}
	return n, nil
}

// TrainForest fits a random forest of gini CART trees. Class codes in y must
// lie in [0, numClasses). Results are reproducible for a given RandomState
// regardless of Workers.
func TrainForest(ctx context.Context, x []domain.FeatureVector, y []int, numClasses int, params Params) (*model.RandomForest, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, fmt.Errorf("need matching non-empty samples and labels, got %d and %d", len(x), len(y))
	}
	if numClasses <= 0 {
		return nil, fmt.Errorf("invalid class count %d", numClasses)
	}
	if params.NEstimators <= 0 {
		return nil, fmt.Errorf("n_estimators must be positive")
	}
	if params.MinSamplesSplit < 2 {
		params.MinSamplesSplit = 2
	}
	numFeatures := len(x[0])
	for i, row := range x {
		if len(row) != numFeatures {
			return nil, fmt.Errorf("sample %d has %d features, want %d", i, len(row), numFeatures)
		}
		if y[i] < 0 || y[i] >= numClasses {
			return nil, fmt.Errorf("sample %d has label code %d out of range", i, y[i])
		}
	}
	mtry, err := featuresPerSplit(params.MaxFeatures, numFeatures)
	if err != nil {
		return nil, err
	}

	// per-tree seeds are drawn up front so worker scheduling cannot change them
	master := rand.New(rand.NewSource(params.RandomState))
	seeds := make([]int64, params.NEstimators)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	workers := params.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	trees := make([]model.Tree, params.NEstimators)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range trees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b := &treeBuilder{
				x:          x,
				y:          y,
				numClasses: numClasses,
				mtry:       mtry,
				params:     params,
				rng:        rand.New(rand.NewSource(seeds[i])),
			}
			trees[i] = b.build()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	forest := &model.RandomForest{
		Trees:       trees,
		NumClasses:  numClasses,
		NumFeatures: numFeatures,
	}
	if err := forest.Validate(); err != nil {
		return nil, fmt.Errorf("trained forest failed validation: %w", err)
	}
	return forest, nil
}

type treeBuilder struct {
	x          []domain.FeatureVector
	y          []int
	numClasses int
	mtry       int
	params     Params
	rng        *rand.Rand
	nodes      []model.Node
}

func (b *treeBuilder) build() model.Tree {
	n := len(b.x)
	samples := make([]int, n)
	if b.params.Bootstrap {
		for i := range samples {
			samples[i] = b.rng.Intn(n)
		}
	} else {
		for i := range samples {
			samples[i] = i
		}
	}
	b.grow(samples, 0)
	return model.Tree{Nodes: b.nodes}
}

// grow appends the subtree for samples and returns its root index. Children
// are always appended after their parent.
func (b *treeBuilder) grow(samples []int, depth int) int {
	counts := b.classCounts(samples)
	idx := len(b.nodes)
	b.nodes = append(b.nodes, model.Node{Feature: model.LeafFeature})

	if b.isTerminal(samples, counts, depth) {
		b.nodes[idx].Value = normalise(counts, len(samples))
		return idx
	}

	feature, ok := b.bestSplit(samples, counts)
	if !ok {
		b.nodes[idx].Value = normalise(counts, len(samples))
		return idx
	}

	var left, right []int
	for _, s := range samples {
		if b.x[s][feature] == 0 {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[idx] = model.Node{Feature: feature, Left: l, Right: r}
	return idx
}

func (b *treeBuilder) isTerminal(samples []int, counts []int, depth int) bool {
	if len(samples) < b.params.MinSamplesSplit {
		return true
	}
	if b.params.MaxDepth > 0 && depth >= b.params.MaxDepth {
		return true
	}
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

// bestSplit evaluates mtry random features and keeps drawing past mtry until
// at least one feature separates the samples.
func (b *treeBuilder) bestSplit(samples []int, parent []int) (int, bool) {
	numFeatures := len(b.x[0])
	order := b.rng.Perm(numFeatures)

	bestFeature := -1
	bestScore := math.Inf(1)
	leftCounts := make([]int, b.numClasses)

	for visited, f := range order {
		if visited >= b.mtry && bestFeature >= 0 {
			break
		}
		for c := range leftCounts {
			leftCounts[c] = 0
		}
		nLeft := 0
		for _, s := range samples {
			if b.x[s][f] == 0 {
				leftCounts[b.y[s]]++
				nLeft++
			}
		}
		nRight := len(samples) - nLeft
		if nLeft == 0 || nRight == 0 {
			continue
		}
		rightCounts := make([]int, b.numClasses)
		for c := range parent {
			rightCounts[c] = parent[c] - leftCounts[c]
		}
		score := (float64(nLeft)*gini(leftCounts, nLeft) + float64(nRight)*gini(rightCounts, nRight)) / float64(len(samples))
		if score < bestScore {
			bestScore = score
			bestFeature = f
		}
	}

	if bestFeature < 0 {
		return 0, false
	}
	return bestFeature, true
}

func (b *treeBuilder) classCounts(samples []int) []int {
	counts := make([]int, b.numClasses)
	for _, s := range samples {
		counts[b.y[s]]++
	}
	return counts
}

func gini(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	impurity := 1.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		impurity -= p * p
	}
	return impurity
}

func normalise(counts []int, n int) []float64 {
	out := make([]float64, len(counts))
	if n == 0 {
		return out
	}
	for i, c := range counts {
		out[i] = float64(c) / float64(n)
	}
	return out
}
