package forecast

import (
	"math/rand"
)

// ForestParams configures a random forest learner.
type ForestParams struct {
	NumTrees       int   `json:"num_trees"`
	MaxDepth       int   `json:"max_depth"`
	MinSamplesLeaf int   `json:"min_samples_leaf"`
	Seed           int64 `json:"seed"`
}

// ForestPreset returns the default forest hyperparameters.
func ForestPreset(seed int64) ForestParams {
	return ForestParams{NumTrees: 100, MaxDepth: 10, MinSamplesLeaf: 2, Seed: seed}
}

// RandomForest is a bagged ensemble of regression trees, each fitted on a
// bootstrap sample of the rows. Predictions average the trees.
type RandomForest struct {
	Params ForestParams `json:"params"`
	Trees  []*TreeNode  `json:"trees"`

	gain []float64
}

// NewRandomForest creates an unfitted forest with the given parameters.
func NewRandomForest(params ForestParams) *RandomForest {
	return &RandomForest{Params: params}
}

// Fit trains the forest.
func (f *RandomForest) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 || len(X) != len(y) {
		return &InsufficientDataError{Reason: "empty or mismatched training matrix"}
	}

	rng := rand.New(rand.NewSource(f.Params.Seed))
	n := len(X)
	f.gain = make([]float64, len(X[0]))
	cfg := treeConfig{maxDepth: f.Params.MaxDepth, minSamplesLeaf: f.Params.MinSamplesLeaf, colSample: 1.0}

	f.Trees = make([]*TreeNode, 0, f.Params.NumTrees)
	for t := 0; t < f.Params.NumTrees; t++ {
		samples := make([]int, n)
		for i := range samples {
			samples[i] = rng.Intn(n)
		}
		f.Trees = append(f.Trees, growTree(X, y, samples, cfg, rng, f.gain))
	}
	return nil
}

// Predict returns the mean prediction across all trees for one row.
func (f *RandomForest) Predict(x []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	var sum float64
	for _, tree := range f.Trees {
		sum += tree.Predict(x)
	}
	return sum / float64(len(f.Trees))
}

// FeatureGain returns accumulated split gain per feature from the last Fit.
func (f *RandomForest) FeatureGain() []float64 {
	return f.gain
}
