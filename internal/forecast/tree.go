package forecast

import (
	"math/rand"
	"sort"
)

// TreeNode is one node of a fitted regression tree. Leaves carry the mean
// target of their samples; internal nodes split on feature <= threshold.
type TreeNode struct {
	Feature   int       `json:"f,omitempty"`
	Threshold float64   `json:"t,omitempty"`
	Left      *TreeNode `json:"l,omitempty"`
	Right     *TreeNode `json:"r,omitempty"`
	Value     float64   `json:"v"`
	Leaf      bool      `json:"leaf,omitempty"`
}

// Predict walks the tree for one feature row.
func (n *TreeNode) Predict(x []float64) float64 {
	node := n
	for !node.Leaf {
		if x[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Value
}

type treeConfig struct {
	maxDepth       int
	minSamplesLeaf int
	// fraction of features considered at each tree; 1.0 means all
	colSample float64
}

// growTree fits a variance-reduction regression tree on the sample index set.
// gain accumulates per-feature split gain for importance reporting.
func growTree(X [][]float64, y []float64, samples []int, cfg treeConfig, rng *rand.Rand, gain []float64) *TreeNode {
	features := featureSubset(len(X[0]), cfg.colSample, rng)
	return growNode(X, y, samples, features, cfg, 0, gain)
}

func growNode(X [][]float64, y []float64, samples, features []int, cfg treeConfig, depth int, gain []float64) *TreeNode {
	mean := meanTarget(y, samples)
	if depth >= cfg.maxDepth || len(samples) < 2*cfg.minSamplesLeaf {
		return &TreeNode{Leaf: true, Value: mean}
	}

	bestFeature, bestThreshold, bestGain := findBestSplit(X, y, samples, features, cfg.minSamplesLeaf)
	if bestFeature < 0 {
		return &TreeNode{Leaf: true, Value: mean}
	}
	if gain != nil {
		gain[bestFeature] += bestGain
	}

	var left, right []int
	for _, i := range samples {
		if X[i][bestFeature] <= bestThreshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	return &TreeNode{
		Feature:   bestFeature,
		Threshold: bestThreshold,
		Left:      growNode(X, y, left, features, cfg, depth+1, gain),
		Right:     growNode(X, y, right, features, cfg, depth+1, gain),
		Value:     mean,
	}
}

// findBestSplit scans each candidate feature with a sorted prefix-sum sweep
// and returns the split with the largest sum-of-squares reduction.
func findBestSplit(X [][]float64, y []float64, samples, features []int, minLeaf int) (int, float64, float64) {
	n := len(samples)
	bestFeature := -1
	var bestThreshold, bestGain float64

	var totalSum, totalSq float64
	for _, i := range samples {
		totalSum += y[i]
		totalSq += y[i] * y[i]
	}
	parentSSE := totalSq - totalSum*totalSum/float64(n)

	type pair struct{ v, t float64 }
	pairs := make([]pair, n)

	for _, f := range features {
		for k, i := range samples {
			pairs[k] = pair{v: X[i][f], t: y[i]}
		}
		sort.Slice(pairs, func(a, b int) bool { return pairs[a].v < pairs[b].v })

		var leftSum, leftSq float64
		for k := 0; k < n-1; k++ {
			leftSum += pairs[k].t
			leftSq += pairs[k].t * pairs[k].t

			if pairs[k].v == pairs[k+1].v {
				continue
			}
			nl, nr := k+1, n-k-1
			if nl < minLeaf || nr < minLeaf {
				continue
			}

			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq
			sse := (leftSq - leftSum*leftSum/float64(nl)) + (rightSq - rightSum*rightSum/float64(nr))
			g := parentSSE - sse
			if g > bestGain {
				bestGain = g
				bestFeature = f
				bestThreshold = (pairs[k].v + pairs[k+1].v) / 2
			}
		}
	}

	return bestFeature, bestThreshold, bestGain
}

func featureSubset(total int, colSample float64, rng *rand.Rand) []int {
	count := total
	if colSample > 0 && colSample < 1 {
		count = int(float64(total) * colSample)
		if count < 1 {
			count = 1
		}
	}
	perm := rng.Perm(total)[:count]
	sort.Ints(perm)
	return perm
}

func meanTarget(y []float64, samples []int) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, i := range samples {
		sum += y[i]
	}
	return sum / float64(len(samples))
}
