package model

import "fmt"

// Node is one node of a binary regression tree. Internal nodes route a sample
// left when features[Feature] <= Threshold, otherwise right.
type Node struct {
	Leaf      bool    `json:"leaf"`
	Value     float64 `json:"value"`
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
}

// TreeEnsemble covers both random forests (mean of trees) and gradient
// boosting (base score plus sum of trees).
type TreeEnsemble struct {
	trees       [][]Node
	mean        bool
	baseScore   float64
	numFeatures int
}

func NewTreeEnsemble(aggregation string, baseScore float64, trees []TreeSpec, numFeatures int) (*TreeEnsemble, error) {
	if len(trees) == 0 {
		return nil, fmt.Errorf("%w: ensemble without trees", ErrMalformedModel)
	}

	var mean bool
	switch aggregation {
	case "mean":
		mean = true
	case "sum", "":
	default:
		return nil, fmt.Errorf("%w: aggregation %q", ErrMalformedModel, aggregation)
	}

	m := &TreeEnsemble{mean: mean, baseScore: baseScore, numFeatures: numFeatures}
	for i, t := range trees {
		if err := validateTree(t.Nodes, numFeatures); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		m.trees = append(m.trees, t.Nodes)
	}
	return m, nil
}

func (m *TreeEnsemble) Predict(features []float64) (float64, error) {
	if err := checkDimension(m, features); err != nil {
		return 0, err
	}

	var sum float64
	for _, nodes := range m.trees {
		sum += walk(nodes, features)
	}
	if m.mean {
		sum /= float64(len(m.trees))
	}
	return m.baseScore + sum, nil
}

func (m *TreeEnsemble) NumFeatures() int {
	return m.numFeatures
}

func walk(nodes []Node, features []float64) float64 {
	i := 0
	for !nodes[i].Leaf {
		n := nodes[i]
		if features[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return nodes[i].Value
}

// validateTree checks indices and that children always point forward, which
// rules out cycles so walk terminates.
func validateTree(nodes []Node, numFeatures int) error {
	if len(nodes) == 0 {
		return fmt.Errorf("%w: empty tree", ErrMalformedModel)
	}
	for i, n := range nodes {
		if n.Leaf {
			continue
		}
		if n.Feature < 0 || n.Feature >= numFeatures {
			return fmt.Errorf("%w: node %d uses feature %d of %d", ErrMalformedModel, i, n.Feature, numFeatures)
		}
		for _, child := range []int{n.Left, n.Right} {
			if child <= i || child >= len(nodes) {
				return fmt.Errorf("%w: node %d has invalid child %d", ErrMalformedModel, i, child)
			}
		}
	}
	return nil
}
