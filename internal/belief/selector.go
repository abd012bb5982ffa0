package belief

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Belief is a read-only snapshot of a tracker taken right after an epoch
// advance.
type Belief struct {
	Mean         *mat.VecDense
	Cov          *mat.SymDense
	SentIndex    []int // Per node: position of its latest transmitted entry
	CurrentIndex []int // Per node: position of its current-epoch entry
}

// Nodes returns m.
func (b Belief) Nodes() int { return len(b.CurrentIndex) }

// Predict returns the receiver's estimate of the current epoch once the
// nodes marked in selected are transmitted with their current values.
// Selected nodes are reported exactly; the others are the conditional mean
// given the selected current entries and the other nodes' last sent values.
func (b Belief) Predict(selected []bool, sent, current []float64) ([]float64, error) {
	m := b.Nodes()
	if len(selected) != m || len(sent) != m || len(current) != m {
		return nil, fmt.Errorf("%w: belief has %d nodes", ErrDimension, m)
	}
	given := make([]int, m)
	values := make([]float64, m)
	target := make([]int, m)
	for i := 0; i < m; i++ {
		if selected[i] {
			given[i], values[i] = b.CurrentIndex[i], current[i]
			target[i] = -1
			continue
		}
		given[i], values[i] = b.SentIndex[i], sent[i]
		target[i] = b.CurrentIndex[i]
	}
	pred, err := Condition(b.Mean, b.Cov, target, given, values)
	if err != nil {
		return nil, err
	}

	out := make([]float64, m)
	k := 0
	for i := 0; i < m; i++ {
		if selected[i] {
			out[i] = current[i]
			continue
		}
		out[i] = pred[k]
		k++
	}
	return out, nil
}

// Selector chooses which nodes to transmit when the receiver's prediction
// of the current epoch is out of tolerance.
//
// Implementations must return a subset such that, after transmitting
// exactly those nodes, Belief.Predict is within epsilon of current for every
// node. The returned values are node ids, not matrix positions.
type Selector interface {
	Select(b Belief, sent, current []float64, epsilon float64) ([]int, error)
}

// SelectorFunc adapts a function to the Selector interface.
type SelectorFunc func(b Belief, sent, current []float64, epsilon float64) ([]int, error)

// Select calls f.
func (f SelectorFunc) Select(b Belief, sent, current []float64, epsilon float64) ([]int, error) {
	return f(b, sent, current, epsilon)
}

// GreedySelector adds the node with the largest prediction error until all
// remaining predictions are within tolerance. It terminates after at most m
// rounds since a fully transmitted epoch has nothing left to predict.
type GreedySelector struct{}

// Select implements Selector.
func (GreedySelector) Select(b Belief, sent, current []float64, epsilon float64) ([]int, error) {
	m := b.Nodes()
	selected := make([]bool, m)
	for round := 0; round < m; round++ {
		pred, err := b.Predict(selected, sent, current)
		if err != nil {
			return nil, err
		}
		worst, worstErr := -1, epsilon
		for i := 0; i < m; i++ {
			if selected[i] {
				continue
			}
			e := math.Abs(pred[i] - current[i])
			if math.IsNaN(e) {
				e = math.Inf(1)
			}
			if e > worstErr {
				worst, worstErr = i, e
			}
		}
		if worst < 0 {
			break
		}
		selected[worst] = true
	}

	nodes := make([]int, 0, m)
	for i, s := range selected {
		if s {
			nodes = append(nodes, i)
		}
	}
	return nodes, nil
}
