package belief

import (
	"fmt"

	"github.com/banshee-data/sensorbelief/internal/knowledge"
)

// Pair is one transmitted reading.
type Pair struct {
	Node  int
	Value float64
}

// Receiver rebuilds a full epoch of readings at the base station from the
// subsets chosen by a Sender with the same parameters.
type Receiver struct {
	tracker *Tracker
	sent    []float64
	started bool
}

// NewReceiver creates a receiver for one cluster.
func NewReceiver(p Params) (*Receiver, error) {
	tracker, err := NewTracker(p)
	if err != nil {
		return nil, err
	}
	return &Receiver{tracker: tracker}, nil
}

// Tracker exposes the underlying belief.
func (r *Receiver) Tracker() *Tracker { return r.tracker }

// Receive consumes the content of one epoch's message, which may be empty
// when the sender suppressed, and returns the estimate of every node. The
// first message must carry every node.
func (r *Receiver) Receive(content []Pair) ([]float64, error) {
	m := r.tracker.Nodes()
	status := make([]knowledge.Status, m)
	for _, p := range content {
		if p.Node < 0 || p.Node >= m {
			return nil, fmt.Errorf("%w: node %d", ErrDimension, p.Node)
		}
		if status[p.Node] == knowledge.Known {
			return nil, fmt.Errorf("node %d transmitted twice", p.Node)
		}
		status[p.Node] = knowledge.Known
	}

	if !r.started {
		if len(content) != m {
			return nil, fmt.Errorf("%w: first message carries %d of %d nodes", ErrDimension, len(content), m)
		}
		r.tracker.Reset()
		r.sent = make([]float64, m)
		for _, p := range content {
			r.sent[p.Node] = p.Value
		}
		r.started = true
		return append([]float64(nil), r.sent...), nil
	}

	if err := r.tracker.AdvanceEpoch(); err != nil {
		return nil, err
	}
	if err := r.tracker.Retire(status); err != nil {
		return nil, err
	}
	for _, p := range content {
		r.sent[p.Node] = p.Value
	}

	out := make([]float64, m)
	if len(content) == m {
		copy(out, r.sent)
		return out, nil
	}
	target := r.tracker.CurrentIndex()
	for _, p := range content {
		target[p.Node] = -1
	}
	pred, err := r.tracker.ConditionalMean(target, r.tracker.SentIndex(), r.sent)
	if err != nil {
		return nil, fmt.Errorf("epoch %d: %w", r.tracker.Epoch(), err)
	}
	k := 0
	for i := 0; i < m; i++ {
		if status[i] == knowledge.Known {
			out[i] = r.sent[i]
			continue
		}
		out[i] = pred[k]
		k++
	}
	return out, nil
}
