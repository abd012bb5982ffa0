package belief

import (
	"fmt"
	"math"

	"github.com/banshee-data/sensorbelief/internal/knowledge"
)

// Decision is the outcome of one Send call.
type Decision struct {
	Epoch      int
	Suppressed bool  // Receiver can predict every node within tolerance
	Nodes      []int // Node ids to transmit; empty when Suppressed
}

// Sender decides, at a transmitting cluster head, whether the current
// readings can be withheld.
type Sender struct {
	tracker  *Tracker
	selector Selector
	epsilon  float64

	sent    []float64 // Last transmitted value per node
	started bool
}

// NewSender creates a sender with suppression tolerance epsilon. A nil
// selector uses GreedySelector.
func NewSender(p Params, epsilon float64, selector Selector) (*Sender, error) {
	if epsilon < 0 {
		return nil, fmt.Errorf("epsilon must be non-negative, got %g", epsilon)
	}
	tracker, err := NewTracker(p)
	if err != nil {
		return nil, err
	}
	if selector == nil {
		selector = GreedySelector{}
	}
	return &Sender{tracker: tracker, selector: selector, epsilon: epsilon}, nil
}

// Tracker exposes the underlying belief, mainly for inspection.
func (s *Sender) Tracker() *Tracker { return s.tracker }

// SentValues returns a copy of the last transmitted value per node.
func (s *Sender) SentValues() []float64 {
	return append([]float64(nil), s.sent...)
}

// Send takes the true readings of the current epoch and returns which
// nodes must be transmitted. The first call always transmits every node.
func (s *Sender) Send(current []float64) (Decision, error) {
	m := s.tracker.Nodes()
	if len(current) != m {
		return Decision{}, fmt.Errorf("%w: %d readings for %d nodes", ErrDimension, len(current), m)
	}

	if !s.started {
		s.tracker.Reset()
		s.sent = append([]float64(nil), current...)
		s.started = true
		nodes := make([]int, m)
		for i := range nodes {
			nodes[i] = i
		}
		return Decision{Epoch: 0, Nodes: nodes}, nil
	}

	if err := s.tracker.AdvanceEpoch(); err != nil {
		return Decision{}, err
	}
	epoch := s.tracker.Epoch()

	pred, err := s.tracker.ConditionalMean(s.tracker.CurrentIndex(), s.tracker.SentIndex(), s.sent)
	if err != nil {
		return Decision{}, fmt.Errorf("epoch %d: %w", epoch, err)
	}
	if infNorm(pred, current) <= s.epsilon {
		return Decision{Epoch: epoch, Suppressed: true}, nil
	}

	nodes, err := s.selector.Select(s.tracker.Belief(), s.SentValues(), current, s.epsilon)
	if err != nil {
		return Decision{}, fmt.Errorf("epoch %d: select: %w", epoch, err)
	}
	if len(nodes) == 0 {
		return Decision{}, fmt.Errorf("epoch %d: %w", epoch, ErrEmptySelection)
	}

	status := make([]knowledge.Status, m)
	for _, n := range nodes {
		if n < 0 || n >= m {
			return Decision{}, fmt.Errorf("epoch %d: %w: selected node %d", epoch, ErrDimension, n)
		}
		if status[n] == knowledge.Known {
			return Decision{}, fmt.Errorf("epoch %d: selector returned node %d twice", epoch, n)
		}
		status[n] = knowledge.Known
	}
	if err := s.tracker.Retire(status); err != nil {
		return Decision{}, err
	}
	for _, n := range nodes {
		s.sent[n] = current[n]
	}
	return Decision{Epoch: epoch, Nodes: append([]int(nil), nodes...)}, nil
}

// infNorm returns max |a_i − b_i|. NaN compares as +Inf.
func infNorm(a, b []float64) float64 {
	var worst float64
	for i := range a {
		d := math.Abs(a[i] - b[i])
		if math.IsNaN(d) {
			return math.Inf(1)
		}
		if d > worst {
			worst = d
		}
	}
	return worst
}

// Stats accumulates transmission telemetry over a run of decisions.
type Stats struct {
	Epochs        int `json:"epochs"`        // Decisions recorded
	Suppressed    int `json:"suppressed"`    // Epochs with no transmission
	Transmissions int `json:"transmissions"` // Epochs with at least one value sent
	Values        int `json:"values"`        // Total values sent
}

// Record adds one decision.
func (st *Stats) Record(d Decision) {
	st.Epochs++
	if d.Suppressed {
		st.Suppressed++
		return
	}
	st.Values += len(d.Nodes)
	if len(d.Nodes) > 0 {
		st.Transmissions++
	}
}

// Add merges other into st.
func (st *Stats) Add(other Stats) {
	st.Epochs += other.Epochs
	st.Suppressed += other.Suppressed
	st.Transmissions += other.Transmissions
	st.Values += other.Values
}
