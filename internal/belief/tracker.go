package belief

import (
	"fmt"

	"github.com/banshee-data/sensorbelief/internal/knowledge"
	"gonum.org/v1/gonum/mat"
)

// Entry identifies one live scalar of the belief: the reading of Node at Epoch.
type Entry struct {
	Epoch int
	Node  int
}

// Tracker maintains the joint Gaussian belief of one cluster.
//
// Live entries are, for each node, the entry of its most recent
// transmission, plus the m entries of the current epoch. A node whose
// transmission happened in the current epoch contributes one entry only, so
// the dimension stays within [m, 2m].
type Tracker struct {
	params Params
	m      int
	epoch  int

	entries []Entry       // Entry at each matrix position
	pos     map[Entry]int // Inverse of entries
	sent    []Entry       // Per node: entry of its latest transmission

	mean *mat.VecDense
	cov  *mat.SymDense
}

// NewTracker creates a tracker at epoch 0 with mean 0 and covariance Σ.
func NewTracker(p Params) (*Tracker, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	t := &Tracker{params: p, m: p.Nodes()}
	t.Reset()
	return t, nil
}

// Reset returns the tracker to its epoch 0 prior.
func (t *Tracker) Reset() {
	t.epoch = 0
	t.entries = make([]Entry, t.m)
	t.sent = make([]Entry, t.m)
	for i := 0; i < t.m; i++ {
		t.entries[i] = Entry{Epoch: 0, Node: i}
		t.sent[i] = Entry{Epoch: 0, Node: i}
	}
	t.mean = mat.NewVecDense(t.m, nil)
	t.cov = mat.NewSymDense(t.m, nil)
	t.cov.CopySym(t.params.Sigma)
	t.reindex()
}

func (t *Tracker) reindex() {
	t.pos = make(map[Entry]int, len(t.entries))
	for p, e := range t.entries {
		t.pos[e] = p
	}
}

// Nodes returns m.
func (t *Tracker) Nodes() int { return t.m }

// Epoch returns the current epoch.
func (t *Tracker) Epoch() int { return t.epoch }

// Dim returns the number of live entries.
func (t *Tracker) Dim() int { return len(t.entries) }

// Entries returns the entry held at each matrix position.
func (t *Tracker) Entries() []Entry {
	return append([]Entry(nil), t.entries...)
}

// SentIndex returns, per node, the matrix position of its latest
// transmitted entry.
func (t *Tracker) SentIndex() []int {
	idx := make([]int, t.m)
	for i, e := range t.sent {
		idx[i] = t.pos[e]
	}
	return idx
}

// CurrentIndex returns, per node, the matrix position of its current-epoch
// entry.
func (t *Tracker) CurrentIndex() []int {
	idx := make([]int, t.m)
	for i := 0; i < t.m; i++ {
		idx[i] = t.pos[Entry{Epoch: t.epoch, Node: i}]
	}
	return idx
}

// Mean returns a copy of the mean vector.
func (t *Tracker) Mean() []float64 {
	return append([]float64(nil), t.mean.RawVector().Data...)
}

// Covariance returns a copy of the covariance matrix.
func (t *Tracker) Covariance() *mat.SymDense {
	out := mat.NewSymDense(t.Dim(), nil)
	out.CopySym(t.cov)
	return out
}

// Belief returns a read-only snapshot for subset selection.
func (t *Tracker) Belief() Belief {
	mean := mat.VecDenseCopyOf(t.mean)
	return Belief{
		Mean:         mean,
		Cov:          t.Covariance(),
		SentIndex:    t.SentIndex(),
		CurrentIndex: t.CurrentIndex(),
	}
}

// AdvanceEpoch appends the next epoch. See AdvanceTo.
func (t *Tracker) AdvanceEpoch() error {
	return t.AdvanceTo(t.epoch + 1)
}

// AdvanceTo appends epoch, which must directly follow the current one.
//
// The new block is the affine-Gaussian image of the current epoch:
// mean c + A·μ_last, cross covariance A·P_last,: and own covariance
// Σ + A·P_last,last·Aᵀ. Only each node's latest transmitted entry is kept
// from the old belief, so the result has exactly 2m entries.
func (t *Tracker) AdvanceTo(epoch int) error {
	if epoch != t.epoch+1 {
		return fmt.Errorf("%w: advance to %d from %d", ErrEpochOrder, epoch, t.epoch)
	}
	m := t.m
	last := t.CurrentIndex()
	sent := t.SentIndex()
	all := make([]int, t.Dim())
	for i := range all {
		all[i] = i
	}

	var next mat.VecDense
	next.MulVec(t.params.A, subVec(t.mean, last))
	next.AddVec(&next, t.params.C)

	var cross mat.Dense
	cross.Mul(t.params.A, subBlock(t.cov, last, all))

	var tmp, own mat.Dense
	tmp.Mul(t.params.A, subSym(t.cov, last))
	own.Mul(&tmp, t.params.A.T())
	own.Add(&own, t.params.Sigma)

	n := 2 * m
	mean := mat.NewVecDense(n, nil)
	cov := mat.NewSymDense(n, nil)
	for i := 0; i < m; i++ {
		mean.SetVec(i, t.mean.AtVec(sent[i]))
		mean.SetVec(m+i, next.AtVec(i))
		for j := i; j < m; j++ {
			cov.SetSym(i, j, t.cov.At(sent[i], sent[j]))
			cov.SetSym(m+i, m+j, 0.5*(own.At(i, j)+own.At(j, i)))
		}
		for j := 0; j < m; j++ {
			cov.SetSym(i, m+j, cross.At(j, sent[i]))
		}
	}

	entries := make([]Entry, 0, n)
	entries = append(entries, t.sent...)
	for i := 0; i < m; i++ {
		entries = append(entries, Entry{Epoch: epoch, Node: i})
	}

	t.epoch = epoch
	t.entries = entries
	t.mean = mean
	t.cov = cov
	t.reindex()
	return nil
}

// Retire records which nodes were transmitted this epoch. For every node
// whose status is not NotSent, its previous transmitted entry is dropped by
// marginalisation and its current-epoch entry becomes the transmitted one.
// Nodes already retired this epoch are left alone.
func (t *Tracker) Retire(status []knowledge.Status) error {
	if len(status) != t.m {
		return fmt.Errorf("%w: %d statuses for %d nodes", ErrDimension, len(status), t.m)
	}
	drop := make(map[Entry]bool)
	for i, s := range status {
		if !s.Transmitted() {
			continue
		}
		cur := Entry{Epoch: t.epoch, Node: i}
		if t.sent[i] == cur {
			continue
		}
		drop[t.sent[i]] = true
		t.sent[i] = cur
	}
	if len(drop) == 0 {
		return nil
	}

	keep := make([]int, 0, len(t.entries)-len(drop))
	entries := make([]Entry, 0, len(t.entries)-len(drop))
	for p, e := range t.entries {
		if drop[e] {
			continue
		}
		keep = append(keep, p)
		entries = append(entries, e)
	}
	t.mean = subVec(t.mean, keep)
	t.cov = subSym(t.cov, keep)
	t.entries = entries
	t.reindex()
	return nil
}

// ConditionalMean returns E[target | given = values] over the current
// belief. See Condition.
func (t *Tracker) ConditionalMean(target, given []int, values []float64) ([]float64, error) {
	return Condition(t.mean, t.cov, target, given, values)
}

// Regression returns the linear predictor of target given the given
// positions. See Regression.
func (t *Tracker) Regression(target, given []int) (*mat.Dense, []float64, error) {
	return Regression(t.mean, t.cov, target, given)
}
