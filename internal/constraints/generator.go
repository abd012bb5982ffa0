// Package constraints turns a decoded transmission trace into verification
// constraints on the true readings of a cluster.
//
// Each epoch the Generator advances its belief, folds the message into its
// per-node knowledge and emits constraints in one of two ways. When every
// referenced value is resolved the bounds are numeric; when some
// transmitted value was lost the bounds are linear in those unresolved
// readings. Epochs whose knowledge is incomplete emit nothing and are only
// logged.
package constraints

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/sensorbelief/internal/belief"
	"github.com/banshee-data/sensorbelief/internal/knowledge"
	"github.com/banshee-data/sensorbelief/internal/monitoring"
	"github.com/banshee-data/sensorbelief/internal/trace"
	"gonum.org/v1/gonum/mat"
)

// ErrMalformedRecord is returned for trace records that do not fit the
// cluster.
var ErrMalformedRecord = errors.New("constraints: malformed trace record")

// Options holds the tolerances of a generator.
type Options struct {
	Epsilon  float64 // Suppression tolerance of the cluster
	Epsilon1 float64 // Transmission tolerance of the child-to-head links

	// RunAnchors emits, for every node inside a run that did not begin this
	// epoch, a symbolic bound tying the current reading to the reading at
	// the start of the run. It is written as an ordinary symbolic line,
	// 3:-0.5;0.5;1,t,j;-1.000000,b,j, not as a line of %f fields.
	RunAnchors bool
}

// Generator derives constraints for one cluster from its trace.
type Generator struct {
	tracker *belief.Tracker
	opts    Options
	logf    func(format string, v ...interface{})

	started     bool
	sent        []float64
	known       []knowledge.Status
	lastFailure []int
	lastTypes   []knowledge.LinkType
}

// NewGenerator creates a generator for a cluster with parameters p.
func NewGenerator(p belief.Params, opts Options) (*Generator, error) {
	if opts.Epsilon < 0 || opts.Epsilon1 < 0 {
		return nil, fmt.Errorf("tolerances must be non-negative, got epsilon=%g epsilon1=%g", opts.Epsilon, opts.Epsilon1)
	}
	tracker, err := belief.NewTracker(p)
	if err != nil {
		return nil, err
	}
	m := tracker.Nodes()
	return &Generator{
		tracker:     tracker,
		opts:        opts,
		logf:        monitoring.Prefixed("constraints: "),
		sent:        make([]float64, m),
		known:       make([]knowledge.Status, m),
		lastFailure: make([]int, m),
		lastTypes:   make([]knowledge.LinkType, m),
	}, nil
}

// SetLogger redirects deferral messages. nil silences them.
func (g *Generator) SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		f = func(string, ...interface{}) {}
	}
	g.logf = f
}

// Tracker exposes the underlying belief.
func (g *Generator) Tracker() *belief.Tracker { return g.tracker }

// Known returns a copy of the per-node knowledge.
func (g *Generator) Known() []knowledge.Status {
	return append([]knowledge.Status(nil), g.known...)
}

// SentValues returns a copy of the last known value per node.
func (g *Generator) SentValues() []float64 {
	return append([]float64(nil), g.sent...)
}

// LastFailureTime returns the epoch at which node's value last became
// unresolved.
func (g *Generator) LastFailureTime(node int) int {
	return g.lastFailure[node]
}

// Update consumes the record of the next epoch and returns the
// constraints it implies. The first record must be epoch 0.
func (g *Generator) Update(rec trace.Record) ([]Constraint, error) {
	m := g.tracker.Nodes()
	if err := rec.Validate(m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	if !g.started {
		if rec.Epoch != 0 {
			return nil, fmt.Errorf("%w: first record is epoch %d, want 0", ErrMalformedRecord, rec.Epoch)
		}
		g.tracker.Reset()
		g.started = true
	} else {
		if err := g.tracker.AdvanceTo(rec.Epoch); err != nil {
			return nil, err
		}
		if err := g.tracker.Retire(rec.Status); err != nil {
			return nil, err
		}
	}
	epoch := rec.Epoch

	if rec.Head == knowledge.Unknown {
		g.logf("epoch %d: head-to-base link unknown, no constraints", epoch+1)
		for i := range g.known {
			g.known[i] = knowledge.NotSent
		}
		return nil, nil
	}

	for i := 0; i < m; i++ {
		g.lastTypes[i] = rec.Links[i].Type
		switch rec.Status[i] {
		case knowledge.Known:
			g.sent[i] = rec.Values[i]
			g.known[i] = knowledge.Known
		case knowledge.Unresolved:
			g.known[i] = knowledge.Unresolved
			g.lastFailure[i] = epoch
		}
	}
	if !g.inSync() {
		g.logf("epoch %d: prediction state not in sync, no constraints", epoch+1)
		return nil, nil
	}

	var out []Constraint
	if g.opts.RunAnchors {
		out = append(out, g.runAnchors(rec)...)
	}
	if g.allKnown() {
		cs, err := g.numeric(rec)
		if err != nil {
			return nil, err
		}
		return append(out, cs...), nil
	}
	cs, err := g.symbolic(rec)
	if err != nil {
		return nil, err
	}
	return append(out, cs...), nil
}

func (g *Generator) inSync() bool {
	for _, k := range g.known {
		if k == knowledge.NotSent {
			return false
		}
	}
	return true
}

func (g *Generator) allKnown() bool {
	for _, k := range g.known {
		if k != knowledge.Known {
			return false
		}
	}
	return true
}

// predictIndex returns the current-epoch positions of the nodes that were
// not transmitted, with -1 for transmitted nodes.
func (g *Generator) predictIndex(rec trace.Record) []int {
	idx := g.tracker.CurrentIndex()
	for i, s := range rec.Status {
		if s.Transmitted() {
			idx[i] = -1
		}
	}
	return idx
}

func (g *Generator) runAnchors(rec trace.Record) []Constraint {
	var out []Constraint
	e1 := g.opts.Epsilon1
	for j, iv := range rec.Links {
		if iv.Type == knowledge.Unknown || iv.StartsAt(rec.Epoch) {
			continue
		}
		out = append(out, NewSymbolic(rec.Epoch, j, -e1, e1, Term{Coef: -1, Epoch: iv.Begin, Node: j}))
	}
	return out
}

// sentConstraint bounds a node whose value arrived on a good link this
// epoch: exact at the start of a run, within the transmission tolerance
// otherwise.
func (g *Generator) sentConstraint(rec trace.Record, j int) Constraint {
	if rec.Links[j].StartsAt(rec.Epoch) {
		return NewEquality(rec.Epoch, j, g.sent[j])
	}
	return NewInterval(rec.Epoch, j, g.sent[j], g.opts.Epsilon1)
}

// predictionTolerance widens the suppression tolerance by the transmission
// tolerance once a run is under way.
func (g *Generator) predictionTolerance(rec trace.Record, j int) float64 {
	if rec.Links[j].StartsAt(rec.Epoch) {
		return g.opts.Epsilon
	}
	return g.opts.Epsilon + g.opts.Epsilon1
}

func (g *Generator) numeric(rec trace.Record) ([]Constraint, error) {
	predict := g.predictIndex(rec)
	var pred []float64
	if g.tracker.Epoch() > 0 {
		var err error
		pred, err = g.tracker.ConditionalMean(predict, g.tracker.SentIndex(), g.sent)
		if err != nil {
			return nil, fmt.Errorf("epoch %d: %w", rec.Epoch+1, err)
		}
	}

	var out []Constraint
	x := 0
	for j := range predict {
		if predict[j] == -1 {
			x++
			if rec.Links[j].Type == knowledge.Good {
				out = append(out, g.sentConstraint(rec, j))
			}
			continue
		}
		if rec.Links[j].Type != knowledge.Good || pred == nil {
			continue
		}
		p := pred[j-x]
		out = append(out, NewInterval(rec.Epoch, j, p, g.predictionTolerance(rec, j)))
	}
	return out, nil
}

func (g *Generator) symbolic(rec trace.Record) ([]Constraint, error) {
	// An unresolved value is the head's view of the reading, usable only if
	// the head received it over a good link.
	for i, k := range g.known {
		if k == knowledge.Unresolved && g.lastTypes[i] != knowledge.Good {
			g.logf("epoch %d: node %d unresolved over a %s link, no constraints", rec.Epoch+1, i+1, g.lastTypes[i])
			return nil, nil
		}
	}

	predict := g.predictIndex(rec)
	var coef *mat.Dense
	var constant []float64
	if g.tracker.Epoch() > 0 && hasTarget(predict) {
		k, c, err := g.tracker.Regression(predict, g.tracker.SentIndex())
		if err != nil {
			return nil, fmt.Errorf("epoch %d: %w", rec.Epoch+1, err)
		}
		coef, constant = k, c
	}

	var out []Constraint
	x := 0
	for j := range predict {
		if predict[j] == -1 {
			x++
			if g.known[j] != knowledge.Known {
				continue
			}
			switch rec.Links[j].Type {
			case knowledge.Good:
				out = append(out, g.sentConstraint(rec, j))
			case knowledge.Bad:
				out = append(out, NewExclusion(rec.Epoch, j, g.sent[j], g.opts.Epsilon1))
			}
			continue
		}
		if rec.Links[j].Type != knowledge.Good || coef == nil {
			continue
		}

		row := j - x
		tol := g.predictionTolerance(rec, j)
		var temp, relax float64
		var terms []Term
		for k := range g.known {
			c := coef.At(row, k)
			if g.known[k] == knowledge.Known {
				temp += c * g.sent[k]
				continue
			}
			terms = append(terms, Term{Coef: -c, Epoch: g.lastFailure[k], Node: k})
			relax += math.Abs(c) * g.opts.Epsilon1
		}
		lower := constant[row] - tol + temp - relax
		upper := constant[row] + tol + temp + relax
		out = append(out, NewSymbolic(rec.Epoch, j, lower, upper, terms...))
	}
	return out, nil
}

func hasTarget(idx []int) bool {
	for _, p := range idx {
		if p != -1 {
			return true
		}
	}
	return false
}
