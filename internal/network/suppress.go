package network

import (
	"context"
	"fmt"
	"math"

	"github.com/banshee-data/sensorbelief/internal/belief"
	"github.com/banshee-data/sensorbelief/internal/knowledge"
	"github.com/banshee-data/sensorbelief/internal/trace"
)

// SuppressResult is the outcome of replaying readings through one cluster's
// sender, with the base station's reconstruction alongside.
type SuppressResult struct {
	Cluster   int
	Decisions []belief.Decision // Node ids are global
	Stats     belief.Stats

	// MaxError is the largest absolute difference between a reading and the
	// receiver's estimate of it over the whole run.
	MaxError float64
}

// Suppress feeds every epoch of readings (one row per epoch, indexed by
// global node id) to one sender per cluster and reconstructs each epoch at a
// matching receiver. Results are in cluster order.
func (n *Network) Suppress(ctx context.Context, readings [][]float64) ([]SuppressResult, error) {
	for t, row := range readings {
		if len(row) < n.NodeCount {
			return nil, fmt.Errorf("epoch %d: %d readings for %d nodes", t, len(row), n.NodeCount)
		}
	}
	epochs := n.epochs(len(readings))
	results := make([]SuppressResult, len(n.Clusters))

	err := n.forEachCluster(ctx, func(ctx context.Context, cl Cluster) error {
		res, err := n.suppressCluster(ctx, cl, readings[:epochs])
		if err != nil {
			return err
		}
		results[cl.ID] = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (n *Network) suppressCluster(ctx context.Context, cl Cluster, readings [][]float64) (SuppressResult, error) {
	res := SuppressResult{Cluster: cl.ID}
	sender, err := belief.NewSender(cl.Params, cl.Epsilon, n.Selector)
	if err != nil {
		return res, err
	}
	receiver, err := belief.NewReceiver(cl.Params)
	if err != nil {
		return res, err
	}
	logf := clusterLogger(cl.ID)

	current := make([]float64, len(cl.Nodes))
	for t, row := range readings {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		for i, id := range cl.Nodes {
			current[i] = row[id]
		}

		d, err := sender.Send(current)
		if err != nil {
			return res, fmt.Errorf("epoch %d: %w", t, err)
		}
		content := make([]belief.Pair, len(d.Nodes))
		for i, node := range d.Nodes {
			content[i] = belief.Pair{Node: node, Value: current[node]}
		}
		estimate, err := receiver.Receive(content)
		if err != nil {
			return res, fmt.Errorf("epoch %d: %w", t, err)
		}
		for i, v := range estimate {
			res.MaxError = math.Max(res.MaxError, math.Abs(v-current[i]))
		}

		res.Stats.Record(d)
		global := make([]int, len(d.Nodes))
		for i, node := range d.Nodes {
			global[i] = cl.Nodes[node]
		}
		d.Nodes = global
		res.Decisions = append(res.Decisions, d)
	}
	logf("%d epochs, %d suppressed, %d values sent", res.Stats.Epochs, res.Stats.Suppressed, res.Stats.Values)
	return res, nil
}

// TotalStats sums the stats of all clusters.
func TotalStats(results []SuppressResult) belief.Stats {
	var st belief.Stats
	for _, r := range results {
		st.Add(r.Stats)
	}
	return st
}

// DecisionTrace renders what a lossless channel delivers for results:
// every link is good from epoch 0, transmitted nodes arrive known with
// their reading and the rest are not sent. Records are ordered by epoch,
// then cluster, and can be fed back to Generate.
func (n *Network) DecisionTrace(results []SuppressResult, readings [][]float64) []trace.Record {
	var out []trace.Record
	for t := 0; ; t++ {
		more := false
		for _, res := range results {
			if t >= len(res.Decisions) {
				continue
			}
			more = true
			out = append(out, decisionRecord(n.Clusters[res.Cluster], res.Decisions[t], readings))
		}
		if !more {
			return out
		}
	}
}

func decisionRecord(cl Cluster, d belief.Decision, readings [][]float64) trace.Record {
	m := len(cl.Nodes)
	rec := trace.Record{
		Epoch:   d.Epoch,
		Cluster: cl.ID,
		Head:    knowledge.Good,
		Links:   make([]knowledge.Interval, m),
		Values:  make([]float64, m),
		Status:  make([]knowledge.Status, m),
	}
	local := make(map[int]int, m)
	for i, id := range cl.Nodes {
		local[id] = i
		rec.Links[i] = knowledge.Interval{Type: knowledge.Good}
		rec.Values[i] = math.NaN()
	}
	for _, id := range d.Nodes {
		i := local[id]
		rec.Status[i] = knowledge.Known
		rec.Values[i] = readings[d.Epoch][id]
	}
	return rec
}
