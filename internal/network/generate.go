package network

import (
	"context"
	"fmt"

	"github.com/banshee-data/sensorbelief/internal/constraints"
	"github.com/banshee-data/sensorbelief/internal/trace"
)

// Batch holds the constraints one trace record produced.
type Batch struct {
	Cluster     int
	Epoch       int
	Constraints []constraints.Constraint // Node ids are global
}

// Generate runs each cluster's records through its own constraint
// generator. Records may interleave clusters but must be in epoch order
// within each cluster. The result has one batch per processed record, in
// trace order.
func (n *Network) Generate(ctx context.Context, records []trace.Record) ([]Batch, error) {
	byCluster := make([][]int, len(n.Clusters))
	var kept []int
	for i, rec := range records {
		if rec.Cluster < 0 || rec.Cluster >= len(n.Clusters) {
			return nil, fmt.Errorf("%w: record %d names cluster %d of %d", constraints.ErrMalformedRecord, i, rec.Cluster, len(n.Clusters))
		}
		if n.TimeSteps > 0 && rec.Epoch >= n.TimeSteps {
			continue
		}
		byCluster[rec.Cluster] = append(byCluster[rec.Cluster], i)
		kept = append(kept, i)
	}

	batches := make([]Batch, len(records))
	err := n.forEachCluster(ctx, func(ctx context.Context, cl Cluster) error {
		g, err := constraints.NewGenerator(cl.Params, n.GenerateOptions(cl))
		if err != nil {
			return err
		}
		g.SetLogger(clusterLogger(cl.ID))

		for _, i := range byCluster[cl.ID] {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec := records[i]
			cs, err := g.Update(rec)
			if err != nil {
				return fmt.Errorf("record %d: %w", i, err)
			}
			for j := range cs {
				cs[j] = cs[j].Remap(cl.Nodes)
			}
			batches[i] = Batch{Cluster: cl.ID, Epoch: rec.Epoch, Constraints: cs}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]Batch, 0, len(kept))
	for _, i := range kept {
		out = append(out, batches[i])
	}
	return out, nil
}

// Flatten concatenates the constraints of all batches.
func Flatten(batches []Batch) []constraints.Constraint {
	var out []constraints.Constraint
	for _, b := range batches {
		out = append(out, b.Constraints...)
	}
	return out
}
