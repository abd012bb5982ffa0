// Package network wires a configured sensor network into per-cluster
// senders and constraint generators and runs the clusters in parallel.
//
// Every cluster owns its own belief; nothing is shared between the
// goroutines, and results are merged once all of them have finished. Node
// ids in results are the global ids from the configuration.
package network

import (
	"context"
	"fmt"

	"github.com/banshee-data/sensorbelief/internal/belief"
	"github.com/banshee-data/sensorbelief/internal/config"
	"github.com/banshee-data/sensorbelief/internal/constraints"
	"github.com/banshee-data/sensorbelief/internal/monitoring"
	"golang.org/x/sync/errgroup"
)

// Cluster is the resolved configuration of one cluster.
type Cluster struct {
	ID      int
	Nodes   []int // Global node ids, in cluster order
	Params  belief.Params
	Epsilon float64
}

// Network holds the resolved clusters and shared tolerances.
type Network struct {
	Clusters   []Cluster
	Epsilon1   float64
	TimeSteps  int // 0 means no limit
	NodeCount  int
	RunAnchors bool

	// Selector chooses transmitted subsets; nil uses the greedy strategy.
	Selector belief.Selector
}

// New resolves cfg into a Network.
func New(cfg *config.NetworkConfig) (*Network, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := &Network{
		Epsilon1:   cfg.GetEpsilon1(),
		TimeSteps:  cfg.GetTimeSteps(),
		NodeCount:  cfg.GetNodeCount(),
		RunAnchors: cfg.GetRunAnchors(),
	}
	for i, cl := range cfg.Clusters {
		p, err := cl.Params()
		if err != nil {
			return nil, fmt.Errorf("cluster %d: %w", i, err)
		}
		n.Clusters = append(n.Clusters, Cluster{
			ID:      i,
			Nodes:   append([]int(nil), cl.Nodes...),
			Params:  p,
			Epsilon: cl.GetEpsilon(cfg.GetEpsilon2()),
		})
	}
	return n, nil
}

// epochs returns how many of total epochs to process.
func (n *Network) epochs(total int) int {
	if n.TimeSteps > 0 && n.TimeSteps < total {
		return n.TimeSteps
	}
	return total
}

func clusterLogger(id int) func(format string, v ...interface{}) {
	return monitoring.Prefixed(fmt.Sprintf("cluster %d: ", id))
}

// forEachCluster runs fn for every cluster in its own goroutine and returns
// the first error.
func (n *Network) forEachCluster(ctx context.Context, fn func(ctx context.Context, cl Cluster) error) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, cl := range n.Clusters {
		g.Go(func() error {
			if err := fn(ctx, cl); err != nil {
				return fmt.Errorf("cluster %d: %w", cl.ID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// GenerateOptions returns the generator options of a cluster.
func (n *Network) GenerateOptions(cl Cluster) constraints.Options {
	return constraints.Options{
		Epsilon:    cl.Epsilon,
		Epsilon1:   n.Epsilon1,
		RunAnchors: n.RunAnchors,
	}
}
