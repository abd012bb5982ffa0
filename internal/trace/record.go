// Package trace decodes pre-recorded transmission traces and reading files.
//
// A trace line describes what the base station observed from one cluster
// in one epoch:
//
//	<epoch> <cluster> <head> <node>...
//
// where head is the head-to-base link type (G, B or U) and every node token
// is <link>:<begin>:<status>[:<value>]. Epochs are 0-based. status is 1
// (known), -1 (transmitted, value unknown) or 0 (not transmitted); value is
// required for known nodes and "-" or absent otherwise. Blank lines and
// lines starting with '#' are ignored.
package trace

import (
	"fmt"
	"math"

	"github.com/banshee-data/sensorbelief/internal/knowledge"
)

// Record is the decoded content of one head-to-base message.
type Record struct {
	Epoch   int
	Cluster int
	Head    knowledge.LinkType
	Links   []knowledge.Interval // Child-to-head classification per node
	Values  []float64            // NaN where no value was carried
	Status  []knowledge.Status
}

// Nodes returns the number of nodes the record describes.
func (r Record) Nodes() int { return len(r.Status) }

// Validate checks that the record describes exactly m nodes and is
// internally consistent.
func (r Record) Validate(m int) error {
	if r.Epoch < 0 {
		return fmt.Errorf("negative epoch %d", r.Epoch)
	}
	if len(r.Status) != m || len(r.Links) != m || len(r.Values) != m {
		return fmt.Errorf("epoch %d: record has %d statuses, %d links and %d values for %d nodes",
			r.Epoch, len(r.Status), len(r.Links), len(r.Values), m)
	}
	for i := 0; i < m; i++ {
		if r.Links[i].Begin < 0 || r.Links[i].Begin > r.Epoch {
			return fmt.Errorf("epoch %d node %d: interval begins at %d", r.Epoch, i, r.Links[i].Begin)
		}
		if r.Status[i] == knowledge.Known && (math.IsNaN(r.Values[i]) || math.IsInf(r.Values[i], 0)) {
			return fmt.Errorf("epoch %d node %d: known status without a finite value", r.Epoch, i)
		}
	}
	return nil
}
