// Package knowledge holds the small tagged types that describe what a
// receiver knows about each node of a cluster in a given epoch.
//
// Status is the per-message knowledge of a node's value; Interval
// classifies the child-to-head link of a node over a run of epochs.
// No algorithm lives here.
package knowledge
