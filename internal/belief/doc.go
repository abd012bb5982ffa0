// Package belief owns the exact joint Gaussian belief over the readings of
// one cluster of correlated sensor nodes.
//
// Responsibilities: the linear-Gaussian process model
// x_t = c + A·x_{t-1} + w_t, w_t ~ N(0, Σ); epoch advance; retirement of
// superseded entries by marginalisation; conditioning of the current epoch
// on the most recently transmitted entries; the suppression decision taken
// by a transmitting node and the matching reconstruction at a receiver.
// Key types: Tracker, Sender, Receiver, Selector.
//
// The belief covers at most two epochs: for every node, its most recently
// transmitted entry, plus the entries of the current epoch. Entries are
// identified by a stable (epoch, node) key and matrix positions are derived
// from the key order after every change.
//
// Tracker, Sender and Receiver are owned by a single cluster and are not
// safe for concurrent use. Different clusters share no state.
package belief
