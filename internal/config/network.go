package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/sensorbelief/internal/belief"
	"gopkg.in/yaml.v3"
)

// ExampleConfigPath is the path to the example network shipped with the
// repository.
const ExampleConfigPath = "config/network.example.yaml"

// Default tolerances when the configuration leaves them out.
const (
	DefaultEpsilon1 = 0.5
	DefaultEpsilon2 = 0.5
)

// NetworkConfig describes a sensor network: its clusters, the process model
// of each, and the tolerances shared by all of them.
type NetworkConfig struct {
	// Transmission tolerance of the child-to-head links.
	Epsilon1 *float64 `json:"epsilon1,omitempty" yaml:"epsilon1,omitempty"`
	// Suppression tolerance, overridable per cluster.
	Epsilon2 *float64 `json:"epsilon2,omitempty" yaml:"epsilon2,omitempty"`

	TimeSteps  *int  `json:"time_steps,omitempty" yaml:"time_steps,omitempty"` // 0 processes every epoch
	NodeCount  *int  `json:"node_count,omitempty" yaml:"node_count,omitempty"`
	RunAnchors *bool `json:"run_anchors,omitempty" yaml:"run_anchors,omitempty"`

	Clusters []Cluster `json:"clusters" yaml:"clusters"`
}

// Cluster is one group of nodes reporting through a common head.
type Cluster struct {
	Nodes   []int         `json:"nodes" yaml:"nodes"` // Global node ids, 0-based
	Epsilon *float64      `json:"epsilon,omitempty" yaml:"epsilon,omitempty"`
	Process ProcessParams `json:"params" yaml:"params"`
}

// ProcessParams holds x_t = c + A·x_{t-1} + w with w ~ N(0, Sigma), matrices
// row-major.
type ProcessParams struct {
	C     []float64   `json:"c" yaml:"c"`
	A     [][]float64 `json:"a" yaml:"a"`
	Sigma [][]float64 `json:"sigma" yaml:"sigma"`
}

// LoadNetworkConfig loads a NetworkConfig from a JSON or YAML file.
// The file must have a .json, .yaml or .yml extension and be under 1MB.
func LoadNetworkConfig(path string) (*NetworkConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &NetworkConfig{}
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks tolerances, node ids and every cluster's process model.
func (c *NetworkConfig) Validate() error {
	if c.Epsilon1 != nil && *c.Epsilon1 < 0 {
		return fmt.Errorf("epsilon1 must be non-negative, got %f", *c.Epsilon1)
	}
	if c.Epsilon2 != nil && *c.Epsilon2 < 0 {
		return fmt.Errorf("epsilon2 must be non-negative, got %f", *c.Epsilon2)
	}
	if c.TimeSteps != nil && *c.TimeSteps < 0 {
		return fmt.Errorf("time_steps must be non-negative, got %d", *c.TimeSteps)
	}
	if c.NodeCount != nil && *c.NodeCount <= 0 {
		return fmt.Errorf("node_count must be positive, got %d", *c.NodeCount)
	}
	if len(c.Clusters) == 0 {
		return fmt.Errorf("at least one cluster is required")
	}

	seen := make(map[int]int)
	for i, cl := range c.Clusters {
		if len(cl.Nodes) == 0 {
			return fmt.Errorf("cluster %d has no nodes", i)
		}
		if cl.Epsilon != nil && *cl.Epsilon < 0 {
			return fmt.Errorf("cluster %d: epsilon must be non-negative, got %f", i, *cl.Epsilon)
		}
		for _, n := range cl.Nodes {
			if n < 0 {
				return fmt.Errorf("cluster %d: negative node id %d", i, n)
			}
			if c.NodeCount != nil && n >= *c.NodeCount {
				return fmt.Errorf("cluster %d: node id %d outside node_count %d", i, n, *c.NodeCount)
			}
			if prev, ok := seen[n]; ok {
				return fmt.Errorf("node %d belongs to clusters %d and %d", n, prev, i)
			}
			seen[n] = i
		}
		if len(cl.Process.C) != len(cl.Nodes) {
			return fmt.Errorf("cluster %d: params.c has %d entries for %d nodes", i, len(cl.Process.C), len(cl.Nodes))
		}
		if _, err := cl.Params(); err != nil {
			return fmt.Errorf("cluster %d: %w", i, err)
		}
	}
	return nil
}

// Params converts the cluster's process model.
func (cl Cluster) Params() (belief.Params, error) {
	return belief.NewParams(cl.Process.C, cl.Process.A, cl.Process.Sigma)
}

// GetEpsilon returns the cluster's suppression tolerance or def.
func (cl Cluster) GetEpsilon(def float64) float64 {
	if cl.Epsilon == nil {
		return def
	}
	return *cl.Epsilon
}

// GetEpsilon1 returns the epsilon1 value or the default.
func (c *NetworkConfig) GetEpsilon1() float64 {
	if c.Epsilon1 == nil {
		return DefaultEpsilon1
	}
	return *c.Epsilon1
}

// GetEpsilon2 returns the epsilon2 value or the default.
func (c *NetworkConfig) GetEpsilon2() float64 {
	if c.Epsilon2 == nil {
		return DefaultEpsilon2
	}
	return *c.Epsilon2
}

// GetTimeSteps returns the time_steps value, 0 meaning no limit.
func (c *NetworkConfig) GetTimeSteps() int {
	if c.TimeSteps == nil {
		return 0
	}
	return *c.TimeSteps
}

// GetNodeCount returns node_count, or one past the largest configured node
// id when unset.
func (c *NetworkConfig) GetNodeCount() int {
	if c.NodeCount != nil {
		return *c.NodeCount
	}
	n := 0
	for _, cl := range c.Clusters {
		for _, id := range cl.Nodes {
			if id+1 > n {
				n = id + 1
			}
		}
	}
	return n
}

// GetRunAnchors returns the run_anchors value or the default.
func (c *NetworkConfig) GetRunAnchors() bool {
	if c.RunAnchors == nil {
		return false
	}
	return *c.RunAnchors
}
