package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const twoClusterJSON = `{
  "epsilon1": 0.25,
  "epsilon2": 0.1,
  "time_steps": 40,
  "run_anchors": true,
  "clusters": [
    {"nodes": [0, 1], "params": {"c": [0, 0], "a": [[1, 0], [0, 1]], "sigma": [[1, 0], [0, 1]]}},
    {"nodes": [3], "epsilon": 0.05, "params": {"c": [1], "a": [[0.5]], "sigma": [[2]]}}
  ]
}`

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestLoadNetworkConfigJSON(t *testing.T) {
	cfg, err := LoadNetworkConfig(writeConfig(t, "network.json", twoClusterJSON))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if got := cfg.GetEpsilon1(); got != 0.25 {
		t.Errorf("GetEpsilon1() = %f, want 0.25", got)
	}
	if got := cfg.GetEpsilon2(); got != 0.1 {
		t.Errorf("GetEpsilon2() = %f, want 0.1", got)
	}
	if got := cfg.GetTimeSteps(); got != 40 {
		t.Errorf("GetTimeSteps() = %d, want 40", got)
	}
	if !cfg.GetRunAnchors() {
		t.Error("GetRunAnchors() = false, want true")
	}
	if got := cfg.GetNodeCount(); got != 4 {
		t.Errorf("GetNodeCount() = %d, want 4 (largest id + 1)", got)
	}
	if len(cfg.Clusters) != 2 {
		t.Fatalf("Expected 2 clusters, got %d", len(cfg.Clusters))
	}
	if got := cfg.Clusters[0].GetEpsilon(cfg.GetEpsilon2()); got != 0.1 {
		t.Errorf("cluster 0 epsilon = %f, want network default 0.1", got)
	}
	if got := cfg.Clusters[1].GetEpsilon(cfg.GetEpsilon2()); got != 0.05 {
		t.Errorf("cluster 1 epsilon = %f, want override 0.05", got)
	}

	p, err := cfg.Clusters[1].Params()
	if err != nil {
		t.Fatalf("Params() failed: %v", err)
	}
	if p.Nodes() != 1 || p.A.At(0, 0) != 0.5 || p.Sigma.At(0, 0) != 2 || p.C.AtVec(0) != 1 {
		t.Errorf("unexpected params: c=%v a=%v sigma=%v", p.C.AtVec(0), p.A.At(0, 0), p.Sigma.At(0, 0))
	}
}

func TestLoadNetworkConfigYAML(t *testing.T) {
	body := `
epsilon2: 0.3
clusters:
  - nodes: [0, 1]
    params:
      c: [1, 2]
      a: [[0.5, 0], [0, 0.5]]
      sigma: [[1, 0.2], [0.2, 1]]
`
	for _, name := range []string{"network.yaml", "network.yml"} {
		cfg, err := LoadNetworkConfig(writeConfig(t, name, body))
		if err != nil {
			t.Fatalf("%s: failed to load config: %v", name, err)
		}
		if got := cfg.GetEpsilon2(); got != 0.3 {
			t.Errorf("%s: GetEpsilon2() = %f, want 0.3", name, got)
		}
		if got := cfg.GetEpsilon1(); got != DefaultEpsilon1 {
			t.Errorf("%s: GetEpsilon1() = %f, want default %f", name, got, DefaultEpsilon1)
		}
		if got := cfg.Clusters[0].Process.Sigma[0][1]; got != 0.2 {
			t.Errorf("%s: sigma[0][1] = %f, want 0.2", name, got)
		}
	}
}

func TestLoadExampleNetworkConfig(t *testing.T) {
	cfg, err := LoadNetworkConfig(filepath.Join("..", "..", ExampleConfigPath))
	if err != nil {
		t.Fatalf("Failed to load example config: %v", err)
	}
	if got := cfg.GetNodeCount(); got != 5 {
		t.Errorf("GetNodeCount() = %d, want 5", got)
	}
	if len(cfg.Clusters) != 2 {
		t.Errorf("Expected 2 clusters, got %d", len(cfg.Clusters))
	}
}

func TestLoadNetworkConfigErrors(t *testing.T) {
	if _, err := LoadNetworkConfig("/nonexistent/path/to/network.json"); err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
	if _, err := LoadNetworkConfig("/some/path/network.toml"); err == nil {
		t.Error("Expected error for unsupported extension, got nil")
	}
	if _, err := LoadNetworkConfig(writeConfig(t, "bad.json", `{"clusters": [`)); err == nil {
		t.Error("Expected error for invalid JSON, got nil")
	}
	if _, err := LoadNetworkConfig(writeConfig(t, "bad.yaml", "clusters: [:")); err == nil {
		t.Error("Expected error for invalid YAML, got nil")
	}

	large := writeConfig(t, "large.json", strings.Repeat(" ", 2*1024*1024))
	if _, err := LoadNetworkConfig(large); err == nil {
		t.Error("Expected error for file size > 1MB, got nil")
	}
}

func TestNetworkConfigValidate(t *testing.T) {
	neg := -1.0
	zero := 0
	one := 1
	unit := ProcessParams{C: []float64{0}, A: [][]float64{{1}}, Sigma: [][]float64{{1}}}

	tests := []struct {
		name    string
		cfg     NetworkConfig
		wantErr string
	}{
		{"valid", NetworkConfig{Clusters: []Cluster{{Nodes: []int{0}, Process: unit}}}, ""},
		{"no clusters", NetworkConfig{}, "at least one cluster"},
		{"negative epsilon1", NetworkConfig{Epsilon1: &neg, Clusters: []Cluster{{Nodes: []int{0}, Process: unit}}}, "epsilon1"},
		{"negative epsilon2", NetworkConfig{Epsilon2: &neg, Clusters: []Cluster{{Nodes: []int{0}, Process: unit}}}, "epsilon2"},
		{"zero node count", NetworkConfig{NodeCount: &zero, Clusters: []Cluster{{Nodes: []int{0}, Process: unit}}}, "node_count"},
		{"node outside count", NetworkConfig{NodeCount: &one, Clusters: []Cluster{{Nodes: []int{1}, Process: unit}}}, "outside node_count"},
		{"empty cluster", NetworkConfig{Clusters: []Cluster{{Process: unit}}}, "no nodes"},
		{"negative cluster epsilon", NetworkConfig{Clusters: []Cluster{{Nodes: []int{0}, Epsilon: &neg, Process: unit}}}, "epsilon must be non-negative"},
		{"shared node", NetworkConfig{Clusters: []Cluster{{Nodes: []int{0}, Process: unit}, {Nodes: []int{0}, Process: unit}}}, "belongs to clusters"},
		{"params size", NetworkConfig{Clusters: []Cluster{{Nodes: []int{0, 1}, Process: unit}}}, "params.c"},
		{"asymmetric sigma", NetworkConfig{Clusters: []Cluster{{Nodes: []int{0, 1}, Process: ProcessParams{
			C: []float64{0, 0}, A: [][]float64{{1, 0}, {0, 1}}, Sigma: [][]float64{{1, 0.5}, {0, 1}},
		}}}}, "not symmetric"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestGetterDefaults(t *testing.T) {
	cfg := &NetworkConfig{}
	if cfg.GetEpsilon1() != DefaultEpsilon1 {
		t.Errorf("Expected default epsilon1 %f, got %f", DefaultEpsilon1, cfg.GetEpsilon1())
	}
	if cfg.GetEpsilon2() != DefaultEpsilon2 {
		t.Errorf("Expected default epsilon2 %f, got %f", DefaultEpsilon2, cfg.GetEpsilon2())
	}
	if cfg.GetTimeSteps() != 0 {
		t.Errorf("Expected default time_steps 0, got %d", cfg.GetTimeSteps())
	}
	if cfg.GetRunAnchors() {
		t.Error("Expected run_anchors off by default")
	}
	if cfg.GetNodeCount() != 0 {
		t.Errorf("Expected node count 0 without clusters, got %d", cfg.GetNodeCount())
	}
}
