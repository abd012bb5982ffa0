package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/sensorbelief/internal/belief"
	"github.com/banshee-data/sensorbelief/internal/constraints"
	"github.com/banshee-data/sensorbelief/internal/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResults() []network.SuppressResult {
	return []network.SuppressResult{
		{Cluster: 0, Decisions: []belief.Decision{
			{Epoch: 0, Nodes: []int{0, 1}},
			{Epoch: 1, Suppressed: true},
			{Epoch: 2, Nodes: []int{1}},
		}},
		{Cluster: 1, Decisions: []belief.Decision{
			{Epoch: 0, Nodes: []int{2}},
			{Epoch: 1, Nodes: []int{2}},
		}},
	}
}

func TestTransmissionSeries(t *testing.T) {
	t.Parallel()

	series := TransmissionSeries(sampleResults())
	assert.Equal(t, []Series{
		{Name: "cluster 0", Values: []float64{2, 0, 1}},
		{Name: "cluster 1", Values: []float64{1, 1}},
	}, series)
}

func TestKindCounts(t *testing.T) {
	t.Parallel()

	counts := KindCounts([]constraints.Constraint{
		constraints.NewEquality(0, 0, 1),
		constraints.NewEquality(0, 1, 2),
		constraints.NewInterval(1, 0, 1, 0.5),
	})
	assert.Equal(t, map[constraints.Kind]int{constraints.Equality: 2, constraints.Interval: 1}, counts)
}

func TestSavePNG(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "transmissions.png")
	require.NoError(t, SavePNG(path, "Transmissions", TransmissionSeries(sampleResults())))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")), "PNG signature")

	assert.Error(t, SavePNG(filepath.Join(t.TempDir(), "empty.png"), "none", nil))
}

func TestRenderHTML(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	counts := map[constraints.Kind]int{constraints.Symbolic: 1, constraints.Equality: 4}
	require.NoError(t, RenderHTML(&buf, "Suppression run", TransmissionSeries(sampleResults()), counts))

	html := buf.String()
	assert.Contains(t, html, "Suppression run")
	assert.Contains(t, html, "cluster 1")
	assert.Contains(t, html, "symbolic")
	assert.Contains(t, html, "echarts")
}
