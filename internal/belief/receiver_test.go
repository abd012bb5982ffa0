package belief

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceiver(t *testing.T) {
	t.Parallel()

	p := mustParams(t, []float64{0, 0}, identity(2), identity(2))

	t.Run("first message must be complete", func(t *testing.T) {
		t.Parallel()
		r, err := NewReceiver(p)
		require.NoError(t, err)
		_, err = r.Receive([]Pair{{Node: 0, Value: 1}})
		assert.ErrorIs(t, err, ErrDimension)
	})

	t.Run("rejects bad content", func(t *testing.T) {
		t.Parallel()
		r, err := NewReceiver(p)
		require.NoError(t, err)
		_, err = r.Receive([]Pair{{Node: 0, Value: 1}, {Node: 2, Value: 1}})
		assert.ErrorIs(t, err, ErrDimension)
		_, err = r.Receive([]Pair{{Node: 0, Value: 1}, {Node: 0, Value: 1}})
		assert.Error(t, err)
	})

	t.Run("reconstructs suppressed and partial epochs", func(t *testing.T) {
		t.Parallel()
		r, err := NewReceiver(p)
		require.NoError(t, err)

		est, err := r.Receive([]Pair{{Node: 1, Value: 2}, {Node: 0, Value: 1}})
		require.NoError(t, err)
		assert.Equal(t, []float64{1, 2}, est)

		est, err = r.Receive(nil)
		require.NoError(t, err)
		assert.InDelta(t, 1, est[0], 1e-12)
		assert.InDelta(t, 2, est[1], 1e-12)
		assert.Equal(t, 4, r.Tracker().Dim())

		est, err = r.Receive([]Pair{{Node: 0, Value: 3}})
		require.NoError(t, err)
		assert.Equal(t, 3.0, est[0])
		assert.InDelta(t, 2, est[1], 1e-12)
		assert.Equal(t, 3, r.Tracker().Dim())

		est, err = r.Receive([]Pair{{Node: 0, Value: 4}, {Node: 1, Value: 5}})
		require.NoError(t, err)
		assert.Equal(t, []float64{4, 5}, est)
		assert.Equal(t, 2, r.Tracker().Dim())
	})
}
