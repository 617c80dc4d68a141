package order

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddLineAssignsFreshID(t *testing.T) {
	o := newTestOrder("SO1", "1", "1")
	idx := NewQuantityIndex()
	idx.Track(o)

	removed, err := RemoveLine(o, idx, "SO1-0")
	require.NoError(t, err)
	require.Equal(t, "SO1-0", removed.ID)

	added := AddLine(o, idx)
	require.Equal(t, "SO1-2", added.ID)
	require.Equal(t, "1", added.Quantity.String())
	require.Equal(t, []string{"SO1-1", "SO1-2"}, []string{o.Lines[0].ID, o.Lines[1].ID})

	v, ok := idx.Get(o.LineKey(added.ID))
	require.True(t, ok)
	require.Equal(t, "1", v.String())
}

func TestRemoveLastRealLineRefused(t *testing.T) {
	o := newTestOrder("SO1", "1")
	idx := NewQuantityIndex()
	idx.Track(o)
	require.True(t, RecomputeCourierLine(o, idx, testCourier()))

	_, err := RemoveLine(o, idx, "SO1-0")
	require.ErrorIs(t, err, ErrLastItem)
	require.Len(t, o.Lines, 2)

	// the courier line itself can go
	_, err = RemoveLine(o, idx, "SO1-courier")
	require.NoError(t, err)
	require.Len(t, o.Lines, 1)

	_, err = RemoveLine(o, idx, "nope")
	require.ErrorIs(t, err, ErrLineNotFound)
}
