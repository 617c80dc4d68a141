package order

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyFor(t *testing.T) {
	require.Equal(t, Key("X-1"), KeyFor(Order{ID: " X-1 ", ExternalDocNo: "PO-9"}, 3))
	require.Equal(t, Key("PO-9"), KeyFor(Order{ExternalDocNo: "PO-9"}, 3))
	require.Equal(t, Key("3"), KeyFor(Order{}, 3))
}

func TestAssignKeepsExplicitLineIDs(t *testing.T) {
	o := Order{Lines: []Line{{ID: "keep"}, {}}}
	o.Assign("SO1")
	require.Equal(t, "keep", o.Lines[0].ID)
	require.Equal(t, "SO1-1", o.Lines[1].ID)

	key := o.LineKey("SO1-1")
	ok, item := key.Split()
	require.Equal(t, Key("SO1"), ok)
	require.Equal(t, "SO1-1", item)
}

func TestCloneIsDeep(t *testing.T) {
	o := Order{
		Customer:           &Party{Number: "C1"},
		CustomerCandidates: []Candidate{{Number: "C1"}},
		Lines:              []Line{{Item: &ItemRef{Number: "I1"}, Candidates: []Candidate{{Number: "I1"}}}},
	}
	o.Assign("SO1")
	c := o.Clone()

	c.Customer.Number = "C2"
	c.CustomerCandidates[0].Number = "C2"
	c.Lines[0].Item.Number = "I2"
	c.Lines[0].Candidates[0].Number = "I2"

	require.Equal(t, "C1", o.Customer.Number)
	require.True(t, o.HasCustomerCandidate("C1"))
	require.Equal(t, "I1", o.Lines[0].ItemNumber())
	require.True(t, o.Lines[0].HasCandidate("I1"))
	require.False(t, o.Lines[0].HasCandidate(""))
}
