package clock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncrement_CreatesEntryAtOne(t *testing.T) {
	vc := New().Increment("alpha")
	assert.Equal(t, int64(1), vc.Counter("alpha"))
}

func TestIncrement_DoesNotMutateReceiver(t *testing.T) {
	base := VectorClock{"alpha": 2}
	next := base.Increment("alpha")

	assert.Equal(t, int64(2), base.Counter("alpha"))
	assert.Equal(t, int64(3), next.Counter("alpha"))
}

func TestMerge_PointwiseMaximum(t *testing.T) {
	a := VectorClock{"alpha": 3, "beta": 1}
	b := VectorClock{"beta": 5, "gamma": 2}

	merged := a.Merge(b)

	assert.Equal(t, VectorClock{"alpha": 3, "beta": 5, "gamma": 2}, merged)
}

func TestMerge_Commutative(t *testing.T) {
	a := VectorClock{"alpha": 3, "beta": 1}
	b := VectorClock{"beta": 5, "gamma": 2}

	assert.Equal(t, a.Merge(b), b.Merge(a))
}

func TestMerge_Idempotent(t *testing.T) {
	a := VectorClock{"alpha": 3, "beta": 1}
	assert.Equal(t, a, a.Merge(a))
}

func TestMerge_Associative(t *testing.T) {
	a := VectorClock{"alpha": 1}
	b := VectorClock{"beta": 2}
	c := VectorClock{"alpha": 4, "gamma": 1}

	assert.Equal(t, a.Merge(b).Merge(c), a.Merge(b.Merge(c)))
}

func TestMerge_DoesNotMutateReceiver(t *testing.T) {
	a := VectorClock{"alpha": 1}
	b := VectorClock{"alpha": 9}

	_ = a.Merge(b)

	assert.Equal(t, int64(1), a.Counter("alpha"))
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b VectorClock
		want Ordering
	}{
		{"both empty", VectorClock{}, VectorClock{}, Equal},
		{"identical", VectorClock{"alpha": 2, "beta": 1}, VectorClock{"alpha": 2, "beta": 1}, Equal},
		{"strict successor", VectorClock{"alpha": 3, "beta": 1}, VectorClock{"alpha": 2, "beta": 1}, Dominates},
		{"strict predecessor", VectorClock{"alpha": 2}, VectorClock{"alpha": 2, "beta": 1}, Dominated},
		{"mixed ahead and behind", VectorClock{"alpha": 3, "beta": 1}, VectorClock{"alpha": 1, "beta": 2}, Concurrent},
		{"disjoint non-zero keys", VectorClock{"alpha": 1}, VectorClock{"beta": 1}, Concurrent},
		{"zero entry equals absent", VectorClock{"alpha": 1, "beta": 0}, VectorClock{"alpha": 1}, Equal},
		{"empty dominated by any write", VectorClock{}, VectorClock{"alpha": 1}, Dominated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Compare(tt.b))
		})
	}
}

func TestCompare_Antisymmetric(t *testing.T) {
	a := VectorClock{"alpha": 3, "beta": 1}
	b := VectorClock{"alpha": 2, "beta": 1}

	assert.Equal(t, Dominates, a.Compare(b))
	assert.Equal(t, Dominated, b.Compare(a))
}

func TestValidate(t *testing.T) {
	require.NoError(t, VectorClock{"alpha": 0, "beta": 7}.Validate())

	err := VectorClock{"alpha": -1}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "negative")

	err = VectorClock{"": 1}.Validate()
	require.Error(t, err)
}

func TestClone_Independent(t *testing.T) {
	a := VectorClock{"alpha": 1}
	b := a.Clone()
	b["alpha"] = 5

	assert.Equal(t, int64(1), a.Counter("alpha"))
}

func TestOrdering_String(t *testing.T) {
	assert.Equal(t, "equal", Equal.String())
	assert.Equal(t, "dominates", Dominates.String())
	assert.Equal(t, "dominated", Dominated.String())
	assert.Equal(t, "concurrent", Concurrent.String())
}
