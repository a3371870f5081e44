package graph

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestBuild_SimpleChain(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	dag, err := Build([]Input{
		{ID: a},
		{ID: b, Dependencies: []uuid.UUID{a}},
		{ID: c, Dependencies: []uuid.UUID{b}},
	})
	require.NoError(t, err)
	require.Equal(t, 3, dag.Size())
	require.Len(t, dag.RootNodes, 1)
	require.Equal(t, a, dag.RootNodes[0].ID)

	nodeB := dag.Nodes[b]
	require.Len(t, nodeB.DependsOn, 1)
	require.Equal(t, a, nodeB.DependsOn[0].ID)
}

func TestBuild_Diamond(t *testing.T) {
	a, b, c, d := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	dag, err := Build([]Input{
		{ID: a},
		{ID: b, Dependencies: []uuid.UUID{a}},
		{ID: c, Dependencies: []uuid.UUID{a}},
		{ID: d, Dependencies: []uuid.UUID{b, c}},
	})
	require.NoError(t, err)

	ready := dag.ReadyNodes(map[uuid.UUID]bool{}, map[uuid.UUID]bool{})
	require.Len(t, ready, 1)
	require.Equal(t, a, ready[0].ID)

	ready = dag.ReadyNodes(map[uuid.UUID]bool{a: true}, map[uuid.UUID]bool{})
	ids := map[uuid.UUID]bool{}
	for _, n := range ready {
		ids[n.ID] = true
	}
	require.True(t, ids[b])
	require.True(t, ids[c])
	require.False(t, ids[d])

	ready = dag.ReadyNodes(map[uuid.UUID]bool{a: true, b: true, c: true}, map[uuid.UUID]bool{})
	require.Len(t, ready, 1)
	require.Equal(t, d, ready[0].ID)
}

func TestBuild_Cycle(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	_, err := Build([]Input{
		{ID: a, Dependencies: []uuid.UUID{b}},
		{ID: b, Dependencies: []uuid.UUID{a}},
	})
	require.ErrorIs(t, err, ErrCyclicDependency)
}

func TestBuild_MissingDependency(t *testing.T) {
	a := uuid.New()
	missing := uuid.New()

	_, err := Build([]Input{
		{ID: a, Dependencies: []uuid.UUID{missing}},
	})
	require.ErrorIs(t, err, ErrMissingDependency)
}

func TestDAG_Dependents(t *testing.T) {
	a, b, c, d := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	dag, err := Build([]Input{
		{ID: a},
		{ID: b, Dependencies: []uuid.UUID{a}},
		{ID: c, Dependencies: []uuid.UUID{b}},
		{ID: d}, // independent
	})
	require.NoError(t, err)

	deps := dag.Dependents(a)
	require.ElementsMatch(t, []uuid.UUID{b, c}, deps)
	require.Empty(t, dag.Dependents(d))
}
