package fastmatrix

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/vlmlists/interaction"
	"github.com/notargets/vlmlists/mesh"
	"github.com/notargets/vlmlists/types"
)

func wingAndRotor() *mesh.Lattice {
	return mesh.NewLattice(
		mesh.Surface{Name: "wing", Type: types.FixedLoops, Chord: 1, Span: 2, NI: 4, NJ: 4},
		mesh.Surface{Name: "rotor", Type: types.MovingLoops, Origin: r3.Vec{X: 3, Y: 0, Z: 0.5},
			Chord: 0.5, Span: 0.5, NI: 2, NJ: 1},
	)
}

func TestLatticeCoverage(t *testing.T) {
	var (
		ctx = context.Background()
		lat = wingAndRotor()
	)
	{ // Forward, fixed loops
		fm := NewFastMatrix()
		fm.UseForwardList(types.FixedLoops, lat.FinestForwardEntries(types.FixedLoops))
		fm.MergeForwardList(ctx, 3, 0, types.FixedLoops, lat, 0.2, 1)
		entries := fm.ForwardInteractionLoopList(types.FixedLoops)
		cov := Coverage(lat, entries, lat.NumberOfEdges())
		assert.NoError(t, VerifyCoverage(cov, 16*lat.NumberOfEdges()))
		stats := fm.Stats(types.Forward, types.FixedLoops)
		assert.Equal(t, 16*47, stats.ReferencesBefore)
		assert.Less(t, stats.ReferencesAfter, stats.ReferencesBefore)
		assert.Equal(t, 2, stats.LevelsMerged)
		assert.Greater(t, fm.ForwardSpeedRatio(types.FixedLoops), 1.)
		for i := range entries {
			assert.NotZero(t, entries[i].Len())
			assert.True(t, entries[i].IsSorted())
			assert.Equal(t, types.FixedLoops, lat.LoopType(entries[i].Level, entries[i].Loop))
		}
	}
	{ // Adjoint, fixed loops
		fm := NewFastMatrix()
		fm.UseAdjointList(types.FixedLoops, lat.FinestAdjointEntries(types.FixedLoops))
		fm.MergeAdjointList(ctx, 2, 0, types.FixedLoops, lat, 0.2, 1)
		cov := Coverage(lat, fm.AdjointInteractionLoopList(types.FixedLoops), lat.NumberOfLoops(0))
		assert.NoError(t, VerifyCoverage(cov, 16*18))
		assert.Greater(t, fm.AdjointSpeedRatio(types.FixedLoops), 1.)
	}
	{ // Broken lists are reported
		entries := lat.FinestForwardEntries(types.FixedLoops)
		cov := Coverage(lat, entries[1:], lat.NumberOfEdges())
		assert.Error(t, VerifyCoverage(cov, 16*lat.NumberOfEdges()))

		entries = append(entries, interaction.NewInteractionEntry(1, 0, []int{3}))
		cov = Coverage(lat, entries, lat.NumberOfEdges())
		assert.Error(t, VerifyCoverage(cov, 16*lat.NumberOfEdges()))
	}
}

func TestLatticeParallelDeterminism(t *testing.T) {
	var (
		ctx = context.Background()
		lat = wingAndRotor()
	)
	merge := func(threadCount int) []interaction.InteractionEntry {
		fm := NewFastMatrix()
		fm.UseForwardList(types.FixedLoops, lat.FinestForwardEntries(types.FixedLoops))
		fm.MergeForwardList(ctx, threadCount, 0, types.FixedLoops, lat, 0, 1.5)
		return fm.ForwardInteractionLoopList(types.FixedLoops)
	}
	serial := merge(1)
	for _, threadCount := range []int{0, 2, 3, 7, 64} {
		parallel := merge(threadCount)
		require.Equal(t, len(serial), len(parallel), "threads %d", threadCount)
		assert.Equal(t, entryMap(serial), entryMap(parallel), "threads %d", threadCount)
	}
}

func TestLatticeRepeatedMerge(t *testing.T) {
	var (
		ctx = context.Background()
		lat = wingAndRotor()
		fm  = NewFastMatrix()
	)
	fm.UseForwardList(types.FixedLoops, lat.FinestForwardEntries(types.FixedLoops))
	fm.MergeForwardList(ctx, 4, 0, types.FixedLoops, lat, 0, 4)
	first := entryMap(fm.ForwardInteractionLoopList(types.FixedLoops))
	firstRefs := interaction.CountPartners(fm.ForwardInteractionLoopList(types.FixedLoops))

	// A smaller farAway can only promote more
	fm.MergeForwardList(ctx, 4, 0, types.FixedLoops, lat, 0, 1)
	entries := fm.ForwardInteractionLoopList(types.FixedLoops)
	second := entryMap(entries)
	for k := 0; k < 16; k++ {
		key := [2]int{0, k}
		assert.LessOrEqual(t, len(second[key]), len(first[key]), "fine loop %d grew", k)
	}
	assert.LessOrEqual(t, interaction.CountPartners(entries), firstRefs)
	cov := Coverage(lat, entries, lat.NumberOfEdges())
	assert.NoError(t, VerifyCoverage(cov, 16*lat.NumberOfEdges()))

	// Merging again with the same parameters changes nothing
	fm.MergeForwardList(ctx, 4, 0, types.FixedLoops, lat, 0, 1)
	assert.Equal(t, second, entryMap(fm.ForwardInteractionLoopList(types.FixedLoops)))
	assert.Equal(t, 0, fm.Stats(types.Forward, types.FixedLoops).Absorbed)
	assert.Equal(t, 1., fm.ForwardSpeedRatio(types.FixedLoops))
}

func TestLatticeLoopTypes(t *testing.T) {
	var (
		ctx = context.Background()
		lat = wingAndRotor()
		fm  = NewFastMatrix()
	)
	fixed := lat.FinestForwardEntries(types.FixedLoops)
	fm.UseForwardList(types.FixedLoops, fixed)
	fm.UseForwardList(types.MovingLoops, lat.FinestForwardEntries(types.MovingLoops))
	fm.MergeForwardList(ctx, 2, 0, types.MovingLoops, lat, 0, 1)

	// The fixed list is not touched by a moving merge
	assert.Equal(t, 16, fm.NumberOfForwardInteractionLoops(types.FixedLoops))
	assert.Equal(t, 16*47, interaction.CountPartners(fm.ForwardInteractionLoopList(types.FixedLoops)))

	moving := fm.ForwardInteractionLoopList(types.MovingLoops)
	em := entryMap(moving)
	require.NotEmpty(t, em[[2]int{1, 4}])
	for i := range moving {
		assert.Equal(t, types.MovingLoops, lat.LoopType(moving[i].Level, moving[i].Loop))
		// The rotor is a single loop from level 1 on
		assert.Less(t, moving[i].Level, 2)
	}
	cov := Coverage(lat, moving, lat.NumberOfEdges())
	assert.NoError(t, VerifyCoverage(cov, 2*lat.NumberOfEdges()))

	lists := fm.Lists()
	assert.Equal(t, len(moving), len(lists.Get(types.Forward, types.MovingLoops)))
	assert.Equal(t, 16, len(lists.Get(types.Forward, types.FixedLoops)))
	assert.Equal(t, 0, len(lists.Get(types.Adjoint, types.MovingLoops)))
}

func TestLatticeOddDimensions(t *testing.T) {
	var (
		ctx = context.Background()
	)
	for _, tc := range []struct {
		ni, nj, levels, edges int
	}{
		{3, 3, 3, 24},
		{5, 7, 4, 82},
	} {
		lat := mesh.NewLattice(
			mesh.Surface{Name: "wing", Type: types.FixedLoops, Chord: 1, Span: 2, NI: tc.ni, NJ: tc.nj},
			mesh.Surface{Name: "far", Type: types.MovingLoops, Origin: r3.Vec{X: 100},
				Chord: 1, Span: 1, NI: 2, NJ: 2},
		)
		require.Equal(t, tc.levels, lat.NumberOfLevels())
		// 2x2 far surface: 3*2 chordwise + 2*3 bound edges
		require.Equal(t, tc.edges+12, lat.NumberOfEdges())
		var (
			nFixed   = tc.ni * tc.nj
			coarsest = lat.NumberOfLevels() - 1
			farEdges []int
		)
		for p := tc.edges; p < lat.NumberOfEdges(); p++ {
			farEdges = append(farEdges, p)
		}
		{ // Test forward coverage and compression up to the coarsest level
			fm := NewFastMatrix()
			fm.UseForwardList(types.FixedLoops, lat.FinestForwardEntries(types.FixedLoops))
			fm.MergeForwardList(ctx, 3, 0, types.FixedLoops, lat, 0, 1)
			entries := fm.ForwardInteractionLoopList(types.FixedLoops)
			cov := Coverage(lat, entries, lat.NumberOfEdges())
			assert.NoError(t, VerifyCoverage(cov, nFixed*lat.NumberOfEdges()), "%dx%d", tc.ni, tc.nj)
			em := entryMap(entries)
			require.Equal(t, 1, lat.NumberOfLoops(coarsest))
			assert.Subset(t, em[[2]int{coarsest, 0}], farEdges, "%dx%d", tc.ni, tc.nj)
			for i := range entries {
				if entries[i].Level == coarsest {
					continue
				}
				for _, p := range entries[i].Partners() {
					assert.Less(t, p, tc.edges, "far edge %d below the coarsest level", p)
				}
			}
			assert.Equal(t, tc.levels-1, fm.Stats(types.Forward, types.FixedLoops).LevelsMerged)
		}
		{ // Test adjoint coverage
			fm := NewFastMatrix()
			fm.UseAdjointList(types.FixedLoops, lat.FinestAdjointEntries(types.FixedLoops))
			fm.MergeAdjointList(ctx, 2, 0, types.FixedLoops, lat, 0, 1)
			cov := Coverage(lat, fm.AdjointInteractionLoopList(types.FixedLoops), lat.NumberOfLoops(0))
			assert.NoError(t, VerifyCoverage(cov, nFixed*lat.NumberOfLoops(0)), "%dx%d", tc.ni, tc.nj)
			assert.Greater(t, fm.AdjointSpeedRatio(types.FixedLoops), 1.)
		}
		{ // Test determinism with uneven agglomeration
			merge := func(threadCount int) map[[2]int][]int {
				fm := NewFastMatrix()
				fm.UseForwardList(types.FixedLoops, lat.FinestForwardEntries(types.FixedLoops))
				fm.MergeForwardList(ctx, threadCount, 0, types.FixedLoops, lat, 0, 1.5)
				return entryMap(fm.ForwardInteractionLoopList(types.FixedLoops))
			}
			assert.Equal(t, merge(1), merge(5))
		}
	}
}
