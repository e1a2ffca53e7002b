// Package mesh defines what the list compressor needs from the agglomerated
// surface mesh, and provides a structured lattice that satisfies it.
package mesh

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/vlmlists/types"
)

// Sources is a partner id space: edges for forward lists, loops for adjoint
// lists. Ids run from 0 to Len()-1.
type Sources interface {
	Len() int
	Location(id int) r3.Vec
}

/*
Mesh is a multigrid hierarchy of vortex loops. Level 0 is the finest level,
level NumberOfLevels()-1 the coarsest. Each loop at level L > 0 is the
agglomeration of its Children at level L-1, and a loop has at most one parent.
The mesh is read-only while interaction lists are being merged.
*/
type Mesh interface {
	NumberOfLevels() int
	NumberOfLoops(level int) int
	Children(level, loop int) []int
	Centroid(level, loop int) r3.Vec
	RefLength(level, loop int) float64
	LoopType(level, loop int) types.LoopType
	EdgeSources() Sources
	LoopSources() Sources
}

// PointSet is a Sources backed by a slice of reference points.
type PointSet []r3.Vec

func (ps PointSet) Len() int               { return len(ps) }
func (ps PointSet) Location(id int) r3.Vec { return ps[id] }

// FineDescendants lists the level 0 loops agglomerated into loop at level.
func FineDescendants(m Mesh, level, loop int) (fine []int) {
	if level == 0 {
		return []int{loop}
	}
	for _, child := range m.Children(level, loop) {
		fine = append(fine, FineDescendants(m, level-1, child)...)
	}
	return
}
