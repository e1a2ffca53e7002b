package mesh

import (
	"fmt"
	"math"

	"github.com/unixpickle/essentials"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/vlmlists/interaction"
	"github.com/notargets/vlmlists/types"
)

// Surface is a flat rectangular lifting surface in the z = Origin.Z plane,
// chord along +x (the free stream) and span along +y, split into NI x NJ
// vortex loops.
type Surface struct {
	Name        string
	Type        types.LoopType
	Origin      r3.Vec // Leading edge, root corner
	Chord, Span float64
	NI, NJ      int // Chordwise, spanwise loop counts
}

type latticeLevel struct {
	centroid []r3.Vec
	area     []float64
	min, max []r3.Vec
	loopType []types.LoopType
	children [][]int
	// Structured layout, per surface
	dims  [][2]int
	first []int
}

func (ll *latticeLevel) numLoops() int { return len(ll.centroid) }

func newLatticeLevel(nSurf, nLoops int) *latticeLevel {
	return &latticeLevel{
		centroid: make([]r3.Vec, nLoops),
		area:     make([]float64, nLoops),
		min:      make([]r3.Vec, nLoops),
		max:      make([]r3.Vec, nLoops),
		loopType: make([]types.LoopType, nLoops),
		children: make([][]int, nLoops),
		dims:     make([][2]int, nSurf),
		first:    make([]int, nSurf),
	}
}

/*
Lattice is a structured agglomerated vortex lattice. Each surface is coarsened
2x2 per level, independently of the other surfaces, until it is a single loop.
Loops of different surfaces are never agglomerated together. The number of
levels is set by the most refined surface.

Forward sources are the vortex edges of the finest level, located at their
midpoints. Adjoint sources are the finest level loops, located at their
centroids.
*/
type Lattice struct {
	Surfaces   []Surface
	levels     []*latticeLevel
	edges      PointSet
	loops      PointSet
	stripEdges [][][]int // [surface][spanwise strip] bound edge ids, leading edge first
}

func NewLattice(surfaces ...Surface) (lat *Lattice) {
	lat = &Lattice{Surfaces: surfaces}
	lat.buildFinestLevel()
	for lat.coarsen() {
	}
	return
}

func (lat *Lattice) buildFinestLevel() {
	var (
		nLoops int
	)
	for _, sf := range lat.Surfaces {
		if sf.NI < 1 || sf.NJ < 1 {
			panic(fmt.Sprintf("surface %q needs at least one loop in each direction, have %d x %d",
				sf.Name, sf.NI, sf.NJ))
		}
		nLoops += sf.NI * sf.NJ
	}
	ll := newLatticeLevel(len(lat.Surfaces), nLoops)
	lat.stripEdges = make([][][]int, len(lat.Surfaces))
	var k int
	for s, sf := range lat.Surfaces {
		var (
			dx = sf.Chord / float64(sf.NI)
			dy = sf.Span / float64(sf.NJ)
		)
		at := func(x, y float64) r3.Vec {
			return r3.Add(sf.Origin, r3.Vec{X: x, Y: y})
		}
		ll.dims[s] = [2]int{sf.NI, sf.NJ}
		ll.first[s] = k
		for j := 0; j < sf.NJ; j++ {
			for i := 0; i < sf.NI; i++ {
				x, y := float64(i)*dx, float64(j)*dy
				ll.centroid[k] = at(x+0.5*dx, y+0.5*dy)
				ll.area[k] = dx * dy
				ll.min[k], ll.max[k] = at(x, y), at(x+dx, y+dy)
				ll.loopType[k] = sf.Type
				lat.loops = append(lat.loops, ll.centroid[k])
				k++
			}
		}
		// Chordwise edges first, then the spanwise bound edges of each strip
		for j := 0; j <= sf.NJ; j++ {
			for i := 0; i < sf.NI; i++ {
				lat.edges = append(lat.edges, at((float64(i)+0.5)*dx, float64(j)*dy))
			}
		}
		lat.stripEdges[s] = make([][]int, sf.NJ)
		for j := 0; j < sf.NJ; j++ {
			lat.stripEdges[s][j] = make([]int, sf.NI+1)
			for i := 0; i <= sf.NI; i++ {
				lat.stripEdges[s][j][i] = len(lat.edges)
				lat.edges = append(lat.edges, at(float64(i)*dx, (float64(j)+0.5)*dy))
			}
		}
	}
	lat.levels = []*latticeLevel{ll}
}

// coarsen adds one level, it reports false once every surface is a single loop.
func (lat *Lattice) coarsen() bool {
	var (
		fine   = lat.levels[len(lat.levels)-1]
		nSurf  = len(lat.Surfaces)
		dims   = make([][2]int, nSurf)
		nLoops int
		more   bool
	)
	for s := 0; s < nSurf; s++ {
		ni, nj := fine.dims[s][0], fine.dims[s][1]
		if ni*nj > 1 {
			more = true
			dims[s] = [2]int{(ni + 1) / 2, (nj + 1) / 2}
		}
		nLoops += dims[s][0] * dims[s][1]
	}
	if !more {
		return false
	}
	coarse := newLatticeLevel(nSurf, nLoops)
	var k int
	for s := 0; s < nSurf; s++ {
		var (
			ni, nj   = fine.dims[s][0], fine.dims[s][1]
			cni, cnj = dims[s][0], dims[s][1]
		)
		coarse.dims[s] = dims[s]
		coarse.first[s] = k
		for J := 0; J < cnj; J++ {
			for I := 0; I < cni; I++ {
				for jj := 2 * J; jj < 2*J+2 && jj < nj; jj++ {
					for ii := 2 * I; ii < 2*I+2 && ii < ni; ii++ {
						coarse.children[k] = append(coarse.children[k], fine.first[s]+jj*ni+ii)
					}
				}
				k++
			}
		}
	}
	essentials.ConcurrentMap(0, nLoops, func(k int) {
		var (
			children = coarse.children[k]
			sum      r3.Vec
			area     float64
			min, max = fine.min[children[0]], fine.max[children[0]]
		)
		for _, c := range children {
			sum = r3.Add(sum, r3.Scale(fine.area[c], fine.centroid[c]))
			area += fine.area[c]
			min, max = boxUnion(min, max, fine.min[c], fine.max[c])
		}
		coarse.centroid[k] = r3.Scale(1/area, sum)
		coarse.area[k] = area
		coarse.min[k], coarse.max[k] = min, max
		coarse.loopType[k] = fine.loopType[children[0]]
	})
	lat.levels = append(lat.levels, coarse)
	return true
}

func boxUnion(min1, max1, min2, max2 r3.Vec) (min, max r3.Vec) {
	min = r3.Vec{X: math.Min(min1.X, min2.X), Y: math.Min(min1.Y, min2.Y), Z: math.Min(min1.Z, min2.Z)}
	max = r3.Vec{X: math.Max(max1.X, max2.X), Y: math.Max(max1.Y, max2.Y), Z: math.Max(max1.Z, max2.Z)}
	return
}

func (lat *Lattice) NumberOfLevels() int             { return len(lat.levels) }
func (lat *Lattice) NumberOfLoops(level int) int     { return lat.levels[level].numLoops() }
func (lat *Lattice) Children(level, loop int) []int  { return lat.levels[level].children[loop] }
func (lat *Lattice) Centroid(level, loop int) r3.Vec { return lat.levels[level].centroid[loop] }
func (lat *Lattice) Area(level, loop int) float64    { return lat.levels[level].area[loop] }
func (lat *Lattice) EdgeSources() Sources            { return lat.edges }
func (lat *Lattice) LoopSources() Sources            { return lat.loops }
func (lat *Lattice) NumberOfEdges() int              { return len(lat.edges) }
func (lat *Lattice) LoopType(level, loop int) types.LoopType {
	return lat.levels[level].loopType[loop]
}

// RefLength is the diagonal of the loop's bounding box.
func (lat *Lattice) RefLength(level, loop int) float64 {
	ll := lat.levels[level]
	return r3.Norm(r3.Sub(ll.max[loop], ll.min[loop]))
}

// NumberOfLoopsOfType counts the finest level loops of type lt.
func (lat *Lattice) NumberOfLoopsOfType(lt types.LoopType) (n int) {
	for _, t := range lat.levels[0].loopType {
		if t == lt {
			n++
		}
	}
	return
}

// FinestForwardEntries is the uncompressed forward list for loops of type lt:
// every finest loop sees every edge of the lattice.
func (lat *Lattice) FinestForwardEntries(lt types.LoopType) []interaction.InteractionEntry {
	return lat.allPairs(lt, len(lat.edges))
}

// FinestAdjointEntries is the uncompressed adjoint list for loops of type lt:
// every finest loop sees every finest loop.
func (lat *Lattice) FinestAdjointEntries(lt types.LoopType) []interaction.InteractionEntry {
	return lat.allPairs(lt, len(lat.loops))
}

func (lat *Lattice) allPairs(lt types.LoopType, nSources int) (entries []interaction.InteractionEntry) {
	var (
		fine = lat.levels[0]
	)
	entries = make([]interaction.InteractionEntry, 0, lat.NumberOfLoopsOfType(lt))
	for k := 0; k < fine.numLoops(); k++ {
		if fine.loopType[k] != lt {
			continue
		}
		partners := make([]int, nSources)
		for p := range partners {
			partners[p] = p
		}
		entries = append(entries, interaction.NewInteractionEntry(0, k, partners))
	}
	return
}

// ChordwiseStreamline lists the bound edges crossed by the streamline running
// down the middle of spanwise strip j of surface s, leading edge first.
func (lat *Lattice) ChordwiseStreamline(s, j int) (sl *interaction.StreamlineInteractionEntry, err error) {
	if s < 0 || s >= len(lat.Surfaces) {
		err = fmt.Errorf("surface %d out of range [0, %d)", s, len(lat.Surfaces))
		return
	}
	if j < 0 || j >= len(lat.stripEdges[s]) {
		err = fmt.Errorf("strip %d out of range [0, %d) on surface %q", j, len(lat.stripEdges[s]),
			lat.Surfaces[s].Name)
		return
	}
	var (
		strip = lat.stripEdges[s][j]
		start = lat.edges[strip[0]]
	)
	sl = interaction.NewStreamlineInteractionEntry(len(strip))
	for i, edge := range strip {
		sl.Set(i, interaction.StreamlineEdge{
			Edge:     edge,
			Level:    0,
			Distance: r3.Norm(r3.Sub(lat.edges[edge], start)),
		})
	}
	return
}
