package fastmatrix

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/vlmlists/interaction"
	"github.com/notargets/vlmlists/mesh"
	"github.com/notargets/vlmlists/types"
	"github.com/notargets/vlmlists/utils"
)

/*
MergeForwardList compresses the forward (edge partner) list of loop type lt.
For every mesh level above baseLevel, each coarse loop takes the edges that all
of its children list and that are far enough away:

	ClusterRadius * farAway <= Distance(coarse centroid, edge)

The children lose those edges, children left with nothing are dropped. The
coarse levels are processed in order, the loops of one level in parallel on
threadCount workers (0 for one per CPU). mach > 1 contracts the free stream
component of the distance. ctx carries the trace span only, a merge always
runs to completion.
*/
func (fm *FastMatrix) MergeForwardList(ctx context.Context, threadCount, baseLevel int, lt types.LoopType,
	m mesh.Mesh, mach, farAway float64) {
	fm.mergeList(ctx, types.Forward, threadCount, baseLevel, lt, m, m.EdgeSources(), mach, farAway)
}

// MergeAdjointList is MergeForwardList for the adjoint (loop partner) list.
func (fm *FastMatrix) MergeAdjointList(ctx context.Context, threadCount, baseLevel int, lt types.LoopType,
	m mesh.Mesh, mach, farAway float64) {
	fm.mergeList(ctx, types.Adjoint, threadCount, baseLevel, lt, m, m.LoopSources(), mach, farAway)
}

func (fm *FastMatrix) mergeList(ctx context.Context, dir types.Direction, threadCount, baseLevel int,
	lt types.LoopType, m mesh.Mesh, sources mesh.Sources, mach, farAway float64) {
	var (
		l      = fm.list(dir, lt)
		mg     = newListMerger(m, sources, lt, mach, farAway)
		labels = []string{dir.String(), lt.String()}
		stats  = Stats{
			ReferencesBefore: interaction.CountPartners(l.entries),
			EntriesBefore:    len(l.entries),
		}
	)
	ctx, span := tracer.Start(ctx, "FastMatrix.Merge", trace.WithAttributes(
		attribute.String("direction", dir.String()),
		attribute.String("loop_type", lt.String()),
		attribute.Int("base_level", baseLevel),
		attribute.Int("entries", len(l.entries)),
	))
	defer span.End()
	mg.checkEntries(l.entries)

	for L := baseLevel + 1; L < m.NumberOfLevels(); L++ {
		start := time.Now()
		_, levelSpan := tracer.Start(ctx, "FastMatrix.MergeLevel", trace.WithAttributes(
			attribute.Int("level", L),
			attribute.Int("loops", m.NumberOfLoops(L)),
		))
		newEntries, hits := mg.mergeLevel(threadCount, L, l.entries)
		l.entries = append(l.entries, newEntries...)
		levelSpan.SetAttributes(attribute.Int("absorbed", hits), attribute.Int("new_entries", len(newEntries)))
		levelSpan.End()
		mergeLevelDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
		stats.Absorbed += hits
		stats.LevelsMerged++
		fm.logger.Debug("merged level", "direction", dir, "loopType", lt, "level", L,
			"newEntries", len(newEntries), "absorbed", hits)
	}
	l.entries = compactEntries(l.entries)

	stats.ReferencesAfter = interaction.CountPartners(l.entries)
	stats.EntriesAfter = len(l.entries)
	if stats.ReferencesAfter > 0 {
		l.speedRatio = float64(stats.ReferencesBefore) / float64(stats.ReferencesAfter)
	} else {
		l.speedRatio = 1
	}
	l.stats = stats
	referencesAbsorbed.WithLabelValues(labels...).Add(float64(stats.Absorbed))
	speedRatio.WithLabelValues(labels...).Set(l.speedRatio)
	interactionEntries.WithLabelValues(labels...).Set(float64(stats.EntriesAfter))
	span.SetAttributes(attribute.Float64("speed_ratio", l.speedRatio))
	fm.logger.Info("merged interaction list", "direction", dir, "loopType", lt,
		"levels", stats.LevelsMerged, "entries", stats.EntriesAfter,
		"referencesBefore", stats.ReferencesBefore, "referencesAfter", stats.ReferencesAfter,
		"speedRatio", l.speedRatio)
}

// listMerger holds what stays fixed over one merge call, the per worker
// scratch is grown on demand and reused from level to level.
type listMerger struct {
	mesh     mesh.Mesh
	sources  mesh.Sources
	loopType types.LoopType
	farAway  float64
	xScale   float64
	scratch  []*mergeScratch
}

func newListMerger(m mesh.Mesh, sources mesh.Sources, lt types.LoopType, mach, farAway float64) *listMerger {
	return &listMerger{
		mesh:     m,
		sources:  sources,
		loopType: lt,
		farAway:  farAway,
		xScale:   CompressibilityScale(mach),
	}
}

// CompressibilityScale is the factor applied to the free stream component of
// the admissibility distance. Subsonic distances are unscaled, supersonic ones
// are divided by beta = sqrt(M^2-1) when that contracts them.
func CompressibilityScale(mach float64) float64 {
	if mach <= 1 {
		return 1
	}
	return math.Min(1, 1/math.Sqrt(mach*mach-1))
}

func (mg *listMerger) distance(receiver, source r3.Vec) float64 {
	d := r3.Sub(source, receiver)
	d.X *= mg.xScale
	return r3.Norm(d)
}

// clusterRadius is the largest distance from the coarse centroid to a child
// centroid, or the coarse loop's own length when the children are concentric.
func (mg *listMerger) clusterRadius(L, e int, centroid r3.Vec, children []int) (r float64) {
	for _, c := range children {
		r = math.Max(r, r3.Norm(r3.Sub(mg.mesh.Centroid(L-1, c), centroid)))
	}
	if r == 0 {
		r = mg.mesh.RefLength(L, e)
	}
	return
}

func (mg *listMerger) admissible(centroid r3.Vec, radius float64, partner int) bool {
	return radius*mg.farAway <= mg.distance(centroid, mg.sources.Location(partner))
}

func (mg *listMerger) checkEntries(entries []interaction.InteractionEntry) {
	nSources := mg.sources.Len()
	for i := range entries {
		ie := &entries[i]
		if !ie.IsSorted() {
			panic(fmt.Sprintf("partners of level %d loop %d are not strictly ascending", ie.Level, ie.Loop))
		}
		if n := ie.Len(); n > 0 && (ie.Partner(0) < 0 || ie.Partner(n-1) >= nSources) {
			panic(fmt.Sprintf("partners of level %d loop %d outside the source range [0, %d)",
				ie.Level, ie.Loop, nSources))
		}
	}
}

// entryLookup maps the loops of one level to the position of their non-empty
// entry, -1 when there is none.
func entryLookup(entries []interaction.InteractionEntry, level, nLoops int) (lookup []int) {
	lookup = make([]int, nLoops)
	for k := range lookup {
		lookup[k] = -1
	}
	for i := range entries {
		ie := &entries[i]
		if ie.Level != level || ie.Len() == 0 {
			continue
		}
		if ie.Loop < 0 || ie.Loop >= nLoops {
			panic(fmt.Sprintf("entry for loop %d, level %d has %d loops", ie.Loop, level, nLoops))
		}
		if lookup[ie.Loop] != -1 {
			panic(fmt.Sprintf("two entries for loop %d at level %d", ie.Loop, level))
		}
		lookup[ie.Loop] = i
	}
	return
}

// mergeLevel builds the level L entries from the level L-1 entries, trimming
// the latter in place. Entries of level L left by an earlier merge are grown
// in place, only entries for loops that had none are returned.
func (mg *listMerger) mergeLevel(threadCount, L int, entries []interaction.InteractionEntry) (
	newEntries []interaction.InteractionEntry, hits int) {
	var (
		nCoarse  = mg.mesh.NumberOfLoops(L)
		children = entryLookup(entries, L-1, mg.mesh.NumberOfLoops(L-1))
		parents  = entryLookup(entries, L, nCoarse)
		coarse   = make([]interaction.InteractionEntry, nCoarse)
		pm       = utils.NewPartitionMap(utils.ParallelDegree(threadCount, nCoarse), nCoarse)
	)
	for len(mg.scratch) < pm.ParallelDegree {
		mg.scratch = append(mg.scratch, newMergeScratch(mg.sources.Len()))
	}
	pm.RunPartitioned(func(myThread, kMin, kMax int) {
		s := mg.scratch[myThread]
		s.reset()
		for e := kMin; e < kMax; e++ {
			var out *interaction.InteractionEntry
			if parents[e] >= 0 {
				out = &entries[parents[e]]
			} else {
				out = &coarse[e]
			}
			s.mergeLoop(mg, L, e, entries, children, out)
		}
	})
	for np := 0; np < pm.ParallelDegree; np++ {
		hits += mg.scratch[np].hits
	}
	for e := range coarse {
		if coarse[e].Len() > 0 {
			newEntries = append(newEntries, coarse[e])
		}
	}
	return
}

// mergeScratch is private to one worker.
type mergeScratch struct {
	kids     []*interaction.InteractionEntry
	cursor   []int
	isCommon []bool // Indexed by partner id
	common   []int
	hits     int
}

func newMergeScratch(nSources int) *mergeScratch {
	return &mergeScratch{
		isCommon: make([]bool, nSources),
	}
}

func (s *mergeScratch) reset() {
	clear(s.isCommon)
	s.hits = 0
}

func (s *mergeScratch) mergeLoop(mg *listMerger, L, e int, entries []interaction.InteractionEntry,
	children []int, out *interaction.InteractionEntry) {
	if mg.mesh.LoopType(L, e) != mg.loopType {
		return
	}
	// A single child hands up every admissible partner it has
	kids := mg.mesh.Children(L, e)
	if len(kids) == 0 {
		return
	}
	s.kids, s.cursor = s.kids[:0], s.cursor[:0]
	for _, c := range kids {
		if children[c] < 0 {
			return
		}
		s.kids = append(s.kids, &entries[children[c]])
		s.cursor = append(s.cursor, 0)
	}
	var (
		nKids    = len(s.kids)
		centroid = mg.mesh.Centroid(L, e)
		radius   = mg.clusterRadius(L, e, centroid, kids)
	)
	// Sweep the first child's partners, the other children's cursors only
	// move forward since all lists are ascending
	s.common = s.common[:0]
	for _, p := range s.kids[0].Partners() {
		var found int
		for c := 1; c < nKids; c++ {
			var (
				list = s.kids[c].Partners()
				cur  = s.cursor[c]
			)
			for cur < len(list) && list[cur] < p {
				cur++
			}
			s.cursor[c] = cur
			if cur == len(list) || list[cur] != p {
				break
			}
			found++
		}
		// found counts the children after the first
		if found == nKids-1 && mg.admissible(centroid, radius, p) {
			s.common = append(s.common, p)
			s.isCommon[p] = true
		}
	}
	if len(s.common) == 0 {
		return
	}
	if out.Len() == 0 {
		out.Level, out.Loop = L, e
		out.SizeList(len(s.common))
		for i, p := range s.common {
			out.SetPartner(i, p)
		}
	} else {
		out.UseList(mergeSorted(out.Partners(), s.common))
	}
	for _, kid := range s.kids {
		trimmed := make([]int, 0, kid.Len()-len(s.common))
		for _, p := range kid.Partners() {
			if !s.isCommon[p] {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) == 0 {
			kid.Zero()
		} else {
			kid.UseList(trimmed)
		}
	}
	for _, p := range s.common {
		s.isCommon[p] = false
	}
	s.hits += nKids * len(s.common)
}

// mergeSorted merges two ascending, disjoint lists into a new one.
func mergeSorted(a, b []int) (merged []int) {
	var (
		i, j int
	)
	merged = make([]int, 0, len(a)+len(b))
	for i < len(a) && j < len(b) {
		if a[i] < b[j] {
			merged = append(merged, a[i])
			i++
		} else {
			merged = append(merged, b[j])
			j++
		}
	}
	merged = append(merged, a[i:]...)
	merged = append(merged, b[j:]...)
	return
}
