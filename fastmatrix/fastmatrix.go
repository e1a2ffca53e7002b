// Package fastmatrix builds the compressed far-field interaction lists of the
// vortex lattice: fine-level lists that share a distant partner hand it to
// their coarse-level parent, level by level, so each pairwise influence is
// evaluated once at the coarsest admissible level.
package fastmatrix

import (
	"io"
	"log/slog"

	"github.com/notargets/vlmlists/interaction"
	"github.com/notargets/vlmlists/types"
)

type Stats struct {
	ReferencesBefore, ReferencesAfter int
	EntriesBefore, EntriesAfter       int
	Absorbed                          int // Child references handed to a parent
	LevelsMerged                      int
}

type interactionList struct {
	speedRatio float64
	entries    []interaction.InteractionEntry
	stats      Stats
}

/*
FastMatrix owns the interaction lists, one per direction (forward: partners are
edges, adjoint: partners are loops) and loop type. The Size, Use and Delete
calls and the merges are driver calls: they must not run concurrently on the
same list. Lists of different direction or loop type are independent.
*/
type FastMatrix struct {
	lists  [2][types.NumLoopTypes]interactionList
	logger *slog.Logger
}

type Option func(fm *FastMatrix)

func WithLogger(logger *slog.Logger) Option {
	return func(fm *FastMatrix) {
		fm.logger = logger
	}
}

func NewFastMatrix(opts ...Option) (fm *FastMatrix) {
	fm = &FastMatrix{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(fm)
	}
	return
}

func (fm *FastMatrix) list(dir types.Direction, lt types.LoopType) *interactionList {
	return &fm.lists[dir][lt]
}

func (fm *FastMatrix) sizeList(dir types.Direction, lt types.LoopType, n int) {
	l := fm.list(dir, lt)
	l.entries = make([]interaction.InteractionEntry, n)
}

func (fm *FastMatrix) useList(dir types.Direction, lt types.LoopType, entries []interaction.InteractionEntry) {
	l := fm.list(dir, lt)
	l.entries = entries
}

func (fm *FastMatrix) deleteList(dir types.Direction, lt types.LoopType) {
	l := fm.list(dir, lt)
	l.entries = nil
	l.speedRatio = 0
	l.stats = Stats{}
}

// SizeForwardList replaces the forward list of lt with n empty entries.
func (fm *FastMatrix) SizeForwardList(lt types.LoopType, n int) { fm.sizeList(types.Forward, lt, n) }
func (fm *FastMatrix) SizeAdjointList(lt types.LoopType, n int) { fm.sizeList(types.Adjoint, lt, n) }

// UseForwardList installs entries as the forward list of lt. FastMatrix owns
// the entries from here on, the caller must not keep using them.
func (fm *FastMatrix) UseForwardList(lt types.LoopType, entries []interaction.InteractionEntry) {
	fm.useList(types.Forward, lt, entries)
}

func (fm *FastMatrix) UseAdjointList(lt types.LoopType, entries []interaction.InteractionEntry) {
	fm.useList(types.Adjoint, lt, entries)
}

func (fm *FastMatrix) DeleteForwardList(lt types.LoopType) { fm.deleteList(types.Forward, lt) }
func (fm *FastMatrix) DeleteAdjointList(lt types.LoopType) { fm.deleteList(types.Adjoint, lt) }

func (fm *FastMatrix) NumberOfForwardInteractionLoops(lt types.LoopType) int {
	return len(fm.list(types.Forward, lt).entries)
}

func (fm *FastMatrix) NumberOfAdjointInteractionLoops(lt types.LoopType) int {
	return len(fm.list(types.Adjoint, lt).entries)
}

// ForwardInteractionLoopList is the forward list of lt, callers must treat it
// as read-only.
func (fm *FastMatrix) ForwardInteractionLoopList(lt types.LoopType) []interaction.InteractionEntry {
	return fm.list(types.Forward, lt).entries
}

func (fm *FastMatrix) AdjointInteractionLoopList(lt types.LoopType) []interaction.InteractionEntry {
	return fm.list(types.Adjoint, lt).entries
}

// ForwardSpeedRatio is the number of references before the last forward merge
// of lt divided by the number after it. Informational only.
func (fm *FastMatrix) ForwardSpeedRatio(lt types.LoopType) float64 {
	return fm.list(types.Forward, lt).speedRatio
}

func (fm *FastMatrix) AdjointSpeedRatio(lt types.LoopType) float64 {
	return fm.list(types.Adjoint, lt).speedRatio
}

func (fm *FastMatrix) Stats(dir types.Direction, lt types.LoopType) Stats {
	return fm.list(dir, lt).stats
}

// Lists snapshots the current lists into the lookup table consumed by the
// velocity and adjoint evaluations. The entries are shared, not copied.
func (fm *FastMatrix) Lists() (l *interaction.Lists) {
	l = &interaction.Lists{}
	for _, dir := range []types.Direction{types.Forward, types.Adjoint} {
		for lt := types.LoopType(0); lt < types.NumLoopTypes; lt++ {
			l.Set(dir, lt, fm.list(dir, lt).entries)
		}
	}
	return
}
