// Package interaction holds the per-element interaction lists consumed by the
// velocity and adjoint evaluations.
package interaction

import (
	"github.com/notargets/vlmlists/utils"
)

/*
InteractionEntry is the interaction list of one receiver element: the loop
Loop at mesh level Level sees every partner listed in it. Partners are ids into
the source space of the list (edges for forward lists, loops for adjoint
lists), the sources themselves belong to the mesh.

Within a merge pass the partner ids are kept sorted ascending and unique, which
lets sibling lists be intersected with a single forward sweep.
*/
type InteractionEntry struct {
	Level, Loop int
	partners    utils.DynBuffer[int]
}

func NewInteractionEntry(level, loop int, partners []int) (ie InteractionEntry) {
	ie.Level, ie.Loop = level, loop
	ie.partners.Use(partners)
	return
}

func (ie *InteractionEntry) Len() int                  { return ie.partners.Len() }
func (ie *InteractionEntry) Partner(i int) int         { return ie.partners.At(i) }
func (ie *InteractionEntry) SetPartner(i, partner int) { ie.partners.Set(i, partner) }

// Partners is a read-only view of the partner ids.
func (ie *InteractionEntry) Partners() []int { return ie.partners.Cells() }

// SizeList discards the current partners and allocates n zeroed ids.
func (ie *InteractionEntry) SizeList(n int) { ie.partners.Size(n) }

// ResizeList keeps the first min(n, Len()) partners. Panics if the list was
// never sized.
func (ie *InteractionEntry) ResizeList(n int) { ie.partners.Resize(n) }

func (ie *InteractionEntry) DeleteList() { ie.partners.Delete() }

// UseList adopts list as the partner storage, the caller gives up ownership.
func (ie *InteractionEntry) UseList(list []int) { ie.partners.Use(list) }

// Zero marks an entry fully absorbed by its ancestors, it is dropped by the
// next compaction.
func (ie *InteractionEntry) Zero() {
	ie.Level, ie.Loop = 0, 0
	ie.partners.Delete()
}

func (ie *InteractionEntry) Copy() InteractionEntry {
	return InteractionEntry{
		Level:    ie.Level,
		Loop:     ie.Loop,
		partners: ie.partners.Copy(),
	}
}

// IsSorted reports whether the partners are strictly ascending.
func (ie *InteractionEntry) IsSorted() bool {
	p := ie.partners.Cells()
	for i := 1; i < len(p); i++ {
		if p[i] <= p[i-1] {
			return false
		}
	}
	return true
}

// CountPartners sums the list lengths of entries.
func CountPartners(entries []InteractionEntry) (total int) {
	for i := range entries {
		total += entries[i].Len()
	}
	return
}
