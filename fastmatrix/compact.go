package fastmatrix

import (
	"fmt"

	"github.com/notargets/vlmlists/interaction"
	"github.com/notargets/vlmlists/types"
)

// CompactForwardList drops the forward entries of lt that have no partners
// left. Merges compact on their own, this is for lists edited by hand.
func (fm *FastMatrix) CompactForwardList(lt types.LoopType) {
	l := fm.list(types.Forward, lt)
	l.entries = compactEntries(l.entries)
}

func (fm *FastMatrix) CompactAdjointList(lt types.LoopType) {
	l := fm.list(types.Adjoint, lt)
	l.entries = compactEntries(l.entries)
}

// compactEntries moves the non-empty entries into a new, exactly sized array.
// The partner storage moves with them, the old array is left to the collector.
func compactEntries(entries []interaction.InteractionEntry) (compacted []interaction.InteractionEntry) {
	var (
		nKeep, k int
	)
	for i := range entries {
		if entries[i].Len() > 0 {
			nKeep++
		}
	}
	compacted = make([]interaction.InteractionEntry, nKeep)
	for i := range entries {
		if entries[i].Len() == 0 {
			continue
		}
		compacted[k] = entries[i]
		k++
	}
	if k != nKeep {
		panic(fmt.Sprintf("compaction kept %d entries, counted %d", k, nKeep))
	}
	return
}
