package interaction

import (
	"github.com/notargets/vlmlists/types"
)

// Lists is the lookup table handed to the velocity and adjoint evaluations,
// one entry array per direction and loop type.
type Lists struct {
	Forward [types.NumLoopTypes][]InteractionEntry
	Adjoint [types.NumLoopTypes][]InteractionEntry
}

func (l *Lists) Get(dir types.Direction, lt types.LoopType) []InteractionEntry {
	if dir == types.Adjoint {
		return l.Adjoint[lt]
	}
	return l.Forward[lt]
}

func (l *Lists) Set(dir types.Direction, lt types.LoopType, entries []InteractionEntry) {
	if dir == types.Adjoint {
		l.Adjoint[lt] = entries
		return
	}
	l.Forward[lt] = entries
}

// NumberOfInteractions is the total number of partner references in a list.
func (l *Lists) NumberOfInteractions(dir types.Direction, lt types.LoopType) int {
	return CountPartners(l.Get(dir, lt))
}
