package interaction

import (
	"github.com/notargets/vlmlists/utils"
)

// StreamlineEdge is one vortex edge crossed along a streamline.
type StreamlineEdge struct {
	Edge, Level int
	Distance    float64 // Arc length from the start of the streamline
}

// StreamlineInteractionEntry is the ordered list of edges met along a single
// streamline. It carries no hierarchy and is never merged.
type StreamlineInteractionEntry = utils.DynBuffer[StreamlineEdge]

func NewStreamlineInteractionEntry(n int) *StreamlineInteractionEntry {
	return utils.NewDynBuffer[StreamlineEdge](n)
}
