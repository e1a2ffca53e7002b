package fastmatrix

import (
	"fmt"

	"github.com/james-bowman/sparse"

	"github.com/notargets/vlmlists/interaction"
	"github.com/notargets/vlmlists/mesh"
)

// Coverage expands interaction entries onto the finest level: element (k, p)
// counts the entries through which finest loop k sees source p.
func Coverage(m mesh.Mesh, entries []interaction.InteractionEntry, nSources int) (cov *sparse.DOK) {
	cov = sparse.NewDOK(m.NumberOfLoops(0), nSources)
	for i := range entries {
		ie := &entries[i]
		if ie.Len() == 0 {
			continue
		}
		for _, k := range mesh.FineDescendants(m, ie.Level, ie.Loop) {
			for _, p := range ie.Partners() {
				cov.Set(k, p, cov.At(k, p)+1)
			}
		}
	}
	return
}

// VerifyCoverage checks that every pair is represented exactly once and that
// expectedPairs pairs are represented in all.
func VerifyCoverage(cov *sparse.DOK, expectedPairs int) (err error) {
	var (
		pairs int
	)
	cov.DoNonZero(func(k, p int, v float64) {
		pairs++
		if v != 1 && err == nil {
			err = fmt.Errorf("finest loop %d sees source %d %v times", k, p, v)
		}
	})
	if err != nil {
		return
	}
	if pairs != expectedPairs {
		err = fmt.Errorf("%d pairs represented, expected %d", pairs, expectedPairs)
	}
	return
}
