//go:build linux

package cmd

import (
	"fmt"

	perf "github.com/hodgesds/perf-utils"
)

// countInstructions runs f under a hardware instruction counter.
func countInstructions(f func() error) (instructions uint64, err error) {
	var (
		ran    bool
		runErr error
		pv     *perf.ProfileValue
	)
	pv, err = perf.CPUInstructions(func() error {
		ran = true
		runErr = f()
		return runErr
	})
	switch {
	case runErr != nil:
		return 0, runErr
	case !ran:
		return 0, fmt.Errorf("instruction counter unavailable: %w", err)
	case err != nil:
		return 0, err
	}
	return pv.Value, nil
}
