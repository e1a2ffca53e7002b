package cmd

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/vlmlists/InputParameters"
	"github.com/notargets/vlmlists/fastmatrix"
	"github.com/notargets/vlmlists/types"
)

func TestCompress(t *testing.T) {
	var (
		err    error
		ctx    = context.Background()
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	)
	fileInput := []byte(`
Title: Test Case
Mach: 0.3
FarAway: 1.5
ThreadCount: 3
Surfaces:
  - Name: wing
    Type: fixed
    Chord: 1.
    Span: 4.
    NI: 4
    NJ: 8
  - Name: rotor
    Type: moving
    Origin: [3, 0, 0.5]
    Chord: 0.25
    Span: 1
    NI: 2
    NJ: 4
`)
	var input InputParameters.MergeParameters
	if err = input.Parse(fileInput); err != nil {
		panic(err)
	}
	{ // Test both directions and loop types with coverage verification
		report, err := Compress(ctx, &input, true, logger)
		require.NoError(t, err)
		assert.Equal(t, 4, report.Levels)
		require.Equal(t, 4, len(report.Results))
		assert.Equal(t, types.Forward, report.Results[0].Direction)
		assert.Equal(t, types.FixedLoops, report.Results[0].LoopType)
		assert.Equal(t, types.MovingLoops, report.Results[1].LoopType)
		assert.Equal(t, types.Adjoint, report.Results[2].Direction)
		// 4x8 wing: 9*4 + 8*5 edges, 2x4 rotor: 5*2 + 4*3 edges
		assert.Equal(t, 32*98, report.Results[0].Stats.ReferencesBefore)
		assert.Equal(t, 8*40, report.Results[3].Stats.ReferencesBefore)
		for _, r := range report.Results {
			assert.Greater(t, r.SpeedRatio, 1., "%s %s", r.Direction, r.LoopType)
		}
		assert.Greater(t, report.SpeedRatio(), 1.)
		report.Print()
	}
	{ // Test one direction and a base level
		ip := input
		ip.Directions = []string{"adjoint"}
		ip.BaseLevel = 1
		report, err := Compress(ctx, &ip, true, logger)
		require.NoError(t, err)
		require.Equal(t, 2, len(report.Results))
		assert.Equal(t, types.Adjoint, report.Results[0].Direction)
		assert.Equal(t, 2, report.Results[0].Stats.LevelsMerged)
		// There are no level 1 entries to merge from
		assert.Equal(t, 32, report.Results[0].Stats.EntriesBefore)
		assert.Equal(t, 32, report.Results[0].Stats.EntriesAfter)
		assert.Equal(t, 1., report.Results[0].SpeedRatio)

		ip.BaseLevel = 4
		_, err = Compress(ctx, &ip, false, logger)
		assert.Error(t, err)
	}
	{ // Test verbose runs report one streamline per surface
		var buf bytes.Buffer
		debug := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		ip := input
		ip.Directions = []string{"forward"}
		_, err := Compress(ctx, &ip, false, debug)
		require.NoError(t, err)
		out := buf.String()
		assert.Contains(t, out, "msg=streamline surface=wing strip=4 edges=5")
		assert.Contains(t, out, "msg=streamline surface=rotor strip=2 edges=3")
		assert.Contains(t, out, "length=0.25")
	}
}

func TestApplyOverrides(t *testing.T) {
	ip := &InputParameters.MergeParameters{ThreadCount: 2, FarAway: 2, Mach: 0.5,
		Surfaces: []InputParameters.SurfaceParameters{
			{Name: "plate", Type: "fixed", Chord: 1, Span: 1, NI: 1, NJ: 1},
		},
	}
	{ // Nothing set keeps the input file values
		require.NoError(t, applyOverrides(ip, viper.New()))
		assert.Equal(t, 2, ip.ThreadCount)
		assert.Equal(t, 2., ip.FarAway)
		assert.Equal(t, 0.5, ip.Mach)
	}
	{ // Set values win
		v := viper.New()
		v.Set("threads", 8)
		v.Set("farAway", 4.)
		require.NoError(t, applyOverrides(ip, v))
		assert.Equal(t, 8, ip.ThreadCount)
		assert.Equal(t, 4., ip.FarAway)
		assert.Equal(t, 0.5, ip.Mach)
	}
	{ // Overridden values are validated like the input file
		v := viper.New()
		v.Set("farAway", -1.)
		assert.Error(t, applyOverrides(ip, v))

		v = viper.New()
		v.Set("farAway", 2.)
		v.Set("mach", -2.)
		assert.Error(t, applyOverrides(ip, v))
	}
}

func TestCompressReport(t *testing.T) {
	report := &CompressReport{Title: "empty", Levels: 1}
	assert.Equal(t, 1., report.SpeedRatio())
	report.Results = []CompressResult{
		{Stats: fastmatrix.Stats{ReferencesBefore: 30, ReferencesAfter: 10}},
		{Stats: fastmatrix.Stats{ReferencesBefore: 10, ReferencesAfter: 10}},
	}
	assert.Equal(t, 2., report.SpeedRatio())
	report.Print()
}
