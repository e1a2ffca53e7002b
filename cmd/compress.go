/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pkg/profile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/notargets/vlmlists/InputParameters"
	"github.com/notargets/vlmlists/fastmatrix"
	"github.com/notargets/vlmlists/mesh"
	"github.com/notargets/vlmlists/types"
	"github.com/notargets/vlmlists/utils"
)

type CompressRun struct {
	InputFile   string
	MetricsFile string
	Profile     string
	Perf        bool
	Trace       bool
	Verbose     bool
	Verify      bool
}

// CompressCmd represents the compress command
var CompressCmd = &cobra.Command{
	Use:   "compress",
	Short: "Build and compress the interaction lists of a vortex lattice",
	Long: `
Builds the agglomerated lattice described by the input file, fills the finest level
interaction lists with every pair and merges them level by level,

vlmlists compress -I input.yaml --farAway 2 --verify`,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			err error
		)
		cr := &CompressRun{}
		if cr.InputFile, err = cmd.Flags().GetString("inputConditionsFile"); err != nil {
			panic(err)
		}
		cr.MetricsFile, _ = cmd.Flags().GetString("metricsFile")
		cr.Profile, _ = cmd.Flags().GetString("profile")
		cr.Perf, _ = cmd.Flags().GetBool("perf")
		cr.Trace, _ = cmd.Flags().GetBool("trace")
		cr.Verbose, _ = cmd.Flags().GetBool("verbose")
		cr.Verify, _ = cmd.Flags().GetBool("verify")
		ip := processCompressInput(cr)
		if err = applyOverrides(ip, viper.GetViper()); err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
		if ip.Verify {
			cr.Verify = true
		}
		if err = cr.Run(context.Background(), ip); err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(CompressCmd)
	CompressCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML file for input parameters like:\n\t- Mach\n\t- FarAway\n\t- Surfaces")
	CompressCmd.Flags().IntP("threads", "t", 0, "worker count for each level, 0 for one per CPU")
	CompressCmd.Flags().Float64("farAway", 2, "admissibility factor, larger keeps more interactions at the fine level")
	CompressCmd.Flags().Float64("mach", 0, "free stream Mach number, above 1 contracts the free stream distance")
	CompressCmd.Flags().Bool("verify", false, "check that every receiver and source pair is represented exactly once")
	CompressCmd.Flags().String("metricsFile", "", "write the merge metrics in Prometheus text format to this file")
	CompressCmd.Flags().String("profile", "", "profile the run: cpu or mem")
	CompressCmd.Flags().Bool("perf", false, "count CPU instructions of the merge (linux only)")
	CompressCmd.Flags().Bool("trace", false, "print the merge trace spans to stderr")
	CompressCmd.Flags().BoolP("verbose", "v", false, "log every merged level")
	for _, name := range []string{"threads", "farAway", "mach"} {
		if err := viper.BindPFlag(name, CompressCmd.Flags().Lookup(name)); err != nil {
			panic(err)
		}
	}
}

func processCompressInput(cr *CompressRun) (ip *InputParameters.MergeParameters) {
	var (
		err error
	)
	if len(cr.InputFile) == 0 {
		err := fmt.Errorf("must supply an input parameters file (-I, --inputConditionsFile) in YAML format")
		fmt.Printf("error: %s\n", err.Error())
		exampleFile := `
########################################
Title: "Wing and rotor"
Mach: 0.3
FarAway: 2.
ThreadCount: 0 # One per CPU
BaseLevel: 0
Directions: [forward, adjoint]
Surfaces:
  - Name: wing
    Type: fixed
    Origin: [0, 0, 0]
    Chord: 1.
    Span: 8.
    NI: 8
    NJ: 64
  - Name: rotor
    Type: moving
    Origin: [3, 0, 0.5]
    Chord: 0.25
    Span: 1.
    NI: 2
    NJ: 16
########################################
`
		fmt.Printf("Example File:%s\n", exampleFile)
		os.Exit(1)
	}
	var data []byte
	if data, err = os.ReadFile(cr.InputFile); err != nil {
		panic(err)
	}
	ip = &InputParameters.MergeParameters{}
	if err = ip.Parse(data); err != nil {
		panic(err)
	}
	return
}

// applyOverrides lets flags, the config file and VLMLISTS_ variables
// override the input file, then validates the result.
func applyOverrides(ip *InputParameters.MergeParameters, v *viper.Viper) error {
	if v.IsSet("threads") {
		ip.ThreadCount = v.GetInt("threads")
	}
	if v.IsSet("farAway") {
		ip.FarAway = v.GetFloat64("farAway")
	}
	if v.IsSet("mach") {
		ip.Mach = v.GetFloat64("mach")
	}
	return ip.Validate()
}

func (cr *CompressRun) logger() *slog.Logger {
	level := slog.LevelInfo
	if cr.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func (cr *CompressRun) Run(ctx context.Context, ip *InputParameters.MergeParameters) (err error) {
	var (
		logger = cr.logger()
		report *CompressReport
	)
	ip.Print()
	switch cr.Profile {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.Quiet).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.Quiet).Stop()
	default:
		return fmt.Errorf("unknown profile %q, use cpu or mem", cr.Profile)
	}
	if cr.Trace {
		var shutdown func(context.Context) error
		if shutdown, err = installTracer(); err != nil {
			return
		}
		defer func() {
			if serr := shutdown(context.Background()); serr != nil {
				logger.Warn("trace shutdown failed", "error", serr)
			}
		}()
	}
	start := time.Now()
	merge := func() (err error) {
		report, err = Compress(ctx, ip, cr.Verify, logger)
		return
	}
	if cr.Perf {
		var instructions uint64
		if instructions, err = countInstructions(merge); err != nil {
			return
		}
		logger.Info("instructions", "count", instructions)
	} else if err = merge(); err != nil {
		return
	}
	report.Print()
	logger.Info("compression done", "elapsed", time.Since(start), "memory", utils.GetMemUsage())
	if len(cr.MetricsFile) != 0 {
		if err = prometheus.WriteToTextfile(cr.MetricsFile, prometheus.DefaultGatherer); err != nil {
			return
		}
	}
	return
}

func installTracer() (shutdown func(context.Context) error, err error) {
	var exporter *stdouttrace.Exporter
	if exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint(), stdouttrace.WithWriter(os.Stderr)); err != nil {
		return
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	shutdown = tp.Shutdown
	return
}

type CompressResult struct {
	Direction  types.Direction
	LoopType   types.LoopType
	Stats      fastmatrix.Stats
	SpeedRatio float64
}

type CompressReport struct {
	Title   string
	Levels  int
	Results []CompressResult
}

// SpeedRatio is the reference ratio over every list of the run.
func (cr *CompressReport) SpeedRatio() float64 {
	var (
		before = make([]float64, len(cr.Results))
		after  = make([]float64, len(cr.Results))
	)
	for i, r := range cr.Results {
		before[i] = float64(r.Stats.ReferencesBefore)
		after[i] = float64(r.Stats.ReferencesAfter)
	}
	if floats.Sum(after) == 0 {
		return 1
	}
	return floats.Sum(before) / floats.Sum(after)
}

func (cr *CompressReport) Print() {
	fmt.Printf("\"%s\", %d levels\n", cr.Title, cr.Levels)
	fmt.Printf("%-8s %-7s %10s %10s %8s %8s %10s\n",
		"List", "Loops", "RefsIn", "RefsOut", "EntIn", "EntOut", "Speedup")
	for _, r := range cr.Results {
		fmt.Printf("%-8s %-7s %10d %10d %8d %8d %10.3f\n", r.Direction, r.LoopType,
			r.Stats.ReferencesBefore, r.Stats.ReferencesAfter,
			r.Stats.EntriesBefore, r.Stats.EntriesAfter, r.SpeedRatio)
	}
	fmt.Printf("Overall speedup %8.3f\n", cr.SpeedRatio())
}

/*
Compress builds the lattice of ip, fills the finest lists of every requested
direction with all pairs and merges them. The forward and adjoint lists are
merged concurrently, each of them runs its levels on ip.ThreadCount workers.
*/
func Compress(ctx context.Context, ip *InputParameters.MergeParameters, verify bool,
	logger *slog.Logger) (report *CompressReport, err error) {
	var (
		surfaces []mesh.Surface
		dirs     []types.Direction
	)
	if surfaces, err = ip.GetSurfaces(); err != nil {
		return
	}
	if dirs, err = ip.GetDirections(); err != nil {
		return
	}
	var (
		lat       = mesh.NewLattice(surfaces...)
		fm        = fastmatrix.NewFastMatrix(fastmatrix.WithLogger(logger))
		loopTypes []types.LoopType
	)
	if ip.BaseLevel >= lat.NumberOfLevels() {
		err = fmt.Errorf("base level %d, the lattice has %d levels", ip.BaseLevel, lat.NumberOfLevels())
		return
	}
	for lt := types.LoopType(0); lt < types.NumLoopTypes; lt++ {
		if lat.NumberOfLoopsOfType(lt) == 0 {
			continue
		}
		loopTypes = append(loopTypes, lt)
		for _, dir := range dirs {
			if dir == types.Forward {
				fm.UseForwardList(lt, lat.FinestForwardEntries(lt))
			} else {
				fm.UseAdjointList(lt, lat.FinestAdjointEntries(lt))
			}
		}
	}
	logger.Info("lattice built", "levels", lat.NumberOfLevels(), "loops", lat.NumberOfLoops(0),
		"edges", lat.NumberOfEdges())
	if err = logStreamlines(lat, logger); err != nil {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, dir := range dirs {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%s merge: %v", dir, r)
				}
			}()
			for _, lt := range loopTypes {
				if dir == types.Forward {
					fm.MergeForwardList(gctx, ip.ThreadCount, ip.BaseLevel, lt, lat, ip.Mach, ip.FarAway)
				} else {
					fm.MergeAdjointList(gctx, ip.ThreadCount, ip.BaseLevel, lt, lat, ip.Mach, ip.FarAway)
				}
			}
			return
		})
	}
	if err = g.Wait(); err != nil {
		return
	}

	report = &CompressReport{Title: ip.Title, Levels: lat.NumberOfLevels()}
	for _, dir := range dirs {
		for _, lt := range loopTypes {
			r := CompressResult{Direction: dir, LoopType: lt, Stats: fm.Stats(dir, lt)}
			if dir == types.Forward {
				r.SpeedRatio = fm.ForwardSpeedRatio(lt)
			} else {
				r.SpeedRatio = fm.AdjointSpeedRatio(lt)
			}
			report.Results = append(report.Results, r)
		}
	}
	if verify {
		if err = verifyLists(lat, fm, dirs, loopTypes); err != nil {
			return
		}
		logger.Info("coverage verified")
	}
	return
}

// logStreamlines reports the chordwise streamline through the middle strip of
// each surface at debug level.
func logStreamlines(lat *mesh.Lattice, logger *slog.Logger) error {
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		return nil
	}
	for s, sf := range lat.Surfaces {
		sl, err := lat.ChordwiseStreamline(s, sf.NJ/2)
		if err != nil {
			return err
		}
		last := sl.At(sl.Len() - 1)
		logger.Debug("streamline", "surface", sf.Name, "strip", sf.NJ/2, "edges", sl.Len(),
			"firstEdge", sl.At(0).Edge, "lastEdge", last.Edge, "length", last.Distance)
	}
	return nil
}

func verifyLists(lat *mesh.Lattice, fm *fastmatrix.FastMatrix, dirs []types.Direction,
	loopTypes []types.LoopType) (err error) {
	lists := fm.Lists()
	for _, dir := range dirs {
		nSources := lat.NumberOfEdges()
		if dir == types.Adjoint {
			nSources = lat.NumberOfLoops(0)
		}
		for _, lt := range loopTypes {
			cov := fastmatrix.Coverage(lat, lists.Get(dir, lt), nSources)
			if err = fastmatrix.VerifyCoverage(cov, lat.NumberOfLoopsOfType(lt)*nSources); err != nil {
				return fmt.Errorf("%s %s list: %w", dir, lt, err)
			}
		}
	}
	return
}
