package InputParameters

import (
	"fmt"

	"github.com/ghodss/yaml"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/vlmlists/mesh"
	"github.com/notargets/vlmlists/types"
)

type SurfaceParameters struct {
	Name   string    `yaml:"Name"`
	Type   string    `yaml:"Type"`   // fixed or moving
	Origin []float64 `yaml:"Origin"` // Leading edge root corner, x y z
	Chord  float64   `yaml:"Chord"`
	Span   float64   `yaml:"Span"`
	NI     int       `yaml:"NI"` // Chordwise loops
	NJ     int       `yaml:"NJ"` // Spanwise loops
}

// Parameters obtained from the YAML input file
type MergeParameters struct {
	Title       string              `yaml:"Title"`
	Mach        float64             `yaml:"Mach"`
	FarAway     float64             `yaml:"FarAway"`
	ThreadCount int                 `yaml:"ThreadCount"`
	BaseLevel   int                 `yaml:"BaseLevel"`
	Directions  []string            `yaml:"Directions"` // forward, adjoint, both when empty
	Verify      bool                `yaml:"Verify"`
	Surfaces    []SurfaceParameters `yaml:"Surfaces"`
}

func (ip *MergeParameters) Parse(data []byte) (err error) {
	if err = yaml.Unmarshal(data, ip); err != nil {
		return
	}
	if ip.FarAway == 0 {
		ip.FarAway = 2
	}
	return ip.Validate()
}

func (ip *MergeParameters) Validate() error {
	if ip.FarAway <= 0 {
		return fmt.Errorf("FarAway must be positive, have %v", ip.FarAway)
	}
	if ip.Mach < 0 {
		return fmt.Errorf("Mach must not be negative, have %v", ip.Mach)
	}
	if ip.BaseLevel < 0 {
		return fmt.Errorf("BaseLevel must not be negative, have %d", ip.BaseLevel)
	}
	if len(ip.Surfaces) == 0 {
		return fmt.Errorf("no surfaces defined")
	}
	if _, err := ip.GetDirections(); err != nil {
		return err
	}
	_, err := ip.GetSurfaces()
	return err
}

func (ip *MergeParameters) GetDirections() (dirs []types.Direction, err error) {
	if len(ip.Directions) == 0 {
		return []types.Direction{types.Forward, types.Adjoint}, nil
	}
	seen := make(map[types.Direction]bool)
	for _, label := range ip.Directions {
		var d types.Direction
		if d, err = types.NewDirection(label); err != nil {
			return nil, err
		}
		if !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	return
}

func (ip *MergeParameters) GetSurfaces() (surfaces []mesh.Surface, err error) {
	for i, sp := range ip.Surfaces {
		var (
			lt     types.LoopType
			origin r3.Vec
		)
		if lt, err = types.NewLoopType(sp.Type); err != nil {
			return nil, fmt.Errorf("surface %d (%s): %w", i, sp.Name, err)
		}
		switch len(sp.Origin) {
		case 0:
		case 3:
			origin = r3.Vec{X: sp.Origin[0], Y: sp.Origin[1], Z: sp.Origin[2]}
		default:
			return nil, fmt.Errorf("surface %d (%s): origin needs 3 coordinates, have %d",
				i, sp.Name, len(sp.Origin))
		}
		if sp.Chord <= 0 || sp.Span <= 0 {
			return nil, fmt.Errorf("surface %d (%s): chord and span must be positive", i, sp.Name)
		}
		if sp.NI < 1 || sp.NJ < 1 {
			return nil, fmt.Errorf("surface %d (%s): needs at least one loop in each direction, have %d x %d",
				i, sp.Name, sp.NI, sp.NJ)
		}
		surfaces = append(surfaces, mesh.Surface{
			Name:   sp.Name,
			Type:   lt,
			Origin: origin,
			Chord:  sp.Chord,
			Span:   sp.Span,
			NI:     sp.NI,
			NJ:     sp.NJ,
		})
	}
	return
}

func (ip *MergeParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", ip.Title)
	fmt.Printf("%8.5f\t\t= Mach\n", ip.Mach)
	fmt.Printf("%8.5f\t\t= FarAway\n", ip.FarAway)
	fmt.Printf("[%d]\t\t\t\t= ThreadCount\n", ip.ThreadCount)
	fmt.Printf("[%d]\t\t\t\t= BaseLevel\n", ip.BaseLevel)
	fmt.Printf("%v\t\t= Directions\n", ip.Directions)
	for _, sp := range ip.Surfaces {
		fmt.Printf("Surface[%s] = %s %v chord %g span %g, %d x %d loops\n",
			sp.Name, sp.Type, sp.Origin, sp.Chord, sp.Span, sp.NI, sp.NJ)
	}
}
