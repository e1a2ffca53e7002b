package types

import (
	"fmt"
	"strings"
)

// LoopType separates the geometry that is fixed in the body frame from the
// geometry in relative motion (rotors, propellers). Lists of one type never
// reference loops of the other as receivers.
type LoopType uint8

const (
	FixedLoops LoopType = iota
	MovingLoops
	NumLoopTypes = 2
)

var LoopTypeNameMap = map[string]LoopType{
	"fixed":  FixedLoops,
	"static": FixedLoops,
	"moving": MovingLoops,
	"rotor":  MovingLoops,
}

func NewLoopType(label string) (lt LoopType, err error) {
	var ok bool
	if lt, ok = LoopTypeNameMap[strings.ToLower(strings.TrimSpace(label))]; !ok {
		err = fmt.Errorf("unknown loop type %q", label)
	}
	return
}

func (lt LoopType) String() string {
	switch lt {
	case FixedLoops:
		return "Fixed"
	case MovingLoops:
		return "Moving"
	}
	return fmt.Sprintf("LoopType(%d)", uint8(lt))
}

// Direction selects the partner granularity of an interaction list: edges for
// the forward velocity evaluation, loops for the adjoint.
type Direction uint8

const (
	Forward Direction = iota
	Adjoint
)

var DirectionNameMap = map[string]Direction{
	"forward": Forward,
	"primal":  Forward,
	"adjoint": Adjoint,
}

func NewDirection(label string) (d Direction, err error) {
	var ok bool
	if d, ok = DirectionNameMap[strings.ToLower(strings.TrimSpace(label))]; !ok {
		err = fmt.Errorf("unknown direction %q", label)
	}
	return
}

func (d Direction) String() string {
	switch d {
	case Forward:
		return "Forward"
	case Adjoint:
		return "Adjoint"
	}
	return fmt.Sprintf("Direction(%d)", uint8(d))
}
