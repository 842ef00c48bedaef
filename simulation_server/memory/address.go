package memory

import (
	"fmt"
	"strings"
)

// AddressLevel names one rung of the world>sector>arena>object hierarchy an
// Address can be truncated to.
type AddressLevel int

const (
	AddressLevelInvalid AddressLevel = iota
	AddressLevelWorld
	AddressLevelSector
	AddressLevelArena
	AddressLevelObject
)

// AddressState marks an Address as a placeholder resolved at move time rather
// than a real world>sector>arena>object location.
type AddressState int

const (
	AddressStateNormal AddressState = iota

	addressStateSpecialStart

	AddressStateWaiting
	AddressStatePersona
	AddressStateSpawningLocation

	addressStateSpecialEnd

	AddressStateRandom
)

// CoordinateArgFormat is the Sscanf/Sprintf format a <waiting> Address's
// argument round-trips through.
const CoordinateArgFormat = "%d %d"

var addressStateTags = map[AddressState]string{
	AddressStateNormal:           "",
	AddressStatePersona:          "<persona>",
	AddressStateRandom:           "<random>",
	AddressStateWaiting:          "<waiting>",
	AddressStateSpawningLocation: "<spawn_loc>",
}

func (s AddressState) ToString() string {
	tag, ok := addressStateTags[s]
	if !ok {
		panic(fmt.Errorf("unexpected memory.AddressState: %#v", s))
	}
	return tag
}

// addressRung indexes the four levels an Address is built from, in order.
type addressRung int

const (
	rungWorld addressRung = iota
	rungSector
	rungArena
	rungObject
	numRungs
)

type AddressOption func(*Address)

func AddressWithWorld(world string) AddressOption   { return func(a *Address) { a.rungs[rungWorld] = world } }
func AddressWithSector(sector string) AddressOption { return func(a *Address) { a.rungs[rungSector] = sector } }
func AddressWithArena(arena string) AddressOption   { return func(a *Address) { a.rungs[rungArena] = arena } }
func AddressWithObject(object string) AddressOption {
	return func(a *Address) { a.rungs[rungObject] = object }
}

// Address locates a place in the simulated world, following the game's own
// colon-separated "world:sector:arena:object" convention. Trailing rungs may
// be blank, which is how an Address can denote a world, a sector inside it,
// and so on, rather than only a fully resolved object.
type Address struct {
	rungs [numRungs]string
}

// ParseAddress splits a colon-separated location string into its rungs.
func ParseAddress(loc string) Address {
	parts := strings.Split(loc, ":")
	if len(parts) > int(numRungs) {
		panic("addresses should consist of 1-4 parts separated by ':'")
	}

	var a Address
	for i, part := range parts {
		a.rungs[i] = part
	}
	return a
}

func NewAddress(opts ...AddressOption) Address {
	var a Address
	for _, opt := range opts {
		opt(&a)
	}
	return a
}

// SpecialAddress builds a placeholder Address for the given state. For
// AddressStateNormal and AddressStateRandom, arg is itself a location string
// that gets parsed (AddressStateRandom additionally tags the object rung);
// every other state stringifies to "<tag> arg" and is parsed from that.
func SpecialAddress(state AddressState, arg string) Address {
	switch state {
	case AddressStateNormal:
		return ParseAddress(arg)
	case AddressStateRandom:
		return ParseAddress(arg).Copy(AddressWithObject("<random>"))
	default:
		return ParseAddress(fmt.Sprintf("%s %s", state.ToString(), arg))
	}
}

func (a Address) Copy(opts ...AddressOption) Address {
	cp := a
	for _, opt := range opts {
		opt(&cp)
	}
	return cp
}

// ToString renders the rungs back into "world:sector:arena:object" form,
// stopping at the first blank rung.
func (a Address) ToString() string {
	parts := make([]string, 0, numRungs)
	for _, r := range a.rungs {
		if r == "" {
			break
		}
		parts = append(parts, r)
	}
	return strings.Join(parts, ":")
}

func (a Address) HasState(state AddressState) bool {
	return a.Contains(state.ToString())
}

// Contains reports whether substr appears in any rung, regardless of level.
func (a Address) Contains(substr string) bool {
	for _, r := range a.rungs {
		if strings.Contains(r, substr) {
			return true
		}
	}
	return false
}

// Base returns the deepest non-blank rung: the object if set, else the
// arena, sector, or world in that order.
func (a Address) Base() string {
	for i := numRungs - 1; i >= 0; i-- {
		if a.rungs[i] != "" {
			return a.rungs[i]
		}
	}
	return ""
}

func (a Address) rungIndex(level AddressLevel) addressRung {
	switch level {
	case AddressLevelWorld:
		return rungWorld
	case AddressLevelSector:
		return rungSector
	case AddressLevelArena:
		return rungArena
	case AddressLevelObject:
		return rungObject
	default:
		panic(fmt.Errorf("trying to index address with invalid level: %d", level))
	}
}

func (a Address) Get(level AddressLevel) string {
	return a.rungs[a.rungIndex(level)]
}

// AtLevel returns a copy truncated to the given level, dropping every rung
// below it.
func (a Address) AtLevel(level AddressLevel) Address {
	if level == AddressLevelInvalid {
		return a
	}

	var out Address
	for r := rungWorld; r <= rungObject; r++ {
		if AddressLevel(r+1) > level {
			break
		}
		out.rungs[r] = a.rungs[r]
	}
	return out
}

// Level reports how deep this Address resolves: the level of its deepest
// non-blank rung.
func (a Address) Level() AddressLevel {
	for r := rungObject; r >= rungWorld; r-- {
		if a.rungs[r] != "" {
			return AddressLevel(r + 1)
		}
	}
	return AddressLevelInvalid
}

// Matches reports whether every non-blank rung of mask equals the
// corresponding rung of a; blank rungs in mask are wildcards.
func (a Address) Matches(mask Address) bool {
	for i := range a.rungs {
		if mask.rungs[i] != "" && a.rungs[i] != mask.rungs[i] {
			return false
		}
	}
	return true
}

func (a Address) IsEmpty() bool {
	return a.rungs == [numRungs]string{}
}

// GetArg extracts the trailing argument out of a special Address's world
// rung, e.g. "<waiting> 3 4" -> "3 4".
func (a Address) GetArg() string {
	for s := addressStateSpecialStart + 1; s < addressStateSpecialEnd; s++ {
		prefix := s.ToString()
		if strings.HasPrefix(a.rungs[rungWorld], prefix) {
			return strings.TrimSpace(strings.TrimPrefix(a.rungs[rungWorld], prefix))
		}
	}
	return ""
}

func (a Address) IsSpecial(s AddressState) bool {
	switch s {
	case AddressStatePersona:
		return strings.HasPrefix(a.rungs[rungWorld], "<persona>")
	case AddressStateRandom:
		return a.Level() == AddressLevelObject && a.rungs[rungObject] == "<random>"
	case AddressStateWaiting:
		return strings.HasPrefix(a.rungs[rungWorld], "<waiting>")
	default:
		return false
	}
}

func (a Address) IsObject() bool {
	return a.rungs[rungObject] != ""
}
