package agent

import (
	"fmt"
	"math/rand"

	"github.com/fvdveen/reverie/simulation_server/maze"
	"github.com/fvdveen/reverie/simulation_server/memory"
)

func sample[T any](arr []T, sampleSize int) []T {
	n := len(arr)

	rand.Shuffle(n, func(i, j int) {
		arr[i], arr[j] = arr[j], arr[i]
	})

	if n < sampleSize {
		return arr
	}

	return arr[:sampleSize]
}

// interceptTile picks the midpoint of the path toward target that this
// persona can reach fastest, so two personas converging on each other meet
// partway rather than one walking all the way to the other.
func (p *Persona) interceptTile(m *maze.Maze, target maze.TilePos) maze.TilePos {
	potentialPath := m.Pathfind(p.state.Position, target)
	if len(potentialPath) <= 2 {
		return potentialPath[0]
	}

	mid := len(potentialPath) / 2
	toMid := m.Pathfind(p.state.Position, potentialPath[mid])
	toNext := m.Pathfind(p.state.Position, potentialPath[mid+1])
	if len(toMid) <= len(toNext) {
		return potentialPath[mid]
	}
	return potentialPath[mid+1]
}

// resolveTargetTiles turns the persona's activity address into the set of
// candidate tiles execute should path toward, branching on the address's
// special state (persona-following, waiting-at-coordinates, wander-in-arena,
// or a concrete world address).
func (p *Persona) resolveTargetTiles(m *maze.Maze, personas map[string]*Persona, plan memory.Address) []maze.TilePos {
	switch {
	case plan.HasState(memory.AddressStatePersona):
		target := personas[plan.GetArg()]
		return []maze.TilePos{p.interceptTile(m, target.state.Position)}

	case plan.HasState(memory.AddressStateWaiting):
		var x, y int
		n, err := fmt.Sscanf(plan.GetArg(), memory.CoordinateArgFormat, &x, &y)
		if n != 2 {
			panic(fmt.Errorf("parsed unexpected amount of wait argument, got: %d, expected 2", n))
		} else if err != nil {
			panic(fmt.Errorf("could not parse waiting arguments: %w", err))
		}
		return []maze.TilePos{{X: x, Y: y}}

	case plan.HasState(memory.AddressStateRandom):
		t, ok := m.AddressToTiles(plan.AtLevel(memory.AddressLevelArena))
		if !ok {
			panic(fmt.Errorf("could not find address in maze: %s", plan.ToString()))
		}
		return sample(t, 1)

	default:
		if t, ok := m.AddressToTiles(plan); ok {
			return t
		}
		// The address resolved by planning doesn't exist in this maze (e.g. a
		// game object address the LLM hallucinated). Rather than crash the
		// tick, fall back to staying put.
		p.ctx.Log.Warn("activity address not found in maze, falling back to current tile",
			"persona", p.name, "address", plan.ToString())
		return []maze.TilePos{p.state.Position}
	}
}

// avoidOccupiedTiles drops any candidate tile a tracked persona (this one
// included) is already standing on, unless doing so would empty the candidate set.
func avoidOccupiedTiles(m *maze.Maze, personas map[string]*Persona, candidates []maze.TilePos) []maze.TilePos {
	free := make([]maze.TilePos, 0, len(candidates))
	for _, tile := range candidates {
		occupied := false
		for event := range m.GetTile(tile).Events {
			if _, ok := personas[event.SPO.Subject]; ok {
				occupied = true
				break
			}
		}
		if !occupied {
			free = append(free, tile)
		}
	}
	if len(free) == 0 {
		return candidates
	}
	return free
}

// shortestPathAmong pathfinds from curr to every candidate and returns the
// shortest resulting path, excluding curr itself. Unreachable candidates are
// skipped; when none is reachable it returns nil.
func shortestPathAmong(m *maze.Maze, curr maze.TilePos, candidates []maze.TilePos) []maze.TilePos {
	var best []maze.TilePos
	for _, target := range candidates {
		path := m.Pathfind(curr, target)
		if len(path) == 0 {
			continue
		}
		if best == nil || len(path) < len(best) {
			best = path
		}
	}
	if best == nil {
		return nil
	}
	return best[1:]
}

func (p *Persona) execute(m *maze.Maze, personas map[string]*Persona, plan memory.Address) (maze.TilePos, string, maze.Event) {
	if plan.HasState(memory.AddressStateRandom) && len(p.state.PlannedPath) == 0 {
		p.state.ActivityPathSet = false
	}

	if !p.state.ActivityPathSet {
		targetTiles := p.resolveTargetTiles(m, personas, plan)
		targetTiles = sample(targetTiles, 4)
		targetTiles = avoidOccupiedTiles(m, personas, targetTiles)

		p.state.PlannedPath = shortestPathAmong(m, p.state.Position, targetTiles)
		// With no reachable target the persona stays put and picks again next tick.
		p.state.ActivityPathSet = p.state.PlannedPath != nil
	}

	tile := p.state.Position
	if len(p.state.PlannedPath) > 0 {
		tile = p.state.PlannedPath[0]
		p.state.PlannedPath = p.state.PlannedPath[1:]
	}

	description := fmt.Sprintf("%s @ %s", p.state.ActivityDescription, p.state.ActivityAddress.ToString())

	return tile, p.state.ActivityPronunciato, maze.Event{SPO: p.state.ActivitySPO, Description: description}
}
