package maze

import (
	"fmt"
	"maps"
	"math"
	"sync"

	"github.com/fvdveen/reverie/simulation_server/memory"
)

type Event struct {
	SPO         memory.SPO
	Description string
}

type TilePos struct {
	X, Y int
}

func (t TilePos) EuclidianDistance(o TilePos) float64 {
	return math.Sqrt(float64(
		(t.X-o.X)*(t.X-o.X) +
			(t.Y-o.Y)*(t.Y-o.Y)))
}

type Tile struct {
	Address          memory.Address
	SpawningLocation string
	Collision        bool
	Events           map[Event]struct{}
}

type Maze struct {
	name   string
	folder string

	width  int
	height int

	tileSize int

	// Guards tiles: the bounded worker pool's concurrent cognition phase reads
	// neighboring tiles via GetTile/GetNearbyTiles while another goroutine's
	// execute-phase write (AddEventToTile etc.) may land on a different tile.
	mu sync.RWMutex

	// A HeightxWidth array representing all the tiles that are impossible to stand on.
	collisionInfo [][]bool
	// A HeightxWidth
	tiles [][]Tile
	// Maps a path to all tiles that correspond to that path
	addressTiles map[memory.Address][]TilePos
}

func (m Maze) Name() string {
	return m.name
}

func (m Maze) Folder() string {
	return m.folder
}

func (m *Maze) AddressToTiles(plan memory.Address) ([]TilePos, bool) {
	t, ok := m.addressTiles[plan]
	return t, ok
}

func New(name, folder string, width, height int, tileSize int, collisionInfo [][]bool, tiles [][]Tile) *Maze {
	if len(tiles) != height {
		panic("tiles length does not match specified maze height")
	}
	for i, row := range tiles {
		if len(row) != width {
			panic(fmt.Errorf("tiles row %d width does not match specified maze width", i))
		}
	}

	if len(collisionInfo) != height {
		panic("collision info length does not match specified maze height")
	}
	for i, row := range collisionInfo {
		if len(row) != width {
			panic(fmt.Errorf("collision info row %d width does not match specified maze width", i))
		}
	}

	addressTiles := map[memory.Address][]TilePos{}

	indexableLevels := []memory.AddressLevel{
		memory.AddressLevelSector, memory.AddressLevelArena, memory.AddressLevelObject,
	}

	for i := range tiles {
		for j, tile := range tiles[i] {
			pos := TilePos{Y: i, X: j}
			level := tile.Address.Level()

			for _, l := range indexableLevels {
				if level < l {
					break
				}
				a := tile.Address.AtLevel(l)
				addressTiles[a] = append(addressTiles[a], pos)
			}
		}
	}

	return &Maze{
		name:          name,
		folder:        folder,
		width:         width,
		height:        height,
		tileSize:      tileSize,
		collisionInfo: collisionInfo,
		tiles:         tiles,
		addressTiles:  addressTiles,
	}
}

func (m *Maze) Exists(p memory.Address) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.addressTiles[p]

	return ok
}

func (m *Maze) GetTile(pos TilePos) Tile {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.tiles[pos.Y][pos.X]
}

func (m *Maze) UpdateTile(pos TilePos, f func(*Tile)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f(&m.tiles[pos.Y][pos.X])
}

func (m *Maze) GetNearbyTiles(tile TilePos, visionRadius int) []TilePos {
	left := 0
	right := m.width
	top := 0
	bottom := m.height

	// The +1s here are so we get a square with pos in the middle
	if tile.X-visionRadius > left {
		left = tile.X - visionRadius
	}
	if tile.X+visionRadius+1 < right {
		right = tile.X + visionRadius + 1
	}
	if tile.Y-visionRadius > top {
		top = tile.Y - visionRadius
	}
	if tile.Y+visionRadius+1 < bottom {
		bottom = tile.Y + visionRadius + 1
	}

	visionDiameter := 2*visionRadius + 1
	nearby := make([]TilePos, 0, visionDiameter*visionDiameter)
	for x := left; x < right; x++ {
		for y := top; y < bottom; y++ {
			nearby = append(nearby, TilePos{x, y})
		}
	}
	return nearby
}

func (m *Maze) AddEventToTile(tile TilePos, event Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tiles[tile.Y][tile.X].Events[event] = struct{}{}
}

func (m *Maze) RemoveEventFromTile(tile TilePos, event Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.tiles[tile.Y][tile.X].Events, event)
}

func (m *Maze) RemoveSubjectEventsFromTile(tile TilePos, subject string) {
	m.UpdateTile(tile, func(t *Tile) {
		maps.DeleteFunc(t.Events, func(ev Event, _ struct{}) bool {
			return ev.SPO.Subject == subject
		})
	})
}

func (m *Maze) TurnTileEventIdle(tile TilePos, ev Event) {
	m.UpdateTile(tile, func(t *Tile) {
		delete(t.Events, ev)
		t.Events[Event{SPO: memory.SPO{Subject: ev.SPO.Subject}}] = struct{}{}
	})
}
