package maze_test

import (
	"testing"

	"github.com/fvdveen/reverie/simulation_server/maze"
)

func makeMaze() *maze.Maze {
	height := 8
	width := 13
	mazeRepr := [][]byte{
		{'#', '#', '#', '#', '#', '#', '#', '#', '#', '#', '#', '#', '#'},
		{' ', ' ', '#', ' ', ' ', ' ', ' ', ' ', '#', ' ', ' ', ' ', '#'},
		{'#', ' ', '#', ' ', ' ', '#', '#', ' ', ' ', ' ', '#', ' ', '#'},
		{'#', ' ', '#', ' ', ' ', '#', '#', ' ', '#', ' ', '#', ' ', '#'},
		{'#', ' ', ' ', ' ', ' ', ' ', ' ', ' ', '#', ' ', ' ', ' ', '#'},
		{'#', '#', '#', ' ', '#', ' ', '#', '#', '#', ' ', '#', ' ', '#'},
		{'#', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', '#', ' ', ' '},
		{'#', '#', '#', '#', '#', '#', '#', '#', '#', '#', '#', '#', '#'},
	}

	collision := make([][]bool, height)
	tiles := make([][]maze.Tile, height)

	for i := 0; i < height; i += 1 {
		for j := 0; j < width; j += 1 {
			tiles[i] = append(tiles[i], maze.Tile{})
			c := false
			if mazeRepr[i][j] == '#' {
				c = true
			}
			collision[i] = append(collision[i], c)
		}
	}

	return maze.New("", "", width, height, 1, collision, tiles)
}

func TestSameSquare(t *testing.T) {
	m := makeMaze()

	pos := maze.TilePos{Y: 0, X: 1}

	path := m.Pathfind(pos, pos)

	if len(path) != 1 || path[0] != pos {
		t.Fatalf("wrong path: %v, expected [(0, 1)]", path)
	}
}

// assertValidPath checks the invariants every returned path must satisfy regardless of the exact
// tie-break order the BFS expands in: correct endpoints, 4-connected adjacency, and no collision
// tiles along the way.
func assertValidPath(t *testing.T, m *maze.Maze, start, end maze.TilePos, path []maze.TilePos) {
	t.Helper()

	if len(path) == 0 {
		t.Fatalf("expected a non-empty path from %v to %v", start, end)
	}
	if path[0] != start {
		t.Fatalf("path does not start at %v: %v", start, path)
	}
	if path[len(path)-1] != end {
		t.Fatalf("path does not end at %v: %v", end, path)
	}

	for i, p := range path {
		if m.GetTile(p).Collision {
			t.Fatalf("path element %d (%v) is a collision tile", i, p)
		}
		if i == 0 {
			continue
		}
		prev := path[i-1]
		dx, dy := prev.X-p.X, prev.Y-p.Y
		if dx < 0 {
			dx = -dx
		}
		if dy < 0 {
			dy = -dy
		}
		if dx+dy != 1 {
			t.Fatalf("path elements %d (%v) and %d (%v) are not 4-connected neighbors", i-1, prev, i, p)
		}
	}
}

func TestOppositeSideOfMap(t *testing.T) {
	m := makeMaze()

	start := maze.TilePos{Y: 1, X: 0}
	end := maze.TilePos{Y: 6, X: 12}

	path := m.Pathfind(start, end)
	assertValidPath(t, m, start, end, path)

	// the maze's only route to (12, 6) is funneled through the single-width corridor at row 6,
	// so the shortest path must be exactly this long regardless of tie-break order.
	if want := 22; len(path) != want {
		t.Fatalf("unexpected path length: got %d, want %d", len(path), want)
	}
}

func TestPathfindReverseSymmetric(t *testing.T) {
	m := makeMaze()

	a := maze.TilePos{Y: 1, X: 0}
	b := maze.TilePos{Y: 6, X: 12}

	forward := m.Pathfind(a, b)
	backward := m.Pathfind(b, a)

	assertValidPath(t, m, a, b, forward)
	assertValidPath(t, m, b, a, backward)

	if len(forward) != len(backward) {
		t.Fatalf("path_finder(a,b) and path_finder(b,a) differ in length: %d vs %d", len(forward), len(backward))
	}
}

func TestPathfindUnreachable(t *testing.T) {
	height := 3
	width := 3
	// a fully walled-off single tile at (1,1): every route out is blocked
	collision := [][]bool{
		{true, true, true},
		{true, false, true},
		{true, true, true},
	}
	tiles := make([][]maze.Tile, height)
	for i := range tiles {
		tiles[i] = make([]maze.Tile, width)
	}

	m := maze.New("", "", width, height, 1, collision, tiles)

	path := m.Pathfind(maze.TilePos{X: 1, Y: 1}, maze.TilePos{X: 0, Y: 0})
	if len(path) != 0 {
		t.Fatalf("expected an empty path for an unreachable target, got: %v", path)
	}
}

func TestPathfindAroundCollisionColumn(t *testing.T) {
	// scenario from the end-to-end seed tests: a single blocked cell in an otherwise open
	// column forces a detour, and the detour must stay short.
	height := 7
	width := 3
	collision := make([][]bool, height)
	for i := range collision {
		collision[i] = make([]bool, width)
	}
	collision[3][1] = true

	tiles := make([][]maze.Tile, height)
	for i := range tiles {
		tiles[i] = make([]maze.Tile, width)
	}

	m := maze.New("", "", width, height, 1, collision, tiles)

	start := maze.TilePos{X: 1, Y: 1}
	end := maze.TilePos{X: 1, Y: 5}

	path := m.Pathfind(start, end)
	assertValidPath(t, m, start, end, path)

	if len(path) > 7 {
		t.Fatalf("expected a detour of length <= 7, got %d: %v", len(path), path)
	}
	for _, p := range path {
		if p.X == 1 && p.Y == 3 {
			t.Fatalf("path runs through the collision tile: %v", path)
		}
	}
}
