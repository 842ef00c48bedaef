package simulationloader

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/fvdveen/reverie/simulation_server/maze"
	"github.com/fvdveen/reverie/simulation_server/memory"
)

func readCSVFile(file string) ([][]string, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}

	for i := range rows {
		for j := range rows[i] {
			rows[i][j] = strings.TrimSpace(rows[i][j])
		}
	}

	return rows, nil
}

// readBlockLookup reads a "*_blocks.csv" file into a map from its block code
// (first column) to its resolved name (last column).
func readBlockLookup(file string) (map[string]string, error) {
	rows, err := readCSVFile(file)
	if err != nil {
		return nil, fmt.Errorf("could not read csv file %s: %w", file, err)
	}

	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row[0]] = row[len(row)-1]
	}
	return out, nil
}

// readMazeGrid reads a "*_maze.csv" file, which encodes a height*width grid
// as a single CSV row, and reshapes it into meta.MazeHeight rows of
// meta.MazeWidth columns.
func readMazeGrid(file string, meta MazeMetaInfo) ([][]string, error) {
	rows, err := readCSVFile(file)
	if err != nil {
		return nil, fmt.Errorf("could not read csv file %s: %w", file, err)
	}

	grid := make([][]string, 0, meta.MazeHeight)
	for i := 0; i < len(rows[0]); i += meta.MazeWidth {
		grid = append(grid, rows[0][i:i+meta.MazeWidth])
	}
	return grid, nil
}

func readCollisionGrid(file string, meta MazeMetaInfo) ([][]bool, error) {
	grid, err := readMazeGrid(file, meta)
	if err != nil {
		return nil, err
	}

	out := make([][]bool, len(grid))
	for i, row := range grid {
		out[i] = make([]bool, 0, len(row))
		for _, v := range row {
			out[i] = append(out[i], v != "0")
		}
	}
	return out, nil
}

// buildTile resolves one collision-grid cell's world/sector/arena/object
// address and spawning location from the parallel block-code grids, and
// seeds its self-event if it's a game object.
func buildTile(worldAddress memory.Address, sectorCode, arenaCode, objectCode, spawnCode string, collision bool,
	sectors, arenas, objects, spawns map[string]string) maze.Tile {

	tile := maze.Tile{Address: worldAddress, Collision: collision}
	if t, ok := sectors[sectorCode]; ok {
		tile.Address = tile.Address.Copy(memory.AddressWithSector(t))
	}
	if t, ok := arenas[arenaCode]; ok {
		tile.Address = tile.Address.Copy(memory.AddressWithArena(t))
	}
	if t, ok := objects[objectCode]; ok {
		tile.Address = tile.Address.Copy(memory.AddressWithObject(t))
	}
	if t, ok := spawns[spawnCode]; ok {
		tile.SpawningLocation = t
	}

	tile.Events = map[maze.Event]struct{}{}
	if tile.Address.IsObject() {
		tile.Events[maze.Event{SPO: memory.SPO{Subject: tile.Address.ToString()}}] = struct{}{}
	}

	return tile
}

// LoadMaze rebuilds a maze from its Tiled-export matrix directory: a meta
// JSON file, five block-code lookup tables, and five parallel grid CSVs
// (collision, sector, arena, game object, spawning location).
func LoadMaze(mazePath string, mazeName string) (*maze.Maze, error) {
	matrixFolder := path.Join(mazePath, "matrix")

	content, err := os.ReadFile(path.Join(matrixFolder, "maze_meta_info.json"))
	if err != nil {
		return nil, fmt.Errorf("could not read meta file %s: %w", mazePath, err)
	}

	var meta MazeMetaInfo
	if err := json.Unmarshal(content, &meta); err != nil {
		return nil, fmt.Errorf("could not unmarshal meta file json: %w", err)
	}

	blocksFolder := path.Join(matrixFolder, "special_blocks")

	worldRows, err := readCSVFile(path.Join(blocksFolder, "world_blocks.csv"))
	if err != nil {
		return nil, fmt.Errorf("could not read csv file %s: %w", "world_blocks.csv", err)
	}
	worldName := worldRows[0][len(worldRows[0])-1]

	sectors, err := readBlockLookup(path.Join(blocksFolder, "sector_blocks.csv"))
	if err != nil {
		return nil, err
	}
	arenas, err := readBlockLookup(path.Join(blocksFolder, "arena_blocks.csv"))
	if err != nil {
		return nil, err
	}
	objects, err := readBlockLookup(path.Join(blocksFolder, "game_object_blocks.csv"))
	if err != nil {
		return nil, err
	}
	spawns, err := readBlockLookup(path.Join(blocksFolder, "spawning_location_blocks.csv"))
	if err != nil {
		return nil, err
	}

	mazeFolder := path.Join(matrixFolder, "maze")

	collisionGrid, err := readCollisionGrid(path.Join(mazeFolder, "collision_maze.csv"), meta)
	if err != nil {
		return nil, err
	}
	sectorGrid, err := readMazeGrid(path.Join(mazeFolder, "sector_maze.csv"), meta)
	if err != nil {
		return nil, err
	}
	arenaGrid, err := readMazeGrid(path.Join(mazeFolder, "arena_maze.csv"), meta)
	if err != nil {
		return nil, err
	}
	objectGrid, err := readMazeGrid(path.Join(mazeFolder, "game_object_maze.csv"), meta)
	if err != nil {
		return nil, err
	}
	spawnGrid, err := readMazeGrid(path.Join(mazeFolder, "spawning_location_maze.csv"), meta)
	if err != nil {
		return nil, err
	}

	worldAddress := memory.ParseAddress(worldName)
	tiles := make([][]maze.Tile, meta.MazeHeight)
	for i := 0; i < meta.MazeHeight; i++ {
		row := make([]maze.Tile, meta.MazeWidth)
		for j := 0; j < meta.MazeWidth; j++ {
			row[j] = buildTile(worldAddress, sectorGrid[i][j], arenaGrid[i][j], objectGrid[i][j], spawnGrid[i][j],
				collisionGrid[i][j], sectors, arenas, objects, spawns)
		}
		tiles[i] = row
	}

	return maze.New(meta.WorldName, mazeName, meta.MazeWidth, meta.MazeHeight, meta.SquareTileSize, collisionGrid, tiles), nil
}
