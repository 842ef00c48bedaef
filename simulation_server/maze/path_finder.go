package maze

import "slices"

// Pathfind returns the shortest 4-connected tile sequence from start to end, including both
// endpoints, or an empty slice if end is unreachable from start. Successor order at every
// expansion is North, East, South, West, making the labeling (and therefore the returned path on
// ties) deterministic.
func (m *Maze) Pathfind(start, end TilePos) []TilePos {
	makeStep := func(d [][]int, k int) {
		for i := 0; i < len(d); i += 1 {
			for j := 0; j < len(d[i]); j += 1 {
				if d[i][j] != k {
					continue
				}
				// North
				if i > 0 && d[i-1][j] == 0 && !m.collisionInfo[i-1][j] {
					d[i-1][j] = k + 1
				}
				// East
				if j < len(d[i])-1 && d[i][j+1] == 0 && !m.collisionInfo[i][j+1] {
					d[i][j+1] = k + 1
				}
				// South
				if i < len(d)-1 && d[i+1][j] == 0 && !m.collisionInfo[i+1][j] {
					d[i+1][j] = k + 1
				}
				// West
				if j > 0 && d[i][j-1] == 0 && !m.collisionInfo[i][j-1] {
					d[i][j-1] = k + 1
				}
			}
		}
	}

	// distMaze mirrors m.tiles, indexed [y][x] to match the maze's
	// height*width layout.
	distMaze := make([][]int, 0, len(m.tiles))
	for i := range m.tiles {
		distMaze = append(distMaze, make([]int, len(m.tiles[i])))
	}

	if start == end {
		return []TilePos{start}
	}

	distMaze[start.Y][start.X] = 1

	k := 0
	loopMax := len(distMaze)*len(distMaze[0]) + 1

	for distMaze[end.Y][end.X] == 0 && loopMax > 0 {
		k += 1
		makeStep(distMaze, k)

		loopMax -= 1
	}

	if distMaze[end.Y][end.X] == 0 {
		// end is unreachable from start: no path exists
		return []TilePos{}
	}

	i, j := end.Y, end.X
	k = distMaze[i][j]
	path := append(make([]TilePos, 0, k), end)
	for k > 1 {
		if i > 0 && distMaze[i-1][j] == k-1 {
			i = i - 1
			path = append(path, TilePos{Y: i, X: j})
			k -= 1
		} else if j < len(distMaze[i])-1 && distMaze[i][j+1] == k-1 {
			j = j + 1
			path = append(path, TilePos{Y: i, X: j})
			k -= 1
		} else if i < len(distMaze)-1 && distMaze[i+1][j] == k-1 {
			i = i + 1
			path = append(path, TilePos{Y: i, X: j})
			k -= 1
		} else if j > 0 && distMaze[i][j-1] == k-1 {
			j = j - 1
			path = append(path, TilePos{Y: i, X: j})
			k -= 1
		}
	}

	slices.Reverse(path)

	return path
}
