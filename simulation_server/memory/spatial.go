package memory

// spatialNode is one level of the world/sector/arena/object tree a persona
// builds up as it perceives tiles; children are keyed by name. Object rungs
// never get children of their own, they're just leaves of the map.
type spatialNode map[string]spatialNode

// Spatial is a persona's map of the parts of the world it has actually
// walked through, not the full maze.
type Spatial struct {
	root spatialNode
}

func NewSpatial() *Spatial {
	return &Spatial{root: spatialNode{}}
}

// Worlds exposes the tree in the legacy world->sector->arena->object shape
// callers that predate the generic tree representation still expect.
type Worlds map[string]map[string]map[string]map[string]struct{}

func (store *Spatial) Worlds() Worlds {
	out := make(Worlds, len(store.root))
	for world, sectors := range store.root {
		outSectors := make(map[string]map[string]map[string]struct{}, len(sectors))
		for sector, arenas := range sectors {
			outArenas := make(map[string]map[string]struct{}, len(arenas))
			for arena, objects := range arenas {
				leaves := make(map[string]struct{}, len(objects))
				for object := range objects {
					leaves[object] = struct{}{}
				}
				outArenas[arena] = leaves
			}
			outSectors[sector] = outArenas
		}
		out[world] = outSectors
	}
	return out
}

// addressRungLevels is the walk order Register and GetKnown descend through.
var addressRungLevels = [...]AddressLevel{
	AddressLevelWorld, AddressLevelSector, AddressLevelArena, AddressLevelObject,
}

// Register walks addr's non-blank rungs into the tree, creating any node
// that doesn't exist yet. A blank rung stops the walk early, so registering
// a world-only address marks the world known without implying anything
// about its sectors.
func (store *Spatial) Register(addr Address) {
	node := store.root
	for _, level := range addressRungLevels {
		name := addr.Get(level)
		if name == "" {
			return
		}
		child, ok := node[name]
		if !ok {
			child = spatialNode{}
			node[name] = child
		}
		node = child
	}
}

// GetKnown lists the names registered at level under addr's rungs above
// that level: GetKnown(addr, AddressLevelSector) lists the known sectors of
// addr's world.
func (store *Spatial) GetKnown(addr Address, level AddressLevel) []string {
	if level == AddressLevelInvalid {
		return []string{}
	}

	node := store.root
	for _, l := range addressRungLevels {
		if l >= level {
			break
		}
		next, ok := node[addr.Get(l)]
		if !ok {
			return []string{}
		}
		node = next
	}
	return nodeNames(node)
}

func nodeNames(node spatialNode) []string {
	names := make([]string, 0, len(node))
	for name := range node {
		names = append(names, name)
	}
	return names
}
