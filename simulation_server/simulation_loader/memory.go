package simulationloader

import (
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/fvdveen/reverie/simulation_server/memory"
)

// memoryNodeIterator walks a {"node_1": ..., "node_2": ...} map in numeric
// order rather than Go's randomized map order, so memory nodes are replayed
// in the sequence they were originally created.
func memoryNodeIterator[T any](nodes map[string]T) iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i := 1; i <= len(nodes); i++ {
			node, ok := nodes["node_"+strconv.Itoa(i)]
			if !ok {
				continue
			}
			if !yield(i, node) {
				return
			}
		}
	}
}

// LoadSpatialMemory rebuilds a persona's gazetteer from its
// spatial_memory.json, a nested world->sector->arena->[objects] map.
func LoadSpatialMemory(memFile string) (*memory.Spatial, error) {
	content, err := os.ReadFile(memFile)
	if err != nil {
		return nil, err
	}

	var tree map[string]map[string]map[string][]string
	if err := json.Unmarshal(content, &tree); err != nil {
		return nil, err
	}

	known := memory.NewSpatial()
	for worldName, sectors := range tree {
		world := memory.NewAddress(memory.AddressWithWorld(worldName))
		known.Register(world)

		for sectorName, arenas := range sectors {
			sector := world.Copy(memory.AddressWithSector(sectorName))
			known.Register(sector)

			for arenaName, objects := range arenas {
				arena := sector.Copy(memory.AddressWithArena(arenaName))
				known.Register(arena)

				for _, objectName := range objects {
					known.Register(arena.Copy(memory.AddressWithObject(objectName)))
				}
			}
		}
	}

	return known, nil
}

// parseNodeRefs converts a memory node's "filling" field (one or more
// "node_N" strings, in whatever shape the JSON encoder chose) into NodeIds.
func parseNodeRefs(filling interface{}) ([]memory.NodeId, error) {
	toID := func(s string) (memory.NodeId, error) {
		var id int
		if _, err := fmt.Sscanf(s, "node_%d", &id); err != nil {
			return 0, fmt.Errorf("could not parse node id %q: %w", s, err)
		}
		return memory.NodeId(id), nil
	}

	switch f := filling.(type) {
	case nil:
		return nil, nil
	case string:
		id, err := toID(f)
		if err != nil {
			return nil, err
		}
		return []memory.NodeId{id}, nil
	case []string:
		refs := make([]memory.NodeId, 0, len(f))
		for _, s := range f {
			id, err := toID(s)
			if err != nil {
				return nil, err
			}
			refs = append(refs, id)
		}
		return refs, nil
	case []interface{}:
		refs := make([]memory.NodeId, 0, len(f))
		for _, v := range f {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected element type in filling list: %T", v)
			}
			id, err := toID(s)
			if err != nil {
				return nil, err
			}
			refs = append(refs, id)
		}
		return refs, nil
	default:
		return nil, fmt.Errorf("unexpected filling type in memory store: %T", filling)
	}
}

// parseChatTranscript converts a chat memory node's "filling" field (a list
// of [speaker, line] pairs, in whatever shape the JSON encoder chose) into
// Utterances.
func parseChatTranscript(filling interface{}) ([]memory.Utterance, error) {
	toUtterance := func(speaker, sentence interface{}) (memory.Utterance, error) {
		s, ok := speaker.(string)
		if !ok {
			return memory.Utterance{}, fmt.Errorf("unexpected chat speaker type: %T", speaker)
		}
		l, ok := sentence.(string)
		if !ok {
			return memory.Utterance{}, fmt.Errorf("unexpected chat line type: %T", sentence)
		}
		return memory.Utterance{Speaker: s, Sentence: l}, nil
	}

	var pairs []interface{}
	switch f := filling.(type) {
	case [][]string:
		chat := make([]memory.Utterance, 0, len(f))
		for _, pair := range f {
			chat = append(chat, memory.Utterance{Speaker: pair[0], Sentence: pair[1]})
		}
		return chat, nil
	case []interface{}:
		pairs = f
	default:
		return nil, fmt.Errorf("unexpected chat memory filling type: %T", filling)
	}

	chat := make([]memory.Utterance, 0, len(pairs))
	for _, p := range pairs {
		switch pair := p.(type) {
		case []string:
			chat = append(chat, memory.Utterance{Speaker: pair[0], Sentence: pair[1]})
		case []interface{}:
			u, err := toUtterance(pair[0], pair[1])
			if err != nil {
				return nil, err
			}
			chat = append(chat, u)
		default:
			return nil, fmt.Errorf("unexpected chat memory filling element type: %T", pair)
		}
	}
	return chat, nil
}

func nodeExpiration(n MemoryNode) *time.Time {
	if n.Expiration == nil {
		return nil
	}
	exp := time.Time(*n.Expiration)
	return &exp
}

func nodeSPO(n MemoryNode) memory.SPO {
	return memory.SPO{Subject: n.Subject, Predicate: n.Predicate, Object: n.Object}
}

// LoadAssociativeMemory rebuilds a persona's associative memory store from
// its embeddings.json, kw_strength.json, and nodes.json files.
func LoadAssociativeMemory(folder string) (*memory.Associative, error) {
	var embeddings map[string][]float64
	if err := readJSONFile(path.Join(folder, "embeddings.json"), &embeddings); err != nil {
		return nil, fmt.Errorf("could not read embeddings file: %w", err)
	}

	kws := KwStength{Thoughts: map[string]int{}, Events: map[string]int{}}
	if err := readJSONFile(path.Join(folder, "kw_strength.json"), &kws); err != nil {
		return nil, fmt.Errorf("could not read keyword strength file: %w", err)
	}

	var nodes map[string]MemoryNode
	if err := readJSONFile(path.Join(folder, "nodes.json"), &nodes); err != nil {
		return nil, fmt.Errorf("could not read memory nodes file: %w", err)
	}

	store := memory.NewAssociative(embeddings, kws.Events, kws.Thoughts)
	for _, n := range memoryNodeIterator(nodes) {
		if err := loadMemoryNode(store, n, embeddings); err != nil {
			return nil, err
		}
	}

	return store, nil
}

func readJSONFile(file string, out interface{}) error {
	content, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	return json.Unmarshal(content, out)
}

func loadMemoryNode(store *memory.Associative, n MemoryNode, embeddings map[string][]float64) error {
	switch n.Type {
	case "event":
		evidence, err := parseNodeRefs(n.Filling)
		if err != nil {
			return err
		}
		store.AddEvent(nodeSPO(n), n.Description, n.Keywords, n.Poignancy, n.Valence,
			evidence, time.Time(n.Created), nodeExpiration(n), n.EmbeddingKey, embeddings[n.EmbeddingKey])
	case "thought":
		evidence, err := parseNodeRefs(n.Filling)
		if err != nil {
			return err
		}
		store.AddThought(nodeSPO(n), n.Description, n.Keywords, n.Poignancy, n.Valence,
			evidence, time.Time(n.Created), nodeExpiration(n), n.EmbeddingKey, embeddings[n.EmbeddingKey])
	case "chat":
		chat, err := parseChatTranscript(n.Filling)
		if err != nil {
			return err
		}
		store.AddChat(nodeSPO(n), n.Description, n.Keywords, n.Poignancy, n.Valence,
			chat, time.Time(n.Created), nodeExpiration(n), n.EmbeddingKey, embeddings[n.EmbeddingKey])
	default:
		return fmt.Errorf("unknown memory type: %s", n.Type)
	}
	return nil
}
