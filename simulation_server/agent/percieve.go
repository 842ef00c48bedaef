package agent

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/fvdveen/reverie/simulation_server/maze"
	"github.com/fvdveen/reverie/simulation_server/memory"
)

// sighting pairs a candidate event with how far it was spotted from, so the
// closest ones can be prioritized once attention bandwidth is applied.
type sighting struct {
	event    maze.Event
	distance float64
}

// percieve scans the persona's vision radius, registers every newly-seen
// tile in spatial memory, and folds the closest previously-unseen events
// within attention bandwidth into associative memory.
func (p *Persona) percieve(m *maze.Maze) []memory.NodeId {
	nearby := m.GetNearbyTiles(p.state.Position, p.state.VisionRadius)

	for _, pos := range nearby {
		p.spatialMemory.Register(m.GetTile(pos).Address)
	}

	sightings := p.gatherSightings(m, nearby)

	cap := min(p.state.AttentionBandwidth, len(sightings))
	ids := make([]memory.NodeId, 0, cap)
	for _, s := range sightings[:cap] {
		id, ok := p.rememberSighting(s.event)
		if ok {
			ids = append(ids, id)
		}
	}

	return ids
}

// gatherSightings collects every distinct event visible from the given
// tiles that shares an arena with the persona's current position, nearest
// first.
func (p *Persona) gatherSightings(m *maze.Maze, nearby []maze.TilePos) []sighting {
	homeArena := m.GetTile(p.state.Position).Address.AtLevel(memory.AddressLevelArena)

	seen := make(map[memory.SPO]struct{})
	var sightings []sighting

	for _, pos := range nearby {
		tile := m.GetTile(pos)
		if len(tile.Events) == 0 {
			continue
		}
		if !tile.Address.AtLevel(memory.AddressLevelArena).Matches(homeArena) {
			continue
		}

		distance := p.state.Position.EuclidianDistance(pos)
		for ev := range tile.Events {
			if _, dup := seen[ev.SPO]; dup {
				continue
			}
			seen[ev.SPO] = struct{}{}
			sightings = append(sightings, sighting{event: ev, distance: distance})
		}
	}

	slices.SortFunc(sightings, func(a, b sighting) int {
		return cmp.Compare(a.distance, b.distance)
	})
	return sightings
}

// rememberSighting folds one perceived event into associative memory,
// skipping it if it was already recorded within the persona's retention
// window. It also lays down a chat node when the event is the persona's own
// ongoing conversation.
func (p *Persona) rememberSighting(ev maze.Event) (memory.NodeId, bool) {
	if ev.SPO.Predicate == "" {
		ev.SPO.Predicate = "is"
		ev.SPO.Object = "idle"
		ev.Description = "idle"
	}
	subject := memory.ParseAddress(ev.SPO.Subject).Base()
	ev.Description = fmt.Sprintf("%s is %s", subject, ev.Description)

	if _, known := p.associativeMemory.GetLatestEventSPOs(p.state.Retention)[ev.SPO]; known {
		return 0, false
	}

	object := memory.ParseAddress(ev.SPO.Object).Base()
	keywords := []string{subject, object}

	// The embedding is keyed by the parenthesised part of the description
	// when there is one, and by the whole description otherwise.
	embeddingKey := ev.Description
	if start, end := strings.Index(ev.Description, "("), strings.Index(ev.Description, ")"); start != -1 && end > start {
		embeddingKey = strings.TrimSpace(ev.Description[start+1 : end])
	}
	embedding := p.GetEmbedding(embeddingKey)
	importance := p.cognition.GenerateImportanceScore(p, memory.NodeTypeEvent, ev.Description)
	valence := p.cognition.GenerateValenceScore(p, memory.NodeTypeEvent, ev.Description)

	var chatNodes []memory.NodeId
	if subject == p.name && ev.SPO.Predicate == "chat with" {
		chatEmbedding := p.GetEmbedding(p.state.ActivityDescription)
		chatImportance := p.cognition.GenerateImportanceScoreChat(p, p.state.Chat, p.state.ActivityDescription)
		chatValence := p.cognition.GenerateValenceScoreChat(p, p.state.Chat, p.state.ActivityDescription)

		chatNode := p.addChatToMemory(p.state.ActivitySPO, p.state.ActivityDescription, keywords,
			chatImportance, chatValence, p.state.Chat, p.state.CurrentTime, nil,
			p.state.ActivityDescription, chatEmbedding)
		chatNodes = append(chatNodes, chatNode.Id)
	}

	node := p.addEventToMemory(ev, keywords, importance, valence, chatNodes, embeddingKey, embedding)
	return node.Id, true
}
