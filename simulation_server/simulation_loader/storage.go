package simulationloader

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fvdveen/reverie/simulation_server/agent"
	"github.com/fvdveen/reverie/simulation_server/llm"
	"github.com/fvdveen/reverie/simulation_server/memory"
	"github.com/fvdveen/reverie/simulation_server/server"
)

type MovementPersona struct {
	Movement    Position    `json:"movement"`
	Pronunciato string      `json:"pronunciato"`
	Description string      `json:"description"`
	Chat        []Utterance `json:"chat"`
}

type MovementMeta struct {
	CurrentTime CurrentTime `json:"curr_time"`
}

type Movements struct {
	Personas map[string]MovementPersona `json:"persona"`
	Meta     MovementMeta               `json:"meta"`
}

// FileStorage persists a running simulation to the on-disk layout the
// frontend and a resumed run both expect: per-step movement/environment
// snapshots, simulation-wide metadata, and per-persona bootstrap memory.
type FileStorage struct {
	SimulationsFolder string
	BackupFolder      string

	Simulation string
	Maze       string
}

func (fs FileStorage) movementFolder() string {
	return path.Join(fs.SimulationsFolder, fs.Simulation, "movement")
}

func (fs FileStorage) environmentFolder() string {
	return path.Join(fs.SimulationsFolder, fs.Simulation, "environment")
}

func (fs FileStorage) metaFolder() string {
	return path.Join(fs.SimulationsFolder, fs.Simulation, "reverie")
}

func (fs FileStorage) personaFolder(name string) string {
	return path.Join(fs.SimulationsFolder, fs.Simulation, "personas", name, "bootstrap_memory")
}

func (fs FileStorage) associativeMemoryFolder(name string) string {
	return path.Join(fs.personaFolder(name), "associative_memory")
}

func (fs *FileStorage) backupFolder(step int) string {
	return path.Join(fs.BackupFolder, fs.Simulation, strconv.Itoa(step))
}

func toUtterances(utts []memory.Utterance) []Utterance {
	out := make([]Utterance, 0, len(utts))
	for _, u := range utts {
		out = append(out, Utterance{Speaker: u.Speaker, Utterance: u.Sentence})
	}
	return out
}

// SaveMovements writes the tick-N movement snapshot the frontend consumes
// and seeds tick-(N+1)'s environment file with the personas' resulting
// tile positions.
func (fs *FileStorage) SaveMovements(step int, personaMovements map[string]server.PersonaMovement, currTime time.Time) error {
	movements := Movements{
		Personas: make(map[string]MovementPersona, len(personaMovements)),
		Meta:     MovementMeta{CurrentTime: CurrentTime(currTime)},
	}
	personas := make(map[string]EnvironmentPersona, len(personaMovements))

	for name, m := range personaMovements {
		movements.Personas[name] = MovementPersona{
			Movement:    Position{X: m.Tile.X, Y: m.Tile.Y},
			Pronunciato: m.Pronunciato,
			Description: m.Event.Description,
			Chat:        toUtterances(m.Chat),
		}
		personas[name] = EnvironmentPersona{
			Maze: fs.Maze,
			X:    m.Tile.X,
			Y:    m.Tile.Y,
		}
	}

	p := path.Join(fs.movementFolder(), fmt.Sprintf("%d.json", step))
	if err := writeJson(p, movements); err != nil {
		return fmt.Errorf("could not save movement: %w", err)
	}

	p = path.Join(fs.environmentFolder(), fmt.Sprintf("%d.json", step+1))
	if err := writeJson(p, Environment{Personas: personas}); err != nil {
		return fmt.Errorf("could not save environment: %w", err)
	}

	return nil
}

// SaveSimulation writes every persona's bootstrap memory and the
// simulation-wide meta.json describing step, clock, and persona roster.
func (fs *FileStorage) SaveSimulation(srv *server.Server) error {
	names := make([]string, 0, len(srv.Personas))
	for name, p := range srv.Personas {
		names = append(names, name)
		if err := fs.SavePersona(p); err != nil {
			return fmt.Errorf("could not save persona %s: %w", name, err)
		}
	}

	meta := SimulationMeta{
		ForkSimCode:    srv.ForkedSim,
		StartDate:      StartDate(srv.StartTime),
		CurrTime:       CurrentTime(srv.CurrentTime),
		SecondsPerStep: int(srv.TimeStep / time.Second),
		MazeName:       srv.Maze.Folder(),
		PersonaNames:   names,
		Step:           srv.Step,
	}

	if err := writeJson(path.Join(fs.metaFolder(), "meta.json"), meta); err != nil {
		return fmt.Errorf("could not save meta: %w", err)
	}

	return nil
}

func toPlans(plans []llm.Plan) []Plan {
	out := make([]Plan, 0, len(plans))
	for _, p := range plans {
		out = append(out, Plan{Activity: p.Activity, Duration: p.Duration})
	}
	return out
}

func toSPO(spo memory.SPO) SPO {
	return SPO{Subject: spo.Subject, Predicate: spo.Predicate, Object: spo.Object}
}

func (fs *FileStorage) savePersonaState(p *agent.Persona) error {
	state := p.State()

	var chattingWith *string
	if state.ChattingWith != "" {
		chattingWith = &state.ChattingWith
	}

	var chatEndTime *time.Time
	if !state.ChatEndTime.IsZero() {
		chatEndTime = &state.ChatEndTime
	}

	plannedPath := make([]Position, 0, len(state.PlannedPath))
	for _, pos := range state.PlannedPath {
		plannedPath = append(plannedPath, Position{X: pos.X, Y: pos.Y})
	}

	scratch := PersonaState{
		VisionR:                 state.VisionRadius,
		AttBandwidth:            state.AttentionBandwidth,
		Retention:               state.Retention,
		CurrTime:                CurrentTime(state.CurrentTime),
		CurrTile:                []int{state.Position.X, state.Position.Y},
		DailyPlanReq:            state.DailyPlanRequirements,
		Name:                    p.Name(),
		FirstName:               state.FirstName,
		LastName:                state.LastName,
		Age:                     state.Age,
		Innate:                  state.InnateTraits,
		Learned:                 state.LearnedTraits,
		Currently:               state.CurrentPlans,
		Lifestyle:               state.Lifestyle,
		LivingArea:              state.LivingArea.ToString(),
		RecencyW:                state.RecencyWeight,
		RelevanceW:              state.RelevanceWeight,
		ImportanceW:             state.ImportanceWeight,
		ValenceW:                state.ValenceWeight,
		RecencyDecay:            state.RecencyDecay,
		ImportanceTriggerMax:    state.ReflectionTrigger,
		ImportanceTriggerCurr:   state.CurrentReflectionTrigger,
		ImportanceEleN:          state.ReflectionElements,
		DailyReq:                state.DailyPlan,
		FDailySchedule:          toPlans(state.DailySchedule),
		FDailyScheduleHourlyOrg: toPlans(state.OriginalDailySchedule),
		ActAddress:              state.ActivityAddress.ToString(),
		ActStartTime:            CurrentTime(state.ActivityStartTime),
		ActDuration:             int(state.ActivityDuration.Minutes()),
		ActDescription:          state.ActivityDescription,
		ActPronunciatio:         state.ActivityPronunciato,
		ActEvent:                toSPO(state.ActivitySPO),
		ActObjDescription:       state.ActivityObjectDescription,
		ActObjPronunciatio:      state.ActivityObjectPronunciato,
		ActObjEvent:             toSPO(state.ActivityObjectSPO),
		ChattingWith:            chattingWith,
		Chat:                    toUtterances(state.Chat),
		ChattingWithBuffer:      state.ChattingWithBuffer,
		ChattingEndTime:         (*CurrentTime)(chatEndTime),
		ActPathSet:              state.ActivityPathSet,
		PlannedPath:             plannedPath,
	}

	if err := writeJson(path.Join(fs.personaFolder(p.Name()), "scratch.json"), scratch); err != nil {
		return fmt.Errorf("could not save persona %s state: %w", p.Name(), err)
	}

	return nil
}

func (fs *FileStorage) saveSpatialMemory(name string, store *memory.Spatial) error {
	if err := writeJson(path.Join(fs.personaFolder(name), "spatial_memory.json"), store.Worlds()); err != nil {
		return fmt.Errorf("could not save persona %s spatial memory: %w", name, err)
	}
	return nil
}

// nodeFilling encodes a concept node's evidence (events, thoughts) or
// transcript (chats) into the wire shape nodes.json expects.
func nodeFilling(node memory.ConceptNode) []any {
	switch node.Type {
	case memory.NodeTypeChat:
		filling := make([]any, 0, len(node.Chat))
		for _, utt := range node.Chat {
			filling = append(filling, Utterance{Speaker: utt.Speaker, Utterance: utt.Sentence})
		}
		return filling
	case memory.NodeTypeEvent, memory.NodeTypeThought:
		filling := make([]any, 0, len(node.Evidence))
		for _, id := range node.Evidence {
			filling = append(filling, fmt.Sprintf("node_%d", id))
		}
		return filling
	default:
		panic(fmt.Sprintf("unexpected memory.NodeType: %#v", node.Type))
	}
}

func toMemoryNode(node memory.ConceptNode) MemoryNode {
	return MemoryNode{
		NodeCount:    node.NodeCount,
		TypeCount:    node.TypeCount,
		Type:         node.Type.ToString(),
		Depth:        node.Depth,
		Created:      MemoryTime(node.Created),
		Expiration:   (*MemoryTime)(node.Expiration),
		Subject:      node.Subject,
		Predicate:    node.Predicate,
		Object:       node.Object,
		Description:  node.Description,
		EmbeddingKey: node.EmbeddingKey,
		Poignancy:    node.Importance,
		Valence:      node.Valence,
		Keywords:     node.Keywords,
		Filling:      nodeFilling(node),
	}
}

func (fs *FileStorage) saveAssociativeMemory(name string, store *memory.Associative) error {
	dir := fs.associativeMemoryFolder(name)

	if err := writeJson(path.Join(dir, "embeddings.json"), store.Embeddings()); err != nil {
		return fmt.Errorf("could not save persona %s associative embeddings: %w", name, err)
	}

	strengths := KwStength{Thoughts: store.ThoughtKeywordStrength(), Events: store.EventKeywordStrength()}
	if err := writeJson(path.Join(dir, "kw_strength.json"), strengths); err != nil {
		return fmt.Errorf("could not save persona %s associative keyword strength: %w", name, err)
	}

	nodes := make(map[string]MemoryNode, len(store.Nodes()))
	for _, node := range store.Nodes() {
		nodes[fmt.Sprintf("node_%d", node.Id)] = toMemoryNode(node)
	}
	if err := writeJson(path.Join(dir, "nodes.json"), nodes); err != nil {
		return fmt.Errorf("could not save persona %s associative nodes: %w", name, err)
	}

	return nil
}

// SavePersona writes a single persona's scratch state, spatial memory, and
// associative memory to its bootstrap_memory folder.
func (fs *FileStorage) SavePersona(p *agent.Persona) error {
	if err := fs.savePersonaState(p); err != nil {
		return err
	}

	assoc, spatial := p.Memory()
	if err := fs.saveSpatialMemory(p.Name(), spatial); err != nil {
		return err
	}
	return fs.saveAssociativeMemory(p.Name(), assoc)
}

func writeJson(file string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal JSON: %w", err)
	}
	if err := writeFileWithDirs(file, data, 0o644); err != nil {
		return fmt.Errorf("could not write file to %s: %w", file, err)
	}
	return nil
}

func writeFileWithDirs(file string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return err
	}
	return os.WriteFile(file, data, perm)
}

// Backup snapshots the simulation's on-disk folder into a step-numbered
// subdirectory of BackupFolder, so a crashed run can be replayed from any
// prior tick.
func (fs *FileStorage) Backup(step int) error {
	return copyTree(path.Join(fs.SimulationsFolder, fs.Simulation), fs.backupFolder(step))
}

// copyTree recursively copies src's regular files and directories into dst;
// anything that isn't a file or directory (sockets, symlinks) is rejected
// rather than silently skipped.
func copyTree(src, dst string) error {
	src = filepath.Clean(src)
	dst = filepath.Clean(dst)

	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !srcInfo.IsDir() {
		return fmt.Errorf("source is not a directory: %s", src)
	}
	if err := os.MkdirAll(dst, srcInfo.Mode()); err != nil {
		return err
	}

	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}
		if d.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		if !info.Mode().IsRegular() {
			return fmt.Errorf("non-regular file encountered (expected only files/dirs): %s", p)
		}
		return copyFile(p, target, info.Mode())
	})
}

func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
