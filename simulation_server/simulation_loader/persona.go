package simulationloader

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/fvdveen/reverie/simulation_server/agent"
	"github.com/fvdveen/reverie/simulation_server/llm"
	"github.com/fvdveen/reverie/simulation_server/maze"
	"github.com/fvdveen/reverie/simulation_server/memory"
)

func LoadPersona(folder string, position maze.TilePos, embedder llm.Embedder, cognition llm.Cognition, log *slog.Logger) (*agent.Persona, error) {
	folder = path.Join(folder, "bootstrap_memory")

	assocMem, err := LoadAssociativeMemory(path.Join(folder, "associative_memory"))
	if err != nil {
		return nil, fmt.Errorf("could not load associative memory: %w", err)
	}

	spatialMem, err := LoadSpatialMemory(path.Join(folder, "spatial_memory.json"))
	if err != nil {
		return nil, fmt.Errorf("could not load spatial memory: %w", err)
	}

	state, err := LoadState(path.Join(folder, "scratch.json"), position)
	if err != nil {
		return nil, fmt.Errorf("could not load state: %w", err)
	}

	return agent.New(state.FullName, assocMem, spatialMem, *state, embedder, cognition), nil
}

func LoadState(stateFile string, position maze.TilePos) (*agent.State, error) {
	content, err := os.ReadFile(stateFile)
	if err != nil {
		return nil, fmt.Errorf("could not read state file: %w", err)
	}

	var state PersonaState
	if err := json.Unmarshal(content, &state); err != nil {
		return nil, fmt.Errorf("could not unmarshal state json: %w", err)
	}

	schedule := fromPlans(state.FDailySchedule)
	originalSchedule := fromPlans(state.FDailyScheduleHourlyOrg)
	plannedPath := fromPositions(state.PlannedPath)
	chat := fromUtterances(state.Chat)

	endTime := time.Time{}
	if state.ChattingEndTime != nil {
		endTime = *(*time.Time)(state.ChattingEndTime)
	}

	chattingWith := ""
	if state.ChattingWith != nil {
		chattingWith = *state.ChattingWith
	}

	s := &agent.State{
		Position:                  position,
		CurrentTime:               time.Time(state.CurrTime),
		VisionRadius:              state.VisionR,
		AttentionBandwidth:        state.AttBandwidth,
		Retention:                 state.Retention,
		CurrentReflectionTrigger:  state.ImportanceTriggerCurr,
		ReflectionTrigger:         state.ImportanceTriggerMax,
		ReflectionElements:        state.ImportanceEleN,
		RecencyDecay:              state.RecencyDecay,
		DailyPlanRequirements:     state.DailyPlanReq,
		DailyPlan:                 state.DailyReq,
		DailySchedule:             schedule,
		OriginalDailySchedule:     originalSchedule,
		PlannedPath:               plannedPath,
		ActivitySPO:               fromSPO(state.ActEvent),
		ActivityDescription:       state.ActDescription,
		ActivityPronunciato:       state.ActPronunciatio,
		ActivityAddress:           memory.ParseAddress(state.ActAddress),
		ActivityStartTime:         time.Time(state.ActStartTime),
		ActivityDuration:          time.Duration(state.ActDuration) * time.Minute,
		ActivityPathSet:           state.ActPathSet,
		ActivityObjectDescription: state.ActObjDescription,
		ActivityObjectPronunciato: state.ActObjPronunciatio,
		ActivityObjectSPO:         fromSPO(state.ActObjEvent),
		Chat:                      chat,
		ChatEndTime:               endTime,
		ChattingWith:              chattingWith,
		ChattingWithBuffer:        state.ChattingWithBuffer,
		RecencyWeight:             state.RecencyW,
		ImportanceWeight:          state.ImportanceW,
		RelevanceWeight:           state.RelevanceW,
		ValenceWeight:             state.ValenceW,
		FirstName:                 state.FirstName,
		LastName:                  state.LastName,
		Age:                       state.Age,
		InnateTraits:              state.Innate,
		LearnedTraits:             state.Learned,
		CurrentPlans:              state.Currently,
		Lifestyle:                 state.Lifestyle,
		LivingArea:                memory.ParseAddress(state.LivingArea),
		FullName:                  state.Name,
	}

	return s, nil
}

func fromPlans(plans []Plan) []llm.Plan {
	out := make([]llm.Plan, 0, len(plans))
	for _, p := range plans {
		out = append(out, llm.Plan{Activity: p.Activity, Duration: p.Duration})
	}
	return out
}

func fromPositions(positions []Position) []maze.TilePos {
	out := make([]maze.TilePos, 0, len(positions))
	for _, p := range positions {
		out = append(out, maze.TilePos{X: p.X, Y: p.Y})
	}
	return out
}

func fromUtterances(utts []Utterance) []memory.Utterance {
	out := make([]memory.Utterance, 0, len(utts))
	for _, u := range utts {
		out = append(out, memory.Utterance{Speaker: u.Speaker, Sentence: u.Utterance})
	}
	return out
}

func fromSPO(spo SPO) memory.SPO {
	return memory.SPO{Subject: spo.Subject, Predicate: spo.Predicate, Object: spo.Object}
}
