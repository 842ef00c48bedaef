package simulationloader

import (
	"encoding/json"
	"strings"
	"time"
)

// MazeMetaInfo is the maze-level metadata loaded from a maze's maze_meta_info.json.
type MazeMetaInfo struct {
	WorldName          string `json:"world_name"`
	MazeWidth          int    `json:"maze_width"`
	MazeHeight         int    `json:"maze_height"`
	SquareTileSize     int    `json:"sq_tile_size"`
	SpecialConstraints string `json:"special_constraints"`
}

// The on-disk simulation format stores three distinct timestamp shapes,
// each with its own textual layout, as plain quoted strings rather than
// RFC3339. These wrapper types round-trip each layout through encoding/json.
type (
	StartDate   time.Time
	CurrentTime time.Time
	MemoryTime  time.Time
)

const (
	StartDateFormat   = "January 02, 2006"
	CurrentTimeFormat = "January 02, 2006, 15:04:05"
	MemoryTimeFormat  = "2006-01-02 15:04:05"
)

func marshalTimeLayout(t time.Time, layout string, nullIfZero bool) ([]byte, error) {
	if nullIfZero && t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(layout))
}

func unmarshalTimeLayout(b []byte, layout string, nullIfZero bool) (time.Time, error) {
	if nullIfZero && string(b) == "null" {
		return time.Time{}, nil
	}
	return time.Parse(layout, strings.Trim(string(b), `"`))
}

func (t StartDate) MarshalJSON() ([]byte, error) {
	return marshalTimeLayout(time.Time(t), StartDateFormat, false)
}

func (t *StartDate) UnmarshalJSON(b []byte) error {
	parsed, err := unmarshalTimeLayout(b, StartDateFormat, false)
	if err != nil {
		return err
	}
	*t = StartDate(parsed)
	return nil
}

func (t CurrentTime) MarshalJSON() ([]byte, error) {
	return marshalTimeLayout(time.Time(t), CurrentTimeFormat, true)
}

func (t *CurrentTime) UnmarshalJSON(b []byte) error {
	parsed, err := unmarshalTimeLayout(b, CurrentTimeFormat, true)
	if err != nil {
		return err
	}
	*t = CurrentTime(parsed)
	return nil
}

func (t MemoryTime) MarshalJSON() ([]byte, error) {
	return marshalTimeLayout(time.Time(t), MemoryTimeFormat, false)
}

func (t *MemoryTime) UnmarshalJSON(b []byte) error {
	parsed, err := unmarshalTimeLayout(b, MemoryTimeFormat, false)
	if err != nil {
		return err
	}
	*t = MemoryTime(parsed)
	return nil
}

// SimulationMeta mirrors a simulation run's meta.json: everything needed to
// resume the run besides the personas' own state.
type SimulationMeta struct {
	ForkSimCode    string      `json:"fork_sim_code"`
	StartDate      StartDate   `json:"start_date"`
	CurrTime       CurrentTime `json:"curr_time"`
	SecondsPerStep int         `json:"sec_per_step"`
	MazeName       string      `json:"maze_name"`
	PersonaNames   []string    `json:"persona_names"`
	Step           int         `json:"step"`
	BackupInterval int         `json:"backup_interval"`
}

// EnvironmentPersona is one persona entry inside a tick's environment/{N}.json
// handshake file: which maze it's in and its tile coordinates.
type EnvironmentPersona struct {
	Maze string `json:"maze"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

// Environment is the frontend-supplied environment/{N}.json payload, keyed
// by persona name at the top level rather than nested under a field.
type Environment struct {
	Personas map[string]EnvironmentPersona
}

func (e Environment) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Personas)
}

func (e *Environment) UnmarshalJSON(b []byte) error {
	personas := map[string]EnvironmentPersona{}
	if err := json.Unmarshal(b, &personas); err != nil {
		return err
	}
	e.Personas = personas
	return nil
}

// KwStength is the persona's keyword-to-strength tallies, split the same way
// the associative memory splits its indices: one map for thought keywords,
// one for event keywords.
type KwStength struct {
	Thoughts map[string]int `json:"kw_strength_thought"`
	Events   map[string]int `json:"kw_strength_event"`
}

// MemoryNode is one serialized associative-memory node: an event, thought,
// or chat entry with its scoring metadata and optional chat transcript.
type MemoryNode struct {
	NodeCount    int         `json:"node_count"`
	TypeCount    int         `json:"type_count"`
	Type         string      `json:"type"`
	Depth        int         `json:"depth"`
	Created      MemoryTime  `json:"created"`
	Expiration   *MemoryTime `json:"expiration"`
	Subject      string      `json:"subject"`
	Predicate    string      `json:"predicate"`
	Object       string      `json:"object"`
	Description  string      `json:"description"`
	EmbeddingKey string      `json:"embedding_key"`
	Poignancy    int         `json:"poignancy"`
	Valence      int         `json:"valence"`
	Keywords     []string    `json:"keywords"`
	Filling      interface{} `json:"filling"`
}

// PersonaState is the full on-disk snapshot of one persona: identity,
// retrieval weights, the daily schedule, and in-progress activity/chat
// state, everything needed to resume that persona across a restart.
type PersonaState struct {
	VisionR                 int            `json:"vision_r"`
	AttBandwidth            int            `json:"att_bandwidth"`
	Retention               int            `json:"retention"`
	CurrTime                CurrentTime    `json:"curr_time"`
	CurrTile                []int          `json:"curr_tile"`
	DailyPlanReq            string         `json:"daily_plan_req"`
	Name                    string         `json:"name"`
	FirstName               string         `json:"first_name"`
	LastName                string         `json:"last_name"`
	Age                     int            `json:"age"`
	Innate                  string         `json:"innate"`
	Learned                 string         `json:"learned"`
	Currently               string         `json:"currently"`
	Lifestyle               string         `json:"lifestyle"`
	LivingArea              string         `json:"living_area"`
	ConceptForget           int            `json:"concept_forget"`
	DailyReflectionTime     int            `json:"daily_reflection_time"`
	DailyReflectionSize     int            `json:"daily_reflection_size"`
	OverlapReflectTh        int            `json:"overlap_reflect_th"`
	KwStrgEventReflectTh    int            `json:"kw_strg_event_reflect_th"`
	KwStrgThoughtReflectTh  int            `json:"kw_strg_thought_reflect_th"`
	RecencyW                float64        `json:"recency_w"`
	RelevanceW              float64        `json:"relevance_w"`
	ImportanceW             float64        `json:"importance_w"`
	ValenceW                float64        `json:"valence_w"`
	RecencyDecay            float64        `json:"recency_decay"`
	ImportanceTriggerMax    int            `json:"importance_trigger_max"`
	ImportanceTriggerCurr   int            `json:"importance_trigger_curr"`
	ImportanceEleN          int            `json:"importance_ele_n"`
	ThoughtCount            int            `json:"thought_count"`
	DailyReq                []string       `json:"daily_req"`
	FDailySchedule          []Plan         `json:"f_daily_schedule"`
	FDailyScheduleHourlyOrg []Plan         `json:"f_daily_schedule_hourly_org"`
	ActAddress              string         `json:"act_address"`
	ActStartTime            CurrentTime    `json:"act_start_time"`
	ActDuration             int            `json:"act_duration"`
	ActDescription          string         `json:"act_description"`
	ActPronunciatio         string         `json:"act_pronunciatio"`
	ActEvent                SPO            `json:"act_event"`
	ActObjDescription       string         `json:"act_obj_description"`
	ActObjPronunciatio      string         `json:"act_obj_pronunciatio"`
	ActObjEvent             SPO            `json:"act_obj_event"`
	ChattingWith            *string        `json:"chatting_with"`
	Chat                    []Utterance    `json:"chat"`
	ChattingWithBuffer      map[string]int `json:"chatting_with_buffer"`
	ChattingEndTime         *CurrentTime   `json:"chatting_end_time"`
	ActPathSet              bool           `json:"act_path_set"`
	PlannedPath             []Position     `json:"planned_path"`
}

// marshalTuple2/unmarshalTuple2 and their 3-element counterparts below back
// every type in this file that the simulation format serializes as a bare
// JSON array instead of an object (Plan, Position, Utterance, SPO).

func marshalTuple2[A, B any](a A, b B) ([]byte, error) {
	return json.Marshal([2]any{a, b})
}

func unmarshalTuple2[A, B any](data []byte, a *A, b *B) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[0], a); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], b)
}

func marshalTuple3[A, B, C any](a A, b B, c C) ([]byte, error) {
	return json.Marshal([3]any{a, b, c})
}

func unmarshalTuple3[A, B, C any](data []byte, a *A, b *B, c *C) error {
	var raw [3]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[0], a); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[1], b); err != nil {
		return err
	}
	return json.Unmarshal(raw[2], c)
}

// Plan is one [activity, duration_in_minutes] entry of a persona's daily
// schedule.
type Plan struct {
	Activity string
	Duration int
}

func (p Plan) MarshalJSON() ([]byte, error) { return marshalTuple2(p.Activity, p.Duration) }

func (p *Plan) UnmarshalJSON(data []byte) error {
	return unmarshalTuple2(data, &p.Activity, &p.Duration)
}

// Position is a [x, y] tile coordinate as the simulation format encodes it.
type Position struct {
	X, Y int
}

func (pos Position) MarshalJSON() ([]byte, error) { return marshalTuple2(pos.X, pos.Y) }

func (pos *Position) UnmarshalJSON(data []byte) error {
	return unmarshalTuple2(data, &pos.X, &pos.Y)
}

// SPO is a [subject, predicate, object] event triple.
type SPO struct {
	Subject, Predicate, Object string
}

func (spo SPO) MarshalJSON() ([]byte, error) {
	return marshalTuple3(spo.Subject, spo.Predicate, spo.Object)
}

func (spo *SPO) UnmarshalJSON(data []byte) error {
	return unmarshalTuple3(data, &spo.Subject, &spo.Predicate, &spo.Object)
}

// Utterance is a [speaker, line] entry of a persona's chat transcript.
type Utterance struct {
	Speaker, Utterance string
}

func (u Utterance) MarshalJSON() ([]byte, error) { return marshalTuple2(u.Speaker, u.Utterance) }

func (u *Utterance) UnmarshalJSON(data []byte) error {
	return unmarshalTuple2(data, &u.Speaker, &u.Utterance)
}
