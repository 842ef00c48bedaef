package llm

import (
	"time"

	"github.com/fvdveen/reverie/simulation_server/maze"
	"github.com/fvdveen/reverie/simulation_server/memory"
)

// Embedder turns arbitrary text into the vector space associative memory
// scores relevance in.
type Embedder interface {
	GenerateEmbedding(string) []float64
}

// Persona is the read-only view of a persona's state that a Cognition
// implementation needs in order to prompt an LLM about it. It deliberately
// exposes no mutators: cognition calls are meant to observe state, not
// change it.
type Persona interface {
	Name() string
	LivingArea() memory.Address

	Lifestyle() string
	CurrentPlans() string
	IdentityStableSet() string

	CurrentTime() time.Time
	StartOfDay() time.Time

	CurrentChat() []memory.Utterance
	LastChat(name string) (memory.NodeId, bool)

	DailyPlanRequirements() string
	DailyPlan() []string
	DailySchedule() []Plan
	DailyScheduleIdx() int
	OriginalHourlySchedule() []Plan
	OriginalHourlyScheduleIndex() int

	ActivityDescription() string
	ActivityEndTime(idx int) time.Time

	KnownSectors(memory.Address) []string
	KnownArenas(memory.Address) []string
	KnownObjects(memory.Address) []string

	GetMemory(memory.NodeId) memory.ConceptNode

	Position() maze.TilePos
	PlannedPath() []maze.TilePos
}

// Maze is the subset of the spatial world a Cognition implementation may
// consult while grounding an activity to a location.
type Maze interface {
	GetTile(maze.TilePos) maze.Tile
	Exists(memory.Address) bool
}

// Plan is one activity/duration entry of a schedule, as understood by the
// cognitive layer independent of how it's persisted.
type Plan struct {
	Activity string
	Duration int
}

// scoring covers the four memory-scoring calls used whenever a new event,
// thought, or chat is filed into associative memory.
type scoring interface {
	GenerateImportanceScore(p Persona, nt memory.NodeType, description string) int
	GenerateImportanceScoreChat(p Persona, transcript []memory.Utterance, description string) int
	GenerateValenceScore(p Persona, nt memory.NodeType, description string) int
	GenerateValenceScoreChat(p Persona, transcript []memory.Utterance, description string) int
}

// scheduling covers the once-a-day and reactive schedule-generation calls.
type scheduling interface {
	GenerateWakeUpHour(p Persona) time.Time
	GenerateDailyPlan(p Persona, wakeUpHour time.Time) []string
	GenerateHourlySchedule(p Persona, wakeUpHour time.Time) []Plan
	GeneratePlanDecomposition(p Persona, plan Plan) []Plan
	GenerateReactionScheduleUpdate(p Persona, insertedActivity Plan, startTime, endTime time.Time) []Plan
}

// grounding covers resolving an activity description down to a concrete
// world location and its cosmetic details (pronunciatio, SPO triples).
type grounding interface {
	GenerateActivitySector(p Persona, maze Maze, activity string, world string) string
	GenerateActivityArena(p Persona, maze Maze, activity string, world string, sector string) string
	GenerateActivityObject(p Persona, maze Maze, activity string, addr memory.Address) string
	GenerateActivityPronunciato(p Persona, activity string) string
	GenerateActivitySPO(p Persona, activity string) memory.SPO

	GenerateActivityObjectDescription(p Persona, object string, activity string) string
	GenerateActivityObjectPronunciato(p Persona, activityObjectDescription string) string
	GenerateActivityObjectSPO(p Persona, object string, activityObjectDescription string) memory.SPO
}

// social covers persona-to-persona interaction: whether to approach,
// whether to yield, and the conversation itself.
type social interface {
	GenerateDecideToTalk(init, target Persona, events, thoughts []memory.NodeId) bool
	// GenerateDecideToWait reports whether init should hold off until
	// target finishes its current activity rather than interrupt it.
	GenerateDecideToWait(init, target Persona, events, thoughts []memory.NodeId) (wait bool)

	GenerateConversationSummary(p Persona, conversation []memory.Utterance) string
	GeneratePlanningThoughtAfterConversation(p Persona, conversation []memory.Utterance) string
	GenerateMemoAfterConversation(p Persona, conversation []memory.Utterance) string
	GenerateRelationshipSummary(init, target Persona, memories []memory.NodeId) string
	GenerateOneUtterance(init, target Persona, maze Maze, currentChat []memory.Utterance, relevant []memory.NodeId, relationship string) (utt memory.Utterance, endConversation bool)
}

// reflection covers distilling accumulated memories into focal points and
// the insights drawn from them.
type reflection interface {
	GenerateFocalPoints(p Persona, statements []memory.NodeId, numFocalPoints int) []string
	GenerateInsightAndEvidence(p Persona, nodes []memory.NodeId, insightCount int) map[string][]memory.NodeId
}

// dayPlanning covers the end-of-day carry-forward: what the persona should
// remember, how it feels, and what it plans to do tomorrow.
type dayPlanning interface {
	GeneratePlanningNote(p Persona, statements []string) string
	GeneratePlanningFeelings(p Persona, statements []string) string
	GenerateCurrentPlans(p Persona, plans, thoughts string) string
	GenerateNewDailyRequirements(p Persona) string
}

// Cognition is the full LLM-backed surface a persona's cognitive loop
// drives: scoring new memories, building schedules, grounding activities in
// the world, deciding how to interact with other personas, reflecting, and
// planning ahead.
type Cognition interface {
	scoring
	scheduling
	grounding
	social
	reflection
	dayPlanning
}
