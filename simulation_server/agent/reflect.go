package agent

import (
	"fmt"
	"time"

	"github.com/fvdveen/reverie/simulation_server/memory"
)

// thoughtLifetime sets the expiration recorded on a reflection-derived
// thought; retrieval does not filter nodes by expiration.
const thoughtLifetime = 30 * 24 * time.Hour

// generateFocalPoints picks the handful of themes reflection should address,
// drawn from the tail of the persona's event/thought stream.
//
// The generative-agents paper reflects over the persona's last 100
// memories; the reference implementation instead reflects over everything
// accumulated since the previous reflection. recordFocalPointWindow below
// takes the larger of the two so neither bound starves the other.
func (p *Persona) generateFocalPoints() []string {
	const numFocalPoints = 3

	nodes := memoryStream(p)
	window := recordFocalPointWindow(len(nodes), p.state.ReflectionElements)
	return p.cognition.GenerateFocalPoints(p, nodes[len(nodes)-window:], numFocalPoints)
}

func recordFocalPointWindow(available, sinceLastReflection int) int {
	n := max(sinceLastReflection, 100)
	return min(max(n, 0), available)
}

// runReflect turns the current focal points into retrieved evidence, then
// asks the LLM to distill each cluster of evidence into new thought nodes.
func (p *Persona) runReflect() {
	retrieved := p.retrieveForFocalPoints(p.generateFocalPoints())

	for _, nodes := range retrieved {
		for thought, evidence := range p.cognition.GenerateInsightAndEvidence(p, nodes, 5) {
			p.recordThought(thought, evidence)
		}
	}
}

// recordThought scores and embeds a freshly generated thought and files it
// into associative memory with the standard reflection expiration.
func (p *Persona) recordThought(thought string, evidence []memory.NodeId) {
	spo := p.cognition.GenerateActivitySPO(p, thought)
	keywords := []string{spo.Subject, spo.Predicate, spo.Object}
	importance := p.cognition.GenerateImportanceScore(p, memory.NodeTypeThought, thought)
	valence := p.cognition.GenerateValenceScore(p, memory.NodeTypeThought, thought)
	embedding := p.GetEmbedding(thought)

	created := p.state.CurrentTime
	expiration := created.Add(thoughtLifetime)

	p.addThoughtToMemory(spo, thought, keywords, importance, valence, evidence, created, &expiration, thought, embedding)
}

func (p *Persona) shouldReflect() bool {
	return p.state.CurrentReflectionTrigger < 1 &&
		len(p.associativeMemory.GetLatestEventIds())+len(p.associativeMemory.GetLatestThoughtIds()) != 0
}

func (p *Persona) resetReflectionTrigger() {
	p.state.CurrentReflectionTrigger = p.state.ReflectionTrigger
	p.state.ReflectionElements = 0
}

// reflect runs a full reflection pass when the trigger has fired, and
// separately distills the tail end of a just-finished conversation into a
// planning thought and a memo, regardless of whether reflection itself ran.
func (p *Persona) reflect() {
	if p.shouldReflect() {
		p.runReflect()
		p.resetReflectionTrigger()
	}

	if p.state.ChatEndTime.IsZero() ||
		p.state.CurrentTime.Add(10*time.Second).Before(p.state.ChatEndTime) {
		return
	}

	var evidence []memory.NodeId
	if id, ok := p.associativeMemory.GetLastChat(p.state.ChattingWith); ok {
		evidence = []memory.NodeId{id}
	}

	planningThought := p.cognition.GeneratePlanningThoughtAfterConversation(p, p.state.Chat)
	p.recordThought(fmt.Sprintf("For %s's planning: %s", p.name, planningThought), evidence)

	memo := p.cognition.GenerateMemoAfterConversation(p, p.state.Chat)
	p.recordThought(fmt.Sprintf("%s %s", p.name, memo), evidence)
}
