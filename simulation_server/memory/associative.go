package memory

import (
	"fmt"
	"strings"
	"time"
)

type SPO struct {
	Subject   string
	Predicate string
	Object    string
}

type NodeType int

const (
	NodeTypeInvalid NodeType = iota
	NodeTypeThought
	NodeTypeEvent
	NodeTypeChat
)

func (t NodeType) ToString() string {
	switch t {
	case NodeTypeChat:
		return "chat"
	case NodeTypeEvent:
		return "event"
	case NodeTypeThought:
		return "thought"
	default:
		panic(fmt.Sprintf("unexpected memory.NodeType: %#v", t))
	}
}

type Utterance struct {
	Speaker  string
	Sentence string
}

type NodeId int

// ConceptNode is one entry of a persona's memory stream: an event it
// witnessed, a thought it derived, or a line of chat it took part in.
type ConceptNode struct {
	Id NodeId

	NodeCount int
	// TypeCount is the node's ordinal among memories of the same Type.
	TypeCount int

	Type NodeType
	// Depth is how many layers of other thoughts this node was derived
	// from; events and chats are always depth 0.
	Depth int

	Created      time.Time
	LastAccessed time.Time
	Expiration   *time.Time

	Subject   string
	Predicate string
	Object    string

	Description  string
	EmbeddingKey string
	Importance   int
	Valence      int

	Keywords []string

	Evidence []NodeId
	Chat     []Utterance
}

func (node ConceptNode) SPOSummary() SPO {
	return SPO{node.Subject, node.Predicate, node.Object}
}

// Associative is a persona's memory stream: every event, thought, and chat
// it has recorded, indexed by NodeId and by keyword so retrieval doesn't
// have to scan the whole stream.
type Associative struct {
	nodes []ConceptNode

	// events, thoughts and chats list that type's node IDs newest-first.
	events   []NodeId
	thoughts []NodeId
	chats    []NodeId

	kwToEvents   map[string][]NodeId
	kwToThoughts map[string][]NodeId
	kwToChats    map[string][]NodeId

	kwStrengthEvents   map[string]int
	kwStrengthThoughts map[string]int

	embeddings map[string][]float64
}

const initialMemorySize = 5

func NewAssociative(embeddings map[string][]float64, kwStrengthEvents map[string]int, kwStrengthThoughts map[string]int) *Associative {
	return &Associative{
		// Node ID 0 is reserved as "no node", so seed index 0 with a blank entry.
		nodes:              make([]ConceptNode, 1, initialMemorySize),
		events:             make([]NodeId, 0, initialMemorySize),
		thoughts:           make([]NodeId, 0, initialMemorySize),
		chats:              make([]NodeId, 0, initialMemorySize),
		kwToEvents:         make(map[string][]NodeId),
		kwToThoughts:       make(map[string][]NodeId),
		kwToChats:          make(map[string][]NodeId),
		kwStrengthEvents:   kwStrengthEvents,
		kwStrengthThoughts: kwStrengthThoughts,
		embeddings:         embeddings,
	}
}

func (store *Associative) Embeddings() map[string][]float64 { return store.embeddings }

func (store *Associative) EventKeywordStrength() map[string]int { return store.kwStrengthEvents }

func (store *Associative) ThoughtKeywordStrength() map[string]int { return store.kwStrengthThoughts }

func (store *Associative) Nodes() []ConceptNode { return store.nodes[1:] }

func (store *Associative) GetNode(node NodeId) ConceptNode { return store.nodes[node] }

func (store *Associative) UpdateNode(node NodeId, update func(*ConceptNode)) {
	update(&store.nodes[node])
}

func (store *Associative) GetEmbedding(str string) ([]float64, bool) {
	e, ok := store.embeddings[str]
	return e, ok
}

func (store *Associative) GetEmbeddingByNodeId(id NodeId) ([]float64, bool) {
	e, ok := store.embeddings[store.GetNode(id).EmbeddingKey]
	return e, ok
}

func (store *Associative) SaveEmbedding(str string, embedding []float64) {
	store.embeddings[str] = embedding
}

// newNodeRecord builds the common shape every node type shares; callers
// fill in the type-specific fields (Depth, Evidence, Chat) themselves.
func (store *Associative) newNodeRecord(typeCount int, nodeType NodeType, spo SPO, description string, importance, valence int, created time.Time, expiration *time.Time, embeddingKey string) ConceptNode {
	return ConceptNode{
		Id:           NodeId(len(store.nodes)),
		NodeCount:    len(store.nodes),
		TypeCount:    typeCount,
		Type:         nodeType,
		Created:      created,
		LastAccessed: created,
		Expiration:   expiration,
		Subject:      spo.Subject,
		Predicate:    spo.Predicate,
		Object:       spo.Object,
		Description:  description,
		EmbeddingKey: embeddingKey,
		Importance:   importance,
		Valence:      valence,
	}
}

// indexByKeyword lowercases keywords in place and prepends nodeId to each
// keyword's bucket in index, so lookups see newest matches first.
func indexByKeyword(index map[string][]NodeId, keywords []string, nodeId NodeId) {
	for i := range keywords {
		keywords[i] = strings.ToLower(keywords[i])
	}
	for _, kw := range keywords {
		index[kw] = append([]NodeId{nodeId}, index[kw]...)
	}
}

// isIdleEvent reports whether an SPO is the synthetic "X is idle" filler
// events get tagged with when nothing of note is happening; idle events
// don't build keyword strength since they carry no signal.
func isIdleEvent(spo SPO) bool {
	return spo.Predicate == "is" && spo.Object == "idle"
}

func (store *Associative) AddEvent(spo SPO, description string, keywords []string, importance, valence int, evidence []NodeId, created time.Time, expiration *time.Time, embeddingKey string, embedding []float64) ConceptNode {
	node := store.newNodeRecord(len(store.events), NodeTypeEvent, spo, description, importance, valence, created, expiration, embeddingKey)
	node.Keywords = keywords
	node.Evidence = evidence
	node.Chat = make([]Utterance, 0)

	store.nodes = append(store.nodes, node)
	store.events = append([]NodeId{node.Id}, store.events...)

	indexByKeyword(store.kwToEvents, keywords, node.Id)
	if !isIdleEvent(spo) {
		for _, kw := range keywords {
			store.kwStrengthEvents[kw]++
		}
	}

	store.embeddings[embeddingKey] = embedding
	return node
}

func (store *Associative) AddThought(spo SPO, description string, keywords []string, importance, valence int, evidence []NodeId, created time.Time, expiration *time.Time, embeddingKey string, embedding []float64) ConceptNode {
	node := store.newNodeRecord(len(store.thoughts), NodeTypeThought, spo, description, importance, valence, created, expiration, embeddingKey)
	node.Depth = 1 + store.maxEvidenceDepth(evidence)
	node.Keywords = keywords
	node.Evidence = evidence
	node.Chat = make([]Utterance, 0)

	store.nodes = append(store.nodes, node)
	store.thoughts = append([]NodeId{node.Id}, store.thoughts...)

	indexByKeyword(store.kwToThoughts, keywords, node.Id)
	if !isIdleEvent(spo) {
		for _, kw := range keywords {
			store.kwStrengthThoughts[kw]++
		}
	}

	store.embeddings[embeddingKey] = embedding
	return node
}

func (store *Associative) maxEvidenceDepth(evidence []NodeId) int {
	max := 0
	for _, id := range evidence {
		if d := store.nodes[id].Depth; d > max {
			max = d
		}
	}
	return max
}

func (store *Associative) AddChat(spo SPO, description string, keywords []string, importance, valence int, chat []Utterance, created time.Time, expiration *time.Time, embeddingKey string, embedding []float64) ConceptNode {
	node := store.newNodeRecord(len(store.chats), NodeTypeChat, spo, description, importance, valence, created, expiration, embeddingKey)
	node.Keywords = keywords
	node.Evidence = make([]NodeId, 0)
	node.Chat = chat

	store.nodes = append(store.nodes, node)
	store.chats = append([]NodeId{node.Id}, store.chats...)

	indexByKeyword(store.kwToChats, keywords, node.Id)

	store.embeddings[embeddingKey] = embedding
	return node
}

func (store *Associative) GetLatestEventSPOs(n int) map[SPO]struct{} {
	out := make(map[SPO]struct{})
	if n > len(store.events) {
		n = len(store.events)
	}
	for _, id := range store.events[:n] {
		out[store.nodes[id].SPOSummary()] = struct{}{}
	}
	return out
}

func lookupByKeywords(index map[string][]NodeId, subject, predicate, object string) map[NodeId]struct{} {
	out := map[NodeId]struct{}{}
	for _, kw := range [3]string{subject, predicate, object} {
		for _, id := range index[kw] {
			out[id] = struct{}{}
		}
	}
	return out
}

func (store *Associative) RetrieveRelevantEvents(subject, predicate, object string) map[NodeId]struct{} {
	return lookupByKeywords(store.kwToEvents, subject, predicate, object)
}

func (store *Associative) RetrieveRelevantThoughts(subject, predicate, object string) map[NodeId]struct{} {
	return lookupByKeywords(store.kwToThoughts, subject, predicate, object)
}

func (store *Associative) GetLatestEventIds() []NodeId { return store.events }

func (store *Associative) GetLatestThoughtIds() []NodeId { return store.thoughts }

func (store *Associative) GetLastChat(name string) (NodeId, bool) {
	chats, ok := store.kwToChats[strings.ToLower(name)]
	if !ok {
		return 0, false
	}
	return chats[0], true
}
