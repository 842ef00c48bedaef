package agent

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/fvdveen/reverie/simulation_server/memory"
)

// memoryStream returns every event and thought node the persona has ever
// recorded, oldest-accessed first, with idle filler events dropped. Both
// reflection and focal-point retrieval score candidates drawn from this
// same stream.
func memoryStream(p *Persona) []memory.NodeId {
	nodes := append(
		slices.Clone(p.associativeMemory.GetLatestEventIds()),
		p.associativeMemory.GetLatestThoughtIds()...,
	)

	nodes = slices.DeleteFunc(nodes, func(n memory.NodeId) bool {
		return strings.Contains(p.associativeMemory.GetNode(n).EmbeddingKey, "idle")
	})

	slices.SortFunc(nodes, func(a, b memory.NodeId) int {
		return p.associativeMemory.GetNode(a).LastAccessed.Compare(p.associativeMemory.GetNode(b).LastAccessed)
	})

	return nodes
}

func (p *Persona) retrieveForPerceptions(percieved []memory.NodeId) map[string]relevantNodes {
	retrieved := make(map[string]relevantNodes)
	for _, id := range percieved {
		event := p.associativeMemory.GetNode(id)

		thoughts := p.associativeMemory.RetrieveRelevantThoughts(event.Subject, event.Predicate, event.Object)
		events := p.associativeMemory.RetrieveRelevantEvents(event.Subject, event.Predicate, event.Object)

		retrieved[event.Description] = relevantNodes{currEvent: id, thoughts: thoughts, events: events}
	}

	return retrieved
}

func cosineSimilarity[V float32 | float64](a, b []V) float64 {
	if len(a) != len(b) {
		panic(fmt.Errorf("trying to compute the cosine similarity between vectors of different length: %d, %d", len(a), len(b)))
	}
	if len(a) == 0 {
		panic(fmt.Errorf("trying to compute the cosine similarity of empty vectors"))
	}

	var dot, na, nb float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		na += ai * ai
		nb += bi * bi
	}

	if na == 0 || nb == 0 {
		panic(fmt.Errorf("zero norm vector in cosine similarity"))
	}

	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// normalizeMap rescales every non-NaN value in m to [targetMin, targetMax],
// collapsing to the midpoint when every value is already equal.
func normalizeMap[K comparable, V float32 | float64](m map[K]V, targetMin, targetMax V) map[K]V {
	lo, hi := V(math.NaN()), V(math.NaN())
	for _, v := range m {
		if math.IsNaN(float64(v)) {
			continue
		}
		if math.IsNaN(float64(lo)) || v < lo {
			lo = v
		}
		if math.IsNaN(float64(hi)) || hi < v {
			hi = v
		}
	}

	if math.IsNaN(float64(lo)) || math.IsNaN(float64(hi)) {
		panic(fmt.Errorf("map has NaN min (%f) or max (%f) value", lo, hi))
	}

	if hi == lo {
		mid := (targetMax - targetMin) / 2
		for key := range m {
			m[key] = mid
		}
		return m
	}

	span := hi - lo
	for key, val := range m {
		m[key] = ((val-lo)*(targetMax-targetMin))/span + targetMin
	}
	return m
}

// highestNValues returns the n key/value pairs with the largest values,
// descending.
func highestNValues[K comparable, V float32 | float64](m map[K]V, n int) map[K]V {
	type kv struct {
		k K
		v V
	}

	ranked := make([]kv, 0, len(m))
	for k, v := range m {
		ranked = append(ranked, kv{k, v})
	}
	slices.SortFunc(ranked, func(a, b kv) int { return cmp.Compare(b.v, a.v) })

	if n > len(ranked) {
		n = len(ranked)
	}

	out := make(map[K]V, n)
	for _, p := range ranked[:n] {
		out[p.k] = p.v
	}
	return out
}

// clampAndFlip turns negative valence into a positive magnitude (a sharply
// negative memory is just as salient as a sharply positive one) and caps
// positive values at clamp.
func clampAndFlip[K comparable, V float32 | float64](m map[K]V, clamp V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		if v < 0 {
			out[k] = -v
		} else {
			out[k] = min(v, clamp)
		}
	}
	return out
}

func extractRecency(p *Persona, nodes []memory.NodeId) map[memory.NodeId]float64 {
	out := map[memory.NodeId]float64{}
	for i, node := range nodes {
		out[node] = math.Pow(p.state.RecencyDecay, float64(len(nodes)-i))
	}
	return out
}

func extractImportance(p *Persona, nodes []memory.NodeId) map[memory.NodeId]float64 {
	out := map[memory.NodeId]float64{}
	for _, node := range nodes {
		out[node] = float64(p.associativeMemory.GetNode(node).Importance)
	}
	return out
}

func extractValence(p *Persona, nodes []memory.NodeId) map[memory.NodeId]float64 {
	out := map[memory.NodeId]float64{}
	for _, node := range nodes {
		out[node] = float64(p.associativeMemory.GetNode(node).Valence)
	}
	return out
}

func extractRelevance(p *Persona, nodes []memory.NodeId, focalPoint string) map[memory.NodeId]float64 {
	out := map[memory.NodeId]float64{}
	focalEmbedding := p.GetEmbedding(focalPoint)
	for _, node := range nodes {
		nodeEmbedding, _ := p.associativeMemory.GetEmbeddingByNodeId(node)
		out[node] = cosineSimilarity(nodeEmbedding, focalEmbedding)
	}
	return out
}

// retrievalWeights are the tie-shaping constants layered on top of each
// persona's own w_* weights from State. Valence is the one scoring
// axis without an original-paper weight of its own, so it carries the
// smallest constant of the four.
var retrievalWeights = struct{ recency, importance, relevance, valence float64 }{
	recency: 0.5, importance: 2, relevance: 3, valence: 1,
}

type retrievalConfig struct {
	count int
}

type retrievalOpt func(*retrievalConfig)

func withRetrievalCount(n int) retrievalOpt {
	return func(rc *retrievalConfig) { rc.count = n }
}

// scoreCandidates blends recency, importance, relevance to focalPoint, and
// valence into one ranking score per candidate node.
func (p *Persona) scoreCandidates(nodes []memory.NodeId, focalPoint string) (scored map[memory.NodeId]float64, recency, importance, relevance, valence map[memory.NodeId]float64) {
	recency = normalizeMap(extractRecency(p, nodes), 0, 1)
	importance = normalizeMap(extractImportance(p, nodes), 0, 1)
	relevance = normalizeMap(extractRelevance(p, nodes, focalPoint), 0, 1)
	valence = normalizeMap(clampAndFlip(extractValence(p, nodes), 10), 0, 1)

	scored = map[memory.NodeId]float64{}
	for key := range recency {
		scored[key] = recency[key]*retrievalWeights.recency*p.state.RecencyWeight +
			importance[key]*retrievalWeights.importance*p.state.ImportanceWeight +
			relevance[key]*retrievalWeights.relevance*p.state.RelevanceWeight +
			valence[key]*retrievalWeights.valence*p.state.ValenceWeight
	}
	return scored, recency, importance, relevance, valence
}

func (p *Persona) retrieveForFocalPoints(focalPoints []string, retrievalOpts ...retrievalOpt) map[string][]memory.NodeId {
	config := retrievalConfig{count: 30}
	for _, opt := range retrievalOpts {
		opt(&config)
	}

	retrieved := map[string][]memory.NodeId{}

	for _, focalPoint := range focalPoints {
		nodes := memoryStream(p)

		scored, recency, importance, relevance, valence := p.scoreCandidates(nodes, focalPoint)
		top := highestNValues(scored, config.count)

		outNodes := make([]memory.NodeId, 0, len(top))
		for id := range top {
			p.associativeMemory.UpdateNode(id, func(c *memory.ConceptNode) {
				c.LastAccessed = p.state.CurrentTime
			})
			outNodes = append(outNodes, id)
		}

		p.logRetrieval(focalPoint, config.count, outNodes, top, recency, importance, relevance, valence)
		retrieved[focalPoint] = outNodes
	}

	return retrieved
}

func (p *Persona) logRetrieval(focalPoint string, count int, nodes []memory.NodeId, scored, recency, importance, relevance, valence map[memory.NodeId]float64) {
	if !p.ctx.Log.Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	groups := make([]slog.Attr, 0, len(nodes))
	for _, node := range nodes {
		groups = append(groups, slog.Group(
			"node_"+strconv.Itoa(int(node)),
			slog.Int("id", int(node)),
			slog.Float64("final", scored[node]),
			slog.Float64("recency", recency[node]),
			slog.Float64("importance", importance[node]),
			slog.Float64("valence", valence[node]),
			slog.Float64("relevancy", relevance[node]),
		))
	}

	p.ctx.Log.Debug("retrieval",
		slog.String("type", "retrieval"),
		slog.String("retrieval_type", "focal_points"),
		slog.String("focal_point", focalPoint),
		slog.Int("count", count),
		slog.Attr{Key: "retrieved", Value: slog.GroupValue(groups...)},
	)
}
