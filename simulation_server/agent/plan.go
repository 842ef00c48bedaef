package agent

import (
	"fmt"
	"maps"
	"math"
	"math/rand"
	"slices"
	"strings"
	"time"

	"github.com/fvdveen/reverie/simulation_server/llm"
	"github.com/fvdveen/reverie/simulation_server/maze"
	"github.com/fvdveen/reverie/simulation_server/memory"
)

type NewDayType int

const (
	NewDayTypeNoNewDay NewDayType = iota
	NewTypeDayFirstDay
	NewDayTypeNewDay
)

// reviseIdentity refreshes CurrentPlans and DailyPlanRequirements from the
// persona's recent memory stream; called once per new day before the day's
// schedule is generated, since both feed into IdentityStableSet.
func (p *Persona) reviseIdentity() {
	focalPoints := []string{
		fmt.Sprintf("%s's plan for %s.", p.Name(), p.CurrentTime().Format("Monday January 02")),
		fmt.Sprintf("Important recent events for %s's life.", p.Name()),
	}
	retrieved := p.retrieveForFocalPoints(focalPoints)

	statements := []string{}
	for _, nodes := range retrieved {
		for _, node := range nodes {
			mem := p.GetMemory(node)

			statements = append(statements, fmt.Sprintf("%s: %s", mem.Created.Format("Monday January 02 -- 15:04 PM"), mem.EmbeddingKey))
		}
	}

	note := p.cognition.GeneratePlanningNote(p, statements)
	feelings := p.cognition.GeneratePlanningFeelings(p, statements)

	newStatus := p.cognition.GenerateCurrentPlans(p, note, feelings)

	p.state.CurrentPlans = newStatus

	dailyReq := p.cognition.GenerateNewDailyRequirements(p)
	p.state.DailyPlanRequirements = dailyReq
}

func (p *Persona) longTermPlanning(newDay NewDayType) {
	var wakeUpHour time.Time

	switch newDay {
	case NewTypeDayFirstDay:
		wakeUpHour = p.cognition.GenerateWakeUpHour(p)
		p.state.DailyPlan = p.cognition.GenerateDailyPlan(p, wakeUpHour)
	case NewDayTypeNewDay:
		// Identity is revised and a fresh daily plan is generated every
		// morning, not just on the very first day.
		p.reviseIdentity()

		wakeUpHour = p.cognition.GenerateWakeUpHour(p)
		p.state.DailyPlan = p.cognition.GenerateDailyPlan(p, wakeUpHour)
	default:
		panic("this should be unreachable")
	}

	p.state.DailySchedule = p.cognition.GenerateHourlySchedule(p, wakeUpHour)
	p.state.OriginalDailySchedule = slices.Clone(p.state.DailySchedule)

	thought := fmt.Sprintf(
		"This is %s's plan for %s: %s.",
		p.name,
		p.state.CurrentTime.Format("Monday January 02"),
		strings.Join(p.state.DailyPlan, ", "))
	createdAt := p.state.CurrentTime
	expiratesAt := createdAt.Add(30 * 24 * time.Hour)
	spo := memory.SPO{
		Subject:   p.name,
		Predicate: "plan",
		Object:    p.state.CurrentTime.Format("Monday January 02"),
	}
	keywords := []string{"plan"}
	// Fixed rather than generated: a day spent studying and a day spent on
	// a date currently register as equally important.
	importance := 5
	valence := 0
	embedding := p.GetEmbedding(thought)
	p.addThoughtToMemory(spo, thought, keywords, importance, valence, make([]memory.NodeId, 0), createdAt, &expiratesAt, thought, embedding)
}

// decomposeScheduleEntry replaces the schedule entry at idx with its
// cognition-generated decomposition when the entry qualifies, splicing the
// result into DailySchedule in place of the original entry. No-op if idx is
// out of range or shouldDecompose rejects the entry.
func (p *Persona) decomposeScheduleEntry(idx int, shouldDecompose func(desc string, dur int) bool) {
	if idx < 0 || idx >= len(p.state.DailySchedule) {
		return
	}

	plan := p.state.DailySchedule[idx]
	if plan.Duration < 60 || !shouldDecompose(plan.Activity, plan.Duration) {
		return
	}

	decomposedPlan := p.cognition.GeneratePlanDecomposition(p, plan)
	before, after := slices.Clone(p.state.DailySchedule[:idx]), p.state.DailySchedule[idx+1:]
	p.state.DailySchedule = append(before, decomposedPlan...)
	p.state.DailySchedule = append(p.state.DailySchedule, after...)
}

func (p *Persona) determineActivity(maze *maze.Maze) {
	shouldDecomposeActivity := func(desc string, dur int) bool {
		if !strings.Contains(desc, "sleep") && !strings.Contains(desc, "bed") {
			return true
		} else if strings.Contains(desc, "sleeping") || strings.Contains(desc, "asleep") || strings.Contains(desc, "in bed") {
			return false
		} else if strings.Contains(desc, "sleep") || strings.Contains(desc, "bed") {
			if dur > 60 {
				return false
			}
		}

		return true
	}

	currIndex := p.state.GetDailyPlanIndex()
	currIndexInHour := p.state.GetDailyPlanIndexInMinutes(60)

	if currIndex == 0 {
		p.decomposeScheduleEntry(currIndex, shouldDecomposeActivity)
		p.decomposeScheduleEntry(currIndexInHour+1, shouldDecomposeActivity)
	}

	// Activities are not decomposed past 11pm, since the day's schedule is
	// about to roll over anyway.
	if p.state.CurrentTime.Hour() < 23 {
		p.decomposeScheduleEntry(currIndexInHour, shouldDecomposeActivity)
	}

	const dayDuration = 24 * time.Hour
	scheduledDuration := time.Duration(0)
	for _, plan := range p.state.DailySchedule {
		scheduledDuration += time.Duration(plan.Duration) * time.Minute
	}

	if scheduledDuration < dayDuration {
		p.state.DailySchedule = append(p.state.DailySchedule,
			llm.Plan{
				Activity: "sleeping",
				Duration: int(dayDuration.Minutes()) - int(scheduledDuration.Minutes()),
			})
	} else if scheduledDuration > dayDuration {
		panic("daily schedule exceeds 24 hours, cannot reconcile against a single day")
	}

	currPlan := p.state.DailySchedule[currIndex]

	world := maze.GetTile(p.state.Position).Address.Get(memory.AddressLevelWorld)
	sector := p.cognition.GenerateActivitySector(p, maze, currPlan.Activity, world)
	arena := p.cognition.GenerateActivityArena(p, maze, currPlan.Activity, world, sector)
	activityAddress := memory.NewAddress(
		memory.AddressWithWorld(world),
		memory.AddressWithSector(sector),
		memory.AddressWithArena(arena),
	)
	activityObject := p.cognition.GenerateActivityObject(p, maze, currPlan.Activity, activityAddress)
	activityAddress = activityAddress.Copy(memory.AddressWithObject(activityObject))

	activityPronunciato := p.cognition.GenerateActivityPronunciato(p, currPlan.Activity)
	activitySPO := p.cognition.GenerateActivitySPO(p, currPlan.Activity)

	// Since the persona's activitys also influence object states we need to set those up
	activityObjectDescription := p.cognition.GenerateActivityObjectDescription(p, activityObject, currPlan.Activity)
	activityObjectPronunciato := p.cognition.GenerateActivityObjectPronunciato(p, activityObjectDescription)
	activityObjectSPO := p.cognition.GenerateActivityObjectSPO(p, activityObject, activityObjectDescription)

	// Replaces the current activity outright rather than enqueueing it
	// behind whatever is already running.
	p.state.SetActivity(
		p.ctx.Log,
		activityAddress,
		time.Duration(currPlan.Duration)*time.Minute,
		currPlan.Activity,
		activityPronunciato,
		activitySPO,
		activityObjectDescription,
		activityObjectPronunciato,
		activityObjectSPO)
}

// chooseRetrieved mutates retrieved, dropping the persona's own events before
// picking a focal event to react to: persona events take precedence over
// object events, and idle events are never chosen.
func (p *Persona) chooseRetrieved(retrieved map[string]relevantNodes) (relevantNodes, bool) {
	maps.DeleteFunc(retrieved, func(decs string, ev relevantNodes) bool {
		return p.associativeMemory.GetNode(ev.currEvent).Subject == p.name
	})

	priority := make([]relevantNodes, 0)
	for _, rn := range retrieved {
		node := p.associativeMemory.GetNode(rn.currEvent)
		if !strings.Contains(node.Subject, ":") && node.Subject != p.name {
			priority = append(priority, rn)
		}
	}
	if len(priority) > 0 {
		return priority[rand.Intn(len(priority))], true
	}

	for desc, rn := range retrieved {
		if !strings.Contains(desc, "is idle") {
			priority = append(priority, rn)
		}
	}
	if len(priority) > 0 {
		return priority[rand.Intn(len(priority))], true
	}

	return relevantNodes{}, false
}

// flattenEventsThoughts splits a relevantNodes set into separate event and
// thought id slices, the shape cognition's decision calls expect.
func flattenEventsThoughts(focussed relevantNodes) (events, thoughts []memory.NodeId) {
	events = make([]memory.NodeId, 0, len(focussed.events))
	thoughts = make([]memory.NodeId, 0, len(focussed.thoughts))
	for node := range focussed.events {
		events = append(events, node)
	}
	for node := range focussed.thoughts {
		thoughts = append(thoughts, node)
	}
	return events, thoughts
}

func letsTalk(init, target *Persona, focussed relevantNodes) bool {
	targetAddress, targetDescription, targetChattingWith, _, _ := target.activitySnapshot()

	if init.state.ActivityAddress.IsEmpty() ||
		init.state.ActivityDescription == "" ||
		targetAddress.IsEmpty() ||
		targetDescription == "" {
		return false
	}

	if strings.Contains(init.state.ActivityDescription, "sleeping") ||
		strings.Contains(targetDescription, "sleeping") {
		return false
	}

	// Personas never start a conversation in the last hour of the day.
	if init.state.CurrentTime.Hour() == 23 {
		return false
	}

	if targetAddress.HasState(memory.AddressStateWaiting) {
		return false
	}

	if init.state.ChattingWith != "" || targetChattingWith != "" {
		return false
	}

	if p, ok := init.state.ChattingWithBuffer[target.name]; ok && p > 0 {
		return false
	}

	events, thoughts := flattenEventsThoughts(focussed)

	return init.cognition.GenerateDecideToTalk(init, target, events, thoughts)
}

// letsReact decides whether init should wait for target to finish its
// current activity before proceeding.
func letsReact(init, target *Persona, focussed relevantNodes) (mode string, ok bool) {
	targetAddress, targetDescription, targetChattingWith, targetStartTime, targetDuration := target.activitySnapshot()

	if init.state.ActivityAddress.IsEmpty() ||
		init.state.ActivityDescription == "" ||
		targetAddress.IsEmpty() ||
		targetDescription == "" {
		return "", false
	}

	if strings.Contains(init.state.ActivityDescription, "sleeping") ||
		strings.Contains(targetDescription, "sleeping") {
		return "", false
	}

	// Personas never start waiting on each other in the last hour of the day.
	if init.state.CurrentTime.Hour() == 23 {
		return "", false
	}

	if strings.Contains(targetDescription, "waiting") {
		return "", false
	}

	if init.state.ChattingWith != "" || targetChattingWith != "" {
		return "", false
	}

	if p, ok := init.state.ChattingWithBuffer[target.name]; ok && p > 0 {
		return "", false
	}

	if len(init.state.PlannedPath) == 0 {
		return "", false
	}

	// init only waits on target when they share an activity address; this
	// keeps reactions scoped to personas converging on the same place even
	// though it also means a persona it can merely see, but isn't headed
	// toward, never triggers a wait.
	if init.state.ActivityAddress != targetAddress {
		return "", false
	}

	events, thoughts := flattenEventsThoughts(focussed)

	shouldWait := init.cognition.GenerateDecideToWait(init, target, events, thoughts)
	if shouldWait {
		return fmt.Sprintf("wait: %s",
				targetStartTime.
					Add(targetDuration-time.Minute).
					Format("January 02, 2006, 15:04:05")),
			true
	}

	return "", false
}

func (p *Persona) shouldReact(focussedEvent relevantNodes, personas map[string]*Persona) (mode string, ok bool) {
	if p.state.ChattingWith != "" {
		return "", false
	} else if p.state.ActivityAddress.HasState(memory.AddressStateWaiting) {
		return "", false
	}

	currEvent := p.associativeMemory.GetNode(focussedEvent.currEvent)

	if !strings.Contains(currEvent.Subject, ":") {
		target, ok := personas[currEvent.Subject]
		if !ok || p.name == target.name {
			// Target does not exist or we are reaction to ourselves
			return "", false
		}

		if letsTalk(p, target, focussedEvent) {
			return fmt.Sprintf("chat with %s", currEvent.Subject), true
		}

		return letsReact(p, personas[currEvent.Subject], focussedEvent)
	}

	return "", false
}

func (p *Persona) createReact(summary string, duration int, address memory.Address, spo memory.SPO, actStartTime time.Time, pronunciato string, chattingWith string, chat []memory.Utterance, chattingWithBuffer map[string]int, chatEndTime time.Time) {
	minSum := 0
	for i := 0; i < p.state.GetOriginalDailyPlanIndex(); i += 1 {
		minSum += p.state.OriginalDailySchedule[i].Duration
	}
	startTime := p.StartOfDay().Add(time.Duration(minSum) * time.Minute)

	var endTime time.Time
	if d := p.state.OriginalDailySchedule[p.state.GetOriginalDailyPlanIndex()].Duration; d >= 120 {
		endTime = startTime.Add(time.Duration(d) * time.Minute)
	} else if len(p.state.OriginalDailySchedule) > p.state.GetOriginalDailyPlanIndex()+1 {
		d1 := p.state.OriginalDailySchedule[p.state.GetOriginalDailyPlanIndex()].Duration
		d2 := p.state.OriginalDailySchedule[p.state.GetOriginalDailyPlanIndex()+1].Duration

		endTime = startTime.Add(time.Duration(d1+d2) * time.Minute)
	} else {
		endTime = startTime.Add(2 * time.Hour)
	}

	durSum := p.StartOfDay()
	startIndex := -1
	endIndex := -1
	for i, plan := range p.state.DailySchedule {
		if !durSum.Before(startTime) && startIndex == -1 {
			startIndex = i
		}
		if !durSum.Before(endTime) && endIndex == -1 {
			endIndex = i
		}
		durSum = durSum.Add(time.Duration(plan.Duration) * time.Minute)
	}

	newPlans := p.cognition.GenerateReactionScheduleUpdate(p, llm.Plan{Duration: duration, Activity: summary}, startTime, endTime)

	before, after := slices.Clone(p.state.DailySchedule[:startIndex]), p.state.DailySchedule[endIndex:]
	p.state.DailySchedule = append(
		before,
		newPlans...,
	)
	p.state.DailySchedule = append(
		p.state.DailySchedule,
		after...,
	)

	dur := time.Duration(duration) * time.Minute
	if chattingWith != "" {
		p.state.SetChatActivity(p.ctx.Log, address, dur, summary, pronunciato, spo, chattingWith, chat, chattingWithBuffer, chatEndTime)
	} else {
		p.state.SetActivity(p.ctx.Log, address, dur, summary, pronunciato, spo, "", "", memory.SPO{})
	}
}

// flattenNodeGroups concatenates every node id slice in a named-group
// retrieval result into a single slice, discarding the grouping.
func flattenNodeGroups(groups map[string][]memory.NodeId) []memory.NodeId {
	nodes := []memory.NodeId{}
	for _, ns := range groups {
		nodes = append(nodes, ns...)
	}
	return nodes
}

func getLastN[T any](elems []T, n int) []T {
	if len(elems) < n {
		return elems
	}

	return elems[len(elems)-n:]
}

func (p *Persona) iterativeGenerateConversation(target *Persona, maze *maze.Maze) (chat []memory.Utterance, duration int) {
	generateUtterance := func(init, target *Persona, chat []memory.Utterance) (memory.Utterance, bool) {
		relationshipMemories := p.retrieveForFocalPoints([]string{target.name}, withRetrievalCount(50))
		relationship := p.cognition.GenerateRelationshipSummary(p, target, flattenNodeGroups(relationshipMemories))

		focalPoints := []string{relationship, fmt.Sprintf("%s is %s", target.name, target.ActivityDescription())}
		lastUtt := getLastN(chat, 4)
		for _, utt := range lastUtt {
			focalPoints = append(focalPoints, fmt.Sprintf("%s: %s\n", utt.Speaker, utt.Sentence))
		}

		retrieved := init.retrieveForFocalPoints(focalPoints, withRetrievalCount(15))

		return init.cognition.GenerateOneUtterance(init, target, maze, chat, flattenNodeGroups(retrieved), relationship)
	}

	for i := 0; i < 8; i += 1 {
		utt, done := generateUtterance(p, target, chat)
		chat = append(chat, utt)
		if done {
			break
		}

		utt, done = generateUtterance(target, p, chat)
		chat = append(chat, utt)
		if done {
			break
		}
	}

	length := 0
	for _, utt := range chat {
		length += len(utt.Speaker) + len(utt.Sentence) + 3
	}

	return chat, int(math.Ceil(float64(length/8) / 30))
}

func (p *Persona) chatReact(maze *maze.Maze, reactionMode string, personas map[string]*Persona) {
	target := personas[strings.TrimPrefix(reactionMode, "chat with ")]

	conversation, duration := p.iterativeGenerateConversation(target, maze)
	summary := p.cognition.GenerateConversationSummary(p, conversation)

	endOfMinute := p.state.CurrentTime
	if endOfMinute.Second() != 0 {
		endOfMinute = endOfMinute.Add(time.Duration(60-endOfMinute.Second()) * time.Second)
	}
	chatEndTime := endOfMinute.Add(time.Duration(duration) * time.Minute)

	react := func(p, other *Persona) {
		address := memory.SpecialAddress(memory.AddressStatePersona, other.name)
		spo := memory.SPO{
			Subject:   p.name,
			Predicate: "chat with",
			Object:    other.name,
		}

		chattingWith := map[string]int{other.name: 800}
		pronunciato := "💬"

		p.createReact(summary, duration, address, spo, p.state.ActivityStartTime, pronunciato, other.name, conversation, chattingWith, chatEndTime)
	}

	react(p, target)
	react(target, p)
}

func (p *Persona) waitReact(reactionMode string) {
	// Parentheses in ActivityDescription are treated as a delimiter around
	// the activity's short form, so activity descriptions must not contain
	// bare parentheses of their own.
	descStart := strings.Index(p.state.ActivityDescription, "(")
	descEnd := strings.Index(p.state.ActivityDescription, ")")
	desc := p.state.ActivityDescription

	if descStart != -1 && descEnd != -1 {
		desc = p.state.ActivityDescription[descStart+1 : descEnd]
	}

	insertedActivity := fmt.Sprintf("waiting to start %s", desc)
	endTime, err := time.Parse("January 02, 2006, 15:04:05", strings.TrimPrefix(reactionMode, "wait: "))
	if err != nil {
		panic(fmt.Errorf("unable to parse formatted time: %w", err))
	}
	activityDuration := int(endTime.Truncate(time.Minute).Sub(p.state.CurrentTime.Truncate(time.Minute)).Minutes()) + 1

	address := memory.SpecialAddress(memory.AddressStateWaiting, fmt.Sprintf(memory.CoordinateArgFormat, p.state.Position.X, p.state.Position.Y))
	spo := memory.SPO{
		Subject:   p.name,
		Predicate: "waiting to start",
		Object:    desc,
	}

	pronunciatio := "⌛"

	p.createReact(insertedActivity, activityDuration, address, spo, time.Time{}, pronunciatio, "", []memory.Utterance{}, map[string]int{}, time.Time{})
}

func (p *Persona) plan(maze *maze.Maze, personas map[string]*Persona, retrieved map[string]relevantNodes, newDay NewDayType) memory.Address {
	// On the start of a new day the personas schedule is empty, thus we need to fill it
	if newDay != NewDayTypeNoNewDay {
		p.longTermPlanning(newDay)
	}

	if p.state.IsActivityFinished() {
		p.determineActivity(maze)
	}

	var focussedEvent relevantNodes
	var ok bool = false
	if len(retrieved) > 0 {
		focussedEvent, ok = p.chooseRetrieved(retrieved)
	}

	if ok {
		if reactionMode, ok := p.shouldReact(focussedEvent, personas); ok {
			if strings.HasPrefix(reactionMode, "chat with") {
				p.chatReact(maze, reactionMode, personas)
			} else if strings.HasPrefix(reactionMode, "wait") {
				p.waitReact(reactionMode)
			}
		}
	}

	// Clean up chat related persona state if we're not actively in a chat
	if p.state.ActivitySPO.Predicate != "chat with" {
		p.state.ChattingWith = ""
		p.state.Chat = []memory.Utterance{}
		p.state.ChatEndTime = time.Time{}
	}

	// To ensure that personas do not devolve into infinite loops of chatting with each other
	// we have a cooldown in place preventing personas from chatting again for a short time after they've chatted before.
	for name := range p.state.ChattingWithBuffer {
		if name == p.state.ChattingWith {
			continue
		}
		p.state.ChattingWithBuffer[name] -= 1
	}

	return p.state.ActivityAddress
}
