package server

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fvdveen/reverie/simulation_server/agent"
	"github.com/fvdveen/reverie/simulation_server/maze"
	"github.com/fvdveen/reverie/simulation_server/memory"
	"golang.org/x/sync/errgroup"
)

type SimulationStorer interface {
	SaveMovements(step int, movements map[string]PersonaMovement, currTime time.Time) error
	SaveSimulation(srv *Server) error
	Backup(step int) error
}

type Server struct {
	CurrentTime time.Time
	StartTime   time.Time
	// How much time the simulation progresses each step
	TimeStep time.Duration
	Maze     *maze.Maze
	// The step the current simulation is on
	Step             int
	Personas         map[string]*agent.Persona
	PersonaPositions map[string]maze.TilePos
	ForkedSim        string
	// After how many steps we make a backup of the simulation state
	BackupInterval int

	// How many personas are moved concurrently per tick. Defaults to 1
	// (sequential) when unset.
	Workers int
	// Real-time delay between ticks; zero runs flat out.
	ServerSleep time.Duration
	// Whether to fast-forward ticks where every persona is asleep.
	SkipSleep bool

	Log *slog.Logger

	Storage SimulationStorer
}

func New() *Server {
	return &Server{}
}

type PersonaMovement struct {
	Tile        maze.TilePos
	Pronunciato string
	Event       maze.Event
	Chat        []memory.Utterance
}

type Movements struct {
	Personas    map[string]PersonaMovement
	CurrentTime time.Time
}

func (s *Server) Run(i int) error {
	for range i {
		if s.Step%s.BackupInterval == 0 {
			if err := s.Storage.Backup(s.Step); err != nil {
				return fmt.Errorf("could not create server backup: %w", err)
			}
		}

		if err := s.ExecuteStep(); err != nil {
			return fmt.Errorf("could not execute step %d: %w", s.Step, err)
		}
		if err := s.Storage.SaveSimulation(s); err != nil {
			return fmt.Errorf("could not save simulation: %w", err)
		}

		if s.ServerSleep > 0 {
			time.Sleep(s.ServerSleep)
		}
	}

	return nil
}

func (s *Server) ExecuteStep() error {
	stepLog := s.Log.With(
		slog.Int("step", s.Step),
		slog.String("type", "step"),
		slog.Time("sim_time", s.CurrentTime),
	)

	stepLog.Info("step_start", slog.String("phase", "start"))

	if s.SkipSleep {
		s.skipSleep(stepLog)
	}

	gameObjectCleanup := map[maze.Event]maze.TilePos{}
	movements := Movements{Personas: map[string]PersonaMovement{}, CurrentTime: s.CurrentTime}

	// If the persona is at their destination activate their object event
	for _, persona := range s.Personas {
		if len(persona.PlannedPath()) != 0 {
			continue
		}

		ev := persona.GetCurrentObjectEvent()
		if ev.SPO.Subject == "" {
			continue
		}

		gameObjectCleanup[ev] = persona.Position()
		s.Maze.AddEventToTile(persona.Position(), ev)
		s.Maze.RemoveEventFromTile(persona.Position(), maze.Event{SPO: memory.SPO{Subject: ev.SPO.Subject}})
	}

	var eg errgroup.Group
	workers := s.Workers
	if workers <= 0 {
		workers = 1
	}
	eg.SetLimit(workers)

	var movementsMu sync.Mutex
	for name, persona := range s.Personas {
		name, persona := name, persona
		eg.Go(func() error {
			ctx := agent.MoveCtx{
				Log: stepLog,
			}
			next, pronunciato, event := persona.Move(ctx, s.Maze, s.Personas, s.PersonaPositions[name], s.CurrentTime)

			movementsMu.Lock()
			movements.Personas[name] = PersonaMovement{
				Tile:        next,
				Pronunciato: pronunciato,
				Event:       event,
				Chat:        persona.GetChat(),
			}
			movementsMu.Unlock()

			return nil
		})
	}
	// Every goroutine above returns nil unconditionally (Persona.Move has no error
	// return); Wait only blocks until all personas for this tick have moved.
	_ = eg.Wait()

	for name, persona := range s.Personas {
		curr := persona.Position()
		next := movements.Personas[name].Tile

		s.Maze.RemoveSubjectEventsFromTile(curr, name)
		s.Maze.AddEventToTile(next, persona.GetCurrentEvent())
	}

	for name, movement := range movements.Personas {
		s.PersonaPositions[name] = movement.Tile
		s.Personas[name].SetPosition(movement.Tile)
	}

	for ev, pos := range gameObjectCleanup {
		s.Maze.TurnTileEventIdle(pos, ev)
	}

	if err := s.Storage.SaveMovements(s.Step, movements.Personas, movements.CurrentTime); err != nil {
		return fmt.Errorf("could not save movements: %w", err)
	}

	stepLog.Info("step_end",
		slog.String("phase", "end"),
	)

	s.CurrentTime = s.CurrentTime.Add(s.TimeStep)
	s.Step += 1

	return nil
}

func (s *Server) skipSleep(stepLog *slog.Logger) {
	step := 3

	midnight := time.Date(
		s.CurrentTime.Year(),
		s.CurrentTime.Month(),
		s.CurrentTime.Day(),
		0, 0, 0, 0,
		s.CurrentTime.Location(),
	)

	elapsed := s.CurrentTime.Sub(midnight)
	iterationsSinceDay := int(elapsed / s.TimeStep)

	// The first few iterations of the day are when the daily schedule gets
	// planned, so they're never skipped.
	if iterationsSinceDay < step {
		return
	}

	var earliestWakeUpTime time.Time
	for _, p := range s.Personas {
		if !strings.Contains(p.DailySchedule()[p.DailyScheduleIdx()].Activity, "sleeping") {
			// At least one persona is awake; sleep can only be skipped
			// while every persona is asleep.
			return
		}

		t := p.WakeUpTime()
		if t.IsZero() || !p.StartOfDay().Before(t.Add(-s.TimeStep*time.Duration(step))) {
			return
		}
		t = t.Add(-s.TimeStep * time.Duration(step))

		if earliestWakeUpTime.IsZero() {
			earliestWakeUpTime = t
		} else if t.Before(earliestWakeUpTime) {
			earliestWakeUpTime = t
		}
	}

	if !s.CurrentTime.Before(earliestWakeUpTime) {
		// Run one more real timestep while asleep rather than jump past the
		// target wake time, to avoid moving CurrentTime backward.
		return
	}

	stepLog.With(slog.String("type", "skip_sleep"), slog.Time("next_step_time", earliestWakeUpTime)).Debug("skipping sleep")

	s.CurrentTime = earliestWakeUpTime
	for _, p := range s.Personas {
		// Jumping CurrentTime forward leaves per-persona timed state stale;
		// reset it so it matches the new time.
		p.ResetChattingWithBuffer()
	}
}
