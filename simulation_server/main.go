package main

import (
	"fmt"
	"path"

	"github.com/fvdveen/reverie/simulation_server/config"
	"github.com/fvdveen/reverie/simulation_server/llm/openai"
	"github.com/fvdveen/reverie/simulation_server/logging"
	simulationloader "github.com/fvdveen/reverie/simulation_server/simulation_loader"
)

func main() {
	conf, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Could not load config: %v", err))
	}

	rl, err := logging.NewRunLogs(logging.Config{
		BaseDir:        path.Join(conf.LogDir, conf.SimulationName),
		AlsoToStderr:   true,
		EnableDebugLog: true,
	})
	if err != nil {
		panic(fmt.Sprintf("Could not react logger: %v", err))
	}
	defer func() { _ = rl.Close() }()
	defer logging.RecoverAndLog(rl.Log, rl.Sync)

	clientOpts := []openai.ClientOpt{openai.WithAPIKey(conf.TextModelKey), openai.WithLogger(rl.Log)}
	if conf.TextModelURL != "" {
		clientOpts = append(clientOpts, openai.WithURL(conf.TextModelURL))
	}
	if conf.TextModel != "" {
		clientOpts = append(clientOpts, openai.WithTextModel(conf.TextModel))
	}
	client := openai.New(clientOpts...)

	embedderOpts := []openai.ClientOpt{openai.WithAPIKey(conf.EmbeddingKey), openai.WithLogger(rl.Log)}
	if conf.EmbeddingURL != "" {
		embedderOpts = append(embedderOpts, openai.WithURL(conf.EmbeddingURL))
	}
	if conf.EmbeddingModel != "" {
		embedderOpts = append(embedderOpts, openai.WithEmbeddingsModel(conf.EmbeddingModel))
	}
	embedder := openai.New(embedderOpts...)

	sim, err := simulationloader.LoadSimulation(path.Join(conf.SimulationDir, conf.SimulationName), conf.MazeDir, client, embedder, rl.Log)
	if err != nil {
		panic(fmt.Sprintf("Could not load simulation: %v\n", err))
	}

	storage := simulationloader.FileStorage{
		SimulationsFolder: conf.SimulationDir,
		Simulation:        conf.SimulationName,
		Maze:              conf.SimulationMaze,
		BackupFolder:      conf.BackupDir,
	}

	sim.Storage = &storage
	sim.BackupInterval = conf.BackupInterval
	sim.Workers = conf.Workers
	sim.SkipSleep = conf.SkipSleep
	sim.ServerSleep = conf.ServerSleep

	if err := sim.Run(720); err != nil {
		panic(fmt.Sprintf("Could not run simulation: %v", err))
	}
}
