// Package config centralizes every environment-driven tunable into a single
// struct built once at process start, instead of ad hoc os.Getenv calls deep
// in the call stack.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	SimulationDir string
	MazeDir       string
	LogDir        string
	BackupDir     string

	SimulationName string
	SimulationMaze string

	TextModelURL string
	TextModelKey string
	TextModel    string

	EmbeddingURL   string
	EmbeddingKey   string
	EmbeddingModel string

	BackupInterval int

	// Workers bounds how many personas are moved concurrently per tick.
	Workers int
	// LLMTimeout is read from LLM_TIMEOUT; no cognition or embedding call
	// applies it.
	LLMTimeout time.Duration
	// ServerSleep is the real-time delay between ticks; zero runs flat out.
	ServerSleep time.Duration
	// SkipSleep, when true, fast-forwards ticks where every persona is asleep.
	SkipSleep bool
}

func getenvInt(key string, def int) (int, error) {
	str := os.Getenv(key)
	if str == "" {
		return def, nil
	}

	v, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("could not parse %s=%q as int: %w", key, str, err)
	}

	return v, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	str := os.Getenv(key)
	if str == "" {
		return def, nil
	}

	v, err := time.ParseDuration(str)
	if err != nil {
		return 0, fmt.Errorf("could not parse %s=%q as duration: %w", key, str, err)
	}

	return v, nil
}

func getenvBool(key string, def bool) (bool, error) {
	str := os.Getenv(key)
	if str == "" {
		return def, nil
	}

	v, err := strconv.ParseBool(str)
	if err != nil {
		return false, fmt.Errorf("could not parse %s=%q as bool: %w", key, str, err)
	}

	return v, nil
}

// Load reads an optional .env file (a missing file is not an error) and then
// builds a Config from the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("could not load .env file: %w", err)
	}

	backupInterval, err := getenvInt("BACKUP_INTERVAL", 20)
	if err != nil {
		return Config{}, err
	}

	workers, err := getenvInt("WORKERS", 4)
	if err != nil {
		return Config{}, err
	}

	llmTimeout, err := getenvDuration("LLM_TIMEOUT", 30*time.Second)
	if err != nil {
		return Config{}, err
	}

	serverSleep, err := getenvDuration("SERVER_SLEEP", 100*time.Millisecond)
	if err != nil {
		return Config{}, err
	}

	skipSleep, err := getenvBool("SKIP_SLEEP", false)
	if err != nil {
		return Config{}, err
	}

	return Config{
		SimulationDir: os.Getenv("SIMULATION_DIR"),
		MazeDir:       os.Getenv("MAZE_DIR"),
		LogDir:        os.Getenv("LOG_DIR"),
		BackupDir:     os.Getenv("BACKUP_DIR"),

		SimulationName: os.Getenv("SIMULATION_NAME"),
		SimulationMaze: os.Getenv("SIMULATION_MAZE"),

		TextModelURL: os.Getenv("TEXT_MODEL_URL"),
		TextModelKey: os.Getenv("TEXT_MODEL_KEY"),
		TextModel:    os.Getenv("TEXT_MODEL_LLM"),

		EmbeddingURL:   os.Getenv("EMBEDDING_URL"),
		EmbeddingKey:   os.Getenv("EMBEDDING_KEY"),
		EmbeddingModel: os.Getenv("EMBEDDING_MODEL"),

		BackupInterval: backupInterval,
		Workers:        workers,
		LLMTimeout:     llmTimeout,
		ServerSleep:    serverSleep,
		SkipSleep:      skipSleep,
	}, nil
}
