// Package config loads daemon settings from the environment and the phase
// cycle definition from a YAML file. A broken cycle file is never fatal:
// the daemon substitutes the default cycle and keeps going.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"pomodoro/daemon/internal/model"
)

type Config struct {
	Port         string
	DBPath       string
	JWTSecret    string
	TokenTTL     time.Duration
	CORSOrigins  []string
	SnapshotPath string
	CyclePath    string
	// LeaseSettle and LeaseConfirm are the bounded waits around the
	// background grant; tunable because they paper over OS teardown
	// timing, not because any contract defines them.
	LeaseSettle         time.Duration
	LeaseConfirm        time.Duration
	RefreshDeltaSeconds int
}

func Load() Config {
	return Config{
		Port:                getEnv("PORT", "7313"),
		DBPath:              getEnv("DB_PATH", "./data/pomodoro.db"),
		JWTSecret:           getEnv("JWT_SECRET", "change-this-secret"),
		TokenTTL:            time.Duration(getEnvInt("TOKEN_TTL_HOURS", 720)) * time.Hour,
		CORSOrigins:         getEnvList("CORS_ORIGINS", []string{"http://localhost:7313", "http://127.0.0.1:7313"}),
		SnapshotPath:        getEnv("SNAPSHOT_PATH", "./data/snapshot.json"),
		CyclePath:           getEnv("CYCLE_CONFIG", "./cycle.yaml"),
		LeaseSettle:         time.Duration(getEnvInt("LEASE_SETTLE_MS", 1200)) * time.Millisecond,
		LeaseConfirm:        time.Duration(getEnvInt("LEASE_CONFIRM_MS", 400)) * time.Millisecond,
		RefreshDeltaSeconds: getEnvInt("REFRESH_DELTA_SECONDS", 60),
	}
}

type cycleFile struct {
	Cycle []cyclePhase `yaml:"cycle"`
}

type cyclePhase struct {
	Name    string `yaml:"name"`
	Seconds int    `yaml:"duration"`
}

// LoadCycle reads the phase cycle from path. Any problem (missing file,
// bad YAML, unknown phase names, an empty list) falls back to the default
// 4-phase cycle with a log line, never an error.
func LoadCycle(path string) []model.Phase {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("config: cannot read cycle file %s: %v, using default cycle", path, err)
		}
		return model.DefaultCycle()
	}

	var file cycleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		log.Printf("config: malformed cycle file %s: %v, using default cycle", path, err)
		return model.DefaultCycle()
	}

	phases, err := validateCycle(file.Cycle)
	if err != nil {
		log.Printf("config: invalid cycle in %s: %v, using default cycle", path, err)
		return model.DefaultCycle()
	}
	return phases
}

func validateCycle(raw []cyclePhase) ([]model.Phase, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("cycle has no phases")
	}
	phases := make([]model.Phase, 0, len(raw))
	for i, p := range raw {
		if !model.ValidPhaseName(p.Name) {
			return nil, fmt.Errorf("phase %d has unknown name %q", i, p.Name)
		}
		// Non-positive durations are kept: the timeline treats them as
		// immediately expired rather than rejecting the cycle.
		phases = append(phases, model.Phase{Name: p.Name, DurationSeconds: p.Seconds})
	}
	return phases, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}
