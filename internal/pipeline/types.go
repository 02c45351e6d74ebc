package pipeline

import (
	"runtime"
	"time"
)

// Config holds configuration for an orchestrator instance
type Config struct {
	WorkerCount    int           // Number of products processed concurrently
	ProductTimeout time.Duration // Budget per product; zero disables it
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		WorkerCount: runtime.NumCPU(),
	}
}

// RunMetrics summarises one orchestrator run
type RunMetrics struct {
	Products  int
	Succeeded int
	Failed    int
	Duration  time.Duration
}
