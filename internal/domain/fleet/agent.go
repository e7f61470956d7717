// Package fleet defines the worker agent model and the versioned fleet state.
package fleet

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// MaxFleetSize bounds the number of agents a fleet may be initialized with.
	MaxFleetSize = 4096
	// MaxIndex is the largest agent index accepted from the backend.
	MaxIndex = math.MaxInt32
)

// Status represents the current state of a worker agent.
type Status string

const (
	StatusIdle  Status = "IDLE"
	StatusBusy  Status = "BUSY"
	StatusError Status = "ERROR"
)

// ParseStatus converts a wire status string to a Status.
// Backends that report "IN_PROGRESS" or "FAILED" are mapped onto BUSY and ERROR.
func ParseStatus(s string) (Status, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "IDLE":
		return StatusIdle, nil
	case "BUSY", "IN_PROGRESS":
		return StatusBusy, nil
	case "ERROR", "FAILED":
		return StatusError, nil
	default:
		return "", fmt.Errorf("unknown agent status %q", s)
	}
}

// Position is a point in world space. X and Z span the map plane; Y is altitude.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// String formats the position with one decimal per axis.
func (p Position) String() string {
	return fmt.Sprintf("%.1f, %.1f, %.1f", p.X, p.Y, p.Z)
}

// Defaults applied to agents created by an initialization signal.
const (
	DefaultJob       = "Idle - awaiting commands"
	DefaultLastEvent = "Bot connected and ready"
	defaultAltitude  = 64
)

// Agent is a remotely controlled worker unit.
type Agent struct {
	ID         string   `json:"id"`
	Index      int      `json:"index"`
	Position   Position `json:"position"`
	Status     Status   `json:"status"`
	CurrentJob string   `json:"current_job"`
	LastEvent  string   `json:"last_event"`
}

// NewAgent returns a pristine idle agent for the given fleet index.
func NewAgent(index int) Agent {
	return Agent{
		ID:         AgentID(index),
		Index:      index,
		Position:   Position{Y: defaultAltitude},
		Status:     StatusIdle,
		CurrentJob: DefaultJob,
		LastEvent:  DefaultLastEvent,
	}
}

// AgentID returns the stable key for the agent with the given fleet index.
func AgentID(index int) string {
	return "worker_" + strconv.Itoa(index)
}

// ParseAgentKey extracts the fleet index from a bare ("3") or prefixed ("worker_3") key.
func ParseAgentKey(key string) (int, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(key), "worker_")
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("agent key %q: %w", key, err)
	}
	if n < 0 || n > MaxIndex {
		return 0, fmt.Errorf("agent key %q: index out of range", key)
	}
	return n, nil
}
