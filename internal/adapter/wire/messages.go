// Package wire encodes outbound commands and decodes inbound backend frames.
// Frames are UTF-8 JSON objects discriminated by a "type" field.
package wire

import (
	"encoding/json"

	"github.com/Strob0t/fleetconsole/internal/domain/fleet"
)

// Frame type discriminators.
const (
	TypeStatusAll       = "status_response_all"
	TypeJobStart        = "job_start"
	TypeJobComplete     = "job_complete"
	TypeJobFailed       = "job_failed"
	TypeCommandResponse = "command_response"
	TypeTaskStats       = "task_stats_update"
	TypeFleetInit       = "fleet_init"
	TypeCommand         = "command"
)

// Message is a decoded inbound frame.
type Message interface {
	Type() string
}

// StatusAll is a bulk status report. Nil fields were absent from the frame.
type StatusAll struct {
	Bots []BotStatus // ordered by ascending index
}

// BotStatus carries the fields reported for one agent.
type BotStatus struct {
	Index      int
	Status     *fleet.Status
	Position   *fleet.Position
	CurrentJob *string
}

// JobStart reports that an agent began executing a command.
type JobStart struct {
	BotID   *int
	Command string
}

// JobComplete reports that an agent finished its job.
type JobComplete struct {
	BotID  *int
	Result json.RawMessage
}

// JobFailed reports that an agent's job failed.
type JobFailed struct {
	BotID   *int
	Message string
}

// CommandResponse acknowledges a command sent by the console.
type CommandResponse struct {
	BotID   *int
	Status  string
	Cmd     string
	Message string
}

// TaskStats reports fleet-wide task progress. Nil fields were absent.
type TaskStats struct {
	WorkerCount     *int
	CompletedBlocks *int
	TotalBlocks     *int
	Running         *bool
	StartTimeMillis *int64
}

// FleetInit announces a fresh fleet of BotCount agents.
type FleetInit struct {
	BotCount int
}

func (StatusAll) Type() string       { return TypeStatusAll }
func (JobStart) Type() string        { return TypeJobStart }
func (JobComplete) Type() string     { return TypeJobComplete }
func (JobFailed) Type() string       { return TypeJobFailed }
func (CommandResponse) Type() string { return TypeCommandResponse }
func (TaskStats) Type() string       { return TypeTaskStats }
func (FleetInit) Type() string       { return TypeFleetInit }
