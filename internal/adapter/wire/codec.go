package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/Strob0t/fleetconsole/internal/domain"
	"github.com/Strob0t/fleetconsole/internal/domain/command"
	"github.com/Strob0t/fleetconsole/internal/domain/fleet"
)

// MaxFleetSize bounds fleet_init announcements.
const MaxFleetSize = fleet.MaxFleetSize

// DecodeError reports a malformed or unrecognized inbound frame.
type DecodeError struct {
	Type string // empty when the discriminator itself could not be read
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("decode frame: %v", e.Err)
	}
	return fmt.Sprintf("decode %s frame: %v", e.Type, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is matches domain.ErrDecode.
func (e *DecodeError) Is(target error) bool { return target == domain.ErrDecode }

var (
	errMissingType = errors.New("missing type")
	errUnknownType = errors.New("unknown message type")
)

// botID accepts both numeric (0) and string ("0", "worker_0") agent references.
type botID int

func (b *botID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n, err := fleet.ParseAgentKey(s)
		if err != nil {
			return err
		}
		*b = botID(n)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("bot_id: %w", err)
	}
	if f < 0 || f != math.Trunc(f) || f > fleet.MaxIndex {
		return fmt.Errorf("bot_id %v is not a valid index", f)
	}
	*b = botID(f)
	return nil
}

func (b *botID) ptr() *int {
	if b == nil {
		return nil
	}
	n := int(*b)
	return &n
}

// inboundFrame is the union of all inbound frame fields.
type inboundFrame struct {
	Type string `json:"type"`

	Bots map[string]botFrame `json:"bots"`

	BotID   *botID          `json:"bot_id"`
	Command string          `json:"command"`
	Result  json.RawMessage `json:"result"`
	Status  string          `json:"status"`
	Cmd     string          `json:"cmd"`
	Message string          `json:"message"`

	WorkerCount     *int   `json:"worker_count"`
	CompletedBlocks *int   `json:"completed_blocks"`
	TotalBlocks     *int   `json:"total_blocks"`
	IsRunning       *bool  `json:"is_running"`
	StartTime       *int64 `json:"start_time"`

	BotCount *int `json:"bot_count"`
}

type botFrame struct {
	Status *string `json:"status"`
	Result *struct {
		BotPosition []float64 `json:"bot_position"`
		CurrentJob  *string   `json:"current_job"`
	} `json:"result"`
}

// Decode parses one inbound frame. Errors are always *DecodeError.
func Decode(data []byte) (Message, error) {
	var f inboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		var typed struct {
			Type string `json:"type"`
		}
		_ = json.Unmarshal(data, &typed)
		return nil, &DecodeError{Type: typed.Type, Err: err}
	}

	switch f.Type {
	case "":
		return nil, &DecodeError{Err: errMissingType}
	case TypeStatusAll:
		msg, err := decodeStatusAll(f.Bots)
		if err != nil {
			return nil, &DecodeError{Type: f.Type, Err: err}
		}
		return msg, nil
	case TypeJobStart:
		return JobStart{BotID: f.BotID.ptr(), Command: f.Command}, nil
	case TypeJobComplete:
		return JobComplete{BotID: f.BotID.ptr(), Result: f.Result}, nil
	case TypeJobFailed:
		return JobFailed{BotID: f.BotID.ptr(), Message: f.Message}, nil
	case TypeCommandResponse:
		return CommandResponse{BotID: f.BotID.ptr(), Status: f.Status, Cmd: f.Cmd, Message: f.Message}, nil
	case TypeTaskStats:
		return TaskStats{
			WorkerCount:     f.WorkerCount,
			CompletedBlocks: f.CompletedBlocks,
			TotalBlocks:     f.TotalBlocks,
			Running:         f.IsRunning,
			StartTimeMillis: f.StartTime,
		}, nil
	case TypeFleetInit:
		if f.BotCount == nil || *f.BotCount < 0 || *f.BotCount > MaxFleetSize {
			return nil, &DecodeError{Type: f.Type, Err: fmt.Errorf("bot_count must be within [0, %d]", MaxFleetSize)}
		}
		return FleetInit{BotCount: *f.BotCount}, nil
	default:
		return nil, &DecodeError{Type: f.Type, Err: errUnknownType}
	}
}

func decodeStatusAll(bots map[string]botFrame) (StatusAll, error) {
	out := StatusAll{Bots: make([]BotStatus, 0, len(bots))}
	seen := make(map[int]string, len(bots))
	for key, b := range bots {
		index, err := fleet.ParseAgentKey(key)
		if err != nil {
			return StatusAll{}, err
		}
		if prev, dup := seen[index]; dup {
			first, second := min(prev, key), max(prev, key)
			return StatusAll{}, fmt.Errorf("bots %q and %q name the same agent", first, second)
		}
		seen[index] = key
		bs := BotStatus{Index: index}
		if b.Status != nil {
			st, err := fleet.ParseStatus(*b.Status)
			if err != nil {
				return StatusAll{}, fmt.Errorf("bot %s: %w", key, err)
			}
			bs.Status = &st
		}
		if b.Result != nil {
			if b.Result.BotPosition != nil {
				p := b.Result.BotPosition
				if len(p) != 3 {
					return StatusAll{}, fmt.Errorf("bot %s: bot_position needs 3 coordinates, got %d", key, len(p))
				}
				bs.Position = &fleet.Position{X: p[0], Y: p[1], Z: p[2]}
			}
			bs.CurrentJob = b.Result.CurrentJob
		}
		out.Bots = append(out.Bots, bs)
	}
	slices.SortFunc(out.Bots, func(a, b BotStatus) int { return a.Index - b.Index })
	return out, nil
}

type commandFrame struct {
	Type       string         `json:"type"`
	Cmd        command.Kind   `json:"cmd"`
	BotID      int            `json:"bot_id"`
	Parameters map[string]any `json:"parameters"`
}

// EncodeCommand serializes a validated command into an outbound frame.
func EncodeCommand(cmd command.Command) ([]byte, error) {
	params := map[string]any{}
	if cmd.Kind == command.KindMoveTo {
		params["target"] = cmd.Target[:]
	}
	data, err := json.Marshal(commandFrame{
		Type:       TypeCommand,
		Cmd:        cmd.Kind,
		BotID:      cmd.AgentIndex,
		Parameters: params,
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s command: %w", cmd.Kind, err)
	}
	return data, nil
}
