// Package command defines operator commands and their synchronous validation.
package command

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Strob0t/fleetconsole/internal/domain"
)

// Kind identifies the command sent to an agent.
type Kind string

const (
	KindMoveTo    Kind = "move_to"
	KindCancelJob Kind = "cancel_job"
	KindGetStatus Kind = "get_status"
)

// Request is an operator-issued command before validation.
// Params values may be numbers or strings typed into the console.
type Request struct {
	AgentIndex int
	Kind       Kind
	Params     map[string]any
}

// Command is a validated request ready for encoding.
type Command struct {
	AgentIndex int
	Kind       Kind
	Target     [3]int // move_to only
}

// ValidationError reports a rejected request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid command: " + e.Reason
	}
	return fmt.Sprintf("invalid command: %s: %s", e.Field, e.Reason)
}

// Is matches domain.ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == domain.ErrValidation
}

// Validate checks req and converts it into a Command. It performs no I/O.
func Validate(req Request) (Command, error) {
	if req.AgentIndex < 0 {
		return Command{}, &ValidationError{Field: "bot_id", Reason: "must not be negative"}
	}

	cmd := Command{AgentIndex: req.AgentIndex, Kind: req.Kind}
	switch req.Kind {
	case KindMoveTo:
		for i, axis := range []string{"x", "y", "z"} {
			raw, ok := req.Params[axis]
			if !ok {
				return Command{}, &ValidationError{Field: axis, Reason: "required"}
			}
			n, err := toInt(raw)
			if err != nil {
				return Command{}, &ValidationError{Field: axis, Reason: err.Error()}
			}
			cmd.Target[i] = n
		}
	case KindCancelJob, KindGetStatus:
	case "":
		return Command{}, &ValidationError{Field: "cmd", Reason: "required"}
	default:
		return Command{}, &ValidationError{Field: "cmd", Reason: fmt.Sprintf("unknown command %q", req.Kind)}
	}
	return cmd, nil
}

// toInt accepts integral numbers and decimal integer strings.
func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("%q is not an integer", n.String())
		}
		return int(i), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, fmt.Errorf("%q is not an integer", n)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("unsupported value of type %T", v)
	}
}
