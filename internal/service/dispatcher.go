package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Strob0t/fleetconsole/internal/adapter/otel"
	"github.com/Strob0t/fleetconsole/internal/adapter/wire"
	"github.com/Strob0t/fleetconsole/internal/domain"
	"github.com/Strob0t/fleetconsole/internal/domain/command"
	"github.com/Strob0t/fleetconsole/internal/domain/fleet"
	"github.com/Strob0t/fleetconsole/internal/port/transport"
)

// Dispatcher turns operator requests into wire commands.
type Dispatcher struct {
	sender  transport.Sender
	metrics *otel.Metrics
}

// NewDispatcher creates a Dispatcher sending through sender. metrics may be nil.
func NewDispatcher(sender transport.Sender, metrics *otel.Metrics) *Dispatcher {
	return &Dispatcher{sender: sender, metrics: metrics}
}

// Dispatch validates req and hands the encoded command to the sender. It
// returns once the frame is written and does not wait for the backend's
// command_response. Invalid requests fail with a *command.ValidationError and
// a disconnected backend with domain.ErrNotConnected; neither performs I/O.
func (d *Dispatcher) Dispatch(ctx context.Context, req command.Request) (command.Command, error) {
	ctx, span := otel.StartDispatchSpan(ctx, string(req.Kind), req.AgentIndex)
	cmd, err := d.dispatch(ctx, req)
	otel.EndSpan(span, err)
	d.metrics.RecordCommand(ctx, string(req.Kind), err)
	return cmd, err
}

func (d *Dispatcher) dispatch(ctx context.Context, req command.Request) (command.Command, error) {
	cmd, err := command.Validate(req)
	if err != nil {
		return command.Command{}, err
	}

	if st := d.sender.State(); st != fleet.Connected {
		return command.Command{}, fmt.Errorf("dispatch %s to bot %d: %w (state %s)", cmd.Kind, cmd.AgentIndex, domain.ErrNotConnected, st)
	}

	data, err := wire.EncodeCommand(cmd)
	if err != nil {
		return command.Command{}, err
	}

	if err := d.sender.Send(ctx, data); err != nil {
		return command.Command{}, fmt.Errorf("dispatch %s to bot %d: %w", cmd.Kind, cmd.AgentIndex, err)
	}

	slog.InfoContext(ctx, "command sent", "cmd", cmd.Kind, "bot_id", cmd.AgentIndex)
	return cmd, nil
}
