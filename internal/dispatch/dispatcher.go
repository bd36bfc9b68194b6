// Package dispatch is the method-call entry point. Every command passes
// through the same steps: platform support, parameter validation,
// authorization, execution, and result wrapping.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/tazhate/calbridge/internal/domain"
	"github.com/tazhate/calbridge/internal/permission"
	"github.com/tazhate/calbridge/internal/pluginerr"
	"github.com/tazhate/calbridge/internal/prompt"
	"github.com/tazhate/calbridge/internal/service"
)

// Output is the shape of a command's success value.
type Output int

const (
	// OutputResult wraps the value as {"result": value}.
	OutputResult Output = iota
	// OutputMap returns the value unwrapped.
	OutputMap
	// OutputVoid returns an empty object.
	OutputVoid
)

// Envelope is the single-field wrapper of value-producing commands.
type Envelope struct {
	Result any `json:"result"`
}

// Command is one entry of the command table.
type Command struct {
	Name        string
	Description string
	Params      []Param
	Access      *domain.AccessRequirement
	Output      Output

	parse func(*Args, *Dispatcher) (any, error)
	exec  func(context.Context, *Dispatcher, any) (any, error)
}

// Param documents one option of a command.
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Description string `json:"description,omitempty"`
}

func define[A any](c Command, parse func(*Args, *Dispatcher) (A, error), exec func(context.Context, *Dispatcher, A) (any, error)) Command {
	c.parse = func(a *Args, d *Dispatcher) (any, error) { return parse(a, d) }
	c.exec = func(ctx context.Context, d *Dispatcher, v any) (any, error) { return exec(ctx, d, v.(A)) }
	return c
}

// Options configures a Dispatcher.
type Options struct {
	Platform  Platform
	Gate      *permission.Gate
	Calendars *service.CalendarService
	// Reminders may be nil on platforms without a reminders store.
	Reminders *service.ReminderService
	Presenter prompt.Presenter
	Location  *time.Location
	Logger    *slog.Logger
}

// Dispatcher runs commands. It holds no per-call state apart from the
// prompt slots, so calls may run concurrently.
type Dispatcher struct {
	platform  Platform
	gate      *permission.Gate
	calendars *service.CalendarService
	reminders *service.ReminderService
	presenter prompt.Presenter
	loc       *time.Location
	logger    *slog.Logger

	chooser prompt.Slot[[]domain.Calendar]
	editor  prompt.Slot[domain.EventParams]
}

func New(opts Options) *Dispatcher {
	d := &Dispatcher{
		platform:  opts.Platform,
		gate:      opts.Gate,
		calendars: opts.Calendars,
		reminders: opts.Reminders,
		presenter: opts.Presenter,
		loc:       opts.Location,
		logger:    opts.Logger,
	}
	if d.presenter == nil {
		d.presenter = prompt.Headless{}
	}
	if d.loc == nil {
		d.loc = time.UTC
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// Platform returns the running platform profile.
func (d *Dispatcher) Platform() Platform { return d.platform }

// Commands lists the commands supported on the running platform, by name.
func (d *Dispatcher) Commands() []Command {
	out := make([]Command, 0, len(registry))
	for _, c := range registry {
		if d.platform.Supports(c.Name) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Call runs a command. The error, when not nil, is always a *pluginerr.Error.
func (d *Dispatcher) Call(ctx context.Context, name string, options map[string]any) (any, error) {
	out, err := d.call(ctx, name, options)
	if err != nil {
		pe := service.Classify(err, name)
		d.logRejection(name, pe)
		return nil, pe
	}
	return out, nil
}

func (d *Dispatcher) call(ctx context.Context, name string, options map[string]any) (any, error) {
	cmd, ok := registry[name]
	if !ok || !d.platform.Supports(name) {
		return nil, pluginerr.New(pluginerr.Unimplemented, name, "")
	}

	parsed, err := cmd.parse(newArgs(name, options), d)
	if err != nil {
		return nil, err
	}

	if cmd.Access != nil {
		if err := d.gate.RequireAccess(ctx, name, *cmd.Access); err != nil {
			return nil, err
		}
	}

	value, err := cmd.exec(ctx, d, parsed)
	if err != nil {
		return nil, err
	}

	switch cmd.Output {
	case OutputMap:
		return value, nil
	case OutputVoid:
		return struct{}{}, nil
	default:
		return Envelope{Result: value}, nil
	}
}

func (d *Dispatcher) logRejection(name string, pe *pluginerr.Error) {
	switch pe.Kind {
	case pluginerr.OSError, pluginerr.InternalError, pluginerr.UnknownError:
		d.logger.Warn("command failed", "command", name, "kind", pe.Kind, "error", errors.Unwrap(pe))
	}
	d.logger.Debug("command rejected", "command", name, "kind", pe.Kind, "message", pe.Message)
}

// Responder is the caller's response channel.
type Responder interface {
	Resolve(value any)
	pluginerr.Rejecter
}

// Invoke runs a command and settles r exactly once.
func (d *Dispatcher) Invoke(ctx context.Context, name string, options map[string]any, r Responder) {
	out, err := d.Call(ctx, name, options)
	if err != nil {
		pluginerr.FromError(err, name).Reject(r)
		return
	}
	r.Resolve(out)
}
