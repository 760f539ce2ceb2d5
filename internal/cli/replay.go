package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"inputkit/internal/config"
	"inputkit/internal/dragdrop"
	"inputkit/internal/feedback"
	"inputkit/internal/focus"
	"inputkit/internal/geom"
	"inputkit/internal/gesture"
	"inputkit/internal/input"
	"inputkit/internal/logging"
	"inputkit/internal/timing"
	"inputkit/internal/voice"
)

// failAction is the action name whose invocation always fails.
const failAction = "fail"

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Settle time.Duration
}

// ReplayEvent is one observable outcome of a replay.
type ReplayEvent struct {
	AtMs   int64  `json:"at_ms"`
	Source string `json:"source"`
	Detail string `json:"detail"`
}

// ReplayResult holds everything a replay produced.
type ReplayResult struct {
	Name   string        `json:"name,omitempty"`
	Events []ReplayEvent `json:"events"`
	Stats  input.Stats   `json:"stats"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <trace.yaml>",
		Short: "Replay an input trace through the hub",
		Long: `Replay a recorded input trace on a simulated clock and print what the
hub interpreted: classified gestures, focus changes, activations, voice
matches, drops and feedback pulses.

Each step fires at its "at" offset; timers that fall due between steps run
first. Voice commands bind to actions by name. Every action prints when it
runs, and the action named "fail" returns an error.

Exit codes:
  0 - Trace replayed
  2 - Command error (unreadable trace, invalid config, etc.)

Examples:
  inputctl replay testdata/traces/gestures.yaml
  inputctl replay session.yaml --config inputkit.toml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd, args[0])
		},
	}

	cmd.Flags().DurationVar(&opts.Settle, "settle", 0, "time to run after the last step (default from trace, else 1s)")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command, path string) error {
	trace, err := LoadTrace(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load trace", err)
	}
	if opts.Settle > 0 {
		trace.Settle = opts.Settle
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logger, err := opts.logger(cmd, cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to set up logging", err)
	}
	defer logger.Close()

	result, err := Replay(trace, cfg, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "replay failed", err)
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), result)
	}
	return writeReplayText(cmd.OutOrStdout(), result)
}

// replayer owns the simulated clock and hub for one trace. Every callback
// runs on the replay goroutine, so events need no locking.
type replayer struct {
	trace  *Trace
	clock  *timing.ManualClock
	hub    *input.Hub
	drag   *dragdrop.Coordinator[string]
	events []ReplayEvent
}

// Replay runs trace against a hub built from cfg and returns what it
// observed.
func Replay(trace *Trace, cfg *config.Config, logger *logging.Logger) (*ReplayResult, error) {
	r := &replayer{
		trace: trace,
		clock: timing.NewManualClock(trace.Start),
	}

	decls := append(append([]voice.Declaration(nil), cfg.Voice.Commands...), trace.Commands...)
	hub, err := input.NewHub(cfg,
		input.WithClock(r.clock),
		input.WithLogger(logger),
		input.WithEmitter(feedback.ModalityAudio, feedback.EmitterFunc(r.pulse)),
		input.WithActions(r.actions(decls)),
	)
	if err != nil {
		return nil, err
	}
	defer hub.Dispose()
	r.hub = hub

	if err := r.setup(); err != nil {
		return nil, err
	}
	for _, step := range trace.Steps {
		r.clock.Set(trace.Start.Add(step.At))
		r.apply(step)
	}
	r.clock.Advance(trace.Settle)

	return &ReplayResult{
		Name:   trace.Name,
		Events: r.events,
		Stats:  hub.Stats(),
	}, nil
}

func (r *replayer) setup() error {
	for _, name := range r.trace.Surfaces {
		if _, err := r.hub.Surface(name, func(ev gesture.Event) {
			r.record("gesture", fmt.Sprintf("%s: %s", name, ev))
		}); err != nil {
			return err
		}
	}

	for _, tr := range r.trace.Regions {
		el := &focus.Static{Name: tr.ID, Rect: tr.Bounds}
		el.OnActivate = func() error {
			r.record("activate", tr.ID)
			if tr.Fail {
				return fmt.Errorf("region %s failed", tr.ID)
			}
			return nil
		}
		if _, err := r.hub.Regions().Register(el); err != nil {
			return fmt.Errorf("register region %s: %w", tr.ID, err)
		}
	}
	r.hub.Navigator().OnFocus(func(c focus.Change) {
		from := c.From
		if from == "" {
			from = "-"
		}
		r.record("focus", fmt.Sprintf("%s -> %s (%s)", from, c.To, c.Cause))
	})

	if len(r.trace.Commands) > 0 {
		if _, err := r.hub.Commands().Bind(r.trace.Commands, r.actions(r.trace.Commands)); err != nil {
			return fmt.Errorf("bind trace commands: %w", err)
		}
	}

	r.drag = input.NewDrag[string](r.hub, func(item string, pos geom.Point) {
		r.record("drop", fmt.Sprintf("%s at %s", item, pos))
	})
	return nil
}

// actions returns an action for every name the declarations use.
func (r *replayer) actions(decls []voice.Declaration) map[string]voice.Action {
	actions := make(map[string]voice.Action, len(decls))
	for _, d := range decls {
		name := d.Action
		actions[name] = func() error {
			r.record("action", name)
			if name == failAction {
				return errors.New("action failed")
			}
			return nil
		}
	}
	return actions
}

func (r *replayer) apply(s Step) {
	switch {
	case s.Pointer != nil:
		p := s.Pointer
		kind, _ := gesture.ParsePointerKind(p.Kind)
		r.hub.HandlePointer(p.Surface, gesture.PointerEvent{
			ID:       gesture.PointerID(p.ID),
			Kind:     kind,
			Position: geom.Pt(p.X, p.Y),
			Time:     r.clock.Now(),
		})
	case s.Key != nil:
		if !r.hub.HandleKey(*s.Key) {
			r.record("key", fmt.Sprintf("%s ignored", s.Key.Key))
		}
	case s.Hover != nil:
		r.hub.HandleHover(*s.Hover)
	case s.Leave:
		r.hub.HandleLeave()
	case s.Say != nil:
		phrase, ok := r.hub.HandleTranscript(*s.Say)
		switch {
		case ok:
			r.record("voice", fmt.Sprintf("matched %q", phrase))
		case s.Say.Final:
			r.record("voice", fmt.Sprintf("no match for %q", s.Say.Text))
		}
	case s.Drag != nil:
		r.applyDrag(*s.Drag)
	}
}

func (r *replayer) applyDrag(d DragStep) {
	pos := geom.Pt(d.X, d.Y)
	switch d.Phase {
	case "start":
		if r.drag.Start(d.Item, pos) {
			r.record("drag", fmt.Sprintf("picked up %s at %s", d.Item, pos))
		}
	case "move":
		r.drag.Move(pos)
	case "end":
		r.drag.End(pos)
	case "cancel":
		if item, ok := r.drag.Item(); ok && r.drag.Cancel() {
			r.record("drag", fmt.Sprintf("cancelled %s", item))
		}
	}
}

func (r *replayer) pulse(_ context.Context, req feedback.Request) error {
	r.record("feedback", req.Kind.String())
	return nil
}

func (r *replayer) record(source, detail string) {
	r.events = append(r.events, ReplayEvent{
		AtMs:   r.clock.Now().Sub(r.trace.Start).Milliseconds(),
		Source: source,
		Detail: detail,
	})
}

func writeReplayText(w io.Writer, res *ReplayResult) error {
	if res.Name != "" {
		if _, err := fmt.Fprintf(w, "trace %s\n", res.Name); err != nil {
			return err
		}
	}
	for _, ev := range res.Events {
		if _, err := fmt.Fprintf(w, "%6dms  %-8s  %s\n", ev.AtMs, ev.Source, ev.Detail); err != nil {
			return err
		}
	}
	s := res.Stats
	_, err := fmt.Fprintf(w, "interactions: %d (pointer %d, keyboard %d, voice %d), %d method switches\n",
		s.Total, s.Pointer, s.Keyboard, s.Voice, s.MethodSwitches)
	return err
}
