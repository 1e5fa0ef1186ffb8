// Package probe drives the boundary from a line-oriented script, the way an
// embedding app would call the C surface.
//
// Each line is split shell-style. Boundary failures are recorded as the
// line's status and do not stop the script; use "expect <status>" to assert
// on them. Usage errors and failed expectations stop the script.
package probe

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"github.com/nyx-network/nyx-mobile/bridge"
)

// ScriptError reports the line that stopped a script.
type ScriptError struct {
	Line int
	Text string
	Err  error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("line %d: %q: %v", e.Line, e.Text, e.Err)
}

func (e *ScriptError) Unwrap() error { return e.Err }

// ErrExpectation is wrapped by failed expect lines.
var ErrExpectation = errors.New("expectation failed")

type command struct {
	args  string
	min   int
	max   int
	apply func(ctx context.Context, args []string) (string, error)
}

// Interpreter executes probe scripts against one runtime.
type Interpreter struct {
	rt    *bridge.Runtime
	out   io.Writer
	conns map[string]bridge.ConnectionID
	last  bridge.Status
	cmds  map[string]command
}

// New returns an interpreter writing results to out.
func New(rt *bridge.Runtime, out io.Writer) *Interpreter {
	in := &Interpreter{rt: rt, out: out, conns: make(map[string]bridge.ConnectionID)}
	in.cmds = in.commands()
	return in
}

// Last returns the status of the most recent boundary command.
func (in *Interpreter) Last() bridge.Status { return in.last }

// Run executes every line of r.
func (in *Interpreter) Run(ctx context.Context, r io.Reader) error {
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		if err := ctx.Err(); err != nil {
			return err
		}
		text := strings.TrimSpace(sc.Text())
		if err := in.Exec(ctx, text); err != nil {
			return &ScriptError{Line: n, Text: text, Err: err}
		}
	}
	return sc.Err()
}

// Exec runs a single line. Blank and comment lines are ignored.
func (in *Interpreter) Exec(ctx context.Context, line string) error {
	words, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	if len(words) == 0 {
		return nil
	}
	name, args := words[0], words[1:]
	if name == "expect" {
		return in.expect(args)
	}
	cmd, ok := in.cmds[name]
	if !ok {
		return fmt.Errorf("unknown command %q", name)
	}
	if len(args) < cmd.min || (cmd.max >= 0 && len(args) > cmd.max) {
		return fmt.Errorf("usage: %s %s", name, cmd.args)
	}
	detail, err := cmd.apply(ctx, args)
	var usage *usageError
	if errors.As(err, &usage) {
		return usage
	}
	in.last = bridge.StatusOf(err)
	switch {
	case err != nil:
		fmt.Fprintf(in.out, "%s -> %s (%v)\n", name, in.last, err)
	case detail != "":
		fmt.Fprintf(in.out, "%s -> ok %s\n", name, detail)
	default:
		fmt.Fprintf(in.out, "%s -> ok\n", name)
	}
	return nil
}

type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

func (in *Interpreter) expect(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: expect <status>")
	}
	want, ok := bridge.ParseStatus(args[0])
	if !ok {
		return fmt.Errorf("unknown status %q", args[0])
	}
	if in.last != want {
		return fmt.Errorf("%w: want %s, got %s", ErrExpectation, want, in.last)
	}
	return nil
}

func (in *Interpreter) conn(name string) (bridge.ConnectionID, error) {
	id, ok := in.conns[name]
	if !ok {
		return 0, usagef("no connection named %q", name)
	}
	return id, nil
}

func (in *Interpreter) commands() map[string]command {
	none := func(fn func() error) func(context.Context, []string) (string, error) {
		return func(context.Context, []string) (string, error) { return "", fn() }
	}
	return map[string]command{
		"init":         {min: 0, max: 0, apply: none(in.rt.Init)},
		"shutdown":     {min: 0, max: 0, apply: in.shutdown},
		"background":   {min: 0, max: 0, apply: none(in.rt.EnterBackground)},
		"foreground":   {min: 0, max: 0, apply: none(in.rt.EnterForeground)},
		"wake":         {min: 0, max: 0, apply: none(in.rt.PushWake)},
		"resume":       {min: 0, max: 0, apply: none(in.rt.ResumeLowPowerSession)},
		"clear-labels": {min: 0, max: 0, apply: none(in.rt.ClearTelemetryLabels)},
		"config": {args: "<json>", min: 1, max: -1, apply: func(_ context.Context, a []string) (string, error) {
			return "", in.rt.UpdateConfig(strings.Join(a, " "))
		}},
		"client": {args: "<json>", min: 1, max: -1, apply: func(_ context.Context, a []string) (string, error) {
			return "", in.rt.CreateClient(strings.Join(a, " "))
		}},
		"connect":    {args: "<name> <endpoint>", min: 2, max: 2, apply: in.connect},
		"send":       {args: "<name> <text>", min: 2, max: -1, apply: in.send},
		"deliver":    {args: "<name> <text>", min: 2, max: -1, apply: in.deliver},
		"recv":       {args: "<name>", min: 1, max: 1, apply: in.recv},
		"disconnect": {args: "<name>", min: 1, max: 1, apply: in.disconnect},
		"stats":      {args: "[name]", min: 0, max: 1, apply: in.stats},
		"network":    {args: "<type>", min: 1, max: 1, apply: in.network},
		"power":      {args: "<state>", min: 1, max: 1, apply: in.power},
		"assess":     {min: 0, max: 0, apply: in.assess},
		"label":      {args: "<key> [value]", min: 1, max: 2, apply: in.label},
		"labels":     {min: 0, max: 0, apply: in.labels},
		"loglevel":   {args: "<0-4>", min: 1, max: 1, apply: in.logLevel},
		"lasterror": {min: 0, max: 0, apply: func(context.Context, []string) (string, error) {
			return strconv.Quote(in.rt.LastError()), nil
		}},
		"version": {min: 0, max: 0, apply: func(context.Context, []string) (string, error) {
			return in.rt.Version(), nil
		}},
	}
}

func (in *Interpreter) shutdown(context.Context, []string) (string, error) {
	err := in.rt.Shutdown()
	if err == nil {
		in.conns = make(map[string]bridge.ConnectionID)
	}
	return "", err
}

func (in *Interpreter) connect(ctx context.Context, a []string) (string, error) {
	id, err := in.rt.Connect(ctx, a[1])
	if err != nil {
		return "", err
	}
	in.conns[a[0]] = id
	return fmt.Sprintf("id=%d", id), nil
}

func (in *Interpreter) send(_ context.Context, a []string) (string, error) {
	id, err := in.conn(a[0])
	if err != nil {
		return "", err
	}
	n, err := in.rt.Send(id, []byte(strings.Join(a[1:], " ")))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("sent=%d", n), nil
}

func (in *Interpreter) deliver(_ context.Context, a []string) (string, error) {
	id, err := in.conn(a[0])
	if err != nil {
		return "", err
	}
	return "", in.rt.Deliver(id, []byte(strings.Join(a[1:], " ")))
}

func (in *Interpreter) recv(_ context.Context, a []string) (string, error) {
	id, err := in.conn(a[0])
	if err != nil {
		return "", err
	}
	buf := make([]byte, 4096)
	n, err := in.rt.Receive(id, buf)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("received=%d %q", n, buf[:n]), nil
}

func (in *Interpreter) disconnect(_ context.Context, a []string) (string, error) {
	id, err := in.conn(a[0])
	if err != nil {
		return "", err
	}
	if err := in.rt.Disconnect(id); err != nil {
		return "", err
	}
	delete(in.conns, a[0])
	return "", nil
}

func (in *Interpreter) stats(_ context.Context, a []string) (string, error) {
	if len(a) == 1 {
		id, err := in.conn(a[0])
		if err != nil {
			return "", err
		}
		st, err := in.rt.ConnectionStats(id)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("sent=%d received=%d quality=%s pending=%d", st.BytesSent, st.BytesReceived, st.Quality, st.Pending), nil
	}
	st, err := in.rt.GlobalStats()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("total=%d handshakes=%d failures=%d network_changes=%d active=%d",
		st.TotalConnections, st.SuccessfulHandshakes, st.ConnectionFailures, st.NetworkChanges, st.ActiveConnections), nil
}

func (in *Interpreter) network(_ context.Context, a []string) (string, error) {
	t, ok := bridge.ParseNetworkType(a[0])
	if !ok {
		// Out-of-range codes still reach the boundary so scripts can expect
		// invalid_argument.
		n, err := strconv.Atoi(a[0])
		if err != nil {
			return "", usagef("unknown network type %q", a[0])
		}
		t = bridge.NetworkType(n)
	}
	return "", in.rt.SetNetworkType(t)
}

func (in *Interpreter) power(_ context.Context, a []string) (string, error) {
	s, ok := bridge.ParsePowerState(a[0])
	if !ok {
		n, err := strconv.ParseUint(a[0], 10, 32)
		if err != nil {
			return "", usagef("unknown power state %q", a[0])
		}
		s = bridge.PowerState(n)
	}
	return "", in.rt.SetPowerState(s)
}

func (in *Interpreter) assess(context.Context, []string) (string, error) {
	q, err := in.rt.AssessConnectionQuality()
	if err != nil {
		return "", err
	}
	return "quality=" + q.String(), nil
}

func (in *Interpreter) label(_ context.Context, a []string) (string, error) {
	if len(a) == 1 {
		return "", in.rt.SetTelemetryLabel(a[0], nil)
	}
	v := a[1]
	return "", in.rt.SetTelemetryLabel(a[0], &v)
}

func (in *Interpreter) labels(context.Context, []string) (string, error) {
	labels := in.rt.TelemetryLabels()
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + labels[k]
	}
	return strings.Join(parts, " "), nil
}

func (in *Interpreter) logLevel(_ context.Context, a []string) (string, error) {
	n, err := strconv.Atoi(a[0])
	if err != nil {
		return "", usagef("log level must be an integer")
	}
	return "", in.rt.SetLogLevel(n)
}
