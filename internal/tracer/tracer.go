// Package tracer executes Python code under a line-level trace hook in a
// child interpreter and records the local variables seen at every line.
//
// The child runs with a restricted builtins table and without site
// packages. This is a mitigation only: running untrusted code stays a
// privileged operation.
package tracer

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
)

//go:embed harness.py
var harness string

// FailurePrefix starts every report of a failed trace.
const FailurePrefix = "Trace execution failed: "

// Defaults applied by New for zero-valued options.
const (
	DefaultPython      = "python3"
	DefaultTimeout     = 5 * time.Second
	DefaultMaxEvents   = 10000
	DefaultMaxOutput   = 1 << 20
	DefaultMaxBytes    = 32 << 20
	DefaultConcurrency = 1
)

// The harness writes its response with ASCII-only JSON. A repr byte then
// costs at most 3 bytes on the wire, a stdout character at most 12
// (an escaped surrogate pair), and each event adds a fixed envelope.
const (
	reprEscapeFactor   = 3
	stdoutEscapeFactor = 12
	eventEnvelope      = 96
	responseSlack      = 64 << 10
)

// Options configures a Tracer.
type Options struct {
	Python      string        // interpreter binary
	Timeout     time.Duration // wall-clock budget per trace
	MaxEvents   int           // line events before the trace is aborted
	MaxOutput   int           // characters of captured stdout kept
	MaxBytes    int           // UTF-8 bytes of local names and reprs recorded per trace
	Concurrency int           // traces allowed to run at once
	Logger      *slog.Logger
}

// Var is one local variable at a traced line.
type Var struct {
	Name string `json:"name"`
	Repr string `json:"repr"`
}

// Event is one executed line.
type Event struct {
	Line   int    `json:"line"`
	Source string `json:"source"` // <user_code> or <trace_input>
	Locals []Var  `json:"locals"`
}

// Result is the outcome of one trace. Report is always set.
type Result struct {
	Events          []Event       `json:"events"`
	Stdout          string        `json:"stdout"`
	StdoutTruncated bool          `json:"stdout_truncated,omitempty"`
	Error           string        `json:"error,omitempty"`
	TimedOut        bool          `json:"timed_out,omitempty"`
	Duration        time.Duration `json:"duration"`
	Report          string        `json:"report"`
}

// Failed reports whether the trace did not run to completion.
func (r *Result) Failed() bool {
	return r.Error != ""
}

// Tracer runs traces. It is safe for concurrent use; the semaphore bounds
// how many child interpreters run at once.
type Tracer struct {
	opts   Options
	sem    *semaphore.Weighted
	logger *slog.Logger
}

// New creates a Tracer, filling zero options with defaults.
func New(opts Options) *Tracer {
	if opts.Python == "" {
		opts.Python = DefaultPython
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxEvents <= 0 {
		opts.MaxEvents = DefaultMaxEvents
	}
	if opts.MaxOutput <= 0 {
		opts.MaxOutput = DefaultMaxOutput
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracer{
		opts:   opts,
		sem:    semaphore.NewWeighted(int64(opts.Concurrency)),
		logger: logger,
	}
}

type request struct {
	Code      string `json:"code"`
	Driver    string `json:"driver"`
	MaxEvents int    `json:"max_events"`
	MaxOutput int    `json:"max_output"`
	MaxBytes  int    `json:"max_bytes"`
}

type response struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error"`
	Events []struct {
		Line   int         `json:"line"`
		Unit   string      `json:"unit"`
		Locals [][2]string `json:"locals"`
	} `json:"events"`
	Stdout          string `json:"stdout"`
	StdoutTruncated bool   `json:"stdout_truncated"`
}

// Run compiles code and the optional driver, executes both in one restricted
// namespace and returns the per-line trace. Failures of any kind are
// reported in the Result rather than as an error.
func (t *Tracer) Run(ctx context.Context, code, driver string) *Result {
	start := time.Now()
	if err := t.sem.Acquire(ctx, 1); err != nil {
		return failure(fmt.Sprintf("waiting for trace slot: %v", err))
	}
	defer t.sem.Release(1)

	res := t.run(ctx, code, driver)
	res.Duration = time.Since(start)
	if res.Failed() {
		t.logger.Warn("trace.failed", "err", res.Error, "timed_out", res.TimedOut, "elapsed", res.Duration)
	} else {
		t.logger.Info("trace.done", "events", len(res.Events), "elapsed", res.Duration)
	}
	return res
}

func (t *Tracer) run(ctx context.Context, code, driver string) *Result {
	payload, err := json.Marshal(request{
		Code:      code,
		Driver:    driver,
		MaxEvents: t.opts.MaxEvents,
		MaxOutput: t.opts.MaxOutput,
		MaxBytes:  t.opts.MaxBytes,
	})
	if err != nil {
		return failure(fmt.Sprintf("encode request: %v", err))
	}

	ctx, cancel := context.WithTimeout(ctx, t.opts.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.opts.Python, "-I", "-S", "-c", harness)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	stdoutLimited := &limitedWriter{w: &stdout, limit: t.responseLimit()}
	stderrLimited := &limitedWriter{w: &stderr, limit: 64 << 10}
	cmd.Stdout = stdoutLimited
	cmd.Stderr = stderrLimited

	runErr := cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		t.logger.Warn("trace.timeout", "timeout", t.opts.Timeout)
		res := failure(fmt.Sprintf("execution exceeded time budget of %s", t.opts.Timeout))
		res.TimedOut = true
		return res
	}
	if ctx.Err() != nil {
		return failure(fmt.Sprintf("trace cancelled: %v", ctx.Err()))
	}
	if runErr != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = runErr.Error()
		}
		return failure(fmt.Sprintf("interpreter error: %s", lastLine(msg)))
	}
	if stdoutLimited.truncated {
		return failure("trace response exceeded output limit")
	}

	var resp response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return failure(fmt.Sprintf("decode trace response: %v", err))
	}
	return fromResponse(&resp)
}

// responseLimit is the largest response a harness honouring MaxEvents,
// MaxOutput and MaxBytes can produce. Anything beyond it is a broken
// interpreter, not a long trace.
func (t *Tracer) responseLimit() int {
	return reprEscapeFactor*t.opts.MaxBytes +
		stdoutEscapeFactor*t.opts.MaxOutput +
		eventEnvelope*t.opts.MaxEvents +
		responseSlack
}

func fromResponse(resp *response) *Result {
	res := &Result{
		Events:          make([]Event, 0, len(resp.Events)),
		Stdout:          resp.Stdout,
		StdoutTruncated: resp.StdoutTruncated,
	}
	for _, e := range resp.Events {
		ev := Event{Line: e.Line, Source: e.Unit, Locals: make([]Var, 0, len(e.Locals))}
		for _, kv := range e.Locals {
			ev.Locals = append(ev.Locals, Var{Name: kv[0], Repr: kv[1]})
		}
		res.Events = append(res.Events, ev)
	}
	if !resp.OK {
		res.Error = resp.Error
		res.Report = FailurePrefix + resp.Error
		return res
	}
	res.Report = report(res.Events, res.Stdout)
	return res
}

// report renders the line log followed by the captured stdout, if any.
func report(events []Event, stdout string) string {
	lines := make([]string, len(events))
	for i, e := range events {
		lines[i] = e.String()
	}
	out := strings.Join(lines, "\n")
	if stdout != "" {
		out += "\n\nstdout:\n" + strings.TrimSpace(stdout)
	}
	return out
}

// String renders the event as "Line N: {'name': 'repr', ...}".
func (e Event) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Line %d: {", e.Line)
	for i, v := range e.Locals {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pyQuote(v.Name) + ": " + pyQuote(v.Repr))
	}
	b.WriteString("}")
	return b.String()
}

func failure(msg string) *Result {
	return &Result{
		Events: []Event{},
		Error:  msg,
		Report: FailurePrefix + msg,
	}
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

type limitedWriter struct {
	w         io.Writer
	limit     int
	written   int
	truncated bool
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	if lw.written >= lw.limit {
		lw.truncated = true
		return n, nil
	}
	if remaining := lw.limit - lw.written; len(p) > remaining {
		p = p[:remaining]
		lw.truncated = true
	}
	written, err := lw.w.Write(p)
	lw.written += written
	if err != nil {
		return written, err
	}
	return n, nil
}
