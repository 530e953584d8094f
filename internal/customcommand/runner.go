package customcommand

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/deskflow-rpa/deskflow/internal/platform/logger"
	"github.com/deskflow-rpa/deskflow/internal/recording/model"
	"github.com/deskflow-rpa/deskflow/internal/replay"
	shortcutmodel "github.com/deskflow-rpa/deskflow/internal/shortcut/model"
)

// SkipReason explains why a command did not run.
type SkipReason string

const (
	SkipNone                SkipReason = ""
	SkipPreconditionNotMet  SkipReason = "PreconditionNotMet"
)

// Result reports the outcome of one command execution.
type Result struct {
	Skip     SkipReason
	ExitCode int
	Err      error
	Duration time.Duration
}

// Runner executes CustomShortcutCommands (spec.md §4.10).
type Runner struct {
	probe WindowProbe
	sink  replay.InputSink
	log   logger.Logger
}

// New builds a Runner. probe may be nil if no command uses Preconditions;
// sink may be nil if no command uses CommandTextInput.
func New(probe WindowProbe, sink replay.InputSink, log logger.Logger) *Runner {
	return &Runner{probe: probe, sink: sink, log: log}
}

// Run executes cmd, honoring its timeout, wait_for_completion flag, and
// precondition.
func (r *Runner) Run(ctx context.Context, cmd shortcutmodel.CustomShortcutCommand) Result {
	start := time.Now()
	if cmd.Precondition != nil && !cmd.Precondition.IsZero() {
		met, err := r.preconditionMet(ctx, *cmd.Precondition)
		if err != nil && r.log != nil {
			r.log.Warn("customcommand: precondition check failed", "error", err)
		}
		if !met {
			return Result{Skip: SkipPreconditionNotMet, Duration: time.Since(start)}
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, cmd.Timeout)
	defer cancel()

	err := r.dispatch(runCtx, cmd)
	res := Result{Err: err, Duration: time.Since(start)}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
	}
	return res
}

func (r *Runner) preconditionMet(ctx context.Context, p shortcutmodel.Precondition) (bool, error) {
	if r.probe == nil {
		return false, errors.New("customcommand: precondition set but no WindowProbe configured")
	}
	if p.ActiveWindowTitle != "" {
		title, err := r.probe.ActiveWindowTitle(ctx)
		if err != nil {
			return false, err
		}
		if !strings.Contains(title, p.ActiveWindowTitle) {
			return false, nil
		}
	}
	if p.ProcessName != "" {
		running, err := r.probe.IsProcessRunning(ctx, p.ProcessName)
		if err != nil {
			return false, err
		}
		if !running {
			return false, nil
		}
	}
	return true, nil
}

func (r *Runner) dispatch(ctx context.Context, cmd shortcutmodel.CustomShortcutCommand) error {
	switch cmd.Type {
	case shortcutmodel.CommandApplication:
		return r.runProcess(ctx, cmd, cmd.Command, cmd.Parameters)
	case shortcutmodel.CommandSystemCmd:
		return r.runShell(ctx, cmd, cmd.Command)
	case shortcutmodel.CommandScript:
		return r.runScript(ctx, cmd)
	case shortcutmodel.CommandFileOp:
		return r.runOpener(ctx, cmd, cmd.Command)
	case shortcutmodel.CommandURL:
		return r.runOpener(ctx, cmd, cmd.Command)
	case shortcutmodel.CommandTextInput:
		return r.runTextInput(ctx, cmd)
	default:
		return fmt.Errorf("customcommand: unknown command type %q", cmd.Type)
	}
}

// runProcess spawns command detached, inheriting no stdin (spec.md §4.10).
// Only a command that is waited for is bound to ctx's timeout; one that is
// not waited for keeps running after Run returns.
func (r *Runner) runProcess(ctx context.Context, cmd shortcutmodel.CustomShortcutCommand, name string, args []string) error {
	c := exec.Command(name, args...)
	if cmd.WaitForCompletion {
		c = exec.CommandContext(ctx, name, args...)
	}
	c.Dir = cmd.WorkingDirectory
	c.Stdin = nil
	if cmd.WaitForCompletion {
		return c.Run()
	}
	if err := c.Start(); err != nil {
		return err
	}
	go func() { _ = c.Wait() }()
	return nil
}

func (r *Runner) runShell(ctx context.Context, cmd shortcutmodel.CustomShortcutCommand, command string) error {
	shell, flag := shellInvocation()
	full := append([]string{flag, command}, cmd.Parameters...)
	return r.runProcess(ctx, cmd, shell, full)
}

func shellInvocation() (string, string) {
	if runtime.GOOS == "windows" {
		return "cmd.exe", "/C"
	}
	return "/bin/sh", "-c"
}

// scriptInterpreters maps a script's extension to its interpreter, per
// spec.md §4.10.
var scriptInterpreters = map[string]string{
	".py":  "python",
	".bat": "cmd.exe",
	".cmd": "cmd.exe",
	".ps1": "powershell",
}

func (r *Runner) runScript(ctx context.Context, cmd shortcutmodel.CustomShortcutCommand) error {
	ext := strings.ToLower(filepath.Ext(cmd.Command))
	interpreter, ok := scriptInterpreters[ext]
	if !ok {
		return fmt.Errorf("customcommand: unsupported script extension %q", ext)
	}
	args := []string{cmd.Command}
	if ext == ".ps1" {
		args = []string{"-ExecutionPolicy", "Bypass", "-File", cmd.Command}
	} else if interpreter == "cmd.exe" {
		args = []string{"/C", cmd.Command}
	}
	args = append(args, cmd.Parameters...)
	return r.runProcess(ctx, cmd, interpreter, args)
}

// runOpener hands target to the OS default handler (file-op) or default
// browser (url); both resolve to the same platform "open" verb.
func (r *Runner) runOpener(ctx context.Context, cmd shortcutmodel.CustomShortcutCommand, target string) error {
	name, args := openerInvocation(target)
	return r.runProcess(ctx, cmd, name, args)
}

func openerInvocation(target string) (string, []string) {
	switch runtime.GOOS {
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", target}
	case "darwin":
		return "open", []string{target}
	default:
		return "xdg-open", []string{target}
	}
}

func (r *Runner) runTextInput(ctx context.Context, cmd shortcutmodel.CustomShortcutCommand) error {
	if r.sink == nil {
		return errors.New("customcommand: text-input command but no InputSink configured")
	}
	text := cmd.Command
	if text == time.RFC3339 {
		// The date/time preset carries the layout; type the current time.
		text = time.Now().Format(time.RFC3339)
	}
	return r.sink.TypeText(ctx, text, model.InputClipboard)
}
