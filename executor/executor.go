// Package executor runs external tool invocations off the request path
// through a bounded worker pool and maps process failures to the typed
// error taxonomy.
package executor

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"vidscribe/errors"
)

// Result captures the output of one completed invocation.
type Result struct {
	Stdout string
	Stderr string
}

// Runner executes commands against a pool sized by the hardware tier.
// Acquiring a slot is the admission control against unbounded concurrent
// tool spawning; callers block (suspend) until a slot frees up.
type Runner struct {
	sem *semaphore.Weighted
	log *logrus.Logger
}

func NewRunner(maxWorkers int, log *logrus.Logger) *Runner {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Runner{
		sem: semaphore.NewWeighted(int64(maxWorkers)),
		log: log,
	}
}

// Run executes argv with the given budget. Failures are terminal for the
// invoking phase and never retried here; retry policy belongs to the
// caller.
func (r *Runner) Run(ctx context.Context, argv []string, timeout time.Duration) (Result, error) {
	const op = "Runner.Run"

	if len(argv) == 0 {
		return Result{}, errors.Internal(op, nil, "empty command")
	}

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return Result{}, errors.Internal(op, err, "worker pool unavailable")
	}
	defer r.sem.Release(1)

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	result := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	if err == nil {
		r.log.WithFields(logrus.Fields{
			"command":  argv[0],
			"duration": time.Since(start),
		}).Debug("Command finished")
		return result, nil
	}

	return result, r.classify(op, argv[0], runCtx, err, result.Stderr)
}

// classify translates process failures into the error taxonomy.
func (r *Runner) classify(op, tool string, runCtx context.Context, err error, stderr string) error {
	if stderrors.Is(runCtx.Err(), context.DeadlineExceeded) {
		r.log.WithField("command", tool).Error("Command timed out")
		return errors.ToolTimeout(op, err, fmt.Sprintf("Timeout: %s did not finish in time", tool))
	}

	// A canceled parent context means the caller went away; the killed
	// process is not a tool failure.
	if stderrors.Is(runCtx.Err(), context.Canceled) {
		r.log.WithField("command", tool).Warn("Command canceled")
		return errors.Internal(op, err, fmt.Sprintf("Canceled: %s was interrupted", tool))
	}

	if stderrors.Is(err, exec.ErrNotFound) {
		r.log.WithField("command", tool).Error("Command not found")
		return errors.ToolNotFound(op, tool)
	}

	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		detail := stderrTail(stderr)
		r.log.WithFields(logrus.Fields{
			"command": tool,
			"exit":    exitErr.ExitCode(),
			"stderr":  detail,
		}).Error("Command failed")
		return errors.ToolFailed(op, err, fmt.Sprintf("%s failed: %s", tool, detail))
	}

	return errors.Internal(op, err, fmt.Sprintf("failed to run %s", tool))
}

// stderrTail keeps the last lines of a tool's stderr, which is where
// ffmpeg and friends put the actual reason.
func stderrTail(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
