package executor

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"vidscribe/errors"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestRunSuccess(t *testing.T) {
	r := NewRunner(1, testLogger())

	res, err := r.Run(context.Background(), []string{"echo", "hello"}, 5*time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.TrimSpace(res.Stdout) != "hello" {
		t.Errorf("stdout = %q, want hello", res.Stdout)
	}
}

func TestRunExitFailure(t *testing.T) {
	r := NewRunner(1, testLogger())

	_, err := r.Run(context.Background(), []string{"sh", "-c", "echo oops >&2; exit 3"}, 5*time.Second)
	if err == nil {
		t.Fatal("expected error for nonzero exit")
	}
	if errors.Code(err) != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", errors.Code(err))
	}
	if !strings.Contains(err.Error(), "oops") {
		t.Errorf("stderr detail missing from error: %v", err)
	}
}

func TestRunTimeout(t *testing.T) {
	r := NewRunner(1, testLogger())

	_, err := r.Run(context.Background(), []string{"sleep", "5"}, 50*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if errors.Code(err) != http.StatusRequestTimeout {
		t.Errorf("expected 408, got %d", errors.Code(err))
	}
}

func TestRunCanceled(t *testing.T) {
	r := NewRunner(1, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	_, err := r.Run(ctx, []string{"sleep", "5"}, 10*time.Second)
	if err == nil {
		t.Fatal("expected error for canceled run")
	}
	if !strings.Contains(err.Error(), "interrupted") {
		t.Errorf("cancellation surfaced as %q, want an interruption message", err.Error())
	}
	if strings.Contains(err.Error(), "failed:") {
		t.Errorf("cancellation must not read as a tool failure: %q", err.Error())
	}
}

func TestRunNotFound(t *testing.T) {
	r := NewRunner(1, testLogger())

	_, err := r.Run(context.Background(), []string{"definitely-not-a-binary-xyz"}, time.Second)
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	if errors.Code(err) != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", errors.Code(err))
	}
}

func TestRunEmptyCommand(t *testing.T) {
	r := NewRunner(1, testLogger())

	if _, err := r.Run(context.Background(), nil, time.Second); err == nil {
		t.Fatal("expected error for empty argv")
	}
}

func TestRunBoundedConcurrency(t *testing.T) {
	r := NewRunner(1, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	go func() {
		close(started)
		_, _ = r.Run(ctx, []string{"sleep", "2"}, 5*time.Second)
	}()
	<-started
	time.Sleep(100 * time.Millisecond)

	// The single slot is held; a second run cannot admit and its context
	// expiring surfaces as an admission failure.
	admitCtx, admitCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer admitCancel()
	_, err := r.Run(admitCtx, []string{"echo", "hi"}, time.Second)
	if err == nil {
		t.Fatal("expected admission failure while the slot is held")
	}
}

func TestStderrTail(t *testing.T) {
	long := "1\n2\n3\n4\n5\n6\n7"
	got := stderrTail(long)
	if got != "3\n4\n5\n6\n7" {
		t.Errorf("stderrTail = %q", got)
	}
	if stderrTail("  only  ") != "only" {
		t.Error("single line should be trimmed and kept")
	}
}
