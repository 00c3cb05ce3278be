// Package progress holds the process-wide, ephemeral per-session job
// status consumed by the status stream endpoint. Nothing here survives
// a restart; a session drained once is simply absent afterwards.
package progress

import "sync"

// Step boundaries: 0 is error/idle, 1..9 are in-progress phases, 10 is
// complete.
const (
	StepError    = 0
	StepComplete = 10
)

// Status is the latest published state of one job.
type Status struct {
	Status string `json:"status"`
	StepID int    `json:"stepId"`
}

// Terminal reports whether the status ends the stream.
func (s Status) Terminal() bool {
	return s.StepID == StepError || s.StepID == StepComplete
}

// Tracker is a keyed last-writer-wins status map. Each job has exactly
// one writer (its orchestrator), so per-session updates are totally
// ordered; across sessions there is no ordering at all.
type Tracker struct {
	mu   sync.RWMutex
	jobs map[string]Status
}

func NewTracker() *Tracker {
	return &Tracker{jobs: make(map[string]Status)}
}

// Publish overwrites the session's status. Idempotent.
func (t *Tracker) Publish(sessionID, status string, stepID int) {
	t.mu.Lock()
	t.jobs[sessionID] = Status{Status: status, StepID: stepID}
	t.mu.Unlock()
}

// Poll reads the current status without blocking.
func (t *Tracker) Poll(sessionID string) (Status, bool) {
	t.mu.RLock()
	s, ok := t.jobs[sessionID]
	t.mu.RUnlock()
	return s, ok
}

// DrainIfTerminal removes the entry once a reader observed a terminal
// step. Concurrent readers may race here; losing just means a later
// poll reports absent.
func (t *Tracker) DrainIfTerminal(sessionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.jobs[sessionID]
	if !ok || !s.Terminal() {
		return false
	}
	delete(t.jobs, sessionID)
	return true
}
