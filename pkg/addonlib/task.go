package addonlib

import (
	"sync"

	"github.com/stkaddons/addonmgr/pkg/catalog"
)

// Status of a download task. The only legal transitions are
// pending -> in-progress -> succeeded or failed; skipped is assigned at
// planning time and never left.
type Status int

const (
	StatusPending Status = iota
	StatusInProgress
	StatusSucceeded
	StatusFailed
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInProgress:
		return "in-progress"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	}
	return "unknown"
}

// Action classifies why a task exists.
type Action int

const (
	// ActionNew installs an addon with no installed record.
	ActionNew Action = iota
	// ActionUpdate replaces an older installed revision.
	ActionUpdate
)

func (a Action) String() string {
	if a == ActionUpdate {
		return "update"
	}
	return "new"
}

// Task is the unit of work the download pool executes for one catalog
// entry. Tasks live only for the duration of a run; a leftover part
// file next to TargetPath is the only durable resume signal.
type Task struct {
	// Entry is the catalog entry being installed.
	Entry catalog.Entry
	// Action records whether this is a fresh install or an update.
	Action Action
	// TargetPath is where the verified archive lands.
	TargetPath string
	// InstallDir is the directory the archive extracts into.
	InstallDir string
	// ResumeOffset is the byte position downloading continues from.
	// Zero unless a sane part file exists.
	ResumeOffset int64
	// PrevRevision is the replaced revision for updates, 0 otherwise.
	PrevRevision int

	mu     sync.Mutex
	status Status
	err    error
}

// Status returns the task's current status.
func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Err returns the failure recorded by fail, nil otherwise.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// start moves the task from pending to in-progress. It reports false
// when the task is not in a startable state.
func (t *Task) start() bool {
	return t.transition(StatusInProgress)
}

func (t *Task) succeed() bool {
	return t.transition(StatusSucceeded)
}

func (t *Task) fail(err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !validTransition(t.status, StatusFailed) {
		return false
	}
	t.status = StatusFailed
	t.err = err
	return true
}

func (t *Task) transition(to Status) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !validTransition(t.status, to) {
		return false
	}
	t.status = to
	return true
}

// validTransition encodes the task state machine. There is no edge back
// to pending: retries happen inside a single in-progress span, counted
// against the task's retry budget.
func validTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusInProgress
	case StatusInProgress:
		return to == StatusSucceeded || to == StatusFailed
	}
	return false
}
