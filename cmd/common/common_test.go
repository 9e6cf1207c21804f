package common

import (
	"testing"

	"github.com/stkaddons/addonmgr/pkg/addonlib"
)

func TestBarSinkLifecycle(t *testing.T) {
	s := NewBarSink(2)
	s.TaskStarted("oldmine", 1000)
	s.Report("oldmine", 500, 1000)
	s.Report("oldmine", 1000, 1000)
	s.TaskDone("oldmine", addonlib.StatusSucceeded)

	s.TaskStarted("gnu", 2000)
	s.Report("gnu", 100, 2000)
	s.TaskDone("gnu", addonlib.StatusFailed)

	// Must not deadlock with all bars terminal.
	s.Wait()
}

func TestBarSinkAbandonedBar(t *testing.T) {
	s := NewBarSink(1)
	s.TaskStarted("interrupted", 1000)
	s.Report("interrupted", 300, 1000)
	// No TaskDone: Wait aborts the leftover bar instead of blocking.
	s.Wait()
}

func TestBarSinkUnknownID(t *testing.T) {
	s := NewBarSink(1)
	// Events for IDs never started are dropped, not a panic.
	s.Report("stranger", 1, 2)
	s.TaskDone("stranger", addonlib.StatusFailed)
	s.Wait()
}
