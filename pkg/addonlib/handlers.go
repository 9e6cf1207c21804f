package addonlib

// ProgressSink receives download progress. It is a pure side channel:
// implementations must not influence scheduling, and the pool works
// fine with the nop sink.
type ProgressSink interface {
	// TaskStarted announces a task entering the pool, with the total
	// byte count expected for it (0 when the catalog reported none).
	TaskStarted(id string, total int64)

	// Report delivers cumulative progress for one task.
	Report(id string, done, total int64)

	// TaskDone announces the task's terminal status.
	TaskDone(id string, status Status)
}

// NopSink discards all progress events.
type NopSink struct{}

func (NopSink) TaskStarted(id string, total int64)  {}
func (NopSink) Report(id string, done, total int64) {}
func (NopSink) TaskDone(id string, status Status)   {}

var _ ProgressSink = NopSink{}
