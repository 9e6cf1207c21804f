package addonlib

import (
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/stkaddons/addonmgr/pkg/catalog"
	"github.com/stkaddons/addonmgr/pkg/logger"
)

// MaxLegacyTrackFormat is the newest track format the game no longer
// loads. Non-kart entries at or below it are reported unsupported and
// never tasked.
const MaxLegacyTrackFormat = 5

// PlanStats summarizes a reconciliation for reporting.
type PlanStats struct {
	New         int
	Update      int
	UpToDate    int
	Unsupported int
	// TotalBytes is the expected download volume of all tasks,
	// resume offsets already subtracted.
	TotalBytes int64
}

// PlanOpts parameterizes Plan.
type PlanOpts struct {
	// Fs is probed for leftover part files. Defaults to the OS
	// filesystem.
	Fs afero.Fs
	// Root is the addon root directory.
	Root string
	// Logger receives per-entry classification notes.
	Logger logger.Logger
}

// Plan reconciles the selected catalog entries against installed state
// and returns the tasks worth running, in selection order.
//
// Classification per entry: no installed record means a new install, a
// strictly lower installed revision means an update, anything else is
// up to date. Installed content absent from the selection is left
// untouched; removal is not the planner's call. Plan never writes to
// disk, it only probes for part files to derive resume offsets, and it
// produces at most one task per identifier.
func Plan(selected []catalog.Entry, installed []InstalledEntry, opts *PlanOpts) ([]*Task, PlanStats) {
	if opts == nil {
		opts = &PlanOpts{}
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	have := make(map[string]InstalledEntry, len(installed))
	for _, ie := range installed {
		have[ie.ID] = ie
	}
	var (
		tasks   []*Task
		stats   PlanStats
		planned = make(map[string]bool, len(selected))
	)
	for _, e := range selected {
		if planned[e.ID] {
			continue
		}
		planned[e.ID] = true
		if e.Category != catalog.CategoryKart && e.Format <= MaxLegacyTrackFormat {
			opts.Logger.Warning("plan: %s uses unsupported format %d", e.ID, e.Format)
			stats.Unsupported++
			continue
		}
		ie, ok := have[e.ID]
		var t *Task
		switch {
		case !ok:
			t = newTask(e, ActionNew, opts)
			stats.New++
		case ie.Revision < e.Revision:
			t = newTask(e, ActionUpdate, opts)
			t.PrevRevision = ie.Revision
			stats.Update++
		default:
			stats.UpToDate++
			continue
		}
		stats.TotalBytes += e.Size - t.ResumeOffset
		tasks = append(tasks, t)
	}
	return tasks, stats
}

func newTask(e catalog.Entry, action Action, opts *PlanOpts) *Task {
	t := &Task{
		Entry:      e,
		Action:     action,
		TargetPath: filepath.Join(opts.Root, TmpDirName, e.FileName()),
		InstallDir: filepath.Join(opts.Root, e.Category.Dir(), e.ID),
	}
	t.ResumeOffset = resumeOffset(opts.Fs, t.TargetPath+PartSuffix, e.Size)
	return t
}

// resumeOffset derives the resume position from an existing part file.
// A part larger than the expected size is treated as corrupt and the
// download restarts from zero.
func resumeOffset(fs afero.Fs, partPath string, expected int64) int64 {
	fi, err := fs.Stat(partPath)
	if err != nil {
		return 0
	}
	size := fi.Size()
	if size < 0 || (expected > 0 && size > expected) {
		return 0
	}
	return size
}
