package addonlib

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/afero"

	"github.com/stkaddons/addonmgr/pkg/catalog"
)

func poolTask(id, url string, size int64) *Task {
	return &Task{
		Entry: catalog.Entry{
			ID:          id,
			Category:    catalog.CategoryTrack,
			Revision:    1,
			Size:        size,
			DownloadURL: url,
		},
		TargetPath: "tmp/" + id + ".zip",
		InstallDir: "tracks/" + id,
	}
}

func newPool(fs afero.Fs, srv *httptest.Server, conc int) *Pool {
	return &Pool{
		Concurrency: conc,
		Downloader: NewDownloader(srv.Client(), fs, &DownloaderOpts{
			RetryConfig: fastRetry(0),
		}),
		Installer: &Installer{Fs: fs},
	}
}

func TestPoolRun(t *testing.T) {
	archives := make(map[string][]byte)
	for i := 0; i < 6; i++ {
		id := fmt.Sprintf("track%d", i)
		archives["/"+id+".zip"] = makeZip(t, map[string]string{"track.xml": id})
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := archives[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(body)
	}))
	defer srv.Close()

	fs := afero.NewMemMapFs()
	var tasks []*Task
	for i := 0; i < 6; i++ {
		id := fmt.Sprintf("track%d", i)
		tasks = append(tasks, poolTask(id, srv.URL+"/"+id+".zip", int64(len(archives["/"+id+".zip"]))))
	}

	summary := newPool(fs, srv, 3).Run(context.Background(), tasks)
	if summary.Succeeded != 6 || summary.Failed != 0 || summary.Incomplete != 0 {
		t.Fatalf("summary = %+v, want 6 succeeded", summary)
	}
	if summary.Interrupted {
		t.Error("run was not interrupted")
	}
	for _, task := range tasks {
		if task.Status() != StatusSucceeded {
			t.Errorf("%s status = %v, want succeeded", task.Entry.ID, task.Status())
		}
		if ok, _ := afero.Exists(fs, task.InstallDir+"/track.xml"); !ok {
			t.Errorf("%s content missing after run", task.Entry.ID)
		}
	}
}

func TestPoolPartialFailure(t *testing.T) {
	good := makeZip(t, map[string]string{"track.xml": "ok"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/good.zip" {
			w.Write(good)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	fs := afero.NewMemMapFs()
	tasks := []*Task{
		poolTask("good", srv.URL+"/good.zip", int64(len(good))),
		poolTask("bad", srv.URL+"/bad.zip", 100),
	}
	summary := newPool(fs, srv, 2).Run(context.Background(), tasks)

	// One failure does not fail the run; the other task completes.
	if summary.Succeeded != 1 || summary.Failed != 1 {
		t.Fatalf("summary = %+v, want 1 succeeded 1 failed", summary)
	}
	if len(summary.Failures) != 1 || summary.Failures[0].ID != "bad" {
		t.Fatalf("failures = %+v, want bad only", summary.Failures)
	}
	if summary.Failures[0].Reason == "" {
		t.Error("failure reason must not be empty")
	}
	if err := tasks[1].Err(); err == nil {
		t.Error("failed task should carry its error")
	}
}

func TestPoolDuplicateGuard(t *testing.T) {
	good := makeZip(t, map[string]string{"track.xml": "ok"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(good)
	}))
	defer srv.Close()

	fs := afero.NewMemMapFs()
	tasks := []*Task{
		poolTask("twin", srv.URL+"/twin.zip", int64(len(good))),
		poolTask("twin", srv.URL+"/twin.zip", int64(len(good))),
	}
	summary := newPool(fs, srv, 2).Run(context.Background(), tasks)

	if summary.Succeeded != 1 || summary.Failed != 1 {
		t.Fatalf("summary = %+v, want 1 succeeded 1 failed", summary)
	}
	if !errors.Is(tasks[1].Err(), ErrDuplicateTask) {
		t.Errorf("duplicate task error = %v, want ErrDuplicateTask", tasks[1].Err())
	}
}

func TestPoolCancelledBeforeStart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request may be made after cancellation")
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fs := afero.NewMemMapFs()
	tasks := []*Task{
		poolTask("one", srv.URL+"/one.zip", 10),
		poolTask("two", srv.URL+"/two.zip", 10),
	}
	summary := newPool(fs, srv, 2).Run(ctx, tasks)

	if !summary.Interrupted {
		t.Error("summary should record the interruption")
	}
	if summary.Incomplete != 2 || summary.Succeeded != 0 || summary.Failed != 0 {
		t.Fatalf("summary = %+v, want 2 incomplete", summary)
	}
	for _, task := range tasks {
		if task.Status() != StatusPending {
			t.Errorf("%s status = %v, want pending", task.Entry.ID, task.Status())
		}
	}
}

func TestUpdateScenario(t *testing.T) {
	archive := makeZip(t, map[string]string{"track.xml": "revision 3"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	defer srv.Close()

	fs := afero.NewMemMapFs()
	store := openTestStore(t)
	installDir := "addons/tracks/X"
	if err := afero.WriteFile(fs, installDir+"/old.txt", []byte("revision 2"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(InstalledEntry{ID: "X", Category: catalog.CategoryTrack,
		Revision: 2, Path: installDir}); err != nil {
		t.Fatal(err)
	}

	installed, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	entry := catalog.Entry{
		ID:          "X",
		Category:    catalog.CategoryTrack,
		Revision:    3,
		Size:        int64(len(archive)),
		Format:      7,
		DownloadURL: srv.URL + "/X.zip",
	}
	tasks, _ := Plan([]catalog.Entry{entry}, installed, &PlanOpts{Fs: fs, Root: "addons"})
	if len(tasks) != 1 || tasks[0].Action != ActionUpdate {
		t.Fatalf("plan = %v, want exactly one update task", tasks)
	}

	p := newPool(fs, srv, 1)
	p.Installer = &Installer{Fs: fs, Store: store}
	summary := p.Run(context.Background(), tasks)
	if summary.Succeeded != 1 {
		t.Fatalf("summary = %+v, want 1 succeeded", summary)
	}

	rec, err := store.Get("X")
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil || rec.Revision != 3 {
		t.Fatalf("record = %+v, want revision 3", rec)
	}
	if ok, _ := afero.Exists(fs, installDir+"/old.txt"); ok {
		t.Error("revision 2 content still present after the update")
	}
	if ok, _ := afero.Exists(fs, installDir+"/track.xml"); !ok {
		t.Error("revision 3 content missing after the update")
	}
}

func TestPoolSinkEvents(t *testing.T) {
	good := makeZip(t, map[string]string{"track.xml": "ok"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(good)
	}))
	defer srv.Close()

	fs := afero.NewMemMapFs()
	sink := &recordingSink{}
	p := newPool(fs, srv, 1)
	p.Sink = sink
	p.Downloader = NewDownloader(srv.Client(), fs, &DownloaderOpts{
		RetryConfig: fastRetry(0),
		Sink:        sink,
	})

	task := poolTask("solo", srv.URL+"/solo.zip", int64(len(good)))
	p.Run(context.Background(), []*Task{task})

	if len(sink.started) != 1 || sink.started[0] != "solo" {
		t.Errorf("started = %v, want [solo]", sink.started)
	}
	if status, ok := sink.doneStatus("solo"); !ok || status != StatusSucceeded {
		t.Errorf("done status = %v (%v), want succeeded", status, ok)
	}
	if sink.lastReport("solo") != int64(len(good)) {
		t.Errorf("final report = %d, want %d", sink.lastReport("solo"), len(good))
	}
}
