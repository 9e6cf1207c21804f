package addonlib

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/stkaddons/addonmgr/pkg/catalog"
)

func fastRetry(max int) *RetryConfig {
	return &RetryConfig{
		MaxRetries:    max,
		BaseDelay:     time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 1,
	}
}

func downloadTask(url string, size int64) *Task {
	return &Task{
		Entry: catalog.Entry{
			ID:          "oldmine",
			Category:    catalog.CategoryTrack,
			Revision:    5,
			Size:        size,
			DownloadURL: url,
		},
		TargetPath: "oldmine.zip",
		InstallDir: "tracks/oldmine",
	}
}

func TestDownload(t *testing.T) {
	content := bytes.Repeat([]byte("stk-addon-data"), 100)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	}))
	defer srv.Close()

	fs := afero.NewMemMapFs()
	d := NewDownloader(srv.Client(), fs, &DownloaderOpts{RetryConfig: fastRetry(0)})
	task := downloadTask(srv.URL, int64(len(content)))

	if err := d.Download(context.Background(), task); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	got, err := afero.ReadFile(fs, task.TargetPath)
	if err != nil {
		t.Fatalf("reading target: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("target content differs, got %d bytes want %d", len(got), len(content))
	}
	if ok, _ := afero.Exists(fs, task.TargetPath+PartSuffix); ok {
		t.Error("part file should be renamed away after a verified download")
	}
}

func TestDownloadResume(t *testing.T) {
	content := bytes.Repeat([]byte("0123456789"), 50)
	var gotRange string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRange = r.Header.Get("Range")
		if !strings.HasPrefix(gotRange, "bytes=") {
			t.Errorf("Range = %q, want a bytes range", gotRange)
			http.Error(w, "bad range", http.StatusBadRequest)
			return
		}
		offset, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(gotRange, "bytes="), "-"), 10, 64)
		if err != nil || offset >= int64(len(content)) {
			http.Error(w, "bad range", http.StatusRequestedRangeNotSatisfiable)
			return
		}
		w.Header().Set("Content-Range",
			fmt.Sprintf("bytes %d-%d/%d", offset, len(content)-1, len(content)))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(content[offset:])
	}))
	defer srv.Close()

	fs := afero.NewMemMapFs()
	task := downloadTask(srv.URL, int64(len(content)))
	// A previous run left the first 120 bytes behind.
	if err := afero.WriteFile(fs, task.TargetPath+PartSuffix, content[:120], 0644); err != nil {
		t.Fatal(err)
	}

	d := NewDownloader(srv.Client(), fs, &DownloaderOpts{RetryConfig: fastRetry(0)})
	if err := d.Download(context.Background(), task); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if gotRange != "bytes=120-" {
		t.Errorf("Range = %q, want bytes=120-", gotRange)
	}
	got, _ := afero.ReadFile(fs, task.TargetPath)
	if !bytes.Equal(got, content) {
		t.Error("resumed download does not reassemble the original content")
	}
}

func TestDownloadRangeIgnored(t *testing.T) {
	content := bytes.Repeat([]byte("abcdef"), 64)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No range support, always the full file with 200.
		w.Write(content)
	}))
	defer srv.Close()

	fs := afero.NewMemMapFs()
	task := downloadTask(srv.URL, int64(len(content)))
	// Poison the part prefix: a correct restart must overwrite it.
	stale := bytes.Repeat([]byte("X"), 100)
	if err := afero.WriteFile(fs, task.TargetPath+PartSuffix, stale, 0644); err != nil {
		t.Fatal(err)
	}

	d := NewDownloader(srv.Client(), fs, &DownloaderOpts{RetryConfig: fastRetry(0)})
	if err := d.Download(context.Background(), task); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	got, _ := afero.ReadFile(fs, task.TargetPath)
	if !bytes.Equal(got, content) {
		t.Error("download after ignored range should restart from zero")
	}
}

func TestDownloadRangeRejected(t *testing.T) {
	content := bytes.Repeat([]byte("fresh"), 40)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Range") != "" {
			http.Error(w, "no ranges here", http.StatusRequestedRangeNotSatisfiable)
			return
		}
		w.Write(content)
	}))
	defer srv.Close()

	fs := afero.NewMemMapFs()
	task := downloadTask(srv.URL, int64(len(content)))
	if err := afero.WriteFile(fs, task.TargetPath+PartSuffix, content[:50], 0644); err != nil {
		t.Fatal(err)
	}

	// 416 discards the part file and the retry restarts from zero.
	d := NewDownloader(srv.Client(), fs, &DownloaderOpts{RetryConfig: fastRetry(1)})
	if err := d.Download(context.Background(), task); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	got, _ := afero.ReadFile(fs, task.TargetPath)
	if !bytes.Equal(got, content) {
		t.Error("retry after rejected range should produce the full file")
	}
}

func TestDownloadSizeMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("short"))
	}))
	defer srv.Close()

	fs := afero.NewMemMapFs()
	task := downloadTask(srv.URL, 1000)
	d := NewDownloader(srv.Client(), fs, &DownloaderOpts{RetryConfig: fastRetry(1)})
	err := d.Download(context.Background(), task)
	if !errors.Is(err, ErrSizeMismatch) {
		t.Fatalf("Download() error = %v, want ErrSizeMismatch", err)
	}
	if ok, _ := afero.Exists(fs, task.TargetPath); ok {
		t.Error("no target file may exist after a failed download")
	}
}

func TestDownloadRetriesTransientFailure(t *testing.T) {
	content := []byte("eventually complete payload")
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "unavailable", http.StatusInternalServerError)
			return
		}
		w.Write(content)
	}))
	defer srv.Close()

	fs := afero.NewMemMapFs()
	task := downloadTask(srv.URL, int64(len(content)))
	d := NewDownloader(srv.Client(), fs, &DownloaderOpts{RetryConfig: fastRetry(4)})
	if err := d.Download(context.Background(), task); err != nil {
		t.Fatalf("Download() error = %v after %d calls", err, calls)
	}
	if calls != 3 {
		t.Errorf("server called %d times, want 3", calls)
	}
}

func TestDownloadFatalStatus(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.NotFound(w, r)
	}))
	defer srv.Close()

	d := NewDownloader(srv.Client(), afero.NewMemMapFs(),
		&DownloaderOpts{RetryConfig: fastRetry(4)})
	err := d.Download(context.Background(), downloadTask(srv.URL, 100))
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != 404 {
		t.Fatalf("Download() error = %v, want 404 StatusError", err)
	}
	if calls != 1 {
		t.Errorf("server called %d times for a fatal status, want 1", calls)
	}
}

func TestDownloadCancellationKeepsPart(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		w.Write(bytes.Repeat([]byte("p"), 100))
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	fs := afero.NewMemMapFs()
	task := downloadTask(srv.URL, 1000)
	d := NewDownloader(srv.Client(), fs, &DownloaderOpts{
		ChunkSize:   100,
		RetryConfig: fastRetry(0),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Download(ctx, task) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Download() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Download() did not return after cancellation")
	}
	if ok, _ := afero.Exists(fs, task.TargetPath+PartSuffix); !ok {
		t.Error("part file should survive cancellation as the resume point")
	}
	if ok, _ := afero.Exists(fs, task.TargetPath); ok {
		t.Error("no target file may exist after an interrupted download")
	}
}

func TestDownloadProgressReports(t *testing.T) {
	content := bytes.Repeat([]byte("z"), 256)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	}))
	defer srv.Close()

	sink := &recordingSink{}
	d := NewDownloader(srv.Client(), afero.NewMemMapFs(), &DownloaderOpts{
		ChunkSize:   64,
		RetryConfig: fastRetry(0),
		Sink:        sink,
	})
	task := downloadTask(srv.URL, int64(len(content)))
	if err := d.Download(context.Background(), task); err != nil {
		t.Fatal(err)
	}
	last := sink.lastReport("oldmine")
	if last != int64(len(content)) {
		t.Errorf("final progress = %d, want %d", last, len(content))
	}
	if !sink.monotonic("oldmine") {
		t.Error("progress must be monotonically non-decreasing")
	}
}
