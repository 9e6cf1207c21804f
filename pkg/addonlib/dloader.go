package addonlib

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/spf13/afero"

	"github.com/stkaddons/addonmgr/pkg/logger"
)

// DownloaderOpts carries the optional knobs of a Downloader.
type DownloaderOpts struct {
	// UserAgent sent on every request. Defaults to DefUserAgent.
	UserAgent string
	// Authorization header for a logged-in addon account, optional.
	Authorization string
	// ChunkSize is the copy buffer size. Defaults to DefChunkSize.
	ChunkSize int64
	// RetryConfig bounds transient-failure retries. Defaults to
	// DefaultRetryConfig.
	RetryConfig *RetryConfig
	// Sink receives progress events. Defaults to NopSink.
	Sink ProgressSink
	// Logger defaults to the nop logger.
	Logger logger.Logger
}

// Downloader fetches addon archives over HTTP with range-resume
// semantics. A download streams into a part file next to its target
// and only a byte-count-verified archive is renamed into place, so a
// reader never observes a half-written target.
type Downloader struct {
	client *http.Client
	fs     afero.Fs
	chunk  int64
	ua     string
	auth   string
	retry  RetryConfig
	sink   ProgressSink
	l      logger.Logger
}

// NewDownloader creates a downloader writing through fs.
func NewDownloader(client *http.Client, fs afero.Fs, opts *DownloaderOpts) *Downloader {
	if opts == nil {
		opts = &DownloaderOpts{}
	}
	if client == nil {
		client = http.DefaultClient
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefUserAgent
	}
	if opts.ChunkSize == 0 {
		opts.ChunkSize = DefChunkSize
	}
	if opts.RetryConfig == nil {
		c := DefaultRetryConfig()
		opts.RetryConfig = &c
	}
	if opts.Sink == nil {
		opts.Sink = NopSink{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	return &Downloader{
		client: client,
		fs:     fs,
		chunk:  opts.ChunkSize,
		ua:     opts.UserAgent,
		auth:   opts.Authorization,
		retry:  *opts.RetryConfig,
		sink:   opts.Sink,
		l:      opts.Logger,
	}
}

// Download fetches t's archive into t.TargetPath, resuming from any
// part file left by an earlier run. Transient failures are retried
// with backoff until the task's retry budget is exhausted. On
// cancellation the current buffered write completes and the part file
// stays behind as the resume point of a future run.
func (d *Downloader) Download(ctx context.Context, t *Task) error {
	var state RetryState
	for {
		err := d.attempt(ctx, t)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		state.Attempts++
		state.LastError = err
		category := ClassifyError(err)
		if category == ErrCategoryFatal || !d.retry.ShouldRetry(&state, err) {
			return err
		}
		d.l.Warning("download: %s attempt %d failed: %s", t.Entry.ID, state.Attempts, err.Error())
		if werr := d.retry.WaitForRetry(ctx, &state, category); werr != nil {
			return werr
		}
	}
}

func (d *Downloader) attempt(ctx context.Context, t *Task) error {
	var (
		part     = t.TargetPath + PartSuffix
		expected = t.Entry.Size
		id       = t.Entry.ID
	)
	offset := resumeOffset(d.fs, part, expected)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.Entry.DownloadURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", d.ua)
	if d.auth != "" {
		req.Header.Set("Authorization", d.auth)
	}
	if offset > 0 {
		req.Header.Set("Range", "bytes="+strconv.FormatInt(offset, 10)+"-")
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case offset > 0 && resp.StatusCode == http.StatusOK:
		// Range ignored, the response carries the whole file.
		d.l.Warning("download: %s: server ignored range, restarting from zero", id)
		offset = 0
	case offset > 0 && resp.StatusCode == http.StatusRequestedRangeNotSatisfiable:
		// The server rejects our resume point outright; the part file
		// is useless, retry from zero.
		_ = d.fs.Remove(part)
		return fmt.Errorf("%s: %w", id, ErrRangeNotHonored)
	case offset > 0 && resp.StatusCode != http.StatusPartialContent:
		return &StatusError{Code: resp.StatusCode, URL: t.Entry.DownloadURL}
	case offset == 0 && resp.StatusCode != http.StatusOK:
		return &StatusError{Code: resp.StatusCode, URL: t.Entry.DownloadURL}
	}

	f, err := d.fs.OpenFile(part, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if err = f.Truncate(offset); err != nil {
		f.Close()
		return err
	}
	if _, err = f.Seek(offset, io.SeekStart); err != nil {
		f.Close()
		return err
	}

	total := expected
	if total == 0 && resp.ContentLength > 0 {
		total = offset + resp.ContentLength
	}
	d.sink.Report(id, offset, total)

	done, cpErr := d.copyBody(ctx, f, resp.Body, offset, id, total)
	cerr := f.Close()
	if cpErr != nil {
		return cpErr
	}
	if cerr != nil {
		return cerr
	}

	if expected > 0 && done != expected {
		if done > expected {
			// Nothing in the part file can be trusted past this
			// point, restart clean on the next attempt.
			_ = d.fs.Remove(part)
		}
		return fmt.Errorf("%s: %w: expected %d bytes, have %d", id, ErrSizeMismatch, expected, done)
	}
	return d.fs.Rename(part, t.TargetPath)
}

// copyBody streams src into f in offset order, reporting cumulative
// progress. Cancellation is honored between chunk writes, never in the
// middle of one.
func (d *Downloader) copyBody(ctx context.Context, f afero.File, src io.Reader, offset int64, id string, total int64) (done int64, err error) {
	done = offset
	buf := make([]byte, d.chunk)
	for {
		if err = ctx.Err(); err != nil {
			return
		}
		nr, er := src.Read(buf)
		if nr > 0 {
			nw, ew := f.Write(buf[:nr])
			if ew != nil {
				err = ew
				return
			}
			if nw != nr {
				err = io.ErrShortWrite
				return
			}
			done += int64(nw)
			d.sink.Report(id, done, total)
		}
		if er == io.EOF {
			return
		}
		if er != nil {
			err = er
			return
		}
	}
}
