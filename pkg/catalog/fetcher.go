package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/stkaddons/addonmgr/pkg/logger"
)

const (
	// DefaultNewsURL is the published location of the news feed.
	DefaultNewsURL = "https://online.supertuxkart.net/dl/xml/online_news.xml"

	// NewsFileName and ListingFileName are the cached copies kept
	// inside the addon root for offline runs.
	NewsFileName    = "online_news.xml"
	ListingFileName = "addons.xml"
)

// FetcherOpts carries the optional knobs of a Fetcher.
type FetcherOpts struct {
	// NewsURL overrides DefaultNewsURL.
	NewsURL string
	// UserAgent is sent on every request.
	UserAgent string
	// Authorization, when non-empty, is sent as the Authorization
	// header on catalog requests (logged-in addon account).
	Authorization string
	// Logger receives warnings about dropped entries. Defaults to
	// the nop logger.
	Logger logger.Logger
}

// Fetcher retrieves the addon catalog, caching both documents in the
// addon root so later runs can work without network access.
type Fetcher struct {
	client    *http.Client
	fs        afero.Fs
	root      string
	newsURL   string
	userAgent string
	auth      string
	l         logger.Logger
}

// NewFetcher creates a catalog fetcher rooted at the addon directory.
func NewFetcher(client *http.Client, fs afero.Fs, root string, opts *FetcherOpts) *Fetcher {
	if opts == nil {
		opts = &FetcherOpts{}
	}
	if opts.NewsURL == "" {
		opts.NewsURL = DefaultNewsURL
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{
		client:    client,
		fs:        fs,
		root:      root,
		newsURL:   opts.NewsURL,
		userAgent: opts.UserAgent,
		auth:      opts.Authorization,
		l:         opts.Logger,
	}
}

// NewsPath returns the cached news feed location.
func (f *Fetcher) NewsPath() string {
	return filepath.Join(f.root, NewsFileName)
}

// ListingPath returns the cached addons listing location.
func (f *Fetcher) ListingPath() string {
	return filepath.Join(f.root, ListingFileName)
}

// Fetch returns the parsed catalog entries.
//
// With skipUpdate set and a cached listing present, the cached copy is
// parsed without touching the network. Otherwise both catalog documents
// are refetched and persisted; if the network is unreachable the fetcher
// falls back to the cached listing. When neither source is obtainable
// Fetch fails with ErrCatalogUnavailable.
func (f *Fetcher) Fetch(ctx context.Context, skipUpdate bool) ([]Entry, error) {
	if skipUpdate && f.cacheExists() {
		f.l.Info("catalog: using cached listing at %s", f.ListingPath())
		return f.parseCached()
	}
	if err := f.update(ctx); err != nil {
		if !f.cacheExists() {
			return nil, fmt.Errorf("%w: %s", ErrCatalogUnavailable, err.Error())
		}
		f.l.Warning("catalog: refresh failed (%s), falling back to cached listing", err.Error())
	}
	return f.parseCached()
}

func (f *Fetcher) cacheExists() bool {
	_, err := f.fs.Stat(f.ListingPath())
	return err == nil
}

func (f *Fetcher) parseCached() ([]Entry, error) {
	file, err := f.fs.Open(f.ListingPath())
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCatalogUnavailable, err.Error())
	}
	defer file.Close()
	return ParseListing(file, f.l)
}

// update refetches the news feed and the listing it points at.
func (f *Fetcher) update(ctx context.Context) error {
	f.l.Info("catalog: fetching news feed")
	if err := f.fetchFile(ctx, f.newsURL, f.NewsPath()); err != nil {
		return fmt.Errorf("news feed: %w", err)
	}
	news, err := f.fs.Open(f.NewsPath())
	if err != nil {
		return err
	}
	listingURL, err := ParseNews(news)
	news.Close()
	if err != nil {
		return err
	}
	f.l.Info("catalog: fetching addons listing")
	if err := f.fetchFile(ctx, listingURL, f.ListingPath()); err != nil {
		return fmt.Errorf("addons listing: %w", err)
	}
	return nil
}

// fetchFile streams url into target through a sibling temp file, so an
// interrupted fetch never clobbers a usable cached copy.
func (f *Fetcher) fetchFile(ctx context.Context, url, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	if f.auth != "" {
		req.Header.Set("Authorization", f.auth)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s for %s", resp.Status, url)
	}
	tmp := target + ".part"
	file, err := f.fs.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	_, err = io.Copy(file, resp.Body)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = f.fs.Remove(tmp)
		return err
	}
	return f.fs.Rename(tmp, target)
}
