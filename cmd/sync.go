package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/afero"
	"github.com/urfave/cli"

	"github.com/stkaddons/addonmgr/cmd/common"
	"github.com/stkaddons/addonmgr/internal/config"
	"github.com/stkaddons/addonmgr/pkg/addonlib"
	"github.com/stkaddons/addonmgr/pkg/catalog"
	"github.com/stkaddons/addonmgr/pkg/credman"
	"github.com/stkaddons/addonmgr/pkg/logger"
	"github.com/stkaddons/addonmgr/pkg/policy"
)

func sync(ctx *cli.Context) error {
	if arg := ctx.Args().First(); arg == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	if !policy.Valid(filterName) {
		return cli.NewExitError(fmt.Sprintf(
			"addonmgr: unknown filter policy %q (valid: %s)",
			filterName, strings.Join(policy.Names(), ", "),
		), 2)
	}
	cfg, err := config.Load()
	if err != nil {
		return cli.NewExitError("addonmgr: "+err.Error(), 2)
	}
	if addonsDir != "" {
		cfg.AddonsDir = addonsDir
	}
	if workers > 0 {
		cfg.Workers = workers
	}

	l := logger.NewStandardLogger(log.New(os.Stderr, "", log.LstdFlags))
	defer l.Close()
	fs := afero.NewOsFs()
	if err := ensureLayout(fs, cfg.AddonsDir); err != nil {
		return cli.NewExitError("addonmgr: "+err.Error(), 1)
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var auth string
	if creds, err := credman.NewManager().Load(); err == nil {
		auth = creds.Authorization()
		l.Info("sync: using saved addon account %q", creds.Username)
	} else if !errors.Is(err, credman.ErrNotLoggedIn) {
		l.Warning("sync: could not read saved account: %s", err.Error())
	}

	fetcher := catalog.NewFetcher(
		&http.Client{Timeout: cfg.Timeout},
		fs, cfg.AddonsDir,
		&catalog.FetcherOpts{
			NewsURL:       cfg.NewsURL,
			UserAgent:     cfg.UserAgent,
			Authorization: auth,
			Logger:        l,
		},
	)
	entries, err := fetcher.Fetch(runCtx, skipUpdate)
	if err != nil {
		return cli.NewExitError("addonmgr: "+err.Error(), 1)
	}
	l.Info("sync: catalog lists %d approved addons", len(entries))

	engine := policy.Engine{FeaturedKarts: cfg.FeaturedKarts}
	if debugFilter {
		engine.Decision = func(e catalog.Entry, accepted bool, reason string) {
			verdict := "reject"
			if accepted {
				verdict = "accept"
			}
			fmt.Printf("filter: %s %-6s [%s] %s\n", verdict, e.Category, filterName, e.ID)
			if !accepted {
				fmt.Printf("filter:   reason: %s\n", reason)
			}
		}
	}
	selected, err := engine.Apply(filterName, entries)
	if err != nil {
		return cli.NewExitError("addonmgr: "+err.Error(), 2)
	}

	store, err := addonlib.OpenStore(filepath.Join(cfg.AddonsDir, addonlib.StoreFileName))
	if err != nil {
		return cli.NewExitError("addonmgr: "+err.Error(), 1)
	}
	defer store.Close()
	installed, err := store.Load()
	if err != nil {
		return cli.NewExitError("addonmgr: "+err.Error(), 1)
	}

	tasks, stats := addonlib.Plan(selected, installed, &addonlib.PlanOpts{
		Fs:     fs,
		Root:   cfg.AddonsDir,
		Logger: l,
	})
	printPlan(tasks, stats)
	if listOnly || len(tasks) == 0 {
		return nil
	}
	if !nonInteractive && !confirm() {
		fmt.Println("Installation cancelled.")
		return nil
	}

	sink := common.NewBarSink(len(tasks))
	dl := addonlib.NewDownloader(
		&http.Client{}, fs,
		&addonlib.DownloaderOpts{
			UserAgent:     cfg.UserAgent,
			Authorization: auth,
			RetryConfig:   retryConfig(cfg),
			Sink:          sink,
		},
	)
	pool := addonlib.Pool{
		Concurrency:   cfg.Workers,
		DispatchDelay: cfg.DispatchDelay,
		Downloader:    dl,
		Installer:     &addonlib.Installer{Fs: fs, Store: store},
		Sink:          sink,
	}
	summary := pool.Run(runCtx, tasks)
	sink.Wait()

	if err := exportInstalled(fs, cfg.AddonsDir, store, entries); err != nil {
		l.Warning("sync: could not write installed listing: %s", err.Error())
	}
	printSummary(summary, stats)
	// partial failure is a valid terminal outcome, exit zero
	return nil
}

func retryConfig(cfg config.Config) *addonlib.RetryConfig {
	rc := addonlib.DefaultRetryConfig()
	rc.MaxRetries = cfg.MaxRetries
	return &rc
}

// ensureLayout creates the addon root with its tracks, karts and tmp
// subtrees.
func ensureLayout(fs afero.Fs, root string) error {
	for _, dir := range []string{root,
		filepath.Join(root, "tracks"),
		filepath.Join(root, "karts"),
		filepath.Join(root, addonlib.TmpDirName),
	} {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

func printPlan(tasks []*addonlib.Task, stats addonlib.PlanStats) {
	fmt.Printf("\nPlan: %d new, %d updates, %d up to date, %d unsupported\n",
		stats.New, stats.Update, stats.UpToDate, stats.Unsupported)
	if len(tasks) == 0 {
		fmt.Println("All addons are up to date, nothing to install.")
		return
	}
	byCategory := make(map[catalog.Category][]*addonlib.Task)
	for _, t := range tasks {
		byCategory[t.Entry.Category] = append(byCategory[t.Entry.Category], t)
	}
	for _, c := range []catalog.Category{catalog.CategoryTrack, catalog.CategoryArena, catalog.CategoryKart} {
		group := byCategory[c]
		if len(group) == 0 {
			continue
		}
		fmt.Printf("- %ss: %d\n", c, len(group))
		for i, t := range group {
			if i == 5 {
				fmt.Printf("  * ... and %d more %ss\n", len(group)-5, c)
				break
			}
			fmt.Printf("  * %s (rev. %d, %s)\n", t.Entry.Name, t.Entry.Revision, t.Action)
		}
	}
	fmt.Printf("Total download size: %s\n", addonlib.ByteSize(stats.TotalBytes))
}

func confirm() bool {
	fmt.Print("\nProceed with installation? [Y/n]: ")
	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "n", "no":
		return false
	}
	return true
}

func exportInstalled(fs afero.Fs, root string, store *addonlib.Store, entries []catalog.Entry) error {
	records, err := store.Load()
	if err != nil {
		return err
	}
	return addonlib.ExportInstalled(
		fs, filepath.Join(root, addonlib.InstalledFileName), records, entries,
	)
}

func printSummary(s addonlib.Summary, stats addonlib.PlanStats) {
	fmt.Printf("\nInstallation summary:\n")
	fmt.Printf("- Installed: %d\n", s.Succeeded)
	fmt.Printf("- Failed: %d\n", s.Failed)
	fmt.Printf("- Already up to date: %d\n", stats.UpToDate)
	if s.Interrupted {
		fmt.Printf("- Incomplete (interrupted, resumable): %d\n", s.Incomplete)
	}
	for _, f := range s.Failures {
		fmt.Printf("  ✗ %s: %s\n", f.ID, f.Reason)
	}
}
