// Package common provides shared helpers for the CLI commands:
// progress bar wiring, error printing and help display.
package common

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/urfave/cli"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/stkaddons/addonmgr/pkg/addonlib"
)

// VersionCmdStr holds the formatted version string displayed by the
// version command. Execute populates it with build-time information.
var VersionCmdStr string

var (
	showAppHelpAndExit = cli.ShowAppHelpAndExit
	showCommandHelp    = cli.ShowCommandHelp
)

// BarSink renders one progress bar per running download task plus an
// aggregate bar, all through a shared mpb container. It implements
// addonlib.ProgressSink and is a pure reporting side channel.
type BarSink struct {
	p       *mpb.Progress
	overall *mpb.Bar
	mu      sync.Mutex
	bars    map[string]*mpb.Bar
}

// NewBarSink creates a progress container expecting total tasks.
func NewBarSink(total int) *BarSink {
	p := mpb.New(mpb.WithWidth(42))
	overall := p.New(int64(total),
		mpb.BarStyle().Lbound("╢").Filler("█").Tip("█").Padding("░").Rbound("╟"),
		mpb.BarPriority(-1),
		mpb.PrependDecorators(
			decor.Name("Overall", decor.WC{W: 8, C: decor.DindentRight}),
			decor.CountersNoUnit("%d / %d"),
		),
	)
	return &BarSink{p: p, overall: overall, bars: make(map[string]*mpb.Bar)}
}

func (s *BarSink) TaskStarted(id string, total int64) {
	bar := s.p.New(total,
		mpb.BarStyle().Lbound("╢").Filler("█").Tip("█").Padding("░").Rbound("╟"),
		mpb.BarRemoveOnComplete(),
		mpb.PrependDecorators(
			decor.Name(id, decor.WC{W: len(id) + 1, C: decor.DindentRight}),
		),
		mpb.AppendDecorators(
			decor.CountersKibiByte("% .1f / % .1f"),
		),
	)
	s.mu.Lock()
	s.bars[id] = bar
	s.mu.Unlock()
}

func (s *BarSink) Report(id string, done, total int64) {
	s.mu.Lock()
	bar := s.bars[id]
	s.mu.Unlock()
	if bar == nil {
		return
	}
	if total > 0 {
		bar.SetTotal(total, false)
	}
	bar.SetCurrent(done)
}

func (s *BarSink) TaskDone(id string, status addonlib.Status) {
	s.mu.Lock()
	bar := s.bars[id]
	delete(s.bars, id)
	s.mu.Unlock()
	if bar != nil {
		if status == addonlib.StatusSucceeded {
			bar.SetTotal(-1, true)
		} else {
			bar.Abort(true)
		}
	}
	s.overall.Increment()
}

// Wait shuts the container down after the pool returns. Bars of
// interrupted tasks are aborted so Wait does not block on them.
func (s *BarSink) Wait() {
	s.mu.Lock()
	for id, bar := range s.bars {
		bar.Abort(true)
		delete(s.bars, id)
	}
	s.mu.Unlock()
	s.overall.Abort(false)
	s.p.Wait()
}

var _ addonlib.ProgressSink = (*BarSink)(nil)

// Help displays help for the application or a specific command.
func Help(ctx *cli.Context) error {
	arg := ctx.Args().First()
	if arg == "" || arg == "help" {
		fmt.Printf("%s %s\n", ctx.App.Name, ctx.App.Version)
		showAppHelpAndExit(ctx, 0)
		return nil
	}
	if err := showCommandHelp(ctx, arg); err != nil {
		return PrintErrWithHelp(ctx, err)
	}
	return nil
}

// GetVersion prints the version string to stdout.
func GetVersion(ctx *cli.Context) error {
	fmt.Println(VersionCmdStr)
	return nil
}

// PrintRuntimeErr formats and prints a runtime error message.
func PrintRuntimeErr(ctx *cli.Context, cmd, action string, err error) {
	if err == nil {
		fmt.Println("err is nil", "[", cmd, "|", action, "]")
		return
	}
	var name string
	if ctx != nil {
		name = ctx.App.HelpName
	} else {
		name = os.Args[0]
	}
	fmt.Printf("%s: %s[%s]: %s\n", name, cmd, action, err.Error())
}

// PrintErrWithCmdHelp prints the error followed by the current
// command's help text.
func PrintErrWithCmdHelp(ctx *cli.Context, err error) error {
	return printErrWithCallback(ctx, err, func() {
		if herr := showCommandHelp(ctx, ctx.Command.Name); herr != nil {
			fmt.Println(herr.Error())
		}
	})
}

// PrintErrWithHelp prints the error followed by the application help
// and exits non-zero.
func PrintErrWithHelp(ctx *cli.Context, err error) error {
	return printErrWithCallback(ctx, err, func() {
		showAppHelpAndExit(ctx, 1)
	})
}

func printErrWithCallback(ctx *cli.Context, err error, callback func()) error {
	if err == nil {
		return nil
	}
	estr := strings.ToLower(err.Error())
	if estr == "flag: help requested" {
		return Help(ctx)
	}
	fmt.Printf("%s: %s\n\n", ctx.App.HelpName, err.Error())
	callback()
	return nil
}

// UsageErrorCallback handles usage errors from the CLI framework,
// showing command or application help depending on where the error
// occurred.
func UsageErrorCallback(ctx *cli.Context, err error, _ bool) error {
	if ctx.Command.Name != "" {
		return PrintErrWithCmdHelp(ctx, err)
	}
	return PrintErrWithHelp(ctx, err)
}
