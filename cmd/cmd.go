package cmd

import (
	"fmt"
	"runtime"

	"github.com/urfave/cli"

	"github.com/stkaddons/addonmgr/cmd/common"
)

// BuildArgs carries the build-time version information stamped into
// the binary.
type BuildArgs struct {
	Version   string
	BuildType string
	Date      string
	Commit    string
}

// Execute runs the addonmgr CLI with the given arguments.
func Execute(args []string, bArgs BuildArgs) error {
	common.VersionCmdStr = fmt.Sprintf(
		"addonmgr %s-%s (%s/%s)\nbuilt on %s from %s",
		bArgs.Version, bArgs.BuildType,
		runtime.GOOS, runtime.GOARCH,
		bArgs.Date, bArgs.Commit,
	)
	app := cli.App{
		Name:                  "addonmgr",
		HelpName:              "addonmgr",
		Usage:                 "game server addon manager",
		Version:               fmt.Sprintf("%s-%s", bArgs.Version, bArgs.BuildType),
		UsageText:             "addonmgr <command> [arguments...]",
		Description:           DESCRIPTION,
		CustomAppHelpTemplate: HELP_TEMPL,
		OnUsageError:          common.UsageErrorCallback,
		Commands: []cli.Command{
			{
				Name:                   "sync",
				Aliases:                []string{"s"},
				Usage:                  "sync the addon directory with the catalog",
				Description:            SyncDescription,
				OnUsageError:           common.UsageErrorCallback,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				Action:                 sync,
				UseShortOptionHandling: true,
				Flags:                  syncFlags,
			},
			{
				Name:               "status",
				Aliases:            []string{"ls"},
				Usage:              "list installed addons",
				Description:        StatusDescription,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             status,
				Flags:              statusFlags,
			},
			{
				Name:               "login",
				Usage:              "save addon account credentials",
				Description:        LoginDescription,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             login,
			},
			{
				Name:               "logout",
				Usage:              "forget the saved addon account",
				Description:        LogoutDescription,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             logout,
			},
			{
				Name:    "help",
				Aliases: []string{"h"},
				Usage:   "prints the help message",
				Action:  common.Help,
			},
			{
				Name:               "version",
				Aliases:            []string{"v"},
				Usage:              "prints the installed version",
				UsageText:          " ",
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             common.GetVersion,
			},
		},
		Action:                 sync,
		Flags:                  syncFlags,
		UseShortOptionHandling: true,
		HideHelp:               true,
		HideVersion:            true,
	}
	return app.Run(args)
}
