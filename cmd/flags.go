package cmd

import "github.com/urfave/cli"

var (
	listOnly       bool
	nonInteractive bool
	filterName     string
	skipUpdate     bool
	debugFilter    bool
	workers        int
	addonsDir      string
)

var syncFlags = []cli.Flag{
	cli.StringFlag{
		Name:        "filter, f",
		Usage:       "filter policy: default, all, tracks-only, high-rated or recent",
		EnvVar:      "STK_FILTER",
		Value:       "default",
		Destination: &filterName,
	},
	cli.BoolFlag{
		Name:        "list-only, n",
		Usage:       "print the plan and exit without downloading",
		Destination: &listOnly,
	},
	cli.BoolFlag{
		Name:        "non-interactive, y",
		Usage:       "skip the confirmation prompt",
		EnvVar:      "STK_NON_INTERACTIVE",
		Destination: &nonInteractive,
	},
	cli.BoolFlag{
		Name:        "skip-update, u",
		Usage:       "use the cached catalog instead of fetching",
		Destination: &skipUpdate,
	},
	cli.BoolFlag{
		Name:        "debug, d",
		Usage:       "print the per-entry filter decisions",
		Destination: &debugFilter,
	},
	cli.IntFlag{
		Name:        "workers, x",
		Usage:       "number of parallel downloads (0 uses the configured value)",
		EnvVar:      "STK_WORKERS",
		Destination: &workers,
	},
	cli.StringFlag{
		Name:        "addons-dir, l",
		Usage:       "addon root directory (overrides the configured value)",
		EnvVar:      "STK_ADDONS_DIR",
		Destination: &addonsDir,
	},
}

var statusFlags = []cli.Flag{
	cli.StringFlag{
		Name:        "addons-dir, l",
		Usage:       "addon root directory (overrides the configured value)",
		EnvVar:      "STK_ADDONS_DIR",
		Destination: &addonsDir,
	},
}
