package cmd

const DESCRIPTION = `addonmgr keeps a dedicated game server's addon directory in sync with
the official addon catalog. It fetches the catalog, filters it with a
named policy, plans what is new or outdated, and downloads the
selected content with resumable parallel transfers.`

const HELP_TEMPL = `Usage: {{if .UsageText}}{{.UsageText}}{{else}}{{.HelpName}} {{if .VisibleFlags}}[global options]{{end}}{{if .Commands}} command [command options]{{end}} {{if .ArgsUsage}}{{.ArgsUsage}}{{else}}[arguments...]{{end}}{{end}}
{{.Description}}{{if .VisibleCommands}}
Commands:{{range .VisibleCategories}}{{if .Name}}

{{.Name}}:{{range .VisibleCommands}}
  {{join .Names ", "}}{{"\t"}}{{.Usage}}{{end}}{{else}}{{range .VisibleCommands}}
{{"\t"}}{{index .Names 0}}{{"\t:\t"}}{{.Usage}}{{end}}{{end}}{{end}}{{end}}{{if .VisibleFlags}}{{end}}

Use "{{.HelpName}} help <command>" for more information about any command.

`

const CMD_HELP_TEMPL = `{{if .Description}}{{.Description}}{{else}}{{.HelpName}} - {{.Usage}}

{{end}}Usage:
        {{.HelpName}} {{if .UsageText}}{{.UsageText}}{{else}}[arguments...]{{end}}{{if .VisibleFlags}}

Supported Flags:{{range .VisibleFlags}}
  {{.}}{{end}}{{end}}

`

const SyncDescription = `Synchronize the addon directory with the catalog.

Fetches the addon catalog (or reuses the cached copy), applies the
selected filter policy, plans which addons are new or need an update,
and downloads them with resumable parallel transfers. Partial
downloads left by an interrupted run resume where they stopped.`

const StatusDescription = `List the addons currently recorded as installed, with their
category, revision and size.`

const LoginDescription = `Save addon account credentials in the system keyring. The account is
sent along with catalog requests on later runs.`

const LogoutDescription = `Forget the saved addon account.`
