package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	tea "charm.land/bubbletea/v2"
	"github.com/atotto/clipboard"
	"github.com/charmbracelet/fang"
	serveradapter "github.com/g3/tornado/internal/adapters/server"
	"github.com/g3/tornado/internal/platform"
	"github.com/spf13/cobra"
)

// version is stamped at build time.
var version = "dev"

// program is the slice of *tea.Program the CLI drives.
type program interface {
	Run() (tea.Model, error)
}

// programFactory builds the TUI program; tests swap it out.
var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

// serveCommandRunner runs the HTTP/MCP server; tests swap it out.
var serveCommandRunner = serveradapter.Run

// copyToClipboard writes text to the system clipboard.
var copyToClipboard = clipboard.WriteAll

// rootFlags are the persistent flags every subcommand shares.
type rootFlags struct {
	appName    string
	configPath string
	dbPath     string
	envFile    string
	userID     string
	devMode    bool
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

// run builds the command tree and executes args against it.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	return fang.Execute(ctx, root, fang.WithVersion(version))
}

// newRootCommand wires every subcommand under one root.
func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "tornado",
		Short: "Follow-up tracker for multi-company projects",
		Long: `tornado tracks tasks across companies, flags stale follow-ups,
and shows who is holding up work.

The CLI acts as identity.user_id from the config file, or --as.`,
		SilenceUsage: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&flags.appName, "app", platform.AppName, "application name used for config and data directories")
	pf.StringVar(&flags.configPath, "config", "", "path to config TOML")
	pf.StringVar(&flags.dbPath, "db", "", "sqlite path override")
	pf.StringVar(&flags.envFile, "env-file", ".env", "dotenv file overlaid before the process environment")
	pf.StringVar(&flags.userID, "as", "", "user id to act as")
	pf.BoolVar(&flags.devMode, "dev", false, "use isolated dev directories")

	root.AddCommand(
		newServeCommand(flags),
		newIssuesCommand(flags),
		newTasksCommand(flags),
		newTaskCommand(flags),
		newContactsCommand(flags),
		newContactCommand(flags),
		newProjectsCommand(flags),
		newProjectCommand(flags),
		newImportCommand(flags),
		newExportCommand(flags),
		newDigestCommand(flags),
		newTokenCommand(flags),
		newPathsCommand(flags),
	)
	return root
}

// newPathsCommand prints resolved runtime locations.
func newPathsCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config and data paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := resolvePaths(flags)
			if err != nil {
				return err
			}
			configPath := paths.ConfigPath
			if strings.TrimSpace(flags.configPath) != "" {
				configPath = flags.configPath
			}
			dbPath := paths.DBPath
			if strings.TrimSpace(flags.dbPath) != "" {
				dbPath = flags.dbPath
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "app: %s\n", appNameOf(flags))
			fmt.Fprintf(out, "dev_mode: %t\n", flags.devMode)
			fmt.Fprintf(out, "config: %s\n", configPath)
			fmt.Fprintf(out, "data_dir: %s\n", paths.DataDir)
			fmt.Fprintf(out, "db: %s\n", dbPath)
			fmt.Fprintf(out, "log: %s\n", paths.LogPath)
			return nil
		},
	}
}

func resolvePaths(flags *rootFlags) (platform.Paths, error) {
	paths, err := platform.DefaultPathsWithOptions(platform.Options{
		AppName: appNameOf(flags),
		DevMode: flags.devMode,
	})
	if err != nil {
		return platform.Paths{}, fmt.Errorf("resolve paths: %w", err)
	}
	return paths, nil
}

func appNameOf(flags *rootFlags) string {
	name := strings.TrimSpace(flags.appName)
	if name == "" {
		return platform.AppName
	}
	return name
}
