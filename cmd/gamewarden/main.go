package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// GlobalFlags holds persistent flags shared by all commands.
type GlobalFlags struct {
	ConfigPath string
	APIUrl     string
	APITimeout time.Duration
}

func main() {
	if err := buildRoot().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRoot() *cobra.Command {
	flags := &GlobalFlags{}

	root := &cobra.Command{
		Use:   "gamewarden",
		Short: "gamewarden supervises a single game server process",
		Long: `gamewarden runs as a daemon ('gamewarden serve') that spawns and
supervises one game server process, captures its output and exposes a
control API. The other subcommands are thin clients for that API.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "gamewarden.toml", "path to the TOML config file")
	root.PersistentFlags().StringVar(&flags.APIUrl, "api-url", "", "daemon API URL (default http://127.0.0.1:8420/api)")
	root.PersistentFlags().DurationVar(&flags.APITimeout, "api-timeout", 10*time.Second, "request timeout for API calls")

	root.AddCommand(createServeCommand(flags))
	root.AddCommand(createStartCommand(flags))
	root.AddCommand(createStopCommand(flags))
	root.AddCommand(createKillCommand(flags))
	root.AddCommand(createStatusCommand(flags))
	root.AddCommand(createLogsCommand(flags))
	root.AddCommand(createModsCommand(flags))
	return root
}
