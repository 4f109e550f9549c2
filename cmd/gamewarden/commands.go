package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gamewarden/gamewarden/pkg/client"
)

func newAPIClient(global *GlobalFlags) *client.Client {
	cfg := client.DefaultConfig()
	if global.APIUrl != "" {
		cfg.BaseURL = global.APIUrl
	}
	if global.APITimeout > 0 {
		cfg.Timeout = global.APITimeout
	}
	return client.New(cfg)
}

func requireDaemon(ctx context.Context, global *GlobalFlags) (*client.Client, error) {
	c := newAPIClient(global)
	if !c.IsReachable(ctx) {
		url := global.APIUrl
		if url == "" {
			url = client.DefaultConfig().BaseURL
		}
		return nil, fmt.Errorf("daemon not reachable at %s - start it first with 'gamewarden serve'", url)
	}
	return c, nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func createStartCommand(global *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the game server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := requireDaemon(cmd.Context(), global)
			if err != nil {
				return err
			}
			if err := c.Start(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("server starting")
			return nil
		},
	}
}

func createStopCommand(global *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the game server gracefully",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := requireDaemon(cmd.Context(), global)
			if err != nil {
				return err
			}
			if err := c.Stop(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("stop requested")
			return nil
		},
	}
}

func createKillCommand(global *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "kill",
		Short: "Terminate the game server immediately",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := requireDaemon(cmd.Context(), global)
			if err != nil {
				return err
			}
			if err := c.Kill(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("kill requested")
			return nil
		},
	}
}

func createStatusCommand(global *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the game server status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := requireDaemon(cmd.Context(), global)
			if err != nil {
				return err
			}
			snap, err := c.Status(cmd.Context())
			if err != nil {
				return err
			}
			printJSON(snap)
			return nil
		},
	}
}

func createLogsCommand(global *GlobalFlags) *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the most recent server output lines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := requireDaemon(cmd.Context(), global)
			if err != nil {
				return err
			}
			lines, err := c.Logs(cmd.Context(), n)
			if err != nil {
				return err
			}
			for _, l := range lines {
				fmt.Printf("[%s] %s\n", l.Time.Format("2006-01-02 15:04:05"), l.Text)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "lines", "n", 30, "number of lines to fetch")
	return cmd
}

func createModsCommand(global *GlobalFlags) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "mods",
		Short: "List installed server mods",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := requireDaemon(cmd.Context(), global)
			if err != nil {
				return err
			}
			list, err := c.Mods(cmd.Context(), refresh)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Println("No mods installed")
				return nil
			}
			fmt.Printf("Total mods: %d\n", len(list))
			for _, m := range list {
				fmt.Printf("  %s (v%s)\n", m.Name, m.Version)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the scan cache")
	return cmd
}
