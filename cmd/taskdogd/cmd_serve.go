package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"taskdog/internal/logging"
)

// consoleClient implements broadcast.Client by printing every envelope
// to stdout. It stands in for a real transport (HTTP/WebSocket) that
// lives outside this core.
type consoleClient struct {
	id string
}

func (c *consoleClient) ID() string { return c.id }

func (c *consoleClient) Enqueue(data []byte) {
	fmt.Println(string(data))
}

func (c *consoleClient) Close() {}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Keep the task core running and print broadcast events",
	Long: `serve opens the workspace's task store and blocks, printing
every mutation event to stdout, until interrupted. The stdout printer
is its only subscriber; serve opens no network listener.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnvironment(workspace)
		if err != nil {
			return err
		}
		defer env.Close()

		env.broadcaster.Subscribe(&consoleClient{id: "console"})
		logging.Boot("serve: workspace=%s db=%s", workspace, env.cfg.Database.Path)
		fmt.Println("taskdogd serving. Press Ctrl+C to stop.")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		fmt.Println("shutting down")
		return nil
	},
}
