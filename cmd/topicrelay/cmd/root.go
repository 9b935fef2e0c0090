package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "topicrelay",
	Short: "Topic-based WebSocket message relay",
	Long: `topicrelay accepts WebSocket connections, lets each client join a topic by
sending {"topic": "..."}, and forwards every {"message": "..."} a client sends
to all other clients on the same topic.

Available commands:
  serve     Run the relay, liveness and metrics servers
  topics    Explore the lifecycle events the relay publishes
  version   Print the version

Use "topicrelay [command] --help" for more information about a specific command.`,
	SilenceUsage: true,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
