package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nfrund/topicrelay/cmd/topicrelay/internal/topics"
	"github.com/nfrund/topicrelay/internal/topicmgr"
)

// topicsCmd represents the topics command
var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "Explore the events the relay publishes",
	Long: `The relay publishes a lifecycle event on its internal bus whenever a client
connects, changes topic, sends a malformed frame, has a delivery fail, or
disconnects. These commands list and describe those event topics.

Available subcommands:
  list      List all event topics
  get       Show one event topic in detail
  validate  Check a topic name against the naming rules

Examples:
  topicrelay topics list
  topicrelay topics list --format json
  topicrelay topics list --prefix relay.connection
  topicrelay topics get relay.message.relayed
  topicrelay topics validate relay.connection.opened`,
}

var (
	listOutputFormat string
	listPrefix       string
	getOutputFormat  string
)

var topicsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all event topics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := topics.Catalogue()
		if err != nil {
			return err
		}

		topicList := manager.ListByPrefix(listPrefix)

		out := cmd.OutOrStdout()
		if len(topicList) == 0 {
			fmt.Fprintln(out, "No topics found")
			return nil
		}

		switch listOutputFormat {
		case "json":
			return topics.DisplayTopicsJSON(out, topicList)
		case "table":
			return topics.DisplayTopicsTable(out, topicList)
		default:
			return fmt.Errorf("unsupported output format %q, use 'table' or 'json'", listOutputFormat)
		}
	},
}

var topicsGetCmd = &cobra.Command{
	Use:   "get <topic-name>",
	Short: "Show one event topic in detail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := topics.Catalogue()
		if err != nil {
			return err
		}

		topic, err := manager.Lookup(args[0])
		if err != nil {
			return fmt.Errorf("%w (use 'topicrelay topics list' to see all topics)", err)
		}
		return topics.DisplayTopicDetails(cmd.OutOrStdout(), topic, getOutputFormat)
	},
}

var topicsValidateCmd = &cobra.Command{
	Use:   "validate <topic-name>",
	Short: "Check a topic name against the naming rules",
	Long: `Check that a name is lowercase, dot separated and at most 100 characters,
and report whether the relay publishes it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		out := cmd.OutOrStdout()

		if err := topicmgr.NewValidator().ValidateName(name); err != nil {
			fmt.Fprintf(out, "❌ Topic name validation failed: %v\n", err)
			return err
		}

		manager, err := topics.Catalogue()
		if err != nil {
			return err
		}
		if _, ok := manager.Get(name); ok {
			fmt.Fprintf(out, "✅ Topic '%s' is valid and published by the relay\n", name)
		} else {
			fmt.Fprintf(out, "✅ Topic name '%s' is valid (not published by the relay)\n", name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(topicsCmd)
	topicsCmd.AddCommand(topicsListCmd, topicsGetCmd, topicsValidateCmd)

	topicsListCmd.Flags().StringVarP(&listOutputFormat, "format", "f", "table", "Output format (table, json)")
	topicsListCmd.Flags().StringVarP(&listPrefix, "prefix", "p", "", "Only list topics whose name starts with this prefix")
	topicsGetCmd.Flags().StringVarP(&getOutputFormat, "format", "f", "table", "Output format (table, json)")
}
