package cmd

import (
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/M-Shameel-375/skill-verse-sub001/internal/exchange/events"
	"github.com/M-Shameel-375/skill-verse-sub001/internal/matching"
)

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "List the event topics the engine publishes",
	Run: func(cmd *cobra.Command, args []string) {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		defer w.Flush()

		w.Write([]byte("TOPIC\tDESCRIPTION\n"))
		rows := []struct{ name, description string }{
			{matching.EventOfferPublished.Name(), matching.EventOfferPublished.Description()},
			{matching.EventRequestPublished.Name(), matching.EventRequestPublished.Description()},
			{matching.EventMatchFound.Name(), matching.EventMatchFound.Description()},
			{events.Proposed.Name(), events.Proposed.Description()},
			{events.Accepted.Name(), events.Accepted.Description()},
			{events.Activated.Name(), events.Activated.Description()},
			{events.Closed.Name(), events.Closed.Description()},
		}
		for _, row := range rows {
			w.Write([]byte(row.name + "\t" + row.description + "\n"))
		}
	},
}

func init() {
	rootCmd.AddCommand(topicsCmd)
}
