package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newSummaryCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "summary <conversation>",
		Short: "Show a conversation's message count, token, cost, and carbon totals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			summary, err := app.manager.SummarizeConversation(requestContext(), args[0])
			if err != nil {
				return err
			}

			if format == "json" {
				return json.NewEncoder(os.Stdout).Encode(summary)
			}
			fmt.Printf("conversation: %s\n", summary.ConversationID)
			fmt.Printf("messages:     %d\n", summary.MessageCount)
			fmt.Printf("tokens:       %d\n", summary.TotalTokens)
			fmt.Printf("cost:         $%.6f\n", summary.TotalCost)
			fmt.Printf("carbon:       %.4f g CO2\n", summary.TotalCarbon)
			fmt.Printf("models:       %s\n", strings.Join(summary.ModelsUsed, ", "))
			fmt.Printf("created:      %s\n", summary.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Printf("updated:      %s\n", summary.LastUpdated.Format("2006-01-02 15:04:05"))
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format (text|json)")
	return cmd
}
