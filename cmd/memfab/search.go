package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newSearchCmd() *cobra.Command {
	var (
		conversationID string
		limit          int
		format         string
	)

	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Search stored messages by semantic similarity",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			query := strings.Join(args, " ")
			results, err := app.manager.Search(requestContext(), query, conversationID, limit)
			if err != nil {
				return err
			}

			if format == "json" {
				return json.NewEncoder(os.Stdout).Encode(results)
			}
			if len(results) == 0 {
				fmt.Println("no matches")
				return nil
			}
			for _, msg := range results {
				fmt.Printf("[%s] %s (%s): %s\n",
					msg.ConversationID, msg.ID, msg.Role, msg.Content)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&conversationID, "conversation", "c", "", "Restrict search to one conversation")
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "Maximum results")
	cmd.Flags().StringVar(&format, "format", "text", "Output format (text|json)")
	return cmd
}
