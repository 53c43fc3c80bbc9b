package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/memfab/memfab/internal/llm"
	"github.com/memfab/memfab/internal/telemetry"
)

func newChatCmd() *cobra.Command {
	var (
		conversationID string
		model          string
		system         string
		maxContext     int
	)

	cmd := &cobra.Command{
		Use:   "chat <message...>",
		Short: "Send a message within a conversation and print the reply",
		Long: `Chat stores the user message with its embedding, assembles the
conversation's recent context, routes the request to the selected model,
and stores the assistant reply with its actual cost and carbon figures.

Without --conversation a new conversation is started and its ID printed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			ctx := requestContext()
			content := strings.Join(args, " ")

			fresh := conversationID == ""
			if fresh {
				conversationID = uuid.NewString()
			}
			logger := telemetry.RequestLogger(app.logger, ctx, conversationID)

			userTokens := int(llm.EstimateTokens([]llm.Message{{Role: llm.RoleUser, Content: content}}))
			if _, err := app.manager.StoreMessage(ctx, conversationID, llm.RoleUser,
				content, "", userTokens, 0, 0); err != nil {
				return err
			}

			window, err := app.manager.GetContext(ctx, conversationID, maxContext, true)
			if err != nil {
				return err
			}
			if system != "" {
				window = append([]llm.Message{{Role: llm.RoleSystem, Content: system}}, window...)
			}

			resp, err := app.router.Generate(ctx, model, window, llm.GenerateOptions{})
			if err != nil {
				app.metrics.RecordGeneration(model, "error", 0)
				return err
			}
			app.metrics.RecordGeneration(model, "ok", resp.TokenCount)
			logger.Info("generation complete",
				"model", resp.ModelUsed,
				"tokens", resp.TokenCount,
				"cost", resp.Cost)

			if _, err := app.manager.StoreMessage(ctx, conversationID, llm.RoleAssistant,
				resp.Content, resp.ModelUsed, resp.TokenCount, resp.Cost, resp.CarbonFootprint); err != nil {
				return err
			}

			if fresh {
				fmt.Printf("conversation: %s\n", conversationID)
			}
			fmt.Println(resp.Content)
			return nil
		},
	}

	cmd.Flags().StringVarP(&conversationID, "conversation", "c", "", "Conversation ID (new one if omitted)")
	cmd.Flags().StringVarP(&model, "model", "m", "", "Model name to route to")
	cmd.Flags().StringVar(&system, "system", "", "System prompt prepended to the context window")
	cmd.Flags().IntVar(&maxContext, "max-context", 20, "Maximum messages in the context window")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}
