package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/memfab/memfab/internal/llm"
)

func newEstimateCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "estimate <model> <prompt...>",
		Short: "Estimate cost and carbon footprint of a prompt without sending it",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			model := args[0]
			messages := []llm.Message{
				{Role: llm.RoleUser, Content: strings.Join(args[1:], " ")},
			}

			cost, err := app.router.EstimateCost(model, messages)
			if err != nil {
				return err
			}
			carbon, err := app.router.EstimateCarbon(model, messages)
			if err != nil {
				return err
			}
			tokens := llm.EstimateTokens(messages)

			if format == "json" {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"model":            model,
					"estimated_tokens": tokens,
					"cost_usd":         cost,
					"carbon_grams":     carbon,
				})
			}
			fmt.Printf("model:   %s\n", model)
			fmt.Printf("tokens:  ~%.0f\n", tokens)
			fmt.Printf("cost:    $%.6f\n", cost)
			fmt.Printf("carbon:  %.4f g CO2\n", carbon)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format (text|json)")
	return cmd
}
