package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newModelsCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "models [name]",
		Short: "List registered models or show one model's capabilities",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			if len(args) == 1 {
				info, err := app.router.GetModelInfo(args[0])
				if err != nil {
					return err
				}
				if format == "json" {
					return json.NewEncoder(os.Stdout).Encode(info)
				}
				fmt.Printf("%-20s provider=%s max_tokens=%d functions=%v\n",
					info.Model, info.Provider, info.MaxTokens, info.SupportsFunctions)
				return nil
			}

			entries := app.router.ListModels()
			if format == "json" {
				return json.NewEncoder(os.Stdout).Encode(entries)
			}
			if len(entries) == 0 {
				fmt.Println("no models registered; add providers to the config file")
				return nil
			}
			for _, e := range entries {
				fmt.Printf("%-20s provider=%s max_tokens=%d functions=%v\n",
					e.Name, e.Info.Provider, e.Info.MaxTokens, e.Info.SupportsFunctions)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format (text|json)")
	return cmd
}
