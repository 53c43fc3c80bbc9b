package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCompressCmd() *cobra.Command {
	var ratio float64

	cmd := &cobra.Command{
		Use:   "compress <conversation>",
		Short: "Compress a conversation's middle messages to summaries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			msgs, err := app.manager.Compress(requestContext(), args[0], ratio)
			if err != nil {
				return err
			}

			compressed := 0
			for _, msg := range msgs {
				if msg.Compressed {
					compressed++
				}
			}
			fmt.Printf("%d messages, %d compressed\n", len(msgs), compressed)
			return nil
		},
	}

	cmd.Flags().Float64VarP(&ratio, "ratio", "r", 0.5, "Target compression ratio")
	return cmd
}
