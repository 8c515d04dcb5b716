package cli

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var onceSimulate bool

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Execute a single monitoring cycle and print the summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, err := getApp().RunOnce(cmd.Context(), onceSimulate)
		if err != nil {
			return err
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(summary)
	},
}

func init() {
	onceCmd.Flags().BoolVar(&onceSimulate, "simulate", false, "Build payloads without submitting transactions")
}
