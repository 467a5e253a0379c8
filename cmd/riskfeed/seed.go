package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/riskfeed/pkg/storage"
	"github.com/cuemby/riskfeed/pkg/synth"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Manage first-run seed data",
}

var seedGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a seed file",
	Long: `Generate a seed file with synthesized history. serve loads it into an
empty database on first start.

Examples:
  # Default demo dataset
  riskfeed seed generate -o data/seed.json

  # Reproducible dataset
  riskfeed seed generate -o seed.json --transactions 500 --alerts 40 --seed 42`,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		transactions, _ := cmd.Flags().GetInt("transactions")
		alerts, _ := cmd.Flags().GetInt("alerts")
		seed, _ := cmd.Flags().GetUint64("seed")
		span, _ := cmd.Flags().GetDuration("span")

		data, err := synth.GenerateSeed(synth.SeedOptions{
			Transactions: transactions,
			Alerts:       alerts,
			Seed:         seed,
			End:          time.Now().UTC(),
			Span:         span,
		})
		if err != nil {
			return err
		}
		if err := storage.WriteSeedFile(output, data); err != nil {
			return err
		}

		fmt.Printf("✓ Wrote %s: %d transactions, %d alerts, %d cases\n",
			output, len(data.Transactions), len(data.Alerts), len(data.Cases))
		return nil
	},
}

func init() {
	seedCmd.AddCommand(seedGenerateCmd)

	seedGenerateCmd.Flags().StringP("output", "o", "data/seed.json", "Seed file to write")
	seedGenerateCmd.Flags().Int("transactions", 100, "Number of transactions")
	seedGenerateCmd.Flags().Int("alerts", 10, "Number of alerts among the transactions")
	seedGenerateCmd.Flags().Uint64("seed", 0, "Random seed (0 = time based)")
	seedGenerateCmd.Flags().Duration("span", 24*time.Hour, "Time range the records are spread over")
}
