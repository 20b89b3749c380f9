package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/writify/writify/internal/core"
	"github.com/writify/writify/internal/observability"
	"github.com/writify/writify/internal/output"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recently generated cover letters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		if limit <= 0 {
			return fmt.Errorf("--limit must be positive")
		}
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}
		outPath, _ := cmd.Flags().GetString("out")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openStore(cmd.Context(), cfg.Store)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		letters, err := db.ListCoverLetters(cmd.Context(), limit)
		if err != nil {
			return err
		}
		observability.CLILogger.Debug(fmt.Sprintf("Loaded %d letter(s) from %s store", len(letters), db.Driver()))

		rendered, err := output.Letters(format, letters)
		if err != nil {
			return err
		}
		return writeOutput(outPath, rendered)
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntP("limit", "n", core.DefaultHistoryLimit, "Number of letters to show")
	historyCmd.Flags().String("output-format", "table", "Output format: table, json, markdown")
	historyCmd.Flags().StringP("out", "o", "", "Write output to file (default stdout)")
}
