package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/writify/writify/internal/compose"
	"github.com/writify/writify/internal/core"
	"github.com/writify/writify/internal/observability"
	"github.com/writify/writify/internal/output"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Manage cover letter templates",
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List built-in and custom templates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}
		rt, err := newCLIRuntime(cmd, true)
		if err != nil {
			return err
		}
		defer func() { _ = rt.Close() }()

		rendered, err := output.Templates(format, rt.offline.Templates())
		if err != nil {
			return err
		}
		return writeOutput("", rendered)
	},
}

var templatesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Save a custom template",
	Long: `Save a custom cover letter template.

The template body must contain {company} and {position}, and may use:
  {hiring_manager} {skills} {skills_highlight} {experience_highlight}
  {company_highlight} {job_match}`,
	Example: `  writify templates add --name "Short" --file short.txt`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		description, _ := cmd.Flags().GetString("description")
		file, _ := cmd.Flags().GetString("file")

		structure, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("reading template file: %w", err)
		}
		tpl := core.CustomTemplate{
			Name:        strings.TrimSpace(name),
			Description: strings.TrimSpace(description),
			Structure:   string(structure),
		}
		if err := compose.ValidateCustomTemplate(tpl); err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openStore(cmd.Context(), cfg.Store)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		id, err := db.SaveTemplate(cmd.Context(), tpl)
		if err != nil {
			return err
		}
		observability.CLILogger.Debug(fmt.Sprintf("Saved custom template %d", id))
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Saved template %q as %s\n", tpl.Name, compose.CustomTemplateID(id))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(templatesCmd)
	templatesCmd.AddCommand(templatesListCmd, templatesAddCmd)

	templatesListCmd.Flags().String("output-format", "table", "Output format: table, json, markdown")

	templatesAddCmd.Flags().String("name", "", "Template name")
	templatesAddCmd.Flags().String("description", "", "Template description")
	templatesAddCmd.Flags().StringP("file", "f", "", "File containing the template body")
	_ = templatesAddCmd.MarkFlagRequired("name")
	_ = templatesAddCmd.MarkFlagRequired("file")
}
