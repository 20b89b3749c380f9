package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/writify/writify/internal/metrics"
	"github.com/writify/writify/internal/observability"
	"github.com/writify/writify/internal/output"
	"github.com/writify/writify/internal/resume"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <resume-file>",
	Short: "Analyze a resume against a job description",
	Long: fmt.Sprintf(`Analyze a resume against a job description.

The resume may be one of: %s (at most %d MB).
Resume analysis needs the AI provider; there is no offline equivalent.`,
		strings.Join(resume.AllowedExtensions, " "), resume.MaxUploadBytes>>20),
	Example: "  writify analyze resume.pdf --job-file job.txt --output-format markdown",
	Args:    cobra.ExactArgs(1),
	RunE:    runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringP("job", "j", "", "Inline job description")
	analyzeCmd.Flags().StringP("job-file", "f", "", "Read job description from file")
	analyzeCmd.Flags().String("output-format", "table", "Output format: table, json, markdown")
	analyzeCmd.Flags().StringP("out", "o", "", "Write output to file (default stdout)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	path := strings.TrimSpace(args[0])
	job, err := jobDescriptionFromFlags(cmd)
	if err != nil {
		return err
	}
	format, err := resolveOutputFormat(cmd)
	if err != nil {
		return err
	}
	outPath, _ := cmd.Flags().GetString("out")

	text, err := readResume(path)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rt, err := buildRuntime(cmd.Context(), cfg, runtimeOptions{logger: observability.CLILogger})
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()
	if rt.providerErr != nil {
		return fmt.Errorf("resume analysis requires an AI provider: %w", rt.providerErr)
	}

	analysis, err := rt.service.AnalyzeResume(cmd.Context(), text, job)
	if err != nil {
		return err
	}
	rendered, err := output.Analysis(format, analysis)
	if err != nil {
		return err
	}
	return writeOutput(outPath, rendered)
}

// readResume loads and extracts a resume file.
func readResume(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.Size() > resume.MaxUploadBytes {
		return "", &resume.UnreadableDocumentError{
			Filename: filepath.Base(path),
			Reason:   fmt.Sprintf("file exceeds %d MB", resume.MaxUploadBytes>>20),
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	text, err := resume.Extract(filepath.Base(path), data)
	metrics.RecordDocumentParsed(strings.ToLower(filepath.Ext(path)), err == nil)
	return text, err
}
