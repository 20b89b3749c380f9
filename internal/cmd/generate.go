package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/writify/writify/internal/compose"
	"github.com/writify/writify/internal/core"
	"github.com/writify/writify/internal/export"
	"github.com/writify/writify/internal/metrics"
	"github.com/writify/writify/internal/observability"
	"github.com/writify/writify/internal/output"
)

// maxJobDescriptionChars bounds job descriptions read from files.
const maxJobDescriptionChars = 8000

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate cover letters and application content",
	Long: `Generate cover letters, skill suggestions, job descriptions and
achievement statements.

When the AI provider is unavailable or over its hourly limit, output comes
from the offline generator and a notice is printed to stderr.`,
}

var generateLetterCmd = &cobra.Command{
	Use:   "letter",
	Short: "Write a cover letter",
	Example: `  writify generate letter --company "Acme" --position "Backend Engineer" \
    --job-file job.txt --skills Go,PostgreSQL --template technical`,
	Args: cobra.NoArgs,
	RunE: runGenerateLetter,
}

var generateSkillsCmd = &cobra.Command{
	Use:   "skills",
	Short: "Suggest skills for a job description",
	Args:  cobra.NoArgs,
	RunE:  runGenerateSkills,
}

var generateDescriptionCmd = &cobra.Command{
	Use:   "description",
	Short: "Expand a short job description into a structured posting",
	Args:  cobra.NoArgs,
	RunE:  runGenerateDescription,
}

var generateAchievementsCmd = &cobra.Command{
	Use:   "achievements",
	Short: "Rewrite responsibilities as achievement statements",
	Args:  cobra.NoArgs,
	RunE:  runGenerateAchievements,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.AddCommand(generateLetterCmd, generateSkillsCmd, generateDescriptionCmd, generateAchievementsCmd)

	generateCmd.PersistentFlags().Bool("offline", false, "Use the offline generator without calling the AI provider")
	generateCmd.PersistentFlags().StringP("out", "o", "", "Write output to file (default stdout)")

	for _, c := range []*cobra.Command{generateLetterCmd, generateSkillsCmd, generateDescriptionCmd} {
		c.Flags().StringP("job", "j", "", "Inline job description")
		c.Flags().StringP("job-file", "f", "", "Read job description from file")
	}

	generateLetterCmd.Flags().String("company", "", "Company name")
	generateLetterCmd.Flags().String("position", "", "Position title")
	generateLetterCmd.Flags().StringSlice("skills", nil, "Skills to highlight (comma-separated)")
	generateLetterCmd.Flags().String("experience", "", "Relevant experience")
	generateLetterCmd.Flags().StringP("template", "t", "", "Template id (see 'templates list')")
	generateLetterCmd.Flags().Int("creativity", 0, "Creativity level 1-10 (default from preferences, then 5)")
	generateLetterCmd.Flags().String("hiring-manager", "", "Hiring manager name")
	generateLetterCmd.Flags().Bool("no-save", false, "Do not record the letter in history")
	generateLetterCmd.Flags().String("export", "", "Render as a document: text, markdown")
	generateLetterCmd.Flags().Int("line-width", 0, "Wrap exported paragraphs at this width")

	generateSkillsCmd.Flags().String("output-format", "table", "Output format: table, json, markdown")

	generateAchievementsCmd.Flags().StringP("experience", "e", "", "Responsibilities to rewrite")
	generateAchievementsCmd.Flags().String("experience-file", "", "Read responsibilities from file")
	generateAchievementsCmd.Flags().Bool("star", false, "Use the Situation, Task, Action, Result format")
}

func runGenerateLetter(cmd *cobra.Command, args []string) error {
	job, err := jobDescriptionFromFlags(cmd)
	if err != nil {
		return err
	}
	company, _ := cmd.Flags().GetString("company")
	position, _ := cmd.Flags().GetString("position")
	skills, _ := cmd.Flags().GetStringSlice("skills")
	experience, _ := cmd.Flags().GetString("experience")
	templateID, _ := cmd.Flags().GetString("template")
	creativity, _ := cmd.Flags().GetInt("creativity")
	hiringManager, _ := cmd.Flags().GetString("hiring-manager")
	noSave, _ := cmd.Flags().GetBool("no-save")
	exportFormat, _ := cmd.Flags().GetString("export")
	lineWidth, _ := cmd.Flags().GetInt("line-width")
	outPath, _ := cmd.Flags().GetString("out")

	req := compose.CoverLetterRequest{
		JobDescription: job,
		Skills:         skills,
		TemplateID:     strings.TrimSpace(templateID),
		CompanyName:    company,
		Position:       position,
		Experience:     experience,
		HiringManager:  hiringManager,
		Creativity:     creativity,
	}
	if err := req.Validate(); err != nil {
		return err
	}

	var format export.Format
	if strings.TrimSpace(exportFormat) != "" {
		if format, err = export.ParseFormat(exportFormat); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	rt, err := newCLIRuntime(cmd, true)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	prefs, err := rt.store.GetPreferences(ctx)
	if err != nil {
		observability.CLILogger.Warn("Failed to load preferences", zap.Error(err))
	}
	req.ApplyPreferences(prefs)

	text, err := rt.service.CoverLetter(ctx, req)
	if err != nil {
		return err
	}
	tpl := rt.offline.Template(req.TemplateID)
	noticeOffline(cmd, rt)

	if !noSave {
		id, err := rt.store.SaveCoverLetter(ctx, core.CoverLetter{
			Company:    req.CompanyName,
			Position:   req.Position,
			Content:    text,
			TemplateID: tpl.ID,
		})
		metrics.RecordLetterSaved(err == nil)
		if err != nil {
			observability.CLILogger.Warn("Failed to save cover letter to history", zap.Error(err))
		} else {
			observability.CLILogger.Debug("Saved cover letter", zap.Int64("id", id))
		}
	}

	if format == "" {
		return writeOutput(outPath, text)
	}

	meta := export.Metadata{
		Company:      req.CompanyName,
		Position:     req.Position,
		TemplateName: tpl.Name,
	}
	if prefs != nil {
		meta.UserName = prefs.Name
		meta.UserEmail = prefs.Email
	}
	doc, err := rt.exporter.Render(text, meta, export.Style{Format: format, LineWidth: lineWidth})
	if err != nil {
		return err
	}
	if strings.TrimSpace(outPath) == "" {
		outPath = rt.exporter.Filename(req.CompanyName, format)
	}
	if err := writeOutput(outPath, doc); err != nil {
		return err
	}
	if outPath != "-" {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Exported to %s\n", outPath)
	}
	return nil
}

func runGenerateSkills(cmd *cobra.Command, args []string) error {
	job, err := jobDescriptionFromFlags(cmd)
	if err != nil {
		return err
	}
	format, err := resolveOutputFormat(cmd)
	if err != nil {
		return err
	}
	outPath, _ := cmd.Flags().GetString("out")

	rt, err := newCLIRuntime(cmd, false)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	skills, err := rt.service.SuggestSkills(cmd.Context(), job)
	if err != nil {
		return err
	}
	noticeOffline(cmd, rt)

	rendered, err := output.Skills(format, skills)
	if err != nil {
		return err
	}
	return writeOutput(outPath, rendered)
}

func runGenerateDescription(cmd *cobra.Command, args []string) error {
	job, err := jobDescriptionFromFlags(cmd)
	if err != nil {
		return err
	}
	outPath, _ := cmd.Flags().GetString("out")

	rt, err := newCLIRuntime(cmd, false)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	text, err := rt.service.EnhanceJobDescription(cmd.Context(), job)
	if err != nil {
		return err
	}
	noticeOffline(cmd, rt)
	return writeOutput(outPath, text)
}

func runGenerateAchievements(cmd *cobra.Command, args []string) error {
	experience, _ := cmd.Flags().GetString("experience")
	experienceFile, _ := cmd.Flags().GetString("experience-file")
	star, _ := cmd.Flags().GetBool("star")
	outPath, _ := cmd.Flags().GetString("out")

	experience, err := inlineOrFile(experience, experienceFile, "experience")
	if err != nil {
		return err
	}

	rt, err := newCLIRuntime(cmd, false)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	text, err := rt.service.GenerateAchievements(cmd.Context(), compose.AchievementsRequest{
		Experience: experience,
		STAR:       star,
	})
	if err != nil {
		return err
	}
	noticeOffline(cmd, rt)
	return writeOutput(outPath, text)
}

// newCLIRuntime wires the service stack for a one-shot command.
func newCLIRuntime(cmd *cobra.Command, withStore bool) (*appRuntime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	offline, _ := cmd.Flags().GetBool("offline")
	return buildRuntime(cmd.Context(), cfg, runtimeOptions{
		logger:  observability.CLILogger,
		store:   withStore,
		offline: offline,
	})
}

func noticeOffline(cmd *cobra.Command, rt *appRuntime) {
	if !rt.gateway.FallbackActive() {
		return
	}
	reason := "AI service unavailable"
	if rt.providerErr != nil {
		reason = rt.providerErr.Error()
	}
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Offline mode: %s. Output was produced by the offline generator.\n", reason)
}

func jobDescriptionFromFlags(cmd *cobra.Command) (string, error) {
	job, _ := cmd.Flags().GetString("job")
	jobFile, _ := cmd.Flags().GetString("job-file")
	return inlineOrFile(job, jobFile, "job")
}

// inlineOrFile returns the inline value, or the truncated content of path
// when the inline value is empty.
func inlineOrFile(inline, path, name string) (string, error) {
	if strings.TrimSpace(inline) != "" {
		if strings.TrimSpace(path) != "" {
			return "", fmt.Errorf("--%s and --%s-file are mutually exclusive", name, name)
		}
		return inline, nil
	}
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("--%s or --%s-file is required", name, name)
	}
	content, err := readTruncatedFile(path, maxJobDescriptionChars)
	if err != nil {
		return "", fmt.Errorf("reading %s file: %w", name, err)
	}
	return content, nil
}

func readTruncatedFile(path string, maxLen int) (result string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if maxLen <= 0 {
		return "", nil
	}

	reader := bufio.NewReader(f)
	var builder strings.Builder
	builder.Grow(maxLen + 3)

	count := 0
	for count < maxLen+1 {
		r, _, readErr := reader.ReadRune()
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return "", readErr
		}
		if count < maxLen {
			builder.WriteRune(r)
		}
		count++
	}

	content := builder.String()
	if count > maxLen {
		content += "..."
	}
	return content, nil
}
