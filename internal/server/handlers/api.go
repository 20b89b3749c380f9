package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/writify/writify/internal/compose"
	"github.com/writify/writify/internal/core"
	apperrors "github.com/writify/writify/internal/errors"
	"github.com/writify/writify/internal/export"
	"github.com/writify/writify/internal/gateway"
	"github.com/writify/writify/internal/metrics"
	"github.com/writify/writify/internal/resume"
)

const (
	maxJSONBodyBytes = 1 << 20
	statusSuccess    = "success"
)

// Store is the persistence used by the API.
type Store interface {
	SaveCoverLetter(ctx context.Context, letter core.CoverLetter) (int64, error)
	ListCoverLetters(ctx context.Context, limit int) ([]core.CoverLetter, error)
	SaveTemplate(ctx context.Context, tpl core.CustomTemplate) (int64, error)
	ListTemplates(ctx context.Context) ([]core.CustomTemplate, error)
	UpsertPreferences(ctx context.Context, prefs core.Preferences) error
	GetPreferences(ctx context.Context) (*core.Preferences, error)
}

// GatewayControl exposes gateway state to operators.
type GatewayControl interface {
	Stats() gateway.Stats
	ResetFallback()
	FallbackActive() bool
}

// API serves the writing endpoints under /api.
type API struct {
	service  *compose.Service
	gateway  GatewayControl
	store    Store
	exporter *export.Exporter
	logger   *logging.Logger
}

// APIConfig carries the API dependencies. Store and Logger are optional;
// without a store, history, templates and preferences answer 503.
type APIConfig struct {
	Service  *compose.Service
	Gateway  GatewayControl
	Store    Store
	Exporter *export.Exporter
	Logger   *logging.Logger
}

// NewAPI builds the API handlers.
func NewAPI(cfg APIConfig) *API {
	return &API{
		service:  cfg.Service,
		gateway:  cfg.Gateway,
		store:    cfg.Store,
		exporter: cfg.Exporter,
		logger:   cfg.Logger,
	}
}

// Routes mounts the endpoints on r.
func (a *API) Routes(r chi.Router) {
	r.Post("/generate-letter", a.GenerateLetter)
	r.Post("/enhance-description", a.EnhanceDescription)
	r.Post("/suggest-skills", a.SuggestSkills)
	r.Post("/analyze-resume", a.AnalyzeResume)
	r.Post("/improve-writing", a.ImproveWriting)

	r.Route("/resume", func(r chi.Router) {
		r.Post("/section", a.ResumeSection)
		r.Post("/improve", a.ImproveSection)
		r.Post("/keywords", a.Keywords)
		r.Post("/format", a.FormatSection)
		r.Post("/achievements", a.Achievements)
	})

	r.Get("/history", a.History)
	r.Get("/templates", a.Templates)
	r.Get("/templates/custom", a.CustomTemplates)
	r.Post("/templates/custom", a.SaveCustomTemplate)
	r.Get("/preferences", a.Preferences)
	r.Post("/preferences", a.SavePreferences)
	r.Post("/export", a.Export)

	r.Get("/gateway", a.GatewayStatus)
	r.Post("/gateway/reset-fallback", a.ResetFallback)
}

type generateLetterResponse struct {
	Status      string `json:"status"`
	CoverLetter string `json:"coverLetter"`
	Template    string `json:"template"`
	TemplateID  string `json:"templateId"`
	ID          int64  `json:"id,omitempty"`
	OfflineMode bool   `json:"offlineMode"`
}

// GenerateLetter writes a cover letter and records it in history.
func (a *API) GenerateLetter(w http.ResponseWriter, r *http.Request) {
	var req compose.CoverLetterRequest
	if !a.decode(w, r, &req) {
		return
	}
	a.applyPreferences(r.Context(), &req)

	text, err := a.service.CoverLetter(r.Context(), req)
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}

	tpl := a.service.Fallback().Template(req.TemplateID)
	resp := generateLetterResponse{
		Status:      statusSuccess,
		CoverLetter: text,
		Template:    tpl.Name,
		TemplateID:  tpl.ID,
		OfflineMode: a.gateway != nil && a.gateway.FallbackActive(),
	}

	if a.store != nil {
		id, err := a.store.SaveCoverLetter(r.Context(), core.CoverLetter{
			Company:    req.CompanyName,
			Position:   req.Position,
			Content:    text,
			TemplateID: tpl.ID,
		})
		metrics.RecordLetterSaved(err == nil)
		if err != nil {
			a.warn("Failed to save cover letter to history", zap.Error(err))
		} else {
			resp.ID = id
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// applyPreferences fills the template and creativity from saved preferences
// when the request leaves them unset.
func (a *API) applyPreferences(ctx context.Context, req *compose.CoverLetterRequest) {
	if a.store == nil || (req.TemplateID != "" && req.Creativity != 0) {
		return
	}
	prefs, err := a.store.GetPreferences(ctx)
	if err != nil {
		a.warn("Failed to load preferences", zap.Error(err))
		return
	}
	req.ApplyPreferences(prefs)
}

type jobDescriptionRequest struct {
	JobDescription string `json:"jobDescription"`
}

// EnhanceDescription expands a short job description.
func (a *API) EnhanceDescription(w http.ResponseWriter, r *http.Request) {
	var req jobDescriptionRequest
	if !a.decode(w, r, &req) {
		return
	}
	text, err := a.service.EnhanceJobDescription(r.Context(), req.JobDescription)
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": statusSuccess, "enhancedDescription": text})
}

// SuggestSkills lists skills relevant to a job description.
func (a *API) SuggestSkills(w http.ResponseWriter, r *http.Request) {
	var req jobDescriptionRequest
	if !a.decode(w, r, &req) {
		return
	}
	skills, err := a.service.SuggestSkills(r.Context(), req.JobDescription)
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": statusSuccess, "skills": skills})
}

type analyzeResumeResponse struct {
	Status string `json:"status"`
	*compose.ResumeAnalysis
}

// AnalyzeResume accepts a multipart upload with a "resume" file and a
// "jobDescription" field.
func (a *API) AnalyzeResume(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, resume.MaxUploadBytes+maxJSONBodyBytes)
	if err := r.ParseMultipartForm(resume.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			apperrors.RespondWithError(w, r, payloadTooLarge(r.Context(), err))
			return
		}
		apperrors.RespondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "expected a multipart form upload"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("resume")
	if err != nil {
		apperrors.RespondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "resume file is required"))
		return
	}
	defer file.Close() // nolint:errcheck // multipart parts are in memory or temp files

	if header.Size > resume.MaxUploadBytes {
		apperrors.RespondWithError(w, r, payloadTooLarge(r.Context(), nil))
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, resume.MaxUploadBytes+1))
	if err != nil {
		apperrors.RespondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "failed to read resume upload"))
		return
	}

	text, err := resume.Extract(header.Filename, data)
	metrics.RecordDocumentParsed(strings.ToLower(filepath.Ext(header.Filename)), err == nil)
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}

	analysis, err := a.service.AnalyzeResume(r.Context(), text, r.FormValue("jobDescription"))
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analyzeResumeResponse{Status: statusSuccess, ResumeAnalysis: analysis})
}

func payloadTooLarge(ctx context.Context, err error) error {
	message := fmt.Sprintf("resume exceeds the %d MB upload limit", resume.MaxUploadBytes>>20)
	return apperrors.Wrap(ctx, apperrors.CodePayloadTooLarge, err, message)
}

// ImproveWriting rewrites text in the requested style.
func (a *API) ImproveWriting(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text  string `json:"text"`
		Style string `json:"style"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	text, err := a.service.ImproveWriting(r.Context(), req.Text, req.Style)
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": statusSuccess, "improvedText": text})
}

type sectionRequest struct {
	SectionType string `json:"sectionType"`
	Input       string `json:"input"`
	Content     string `json:"content"`
}

// ResumeSection writes a resume section from notes.
func (a *API) ResumeSection(w http.ResponseWriter, r *http.Request) {
	var req sectionRequest
	if !a.decode(w, r, &req) {
		return
	}
	section, err := a.service.GenerateSection(r.Context(), req.SectionType, req.Input)
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": statusSuccess, "section": section})
}

// ImproveSection rewrites an existing resume section.
func (a *API) ImproveSection(w http.ResponseWriter, r *http.Request) {
	var req sectionRequest
	if !a.decode(w, r, &req) {
		return
	}
	section, err := a.service.ImproveSection(r.Context(), req.SectionType, req.Content)
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": statusSuccess, "section": section})
}

// Keywords suggests ATS keywords for resume content.
func (a *API) Keywords(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content  string `json:"content"`
		Industry string `json:"industry"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	keywords, err := a.service.SuggestKeywords(r.Context(), req.Content, req.Industry)
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": statusSuccess, "keywords": keywords})
}

// FormatSection restyles resume content.
func (a *API) FormatSection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
		Format  string `json:"format"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	formatted, err := a.service.FormatSection(r.Context(), req.Content, req.Format)
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": statusSuccess, "formatted": formatted})
}

// Achievements turns responsibilities into achievement statements.
func (a *API) Achievements(w http.ResponseWriter, r *http.Request) {
	var req compose.AchievementsRequest
	if !a.decode(w, r, &req) {
		return
	}
	text, err := a.service.GenerateAchievements(r.Context(), req)
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": statusSuccess, "achievements": text})
}

// History lists recent cover letters. The limit query parameter defaults to
// core.DefaultHistoryLimit.
func (a *API) History(w http.ResponseWriter, r *http.Request) {
	if !a.requireStore(w, r) {
		return
	}
	limit := core.DefaultHistoryLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			apperrors.RespondWithError(w, r, apperrors.NewInvalidInputError("limit must be a positive integer"))
			return
		}
		limit = n
	}

	letters, err := a.store.ListCoverLetters(r.Context(), limit)
	if err != nil {
		apperrors.RespondWithError(w, r, apperrors.WrapDatabaseError(r.Context(), err, "failed to fetch history"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": statusSuccess, "history": letters})
}

// Templates lists every template available for cover letters.
func (a *API) Templates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    statusSuccess,
		"templates": a.service.Fallback().Templates(),
	})
}

type customTemplateView struct {
	core.CustomTemplate
	TemplateID string `json:"templateId"`
}

// CustomTemplates lists stored custom templates.
func (a *API) CustomTemplates(w http.ResponseWriter, r *http.Request) {
	if !a.requireStore(w, r) {
		return
	}
	stored, err := a.store.ListTemplates(r.Context())
	if err != nil {
		apperrors.RespondWithError(w, r, apperrors.WrapDatabaseError(r.Context(), err, "failed to fetch custom templates"))
		return
	}
	views := make([]customTemplateView, 0, len(stored))
	for _, tpl := range stored {
		views = append(views, customTemplateView{CustomTemplate: tpl, TemplateID: compose.CustomTemplateID(tpl.ID)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": statusSuccess, "templates": views})
}

// SaveCustomTemplate stores a template and makes it available immediately.
func (a *API) SaveCustomTemplate(w http.ResponseWriter, r *http.Request) {
	if !a.requireStore(w, r) {
		return
	}
	var tpl core.CustomTemplate
	if !a.decode(w, r, &tpl) {
		return
	}
	if err := compose.ValidateCustomTemplate(tpl); err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}

	id, err := a.store.SaveTemplate(r.Context(), tpl)
	if err != nil {
		apperrors.RespondWithError(w, r, apperrors.WrapDatabaseError(r.Context(), err, "failed to save template"))
		return
	}
	tpl.ID = id

	registered, err := a.service.RegisterCustomTemplate(tpl)
	if err != nil {
		apperrors.RespondWithError(w, r, apperrors.WrapInternal(r.Context(), err, "failed to register template"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     statusSuccess,
		"templateId": registered.ID,
		"message":    "Template saved successfully",
	})
}

// Preferences returns the saved preferences, or an empty object.
func (a *API) Preferences(w http.ResponseWriter, r *http.Request) {
	if !a.requireStore(w, r) {
		return
	}
	prefs, err := a.store.GetPreferences(r.Context())
	if err != nil {
		apperrors.RespondWithError(w, r, apperrors.WrapDatabaseError(r.Context(), err, "failed to fetch preferences"))
		return
	}
	var body any = struct{}{}
	if prefs != nil {
		body = prefs
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": statusSuccess, "preferences": body})
}

// SavePreferences replaces the saved preferences.
func (a *API) SavePreferences(w http.ResponseWriter, r *http.Request) {
	if !a.requireStore(w, r) {
		return
	}
	var prefs core.Preferences
	if !a.decode(w, r, &prefs) {
		return
	}
	if prefs.PreferredCreativity < 0 || prefs.PreferredCreativity > 10 {
		apperrors.RespondWithError(w, r, &compose.ValidationError{Field: "preferredCreativity", Message: "preferredCreativity must be between 1 and 10"})
		return
	}

	if err := a.store.UpsertPreferences(r.Context(), prefs); err != nil {
		apperrors.RespondWithError(w, r, apperrors.WrapDatabaseError(r.Context(), err, "failed to save preferences"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": statusSuccess, "message": "Preferences saved successfully"})
}

type exportRequest struct {
	Content string `json:"content"`
	export.Metadata
	Format    string `json:"format"`
	LineWidth int    `json:"lineWidth"`
	// Save writes the document to the export directory instead of returning it.
	Save bool `json:"save"`
}

// Export renders a letter as a text or Markdown attachment, or saves it to
// the export directory when save is set.
func (a *API) Export(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if !a.decode(w, r, &req) {
		return
	}
	if err := requiredFields("content", req.Content, "company", req.Company, "position", req.Position); err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}
	format, err := export.ParseFormat(req.Format)
	if err != nil {
		apperrors.RespondWithError(w, r, apperrors.NewInvalidInputError(err.Error()))
		return
	}
	style := export.Style{Format: format, LineWidth: req.LineWidth}

	if req.Save {
		path, err := a.exporter.RenderToFile(req.Content, req.Metadata, style)
		if err != nil {
			apperrors.RespondWithError(w, r, apperrors.WrapInternal(r.Context(), err, "failed to export cover letter"))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   statusSuccess,
			"path":     path,
			"filename": filepath.Base(path),
		})
		return
	}

	doc, err := a.exporter.Render(req.Content, req.Metadata, style)
	if err != nil {
		apperrors.RespondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "failed to export cover letter"))
		return
	}
	contentType := "text/plain; charset=utf-8"
	if format == export.FormatMarkdown {
		contentType = "text/markdown; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", a.exporter.Filename(req.Company, format)))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, doc)
}

// GatewayStatus reports queue, quota and fallback state.
func (a *API) GatewayStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": statusSuccess, "gateway": a.gateway.Stats()})
}

// ResetFallback clears the fallback latch so the next request tries the
// provider again.
func (a *API) ResetFallback(w http.ResponseWriter, r *http.Request) {
	a.gateway.ResetFallback()
	a.info("Fallback mode reset by operator")
	writeJSON(w, http.StatusOK, map[string]any{"status": statusSuccess, "gateway": a.gateway.Stats()})
}

// decode reads a JSON body into dst, answering 400 or 413 on failure.
func (a *API) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			apperrors.RespondWithError(w, r, apperrors.Wrap(r.Context(), apperrors.CodePayloadTooLarge, err, "request body is too large"))
			return false
		}
		apperrors.RespondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "request body must be valid JSON"))
		return false
	}
	return true
}

func (a *API) requireStore(w http.ResponseWriter, r *http.Request) bool {
	if a.store != nil {
		return true
	}
	apperrors.RespondWithError(w, r, apperrors.NewServiceUnavailableError("storage is not configured"))
	return false
}

// requiredFields takes name, value pairs.
func requiredFields(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return &compose.ValidationError{Field: pairs[i]}
		}
	}
	return nil
}

func (a *API) info(msg string, fields ...zap.Field) {
	if a.logger != nil {
		a.logger.Info(msg, fields...)
	}
}

func (a *API) warn(msg string, fields ...zap.Field) {
	if a.logger != nil {
		a.logger.Warn(msg, fields...)
	}
}
