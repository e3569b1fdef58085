// Package pharos is the public API for the report curation engine. It wraps
// the internal storage, reconciliation logic, and the AI regeneration gateway.
package pharos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/pharos-research/pharos/internal/ai"
	"github.com/pharos-research/pharos/internal/curation"
	"github.com/pharos-research/pharos/internal/ingest"
	"github.com/pharos-research/pharos/internal/storage"
)

// ErrNotFound is returned when a report, article, or category does not exist.
var ErrNotFound = errors.New("not found")

// Engine owns a report database and applies curator actions to it. Every
// mutation re-derives the full curation view from stored state.
type Engine struct {
	store   *storage.Store
	gateway *ai.Gateway
	config  *storage.Config
}

// NewEngine creates a pharos engine backed by the given SQLite database.
// The regeneration gateway is created eagerly but only contacts Ollama when
// a regeneration is requested.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.OllamaBaseURL == "" {
		cfg.OllamaBaseURL = "http://localhost:11434"
	}
	if cfg.SummaryModel == "" {
		cfg.SummaryModel = "llama3"
	}
	if cfg.ExecutiveModel == "" {
		cfg.ExecutiveModel = cfg.SummaryModel
	}

	store, err := storage.NewStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	storeCfg := storage.DefaultConfig()
	storeCfg.Database.Path = cfg.DBPath
	storeCfg.Ollama.BaseURL = cfg.OllamaBaseURL
	storeCfg.Ollama.SummaryModel = cfg.SummaryModel
	storeCfg.Ollama.ExecutiveModel = cfg.ExecutiveModel

	engine := &Engine{store: store, config: storeCfg}

	if !cfg.DisableGateway {
		gateway, err := ai.NewGateway(storeCfg)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("create regeneration gateway: %w", err)
		}
		engine.gateway = gateway
	}

	return engine, nil
}

// ImportRun loads a pipeline run document from disk and stores it as a new
// report awaiting approval. An empty runID gets a generated one.
func (e *Engine) ImportRun(path, runID string) (int64, error) {
	doc, err := ingest.Load(path)
	if err != nil {
		return 0, err
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	reportID, err := ingest.Import(e.store, doc, runID)
	if err != nil {
		return 0, err
	}
	log.Printf("pharos: imported run %s as report %d (%d articles)", runID, reportID, len(doc.Articles))
	return reportID, nil
}

// ListReports returns all reports, newest first, each flagged with whether a
// curator has touched it.
func (e *Engine) ListReports() ([]ReportSummary, error) {
	internal, err := e.store.ListReports()
	if err != nil {
		return nil, err
	}
	reports := make([]ReportSummary, len(internal))
	for i, r := range internal {
		edited, err := e.store.HasOverrides(r.ID)
		if err != nil {
			return nil, err
		}
		reports[i] = ReportSummary{Report: reportFromInternal(r), HasCurationEdits: edited}
	}
	return reports, nil
}

// GetReport returns one report's metadata.
func (e *Engine) GetReport(reportID int64) (*Report, error) {
	r, err := e.getReport(reportID)
	if err != nil {
		return nil, err
	}
	report := reportFromInternal(*r)
	return &report, nil
}

// GetCurationView returns the reconciled view of a report: included and
// filtered articles, the curator's diff against the pipeline, and stats.
func (e *Engine) GetCurationView(reportID int64) (*CurationView, error) {
	report, err := e.getReport(reportID)
	if err != nil {
		return nil, err
	}
	return e.assembleView(report)
}

// ExcludeArticle removes an article from the report's inclusion list.
func (e *Engine) ExcludeArticle(reportID, articleID int64) (*CurationView, error) {
	return e.mutateOverride(reportID, articleID, func(dec curation.PipelineDecision, ov curation.Override) (curation.Override, bool, error) {
		return curation.Exclude(dec, ov)
	})
}

// IncludeArticle adds an article the pipeline filtered out (or the curator
// removed) back to the inclusion list, optionally into a category.
func (e *Engine) IncludeArticle(reportID, articleID int64, categoryID *int64) (*CurationView, error) {
	if categoryID != nil {
		if err := e.checkCategory(reportID, *categoryID); err != nil {
			return nil, err
		}
	}
	return e.mutateOverride(reportID, articleID, func(dec curation.PipelineDecision, ov curation.Override) (curation.Override, bool, error) {
		return curation.Include(dec, ov, categoryID)
	})
}

// ResetCuration returns an article to its pipeline outcome, clearing the
// curator's inclusion and category overrides. Notes survive. The override
// row itself is kept so the report still counts as curator-touched.
func (e *Engine) ResetCuration(reportID, articleID int64) (*CurationView, *ResetResult, error) {
	_, ov, err := e.loadDecision(reportID, articleID)
	if err != nil {
		return nil, nil, err
	}

	result := &ResetResult{}
	newOv, changed := curation.Reset(ov)
	if changed {
		if err := e.store.UpsertOverride(newOv); err != nil {
			return nil, nil, err
		}
		result.Reset = true
		result.Message = fmt.Sprintf("article %d restored to pipeline decision", articleID)
	} else {
		result.Message = fmt.Sprintf("article %d has no overrides to reset", articleID)
	}

	view, err := e.GetCurationView(reportID)
	if err != nil {
		return nil, nil, err
	}
	return view, result, nil
}

// SetArticleCategory moves an included article to a different category.
// Assigning the article's own pipeline category clears the override instead
// of recording a redundant one.
func (e *Engine) SetArticleCategory(reportID, articleID int64, categoryID *int64) (*CurationView, error) {
	if categoryID != nil {
		if err := e.checkCategory(reportID, *categoryID); err != nil {
			return nil, err
		}
	}
	return e.mutateOverride(reportID, articleID, func(dec curation.PipelineDecision, ov curation.Override) (curation.Override, bool, error) {
		return curation.SetCategory(dec, ov, categoryID)
	})
}

// UpdateCurationNotes sets the curator's free-text notes on an article.
func (e *Engine) UpdateCurationNotes(reportID, articleID int64, notes string) (*CurationView, error) {
	return e.mutateOverride(reportID, articleID, func(dec curation.PipelineDecision, ov curation.Override) (curation.Override, bool, error) {
		newOv, changed := curation.SetNotes(ov, notes)
		return newOv, changed, nil
	})
}

// UpdateReportContent applies report-level edits (name, executive summary,
// category section summaries).
// Content edits remain allowed after approval or rejection; only the
// approval status itself is frozen.
func (e *Engine) UpdateReportContent(reportID int64, update ReportContentUpdate) (*Report, error) {
	if _, err := e.getReport(reportID); err != nil {
		return nil, err
	}
	if update.Name != nil {
		if strings.TrimSpace(*update.Name) == "" {
			return nil, &curation.ValidationError{Field: "name", Reason: "report name cannot be empty"}
		}
		if err := e.store.UpdateReportName(reportID, *update.Name); err != nil {
			return nil, err
		}
	}
	if update.ExecutiveSummary != nil {
		if err := e.store.UpdateExecutiveSummary(reportID, *update.ExecutiveSummary); err != nil {
			return nil, err
		}
	}
	for categoryID, summary := range update.CategorySummaries {
		if err := e.checkCategory(reportID, categoryID); err != nil {
			return nil, err
		}
		if err := e.store.UpdateCategorySummary(categoryID, summary); err != nil {
			return nil, err
		}
	}
	return e.GetReport(reportID)
}

// UpdateArticle applies article-level edits within a report.
func (e *Engine) UpdateArticle(reportID, articleID int64, update ArticleUpdate) (*Article, error) {
	if _, _, err := e.loadDecision(reportID, articleID); err != nil {
		return nil, err
	}
	if update.AISummary != nil {
		if err := e.store.UpdateArticleAISummary(articleID, *update.AISummary); err != nil {
			return nil, err
		}
	}
	a, err := e.store.GetArticle(articleID)
	if err != nil {
		return nil, err
	}
	article := articleFromInternal(*a)
	return &article, nil
}

// ApproveReport marks a report approved. Approval is terminal.
func (e *Engine) ApproveReport(reportID int64) (*Report, error) {
	return e.transition(reportID, func(current curation.ApprovalStatus) (curation.ApprovalStatus, error) {
		return curation.Approve(current)
	}, "")
}

// RejectReport marks a report rejected with a mandatory reason. Rejection is
// terminal; a corrected report comes from a new pipeline run.
func (e *Engine) RejectReport(reportID int64, reason string) (*Report, error) {
	return e.transition(reportID, func(current curation.ApprovalStatus) (curation.ApprovalStatus, error) {
		return curation.Reject(current, reason)
	}, strings.TrimSpace(reason))
}

// RegenerateExecutiveSummary rebuilds the report's executive summary from
// its current inclusion list and stores the result.
func (e *Engine) RegenerateExecutiveSummary(ctx context.Context, reportID int64) (*Report, error) {
	report, err := e.getReport(reportID)
	if err != nil {
		return nil, err
	}
	view, err := e.assembleView(report)
	if err != nil {
		return nil, err
	}

	input := ai.ExecutiveInput{ReportName: report.Name}
	if report.StartDate != nil && report.EndDate != nil {
		input.DateRange = fmt.Sprintf("%s to %s",
			report.StartDate.Format("2006-01-02"), report.EndDate.Format("2006-01-02"))
	}
	sections := make(map[string]*ai.SectionInput)
	var order []string
	for _, entry := range view.Included {
		name := entry.CategoryName
		if name == "" {
			name = "Uncategorized"
		}
		sec, ok := sections[name]
		if !ok {
			sec = &ai.SectionInput{CategoryName: name}
			sections[name] = sec
			order = append(order, name)
		}
		sec.Articles = append(sec.Articles, ai.ArticleInput{Title: entry.Title, Summary: entry.AISummary})
	}
	for _, name := range order {
		input.Sections = append(input.Sections, *sections[name])
	}

	summary, err := e.regenerate(ctx, "regenerate executive summary", func() (string, error) {
		return e.gateway.ExecutiveSummary(ctx, reportID, input)
	})
	if err != nil {
		return nil, err
	}
	if err := e.store.UpdateExecutiveSummary(reportID, summary); err != nil {
		return nil, err
	}
	return e.GetReport(reportID)
}

// RegenerateCategorySummary rebuilds one section's summary paragraph from
// the articles currently included in it.
func (e *Engine) RegenerateCategorySummary(ctx context.Context, reportID, categoryID int64) (*Category, error) {
	if err := e.checkCategory(reportID, categoryID); err != nil {
		return nil, err
	}
	report, err := e.getReport(reportID)
	if err != nil {
		return nil, err
	}
	view, err := e.assembleView(report)
	if err != nil {
		return nil, err
	}

	var categoryName string
	for _, c := range view.Categories {
		if c.ID == categoryID {
			categoryName = c.Name
		}
	}
	var articles []ai.ArticleInput
	for _, entry := range view.Included {
		if entry.CategoryID != nil && *entry.CategoryID == categoryID {
			articles = append(articles, ai.ArticleInput{Title: entry.Title, Summary: entry.AISummary})
		}
	}

	summary, err := e.regenerate(ctx, "regenerate category summary", func() (string, error) {
		return e.gateway.CategorySummary(ctx, categoryID, categoryName, articles)
	})
	if err != nil {
		return nil, err
	}
	if err := e.store.UpdateCategorySummary(categoryID, summary); err != nil {
		return nil, err
	}

	c, err := e.store.GetCategory(categoryID)
	if err != nil {
		return nil, err
	}
	return &Category{ID: c.ID, Name: c.Name, Position: c.Position, Summary: c.Summary}, nil
}

// RegenerateArticleSummary rebuilds the AI summary for one article.
func (e *Engine) RegenerateArticleSummary(ctx context.Context, reportID, articleID int64) (*Article, error) {
	if _, _, err := e.loadDecision(reportID, articleID); err != nil {
		return nil, err
	}
	a, err := e.store.GetArticle(articleID)
	if err != nil {
		return nil, err
	}

	summary, err := e.regenerate(ctx, "regenerate article summary", func() (string, error) {
		return e.gateway.ArticleSummary(ctx, articleID, ai.ArticleInput{
			Title:    a.Title,
			Journal:  a.Journal,
			Authors:  a.Authors,
			Abstract: a.Abstract,
		})
	})
	if err != nil {
		return nil, err
	}
	if err := e.store.UpdateArticleAISummary(articleID, summary); err != nil {
		return nil, err
	}
	return e.UpdateArticle(reportID, articleID, ArticleUpdate{})
}

// Close releases all resources held by the engine.
func (e *Engine) Close() error {
	return e.store.Close()
}

// --- internals ---

func (e *Engine) getReport(reportID int64) (*storage.Report, error) {
	report, err := e.store.GetReport(reportID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("report %d: %w", reportID, ErrNotFound)
		}
		return nil, err
	}
	return report, nil
}

// loadDecision resolves an article's pipeline decision and its current
// override row, creating an empty override value when none exists.
func (e *Engine) loadDecision(reportID, articleID int64) (curation.PipelineDecision, curation.Override, error) {
	if _, err := e.getReport(reportID); err != nil {
		return curation.PipelineDecision{}, curation.Override{}, err
	}
	dec, err := e.store.GetPipelineDecision(reportID, articleID)
	if err != nil {
		return curation.PipelineDecision{}, curation.Override{}, err
	}
	if dec == nil {
		return curation.PipelineDecision{}, curation.Override{},
			fmt.Errorf("article %d in report %d: %w", articleID, reportID, ErrNotFound)
	}
	ov, err := e.store.GetOverride(reportID, articleID)
	if err != nil {
		return curation.PipelineDecision{}, curation.Override{}, err
	}
	if ov == nil {
		ov = &curation.Override{ReportID: reportID, ArticleID: articleID}
	}
	return *dec, *ov, nil
}

func (e *Engine) mutateOverride(reportID, articleID int64,
	apply func(curation.PipelineDecision, curation.Override) (curation.Override, bool, error)) (*CurationView, error) {

	dec, ov, err := e.loadDecision(reportID, articleID)
	if err != nil {
		return nil, err
	}
	newOv, changed, err := apply(dec, ov)
	if err != nil {
		return nil, err
	}
	if changed {
		if err := e.store.UpsertOverride(newOv); err != nil {
			return nil, err
		}
	}
	return e.GetCurationView(reportID)
}

func (e *Engine) checkCategory(reportID, categoryID int64) error {
	c, err := e.store.GetCategory(categoryID)
	if err != nil {
		return err
	}
	if c == nil || c.ReportID != reportID {
		return &curation.ValidationError{
			Field:  "category_id",
			Reason: fmt.Sprintf("category %d does not belong to report %d", categoryID, reportID),
		}
	}
	return nil
}

func (e *Engine) transition(reportID int64,
	next func(curation.ApprovalStatus) (curation.ApprovalStatus, error), reason string) (*Report, error) {

	report, err := e.getReport(reportID)
	if err != nil {
		return nil, err
	}
	to, err := next(report.ApprovalStatus)
	if err != nil {
		return nil, err
	}
	ok, err := e.store.TransitionApproval(reportID, report.ApprovalStatus, to, reason)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Someone else transitioned the report between our read and write.
		current, err := e.getReport(reportID)
		if err != nil {
			return nil, err
		}
		return nil, &curation.InvalidTransitionError{From: current.ApprovalStatus, To: to}
	}
	log.Printf("pharos: report %d transitioned %s -> %s", reportID, report.ApprovalStatus, to)
	return e.GetReport(reportID)
}

func (e *Engine) regenerate(ctx context.Context, op string, fn func() (string, error)) (string, error) {
	if e.gateway == nil {
		return "", &curation.UpstreamError{Op: op, Err: errors.New("regeneration gateway not configured")}
	}
	text, err := fn()
	if err != nil {
		return "", &curation.UpstreamError{Op: op, Err: err}
	}
	return text, nil
}

func (e *Engine) assembleView(report *storage.Report) (*CurationView, error) {
	decisions, err := e.store.GetPipelineDecisions(report.ID)
	if err != nil {
		return nil, err
	}
	overrides, err := e.store.GetOverrides(report.ID)
	if err != nil {
		return nil, err
	}
	internalCategories, err := e.store.GetCategories(report.ID)
	if err != nil {
		return nil, err
	}
	articles, err := e.store.GetReportArticles(report.ID)
	if err != nil {
		return nil, err
	}

	reconCategories := make([]curation.Category, len(internalCategories))
	categoryNames := make(map[int64]string, len(internalCategories))
	for i, c := range internalCategories {
		reconCategories[i] = curation.Category{ID: c.ID, Name: c.Name, Position: c.Position}
		categoryNames[c.ID] = c.Name
	}

	recon := curation.Reconcile(decisions, overrides, reconCategories)

	view := &CurationView{
		Report:           reportFromInternal(*report),
		Categories:       make([]Category, len(internalCategories)),
		Included:         make([]IncludedEntry, 0, len(recon.Included)),
		FilteredOut:      make([]FilteredEntry, 0, len(recon.FilteredOut)),
		Curated:          make([]CuratedEntry, 0, len(recon.Curated)),
		Stats:            CurationStats(recon.Stats),
		HasCurationEdits: recon.HasCurationEdits,
	}
	for i, c := range internalCategories {
		view.Categories[i] = Category{ID: c.ID, Name: c.Name, Position: c.Position, Summary: c.Summary}
	}
	notes := func(articleID int64) string {
		return overrides[articleID].Notes
	}
	for _, entry := range recon.Included {
		row := IncludedEntry{
			Article:       articleFromInternal(articles[entry.ArticleID]),
			CategoryID:    entry.CategoryID,
			Uncategorized: entry.Uncategorized,
			State:         string(entry.State),
			Notes:         notes(entry.ArticleID),
		}
		if entry.CategoryID != nil {
			row.CategoryName = categoryNames[*entry.CategoryID]
		}
		view.Included = append(view.Included, row)
	}
	for _, entry := range recon.FilteredOut {
		view.FilteredOut = append(view.FilteredOut, FilteredEntry{
			Article:           articleFromInternal(articles[entry.ArticleID]),
			FilterScore:       entry.FilterScore,
			FilterScoreReason: entry.FilterScoreReason,
			State:             string(entry.State),
			Notes:             notes(entry.ArticleID),
		})
	}
	for _, entry := range recon.Curated {
		view.Curated = append(view.Curated, CuratedEntry{
			ArticleID:       entry.ArticleID,
			Title:           articles[entry.ArticleID].Title,
			CuratorIncluded: entry.CuratorIncluded,
			Notes:           entry.Notes,
			State:           string(entry.State),
		})
	}
	return view, nil
}

// --- internal type conversion helpers ---

func reportFromInternal(r storage.Report) Report {
	return Report{
		ID:               r.ID,
		RunID:            r.RunID,
		Name:             r.Name,
		ExecutiveSummary: r.ExecutiveSummary,
		RetrievalConfig:  r.RetrievalConfig,
		ApprovalStatus:   string(r.ApprovalStatus),
		RejectionReason:  r.RejectionReason,
		StartDate:        r.StartDate,
		EndDate:          r.EndDate,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func articleFromInternal(a storage.Article) Article {
	return Article{
		ID:        a.ID,
		PMID:      a.PMID,
		Title:     a.Title,
		Journal:   a.Journal,
		PubYear:   a.PubYear,
		PubMonth:  a.PubMonth,
		PubDay:    a.PubDay,
		Abstract:  a.Abstract,
		AISummary: a.AISummary,
		Authors:   a.Authors,
	}
}
