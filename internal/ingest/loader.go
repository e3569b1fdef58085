// Package ingest loads pipeline run documents and imports them as reports.
//
// A run document is the YAML hand-off from the retrieval pipeline: report
// metadata, presentation categories in order, and one decided article per
// entry. Import is the only writer of pipeline decisions; everything after
// import treats them as read-only.
package ingest

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pharos-research/pharos/internal/curation"
	"github.com/pharos-research/pharos/internal/storage"
)

type RunDocument struct {
	RunID            string        `yaml:"run_id,omitempty"`
	Name             string        `yaml:"name"`
	ExecutiveSummary string        `yaml:"executive_summary,omitempty"`
	RetrievalConfig  string        `yaml:"retrieval_config,omitempty"`
	StartDate        string        `yaml:"start_date,omitempty"`
	EndDate          string        `yaml:"end_date,omitempty"`
	Categories       []CategoryDoc `yaml:"categories"`
	Articles         []ArticleDoc  `yaml:"articles"`
}

type CategoryDoc struct {
	Name    string `yaml:"name"`
	Summary string `yaml:"summary,omitempty"`
}

type ArticleDoc struct {
	PMID      string      `yaml:"pmid,omitempty"`
	Title     string      `yaml:"title"`
	Journal   string      `yaml:"journal,omitempty"`
	PubYear   int         `yaml:"pub_year,omitempty"`
	PubMonth  int         `yaml:"pub_month,omitempty"`
	PubDay    int         `yaml:"pub_day,omitempty"`
	Abstract  string      `yaml:"abstract,omitempty"`
	AISummary string      `yaml:"ai_summary,omitempty"`
	Authors   []string    `yaml:"authors,omitempty"`
	Decision  DecisionDoc `yaml:"decision"`
}

type DecisionDoc struct {
	Status            string   `yaml:"status"`
	FilterScore       *float64 `yaml:"filter_score,omitempty"`
	FilterScoreReason string   `yaml:"filter_score_reason,omitempty"`
	Categories        []string `yaml:"categories,omitempty"`
	Rank              int      `yaml:"rank,omitempty"`
}

// Load reads and validates a run document from disk.
func Load(path string) (*RunDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run document: %w", err)
	}
	var doc RunDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse run document: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks document-level invariants before anything touches the
// database.
func (doc *RunDocument) Validate() error {
	if strings.TrimSpace(doc.Name) == "" {
		return &curation.ValidationError{Field: "name", Reason: "report name is required"}
	}

	known := make(map[string]bool, len(doc.Categories))
	for i, cat := range doc.Categories {
		if strings.TrimSpace(cat.Name) == "" {
			return &curation.ValidationError{
				Field:  fmt.Sprintf("categories[%d].name", i),
				Reason: "category name is required",
			}
		}
		if known[cat.Name] {
			return &curation.ValidationError{
				Field:  fmt.Sprintf("categories[%d].name", i),
				Reason: fmt.Sprintf("duplicate category %q", cat.Name),
			}
		}
		known[cat.Name] = true
	}

	for i, art := range doc.Articles {
		if strings.TrimSpace(art.Title) == "" {
			return &curation.ValidationError{
				Field:  fmt.Sprintf("articles[%d].title", i),
				Reason: "article title is required",
			}
		}
		status := curation.DecisionStatus(art.Decision.Status)
		if !status.Valid() {
			return &curation.ValidationError{
				Field:  fmt.Sprintf("articles[%d].decision.status", i),
				Reason: fmt.Sprintf("unknown decision status %q", art.Decision.Status),
			}
		}
		if score := art.Decision.FilterScore; score != nil && (*score < 0 || *score > 1) {
			return &curation.ValidationError{
				Field:  fmt.Sprintf("articles[%d].decision.filter_score", i),
				Reason: fmt.Sprintf("filter score %v outside [0, 1]", *score),
			}
		}
		for _, name := range art.Decision.Categories {
			if !known[name] {
				return &curation.ValidationError{
					Field:  fmt.Sprintf("articles[%d].decision.categories", i),
					Reason: fmt.Sprintf("unknown category %q", name),
				}
			}
		}
	}
	return nil
}

// Import writes a validated run document into the store and returns the new
// report ID.
func Import(store *storage.Store, doc *RunDocument, runID string) (int64, error) {
	if err := doc.Validate(); err != nil {
		return 0, err
	}

	startDate, err := parseDate(doc.StartDate)
	if err != nil {
		return 0, &curation.ValidationError{Field: "start_date", Reason: err.Error()}
	}
	endDate, err := parseDate(doc.EndDate)
	if err != nil {
		return 0, &curation.ValidationError{Field: "end_date", Reason: err.Error()}
	}

	reportID, err := store.CreateReport(&storage.Report{
		RunID:            runID,
		Name:             doc.Name,
		ExecutiveSummary: doc.ExecutiveSummary,
		RetrievalConfig:  doc.RetrievalConfig,
		StartDate:        startDate,
		EndDate:          endDate,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to import run: %w", err)
	}

	categoryIDs := make(map[string]int64, len(doc.Categories))
	for i, cat := range doc.Categories {
		categoryID, err := store.AddCategory(reportID, cat.Name, i)
		if err != nil {
			return 0, fmt.Errorf("failed to import category %q: %w", cat.Name, err)
		}
		if cat.Summary != "" {
			if err := store.UpdateCategorySummary(categoryID, cat.Summary); err != nil {
				return 0, fmt.Errorf("failed to import category %q: %w", cat.Name, err)
			}
		}
		categoryIDs[cat.Name] = categoryID
	}

	for _, art := range doc.Articles {
		articleID, err := store.AddArticle(&storage.Article{
			ReportID: reportID,
			PMID:     art.PMID,
			Title:    art.Title,
			Journal:  art.Journal,
			PubYear:  art.PubYear,
			PubMonth: art.PubMonth,
			PubDay:   art.PubDay,
			Abstract: art.Abstract,
			Authors:  art.Authors,
		})
		if err != nil {
			return 0, fmt.Errorf("failed to import article %q: %w", art.Title, err)
		}
		if art.AISummary != "" {
			if err := store.UpdateArticleAISummary(articleID, art.AISummary); err != nil {
				return 0, fmt.Errorf("failed to import article %q: %w", art.Title, err)
			}
		}

		dec := curation.PipelineDecision{
			ArticleID:         articleID,
			Status:            curation.DecisionStatus(art.Decision.Status),
			FilterScore:       art.Decision.FilterScore,
			FilterScoreReason: art.Decision.FilterScoreReason,
			Rank:              art.Decision.Rank,
		}
		for _, name := range art.Decision.Categories {
			dec.Categories = append(dec.Categories, categoryIDs[name])
		}
		if err := store.AddPipelineDecision(reportID, dec); err != nil {
			return 0, fmt.Errorf("failed to import decision for %q: %w", art.Title, err)
		}
	}

	return reportID, nil
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return &t, nil
}
