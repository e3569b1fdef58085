package pharos

import "time"

// EngineConfig configures the pharos report engine.
type EngineConfig struct {
	DBPath         string
	OllamaBaseURL  string
	SummaryModel   string
	ExecutiveModel string
	DisableGateway bool // skip regeneration gateway creation (CLI reads, tests)
}

// Report represents a generated monitoring report run.
type Report struct {
	ID               int64      `json:"id"`
	RunID            string     `json:"run_id"`
	Name             string     `json:"name"`
	ExecutiveSummary string     `json:"executive_summary,omitempty"`
	RetrievalConfig  string     `json:"retrieval_config,omitempty"`
	ApprovalStatus   string     `json:"approval_status"`
	RejectionReason  string     `json:"rejection_reason,omitempty"`
	StartDate        *time.Time `json:"start_date,omitempty"`
	EndDate          *time.Time `json:"end_date,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// ReportSummary is one row of the report list. HasCurationEdits flags runs a
// curator has touched without loading their override sets.
type ReportSummary struct {
	Report
	HasCurationEdits bool `json:"has_curation_edits"`
}

// Category represents one presentation section of a report.
type Category struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
	Summary  string `json:"summary,omitempty"`
}

// Article represents one publication attached to a report run.
type Article struct {
	ID        int64    `json:"id"`
	PMID      string   `json:"pmid,omitempty"`
	Title     string   `json:"title"`
	Journal   string   `json:"journal,omitempty"`
	PubYear   int      `json:"pub_year,omitempty"`
	PubMonth  int      `json:"pub_month,omitempty"`
	PubDay    int      `json:"pub_day,omitempty"`
	Abstract  string   `json:"abstract,omitempty"`
	AISummary string   `json:"ai_summary,omitempty"`
	Authors   []string `json:"authors,omitempty"`
}

// IncludedEntry is one article in a report's current inclusion list.
type IncludedEntry struct {
	Article
	CategoryID    *int64 `json:"category_id,omitempty"`
	CategoryName  string `json:"category_name,omitempty"`
	Uncategorized bool   `json:"uncategorized"`
	State         string `json:"state"`
	Notes         string `json:"notes,omitempty"`
}

// FilteredEntry is one article currently excluded from a report.
type FilteredEntry struct {
	Article
	FilterScore       *float64 `json:"filter_score,omitempty"`
	FilterScoreReason string   `json:"filter_score_reason,omitempty"`
	State             string   `json:"state"`
	Notes             string   `json:"notes,omitempty"`
}

// CuratedEntry is one article whose inclusion the curator changed. Together
// these entries form the audit diff against the pipeline's output.
type CuratedEntry struct {
	ArticleID       int64  `json:"article_id"`
	Title           string `json:"title"`
	CuratorIncluded bool   `json:"curator_included"`
	Notes           string `json:"notes,omitempty"`
	State           string `json:"state"`
}

// CurationStats aggregates pipeline and curator counts for a report.
type CurationStats struct {
	PipelineIncluded   int `json:"pipeline_included"`
	PipelineFiltered   int `json:"pipeline_filtered"`
	PipelineDuplicates int `json:"pipeline_duplicates"`
	CuratorAdded       int `json:"curator_added"`
	CuratorRemoved     int `json:"curator_removed"`
	CurrentIncluded    int `json:"current_included"`
}

// CurationView is the full reconciled picture of one report. It is rebuilt
// from stored decisions and overrides on every read; mutations return a fresh
// view rather than patching a previous one.
type CurationView struct {
	Report           Report          `json:"report"`
	Categories       []Category      `json:"categories"`
	Included         []IncludedEntry `json:"included"`
	FilteredOut      []FilteredEntry `json:"filtered_out"`
	Curated          []CuratedEntry  `json:"curated"`
	Stats            CurationStats   `json:"stats"`
	HasCurationEdits bool            `json:"has_curation_edits"`
}

// ResetResult reports the outcome of clearing an article's overrides.
type ResetResult struct {
	Reset   bool   `json:"reset"`
	Message string `json:"message"`
}

// ReportContentUpdate carries optional report-level edits. Nil fields are
// left unchanged.
type ReportContentUpdate struct {
	Name              *string          `json:"name,omitempty"`
	ExecutiveSummary  *string          `json:"executive_summary,omitempty"`
	CategorySummaries map[int64]string `json:"category_summaries,omitempty"`
}

// ArticleUpdate carries optional article-level edits. Nil fields are left
// unchanged.
type ArticleUpdate struct {
	AISummary *string `json:"ai_summary,omitempty"`
}
