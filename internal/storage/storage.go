package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pharos-research/pharos/internal/curation"
)

type Store struct {
	db *sql.DB
}

type Report struct {
	ID               int64
	RunID            string
	Name             string
	ExecutiveSummary string
	ApprovalStatus   curation.ApprovalStatus
	RejectionReason  string
	RetrievalConfig  string
	StartDate        *time.Time
	EndDate          *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Category struct {
	ID       int64
	ReportID int64
	Name     string
	Position int
	Summary  string
}

type Article struct {
	ID        int64
	ReportID  int64
	PMID      string
	Title     string
	Journal   string
	PubYear   int
	PubMonth  int
	PubDay    int
	Abstract  string
	AISummary string
	Authors   []string
	CreatedAt time.Time
}

// NewStore creates a new database connection and initializes the schema
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Report management

// CreateReport inserts a new report in the awaiting_approval state.
func (s *Store) CreateReport(r *Report) (int64, error) {
	result, err := s.db.Exec(
		`INSERT INTO reports (run_id, name, executive_summary, retrieval_config, start_date, end_date)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Name, r.ExecutiveSummary, nullString(r.RetrievalConfig), r.StartDate, r.EndDate,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create report: %w", err)
	}
	return result.LastInsertId()
}

// GetReport returns a single report by ID.
func (s *Store) GetReport(reportID int64) (*Report, error) {
	var r Report
	var rejection, retrieval sql.NullString
	err := s.db.QueryRow(
		`SELECT id, run_id, name, executive_summary, approval_status, rejection_reason,
		        retrieval_config, start_date, end_date, created_at, updated_at
		 FROM reports WHERE id = ?`, reportID,
	).Scan(&r.ID, &r.RunID, &r.Name, &r.ExecutiveSummary, &r.ApprovalStatus,
		&rejection, &retrieval, &r.StartDate, &r.EndDate, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get report %d: %w", reportID, err)
	}
	r.RejectionReason = rejection.String
	r.RetrievalConfig = retrieval.String
	return &r, nil
}

// ListReports returns all reports, newest first.
func (s *Store) ListReports() ([]Report, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, name, executive_summary, approval_status, rejection_reason,
		        retrieval_config, start_date, end_date, created_at, updated_at
		 FROM reports ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		var r Report
		var rejection, retrieval sql.NullString
		if err := rows.Scan(&r.ID, &r.RunID, &r.Name, &r.ExecutiveSummary, &r.ApprovalStatus,
			&rejection, &retrieval, &r.StartDate, &r.EndDate, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		r.RejectionReason = rejection.String
		r.RetrievalConfig = retrieval.String
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// UpdateReportName updates the display name of a report.
func (s *Store) UpdateReportName(reportID int64, name string) error {
	_, err := s.db.Exec(
		"UPDATE reports SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		name, reportID,
	)
	if err != nil {
		return fmt.Errorf("failed to update report name: %w", err)
	}
	return nil
}

// UpdateExecutiveSummary overwrites a report's executive summary.
func (s *Store) UpdateExecutiveSummary(reportID int64, summary string) error {
	_, err := s.db.Exec(
		"UPDATE reports SET executive_summary = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		summary, reportID,
	)
	if err != nil {
		return fmt.Errorf("failed to update executive summary: %w", err)
	}
	return nil
}

// TransitionApproval moves a report's approval status from one state to
// another, atomically. Returns false (and no error) when the report was not
// in the expected source state — the caller decides what that means.
func (s *Store) TransitionApproval(reportID int64, from, to curation.ApprovalStatus, reason string) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE reports SET approval_status = ?, rejection_reason = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND approval_status = ?`,
		string(to), nullString(reason), reportID, string(from),
	)
	if err != nil {
		return false, fmt.Errorf("failed to transition approval status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return rows > 0, nil
}

// Category management

// AddCategory adds a presentation category to a report.
func (s *Store) AddCategory(reportID int64, name string, position int) (int64, error) {
	result, err := s.db.Exec(
		"INSERT INTO categories (report_id, name, position) VALUES (?, ?, ?)",
		reportID, name, position,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to add category: %w", err)
	}
	return result.LastInsertId()
}

// GetCategories returns a report's categories in presentation order.
func (s *Store) GetCategories(reportID int64) ([]Category, error) {
	rows, err := s.db.Query(
		"SELECT id, report_id, name, position, summary FROM categories WHERE report_id = ? ORDER BY position",
		reportID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get categories: %w", err)
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.ReportID, &c.Name, &c.Position, &c.Summary); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// GetCategory returns a single category by ID, or (nil, nil) when absent.
func (s *Store) GetCategory(categoryID int64) (*Category, error) {
	var c Category
	err := s.db.QueryRow(
		"SELECT id, report_id, name, position, summary FROM categories WHERE id = ?",
		categoryID,
	).Scan(&c.ID, &c.ReportID, &c.Name, &c.Position, &c.Summary)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get category %d: %w", categoryID, err)
	}
	return &c, nil
}

// UpdateCategorySummary overwrites the stored summary text for a category.
func (s *Store) UpdateCategorySummary(categoryID int64, summary string) error {
	_, err := s.db.Exec("UPDATE categories SET summary = ? WHERE id = ?", summary, categoryID)
	if err != nil {
		return fmt.Errorf("failed to update category summary: %w", err)
	}
	return nil
}

// Article management

// AddArticle adds a bibliographic record for a report run, including its
// ordered author list.
func (s *Store) AddArticle(article *Article) (int64, error) {
	result, err := s.db.Exec(
		`INSERT INTO articles (report_id, pmid, title, journal, pub_year, pub_month, pub_day, abstract)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		article.ReportID, article.PMID, article.Title, article.Journal,
		article.PubYear, article.PubMonth, article.PubDay, article.Abstract,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to add article: %w", err)
	}
	articleID, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err := s.storeArticleAuthors(articleID, article.Authors); err != nil {
		return 0, err
	}
	return articleID, nil
}

func (s *Store) storeArticleAuthors(articleID int64, authors []string) error {
	for i, name := range authors {
		_, err := s.db.Exec(
			"INSERT INTO article_authors (article_id, position, name) VALUES (?, ?, ?)",
			articleID, i, name,
		)
		if err != nil {
			return fmt.Errorf("failed to store article author: %w", err)
		}
	}
	return nil
}

// GetArticle returns a single article by ID with its authors.
func (s *Store) GetArticle(articleID int64) (*Article, error) {
	var a Article
	var pmid, journal, abstract sql.NullString
	err := s.db.QueryRow(
		`SELECT id, report_id, pmid, title, journal, pub_year, pub_month, pub_day,
		        abstract, ai_summary, created_at
		 FROM articles WHERE id = ?`, articleID,
	).Scan(&a.ID, &a.ReportID, &pmid, &a.Title, &journal,
		&a.PubYear, &a.PubMonth, &a.PubDay, &abstract, &a.AISummary, &a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get article %d: %w", articleID, err)
	}
	a.PMID = pmid.String
	a.Journal = journal.String
	a.Abstract = abstract.String

	authors, err := s.getArticleAuthors(articleID)
	if err != nil {
		return nil, err
	}
	a.Authors = authors
	return &a, nil
}

func (s *Store) getArticleAuthors(articleID int64) ([]string, error) {
	rows, err := s.db.Query(
		"SELECT name FROM article_authors WHERE article_id = ? ORDER BY position",
		articleID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get article authors: %w", err)
	}
	defer rows.Close()

	var authors []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan author: %w", err)
		}
		authors = append(authors, name)
	}
	return authors, rows.Err()
}

// GetReportArticles returns every article belonging to a report run, keyed
// by article ID, with authors attached.
func (s *Store) GetReportArticles(reportID int64) (map[int64]Article, error) {
	rows, err := s.db.Query(
		`SELECT id, report_id, pmid, title, journal, pub_year, pub_month, pub_day,
		        abstract, ai_summary, created_at
		 FROM articles WHERE report_id = ?`, reportID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get report articles: %w", err)
	}
	defer rows.Close()

	articles := make(map[int64]Article)
	for rows.Next() {
		var a Article
		var pmid, journal, abstract sql.NullString
		if err := rows.Scan(&a.ID, &a.ReportID, &pmid, &a.Title, &journal,
			&a.PubYear, &a.PubMonth, &a.PubDay, &abstract, &a.AISummary, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		a.PMID = pmid.String
		a.Journal = journal.String
		a.Abstract = abstract.String
		articles[a.ID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Attach ordered author lists in one pass.
	authorRows, err := s.db.Query(
		`SELECT aa.article_id, aa.name
		 FROM article_authors aa
		 JOIN articles a ON a.id = aa.article_id
		 WHERE a.report_id = ?
		 ORDER BY aa.article_id, aa.position`, reportID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get report authors: %w", err)
	}
	defer authorRows.Close()

	for authorRows.Next() {
		var articleID int64
		var name string
		if err := authorRows.Scan(&articleID, &name); err != nil {
			return nil, fmt.Errorf("failed to scan author: %w", err)
		}
		a := articles[articleID]
		a.Authors = append(a.Authors, name)
		articles[articleID] = a
	}
	return articles, authorRows.Err()
}

// UpdateArticleAISummary overwrites the stored AI summary for an article.
func (s *Store) UpdateArticleAISummary(articleID int64, aiSummary string) error {
	_, err := s.db.Exec("UPDATE articles SET ai_summary = ? WHERE id = ?", aiSummary, articleID)
	if err != nil {
		return fmt.Errorf("failed to update AI summary: %w", err)
	}
	return nil
}

// Pipeline decisions

// AddPipelineDecision records the pipeline's verdict for one article. The
// decision set is written once at import and read-only thereafter.
func (s *Store) AddPipelineDecision(reportID int64, dec curation.PipelineDecision) error {
	_, err := s.db.Exec(
		`INSERT INTO pipeline_decisions (report_id, article_id, status, filter_score, filter_score_reason, rank)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		reportID, dec.ArticleID, string(dec.Status), dec.FilterScore,
		nullString(dec.FilterScoreReason), dec.Rank,
	)
	if err != nil {
		return fmt.Errorf("failed to add pipeline decision: %w", err)
	}
	for i, categoryID := range dec.Categories {
		_, err := s.db.Exec(
			`INSERT INTO decision_categories (report_id, article_id, category_id, position)
			 VALUES (?, ?, ?, ?)`,
			reportID, dec.ArticleID, categoryID, i,
		)
		if err != nil {
			return fmt.Errorf("failed to add decision category: %w", err)
		}
	}
	return nil
}

// GetPipelineDecisions returns the full decision set for a report run.
func (s *Store) GetPipelineDecisions(reportID int64) ([]curation.PipelineDecision, error) {
	rows, err := s.db.Query(
		`SELECT article_id, status, filter_score, filter_score_reason, rank
		 FROM pipeline_decisions WHERE report_id = ? ORDER BY article_id`, reportID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get pipeline decisions: %w", err)
	}
	defer rows.Close()

	var decisions []curation.PipelineDecision
	index := make(map[int64]int)
	for rows.Next() {
		var dec curation.PipelineDecision
		var score sql.NullFloat64
		var reason sql.NullString
		if err := rows.Scan(&dec.ArticleID, &dec.Status, &score, &reason, &dec.Rank); err != nil {
			return nil, fmt.Errorf("failed to scan pipeline decision: %w", err)
		}
		if score.Valid {
			v := score.Float64
			dec.FilterScore = &v
		}
		dec.FilterScoreReason = reason.String
		index[dec.ArticleID] = len(decisions)
		decisions = append(decisions, dec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	catRows, err := s.db.Query(
		`SELECT article_id, category_id FROM decision_categories
		 WHERE report_id = ? ORDER BY article_id, position`, reportID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get decision categories: %w", err)
	}
	defer catRows.Close()

	for catRows.Next() {
		var articleID, categoryID int64
		if err := catRows.Scan(&articleID, &categoryID); err != nil {
			return nil, fmt.Errorf("failed to scan decision category: %w", err)
		}
		if i, ok := index[articleID]; ok {
			decisions[i].Categories = append(decisions[i].Categories, categoryID)
		}
	}
	return decisions, catRows.Err()
}

// GetPipelineDecision returns the decision for one article, or (nil, nil)
// when the article has no decision in this report.
func (s *Store) GetPipelineDecision(reportID, articleID int64) (*curation.PipelineDecision, error) {
	var dec curation.PipelineDecision
	var score sql.NullFloat64
	var reason sql.NullString
	err := s.db.QueryRow(
		`SELECT article_id, status, filter_score, filter_score_reason, rank
		 FROM pipeline_decisions WHERE report_id = ? AND article_id = ?`,
		reportID, articleID,
	).Scan(&dec.ArticleID, &dec.Status, &score, &reason, &dec.Rank)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pipeline decision for article %d: %w", articleID, err)
	}
	if score.Valid {
		v := score.Float64
		dec.FilterScore = &v
	}
	dec.FilterScoreReason = reason.String

	catRows, err := s.db.Query(
		`SELECT category_id FROM decision_categories
		 WHERE report_id = ? AND article_id = ? ORDER BY position`,
		reportID, articleID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get decision categories: %w", err)
	}
	defer catRows.Close()

	for catRows.Next() {
		var categoryID int64
		if err := catRows.Scan(&categoryID); err != nil {
			return nil, fmt.Errorf("failed to scan decision category: %w", err)
		}
		dec.Categories = append(dec.Categories, categoryID)
	}
	return &dec, catRows.Err()
}

// Overrides

// GetOverride returns the override row for one article, or (nil, nil) when
// the curator has never touched it.
func (s *Store) GetOverride(reportID, articleID int64) (*curation.Override, error) {
	var ov curation.Override
	var included sql.NullBool
	var categoryID sql.NullInt64
	err := s.db.QueryRow(
		`SELECT report_id, article_id, curator_included, category_id, notes
		 FROM overrides WHERE report_id = ? AND article_id = ?`,
		reportID, articleID,
	).Scan(&ov.ReportID, &ov.ArticleID, &included, &categoryID, &ov.Notes)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get override for article %d: %w", articleID, err)
	}
	if included.Valid {
		v := included.Bool
		ov.CuratorIncluded = &v
	}
	if categoryID.Valid {
		v := categoryID.Int64
		ov.CategoryID = &v
	}
	return &ov, nil
}

// GetOverrides returns every override row for a report, keyed by article ID.
// Rows persist after a reset, so presence alone means "curator touched this".
func (s *Store) GetOverrides(reportID int64) (map[int64]curation.Override, error) {
	rows, err := s.db.Query(
		`SELECT report_id, article_id, curator_included, category_id, notes
		 FROM overrides WHERE report_id = ?`, reportID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get overrides: %w", err)
	}
	defer rows.Close()

	overrides := make(map[int64]curation.Override)
	for rows.Next() {
		var ov curation.Override
		var included sql.NullBool
		var categoryID sql.NullInt64
		if err := rows.Scan(&ov.ReportID, &ov.ArticleID, &included, &categoryID, &ov.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan override: %w", err)
		}
		if included.Valid {
			v := included.Bool
			ov.CuratorIncluded = &v
		}
		if categoryID.Valid {
			v := categoryID.Int64
			ov.CategoryID = &v
		}
		overrides[ov.ArticleID] = ov
	}
	return overrides, rows.Err()
}

// UpsertOverride creates the override row on first curator action and
// updates it thereafter. Rows are never deleted.
func (s *Store) UpsertOverride(ov curation.Override) error {
	var included any
	if ov.CuratorIncluded != nil {
		included = *ov.CuratorIncluded
	}
	var categoryID any
	if ov.CategoryID != nil {
		categoryID = *ov.CategoryID
	}
	_, err := s.db.Exec(
		`INSERT INTO overrides (report_id, article_id, curator_included, category_id, notes, updated_at)
		 VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(report_id, article_id) DO UPDATE SET
		   curator_included = excluded.curator_included,
		   category_id = excluded.category_id,
		   notes = excluded.notes,
		   updated_at = CURRENT_TIMESTAMP`,
		ov.ReportID, ov.ArticleID, included, categoryID, ov.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert override: %w", err)
	}
	return nil
}

// HasOverrides reports whether any override row exists for a report.
func (s *Store) HasOverrides(reportID int64) (bool, error) {
	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM overrides WHERE report_id = ?", reportID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count overrides: %w", err)
	}
	return count > 0, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
