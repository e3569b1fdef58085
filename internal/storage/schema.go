package storage

const Schema = `
CREATE TABLE IF NOT EXISTS reports (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    executive_summary TEXT NOT NULL DEFAULT '',
    approval_status TEXT NOT NULL DEFAULT 'awaiting_approval',
    rejection_reason TEXT,
    retrieval_config TEXT,
    start_date DATETIME,
    end_date DATETIME,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS categories (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    report_id INTEGER NOT NULL,
    name TEXT NOT NULL,
    position INTEGER NOT NULL,
    summary TEXT NOT NULL DEFAULT '',
    FOREIGN KEY (report_id) REFERENCES reports(id) ON DELETE CASCADE,
    UNIQUE(report_id, name)
);

CREATE INDEX IF NOT EXISTS idx_categories_report ON categories(report_id);

CREATE TABLE IF NOT EXISTS articles (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    report_id INTEGER NOT NULL,
    pmid TEXT,
    title TEXT NOT NULL,
    journal TEXT,
    pub_year INTEGER,
    pub_month INTEGER,
    pub_day INTEGER,
    abstract TEXT,
    ai_summary TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (report_id) REFERENCES reports(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_articles_report ON articles(report_id);

CREATE TABLE IF NOT EXISTS article_authors (
    article_id INTEGER NOT NULL,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    PRIMARY KEY (article_id, position),
    FOREIGN KEY (article_id) REFERENCES articles(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS pipeline_decisions (
    report_id INTEGER NOT NULL,
    article_id INTEGER NOT NULL,
    status TEXT NOT NULL,
    filter_score REAL,
    filter_score_reason TEXT,
    rank INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (report_id, article_id),
    FOREIGN KEY (report_id) REFERENCES reports(id) ON DELETE CASCADE,
    FOREIGN KEY (article_id) REFERENCES articles(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS decision_categories (
    report_id INTEGER NOT NULL,
    article_id INTEGER NOT NULL,
    category_id INTEGER NOT NULL,
    position INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (report_id, article_id, category_id),
    FOREIGN KEY (report_id, article_id) REFERENCES pipeline_decisions(report_id, article_id) ON DELETE CASCADE,
    FOREIGN KEY (category_id) REFERENCES categories(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS overrides (
    report_id INTEGER NOT NULL,
    article_id INTEGER NOT NULL,
    curator_included BOOLEAN,
    category_id INTEGER,
    notes TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (report_id, article_id),
    FOREIGN KEY (report_id) REFERENCES reports(id) ON DELETE CASCADE,
    FOREIGN KEY (article_id) REFERENCES articles(id) ON DELETE CASCADE,
    FOREIGN KEY (category_id) REFERENCES categories(id)
);

CREATE INDEX IF NOT EXISTS idx_overrides_report ON overrides(report_id);
`
