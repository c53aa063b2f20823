package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/philippeb99/researcher-sub001/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is the default
// backend for local single-user runs; Postgres serves the shared server.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS research_jobs (
	id                      TEXT PRIMARY KEY,
	user_id                 TEXT NOT NULL,
	company_name            TEXT NOT NULL,
	website                 TEXT NOT NULL DEFAULT '',
	country                 TEXT NOT NULL DEFAULT '',
	city                    TEXT NOT NULL DEFAULT '',
	ceo_name                TEXT NOT NULL DEFAULT '',
	overview                TEXT NOT NULL DEFAULT '',
	industry_business_model TEXT NOT NULL DEFAULT '',
	market_position         TEXT NOT NULL DEFAULT '',
	recent_developments     TEXT NOT NULL DEFAULT '',
	financials              TEXT NOT NULL DEFAULT '',
	employee_count          INTEGER,
	revenue_amount          INTEGER,
	enrichment_status       TEXT NOT NULL DEFAULT 'not_started',
	enrichment_phases       TEXT NOT NULL DEFAULT '[]',
	enrichment_metadata     TEXT,
	data_sources            TEXT NOT NULL DEFAULT '[]',
	validation_score        INTEGER NOT NULL DEFAULT 0,
	data_quality_score      INTEGER NOT NULL DEFAULT 0,
	last_enriched_at        DATETIME,
	version                 INTEGER NOT NULL DEFAULT 0,
	created_at              DATETIME NOT NULL,
	updated_at              DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_research_jobs_user_id ON research_jobs(user_id);
CREATE INDEX IF NOT EXISTS idx_research_jobs_status ON research_jobs(enrichment_status);

CREATE TABLE IF NOT EXISTS executives (
	id               TEXT PRIMARY KEY,
	job_id           TEXT NOT NULL REFERENCES research_jobs(id) ON DELETE CASCADE,
	name             TEXT NOT NULL,
	position         TEXT NOT NULL DEFAULT '',
	linkedin_url     TEXT NOT NULL DEFAULT '',
	confidence_score INTEGER,
	last_verified_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_executives_job_id ON executives(job_id);

CREATE TABLE IF NOT EXISTS news_items (
	id                       TEXT PRIMARY KEY,
	job_id                   TEXT NOT NULL REFERENCES research_jobs(id) ON DELETE CASCADE,
	title                    TEXT NOT NULL,
	url                      TEXT NOT NULL,
	summary                  TEXT NOT NULL DEFAULT '',
	source_domain            TEXT NOT NULL DEFAULT '',
	published_at             DATETIME,
	relevance_score          INTEGER NOT NULL DEFAULT 0,
	confidence_level         TEXT NOT NULL DEFAULT 'low',
	source_credibility_score INTEGER,
	UNIQUE (job_id, url)
);

CREATE INDEX IF NOT EXISTS idx_news_items_job_id ON news_items(job_id);

CREATE TABLE IF NOT EXISTS source_credibility (
	domain     TEXT PRIMARY KEY,
	score      REAL NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS api_call_logs (
	id          TEXT PRIMARY KEY,
	job_id      TEXT,
	api_name    TEXT NOT NULL,
	endpoint    TEXT NOT NULL,
	request     TEXT NOT NULL DEFAULT '',
	response    TEXT NOT NULL DEFAULT '',
	status_code INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_api_call_logs_job_id ON api_call_logs(job_id);

CREATE TABLE IF NOT EXISTS validation_logs (
	id               TEXT PRIMARY KEY,
	job_id           TEXT NOT NULL,
	inputs           TEXT NOT NULL,
	score            INTEGER NOT NULL,
	confidence_level TEXT NOT NULL,
	details          TEXT NOT NULL,
	model            TEXT NOT NULL DEFAULT '',
	created_at       DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_validation_logs_job_id ON validation_logs(job_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateJob(ctx context.Context, job *model.ResearchJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	if job.EnrichmentStatus == "" {
		job.EnrichmentStatus = model.EnrichmentNotStarted
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO research_jobs
			(id, user_id, company_name, website, country, city, ceo_name, enrichment_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.UserID, job.CompanyName, job.Website, job.Country, job.City,
		job.CEOName, string(job.EnrichmentStatus), now, now,
	)
	return eris.Wrap(err, "sqlite: create job")
}

func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*model.ResearchJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, company_name, website, country, city, ceo_name,
			overview, industry_business_model, market_position, recent_developments, financials,
			employee_count, revenue_amount, enrichment_status, enrichment_phases,
			enrichment_metadata, data_sources, validation_score, data_quality_score,
			last_enriched_at, version, created_at, updated_at
		FROM research_jobs WHERE id = ?`,
		id,
	)

	var (
		job          model.ResearchJob
		status       string
		phasesJSON   string
		metadataJSON sql.NullString
		sourcesJSON  string
	)
	err := row.Scan(
		&job.ID, &job.UserID, &job.CompanyName, &job.Website, &job.Country, &job.City, &job.CEOName,
		&job.Overview, &job.IndustryBusinessModel, &job.MarketPosition, &job.RecentDevelopments, &job.Financials,
		&job.EmployeeCount, &job.RevenueAmount, &status, &phasesJSON,
		&metadataJSON, &sourcesJSON, &job.ValidationScore, &job.DataQualityScore,
		&job.LastEnrichedAt, &job.Version, &job.CreatedAt, &job.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get job")
	}

	job.EnrichmentStatus = model.EnrichmentStatus(status)
	if phasesJSON != "" {
		if err := json.Unmarshal([]byte(phasesJSON), &job.EnrichmentPhases); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal phases")
		}
	}
	if sourcesJSON != "" {
		if err := json.Unmarshal([]byte(sourcesJSON), &job.DataSources); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal data sources")
		}
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		var md model.RunMetadata
		if err := json.Unmarshal([]byte(metadataJSON.String), &md); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal metadata")
		}
		job.EnrichmentMetadata = &md
	}

	return &job, nil
}

func (s *SQLiteStore) SetEnrichmentStatus(ctx context.Context, jobID string, status model.EnrichmentStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE research_jobs SET enrichment_status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: set enrichment status")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// FillCompanyFields writes each incoming field with its own guarded UPDATE:
// the empty-only check lives in the statement itself, so a concurrent phase
// committing between two calls can never be overwritten by a stale snapshot.
func (s *SQLiteStore) FillCompanyFields(ctx context.Context, jobID string, data model.CompanyData) ([]string, error) {
	now := time.Now().UTC()
	var filled []string
	fill := func(field, column, guard string, value any) error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE research_jobs SET `+column+` = ?, updated_at = ? WHERE id = ? AND `+guard,
			value, now, jobID,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: fill %s", field)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return eris.Wrap(err, "sqlite: rows affected")
		}
		if n > 0 {
			filled = append(filled, field)
		}
		return nil
	}

	if data.EmployeeCount != nil {
		if err := fill("employee_count", "employee_count", "employee_count IS NULL", *data.EmployeeCount); err != nil {
			return nil, err
		}
	}
	if data.RevenueAmount != nil {
		if err := fill("revenue_amount", "revenue_amount", "revenue_amount IS NULL", *data.RevenueAmount); err != nil {
			return nil, err
		}
	}
	if data.IndustryBusinessModel != "" {
		if err := fill("industry_business_model", "industry_business_model",
			"(industry_business_model IS NULL OR industry_business_model = '')", data.IndustryBusinessModel); err != nil {
			return nil, err
		}
	}
	if data.Overview != "" {
		if err := fill("overview", "overview", "(overview IS NULL OR overview = '')", data.Overview); err != nil {
			return nil, err
		}
	}
	if data.Website != "" {
		if err := fill("website", "website", "(website IS NULL OR website = '')", data.Website); err != nil {
			return nil, err
		}
	}
	return filled, nil
}

func (s *SQLiteStore) FinalizeEnrichment(ctx context.Context, jobID string, version int64, params FinalizeParams) error {
	phasesJSON, err := json.Marshal(params.Phases)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal phases")
	}
	sourcesJSON, err := json.Marshal(params.DataSources)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal data sources")
	}
	metadataJSON, err := json.Marshal(params.Metadata)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal metadata")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE research_jobs SET enrichment_phases = ?, enrichment_metadata = ?,
			data_sources = ?, validation_score = ?, data_quality_score = ?, enrichment_status = ?,
			last_enriched_at = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		string(phasesJSON), string(metadataJSON), string(sourcesJSON),
		params.ValidationScore, params.ValidationScore, string(params.Status),
		params.EnrichedAt, params.EnrichedAt, jobID, version,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: finalize enrichment")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		if _, getErr := s.GetJob(ctx, jobID); errors.Is(getErr, ErrNotFound) {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

func (s *SQLiteStore) SetRecentDevelopments(ctx context.Context, jobID, text string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE research_jobs SET recent_developments = ?, updated_at = ?
		WHERE id = ? AND recent_developments = ''`,
		text, time.Now().UTC(), jobID,
	)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: set recent developments")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) ListExecutives(ctx context.Context, jobID string) ([]model.Executive, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, name, position, linkedin_url, confidence_score, last_verified_at
		FROM executives WHERE job_id = ? ORDER BY name`,
		jobID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list executives")
	}
	defer rows.Close()

	var execs []model.Executive
	for rows.Next() {
		var e model.Executive
		if err := rows.Scan(&e.ID, &e.JobID, &e.Name, &e.Position, &e.LinkedInURL, &e.ConfidenceScore, &e.LastVerifiedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan executive")
		}
		execs = append(execs, e)
	}
	return execs, eris.Wrap(rows.Err(), "sqlite: list executives iterate")
}

// AddExecutive inserts a person under a job. Used by the CLI and tests;
// enrichment itself only updates existing rows.
func (s *SQLiteStore) AddExecutive(ctx context.Context, exec *model.Executive) error {
	if exec.ID == "" {
		exec.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO executives (id, job_id, name, position, linkedin_url, confidence_score, last_verified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		exec.ID, exec.JobID, exec.Name, exec.Position, exec.LinkedInURL, exec.ConfidenceScore, exec.LastVerifiedAt,
	)
	return eris.Wrap(err, "sqlite: add executive")
}

func (s *SQLiteStore) SetExecutiveLinkedIn(ctx context.Context, execID, url string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE executives SET linkedin_url = ? WHERE id = ? AND linkedin_url = ''`,
		url, execID,
	)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: set executive linkedin")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) SetExecutiveConfidence(ctx context.Context, execID string, score int, verifiedAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE executives SET confidence_score = ?, last_verified_at = ?
		WHERE id = ? AND confidence_score IS NULL`,
		score, verifiedAt, execID,
	)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: set executive confidence")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) InsertNewsItems(ctx context.Context, jobID string, items []model.NewsItem) (int, error) {
	added := 0
	for i := range items {
		item := &items[i]
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO news_items
				(id, job_id, title, url, summary, source_domain, published_at, relevance_score, confidence_level)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (job_id, url) DO NOTHING`,
			item.ID, jobID, item.Title, item.URL, item.Summary, item.SourceDomain,
			item.PublishedAt, item.RelevanceScore, string(item.ConfidenceLevel),
		)
		if err != nil {
			return added, eris.Wrap(err, "sqlite: insert news item")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return added, eris.Wrap(err, "sqlite: rows affected")
		}
		added += int(n)
	}
	return added, nil
}

func (s *SQLiteStore) ListNewsMissingCredibility(ctx context.Context, jobID string) ([]model.NewsItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, title, url, summary, source_domain, published_at,
			relevance_score, confidence_level, source_credibility_score
		FROM news_items WHERE job_id = ? AND source_credibility_score IS NULL`,
		jobID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list news missing credibility")
	}
	defer rows.Close()

	var items []model.NewsItem
	for rows.Next() {
		var n model.NewsItem
		var level string
		if err := rows.Scan(&n.ID, &n.JobID, &n.Title, &n.URL, &n.Summary, &n.SourceDomain,
			&n.PublishedAt, &n.RelevanceScore, &level, &n.SourceCredibilityScore); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan news item")
		}
		n.ConfidenceLevel = model.ConfidenceLevel(level)
		items = append(items, n)
	}
	return items, eris.Wrap(rows.Err(), "sqlite: list news iterate")
}

func (s *SQLiteStore) SetNewsCredibility(ctx context.Context, newsID string, score int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE news_items SET source_credibility_score = ?
		WHERE id = ? AND source_credibility_score IS NULL`,
		score, newsID,
	)
	return eris.Wrap(err, "sqlite: set news credibility")
}

func (s *SQLiteStore) GetCredibility(ctx context.Context, domain string) (*model.SourceCredibility, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT domain, score, updated_at FROM source_credibility WHERE domain = ?`,
		domain,
	)
	var cred model.SourceCredibility
	err := row.Scan(&cred.Domain, &cred.Score, &cred.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get credibility")
	}
	return &cred, nil
}

func (s *SQLiteStore) UpsertCredibility(ctx context.Context, domain string, score float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO source_credibility (domain, score, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (domain) DO UPDATE SET score = excluded.score, updated_at = excluded.updated_at`,
		domain, score, time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: upsert credibility")
}

func (s *SQLiteStore) AppendAPILog(ctx context.Context, entry model.APICallLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_call_logs
			(id, job_id, api_name, endpoint, request, response, status_code, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.JobID, entry.APIName, entry.Endpoint, entry.Request,
		entry.Response, entry.StatusCode, entry.Error, entry.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: append api log")
}

func (s *SQLiteStore) AppendValidationLog(ctx context.Context, entry model.ValidationLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	inputsJSON, err := json.Marshal(entry.Inputs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal validation inputs")
	}
	detailsJSON, err := json.Marshal(entry.Details)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal validation details")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO validation_logs
			(id, job_id, inputs, score, confidence_level, details, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.JobID, string(inputsJSON), entry.Score, string(entry.ConfidenceLevel),
		string(detailsJSON), entry.Model, entry.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: append validation log")
}
