package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/philippeb99/researcher-sub001/internal/db"
	"github.com/philippeb99/researcher-sub001/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest store operations.
var preparedStatements = map[string]string{
	"get_job":          getJobSQL,
	"set_status":       setStatusSQL,
	"list_executives":  listExecutivesSQL,
	"insert_news_item": insertNewsItemSQL,
	"append_api_log":   appendAPILogSQL,
	"get_credibility":  getCredibilitySQL,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS research_jobs (
	id                      TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
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
	revenue_amount          BIGINT,
	enrichment_status       TEXT NOT NULL DEFAULT 'not_started',
	enrichment_phases       JSONB NOT NULL DEFAULT '[]',
	enrichment_metadata     JSONB,
	data_sources            JSONB NOT NULL DEFAULT '[]',
	validation_score        INTEGER NOT NULL DEFAULT 0,
	data_quality_score      INTEGER NOT NULL DEFAULT 0,
	last_enriched_at        TIMESTAMPTZ,
	version                 BIGINT NOT NULL DEFAULT 0,
	created_at              TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at              TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_research_jobs_user_id ON research_jobs(user_id);
CREATE INDEX IF NOT EXISTS idx_research_jobs_status ON research_jobs(enrichment_status);

CREATE TABLE IF NOT EXISTS executives (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	job_id           TEXT NOT NULL REFERENCES research_jobs(id) ON DELETE CASCADE,
	name             TEXT NOT NULL,
	position         TEXT NOT NULL DEFAULT '',
	linkedin_url     TEXT NOT NULL DEFAULT '',
	confidence_score INTEGER,
	last_verified_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_executives_job_id ON executives(job_id);

CREATE TABLE IF NOT EXISTS news_items (
	id                       TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	job_id                   TEXT NOT NULL REFERENCES research_jobs(id) ON DELETE CASCADE,
	title                    TEXT NOT NULL,
	url                      TEXT NOT NULL,
	summary                  TEXT NOT NULL DEFAULT '',
	source_domain            TEXT NOT NULL DEFAULT '',
	published_at             TIMESTAMPTZ,
	relevance_score          INTEGER NOT NULL DEFAULT 0,
	confidence_level         TEXT NOT NULL DEFAULT 'low',
	source_credibility_score INTEGER,
	UNIQUE (job_id, url)
);

CREATE INDEX IF NOT EXISTS idx_news_items_job_id ON news_items(job_id);

CREATE TABLE IF NOT EXISTS source_credibility (
	domain     TEXT PRIMARY KEY,
	score      DOUBLE PRECISION NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS api_call_logs (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	job_id      TEXT,
	api_name    TEXT NOT NULL,
	endpoint    TEXT NOT NULL,
	request     TEXT NOT NULL DEFAULT '',
	response    TEXT NOT NULL DEFAULT '',
	status_code INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_api_call_logs_job_id ON api_call_logs(job_id);

CREATE TABLE IF NOT EXISTS validation_logs (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	job_id           TEXT NOT NULL,
	inputs           JSONB NOT NULL,
	score            INTEGER NOT NULL,
	confidence_level TEXT NOT NULL,
	details          JSONB NOT NULL,
	model            TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_validation_logs_job_id ON validation_logs(job_id);
`

const (
	getJobSQL = `SELECT id, user_id, company_name, website, country, city, ceo_name,
		overview, industry_business_model, market_position, recent_developments, financials,
		employee_count, revenue_amount, enrichment_status, enrichment_phases,
		enrichment_metadata, data_sources, validation_score, data_quality_score,
		last_enriched_at, version, created_at, updated_at
	FROM research_jobs WHERE id = $1`

	setStatusSQL = `UPDATE research_jobs SET enrichment_status = $2, updated_at = $3 WHERE id = $1`

	fillEmployeeCountSQL = `UPDATE research_jobs SET employee_count = $2, updated_at = $3
	WHERE id = $1 AND employee_count IS NULL`

	fillRevenueSQL = `UPDATE research_jobs SET revenue_amount = $2, updated_at = $3
	WHERE id = $1 AND revenue_amount IS NULL`

	fillIndustrySQL = `UPDATE research_jobs SET industry_business_model = $2, updated_at = $3
	WHERE id = $1 AND (industry_business_model IS NULL OR industry_business_model = '')`

	fillOverviewSQL = `UPDATE research_jobs SET overview = $2, updated_at = $3
	WHERE id = $1 AND (overview IS NULL OR overview = '')`

	fillWebsiteSQL = `UPDATE research_jobs SET website = $2, updated_at = $3
	WHERE id = $1 AND (website IS NULL OR website = '')`

	finalizeSQL = `UPDATE research_jobs SET enrichment_phases = $3, enrichment_metadata = $4,
		data_sources = $5, validation_score = $6, data_quality_score = $6, enrichment_status = $7,
		last_enriched_at = $8, updated_at = $8, version = version + 1
	WHERE id = $1 AND version = $2`

	listExecutivesSQL = `SELECT id, job_id, name, position, linkedin_url, confidence_score, last_verified_at
	FROM executives WHERE job_id = $1 ORDER BY name`

	setExecLinkedInSQL = `UPDATE executives SET linkedin_url = $2
	WHERE id = $1 AND linkedin_url = ''`

	setExecConfidenceSQL = `UPDATE executives SET confidence_score = $2, last_verified_at = $3
	WHERE id = $1 AND confidence_score IS NULL`

	insertNewsItemSQL = `INSERT INTO news_items
		(id, job_id, title, url, summary, source_domain, published_at, relevance_score, confidence_level)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (job_id, url) DO NOTHING`

	listNewsMissingCredSQL = `SELECT id, job_id, title, url, summary, source_domain, published_at,
		relevance_score, confidence_level, source_credibility_score
	FROM news_items WHERE job_id = $1 AND source_credibility_score IS NULL`

	setNewsCredSQL = `UPDATE news_items SET source_credibility_score = $2
	WHERE id = $1 AND source_credibility_score IS NULL`

	getCredibilitySQL = `SELECT domain, score, updated_at FROM source_credibility WHERE domain = $1`

	upsertCredibilitySQL = `INSERT INTO source_credibility (domain, score, updated_at)
	VALUES ($1, $2, $3)
	ON CONFLICT (domain) DO UPDATE SET score = EXCLUDED.score, updated_at = EXCLUDED.updated_at`

	appendAPILogSQL = `INSERT INTO api_call_logs
		(id, job_id, api_name, endpoint, request, response, status_code, error, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	appendValidationLogSQL = `INSERT INTO validation_logs
		(id, job_id, inputs, score, confidence_level, details, model, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	createJobSQL = `INSERT INTO research_jobs
		(id, user_id, company_name, website, country, city, ceo_name, enrichment_status, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
)

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *model.ResearchJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	if job.EnrichmentStatus == "" {
		job.EnrichmentStatus = model.EnrichmentNotStarted
	}

	_, err := s.pool.Exec(ctx, createJobSQL,
		job.ID, job.UserID, job.CompanyName, job.Website, job.Country, job.City,
		job.CEOName, string(job.EnrichmentStatus), now, now,
	)
	return eris.Wrap(err, "postgres: create job")
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*model.ResearchJob, error) {
	var (
		job          model.ResearchJob
		status       string
		phasesJSON   []byte
		metadataJSON []byte
		sourcesJSON  []byte
	)

	err := s.pool.QueryRow(ctx, getJobSQL, id).Scan(
		&job.ID, &job.UserID, &job.CompanyName, &job.Website, &job.Country, &job.City, &job.CEOName,
		&job.Overview, &job.IndustryBusinessModel, &job.MarketPosition, &job.RecentDevelopments, &job.Financials,
		&job.EmployeeCount, &job.RevenueAmount, &status, &phasesJSON,
		&metadataJSON, &sourcesJSON, &job.ValidationScore, &job.DataQualityScore,
		&job.LastEnrichedAt, &job.Version, &job.CreatedAt, &job.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get job")
	}

	job.EnrichmentStatus = model.EnrichmentStatus(status)
	if len(phasesJSON) > 0 {
		if err := json.Unmarshal(phasesJSON, &job.EnrichmentPhases); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal phases")
		}
	}
	if len(sourcesJSON) > 0 {
		if err := json.Unmarshal(sourcesJSON, &job.DataSources); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal data sources")
		}
	}
	if len(metadataJSON) > 0 {
		var md model.RunMetadata
		if err := json.Unmarshal(metadataJSON, &md); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal metadata")
		}
		job.EnrichmentMetadata = &md
	}

	return &job, nil
}

func (s *PostgresStore) SetEnrichmentStatus(ctx context.Context, jobID string, status model.EnrichmentStatus) error {
	tag, err := s.pool.Exec(ctx, setStatusSQL, jobID, string(status), time.Now().UTC())
	if err != nil {
		return eris.Wrap(err, "postgres: set enrichment status")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FillCompanyFields writes each incoming field with its own guarded UPDATE:
// the empty-only check lives in the statement itself, so a concurrent phase
// committing between two calls can never be overwritten by a stale snapshot.
func (s *PostgresStore) FillCompanyFields(ctx context.Context, jobID string, data model.CompanyData) ([]string, error) {
	now := time.Now().UTC()
	var filled []string
	fill := func(field, query string, value any) error {
		tag, err := s.pool.Exec(ctx, query, jobID, value, now)
		if err != nil {
			return eris.Wrapf(err, "postgres: fill %s", field)
		}
		if tag.RowsAffected() > 0 {
			filled = append(filled, field)
		}
		return nil
	}

	if data.EmployeeCount != nil {
		if err := fill("employee_count", fillEmployeeCountSQL, *data.EmployeeCount); err != nil {
			return nil, err
		}
	}
	if data.RevenueAmount != nil {
		if err := fill("revenue_amount", fillRevenueSQL, *data.RevenueAmount); err != nil {
			return nil, err
		}
	}
	if data.IndustryBusinessModel != "" {
		if err := fill("industry_business_model", fillIndustrySQL, data.IndustryBusinessModel); err != nil {
			return nil, err
		}
	}
	if data.Overview != "" {
		if err := fill("overview", fillOverviewSQL, data.Overview); err != nil {
			return nil, err
		}
	}
	if data.Website != "" {
		if err := fill("website", fillWebsiteSQL, data.Website); err != nil {
			return nil, err
		}
	}
	return filled, nil
}

func (s *PostgresStore) FinalizeEnrichment(ctx context.Context, jobID string, version int64, params FinalizeParams) error {
	phasesJSON, err := json.Marshal(params.Phases)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal phases")
	}
	sourcesJSON, err := json.Marshal(params.DataSources)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal data sources")
	}
	metadataJSON, err := json.Marshal(params.Metadata)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal metadata")
	}

	tag, err := s.pool.Exec(ctx, finalizeSQL,
		jobID, version, phasesJSON, metadataJSON, sourcesJSON,
		params.ValidationScore, string(params.Status), params.EnrichedAt,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: finalize enrichment")
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := s.GetJob(ctx, jobID); errors.Is(getErr, ErrNotFound) {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

func (s *PostgresStore) SetRecentDevelopments(ctx context.Context, jobID, text string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE research_jobs SET recent_developments = $2, updated_at = $3
		WHERE id = $1 AND recent_developments = ''`,
		jobID, text, time.Now().UTC(),
	)
	if err != nil {
		return false, eris.Wrap(err, "postgres: set recent developments")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) AddExecutive(ctx context.Context, exec *model.Executive) error {
	if exec.ID == "" {
		exec.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO executives (id, job_id, name, position, linkedin_url, confidence_score, last_verified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		exec.ID, exec.JobID, exec.Name, exec.Position, exec.LinkedInURL, exec.ConfidenceScore, exec.LastVerifiedAt,
	)
	return eris.Wrap(err, "postgres: add executive")
}

func (s *PostgresStore) ListExecutives(ctx context.Context, jobID string) ([]model.Executive, error) {
	rows, err := s.pool.Query(ctx, listExecutivesSQL, jobID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list executives")
	}
	defer rows.Close()

	var execs []model.Executive
	for rows.Next() {
		var e model.Executive
		if err := rows.Scan(&e.ID, &e.JobID, &e.Name, &e.Position, &e.LinkedInURL, &e.ConfidenceScore, &e.LastVerifiedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan executive")
		}
		execs = append(execs, e)
	}
	return execs, eris.Wrap(rows.Err(), "postgres: list executives rows")
}

func (s *PostgresStore) SetExecutiveLinkedIn(ctx context.Context, execID, url string) (bool, error) {
	tag, err := s.pool.Exec(ctx, setExecLinkedInSQL, execID, url)
	if err != nil {
		return false, eris.Wrap(err, "postgres: set executive linkedin")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) SetExecutiveConfidence(ctx context.Context, execID string, score int, verifiedAt time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, setExecConfidenceSQL, execID, score, verifiedAt)
	if err != nil {
		return false, eris.Wrap(err, "postgres: set executive confidence")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) InsertNewsItems(ctx context.Context, jobID string, items []model.NewsItem) (int, error) {
	added := 0
	for i := range items {
		item := &items[i]
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		tag, err := s.pool.Exec(ctx, insertNewsItemSQL,
			item.ID, jobID, item.Title, item.URL, item.Summary, item.SourceDomain,
			item.PublishedAt, item.RelevanceScore, string(item.ConfidenceLevel),
		)
		if err != nil {
			return added, eris.Wrap(err, "postgres: insert news item")
		}
		added += int(tag.RowsAffected())
	}
	return added, nil
}

func (s *PostgresStore) ListNewsMissingCredibility(ctx context.Context, jobID string) ([]model.NewsItem, error) {
	rows, err := s.pool.Query(ctx, listNewsMissingCredSQL, jobID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list news missing credibility")
	}
	defer rows.Close()

	var items []model.NewsItem
	for rows.Next() {
		var n model.NewsItem
		var level string
		if err := rows.Scan(&n.ID, &n.JobID, &n.Title, &n.URL, &n.Summary, &n.SourceDomain,
			&n.PublishedAt, &n.RelevanceScore, &level, &n.SourceCredibilityScore); err != nil {
			return nil, eris.Wrap(err, "postgres: scan news item")
		}
		n.ConfidenceLevel = model.ConfidenceLevel(level)
		items = append(items, n)
	}
	return items, eris.Wrap(rows.Err(), "postgres: list news rows")
}

func (s *PostgresStore) SetNewsCredibility(ctx context.Context, newsID string, score int) error {
	_, err := s.pool.Exec(ctx, setNewsCredSQL, newsID, score)
	return eris.Wrap(err, "postgres: set news credibility")
}

func (s *PostgresStore) GetCredibility(ctx context.Context, domain string) (*model.SourceCredibility, error) {
	var cred model.SourceCredibility
	err := s.pool.QueryRow(ctx, getCredibilitySQL, domain).Scan(&cred.Domain, &cred.Score, &cred.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get credibility")
	}
	return &cred, nil
}

func (s *PostgresStore) UpsertCredibility(ctx context.Context, domain string, score float64) error {
	_, err := s.pool.Exec(ctx, upsertCredibilitySQL, domain, score, time.Now().UTC())
	return eris.Wrap(err, "postgres: upsert credibility")
}

func (s *PostgresStore) AppendAPILog(ctx context.Context, entry model.APICallLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, appendAPILogSQL,
		entry.ID, entry.JobID, entry.APIName, entry.Endpoint, entry.Request,
		entry.Response, entry.StatusCode, entry.Error, entry.CreatedAt,
	)
	return eris.Wrap(err, "postgres: append api log")
}

func (s *PostgresStore) AppendValidationLog(ctx context.Context, entry model.ValidationLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	inputsJSON, err := json.Marshal(entry.Inputs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal validation inputs")
	}
	detailsJSON, err := json.Marshal(entry.Details)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal validation details")
	}
	_, err = s.pool.Exec(ctx, appendValidationLogSQL,
		entry.ID, entry.JobID, inputsJSON, entry.Score, string(entry.ConfidenceLevel),
		detailsJSON, entry.Model, entry.CreatedAt,
	)
	return eris.Wrap(err, "postgres: append validation log")
}
