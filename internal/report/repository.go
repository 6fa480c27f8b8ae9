package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/morita/kabuto/internal/contracts"
)

// Repository implements contracts.ReportRepository on Postgres
// ⭐ SSOT: レポート永続化はここだけ
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new report repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Save upserts one day's report and replaces its stock rows.
// Re-running a day overwrites the previous result atomically.
func (r *Repository) Save(ctx context.Context, report *contracts.Report) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO kabuto.reports (report_date, warning, document, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (report_date) DO UPDATE SET
			warning = EXCLUDED.warning,
			document = EXCLUDED.document,
			created_at = EXCLUDED.created_at
		RETURNING id
	`

	var reportID int64
	err = tx.QueryRow(ctx, query,
		report.ReportDate, report.Warning, report.Document, report.CreatedAt,
	).Scan(&reportID)
	if err != nil {
		return fmt.Errorf("upsert report: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM kabuto.report_stocks WHERE report_id = $1`, reportID); err != nil {
		return fmt.Errorf("clear report stocks: %w", err)
	}

	insertStock := `
		INSERT INTO kabuto.report_stocks
			(report_id, category, rank, code, name, change_percent,
			 is_stop_limit, current_price, source_url, analysis_text, source_urls)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	for _, category := range contracts.Categories() {
		for _, stock := range report.Sections[category] {
			_, err := tx.Exec(ctx, insertStock,
				reportID, string(category), stock.Rank, stock.Code, stock.Name,
				stock.ChangePercent, stock.IsStopLimit, stock.CurrentPrice,
				stock.SourceURL, stock.AnalysisText, stock.SourceURLs,
			)
			if err != nil {
				return fmt.Errorf("insert stock %s/%s: %w", category, stock.Code, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	report.ID = reportID
	return nil
}

// GetLatest returns the most recent stored report, or nil when the
// store is empty
func (r *Repository) GetLatest(ctx context.Context) (*contracts.Report, error) {
	return r.getOne(ctx, `
		SELECT id, report_date, warning, document, created_at
		FROM kabuto.reports
		ORDER BY report_date DESC
		LIMIT 1
	`)
}

// GetByDate returns the report for one day, or nil when that day has
// no stored report
func (r *Repository) GetByDate(ctx context.Context, date time.Time) (*contracts.Report, error) {
	return r.getOne(ctx, `
		SELECT id, report_date, warning, document, created_at
		FROM kabuto.reports
		WHERE report_date = $1
	`, date)
}

func (r *Repository) getOne(ctx context.Context, query string, args ...interface{}) (*contracts.Report, error) {
	var report contracts.Report
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&report.ID, &report.ReportDate, &report.Warning, &report.Document, &report.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query report: %w", err)
	}

	sections, err := r.loadSections(ctx, report.ID)
	if err != nil {
		return nil, err
	}
	report.Sections = sections

	return &report, nil
}

func (r *Repository) loadSections(ctx context.Context, reportID int64) (map[contracts.Category][]contracts.AnalyzedStock, error) {
	query := `
		SELECT category, rank, code, name, change_percent,
		       is_stop_limit, current_price, source_url, analysis_text, source_urls
		FROM kabuto.report_stocks
		WHERE report_id = $1
		ORDER BY category, rank ASC
	`

	rows, err := r.pool.Query(ctx, query, reportID)
	if err != nil {
		return nil, fmt.Errorf("query report stocks: %w", err)
	}
	defer rows.Close()

	sections := make(map[contracts.Category][]contracts.AnalyzedStock)
	for rows.Next() {
		var category string
		var stock contracts.AnalyzedStock
		err := rows.Scan(
			&category, &stock.Rank, &stock.Code, &stock.Name, &stock.ChangePercent,
			&stock.IsStopLimit, &stock.CurrentPrice, &stock.SourceURL,
			&stock.AnalysisText, &stock.SourceURLs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan report stock: %w", err)
		}
		sections[contracts.Category(category)] = append(sections[contracts.Category(category)], stock)
	}

	return sections, rows.Err()
}

// ListRecent returns lightweight summaries of the most recent reports,
// newest first
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]contracts.ReportSummary, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT r.id, r.report_date, r.warning <> '', r.created_at,
		       COUNT(s.id)
		FROM kabuto.reports r
		LEFT JOIN kabuto.report_stocks s ON s.report_id = r.id
		GROUP BY r.id, r.report_date, r.warning, r.created_at
		ORDER BY r.report_date DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query report summaries: %w", err)
	}
	defer rows.Close()

	var summaries []contracts.ReportSummary
	for rows.Next() {
		var s contracts.ReportSummary
		if err := rows.Scan(&s.ID, &s.ReportDate, &s.HasWarning, &s.CreatedAt, &s.StockCount); err != nil {
			return nil, fmt.Errorf("scan report summary: %w", err)
		}
		summaries = append(summaries, s)
	}

	return summaries, rows.Err()
}
