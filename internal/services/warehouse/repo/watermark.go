package repo

import (
	"context"
	"time"

	"foresight/internal/modkit/repokit"
	perr "foresight/internal/platform/errors"
	"foresight/internal/platform/store"
	"foresight/internal/services/warehouse/domain"
)

type (
	// WatermarkPG is a Postgres binder for domain.WatermarkRepo
	WatermarkPG struct{}
	wmQueries   struct{ q repokit.Queryer }
)

// NewWatermarkPG returns a Postgres binder for domain.WatermarkRepo
func NewWatermarkPG() repokit.Binder[domain.WatermarkRepo] { return WatermarkPG{} }

// Bind implements repokit.Binder
func (WatermarkPG) Bind(q repokit.Queryer) domain.WatermarkRepo { return &wmQueries{q: q} }

// Get returns the watermark row for a table, or NotFound when it has never run
func (r *wmQueries) Get(ctx context.Context, table string) (domain.Watermark, error) {
	w, err := store.One(ctx, r.q, scanWatermark, `
		SELECT table_name, last_loaded_at, last_run_started, last_run_completed,
		       row_count_loaded, status
		FROM rpt.etl_watermark
		WHERE table_name = $1
	`, table)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return domain.Watermark{}, perr.NotFoundf("no watermark for %s", table)
		}
		return domain.Watermark{}, err
	}
	return w, nil
}

// MarkStarted records that a load pass has begun
func (r *wmQueries) MarkStarted(ctx context.Context, table string, startedAt time.Time) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO rpt.etl_watermark (table_name, last_run_started, row_count_loaded, status)
		VALUES ($1, $2, 0, $3)
		ON CONFLICT (table_name) DO UPDATE SET
			last_run_started = EXCLUDED.last_run_started,
			status = EXCLUDED.status
	`, table, startedAt, domain.WatermarkInProgress)
	return err
}

// Complete records the outcome of a load pass. Loaded row counts accumulate
// across passes; lastLoadedAt only advances on success.
func (r *wmQueries) Complete(
	ctx context.Context,
	table string,
	lastLoadedAt *time.Time,
	rows int64,
	status string,
) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO rpt.etl_watermark
			(table_name, last_loaded_at, last_run_completed, row_count_loaded, status)
		VALUES ($1, $2, now(), $3, $4)
		ON CONFLICT (table_name) DO UPDATE SET
			last_loaded_at = COALESCE(EXCLUDED.last_loaded_at, rpt.etl_watermark.last_loaded_at),
			last_run_completed = EXCLUDED.last_run_completed,
			row_count_loaded = rpt.etl_watermark.row_count_loaded + EXCLUDED.row_count_loaded,
			status = EXCLUDED.status
	`, table, lastLoadedAt, rows, status)
	return err
}

func scanWatermark(row store.Row) (domain.Watermark, error) {
	var w domain.Watermark
	err := row.Scan(
		&w.TableName,
		&w.LastLoadedAt,
		&w.LastRunStarted,
		&w.LastRunCompleted,
		&w.RowsLoaded,
		&w.Status,
	)
	return w, err
}
