package service

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"foresight/internal/modkit/repokit"
	perr "foresight/internal/platform/errors"
	ptime "foresight/internal/platform/time"
	"foresight/internal/services/warehouse/domain"
)

// Watermarks tracks per-table incremental load cursors
type Watermarks struct {
	DB     repokit.TxRunner
	Binder repokit.Binder[domain.WatermarkRepo]
	Clock  clockwork.Clock
}

// NewWatermarks constructs the watermark service on the real clock
func NewWatermarks(db repokit.TxRunner, binder repokit.Binder[domain.WatermarkRepo]) *Watermarks {
	return &Watermarks{DB: db, Binder: binder, Clock: clockwork.NewRealClock()}
}

// Cursor returns the incremental cursor for a table, nil when the table
// has never loaded successfully (callers fall back to a full extract)
func (w *Watermarks) Cursor(ctx context.Context, table string) (*time.Time, error) {
	wm, err := w.Binder.Bind(w.DB).Get(ctx, table)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return wm.LastLoadedAt, nil
}

// Begin stamps the run start and flips the watermark to in_progress.
// The returned instant doubles as the cursor candidate for Succeed,
// rows created during the pass are picked up by the next one.
func (w *Watermarks) Begin(ctx context.Context, table string) (time.Time, error) {
	now := w.Clock.Now().UTC()
	if err := w.Binder.Bind(w.DB).MarkStarted(ctx, table, now); err != nil {
		return time.Time{}, perr.Wrapf(err, perr.ErrorCodeUnavailable, "mark watermark started")
	}
	return now, nil
}

// Succeed advances the cursor and accumulates the loaded row count.
// A zero cursor degrades to a failure-style complete, never to a reset.
func (w *Watermarks) Succeed(ctx context.Context, table string, cursor time.Time, rows int64) error {
	return w.Binder.Bind(w.DB).Complete(ctx, table, ptime.Ptr(cursor), rows, domain.WatermarkSuccess)
}

// Fail records the outcome without moving the cursor, so the next pass
// re-extracts the window this one could not finish
func (w *Watermarks) Fail(ctx context.Context, table string, rows int64) error {
	return w.Binder.Bind(w.DB).Complete(ctx, table, nil, rows, domain.WatermarkFailed)
}
