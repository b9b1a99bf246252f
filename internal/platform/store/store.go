// Package store provides a unified interface to the postgres backends
package store

import (
	"context"
	"errors"
	"fmt"

	"foresight/internal/platform/logger"
)

// Store is the facade over the two database handles the pipeline needs:
// the OLTP source we extract from and the reporting warehouse we load into.
// zero value is safe but does nothing
type Store struct {
	// Log is the logger used by subclients
	// zero means a no op zerolog logger
	Log logger.Logger

	// Source is the OLTP postgres seam, nil when disabled
	Source TxRunner

	// Report is the reporting warehouse seam, nil when disabled
	Report TxRunner
}

// Row exposes the minimal scan contract a single row needs
type Row interface {
	Scan(dest ...any) error
}

// Rows exposes the minimal iteration and scan for a result set
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
	Columns() []string
}

// CommandTag is a tiny interface to inspect command results
type CommandTag interface {
	String() string
	RowsAffected() int64
}

// RowQuerier is the read and write surface repos use for sql
type RowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// TxRunner wraps transaction execution around a function
type TxRunner interface {
	RowQuerier
	Tx(ctx context.Context, fn func(q RowQuerier) error) error
}

// Pinger is any seam that can report readiness
type Pinger interface{ Ping(context.Context) error }

// Open constructs a Store with the requested handles
// handles not enabled in cfg remain nil on the Store
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	s := &Store{}
	for _, o := range opts {
		if err := o(s); err != nil {
			return nil, err
		}
	}

	// defaults for zero logger to avoid nil checks
	s.Log = s.Log.With().Logger()

	if cfg.Source.Enabled {
		src, err := openPG(ctx, cfg.Source, s)
		if err != nil {
			return nil, fmt.Errorf("source: %w", err)
		}
		s.Source = src
	}

	if cfg.Report.Enabled {
		rpt, err := openPG(ctx, cfg.Report, s)
		if err != nil {
			_ = closeHandle(s.Source)
			return nil, fmt.Errorf("report: %w", err)
		}
		s.Report = rpt
	}

	return s, nil
}

// Guard verifies all configured handles the Store knows about
func (s *Store) Guard(ctx context.Context) error {
	if s == nil {
		return errors.New("nil store")
	}
	var errs []error
	if s.Source != nil {
		if p, ok := any(s.Source).(Pinger); ok {
			if err := p.Ping(ctx); err != nil {
				errs = append(errs, fmt.Errorf("source: %w", err))
			}
		}
	}
	if s.Report != nil {
		if p, ok := any(s.Report).(Pinger); ok {
			if err := p.Ping(ctx); err != nil {
				errs = append(errs, fmt.Errorf("report: %w", err))
			}
		}
	}
	return errors.Join(errs...)
}

// Close closes all initialized handles gracefully
// nil handles are ignored
func (s *Store) Close(ctx context.Context) error {
	return errors.Join(
		closeHandle(s.Source),
		closeHandle(s.Report),
	)
}

func closeHandle(h TxRunner) error {
	if c, ok := h.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
