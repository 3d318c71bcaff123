package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrRunNotFound is returned when a run token does not exist in the store.
var ErrRunNotFound = errors.New("run not found")

// ReadRun returns the run with the given token.
func (s *Store) ReadRun(ctx context.Context, token string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT token, scenario, component, created_at FROM runs WHERE token = ?`,
		token,
	)

	var run Run
	if err := row.Scan(&run.Token, &run.Scenario, &run.Component, &run.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", token, ErrRunNotFound)
		}
		return nil, fmt.Errorf("failed to read run %s: %w", token, err)
	}
	return &run, nil
}

// ListRuns returns all runs in creation order.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT token, scenario, component, created_at FROM runs ORDER BY created_at, token`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.Token, &run.Scenario, &run.Component, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ReadEvents returns a run's trace events in seq order.
func (s *Store) ReadEvents(ctx context.Context, token string) ([]Event, error) {
	// Fail with ErrRunNotFound rather than an empty trace for bad tokens.
	if _, err := s.ReadRun(ctx, token); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, kind, target, name, args, result, error
		 FROM events WHERE run_token = ? ORDER BY seq`,
		token,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read events for run %s: %w", token, err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.Seq, &ev.Kind, &ev.Target, &ev.Name, &ev.Args, &ev.Result, &ev.Err); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// CountEvents returns how many events a run recorded for a given kind and
// name. Used by trace inspection tooling.
func (s *Store) CountEvents(ctx context.Context, token, kind, name string) (int, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE run_token = ? AND kind = ? AND name = ?`,
		token, kind, name,
	)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events for run %s: %w", token, err)
	}
	return n, nil
}
