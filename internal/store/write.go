package store

import (
	"context"
	"fmt"
)

// Run identifies one harness execution of a scenario.
type Run struct {
	Token     string `json:"token"`
	Scenario  string `json:"scenario"`
	Component string `json:"component"`
	CreatedAt string `json:"created_at"`
}

// Event is one persisted trace event. Args and Result hold canonical JSON;
// Err holds the error message, empty on success.
type Event struct {
	Seq    int64  `json:"seq"`
	Kind   string `json:"kind"`
	Target string `json:"target"`
	Name   string `json:"name"`
	Args   string `json:"args,omitempty"`
	Result string `json:"result,omitempty"`
	Err    string `json:"error,omitempty"`
}

// WriteRun records the start of a harness run.
func (s *Store) WriteRun(ctx context.Context, token, scenario, comp string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (token, scenario, component) VALUES (?, ?, ?)`,
		token, scenario, comp,
	)
	if err != nil {
		return fmt.Errorf("failed to write run %s: %w", token, err)
	}
	return nil
}

// WriteEvent appends one trace event to a run. The (run, seq) pair is the
// primary key; inserting the same seq twice is a caller bug surfaced as a
// constraint error.
func (s *Store) WriteEvent(ctx context.Context, token string, ev Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (run_token, seq, kind, target, name, args, result, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		token, ev.Seq, ev.Kind, ev.Target, ev.Name, ev.Args, ev.Result, ev.Err,
	)
	if err != nil {
		return fmt.Errorf("failed to write event seq=%d for run %s: %w", ev.Seq, token, err)
	}
	return nil
}
