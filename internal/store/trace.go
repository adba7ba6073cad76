package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/diverge/internal/config"
	"github.com/roach88/diverge/internal/engine"
	"github.com/roach88/diverge/internal/op"
)

// Store implements engine.Recorder.
var _ engine.Recorder = (*Store)(nil)

// RunRecord is one persisted run.
type RunRecord struct {
	ID        string
	Seed      int64
	Config    config.Run
	Status    string
	Steps     int
	CreatedAt string
}

// BeginRun inserts the run row in the running state.
func (s *Store) BeginRun(ctx context.Context, runID string, seed int64, cfg config.Run) error {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("begin run: marshal config: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, seed, config) VALUES (?, ?, ?)
	`, runID, seed, string(cfgJSON))
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// RecordStep appends one applied operation to the run's trace.
func (s *Store) RecordStep(ctx context.Context, runID string, rec engine.StepRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO steps (run_id, idx, kind, sender, payload, model_code, system_code, diverged)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, rec.Index, rec.Kind, rec.Sender, string(rec.Payload), rec.ModelCode.Wire(), rec.SystemCode.Wire(), rec.Diverged)
	if err != nil {
		return fmt.Errorf("record step %d: %w", rec.Index, err)
	}
	return nil
}

// FinishRun records the run's terminal status and step count.
func (s *Store) FinishRun(ctx context.Context, runID string, status engine.Status, steps int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, steps = ? WHERE id = ?
	`, string(status), steps, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run: run %s not found", runID)
	}
	return nil
}

// ReadRun returns one run by ID.
func (s *Store) ReadRun(ctx context.Context, runID string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, seed, config, status, steps, created_at FROM runs WHERE id = ?
	`, runID)

	var rec RunRecord
	var cfgJSON string
	if err := row.Scan(&rec.ID, &rec.Seed, &cfgJSON, &rec.Status, &rec.Steps, &rec.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run %s not found", runID)
		}
		return nil, fmt.Errorf("read run: %w", err)
	}
	if err := json.Unmarshal([]byte(cfgJSON), &rec.Config); err != nil {
		return nil, fmt.Errorf("read run: decode config: %w", err)
	}
	return &rec, nil
}

// ListRuns returns all runs, newest first (UUIDv7 run IDs sort by time).
func (s *Store) ListRuns(ctx context.Context) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seed, config, status, steps, created_at FROM runs ORDER BY id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var rec RunRecord
		var cfgJSON string
		if err := rows.Scan(&rec.ID, &rec.Seed, &cfgJSON, &rec.Status, &rec.Steps, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		if err := json.Unmarshal([]byte(cfgJSON), &rec.Config); err != nil {
			return nil, fmt.Errorf("list runs: decode config: %w", err)
		}
		runs = append(runs, rec)
	}
	return runs, rows.Err()
}

// ReadSteps returns a run's steps in application order.
func (s *Store) ReadSteps(ctx context.Context, runID string) ([]engine.StepRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, kind, sender, payload, model_code, system_code, diverged
		FROM steps WHERE run_id = ? ORDER BY idx
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("read steps: %w", err)
	}
	defer rows.Close()

	var steps []engine.StepRecord
	for rows.Next() {
		var rec engine.StepRecord
		var payload string
		var modelCode, systemCode int64
		if err := rows.Scan(&rec.Index, &rec.Kind, &rec.Sender, &payload, &modelCode, &systemCode, &rec.Diverged); err != nil {
			return nil, fmt.Errorf("read steps: %w", err)
		}
		rec.Payload = []byte(payload)
		rec.ModelCode = op.ErrorCode(modelCode)
		rec.SystemCode = op.ErrorCode(systemCode)
		steps = append(steps, rec)
	}
	return steps, rows.Err()
}
