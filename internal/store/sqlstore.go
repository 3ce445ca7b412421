package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mobigaurav/ai-release-guardian/internal/release"

	_ "modernc.org/sqlite"
)

// nowUTC returns the current UTC time as an ISO 8601 string.
func nowUTC() string { return time.Now().UTC().Format(time.RFC3339) }

// currentSchemaVersion is the target schema version for this build.
const currentSchemaVersion = schemaVersionV2

// SqlStore implements Store with SQLite.
type SqlStore struct {
	db *sql.DB
}

// Open opens or creates a SQLite DB at path and runs migrations.
// Creates the parent directory if it does not exist.
func Open(path string) (*SqlStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Concurrent pipeline runs share one file; a single connection keeps
	// writes serialized.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &SqlStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SqlStore) migrate() error {
	var tableCount int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableCount == 0 {
		return s.freshInstall()
	}

	var v int
	err = s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read schema version: %w", err)
	}
	if errors.Is(err, sql.ErrNoRows) {
		// schema_version exists but is empty: treat as v1.
		v = schemaVersionV1
		if _, err := s.db.Exec("INSERT INTO schema_version(version) VALUES(?)", v); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
	}

	switch v {
	case currentSchemaVersion:
		return nil
	case schemaVersionV1:
		return s.migrateV1ToV2()
	default:
		return fmt.Errorf("unknown schema version %d", v)
	}
}

func (s *SqlStore) freshInstall() error {
	if _, err := s.db.Exec(schemaV2); err != nil {
		return fmt.Errorf("create v2 schema: %w", err)
	}
	if _, err := s.db.Exec("INSERT INTO schema_version(version) VALUES(?)", currentSchemaVersion); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return nil
}

// migrateV1ToV2 runs inside a transaction so a failed migration leaves the
// v1 schema intact.
func (s *SqlStore) migrateV1ToV2() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(migrationV1ToV2); err != nil {
		return fmt.Errorf("v1→v2 migration: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration tx: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SqlStore) Close() error {
	return s.db.Close()
}

func (s *SqlStore) SaveDecision(ctx context.Context, rec *DecisionRecord) (int64, error) {
	if rec == nil {
		return 0, errors.New("decision record is nil")
	}
	payload, err := json.Marshal(rec.Decision)
	if err != nil {
		return 0, fmt.Errorf("marshal decision: %w", err)
	}
	createdAt := rec.CreatedAt
	if createdAt == "" {
		createdAt = nowUTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO decisions(run_id, repo_owner, repo_name, pr_number, status, confidence, rule,
		                       risk_score, coverage, pass_rate, payload, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Ref.Owner, rec.Ref.Repo, rec.Ref.Number, string(rec.Status), rec.Confidence, rec.Rule,
		rec.RiskScore, rec.Coverage, rec.PassRate, string(payload), createdAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert decision: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

const decisionColumns = `id, run_id, repo_owner, repo_name, pr_number, status, confidence, rule,
	risk_score, coverage, pass_rate, payload, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDecision(row rowScanner) (*DecisionRecord, error) {
	var (
		r       DecisionRecord
		status  string
		payload string
	)
	if err := row.Scan(&r.ID, &r.RunID, &r.Ref.Owner, &r.Ref.Repo, &r.Ref.Number, &status, &r.Confidence, &r.Rule,
		&r.RiskScore, &r.Coverage, &r.PassRate, &payload, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.Status = release.DecisionStatus(status)
	if err := json.Unmarshal([]byte(payload), &r.Decision); err != nil {
		return nil, fmt.Errorf("unmarshal decision %d: %w", r.ID, err)
	}
	return &r, nil
}

func (s *SqlStore) GetDecision(ctx context.Context, id int64) (*DecisionRecord, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+decisionColumns+" FROM decisions WHERE id = ?", id)
	r, err := scanDecision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("decision %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get decision: %w", err)
	}
	return r, nil
}

func (s *SqlStore) ListDecisions(ctx context.Context, f Filter) ([]*DecisionRecord, error) {
	q := "SELECT " + decisionColumns + " FROM decisions WHERE 1=1"
	var args []any
	if f.Owner != "" {
		q += " AND repo_owner = ?"
		args = append(args, f.Owner)
	}
	if f.Repo != "" {
		q += " AND repo_name = ?"
		args = append(args, f.Repo)
	}
	if f.PRNumber != 0 {
		q += " AND pr_number = ?"
		args = append(args, f.PRNumber)
	}
	q += " ORDER BY id DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()
	var out []*DecisionRecord
	for rows.Next() {
		r, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
