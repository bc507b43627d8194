package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/wins-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store needs. pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// the hottest store operations.
var preparedStatements = map[string]string{
	"get_record":    `SELECT data FROM records WHERE id = $1`,
	"insert_record": `INSERT INTO records (id, status, internal_only, is_merged, merged_into, data, finalized_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"append_audit":  `INSERT INTO audit_log (id, kind, at, data) VALUES ($1, $2, $3, $4)`,
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

// NewPostgresWithPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS evidence (
	id         TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS records (
	id            TEXT PRIMARY KEY,
	status        TEXT NOT NULL DEFAULT 'pending',
	internal_only BOOLEAN NOT NULL DEFAULT false,
	is_merged     BOOLEAN NOT NULL DEFAULT false,
	merged_into   TEXT NOT NULL DEFAULT '',
	data          JSONB NOT NULL,
	finalized_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS duplicate_flags (
	candidate_a TEXT NOT NULL,
	candidate_b TEXT NOT NULL,
	score       DOUBLE PRECISION NOT NULL,
	method      TEXT NOT NULL,
	flagged_at  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (candidate_a, candidate_b, method)
);

CREATE TABLE IF NOT EXISTS evaluation_results (
	record_id TEXT NOT NULL,
	rule_name TEXT NOT NULL,
	position  INTEGER NOT NULL,
	data      JSONB NOT NULL,
	PRIMARY KEY (record_id, rule_name)
);

CREATE TABLE IF NOT EXISTS rank_scores (
	record_id TEXT PRIMARY KEY,
	rank      INTEGER NOT NULL,
	data      JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS deleted_records (
	record_id TEXT PRIMARY KEY,
	restored  BOOLEAN NOT NULL DEFAULT false,
	data      JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS extraction_failures (
	seq         BIGSERIAL PRIMARY KEY,
	evidence_id TEXT NOT NULL,
	data        JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_log (
	id   TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	at   TIMESTAMPTZ NOT NULL,
	data JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_status ON records(status);
CREATE INDEX IF NOT EXISTS idx_eval_record ON evaluation_results(record_id);
CREATE INDEX IF NOT EXISTS idx_failures_evidence ON extraction_failures(evidence_id);
CREATE INDEX IF NOT EXISTS idx_audit_kind ON audit_log(kind);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

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

// Evidence

func (s *PostgresStore) InsertEvidence(ctx context.Context, ev model.Evidence) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal evidence")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO evidence (id, data, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO NOTHING`,
		ev.ID, data, ev.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: insert evidence %s", ev.ID)
}

func (s *PostgresStore) GetEvidence(ctx context.Context, id string) (*model.Evidence, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM evidence WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get evidence %s", id)
	}
	var ev model.Evidence
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal evidence")
	}
	return &ev, nil
}

func (s *PostgresStore) ListEvidence(ctx context.Context) ([]model.Evidence, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM evidence ORDER BY created_at, id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list evidence")
	}
	defer rows.Close()

	var out []model.Evidence
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan evidence")
		}
		var ev model.Evidence
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal evidence")
		}
		out = append(out, ev)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list evidence iterate")
}

// Records

func (s *PostgresStore) InsertRecord(ctx context.Context, rec *model.FinalizedRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal record")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO records (id, status, internal_only, is_merged, merged_into, data, finalized_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, string(rec.Status), rec.InternalOnly, rec.IsMerged(), rec.MergedInto, data, rec.FinalizedAt.UTC(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return &ConflictError{ID: rec.ID}
		}
		return eris.Wrapf(err, "postgres: insert record %s", rec.ID)
	}
	return nil
}

func (s *PostgresStore) GetRecord(ctx context.Context, id string) (*model.FinalizedRecord, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM records WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get record %s", id)
	}
	var rec model.FinalizedRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal record")
	}
	return &rec, nil
}

func (s *PostgresStore) ListRecords(ctx context.Context, f RecordFilter) ([]model.FinalizedRecord, error) {
	query := `SELECT data FROM records WHERE true`
	args := []any{}
	argIdx := 1

	if f.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(f.Status))
		argIdx++
	}
	if !f.IncludeMergedSources {
		query += ` AND merged_into = ''`
	}
	query += ` ORDER BY id`

	// No default cap: callers that list without a limit get every record.
	// Paging is opt-in via the filter.
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argIdx)
		args = append(args, f.Limit)
		argIdx++

		if f.Offset > 0 {
			query += fmt.Sprintf(` OFFSET $%d`, argIdx)
			args = append(args, f.Offset)
		}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list records")
	}
	defer rows.Close()
	return collectPgRecords(rows)
}

func (s *PostgresStore) UpdateRecordStatus(ctx context.Context, id string, status model.RecordStatus) error {
	rec, err := s.GetRecord(ctx, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return eris.Errorf("record not found: %s", id)
	}
	if !rec.Status.CanTransition(status) {
		return eris.Errorf("invalid status transition for %s: %s -> %s", id, rec.Status, status)
	}

	rec.Status = status
	data, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal record")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE records SET status = $1, data = $2 WHERE id = $3`,
		string(status), data, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update record status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("record not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) MarkMergedInto(ctx context.Context, sourceID, mergedID string) error {
	rec, err := s.GetRecord(ctx, sourceID)
	if err != nil {
		return err
	}
	if rec == nil {
		return eris.Errorf("record not found: %s", sourceID)
	}
	if rec.MergedInto != "" && rec.MergedInto != mergedID {
		return eris.Errorf("record %s already merged into %s", sourceID, rec.MergedInto)
	}

	rec.MergedInto = mergedID
	data, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal record")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE records SET merged_into = $1, data = $2 WHERE id = $3`,
		mergedID, data, sourceID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark merged %s", sourceID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("record not found: %s", sourceID)
	}
	return nil
}

// Duplicate flags

func (s *PostgresStore) InsertDuplicateFlags(ctx context.Context, flags []model.DuplicateFlag) error {
	for _, f := range flags {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO duplicate_flags (candidate_a, candidate_b, score, method, flagged_at)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (candidate_a, candidate_b, method) DO UPDATE SET score = $3, flagged_at = $5`,
			f.CandidateA, f.CandidateB, f.SimilarityScore, f.MethodVersion, f.FlaggedAt.UTC(),
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert duplicate flag %s/%s", f.CandidateA, f.CandidateB)
		}
	}
	return nil
}

func (s *PostgresStore) ListDuplicateFlags(ctx context.Context) ([]model.DuplicateFlag, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT candidate_a, candidate_b, score, method, flagged_at FROM duplicate_flags
		 ORDER BY candidate_a, candidate_b`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list duplicate flags")
	}
	defer rows.Close()

	var out []model.DuplicateFlag
	for rows.Next() {
		var f model.DuplicateFlag
		if err := rows.Scan(&f.CandidateA, &f.CandidateB, &f.SimilarityScore, &f.MethodVersion, &f.FlaggedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan duplicate flag")
		}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list duplicate flags iterate")
}

// Derived artifacts

func (s *PostgresStore) ReplaceEvaluationResults(ctx context.Context, results []model.EvaluationResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin replace evaluations")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM evaluation_results`); err != nil {
		return eris.Wrap(err, "postgres: clear evaluations")
	}
	for i, r := range results {
		data, err := json.Marshal(r)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal evaluation")
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO evaluation_results (record_id, rule_name, position, data) VALUES ($1, $2, $3, $4)`,
			r.RecordID, r.RuleName, i, data,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert evaluation %s/%s", r.RecordID, r.RuleName)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit replace evaluations")
}

func (s *PostgresStore) ListEvaluationResults(ctx context.Context, recordID string) ([]model.EvaluationResult, error) {
	query := `SELECT data FROM evaluation_results`
	args := []any{}
	if recordID != "" {
		query += ` WHERE record_id = $1`
		args = append(args, recordID)
	}
	query += ` ORDER BY position`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list evaluations")
	}
	defer rows.Close()

	var out []model.EvaluationResult
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan evaluation")
		}
		var r model.EvaluationResult
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal evaluation")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list evaluations iterate")
}

func (s *PostgresStore) ReplaceRankScores(ctx context.Context, scores []model.RankScore) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin replace ranks")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM rank_scores`); err != nil {
		return eris.Wrap(err, "postgres: clear ranks")
	}
	for _, sc := range scores {
		data, err := json.Marshal(sc)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal rank score")
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO rank_scores (record_id, rank, data) VALUES ($1, $2, $3)`,
			sc.RecordID, sc.Rank, data,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert rank score %s", sc.RecordID)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit replace ranks")
}

func (s *PostgresStore) ListRankScores(ctx context.Context) ([]model.RankScore, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM rank_scores ORDER BY rank`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list rank scores")
	}
	defer rows.Close()

	var out []model.RankScore
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan rank score")
		}
		var sc model.RankScore
		if err := json.Unmarshal(data, &sc); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal rank score")
		}
		out = append(out, sc)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list rank scores iterate")
}

// Deletion store

func (s *PostgresStore) MoveToDeleted(ctx context.Context, del *model.DeletedRecord) error {
	data, err := json.Marshal(del)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal deleted record")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin delete")
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM records WHERE id = $1`, del.RecordID)
	if err != nil {
		return eris.Wrapf(err, "postgres: remove record %s", del.RecordID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("record not found: %s", del.RecordID)
	}

	// A restored record can be deleted again; the new deletion replaces the
	// previous entry so the active/deleted cycle is repeatable per id.
	if _, err := tx.Exec(ctx,
		`INSERT INTO deleted_records (record_id, restored, data) VALUES ($1, false, $2)
		 ON CONFLICT (record_id) DO UPDATE SET restored = false, data = EXCLUDED.data`,
		del.RecordID, data,
	); err != nil {
		return eris.Wrapf(err, "postgres: insert deleted record %s", del.RecordID)
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit delete")
}

func (s *PostgresStore) GetDeleted(ctx context.Context, recordID string) (*model.DeletedRecord, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM deleted_records WHERE record_id = $1`, recordID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get deleted record %s", recordID)
	}
	var del model.DeletedRecord
	if err := json.Unmarshal(data, &del); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal deleted record")
	}
	return &del, nil
}

func (s *PostgresStore) ListDeleted(ctx context.Context) ([]model.DeletedRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM deleted_records ORDER BY record_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list deleted records")
	}
	defer rows.Close()

	var out []model.DeletedRecord
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan deleted record")
		}
		var del model.DeletedRecord
		if err := json.Unmarshal(data, &del); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal deleted record")
		}
		out = append(out, del)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list deleted records iterate")
}

func (s *PostgresStore) RestoreRecord(ctx context.Context, recordID, restoredBy string, at time.Time) (*model.FinalizedRecord, error) {
	del, err := s.GetDeleted(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if del == nil {
		return nil, eris.Errorf("deleted record not found: %s", recordID)
	}
	if del.Restored {
		return nil, eris.Errorf("record already restored: %s", recordID)
	}

	at = at.UTC()
	del.Restored = true
	del.RestoredAt = &at
	del.RestoredBy = restoredBy

	delData, err := json.Marshal(del)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal deleted record")
	}

	rec := del.Original
	recData, err := json.Marshal(&rec)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal restored record")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin restore")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO records (id, status, internal_only, is_merged, merged_into, data, finalized_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, string(rec.Status), rec.InternalOnly, rec.IsMerged(), rec.MergedInto, recData, rec.FinalizedAt.UTC(),
	); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, &ConflictError{ID: rec.ID}
		}
		return nil, eris.Wrapf(err, "postgres: reinsert record %s", rec.ID)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE deleted_records SET restored = true, data = $1 WHERE record_id = $2`,
		delData, recordID,
	); err != nil {
		return nil, eris.Wrapf(err, "postgres: mark restored %s", recordID)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit restore")
	}
	return &rec, nil
}

// Extraction failures

func (s *PostgresStore) InsertExtractionFailure(ctx context.Context, f *model.ExtractionFailure) error {
	data, err := json.Marshal(f)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal extraction failure")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO extraction_failures (evidence_id, data) VALUES ($1, $2)`,
		f.EvidenceID, data,
	)
	return eris.Wrapf(err, "postgres: insert extraction failure %s", f.EvidenceID)
}

func (s *PostgresStore) ListExtractionFailures(ctx context.Context) ([]model.ExtractionFailure, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM extraction_failures ORDER BY seq`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list extraction failures")
	}
	defer rows.Close()

	var out []model.ExtractionFailure
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan extraction failure")
		}
		var f model.ExtractionFailure
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal extraction failure")
		}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list extraction failures iterate")
}

// Audit

func (s *PostgresStore) AppendAudit(ctx context.Context, ev model.AuditEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal audit event")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO audit_log (id, kind, at, data) VALUES ($1, $2, $3, $4)`,
		ev.ID, string(ev.Kind), ev.At.UTC(), data,
	)
	return eris.Wrapf(err, "postgres: append audit %s", ev.ID)
}

func (s *PostgresStore) ListAudit(ctx context.Context, kind model.AuditKind, limit int) ([]model.AuditEvent, error) {
	query := `SELECT data FROM audit_log`
	args := []any{}
	argIdx := 1
	if kind != "" {
		query += fmt.Sprintf(` WHERE kind = $%d`, argIdx)
		args = append(args, string(kind))
		argIdx++
	}
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` ORDER BY at DESC, id LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list audit")
	}
	defer rows.Close()

	var out []model.AuditEvent
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan audit event")
		}
		var ev model.AuditEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal audit event")
		}
		out = append(out, ev)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list audit iterate")
}

// Snapshot

func (s *PostgresStore) Snapshot(ctx context.Context, f SnapshotFilter) ([]model.FinalizedRecord, error) {
	query := `SELECT data FROM records WHERE merged_into = ''`
	args := []any{}
	argIdx := 1

	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		query += fmt.Sprintf(` AND status = ANY($%d)`, argIdx)
		args = append(args, statuses)
		argIdx++
	}
	if !f.IncludeInternal {
		query += ` AND internal_only = false`
	}
	query += ` ORDER BY id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: snapshot")
	}
	defer rows.Close()
	return collectPgRecords(rows)
}

func collectPgRecords(rows pgx.Rows) ([]model.FinalizedRecord, error) {
	var out []model.FinalizedRecord
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		var rec model.FinalizedRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal record")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate records")
}
