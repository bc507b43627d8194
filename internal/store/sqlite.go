package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/wins-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS evidence (
	id         TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS records (
	id            TEXT PRIMARY KEY,
	status        TEXT NOT NULL DEFAULT 'pending',
	internal_only INTEGER NOT NULL DEFAULT 0,
	is_merged     INTEGER NOT NULL DEFAULT 0,
	merged_into   TEXT NOT NULL DEFAULT '',
	data          TEXT NOT NULL,
	finalized_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS duplicate_flags (
	candidate_a TEXT NOT NULL,
	candidate_b TEXT NOT NULL,
	score       REAL NOT NULL,
	method      TEXT NOT NULL,
	flagged_at  DATETIME NOT NULL,
	PRIMARY KEY (candidate_a, candidate_b, method)
);

CREATE TABLE IF NOT EXISTS evaluation_results (
	record_id TEXT NOT NULL,
	rule_name TEXT NOT NULL,
	position  INTEGER NOT NULL,
	data      TEXT NOT NULL,
	PRIMARY KEY (record_id, rule_name)
);

CREATE TABLE IF NOT EXISTS rank_scores (
	record_id TEXT PRIMARY KEY,
	rank      INTEGER NOT NULL,
	data      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS deleted_records (
	record_id TEXT PRIMARY KEY,
	restored  INTEGER NOT NULL DEFAULT 0,
	data      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS extraction_failures (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	evidence_id TEXT NOT NULL,
	data        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_log (
	id   TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	at   DATETIME NOT NULL,
	data TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_status ON records(status);
CREATE INDEX IF NOT EXISTS idx_eval_record ON evaluation_results(record_id);
CREATE INDEX IF NOT EXISTS idx_failures_evidence ON extraction_failures(evidence_id);
CREATE INDEX IF NOT EXISTS idx_audit_kind ON audit_log(kind);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Evidence

func (s *SQLiteStore) InsertEvidence(ctx context.Context, ev model.Evidence) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal evidence")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO evidence (id, data, created_at) VALUES (?, ?, ?)`,
		ev.ID, string(data), ev.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert evidence %s", ev.ID)
}

func (s *SQLiteStore) GetEvidence(ctx context.Context, id string) (*model.Evidence, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM evidence WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get evidence %s", id)
	}
	var ev model.Evidence
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal evidence")
	}
	return &ev, nil
}

func (s *SQLiteStore) ListEvidence(ctx context.Context) ([]model.Evidence, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM evidence ORDER BY created_at, id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list evidence")
	}
	defer rows.Close()

	var out []model.Evidence
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan evidence")
		}
		var ev model.Evidence
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal evidence")
		}
		out = append(out, ev)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list evidence iterate")
}

// Records

func (s *SQLiteStore) InsertRecord(ctx context.Context, rec *model.FinalizedRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal record")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (id, status, internal_only, is_merged, merged_into, data, finalized_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Status), boolToInt(rec.InternalOnly), boolToInt(rec.IsMerged()),
		rec.MergedInto, string(data), rec.FinalizedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &ConflictError{ID: rec.ID}
		}
		return eris.Wrapf(err, "sqlite: insert record %s", rec.ID)
	}
	return nil
}

func (s *SQLiteStore) GetRecord(ctx context.Context, id string) (*model.FinalizedRecord, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM records WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get record %s", id)
	}
	return unmarshalRecord(data)
}

func (s *SQLiteStore) ListRecords(ctx context.Context, f RecordFilter) ([]model.FinalizedRecord, error) {
	query := `SELECT data FROM records WHERE 1=1`
	var args []any

	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if !f.IncludeMergedSources {
		query += ` AND merged_into = ''`
	}
	query += ` ORDER BY id`

	// No default cap: callers that list without a limit get every record.
	// Paging is opt-in via the filter.
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
		if f.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, f.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list records")
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (s *SQLiteStore) UpdateRecordStatus(ctx context.Context, id string, status model.RecordStatus) error {
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
		return eris.Wrap(err, "sqlite: marshal record")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET status = ?, data = ? WHERE id = ?`,
		string(status), string(data), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update record status %s", id)
	}
	return checkRowsAffected(res, "record", id)
}

func (s *SQLiteStore) MarkMergedInto(ctx context.Context, sourceID, mergedID string) error {
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
		return eris.Wrap(err, "sqlite: marshal record")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET merged_into = ?, data = ? WHERE id = ?`,
		mergedID, string(data), sourceID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark merged %s", sourceID)
	}
	return checkRowsAffected(res, "record", sourceID)
}

// Duplicate flags

func (s *SQLiteStore) InsertDuplicateFlags(ctx context.Context, flags []model.DuplicateFlag) error {
	for _, f := range flags {
		_, err := s.db.ExecContext(ctx,
			`INSERT OR REPLACE INTO duplicate_flags (candidate_a, candidate_b, score, method, flagged_at)
			 VALUES (?, ?, ?, ?, ?)`,
			f.CandidateA, f.CandidateB, f.SimilarityScore, f.MethodVersion, f.FlaggedAt.UTC(),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert duplicate flag %s/%s", f.CandidateA, f.CandidateB)
		}
	}
	return nil
}

func (s *SQLiteStore) ListDuplicateFlags(ctx context.Context) ([]model.DuplicateFlag, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT candidate_a, candidate_b, score, method, flagged_at FROM duplicate_flags
		 ORDER BY candidate_a, candidate_b`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list duplicate flags")
	}
	defer rows.Close()

	var out []model.DuplicateFlag
	for rows.Next() {
		var f model.DuplicateFlag
		if err := rows.Scan(&f.CandidateA, &f.CandidateB, &f.SimilarityScore, &f.MethodVersion, &f.FlaggedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan duplicate flag")
		}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list duplicate flags iterate")
}

// Derived artifacts

func (s *SQLiteStore) ReplaceEvaluationResults(ctx context.Context, results []model.EvaluationResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin replace evaluations")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM evaluation_results`); err != nil {
		return eris.Wrap(err, "sqlite: clear evaluations")
	}
	for i, r := range results {
		data, err := json.Marshal(r)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal evaluation")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO evaluation_results (record_id, rule_name, position, data) VALUES (?, ?, ?, ?)`,
			r.RecordID, r.RuleName, i, string(data),
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert evaluation %s/%s", r.RecordID, r.RuleName)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit replace evaluations")
}

func (s *SQLiteStore) ListEvaluationResults(ctx context.Context, recordID string) ([]model.EvaluationResult, error) {
	query := `SELECT data FROM evaluation_results`
	var args []any
	if recordID != "" {
		query += ` WHERE record_id = ?`
		args = append(args, recordID)
	}
	query += ` ORDER BY position`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list evaluations")
	}
	defer rows.Close()

	var out []model.EvaluationResult
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan evaluation")
		}
		var r model.EvaluationResult
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal evaluation")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list evaluations iterate")
}

func (s *SQLiteStore) ReplaceRankScores(ctx context.Context, scores []model.RankScore) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin replace ranks")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM rank_scores`); err != nil {
		return eris.Wrap(err, "sqlite: clear ranks")
	}
	for _, sc := range scores {
		data, err := json.Marshal(sc)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal rank score")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rank_scores (record_id, rank, data) VALUES (?, ?, ?)`,
			sc.RecordID, sc.Rank, string(data),
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert rank score %s", sc.RecordID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit replace ranks")
}

func (s *SQLiteStore) ListRankScores(ctx context.Context) ([]model.RankScore, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM rank_scores ORDER BY rank`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list rank scores")
	}
	defer rows.Close()

	var out []model.RankScore
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan rank score")
		}
		var sc model.RankScore
		if err := json.Unmarshal([]byte(data), &sc); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal rank score")
		}
		out = append(out, sc)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list rank scores iterate")
}

// Deletion store

func (s *SQLiteStore) MoveToDeleted(ctx context.Context, del *model.DeletedRecord) error {
	data, err := json.Marshal(del)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal deleted record")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin delete")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, del.RecordID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: remove record %s", del.RecordID)
	}
	if err := checkRowsAffected(res, "record", del.RecordID); err != nil {
		return err
	}

	// A restored record can be deleted again; the new deletion replaces the
	// previous entry so the active/deleted cycle is repeatable per id.
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO deleted_records (record_id, restored, data) VALUES (?, 0, ?)`,
		del.RecordID, string(data),
	); err != nil {
		return eris.Wrapf(err, "sqlite: insert deleted record %s", del.RecordID)
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit delete")
}

func (s *SQLiteStore) GetDeleted(ctx context.Context, recordID string) (*model.DeletedRecord, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM deleted_records WHERE record_id = ?`, recordID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get deleted record %s", recordID)
	}
	var del model.DeletedRecord
	if err := json.Unmarshal([]byte(data), &del); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal deleted record")
	}
	return &del, nil
}

func (s *SQLiteStore) ListDeleted(ctx context.Context) ([]model.DeletedRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM deleted_records ORDER BY record_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list deleted records")
	}
	defer rows.Close()

	var out []model.DeletedRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan deleted record")
		}
		var del model.DeletedRecord
		if err := json.Unmarshal([]byte(data), &del); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal deleted record")
		}
		out = append(out, del)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list deleted records iterate")
}

func (s *SQLiteStore) RestoreRecord(ctx context.Context, recordID, restoredBy string, at time.Time) (*model.FinalizedRecord, error) {
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
		return nil, eris.Wrap(err, "sqlite: marshal deleted record")
	}

	// The original is re-inserted unchanged, field for field.
	rec := del.Original
	recData, err := json.Marshal(&rec)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal restored record")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin restore")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO records (id, status, internal_only, is_merged, merged_into, data, finalized_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Status), boolToInt(rec.InternalOnly), boolToInt(rec.IsMerged()),
		rec.MergedInto, string(recData), rec.FinalizedAt.UTC(),
	); err != nil {
		if isUniqueViolation(err) {
			return nil, &ConflictError{ID: rec.ID}
		}
		return nil, eris.Wrapf(err, "sqlite: reinsert record %s", rec.ID)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE deleted_records SET restored = 1, data = ? WHERE record_id = ?`,
		string(delData), recordID,
	); err != nil {
		return nil, eris.Wrapf(err, "sqlite: mark restored %s", recordID)
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit restore")
	}
	return &rec, nil
}

// Extraction failures

func (s *SQLiteStore) InsertExtractionFailure(ctx context.Context, f *model.ExtractionFailure) error {
	data, err := json.Marshal(f)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal extraction failure")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO extraction_failures (evidence_id, data) VALUES (?, ?)`,
		f.EvidenceID, string(data),
	)
	return eris.Wrapf(err, "sqlite: insert extraction failure %s", f.EvidenceID)
}

func (s *SQLiteStore) ListExtractionFailures(ctx context.Context) ([]model.ExtractionFailure, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM extraction_failures ORDER BY seq`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list extraction failures")
	}
	defer rows.Close()

	var out []model.ExtractionFailure
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan extraction failure")
		}
		var f model.ExtractionFailure
		if err := json.Unmarshal([]byte(data), &f); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal extraction failure")
		}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list extraction failures iterate")
}

// Audit

func (s *SQLiteStore) AppendAudit(ctx context.Context, ev model.AuditEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal audit event")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, kind, at, data) VALUES (?, ?, ?, ?)`,
		ev.ID, string(ev.Kind), ev.At.UTC(), string(data),
	)
	return eris.Wrapf(err, "sqlite: append audit %s", ev.ID)
}

func (s *SQLiteStore) ListAudit(ctx context.Context, kind model.AuditKind, limit int) ([]model.AuditEvent, error) {
	query := `SELECT data FROM audit_log`
	var args []any
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY at DESC, id LIMIT ?`
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list audit")
	}
	defer rows.Close()

	var out []model.AuditEvent
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan audit event")
		}
		var ev model.AuditEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal audit event")
		}
		out = append(out, ev)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list audit iterate")
}

// Snapshot

func (s *SQLiteStore) Snapshot(ctx context.Context, f SnapshotFilter) ([]model.FinalizedRecord, error) {
	query := `SELECT data FROM records WHERE merged_into = ''`
	var args []any

	if len(f.Statuses) > 0 {
		query += ` AND status IN (`
		for i, st := range f.Statuses {
			if i > 0 {
				query += `, `
			}
			query += `?`
			args = append(args, string(st))
		}
		query += `)`
	}
	if !f.IncludeInternal {
		query += ` AND internal_only = 0`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: snapshot")
	}
	defer rows.Close()
	return collectRecords(rows)
}

// helpers

func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", kind, id)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	// modernc.org/sqlite reports constraint violations by message.
	return strings.Contains(err.Error(), "constraint failed")
}

func unmarshalRecord(data string) (*model.FinalizedRecord, error) {
	var rec model.FinalizedRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal record")
	}
	return &rec, nil
}

func collectRecords(rows *sql.Rows) ([]model.FinalizedRecord, error) {
	var out []model.FinalizedRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		rec, err := unmarshalRecord(data)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate records")
}
