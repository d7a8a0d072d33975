// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package detection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/attendguard/internal/database"
	"github.com/tomtom215/attendguard/internal/database/query"
	"github.com/tomtom215/attendguard/internal/logging"
	"github.com/tomtom215/attendguard/internal/metrics"
)

// DuckDBStore implements ViolationStore using DuckDB as the backend storage.
// Violations are never deleted; review transitions are appended to
// violation_reviews.
type DuckDBStore struct {
	db *sql.DB
}

// NewDuckDBStore creates a new DuckDB-backed store.
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db}
}

const (
	violationsTable = "violations"
	reviewsTable    = "violation_reviews"

	violationSelectColumns = `id, session_id, attendance_record_id, student_id, student_identifier,
		ip_address, user_agent, device_fingerprint, gps_lat, gps_lng, gps_accuracy_meters,
		checked_in_at, violation_type, signals, risk_score, score_source, details,
		distance_from_geofence, ml_probability, status, reviewed_by, review_notes,
		reviewed_at, created_at, updated_at`
)

// InitSchema creates the violation tables if they don't exist.
func (s *DuckDBStore) InitSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS violations (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			attendance_record_id TEXT,
			student_id TEXT NOT NULL,
			student_identifier TEXT NOT NULL,
			ip_address TEXT,
			user_agent TEXT,
			device_fingerprint TEXT,
			gps_lat DOUBLE NOT NULL,
			gps_lng DOUBLE NOT NULL,
			gps_accuracy_meters DOUBLE NOT NULL,
			checked_in_at TIMESTAMP NOT NULL,
			violation_type TEXT NOT NULL,
			signals TEXT,
			risk_score DOUBLE NOT NULL,
			score_source TEXT,
			details TEXT NOT NULL,
			distance_from_geofence DOUBLE,
			ml_probability DOUBLE,
			status TEXT NOT NULL DEFAULT 'flagged',
			reviewed_by TEXT,
			review_notes TEXT,
			reviewed_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS violation_reviews (
			id TEXT PRIMARY KEY,
			violation_id TEXT NOT NULL,
			from_status TEXT NOT NULL,
			to_status TEXT NOT NULL,
			reviewed_by TEXT NOT NULL,
			review_notes TEXT,
			reviewed_at TIMESTAMP NOT NULL
		)`,

		// Indexes only cover columns that are never updated.
		`CREATE INDEX IF NOT EXISTS idx_violations_session_id ON violations(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_violations_student_id ON violations(student_id)`,
		`CREATE INDEX IF NOT EXISTS idx_violations_created_at ON violations(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_violation_id ON violation_reviews(violation_id)`,
	}

	for _, stmt := range queries {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}

	// Flush the WAL so a restart does not replay schema statements.
	if _, err := s.db.ExecContext(ctx, "CHECKPOINT"); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint after violation schema initialization")
	}

	return nil
}

// SaveViolation persists a new violation, assigning an id and timestamps if missing.
func (s *DuckDBStore) SaveViolation(ctx context.Context, v *Violation) error {
	start := time.Now()

	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.Status == "" {
		v.Status = StatusFlagged
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	if v.UpdatedAt.IsZero() {
		v.UpdatedAt = v.CreatedAt
	}

	signals, err := json.Marshal(v.Signals)
	if err != nil {
		return fmt.Errorf("failed to marshal signals: %w", err)
	}

	insert := `INSERT INTO violations (` + violationSelectColumns + `)
		VALUES (` + query.Placeholders(25) + `)`

	_, err = s.db.ExecContext(ctx, insert,
		v.ID,
		v.SessionID,
		nullableString(v.AttendanceRecordID),
		v.StudentID,
		v.StudentIdentifier,
		v.IPAddress,
		v.UserAgent,
		v.DeviceFingerprint,
		v.GPSLat,
		v.GPSLng,
		v.GPSAccuracyMeters,
		v.Timestamp.UTC(),
		string(v.ViolationType),
		string(signals),
		v.RiskScore,
		v.ScoreSource,
		v.Details,
		nullableFloat(v.DistanceFromGeofence),
		nullableFloat(v.MLProbability),
		string(v.Status),
		v.ReviewedBy,
		v.ReviewNotes,
		nullableTime(v.ReviewedAt),
		v.CreatedAt.UTC(),
		v.UpdatedAt.UTC(),
	)
	metrics.RecordDBQuery("insert", violationsTable, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to insert violation: %w", err)
	}

	return nil
}

// GetViolation retrieves a violation by ID.
func (s *DuckDBStore) GetViolation(ctx context.Context, id string) (*Violation, error) {
	return s.getViolation(ctx, s.db, id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, q string, args ...any) *sql.Row
}

func (s *DuckDBStore) getViolation(ctx context.Context, q queryRower, id string) (*Violation, error) {
	start := time.Now()
	v := &Violation{}
	err := scanViolationRow(q.QueryRowContext(ctx,
		`SELECT `+violationSelectColumns+` FROM violations WHERE id = ?`, id), v)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordDBQuery("select", violationsTable, time.Since(start), nil)
		return nil, fmt.Errorf("%w: %s", ErrViolationNotFound, id)
	}
	metrics.RecordDBQuery("select", violationsTable, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to get violation: %w", err)
	}

	return v, nil
}

// ListViolations retrieves violations with optional filtering.
// Security: values are parameterized and ORDER BY columns are whitelisted.
func (s *DuckDBStore) ListViolations(ctx context.Context, filter ViolationFilter) ([]Violation, error) {
	start := time.Now()
	q, args := s.buildViolationQuery(filter)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		metrics.RecordDBQuery("select", violationsTable, time.Since(start), err)
		return nil, fmt.Errorf("failed to query violations: %w", err)
	}
	defer rows.Close()

	violations := make([]Violation, 0)
	for rows.Next() {
		var v Violation
		if err := scanViolationRow(rows, &v); err != nil {
			return nil, fmt.Errorf("failed to scan violation: %w", err)
		}
		violations = append(violations, v)
	}
	err = rows.Err()
	metrics.RecordDBQuery("select", violationsTable, time.Since(start), err)
	return violations, err
}

// CountViolations returns the count of violations matching the filter.
func (s *DuckDBStore) CountViolations(ctx context.Context, filter ViolationFilter) (int, error) {
	start := time.Now()
	where, args := violationWhere(filter)

	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM violations `+where, args...).Scan(&count)
	metrics.RecordDBQuery("count", violationsTable, time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("failed to count violations: %w", err)
	}
	return count, nil
}

// ViolationStats returns per-type and per-status counts for matching violations.
// Pagination and ordering fields of the filter are ignored.
func (s *DuckDBStore) ViolationStats(ctx context.Context, filter ViolationFilter) (*ViolationStats, error) {
	start := time.Now()
	where, args := violationWhere(filter)
	q := `SELECT violation_type, status, COUNT(*), COALESCE(SUM(risk_score), 0) FROM violations ` +
		where + ` GROUP BY violation_type, status`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		metrics.RecordDBQuery("stats", violationsTable, time.Since(start), err)
		return nil, fmt.Errorf("failed to query violation stats: %w", err)
	}
	defer rows.Close()

	stats := &ViolationStats{
		ByType:   make(map[ViolationType]int),
		ByStatus: make(map[ViolationStatus]int),
	}
	var scoreSum float64
	for rows.Next() {
		var (
			vType  string
			status string
			count  int
			sum    float64
		)
		if err := rows.Scan(&vType, &status, &count, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan violation stats: %w", err)
		}
		stats.ByType[ViolationType(vType)] += count
		stats.ByStatus[ViolationStatus(status)] += count
		stats.Total += count
		scoreSum += sum
	}
	if err := rows.Err(); err != nil {
		metrics.RecordDBQuery("stats", violationsTable, time.Since(start), err)
		return nil, err
	}
	metrics.RecordDBQuery("stats", violationsTable, time.Since(start), nil)

	if stats.Total > 0 {
		stats.AvgRiskScore = roundTo2Decimals(scoreSum / float64(stats.Total))
	}
	return stats, nil
}

// TransitionViolation moves a violation from one status to another and writes
// the audit row in the same transaction. The status guard in the UPDATE makes
// concurrent reviewers race safely: only one of them can win a given move.
func (s *DuckDBStore) TransitionViolation(ctx context.Context, id string, from, to ViolationStatus, reviewedBy string, notes *string, at time.Time) (*Violation, error) {
	start := time.Now()
	at = at.UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE violations
		SET status = ?, reviewed_by = ?, review_notes = COALESCE(CAST(? AS TEXT), review_notes),
			reviewed_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(to), reviewedBy, nullableString(notes), at, at, id, string(from))
	if database.IsTransactionConflict(err) {
		// Another reviewer is moving the same violation.
		metrics.RecordDBQuery("update", violationsTable, time.Since(start), nil)
		return nil, fmt.Errorf("%w: concurrent review of %s", ErrInvalidTransition, id)
	}
	if err != nil {
		metrics.RecordDBQuery("update", violationsTable, time.Since(start), err)
		return nil, fmt.Errorf("failed to update violation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		current, err := s.getViolation(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: status is %s, expected %s", ErrInvalidTransition, current.Status, from)
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO violation_reviews
		(id, violation_id, from_status, to_status, reviewed_by, review_notes, reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), id, string(from), string(to), reviewedBy, nullableString(notes), at)
	if err != nil {
		metrics.RecordDBQuery("insert", reviewsTable, time.Since(start), err)
		return nil, fmt.Errorf("failed to record review: %w", err)
	}

	updated, err := s.getViolation(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		if database.IsTransactionConflict(err) {
			return nil, fmt.Errorf("%w: concurrent review of %s", ErrInvalidTransition, id)
		}
		return nil, fmt.Errorf("failed to commit transition: %w", err)
	}
	metrics.RecordDBQuery("update", violationsTable, time.Since(start), nil)

	return updated, nil
}

// ReviewHistory returns the audit trail of a violation, oldest first.
func (s *DuckDBStore) ReviewHistory(ctx context.Context, id string) ([]ReviewRecord, error) {
	if _, err := s.GetViolation(ctx, id); err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, `SELECT id, violation_id, from_status, to_status,
		reviewed_by, COALESCE(review_notes, ''), reviewed_at
		FROM violation_reviews WHERE violation_id = ? ORDER BY reviewed_at ASC, id ASC`, id)
	if err != nil {
		metrics.RecordDBQuery("select", reviewsTable, time.Since(start), err)
		return nil, fmt.Errorf("failed to query review history: %w", err)
	}
	defer rows.Close()

	records := make([]ReviewRecord, 0)
	for rows.Next() {
		var r ReviewRecord
		var from, to string
		if err := rows.Scan(&r.ID, &r.ViolationID, &from, &to, &r.ReviewedBy, &r.ReviewNotes, &r.ReviewedAt); err != nil {
			return nil, fmt.Errorf("failed to scan review record: %w", err)
		}
		r.FromStatus = ViolationStatus(from)
		r.ToStatus = ViolationStatus(to)
		records = append(records, r)
	}
	err = rows.Err()
	metrics.RecordDBQuery("select", reviewsTable, time.Since(start), err)
	return records, err
}

// buildViolationQuery constructs the SQL query and args for violation filtering.
func (s *DuckDBStore) buildViolationQuery(filter ViolationFilter) (string, []interface{}) {
	where, args := violationWhere(filter)
	q := `SELECT ` + violationSelectColumns + ` FROM violations ` + where
	q = applyViolationOrdering(q, filter)
	return applyViolationPagination(q, args, filter)
}

// violationWhere builds the WHERE clause for a violation filter.
func violationWhere(filter ViolationFilter) (string, []interface{}) {
	types := make([]string, len(filter.Types))
	for i, t := range filter.Types {
		types[i] = string(t)
	}
	statuses := make([]string, len(filter.Statuses))
	for i, st := range filter.Statuses {
		statuses[i] = string(st)
	}

	return query.NewWhereBuilder().
		AddEquals("session_id", filter.SessionID).
		AddEquals("student_id", filter.StudentID).
		AddIn("violation_type", types).
		AddIn("status", statuses).
		AddMin("risk_score", filter.MinRiskScore).
		AddTimeRange("created_at", filter.StartDate, filter.EndDate).
		BuildWithPrefix()
}

// validViolationOrderColumns is a whitelist of columns that can be used for ordering.
var validViolationOrderColumns = map[string]bool{
	"created_at":     true,
	"checked_in_at":  true,
	"risk_score":     true,
	"violation_type": true,
	"status":         true,
}

func applyViolationOrdering(q string, filter ViolationFilter) string {
	orderBy := "created_at"
	if validViolationOrderColumns[filter.OrderBy] {
		orderBy = filter.OrderBy
	}

	orderDir := "DESC"
	if upperDir := strings.ToUpper(filter.OrderDirection); upperDir == "ASC" || upperDir == "DESC" {
		orderDir = upperDir
	}

	// id breaks ties so pagination is stable.
	return q + fmt.Sprintf(" ORDER BY %s %s, id %s", orderBy, orderDir, orderDir)
}

// applyViolationPagination adds LIMIT and OFFSET clauses.
func applyViolationPagination(q string, args []interface{}, filter ViolationFilter) (string, []interface{}) {
	if filter.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, filter.Limit)
	} else {
		q += " LIMIT 100"
	}

	if filter.Offset > 0 {
		q += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	return q, args
}

// scanViolationRow scans a single violation row with nullable fields handling.
func scanViolationRow(scanner interface {
	Scan(dest ...interface{}) error
}, v *Violation) error {
	var (
		attendanceRecordID, ipAddress, userAgent, fingerprint sql.NullString
		signals, scoreSource, reviewedBy, reviewNotes         sql.NullString
		distance, probability                                 sql.NullFloat64
		reviewedAt                                            sql.NullTime
		violationType, status                                 string
	)

	if err := scanner.Scan(
		&v.ID,
		&v.SessionID,
		&attendanceRecordID,
		&v.StudentID,
		&v.StudentIdentifier,
		&ipAddress,
		&userAgent,
		&fingerprint,
		&v.GPSLat,
		&v.GPSLng,
		&v.GPSAccuracyMeters,
		&v.Timestamp,
		&violationType,
		&signals,
		&v.RiskScore,
		&scoreSource,
		&v.Details,
		&distance,
		&probability,
		&status,
		&reviewedBy,
		&reviewNotes,
		&reviewedAt,
		&v.CreatedAt,
		&v.UpdatedAt,
	); err != nil {
		return err
	}

	v.ViolationType = ViolationType(violationType)
	v.Status = ViolationStatus(status)
	v.IPAddress = ipAddress.String
	v.UserAgent = userAgent.String
	v.DeviceFingerprint = fingerprint.String
	v.ScoreSource = scoreSource.String
	v.ReviewedBy = reviewedBy.String
	v.ReviewNotes = reviewNotes.String

	if attendanceRecordID.Valid {
		id := attendanceRecordID.String
		v.AttendanceRecordID = &id
	}
	if distance.Valid {
		d := distance.Float64
		v.DistanceFromGeofence = &d
	}
	if probability.Valid {
		p := probability.Float64
		v.MLProbability = &p
	}
	if reviewedAt.Valid {
		t := reviewedAt.Time
		v.ReviewedAt = &t
	}

	v.Signals = nil
	if signals.Valid && signals.String != "" {
		if err := json.Unmarshal([]byte(signals.String), &v.Signals); err != nil {
			return fmt.Errorf("failed to decode signals: %w", err)
		}
	}

	return nil
}

func nullableString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nullableFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
