package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"
	"github.com/google/uuid"
	"github.com/safedep/gatekeeper/core/audit"
	"github.com/safedep/gatekeeper/core/gatekeeper"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite. Schema is managed by the ent
// migration engine and queries are built with the ent SQL builder.
type SQLiteStore struct {
	drv  *entsql.Driver
	db   *sql.DB
	path string
	now  func() time.Time
}

// NewSQLiteStore creates a new SQLite store at the given path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Use _pragma=foreign_keys(1) for modernc.org/sqlite
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &SQLiteStore{
		drv:  entsql.OpenDB(dialect.SQLite, db),
		db:   db,
		path: path,
		now:  time.Now,
	}, nil
}

// Init initializes the database schema.
func (s *SQLiteStore) Init(ctx context.Context) error {
	migrate, err := schema.NewMigrate(s.drv)
	if err != nil {
		return fmt.Errorf("failed to prepare schema migration: %w", err)
	}
	if err := migrate.Create(ctx, Tables...); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.drv.Close()
}

func builder() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.SQLite)
}

// ReadPolicy returns the stored document for a guild.
func (s *SQLiteStore) ReadPolicy(ctx context.Context, guildID string) ([]byte, bool, error) {
	b := builder()
	query, args := b.Select("document").
		From(b.Table(tablePolicies)).
		Where(entsql.EQ("guild_id", guildID)).
		Query()

	var doc []byte
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read policy for guild %s: %w", guildID, err)
	}
	if doc == nil {
		doc = []byte{}
	}

	return doc, true, nil
}

// WritePolicy inserts or replaces the document for a guild.
func (s *SQLiteStore) WritePolicy(ctx context.Context, guildID string, doc []byte) error {
	if doc == nil {
		doc = []byte{}
	}

	query, args := builder().Insert(tablePolicies).
		Columns("guild_id", "document", "updated_at_ns").
		Values(guildID, doc, s.now().UTC().UnixNano()).
		OnConflict(
			entsql.ConflictColumns("guild_id"),
			entsql.ResolveWithNewValues(),
		).
		Query()

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to write policy for guild %s: %w", guildID, err)
	}
	return nil
}

// DeletePolicy removes the document for a guild.
func (s *SQLiteStore) DeletePolicy(ctx context.Context, guildID string) error {
	query, args := builder().Delete(tablePolicies).
		Where(entsql.EQ("guild_id", guildID)).
		Query()

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete policy for guild %s: %w", guildID, err)
	}
	return nil
}

// ListPolicies returns metadata for every stored document.
func (s *SQLiteStore) ListPolicies(ctx context.Context) ([]PolicyInfo, error) {
	b := builder()
	query, args := b.Select("guild_id", "length(document)", "updated_at_ns").
		From(b.Table(tablePolicies)).
		OrderBy("guild_id").
		Query()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	defer rows.Close()

	var infos []PolicyInfo
	for rows.Next() {
		var (
			info      PolicyInfo
			updatedNs int64
		)
		if err := rows.Scan(&info.GuildID, &info.SizeBytes, &updatedNs); err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		info.UpdatedAt = time.Unix(0, updatedNs).UTC()
		infos = append(infos, info)
	}

	return infos, rows.Err()
}

var auditColumns = []string{
	"id", "timestamp_ns", "guild_id", "member_id", "username", "verdict",
	"check_key", "reason", "reports", "policy_digest", "action", "result", "error_message",
}

// SaveAudit persists a new audit record.
func (s *SQLiteStore) SaveAudit(ctx context.Context, record *audit.Record) error {
	reports := ""
	if len(record.Reports) > 0 {
		data, err := json.Marshal(record.Reports)
		if err != nil {
			return fmt.Errorf("failed to marshal reports: %w", err)
		}
		reports = string(data)
	}

	query, args := builder().Insert(tableAudits).
		Columns(auditColumns...).
		Values(
			record.ID.String(),
			record.Timestamp.UTC().UnixNano(),
			record.GuildID,
			record.MemberID,
			record.Username,
			string(record.Verdict),
			record.CheckKey,
			record.Reason,
			reports,
			record.PolicyDigest,
			string(record.Action),
			string(record.Result),
			record.ErrorMessage,
		).
		Query()

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save audit record: %w", err)
	}
	return nil
}

// QueryAudits retrieves records matching the filter, newest first.
func (s *SQLiteStore) QueryAudits(ctx context.Context, filter *audit.Filter) ([]*audit.Record, error) {
	b := builder()
	selector := b.Select(auditColumns...).
		From(b.Table(tableAudits)).
		OrderBy(entsql.Desc("timestamp_ns"), entsql.Desc("id"))

	if filter != nil {
		if preds := buildAuditPredicates(filter); len(preds) > 0 {
			selector.Where(entsql.And(preds...))
		}
		if filter.Limit > 0 {
			selector.Limit(filter.Limit)
		}
	}

	return s.queryAudits(ctx, selector)
}

// CountAudits returns the number of records matching the filter.
func (s *SQLiteStore) CountAudits(ctx context.Context, filter *audit.Filter) (int, error) {
	b := builder()
	selector := b.Select(entsql.Count("*")).From(b.Table(tableAudits))

	if filter != nil {
		if preds := buildAuditPredicates(filter); len(preds) > 0 {
			selector.Where(entsql.And(preds...))
		}
	}

	query, args := selector.Query()

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count audit records: %w", err)
	}
	return count, nil
}

// QueryAuditsAfter retrieves records after the cursor, oldest first.
func (s *SQLiteStore) QueryAuditsAfter(ctx context.Context, after time.Time, afterID uuid.UUID, limit int) ([]*audit.Record, error) {
	// The zero time does not fit in int64 nanoseconds.
	var afterNs int64 = math.MinInt64
	if !after.IsZero() {
		afterNs = after.UTC().UnixNano()
	}

	var pred *entsql.Predicate
	if afterID == uuid.Nil {
		pred = entsql.GT("timestamp_ns", afterNs)
	} else {
		pred = entsql.Or(
			entsql.GT("timestamp_ns", afterNs),
			entsql.And(
				entsql.EQ("timestamp_ns", afterNs),
				entsql.GT("id", afterID.String()),
			),
		)
	}

	b := builder()
	selector := b.Select(auditColumns...).
		From(b.Table(tableAudits)).
		Where(pred).
		OrderBy(entsql.Asc("timestamp_ns"), entsql.Asc("id"))

	if limit > 0 {
		selector.Limit(limit)
	}

	return s.queryAudits(ctx, selector)
}

// DeleteAuditsBefore deletes records older than the given time.
func (s *SQLiteStore) DeleteAuditsBefore(ctx context.Context, before time.Time) (int, error) {
	query, args := builder().Delete(tableAudits).
		Where(entsql.LT("timestamp_ns", before.UTC().UnixNano())).
		Query()

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete audit records: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted audit records: %w", err)
	}
	return int(n), nil
}

// GetStreamCheckpoint retrieves a checkpoint by target name.
func (s *SQLiteStore) GetStreamCheckpoint(ctx context.Context, targetName string) (*StreamCheckpoint, error) {
	b := builder()
	query, args := b.Select("target_name", "last_synced_at_ns", "last_record_id").
		From(b.Table(tableCheckpoints)).
		Where(entsql.EQ("target_name", targetName)).
		Query()

	var (
		cp       StreamCheckpoint
		syncedNs int64
	)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&cp.TargetName, &syncedNs, &cp.LastRecordID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stream checkpoint: %w", err)
	}

	cp.LastSyncedAt = time.Unix(0, syncedNs).UTC()
	return &cp, nil
}

// SaveStreamCheckpoint persists a stream checkpoint.
func (s *SQLiteStore) SaveStreamCheckpoint(ctx context.Context, checkpoint *StreamCheckpoint) error {
	query, args := builder().Insert(tableCheckpoints).
		Columns("target_name", "last_synced_at_ns", "last_record_id").
		Values(checkpoint.TargetName, checkpoint.LastSyncedAt.UTC().UnixNano(), checkpoint.LastRecordID).
		OnConflict(
			entsql.ConflictColumns("target_name"),
			entsql.ResolveWithNewValues(),
		).
		Query()

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save stream checkpoint: %w", err)
	}
	return nil
}

// Info returns information about the database.
func (s *SQLiteStore) Info(ctx context.Context) (*DatabaseInfo, error) {
	info := &DatabaseInfo{
		Path: s.path,
	}

	if stat, err := os.Stat(s.path); err == nil {
		info.SizeBytes = stat.Size()
	}

	policies, err := s.ListPolicies(ctx)
	if err != nil {
		return nil, err
	}
	info.PolicyCount = len(policies)

	auditCount, err := s.CountAudits(ctx, nil)
	if err != nil {
		return nil, err
	}
	info.AuditCount = auditCount

	if auditCount == 0 {
		return info, nil
	}

	b := builder()
	query, args := b.Select("MIN(timestamp_ns)", "MAX(timestamp_ns)").
		From(b.Table(tableAudits)).
		Query()

	var oldest, newest int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&oldest, &newest); err != nil {
		return nil, fmt.Errorf("failed to read audit range: %w", err)
	}
	info.OldestAudit = time.Unix(0, oldest).UTC()
	info.NewestAudit = time.Unix(0, newest).UTC()

	return info, nil
}

func (s *SQLiteStore) queryAudits(ctx context.Context, selector *entsql.Selector) ([]*audit.Record, error) {
	query, args := selector.Query()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	var records []*audit.Record
	for rows.Next() {
		record, err := scanAudit(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

func scanAudit(rows *sql.Rows) (*audit.Record, error) {
	var (
		id, verdict, action, result, reports string
		timestampNs                          int64
		record                               audit.Record
	)

	if err := rows.Scan(
		&id,
		&timestampNs,
		&record.GuildID,
		&record.MemberID,
		&record.Username,
		&verdict,
		&record.CheckKey,
		&record.Reason,
		&reports,
		&record.PolicyDigest,
		&action,
		&result,
		&record.ErrorMessage,
	); err != nil {
		return nil, fmt.Errorf("failed to scan audit record: %w", err)
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid audit record id %q: %w", id, err)
	}

	record.ID = parsed
	record.Timestamp = time.Unix(0, timestampNs).UTC()
	record.Verdict = gatekeeper.VerdictKind(verdict)
	record.Action = audit.Action(action)
	record.Result = audit.Result(result)

	if reports != "" {
		if err := json.Unmarshal([]byte(reports), &record.Reports); err != nil {
			return nil, fmt.Errorf("failed to unmarshal reports: %w", err)
		}
	}

	return &record, nil
}

// buildAuditPredicates builds SQL predicates from an audit Filter.
func buildAuditPredicates(filter *audit.Filter) []*entsql.Predicate {
	var predicates []*entsql.Predicate

	if filter.Since != nil {
		predicates = append(predicates, entsql.GTE("timestamp_ns", filter.Since.UTC().UnixNano()))
	}
	if filter.Until != nil {
		predicates = append(predicates, entsql.LT("timestamp_ns", filter.Until.UTC().UnixNano()))
	}
	if filter.GuildID != "" {
		predicates = append(predicates, entsql.EQ("guild_id", filter.GuildID))
	}
	if filter.Verdict != "" {
		predicates = append(predicates, entsql.EQ("verdict", string(filter.Verdict)))
	}

	return predicates
}

// Ensure SQLiteStore implements Store and the engine's policy source.
var (
	_ Store                   = (*SQLiteStore)(nil)
	_ gatekeeper.PolicySource = (*SQLiteStore)(nil)
)
