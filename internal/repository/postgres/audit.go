package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/DaveSmith227/duolingo-clone-sub001/internal/core/domain"
	"github.com/DaveSmith227/duolingo-clone-sub001/internal/core/port"
)

const auditTable = "security.audit_events"

var auditColumns = []string{
	"id",
	"event_type",
	"result",
	"severity",
	"user_id",
	"session_id",
	"ip_address",
	"user_agent",
	"resource",
	"details",
	"metadata",
	"correlation_id",
	"occurred_at",
}

// AuditRepository implements port.AuditRepository on an append-only PostgreSQL table.
type AuditRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAuditRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewAuditRepository(exec pgExecutor) *AuditRepository {
	return &AuditRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Append inserts a single audit event.
func (r *AuditRepository) Append(ctx context.Context, event domain.AuditEvent) error {
	details, err := marshalJSONMap(event.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}
	metadata, err := marshalJSONMap(event.Metadata)
	if err != nil {
		return fmt.Errorf("marshal audit metadata: %w", err)
	}

	stmt, args, err := r.builder.Insert(auditTable).
		Columns(auditColumns...).
		Values(
			event.ID,
			string(event.Type),
			string(event.Result),
			string(event.Severity),
			optionalText(event.UserID),
			optionalText(event.SessionID),
			optionalText(event.IPAddress),
			optionalText(event.UserAgent),
			optionalText(event.Resource),
			details,
			metadata,
			event.CorrelationID,
			event.OccurredAt.UTC(),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert audit sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Search lists events matching filter, newest first.
func (r *AuditRepository) Search(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEvent, error) {
	query := r.builder.Select(auditColumns...).From(auditTable)

	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		query = query.Where(squirrel.Eq{"event_type": types})
	}
	if len(filter.Severities) > 0 {
		severities := make([]string, len(filter.Severities))
		for i, s := range filter.Severities {
			severities[i] = string(s)
		}
		query = query.Where(squirrel.Eq{"severity": severities})
	}
	if filter.UserID != "" {
		query = query.Where(squirrel.Eq{"user_id": filter.UserID})
	}
	if filter.IPAddress != "" {
		query = query.Where(squirrel.Eq{"ip_address": filter.IPAddress})
	}
	if filter.Since != nil {
		query = query.Where(squirrel.GtOrEq{"occurred_at": filter.Since.UTC()})
	}
	if filter.Until != nil {
		query = query.Where(squirrel.LtOrEq{"occurred_at": filter.Until.UTC()})
	}

	query = query.OrderBy("occurred_at DESC", "id DESC")
	if filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		query = query.Offset(uint64(filter.Offset))
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build search audit sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.AuditEvent, 0)
	for rows.Next() {
		event, err := scanAuditEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

func scanAuditEvent(row pgx.Row) (domain.AuditEvent, error) {
	var (
		event     domain.AuditEvent
		eventType string
		result    string
		severity  string
		userID    sql.NullString
		sessionID sql.NullString
		ip        sql.NullString
		userAgent sql.NullString
		resource  sql.NullString
		details   []byte
		metadata  []byte
	)

	if err := row.Scan(
		&event.ID,
		&eventType,
		&result,
		&severity,
		&userID,
		&sessionID,
		&ip,
		&userAgent,
		&resource,
		&details,
		&metadata,
		&event.CorrelationID,
		&event.OccurredAt,
	); err != nil {
		return domain.AuditEvent{}, err
	}

	event.Type = domain.AuditEventType(eventType)
	event.Result = domain.AuditResult(result)
	event.Severity = domain.AuditSeverity(severity)
	event.UserID = userID.String
	event.SessionID = sessionID.String
	event.IPAddress = ip.String
	event.UserAgent = userAgent.String
	event.Resource = resource.String
	event.OccurredAt = event.OccurredAt.UTC()

	var err error
	if event.Details, err = unmarshalJSONMap(details); err != nil {
		return domain.AuditEvent{}, fmt.Errorf("decode details: %w", err)
	}
	if event.Metadata, err = unmarshalJSONMap(metadata); err != nil {
		return domain.AuditEvent{}, fmt.Errorf("decode metadata: %w", err)
	}
	return event, nil
}

func marshalJSONMap(values map[string]any) ([]byte, error) {
	if len(values) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(values)
}

func unmarshalJSONMap(payload []byte) (map[string]any, error) {
	out := map[string]any{}
	if len(payload) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}

var _ port.AuditRepository = (*AuditRepository)(nil)
