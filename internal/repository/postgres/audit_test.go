package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/DaveSmith227/duolingo-clone-sub001/internal/core/domain"
)

func TestAuditRepository_Append(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAuditRepository(mock)
	occurredAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	event := domain.AuditEvent{
		ID:            "evt-1",
		Type:          domain.AuditAccountLocked,
		Result:        domain.AuditResultDetected,
		Severity:      domain.AuditSeverityHigh,
		UserID:        "user-123",
		IPAddress:     "198.51.100.4",
		Resource:      "security",
		Details:       map[string]any{"attempt_count": 5, "event_category": "security"},
		CorrelationID: "req-1",
		OccurredAt:    occurredAt,
	}

	mock.ExpectExec(`INSERT INTO security\.audit_events`).
		WithArgs(
			"evt-1",
			"account_locked",
			"detected",
			"high",
			"user-123",
			nil,
			"198.51.100.4",
			nil,
			"security",
			[]byte(`{"attempt_count":5,"event_category":"security"}`),
			[]byte(`{}`),
			"req-1",
			occurredAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Append(context.Background(), event); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAuditRepository_AppendPropagatesFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO security\.audit_events`).
		WillReturnError(errors.New("disk full"))

	err = NewAuditRepository(mock).Append(context.Background(), domain.AuditEvent{ID: "evt-2", OccurredAt: time.Now()})
	if err == nil {
		t.Fatal("expected insert failure to surface")
	}
}

func TestAuditRepository_Search(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAuditRepository(mock)
	since := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	newer := since.Add(2 * time.Hour)
	older := since.Add(time.Hour)

	rows := pgxmock.NewRows(auditColumns).
		AddRow("evt-2", "login_failure", "failure", "medium", "user-1", nil, "10.0.0.1", "UA", "authentication",
			[]byte(`{"event_category":"authentication"}`), []byte(`{}`), "req-2", newer).
		AddRow("evt-1", "login_success", "success", "low", "user-1", "sess-1", nil, nil, nil,
			[]byte(`{}`), []byte(`{}`), "req-1", older)

	mock.ExpectQuery(`SELECT .* FROM security\.audit_events WHERE event_type IN \(\$1,\$2\) AND user_id = \$3 AND occurred_at >= \$4 ORDER BY occurred_at DESC, id DESC LIMIT 20 OFFSET 5`).
		WithArgs("login_failure", "login_success", "user-1", since).
		WillReturnRows(rows)

	events, err := repo.Search(context.Background(), domain.AuditFilter{
		Types:  []domain.AuditEventType{domain.AuditLoginFailure, domain.AuditLoginSuccess},
		UserID: "user-1",
		Since:  &since,
		Limit:  20,
		Offset: 5,
	})
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].ID != "evt-2" || events[0].Details["event_category"] != "authentication" {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	if events[1].SessionID != "sess-1" || events[1].IPAddress != "" || len(events[1].Details) != 0 {
		t.Fatalf("unexpected second event: %+v", events[1])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
