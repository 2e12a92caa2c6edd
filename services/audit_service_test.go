package services

import (
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"registration-api/models"
)

func TestRecordAppendsOneEntry(t *testing.T) {
	steps := []*queryStep{
		{
			kind:    kindExec,
			pattern: regexp.MustCompile("INSERT INTO .audit_logs."),
		},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	svc := NewAuditService(db)
	entry, err := svc.Record(nil, AuditInput{
		ActorID:     7,
		ActorName:   "Test Reviewer",
		Action:      models.AuditActionApprove,
		SubjectType: models.AuditSubjectSubmission,
		SubjectID:   "1",
		Before:      map[string]interface{}{"status": "in_review"},
		After:       map[string]interface{}{"status": "approved"},
	})
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if entry.AuditID == "" {
		t.Fatalf("expected a generated audit id")
	}
	if entry.Timestamp.IsZero() {
		t.Fatalf("expected a timestamp")
	}
	if len(entry.BeforeState) == 0 || len(entry.AfterState) == 0 {
		t.Fatalf("expected encoded before/after states")
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatal(err)
	}
}

func TestRecordSkipsAbsentSnapshots(t *testing.T) {
	steps := []*queryStep{
		{
			kind:    kindExec,
			pattern: regexp.MustCompile("INSERT INTO .audit_logs."),
		},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	svc := NewAuditService(db)
	entry, err := svc.Record(nil, AuditInput{
		ActorID:     7,
		ActorName:   "Test Operator",
		Action:      models.AuditActionCreate,
		SubjectType: models.AuditSubjectSubmission,
		SubjectID:   "2",
	})
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if entry.BeforeState != nil {
		t.Fatalf("create has no before state, got %s", entry.BeforeState)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatal(err)
	}
}

func TestQueryFiltersAndPaginates(t *testing.T) {
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	steps := []*queryStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT count\\(\\*\\) FROM .audit_logs."),
			columns: []string{"count(*)"},
			rows:    [][]driver.Value{{int64(35)}},
		},
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT .* FROM .audit_logs."),
			columns: []string{"audit_id", "timestamp", "actor_id", "actor_name", "action", "subject_type", "subject_id"},
			rows: [][]driver.Value{
				{"a-1", at, int64(7), "Test Reviewer", models.AuditActionApprove, models.AuditSubjectSubmission, "1"},
			},
		},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	svc := NewAuditService(db)
	actorID := 7
	entries, total, err := svc.Query(AuditQuery{
		ActorID: &actorID,
		Actions: []string{models.AuditActionApprove, models.AuditActionReject},
		Page:    2,
		Limit:   20,
	})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if total != 35 {
		t.Fatalf("expected total 35, got %d", total)
	}
	if len(entries) != 1 || entries[0].AuditID != "a-1" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if entries[0].Action != models.AuditActionApprove {
		t.Fatalf("unexpected action %s", entries[0].Action)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatal(err)
	}
}
