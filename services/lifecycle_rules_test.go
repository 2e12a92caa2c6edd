package services

import (
	"testing"
	"time"

	"registration-api/models"
)

func TestTransitionTableEdges(t *testing.T) {
	type edge struct {
		from, to models.SubmissionStatus
		allowed  bool
	}
	cases := []edge{
		{models.StatusPending, models.StatusInReview, true},
		{models.StatusPending, models.StatusRejected, true},
		{models.StatusPending, models.StatusApproved, false},
		{models.StatusPending, models.StatusPending, false},
		{models.StatusInReview, models.StatusApproved, true},
		{models.StatusInReview, models.StatusRejected, true},
		{models.StatusInReview, models.StatusPending, true},
		{models.StatusInReview, models.StatusInReview, false},
		{models.StatusApproved, models.StatusPending, false},
		{models.StatusApproved, models.StatusInReview, false},
		{models.StatusApproved, models.StatusRejected, false},
		{models.StatusRejected, models.StatusPending, true},
		{models.StatusRejected, models.StatusInReview, false},
		{models.StatusRejected, models.StatusApproved, false},
	}

	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.allowed {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.allowed)
		}
	}
}

func TestEffectsForReviewEntryTouchesStartedAt(t *testing.T) {
	effects := effectsFor(models.StatusPending, models.StatusInReview)
	if !effects.touchStarted || effects.touchFinished || effects.clearFinished {
		t.Fatalf("unexpected effects for pending->in_review: %+v", effects)
	}
	if effects.auditAction != models.AuditActionTransition {
		t.Fatalf("unexpected audit action: %s", effects.auditAction)
	}
}

func TestEffectsForTerminalEntriesTouchFinishedAt(t *testing.T) {
	approve := effectsFor(models.StatusInReview, models.StatusApproved)
	if !approve.touchFinished || approve.auditAction != models.AuditActionApprove {
		t.Fatalf("unexpected effects for approve: %+v", approve)
	}

	reject := effectsFor(models.StatusInReview, models.StatusRejected)
	if !reject.touchFinished || reject.auditAction != models.AuditActionReject {
		t.Fatalf("unexpected effects for reject: %+v", reject)
	}
}

func TestRejectReopenRoundTrip(t *testing.T) {
	createdAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	submission := &models.Submission{
		Status:    models.StatusPending,
		CreatedAt: createdAt,
	}

	reason := "missing insurance certificate"
	rejectedAt := createdAt.Add(2 * time.Hour)
	applyTransition(submission, models.StatusRejected,
		effectsFor(models.StatusPending, models.StatusRejected), rejectedAt, &reason)

	if submission.FinishedAt == nil || submission.RejectionReason == nil {
		t.Fatalf("rejection must set finished_at and rejection_reason: %+v", submission)
	}
	if *submission.RejectionReason != reason {
		t.Fatalf("unexpected rejection reason %q", *submission.RejectionReason)
	}

	reopenedAt := rejectedAt.Add(time.Hour)
	applyTransition(submission, models.StatusPending,
		effectsFor(models.StatusRejected, models.StatusPending), reopenedAt, nil)

	if submission.Status != models.StatusPending {
		t.Fatalf("expected pending after reopen, got %s", submission.Status)
	}
	if submission.FinishedAt != nil || submission.RejectionReason != nil {
		t.Fatalf("reopen must clear finished_at and rejection_reason: %+v", submission)
	}
	if !submission.CreatedAt.Equal(createdAt) {
		t.Fatalf("created_at must survive the round trip")
	}
}

func TestReReviewUpdatesStartedAt(t *testing.T) {
	createdAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	submission := &models.Submission{Status: models.StatusPending, CreatedAt: createdAt}

	firstReview := createdAt.Add(time.Hour)
	applyTransition(submission, models.StatusInReview,
		effectsFor(models.StatusPending, models.StatusInReview), firstReview, nil)
	if submission.StartedAt == nil || !submission.StartedAt.Equal(firstReview) {
		t.Fatalf("expected started_at %v, got %v", firstReview, submission.StartedAt)
	}

	// reject, reopen, review again: started_at tracks the latest cycle
	reason := "incomplete"
	applyTransition(submission, models.StatusRejected,
		effectsFor(models.StatusInReview, models.StatusRejected), firstReview.Add(time.Hour), &reason)
	applyTransition(submission, models.StatusPending,
		effectsFor(models.StatusRejected, models.StatusPending), firstReview.Add(2*time.Hour), nil)

	secondReview := firstReview.Add(3 * time.Hour)
	applyTransition(submission, models.StatusInReview,
		effectsFor(models.StatusPending, models.StatusInReview), secondReview, nil)
	if submission.StartedAt == nil || !submission.StartedAt.Equal(secondReview) {
		t.Fatalf("expected started_at updated to %v, got %v", secondReview, submission.StartedAt)
	}
}

func TestSortQueueOrdersByPriorityThenAge(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	queue := []models.Submission{
		{SubmissionID: 1, Priority: models.PriorityNormal, CreatedAt: base},
		{SubmissionID: 2, Priority: models.PriorityNormal, CreatedAt: base.Add(time.Minute)},
		{SubmissionID: 3, Priority: models.PriorityNormal, CreatedAt: base.Add(2 * time.Minute)},
		{SubmissionID: 4, Priority: models.PriorityNormal, CreatedAt: base.Add(3 * time.Minute)},
		{SubmissionID: 5, Priority: models.PriorityNormal, CreatedAt: base.Add(4 * time.Minute)},
		{SubmissionID: 6, Priority: models.PriorityUrgent, CreatedAt: base.Add(5 * time.Minute)},
	}

	SortQueue(queue)

	if queue[0].SubmissionID != 6 {
		t.Fatalf("urgent submission must sort first regardless of creation time, got %d", queue[0].SubmissionID)
	}
	for i := 1; i < len(queue); i++ {
		if queue[i].SubmissionID != i {
			t.Fatalf("normal submissions must keep created_at order, position %d holds %d", i, queue[i].SubmissionID)
		}
	}
}

func TestSortQueueTotalOrder(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	queue := []models.Submission{
		{SubmissionID: 1, Priority: models.PriorityNormal, CreatedAt: base},
		{SubmissionID: 2, Priority: models.PriorityHigh, CreatedAt: base.Add(time.Hour)},
		{SubmissionID: 3, Priority: models.PriorityUrgent, CreatedAt: base.Add(2 * time.Hour)},
		{SubmissionID: 4, Priority: models.PriorityHigh, CreatedAt: base.Add(30 * time.Minute)},
	}

	SortQueue(queue)

	want := []int{3, 4, 2, 1}
	for i, id := range want {
		if queue[i].SubmissionID != id {
			t.Fatalf("position %d: got %d, want %d", i, queue[i].SubmissionID, id)
		}
	}
}

func TestWaitMinutes(t *testing.T) {
	createdAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	now := createdAt.Add(90*time.Minute + 30*time.Second)

	open := &models.Submission{CreatedAt: createdAt}
	if got := WaitMinutes(open, now); got != 90 {
		t.Fatalf("open submission wait = %d, want 90", got)
	}

	finishedAt := createdAt.Add(45 * time.Minute)
	closed := &models.Submission{CreatedAt: createdAt, FinishedAt: &finishedAt}
	if got := WaitMinutes(closed, now); got != 45 {
		t.Fatalf("closed submission wait = %d, want 45", got)
	}
}
