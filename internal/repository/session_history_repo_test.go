package repository

import (
	"context"
	"testing"
	"time"

	"github.com/yuqie6/PlayPulse/internal/schema"
	"github.com/yuqie6/PlayPulse/internal/testutil"
)

func seedPlaythrough(t *testing.T, repo *PlaythroughRepository, userID int64) *schema.Playthrough {
	t.Helper()
	p := &schema.Playthrough{UserID: userID, GameID: 7, PlaythroughType: "story", State: schema.StateNotStarted}
	if err := repo.Create(context.Background(), p); err != nil {
		t.Fatalf("Create playthrough error: %v", err)
	}
	return p
}

func sessionNumbers(t *testing.T, repo *SessionHistoryRepository, playthroughID int64) []int64 {
	t.Helper()
	list, err := repo.ListByPlaythrough(context.Background(), playthroughID)
	if err != nil {
		t.Fatalf("ListByPlaythrough error: %v", err)
	}
	out := make([]int64, 0, len(list))
	for i, s := range list {
		if s.SessionNumber != i+1 {
			t.Fatalf("session_number not dense: idx=%d number=%d", i, s.SessionNumber)
		}
		out = append(out, s.StartedAt)
	}
	return out
}

func TestSessionHistoryInsertAtRenumbersLaterSessions(t *testing.T) {
	db := testutil.OpenTestDB(t)
	pRepo := NewPlaythroughRepository(db)
	repo := NewSessionHistoryRepository(db)
	ctx := context.Background()

	p := seedPlaythrough(t, pRepo, 1)
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, offset := range []time.Duration{0, 48 * time.Hour} {
		s := &schema.SessionHistory{
			SessionNumber:   i + 1,
			DurationSeconds: 600,
			StartedAt:       base.Add(offset).UnixMilli(),
			EndedAt:         base.Add(offset + 10*time.Minute).UnixMilli(),
		}
		if err := repo.Append(ctx, p, s); err != nil {
			t.Fatalf("Append error: %v", err)
		}
	}

	mid := &schema.SessionHistory{
		SessionNumber:   2,
		DurationSeconds: 300,
		StartedAt:       base.Add(24 * time.Hour).UnixMilli(),
		EndedAt:         base.Add(24*time.Hour + 5*time.Minute).UnixMilli(),
	}
	p.SessionCount = 3
	if err := repo.InsertAt(ctx, p, mid); err != nil {
		t.Fatalf("InsertAt error: %v", err)
	}

	starts := sessionNumbers(t, repo, p.ID)
	want := []int64{base.UnixMilli(), base.Add(24 * time.Hour).UnixMilli(), base.Add(48 * time.Hour).UnixMilli()}
	if len(starts) != len(want) {
		t.Fatalf("len=%d, want %d", len(starts), len(want))
	}
	for i := range want {
		if starts[i] != want[i] {
			t.Fatalf("starts[%d]=%d, want %d", i, starts[i], want[i])
		}
	}

	got, err := pRepo.GetByID(ctx, p.ID)
	if err != nil || got == nil || got.SessionCount != 3 {
		t.Fatalf("playthrough not saved in tx: got=%+v err=%v", got, err)
	}
}

func TestSessionHistoryRemoveKeepsNumbersDense(t *testing.T) {
	db := testutil.OpenTestDB(t)
	pRepo := NewPlaythroughRepository(db)
	repo := NewSessionHistoryRepository(db)
	moodRepo := NewMoodRepository(db)
	ctx := context.Background()

	p := seedPlaythrough(t, pRepo, 1)
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	var created []*schema.SessionHistory
	for i := 0; i < 4; i++ {
		s := &schema.SessionHistory{
			SessionNumber: i + 1,
			StartedAt:     base.Add(time.Duration(i) * time.Hour).UnixMilli(),
			EndedAt:       base.Add(time.Duration(i)*time.Hour + time.Minute).UnixMilli(),
		}
		if err := repo.Append(ctx, p, s); err != nil {
			t.Fatalf("Append error: %v", err)
		}
		created = append(created, s)
	}

	linked := created[1].ID
	if err := moodRepo.Create(ctx, &schema.MoodEntry{UserID: 1, MoodRating: 4, SessionHistoryID: &linked, RecordedAt: base.UnixMilli()}); err != nil {
		t.Fatalf("Create mood error: %v", err)
	}

	if err := repo.Remove(ctx, p, created[1]); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	starts := sessionNumbers(t, repo, p.ID)
	if len(starts) != 3 {
		t.Fatalf("len=%d, want 3", len(starts))
	}
	if starts[1] != created[2].StartedAt {
		t.Fatalf("second session should be the former third")
	}

	moods, err := moodRepo.ListByUserRange(ctx, 1, base.Add(-time.Hour).UnixMilli(), base.Add(time.Hour).UnixMilli())
	if err != nil || len(moods) != 1 {
		t.Fatalf("moods err=%v len=%d", err, len(moods))
	}
	if moods[0].SessionHistoryID != nil {
		t.Fatalf("mood still linked to deleted session")
	}
}

func TestSessionHistoryListByUserOverlapping(t *testing.T) {
	db := testutil.OpenTestDB(t)
	pRepo := NewPlaythroughRepository(db)
	repo := NewSessionHistoryRepository(db)
	ctx := context.Background()

	mine := seedPlaythrough(t, pRepo, 1)
	other := seedPlaythrough(t, pRepo, 2)

	dayStart := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	cross := &schema.SessionHistory{SessionNumber: 1, StartedAt: dayStart.Add(-time.Hour).UnixMilli(), EndedAt: dayStart.Add(time.Hour).UnixMilli()}
	before := &schema.SessionHistory{SessionNumber: 2, StartedAt: dayStart.Add(-3 * time.Hour).UnixMilli(), EndedAt: dayStart.Add(-2 * time.Hour).UnixMilli()}
	if err := repo.Append(ctx, mine, cross); err != nil {
		t.Fatalf("Append error: %v", err)
	}
	if err := repo.Append(ctx, mine, before); err != nil {
		t.Fatalf("Append error: %v", err)
	}
	foreign := &schema.SessionHistory{SessionNumber: 1, StartedAt: dayStart.Add(time.Hour).UnixMilli(), EndedAt: dayStart.Add(2 * time.Hour).UnixMilli()}
	if err := repo.Append(ctx, other, foreign); err != nil {
		t.Fatalf("Append error: %v", err)
	}

	got, err := repo.ListByUserOverlapping(ctx, 1, dayStart.UnixMilli(), dayEnd.UnixMilli())
	if err != nil {
		t.Fatalf("ListByUserOverlapping error: %v", err)
	}
	if len(got) != 1 || got[0].ID != cross.ID {
		t.Fatalf("got=%+v, want only the midnight-crossing session", got)
	}
}
