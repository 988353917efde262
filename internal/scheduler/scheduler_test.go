package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BTreeMap/ShopAssist/internal/models"
	"github.com/BTreeMap/ShopAssist/internal/store"
)

func TestSchedulerAddJob(t *testing.T) {
	s := NewScheduler()
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"* * * * *", false},
		{"@hourly", false},
		{"@every 30m", false},
		{"not a schedule", true},
		{"* * * * * *", true},
	}
	for _, tt := range tests {
		err := s.AddJob("test", tt.expr, func(context.Context) error { return nil })
		if (err != nil) != tt.wantErr {
			t.Errorf("AddJob(%q): error = %v, wantErr %v", tt.expr, err, tt.wantErr)
		}
	}
}

func TestSchedulerRunsJobs(t *testing.T) {
	s := NewScheduler()
	var runs atomic.Int32
	if err := s.AddJob("counter", "@every 1s", func(context.Context) error {
		runs.Add(1)
		return errors.New("failures are logged, not fatal")
	}); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	s.Start()

	deadline := time.Now().Add(5 * time.Second)
	for runs.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if runs.Load() < 2 {
		t.Fatalf("expected the job to keep running after a failure, got %d runs", runs.Load())
	}
}

func TestHistoryPurgeJob(t *testing.T) {
	st := store.NewInMemoryStore()
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	for _, age := range []time.Duration{48 * time.Hour, 25 * time.Hour, time.Hour} {
		entry := models.HistoryEntry{SessionID: "s1", Role: models.HistoryRoleModel, Content: "hi", CreatedAt: now.Add(-age)}
		if err := st.AppendHistory(ctx, entry); err != nil {
			t.Fatalf("AppendHistory: %v", err)
		}
	}

	job := HistoryPurgeJob(st, 24*time.Hour, func() time.Time { return now })
	if err := job(ctx); err != nil {
		t.Fatalf("job: %v", err)
	}

	left, _ := st.GetHistory(ctx, "s1")
	if len(left) != 1 || !left[0].CreatedAt.Equal(now.Add(-time.Hour)) {
		t.Errorf("expected only the recent entry to remain, got %+v", left)
	}
}

type failingPurger struct{}

func (failingPurger) PurgeHistoryBefore(context.Context, time.Time) (int64, error) {
	return 0, errors.New("database is locked")
}

func TestHistoryPurgeJob_Error(t *testing.T) {
	job := HistoryPurgeJob(failingPurger{}, time.Hour, time.Now)
	if err := job(context.Background()); err == nil {
		t.Fatal("expected purge error to be returned")
	}
}
