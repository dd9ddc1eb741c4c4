package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/lKakarot/phone-cleaner/internal/media"
)

func TestJobManagerLifecycle(t *testing.T) {
	m := NewJobManager()

	job := m.CreateJob("/photos", "flat")
	if job.ID == "" {
		t.Fatal("job has no id")
	}
	if job.Status != JobStatusPending {
		t.Errorf("new job status = %s; want pending", job.Status)
	}

	if got := m.GetJob(job.ID); got != job {
		t.Error("GetJob did not return the created job")
	}
	if got := m.GetJob("missing"); got != nil {
		t.Error("GetJob for unknown id should return nil")
	}
	if got := len(m.ListJobs()); got != 1 {
		t.Errorf("ListJobs returned %d jobs; want 1", got)
	}

	m.DeleteJob(job.ID)
	if got := m.GetJob(job.ID); got != nil {
		t.Error("job still present after delete")
	}
}

func TestEventBroadcasterDeliversToListeners(t *testing.T) {
	job := &ScanJob{ID: "j1", Status: JobStatusPending}
	ch := job.AddListener()
	defer job.RemoveListener(ch)

	job.SendEvent(JobEvent{Type: "progress", Data: 0.5})

	select {
	case ev := <-ch:
		if ev.Type != "progress" {
			t.Errorf("event type = %s; want progress", ev.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestCancelCancelsBoundContext(t *testing.T) {
	job := &ScanJob{ID: "j1", Status: JobStatusRunning}
	ctx := job.BindContext(context.Background())

	job.Cancel()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("bound context not cancelled")
	}
	if job.GetStatus() != JobStatusCancelled {
		t.Errorf("status = %s; want cancelled", job.GetStatus())
	}
}

func TestCompleteSetsTerminalState(t *testing.T) {
	job := &ScanJob{ID: "j1", Status: JobStatusRunning}
	ch := job.AddListener()
	defer job.RemoveListener(ch)

	groups := []media.Group{{Items: []media.Item{
		{ID: "a", Size: 100},
		{ID: "b", Size: 40},
	}}}
	job.Complete(2, NewScanResult(groups))

	snap := job.Snapshot()
	if snap.Status != JobStatusCompleted {
		t.Errorf("status = %s; want completed", snap.Status)
	}
	if snap.Progress != 1 {
		t.Errorf("progress = %f; want 1", snap.Progress)
	}
	if snap.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}
	if snap.Result.Reclaimable != 40 {
		t.Errorf("reclaimable = %d; want 40", snap.Result.Reclaimable)
	}
}
