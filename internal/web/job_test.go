package web

import (
	"context"
	"strings"
	"testing"
	"time"

	"coverfetch/internal/albumcover"
)

func TestCleanup(t *testing.T) {
	jm := NewJobManager()

	// Create an old completed job (2 hours ago)
	old := jm.CreateJob("Old", "Album", false, nil)
	jm.UpdateJob(old.ID, func(j *Job) {
		j.Status = StatusCompleted
	})
	// Backdate CompletedAt
	jm.mu.Lock()
	past := time.Now().Add(-2 * time.Hour)
	jm.jobs[old.ID].CompletedAt = &past
	jm.mu.Unlock()
	oldUpdates := jm.Subscribe(old.ID)

	// Create a recent completed job
	recent := jm.CreateJob("Recent", "Album", false, nil)
	jm.UpdateJob(recent.ID, func(j *Job) {
		j.Status = StatusCompleted
	})

	// Create a running job (should never be cleaned)
	running := jm.CreateJob("Running", "Album", true, nil)
	jm.UpdateJob(running.ID, func(j *Job) {
		j.Status = StatusRunning
	})

	jm.cleanup()

	if _, err := jm.GetJob(old.ID); err == nil {
		t.Error("old completed job should have been cleaned up")
	}
	if _, ok := <-oldUpdates; ok {
		t.Error("listeners of purged jobs should be closed")
	}
	if _, err := jm.GetJob(recent.ID); err != nil {
		t.Error("recent completed job should NOT have been cleaned up")
	}
	if _, err := jm.GetJob(running.ID); err != nil {
		t.Error("running job should NOT have been cleaned up")
	}
}

func TestCreateJobUniqueIDs(t *testing.T) {
	jm := NewJobManager()

	ids := make(map[string]bool)
	for i := 0; i < 100; i++ {
		job := jm.CreateJob("a", "b", false, nil)
		if ids[job.ID] {
			t.Fatalf("duplicate job ID: %s", job.ID)
		}
		ids[job.ID] = true
		if !strings.HasPrefix(job.ID, "job_") {
			t.Errorf("job ID %q missing prefix", job.ID)
		}
	}
}

func TestUpdateJobTimestamps(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob("a", "b", false, nil)

	jm.UpdateJob(job.ID, func(j *Job) { j.Status = StatusRunning })
	got, _ := jm.GetJob(job.ID)
	if got.StartedAt == nil {
		t.Error("StartedAt not set when running")
	}
	if got.CompletedAt != nil {
		t.Error("CompletedAt set too early")
	}

	jm.UpdateJob(job.ID, func(j *Job) { j.Status = StatusFailed })
	got, _ = jm.GetJob(job.ID)
	if got.CompletedAt == nil {
		t.Error("CompletedAt not set when failed")
	}
}

func TestUpdateJobIgnoredAfterFinish(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob("a", "b", false, nil)

	jm.UpdateJob(job.ID, func(j *Job) { j.Status = StatusCancelled })
	jm.UpdateJob(job.ID, func(j *Job) {
		j.Status = StatusCompleted
		j.Error = "late"
	})

	got, _ := jm.GetJob(job.ID)
	if got.Status != StatusCancelled || got.Error != "" {
		t.Errorf("finished job was modified: %+v", got)
	}
}

func TestUpdateJobUnknown(t *testing.T) {
	jm := NewJobManager()
	if err := jm.UpdateJob("job_missing", func(j *Job) {}); err == nil {
		t.Error("expected error for unknown job")
	}
}

func TestSubscribeReceivesUpdates(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob("a", "b", false, nil)

	ch := jm.Subscribe(job.ID)
	jm.UpdateJob(job.ID, func(j *Job) { j.Status = StatusRunning })

	select {
	case got := <-ch:
		if got.Status != StatusRunning {
			t.Errorf("status = %s, want running", got.Status)
		}
	case <-time.After(time.Second):
		t.Fatal("no update received")
	}

	jm.Unsubscribe(job.ID, ch)
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after Unsubscribe")
	}
}

func TestTotalsSumFinishedJobs(t *testing.T) {
	jm := NewJobManager()
	for _, n := range []int64{3, 4} {
		job := jm.CreateJob("a", "b", false, nil)
		jm.UpdateJob(job.ID, func(j *Job) {
			j.Stats = albumcover.Statistics{NetworkRequests: n, ChosenImages: 1}
			j.Status = StatusCompleted
		})
	}
	jm.CreateJob("a", "b", false, nil)

	totals := jm.Totals()
	if totals.NetworkRequests != 7 || totals.ChosenImages != 2 {
		t.Errorf("Totals() = %+v", totals)
	}
}

func TestListJobsOrdered(t *testing.T) {
	jm := NewJobManager()
	base := time.Unix(1000, 0)
	step := 0
	jm.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Second)
	}

	first := jm.CreateJob("1", "x", false, nil)
	second := jm.CreateJob("2", "x", false, nil)

	jobs := jm.ListJobs()
	if len(jobs) != 2 || jobs[0].ID != first.ID || jobs[1].ID != second.ID {
		t.Errorf("ListJobs() order wrong: %v", jobs)
	}
}

func TestCreateJobKeepsCancel(t *testing.T) {
	jm := NewJobManager()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job := jm.CreateJob("a", "b", false, cancel)

	// The job is listed with its cancel func from the moment it exists.
	listed := jm.ListJobs()
	if len(listed) != 1 || listed[0].ID != job.ID {
		t.Fatalf("ListJobs() = %+v, want just %s", listed, job.ID)
	}
	if listed[0].Cancel == nil {
		t.Fatal("listed job has no cancel func")
	}
	listed[0].Cancel()
	if ctx.Err() == nil {
		t.Error("cancel func does not cancel the job context")
	}
}
