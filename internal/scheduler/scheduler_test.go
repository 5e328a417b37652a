package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestAddJobValidation(t *testing.T) {
	svc, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer svc.Stop()

	tests := []struct {
		name     string
		jobName  string
		cronExpr string
		task     func()
		wantErr  error
	}{
		{name: "empty name", jobName: " ", cronExpr: "* * * * *", task: func() {}, wantErr: ErrEmptyJobName},
		{name: "empty cron", jobName: "job", cronExpr: "", task: func() {}, wantErr: ErrEmptyCronExpr},
		{name: "nil task", jobName: "job", cronExpr: "* * * * *", wantErr: ErrNilTask},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.AddJob(tt.jobName, tt.cronExpr, tt.task); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	if _, err := svc.AddJob("bad", "not a cron", func() {}); err == nil {
		t.Fatal("expected invalid cron expression to fail")
	}
	if len(svc.Jobs()) != 0 {
		t.Fatalf("expected no registered jobs, got %d", len(svc.Jobs()))
	}
}

func TestNilService(t *testing.T) {
	var svc *Service
	if err := svc.Stop(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if _, err := svc.AddJob("job", "* * * * *", func() {}); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

type fakeRunner struct {
	calls atomic.Int32
	done  chan struct{}
	err   error
}

func (f *fakeRunner) RunDueSelections(ctx context.Context) (int, error) {
	f.calls.Add(1)
	select {
	case f.done <- struct{}{}:
	default:
	}
	return 1, f.err
}

func TestRegisterSelectionJobRuns(t *testing.T) {
	svc, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	runner := &fakeRunner{done: make(chan struct{}, 1)}

	job, err := RegisterSelectionJob(context.Background(), svc, runner, "0 0 1 1 *")
	if err != nil {
		t.Fatalf("RegisterSelectionJob: %v", err)
	}
	if job.Name() != SelectionJobName {
		t.Fatalf("job name %q", job.Name())
	}

	svc.Start()
	defer svc.Stop()

	if err := job.RunNow(); err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	select {
	case <-runner.done:
	case <-time.After(2 * time.Second):
		t.Fatal("selection job did not run")
	}
	if runner.calls.Load() != 1 {
		t.Fatalf("expected one run, got %d", runner.calls.Load())
	}
}

func TestRegisterSelectionJobRequiresRunner(t *testing.T) {
	svc, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer svc.Stop()

	if _, err := RegisterSelectionJob(context.Background(), svc, nil, "* * * * *"); err == nil {
		t.Fatal("expected error without runner")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	svc, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	svc.Start()
	if err := svc.Stop(); err != nil {
		t.Fatalf("first stop: %v", err)
	}
	if err := svc.Stop(); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}
