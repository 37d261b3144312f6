package crisisworker

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	appconfig "github.com/havenmind/wellness-ai-platform/internal/config"
	"github.com/havenmind/wellness-ai-platform/pkg/logging"
)

type fakeFollowUpRunner struct {
	processed int32
	escalated int32
	err       error
}

func (f *fakeFollowUpRunner) ProcessDue(ctx context.Context) (int, error) {
	atomic.AddInt32(&f.processed, 1)
	return 0, f.err
}

func (f *fakeFollowUpRunner) EscalateOverdue(ctx context.Context) (int, error) {
	atomic.AddInt32(&f.escalated, 1)
	return 0, f.err
}

func TestRunRequiresConfig(t *testing.T) {
	if err := Run(context.Background(), nil, logging.New("error")); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestRunRefusesMemoryQueue(t *testing.T) {
	cfg := &appconfig.Config{UseMemoryQueue: true, DatabaseURL: "postgres://localhost/havenmind"}
	err := Run(context.Background(), cfg, logging.New("error"))
	if err == nil {
		t.Fatalf("expected error for memory queue")
	}
	if !strings.Contains(err.Error(), "USE_MEMORY_QUEUE") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunRequiresDatabase(t *testing.T) {
	cfg := &appconfig.Config{}
	err := Run(context.Background(), cfg, logging.New("error"))
	if err == nil {
		t.Fatalf("expected error without DATABASE_URL")
	}
	if !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFollowUpLoopRunsAndStops(t *testing.T) {
	fake := &fakeFollowUpRunner{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		runFollowUpLoop(ctx, fake, time.Millisecond, logging.New("error"))
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	if atomic.LoadInt32(&fake.processed) == 0 {
		t.Fatalf("expected at least one check-in pass")
	}
	if atomic.LoadInt32(&fake.escalated) == 0 {
		t.Fatalf("expected at least one escalation pass")
	}
}

func TestFollowUpLoopSurvivesErrors(t *testing.T) {
	fake := &fakeFollowUpRunner{err: errors.New("boom")}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		runFollowUpLoop(ctx, fake, time.Millisecond, logging.New("error"))
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	<-done

	if atomic.LoadInt32(&fake.processed) < 2 {
		t.Fatalf("expected loop to keep running after errors, got %d passes", fake.processed)
	}
}
