package scheduler

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	charmLog "github.com/charmbracelet/log"

	"github.com/g3/tornado/internal/app"
)

type fakeSender struct {
	mu    sync.Mutex
	calls int
	run   app.DigestRun
	err   error
	ch    chan struct{}
}

func (f *fakeSender) SendDigests(context.Context) (app.DigestRun, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.ch != nil {
		select {
		case f.ch <- struct{}{}:
		default:
		}
	}
	return f.run, f.err
}

func TestNewDigestJobValidation(t *testing.T) {
	if _, err := NewDigestJob(nil, time.Hour, nil); err == nil {
		t.Fatal("expected nil sender to fail")
	}
	if _, err := NewDigestJob(&fakeSender{}, 0, nil); err == nil {
		t.Fatal("expected zero interval to fail")
	}
}

func TestRunOnceLogsOutcome(t *testing.T) {
	var buf bytes.Buffer
	logger := charmLog.NewWithOptions(&buf, charmLog.Options{Formatter: charmLog.LogfmtFormatter})
	sender := &fakeSender{run: app.DigestRun{Digests: 2, Sent: 2, Skipped: 1}}
	job, err := NewDigestJob(sender, time.Hour, logger)
	if err != nil {
		t.Fatalf("NewDigestJob() error = %v", err)
	}
	run := job.RunOnce(context.Background())
	if run.Sent != 2 || sender.calls != 1 {
		t.Fatalf("unexpected run %#v after %d calls", run, sender.calls)
	}
	if out := buf.String(); !strings.Contains(out, "digest run complete") || !strings.Contains(out, "skipped=1") {
		t.Fatalf("unexpected log output %q", out)
	}

	buf.Reset()
	sender.err = errors.New("nats down")
	job.RunOnce(context.Background())
	if out := buf.String(); !strings.Contains(out, "digest run failed") || !strings.Contains(out, "nats down") {
		t.Fatalf("unexpected log output %q", out)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	job.RunOnce(ctx)
	if sender.calls != 2 {
		t.Fatalf("expected cancelled context to skip the run, got %d calls", sender.calls)
	}
}

func TestStartRunsImmediatelyAndStopsWithContext(t *testing.T) {
	sender := &fakeSender{ch: make(chan struct{}, 1)}
	job, err := NewDigestJob(sender, time.Hour, charmLog.NewWithOptions(&bytes.Buffer{}, charmLog.Options{}))
	if err != nil {
		t.Fatalf("NewDigestJob() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := job.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	select {
	case <-sender.ch:
	case <-time.After(5 * time.Second):
		t.Fatal("expected the first run to fire on start")
	}
	cancel()
	deadline := time.Now().Add(5 * time.Second)
	for job.sched.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("scheduler still running after context cancel")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
