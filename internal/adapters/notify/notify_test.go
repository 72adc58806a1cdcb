package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	charmLog "github.com/charmbracelet/log"

	"github.com/g3/tornado/internal/app"
)

type fakePublisher struct {
	subject  string
	payloads [][]byte
	failPub  error
	flushes  int
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	if f.failPub != nil {
		return f.failPub
	}
	f.subject = subject
	f.payloads = append(f.payloads, data)
	return nil
}

func (f *fakePublisher) FlushWithContext(context.Context) error {
	f.flushes++
	return nil
}

func sampleDigest() app.FollowUpDigest {
	return app.FollowUpDigest{
		ContactID:   "c-ana",
		ContactName: "Ana",
		Email:       "ana@acme.example",
		GeneratedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		Items: []app.DigestItem{
			{TaskID: "t1", ProjectName: "Renewals", Description: "renew lease", DaysSinceMovement: 5, DaysPastCadence: 2},
			{TaskID: "t2", ProjectName: "Renewals", Description: "sign NDA", DaysSinceMovement: 4, DaysPastCadence: 1, ActiveGate: "legal"},
		},
	}
}

func TestNATSNotifierPublishesJSON(t *testing.T) {
	pub := &fakePublisher{}
	n := newNATSNotifier(pub, "")
	if err := n.NotifyDigest(context.Background(), sampleDigest()); err != nil {
		t.Fatalf("NotifyDigest() error = %v", err)
	}
	if pub.subject != DefaultSubject || pub.flushes != 1 || len(pub.payloads) != 1 {
		t.Fatalf("unexpected publish state %#v", pub)
	}
	var got app.FollowUpDigest
	if err := json.Unmarshal(pub.payloads[0], &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if got.Email != "ana@acme.example" || len(got.Items) != 2 || got.Items[1].ActiveGate != "legal" {
		t.Fatalf("unexpected payload %#v", got)
	}
}

func TestNATSNotifierPublishError(t *testing.T) {
	boom := errors.New("boom")
	n := newNATSNotifier(&fakePublisher{failPub: boom}, "ops.digests")
	if err := n.NotifyDigest(context.Background(), sampleDigest()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped publish error, got %v", err)
	}
}

func TestDialNATSRequiresURL(t *testing.T) {
	if _, err := DialNATS(" ", "", nil); err == nil {
		t.Fatal("expected empty url to fail")
	}
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	logger := charmLog.NewWithOptions(&buf, charmLog.Options{Formatter: charmLog.LogfmtFormatter})
	if err := NewLogNotifier(logger).NotifyDigest(context.Background(), sampleDigest()); err != nil {
		t.Fatalf("NotifyDigest() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"follow-up digest", "contact=c-ana", "stale_tasks=2", "task_ids=t1,t2"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output %q missing %q", out, want)
		}
	}
}
