// Package notify delivers follow-up digests.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"
	"github.com/nats-io/nats.go"

	"github.com/g3/tornado/internal/app"
)

// DefaultSubject is where digests are published for the mailer.
const DefaultSubject = "tornado.digests"

// LogNotifier writes digests to the runtime log. It is the fallback when no
// broker is configured.
type LogNotifier struct {
	logger *charmLog.Logger
}

var _ app.Notifier = (*LogNotifier)(nil)

// NewLogNotifier constructs a log notifier.
func NewLogNotifier(logger *charmLog.Logger) *LogNotifier {
	if logger == nil {
		logger = charmLog.Default()
	}
	return &LogNotifier{logger: logger}
}

// NotifyDigest logs one line per digest.
func (n *LogNotifier) NotifyDigest(_ context.Context, d app.FollowUpDigest) error {
	tasks := make([]string, 0, len(d.Items))
	for _, item := range d.Items {
		tasks = append(tasks, item.TaskID)
	}
	n.logger.Info("follow-up digest",
		"contact", d.ContactID,
		"email", d.Email,
		"stale_tasks", len(d.Items),
		"task_ids", strings.Join(tasks, ","),
	)
	return nil
}

// publisher is the slice of *nats.Conn the notifier needs.
type publisher interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

// NATSNotifier publishes digests as JSON for an external mailer.
type NATSNotifier struct {
	conn    publisher
	close   func()
	subject string
}

var _ app.Notifier = (*NATSNotifier)(nil)

// DialNATS connects to url and returns a notifier publishing on subject.
func DialNATS(url, subject string, logger *charmLog.Logger) (*NATSNotifier, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("nats url is required")
	}
	if logger == nil {
		logger = charmLog.Default()
	}
	nc, err := nats.Connect(url,
		nats.Name("tornado"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "err", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	n := newNATSNotifier(nc, subject)
	n.close = func() {
		if err := nc.Drain(); err != nil {
			nc.Close()
		}
	}
	return n, nil
}

func newNATSNotifier(conn publisher, subject string) *NATSNotifier {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSNotifier{conn: conn, subject: subject}
}

// NotifyDigest publishes d and waits for the server to acknowledge the flush.
func (n *NATSNotifier) NotifyDigest(ctx context.Context, d app.FollowUpDigest) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal digest: %w", err)
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		return fmt.Errorf("publish digest: %w", err)
	}
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush digest: %w", err)
	}
	return nil
}

// Close drains the connection.
func (n *NATSNotifier) Close() {
	if n.close != nil {
		n.close()
	}
}
