// Package notify delivers cycle summaries to the operator. Delivery never
// blocks or fails a trading cycle.
package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultTimeout = 10 * time.Second

// Sender is one notification channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier dispatches messages to all senders in the background.
type Notifier struct {
	senders []Sender
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewNotifier creates a notifier. A non-positive timeout uses the default.
func NewNotifier(senders []Sender, timeout time.Duration, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Notifier{senders: senders, timeout: timeout, logger: logger}
}

// Send returns immediately. Each sender gets its own deadline and a failure is
// only logged.
func (n *Notifier) Send(ctx context.Context, title, message string) {
	if n == nil {
		return
	}
	base := context.WithoutCancel(ctx)

	for _, s := range n.senders {
		n.wg.Add(1)
		go func(s Sender) {
			defer n.wg.Done()

			sctx, cancel := context.WithTimeout(base, n.timeout)
			defer cancel()

			if err := s.Send(sctx, title, message); err != nil {
				n.logger.Warn("notification failed", zap.String("sender", s.Name()), zap.Error(err))
				return
			}
			n.logger.Debug("notification sent", zap.String("sender", s.Name()), zap.String("title", title))
		}(s)
	}
}

// Wait blocks until in-flight notifications finish.
func (n *Notifier) Wait() {
	if n == nil {
		return
	}
	n.wg.Wait()
}

// LogSender writes notifications to the log.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, title, message string) error {
	s.logger.Info(title, zap.String("message", message))
	return nil
}

func (s *LogSender) Name() string {
	return "log"
}
