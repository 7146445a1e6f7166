// Package notify fans operator alerts out to the configured channels. The
// mint pipeline raises a small set of event kinds (sale_created, sold_out,
// schedule_updated, mint_paused) and operators choose which of them reach
// their webhooks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Sender delivers a single alert to one channel.
type Sender interface {
	Send(ctx context.Context, title, body string) error
	Name() string
}

// Notifier routes alerts to every registered Sender, filtered by event kind.
// An empty kind filter lets everything through.
type Notifier struct {
	senders []Sender
	kinds   map[string]bool
	logger  *slog.Logger
}

// NewNotifier builds a Notifier delivering to senders. Only alerts whose kind
// appears in kinds are forwarded; pass an empty slice to forward all kinds.
func NewNotifier(senders []Sender, kinds []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		if k = strings.TrimSpace(k); k != "" {
			allowed[k] = true
		}
	}
	return &Notifier{
		senders: senders,
		kinds:   allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify delivers an alert of the given kind to every sender, unless the kind
// is filtered out. Sender failures are joined so one broken webhook does not
// silence the rest.
func (n *Notifier) Notify(ctx context.Context, kind, title, body string) error {
	if len(n.kinds) > 0 && !n.kinds[kind] {
		n.logger.DebugContext(ctx, "alert filtered", slog.String("kind", kind))
		return nil
	}

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, body); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("kind", kind),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "alert delivered",
			slog.String("sender", s.Name()),
			slog.String("kind", kind),
		)
	}
	return errors.Join(errs...)
}
