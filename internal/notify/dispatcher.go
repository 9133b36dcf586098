// Package notify formats and delivers the two message kinds the monitor can
// emit: one initial notification per new record, and at most one deferred
// update when a buffered explanation resolves.
package notify

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/firwatch/notamwatch/internal/model"
	"github.com/firwatch/notamwatch/pkg/telegram"
)

// Dispatcher delivers notifications to the configured channel. Delivery is
// fire-and-forget: a failed send is logged and never retried, and never
// blocks the rest of the run.
type Dispatcher struct {
	client telegram.Client
	loc    *time.Location
	now    func() time.Time
}

// NewDispatcher creates a dispatcher rendering times in the given location.
func NewDispatcher(client telegram.Client, loc *time.Location) *Dispatcher {
	if loc == nil {
		loc = time.UTC
	}
	return &Dispatcher{client: client, loc: loc, now: func() time.Time { return time.Now().UTC() }}
}

// NotifyNew sends the initial notification for a record. explanation is
// either the service explanation or the provisional fallback text.
func (d *Dispatcher) NotifyNew(ctx context.Context, raw model.RawRecord, dec *model.DecodedRecord, explanation string, severity model.Severity, provisional bool) error {
	msg := buildNewMessage(raw, dec, explanation, severity, provisional, d.loc, d.now())
	if err := d.client.SendMessage(ctx, msg); err != nil {
		return eris.Wrapf(err, "notify: new %s", raw.ID)
	}
	zap.L().Info("notify: sent initial notification",
		zap.String("id", string(raw.ID)),
		zap.String("severity", string(severity)),
		zap.Bool("provisional", provisional),
	)
	return nil
}

// NotifyUpdate sends the single deferred follow-up for a record whose
// explanation arrived after its initial notification.
func (d *Dispatcher) NotifyUpdate(ctx context.Context, id model.Identity, rec *model.ExplanationRecord) error {
	msg := buildUpdateMessage(id, rec)
	if err := d.client.SendMessage(ctx, msg); err != nil {
		return eris.Wrapf(err, "notify: update %s", id)
	}
	zap.L().Info("notify: sent deferred update",
		zap.String("id", string(id)),
		zap.String("severity", string(rec.Severity)),
	)
	return nil
}
