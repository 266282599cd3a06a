// Package callback turns button presses on notification cards into provisioning
// actions, records each outcome in the audit log and reports back to the chat.
package callback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"onboard/internal/audit"
	"onboard/internal/callback/dedupe"
	"onboard/internal/notify/action"
	"onboard/internal/notify/card"
	"onboard/internal/notify/render"
	"onboard/internal/platform/metrics"
	"onboard/internal/provisioning"
	"onboard/pkg/requestcontext"
)

// Event is one callback delivered by the chat platform.
type Event struct {
	EventID   string          `json:"event_id"`
	Operator  string          `json:"operator"`
	MessageID string          `json:"message_id"`
	Value     json.RawMessage `json:"value"`
}

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Ack is the short toast returned synchronously to the platform.
type Ack struct {
	Message string `json:"message"`
	Level   Level  `json:"level"`
}

type EmailProvisioner interface {
	Provision(ctx context.Context, target action.EmailTarget) (string, error)
	Assign(ctx context.Context, target action.EmailTarget, handle string) (string, error)
}

type RideProvisioner interface {
	Provision(ctx context.Context, target action.RideTarget) (provisioning.RideResult, error)
}

// Refresher re-polls and re-sends the card a refresh button was pressed on.
type Refresher interface {
	Refresh(ctx context.Context, messageID, group string) error
}

// Followups delivers result cards.
type Followups interface {
	SendFollowup(ctx context.Context, c card.Card) error
}

// BatchResult summarizes one batch run. Items keep input order.
type BatchResult struct {
	Total      int
	Successful int
	Failed     int
	Items      []render.Outcome
}

type Dispatcher struct {
	emails    EmailProvisioner
	rides     RideProvisioner
	followups Followups
	audit     *audit.Log
	renderer  *render.Renderer
	refresher Refresher
	dedupe    dedupe.Store
	logger    *slog.Logger
	metrics   *metrics.Metrics

	wg sync.WaitGroup
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

func WithRefresher(r Refresher) Option {
	return func(d *Dispatcher) {
		d.refresher = r
	}
}

// WithDedupe drops redelivered events whose id was already claimed.
func WithDedupe(store dedupe.Store) Option {
	return func(d *Dispatcher) {
		d.dedupe = store
	}
}

func New(emails EmailProvisioner, rides RideProvisioner, followups Followups, auditLog *audit.Log, renderer *render.Renderer, opts ...Option) (*Dispatcher, error) {
	if emails == nil {
		return nil, errors.New("email provisioner is required")
	}
	if rides == nil {
		return nil, errors.New("ride provisioner is required")
	}
	if followups == nil {
		return nil, errors.New("followup sender is required")
	}
	if auditLog == nil {
		return nil, errors.New("audit log is required")
	}
	if renderer == nil {
		return nil, errors.New("renderer is required")
	}
	d := &Dispatcher{
		emails:    emails,
		rides:     rides,
		followups: followups,
		audit:     auditLog,
		renderer:  renderer,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Handle processes one callback. Single actions run before Handle returns;
// batch actions are acknowledged at once and run in the background.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) Ack {
	if ev.Operator != "" {
		ctx = requestcontext.WithOperator(ctx, ev.Operator)
	}

	act, err := action.Parse(ev.Value)
	if err != nil {
		d.logger.InfoContext(ctx, "ignoring unrecognized callback",
			"event_id", ev.EventID,
			"error", err,
		)
		d.metrics.IncrementCallback("unknown", "ignored")
		return Ack{Message: "Nothing to do for this button.", Level: LevelInfo}
	}
	kind := string(act.Kind())

	if ev.EventID != "" && d.dedupe != nil {
		first, err := d.dedupe.Claim(ctx, ev.EventID)
		if err != nil {
			d.logger.WarnContext(ctx, "callback dedupe unavailable, processing anyway",
				"event_id", ev.EventID,
				"error", err,
			)
		} else if !first {
			d.metrics.IncrementCallback(kind, "duplicate")
			return Ack{Message: "This action is already being processed.", Level: LevelInfo}
		}
	}
	d.metrics.IncrementCallback(kind, "handled")

	// Provisioning runs to completion even if the platform drops the request.
	execCtx := context.WithoutCancel(ctx)

	switch a := act.(type) {
	case action.ProvisionEmail:
		addr, err := d.emails.Provision(execCtx, a.EmailTarget)
		return d.single(execCtx, audit.ActionProvisionEmail, "Work email", a.RecordID, a.Name, addr, err)
	case action.AssignEmail:
		addr, err := d.emails.Assign(execCtx, a.EmailTarget, a.Handle)
		return d.single(execCtx, audit.ActionAssignEmail, "Work email", a.RecordID, a.Name, addr, err)
	case action.ProvisionRide:
		res, err := d.rides.Provision(execCtx, a.RideTarget)
		return d.single(execCtx, audit.ActionProvisionRide, "Ride account", a.RecordID, a.Name, rideDetail(res), err)
	case action.BatchEmail:
		return d.startBatch(ctx, act, len(a.Items))
	case action.BatchRide:
		return d.startBatch(ctx, act, len(a.Items))
	case action.Refresh:
		return d.refresh(ctx, ev.MessageID, a.Group)
	default:
		return Ack{Message: "Nothing to do for this button.", Level: LevelInfo}
	}
}

func (d *Dispatcher) single(ctx context.Context, kind audit.Action, title, recordID, name, detail string, err error) Ack {
	outcome := render.Outcome{RecordID: recordID, Name: name, Detail: detail, OK: err == nil}
	if err != nil {
		outcome.Detail = humanize(err)
	}
	d.audit.Append(ctx, audit.Entry{
		Action:  kind,
		Subject: recordID,
		Success: outcome.OK,
		Detail:  outcome.Detail,
	})

	if err != nil {
		return Ack{Message: fmt.Sprintf("%s for %s failed: %s", title, name, outcome.Detail), Level: LevelError}
	}
	d.sendFollowup(ctx, d.renderer.Result(fmt.Sprintf("%s · %s", title, name), []render.Outcome{outcome}))
	return Ack{Message: fmt.Sprintf("%s for %s done: %s", title, name, detail), Level: LevelSuccess}
}

func (d *Dispatcher) startBatch(ctx context.Context, act action.Action, n int) Ack {
	if n == 0 {
		return Ack{Message: "Nothing left to provision.", Level: LevelInfo}
	}
	runCtx := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.RunBatch(runCtx, act)
	}()
	return Ack{Message: fmt.Sprintf("Processing %d items, results will follow.", n), Level: LevelInfo}
}

// RunBatch provisions every item of a batch action in order, one at a time,
// appending one audit entry per item and then one aggregate entry.
func (d *Dispatcher) RunBatch(ctx context.Context, act action.Action) BatchResult {
	var (
		result    BatchResult
		itemKind  audit.Action
		batchKind audit.Action
		title     string
	)

	switch a := act.(type) {
	case action.BatchEmail:
		itemKind, batchKind, title = audit.ActionProvisionEmail, audit.ActionBatchEmail, "Batch work email"
		for _, item := range a.Items {
			addr, err := d.emails.Provision(ctx, item)
			result.add(d.recordItem(ctx, itemKind, item.RecordID, item.Name, addr, err))
		}
	case action.BatchRide:
		itemKind, batchKind, title = audit.ActionProvisionRide, audit.ActionBatchRide, "Batch ride accounts"
		for _, item := range a.Items {
			res, err := d.rides.Provision(ctx, item)
			result.add(d.recordItem(ctx, itemKind, item.RecordID, item.Name, rideDetail(res), err))
		}
	default:
		return result
	}

	d.audit.Append(ctx, audit.Entry{
		Action:  batchKind,
		Subject: fmt.Sprintf("%d items", result.Total),
		Success: result.Failed == 0,
		Detail:  fmt.Sprintf("%d succeeded, %d failed", result.Successful, result.Failed),
	})
	d.logger.InfoContext(ctx, "batch provisioning finished",
		"action", batchKind,
		"total", result.Total,
		"failed", result.Failed,
	)
	d.sendFollowup(ctx, d.renderer.Result(title, result.Items))
	return result
}

func (d *Dispatcher) recordItem(ctx context.Context, kind audit.Action, recordID, name, detail string, err error) render.Outcome {
	outcome := render.Outcome{RecordID: recordID, Name: name, Detail: detail, OK: err == nil}
	if err != nil {
		outcome.Detail = humanize(err)
	}
	d.audit.Append(ctx, audit.Entry{
		Action:  kind,
		Subject: recordID,
		Success: outcome.OK,
		Detail:  outcome.Detail,
	})
	return outcome
}

func (r *BatchResult) add(o render.Outcome) {
	r.Total++
	if o.OK {
		r.Successful++
	} else {
		r.Failed++
	}
	r.Items = append(r.Items, o)
}

func (d *Dispatcher) refresh(ctx context.Context, messageID, group string) Ack {
	if d.refresher == nil {
		return Ack{Message: "Refresh is not available.", Level: LevelInfo}
	}
	err := d.refresher.Refresh(ctx, messageID, group)
	if errors.Is(err, ErrNothingToRefresh) {
		return Ack{Message: "Nothing left to do for this card.", Level: LevelInfo}
	}
	if err != nil {
		d.logger.WarnContext(ctx, "refresh failed", "message_id", messageID, "error", err)
		return Ack{Message: "Refresh failed: " + humanize(err), Level: LevelError}
	}
	return Ack{Message: "Refreshed.", Level: LevelSuccess}
}

func (d *Dispatcher) sendFollowup(ctx context.Context, c card.Card) {
	if err := d.followups.SendFollowup(ctx, c); err != nil {
		d.logger.WarnContext(ctx, "failed to send result card", "title", c.Header.Title, "error", err)
	}
}

// Wait blocks until every background batch has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func rideDetail(res provisioning.RideResult) string {
	if res.AlreadyExisted {
		return "account already existed"
	}
	if res.AccountID == "" {
		return "account opened"
	}
	return "account " + res.AccountID
}
