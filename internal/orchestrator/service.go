// Package orchestrator runs the poll-and-notify cycle: it fetches the roster,
// detects new hires, decides per group whether a push is due, sends the cards
// and routes button presses back to the callback dispatcher.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"onboard/internal/audit"
	"onboard/internal/cadence"
	"onboard/internal/callback"
	"onboard/internal/callback/dedupe"
	"onboard/internal/identity"
	"onboard/internal/notify/card"
	"onboard/internal/notify/render"
	"onboard/internal/platform/metrics"
	"onboard/internal/platform/scheduler"
	"onboard/internal/roster"
	"onboard/internal/roster/models"
	"onboard/internal/rules"
	"onboard/internal/tracking"
	"onboard/pkg/requestcontext"
)

const dayLayout = "2006-01-02"

// RuleSource lists the ride-service policy rules.
type RuleSource interface {
	ListRules(ctx context.Context) ([]rules.Rule, error)
}

// Messenger delivers cards. Send targets the chat of a grouping key ("" is the
// default chat) and returns the platform message id.
type Messenger interface {
	Send(ctx context.Context, group string, c card.Card) (string, error)
	SendFollowup(ctx context.Context, c card.Card) error
}

// Deps are the collaborators of a Service.
type Deps struct {
	Roster    roster.Source
	Resolver  roster.LocationResolver
	Rules     RuleSource
	Messenger Messenger
	Emails    callback.EmailProvisioner
	Rides     callback.RideProvisioner
	Scheduler scheduler.Scheduler
	Audit     *audit.Log
	Dedupe    dedupe.Store
}

// Config holds the cycle settings.
type Config struct {
	Categories        []models.Category
	PrimaryCategory   string
	SecondaryCategory string
	Cadence           *cadence.Policy
	EmailDomain       string
	SentCapacity      int
	PollInterval      time.Duration
	DigestHour        int
	DigestMinute      int
}

// Report summarizes one check.
type Report struct {
	Pending int
	New     int
	Pushed  []string
}

type Service struct {
	roster     roster.Source
	enricher   *roster.Enricher
	rules      RuleSource
	messenger  Messenger
	scheduler  scheduler.Scheduler
	matcher    *rules.Matcher
	allocator  *identity.Allocator
	detector   *tracking.Detector
	cadence    *cadence.Policy
	renderer   *render.Renderer
	dispatcher *callback.Dispatcher
	audit      *audit.Log
	sent       *sentLog
	cfg        Config
	logger     *slog.Logger
	metrics    *metrics.Metrics
	enrichOpts []roster.Option

	// checkMu serializes check cycles so KnownSet updates never interleave.
	checkMu sync.Mutex

	mu       sync.Mutex
	pushedOn map[string]string
	handles  []scheduler.Handle
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithEnrichment tunes location enrichment paging.
func WithEnrichment(opts ...roster.Option) Option {
	return func(s *Service) {
		s.enrichOpts = append(s.enrichOpts, opts...)
	}
}

func New(deps Deps, cfg Config, opts ...Option) (*Service, error) {
	switch {
	case deps.Roster == nil:
		return nil, errors.New("roster source is required")
	case deps.Rules == nil:
		return nil, errors.New("rule source is required")
	case deps.Messenger == nil:
		return nil, errors.New("messenger is required")
	case cfg.Cadence == nil:
		return nil, errors.New("cadence policy is required")
	case len(cfg.Categories) == 0:
		return nil, errors.New("at least one roster category is required")
	}

	s := &Service{
		roster:    deps.Roster,
		rules:     deps.Rules,
		messenger: deps.Messenger,
		scheduler: deps.Scheduler,
		matcher:   rules.NewMatcher(cfg.PrimaryCategory, cfg.SecondaryCategory),
		detector:  tracking.NewDetector(),
		cadence:   cfg.Cadence,
		audit:     deps.Audit,
		sent:      newSentLog(cfg.SentCapacity),
		cfg:       cfg,
		logger:    slog.Default(),
		pushedOn:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.audit == nil {
		s.audit = audit.NewLog(audit.DefaultCapacity, audit.WithLogger(s.logger))
	}
	s.allocator = identity.New(identity.WithLogger(s.logger))
	s.renderer = render.New(cfg.Cadence.Location(), render.WithEmailDomain(cfg.EmailDomain))
	if deps.Resolver != nil {
		s.enricher = roster.NewEnricher(deps.Resolver, append([]roster.Option{roster.WithLogger(s.logger)}, s.enrichOpts...)...)
	}

	dispatcher, err := callback.New(deps.Emails, deps.Rides, deps.Messenger, s.audit, s.renderer,
		callback.WithLogger(s.logger),
		callback.WithMetrics(s.metrics),
		callback.WithRefresher(s),
		callback.WithDedupe(deps.Dedupe),
	)
	if err != nil {
		return nil, fmt.Errorf("callback dispatcher: %w", err)
	}
	s.dispatcher = dispatcher
	return s, nil
}

// Start runs one check to initialize change tracking, then schedules the
// periodic poll and the daily digest.
func (s *Service) Start(ctx context.Context) error {
	if s.scheduler == nil {
		return errors.New("scheduler is required to start")
	}
	if _, err := s.Check(ctx, false); err != nil {
		s.logger.WarnContext(ctx, "initial check incomplete", "error", err)
	}

	poll := s.scheduler.Schedule("poll", scheduler.Every(s.cfg.PollInterval), func(ctx context.Context) error {
		_, err := s.Check(ctx, false)
		return err
	})
	digest := s.scheduler.Schedule("digest", scheduler.DailyAt{
		Hour:     s.cfg.DigestHour,
		Minute:   s.cfg.DigestMinute,
		Location: s.cadence.Location(),
	}, s.Digest)

	s.mu.Lock()
	s.handles = append(s.handles, poll, digest)
	s.mu.Unlock()
	return nil
}

// Stop cancels the scheduled jobs and waits for running batches to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	handles := s.handles
	s.handles = nil
	s.mu.Unlock()

	for _, h := range handles {
		h.Cancel()
	}
	s.dispatcher.Wait()
}

// Check runs one poll cycle. With force every group is pushed with all of its
// pending hires, regardless of cadence or what was seen before.
func (s *Service) Check(ctx context.Context, force bool) (Report, error) {
	s.checkMu.Lock()
	defer s.checkMu.Unlock()

	trigger := "scheduled"
	if force {
		trigger = "forced"
	}
	now := requestcontext.Now(ctx)
	ctx = requestcontext.WithTime(ctx, now)

	snap := s.poll(ctx, true, force)
	enriched := s.enrich(ctx, snap.pending)
	report := Report{Pending: len(snap.pending), New: len(snap.newIDs)}

	keys, groups := groupRecords(enriched)
	today := now.In(s.cadence.Location()).Format(dayLayout)
	errs := snap.errs
	for _, group := range keys {
		records := groups[group]
		fresh := withIDs(records, snap.newIDs)

		if !force {
			if !s.cadence.IsDue(group, len(fresh) > 0, now) {
				continue
			}
			if s.cadence.RuleFor(group).Mode == cadence.ModeScheduled {
				if s.pushedToday(group, today) {
					continue
				}
			} else {
				records = fresh
			}
		}

		if err := s.push(ctx, group, records, now); err != nil {
			errs = append(errs, err)
			continue
		}
		if s.cadence.RuleFor(group).Mode == cadence.ModeScheduled {
			s.markPushed(group, today)
		}
		report.Pushed = append(report.Pushed, group)
	}

	err := errors.Join(errs...)
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.metrics.IncrementPoll(result, trigger)
	s.logger.InfoContext(ctx, "check finished",
		"force", force,
		"pending", report.Pending,
		"new", report.New,
		"pushed", len(report.Pushed),
		"error", err,
	)
	return report, err
}

// poll fetches every category. When classify is set the change detector is
// updated; a category that fails to fetch is left untouched so its hires are
// not reported as new once it recovers.
func (s *Service) poll(ctx context.Context, classify, force bool) snapshot {
	snap := snapshot{newIDs: make(map[string]struct{})}
	for _, category := range s.cfg.Categories {
		records, err := s.roster.FetchRoster(ctx, category)
		if err != nil {
			s.logger.WarnContext(ctx, "roster fetch failed", "category", category, "error", err)
			snap.errs = append(snap.errs, fmt.Errorf("fetch %s: %w", category, err))
			continue
		}
		pending := roster.Pending(records)
		snap.pending = append(snap.pending, pending...)
		if !classify {
			continue
		}

		ids := make([]string, len(pending))
		for i, r := range pending {
			ids[i] = r.ID
		}
		cls := s.detector.Classify(string(category), ids, force)
		for _, id := range cls.New {
			snap.newIDs[id] = struct{}{}
		}
		s.metrics.AddNewRecords(string(category), len(cls.New))
	}
	return snap
}

func (s *Service) push(ctx context.Context, group string, records []models.Enriched, now time.Time) error {
	c := s.renderer.Notification(group, records, now)
	messageID, err := s.messenger.Send(ctx, group, c)
	if err != nil {
		s.logger.WarnContext(ctx, "notification send failed", "group", group, "error", err)
		return fmt.Errorf("send %q: %w", group, err)
	}

	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	s.sent.record(messageID, sentNotification{Group: group, RecordIDs: ids, At: now})
	s.metrics.IncrementCardsSent("notification")
	s.logger.InfoContext(ctx, "notification sent", "group", group, "records", len(records), "message_id", messageID)
	return nil
}

// Digest sends the full pending backlog grouped by urgency to the default chat.
func (s *Service) Digest(ctx context.Context) error {
	now := requestcontext.Now(ctx)
	ctx = requestcontext.WithTime(ctx, now)

	snap := s.poll(ctx, false, false)
	enriched := s.enrich(ctx, snap.pending)
	if _, err := s.messenger.Send(ctx, "", s.renderer.Digest(enriched, now)); err != nil {
		return errors.Join(append(snap.errs, fmt.Errorf("send digest: %w", err))...)
	}
	s.metrics.IncrementCardsSent("digest")
	return errors.Join(snap.errs...)
}

// Refresh re-polls the roster and re-sends the card identified by messageID
// with the current state of the hires it carried. Change tracking is not
// touched. Unknown message ids fall back to the whole group. When nothing is
// left to show, no card is sent and callback.ErrNothingToRefresh is returned.
func (s *Service) Refresh(ctx context.Context, messageID, group string) error {
	now := requestcontext.Now(ctx)
	ctx = requestcontext.WithTime(ctx, now)

	var carried map[string]struct{}
	if n, ok := s.sent.lookup(messageID); ok {
		group = n.Group
		carried = make(map[string]struct{}, len(n.RecordIDs))
		for _, id := range n.RecordIDs {
			carried[id] = struct{}{}
		}
	}

	snap := s.poll(ctx, false, false)
	if len(snap.errs) > 0 {
		return errors.Join(snap.errs...)
	}
	_, groups := groupRecords(s.enrich(ctx, snap.pending))

	records := groups[group]
	if carried != nil {
		records = withIDs(records, carried)
	}
	if len(records) == 0 {
		return callback.ErrNothingToRefresh
	}
	if err := s.push(ctx, group, records, now); err != nil {
		return err
	}
	s.metrics.IncrementCardsSent("refresh")
	return nil
}

// HandleCallback processes a button press.
func (s *Service) HandleCallback(ctx context.Context, ev callback.Event) callback.Ack {
	return s.dispatcher.Handle(ctx, ev)
}

// AuditLog returns up to count audit entries, newest first.
func (s *Service) AuditLog(count int) []audit.Entry {
	return s.audit.Recent(count)
}

func (s *Service) pushedToday(group, today string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pushedOn[group] == today
}

func (s *Service) markPushed(group, today string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushedOn[group] = today
}

// withIDs keeps the records whose id is in ids, preserving order.
func withIDs(records []models.Enriched, ids map[string]struct{}) []models.Enriched {
	var out []models.Enriched
	for _, r := range records {
		if _, ok := ids[r.ID]; ok {
			out = append(out, r)
		}
	}
	return out
}
