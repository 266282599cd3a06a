package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	directoryadapter "onboard/internal/adapters/directory"
	messengeradapter "onboard/internal/adapters/messenger"
	rideadapter "onboard/internal/adapters/ride"
	rosteradapter "onboard/internal/adapters/roster"
	"onboard/internal/adapters/vendorapi"
	"onboard/internal/audit"
	"onboard/internal/audit/publisher"
	"onboard/internal/cadence"
	"onboard/internal/callback/dedupe"
	"onboard/internal/identity"
	"onboard/internal/orchestrator"
	"onboard/internal/platform/config"
	"onboard/internal/platform/metrics"
	"onboard/internal/platform/redis"
	"onboard/internal/platform/scheduler"
	"onboard/internal/platform/throttle"
	"onboard/internal/platform/upstream"
	"onboard/internal/provisioning"
	"onboard/internal/roster"
	"onboard/internal/roster/models"
	httptransport "onboard/internal/transport/http"
)

// app is the fully wired engine plus the resources that must be released on
// shutdown.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	service *orchestrator.Service

	exportInbox chan audit.Entry
	exporter    *publisher.Kafka
	redis       *redis.Client
	vendors     []*upstream.Client
}

// buildApp wires every collaborator from cfg. sched may be nil for one-shot
// commands that never call Start.
func buildApp(ctx context.Context, cfg *config.Config, log *slog.Logger, reg prometheus.Registerer, sched scheduler.Scheduler) (*app, error) {
	a := &app{cfg: cfg, logger: log, metrics: metrics.New(reg)}

	if err := a.wireExport(ctx); err != nil {
		a.Close()
		return nil, err
	}
	store, err := a.wireDedupe()
	if err != nil {
		a.Close()
		return nil, err
	}

	auditOpts := []audit.LogOption{audit.WithLogger(log)}
	if a.exportInbox != nil {
		auditOpts = append(auditOpts, audit.WithOutbox(a.exportInbox))
	}
	auditLog := audit.NewLog(cfg.Notify.AuditCapacity, auditOpts...)

	deps, err := a.wireVendors()
	if err != nil {
		a.Close()
		return nil, err
	}
	deps.Audit = auditLog
	deps.Dedupe = store
	deps.Scheduler = sched

	policy, err := cadence.NewPolicy(cfg.Rules.Push.Groups, cfg.Rules.Push.Default, cfg.Location())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("push rules: %w", err)
	}
	hour, minute, err := cfg.Schedule.DigestTime()
	if err != nil {
		a.Close()
		return nil, err
	}
	categories := make([]models.Category, 0, len(cfg.Rules.Categories))
	for _, c := range cfg.Rules.Categories {
		categories = append(categories, models.Category(c))
	}

	svc, err := orchestrator.New(deps, orchestrator.Config{
		Categories:        categories,
		PrimaryCategory:   cfg.Rules.Matcher.PrimaryCategory,
		SecondaryCategory: cfg.Rules.Matcher.SecondaryCategory,
		Cadence:           policy,
		EmailDomain:       cfg.Notify.EmailDomain,
		SentCapacity:      cfg.Notify.SentCapacity,
		PollInterval:      cfg.Schedule.PollInterval,
		DigestHour:        hour,
		DigestMinute:      minute,
	},
		orchestrator.WithLogger(log),
		orchestrator.WithMetrics(a.metrics),
		orchestrator.WithEnrichment(
			roster.WithPageSize(cfg.Notify.EnrichPageSize),
			roster.WithWaveWidth(cfg.Notify.EnrichWaveWidth),
		),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.service = svc
	return a, nil
}

func (a *app) wireExport(ctx context.Context) error {
	if len(a.cfg.Kafka.Brokers) == 0 {
		return nil
	}
	k, err := publisher.NewKafka(a.cfg.Kafka.Brokers, a.cfg.Kafka.Topic, publisher.WithLogger(a.logger))
	if err != nil {
		return fmt.Errorf("audit export: %w", err)
	}
	ensureCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := k.EnsureTopic(ensureCtx, 1, 1); err != nil {
		a.logger.WarnContext(ctx, "audit topic not ensured, relying on auto-create", "error", err)
	}
	a.exporter = k
	a.exportInbox = make(chan audit.Entry, a.cfg.Kafka.Buffer)
	return nil
}

func (a *app) wireDedupe() (dedupe.Store, error) {
	client, err := redis.New(a.cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("callback dedupe: %w", err)
	}
	if client == nil {
		return dedupe.NewMemory(a.cfg.Notify.DedupeTTL), nil
	}
	a.redis = client
	return dedupe.NewRedis(client.Client, a.cfg.Notify.DedupeTTL), nil
}

func (a *app) wireVendors() (orchestrator.Deps, error) {
	v := a.cfg.Vendors
	for name, vc := range map[string]config.Vendor{
		"roster": v.Roster, "directory": v.Directory, "ride": v.Ride, "messenger": v.Messenger,
	} {
		if vc.BaseURL == "" {
			return orchestrator.Deps{}, fmt.Errorf("vendor %s: base URL is required", name)
		}
	}

	rosterClient, err := rosteradapter.New(a.vendorClient("roster", v.Roster), rosteradapter.WithLocation(a.cfg.Location()))
	if err != nil {
		return orchestrator.Deps{}, err
	}
	directoryClient, err := directoryadapter.New(a.vendorClient("directory", v.Directory))
	if err != nil {
		return orchestrator.Deps{}, err
	}
	rideClient, err := rideadapter.New(a.vendorClient("ride", v.Ride))
	if err != nil {
		return orchestrator.Deps{}, err
	}
	messenger, err := messengeradapter.New(a.vendorClient("messenger", v.Messenger), a.cfg.Rules.Chats,
		messengeradapter.WithLogger(a.logger))
	if err != nil {
		return orchestrator.Deps{}, err
	}

	provOpts := []provisioning.Option{provisioning.WithLogger(a.logger), provisioning.WithMetrics(a.metrics)}
	emails, err := provisioning.NewEmailService(directoryClient, identity.New(identity.WithLogger(a.logger)),
		a.cfg.Notify.EmailDomain, provOpts...)
	if err != nil {
		return orchestrator.Deps{}, err
	}
	rides, err := provisioning.NewRideService(rideClient, throttle.New(a.cfg.Notify.RideSpacing), provOpts...)
	if err != nil {
		return orchestrator.Deps{}, err
	}

	deps := orchestrator.Deps{
		Roster:    rosterClient,
		Resolver:  rosterClient,
		Rules:     rideClient,
		Messenger: messenger,
		Emails:    emails,
		Rides:     rides,
	}
	// a static table in the rules file replaces the vendor lookups
	if len(a.cfg.Rules.Locations) > 0 {
		deps.Resolver = roster.StaticResolver(a.cfg.Rules.Locations)
	}
	if len(a.cfg.Rules.RideRules) > 0 {
		deps.Rules = orchestrator.StaticRules(a.cfg.Rules.RideRules)
	}
	return deps, nil
}

func (a *app) vendorClient(service string, vc config.Vendor) *upstream.Client {
	opts := []upstream.Option{upstream.WithLogger(a.logger.With("service", service))}
	if vc.ClientID != "" {
		opts = append(opts, upstream.WithTokenSource(vendorapi.TenantToken(vc.BaseURL, vc.ClientID, vc.ClientSecret, nil)))
	}
	c := upstream.New(service, vc.BaseURL, opts...)
	a.vendors = append(a.vendors, c)
	return c
}

// healthChecks reports the Redis connection and each vendor circuit.
func (a *app) healthChecks() []httptransport.Option {
	var opts []httptransport.Option
	if a.redis != nil {
		opts = append(opts, httptransport.WithHealthCheck("redis", a.redis.Health))
	}
	for _, c := range a.vendors {
		breaker := c.Breaker()
		opts = append(opts, httptransport.WithHealthCheck(c.Service(), func(context.Context) error {
			if breaker.IsOpen() {
				return fmt.Errorf("circuit %s", breaker.State())
			}
			return nil
		}))
	}
	return opts
}

// runExport drains the audit outbox into Kafka until ctx is cancelled.
func (a *app) runExport(ctx context.Context) {
	if a.exporter == nil {
		return
	}
	w := audit.NewWorker(a.exporter, a.exportInbox, a.logger)
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.ErrorContext(ctx, "audit export stopped", "error", err)
	}
}

func (a *app) Close() {
	if a.exporter != nil {
		a.exporter.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis close failed", "error", err)
		}
	}
}
