package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"net/netip"
	"time"

	"eventreg/internal/platform/config"
	"eventreg/internal/ratelimit/metrics"
	"eventreg/internal/ratelimit/models"
	dErrors "eventreg/pkg/domain-errors"
	"eventreg/pkg/requestcontext"
)

// Service checks per-IP request budgets for each endpoint class.
type Service struct {
	buckets   BucketStore
	limits    map[models.EndpointClass]models.Limit
	allowlist map[string]struct{}
	logger    *slog.Logger
	metrics   *metrics.Metrics
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

// WithLimit overrides the budget of one endpoint class.
func WithLimit(class models.EndpointClass, limit models.Limit) Option {
	return func(s *Service) {
		s.limits[class] = limit
	}
}

// WithAllowlist exempts the given client IPs.
func WithAllowlist(ips ...string) Option {
	return func(s *Service) {
		for _, ip := range ips {
			s.allowlist[ip] = struct{}{}
		}
	}
}

// LimitsFromConfig maps the configured per-window budgets onto endpoint
// classes.
func LimitsFromConfig(cfg config.RateLimitConfig) []Option {
	window := cfg.Window
	if window <= 0 {
		window = time.Minute
	}
	return []Option{
		WithLimit(models.ClassOpen, models.Limit{Requests: cfg.OpenPerWindow, Window: window}),
		WithLimit(models.ClassEdit, models.Limit{Requests: cfg.EditPerWindow, Window: window}),
		WithLimit(models.ClassSubmit, models.Limit{Requests: cfg.SubmitPerWindow, Window: window}),
		WithAllowlist(cfg.AllowlistIPs...),
	}
}

// DefaultLimits are used for classes no option overrides.
func DefaultLimits() map[models.EndpointClass]models.Limit {
	return map[models.EndpointClass]models.Limit{
		models.ClassOpen:   {Requests: 20, Window: time.Minute},
		models.ClassEdit:   {Requests: 300, Window: time.Minute},
		models.ClassSubmit: {Requests: 5, Window: time.Minute},
	}
}

func New(buckets BucketStore, opts ...Option) (*Service, error) {
	if buckets == nil {
		return nil, errors.New("bucket store is required")
	}
	svc := &Service{
		buckets:   buckets,
		limits:    DefaultLimits(),
		allowlist: map[string]struct{}{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CheckIP records one request from ip against the budget of class.
func (s *Service) CheckIP(ctx context.Context, ip string, class models.EndpointClass) (*models.Result, error) {
	now := requestcontext.Now(ctx)

	limit, ok := s.limits[class]
	if !ok || limit.Requests <= 0 {
		// Unknown or zero budget denies.
		s.logger.WarnContext(ctx, "rate limit not configured",
			"endpoint_class", class,
			"ip_prefix", ipPrefix(ip),
			"request_id", requestcontext.RequestID(ctx),
		)
		s.metrics.RecordDecision(string(class), false)
		return &models.Result{ResetAt: now, RetryAfter: 60}, nil
	}

	if _, ok := s.allowlist[ip]; ok {
		s.metrics.RecordAllowlistBypass()
		return &models.Result{
			Allowed:   true,
			Limit:     limit.Requests,
			Remaining: limit.Requests,
			ResetAt:   now.Add(limit.Window),
		}, nil
	}

	result, err := s.buckets.Allow(ctx, models.IPKey(ip, class), limit)
	if err != nil {
		s.metrics.RecordStoreError()
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check rate limit")
	}
	s.metrics.RecordDecision(string(class), result.Allowed)

	if !result.Allowed {
		s.logger.InfoContext(ctx, "rate limit exceeded",
			"endpoint_class", class,
			"ip_prefix", ipPrefix(ip),
			"limit", limit.Requests,
			"window_seconds", int(limit.Window.Seconds()),
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return result, nil
}

// ipPrefix keeps the network part of an address for logs: /24 for IPv4 and
// /48 for IPv6.
func ipPrefix(ip string) string {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "invalid"
	}
	bits := 48
	if addr.Is4() {
		bits = 24
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return "invalid"
	}
	return prefix.String()
}
