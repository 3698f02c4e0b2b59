package db

import (
	"log/slog"
	"runtime"

	"github.com/leapstack-labs/leaperl/internal/hir"
)

type options struct {
	logger     *slog.Logger
	resolver   IncludeResolver
	otpRelease int
	workers    int
}

func defaultOptions() options {
	return options{
		logger:     slog.New(slog.DiscardHandler),
		resolver:   &PathResolver{},
		otpRelease: hir.DefaultOTPRelease,
		workers:    runtime.GOMAXPROCS(0),
	}
}

// Option configures a Database.
type Option func(*options)

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithIncludeResolver replaces the default PathResolver.
func WithIncludeResolver(r IncludeResolver) Option {
	return func(o *options) {
		if r != nil {
			o.resolver = r
		}
	}
}

// WithOTPRelease sets the value of ?OTP_RELEASE.
func WithOTPRelease(release int) Option {
	return func(o *options) {
		if release > 0 {
			o.otpRelease = release
		}
	}
}

// WithWorkers bounds the parallelism of Prewarm.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}
