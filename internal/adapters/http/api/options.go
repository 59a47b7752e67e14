package api

import (
	"time"

	"github.com/okian/parkwise/pkg/logger"
)

// Option configures a Server.
type Option func(*Server)

// WithLocation sets the zone offset-less timestamps are read in.
func WithLocation(loc *time.Location) Option {
	return func(s *Server) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithCurrency sets the currency imported base prices are read in.
func WithCurrency(code string) Option {
	return func(s *Server) {
		if code != "" {
			s.currency = code
		}
	}
}

// WithClock overrides the clock used for response timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the handler logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithServiceName names the server spans.
func WithServiceName(name string) Option {
	return func(s *Server) {
		if name != "" {
			s.serviceName = name
		}
	}
}
