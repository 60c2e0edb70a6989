package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/lumenshell/widget-runtime/host"
	"github.com/lumenshell/widget-runtime/register"
)

// IntervalService wakes one module on a fixed cadence, driving its timer
// subscription. The first tick is delayed by the subscription's phase
// offset so modules can stagger themselves against each other.
type IntervalService struct {
	log      *zap.Logger
	module   uint32
	interval time.Duration
	phase    time.Duration
	requests chan<- host.Request
}

// maxIntervalMS is the largest interval representable as a time.Duration.
// Guest-supplied values above it would overflow the conversion.
const maxIntervalMS = uint64(math.MaxInt64 / int64(time.Millisecond))

// NewIntervalService builds a service for one timer subscription.
// Sub-millisecond or zero intervals are clamped to one millisecond;
// intervals past the duration range are capped rather than wrapped.
func NewIntervalService(module uint32, sub register.Timer, requests chan<- host.Request, log *zap.Logger) *IntervalService {
	if log == nil {
		log = zap.NewNop()
	}

	ms := sub.IntervalMS
	if ms > maxIntervalMS {
		log.Warn("timer interval capped",
			zap.Uint32("module", module), zap.Uint64("interval_ms", ms))
		ms = maxIntervalMS
	}

	interval := time.Duration(ms) * time.Millisecond
	if interval < time.Millisecond {
		log.Warn("timer interval clamped",
			zap.Uint32("module", module), zap.Uint64("interval_ms", sub.IntervalMS))
		interval = time.Millisecond
	}

	return &IntervalService{
		log:      log,
		module:   module,
		interval: interval,
		phase:    time.Duration(sub.PhaseOffsetMS) * time.Millisecond,
		requests: requests,
	}
}

func (s *IntervalService) String() string {
	return fmt.Sprintf("interval-%d-%s", s.module, s.interval)
}

// Serve ticks until ctx is done. It satisfies suture.Service.
func (s *IntervalService) Serve(ctx context.Context) error {
	if s.phase > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.phase):
		}
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.send()
		}
	}
}

func (s *IntervalService) send() {
	select {
	case s.requests <- host.RequestRerender{Module: s.module}:
	default:
		s.log.Warn("rerender dropped: request channel full",
			zap.Uint32("module", s.module))
	}
}
