package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/lumenshell/widget-runtime/host"
)

// PropertyUpdate is one device-property change entering the router. Mask
// carries the changed property bits; Payload is the service data handed to
// matching guests.
type PropertyUpdate struct {
	Mask    uint8
	Payload []byte
}

// PropertyRouter fans device-property changes out to the modules whose
// watch masks cover them. Watches are registered before Serve starts and
// stay fixed for the router's lifetime.
type PropertyRouter struct {
	log      *zap.Logger
	requests chan<- host.Request
	updates  chan PropertyUpdate
	watches  map[uint32]uint8
}

// NewPropertyRouter builds an idle router feeding the given request
// channel.
func NewPropertyRouter(requests chan<- host.Request, log *zap.Logger) *PropertyRouter {
	if log == nil {
		log = zap.NewNop()
	}
	return &PropertyRouter{
		log:      log,
		requests: requests,
		updates:  make(chan PropertyUpdate, 16),
		watches:  make(map[uint32]uint8),
	}
}

// Watch registers a module's property mask. A zero mask removes nothing
// but will never match.
func (r *PropertyRouter) Watch(module uint32, mask uint8) {
	r.watches[module] = mask
}

// Publish hands an update to the router without blocking; a full queue
// drops the update.
func (r *PropertyRouter) Publish(u PropertyUpdate) {
	select {
	case r.updates <- u:
	default:
		r.log.Warn("property update dropped: router queue full",
			zap.Uint8("mask", u.Mask))
	}
}

func (r *PropertyRouter) String() string {
	return "property-router"
}

// Serve routes updates until ctx is done. It satisfies suture.Service.
func (r *PropertyRouter) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u := <-r.updates:
			r.route(u)
		}
	}
}

func (r *PropertyRouter) route(u PropertyUpdate) {
	for module, mask := range r.watches {
		if mask&u.Mask == 0 {
			continue
		}
		req := host.RequestServiceData{
			Module:   module,
			Tag:      uint32(u.Mask),
			Payload:  u.Payload,
			Rerender: true,
		}
		select {
		case r.requests <- req:
		default:
			r.log.Warn("service data dropped: request channel full",
				zap.Uint32("module", module), zap.Uint8("mask", u.Mask))
		}
	}
}
