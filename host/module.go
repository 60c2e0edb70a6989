package host

import (
	"context"

	"github.com/lumenshell/widget-runtime/guestmem"
	"github.com/lumenshell/widget-runtime/register"
	"github.com/lumenshell/widget-runtime/surface"
)

// Guest is what the dispatch loop needs from a live module instance.
// engine.Instance implements it; tests substitute scripted fakes.
type Guest interface {
	Name() string
	Leases() *surface.LeaseTable
	MemoryView() guestmem.View

	Setup(ctx context.Context) (uint32, error)
	SetupCleanup(ctx context.Context) error
	View(ctx context.Context, surfaceID uint32) (uint32, error)
	RunCallback(ctx context.Context, surfaceID, callbackID uint32, data uint64) (messageID, payloadPtr uint32, err error)
	Update(ctx context.Context, messageID, payloadPtr uint32) (uint32, error)
	PushServiceData(ctx context.Context, tag uint32, payload []byte) error

	Close(ctx context.Context) error
}

// Module is one loaded widget module: the stable id assigned at discovery,
// the name its setup reported, the validated subscription table, and the
// live instance. It exists from discovery until instantiation failure or
// shutdown.
type Module struct {
	ID            uint32
	Name          string
	File          string
	Subscriptions []register.Subscription
	Guest         Guest

	// callbacks holds the current render's callback table per local
	// surface id. Replaced wholesale on every render.
	callbacks map[uint32]*CallbackTable
}

// NewModule wraps a live guest instance. Used by the manager after setup
// and by tests building fixtures directly.
func NewModule(id uint32, name, file string, subs []register.Subscription, g Guest) *Module {
	return &Module{
		ID:            id,
		Name:          name,
		File:          file,
		Subscriptions: subs,
		Guest:         g,
		callbacks:     make(map[uint32]*CallbackTable),
	}
}

// Callbacks returns the current callback table for a local surface id.
func (m *Module) Callbacks(surfaceID uint32) *CallbackTable {
	return m.callbacks[surfaceID]
}

func (m *Module) setCallbacks(surfaceID uint32, t *CallbackTable) {
	m.callbacks[surfaceID] = t
}

// WatchMask returns the union of the module's property-watch masks, 0 when
// it watches nothing.
func (m *Module) WatchMask() uint8 {
	var mask uint8
	for _, sub := range m.Subscriptions {
		if pw, ok := sub.(register.PropertyWatch); ok {
			mask |= pw.Mask
		}
	}
	return mask
}

// Timers returns the module's timer subscriptions in declaration order.
func (m *Module) Timers() []register.Timer {
	var timers []register.Timer
	for _, sub := range m.Subscriptions {
		if t, ok := sub.(register.Timer); ok {
			timers = append(timers, t)
		}
	}
	return timers
}
