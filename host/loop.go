package host

import (
	"context"

	"go.uber.org/zap"

	"github.com/lumenshell/widget-runtime/arena"
)

// LoopConfig sizes the loop's bounded channels and its render queue.
type LoopConfig struct {
	RequestBuffer    int
	EventBuffer      int
	RenderQueueBound int
}

// DefaultLoopConfig returns the capacities used when none are configured.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{RequestBuffer: 64, EventBuffer: 64, RenderQueueBound: 256}
}

// Loop is the single-goroutine dispatch loop. It drains its render queue,
// then blocks awaiting the next request; those are its only two working
// states. Guest calls run to completion on this goroutine, so a
// pathological module stalls the cycle rather than being preempted.
type Loop struct {
	log     *zap.Logger
	manager *Manager

	requests chan Request
	events   chan Event

	queue    []uint32
	queued   map[uint32]bool
	maxQueue int
}

// NewLoop creates a loop over a manager's modules.
func NewLoop(m *Manager, cfg LoopConfig, log *zap.Logger) *Loop {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.RequestBuffer <= 0 {
		cfg.RequestBuffer = DefaultLoopConfig().RequestBuffer
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultLoopConfig().EventBuffer
	}
	if cfg.RenderQueueBound <= 0 {
		cfg.RenderQueueBound = DefaultLoopConfig().RenderQueueBound
	}
	return &Loop{
		log:      log,
		manager:  m,
		requests: make(chan Request, cfg.RequestBuffer),
		events:   make(chan Event, cfg.EventBuffer),
		queued:   make(map[uint32]bool),
		maxQueue: cfg.RenderQueueBound,
	}
}

// Requests is the bounded inbound channel. Senders must not block on it
// outside their own select; services drop and log instead.
func (l *Loop) Requests() chan<- Request {
	return l.requests
}

// Events is the outbound channel consumed by the rendering collaborator.
func (l *Loop) Events() <-chan Event {
	return l.events
}

// EventSink is the send side of the event channel. The manager writes
// surface lifecycle events here during module adoption and eviction.
func (l *Loop) EventSink() chan<- Event {
	return l.events
}

// Enqueue schedules a module for rendering on the next drain. Duplicate
// entries collapse; past the queue bound new entries are dropped and the
// module renders on its next trigger instead.
func (l *Loop) Enqueue(id uint32) {
	if l.queued[id] {
		return
	}
	if len(l.queue) >= l.maxQueue {
		l.log.Warn("render dropped: queue full", zap.Uint32("module", id))
		return
	}
	l.queued[id] = true
	l.queue = append(l.queue, id)
}

// Serve runs the loop until ctx is done. It satisfies suture.Service.
func (l *Loop) Serve(ctx context.Context) error {
	for {
		l.drain(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-l.requests:
			l.handle(ctx, req)
		}
	}
}

func (l *Loop) String() string {
	return "dispatch-loop"
}

// drain renders every queued module, emptying the queue.
func (l *Loop) drain(ctx context.Context) {
	for len(l.queue) > 0 {
		id := l.queue[0]
		l.queue = l.queue[1:]
		delete(l.queued, id)

		module, ok := l.manager.ByID(id)
		if !ok {
			continue
		}
		l.render(ctx, module)
	}
}

// render calls the guest's view entry point for each used surface and
// emits the decoded trees. A failure on one surface discards that
// surface's output for this cycle only.
func (l *Loop) render(ctx context.Context, module *Module) {
	leases := module.Guest.Leases()
	for _, surfaceID := range leases.Used() {
		handlePtr, err := module.Guest.View(ctx, surfaceID)
		if err != nil {
			l.log.Warn("render skipped",
				zap.String("module", module.Name),
				zap.Uint32("surface_id", surfaceID),
				zap.Error(err))
			continue
		}

		tree, err := arena.Decode(module.Guest.MemoryView(), handlePtr)
		if err != nil {
			l.log.Warn("render discarded: tree decode failed",
				zap.String("module", module.Name),
				zap.Uint32("surface_id", surfaceID),
				zap.Error(err))
			continue
		}

		module.setCallbacks(surfaceID, BuildCallbackTable(tree))

		handle, ok := leases.Handle(surfaceID)
		if !ok {
			continue
		}

		select {
		case l.events <- EventUIUpdate{Module: module.ID, Handle: handle, Tree: tree}:
		case <-ctx.Done():
			return
		}
	}
}

func (l *Loop) handle(ctx context.Context, req Request) {
	switch r := req.(type) {
	case RequestCallback:
		l.handleCallback(ctx, r)
	case RequestServiceData:
		l.handleServiceData(ctx, r)
	case RequestSurfaceReady:
		l.handleSurfaceReady(r)
	case RequestRerender:
		if _, ok := l.manager.ByID(r.Module); ok {
			l.Enqueue(r.Module)
		}
	}
}

func (l *Loop) handleCallback(ctx context.Context, r RequestCallback) {
	module, ok := l.manager.BySurface(r.Handle)
	if !ok {
		l.log.Warn("callback dropped: unknown surface", zap.Uint64("handle", uint64(r.Handle)))
		return
	}

	surfaceID, ok := module.Guest.Leases().ID(r.Handle)
	if !ok {
		l.log.Warn("callback dropped: lease revoked",
			zap.String("module", module.Name))
		return
	}

	ref, ok := module.Callbacks(surfaceID).Lookup(r.CallbackID)
	if !ok {
		l.log.Warn("callback miss",
			zap.String("module", module.Name),
			zap.Uint32("surface_id", surfaceID),
			zap.Uint32("callback_id", r.CallbackID))
		return
	}

	messageID, payloadPtr, err := module.Guest.RunCallback(
		ctx, surfaceID, r.CallbackID, ref.PackInput(r.Value))
	if err != nil {
		l.log.Warn("callback skipped",
			zap.String("module", module.Name), zap.Error(err))
		return
	}
	if messageID == 0 && payloadPtr == 0 {
		l.log.Warn("callback miss in guest",
			zap.String("module", module.Name),
			zap.Uint32("callback_id", r.CallbackID))
		return
	}

	// the guest's update routine owns and frees the payload
	if _, err := module.Guest.Update(ctx, messageID, payloadPtr); err != nil {
		l.log.Warn("update skipped",
			zap.String("module", module.Name), zap.Error(err))
		return
	}

	l.Enqueue(module.ID)
}

func (l *Loop) handleServiceData(ctx context.Context, r RequestServiceData) {
	module, ok := l.manager.ByID(r.Module)
	if !ok {
		return
	}

	if err := module.Guest.PushServiceData(ctx, r.Tag, r.Payload); err != nil {
		l.log.Warn("service data dropped",
			zap.String("module", module.Name),
			zap.Uint32("tag", r.Tag),
			zap.Error(err))
		return
	}

	if r.Rerender {
		l.Enqueue(module.ID)
	}
}

func (l *Loop) handleSurfaceReady(r RequestSurfaceReady) {
	module, ok := l.manager.BySurface(r.Handle)
	if !ok {
		l.log.Warn("surface ready for unknown handle", zap.Uint64("handle", uint64(r.Handle)))
		return
	}

	surfaceID, ok := module.Guest.Leases().ID(r.Handle)
	if !ok {
		return
	}

	module.Guest.Leases().MarkUsed(surfaceID)
	l.Enqueue(module.ID)
}
