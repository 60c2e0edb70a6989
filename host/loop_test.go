package host

import (
	"context"
	"testing"

	"github.com/lumenshell/widget-runtime/arena"
	"github.com/lumenshell/widget-runtime/surface"
)

// adoptFake runs a fake guest through the manager and returns the loop
// wired over it, together with the module and its surface handle.
func adoptFake(t *testing.T, g *fakeGuest, surfaceID uint32) (*Loop, *Module, surface.Handle) {
	t.Helper()

	m := NewManager(nil, nil)
	events := make(chan Event, 16)
	if err := m.Adopt(context.Background(), g.name+".wasm", g, events); err != nil {
		t.Fatalf("adopt failed: %v", err)
	}

	loop := NewLoop(m, LoopConfig{}, nil)
	module := m.Modules()[0]
	handle, ok := g.leases.Handle(surfaceID)
	if !ok {
		t.Fatalf("surface %d not leased", surfaceID)
	}
	return loop, module, handle
}

func writeTree(t *testing.T, g *fakeGuest, surfaceID uint32, tree *arena.Node) {
	t.Helper()
	ptr, err := arena.Encode(g.buf, tree)
	if err != nil {
		t.Fatalf("encode tree: %v", err)
	}
	g.viewPtrs[surfaceID] = ptr
}

func buttonTree(callbackID uint32) *arena.Node {
	return &arena.Node{Tag: arena.TagColumn, Children: []*arena.Node{
		{Tag: arena.TagButton, CallbackID: callbackID, Children: []*arena.Node{
			{Tag: arena.TagText, Text: "press"},
		}},
	}}
}

func TestSurfaceReadyTriggersRender(t *testing.T) {
	g := newFakeGuest("panel")
	id, _ := g.leases.Lease()
	g.writeSetup("panel", []surface.Descriptor{testDescriptor(id)}, nil)
	writeTree(t, g, id, buttonTree(1))

	loop, module, handle := adoptFake(t, g, id)
	ctx := context.Background()

	// before confirmation the surface is not rendered
	loop.Enqueue(module.ID)
	loop.drain(ctx)
	if events := collectEvents(loop.events); len(events) != 0 {
		t.Fatalf("unconfirmed surface rendered: %v", events)
	}

	loop.handle(ctx, RequestSurfaceReady{Handle: handle})
	loop.drain(ctx)

	events := collectEvents(loop.events)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	update, ok := events[0].(EventUIUpdate)
	if !ok {
		t.Fatalf("event = %#v, want EventUIUpdate", events[0])
	}
	if update.Handle != handle || update.Module != module.ID {
		t.Errorf("update addressed to %v/%d", update.Handle, update.Module)
	}
	if update.Tree == nil || update.Tree.Tag != arena.TagColumn {
		t.Errorf("tree = %#v", update.Tree)
	}
	if module.Callbacks(id).Len() != 1 {
		t.Errorf("callback table has %d entries, want 1", module.Callbacks(id).Len())
	}
}

func TestRenderFailureSkipsCycle(t *testing.T) {
	g := newFakeGuest("flaky")
	id, _ := g.leases.Lease()
	g.writeSetup("flaky", []surface.Descriptor{testDescriptor(id)}, nil)
	// view returns a pointer into nothing: decode fails, surface skipped
	g.viewPtrs[id] = 0xFFFF_0000

	loop, module, handle := adoptFake(t, g, id)
	ctx := context.Background()

	loop.handle(ctx, RequestSurfaceReady{Handle: handle})
	loop.drain(ctx)

	if events := collectEvents(loop.events); len(events) != 0 {
		t.Errorf("failed render emitted %v", events)
	}
	// the module is skipped, not evicted
	if _, ok := loop.manager.ByID(module.ID); !ok {
		t.Error("module evicted after a render failure")
	}

	// a later good render recovers
	writeTree(t, g, id, buttonTree(1))
	loop.handle(ctx, RequestRerender{Module: module.ID})
	loop.drain(ctx)
	if events := collectEvents(loop.events); len(events) != 1 {
		t.Errorf("recovered render emitted %d events, want 1", len(events))
	}
}

func TestCallbackRoundTrip(t *testing.T) {
	g := newFakeGuest("mixer")
	id, _ := g.leases.Lease()
	g.writeSetup("mixer", []surface.Descriptor{testDescriptor(id)}, nil)

	slider := &arena.Node{Tag: arena.TagSlider, CallbackID: 1, Slider: arena.SliderData{
		Kind: arena.NumberI32, MaxBits: 100, ValueBits: 40,
	}}
	writeTree(t, g, id, &arena.Node{Tag: arena.TagRow, Children: []*arena.Node{slider}})

	var gotData uint64
	g.runCallback = func(surfaceID, callbackID uint32, data uint64) (uint32, uint32, error) {
		gotData = data
		return 7, 0x1000, nil
	}

	loop, _, handle := adoptFake(t, g, id)
	ctx := context.Background()

	loop.handle(ctx, RequestSurfaceReady{Handle: handle})
	loop.drain(ctx)
	collectEvents(loop.events)

	loop.handle(ctx, RequestCallback{Handle: handle, CallbackID: 1, Value: 63})

	if gotData != 63 {
		t.Errorf("callback input = %d, want 63 as i32 bits", gotData)
	}
	if len(g.updates) != 1 || g.updates[0] != (updateCall{messageID: 7, payloadPtr: 0x1000}) {
		t.Errorf("updates = %#v", g.updates)
	}

	// the callback re-enqueued the module for render
	loop.drain(ctx)
	if events := collectEvents(loop.events); len(events) != 1 {
		t.Errorf("re-render emitted %d events, want 1", len(events))
	}
}

func TestCallbackMisses(t *testing.T) {
	g := newFakeGuest("quiet")
	id, _ := g.leases.Lease()
	g.writeSetup("quiet", []surface.Descriptor{testDescriptor(id)}, nil)
	writeTree(t, g, id, buttonTree(1))

	called := 0
	g.runCallback = func(uint32, uint32, uint64) (uint32, uint32, error) {
		called++
		return 0, 0, nil
	}

	loop, _, handle := adoptFake(t, g, id)
	ctx := context.Background()

	loop.handle(ctx, RequestSurfaceReady{Handle: handle})
	loop.drain(ctx)
	collectEvents(loop.events)

	// id 0 is reserved, id 9 was never in the tree: neither reaches the guest
	loop.handle(ctx, RequestCallback{Handle: handle, CallbackID: 0})
	loop.handle(ctx, RequestCallback{Handle: handle, CallbackID: 9})
	if called != 0 {
		t.Errorf("guest called %d times for missing ids", called)
	}

	// a valid id whose guest answers (0,0) is logged and dropped
	loop.handle(ctx, RequestCallback{Handle: handle, CallbackID: 1})
	if called != 1 {
		t.Errorf("guest called %d times, want 1", called)
	}
	if len(g.updates) != 0 {
		t.Errorf("update ran on a (0,0) answer: %#v", g.updates)
	}
	loop.drain(ctx)
	if events := collectEvents(loop.events); len(events) != 0 {
		t.Errorf("(0,0) answer still re-rendered: %v", events)
	}
}

func TestServiceDataPush(t *testing.T) {
	g := newFakeGuest("feed")
	id, _ := g.leases.Lease()
	g.writeSetup("feed", []surface.Descriptor{testDescriptor(id)}, nil)
	writeTree(t, g, id, buttonTree(1))

	loop, module, handle := adoptFake(t, g, id)
	ctx := context.Background()

	loop.handle(ctx, RequestSurfaceReady{Handle: handle})
	loop.drain(ctx)
	collectEvents(loop.events)

	loop.handle(ctx, RequestServiceData{
		Module: module.ID, Tag: 4, Payload: []byte("sink"), Rerender: true,
	})

	if len(g.serviceData) != 1 || g.serviceData[0].tag != 4 || string(g.serviceData[0].payload) != "sink" {
		t.Errorf("service data = %#v", g.serviceData)
	}
	loop.drain(ctx)
	if events := collectEvents(loop.events); len(events) != 1 {
		t.Errorf("rerender after service data emitted %d events, want 1", len(events))
	}
}

func TestEnqueueCollapsesDuplicates(t *testing.T) {
	g := newFakeGuest("dup")
	id, _ := g.leases.Lease()
	g.writeSetup("dup", []surface.Descriptor{testDescriptor(id)}, nil)
	writeTree(t, g, id, buttonTree(1))

	loop, module, handle := adoptFake(t, g, id)
	ctx := context.Background()

	loop.handle(ctx, RequestSurfaceReady{Handle: handle})
	loop.drain(ctx)
	collectEvents(loop.events)

	loop.Enqueue(module.ID)
	loop.Enqueue(module.ID)
	loop.Enqueue(module.ID)
	loop.drain(ctx)

	if events := collectEvents(loop.events); len(events) != 1 {
		t.Errorf("duplicate queue entries rendered %d times, want 1", len(events))
	}
}

func TestEnqueueBounded(t *testing.T) {
	m := NewManager(nil, nil)
	loop := NewLoop(m, LoopConfig{RenderQueueBound: 2}, nil)

	loop.Enqueue(1)
	loop.Enqueue(2)
	loop.Enqueue(3)

	if len(loop.queue) != 2 {
		t.Errorf("queue length = %d, want 2", len(loop.queue))
	}
	if loop.queued[3] {
		t.Error("entry past the bound should be dropped, not queued")
	}

	// dropping is not permanent; a later trigger re-enqueues
	loop.queue = loop.queue[:0]
	loop.queued = map[uint32]bool{}
	loop.Enqueue(3)
	if !loop.queued[3] {
		t.Error("module could not be enqueued after queue drained")
	}
}
