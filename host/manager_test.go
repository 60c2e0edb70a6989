package host

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/lumenshell/widget-runtime/register"
	"github.com/lumenshell/widget-runtime/surface"
)

func testDescriptor(id uint32) surface.Descriptor {
	return surface.Descriptor{
		ID:     id,
		Layer:  surface.LayerTop,
		Anchor: surface.AnchorTop,
		Limits: surface.Limits{MinWidth: 10, MaxWidth: 100, MinHeight: 10, MaxHeight: 100},
	}
}

func TestAdopt(t *testing.T) {
	g := newFakeGuest("clock")
	id, _ := g.leases.Lease()
	g.writeSetup("clock", []surface.Descriptor{testDescriptor(id)}, []register.Subscription{
		register.Timer{IntervalMS: 1000},
		register.PropertyWatch{Mask: 0b101},
	})

	m := NewManager(nil, nil)
	events := make(chan Event, 8)

	if err := m.Adopt(context.Background(), "clock.wasm", g, events); err != nil {
		t.Fatalf("adopt failed: %v", err)
	}

	if g.cleanupCalls != 1 {
		t.Errorf("setup_cleanup called %d times, want 1", g.cleanupCalls)
	}

	mods := m.Modules()
	if len(mods) != 1 {
		t.Fatalf("got %d modules, want 1", len(mods))
	}
	mod := mods[0]
	if mod.Name != "clock" || mod.File != "clock.wasm" {
		t.Errorf("module identity = %q/%q", mod.Name, mod.File)
	}
	if len(mod.Subscriptions) != 2 {
		t.Errorf("got %d subscriptions, want 2", len(mod.Subscriptions))
	}
	if mod.WatchMask() != 0b101 {
		t.Errorf("watch mask = %#b, want 0b101", mod.WatchMask())
	}
	if timers := mod.Timers(); len(timers) != 1 || timers[0].IntervalMS != 1000 {
		t.Errorf("timers = %#v", mod.Timers())
	}

	handle, _ := g.leases.Handle(id)
	if owner, ok := m.BySurface(handle); !ok || owner != mod {
		t.Error("surface handle not mapped to module")
	}

	got := collectEvents(events)
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	create, ok := got[0].(EventCreateSurface)
	if !ok || create.Handle != handle || create.Descriptor.ID != id {
		t.Errorf("event 0 = %#v", got[0])
	}
	subs, ok := got[1].(EventRegisterSubscriptions)
	if !ok || subs.Name != "clock" || len(subs.Subscriptions) != 2 {
		t.Errorf("event 1 = %#v", got[1])
	}
}

func TestAdoptUnleasedSurfaceSkipped(t *testing.T) {
	g := newFakeGuest("rogue")
	// descriptor names id 9 which was never leased
	g.writeSetup("rogue", []surface.Descriptor{testDescriptor(9)}, nil)

	m := NewManager(nil, nil)
	events := make(chan Event, 8)

	if err := m.Adopt(context.Background(), "rogue.wasm", g, events); err != nil {
		t.Fatalf("adopt failed: %v", err)
	}

	for _, e := range collectEvents(events) {
		if _, ok := e.(EventCreateSurface); ok {
			t.Error("no surface should be created for an unleased id")
		}
	}
}

func TestAdoptDuplicateWatchExcludesModule(t *testing.T) {
	// the guest-side encoder refuses duplicate watches, so build the
	// table by hand: a 16 byte header and two property-watch entries
	table := make([]byte, 16+16*2)
	binary.BigEndian.PutUint32(table[0x00:0x04], uint32(len(table)))
	binary.BigEndian.PutUint16(table[0x04:0x06], register.FormatVersion)
	binary.BigEndian.PutUint16(table[0x06:0x08], 2)
	for i := 0; i < 2; i++ {
		entry := table[16+16*i:]
		binary.BigEndian.PutUint16(entry[0x00:0x02], register.TagPropertyWatch)
		binary.BigEndian.PutUint32(entry[0x02:0x06], uint32(1<<i))
	}

	g := newFakeGuest("dup")
	g.writeSetupRaw("dup", nil, table)

	m := NewManager(nil, nil)
	events := make(chan Event, 8)

	if err := m.Adopt(context.Background(), "dup.wasm", g, events); err == nil {
		t.Fatal("duplicate watches must exclude the module")
	}
	if len(m.Modules()) != 0 {
		t.Error("violating module must not be registered")
	}
}

func TestAdoptSetupFailure(t *testing.T) {
	g := newFakeGuest("broken")
	g.writeSetup("broken", nil, nil)
	g.setupErr = context.DeadlineExceeded

	m := NewManager(nil, nil)
	events := make(chan Event, 8)

	if err := m.Adopt(context.Background(), "broken.wasm", g, events); err == nil {
		t.Fatal("adopt must fail when setup fails")
	}
	if len(m.Modules()) != 0 {
		t.Error("failed module must not be registered")
	}
	if g.cleanupCalls != 0 {
		t.Error("setup_cleanup must not run after a failed setup")
	}
}

func TestAdoptBadSetupPointer(t *testing.T) {
	g := newFakeGuest("garbage")
	g.setupPtr = 0xFFFF_0000

	m := NewManager(nil, nil)
	events := make(chan Event, 8)

	if err := m.Adopt(context.Background(), "garbage.wasm", g, events); err == nil {
		t.Fatal("adopt must fail on an out-of-bounds setup handle")
	}
}

func TestEvict(t *testing.T) {
	g := newFakeGuest("gone")
	id, _ := g.leases.Lease()
	g.writeSetup("gone", []surface.Descriptor{testDescriptor(id)}, nil)

	m := NewManager(nil, nil)
	events := make(chan Event, 8)
	if err := m.Adopt(context.Background(), "gone.wasm", g, events); err != nil {
		t.Fatalf("adopt failed: %v", err)
	}
	collectEvents(events)

	mod := m.Modules()[0]
	m.Evict(context.Background(), mod.ID, events)

	if !g.closed {
		t.Error("evicted instance must be closed")
	}
	if len(m.Modules()) != 0 {
		t.Error("evicted module still listed")
	}
	handle, _ := g.leases.Handle(id)
	if _, ok := m.BySurface(handle); ok {
		t.Error("evicted module's surface still mapped")
	}

	got := collectEvents(events)
	if len(got) != 1 {
		t.Fatalf("got %d events, want 1 destroy", len(got))
	}
	if _, ok := got[0].(EventDestroySurface); !ok {
		t.Errorf("event = %#v, want EventDestroySurface", got[0])
	}
}
