package host

import (
	"context"
	"encoding/binary"

	"github.com/lumenshell/widget-runtime/errors"
	"github.com/lumenshell/widget-runtime/guestmem"
	"github.com/lumenshell/widget-runtime/register"
	"github.com/lumenshell/widget-runtime/surface"
)

// fakeGuest scripts the guest side of the ABI over a guestmem.Buffer, so
// manager and loop tests exercise the real decode paths without a wasm
// runtime.
type fakeGuest struct {
	name   string
	leases *surface.LeaseTable
	buf    *guestmem.Buffer

	setupPtr uint32
	setupErr error

	cleanupErr   error
	cleanupCalls int

	viewPtrs map[uint32]uint32
	viewErr  error

	runCallback func(surfaceID, callbackID uint32, data uint64) (uint32, uint32, error)

	updates     []updateCall
	updateErr   error
	serviceData []serviceCall
	serviceErr  error

	closed bool
}

type updateCall struct {
	messageID  uint32
	payloadPtr uint32
}

type serviceCall struct {
	tag     uint32
	payload []byte
}

func newFakeGuest(name string) *fakeGuest {
	return &fakeGuest{
		name:     name,
		leases:   surface.NewLeaseTable(),
		buf:      guestmem.NewBuffer(),
		viewPtrs: make(map[uint32]uint32),
	}
}

func (g *fakeGuest) Name() string                { return g.name }
func (g *fakeGuest) Leases() *surface.LeaseTable { return g.leases }
func (g *fakeGuest) MemoryView() guestmem.View   { return g.buf.View() }
func (g *fakeGuest) Close(context.Context) error { g.closed = true; return nil }

func (g *fakeGuest) Setup(context.Context) (uint32, error) {
	return g.setupPtr, g.setupErr
}

func (g *fakeGuest) SetupCleanup(context.Context) error {
	g.cleanupCalls++
	return g.cleanupErr
}

func (g *fakeGuest) View(_ context.Context, surfaceID uint32) (uint32, error) {
	if g.viewErr != nil {
		return 0, g.viewErr
	}
	ptr, ok := g.viewPtrs[surfaceID]
	if !ok {
		return 0, errors.NotFound(errors.PhaseRender, "surface", "unknown")
	}
	return ptr, nil
}

func (g *fakeGuest) RunCallback(_ context.Context, surfaceID, callbackID uint32, data uint64) (uint32, uint32, error) {
	if g.runCallback == nil {
		return 0, 0, nil
	}
	return g.runCallback(surfaceID, callbackID, data)
}

func (g *fakeGuest) Update(_ context.Context, messageID, payloadPtr uint32) (uint32, error) {
	g.updates = append(g.updates, updateCall{messageID, payloadPtr})
	return 1, g.updateErr
}

func (g *fakeGuest) PushServiceData(_ context.Context, tag uint32, payload []byte) error {
	if g.serviceErr != nil {
		return g.serviceErr
	}
	g.serviceData = append(g.serviceData, serviceCall{tag, append([]byte(nil), payload...)})
	return nil
}

// writeSetup lays out a complete setup handle in the fake's memory: name,
// contiguous surface descriptor records, register table, then the handle.
func (g *fakeGuest) writeSetup(name string, descriptors []surface.Descriptor, subs []register.Subscription) {
	table, err := register.Encode(subs)
	if err != nil {
		panic(err)
	}
	g.writeSetupRaw(name, descriptors, table)
}

func (g *fakeGuest) writeSetupRaw(name string, descriptors []surface.Descriptor, table []byte) {
	namePtr := g.buf.Append([]byte(name))

	// EncodeDescriptor interleaves indirect blocks with records, so copy
	// each record into one contiguous run the way a guest's descriptor
	// array is laid out
	records := make([][]byte, 0, len(descriptors))
	for _, d := range descriptors {
		ptr := surface.EncodeDescriptor(g.buf, d)
		raw, err := g.buf.View().Bytes(ptr, surface.DescriptorSize)
		if err != nil {
			panic(err)
		}
		records = append(records, append([]byte(nil), raw...))
	}
	surfacesPtr := uint32(0)
	for i, rec := range records {
		ptr := g.buf.Append(rec)
		if i == 0 {
			surfacesPtr = ptr
		}
	}

	registerPtr := g.buf.Append(table)

	handle := make([]byte, setupHandleSize)
	binary.LittleEndian.PutUint32(handle[0:4], namePtr)
	binary.LittleEndian.PutUint32(handle[4:8], uint32(len(name)))
	binary.LittleEndian.PutUint32(handle[8:12], surfacesPtr)
	binary.LittleEndian.PutUint32(handle[12:16], uint32(len(descriptors)))
	binary.LittleEndian.PutUint32(handle[16:20], registerPtr)
	g.setupPtr = g.buf.Append(handle)
}

// collectEvents drains whatever is buffered on an event channel.
func collectEvents(ch chan Event) []Event {
	var events []Event
	for {
		select {
		case e := <-ch:
			events = append(events, e)
		default:
			return events
		}
	}
}
