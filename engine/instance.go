package engine

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	widgetruntime "github.com/lumenshell/widget-runtime"
	"github.com/lumenshell/widget-runtime/errors"
	"github.com/lumenshell/widget-runtime/guestmem"
	"github.com/lumenshell/widget-runtime/surface"
)

// Guest export names of the widget ABI.
const (
	exportSetup        = "setup"
	exportSetupCleanup = "setup_cleanup"
	exportView         = "view"
	exportRunCallback  = "run_callback"
	exportUpdate       = "update"
	exportServiceData  = "service_data"
	exportAlloc        = "alloc"
	exportFree         = "free"
)

// requiredExports must all be present with the right signatures; a module
// missing any of them is rejected at instantiation.
var requiredExports = []string{
	exportSetup, exportSetupCleanup, exportView, exportRunCallback, exportUpdate,
}

// Instance is one live guest module with its own linear memory and surface
// lease table.
//
// Entry points run to completion; the host never calls into the same
// instance concurrently, and reads its memory only between calls.
type Instance struct {
	module   *Module
	instance api.Module
	memory   *Memory
	leases   *surface.LeaseTable

	setup        api.Function
	setupCleanup api.Function
	view         api.Function
	runCallback  api.Function
	update       api.Function
	serviceData  api.Function

	alloc *guestAllocator

	stackBuf []uint64
}

// Instantiate creates a live instance of the module with a fresh lease
// table.
func (m *Module) Instantiate(ctx context.Context) (*Instance, error) {
	leases := surface.NewLeaseTable()
	ctx = withLeases(ctx, leases)

	modConfig := wazero.NewModuleConfig().WithName("")
	mod, err := m.engine.runtime.InstantiateModule(ctx, m.compiled, modConfig)
	if err != nil {
		return nil, errors.Instantiation(m.name, err)
	}

	inst := &Instance{
		module:   m,
		instance: mod,
		leases:   leases,
		stackBuf: make([]uint64, 8),
	}

	mem := mod.Memory()
	if mem == nil {
		mod.Close(ctx)
		return nil, errors.MissingExport(m.name, "memory")
	}
	inst.memory = &Memory{mem: mem}

	for _, name := range requiredExports {
		if mod.ExportedFunction(name) == nil {
			mod.Close(ctx)
			return nil, errors.MissingExport(m.name, name)
		}
	}

	inst.setup = mod.ExportedFunction(exportSetup)
	inst.setupCleanup = mod.ExportedFunction(exportSetupCleanup)
	inst.view = mod.ExportedFunction(exportView)
	inst.runCallback = mod.ExportedFunction(exportRunCallback)
	inst.update = mod.ExportedFunction(exportUpdate)
	inst.serviceData = mod.ExportedFunction(exportServiceData)

	allocFn := mod.ExportedFunction(exportAlloc)
	freeFn := mod.ExportedFunction(exportFree)
	if allocFn != nil {
		inst.alloc = &guestAllocator{
			name:    m.name,
			allocFn: allocFn,
			freeFn:  freeFn,
		}
	}

	return inst, nil
}

// Name returns the owning module's name.
func (i *Instance) Name() string {
	return i.module.name
}

// Leases returns the instance's surface lease table.
func (i *Instance) Leases() *surface.LeaseTable {
	return i.leases
}

// Memory returns write-capable access to the instance's linear memory.
func (i *Instance) Memory() widgetruntime.Memory {
	return i.memory
}

// MemoryView snapshots the instance's linear memory for decoding. Valid
// only until the next call into the guest; callers decode before calling
// back in.
func (i *Instance) MemoryView() guestmem.View {
	return guestmem.NewView(i.memory.bytes())
}

// Allocator returns the guest allocator, or nil when the module exports
// no alloc function.
func (i *Instance) Allocator() widgetruntime.Allocator {
	if i.alloc == nil {
		return nil
	}
	return i.alloc
}

// Setup runs the guest's setup entry point and returns the pointer to its
// setup handle.
func (i *Instance) Setup(ctx context.Context) (uint32, error) {
	out, err := i.call(ctx, i.setup)
	if err != nil {
		return 0, errors.New(errors.PhaseSetup, errors.KindInvalidData).
			Module(i.module.name).Cause(err).Detail("setup call failed").Build()
	}
	return api.DecodeU32(out), nil
}

// SetupCleanup runs the guest's idempotent teardown of setup allocations.
func (i *Instance) SetupCleanup(ctx context.Context) error {
	_, err := i.call(ctx, i.setupCleanup)
	if err != nil {
		return errors.New(errors.PhaseSetup, errors.KindInvalidData).
			Module(i.module.name).Cause(err).Detail("setup_cleanup call failed").Build()
	}
	return nil
}

// View runs the guest's render entry point for one surface and returns
// the pointer to the render handle.
func (i *Instance) View(ctx context.Context, surfaceID uint32) (uint32, error) {
	out, err := i.call(ctx, i.view, uint64(surfaceID))
	if err != nil {
		return 0, errors.New(errors.PhaseRender, errors.KindInvalidData).
			Module(i.module.name).Cause(err).Detail("view call failed").Build()
	}
	return api.DecodeU32(out), nil
}

// RunCallback invokes one callback in the guest. The returned u64 packs a
// message id in the high half and a payload pointer in the low half; both
// zero means the guest had no matching callback.
func (i *Instance) RunCallback(ctx context.Context, surfaceID, callbackID uint32, data uint64) (messageID, payloadPtr uint32, err error) {
	out, err := i.call(ctx, i.runCallback, uint64(surfaceID), uint64(callbackID), data)
	if err != nil {
		return 0, 0, errors.New(errors.PhaseCallback, errors.KindInvalidData).
			Module(i.module.name).Cause(err).Detail("run_callback call failed").Build()
	}
	return uint32(out >> 32), uint32(out), nil
}

// Update delivers a callback's message to the guest's update routine. The
// guest owns and frees the payload. The return value is nonzero when the
// guest wants a re-render.
func (i *Instance) Update(ctx context.Context, messageID, payloadPtr uint32) (uint32, error) {
	out, err := i.call(ctx, i.update, uint64(messageID), uint64(payloadPtr))
	if err != nil {
		return 0, errors.New(errors.PhaseCallback, errors.KindInvalidData).
			Module(i.module.name).Cause(err).Detail("update call failed").Build()
	}
	return api.DecodeU32(out), nil
}

// PushServiceData copies a service payload into guest memory and hands it
// to the optional service_data export. A non-empty payload additionally
// needs the guest allocator; empty notifications go through without one.
func (i *Instance) PushServiceData(ctx context.Context, tag uint32, payload []byte) error {
	if i.serviceData == nil {
		return errors.MissingExport(i.module.name, exportServiceData)
	}

	ctx = withLeases(ctx, i.leases)

	ptr := uint32(0)
	size := uint32(len(payload))
	if size > 0 {
		if i.alloc == nil {
			return errors.MissingExport(i.module.name, exportAlloc)
		}
		var err error
		ptr, err = i.alloc.allocCtx(ctx, size)
		if err != nil {
			return err
		}
		if err := i.memory.Write(ptr, payload); err != nil {
			i.alloc.freeCtx(ctx, ptr, size)
			return err
		}
	}

	if _, err := i.serviceData.Call(ctx, uint64(tag), uint64(ptr), uint64(size)); err != nil {
		return errors.New(errors.PhaseDispatch, errors.KindInvalidData).
			Module(i.module.name).Cause(err).Detail("service_data call failed").Build()
	}
	return nil
}

// Close tears the instance down. The lease table survives so revoked ids
// stay burned for the module's lifetime bookkeeping.
func (i *Instance) Close(ctx context.Context) error {
	if i.instance == nil {
		return nil
	}
	err := i.instance.Close(ctx)
	i.instance = nil
	i.memory = nil
	i.alloc = nil
	return err
}

func (i *Instance) call(ctx context.Context, fn api.Function, params ...uint64) (uint64, error) {
	ctx = withLeases(ctx, i.leases)

	stack := i.stackBuf
	for idx := range stack {
		stack[idx] = 0
	}
	copy(stack, params)
	if err := fn.CallWithStack(ctx, stack); err != nil {
		return 0, err
	}
	return stack[0], nil
}

// guestAllocator implements widgetruntime.Allocator over the guest's
// exported alloc/free pair.
type guestAllocator struct {
	name    string
	allocFn api.Function
	freeFn  api.Function
}

func (a *guestAllocator) Alloc(size uint32) (uint32, error) {
	return a.allocCtx(context.Background(), size)
}

func (a *guestAllocator) Free(ptr, size uint32) {
	a.freeCtx(context.Background(), ptr, size)
}

func (a *guestAllocator) allocCtx(ctx context.Context, size uint32) (uint32, error) {
	out, err := a.allocFn.Call(ctx, uint64(size))
	if err != nil {
		return 0, errors.New(errors.PhaseDispatch, errors.KindExhausted).
			Module(a.name).Cause(err).Detail("guest alloc failed").Build()
	}
	ptr := api.DecodeU32(out[0])
	if ptr == 0 {
		return 0, errors.Exhausted(errors.PhaseDispatch, "guest memory")
	}
	return ptr, nil
}

func (a *guestAllocator) freeCtx(ctx context.Context, ptr, size uint32) {
	if a.freeFn == nil || ptr == 0 {
		return
	}
	if _, err := a.freeFn.Call(ctx, uint64(ptr), uint64(size)); err != nil {
		Logger().Warn("guest free failed", zap.String("module", a.name), zap.Error(err))
	}
}
