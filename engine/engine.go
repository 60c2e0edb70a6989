// Package engine runs guest widget modules on the wazero runtime.
//
// Engine owns one wazero.Runtime shared by all modules. The single host
// import guests use, env.lease_surface_id, is instantiated once and resolves
// the calling instance's lease table through the call context, so each
// module only ever sees its own ids.
package engine

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/lumenshell/widget-runtime/errors"
	"github.com/lumenshell/widget-runtime/surface"
)

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32
}

// Engine compiles and instantiates guest modules.
type Engine struct {
	runtime wazero.Runtime
}

// NewEngine creates an engine with default configuration.
func NewEngine(ctx context.Context) (*Engine, error) {
	return NewEngineWithConfig(ctx, nil)
}

// NewEngineWithConfig creates an engine with custom configuration.
func NewEngineWithConfig(ctx context.Context, cfg *Config) (*Engine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}

	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	e := &Engine{runtime: runtime}

	if err := e.instantiateEnv(ctx); err != nil {
		runtime.Close(ctx)
		return nil, err
	}
	return e, nil
}

// Close releases the runtime and every instance created from it.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// Load compiles a guest module from raw bytes.
func (e *Engine) Load(ctx context.Context, name string, wasmBytes []byte) (*Module, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, errors.Load("compile failed", err)
	}
	return &Module{engine: e, name: name, compiled: compiled}, nil
}

// Module is a compiled guest module, ready to instantiate.
type Module struct {
	engine   *Engine
	name     string
	compiled wazero.CompiledModule
}

// Name returns the module's file-derived name.
func (m *Module) Name() string {
	return m.name
}

// Close releases the compiled module.
func (m *Module) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}

type leaseTableKey struct{}

// withLeases attaches an instance's lease table to the call context so
// env.lease_surface_id can reach it.
func withLeases(ctx context.Context, lt *surface.LeaseTable) context.Context {
	return context.WithValue(ctx, leaseTableKey{}, lt)
}

func (e *Engine) instantiateEnv(ctx context.Context) error {
	_, err := e.runtime.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithGoFunction(api.GoFunc(leaseSurfaceID),
			[]api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}).
		Export("lease_surface_id").
		Instantiate(ctx)
	if err != nil {
		return errors.Load("instantiate env host module", err)
	}
	return nil
}

// leaseSurfaceID backs the env.lease_surface_id import. Any failure mode
// answers with the sentinel 0, which guests already treat as "no id".
func leaseSurfaceID(ctx context.Context, stack []uint64) {
	kind := surface.Kind(api.DecodeU32(stack[0]))

	lt, ok := ctx.Value(leaseTableKey{}).(*surface.LeaseTable)
	if !ok {
		Logger().Warn("lease_surface_id called without a lease table")
		stack[0] = uint64(surface.Sentinel)
		return
	}

	if kind != surface.KindLayer {
		if kind != surface.KindNone {
			Logger().Warn("lease_surface_id: unknown surface kind", zap.Uint32("kind", uint32(kind)))
		}
		stack[0] = uint64(surface.Sentinel)
		return
	}

	id, _ := lt.Lease()
	if id == surface.Sentinel {
		Logger().Warn("lease_surface_id: id space exhausted")
	}
	stack[0] = uint64(id)
}
