package host

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/lumenshell/widget-runtime/engine"
	"github.com/lumenshell/widget-runtime/register"
	"github.com/lumenshell/widget-runtime/surface"
)

// Manager discovers, loads and owns widget modules. Each module carries
// its own explicit state; nothing module-scoped is global.
type Manager struct {
	log    *zap.Logger
	engine *engine.Engine

	modules   []*Module
	byID      map[uint32]*Module
	bySurface map[surface.Handle]*Module

	nextID uint32
}

// NewManager creates a manager on top of a running engine.
func NewManager(e *engine.Engine, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		log:       log,
		engine:    e,
		byID:      make(map[uint32]*Module),
		bySurface: make(map[surface.Handle]*Module),
	}
}

// Discover lists the .wasm files under dir in name order. A missing
// directory is created empty rather than treated as an error.
func (m *Manager) Discover(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".wasm") {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// LoadAll loads every module path, running each through the setup
// protocol. A module that fails any setup step is logged and skipped; the
// rest keep loading. Surface-creation and subscription events are sent to
// events as they arise.
func (m *Manager) LoadAll(ctx context.Context, paths []string, events chan<- Event) {
	for _, path := range paths {
		if err := m.loadOne(ctx, path, events); err != nil {
			m.log.Error("module skipped",
				zap.String("file", filepath.Base(path)), zap.Error(err))
		}
	}
}

func (m *Manager) loadOne(ctx context.Context, path string, events chan<- Event) error {
	file := filepath.Base(path)

	wasmBytes, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	mod, err := m.engine.Load(ctx, file, wasmBytes)
	if err != nil {
		return err
	}

	inst, err := mod.Instantiate(ctx)
	if err != nil {
		mod.Close(ctx)
		return err
	}

	if err := m.Adopt(ctx, file, inst, events); err != nil {
		inst.Close(ctx)
		mod.Close(ctx)
		return err
	}
	return nil
}

// Adopt runs the setup protocol over a live guest and registers the
// resulting module. LoadAll uses it for discovered files; embedders can
// call it directly with their own guests.
func (m *Manager) Adopt(ctx context.Context, file string, g Guest, events chan<- Event) error {
	setupPtr, err := g.Setup(ctx)
	if err != nil {
		return err
	}

	out, err := decodeSetupOutput(g.MemoryView(), setupPtr)
	if err != nil {
		return err
	}

	// a table that violates the duplicate policy excludes the module
	if err := register.ValidatePolicy(out.Subscriptions); err != nil {
		return err
	}

	id := m.nextID
	m.nextID++
	module := NewModule(id, out.Name, file, out.Subscriptions, g)

	leases := g.Leases()
	for _, d := range out.Descriptors {
		handle, ok := leases.Handle(d.ID)
		if !ok {
			m.log.Warn("surface skipped: id was not leased",
				zap.String("module", out.Name), zap.Uint32("surface_id", d.ID))
			continue
		}
		m.bySurface[handle] = module
		events <- EventCreateSurface{Module: id, Handle: handle, Descriptor: d}
	}

	// setup allocations are host-owned until here; hand them back
	if err := g.SetupCleanup(ctx); err != nil {
		for _, d := range out.Descriptors {
			if handle, ok := leases.Handle(d.ID); ok {
				delete(m.bySurface, handle)
				events <- EventDestroySurface{Module: id, Handle: handle}
			}
		}
		return err
	}

	m.modules = append(m.modules, module)
	m.byID[id] = module

	events <- EventRegisterSubscriptions{
		Module:        id,
		Name:          out.Name,
		Subscriptions: out.Subscriptions,
	}

	m.log.Info("module loaded",
		zap.String("module", out.Name),
		zap.String("file", file),
		zap.Int("surfaces", len(out.Descriptors)),
		zap.Int("subscriptions", len(out.Subscriptions)))
	return nil
}

// Modules returns the loaded modules in discovery order.
func (m *Manager) Modules() []*Module {
	return m.modules
}

// ByID resolves a module id.
func (m *Manager) ByID(id uint32) (*Module, bool) {
	mod, ok := m.byID[id]
	return mod, ok
}

// BySurface resolves the module owning a surface handle.
func (m *Manager) BySurface(h surface.Handle) (*Module, bool) {
	mod, ok := m.bySurface[h]
	return mod, ok
}

// Evict tears a module down permanently and forgets its surfaces. Only
// unrecoverable failures warrant this; transient call failures do not.
func (m *Manager) Evict(ctx context.Context, id uint32, events chan<- Event) {
	module, ok := m.byID[id]
	if !ok {
		return
	}

	for h, owner := range m.bySurface {
		if owner == module {
			delete(m.bySurface, h)
			events <- EventDestroySurface{Module: id, Handle: h}
		}
	}

	if err := module.Guest.Close(ctx); err != nil {
		m.log.Warn("instance close failed",
			zap.String("module", module.Name), zap.Error(err))
	}

	delete(m.byID, id)
	for idx, mod := range m.modules {
		if mod == module {
			m.modules = append(m.modules[:idx], m.modules[idx+1:]...)
			break
		}
	}

	m.log.Info("module evicted", zap.String("module", module.Name))
}

// Close tears down every module.
func (m *Manager) Close(ctx context.Context) {
	for _, module := range m.modules {
		if err := module.Guest.Close(ctx); err != nil {
			m.log.Warn("instance close failed",
				zap.String("module", module.Name), zap.Error(err))
		}
	}
	m.modules = nil
	m.byID = map[uint32]*Module{}
	m.bySurface = map[surface.Handle]*Module{}
}
