// Package widgetruntime hosts untrusted widget modules compiled to
// WebAssembly and exposes them to a native shell through a narrow,
// versioned binary interface.
//
// Each guest module describes a small UI (rows, columns, stacks, text,
// buttons, sliders) and declares the external data feeds it wants to be
// woken up for (timers, device-property changes). The host renders what
// the module describes and routes input events back into it. Every value
// crossing the sandbox boundary is an untrusted integer offset into the
// guest's linear memory and is validated before use; a malformed, slow,
// or crashing module never destabilizes the rest of the shell.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	widgetruntime/       Root package with core Memory and Allocator interfaces
//	├── host/            Module lifecycle manager and the dispatch loop
//	├── engine/          Low-level wazero integration and guest entry points
//	├── guestmem/        Bounds-checked access to guest linear memory
//	├── register/        Subscription-table wire codec
//	├── arena/           Widget-tree arena codec and guest-side builder
//	├── surface/         Surface-id lease table and setup descriptors
//	├── services/        Interval timers and property-change routing
//	├── config/          Host configuration loading
//	└── errors/          Structured error types for debugging
//
// # Quick Start
//
// Load a directory of widget modules and drive them:
//
//	eng, err := engine.NewEngine(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close(ctx)
//
//	mgr := host.NewManager(eng, logger)
//	loop := host.NewLoop(mgr, host.DefaultLoopConfig(), logger)
//
//	paths, err := mgr.Discover("/path/to/modules")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	mgr.LoadAll(ctx, paths, loop.EventSink())
//	go loop.Serve(ctx)
//
//	for ev := range loop.Events() {
//	    // hand decoded UI trees and surface requests to the renderer
//	}
//
// # Trust Model
//
// The host reads guest memory only between guest calls, never concurrently
// with a call into the same guest, so memory reads need no synchronization.
// Guest entry-point calls run to completion; a pathological module can stall
// a render cycle but can never corrupt host state or crash the process.
package widgetruntime
