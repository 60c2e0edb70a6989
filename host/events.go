package host

import (
	"github.com/lumenshell/widget-runtime/arena"
	"github.com/lumenshell/widget-runtime/register"
	"github.com/lumenshell/widget-runtime/surface"
)

// Event is an outbound message from the dispatch loop to the rendering
// collaborator.
type Event interface {
	isEvent()
}

// EventCreateSurface asks the collaborator to create a surface for a
// module. The collaborator answers with RequestSurfaceReady once it did.
type EventCreateSurface struct {
	Module     uint32
	Handle     surface.Handle
	Descriptor surface.Descriptor
}

// EventDestroySurface tells the collaborator a surface's lease was revoked.
type EventDestroySurface struct {
	Module uint32
	Handle surface.Handle
}

// EventUIUpdate carries one surface's freshly decoded tree. The tree
// replaces whatever the collaborator held for this (module, surface) pair.
type EventUIUpdate struct {
	Module uint32
	Handle surface.Handle
	Tree   *arena.Node
}

// EventRegisterSubscriptions announces a module's validated subscription
// table after setup.
type EventRegisterSubscriptions struct {
	Module        uint32
	Name          string
	Subscriptions []register.Subscription
}

func (EventCreateSurface) isEvent()         {}
func (EventDestroySurface) isEvent()        {}
func (EventUIUpdate) isEvent()              {}
func (EventRegisterSubscriptions) isEvent() {}

// Request is an inbound message into the dispatch loop.
type Request interface {
	isRequest()
}

// RequestCallback reports user input on a callback-carrying element. Value
// is the slider position; it is ignored for buttons.
type RequestCallback struct {
	Handle     surface.Handle
	CallbackID uint32
	Value      float64
}

// RequestServiceData pushes an external service payload into a module.
type RequestServiceData struct {
	Module   uint32
	Tag      uint32
	Payload  []byte
	Rerender bool
}

// RequestSurfaceReady confirms the collaborator created the surface for a
// handle. The loop marks the lease used and schedules the first render.
type RequestSurfaceReady struct {
	Handle surface.Handle
}

// RequestRerender asks for a fresh render of one module's surfaces.
type RequestRerender struct {
	Module uint32
}

func (RequestCallback) isRequest()     {}
func (RequestServiceData) isRequest()  {}
func (RequestSurfaceReady) isRequest() {}
func (RequestRerender) isRequest()     {}
