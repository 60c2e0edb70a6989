package host

import (
	"math"

	"github.com/lumenshell/widget-runtime/arena"
)

// CallbackKind says what input a callback slot expects.
type CallbackKind uint8

const (
	CallbackButton CallbackKind = iota
	CallbackSlider
)

// CallbackRef is the host-side record for one callback id captured from a
// decoded render tree. For sliders it remembers the number kind declared at
// encode time so input values are packed with the right bit pattern.
type CallbackRef struct {
	Kind   CallbackKind
	Number arena.NumberKind
}

// CallbackTable maps the callback ids of one (module, surface) render to
// their refs. A fresh table replaces the previous one each render; id 0 is
// reserved for "none" and never present.
type CallbackTable struct {
	refs map[uint32]CallbackRef
}

// BuildCallbackTable collects the callback ids of a decoded tree.
func BuildCallbackTable(root *arena.Node) *CallbackTable {
	t := &CallbackTable{refs: make(map[uint32]CallbackRef)}
	t.collect(root)
	return t
}

func (t *CallbackTable) collect(n *arena.Node) {
	if n == nil {
		return
	}
	if n.CallbackID != 0 {
		switch n.Tag {
		case arena.TagButton:
			t.refs[n.CallbackID] = CallbackRef{Kind: CallbackButton}
		case arena.TagSlider:
			t.refs[n.CallbackID] = CallbackRef{Kind: CallbackSlider, Number: n.Slider.Kind}
		}
	}
	for _, child := range n.Children {
		t.collect(child)
	}
}

// Lookup resolves a callback id. Id 0 and unknown ids miss.
func (t *CallbackTable) Lookup(id uint32) (CallbackRef, bool) {
	if t == nil || id == 0 {
		return CallbackRef{}, false
	}
	ref, ok := t.refs[id]
	return ref, ok
}

// Len returns the number of live callback ids.
func (t *CallbackTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.refs)
}

// PackInput converts a host-side input value into the raw u64 the guest's
// callback expects. Buttons carry no input; sliders carry the value in the
// representation recorded at render time.
func (r CallbackRef) PackInput(value float64) uint64 {
	if r.Kind == CallbackButton {
		return 0
	}
	switch r.Number {
	case arena.NumberF32:
		return uint64(math.Float32bits(float32(value)))
	case arena.NumberF64:
		return math.Float64bits(value)
	default:
		return uint64(uint32(int32(value)))
	}
}
