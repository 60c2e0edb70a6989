// Package arena codecs the flat, index-addressed UI tables a guest builds
// on every render call.
//
// A guest describes its UI as plain integers: an element table, a children
// table of index arrays, and per-widget payload tables. The whole tree moves
// across the sandbox boundary as a byte blob with no object identity, so the
// host reconstructs it by chasing indices through guestmem.View. Builder is
// the guest-side mirror used to produce real layouts for the host decoder.
package arena

import "math"

// Tag identifies the widget kind of an element record.
type Tag uint8

const (
	TagRow    Tag = 1
	TagColumn Tag = 2
	TagText   Tag = 3
	TagButton Tag = 4
	TagSlider Tag = 5
	TagStack  Tag = 6
)

// String returns the widget name for diagnostics.
func (t Tag) String() string {
	switch t {
	case TagRow:
		return "row"
	case TagColumn:
		return "column"
	case TagText:
		return "text"
	case TagButton:
		return "button"
	case TagSlider:
		return "slider"
	case TagStack:
		return "stack"
	}
	return "unknown"
}

// NumberKind selects the numeric representation of a slider's range and
// value fields.
type NumberKind uint8

const (
	NumberI32 NumberKind = 0
	NumberF32 NumberKind = 1
	NumberF64 NumberKind = 2
)

func (k NumberKind) String() string {
	switch k {
	case NumberI32:
		return "i32"
	case NumberF32:
		return "f32"
	case NumberF64:
		return "f64"
	}
	return "unknown"
}

// TextStyle is the per-text style record.
type TextStyle struct {
	Color uint8
}

// SliderData holds a slider's numeric range and current value. The u64
// fields carry the bit pattern of whatever type Kind names.
type SliderData struct {
	Kind      NumberKind
	MinBits   uint64
	MaxBits   uint64
	ValueBits uint64
}

// Min returns the range minimum converted to float64.
func (d SliderData) Min() float64 { return d.number(d.MinBits) }

// Max returns the range maximum converted to float64.
func (d SliderData) Max() float64 { return d.number(d.MaxBits) }

// Value returns the current value converted to float64.
func (d SliderData) Value() float64 { return d.number(d.ValueBits) }

func (d SliderData) number(bits uint64) float64 {
	switch d.Kind {
	case NumberF32:
		return float64(math.Float32frombits(uint32(bits)))
	case NumberF64:
		return math.Float64frombits(bits)
	default:
		return float64(int32(bits))
	}
}

// Node is one reconstructed UI element.
//
// A fresh tree is produced on every render call and replaces the previous
// one for its (module, surface) pair; nodes are never mutated in place.
// CallbackID is 0 when the element has no callback. For Button, Children
// holds exactly the one inner element.
type Node struct {
	Tag        Tag
	CallbackID uint32

	Children []*Node

	Text  string
	Style TextStyle

	Slider SliderData
}
