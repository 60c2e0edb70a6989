package surface

import (
	"encoding/binary"
	"math"

	"github.com/lumenshell/widget-runtime/errors"
	"github.com/lumenshell/widget-runtime/guestmem"
)

// DescriptorSize is the size of one raw surface descriptor record.
const DescriptorSize = 32

const (
	marginSize = 16
	limitsSize = 16
)

// Layer selects the stacking layer of a surface.
type Layer uint8

const (
	LayerBackground Layer = 0
	LayerBottom     Layer = 1
	LayerTop        Layer = 2
	LayerOverlay    Layer = 3
)

func (l Layer) String() string {
	switch l {
	case LayerBackground:
		return "background"
	case LayerBottom:
		return "bottom"
	case LayerTop:
		return "top"
	case LayerOverlay:
		return "overlay"
	}
	return "unknown"
}

// Anchor is a bitset of screen edges a surface is anchored to.
type Anchor uint8

const (
	AnchorTop    Anchor = 1 << 0
	AnchorBottom Anchor = 1 << 1
	AnchorLeft   Anchor = 1 << 2
	AnchorRight  Anchor = 1 << 3

	anchorMask = AnchorTop | AnchorBottom | AnchorLeft | AnchorRight
)

// Keyboard is the keyboard interactivity mode of a surface.
type Keyboard uint8

const (
	KeyboardNone      Keyboard = 0
	KeyboardExclusive Keyboard = 1
	KeyboardOnDemand  Keyboard = 2
)

// size_flags bits of the raw record.
const (
	sizeFlagPresent = 1 << 0
	sizeFlagWidth   = 1 << 1
	sizeFlagHeight  = 1 << 2
)

// Margin holds per-edge pixel margins.
type Margin struct {
	Top    int32
	Right  int32
	Bottom int32
	Left   int32
}

// Limits holds the min and max dimensions a surface may take.
type Limits struct {
	MinWidth  float32
	MaxWidth  float32
	MinHeight float32
	MaxHeight float32
}

// Descriptor is one decoded surface request from a module's setup output.
type Descriptor struct {
	ID            uint32
	Layer         Layer
	Anchor        Anchor
	HasSize       bool
	HasWidth      bool
	HasHeight     bool
	Width         uint32
	Height        uint32
	Margin        Margin
	Limits        Limits
	ExclusiveZone int32
	Keyboard      Keyboard
	Pointer       bool
}

// DecodeDescriptor reads and validates the raw descriptor record at ptr.
// The margin and limits blocks are reached through their own pointers in
// the record, each bounds-checked separately.
func DecodeDescriptor(v guestmem.View, ptr uint32) (Descriptor, error) {
	raw, err := v.Bytes(ptr, DescriptorSize)
	if err != nil {
		return Descriptor{}, err
	}

	d := Descriptor{
		ID:            binary.LittleEndian.Uint32(raw[0:4]),
		Layer:         Layer(raw[4]),
		Anchor:        Anchor(raw[5]),
		Width:         binary.LittleEndian.Uint32(raw[8:12]),
		Height:        binary.LittleEndian.Uint32(raw[12:16]),
		ExclusiveZone: int32(binary.LittleEndian.Uint32(raw[24:28])),
		Keyboard:      Keyboard(raw[28]),
	}

	if d.Layer > LayerOverlay {
		return Descriptor{}, errors.InvalidEnum(errors.PhaseSetup,
			[]string{"surface", "layer"}, uint32(d.Layer), "layer")
	}
	if d.Anchor&^anchorMask != 0 {
		return Descriptor{}, errors.InvalidEnum(errors.PhaseSetup,
			[]string{"surface", "anchor"}, uint32(d.Anchor), "anchor")
	}
	if d.Keyboard > KeyboardOnDemand {
		return Descriptor{}, errors.InvalidEnum(errors.PhaseSetup,
			[]string{"surface", "keyboard"}, uint32(d.Keyboard), "keyboard_interactivity")
	}
	switch raw[29] {
	case 0:
		d.Pointer = false
	case 1:
		d.Pointer = true
	default:
		return Descriptor{}, errors.InvalidEnum(errors.PhaseSetup,
			[]string{"surface", "pointer"}, uint32(raw[29]), "pointer_interactivity")
	}

	flags := raw[6]
	d.HasSize = flags&sizeFlagPresent != 0
	if d.HasSize {
		d.HasWidth = flags&sizeFlagWidth != 0
		d.HasHeight = flags&sizeFlagHeight != 0
	}

	marginPtr := binary.LittleEndian.Uint32(raw[16:20])
	marginRaw, err := v.Bytes(marginPtr, marginSize)
	if err != nil {
		return Descriptor{}, err
	}
	d.Margin = Margin{
		Top:    int32(binary.LittleEndian.Uint32(marginRaw[0:4])),
		Right:  int32(binary.LittleEndian.Uint32(marginRaw[4:8])),
		Bottom: int32(binary.LittleEndian.Uint32(marginRaw[8:12])),
		Left:   int32(binary.LittleEndian.Uint32(marginRaw[12:16])),
	}

	limitsPtr := binary.LittleEndian.Uint32(raw[20:24])
	limitsRaw, err := v.Bytes(limitsPtr, limitsSize)
	if err != nil {
		return Descriptor{}, err
	}
	d.Limits = Limits{
		MinWidth:  math.Float32frombits(binary.LittleEndian.Uint32(limitsRaw[0:4])),
		MaxWidth:  math.Float32frombits(binary.LittleEndian.Uint32(limitsRaw[4:8])),
		MinHeight: math.Float32frombits(binary.LittleEndian.Uint32(limitsRaw[8:12])),
		MaxHeight: math.Float32frombits(binary.LittleEndian.Uint32(limitsRaw[12:16])),
	}

	return d, nil
}

// DecodeDescriptors reads count contiguous descriptor records starting at
// ptr, as laid out by a module's setup output.
func DecodeDescriptors(v guestmem.View, ptr, count uint32) ([]Descriptor, error) {
	descriptors := make([]Descriptor, 0, count)
	for i := uint32(0); i < count; i++ {
		offset := uint64(ptr) + uint64(DescriptorSize)*uint64(i)
		if offset > math.MaxUint32 {
			return nil, errors.OutOfBounds(errors.PhaseSetup,
				[]string{"surface", "descriptor"}, offset, DescriptorSize, v.Len())
		}
		d, err := DecodeDescriptor(v, uint32(offset))
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, d)
	}
	return descriptors, nil
}

// EncodeDescriptor writes the guest-side layout of d into buf: the margin
// and limits blocks first, then the 32 byte record pointing at them. It
// returns the record's offset.
func EncodeDescriptor(buf *guestmem.Buffer, d Descriptor) uint32 {
	marginRaw := make([]byte, marginSize)
	binary.LittleEndian.PutUint32(marginRaw[0:4], uint32(d.Margin.Top))
	binary.LittleEndian.PutUint32(marginRaw[4:8], uint32(d.Margin.Right))
	binary.LittleEndian.PutUint32(marginRaw[8:12], uint32(d.Margin.Bottom))
	binary.LittleEndian.PutUint32(marginRaw[12:16], uint32(d.Margin.Left))
	marginPtr := buf.Append(marginRaw)

	limitsRaw := make([]byte, limitsSize)
	binary.LittleEndian.PutUint32(limitsRaw[0:4], math.Float32bits(d.Limits.MinWidth))
	binary.LittleEndian.PutUint32(limitsRaw[4:8], math.Float32bits(d.Limits.MaxWidth))
	binary.LittleEndian.PutUint32(limitsRaw[8:12], math.Float32bits(d.Limits.MinHeight))
	binary.LittleEndian.PutUint32(limitsRaw[12:16], math.Float32bits(d.Limits.MaxHeight))
	limitsPtr := buf.Append(limitsRaw)

	var flags byte
	if d.HasSize {
		flags |= sizeFlagPresent
		if d.HasWidth {
			flags |= sizeFlagWidth
		}
		if d.HasHeight {
			flags |= sizeFlagHeight
		}
	}

	raw := make([]byte, DescriptorSize)
	binary.LittleEndian.PutUint32(raw[0:4], d.ID)
	raw[4] = byte(d.Layer)
	raw[5] = byte(d.Anchor)
	raw[6] = flags
	binary.LittleEndian.PutUint32(raw[8:12], d.Width)
	binary.LittleEndian.PutUint32(raw[12:16], d.Height)
	binary.LittleEndian.PutUint32(raw[16:20], marginPtr)
	binary.LittleEndian.PutUint32(raw[20:24], limitsPtr)
	binary.LittleEndian.PutUint32(raw[24:28], uint32(d.ExclusiveZone))
	raw[28] = byte(d.Keyboard)
	if d.Pointer {
		raw[29] = 1
	}
	return buf.Append(raw)
}
