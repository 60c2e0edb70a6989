package arena

import (
	"unicode/utf8"

	"github.com/lumenshell/widget-runtime/errors"
	"github.com/lumenshell/widget-runtime/guestmem"
)

const (
	handleSize     = 24
	elementSize    = 20
	textDataSize   = 8
	textStyleSize  = 1
	sliderDataSize = 32
)

// MaxDepth bounds recursive reconstruction. A hostile arena can form an
// index cycle; the depth cap turns that into a decode failure instead of
// unbounded recursion.
const MaxDepth = 64

// handle is the fixed record a guest's view entry point returns a pointer
// to: the head element index and the base pointers of the five tables.
type handle struct {
	headIndex     uint32
	elementsPtr   uint32
	childrenPtr   uint32
	textDataPtr   uint32
	textStylePtr  uint32
	sliderDataPtr uint32
}

// Decode reconstructs the UI tree a render call produced, starting at the
// render handle at handlePtr.
//
// Every index dereference goes through the bounds-checked view. Any failure
// aborts the decode for this render call only; the caller discards the whole
// surface's output and the module is not killed.
func Decode(v guestmem.View, handlePtr uint32) (*Node, error) {
	raw, err := v.Bytes(handlePtr, handleSize)
	if err != nil {
		return nil, err
	}

	h := handle{
		headIndex:     leU32(raw[0:4]),
		elementsPtr:   leU32(raw[4:8]),
		childrenPtr:   leU32(raw[8:12]),
		textDataPtr:   leU32(raw[12:16]),
		textStylePtr:  leU32(raw[16:20]),
		sliderDataPtr: leU32(raw[20:24]),
	}

	return decodeElement(v, h, h.headIndex, 0)
}

func decodeElement(v guestmem.View, h handle, index uint32, depth int) (*Node, error) {
	if depth > MaxDepth {
		return nil, errors.InvalidData(errors.PhaseRender,
			[]string{"arena", "element"}, "tree depth limit exceeded")
	}

	raw, err := v.Record(h.elementsPtr, elementSize, index)
	if err != nil {
		return nil, err
	}

	tag := Tag(raw[0])
	childCount := raw[1]
	childrenIndex := leU32(raw[4:8])
	dataIndex := leU32(raw[8:12])
	callbackID := leU32(raw[12:16])
	styleIndex := leU32(raw[16:20])

	switch tag {
	case TagRow, TagColumn, TagStack:
		children, err := decodeChildren(v, h, childrenIndex, childCount, depth)
		if err != nil {
			return nil, err
		}
		return &Node{Tag: tag, Children: children}, nil

	case TagText:
		content, err := decodeText(v, h, dataIndex)
		if err != nil {
			return nil, err
		}
		style, err := decodeTextStyle(v, h, styleIndex)
		if err != nil {
			return nil, err
		}
		return &Node{Tag: TagText, Text: content, Style: style}, nil

	case TagButton:
		if childCount != 1 {
			return nil, errors.InvalidData(errors.PhaseRender,
				[]string{"arena", "button"}, "button requires exactly one child")
		}
		children, err := decodeChildren(v, h, childrenIndex, 1, depth)
		if err != nil {
			return nil, err
		}
		return &Node{Tag: TagButton, Children: children, CallbackID: callbackID}, nil

	case TagSlider:
		data, err := decodeSlider(v, h, dataIndex)
		if err != nil {
			return nil, err
		}
		return &Node{Tag: TagSlider, Slider: data, CallbackID: callbackID}, nil
	}

	return nil, errors.UnknownTag(errors.PhaseRender, []string{"arena", "element"}, uint32(tag))
}

// decodeChildren resolves the double indirection of the children table:
// entry childrenIndex of the pointer array addresses an array of count
// element indices.
func decodeChildren(v guestmem.View, h handle, childrenIndex uint32, count uint8, depth int) ([]*Node, error) {
	if count == 0 {
		return nil, nil
	}

	ptrRaw, err := v.Record(h.childrenPtr, 4, childrenIndex)
	if err != nil {
		return nil, err
	}
	arrayPtr := leU32(ptrRaw)

	children := make([]*Node, 0, count)
	for i := uint32(0); i < uint32(count); i++ {
		idxRaw, err := v.Record(arrayPtr, 4, i)
		if err != nil {
			return nil, err
		}
		child, err := decodeElement(v, h, leU32(idxRaw), depth+1)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

func decodeText(v guestmem.View, h handle, dataIndex uint32) (string, error) {
	raw, err := v.Record(h.textDataPtr, textDataSize, dataIndex)
	if err != nil {
		return "", err
	}

	contentPtr := leU32(raw[0:4])
	contentLen := leU32(raw[4:8])

	content, err := v.Bytes(contentPtr, contentLen)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(content) {
		return "", errors.InvalidUTF8(errors.PhaseRender, []string{"arena", "text"}, content)
	}
	return string(content), nil
}

func decodeTextStyle(v guestmem.View, h handle, styleIndex uint32) (TextStyle, error) {
	raw, err := v.Record(h.textStylePtr, textStyleSize, styleIndex)
	if err != nil {
		return TextStyle{}, err
	}
	return TextStyle{Color: raw[0]}, nil
}

func decodeSlider(v guestmem.View, h handle, dataIndex uint32) (SliderData, error) {
	raw, err := v.Record(h.sliderDataPtr, sliderDataSize, dataIndex)
	if err != nil {
		return SliderData{}, err
	}

	kind := NumberKind(raw[0])
	switch kind {
	case NumberI32, NumberF32, NumberF64:
	default:
		return SliderData{}, errors.InvalidEnum(errors.PhaseRender,
			[]string{"arena", "slider"}, uint32(kind), "number_kind")
	}

	return SliderData{
		Kind:      kind,
		MinBits:   leU64(raw[8:16]),
		MaxBits:   leU64(raw[16:24]),
		ValueBits: leU64(raw[24:32]),
	}, nil
}

func leU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func leU64(b []byte) uint64 {
	return uint64(leU32(b[0:4])) | uint64(leU32(b[4:8]))<<32
}
