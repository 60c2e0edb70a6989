package arena

import (
	"encoding/binary"
	"unicode/utf8"

	"github.com/lumenshell/widget-runtime/errors"
	"github.com/lumenshell/widget-runtime/guestmem"
)

// Builder assembles the flat arena tables the way a guest's widget
// constructors do: each constructor appends to the relevant table and
// returns the new element's index, and containers commit their children's
// indices before appending themselves. A single depth-first pass therefore
// never produces a forward reference.
type Builder struct {
	elements   []element
	children   [][]uint32
	textData   []string
	textStyle  []TextStyle
	sliderData []SliderData

	nextCallback uint32
}

type element struct {
	tag           Tag
	childCount    uint8
	childrenIndex uint32
	dataIndex     uint32
	callbackID    uint32
	styleIndex    uint32
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Callback mints the next callback id for this render, starting at 1.
// Id 0 stays reserved for "no callback".
func (b *Builder) Callback() uint32 {
	b.nextCallback++
	return b.nextCallback
}

// Row appends a row container over the given element indices.
func (b *Builder) Row(children ...uint32) uint32 {
	return b.appendContainer(TagRow, children)
}

// Column appends a column container over the given element indices.
func (b *Builder) Column(children ...uint32) uint32 {
	return b.appendContainer(TagColumn, children)
}

// Stack appends a stack container over the given element indices.
func (b *Builder) Stack(children ...uint32) uint32 {
	return b.appendContainer(TagStack, children)
}

// Text appends a text element.
func (b *Builder) Text(content string, style TextStyle) uint32 {
	dataIndex := uint32(len(b.textData))
	b.textData = append(b.textData, content)
	styleIndex := uint32(len(b.textStyle))
	b.textStyle = append(b.textStyle, style)
	return b.appendElement(element{
		tag:        TagText,
		dataIndex:  dataIndex,
		styleIndex: styleIndex,
	})
}

// Button appends a button wrapping one already built element.
func (b *Builder) Button(child uint32, callbackID uint32) uint32 {
	childrenIndex := b.commitChildren([]uint32{child})
	return b.appendElement(element{
		tag:           TagButton,
		childCount:    1,
		childrenIndex: childrenIndex,
		callbackID:    callbackID,
	})
}

// Slider appends a slider element.
func (b *Builder) Slider(data SliderData, callbackID uint32) uint32 {
	dataIndex := uint32(len(b.sliderData))
	b.sliderData = append(b.sliderData, data)
	return b.appendElement(element{
		tag:        TagSlider,
		dataIndex:  dataIndex,
		callbackID: callbackID,
	})
}

func (b *Builder) appendContainer(tag Tag, children []uint32) uint32 {
	e := element{tag: tag, childCount: uint8(len(children))}
	if len(children) > 0 {
		e.childrenIndex = b.commitChildren(children)
	}
	return b.appendElement(e)
}

func (b *Builder) commitChildren(indices []uint32) uint32 {
	index := uint32(len(b.children))
	b.children = append(b.children, indices)
	return index
}

func (b *Builder) appendElement(e element) uint32 {
	index := uint32(len(b.elements))
	b.elements = append(b.elements, e)
	return index
}

// Finish serializes all tables into buf and returns the pointer to the
// 24 byte render handle whose head is the element at head.
func (b *Builder) Finish(buf *guestmem.Buffer, head uint32) (uint32, error) {
	if int(head) >= len(b.elements) {
		return 0, errors.InvalidInput(errors.PhaseEncode,
			"head index %d out of range for %d elements", head, len(b.elements))
	}

	// text content first so the data table can point at it
	textData := make([]byte, 0, textDataSize*len(b.textData))
	for _, content := range b.textData {
		ptr := buf.Append([]byte(content))
		textData = binary.LittleEndian.AppendUint32(textData, ptr)
		textData = binary.LittleEndian.AppendUint32(textData, uint32(len(content)))
	}
	textDataPtr := buf.Append(textData)

	// each child index list gets its own array, then the pointer array
	// over them reproduces the double indirection the host walks
	childPtrs := make([]byte, 0, 4*len(b.children))
	for _, indices := range b.children {
		raw := make([]byte, 0, 4*len(indices))
		for _, idx := range indices {
			raw = binary.LittleEndian.AppendUint32(raw, idx)
		}
		ptr := buf.Append(raw)
		childPtrs = binary.LittleEndian.AppendUint32(childPtrs, ptr)
	}
	childrenPtr := buf.Append(childPtrs)

	elements := make([]byte, 0, elementSize*len(b.elements))
	for _, e := range b.elements {
		rec := make([]byte, elementSize)
		rec[0] = byte(e.tag)
		rec[1] = e.childCount
		binary.LittleEndian.PutUint32(rec[4:8], e.childrenIndex)
		binary.LittleEndian.PutUint32(rec[8:12], e.dataIndex)
		binary.LittleEndian.PutUint32(rec[12:16], e.callbackID)
		binary.LittleEndian.PutUint32(rec[16:20], e.styleIndex)
		elements = append(elements, rec...)
	}
	elementsPtr := buf.Append(elements)

	styles := make([]byte, len(b.textStyle))
	for i, s := range b.textStyle {
		styles[i] = s.Color
	}
	textStylePtr := buf.Append(styles)

	sliders := make([]byte, 0, sliderDataSize*len(b.sliderData))
	for _, d := range b.sliderData {
		rec := make([]byte, sliderDataSize)
		rec[0] = byte(d.Kind)
		binary.LittleEndian.PutUint64(rec[8:16], d.MinBits)
		binary.LittleEndian.PutUint64(rec[16:24], d.MaxBits)
		binary.LittleEndian.PutUint64(rec[24:32], d.ValueBits)
		sliders = append(sliders, rec...)
	}
	sliderDataPtr := buf.Append(sliders)

	raw := make([]byte, handleSize)
	binary.LittleEndian.PutUint32(raw[0:4], head)
	binary.LittleEndian.PutUint32(raw[4:8], elementsPtr)
	binary.LittleEndian.PutUint32(raw[8:12], childrenPtr)
	binary.LittleEndian.PutUint32(raw[12:16], textDataPtr)
	binary.LittleEndian.PutUint32(raw[16:20], textStylePtr)
	binary.LittleEndian.PutUint32(raw[20:24], sliderDataPtr)
	return buf.Append(raw), nil
}

// Encode lowers a Node tree into buf through a Builder and returns the
// render handle pointer. Callback ids on the nodes are written through
// unchanged so a decode of the result reproduces the input tree.
func Encode(buf *guestmem.Buffer, root *Node) (uint32, error) {
	b := NewBuilder()
	head, err := b.addNode(root)
	if err != nil {
		return 0, err
	}
	return b.Finish(buf, head)
}

func (b *Builder) addNode(n *Node) (uint32, error) {
	switch n.Tag {
	case TagRow, TagColumn, TagStack:
		indices := make([]uint32, 0, len(n.Children))
		for _, child := range n.Children {
			idx, err := b.addNode(child)
			if err != nil {
				return 0, err
			}
			indices = append(indices, idx)
		}
		return b.appendContainer(n.Tag, indices), nil

	case TagText:
		if !utf8.ValidString(n.Text) {
			return 0, errors.InvalidUTF8(errors.PhaseEncode,
				[]string{"arena", "text"}, []byte(n.Text))
		}
		return b.Text(n.Text, n.Style), nil

	case TagButton:
		if len(n.Children) != 1 {
			return 0, errors.InvalidData(errors.PhaseEncode,
				[]string{"arena", "button"}, "button requires exactly one child")
		}
		child, err := b.addNode(n.Children[0])
		if err != nil {
			return 0, err
		}
		return b.Button(child, n.CallbackID), nil

	case TagSlider:
		switch n.Slider.Kind {
		case NumberI32, NumberF32, NumberF64:
		default:
			return 0, errors.InvalidEnum(errors.PhaseEncode,
				[]string{"arena", "slider"}, uint32(n.Slider.Kind), "number_kind")
		}
		return b.Slider(n.Slider, n.CallbackID), nil
	}

	return 0, errors.UnknownTag(errors.PhaseEncode, []string{"arena", "element"}, uint32(n.Tag))
}
