package surface

import (
	"encoding/binary"
	"reflect"
	"testing"

	"github.com/lumenshell/widget-runtime/guestmem"
)

func TestLeaseSequence(t *testing.T) {
	lt := NewLeaseTable()

	id1, h1 := lt.Lease()
	id2, h2 := lt.Lease()

	if id1 != 1 || id2 != 2 {
		t.Errorf("ids = %d, %d, want 1, 2", id1, id2)
	}
	if h1 == h2 {
		t.Error("handles must be unique")
	}
	if !lt.Has(id1) || !lt.Has(id2) {
		t.Error("leased ids must be present")
	}

	if h, ok := lt.Handle(id1); !ok || h != h1 {
		t.Errorf("Handle(%d) = %v, %v", id1, h, ok)
	}
	if id, ok := lt.ID(h2); !ok || id != id2 {
		t.Errorf("ID(%v) = %d, %v", h2, id, ok)
	}
}

func TestLeaseExhaustion(t *testing.T) {
	lt := NewLeaseTable()

	var last uint32
	for i := 0; i < 254; i++ {
		id, _ := lt.Lease()
		if id == Sentinel {
			t.Fatalf("exhausted after %d leases", i)
		}
		last = id
	}
	if last != 254 {
		t.Errorf("last issued id = %d, want 254", last)
	}

	if id, _ := lt.Lease(); id != Sentinel {
		t.Errorf("lease past the id space = %d, want sentinel 0", id)
	}
	// still exhausted on the next attempt
	if id, _ := lt.Lease(); id != Sentinel {
		t.Error("exhaustion must be permanent")
	}
}

func TestRevokeNeverReissues(t *testing.T) {
	lt := NewLeaseTable()

	id1, h1 := lt.Lease()
	if !lt.Revoke(id1) {
		t.Fatal("revoke of a live lease must succeed")
	}
	if lt.Has(id1) {
		t.Error("revoked id still present")
	}
	if _, ok := lt.ID(h1); ok {
		t.Error("revoked handle still mapped")
	}
	if lt.Revoke(id1) {
		t.Error("second revoke must fail")
	}

	id2, _ := lt.Lease()
	if id2 == id1 {
		t.Errorf("revoked id %d was reissued", id1)
	}
}

func TestUsedOrder(t *testing.T) {
	lt := NewLeaseTable()

	var ids []uint32
	for i := 0; i < 4; i++ {
		id, _ := lt.Lease()
		ids = append(ids, id)
	}

	if got := lt.Used(); len(got) != 0 {
		t.Errorf("nothing marked, Used() = %v", got)
	}

	// mark out of order; Used keeps lease order
	lt.MarkUsed(ids[2])
	lt.MarkUsed(ids[0])
	lt.MarkUsed(ids[3])

	want := []uint32{ids[0], ids[2], ids[3]}
	if got := lt.Used(); !reflect.DeepEqual(got, want) {
		t.Errorf("Used() = %v, want %v", got, want)
	}

	if lt.MarkUsed(99) {
		t.Error("marking an unleased id must fail")
	}

	lt.Revoke(ids[2])
	want = []uint32{ids[0], ids[3]}
	if got := lt.Used(); !reflect.DeepEqual(got, want) {
		t.Errorf("Used() after revoke = %v, want %v", got, want)
	}
}

func sampleDescriptor() Descriptor {
	return Descriptor{
		ID:        7,
		Layer:     LayerTop,
		Anchor:    AnchorTop | AnchorLeft | AnchorRight,
		HasSize:   true,
		HasWidth:  true,
		HasHeight: false,
		Width:     1920,
		Margin:    Margin{Top: 4, Right: -2, Bottom: 4, Left: -2},
		Limits: Limits{
			MinWidth: 100, MaxWidth: 1920,
			MinHeight: 24, MaxHeight: 48,
		},
		ExclusiveZone: -1,
		Keyboard:      KeyboardOnDemand,
		Pointer:       true,
	}
}

func TestDescriptorRoundTrip(t *testing.T) {
	buf := guestmem.NewBuffer()
	ptr := EncodeDescriptor(buf, sampleDescriptor())

	got, err := DecodeDescriptor(buf.View(), ptr)
	if err != nil {
		t.Fatalf("DecodeDescriptor failed: %v", err)
	}
	if !reflect.DeepEqual(got, sampleDescriptor()) {
		t.Errorf("decoded = %#v\nwant %#v", got, sampleDescriptor())
	}
}

func TestDescriptorsContiguous(t *testing.T) {
	buf := guestmem.NewBuffer()

	first := sampleDescriptor()
	second := sampleDescriptor()
	second.ID = 8
	second.Layer = LayerOverlay
	second.Pointer = false

	// records must be contiguous for DecodeDescriptors; indirect blocks
	// are written first, then both records back to back
	marginFirst := EncodeDescriptor(buf, first)
	raw, err := buf.View().Bytes(marginFirst, DescriptorSize)
	if err != nil {
		t.Fatal(err)
	}
	firstCopy := append([]byte(nil), raw...)
	ptrSecond := EncodeDescriptor(buf, second)
	raw, err = buf.View().Bytes(ptrSecond, DescriptorSize)
	if err != nil {
		t.Fatal(err)
	}
	secondCopy := append([]byte(nil), raw...)

	base := buf.Append(firstCopy)
	buf.Append(secondCopy)

	got, err := DecodeDescriptors(buf.View(), base, 2)
	if err != nil {
		t.Fatalf("DecodeDescriptors failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("decoded %d descriptors, want 2", len(got))
	}
	if got[0].ID != 7 || got[1].ID != 8 {
		t.Errorf("ids = %d, %d, want 7, 8", got[0].ID, got[1].ID)
	}
	if !reflect.DeepEqual(got[1].Margin, second.Margin) {
		t.Errorf("margin = %#v, want %#v", got[1].Margin, second.Margin)
	}
}

func TestDescriptorValidation(t *testing.T) {
	corrupt := func(offset uint32, value byte) (guestmem.View, uint32) {
		buf := guestmem.NewBuffer()
		ptr := EncodeDescriptor(buf, sampleDescriptor())
		buf.Bytes()[ptr+offset] = value
		return buf.View(), ptr
	}

	tests := []struct {
		name   string
		offset uint32
		value  byte
	}{
		{"layer out of range", 4, 9},
		{"anchor unknown bits", 5, 0xF0},
		{"keyboard out of range", 28, 3},
		{"pointer out of range", 29, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ptr := corrupt(tt.offset, tt.value)
			if _, err := DecodeDescriptor(v, ptr); err == nil {
				t.Error("DecodeDescriptor should fail")
			}
		})
	}

	t.Run("record out of bounds", func(t *testing.T) {
		buf := guestmem.NewBuffer()
		if _, err := DecodeDescriptor(buf.View(), 100); err == nil {
			t.Error("record past end should fail")
		}
	})

	t.Run("margin ptr out of bounds", func(t *testing.T) {
		buf := guestmem.NewBuffer()
		ptr := EncodeDescriptor(buf, sampleDescriptor())
		binary.LittleEndian.PutUint32(buf.Bytes()[ptr+16:ptr+20], 0xFFFF_0000)
		if _, err := DecodeDescriptor(buf.View(), ptr); err == nil {
			t.Error("margin block past end should fail")
		}
	})

	t.Run("limits ptr out of bounds", func(t *testing.T) {
		buf := guestmem.NewBuffer()
		ptr := EncodeDescriptor(buf, sampleDescriptor())
		binary.LittleEndian.PutUint32(buf.Bytes()[ptr+20:ptr+24], 0xFFFF_0000)
		if _, err := DecodeDescriptor(buf.View(), ptr); err == nil {
			t.Error("limits block past end should fail")
		}
	})
}

func TestSizeFlagsIgnoredWithoutPresent(t *testing.T) {
	d := sampleDescriptor()
	d.HasSize = false
	d.HasWidth = true
	d.HasHeight = true

	buf := guestmem.NewBuffer()
	ptr := EncodeDescriptor(buf, d)
	got, err := DecodeDescriptor(buf.View(), ptr)
	if err != nil {
		t.Fatalf("DecodeDescriptor failed: %v", err)
	}
	if got.HasSize || got.HasWidth || got.HasHeight {
		t.Errorf("size flags = %v %v %v, want all false", got.HasSize, got.HasWidth, got.HasHeight)
	}
}
