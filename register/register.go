// Package register implements the subscription-table wire codec.
//
// At setup time a guest module emits a flat binary table declaring the
// external data feeds it wants to be woken up for: interval timers and
// device-property changes. The table is length-prefixed and versioned so
// the host can validate it before trusting a single entry.
//
// Layout (all integers big-endian):
//
//	0x00  u32   total table size in bytes
//	0x04  u16   format version
//	0x06  u16   entry count N
//	0x10  16×N  entries: id:u16, capability_bitmask:u32, extra_data_offset:u32
//	...         extra-data region
//
// The extra-data offset of an entry is relative to the first byte after the
// last entry. Tags that carry no payload contribute nothing to the region.
package register

// FormatVersion is the only wire format version this codec understands.
// Bump only for breaking layout changes.
const FormatVersion uint16 = 1

// Known entry tags. Adding a tag requires reserving an id here; the table
// is not forward-compatible, so an unreserved id is a hard decode failure.
const (
	TagPropertyWatch uint16 = 0x0001
	TagTimer         uint16 = 0x0003
)

const (
	headerSize = 0x10
	entrySize  = 0x10

	timerExtraSize = 0x10
)

// Subscription is one decoded entry of a module's subscription table.
type Subscription interface {
	// Tag returns the wire id of this subscription kind.
	Tag() uint16
}

// Timer asks the host to wake the module at a fixed interval.
// Multiple timers per module are allowed.
type Timer struct {
	// IntervalMS is the wake period in milliseconds.
	IntervalMS uint64
	// PhaseOffsetMS shifts the first wake forward, so two modules with the
	// same interval can be staggered.
	PhaseOffsetMS uint32
}

func (Timer) Tag() uint16 { return TagTimer }

// PropertyWatch subscribes the module to device-property change
// notifications. Each bit of Mask selects one watched property; the
// meaning of the bits belongs to the property service, not to this codec.
// At most one watch entry per module.
type PropertyWatch struct {
	Mask uint8
}

func (PropertyWatch) Tag() uint16 { return TagPropertyWatch }

// Property mask bits understood by the default property service.
const (
	PropSinksChanged         uint8 = 0b0000_0001
	PropDefaultSinkChanged   uint8 = 0b0000_0010
	PropSourcesChanged       uint8 = 0b0000_0100
	PropDefaultSourceChanged uint8 = 0b0000_1000
	PropCardsChanged         uint8 = 0b0001_0000
	PropSinkProfileChanged   uint8 = 0b0010_0000
	PropSourceProfileChanged uint8 = 0b0100_0000
)

// allowsDuplicates reports whether a tag may appear more than once in one
// module's table.
func allowsDuplicates(tag uint16) bool {
	switch tag {
	case TagTimer:
		return true
	default:
		return false
	}
}
