package register

import (
	"encoding/binary"

	"github.com/lumenshell/widget-runtime/errors"
)

// Encode serializes a subscription table to its wire form. This is the
// guest-side mirror of Decode, specified here for interoperability: a
// module built with any toolchain must produce these exact bytes.
//
// Duplicate checking against the per-tag policy happens before any bytes
// are produced; the decode side trusts that an encoded table was validated
// and does not re-check.
func Encode(subs []Subscription) ([]byte, error) {
	if len(subs) > 0xFFFF {
		return nil, errors.InvalidInput(errors.PhaseEncode,
			"entry count %d exceeds u16", len(subs))
	}
	if err := ValidatePolicy(subs); err != nil {
		return nil, errors.New(errors.PhaseEncode, errors.KindDuplicateEntry).
			Cause(err).
			Detail("refusing to encode a table that violates duplicate policy").
			Build()
	}

	out := make([]byte, headerSize, headerSize+entrySize*len(subs))
	binary.BigEndian.PutUint16(out[0x04:0x06], FormatVersion)
	binary.BigEndian.PutUint16(out[0x06:0x08], uint16(len(subs)))

	// Offsets into the extra-data region grow monotonically; tags without
	// payload contribute zero length and keep their entry offset at the
	// current watermark.
	var extra []byte

	for _, sub := range subs {
		var entry [entrySize]byte
		binary.BigEndian.PutUint16(entry[0x00:0x02], sub.Tag())

		switch s := sub.(type) {
		case PropertyWatch:
			binary.BigEndian.PutUint32(entry[0x02:0x06], uint32(s.Mask))

		case Timer:
			binary.BigEndian.PutUint32(entry[0x06:0x0A], uint32(len(extra)))
			var payload [timerExtraSize]byte
			binary.BigEndian.PutUint64(payload[0x00:0x08], s.IntervalMS)
			binary.BigEndian.PutUint32(payload[0x08:0x0C], s.PhaseOffsetMS)
			extra = append(extra, payload[:]...)

		default:
			return nil, errors.UnknownTag(errors.PhaseEncode,
				[]string{"register", "entry"}, uint32(sub.Tag()))
		}

		out = append(out, entry[:]...)
	}

	out = append(out, extra...)
	binary.BigEndian.PutUint32(out[0x00:0x04], uint32(len(out)))
	return out, nil
}
