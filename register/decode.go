package register

import (
	"encoding/binary"

	"github.com/lumenshell/widget-runtime/errors"
)

// Decode parses a subscription table from the exact byte slice the setup
// handle named. It validates the header against the slice length and
// bounds-checks every extra-data read, so it is safe on untrusted input.
//
// Decode does not re-check the duplicate policy; that is a setup-time
// validation done by the lifecycle manager via ValidatePolicy, after which
// downstream consumers trust the table.
func Decode(data []byte) ([]Subscription, error) {
	if len(data) < headerSize {
		return nil, errors.MalformedHeader(errors.PhaseDecode,
			"table needs at least 0x%X header bytes, got 0x%X", headerSize, len(data))
	}

	totalSize := binary.BigEndian.Uint32(data[0x00:0x04])
	if uint64(totalSize) != uint64(len(data)) {
		return nil, errors.MalformedHeader(errors.PhaseDecode,
			"declared size 0x%X does not match supplied 0x%X bytes", totalSize, len(data))
	}

	version := binary.BigEndian.Uint16(data[0x04:0x06])
	if version != FormatVersion {
		return nil, errors.MalformedHeader(errors.PhaseDecode,
			"format version %d, host speaks %d", version, FormatVersion)
	}

	count := binary.BigEndian.Uint16(data[0x06:0x08])
	extraStart := headerSize + entrySize*int(count)
	if extraStart > len(data) {
		return nil, errors.MalformedHeader(errors.PhaseDecode,
			"entry table end 0x%X past table size 0x%X", extraStart, len(data))
	}

	subs := make([]Subscription, 0, count)
	for i := 0; i < int(count); i++ {
		entry := data[headerSize+entrySize*i:]
		sub, err := decodeEntry(data, entry[:entrySize], extraStart)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func decodeEntry(data, entry []byte, extraStart int) (Subscription, error) {
	id := binary.BigEndian.Uint16(entry[0x00:0x02])
	bitmask := binary.BigEndian.Uint32(entry[0x02:0x06])
	extraOffset := binary.BigEndian.Uint32(entry[0x06:0x0A])

	switch id {
	case TagPropertyWatch:
		return PropertyWatch{Mask: uint8(bitmask)}, nil

	case TagTimer:
		extra, err := extraData(data, extraStart, extraOffset, timerExtraSize)
		if err != nil {
			return nil, err
		}
		return Timer{
			IntervalMS:    binary.BigEndian.Uint64(extra[0x00:0x08]),
			PhaseOffsetMS: binary.BigEndian.Uint32(extra[0x08:0x0C]),
		}, nil

	default:
		return nil, errors.UnknownTag(errors.PhaseDecode, []string{"register", "entry"}, uint32(id))
	}
}

// extraData resolves an entry's offset into the trailing extra-data region.
func extraData(data []byte, extraStart int, offset uint32, size int) ([]byte, error) {
	start := uint64(extraStart) + uint64(offset)
	end := start + uint64(size)
	if end > uint64(len(data)) {
		return nil, errors.OutOfBounds(errors.PhaseDecode,
			[]string{"register", "extra"}, start, uint64(size), uint64(len(data)))
	}
	return data[start:end], nil
}

// ValidatePolicy enforces the per-tag duplicate policy over a decoded
// table. A violation is a setup-time validation failure that excludes the
// module; the error names the offending tag.
func ValidatePolicy(subs []Subscription) error {
	seen := make(map[uint16]bool, len(subs))
	for _, sub := range subs {
		tag := sub.Tag()
		if seen[tag] && !allowsDuplicates(tag) {
			return errors.DuplicateEntry(errors.PhaseValidate, tag)
		}
		seen[tag] = true
	}
	return nil
}
