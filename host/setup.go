package host

import (
	"unicode/utf8"

	"github.com/lumenshell/widget-runtime/errors"
	"github.com/lumenshell/widget-runtime/guestmem"
	"github.com/lumenshell/widget-runtime/register"
	"github.com/lumenshell/widget-runtime/surface"
)

const setupHandleSize = 20

// setupOutput is everything a module's setup entry point communicates:
// its display name, the surfaces it wants, and its subscription table.
type setupOutput struct {
	Name          string
	Descriptors   []surface.Descriptor
	Subscriptions []register.Subscription
}

// decodeSetupOutput reads the 20 byte setup handle at ptr and everything
// it points to. The register table is re-framed by its own leading
// big-endian size before the wire codec decodes it.
func decodeSetupOutput(v guestmem.View, ptr uint32) (setupOutput, error) {
	raw, err := v.Bytes(ptr, setupHandleSize)
	if err != nil {
		return setupOutput{}, err
	}

	namePtr := leU32(raw[0:4])
	nameLen := leU32(raw[4:8])
	surfacesPtr := leU32(raw[8:12])
	surfacesLen := leU32(raw[12:16])
	registerPtr := leU32(raw[16:20])

	nameRaw, err := v.Bytes(namePtr, nameLen)
	if err != nil {
		return setupOutput{}, err
	}
	if !utf8.Valid(nameRaw) {
		return setupOutput{}, errors.InvalidUTF8(errors.PhaseSetup,
			[]string{"setup", "name"}, nameRaw)
	}

	descriptors, err := surface.DecodeDescriptors(v, surfacesPtr, surfacesLen)
	if err != nil {
		return setupOutput{}, err
	}

	tableSize, err := v.U32BE(registerPtr)
	if err != nil {
		return setupOutput{}, err
	}
	tableRaw, err := v.Bytes(registerPtr, tableSize)
	if err != nil {
		return setupOutput{}, err
	}
	subs, err := register.Decode(tableRaw)
	if err != nil {
		return setupOutput{}, err
	}

	return setupOutput{
		Name:          string(nameRaw),
		Descriptors:   descriptors,
		Subscriptions: subs,
	}, nil
}

func leU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
