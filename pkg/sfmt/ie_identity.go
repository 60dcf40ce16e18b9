package sfmt

import (
	"errors"
	"fmt"

	"github.com/dbehnke/dect-nwk/pkg/identity"
)

// Identity groups of the identity type IE
const (
	IdentityGroupPortable    uint8 = 0x0
	IdentityGroupNWKAssigned uint8 = 0x1
	IdentityGroupFixed       uint8 = 0x4
	IdentityGroupProprietary uint8 = 0xf
)

// IdentityType names the identity a peer is asked for
type IdentityType struct {
	Group uint8
	Kind  uint8 // PortableIDType, FixedIDType or NWK identity type
}

func (*IdentityType) Type() IEType { return IEIdentityType }

// PortableIDType is the identity carried in a portable identity IE
type PortableIDType uint8

const (
	PortableIDIPUI PortableIDType = 0x00
	PortableIDIPEI PortableIDType = 0x10
	PortableIDTPUI PortableIDType = 0x20
)

// PortableIdentity carries an IPUI, IPEI or TPUI
type PortableIdentity struct {
	Kind PortableIDType
	IPUI identity.IPUI
	IPEI identity.IPEI
	TPUI identity.TPUI
}

func (*PortableIdentity) Type() IEType { return IEPortableIdentity }

// FixedIDType is the identity carried in a fixed identity IE
type FixedIDType uint8

const (
	FixedIDARI    FixedIDType = 0x00
	FixedIDARIRPN FixedIDType = 0x01
	FixedIDARIWRS FixedIDType = 0x02
	FixedIDPARK   FixedIDType = 0x20
)

// FixedIdentity carries the FP's ARI, optionally with RPN or WRS, or a PARK
type FixedIdentity struct {
	Kind FixedIDType
	ARI  identity.ARI
	RPN  uint8 // RPN or WRS for the combined types
	PARK identity.PARK
}

func (*FixedIdentity) Type() IEType { return IEFixedIdentity }

// LocationAreaType selects which location levels are present
type LocationAreaType uint8

const (
	LocationAreaLevel    LocationAreaType = 0x1
	LocationAreaExtended LocationAreaType = 0x2
	LocationAreaBoth     LocationAreaType = 0x3
)

// LocationArea carries the location area level
type LocationArea struct {
	Kind  LocationAreaType
	Level uint8
}

func (*LocationArea) Type() IEType { return IELocationArea }

// NWK assigned identity types
const (
	NWKIdentityValue       uint8 = 0x74
	NWKIdentityProprietary uint8 = 0x7f
)

// NWKAssignedIdentity is an identity handed out by the network
type NWKAssignedIdentity struct {
	Kind  uint8
	Value []byte
	Bits  int
}

func (*NWKAssignedIdentity) Type() IEType { return IENWKAssignedIdentity }

// identityHeader decodes the two leading octets shared by the identity
// IEs: the type octet and the bit length octet.
func identityHeader(payload []byte) (uint8, int, []byte, error) {
	if err := wantLen(payload, 2); err != nil {
		return 0, 0, nil, err
	}
	bits := int(payload[1] & 0x7f)
	data := payload[2:]
	if (bits+7)/8 > len(data) {
		return 0, 0, nil, malformed("identity length %d bits exceeds %d octets", bits, len(data))
	}
	return payload[0] & 0x7f, bits, data, nil
}

func identityError(err error) error {
	if errors.Is(err, identity.ErrNotImplemented) {
		return fmt.Errorf("%w: %v", ErrNotImplemented, err)
	}
	return fmt.Errorf("%w: %v", ErrInvalidIE, err)
}

func parsePortableIdentity(h header) (IE, error) {
	kind, bits, data, err := identityHeader(h.payload)
	if err != nil {
		return nil, err
	}

	pi := &PortableIdentity{Kind: PortableIDType(kind)}
	switch pi.Kind {
	case PortableIDIPUI:
		if pi.IPUI, err = identity.ParseIPUI(data, bits); err != nil {
			return nil, identityError(err)
		}
	case PortableIDIPEI:
		if pi.IPEI, err = identity.ParseIPEI(data, bits); err != nil {
			return nil, identityError(err)
		}
	case PortableIDTPUI:
		if pi.TPUI, err = identity.ParseTPUI(data, bits); err != nil {
			return nil, identityError(err)
		}
	default:
		return nil, malformed("portable identity type %#x", kind)
	}
	return pi, nil
}

func buildPortableIdentity(ie IE) ([]byte, error) {
	pi := ie.(*PortableIdentity)
	var (
		data []byte
		bits int
		err  error
	)
	switch pi.Kind {
	case PortableIDIPUI:
		data, bits, err = pi.IPUI.Bits()
	case PortableIDIPEI:
		data, bits = pi.IPEI.Bits()
	case PortableIDTPUI:
		data, bits = pi.TPUI.Bits()
	default:
		return nil, malformed("portable identity type %#x", uint8(pi.Kind))
	}
	if err != nil {
		return nil, identityError(err)
	}
	return append([]byte{0x80 | uint8(pi.Kind), 0x80 | uint8(bits)}, data...), nil
}

func parseFixedIdentity(h header) (IE, error) {
	kind, bits, data, err := identityHeader(h.payload)
	if err != nil {
		return nil, err
	}

	fi := &FixedIdentity{Kind: FixedIDType(kind)}
	switch fi.Kind {
	case FixedIDARI:
		if fi.ARI, err = identity.ParseARI(data, bits); err != nil {
			return nil, identityError(err)
		}
	case FixedIDARIRPN, FixedIDARIWRS:
		if fi.ARI, fi.RPN, err = identity.ARIWithSuffix(data, bits); err != nil {
			return nil, identityError(err)
		}
	case FixedIDPARK:
		// the length octet is the PARK length indicator plus one; the
		// ARI always follows in full
		if bits == 0 {
			return nil, malformed("PARK length indicator missing")
		}
		ari, err := identity.ParseARI(data, len(data)*8)
		if err != nil {
			return nil, identityError(err)
		}
		fi.PARK = identity.PARK{ARI: ari, PLI: uint8(bits - 1)}
	default:
		return nil, malformed("fixed identity type %#x", kind)
	}
	return fi, nil
}

func buildFixedIdentity(ie IE) ([]byte, error) {
	fi := ie.(*FixedIdentity)
	var (
		data []byte
		bits int
		err  error
	)
	switch fi.Kind {
	case FixedIDARI:
		data, bits, err = fi.ARI.Bits()
	case FixedIDARIRPN, FixedIDARIWRS:
		data, bits, err = fi.ARI.BitsWithSuffix(fi.RPN)
	case FixedIDPARK:
		data, _, err = fi.PARK.ARI.Bits()
		bits = int(fi.PARK.PLI) + 1
	default:
		return nil, malformed("fixed identity type %#x", uint8(fi.Kind))
	}
	if err != nil {
		return nil, identityError(err)
	}
	return append([]byte{0x80 | uint8(fi.Kind), 0x80 | uint8(bits)}, data...), nil
}

func init() {
	register(IEIdentityType, "IDENTITY-TYPE",
		func(h header) (IE, error) {
			if err := wantLen(h.payload, 2); err != nil {
				return nil, err
			}
			return &IdentityType{Group: h.payload[0] & 0xf, Kind: h.payload[1] & 0x7f}, nil
		},
		func(ie IE) ([]byte, error) {
			it := ie.(*IdentityType)
			return []byte{0x80 | it.Group&0xf, 0x80 | it.Kind}, nil
		})

	register(IEPortableIdentity, "PORTABLE-IDENTITY", parsePortableIdentity, buildPortableIdentity)
	register(IEFixedIdentity, "FIXED-IDENTITY", parseFixedIdentity, buildFixedIdentity)

	register(IELocationArea, "LOCATION-AREA",
		func(h header) (IE, error) {
			if err := wantLen(h.payload, 1); err != nil {
				return nil, err
			}
			b := h.payload[0]
			return &LocationArea{Kind: LocationAreaType(b >> 6), Level: b & 0x3f}, nil
		},
		func(ie IE) ([]byte, error) {
			la := ie.(*LocationArea)
			return []byte{uint8(la.Kind)<<6 | la.Level&0x3f}, nil
		})

	register(IENWKAssignedIdentity, "NWK-ASSIGNED-IDENTITY",
		func(h header) (IE, error) {
			kind, bits, data, err := identityHeader(h.payload)
			if err != nil {
				return nil, err
			}
			return &NWKAssignedIdentity{Kind: kind, Bits: bits, Value: clone(data[:(bits+7)/8])}, nil
		},
		func(ie IE) ([]byte, error) {
			ni := ie.(*NWKAssignedIdentity)
			if (ni.Bits+7)/8 > len(ni.Value) || ni.Bits > 0x7f {
				return nil, malformed("NWK identity of %d bits in %d octets", ni.Bits, len(ni.Value))
			}
			out := []byte{0x80 | ni.Kind, 0x80 | uint8(ni.Bits)}
			return append(out, ni.Value[:(ni.Bits+7)/8]...), nil
		})
}
