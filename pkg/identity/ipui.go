package identity

import (
	"fmt"
	"strconv"
)

// IPUIType is the 4-bit portable user identity type (PUT)
type IPUIType uint8

const (
	IPUITypeN IPUIType = 0x0 // residential/default, PUN is the IPEI
	IPUITypeO IPUIType = 0x1 // private
	IPUITypeP IPUIType = 0x2 // public/public access service
	IPUITypeQ IPUIType = 0x3 // public/general
	IPUITypeR IPUIType = 0x4 // public/IMSI
	IPUITypeS IPUIType = 0x5 // PSTN/ISDN
	IPUITypeT IPUIType = 0x6 // private extended
	IPUITypeU IPUIType = 0x7 // public/general
)

// String returns the identity type letter
func (t IPUIType) String() string {
	if t <= IPUITypeU {
		return string(rune('N' + t))
	}
	return "unknown"
}

// IPEI field widths
const (
	EMCBits  = 16
	PSNBits  = 20
	IPEIBits = EMCBits + PSNBits

	ipuiTypeBits = 4
	ipuiOBits    = 60
	fpnTBits     = 20
)

// IPEI is the International Portable Equipment Identity
type IPEI struct {
	EMC uint16 // equipment manufacturer code
	PSN uint32 // portable equipment serial number, 20 bits
}

// Encode returns the 36-bit on-wire form
func (e IPEI) Encode() uint64 {
	return uint64(e.EMC)<<PSNBits | uint64(e.PSN&0xfffff)
}

// DecodeIPEI splits a 36-bit IPEI value
func DecodeIPEI(v uint64) IPEI {
	return IPEI{
		EMC: uint16(v >> PSNBits),
		PSN: uint32(v & 0xfffff),
	}
}

// String formats the IPEI the way handsets display it: five EMC digits,
// seven PSN digits and a check character.
func (e IPEI) String() string {
	digits := fmt.Sprintf("%05d%07d", e.EMC, e.PSN)
	sum := 0
	for i, c := range digits {
		sum += (i + 1) * int(c-'0')
	}
	check := "*"
	if sum%11 != 10 {
		check = strconv.Itoa(sum % 11)
	}
	return fmt.Sprintf("%s %s %s", digits[:5], digits[5:], check)
}

// IPUI is the International Portable User Identity. Only the fields
// belonging to Type are meaningful.
type IPUI struct {
	Type   IPUIType
	IPEI   IPEI   // type N
	Number uint64 // type O, 60 bits
	EMC    uint16 // type T
	FPN    uint32 // type T, 20 bits
}

// String renders the identity for logs and API output
func (i IPUI) String() string {
	switch i.Type {
	case IPUITypeN:
		return fmt.Sprintf("N:%04x%05x", i.IPEI.EMC, i.IPEI.PSN)
	case IPUITypeO:
		return fmt.Sprintf("O:%015x", i.Number)
	case IPUITypeT:
		return fmt.Sprintf("T:%04x%05x", i.EMC, i.FPN)
	default:
		return fmt.Sprintf("%s:?", i.Type)
	}
}

// Bits encodes the IPUI as PUT followed by PUN, returning the packed bytes
// and the significant bit count.
func (i IPUI) Bits() ([]byte, int, error) {
	w := &bitWriter{}
	w.write(uint64(i.Type), ipuiTypeBits)
	switch i.Type {
	case IPUITypeN:
		w.write(i.IPEI.Encode(), IPEIBits)
	case IPUITypeO:
		w.write(i.Number, ipuiOBits)
	case IPUITypeT:
		w.write(uint64(i.EMC), EMCBits)
		w.write(uint64(i.FPN), fpnTBits)
	default:
		return nil, 0, fmt.Errorf("%w: IPUI type %s", ErrNotImplemented, i.Type)
	}
	return w.buf, w.n, nil
}

// ParseIPUI decodes an IPUI from packed bits
func ParseIPUI(data []byte, bits int) (IPUI, error) {
	r, err := newBitReader(data, bits)
	if err != nil {
		return IPUI{}, err
	}
	put, err := r.read(ipuiTypeBits)
	if err != nil {
		return IPUI{}, err
	}

	i := IPUI{Type: IPUIType(put)}
	switch i.Type {
	case IPUITypeN:
		v, err := r.read(IPEIBits)
		if err != nil {
			return IPUI{}, err
		}
		i.IPEI = DecodeIPEI(v)
	case IPUITypeO:
		if i.Number, err = r.read(ipuiOBits); err != nil {
			return IPUI{}, err
		}
	case IPUITypeT:
		emc, err := r.read(EMCBits)
		if err != nil {
			return IPUI{}, err
		}
		fpn, err := r.read(fpnTBits)
		if err != nil {
			return IPUI{}, err
		}
		i.EMC, i.FPN = uint16(emc), uint32(fpn)
	default:
		return IPUI{}, fmt.Errorf("%w: IPUI type %s", ErrNotImplemented, i.Type)
	}
	return i, nil
}

// TPUI is a 20-bit temporary portable user identity
type TPUI uint32

// TPUIType classifies a TPUI by its leading digits
type TPUIType uint8

const (
	TPUIIndividualAssigned TPUIType = iota
	TPUIConnectionlessGroup
	TPUICallGroup
	TPUIIndividualDefault
	TPUIEmergency
)

// TPUIBits is the on-air width of a TPUI
const TPUIBits = 20

// Type returns the TPUI class
func (t TPUI) Type() TPUIType {
	switch v := uint32(t) & 0xfffff; {
	case v == 0xf1000:
		return TPUIEmergency
	case v>>16 == 0xe:
		return TPUIIndividualDefault
	case v>>16 == 0xd || v>>16 == 0xc:
		return TPUIConnectionlessGroup
	case v>>16 == 0xf:
		return TPUICallGroup
	default:
		return TPUIIndividualAssigned
	}
}

func (t TPUI) String() string {
	return fmt.Sprintf("%05x", uint32(t)&0xfffff)
}

// DefaultTPUI derives the default individual TPUI from the last 16 bits
// of the IPUI.
func DefaultTPUI(i IPUI) TPUI {
	var low uint64
	switch i.Type {
	case IPUITypeN:
		low = uint64(i.IPEI.PSN)
	case IPUITypeO:
		low = i.Number
	case IPUITypeT:
		low = uint64(i.FPN)
	}
	return TPUI(0xe0000 | uint32(low&0xffff))
}

// Bits packs the TPUI into three bytes, left aligned
func (t TPUI) Bits() ([]byte, int) {
	w := &bitWriter{}
	w.write(uint64(t)&0xfffff, TPUIBits)
	return w.buf, w.n
}

// ParseTPUI decodes a 20-bit TPUI
func ParseTPUI(data []byte, bits int) (TPUI, error) {
	r, err := newBitReader(data, bits)
	if err != nil {
		return 0, err
	}
	v, err := r.read(TPUIBits)
	if err != nil {
		return 0, err
	}
	return TPUI(v), nil
}

// Bits packs the 36-bit IPEI MSB first
func (e IPEI) Bits() ([]byte, int) {
	w := &bitWriter{}
	w.write(e.Encode(), IPEIBits)
	return w.buf, w.n
}

// ParseIPEI decodes a 36-bit IPEI
func ParseIPEI(data []byte, bits int) (IPEI, error) {
	r, err := newBitReader(data, bits)
	if err != nil {
		return IPEI{}, err
	}
	v, err := r.read(IPEIBits)
	if err != nil {
		return IPEI{}, err
	}
	return DecodeIPEI(v), nil
}
