package sfmt

import "fmt"

// IEType identifies an S-Format information element. Fixed length
// single-octet IEs are identified by their high nibble, extended
// single-octet and double-octet IEs by their full first octet and
// variable length IEs by their 7-bit identifier.
type IEType uint8

// Fixed length single-octet IEs
const (
	IEShift           IEType = 0x90
	IERepeatIndicator IEType = 0xd0
)

const (
	fixedIEFlag        = 0x80
	fixedIdentMask     = 0xf0
	fixedValueMask     = 0x0f
	fixedTypeExtended  = 0x2
	fixedTypeDoubleOct = 0x6
)

// Extended single-octet IEs
const (
	IESendingComplete  IEType = 0xa1
	IEDelimiterRequest IEType = 0xa2
	IEUseTPUI          IEType = 0xa3
)

// Double-octet IEs
const (
	IEBasicService    IEType = 0xe0
	IEReleaseReason   IEType = 0xe2
	IESignal          IEType = 0xe4
	IETimerRestart    IEType = 0xe5
	IETestHookControl IEType = 0xe6
	IESingleDisplay   IEType = 0xe8
	IESingleKeypad    IEType = 0xe9
)

// Variable length IEs
const (
	IEInfoType              IEType = 0x01
	IEIdentityType          IEType = 0x02
	IEPortableIdentity      IEType = 0x05
	IEFixedIdentity         IEType = 0x06
	IELocationArea          IEType = 0x07
	IENWKAssignedIdentity   IEType = 0x09
	IEAuthType              IEType = 0x0a
	IEAllocationType        IEType = 0x0b
	IERAND                  IEType = 0x0c
	IERES                   IEType = 0x0d
	IERS                    IEType = 0x0e
	IECipherInfo            IEType = 0x19
	IEFacility              IEType = 0x1c
	IEProgressIndicator     IEType = 0x1e
	IETimeDate              IEType = 0x23
	IEMultiDisplay          IEType = 0x28
	IEMultiKeypad           IEType = 0x2c
	IEFeatureActivate       IEType = 0x38
	IEFeatureIndicate       IEType = 0x39
	IENetworkParameter      IEType = 0x41
	IEZAPField              IEType = 0x52
	IEServiceClass          IEType = 0x54
	IEKey                   IEType = 0x56
	IERejectReason          IEType = 0x60
	IESetupCapability       IEType = 0x62
	IETerminalCapability    IEType = 0x63
	IECallingPartyNumber    IEType = 0x6c
	IECallingPartyName      IEType = 0x6d
	IECalledPartyNumber     IEType = 0x70
	IECalledPartySubaddress IEType = 0x71
	IEDuration              IEType = 0x72
	IEIWUToIWU              IEType = 0x77
	IEModelIdentifier       IEType = 0x78
	IEEscapeToProprietary   IEType = 0x7b
	IECodecList             IEType = 0x7c
	IEEventsNotification    IEType = 0x7d
)

// IE is an information element value
type IE interface {
	Type() IEType
}

type ieClass uint8

const (
	classFixed ieClass = iota
	classExtended
	classDouble
	classVariable
)

func (t IEType) class() ieClass {
	if uint8(t)&fixedIEFlag == 0 {
		return classVariable
	}
	switch (uint8(t) >> 4) & 0x7 {
	case fixedTypeDoubleOct:
		return classDouble
	case fixedTypeExtended:
		return classExtended
	default:
		return classFixed
	}
}

func (t IEType) String() string {
	if c, ok := codecs[t]; ok {
		return c.name
	}
	return fmt.Sprintf("IE-%#02x", uint8(t))
}

// header is a decoded IE header. For fixed IEs val holds the low nibble,
// for double-octet IEs the second octet.
type header struct {
	id      IEType
	size    int
	val     uint8
	payload []byte
}

func parseHeader(data []byte) (header, error) {
	if len(data) == 0 {
		return header{}, malformed("empty IE")
	}
	b0 := data[0]
	if b0&fixedIEFlag == 0 {
		if len(data) < 2 {
			return header{}, malformed("truncated IE header")
		}
		n := int(data[1])
		if len(data) < 2+n {
			return header{}, malformed("IE %#02x length %d exceeds %d remaining", b0, n, len(data)-2)
		}
		return header{id: IEType(b0), size: 2 + n, payload: data[2 : 2+n]}, nil
	}

	switch IEType(b0).class() {
	case classDouble:
		if len(data) < 2 {
			return header{}, malformed("truncated double octet IE %#02x", b0)
		}
		return header{id: IEType(b0), size: 2, val: data[1]}, nil
	case classExtended:
		return header{id: IEType(b0), size: 1}, nil
	default:
		return header{id: IEType(b0 & fixedIdentMask), size: 1, val: b0 & fixedValueMask}, nil
	}
}

// codec is the parse/build pair of one IE type. build returns the fixed
// value (one octet) or the variable payload.
type codec struct {
	name  string
	parse func(h header) (IE, error)
	build func(ie IE) ([]byte, error)
}

var codecs = map[IEType]codec{}

func register(t IEType, name string, parse func(h header) (IE, error), build func(ie IE) ([]byte, error)) {
	codecs[t] = codec{name: name, parse: parse, build: build}
}

// parseIE decodes the IE behind h
func parseIE(h header) (IE, error) {
	c, ok := codecs[h.id]
	if !ok {
		return nil, fmt.Errorf("%w: IE %#02x", ErrNotImplemented, uint8(h.id))
	}
	return c.parse(h)
}

// appendIE encodes ie including its header
func appendIE(out []byte, ie IE) ([]byte, error) {
	t := ie.Type()
	c, ok := codecs[t]
	if !ok {
		return out, fmt.Errorf("%w: IE %#02x", ErrNotImplemented, uint8(t))
	}
	v, err := c.build(ie)
	if err != nil {
		return out, err
	}

	switch t.class() {
	case classFixed:
		var val uint8
		if len(v) > 0 {
			val = v[0] & fixedValueMask
		}
		return append(out, uint8(t)|val), nil
	case classExtended:
		return append(out, uint8(t)), nil
	case classDouble:
		if len(v) != 1 {
			return out, malformed("%s needs one value octet", c.name)
		}
		return append(out, uint8(t), v[0]), nil
	default:
		if len(v) > 0xff {
			return out, malformed("%s payload %d octets", c.name, len(v))
		}
		out = append(out, uint8(t), uint8(len(v)))
		return append(out, v...), nil
	}
}

// EncodeIE encodes a single IE including its header
func EncodeIE(ie IE) ([]byte, error) {
	return appendIE(nil, ie)
}

// DecodeIE decodes a single IE from the front of data and returns the
// number of octets consumed. An empty variable length IE yields a nil IE.
func DecodeIE(data []byte) (IE, int, error) {
	h, err := parseHeader(data)
	if err != nil {
		return nil, 0, err
	}
	if h.id.class() == classVariable && len(h.payload) == 0 {
		return nil, h.size, nil
	}
	ie, err := parseIE(h)
	return ie, h.size, err
}

// octetGroups splits a payload into octet groups. Bit 7 set marks the
// last octet of a group; the returned octets carry 7 data bits.
func octetGroups(payload []byte) ([][]byte, error) {
	var groups [][]byte
	var cur []byte
	for _, b := range payload {
		cur = append(cur, b&0x7f)
		if b&0x80 != 0 {
			groups = append(groups, cur)
			cur = nil
		}
	}
	if len(cur) != 0 {
		return nil, malformed("unterminated octet group")
	}
	return groups, nil
}

// appendGroup appends 7-bit values as one octet group
func appendGroup(out []byte, vals ...uint8) []byte {
	for i, v := range vals {
		v &= 0x7f
		if i == len(vals)-1 {
			v |= 0x80
		}
		out = append(out, v)
	}
	return out
}
