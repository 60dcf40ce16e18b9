package sfmt

import "encoding/binary"

// Authentication algorithms
const (
	AuthAlgorithmDSAA        uint8 = 0x01
	AuthAlgorithmDSAA2       uint8 = 0x02
	AuthAlgorithmGSM         uint8 = 0x40
	AuthAlgorithmUMTS        uint8 = 0x20
	AuthAlgorithmProprietary uint8 = 0x7f
)

// Authentication key types
const (
	AuthKeyUserAuthenticationKey uint8 = 0x1
	AuthKeyUserPersonalIdentity  uint8 = 0x3
	AuthKeyAuthenticationCode    uint8 = 0x4
)

// Authentication type flags
const (
	AuthFlagINC uint8 = 0x8 // increment key allocation counter
	AuthFlagDEF uint8 = 0x4 // default cipher key index follows
	AuthFlagTXC uint8 = 0x2 // transmit cipher key
	AuthFlagUPC uint8 = 0x1 // store UPI
)

// AuthType describes the algorithm and keys used for authentication
type AuthType struct {
	Algorithm       uint8
	Proprietary     uint8 // proprietary algorithm identifier
	KeyType         uint8
	KeyNumber       uint8
	Flags           uint8
	CipherKeyNumber uint8
	DefaultCKIndex  uint16
}

func (*AuthType) Type() IEType { return IEAuthType }

// AllocationType describes the key allocation algorithm
type AllocationType struct {
	Algorithm  uint8
	KeyNumber  uint8
	CodeNumber uint8
}

func (*AllocationType) Type() IEType { return IEAllocationType }

// RAND is the 64-bit authentication challenge
type RAND struct {
	Value uint64
}

func (*RAND) Type() IEType { return IERAND }

// RES is the 32-bit authentication response
type RES struct {
	Value uint32
}

func (*RES) Type() IEType { return IERES }

// RS is the 64-bit session key seed
type RS struct {
	Value uint64
}

func (*RS) Type() IEType { return IERS }

// Cipher algorithms
const (
	CipherAlgorithmDSC  uint8 = 0x01
	CipherAlgorithmDSC2 uint8 = 0x02
)

// Cipher key types
const (
	CipherKeyDerived uint8 = 0x9
	CipherKeyStatic  uint8 = 0xa
)

// CipherInfo requests ciphering on or off
type CipherInfo struct {
	Enable    bool
	Algorithm uint8
	KeyType   uint8
	KeyNumber uint8
}

func (*CipherInfo) Type() IEType { return IECipherInfo }

// Key types
const (
	KeyTypeUAK uint8 = 0x90
	KeyTypeCK  uint8 = 0xa0
)

// Key carries key material
type Key struct {
	Kind uint8
	Data []byte
}

func (*Key) Type() IEType { return IEKey }

// ZAP carries the zap value of the subscription
type ZAP struct {
	Value uint8
}

func (*ZAP) Type() IEType { return IEZAPField }

// ServiceClass carries the service class of the subscription
type ServiceClass struct {
	Class uint8
}

func (*ServiceClass) Type() IEType { return IEServiceClass }

// RejectReason carries the cause of an MM or CISS rejection
type RejectReason struct {
	Reason RejectCode
}

func (*RejectReason) Type() IEType { return IERejectReason }

func parseAuthType(h header) (IE, error) {
	p := h.payload
	if err := wantLen(p, 3); err != nil {
		return nil, err
	}
	at := &AuthType{Algorithm: p[0] & 0x7f}
	p = p[1:]
	if at.Algorithm == AuthAlgorithmProprietary {
		if err := wantLen(p, 3); err != nil {
			return nil, err
		}
		at.Proprietary = p[0]
		p = p[1:]
	}
	at.KeyType = p[0] >> 4
	at.KeyNumber = p[0] & 0xf
	at.Flags = p[1] >> 4
	at.CipherKeyNumber = p[1] & 0xf
	if at.Flags&AuthFlagDEF != 0 {
		if err := wantLen(p, 4); err != nil {
			return nil, err
		}
		at.DefaultCKIndex = binary.BigEndian.Uint16(p[2:4])
	}
	return at, nil
}

func buildAuthType(ie IE) ([]byte, error) {
	at := ie.(*AuthType)
	out := []byte{at.Algorithm & 0x7f}
	if at.Algorithm == AuthAlgorithmProprietary {
		out = append(out, at.Proprietary)
	}
	out = append(out, at.KeyType<<4|at.KeyNumber&0xf, at.Flags<<4|at.CipherKeyNumber&0xf)
	if at.Flags&AuthFlagDEF != 0 {
		out = binary.BigEndian.AppendUint16(out, at.DefaultCKIndex)
	}
	return out, nil
}

func fixedInt(n int, parse func(p []byte) IE, build func(ie IE) []byte) (func(header) (IE, error), func(IE) ([]byte, error)) {
	return func(h header) (IE, error) {
			if len(h.payload) != n {
				return nil, malformed("need exactly %d octets, have %d", n, len(h.payload))
			}
			return parse(h.payload), nil
		}, func(ie IE) ([]byte, error) {
			return build(ie), nil
		}
}

func init() {
	register(IEAuthType, "AUTH-TYPE", parseAuthType, buildAuthType)

	register(IEAllocationType, "ALLOCATION-TYPE",
		func(h header) (IE, error) {
			if err := wantLen(h.payload, 2); err != nil {
				return nil, err
			}
			return &AllocationType{
				Algorithm:  h.payload[0] & 0x7f,
				KeyNumber:  h.payload[1] >> 4,
				CodeNumber: h.payload[1] & 0xf,
			}, nil
		},
		func(ie IE) ([]byte, error) {
			a := ie.(*AllocationType)
			return []byte{a.Algorithm & 0x7f, a.KeyNumber<<4 | a.CodeNumber&0xf}, nil
		})

	p, b := fixedInt(8,
		func(p []byte) IE { return &RAND{Value: binary.BigEndian.Uint64(p)} },
		func(ie IE) []byte { return binary.BigEndian.AppendUint64(nil, ie.(*RAND).Value) })
	register(IERAND, "RAND", p, b)

	p, b = fixedInt(4,
		func(p []byte) IE { return &RES{Value: binary.BigEndian.Uint32(p)} },
		func(ie IE) []byte { return binary.BigEndian.AppendUint32(nil, ie.(*RES).Value) })
	register(IERES, "RES", p, b)

	p, b = fixedInt(8,
		func(p []byte) IE { return &RS{Value: binary.BigEndian.Uint64(p)} },
		func(ie IE) []byte { return binary.BigEndian.AppendUint64(nil, ie.(*RS).Value) })
	register(IERS, "RS", p, b)

	register(IECipherInfo, "CIPHER-INFO",
		func(h header) (IE, error) {
			if err := wantLen(h.payload, 2); err != nil {
				return nil, err
			}
			return &CipherInfo{
				Enable:    h.payload[0]&0x80 != 0,
				Algorithm: h.payload[0] & 0x7f,
				KeyType:   h.payload[1] >> 4,
				KeyNumber: h.payload[1] & 0xf,
			}, nil
		},
		func(ie IE) ([]byte, error) {
			ci := ie.(*CipherInfo)
			v := ci.Algorithm & 0x7f
			if ci.Enable {
				v |= 0x80
			}
			return []byte{v, ci.KeyType<<4 | ci.KeyNumber&0xf}, nil
		})

	register(IEKey, "KEY",
		func(h header) (IE, error) {
			if err := wantLen(h.payload, 1); err != nil {
				return nil, err
			}
			return &Key{Kind: h.payload[0], Data: clone(h.payload[1:])}, nil
		},
		func(ie IE) ([]byte, error) {
			k := ie.(*Key)
			return append([]byte{k.Kind}, k.Data...), nil
		})

	p, b = fixedInt(1,
		func(p []byte) IE { return &ZAP{Value: p[0]} },
		func(ie IE) []byte { return []byte{ie.(*ZAP).Value} })
	register(IEZAPField, "ZAP-FIELD", p, b)

	p, b = fixedInt(1,
		func(p []byte) IE { return &ServiceClass{Class: p[0]} },
		func(ie IE) []byte { return []byte{ie.(*ServiceClass).Class} })
	register(IEServiceClass, "SERVICE-CLASS", p, b)

	register(IERejectReason, "REJECT-REASON",
		func(h header) (IE, error) {
			if err := wantLen(h.payload, 1); err != nil {
				return nil, err
			}
			return &RejectReason{Reason: RejectCode(h.payload[0])}, nil
		},
		func(ie IE) ([]byte, error) {
			return []byte{uint8(ie.(*RejectReason).Reason)}, nil
		})
}
