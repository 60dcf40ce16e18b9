package lce

import (
	"errors"
	"fmt"
)

// PD is the protocol discriminator of an S-Format message
type PD uint8

const (
	PDLCE  PD = 0x0
	PDCC   PD = 0x3
	PDCISS PD = 0x4
	PDMM   PD = 0x5
	PDCLMS PD = 0x6
	PDCOMS PD = 0x7
)

func (pd PD) String() string {
	switch pd {
	case PDLCE:
		return "LCE"
	case PDCC:
		return "CC"
	case PDCISS:
		return "CISS"
	case PDMM:
		return "MM"
	case PDCLMS:
		return "CLMS"
	case PDCOMS:
		return "COMS"
	default:
		return fmt.Sprintf("PD-%d", uint8(pd))
	}
}

// Role is the local role in a transaction
type Role uint8

const (
	RoleInitiator Role = iota
	RoleResponder
)

func (r Role) String() string {
	if r == RoleInitiator {
		return "initiator"
	}
	return "responder"
}

const (
	// HeaderSize is the length of the transaction header
	HeaderSize = 2
	// TVExtension is the transaction value announcing an extended TV
	TVExtension = 7
	// MaxTV bounds the transaction values a protocol may register
	MaxTV = TVExtension

	headerFlag    = 0x80
	headerTVShift = 4
	headerTVMask  = 0x7
	headerPDMask  = 0x0f
	msgTypeMask   = 0x7f
)

// ErrExtendedTV is returned for headers using the TV extension
var ErrExtendedTV = errors.New("extended transaction value not implemented")

// Header is the two-octet S-Format transaction header
type Header struct {
	Flag    bool // set when the sender is the transaction responder
	TV      uint8
	PD      PD
	MsgType uint8
}

// ParseHeader decodes a transaction header
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("short header: %d octets", len(b))
	}
	h := Header{
		Flag:    b[0]&headerFlag != 0,
		TV:      b[0] >> headerTVShift & headerTVMask,
		PD:      PD(b[0] & headerPDMask),
		MsgType: b[1] & msgTypeMask,
	}
	if h.TV == TVExtension {
		return h, ErrExtendedTV
	}
	return h, nil
}

// Put encodes the header into p
func (h Header) Put(p []byte) {
	p[0] = (h.TV&headerTVMask)<<headerTVShift | uint8(h.PD)&headerPDMask
	if h.Flag {
		p[0] |= headerFlag
	}
	p[1] = h.MsgType & msgTypeMask
}

// LocalRole returns the receiver's role for a received header
func (h Header) LocalRole() Role {
	if h.Flag {
		return RoleInitiator
	}
	return RoleResponder
}
