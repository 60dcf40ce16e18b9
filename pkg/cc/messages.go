package cc

import "github.com/dbehnke/dect-nwk/pkg/sfmt"

// CC message types
const (
	MsgAlerting   uint8 = 0x01
	MsgCallProc   uint8 = 0x02
	MsgSetup      uint8 = 0x05
	MsgConnect    uint8 = 0x07
	MsgSetupAck   uint8 = 0x0d
	MsgConnectAck uint8 = 0x0f
	MsgRelease    uint8 = 0x4d
	MsgReleaseCom uint8 = 0x5a
	MsgInfo       uint8 = 0x7b
)

var (
	pNone = sfmt.PolicyNone
	pOpt  = sfmt.PolicyOptional
)

// Setup starts a call
type Setup struct {
	PortableIdentity      *sfmt.PortableIdentity
	FixedIdentity         *sfmt.FixedIdentity
	BasicService          *sfmt.BasicService
	Signal                *sfmt.Signal
	CallingPartyNumber    *sfmt.CallingPartyNumber
	CallingPartyName      *sfmt.CallingPartyName
	CalledPartyNumber     *sfmt.CalledPartyNumber
	CalledPartySubaddress *sfmt.CalledPartySubaddress
	SendingComplete       *sfmt.SendingComplete
	Display               *sfmt.Display
	Keypad                *sfmt.Keypad
	IWUToIWU              *sfmt.IWUToIWU
	CodecList             *sfmt.CodecList
	Escape                *sfmt.EscapeToProprietary
}

var setupDesc = sfmt.NewMsgDesc("CC-SETUP",
	sfmt.Mandatory(sfmt.IEPortableIdentity),
	sfmt.Mandatory(sfmt.IEFixedIdentity),
	sfmt.Mandatory(sfmt.IEBasicService),
	sfmt.Desc(sfmt.IESignal, pOpt, pNone),
	sfmt.Optional(sfmt.IECallingPartyNumber),
	sfmt.Optional(sfmt.IECallingPartyName),
	sfmt.Optional(sfmt.IECalledPartyNumber),
	sfmt.Optional(sfmt.IECalledPartySubaddress),
	sfmt.Desc(sfmt.IESendingComplete, pNone, pOpt),
	sfmt.Desc(sfmt.IESingleDisplay, pOpt, pNone),
	sfmt.Desc(sfmt.IESingleKeypad, pNone, pOpt),
	sfmt.Optional(sfmt.IEIWUToIWU),
	sfmt.Optional(sfmt.IECodecList),
	sfmt.Optional(sfmt.IEEscapeToProprietary),
)

func (m *Setup) Slots() []sfmt.Slot {
	return []sfmt.Slot{
		sfmt.Ref(&m.PortableIdentity),
		sfmt.Ref(&m.FixedIdentity),
		sfmt.Ref(&m.BasicService),
		sfmt.Ref(&m.Signal),
		sfmt.Ref(&m.CallingPartyNumber),
		sfmt.Ref(&m.CallingPartyName),
		sfmt.Ref(&m.CalledPartyNumber),
		sfmt.Ref(&m.CalledPartySubaddress),
		sfmt.Ref(&m.SendingComplete),
		sfmt.Ref(&m.Display),
		sfmt.Ref(&m.Keypad),
		sfmt.Ref(&m.IWUToIWU),
		sfmt.Ref(&m.CodecList),
		sfmt.Ref(&m.Escape),
	}
}

// Progress is the shape of SETUP-ACK, CALL-PROC, ALERTING and CONNECT
type Progress struct {
	ProgressIndicator *sfmt.ProgressIndicator
	Display           *sfmt.Display
	Signal            *sfmt.Signal
	DelimiterRequest  *sfmt.DelimiterRequest
	IWUToIWU          *sfmt.IWUToIWU
	CodecList         *sfmt.CodecList
	Escape            *sfmt.EscapeToProprietary
}

func (m *Progress) Slots() []sfmt.Slot {
	return []sfmt.Slot{
		sfmt.Ref(&m.ProgressIndicator),
		sfmt.Ref(&m.Display),
		sfmt.Ref(&m.Signal),
		sfmt.Ref(&m.DelimiterRequest),
		sfmt.Ref(&m.IWUToIWU),
		sfmt.Ref(&m.CodecList),
		sfmt.Ref(&m.Escape),
	}
}

func progressDesc(name string, ppToFP bool) *sfmt.MsgDesc {
	pp := pNone
	if ppToFP {
		pp = pOpt
	}
	return sfmt.NewMsgDesc(name,
		sfmt.Desc(sfmt.IEProgressIndicator, pOpt, pp),
		sfmt.Desc(sfmt.IESingleDisplay, pOpt, pNone),
		sfmt.Desc(sfmt.IESignal, pOpt, pNone),
		sfmt.Desc(sfmt.IEDelimiterRequest, pOpt, pNone),
		sfmt.Desc(sfmt.IEIWUToIWU, pOpt, pp),
		sfmt.Desc(sfmt.IECodecList, pOpt, pp),
		sfmt.Desc(sfmt.IEEscapeToProprietary, pOpt, pp),
	)
}

var (
	setupAckDesc = progressDesc("CC-SETUP-ACK", false)
	callProcDesc = progressDesc("CC-CALL-PROC", true)
	alertingDesc = progressDesc("CC-ALERTING", true)
	connectDesc  = progressDesc("CC-CONNECT", true)
)

// ConnectAck confirms CONNECT
type ConnectAck struct {
	Display  *sfmt.Display
	IWUToIWU *sfmt.IWUToIWU
	Escape   *sfmt.EscapeToProprietary
}

var connectAckDesc = sfmt.NewMsgDesc("CC-CONNECT-ACK",
	sfmt.Desc(sfmt.IESingleDisplay, pOpt, pNone),
	sfmt.Optional(sfmt.IEIWUToIWU),
	sfmt.Optional(sfmt.IEEscapeToProprietary),
)

func (m *ConnectAck) Slots() []sfmt.Slot {
	return []sfmt.Slot{
		sfmt.Ref(&m.Display),
		sfmt.Ref(&m.IWUToIWU),
		sfmt.Ref(&m.Escape),
	}
}

// Info carries dialling and display information during a call
type Info struct {
	CallingPartyNumber *sfmt.CallingPartyNumber
	CalledPartyNumber  *sfmt.CalledPartyNumber
	SendingComplete    *sfmt.SendingComplete
	Display            *sfmt.Display
	Keypad             *sfmt.Keypad
	Signal             *sfmt.Signal
	IWUToIWU           *sfmt.IWUToIWU
	Escape             *sfmt.EscapeToProprietary
}

var infoDesc = sfmt.NewMsgDesc("CC-INFO",
	sfmt.Optional(sfmt.IECallingPartyNumber),
	sfmt.Optional(sfmt.IECalledPartyNumber),
	sfmt.Desc(sfmt.IESendingComplete, pNone, pOpt),
	sfmt.Desc(sfmt.IESingleDisplay, pOpt, pNone),
	sfmt.Desc(sfmt.IESingleKeypad, pNone, pOpt),
	sfmt.Desc(sfmt.IESignal, pOpt, pNone),
	sfmt.Optional(sfmt.IEIWUToIWU),
	sfmt.Optional(sfmt.IEEscapeToProprietary),
)

func (m *Info) Slots() []sfmt.Slot {
	return []sfmt.Slot{
		sfmt.Ref(&m.CallingPartyNumber),
		sfmt.Ref(&m.CalledPartyNumber),
		sfmt.Ref(&m.SendingComplete),
		sfmt.Ref(&m.Display),
		sfmt.Ref(&m.Keypad),
		sfmt.Ref(&m.Signal),
		sfmt.Ref(&m.IWUToIWU),
		sfmt.Ref(&m.Escape),
	}
}

// Release is the shape of RELEASE and RELEASE-COM
type Release struct {
	ReleaseReason *sfmt.ReleaseReason
	Display       *sfmt.Display
	IWUToIWU      *sfmt.IWUToIWU
	Escape        *sfmt.EscapeToProprietary
}

func (m *Release) Slots() []sfmt.Slot {
	return []sfmt.Slot{
		sfmt.Ref(&m.ReleaseReason),
		sfmt.Ref(&m.Display),
		sfmt.Ref(&m.IWUToIWU),
		sfmt.Ref(&m.Escape),
	}
}

// reason returns the release reason, Normal when absent
func (m *Release) reason() sfmt.ReleaseCode {
	if m.ReleaseReason == nil {
		return sfmt.ReleaseNormal
	}
	return m.ReleaseReason.Reason
}

func releaseDesc(name string) *sfmt.MsgDesc {
	return sfmt.NewMsgDesc(name,
		sfmt.Optional(sfmt.IEReleaseReason),
		sfmt.Desc(sfmt.IESingleDisplay, pOpt, pNone),
		sfmt.Optional(sfmt.IEIWUToIWU),
		sfmt.Optional(sfmt.IEEscapeToProprietary),
	)
}

var (
	releaseMsgDesc    = releaseDesc("CC-RELEASE")
	releaseComMsgDesc = releaseDesc("CC-RELEASE-COM")
)
