package ss

import "github.com/dbehnke/dect-nwk/pkg/sfmt"

// CISS message types
const (
	MsgReleaseCom uint8 = 0x5a
	MsgFacility   uint8 = 0x62
	MsgRegister   uint8 = 0x64
)

var (
	pNone = sfmt.PolicyNone
	pOpt  = sfmt.PolicyOptional
	pMan  = sfmt.PolicyMandatory
)

// Register opens a call independent supplementary service session
type Register struct {
	PortableIdentity   *sfmt.PortableIdentity
	Facility           sfmt.IEList
	Display            *sfmt.Display
	Keypad             *sfmt.Keypad
	FeatureActivate    *sfmt.FeatureActivate
	FeatureIndicate    *sfmt.FeatureIndicate
	EventsNotification *sfmt.EventsNotification
	TimeDate           *sfmt.TimeDate
	IWUToIWU           *sfmt.IWUToIWU
	Escape             *sfmt.EscapeToProprietary
}

var registerDesc = sfmt.NewMsgDesc("CISS-REGISTER",
	sfmt.Desc(sfmt.IEPortableIdentity, pMan, pMan),
	sfmt.Repeated(sfmt.IEFacility, pOpt, pOpt),
	sfmt.Desc(sfmt.IEMultiDisplay, pOpt, pNone),
	sfmt.Desc(sfmt.IEMultiKeypad, pNone, pOpt),
	sfmt.Desc(sfmt.IEFeatureActivate, pNone, pOpt),
	sfmt.Desc(sfmt.IEFeatureIndicate, pOpt, pNone),
	sfmt.Desc(sfmt.IEEventsNotification, pOpt, pNone),
	sfmt.Desc(sfmt.IETimeDate, pOpt, pNone),
	sfmt.Optional(sfmt.IEIWUToIWU),
	sfmt.Optional(sfmt.IEEscapeToProprietary),
)

func (m *Register) Slots() []sfmt.Slot {
	return []sfmt.Slot{
		sfmt.Ref(&m.PortableIdentity),
		sfmt.ListRef(&m.Facility),
		sfmt.ListRef(&m.Facility),
		sfmt.Ref(&m.Display),
		sfmt.Ref(&m.Keypad),
		sfmt.Ref(&m.FeatureActivate),
		sfmt.Ref(&m.FeatureIndicate),
		sfmt.Ref(&m.EventsNotification),
		sfmt.Ref(&m.TimeDate),
		sfmt.Ref(&m.IWUToIWU),
		sfmt.Ref(&m.Escape),
	}
}

// Facility exchanges supplementary service components within a session
type Facility struct {
	Facility           sfmt.IEList
	Display            *sfmt.Display
	Keypad             *sfmt.Keypad
	FeatureActivate    *sfmt.FeatureActivate
	FeatureIndicate    *sfmt.FeatureIndicate
	EventsNotification *sfmt.EventsNotification
	TimeDate           *sfmt.TimeDate
	IWUToIWU           *sfmt.IWUToIWU
	Escape             *sfmt.EscapeToProprietary
}

var facilityDesc = sfmt.NewMsgDesc("CISS-FACILITY",
	sfmt.Repeated(sfmt.IEFacility, pOpt, pOpt),
	sfmt.Desc(sfmt.IEMultiDisplay, pOpt, pNone),
	sfmt.Desc(sfmt.IEMultiKeypad, pNone, pOpt),
	sfmt.Desc(sfmt.IEFeatureActivate, pNone, pOpt),
	sfmt.Desc(sfmt.IEFeatureIndicate, pOpt, pNone),
	sfmt.Desc(sfmt.IEEventsNotification, pOpt, pNone),
	sfmt.Desc(sfmt.IETimeDate, pOpt, pNone),
	sfmt.Optional(sfmt.IEIWUToIWU),
	sfmt.Optional(sfmt.IEEscapeToProprietary),
)

func (m *Facility) Slots() []sfmt.Slot {
	return []sfmt.Slot{
		sfmt.ListRef(&m.Facility),
		sfmt.ListRef(&m.Facility),
		sfmt.Ref(&m.Display),
		sfmt.Ref(&m.Keypad),
		sfmt.Ref(&m.FeatureActivate),
		sfmt.Ref(&m.FeatureIndicate),
		sfmt.Ref(&m.EventsNotification),
		sfmt.Ref(&m.TimeDate),
		sfmt.Ref(&m.IWUToIWU),
		sfmt.Ref(&m.Escape),
	}
}

// ReleaseCom ends a session
type ReleaseCom struct {
	ReleaseReason   *sfmt.ReleaseReason
	Facility        sfmt.IEList
	Display         *sfmt.Display
	Keypad          *sfmt.Keypad
	FeatureIndicate *sfmt.FeatureIndicate
	IWUToIWU        *sfmt.IWUToIWU
	Escape          *sfmt.EscapeToProprietary
}

var releaseComDesc = sfmt.NewMsgDesc("CISS-RELEASE-COM",
	sfmt.Optional(sfmt.IEReleaseReason),
	sfmt.Repeated(sfmt.IEFacility, pOpt, pOpt),
	sfmt.Desc(sfmt.IEMultiDisplay, pOpt, pNone),
	sfmt.Desc(sfmt.IEMultiKeypad, pNone, pOpt),
	sfmt.Desc(sfmt.IEFeatureIndicate, pOpt, pNone),
	sfmt.Optional(sfmt.IEIWUToIWU),
	sfmt.Optional(sfmt.IEEscapeToProprietary),
)

func (m *ReleaseCom) Slots() []sfmt.Slot {
	return []sfmt.Slot{
		sfmt.Ref(&m.ReleaseReason),
		sfmt.ListRef(&m.Facility),
		sfmt.ListRef(&m.Facility),
		sfmt.Ref(&m.Display),
		sfmt.Ref(&m.Keypad),
		sfmt.Ref(&m.FeatureIndicate),
		sfmt.Ref(&m.IWUToIWU),
		sfmt.Ref(&m.Escape),
	}
}

func (m *ReleaseCom) reason() sfmt.ReleaseCode {
	if m.ReleaseReason == nil {
		return sfmt.ReleaseNormal
	}
	return m.ReleaseReason.Reason
}
