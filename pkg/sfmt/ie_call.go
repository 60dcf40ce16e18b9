package sfmt

import (
	"encoding/binary"
	"time"
)

// Info type parameters
const (
	InfoParamLocateSuggest          uint8 = 0x00
	InfoParamAccessRightsModify     uint8 = 0x01
	InfoParamAuthenticationFailure  uint8 = 0x08
	InfoParamDynamicParameters      uint8 = 0x0a
	InfoParamExternalHandover       uint8 = 0x0c
	InfoParamLocationArea           uint8 = 0x0d
	InfoParamHandoverReference      uint8 = 0x0e
	InfoParamOldFixedPartIdentity   uint8 = 0x14
	InfoParamOldNetworkIdentity     uint8 = 0x15
	InfoParamOldLocationArea        uint8 = 0x16
	InfoParamBilling                uint8 = 0x18
	InfoParamDebiting               uint8 = 0x19
	InfoParamCipherKeyTransfer      uint8 = 0x1a
	InfoParamHandoverFailedReversal uint8 = 0x1b
)

// InfoType lists the parameters requested or supplied by MM info messages
type InfoType struct {
	Params []uint8
}

func (*InfoType) Type() IEType { return IEInfoType }

// Facility service discriminators
const (
	FacilityDiscriminatorSS uint8 = 0x11
)

// Facility carries supplementary service components
type Facility struct {
	Service    uint8
	Components []byte
}

func (*Facility) Type() IEType { return IEFacility }

// Progress locations
const (
	ProgressLocationUser          uint8 = 0x0
	ProgressLocationPrivateLocal  uint8 = 0x1
	ProgressLocationPublicLocal   uint8 = 0x2
	ProgressLocationPublicRemote  uint8 = 0x4
	ProgressLocationPrivateRemote uint8 = 0x5
	ProgressLocationInternational uint8 = 0x7
	ProgressLocationBeyondPoint   uint8 = 0xa
)

// Progress descriptions
const (
	ProgressNotEndToEndISDN    uint8 = 0x01
	ProgressDestinationNotISDN uint8 = 0x02
	ProgressOriginationNotISDN uint8 = 0x03
	ProgressCallReturnedToISDN uint8 = 0x04
	ProgressServiceChange      uint8 = 0x05
	ProgressInbandAvailable    uint8 = 0x08
	ProgressInbandNotAvailable uint8 = 0x09
	ProgressEndToEndISDN       uint8 = 0x40
)

// ProgressIndicator describes in-band information availability
type ProgressIndicator struct {
	Location    uint8
	Description uint8
}

func (*ProgressIndicator) Type() IEType { return IEProgressIndicator }

// TimeDate codings
const (
	TimeDateTime uint8 = 0x1
	TimeDateDate uint8 = 0x2
	TimeDateBoth uint8 = 0x3
)

// TimeDate carries the current time and/or date
type TimeDate struct {
	Coding         uint8
	Interpretation uint8
	Time           time.Time
}

func (*TimeDate) Type() IEType { return IETimeDate }

// Feature codes
const (
	FeatureRegisterRecall         uint8 = 0x01
	FeatureExternalHandoverSwitch uint8 = 0x0f
	FeatureQueueEntryRequest      uint8 = 0x20
	FeatureSubscriberNumber       uint8 = 0x30
	FeatureKey                    uint8 = 0x42
	FeatureSpecificLine           uint8 = 0x44
	FeatureSpecificTrunk          uint8 = 0x47
	FeatureEchoControl            uint8 = 0x48
	FeatureCostInformation        uint8 = 0x60
)

// FeatureActivate requests activation of a network feature
type FeatureActivate struct {
	Feature uint8
	Params  []byte
}

func (*FeatureActivate) Type() IEType { return IEFeatureActivate }

// FeatureIndicate reports the status of a network feature
type FeatureIndicate struct {
	Feature uint8
	Status  uint8
	Params  []byte
}

func (*FeatureIndicate) Type() IEType { return IEFeatureIndicate }

// Network parameter discriminators
const (
	NetworkParamApplicationAssigned uint8 = 0x08
	NetworkParamDeviceName          uint8 = 0x68
)

// NetworkParameter carries network specific data
type NetworkParameter struct {
	Discriminator uint8
	Data          []byte
}

func (*NetworkParameter) Type() IEType { return IENetworkParameter }

// SetupCapability describes the PP's paging and setup capabilities
type SetupCapability struct {
	PageCapability  uint8
	SetupCapability uint8
}

func (*SetupCapability) Type() IEType { return IESetupCapability }

// Display capabilities
const (
	DisplayNotApplicable uint8 = 0x0
	DisplayNone          uint8 = 0x1
	DisplayNumeric       uint8 = 0x2
	DisplayNumericPlus   uint8 = 0x3
	DisplayAlphanumeric  uint8 = 0x4
	DisplayFull          uint8 = 0x5
)

// Tone capabilities
const (
	ToneNotApplicable uint8 = 0x0
	ToneNone          uint8 = 0x1
	ToneDialTone      uint8 = 0x2
	ToneE182          uint8 = 0x3
	ToneComplete      uint8 = 0x4
)

// TerminalCapability describes the PP's display, tone and slot
// capabilities. Profile indicators and display control groups are not
// decoded.
type TerminalCapability struct {
	Display            uint8
	Tone               uint8
	Echo               uint8
	NoiseRejection     uint8
	AdaptiveVolume     uint8
	SlotTypes          uint8
	StoredDisplayChars uint16
	DisplayLines       uint8
	CharsPerLine       uint8
	Scrolling          uint8
}

func (*TerminalCapability) Type() IEType { return IETerminalCapability }

// Number types and plans
const (
	NumberTypeUnknown       uint8 = 0x0
	NumberTypeInternational uint8 = 0x1
	NumberTypeNational      uint8 = 0x2
	NumberTypeNetwork       uint8 = 0x3
	NumberTypeSubscriber    uint8 = 0x4
	NumberTypeAbbreviated   uint8 = 0x6

	NumberPlanUnknown  uint8 = 0x0
	NumberPlanISDN     uint8 = 0x1
	NumberPlanData     uint8 = 0x3
	NumberPlanTCP      uint8 = 0x7
	NumberPlanNational uint8 = 0x8
	NumberPlanPrivate  uint8 = 0x9
)

// Presentation indicators
const (
	PresentationAllowed      uint8 = 0x0
	PresentationRestricted   uint8 = 0x1
	PresentationNotAvailable uint8 = 0x2
)

// CallingPartyNumber identifies the originator of a call
type CallingPartyNumber struct {
	NumberType   uint8
	Plan         uint8
	Presentation uint8
	Screening    uint8
	Address      []byte
}

func (*CallingPartyNumber) Type() IEType { return IECallingPartyNumber }

// CallingPartyName carries the originator's name
type CallingPartyName struct {
	Presentation uint8
	Alphabet     uint8
	Screening    uint8
	Name         []byte
}

func (*CallingPartyName) Type() IEType { return IECallingPartyName }

// CalledPartyNumber identifies the destination of a call
type CalledPartyNumber struct {
	NumberType uint8
	Plan       uint8
	Address    []byte
}

func (*CalledPartyNumber) Type() IEType { return IECalledPartyNumber }

// CalledPartySubaddress is the destination subaddress
type CalledPartySubaddress struct {
	Kind    uint8
	Odd     bool
	Address []byte
}

func (*CalledPartySubaddress) Type() IEType { return IECalledPartySubaddress }

// Duration limits the validity of an access right or location
type Duration struct {
	Lock      uint8
	TimeLimit uint8
	HasUnits  bool
	Units     uint8
}

func (*Duration) Type() IEType { return IEDuration }

// IWU protocol discriminators
const (
	IWUUserSpecific uint8 = 0x00
	IWUOSIHigh      uint8 = 0x01
	IWUX263         uint8 = 0x02
	IWUListAccess   uint8 = 0x03
	IWUIA5          uint8 = 0x04
	IWUGSM          uint8 = 0x20
)

// IWUToIWU carries interworking unit data transparently
type IWUToIWU struct {
	SendReject    bool
	Discriminator uint8
	Data          []byte
}

func (*IWUToIWU) Type() IEType { return IEIWUToIWU }

// ModelIdentifier identifies the manufacturer and model of a device
type ModelIdentifier struct {
	MANIC uint16
	MODIC uint8
}

func (*ModelIdentifier) Type() IEType { return IEModelIdentifier }

// EscapeToProprietary carries manufacturer specific content
type EscapeToProprietary struct {
	Discriminator uint8
	EMC           uint16
	Content       []byte
}

func (*EscapeToProprietary) Type() IEType { return IEEscapeToProprietary }

// Codec identifiers
const (
	CodecUserSpecific32 uint8 = 0x01
	CodecG726           uint8 = 0x02
	CodecG722           uint8 = 0x03
	CodecG711A          uint8 = 0x04
	CodecG711U          uint8 = 0x05
	CodecG7291          uint8 = 0x06
	CodecMP4_32         uint8 = 0x07
	CodecMP4_64         uint8 = 0x08
	CodecUserSpecific64 uint8 = 0x09
)

// CodecEntry is one entry of a codec list
type CodecEntry struct {
	Codec    uint8
	Service  uint8
	CPlane   uint8
	SlotSize uint8
}

// CodecList offers or selects audio codecs
type CodecList struct {
	Negotiation uint8
	Codecs      []CodecEntry
}

func (*CodecList) Type() IEType { return IECodecList }

// Event types
const (
	EventMessageWaiting uint8 = 0x00
	EventMissedCall     uint8 = 0x01
	EventWebContent     uint8 = 0x02
	EventListChange     uint8 = 0x03
)

// Event is one notified event
type Event struct {
	Kind         uint8
	Subtype      uint8
	Multiplicity uint8
}

// EventsNotification reports waiting messages, missed calls and list
// changes.
type EventsNotification struct {
	Events []Event
}

func (*EventsNotification) Type() IEType { return IEEventsNotification }

func bcd(v int) uint8 {
	return uint8(v/10%10)<<4 | uint8(v%10)
}

func unbcd(b uint8) int {
	return int(b>>4)*10 + int(b&0xf)
}

func parseTimeDate(h header) (IE, error) {
	p := h.payload
	if err := wantLen(p, 1); err != nil {
		return nil, err
	}
	td := &TimeDate{Coding: p[0] >> 6, Interpretation: p[0] & 0x3f}
	p = p[1:]

	year, month, day := 2000, 1, 1
	hour, minute, sec, zone := 0, 0, 0, 0
	if td.Coding&TimeDateDate != 0 {
		if err := wantLen(p, 3); err != nil {
			return nil, err
		}
		year, month, day = 2000+unbcd(p[0]), unbcd(p[1]), unbcd(p[2])
		p = p[3:]
	}
	if td.Coding&TimeDateTime != 0 {
		if err := wantLen(p, 4); err != nil {
			return nil, err
		}
		hour, minute, sec = unbcd(p[0]), unbcd(p[1]), unbcd(p[2])
		zone = int(int8(p[3]))
	}
	td.Time = time.Date(year, time.Month(month), day, hour, minute, sec, 0,
		time.FixedZone("", zone*15*60))
	return td, nil
}

func buildTimeDate(ie IE) ([]byte, error) {
	td := ie.(*TimeDate)
	out := []byte{td.Coding<<6 | td.Interpretation&0x3f}
	t := td.Time
	if td.Coding&TimeDateDate != 0 {
		out = append(out, bcd(t.Year()), bcd(int(t.Month())), bcd(t.Day()))
	}
	if td.Coding&TimeDateTime != 0 {
		_, offset := t.Zone()
		out = append(out, bcd(t.Hour()), bcd(t.Minute()), bcd(t.Second()), uint8(int8(offset/(15*60))))
	}
	return out, nil
}

func parseTerminalCapability(h header) (IE, error) {
	groups, err := octetGroups(h.payload)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, malformed("terminal capability without octet 3")
	}

	tc := &TerminalCapability{}
	g := groups[0]
	tc.Tone = g[0] >> 4 & 0x7
	tc.Display = g[0] & 0xf
	if len(g) > 1 {
		tc.Echo = g[1] >> 4 & 0x7
		tc.NoiseRejection = g[1] >> 2 & 0x3
		tc.AdaptiveVolume = g[1] & 0x3
	}
	if len(g) > 2 {
		tc.SlotTypes = g[2]
	}
	if len(groups) > 1 {
		g = groups[1]
		tc.StoredDisplayChars = uint16(g[0])
		if len(g) > 1 {
			tc.StoredDisplayChars = tc.StoredDisplayChars<<7 | uint16(g[1])
		}
	}
	if len(groups) > 2 {
		g = groups[2]
		tc.DisplayLines = g[0]
		if len(g) > 1 {
			tc.CharsPerLine = g[1]
		}
		if len(g) > 2 {
			tc.Scrolling = g[2]
		}
	}
	// groups 6 and 7 (profile indicators, display control) are skipped
	return tc, nil
}

func buildTerminalCapability(ie IE) ([]byte, error) {
	tc := ie.(*TerminalCapability)
	out := appendGroup(nil,
		tc.Tone&0x7<<4|tc.Display&0xf,
		tc.Echo&0x7<<4|tc.NoiseRejection&0x3<<2|tc.AdaptiveVolume&0x3,
		tc.SlotTypes)
	out = appendGroup(out, uint8(tc.StoredDisplayChars>>7), uint8(tc.StoredDisplayChars))
	out = appendGroup(out, tc.DisplayLines, tc.CharsPerLine, tc.Scrolling)
	return out, nil
}

func parseCodecList(h header) (IE, error) {
	p := h.payload
	if err := wantLen(p, 1); err != nil {
		return nil, err
	}
	cl := &CodecList{Negotiation: p[0] >> 4 & 0x7}
	p = p[1:]
	for len(p) > 0 {
		if len(p) < 3 {
			return nil, malformed("truncated codec entry")
		}
		cl.Codecs = append(cl.Codecs, CodecEntry{
			Codec:    p[0] & 0x7f,
			Service:  p[1] & 0xf,
			CPlane:   p[2] >> 4 & 0x7,
			SlotSize: p[2] & 0xf,
		})
		last := p[2]&0x80 != 0
		p = p[3:]
		if last {
			break
		}
	}
	if len(cl.Codecs) == 0 {
		return nil, malformed("empty codec list")
	}
	return cl, nil
}

func buildCodecList(ie IE) ([]byte, error) {
	cl := ie.(*CodecList)
	if len(cl.Codecs) == 0 {
		return nil, malformed("empty codec list")
	}
	out := []byte{0x80 | cl.Negotiation&0x7<<4}
	for i, c := range cl.Codecs {
		third := c.CPlane&0x7<<4 | c.SlotSize&0xf
		if i == len(cl.Codecs)-1 {
			third |= 0x80
		}
		out = append(out, c.Codec&0x7f, c.Service&0xf, third)
	}
	return out, nil
}

func init() {
	register(IEInfoType, "INFO-TYPE",
		func(h header) (IE, error) {
			it := &InfoType{}
			for _, b := range h.payload {
				it.Params = append(it.Params, b&0x7f)
			}
			return it, nil
		},
		func(ie IE) ([]byte, error) {
			it := ie.(*InfoType)
			out := make([]byte, 0, len(it.Params))
			for i, p := range it.Params {
				b := p & 0x7f
				if i == len(it.Params)-1 {
					b |= 0x80
				}
				out = append(out, b)
			}
			return out, nil
		})

	register(IEFacility, "FACILITY",
		func(h header) (IE, error) {
			if err := wantLen(h.payload, 1); err != nil {
				return nil, err
			}
			return &Facility{Service: h.payload[0] & 0x1f, Components: clone(h.payload[1:])}, nil
		},
		func(ie IE) ([]byte, error) {
			f := ie.(*Facility)
			return append([]byte{0x80 | f.Service&0x1f}, f.Components...), nil
		})

	register(IEProgressIndicator, "PROGRESS-INDICATOR",
		func(h header) (IE, error) {
			if err := wantLen(h.payload, 2); err != nil {
				return nil, err
			}
			return &ProgressIndicator{Location: h.payload[0] & 0xf, Description: h.payload[1] & 0x7f}, nil
		},
		func(ie IE) ([]byte, error) {
			pi := ie.(*ProgressIndicator)
			return []byte{0x80 | pi.Location&0xf, 0x80 | pi.Description&0x7f}, nil
		})

	register(IETimeDate, "TIME-DATE", parseTimeDate, buildTimeDate)

	register(IEFeatureActivate, "FEATURE-ACTIVATE",
		func(h header) (IE, error) {
			if err := wantLen(h.payload, 1); err != nil {
				return nil, err
			}
			return &FeatureActivate{Feature: h.payload[0] & 0x7f, Params: clone(h.payload[1:])}, nil
		},
		func(ie IE) ([]byte, error) {
			fa := ie.(*FeatureActivate)
			return append([]byte{0x80 | fa.Feature}, fa.Params...), nil
		})

	register(IEFeatureIndicate, "FEATURE-INDICATE",
		func(h header) (IE, error) {
			if err := wantLen(h.payload, 2); err != nil {
				return nil, err
			}
			return &FeatureIndicate{
				Feature: h.payload[0] & 0x7f,
				Status:  h.payload[1] & 0x7f,
				Params:  clone(h.payload[2:]),
			}, nil
		},
		func(ie IE) ([]byte, error) {
			fi := ie.(*FeatureIndicate)
			return append([]byte{0x80 | fi.Feature, 0x80 | fi.Status}, fi.Params...), nil
		})

	register(IENetworkParameter, "NETWORK-PARAMETER",
		func(h header) (IE, error) {
			if err := wantLen(h.payload, 1); err != nil {
				return nil, err
			}
			return &NetworkParameter{Discriminator: h.payload[0] & 0x7f, Data: clone(h.payload[1:])}, nil
		},
		func(ie IE) ([]byte, error) {
			np := ie.(*NetworkParameter)
			return append([]byte{0x80 | np.Discriminator}, np.Data...), nil
		})

	register(IESetupCapability, "SETUP-CAPABILITY",
		func(h header) (IE, error) {
			if err := wantLen(h.payload, 1); err != nil {
				return nil, err
			}
			return &SetupCapability{
				SetupCapability: h.payload[0] >> 2 & 0x3,
				PageCapability:  h.payload[0] & 0x3,
			}, nil
		},
		func(ie IE) ([]byte, error) {
			sc := ie.(*SetupCapability)
			return []byte{0x80 | sc.SetupCapability&0x3<<2 | sc.PageCapability&0x3}, nil
		})

	register(IETerminalCapability, "TERMINAL-CAPABILITY", parseTerminalCapability, buildTerminalCapability)

	register(IECallingPartyNumber, "CALLING-PARTY-NUMBER",
		func(h header) (IE, error) {
			p := h.payload
			if err := wantLen(p, 1); err != nil {
				return nil, err
			}
			cpn := &CallingPartyNumber{NumberType: p[0] >> 4 & 0x7, Plan: p[0] & 0xf}
			ext := p[0]&0x80 == 0
			p = p[1:]
			if ext {
				if err := wantLen(p, 1); err != nil {
					return nil, err
				}
				cpn.Presentation = p[0] >> 5 & 0x3
				cpn.Screening = p[0] & 0x3
				p = p[1:]
			}
			cpn.Address = clone(p)
			return cpn, nil
		},
		func(ie IE) ([]byte, error) {
			cpn := ie.(*CallingPartyNumber)
			out := []byte{
				cpn.NumberType&0x7<<4 | cpn.Plan&0xf,
				0x80 | cpn.Presentation&0x3<<5 | cpn.Screening&0x3,
			}
			return append(out, cpn.Address...), nil
		})

	register(IECallingPartyName, "CALLING-PARTY-NAME",
		func(h header) (IE, error) {
			if err := wantLen(h.payload, 1); err != nil {
				return nil, err
			}
			b := h.payload[0]
			return &CallingPartyName{
				Presentation: b >> 5 & 0x3,
				Alphabet:     b >> 2 & 0x7,
				Screening:    b & 0x3,
				Name:         clone(h.payload[1:]),
			}, nil
		},
		func(ie IE) ([]byte, error) {
			cn := ie.(*CallingPartyName)
			b := 0x80 | cn.Presentation&0x3<<5 | cn.Alphabet&0x7<<2 | cn.Screening&0x3
			return append([]byte{b}, cn.Name...), nil
		})

	register(IECalledPartyNumber, "CALLED-PARTY-NUMBER",
		func(h header) (IE, error) {
			if err := wantLen(h.payload, 1); err != nil {
				return nil, err
			}
			return &CalledPartyNumber{
				NumberType: h.payload[0] >> 4 & 0x7,
				Plan:       h.payload[0] & 0xf,
				Address:    clone(h.payload[1:]),
			}, nil
		},
		func(ie IE) ([]byte, error) {
			cpn := ie.(*CalledPartyNumber)
			return append([]byte{0x80 | cpn.NumberType&0x7<<4 | cpn.Plan&0xf}, cpn.Address...), nil
		})

	register(IECalledPartySubaddress, "CALLED-PARTY-SUBADDRESS",
		func(h header) (IE, error) {
			if err := wantLen(h.payload, 1); err != nil {
				return nil, err
			}
			return &CalledPartySubaddress{
				Kind:    h.payload[0] >> 4 & 0x7,
				Odd:     h.payload[0]&0x08 != 0,
				Address: clone(h.payload[1:]),
			}, nil
		},
		func(ie IE) ([]byte, error) {
			sa := ie.(*CalledPartySubaddress)
			b := 0x80 | sa.Kind&0x7<<4
			if sa.Odd {
				b |= 0x08
			}
			return append([]byte{b}, sa.Address...), nil
		})

	register(IEDuration, "DURATION",
		func(h header) (IE, error) {
			p := h.payload
			if err := wantLen(p, 1); err != nil {
				return nil, err
			}
			d := &Duration{Lock: p[0] >> 4 & 0x7, TimeLimit: p[0] & 0xf}
			if p[0]&0x80 == 0 {
				if err := wantLen(p, 2); err != nil {
					return nil, err
				}
				d.HasUnits = true
				d.Units = p[1]
			}
			return d, nil
		},
		func(ie IE) ([]byte, error) {
			d := ie.(*Duration)
			b := d.Lock&0x7<<4 | d.TimeLimit&0xf
			if !d.HasUnits {
				return []byte{0x80 | b}, nil
			}
			return []byte{b, d.Units}, nil
		})

	register(IEIWUToIWU, "IWU-TO-IWU",
		func(h header) (IE, error) {
			if err := wantLen(h.payload, 1); err != nil {
				return nil, err
			}
			return &IWUToIWU{
				SendReject:    h.payload[0]&0x40 != 0,
				Discriminator: h.payload[0] & 0x3f,
				Data:          clone(h.payload[1:]),
			}, nil
		},
		func(ie IE) ([]byte, error) {
			iwu := ie.(*IWUToIWU)
			b := 0x80 | iwu.Discriminator&0x3f
			if iwu.SendReject {
				b |= 0x40
			}
			return append([]byte{b}, iwu.Data...), nil
		})

	register(IEModelIdentifier, "MODEL-IDENTIFIER",
		func(h header) (IE, error) {
			if err := wantLen(h.payload, 3); err != nil {
				return nil, err
			}
			return &ModelIdentifier{
				MANIC: binary.BigEndian.Uint16(h.payload[0:2]),
				MODIC: h.payload[2],
			}, nil
		},
		func(ie IE) ([]byte, error) {
			mi := ie.(*ModelIdentifier)
			return append(binary.BigEndian.AppendUint16(nil, mi.MANIC), mi.MODIC), nil
		})

	register(IEEscapeToProprietary, "ESCAPE-TO-PROPRIETARY",
		func(h header) (IE, error) {
			if err := wantLen(h.payload, 3); err != nil {
				return nil, err
			}
			return &EscapeToProprietary{
				Discriminator: h.payload[0] & 0x7f,
				EMC:           binary.BigEndian.Uint16(h.payload[1:3]),
				Content:       clone(h.payload[3:]),
			}, nil
		},
		func(ie IE) ([]byte, error) {
			ep := ie.(*EscapeToProprietary)
			out := binary.BigEndian.AppendUint16([]byte{0x80 | ep.Discriminator}, ep.EMC)
			return append(out, ep.Content...), nil
		})

	register(IECodecList, "CODEC-LIST", parseCodecList, buildCodecList)

	register(IEEventsNotification, "EVENTS-NOTIFICATION",
		func(h header) (IE, error) {
			groups, err := octetGroups(h.payload)
			if err != nil {
				return nil, err
			}
			en := &EventsNotification{}
			for _, g := range groups {
				if len(g) != 3 {
					return nil, malformed("event of %d octets", len(g))
				}
				en.Events = append(en.Events, Event{Kind: g[0], Subtype: g[1], Multiplicity: g[2]})
			}
			return en, nil
		},
		func(ie IE) ([]byte, error) {
			var out []byte
			for _, e := range ie.(*EventsNotification).Events {
				out = appendGroup(out, e.Kind, e.Subtype, e.Multiplicity)
			}
			return out, nil
		})
}
