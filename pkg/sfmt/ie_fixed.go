package sfmt

// RepeatType is the list semantics announced by a repeat indicator
type RepeatType uint8

const (
	RepeatNonPrioritized RepeatType = 0x1
	RepeatPrioritized    RepeatType = 0x2
)

// RepeatIndicator announces that the following IE is a list
type RepeatIndicator struct {
	Kind RepeatType
}

func (*RepeatIndicator) Type() IEType { return IERepeatIndicator }

// Shift switches the codeset of the following IEs
type Shift struct {
	Locking bool
	Codeset uint8
}

func (*Shift) Type() IEType { return IEShift }

// SendingComplete marks the end of called party digits
type SendingComplete struct{}

func (*SendingComplete) Type() IEType { return IESendingComplete }

// DelimiterRequest asks the peer to signal end of dialling
type DelimiterRequest struct{}

func (*DelimiterRequest) Type() IEType { return IEDelimiterRequest }

// UseTPUI tells the PP to use its assigned TPUI for paging
type UseTPUI struct{}

func (*UseTPUI) Type() IEType { return IEUseTPUI }

// CallClass is the high nibble of the basic service IE
type CallClass uint8

const (
	CallClassLiAServiceSetup  CallClass = 0x2
	CallClassMessage          CallClass = 0x4
	CallClassDECTInternal     CallClass = 0x5
	CallClassNormal           CallClass = 0x8
	CallClassInternal         CallClass = 0x9
	CallClassEmergency        CallClass = 0xa
	CallClassService          CallClass = 0xb
	CallClassExternalHandover CallClass = 0xc
	CallClassSupplementary    CallClass = 0xd
	CallClassQAndMaintenance  CallClass = 0xe
)

// Service is the low nibble of the basic service IE
type Service uint8

const (
	ServiceBasicSpeech    Service = 0x0
	ServiceDECTGSMIWP     Service = 0x4
	ServiceUMTSIWP        Service = 0x6
	ServiceLRMS           Service = 0x5
	ServiceGSMIWPSMS      Service = 0x7
	ServiceWidebandSpeech Service = 0x8
	ServiceOther          Service = 0xf
)

// BasicService selects the call class and basic service of a call
type BasicService struct {
	Class   CallClass
	Service Service
}

func (*BasicService) Type() IEType { return IEBasicService }

// ReleaseReason carries the cause of a release
type ReleaseReason struct {
	Reason ReleaseCode
}

func (*ReleaseReason) Type() IEType { return IEReleaseReason }

// Signal codes
const (
	SignalDialToneOn       uint8 = 0x00
	SignalRingBackToneOn   uint8 = 0x01
	SignalInterceptToneOn  uint8 = 0x02
	SignalNetworkCongested uint8 = 0x03
	SignalBusyToneOn       uint8 = 0x04
	SignalConfirmToneOn    uint8 = 0x05
	SignalAnswerToneOn     uint8 = 0x06
	SignalCallWaitingTone  uint8 = 0x07
	SignalOffHookWarning   uint8 = 0x08
	SignalNegativeAck      uint8 = 0x09
	SignalTonesOff         uint8 = 0x3f
	SignalAlertingPattern0 uint8 = 0x40
	SignalAlertingOff      uint8 = 0x4f
)

// Signal requests a tone or alerting pattern on the PP
type Signal struct {
	Code uint8
}

func (*Signal) Type() IEType { return IESignal }

// TimerRestart controls a peer timer
type TimerRestart struct {
	Value uint8 // 0 restart, 1 stop
}

func (*TimerRestart) Type() IEType { return IETimerRestart }

// TestHookControl reports hook state in test mode
type TestHookControl struct {
	Hook uint8 // 0 on-hook, 1 off-hook
}

func (*TestHookControl) Type() IEType { return IETestHookControl }

// Display carries display characters. One character is sent as the
// single display IE, longer text as multi display.
type Display struct {
	Text []byte
}

func (d *Display) Type() IEType {
	if len(d.Text) == 1 {
		return IESingleDisplay
	}
	return IEMultiDisplay
}

// Keypad carries keypad information. One key is sent as the single
// keypad IE, longer input as multi keypad.
type Keypad struct {
	Info []byte
}

func (k *Keypad) Type() IEType {
	if len(k.Info) == 1 {
		return IESingleKeypad
	}
	return IEMultiKeypad
}

func init() {
	register(IERepeatIndicator, "REPEAT-INDICATOR",
		func(h header) (IE, error) {
			kind := RepeatType(h.val)
			if kind != RepeatNonPrioritized && kind != RepeatPrioritized {
				return nil, malformed("repeat indicator %#x", h.val)
			}
			return &RepeatIndicator{Kind: kind}, nil
		},
		func(ie IE) ([]byte, error) {
			return []byte{uint8(ie.(*RepeatIndicator).Kind)}, nil
		})

	register(IEShift, "SHIFT",
		func(h header) (IE, error) {
			return &Shift{Locking: h.val&0x8 == 0, Codeset: h.val & 0x7}, nil
		},
		func(ie IE) ([]byte, error) {
			s := ie.(*Shift)
			v := s.Codeset & 0x7
			if !s.Locking {
				v |= 0x8
			}
			return []byte{v}, nil
		})

	register(IESendingComplete, "SENDING-COMPLETE",
		func(header) (IE, error) { return &SendingComplete{}, nil },
		func(IE) ([]byte, error) { return nil, nil })
	register(IEDelimiterRequest, "DELIMITER-REQUEST",
		func(header) (IE, error) { return &DelimiterRequest{}, nil },
		func(IE) ([]byte, error) { return nil, nil })
	register(IEUseTPUI, "USE-TPUI",
		func(header) (IE, error) { return &UseTPUI{}, nil },
		func(IE) ([]byte, error) { return nil, nil })

	register(IEBasicService, "BASIC-SERVICE",
		func(h header) (IE, error) {
			return &BasicService{Class: CallClass(h.val >> 4), Service: Service(h.val & 0xf)}, nil
		},
		func(ie IE) ([]byte, error) {
			b := ie.(*BasicService)
			return []byte{uint8(b.Class)<<4 | uint8(b.Service)&0xf}, nil
		})

	register(IEReleaseReason, "RELEASE-REASON",
		func(h header) (IE, error) { return &ReleaseReason{Reason: ReleaseCode(h.val)}, nil },
		func(ie IE) ([]byte, error) { return []byte{uint8(ie.(*ReleaseReason).Reason)}, nil })

	register(IESignal, "SIGNAL",
		func(h header) (IE, error) { return &Signal{Code: h.val}, nil },
		func(ie IE) ([]byte, error) { return []byte{ie.(*Signal).Code}, nil })

	register(IETimerRestart, "TIMER-RESTART",
		func(h header) (IE, error) {
			if h.val > 1 {
				return nil, malformed("timer restart value %#x", h.val)
			}
			return &TimerRestart{Value: h.val}, nil
		},
		func(ie IE) ([]byte, error) { return []byte{ie.(*TimerRestart).Value}, nil })

	register(IETestHookControl, "TEST-HOOK-CONTROL",
		func(h header) (IE, error) { return &TestHookControl{Hook: h.val}, nil },
		func(ie IE) ([]byte, error) { return []byte{ie.(*TestHookControl).Hook}, nil })

	register(IESingleDisplay, "SINGLE-DISPLAY",
		func(h header) (IE, error) { return &Display{Text: []byte{h.val}}, nil },
		func(ie IE) ([]byte, error) { return ie.(*Display).Text[:1], nil })
	register(IEMultiDisplay, "MULTI-DISPLAY",
		func(h header) (IE, error) { return &Display{Text: clone(h.payload)}, nil },
		func(ie IE) ([]byte, error) { return nonEmpty("display", ie.(*Display).Text) })

	register(IESingleKeypad, "SINGLE-KEYPAD",
		func(h header) (IE, error) { return &Keypad{Info: []byte{h.val}}, nil },
		func(ie IE) ([]byte, error) { return ie.(*Keypad).Info[:1], nil })
	register(IEMultiKeypad, "MULTI-KEYPAD",
		func(h header) (IE, error) { return &Keypad{Info: clone(h.payload)}, nil },
		func(ie IE) ([]byte, error) { return nonEmpty("keypad", ie.(*Keypad).Info) })
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}

// nonEmpty refuses an empty payload, which would be read back as an
// absent IE
func nonEmpty(what string, v []byte) ([]byte, error) {
	if len(v) == 0 {
		return nil, malformed("empty %s", what)
	}
	return v, nil
}
