package sfmt

import (
	"fmt"

	"github.com/dbehnke/dect-nwk/pkg/logger"
)

// Policy is the presence requirement of an IE in one direction
type Policy uint8

const (
	PolicyNone Policy = iota
	PolicyOptional
	PolicyMandatory
)

func (p Policy) String() string {
	switch p {
	case PolicyOptional:
		return "optional"
	case PolicyMandatory:
		return "mandatory"
	default:
		return "none"
	}
}

// Flag modifies an IE descriptor
type Flag uint8

const (
	// FlagRepeat marks a slot that holds an IEList
	FlagRepeat Flag = 1 << iota
)

// Direction is the direction a message travels in
type Direction uint8

const (
	DirFPtoPP Direction = iota
	DirPPtoFP
)

func (d Direction) String() string {
	if d == DirFPtoPP {
		return "FP->PP"
	}
	return "PP->FP"
}

// IEDesc describes one IE slot of a message
type IEDesc struct {
	Type   IEType
	FPtoPP Policy
	PPtoFP Policy
	Flags  Flag
}

func (d IEDesc) policy(dir Direction) Policy {
	if dir == DirFPtoPP {
		return d.FPtoPP
	}
	return d.PPtoFP
}

// MsgDesc is the ordered IE table of a message
type MsgDesc struct {
	Name string
	IEs  []IEDesc
}

// IE descriptor helpers
func Mandatory(t IEType) IEDesc { return IEDesc{Type: t, FPtoPP: PolicyMandatory, PPtoFP: PolicyMandatory} }
func Optional(t IEType) IEDesc  { return IEDesc{Type: t, FPtoPP: PolicyOptional, PPtoFP: PolicyOptional} }
func Desc(t IEType, fpToPP, ppToFP Policy) IEDesc {
	return IEDesc{Type: t, FPtoPP: fpToPP, PPtoFP: ppToFP}
}

// Repeated returns the two descriptor entries of a list slot: the repeat
// indicator pseudo slot followed by the repeated IE.
func Repeated(t IEType, fpToPP, ppToFP Policy) []IEDesc {
	return []IEDesc{
		{Type: IERepeatIndicator, FPtoPP: PolicyOptional, PPtoFP: PolicyOptional},
		{Type: t, FPtoPP: fpToPP, PPtoFP: ppToFP, Flags: FlagRepeat},
	}
}

// NewMsgDesc builds a descriptor from entries and entry groups
func NewMsgDesc(name string, entries ...interface{}) *MsgDesc {
	d := &MsgDesc{Name: name}
	for _, e := range entries {
		switch v := e.(type) {
		case IEDesc:
			d.IEs = append(d.IEs, v)
		case []IEDesc:
			d.IEs = append(d.IEs, v...)
		default:
			panic(fmt.Sprintf("sfmt: bad descriptor entry %T in %s", e, name))
		}
	}
	return d
}

// Slot binds a descriptor entry to a message field
type Slot struct {
	get  func() IE
	set  func(IE) bool
	list *IEList
}

// Ref binds a slot to a pointer field of a concrete IE type
func Ref[T IE](p *T) Slot {
	return Slot{
		get: func() IE {
			var zero T
			if any(*p) == any(zero) {
				return nil
			}
			return *p
		},
		set: func(ie IE) bool {
			v, ok := ie.(T)
			if ok {
				*p = v
			}
			return ok
		},
	}
}

// ListRef binds a slot to a list field. A repeated IE uses the same
// ListRef for the repeat indicator entry and the list entry.
func ListRef(l *IEList) Slot {
	return Slot{list: l}
}

// Message is implemented by every NWK message. Slots returns one slot per
// descriptor entry in table order.
type Message interface {
	Slots() []Slot
}

// Codec parses and builds messages against their descriptors
type Codec struct {
	debug func(format string, args ...interface{})
}

// NewCodec creates a codec logging through log's debug hook
func NewCodec(log *logger.Logger) *Codec {
	if log == nil {
		log = logger.Nop()
	}
	return &Codec{debug: log.Hook("sfmt")}
}

func aliases(a, b IEType) bool {
	if a == b {
		return true
	}
	display := func(t IEType) bool { return t == IESingleDisplay || t == IEMultiDisplay }
	keypad := func(t IEType) bool { return t == IESingleKeypad || t == IEMultiKeypad }
	return (display(a) && display(b)) || (keypad(a) && keypad(b))
}

func checkSlots(desc *MsgDesc, slots []Slot) error {
	if len(slots) != len(desc.IEs) {
		return &Error{Msg: desc.Name, Err: fmt.Errorf("%w: %d slots for %d descriptor entries",
			ErrNotImplemented, len(slots), len(desc.IEs))}
	}
	return nil
}

// Parse decodes an S-Format body into msg
func (c *Codec) Parse(desc *MsgDesc, msg Message, data []byte, dir Direction) error {
	slots := msg.Slots()
	if err := checkSlots(desc, slots); err != nil {
		return err
	}

	n := len(desc.IEs)
	filled := make([]bool, n)
	cursor := 0
	listSlot := -1

	for len(data) > 0 {
		h, err := parseHeader(data)
		if err != nil {
			return &Error{Msg: desc.Name, Err: err}
		}
		data = data[h.size:]

		if h.id.class() == classVariable && len(h.payload) == 0 {
			c.debug("%s: empty IE <%s> skipped", desc.Name, h.id)
			continue
		}

		idx := -1
		for i := cursor; i < n; i++ {
			if aliases(desc.IEs[i].Type, h.id) {
				idx = i
				break
			}
		}
		if idx < 0 {
			c.debug("%s: unexpected IE <%s> discarded", desc.Name, h.id)
			continue
		}
		if idx != listSlot {
			listSlot = -1
		}

		for i := cursor; i < idx; i++ {
			if desc.IEs[i].policy(dir) == PolicyMandatory && !filled[i] {
				return &Error{Msg: desc.Name, IE: desc.IEs[i].Type, Err: ErrMandatoryMissing}
			}
		}

		d := desc.IEs[idx]
		pol := d.policy(dir)
		if pol == PolicyNone {
			return &Error{Msg: desc.Name, IE: h.id, Err: ErrInvalidIE}
		}

		ie, err := parseIE(h)
		if err != nil {
			if pol == PolicyMandatory {
				return &Error{Msg: desc.Name, IE: h.id, Err: fmt.Errorf("%w: %v", ErrMandatoryInvalid, err)}
			}
			c.debug("%s: optional IE <%s> discarded: %v", desc.Name, h.id, err)
			cursor = idx
			continue
		}
		c.debug("%s: IE <%s> %s", desc.Name, h.id, pol)

		switch {
		case d.Type == IERepeatIndicator:
			if idx+1 >= n || desc.IEs[idx+1].Flags&FlagRepeat == 0 || slots[idx].list == nil {
				c.debug("%s: repeat indicator without list slot", desc.Name)
				cursor = idx + 1
				continue
			}
			slots[idx].list.Repeat = ie.(*RepeatIndicator).Kind
			filled[idx] = true
			listSlot = idx + 1
			cursor = idx + 1
		case d.Flags&FlagRepeat != 0:
			slots[idx].list.Add(ie)
			filled[idx] = true
			if listSlot == idx {
				cursor = idx
			} else {
				cursor = idx + 1
			}
		default:
			if !slots[idx].set(ie) {
				return &Error{Msg: desc.Name, IE: h.id, Err: fmt.Errorf("%w: slot type mismatch", ErrNotImplemented)}
			}
			filled[idx] = true
			cursor = idx + 1
		}
	}

	for i, d := range desc.IEs {
		if d.policy(dir) == PolicyMandatory && !filled[i] {
			return &Error{Msg: desc.Name, IE: d.Type, Err: ErrMandatoryMissing}
		}
	}
	return nil
}

// Build encodes msg. No bytes are returned on error.
func (c *Codec) Build(desc *MsgDesc, msg Message, dir Direction) ([]byte, error) {
	slots := msg.Slots()
	if err := checkSlots(desc, slots); err != nil {
		return nil, err
	}

	out := make([]byte, 0, 64)
	for i, d := range desc.IEs {
		pol := d.policy(dir)
		slot := slots[i]

		if d.Type == IERepeatIndicator {
			if slot.list.Len() > 1 {
				kind := slot.list.Repeat
				if kind == 0 {
					kind = RepeatNonPrioritized
				}
				out = append(out, uint8(IERepeatIndicator)|uint8(kind))
			}
			continue
		}

		var items []IE
		if d.Flags&FlagRepeat != 0 {
			if slot.list != nil {
				items = slot.list.Items
			}
		} else if ie := slot.get(); ie != nil {
			items = []IE{ie}
		}

		if len(items) == 0 {
			if pol == PolicyMandatory {
				return nil, &Error{Msg: desc.Name, IE: d.Type, Err: ErrMandatoryMissing}
			}
			continue
		}
		if pol == PolicyNone {
			return nil, &Error{Msg: desc.Name, IE: d.Type, Err: ErrInvalidIE}
		}

		for _, ie := range items {
			var err error
			if out, err = appendIE(out, ie); err != nil {
				return nil, &Error{Msg: desc.Name, IE: d.Type, Err: err}
			}
			c.debug("%s: build IE <%s>", desc.Name, ie.Type())
		}
	}

	if len(out) > MaxBodySize {
		return nil, &Error{Msg: desc.Name, Err: fmt.Errorf("%w: %d octets", ErrBufferOverflow, len(out))}
	}
	return out, nil
}
