package identity

import (
	"fmt"
)

// ARIClass is the 3-bit access rights class
type ARIClass uint8

const (
	ARIClassA ARIClass = iota // residential and private
	ARIClassB                 // private multiple cell
	ARIClassC                 // public
	ARIClassD                 // public GSM
	ARIClassE                 // PP to PP direct communication
)

func (c ARIClass) String() string {
	if c <= ARIClassE {
		return string(rune('A' + c))
	}
	return "?"
}

const arcBits = 3

// ARI is an Access Rights Identity. The populated fields depend on Class:
//
//	A: EMC(16) FPN(17)
//	B: EIC(16) FPN(8) FPS(4)
//	C: POC(16) FPN(8) FPS(4)
//	D: GOP(20) FPN(8)
//	E: FIL(16) FPN(12)
type ARI struct {
	Class ARIClass
	EMC   uint16
	EIC   uint16
	POC   uint16
	GOP   uint32
	FIL   uint16
	FPN   uint32
	FPS   uint8
}

// Len returns the encoded length in bits, including the class
func (a ARI) Len() int {
	if a.Class == ARIClassA {
		return arcBits + 16 + 17
	}
	return arcBits + 28
}

func (a ARI) String() string {
	switch a.Class {
	case ARIClassA:
		return fmt.Sprintf("A:%04x/%05x", a.EMC, a.FPN)
	case ARIClassB:
		return fmt.Sprintf("B:%04x/%02x/%x", a.EIC, a.FPN, a.FPS)
	case ARIClassC:
		return fmt.Sprintf("C:%04x/%02x/%x", a.POC, a.FPN, a.FPS)
	case ARIClassD:
		return fmt.Sprintf("D:%05x/%02x", a.GOP, a.FPN)
	case ARIClassE:
		return fmt.Sprintf("E:%04x/%03x", a.FIL, a.FPN)
	}
	return "?"
}

func (a ARI) encode(w *bitWriter) error {
	w.write(uint64(a.Class), arcBits)
	switch a.Class {
	case ARIClassA:
		w.write(uint64(a.EMC), 16)
		w.write(uint64(a.FPN), 17)
	case ARIClassB:
		w.write(uint64(a.EIC), 16)
		w.write(uint64(a.FPN), 8)
		w.write(uint64(a.FPS), 4)
	case ARIClassC:
		w.write(uint64(a.POC), 16)
		w.write(uint64(a.FPN), 8)
		w.write(uint64(a.FPS), 4)
	case ARIClassD:
		w.write(uint64(a.GOP), 20)
		w.write(uint64(a.FPN), 8)
	case ARIClassE:
		w.write(uint64(a.FIL), 16)
		w.write(uint64(a.FPN), 12)
	default:
		return fmt.Errorf("%w: ARI class %d", ErrNotImplemented, a.Class)
	}
	return nil
}

func decodeARI(r *bitReader) (ARI, error) {
	arc, err := r.read(arcBits)
	if err != nil {
		return ARI{}, err
	}
	a := ARI{Class: ARIClass(arc)}

	// field widths per class, in order
	var widths []int
	switch a.Class {
	case ARIClassA:
		widths = []int{16, 17}
	case ARIClassB, ARIClassC:
		widths = []int{16, 8, 4}
	case ARIClassD:
		widths = []int{20, 8}
	case ARIClassE:
		widths = []int{16, 12}
	default:
		return ARI{}, fmt.Errorf("%w: ARI class %d", ErrNotImplemented, arc)
	}

	vals := make([]uint64, len(widths))
	for i, n := range widths {
		if vals[i], err = r.read(n); err != nil {
			return ARI{}, err
		}
	}

	switch a.Class {
	case ARIClassA:
		a.EMC, a.FPN = uint16(vals[0]), uint32(vals[1])
	case ARIClassB:
		a.EIC, a.FPN, a.FPS = uint16(vals[0]), uint32(vals[1]), uint8(vals[2])
	case ARIClassC:
		a.POC, a.FPN, a.FPS = uint16(vals[0]), uint32(vals[1]), uint8(vals[2])
	case ARIClassD:
		a.GOP, a.FPN = uint32(vals[0]), uint32(vals[1])
	case ARIClassE:
		a.FIL, a.FPN = uint16(vals[0]), uint32(vals[1])
	}
	return a, nil
}

// Bits packs the ARI MSB first
func (a ARI) Bits() ([]byte, int, error) {
	w := &bitWriter{}
	if err := a.encode(w); err != nil {
		return nil, 0, err
	}
	return w.buf, w.n, nil
}

// ParseARI decodes an ARI from packed bits
func ParseARI(data []byte, bits int) (ARI, error) {
	r, err := newBitReader(data, bits)
	if err != nil {
		return ARI{}, err
	}
	return decodeARI(r)
}

// ARIWithSuffix parses an ARI followed by an 8-bit suffix (RPN or WRS)
func ARIWithSuffix(data []byte, bits int) (ARI, uint8, error) {
	r, err := newBitReader(data, bits)
	if err != nil {
		return ARI{}, 0, err
	}
	a, err := decodeARI(r)
	if err != nil {
		return ARI{}, 0, err
	}
	suffix, err := r.read(8)
	if err != nil {
		return ARI{}, 0, err
	}
	return a, uint8(suffix), nil
}

// BitsWithSuffix packs the ARI followed by an 8-bit suffix
func (a ARI) BitsWithSuffix(suffix uint8) ([]byte, int, error) {
	w := &bitWriter{}
	if err := a.encode(w); err != nil {
		return nil, 0, err
	}
	w.write(uint64(suffix), 8)
	return w.buf, w.n, nil
}

// PARK is a Portable Access Rights Key: an ARI plus the number of
// significant leading bits (the PARK length indicator).
type PARK struct {
	ARI ARI
	PLI uint8
}

// Matches reports whether an FP's ARI is covered by this PARK
func (p PARK) Matches(ari ARI) bool {
	want, _, err := p.ARI.Bits()
	if err != nil {
		return false
	}
	have, _, err := ari.Bits()
	if err != nil {
		return false
	}
	n := int(p.PLI) + 1
	if n > p.ARI.Len() {
		n = p.ARI.Len()
	}
	wr, _ := newBitReader(want, n)
	hr, err := newBitReader(have, n)
	if err != nil || len(have)*8 < n {
		return false
	}
	a, _ := wr.read(n)
	b, _ := hr.read(n)
	return a == b
}

func (p PARK) String() string {
	return fmt.Sprintf("%s/%d", p.ARI, p.PLI)
}
